package tasks

import (
	"context"
	"fmt"
	"sync"

	"github.com/desertthunder/vidproxy/internal/models"
	"github.com/desertthunder/vidproxy/internal/shared"
	"golang.org/x/time/rate"
)

// BatchOpts contains configuration for downloading several URLs.
type BatchOpts struct {
	Format     models.Format
	NumWorkers int     // Concurrent downloads (default: 2, max: 4)
	RateLimit  float64 // Downloads started per second (default: 1)
}

// BatchItemResult is the outcome for one URL of a batch.
type BatchItemResult struct {
	URL    string                 `json:"url"`
	Result *models.DownloadResult `json:"result,omitempty"`
	Error  error                  `json:"-"`
	Reason string                 `json:"error,omitempty"`
}

// BatchResult summarizes a batch. Items keep the input order.
type BatchResult struct {
	Total     int               `json:"total"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
	Items     []BatchItemResult `json:"items"`
}

type batchJob struct {
	index int
	url   string
}

type batchOutcome struct {
	index int
	item  BatchItemResult
}

// Batch downloads urls through engine with a bounded worker pool, starting at most
// RateLimit downloads per second. Each item gets its own filename token.
func Batch(ctx context.Context, engine DownloadEngine, urls []string, opts BatchOpts, prog chan<- ProgressUpdate) (*BatchResult, error) {
	if engine == nil {
		return nil, fmt.Errorf("%w: download engine not initialized", shared.ErrServiceUnavailable)
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("%w: at least one url is required", shared.ErrMissingArgument)
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 2
	}
	if opts.NumWorkers > 4 {
		opts.NumWorkers = 4
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 1.0
	}

	result := &BatchResult{Total: len(urls), Items: make([]BatchItemResult, len(urls))}
	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)

	jobs := make(chan batchJob, len(urls))
	results := make(chan batchOutcome, len(urls))

	var wg sync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				item := BatchItemResult{URL: job.url}
				if err := ctx.Err(); err != nil {
					item.Error = err
				} else {
					req := models.DownloadRequest{URL: job.url, Format: opts.Format}
					item.Result, item.Error = engine.Download(ctx, req, shared.ShortID(), nil)
				}
				results <- batchOutcome{index: job.index, item: item}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i, u := range urls {
			if err := limiter.Wait(ctx); err != nil {
				for j := i; j < len(urls); j++ {
					jobs <- batchJob{index: j, url: urls[j]}
				}
				return
			}
			jobs <- batchJob{index: i, url: u}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for r := range results {
		completed++
		if r.item.Error != nil {
			r.item.Reason = Classify(r.item.Error).Message
			if IsInputError(r.item.Error) {
				r.item.Reason = r.item.Error.Error()
			}
			result.Failed++
			sendProgress(prog, batchFailedUpdate(completed, len(urls), r.item.URL, r.item.Error))
		} else {
			result.Succeeded++
			sendProgress(prog, batchCompletedUpdate(completed, len(urls), r.item.URL, r.item.Result.Filename))
		}
		result.Items[r.index] = r.item
	}

	return result, ctx.Err()
}
