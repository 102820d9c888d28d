package downloader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/vidproxy/internal/models"
	"github.com/desertthunder/vidproxy/internal/shared"
	"github.com/lrstanley/go-ytdlp"
)

// DefaultInfoTimeout bounds a metadata fetch.
const DefaultInfoTimeout = 30 * time.Second

// Runner is the subset of [Invoker] used by fetchers and strategy runners.
type Runner interface {
	Run(ctx context.Context, timeout time.Duration, cmd *ytdlp.Command, args ...string) (*ytdlp.Result, error)
}

// InfoCommand returns the metadata query: a single JSON document and no media.
func InfoCommand() *ytdlp.Command {
	return ytdlp.New().
		DumpJSON().
		SkipDownload().
		NoPlaylist().
		NoWarnings()
}

// InfoFetcher retrieves video metadata without downloading media.
type InfoFetcher struct {
	runner  Runner
	timeout time.Duration
	logger  *log.Logger
}

// NewInfoFetcher creates a fetcher. A non-positive timeout uses [DefaultInfoTimeout].
func NewInfoFetcher(r Runner, timeout time.Duration, logger *log.Logger) *InfoFetcher {
	if timeout <= 0 {
		timeout = DefaultInfoTimeout
	}
	if logger == nil {
		logger = log.Default()
	}
	return &InfoFetcher{runner: r, timeout: timeout, logger: logger}
}

// Fetch returns the metadata for url.
//
// Tool failures wrap both [shared.ErrMetadataUnavailable] and the [*shared.CommandError], so
// callers can still inspect stderr. Missing or unparseable output wraps the sentinel alone.
func (f *InfoFetcher) Fetch(ctx context.Context, url string) (*models.VideoInfo, error) {
	res, err := f.runner.Run(ctx, f.timeout, InfoCommand(), url)
	if err != nil {
		var cmdErr *shared.CommandError
		if errors.As(err, &cmdErr) {
			return nil, fmt.Errorf("%w: %w", shared.ErrMetadataUnavailable, err)
		}
		return nil, err
	}

	return ParseInfo(res)
}

// ParseInfo maps the first extracted document in res to [models.VideoInfo].
func ParseInfo(res *ytdlp.Result) (*models.VideoInfo, error) {
	if res == nil {
		return nil, fmt.Errorf("%w: empty output", shared.ErrMetadataUnavailable)
	}

	infos, err := res.GetExtractedInfo()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrMetadataUnavailable, err)
	}
	if len(infos) == 0 {
		return nil, fmt.Errorf("%w: no metadata document", shared.ErrMetadataUnavailable)
	}

	v := infos[0]
	title := deref(v.Title)
	if title == "" && v.ID == "" {
		return nil, fmt.Errorf("%w: document has no id or title", shared.ErrMetadataUnavailable)
	}

	author := deref(v.Uploader)
	if author == "" {
		author = deref(v.Channel)
	}
	info := &models.VideoInfo{
		ID:              v.ID,
		Title:           title,
		Author:          author,
		DurationSeconds: int(deref(v.Duration)),
		ViewCount:       int64(deref(v.ViewCount)),
	}
	if v.ExtractedFormat != nil {
		info.Height = int(deref(v.ExtractedFormat.Height))
	}
	return info, nil
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
