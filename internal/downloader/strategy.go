package downloader

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/vidproxy/internal/models"
	"github.com/desertthunder/vidproxy/internal/shared"
	"github.com/lrstanley/go-ytdlp"
)

const (
	DefaultAttemptTimeout = 300 * time.Second
	DefaultRetryBackoff   = 2 * time.Second
	DefaultMaxHeight      = 720
)

// Strategy is one attempt at fetching media.
type Strategy struct {
	Name           string
	FormatSelector string
	// MergeFormat is the container separate video and audio streams are merged into.
	MergeFormat string
	// Recode re-encodes the download into this container.
	Recode string
	// AudioFormat extracts the audio track in this codec.
	AudioFormat  string
	AudioQuality string
}

// Command returns the downloader command for fetching into template.
//
// The final path is printed after post-processing so callers need not guess the extension.
func (s Strategy) Command(template string) *ytdlp.Command {
	cmd := ytdlp.New().
		Format(s.FormatSelector).
		Output(template).
		NoPlaylist().
		NoWarnings().
		Quiet().
		NoSimulate().
		Print("after_move:filepath")

	if s.MergeFormat != "" {
		cmd.MergeOutputFormat(s.MergeFormat)
	}
	if s.Recode != "" {
		cmd.RecodeVideo(s.Recode)
	}
	if s.AudioFormat != "" {
		cmd.ExtractAudio().AudioFormat(s.AudioFormat)
	}
	if s.AudioQuality != "" {
		cmd.AudioQuality(s.AudioQuality)
	}
	return cmd
}

// StrategiesFor returns the ordered strategies for format f with video capped at maxHeight.
//
// Each call returns a fresh slice.
func StrategiesFor(f models.Format, maxHeight int) []Strategy {
	if maxHeight <= 0 {
		maxHeight = DefaultMaxHeight
	}

	switch f {
	case models.FormatMP3:
		return []Strategy{
			{
				Name:           "best-audio",
				FormatSelector: "bestaudio/best",
				AudioFormat:    "mp3",
				AudioQuality:   "0",
			},
			{
				Name:           "worst-audio",
				FormatSelector: "worstaudio/worst",
				AudioFormat:    "mp3",
			},
		}
	case models.FormatWebM:
		return []Strategy{
			{
				Name: "capped-webm",
				FormatSelector: fmt.Sprintf(
					"bestvideo[height<=%[1]d][ext=webm]+bestaudio[ext=webm]/best[height<=%[1]d][ext=webm]/best[height<=%[1]d]",
					maxHeight,
				),
				MergeFormat: "webm",
			},
			{
				Name:           "worst-webm",
				FormatSelector: "worst[ext=webm]/worst",
			},
			{
				Name:           "recode-webm",
				FormatSelector: "best",
				Recode:         "webm",
			},
		}
	default:
		return []Strategy{
			{
				Name: "capped-mp4",
				FormatSelector: fmt.Sprintf(
					"bestvideo[height<=%[1]d][ext=mp4]+bestaudio[ext=m4a]/best[height<=%[1]d][ext=mp4]/best[height<=%[1]d]",
					maxHeight,
				),
				MergeFormat: "mp4",
			},
			{
				Name:           "worst-mp4",
				FormatSelector: "worst[ext=mp4]/worst",
			},
			{
				Name:           "recode-mp4",
				FormatSelector: "best",
				Recode:         "mp4",
			},
		}
	}
}

// Template returns the output template for base inside dir.
func Template(dir, base string) string {
	return filepath.Join(dir, base+".%(ext)s")
}

// Outcome describes the strategy that succeeded.
type Outcome struct {
	Strategy string
	Attempt  int
	// Path is the final file path printed by the downloader, or "" if it printed none.
	Path string
}

// AttemptFunc observes the start of each attempt.
type AttemptFunc func(attempt, total int, s Strategy)

// StrategyRunnerOpts configures a [StrategyRunner].
type StrategyRunnerOpts struct {
	AttemptTimeout time.Duration
	RetryBackoff   time.Duration // zero uses the default, negative disables
	Logger         *log.Logger
}

// StrategyRunner tries strategies in order until one succeeds.
type StrategyRunner struct {
	runner  Runner
	timeout time.Duration
	backoff time.Duration
	logger  *log.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewStrategyRunner creates a runner, filling unset options with defaults.
func NewStrategyRunner(r Runner, opts StrategyRunnerOpts) *StrategyRunner {
	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = DefaultAttemptTimeout
	}
	switch {
	case opts.RetryBackoff == 0:
		opts.RetryBackoff = DefaultRetryBackoff
	case opts.RetryBackoff < 0:
		opts.RetryBackoff = 0
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &StrategyRunner{
		runner:  r,
		timeout: opts.AttemptTimeout,
		backoff: opts.RetryBackoff,
		logger:  opts.Logger,
		sleep:   sleepContext,
	}
}

// Run downloads url into dir/base.<ext>, trying each strategy in order.
//
// The first success stops the loop. Between failures the runner waits the retry backoff,
// but never after the final attempt. When every strategy fails the error is a
// [*shared.StrategyExhaustedError] whose last attempt carries the surfaced cause.
// Partial files are left in place.
func (r *StrategyRunner) Run(ctx context.Context, url, dir, base string, strategies []Strategy, observe AttemptFunc) (*Outcome, error) {
	if len(strategies) == 0 {
		return nil, fmt.Errorf("%w: no strategies", shared.ErrStrategyExhausted)
	}

	template := Template(dir, base)
	exhausted := &shared.StrategyExhaustedError{}

	for i, s := range strategies {
		if observe != nil {
			observe(i+1, len(strategies), s)
		}
		logger := r.logger.With("strategy", s.Name, "attempt", i+1, "of", len(strategies))
		logger.Info("trying download strategy")

		res, err := r.runner.Run(ctx, r.timeout, s.Command(template), url)
		if err == nil {
			return &Outcome{Strategy: s.Name, Attempt: i + 1, Path: printedPath(res)}, nil
		}

		logger.Warn("download strategy failed", "error", err)
		exhausted.Attempts = append(exhausted.Attempts, shared.AttemptError{Strategy: s.Name, Err: err})

		if ctx.Err() != nil || i == len(strategies)-1 {
			break
		}
		if err := r.sleep(ctx, r.backoff); err != nil {
			break
		}
	}

	return nil, exhausted
}

// printedPath returns the last non-empty line of the downloader's stdout.
func printedPath(res *ytdlp.Result) string {
	if res == nil {
		return ""
	}
	lines := strings.Split(res.Stdout, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
