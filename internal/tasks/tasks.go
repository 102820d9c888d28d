// package tasks implements the download orchestration pipeline.
//
// The core abstraction is Pipeline, which validates a request, fetches metadata, runs the
// download strategies and verifies the result, rerouting once to a fallback provider.
// Operations emit progress updates via channels for non-blocking status reporting to CLI/UI layers.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/vidproxy/internal/downloader"
	"github.com/desertthunder/vidproxy/internal/files"
	"github.com/desertthunder/vidproxy/internal/models"
	"github.com/desertthunder/vidproxy/internal/services"
	"github.com/desertthunder/vidproxy/internal/shared"
)

// InfoSource fetches video metadata.
type InfoSource interface {
	Fetch(ctx context.Context, url string) (*models.VideoInfo, error)
}

// MediaDownloader runs ordered download strategies.
type MediaDownloader interface {
	Run(ctx context.Context, url, dir, base string, strategies []downloader.Strategy, observe downloader.AttemptFunc) (*downloader.Outcome, error)
}

// DownloadEngine defines the request-level download operation.
type DownloadEngine interface {
	// Download fetches req into the output directory and returns the verified file.
	Download(ctx context.Context, req models.DownloadRequest, token string, progress chan<- ProgressUpdate) (*models.DownloadResult, error)
}

// PipelineOpts contains the dependencies and limits of a [Pipeline].
type PipelineOpts struct {
	Info      InfoSource
	Media     MediaDownloader
	Fallback  services.Provider // nil disables the fallback path
	OutputDir string
	MaxHeight int
	Logger    *log.Logger
}

// Pipeline implements [DownloadEngine].
type Pipeline struct {
	info      InfoSource
	media     MediaDownloader
	fallback  services.Provider
	outputDir string
	maxHeight int
	logger    *log.Logger
	now       func() time.Time
}

// NewPipeline creates a Pipeline with the provided dependencies.
func NewPipeline(opts PipelineOpts) *Pipeline {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.MaxHeight <= 0 {
		opts.MaxHeight = downloader.DefaultMaxHeight
	}
	return &Pipeline{
		info:      opts.Info,
		media:     opts.Media,
		fallback:  opts.Fallback,
		outputDir: opts.OutputDir,
		maxHeight: opts.MaxHeight,
		logger:    opts.Logger,
		now:       time.Now,
	}
}

// OutputDir returns the directory downloads are written to.
func (p *Pipeline) OutputDir() string {
	return p.outputDir
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Download runs one request: validate, fetch metadata, try each strategy, then locate and
// verify the file. A metadata or strategy failure whose message carries a bot-detection or
// age-restriction signature reroutes to the fallback provider exactly once.
//
// token is embedded in the output filename so concurrent requests never share a prefix.
func (p *Pipeline) Download(ctx context.Context, req models.DownloadRequest, token string, progress chan<- ProgressUpdate) (*models.DownloadResult, error) {
	if p.info == nil || p.media == nil {
		return nil, fmt.Errorf("%w: pipeline not initialized", shared.ErrServiceUnavailable)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	sendProgress(progress, validateUpdate(&req))

	videoID := req.VideoID()
	logger := p.logger.With("video", videoID, "format", req.Format, "token", token)

	sendProgress(progress, fetchInfoUpdate())
	info, err := p.info.Fetch(ctx, req.URL)
	if err != nil {
		logger.Warn("metadata fetch failed", "error", err)
		if p.canFallback(ctx, err) {
			now := p.now()
			name := func(title string) string { return files.OutputBase(title, videoID, token, now) }
			return p.downloadFallback(ctx, logger, videoID, name, nil, err, progress)
		}
		return nil, err
	}
	sendProgress(progress, foundInfoUpdate(info))

	base := files.OutputBase(info.Title, videoID, token, p.now())
	strategies := downloader.StrategiesFor(req.Format, p.maxHeight)

	outcome, err := p.media.Run(ctx, req.URL, p.outputDir, base, strategies, func(n, total int, s downloader.Strategy) {
		sendProgress(progress, attemptUpdate(n, total, s))
	})
	if err != nil {
		if p.canFallback(ctx, err) {
			return p.downloadFallback(ctx, logger, videoID, services.FixedName(base), info, err, progress)
		}
		return nil, err
	}

	sendProgress(progress, locateUpdate())
	entry, size, err := p.locate(base, outcome.Path)
	if err != nil {
		logger.Error("downloaded file failed verification", "strategy", outcome.Strategy, "error", err)
		return nil, err
	}

	result := &models.DownloadResult{
		Filename: entry,
		Path:     filepath.Join(p.outputDir, entry),
		Size:     size,
		Summary:  models.NewVideoSummary(*info, info.Quality(req.Format), models.MethodPrimary),
	}
	logger.Info("download complete", "file", result.Filename, "strategy", outcome.Strategy, "size", shared.FormatBytes(size))
	sendProgress(progress, completeUpdate(result))
	return result, nil
}

func (p *Pipeline) canFallback(ctx context.Context, err error) bool {
	return p.fallback != nil && ctx.Err() == nil && ShouldFallback(err)
}

// locate prefers the path the downloader printed and falls back to the newest file
// starting with base. It returns the verified file name and size.
func (p *Pipeline) locate(base, printed string) (string, int64, error) {
	if name := filepath.Base(printed); printed != "" && strings.HasPrefix(name, base) &&
		filepath.Clean(filepath.Dir(printed)) == filepath.Clean(p.outputDir) {
		if size, err := files.Verify(printed); err == nil {
			return name, size, nil
		}
	}

	entry, err := files.Locate(p.outputDir, base)
	if err != nil {
		return "", 0, err
	}
	size, err := files.Verify(entry.Path)
	if err != nil {
		return "", 0, err
	}
	return entry.Name, size, nil
}

// downloadFallback reroutes to the fallback provider. primary is the error that triggered
// it and stays in the chain so the failure is classified by its original cause. Without
// metadata, name builds the file name from the provider's title.
func (p *Pipeline) downloadFallback(
	ctx context.Context,
	logger *log.Logger,
	videoID string,
	name services.NameFunc,
	info *models.VideoInfo,
	primary error,
	progress chan<- ProgressUpdate,
) (*models.DownloadResult, error) {
	logger.Info("rerouting to fallback provider", "provider", p.fallback.Name(), "cause", shared.RootMessage(primary))
	sendProgress(progress, fallbackUpdate(p.fallback.Name()))

	d, err := p.fallback.Download(ctx, videoID, p.outputDir, name)
	if err != nil {
		logger.Error("fallback failed", "error", err)
		return nil, fmt.Errorf("%w (fallback: %w)", primary, err)
	}

	size, err := files.Verify(d.Path)
	if err != nil {
		return nil, err
	}

	summaryInfo := d.Info
	if info != nil {
		summaryInfo = *info
		summaryInfo.Height = d.Info.Height
	}
	result := &models.DownloadResult{
		Filename: d.Filename,
		Path:     d.Path,
		Size:     size,
		Summary:  models.NewVideoSummary(summaryInfo, d.Quality, models.MethodFallback),
	}
	logger.Info("download complete", "file", result.Filename, "method", models.MethodFallback, "instance", d.Instance)
	sendProgress(progress, completeUpdate(result))
	return result, nil
}

// IsInputError reports whether err was caused by the request rather than the pipeline.
func IsInputError(err error) bool {
	return errors.Is(err, shared.ErrInvalidInput)
}
