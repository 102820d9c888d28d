package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/vidproxy/internal/models"
	"github.com/desertthunder/vidproxy/internal/shared"
)

const (
	DefaultFallbackTimeout   = 2 * time.Minute
	DefaultFallbackMaxHeight = 720
)

var videoIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// videoResponse is the subset of GET /api/v1/videos/{id} we read.
type videoResponse struct {
	Title         string         `json:"title"`
	Author        string         `json:"author"`
	LengthSeconds int            `json:"lengthSeconds"`
	ViewCount     int64          `json:"viewCount"`
	Error         string         `json:"error"`
	FormatStreams []formatStream `json:"formatStreams"`
}

type formatStream struct {
	URL          string `json:"url"`
	Container    string `json:"container"`
	QualityLabel string `json:"qualityLabel"`
	Resolution   string `json:"resolution"`
}

var heightRe = regexp.MustCompile(`^(\d+)p`)

// height parses "720p" or "1080p60" labels; 0 means unknown.
func (s formatStream) height() int {
	for _, label := range []string{s.QualityLabel, s.Resolution} {
		if m := heightRe.FindStringSubmatch(label); m != nil {
			h, _ := strconv.Atoi(m[1])
			return h
		}
	}
	return 0
}

// selectStream picks the tallest mp4 muxed stream at or under ceiling. With none under the
// ceiling it degrades to the first mp4 stream listed.
func selectStream(streams []formatStream, ceiling int) (formatStream, bool) {
	var best, first formatStream
	var found, listed bool
	for _, s := range streams {
		if !strings.EqualFold(s.Container, "mp4") || s.URL == "" {
			continue
		}
		if !listed {
			first, listed = s, true
		}
		if h := s.height(); h > 0 && h <= ceiling && (!found || h > best.height()) {
			best, found = s, true
		}
	}
	if found {
		return best, true
	}
	return first, listed
}

// FallbackOpts configures a [FallbackService].
type FallbackOpts struct {
	Instances  []string
	Timeout    time.Duration
	MaxHeight  int
	UserAgent  string
	HTTPClient *http.Client
	Logger     *log.Logger
}

// FallbackService downloads through public Invidious-compatible instances.
type FallbackService struct {
	instances []string
	maxHeight int
	api       *APIClient
	logger    *log.Logger
}

// NewFallbackService creates a provider over opts.Instances, tried in order.
func NewFallbackService(opts FallbackOpts) *FallbackService {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultFallbackTimeout
	}
	if opts.MaxHeight <= 0 {
		opts.MaxHeight = DefaultFallbackMaxHeight
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	instances := make([]string, 0, len(opts.Instances))
	for _, inst := range opts.Instances {
		if inst = strings.TrimRight(strings.TrimSpace(inst), "/"); inst != "" {
			instances = append(instances, inst)
		}
	}

	return &FallbackService{
		instances: instances,
		maxHeight: opts.MaxHeight,
		api:       NewAPIClient(opts.HTTPClient, opts.UserAgent),
		logger:    opts.Logger,
	}
}

// Name returns the name of the provider
func (f *FallbackService) Name() string {
	return "invidious"
}

// Instances returns the configured base URLs in order.
func (f *FallbackService) Instances() []string {
	return append([]string(nil), f.instances...)
}

// Download walks the instances once, in order, and writes the first stream obtained to
// dir as name(title).mp4, where title is the instance's. Instance failures are logged and skipped; when none succeeds the error is
// a [*shared.AllFallbacksExhaustedError].
func (f *FallbackService) Download(ctx context.Context, videoID, dir string, name NameFunc) (*Download, error) {
	if !videoIDRe.MatchString(videoID) {
		return nil, fmt.Errorf("%w: invalid video id %q", shared.ErrInvalidInput, videoID)
	}

	if name == nil {
		name = func(string) string { return videoID }
	}

	exhausted := &shared.AllFallbacksExhaustedError{}
	for _, instance := range f.instances {
		logger := f.logger.With("instance", instance, "video", videoID)

		d, err := f.fromInstance(ctx, instance, videoID, dir, name)
		if err == nil {
			logger.Info("fallback download complete", "file", d.Filename, "quality", d.Quality)
			return d, nil
		}

		logger.Warn("fallback instance failed", "error", err)
		exhausted.Attempts = append(exhausted.Attempts, shared.InstanceError{Instance: instance, Err: err})
		if ctx.Err() != nil {
			break
		}
	}
	return nil, exhausted
}

func (f *FallbackService) fromInstance(ctx context.Context, instance, videoID, dir string, name NameFunc) (*Download, error) {
	var video videoResponse
	endpoint := fmt.Sprintf("%s/api/v1/videos/%s", instance, url.PathEscape(videoID))
	if err := f.api.GetJSON(ctx, endpoint, &video); err != nil {
		return nil, err
	}
	if video.Error != "" {
		return nil, fmt.Errorf("%w: %s", shared.ErrAPIRequest, video.Error)
	}

	stream, ok := selectStream(video.FormatStreams, f.maxHeight)
	if !ok {
		return nil, fmt.Errorf("%w: no mp4 stream", shared.ErrAPIRequest)
	}

	filename := name(video.Title) + ".mp4"
	path := filepath.Join(dir, filename)
	size, err := f.writeStream(ctx, stream.URL, path)
	if err != nil {
		return nil, err
	}

	quality := stream.QualityLabel
	if quality == "" {
		quality = "best available"
	}
	return &Download{
		Path:     path,
		Filename: filename,
		Size:     size,
		Instance: instance,
		Quality:  quality,
		Info: models.VideoInfo{
			ID:              videoID,
			Title:           video.Title,
			Author:          video.Author,
			DurationSeconds: video.LengthSeconds,
			ViewCount:       video.ViewCount,
			Height:          stream.height(),
		},
	}, nil
}

// writeStream copies the stream into path, removing the file if nothing usable was written.
func (f *FallbackService) writeStream(ctx context.Context, streamURL, path string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, err
	}

	out, err := os.Create(path)
	if err != nil {
		return 0, err
	}

	n, err := f.api.Stream(ctx, streamURL, out)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err == nil && n == 0 {
		err = shared.ErrEmptyOutputFile
	}
	if err != nil {
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			f.logger.Warn("failed to remove partial fallback file", "file", path, "error", rmErr)
		}
		return 0, err
	}
	return n, nil
}
