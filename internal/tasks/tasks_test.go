package tasks

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/vidproxy/internal/downloader"
	"github.com/desertthunder/vidproxy/internal/models"
	"github.com/desertthunder/vidproxy/internal/services"
	"github.com/desertthunder/vidproxy/internal/shared"
	tu "github.com/desertthunder/vidproxy/internal/testing"
)

const (
	testURL   = "https://www.youtube.com/watch?v=dQw4w9WgXcQ"
	testToken = "tok12345"
	infoJSON  = `{"_type":"video","id":"dQw4w9WgXcQ","title":"Never Gonna: Give You Up","uploader":"Rick Astley","duration":212,"view_count":1500000000,"height":720}`
	botStderr = "ERROR: [youtube] dQw4w9WgXcQ: Sign in to confirm you're not a bot. Use --cookies-from-browser"
)

// mockProvider writes name(info.Title).mp4 or fails, recording calls.
type mockProvider struct {
	mu    sync.Mutex
	calls int
	err   error
	info  models.VideoInfo
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) Download(ctx context.Context, videoID, dir string, name services.NameFunc) (*services.Download, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}

	base := name(m.info.Title)
	path := filepath.Join(dir, base+".mp4")
	if err := os.WriteFile(path, []byte("fallback-bytes"), 0o644); err != nil {
		return nil, err
	}
	return &services.Download{
		Path:     path,
		Filename: base + ".mp4",
		Size:     int64(len("fallback-bytes")),
		Instance: "https://inv.example",
		Quality:  "360p",
		Info:     m.info,
	}, nil
}

func newTestPipeline(t *testing.T, exec *tu.FakeExecutor, fallback services.Provider) *Pipeline {
	t.Helper()
	logger := log.New(io.Discard)

	tools := downloader.NewToolLocator(downloader.ToolLocatorOpts{Development: true, LocalPath: "yt-dlp", Logger: logger})
	inv := downloader.NewInvoker(downloader.InvokerOpts{Tools: tools, Executor: exec, Logger: logger})

	return NewPipeline(PipelineOpts{
		Info:      downloader.NewInfoFetcher(inv, time.Second, logger),
		Media:     downloader.NewStrategyRunner(inv, downloader.StrategyRunnerOpts{RetryBackoff: -1, Logger: logger}),
		Fallback:  fallback,
		OutputDir: t.TempDir(),
		Logger:    logger,
	})
}

func TestPipelineDownload(t *testing.T) {
	ctx := context.Background()
	req := models.DownloadRequest{URL: testURL, Format: models.FormatMP4}

	t.Run("second strategy succeeds", func(t *testing.T) {
		exec := &tu.FakeExecutor{Results: []tu.ExecResult{
			{Stdout: infoJSON},
			{Exit: 1, Stderr: "ERROR: Requested format is not available"},
			{Ext: ".mp4", Content: "video-bytes", PrintPath: true},
		}}
		fb := &mockProvider{}
		p := newTestPipeline(t, exec, fb)

		res, err := p.Download(ctx, req, testToken, nil)
		if err != nil {
			t.Fatalf("Download() error = %v", err)
		}

		if res.Filename != "Never Gonna Give You Up-tok12345.mp4" {
			t.Errorf("unexpected filename %q", res.Filename)
		}
		if res.Size != int64(len("video-bytes")) {
			t.Errorf("unexpected size %d", res.Size)
		}
		want := models.VideoSummary{
			Title:    "Never Gonna: Give You Up",
			Author:   "Rick Astley",
			Duration: "3:32",
			Views:    "1,500,000,000",
			Quality:  "720p",
			Method:   models.MethodPrimary,
		}
		if res.Summary != want {
			t.Errorf("got summary %+v, want %+v", res.Summary, want)
		}

		downloads := exec.Downloads()
		if len(downloads) != 2 {
			t.Fatalf("expected 2 download attempts, got %d", len(downloads))
		}
		if downloads[0].Base() != downloads[1].Base() {
			t.Errorf("attempts used different output names: %s vs %s", downloads[0].Base(), downloads[1].Base())
		}
		if fb.calls != 0 {
			t.Errorf("fallback must not run, got %d calls", fb.calls)
		}
	})

	t.Run("finds file by prefix when no path is printed", func(t *testing.T) {
		exec := &tu.FakeExecutor{Results: []tu.ExecResult{
			{Stdout: infoJSON},
			{Ext: ".webm", Content: "webm-bytes"},
		}}
		p := newTestPipeline(t, exec, nil)

		res, err := p.Download(ctx, models.DownloadRequest{URL: testURL, Format: models.FormatWebM}, testToken, nil)
		if err != nil {
			t.Fatalf("Download() error = %v", err)
		}
		if res.Filename != "Never Gonna Give You Up-tok12345.webm" {
			t.Errorf("unexpected filename %q", res.Filename)
		}
		tu.AssertFileExists(t, filepath.Join(p.OutputDir(), res.Filename))
	})

	t.Run("invalid input never invokes the tool", func(t *testing.T) {
		exec := &tu.FakeExecutor{}
		p := newTestPipeline(t, exec, &mockProvider{})

		_, err := p.Download(ctx, models.DownloadRequest{URL: "https://vimeo.com/1"}, testToken, nil)
		if !IsInputError(err) {
			t.Fatalf("expected input error, got %v", err)
		}
		if len(exec.Calls) != 0 {
			t.Errorf("expected no tool calls, got %d", len(exec.Calls))
		}
	})

	t.Run("metadata failure short-circuits", func(t *testing.T) {
		exec := &tu.FakeExecutor{Results: []tu.ExecResult{{Exit: 1, Stderr: "ERROR: Video unavailable"}}}
		fb := &mockProvider{}
		p := newTestPipeline(t, exec, fb)

		_, err := p.Download(ctx, req, testToken, nil)
		if !errors.Is(err, shared.ErrMetadataUnavailable) {
			t.Fatalf("expected ErrMetadataUnavailable, got %v", err)
		}
		if len(exec.Downloads()) != 0 || fb.calls != 0 {
			t.Errorf("expected no downloads or fallback, got %d and %d", len(exec.Downloads()), fb.calls)
		}
		if got := Classify(err).Kind; got != KindUnavailable {
			t.Errorf("expected %s, got %s", KindUnavailable, got)
		}
	})

	t.Run("bot detection reroutes to fallback once", func(t *testing.T) {
		exec := &tu.FakeExecutor{Results: []tu.ExecResult{
			{Stdout: infoJSON},
			{Exit: 1, Stderr: botStderr},
		}}
		fb := &mockProvider{info: models.VideoInfo{Title: "ignored", Height: 360}}
		p := newTestPipeline(t, exec, fb)

		res, err := p.Download(ctx, req, testToken, nil)
		if err != nil {
			t.Fatalf("Download() error = %v", err)
		}
		if fb.calls != 1 {
			t.Errorf("expected exactly one fallback call, got %d", fb.calls)
		}
		if len(exec.Downloads()) != 3 {
			t.Errorf("expected every strategy tried first, got %d", len(exec.Downloads()))
		}
		if res.Summary.Method != models.MethodFallback || res.Summary.Quality != "360p" {
			t.Errorf("unexpected summary %+v", res.Summary)
		}
		if res.Summary.Title != "Never Gonna: Give You Up" {
			t.Errorf("expected primary metadata kept, got %q", res.Summary.Title)
		}
		if res.Filename != "Never Gonna Give You Up-tok12345.mp4" {
			t.Errorf("unexpected filename %q", res.Filename)
		}
	})

	t.Run("bot detection during metadata skips strategies", func(t *testing.T) {
		exec := &tu.FakeExecutor{Results: []tu.ExecResult{{Exit: 1, Stderr: botStderr}}}
		fb := &mockProvider{info: models.VideoInfo{Title: "From: Instance", Author: "Someone", DurationSeconds: 61}}
		p := newTestPipeline(t, exec, fb)

		res, err := p.Download(ctx, req, testToken, nil)
		if err != nil {
			t.Fatalf("Download() error = %v", err)
		}
		if len(exec.Downloads()) != 0 {
			t.Errorf("expected no strategy attempts, got %d", len(exec.Downloads()))
		}
		if fb.calls != 1 {
			t.Errorf("expected one fallback call, got %d", fb.calls)
		}
		if res.Summary.Title != "From: Instance" || res.Summary.Duration != "1:01" {
			t.Errorf("unexpected summary %+v", res.Summary)
		}
		if res.Filename != "From Instance-tok12345.mp4" {
			t.Errorf("expected the file named after the instance title, got %q", res.Filename)
		}
	})

	t.Run("fallback exhaustion keeps the original cause", func(t *testing.T) {
		exec := &tu.FakeExecutor{Results: []tu.ExecResult{
			{Stdout: infoJSON},
			{Exit: 1, Stderr: botStderr},
		}}
		fb := &mockProvider{err: &shared.AllFallbacksExhaustedError{}}
		p := newTestPipeline(t, exec, fb)

		_, err := p.Download(ctx, req, testToken, nil)
		if !errors.Is(err, shared.ErrAllFallbacksExhausted) || !errors.Is(err, shared.ErrStrategyExhausted) {
			t.Fatalf("expected both exhaustion errors in chain, got %v", err)
		}
		if got := Classify(err).Kind; got != KindBotDetection {
			t.Errorf("expected %s, got %s", KindBotDetection, got)
		}
		if fb.calls != 1 {
			t.Errorf("expected one fallback call, got %d", fb.calls)
		}
	})

	t.Run("other failures do not reroute", func(t *testing.T) {
		exec := &tu.FakeExecutor{Results: []tu.ExecResult{
			{Stdout: infoJSON},
			{Exit: 1, Stderr: "ERROR: Requested format is not available"},
		}}
		fb := &mockProvider{}
		p := newTestPipeline(t, exec, fb)

		_, err := p.Download(ctx, req, testToken, nil)
		if !errors.Is(err, shared.ErrStrategyExhausted) {
			t.Fatalf("expected ErrStrategyExhausted, got %v", err)
		}
		if fb.calls != 0 {
			t.Errorf("expected no fallback, got %d calls", fb.calls)
		}
		if got := Classify(err).Kind; got != KindUnsupported {
			t.Errorf("expected %s, got %s", KindUnsupported, got)
		}
	})

	t.Run("disabled fallback surfaces the strategy error", func(t *testing.T) {
		exec := &tu.FakeExecutor{Results: []tu.ExecResult{
			{Stdout: infoJSON},
			{Exit: 1, Stderr: botStderr},
		}}
		p := newTestPipeline(t, exec, nil)

		_, err := p.Download(ctx, req, testToken, nil)
		if !errors.Is(err, shared.ErrStrategyExhausted) {
			t.Fatalf("expected ErrStrategyExhausted, got %v", err)
		}
	})

	t.Run("empty output is rejected", func(t *testing.T) {
		exec := &tu.FakeExecutor{Results: []tu.ExecResult{
			{Stdout: infoJSON},
			{Ext: ".mp4", Content: "", PrintPath: true},
		}}
		p := newTestPipeline(t, exec, nil)

		_, err := p.Download(ctx, req, testToken, nil)
		if !errors.Is(err, shared.ErrEmptyOutputFile) {
			t.Errorf("expected ErrEmptyOutputFile, got %v", err)
		}
	})

	t.Run("missing output is rejected", func(t *testing.T) {
		exec := &tu.FakeExecutor{Results: []tu.ExecResult{{Stdout: infoJSON}, {}}}
		p := newTestPipeline(t, exec, nil)

		_, err := p.Download(ctx, req, testToken, nil)
		if !errors.Is(err, shared.ErrOutputFileMissing) {
			t.Errorf("expected ErrOutputFileMissing, got %v", err)
		}
	})

	t.Run("reports progress", func(t *testing.T) {
		exec := &tu.FakeExecutor{Results: []tu.ExecResult{
			{Stdout: infoJSON},
			{Ext: ".mp4", Content: "x", PrintPath: true},
		}}
		p := newTestPipeline(t, exec, nil)
		progress := make(chan ProgressUpdate, 20)

		if _, err := p.Download(ctx, req, testToken, progress); err != nil {
			t.Fatalf("Download() error = %v", err)
		}
		close(progress)

		var phases []Phase
		for u := range progress {
			if len(phases) == 0 || phases[len(phases)-1] != u.Phase {
				phases = append(phases, u.Phase)
			}
		}
		want := []Phase{Validate, FetchInfo, Download, LocateFile, Complete}
		if len(phases) != len(want) {
			t.Fatalf("got phases %v, want %v", phases, want)
		}
		for i := range want {
			if phases[i] != want[i] {
				t.Errorf("phase %d = %s, want %s", i, phases[i], want[i])
			}
		}
	})

	t.Run("uninitialized pipeline", func(t *testing.T) {
		_, err := NewPipeline(PipelineOpts{}).Download(ctx, req, testToken, nil)
		if !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})
}
