package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/vidproxy/internal/downloader"
	"github.com/desertthunder/vidproxy/internal/models"
	"github.com/desertthunder/vidproxy/internal/shared"
	"github.com/desertthunder/vidproxy/internal/tasks"
	tu "github.com/desertthunder/vidproxy/internal/testing"
	"github.com/desertthunder/vidproxy/internal/web"
)

type mockEngine struct {
	dir    string
	err    error
	tokens []string
}

func (m *mockEngine) Download(ctx context.Context, req models.DownloadRequest, token string, progress chan<- tasks.ProgressUpdate) (*models.DownloadResult, error) {
	m.tokens = append(m.tokens, token)
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if m.err != nil {
		return nil, m.err
	}

	name := fmt.Sprintf("My Song-%s.%s", token, req.Format)
	if err := os.WriteFile(filepath.Join(m.dir, name), []byte("media"), 0o644); err != nil {
		return nil, err
	}
	info := models.VideoInfo{Title: "My Song", Author: "Band", DurationSeconds: 125, ViewCount: 1234, Height: 720}
	return &models.DownloadResult{
		Filename: name,
		Path:     filepath.Join(m.dir, name),
		Size:     5,
		Summary:  models.NewVideoSummary(info, info.Quality(req.Format), models.MethodPrimary),
	}, nil
}

type mockTools struct {
	err error
}

func (m mockTools) Resolve(ctx context.Context) (downloader.Tool, error) {
	return downloader.Tool{Command: []string{"yt-dlp"}, Version: "2024.08.06"}, m.err
}

func newTestRouter(t *testing.T, engine *mockEngine, tools ToolResolver) (http.Handler, string, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()
	if engine != nil {
		engine.dir = dir
	}
	var logs bytes.Buffer
	logger := log.New(&logs)

	api := NewAPI(APIOpts{Engine: engine, Tools: tools, OutputDir: dir, Version: "test", Logger: logger})
	return NewRouter(api, web.NewIndexHandler(""), NewIPRateLimiter(100, 100), false, logger), dir, &logs
}

func postJSON(h http.Handler, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestDownloadEndpoint(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		engine := &mockEngine{}
		h, dir, _ := newTestRouter(t, engine, mockTools{})

		rec := postJSON(h, "/download", `{"url":"https://youtu.be/dQw4w9WgXcQ","format":"mp3"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		id := rec.Header().Get(RequestIDHeader)
		if len(engine.tokens) != 1 || engine.tokens[0] != id[:8] {
			t.Errorf("expected token from request id %q, got %v", id, engine.tokens)
		}

		p := decode[models.Payload](t, rec)
		if !p.Success || p.Title != "My Song" || p.Duration != "2:05" || p.Views != "1,234" || p.Quality != "audio" || p.Method != models.MethodPrimary {
			t.Errorf("unexpected payload %+v", p)
		}
		if !strings.HasPrefix(p.DownloadURL, "/download-file/My%20Song-") {
			t.Errorf("unexpected downloadUrl %q", p.DownloadURL)
		}
		tu.AssertFileExists(t, filepath.Join(dir, p.Filename))
	})

	t.Run("Invalid JSON", func(t *testing.T) {
		h, _, _ := newTestRouter(t, &mockEngine{}, nil)
		rec := postJSON(h, "/download", `{"url":`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("Validation Message", func(t *testing.T) {
		h, _, _ := newTestRouter(t, &mockEngine{}, nil)
		rec := postJSON(h, "/download", `{"url":"https://youtu.be/dQw4w9WgXcQ","format":"avi"}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		body := decode[errorResponse](t, rec)
		if body.Success || !strings.Contains(body.Error, `unsupported format "avi"`) {
			t.Errorf("unexpected body %+v", body)
		}
	})

	t.Run("Pipeline Failure Is Classified Without Detail", func(t *testing.T) {
		stderr := "ERROR: [youtube] dQw4w9WgXcQ: Sign in to confirm you're not a bot. cookies at /home/app/.secret"
		engine := &mockEngine{err: &shared.StrategyExhaustedError{Attempts: []shared.AttemptError{
			{Strategy: "capped-mp4", Err: &shared.CommandError{ExitCode: 1, Stderr: stderr}},
		}}}
		h, _, logs := newTestRouter(t, engine, nil)

		rec := postJSON(h, "/download", `{"url":"https://youtu.be/dQw4w9WgXcQ"}`)
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", rec.Code)
		}
		body := decode[errorResponse](t, rec)
		if body.Error != tasks.Classify(engine.err).Message {
			t.Errorf("expected classification message, got %q", body.Error)
		}
		if strings.Contains(body.Error, ".secret") {
			t.Error("diagnostic detail leaked to client")
		}
		if !strings.Contains(logs.String(), ".secret") {
			t.Error("diagnostic detail should be logged")
		}
	})

	t.Run("Wrong Method", func(t *testing.T) {
		h, _, _ := newTestRouter(t, &mockEngine{}, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/download", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})
}

func TestDownloadFileEndpoint(t *testing.T) {
	h, dir, _ := newTestRouter(t, &mockEngine{}, nil)
	tu.MustWriteFile(t, filepath.Join(dir, "My Song-ab12cd34.mp4"), "0123456789")
	tu.MustWriteFile(t, filepath.Join(filepath.Dir(dir), "outside.txt"), "secret")

	t.Run("Serves Attachment", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/download-file/My%20Song-ab12cd34.mp4", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if rec.Header().Get("Content-Type") != "video/mp4" {
			t.Errorf("unexpected content type %q", rec.Header().Get("Content-Type"))
		}
		if cd := rec.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "attachment") || !strings.Contains(cd, "My Song-ab12cd34.mp4") {
			t.Errorf("unexpected content disposition %q", cd)
		}
		if rec.Body.String() != "0123456789" {
			t.Errorf("unexpected body %q", rec.Body.String())
		}
	})

	t.Run("Range", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/download-file/My%20Song-ab12cd34.mp4", nil)
		req.Header.Set("Range", "bytes=2-4")
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusPartialContent || rec.Body.String() != "234" {
			t.Errorf("unexpected range response %d %q", rec.Code, rec.Body.String())
		}
	})

	t.Run("Missing", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/download-file/nope.mp4", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("Traversal", func(t *testing.T) {
		for _, path := range []string{"/download-file/..%2Foutside.txt", "/download-file/%2E%2E"} {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
			if rec.Code == http.StatusOK || strings.Contains(rec.Body.String(), "secret") {
				t.Errorf("%s escaped the output directory (%d)", path, rec.Code)
			}
		}
	})
}

func TestCleanupFileEndpoint(t *testing.T) {
	h, dir, _ := newTestRouter(t, &mockEngine{}, nil)
	path := filepath.Join(dir, "clip-ab12cd34.webm")
	tu.MustWriteFile(t, path, "x")

	rec := postJSON(h, "/cleanup-file", `{"filename":"clip-ab12cd34.webm"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	tu.AssertFileNotExists(t, path)

	if rec := postJSON(h, "/cleanup-file", `{"filename":"clip-ab12cd34.webm"}`); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 on second delete, got %d", rec.Code)
	}
	if rec := postJSON(h, "/cleanup-file", `{"filename":"../x"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for traversal, got %d", rec.Code)
	}
	if rec := postJSON(h, "/cleanup-file", ``); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty body, got %d", rec.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	t.Run("OK", func(t *testing.T) {
		h, dir, _ := newTestRouter(t, &mockEngine{}, mockTools{})
		tu.MustWriteFile(t, filepath.Join(dir, "a.mp4"), "12345")

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		body := decode[HealthResponse](t, rec)
		if body.Status != "ok" || body.Tool == nil || body.Tool.Version != "2024.08.06" {
			t.Errorf("unexpected health %+v", body)
		}
		if body.Files.Files != 1 || body.Files.Bytes != 5 || body.DiskUsage != "5 B" {
			t.Errorf("unexpected file stats %+v", body)
		}
	})

	t.Run("Degraded", func(t *testing.T) {
		h, _, _ := newTestRouter(t, &mockEngine{}, mockTools{err: shared.ErrToolNotFound})

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected 503, got %d", rec.Code)
		}
		body := decode[HealthResponse](t, rec)
		if body.Status != "degraded" || body.ToolError == "" || body.Tool != nil {
			t.Errorf("unexpected health %+v", body)
		}
	})
}

func TestIndexRoute(t *testing.T) {
	h, _, _ := newTestRouter(t, &mockEngine{}, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "<form") {
		t.Errorf("expected the download form, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/unknown", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown paths, got %d", rec.Code)
	}
}
