package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/vidproxy/internal/downloader"
	"github.com/desertthunder/vidproxy/internal/files"
	"github.com/desertthunder/vidproxy/internal/models"
	"github.com/desertthunder/vidproxy/internal/shared"
	"github.com/desertthunder/vidproxy/internal/tasks"
)

const maxBodyBytes = 1 << 16

// ToolResolver reports the resolved downloader for health checks.
type ToolResolver interface {
	Resolve(ctx context.Context) (downloader.Tool, error)
}

// APIOpts contains the dependencies of [API].
type APIOpts struct {
	Engine    tasks.DownloadEngine
	Tools     ToolResolver
	OutputDir string
	PublicURL string
	Version   string
	Logger    *log.Logger
}

// API serves the JSON endpoints and downloaded files.
type API struct {
	engine    tasks.DownloadEngine
	tools     ToolResolver
	outputDir string
	publicURL string
	version   string
	logger    *log.Logger
	started   time.Time
}

// NewAPI creates the API handlers.
func NewAPI(opts APIOpts) *API {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &API{
		engine:    opts.Engine,
		tools:     opts.Tools,
		outputDir: opts.OutputDir,
		publicURL: strings.TrimRight(opts.PublicURL, "/"),
		version:   opts.Version,
		logger:    opts.Logger,
		started:   time.Now(),
	}
}

// Register adds every API route to r. limiter, when set, guards POST /download.
func (a *API) Register(r Router, limiter *IPRateLimiter) {
	var download http.Handler = http.HandlerFunc(a.Download)
	if limiter != nil {
		download = RateLimitMiddleware(limiter)(download)
	}

	r.Handle(http.MethodPost, "/download", download)
	r.Handle(http.MethodGet, "/download-file/{name}", http.HandlerFunc(a.DownloadFile))
	r.Handle(http.MethodPost, "/cleanup-file", http.HandlerFunc(a.CleanupFile))
	r.Handle(http.MethodGet, "/health", http.HandlerFunc(a.Health))
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Success: false, Error: msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: request body is empty", shared.ErrInvalidInput)
		}
		return fmt.Errorf("%w: request body must be a JSON object", shared.ErrInvalidInput)
	}
	return nil
}

// inputMessage strips the sentinel prefix from a validation error.
func inputMessage(err error) string {
	return strings.TrimPrefix(err.Error(), shared.ErrInvalidInput.Error()+": ")
}

// Download handles POST /download with a JSON [models.DownloadRequest].
//
// Validation failures answer 400 with the validation message. Every other failure is
// logged in full and answered with its classification message only.
func (a *API) Download(w http.ResponseWriter, r *http.Request) {
	var req models.DownloadRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, inputMessage(err))
		return
	}

	id := RequestID(r.Context())
	if id == "" {
		id = shared.GenerateID()
	}
	token := id[:min(8, len(id))]
	logger := a.logger.With("request_id", id)

	result, err := a.engine.Download(r.Context(), req, token, nil)
	if err != nil {
		if tasks.IsInputError(err) {
			writeError(w, http.StatusBadRequest, inputMessage(err))
			return
		}

		class := tasks.Classify(err)
		logger.Error("download failed", "url", req.URL, "format", req.Format, "kind", class.Kind, "error", err)
		writeError(w, class.Status, class.Message)
		return
	}

	payload := result.Payload()
	if a.publicURL != "" {
		payload.DownloadURL = a.publicURL + payload.DownloadURL
	}
	writeJSON(w, http.StatusOK, payload)
}

var contentTypes = map[string]string{
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".mp3":  "audio/mpeg",
}

func contentType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// DownloadFile handles GET /download-file/{name}, streaming a file from the output
// directory as an attachment. Range requests are supported.
func (a *API) DownloadFile(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	path, err := files.Resolve(a.outputDir, name)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid filename")
		return
	}

	f, err := os.Open(path)
	if err != nil {
		writeError(w, http.StatusNotFound, "File not found")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		writeError(w, http.StatusNotFound, "File not found")
		return
	}

	w.Header().Set("Content-Type", contentType(name))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	http.ServeContent(w, r, name, info.ModTime(), f)
}

type cleanupRequest struct {
	Filename string `json:"filename"`
}

type cleanupResponse struct {
	Success bool   `json:"success"`
	Deleted string `json:"deleted"`
}

// CleanupFile handles POST /cleanup-file {"filename": ...}, deleting one downloaded file.
func (a *API) CleanupFile(w http.ResponseWriter, r *http.Request) {
	var req cleanupRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, inputMessage(err))
		return
	}

	path, err := files.Resolve(a.outputDir, req.Filename)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid filename")
		return
	}

	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			writeError(w, http.StatusNotFound, "File not found")
			return
		}
		a.logger.Error("cleanup failed", "file", req.Filename, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to delete file")
		return
	}

	a.logger.Info("file cleaned up", "file", req.Filename, "request_id", RequestID(r.Context()))
	writeJSON(w, http.StatusOK, cleanupResponse{Success: true, Deleted: req.Filename})
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string           `json:"status"`
	Version   string           `json:"version,omitempty"`
	Uptime    string           `json:"uptime"`
	Tool      *downloader.Tool `json:"tool,omitempty"`
	ToolError string           `json:"tool_error,omitempty"`
	Files     files.Stats      `json:"files"`
	DiskUsage string           `json:"disk_usage"`
}

// Health handles GET /health. It answers 503 when no downloader can be resolved.
func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "ok",
		Version: a.version,
		Uptime:  time.Since(a.started).Round(time.Second).String(),
	}
	status := http.StatusOK

	if a.tools != nil {
		tool, err := a.tools.Resolve(r.Context())
		if err != nil {
			resp.Status = "degraded"
			resp.ToolError = tasks.Classify(err).Message
			status = http.StatusServiceUnavailable
		} else {
			resp.Tool = &tool
		}
	}

	if st, err := files.DirStats(a.outputDir); err == nil {
		resp.Files = st
	}
	resp.DiskUsage = shared.FormatBytes(resp.Files.Bytes)

	writeJSON(w, status, resp)
}
