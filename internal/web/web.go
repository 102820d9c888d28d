// Package web serves the single-page download form.
//
// # Page
//
// GET / renders templates/index.html with the accepted formats. The page posts JSON to
// /download, then links the returned downloadUrl and asks the server to delete the file
// through /cleanup-file once the browser has fetched it.
//
// # Templates
//
//   - index.html: form, status area and the fetch-based client script
//
// Templates are embedded at build time so the binary serves the page without any files on
// disk.
package web

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/desertthunder/vidproxy/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

var tmpl = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// PageData is rendered into index.html.
type PageData struct {
	Title   string
	Formats []models.Format
}

// IndexHandler renders the download form.
type IndexHandler struct {
	data PageData
}

// NewIndexHandler creates the handler for GET /.
func NewIndexHandler(title string) *IndexHandler {
	if title == "" {
		title = "vidproxy"
	}
	return &IndexHandler{data: PageData{Title: title, Formats: models.Formats}}
}

// Routes returns the path patterns this handler serves.
func (h *IndexHandler) Routes() []string {
	return []string{"/{$}"}
}

func (h *IndexHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "index.html", h.data); err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(buf.Bytes())
}
