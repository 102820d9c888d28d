package web

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestIndexHandler(t *testing.T) {
	h := NewIndexHandler("")

	t.Run("renders form with formats", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
			t.Errorf("unexpected content type %q", ct)
		}
		body := rec.Body.String()
		for _, want := range []string{"<title>vidproxy</title>", `value="mp4"`, `value="webm"`, `value="mp3"`, "/cleanup-file"} {
			if !strings.Contains(body, want) {
				t.Errorf("expected body to contain %q", want)
			}
		}
	})

	t.Run("rejects other methods", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})

	t.Run("routes match only the root", func(t *testing.T) {
		if routes := h.Routes(); len(routes) != 1 || routes[0] != "/{$}" {
			t.Errorf("unexpected routes %v", routes)
		}
	})
}
