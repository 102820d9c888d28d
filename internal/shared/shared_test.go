package shared

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFormatDuration(t *testing.T) {
	tc := []struct {
		name    string
		seconds int
		want    string
	}{
		{name: "zero", seconds: 0, want: "0:00"},
		{name: "under a minute", seconds: 59, want: "0:59"},
		{name: "minutes and seconds", seconds: 125, want: "2:05"},
		{name: "over an hour stays in minutes", seconds: 3725, want: "62:05"},
		{name: "negative clamps to zero", seconds: -5, want: "0:00"},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatDuration(tt.seconds); got != tt.want {
				t.Errorf("FormatDuration(%d) = %v, want %v", tt.seconds, got, tt.want)
			}
		})
	}
}

func TestFormatViews(t *testing.T) {
	tc := []struct {
		views int64
		want  string
	}{
		{views: 0, want: "0"},
		{views: 999, want: "999"},
		{views: 1234567, want: "1,234,567"},
		{views: -1, want: "0"},
	}

	for _, tt := range tc {
		if got := FormatViews(tt.views); got != tt.want {
			t.Errorf("FormatViews(%d) = %v, want %v", tt.views, got, tt.want)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	if got := FormatBytes(1500000); got != "1.5 MB" {
		t.Errorf("FormatBytes(1500000) = %v, want 1.5 MB", got)
	}
	if got := FormatBytes(-10); got != "0 B" {
		t.Errorf("FormatBytes(-10) = %v, want 0 B", got)
	}
}

func TestIDs(t *testing.T) {
	id := GenerateID()
	if len(id) != 36 {
		t.Errorf("expected 36 char uuid, got %q", id)
	}
	short := ShortID()
	if len(short) != 8 || strings.Contains(short, "-") {
		t.Errorf("expected 8 char token without dashes, got %q", short)
	}
	if GenerateID() == id {
		t.Error("expected unique ids")
	}
}

func TestNewFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "tui.log")
	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	logger.Info("hello", "key", "value")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "hello") || !strings.Contains(string(data), "key=value") {
		t.Errorf("unexpected log contents %q", data)
	}
}
