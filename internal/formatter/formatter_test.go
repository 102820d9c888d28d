package formatter

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/vidproxy/internal/files"
	"github.com/desertthunder/vidproxy/internal/models"
	"github.com/desertthunder/vidproxy/internal/shared"
	"github.com/desertthunder/vidproxy/internal/tasks"
	th "github.com/desertthunder/vidproxy/internal/testing"
)

func sampleResult() *models.DownloadResult {
	return &models.DownloadResult{
		Filename: "Song | Live-ab12cd34.mp4",
		Path:     "/srv/downloads/Song | Live-ab12cd34.mp4",
		Size:     1500000,
		Summary: models.VideoSummary{
			Title:    "Song | Live",
			Author:   "Band",
			Duration: "3:32",
			Views:    "1,234",
			Quality:  "720p",
			Method:   models.MethodPrimary,
		},
	}
}

func sampleBatch() *tasks.BatchResult {
	return &tasks.BatchResult{
		Total:     2,
		Succeeded: 1,
		Failed:    1,
		Items: []tasks.BatchItemResult{
			{URL: "https://youtu.be/dQw4w9WgXcQ", Result: sampleResult()},
			{URL: "https://youtu.be/xxxxxxxxxxx", Reason: "This video is unavailable. It may be private or removed."},
		},
	}
}

func sampleSweep(dryRun bool) *files.SweepReport {
	return &files.SweepReport{
		Dir:        "/srv/downloads",
		DryRun:     dryRun,
		Scanned:    4,
		Kept:       1,
		Deleted:    []files.SweptFile{{Name: "old.mp4", Size: 2048, Age: 25 * time.Hour}, {Name: "older.mp3", Size: 1024, Age: 48 * time.Hour}},
		Failed:     []files.SweptFile{{Name: "locked.webm", Size: 10, Age: 30 * time.Hour, Error: "permission denied"}},
		BytesFreed: 3072,
	}
}

func TestFormatForPath(t *testing.T) {
	tests := map[string]ReportFormat{
		"report.csv":      FormatCSV,
		"REPORT.CSV":      FormatCSV,
		"out/report.md":   FormatMarkdown,
		"notes.markdown":  FormatMarkdown,
		"report.json":     FormatJSON,
		"report.txt":      FormatText,
		"report":          FormatText,
		"archive.tar.csv": FormatCSV,
	}
	for path, want := range tests {
		if got := FormatForPath(path); got != want {
			t.Errorf("FormatForPath(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestBatchExporters(t *testing.T) {
	t.Run("BatchToCSV", func(t *testing.T) {
		data, err := BatchToCSV(sampleBatch())
		if err != nil {
			t.Fatalf("BatchToCSV failed: %v", err)
		}

		records, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
		if err != nil {
			t.Fatalf("output is not valid CSV: %v", err)
		}
		if len(records) != 3 {
			t.Fatalf("expected header plus 2 rows, got %d", len(records))
		}
		if strings.Join(records[0], ",") != "URL,Status,Filename,Size,Title,Author,Duration,Quality,Method,Error" {
			t.Errorf("unexpected headers %v", records[0])
		}

		ok := records[1]
		if ok[1] != "ok" || ok[2] != "Song | Live-ab12cd34.mp4" || ok[3] != "1500000" || ok[8] != "primary" || ok[9] != "" {
			t.Errorf("unexpected success row %v", ok)
		}

		failed := records[2]
		if failed[1] != "failed" || failed[2] != "" || !strings.Contains(failed[9], "unavailable") {
			t.Errorf("unexpected failure row %v", failed)
		}
	})

	t.Run("BatchToMarkdown", func(t *testing.T) {
		data, err := BatchToMarkdown(sampleBatch())
		if err != nil {
			t.Fatalf("BatchToMarkdown failed: %v", err)
		}
		output := string(data)

		if !strings.HasPrefix(output, "# Batch download\n") {
			t.Errorf("missing heading: %s", output)
		}
		if !strings.Contains(output, "- Succeeded: 1") || !strings.Contains(output, "- Failed: 1") {
			t.Errorf("missing counts: %s", output)
		}
		if !strings.Contains(output, `Song \| Live-ab12cd34.mp4`) {
			t.Error("pipes in cells should be escaped")
		}
		if !strings.Contains(output, "1.5 MB") {
			t.Error("expected humanized size")
		}
	})

	t.Run("BatchToText", func(t *testing.T) {
		data, err := BatchToText(sampleBatch())
		if err != nil {
			t.Fatalf("BatchToText failed: %v", err)
		}
		output := string(data)

		if !strings.HasPrefix(output, "Downloaded 1/2\n") {
			t.Errorf("unexpected summary line: %s", output)
		}
		if !strings.Contains(output, "1. ✓ Song | Live-ab12cd34.mp4 (1.5 MB)") {
			t.Errorf("missing success line: %s", output)
		}
		if !strings.Contains(output, "2. ✗ https://youtu.be/xxxxxxxxxxx: This video is unavailable") {
			t.Errorf("missing failure line: %s", output)
		}
	})
}

func TestResultToText(t *testing.T) {
	output := string(ResultToText(sampleResult()))
	for _, want := range []string{"File: Song | Live-ab12cd34.mp4", "Size: 1.5 MB", "Author: Band", "Quality: 720p", "Method: primary"} {
		if !strings.Contains(output, want) {
			t.Errorf("missing %q in %s", want, output)
		}
	}

	res := sampleResult()
	res.Summary.Author = ""
	if strings.Contains(string(ResultToText(res)), "Author:") {
		t.Error("empty author should be omitted")
	}
}

func TestSweepExporters(t *testing.T) {
	t.Run("SweepToText", func(t *testing.T) {
		output := string(SweepToText(sampleSweep(false)))
		if !strings.Contains(output, "Deleted 2 file(s), 3.1 kB") {
			t.Errorf("unexpected summary: %s", output)
		}
		if !strings.Contains(output, "old.mp4 (2.0 kB, 25h0m0s old)") {
			t.Errorf("missing deleted file: %s", output)
		}
		if !strings.Contains(output, "locked.webm: permission denied") {
			t.Errorf("missing failure: %s", output)
		}
	})

	t.Run("Dry Run Wording", func(t *testing.T) {
		if !strings.Contains(string(SweepToText(sampleSweep(true))), "Would delete 2 file(s)") {
			t.Error("dry run should say would delete")
		}
		data, err := SweepToCSV(sampleSweep(true))
		if err != nil {
			t.Fatalf("SweepToCSV failed: %v", err)
		}
		if !strings.Contains(string(data), "old.mp4,2048,25h0m0s,would delete,") {
			t.Errorf("unexpected CSV: %s", data)
		}
		if !strings.Contains(string(data), "locked.webm,10,30h0m0s,failed,permission denied") {
			t.Errorf("missing failed row: %s", data)
		}
	})
}

func TestRender(t *testing.T) {
	t.Run("JSON For Any Value", func(t *testing.T) {
		data, err := Render(sampleBatch(), FormatJSON)
		if err != nil {
			t.Fatalf("Render failed: %v", err)
		}
		var decoded map[string]any
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if decoded["total"] != float64(2) {
			t.Errorf("unexpected total %v", decoded["total"])
		}
	})

	t.Run("Single Result As CSV", func(t *testing.T) {
		data, err := Render(sampleResult(), FormatCSV)
		if err != nil {
			t.Fatalf("Render failed: %v", err)
		}
		if lines := strings.Split(strings.TrimSpace(string(data)), "\n"); len(lines) != 2 {
			t.Errorf("expected header and one row, got %d lines", len(lines))
		}
	})

	t.Run("Unsupported Value", func(t *testing.T) {
		if _, err := Render("nope", FormatCSV); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestWriteReport(t *testing.T) {
	t.Run("Creates Parent Directories", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "reports", "batch.md")
		if err := WriteReport(path, sampleBatch()); err != nil {
			t.Fatalf("WriteReport failed: %v", err)
		}
		th.AssertFileExists(t, path)
		if !strings.HasPrefix(th.MustReadFile(t, path), "# Batch download") {
			t.Error("expected markdown content")
		}
	})

	t.Run("Empty Path", func(t *testing.T) {
		if err := WriteReport("", sampleBatch()); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("Render Error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "x.csv")
		if err := WriteReport(path, 42); err == nil {
			t.Error("expected error")
		}
		th.AssertFileNotExists(t, path)
	})
}
