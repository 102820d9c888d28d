// package formatter renders download, batch and retention reports as CSV, Markdown, plain text or JSON
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/vidproxy/internal/files"
	"github.com/desertthunder/vidproxy/internal/models"
	"github.com/desertthunder/vidproxy/internal/shared"
	"github.com/desertthunder/vidproxy/internal/tasks"
)

// ReportFormat selects a renderer.
type ReportFormat string

const (
	FormatCSV      ReportFormat = "csv"
	FormatMarkdown ReportFormat = "md"
	FormatText     ReportFormat = "txt"
	FormatJSON     ReportFormat = "json"
)

// FormatForPath infers the report format from the file extension, defaulting to text.
func FormatForPath(path string) ReportFormat {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "csv":
		return FormatCSV
	case "md", "markdown":
		return FormatMarkdown
	case "json":
		return FormatJSON
	default:
		return FormatText
	}
}

func itemStatus(item tasks.BatchItemResult) string {
	if item.Result != nil {
		return "ok"
	}
	return "failed"
}

// BatchToCSV converts a batch result to CSV with one row per URL, in input order.
func BatchToCSV(res *tasks.BatchResult) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"URL", "Status", "Filename", "Size", "Title", "Author", "Duration", "Quality", "Method", "Error"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, item := range res.Items {
		record := []string{item.URL, itemStatus(item), "", "", "", "", "", "", "", item.Reason}
		if r := item.Result; r != nil {
			record[2] = r.Filename
			record[3] = strconv.FormatInt(r.Size, 10)
			record[4] = r.Summary.Title
			record[5] = r.Summary.Author
			record[6] = r.Summary.Duration
			record[7] = r.Summary.Quality
			record[8] = string(r.Summary.Method)
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// BatchToMarkdown converts a batch result to a Markdown summary and table.
func BatchToMarkdown(res *tasks.BatchResult) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("# Batch download\n\n")
	buf.WriteString(fmt.Sprintf("- Total: %d\n- Succeeded: %d\n- Failed: %d\n\n", res.Total, res.Succeeded, res.Failed))

	buf.WriteString("| # | URL | File | Size | Title | Method | Error |\n")
	buf.WriteString("|---|-----|------|------|-------|--------|-------|\n")
	for i, item := range res.Items {
		var file, size, title, method string
		if r := item.Result; r != nil {
			file, size, title, method = r.Filename, shared.FormatBytes(r.Size), r.Summary.Title, string(r.Summary.Method)
		}
		buf.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %s | %s | %s |\n",
			i+1, escapeCell(item.URL), escapeCell(file), size, escapeCell(title), method, escapeCell(item.Reason)))
	}

	return buf.Bytes(), nil
}

// BatchToText converts a batch result to plain text.
func BatchToText(res *tasks.BatchResult) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Downloaded %d/%d\n\n", res.Succeeded, res.Total))
	for i, item := range res.Items {
		if r := item.Result; r != nil {
			buf.WriteString(fmt.Sprintf("%d. ✓ %s (%s)\n", i+1, r.Filename, shared.FormatBytes(r.Size)))
		} else {
			buf.WriteString(fmt.Sprintf("%d. ✗ %s: %s\n", i+1, item.URL, item.Reason))
		}
	}

	return buf.Bytes(), nil
}

// ResultToText renders a single download for the terminal.
func ResultToText(res *models.DownloadResult) []byte {
	var buf bytes.Buffer
	s := res.Summary

	buf.WriteString(fmt.Sprintf("File: %s\n", res.Filename))
	buf.WriteString(fmt.Sprintf("Path: %s\n", res.Path))
	buf.WriteString(fmt.Sprintf("Size: %s\n", shared.FormatBytes(res.Size)))
	buf.WriteString(fmt.Sprintf("Title: %s\n", s.Title))
	if s.Author != "" {
		buf.WriteString(fmt.Sprintf("Author: %s\n", s.Author))
	}
	buf.WriteString(fmt.Sprintf("Duration: %s\n", s.Duration))
	buf.WriteString(fmt.Sprintf("Views: %s\n", s.Views))
	buf.WriteString(fmt.Sprintf("Quality: %s\n", s.Quality))
	buf.WriteString(fmt.Sprintf("Method: %s\n", s.Method))

	return buf.Bytes()
}

// SweepToCSV converts a sweep report to CSV with one row per deleted or failed file.
func SweepToCSV(rep *files.SweepReport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{"Name", "Size", "Age", "Action", "Error"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	action := "deleted"
	if rep.DryRun {
		action = "would delete"
	}

	rows := make([][]string, 0, len(rep.Deleted)+len(rep.Failed))
	for _, f := range rep.Deleted {
		rows = append(rows, []string{f.Name, strconv.FormatInt(f.Size, 10), f.Age.Round(time.Second).String(), action, ""})
	}
	for _, f := range rep.Failed {
		rows = append(rows, []string{f.Name, strconv.FormatInt(f.Size, 10), f.Age.Round(time.Second).String(), "failed", f.Error})
	}
	if err := writer.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("failed to write CSV records: %w", err)
	}

	return buf.Bytes(), nil
}

// SweepToText converts a sweep report to plain text.
func SweepToText(rep *files.SweepReport) []byte {
	var buf bytes.Buffer

	verb := "Deleted"
	if rep.DryRun {
		verb = "Would delete"
	}

	buf.WriteString(fmt.Sprintf("Directory: %s\n", rep.Dir))
	buf.WriteString(fmt.Sprintf("Scanned: %d, kept: %d\n", rep.Scanned, rep.Kept))
	buf.WriteString(fmt.Sprintf("%s %d file(s), %s\n", verb, len(rep.Deleted), shared.FormatBytes(rep.BytesFreed)))
	for _, f := range rep.Deleted {
		buf.WriteString(fmt.Sprintf("  - %s (%s, %s old)\n", f.Name, shared.FormatBytes(f.Size), f.Age.Round(time.Minute)))
	}
	if len(rep.Failed) > 0 {
		buf.WriteString(fmt.Sprintf("Failed %d file(s)\n", len(rep.Failed)))
		for _, f := range rep.Failed {
			buf.WriteString(fmt.Sprintf("  - %s: %s\n", f.Name, f.Error))
		}
	}

	return buf.Bytes()
}

// Render converts v to the requested format. JSON works for any value; the other formats
// support batch results, sweep reports and single downloads.
func Render(v any, format ReportFormat) ([]byte, error) {
	if format == FormatJSON {
		return shared.MarshalJSON(v, true)
	}

	switch v := v.(type) {
	case *tasks.BatchResult:
		switch format {
		case FormatCSV:
			return BatchToCSV(v)
		case FormatMarkdown:
			return BatchToMarkdown(v)
		default:
			return BatchToText(v)
		}
	case *files.SweepReport:
		switch format {
		case FormatCSV:
			return SweepToCSV(v)
		default:
			return SweepToText(v), nil
		}
	case *models.DownloadResult:
		if format == FormatCSV {
			return BatchToCSV(&tasks.BatchResult{
				Total: 1, Succeeded: 1,
				Items: []tasks.BatchItemResult{{Result: v}},
			})
		}
		return ResultToText(v), nil
	default:
		return nil, fmt.Errorf("%w: cannot render %T as %s", shared.ErrInvalidArgument, v, format)
	}
}

// WriteReport renders v in the format implied by path's extension and writes it there.
func WriteReport(path string, v any) error {
	if path == "" {
		return fmt.Errorf("%w: report path is empty", shared.ErrMissingArgument)
	}

	data, err := Render(v, FormatForPath(path))
	if err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
