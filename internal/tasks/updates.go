package tasks

import (
	"fmt"

	"github.com/desertthunder/vidproxy/internal/downloader"
	"github.com/desertthunder/vidproxy/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	Validate Phase = iota
	FetchInfo
	Download
	Fallback
	LocateFile
	Complete
	BatchItem
)

func (p Phase) String() string {
	switch p {
	case Validate:
		return "validate"
	case FetchInfo:
		return "fetch_info"
	case Download:
		return "download"
	case Fallback:
		return "fallback"
	case LocateFile:
		return "locate_file"
	case Complete:
		return "complete"
	case BatchItem:
		return "batch_item"
	default:
		return ""
	}
}

func validateUpdate(req *models.DownloadRequest) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Validate,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Validated %s (%s)", req.URL, req.Format),
	}
}

func fetchInfoUpdate() ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchInfo,
		Step:    1,
		Total:   1,
		Message: "Fetching video information...",
	}
}

func foundInfoUpdate(info *models.VideoInfo) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchInfo,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found: %s by %s", info.Title, info.Author),
		Data:    info,
	}
}

func attemptUpdate(step, total int, s downloader.Strategy) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Download,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Downloading with %s...", step, total, s.Name),
		Data:    s,
	}
}

func fallbackUpdate(provider string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Fallback,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Primary download refused, trying %s...", provider),
	}
}

func locateUpdate() ProgressUpdate {
	return ProgressUpdate{
		Phase:   LocateFile,
		Step:    1,
		Total:   1,
		Message: "Verifying downloaded file...",
	}
}

func completeUpdate(res *models.DownloadResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Complete,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("✓ %s", res.Filename),
		Data:    res,
	}
}

func batchCompletedUpdate(step, total int, url, filename string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   BatchItem,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s", step, total, filename),
		Data:    url,
	}
}

func batchFailedUpdate(step, total int, url string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   BatchItem,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, url, err),
		Data:    url,
	}
}
