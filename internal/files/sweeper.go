package files

import (
	"context"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

// DefaultMaxAge is how long a download survives before a sweep removes it.
const DefaultMaxAge = 24 * time.Hour

// DefaultInterval separates scheduled sweeps.
const DefaultInterval = 6 * time.Hour

// SweptFile records one file considered by a sweep.
type SweptFile struct {
	Name  string        `json:"name"`
	Size  int64         `json:"size"`
	Age   time.Duration `json:"age"`
	Error string        `json:"error,omitempty"`
}

// SweepReport summarizes a single sweep.
type SweepReport struct {
	Dir        string      `json:"dir"`
	DryRun     bool        `json:"dry_run"`
	Scanned    int         `json:"scanned"`
	Kept       int         `json:"kept"`
	Deleted    []SweptFile `json:"deleted"`
	Failed     []SweptFile `json:"failed,omitempty"`
	BytesFreed int64       `json:"bytes_freed"`
}

// Sweeper deletes regular files in Dir older than MaxAge.
type Sweeper struct {
	Dir    string
	MaxAge time.Duration
	DryRun bool
	Logger *log.Logger

	now    func() time.Time
	remove func(string) error
}

// NewSweeper creates a sweeper over dir. A non-positive maxAge uses [DefaultMaxAge].
func NewSweeper(dir string, maxAge time.Duration, logger *log.Logger) *Sweeper {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Sweeper{Dir: dir, MaxAge: maxAge, Logger: logger, now: time.Now, remove: os.Remove}
}

// Sweep removes every expired file once. A missing directory is an empty sweep.
func (s *Sweeper) Sweep(ctx context.Context) (*SweepReport, error) {
	report := &SweepReport{Dir: s.Dir, DryRun: s.DryRun, Deleted: []SweptFile{}}

	entries, err := List(s.Dir, "")
	if err != nil {
		if os.IsNotExist(err) {
			return report, nil
		}
		return report, err
	}

	now := s.clock()
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		report.Scanned++
		age := now.Sub(e.ModTime)
		if age <= s.MaxAge {
			report.Kept++
			continue
		}

		f := SweptFile{Name: e.Name, Size: e.Size, Age: age.Truncate(time.Second)}
		if !s.DryRun {
			if err := s.removeFile(e.Path); err != nil {
				f.Error = err.Error()
				report.Failed = append(report.Failed, f)
				s.log().Warn("failed to remove expired file", "file", e.Name, "error", err)
				continue
			}
		}
		report.Deleted = append(report.Deleted, f)
		report.BytesFreed += e.Size
		s.log().Debug("removed expired file", "file", e.Name, "age", f.Age, "dry_run", s.DryRun)
	}

	s.log().Info("sweep complete",
		"dir", s.Dir, "scanned", report.Scanned, "deleted", len(report.Deleted),
		"failed", len(report.Failed), "kept", report.Kept)
	return report, nil
}

// Run sweeps immediately and then every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}

	s.sweepOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *Sweeper) sweepOnce(ctx context.Context) {
	if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
		s.log().Error("sweep failed", "dir", s.Dir, "error", err)
	}
}

func (s *Sweeper) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}

func (s *Sweeper) removeFile(path string) error {
	if s.remove == nil {
		return os.Remove(path)
	}
	return s.remove(path)
}

func (s *Sweeper) log() *log.Logger {
	if s.Logger == nil {
		return log.Default()
	}
	return s.Logger
}
