package downloader

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/vidproxy/internal/shared"
	"github.com/lrstanley/go-ytdlp"
	"golang.org/x/sync/singleflight"
)

// DefaultProbeTimeout bounds each --version probe.
const DefaultProbeTimeout = 5 * time.Second

// DefaultCandidates are tried in order when no candidates are configured.
var DefaultCandidates = [][]string{
	{"yt-dlp"},
	{"python3", "-m", "yt_dlp"},
	{"python", "-m", "yt_dlp"},
	{"./venv/bin/yt-dlp"},
}

// Tool is a resolved way of launching the downloader.
type Tool struct {
	Command []string `json:"command"`
	Version string   `json:"version,omitempty"`
}

func (t Tool) String() string {
	return strings.Join(t.Command, " ")
}

// ToolLocatorOpts configures a [ToolLocator].
type ToolLocatorOpts struct {
	Candidates   [][]string
	LocalPath    string
	Development  bool
	Reprobe      bool
	ProbeTimeout time.Duration
	Executor     Executor
	Logger       *log.Logger
}

// ToolLocator resolves and caches the downloader invocation.
type ToolLocator struct {
	candidates [][]string
	localPath  string
	dev        bool
	reprobe    bool
	timeout    time.Duration
	exec       Executor
	logger     *log.Logger

	mu     sync.Mutex
	cached *Tool
	flight singleflight.Group
}

// NewToolLocator creates a locator, filling unset options with defaults.
func NewToolLocator(opts ToolLocatorOpts) *ToolLocator {
	if len(opts.Candidates) == 0 {
		opts.Candidates = DefaultCandidates
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = DefaultProbeTimeout
	}
	if opts.Executor == nil {
		opts.Executor = YtdlpExecutor{}
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	candidates := make([][]string, 0, len(opts.Candidates))
	for _, c := range opts.Candidates {
		if len(c) > 0 {
			candidates = append(candidates, append([]string(nil), c...))
		}
	}

	return &ToolLocator{
		candidates: candidates,
		localPath:  opts.LocalPath,
		dev:        opts.Development,
		reprobe:    opts.Reprobe,
		timeout:    opts.ProbeTimeout,
		exec:       opts.Executor,
		logger:     opts.Logger,
	}
}

// Resolve returns the downloader invocation, probing candidates on first use.
//
// The first working candidate is cached unless the locator was built with Reprobe.
// Failed probes are never cached, so a later call probes again. Concurrent callers share
// one probe round; each stops waiting when its own context is done.
func (l *ToolLocator) Resolve(ctx context.Context) (Tool, error) {
	if l.dev && l.localPath != "" {
		return Tool{Command: []string{l.localPath}}, nil
	}

	l.mu.Lock()
	cached := l.cached
	l.mu.Unlock()
	if cached != nil && !l.reprobe {
		return *cached, nil
	}

	ch := l.flight.DoChan("resolve", func() (any, error) {
		return l.probeAll(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return Tool{}, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return Tool{}, r.Err
		}
		return r.Val.(Tool), nil
	}
}

func (l *ToolLocator) probeAll(ctx context.Context) (Tool, error) {
	for _, candidate := range l.candidates {
		version, err := l.probe(ctx, candidate)
		if err != nil {
			l.logger.Debug("downloader candidate failed", "command", strings.Join(candidate, " "), "error", err)
			continue
		}

		tool := Tool{Command: candidate, Version: version}
		l.logger.Info("resolved downloader", "command", tool.String(), "version", version)
		l.mu.Lock()
		l.cached = &tool
		l.mu.Unlock()
		return tool, nil
	}

	l.Reset()
	return Tool{}, fmt.Errorf("%w: tried %d candidate(s)", shared.ErrToolNotFound, len(l.candidates))
}

// Reset discards the cached invocation.
func (l *ToolLocator) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cached = nil
}

func (l *ToolLocator) probe(ctx context.Context, candidate []string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	res, err := l.exec.Execute(ctx, Tool{Command: candidate}, ytdlp.New().SetCancelMaxWait(time.Second), "--version")
	if err != nil {
		return "", err
	}
	if res == nil {
		return "", nil
	}
	return strings.TrimSpace(res.Stdout), nil
}
