package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/vidproxy/internal/downloader"
	"github.com/desertthunder/vidproxy/internal/files"
	"github.com/desertthunder/vidproxy/internal/services"
	"github.com/desertthunder/vidproxy/internal/shared"
	"github.com/desertthunder/vidproxy/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	logger     *log.Logger
	output     io.Writer
	executor   downloader.Executor
	httpClient *http.Client
	tools      *downloader.ToolLocator
	fallback   *services.FallbackService
	engine     tasks.DownloadEngine
	sweeper    *files.Sweeper
}

// RunnerOpts contains configuration options for creating a Runner.
//
// When Config is set the download pipeline is wired immediately; otherwise [Runner.Before]
// loads the configuration named by the --config flag.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Logger     *log.Logger
	Output     io.Writer
	Executor   downloader.Executor
	HTTPClient *http.Client
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Executor == nil {
		opts.Executor = downloader.YtdlpExecutor{}
	}

	r := &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		logger:     opts.Logger,
		output:     opts.Output,
		executor:   opts.Executor,
		httpClient: opts.HTTPClient,
	}
	if r.config != nil {
		if err := r.wire(); err != nil {
			r.logger.Warn("failed to wire download pipeline", "error", err)
		}
	}
	return r
}

// Before loads the configuration, applies environment overrides and wires the pipeline.
//
// A missing config file falls back to the embedded defaults.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.Bool("debug") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}

	path := cmd.String("config")
	config, err := loadConfig(path)
	if err != nil {
		return ctx, err
	}
	if config == nil {
		r.logger.Debug("config file not found, using defaults", "path", path)
		config = shared.DefaultConfig()
	}

	config.ApplyEnv(os.Getenv)
	if err := config.Validate(); err != nil {
		return ctx, err
	}

	r.config = config
	r.configPath = path
	return ctx, r.wire()
}

// loadConfig returns nil without error when path does not exist.
func loadConfig(path string) (*shared.Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return shared.LoadConfig(path)
}

// wire builds the locator, invoker, fetcher, strategy runner, fallback and pipeline from r.config.
func (r *Runner) wire() error {
	cfg := r.config
	dl := cfg.Downloader

	var headers *shared.RequestHeaders
	if dl.HeadersFile != "" {
		h, err := shared.LoadHeadersFile(dl.HeadersFile)
		switch {
		case errors.Is(err, os.ErrNotExist):
			r.logger.Warn("headers file not found, continuing without imported headers", "path", dl.HeadersFile)
		case err != nil:
			return fmt.Errorf("failed to load headers file: %w", err)
		default:
			headers = h
			r.logger.Debug("loaded request headers", "path", dl.HeadersFile, "count", len(h.Headers))
		}
	}

	r.tools = downloader.NewToolLocator(downloader.ToolLocatorOpts{
		Candidates:   dl.Candidates,
		LocalPath:    dl.LocalPath,
		Development:  cfg.IsDevelopment(),
		Reprobe:      dl.Reprobe,
		ProbeTimeout: dl.ProbeTimeout.Duration,
		Executor:     r.executor,
		Logger:       shared.WithLogger(r.logger, "component", "locator"),
	})

	invoker := downloader.NewInvoker(downloader.InvokerOpts{
		Tools:     r.tools,
		Executor:  r.executor,
		UserAgent: dl.UserAgent,
		Accept:    dl.Accept,
		Headers:   headers,
		Logger:    shared.WithLogger(r.logger, "component", "invoker"),
	})

	opts := tasks.PipelineOpts{
		Info: downloader.NewInfoFetcher(invoker, dl.InfoTimeout.Duration, r.logger),
		Media: downloader.NewStrategyRunner(invoker, downloader.StrategyRunnerOpts{
			AttemptTimeout: dl.AttemptTimeout.Duration,
			RetryBackoff:   dl.RetryBackoff.Duration,
			Logger:         shared.WithLogger(r.logger, "component", "strategies"),
		}),
		OutputDir: dl.OutputDir,
		MaxHeight: dl.MaxHeight,
		Logger:    shared.WithLogger(r.logger, "component", "pipeline"),
	}

	r.fallback = nil
	if cfg.Fallback.Enabled && len(cfg.Fallback.Instances) > 0 {
		r.fallback = services.NewFallbackService(services.FallbackOpts{
			Instances:  cfg.Fallback.Instances,
			Timeout:    cfg.Fallback.Timeout.Duration,
			MaxHeight:  cfg.Fallback.MaxHeight,
			UserAgent:  dl.UserAgent,
			HTTPClient: r.httpClient,
			Logger:     shared.WithLogger(r.logger, "component", "fallback"),
		})
		opts.Fallback = r.fallback
	}

	r.engine = tasks.NewPipeline(opts)
	r.sweeper = files.NewSweeper(dl.OutputDir, cfg.Retention.MaxAge.Duration, shared.WithLogger(r.logger, "component", "sweeper"))
	return nil
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		serveCommand, downloadCommand, tuiCommand, sweepCommand, probeCommand, setupCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

func (r *Runner) ensureEngine() error {
	if r.engine == nil {
		return fmt.Errorf("%w: download engine not initialized", shared.ErrServiceUnavailable)
	}
	return nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}

// SetLogger replaces the logger and rewires the pipeline so every component writes to it.
func (r *Runner) SetLogger(logger *log.Logger) error {
	r.logger = logger
	if r.config == nil {
		return nil
	}
	return r.wire()
}
