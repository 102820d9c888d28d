package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/vidproxy/internal/files"
	"github.com/desertthunder/vidproxy/internal/formatter"
	"github.com/desertthunder/vidproxy/internal/shared"
	"github.com/urfave/cli/v3"
)

// Sweep deletes downloads older than the retention age once.
func (r *Runner) Sweep(ctx context.Context, cmd *cli.Command) error {
	if r.sweeper == nil {
		return fmt.Errorf("%w: sweeper not initialized", shared.ErrServiceUnavailable)
	}

	sweeper := *r.sweeper
	sweeper.DryRun = cmd.Bool("dry-run")
	if maxAge := cmd.Duration("max-age"); maxAge > 0 {
		sweeper.MaxAge = maxAge
	}

	report, err := sweeper.Sweep(ctx)
	if err != nil {
		return fmt.Errorf("sweep failed: %w", err)
	}

	if path := cmd.String("report"); path != "" {
		if err := formatter.WriteReport(path, report); err != nil {
			return err
		}
		r.logger.Info("report written", "path", path)
	}

	if cmd.Bool("json") {
		return r.writeJSON(report, true)
	}
	return r.writePlain("%s", formatter.SweepToText(report))
}

// Probe resolves the downloader invocation and reports the output directory usage.
func (r *Runner) Probe(ctx context.Context, cmd *cli.Command) error {
	if r.tools == nil {
		return fmt.Errorf("%w: downloader locator not initialized", shared.ErrServiceUnavailable)
	}

	tool, err := r.tools.Resolve(ctx)
	if err != nil {
		return err
	}
	stats, _ := files.DirStats(r.config.Downloader.OutputDir)

	if cmd.Bool("json") {
		return r.writeJSON(map[string]any{
			"tool":       tool,
			"output_dir": r.config.Downloader.OutputDir,
			"files":      stats,
		}, true)
	}

	r.writePlain("Command: %s\n", tool.String())
	if tool.Version != "" {
		r.writePlain("Version: %s\n", tool.Version)
	}
	return r.writePlain("Output: %s (%d files, %s)\n",
		r.config.Downloader.OutputDir, stats.Files, shared.FormatBytes(stats.Bytes))
}
