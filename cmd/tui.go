package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/vidproxy/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive terminal UI for downloads.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	if err := r.ensureEngine(); err != nil {
		return err
	}
	if err := os.MkdirAll(r.config.Downloader.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	if err := r.redirectLogs(cmd.String("log-file")); err != nil {
		return err
	}

	model := ui.NewModel(ctx, ui.ModelOpts{Engine: r.engine})
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
