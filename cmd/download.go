package main

import (
	"context"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/vidproxy/internal/formatter"
	"github.com/desertthunder/vidproxy/internal/models"
	"github.com/desertthunder/vidproxy/internal/shared"
	"github.com/desertthunder/vidproxy/internal/tasks"
	"github.com/desertthunder/vidproxy/internal/ui"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v3"
)

const defaultLogFile = "./tmp/vidproxy-tui.log"

// Download fetches the URLs given as arguments. A single URL on a terminal gets the
// interactive progress view; several URLs run as a batch.
func (r *Runner) Download(ctx context.Context, cmd *cli.Command) error {
	urls := cmd.Args().Slice()
	if len(urls) == 0 {
		return fmt.Errorf("%w: at least one url is required", shared.ErrMissingArgument)
	}

	format, err := models.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	if err := r.ensureEngine(); err != nil {
		return err
	}
	if out := cmd.String("output"); out != "" {
		r.config.Downloader.OutputDir = out
		if err := r.wire(); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(r.config.Downloader.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if len(urls) > 1 {
		return r.downloadBatch(ctx, cmd, urls, format)
	}

	jsonOut := cmd.Bool("json")
	interactive := !jsonOut && !cmd.Bool("plain") && isatty.IsTerminal(os.Stdout.Fd())

	var result *models.DownloadResult
	if interactive {
		result, err = r.downloadInteractive(ctx, urls[0], format)
	} else {
		progressOut := r.output
		if jsonOut {
			progressOut = os.Stderr
		}
		result, err = r.downloadPlain(ctx, models.DownloadRequest{URL: urls[0], Format: format}, progressOut)
	}
	if err != nil {
		return downloadError(err)
	}

	if path := cmd.String("report"); path != "" {
		if err := formatter.WriteReport(path, result); err != nil {
			return err
		}
		r.logger.Info("report written", "path", path)
	}

	switch {
	case jsonOut:
		return r.writeJSON(result, true)
	case interactive:
		return nil
	default:
		r.writePlain("\n")
		r.writePlainHeader("Download Complete!")
		return r.writePlain("%s", formatter.ResultToText(result))
	}
}

// downloadError keeps the full cause for the terminal but leads with the classified message.
func downloadError(err error) error {
	if tasks.IsInputError(err) {
		return err
	}
	return fmt.Errorf("%s: %w", tasks.Classify(err).Message, err)
}

func (r *Runner) downloadPlain(ctx context.Context, req models.DownloadRequest, w io.Writer) (*models.DownloadResult, error) {
	r.logger.Info("starting download", "url", req.URL, "format", req.Format)

	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			printProgress(w, update)
		}
	}()

	result, err := r.engine.Download(ctx, req, shared.ShortID(), progressCh)
	close(progressCh)
	<-done

	return result, err
}

func (r *Runner) downloadInteractive(ctx context.Context, url string, format models.Format) (*models.DownloadResult, error) {
	// Logs would tear the rendered view.
	if err := r.redirectLogs(defaultLogFile); err != nil {
		return nil, err
	}

	model := ui.NewModel(ctx, ui.ModelOpts{Engine: r.engine, URL: url, Format: format, ExitOnDone: true})
	if _, err := tea.NewProgram(model, tea.WithContext(ctx)).Run(); err != nil {
		return nil, fmt.Errorf("error running TUI: %w", err)
	}
	return model.Result()
}

func (r *Runner) downloadBatch(ctx context.Context, cmd *cli.Command, urls []string, format models.Format) error {
	jsonOut := cmd.Bool("json")
	progressOut := r.output
	if jsonOut {
		progressOut = os.Stderr
	}

	r.logger.Info("starting batch download", "count", len(urls), "format", format)

	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			printProgress(progressOut, update)
		}
	}()

	result, err := tasks.Batch(ctx, r.engine, urls, tasks.BatchOpts{
		Format:     format,
		NumWorkers: cmd.Int("workers"),
	}, progressCh)
	close(progressCh)
	<-done

	if result == nil {
		return err
	}

	if path := cmd.String("report"); path != "" {
		if werr := formatter.WriteReport(path, result); werr != nil {
			return werr
		}
		r.logger.Info("report written", "path", path)
	}

	if jsonOut {
		if werr := r.writeJSON(result, true); werr != nil {
			return werr
		}
	} else {
		text, _ := formatter.BatchToText(result)
		r.writePlain("\n")
		r.writePlainHeader("Batch Complete!")
		r.writePlain("%s", text)
	}

	if err != nil {
		return err
	}
	if result.Succeeded == 0 {
		return fmt.Errorf("all %d downloads failed", result.Total)
	}
	return nil
}

func printProgress(w io.Writer, update tasks.ProgressUpdate) {
	switch update.Phase {
	case tasks.FetchInfo:
		fmt.Fprintf(w, "📥 %s\n", update.Message)
	case tasks.Download:
		fmt.Fprintf(w, "   %s\n", update.Message)
	case tasks.Fallback:
		fmt.Fprintf(w, "↪  %s\n", update.Message)
	case tasks.LocateFile:
		fmt.Fprintf(w, "🔎 %s\n", update.Message)
	case tasks.Complete, tasks.BatchItem:
		fmt.Fprintf(w, "%s\n", update.Message)
	}
}

// redirectLogs sends logs to path so they do not interleave with a rendered view.
func (r *Runner) redirectLogs(path string) error {
	fileLogger, err := shared.NewFileLogger(path)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	return r.SetLogger(fileLogger)
}
