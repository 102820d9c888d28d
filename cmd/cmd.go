// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// serveCommand starts the HTTP API
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the HTTP download service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (default: server.host:server.port from config)",
			},
			&cli.BoolFlag{
				Name:  "open",
				Usage: "Open the download page in a browser once listening",
			},
			&cli.BoolFlag{
				Name:  "no-sweep",
				Usage: "Disable the periodic retention sweep",
			},
		},
		Action: r.Serve,
	}
}

// downloadCommand fetches one or more URLs without the HTTP layer
func downloadCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "download",
		Aliases:   []string{"dl"},
		Usage:     "Download one or more videos",
		ArgsUsage: "<url> [url...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format (mp4, webm or mp3)",
				Value:   "mp4",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output directory (default: downloader.output_dir from config)",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Concurrent downloads when several URLs are given",
				Value: 2,
			},
			&cli.StringFlag{
				Name:  "report",
				Usage: "Write a report to this path (.csv, .md, .json or .txt)",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "plain",
				Usage: "Print progress lines instead of the interactive view",
			},
		},
		Action: r.Download,
	}
}

// tuiCommand returns the top-level TUI command for interactive downloads.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch the interactive download interface",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Write logs here while the interface is running",
				Value: "./tmp/vidproxy-tui.log",
			},
		},
		Action: r.TUI,
	}
}

// sweepCommand runs one retention sweep
func sweepCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sweep",
		Usage: "Delete downloads older than the retention age",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "List what would be deleted without deleting",
			},
			&cli.DurationFlag{
				Name:  "max-age",
				Usage: "Override retention.max_age",
			},
			&cli.StringFlag{
				Name:  "report",
				Usage: "Write a report to this path (.csv, .json or .txt)",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Sweep,
	}
}

// probeCommand resolves the downloader and reports how it will be invoked
func probeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "probe",
		Usage: "Locate the downloader and print its version",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Probe,
	}
}

// setupCommand handles configuration scaffolding
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write the default configuration to --config",
				Action: r.SetupConfig,
			},
			{
				Name:  "headers",
				Usage: "Import request headers from a browser cURL command",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "curl",
						Usage: "cURL command from browser DevTools (Copy as cURL)",
					},
					&cli.StringFlag{
						Name:  "curl-file",
						Usage: "Path to .sh file containing cURL command",
					},
					&cli.StringFlag{
						Name:  "output",
						Usage: "Output path (default: downloader.headers_file, then ./headers.json)",
					},
				},
				Action: r.SetupHeaders,
			},
		},
	}
}
