package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/vidproxy/internal/shared"
	"github.com/urfave/cli/v3"
)

const defaultHeadersFile = "headers.json"

// SetupConfig writes the embedded default configuration to the --config path.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := r.configPath
	if path == "" {
		path = "config.toml"
	}

	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}

	r.logger.Info("config file created", "path", path)
	r.writePlain("✓ Configuration written to %s\n", path)
	return nil
}

// SetupHeaders imports request headers from a browser cURL command.
//
// The saved file is passed to the downloader as --add-headers pairs on every run.
func (r *Runner) SetupHeaders(ctx context.Context, cmd *cli.Command) error {
	curlCmd := cmd.String("curl")
	curlFile := cmd.String("curl-file")
	outputPath := cmd.String("output")

	if curlCmd == "" && curlFile == "" {
		return fmt.Errorf("%w: either --curl or --curl-file must be provided", shared.ErrMissingArgument)
	}

	if curlCmd != "" && curlFile != "" {
		return fmt.Errorf("%w: cannot specify both --curl and --curl-file", shared.ErrInvalidArgument)
	}

	var headers *shared.RequestHeaders
	var err error

	if curlFile != "" {
		headers, err = shared.ParseCurlFile(curlFile)
		if err != nil {
			return fmt.Errorf("failed to parse cURL file: %w", err)
		}
		r.logger.Info("parsed cURL from file", "file", curlFile)
	} else {
		headers, err = shared.ParseCurlCommand(curlCmd)
		if err != nil {
			return fmt.Errorf("failed to parse cURL command: %w", err)
		}
		r.logger.Info("parsed cURL command")
	}

	if outputPath == "" && r.config != nil {
		outputPath = r.config.Downloader.HeadersFile
	}
	if outputPath == "" {
		outputPath = defaultHeadersFile
	}

	if err := shared.SaveHeadersFile(outputPath, headers); err != nil {
		return err
	}
	r.logger.Info("headers saved", "path", outputPath, "count", len(headers.Headers), "cookie", headers.Cookie != "")

	r.writePlain("✓ Imported %d header(s)", len(headers.Headers))
	if headers.Cookie != "" {
		r.writePlain(" and a cookie")
	}
	r.writePlain("\nHeaders saved to: %s\n", outputPath)

	if r.config == nil || r.config.Downloader.HeadersFile != outputPath {
		r.writePlain("\nNext steps:\n")
		r.writePlain("1. Update %s with: downloader.headers_file = %q\n", r.configName(), outputPath)
		r.writePlain("2. Run 'vidproxy probe' to check the downloader\n")
	}
	return nil
}

func (r *Runner) configName() string {
	if strings.TrimSpace(r.configPath) == "" {
		return "config.toml"
	}
	return r.configPath
}
