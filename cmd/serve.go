package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/desertthunder/vidproxy/internal/server"
	"github.com/desertthunder/vidproxy/internal/shared"
	"github.com/desertthunder/vidproxy/internal/web"
	"github.com/urfave/cli/v3"
)

// Serve starts the HTTP API with the retention sweeper alongside it.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if err := r.ensureEngine(); err != nil {
		return err
	}

	cfg := r.config
	if err := os.MkdirAll(cfg.Downloader.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if tool, err := r.tools.Resolve(ctx); err != nil {
		r.logger.Warn("downloader not available, health will report degraded", "error", err)
	} else {
		r.logger.Info("using downloader", "command", tool.String(), "version", tool.Version)
	}

	var limiter *server.IPRateLimiter
	if cfg.Server.RateLimit > 0 {
		limiter = server.NewIPRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst)
		go limiter.Run(ctx, time.Minute)
	}

	api := server.NewAPI(server.APIOpts{
		Engine:    r.engine,
		Tools:     r.tools,
		OutputDir: cfg.Downloader.OutputDir,
		PublicURL: cfg.Server.PublicURL,
		Version:   version,
		Logger:    r.logger,
	})
	router := server.NewRouter(api, web.NewIndexHandler(""), limiter, cfg.Server.TrustProxy, r.logger)

	if !cmd.Bool("no-sweep") {
		go r.sweeper.Run(ctx, cfg.Retention.Interval.Duration)
	}

	addr := cmd.String("addr")
	if addr == "" {
		addr = cfg.Addr()
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	fallbacks := 0
	if r.fallback != nil {
		fallbacks = len(r.fallback.Instances())
	}
	r.logger.Info("starting download service",
		"env", cfg.Environment,
		"output_dir", cfg.Downloader.OutputDir,
		"fallback_instances", fallbacks,
		"retention", cfg.Retention.MaxAge.Duration,
	)

	if cmd.Bool("open") {
		url := browseURL(ln.Addr(), cfg.Server.PublicURL)
		if err := shared.OpenBrowser(url); err != nil {
			r.logger.Warn("failed to open browser", "url", url, "error", err)
		}
	}

	return server.NewServer(addr, router, r.logger).Serve(ctx, ln)
}

// browseURL is the address a local browser should open. Wildcard hosts map to localhost.
func browseURL(addr net.Addr, publicURL string) string {
	if publicURL != "" {
		return publicURL
	}

	host, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return "http://" + addr.String()
	}
	if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}
