// Package tasks orchestrates video downloads with real-time progress reporting.
//
// # Core Operations
//
// The [DownloadEngine] interface defines the request-level operation:
//
//  1. [Pipeline.Download] : one URL, one verified file
//     - Validates the request (URL pattern and format)
//     - Fetches metadata; a failure here stops the request before any media is fetched
//     - Tries each download strategy in order through the strategy runner
//     - Locates the file by the exact path the downloader printed, else by prefix
//     - Verifies the file is non-empty and builds the [models.DownloadResult]
//
//  2. [Batch] : several URLs through a bounded worker pool
//     - Starts downloads under a [rate.Limiter]
//     - Gives every item its own filename token
//     - Reports per-item results in input order
//
// # Fallback
//
// When the metadata fetch or the final strategy fails with a message carrying a
// bot-detection or age-restriction signature ([ShouldFallback]), the pipeline reroutes once
// to a [services.Provider]. The fallback always writes an mp4. If it also fails, the original
// error stays first in the chain so the failure is classified by its real cause.
//
// # Classification
//
// [Classify] walks an ordered table of matchers and returns the first [Classification]: a
// stable kind, an HTTP status and a client-safe message. Diagnostic text from the tool is
// only ever logged.
//
// # Progress Reporting
//
// # All operations use non-blocking channels for progress updates
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
package tasks
