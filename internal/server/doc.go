// Package server provides HTTP routing, middleware, and the JSON API of the download proxy.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
// Paths may use ServeMux wildcards; handlers read them with [http.Request.PathValue].
//
// # Endpoints
//
//	GET  /                      → download form (internal/web)
//	POST /download              → run the pipeline, answer the result payload
//	GET  /download-file/{name}  → stream a file from the output directory
//	POST /cleanup-file          → delete one file from the output directory
//	GET  /health                → downloader, output directory and uptime status
//
// Input errors answer 400 with the validation message. Pipeline failures answer with the
// status and message of their classification; the underlying error is only logged.
//
// # Middleware
//
//   - [RequestIDMiddleware] : a uuid per request, also the source of the filename token
//   - [LoggingMiddleware] : one structured log line per request
//   - [RecoverMiddleware] : handler panics become 500 responses
//   - [SecurityHeadersMiddleware] : nosniff, frame denial, CSP
//   - [RateLimitMiddleware] : per-IP token buckets ([IPRateLimiter]) guarding POST /download
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
