// Package services implements the secondary download path used when the video host refuses
// the external downloader.
//
// # Provider Interface
//
// A [Provider] downloads a video by its 11 character ID and writes it into the output
// directory as an mp4. The orchestration pipeline reroutes to a provider at most once per
// request, and only for failures that look like bot detection or age gating.
//
// # Invidious Implementation
//
// [FallbackService] walks a fixed, ordered list of Invidious-compatible instances. For each
// instance it requests /api/v1/videos/{id}, rejects bodies that carry an error field,
// picks the tallest muxed mp4 stream at or under the height ceiling (degrading to any mp4
// stream) and streams it to disk. Each instance is tried once; a failure is logged and the
// next instance is tried.
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrAPIRequest] : transport failure, non-2xx status, or an error body
//   - [APIError] : carries the status code of a non-2xx response
//   - [shared.AllFallbacksExhaustedError] : every instance failed, with per-instance causes
package services
