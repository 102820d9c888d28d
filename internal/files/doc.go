// Package files owns the output directory: naming downloads, finding and verifying what the
// downloader wrote, and deleting stale files.
//
// # Naming
//
// [SanitizeFilename] strips characters that are unsafe on common filesystems and caps the
// result at [MaxFilenameBytes]. [OutputBase] joins the sanitized title with a per-request
// token so two concurrent requests for the same video never share a prefix.
//
// # Discovery
//
// [Locate] returns the most recently modified regular file whose name starts with a prefix.
// Most-recent wins even over a more complete file, so a fresher partial (".part") file is
// returned before an older finished one. [Verify] rejects empty files.
//
// # Retention
//
// [Sweeper] deletes regular files older than a maximum age. Per-file failures are logged and
// counted in the [SweepReport]; a sweep never aborts early.
package files
