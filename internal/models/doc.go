// Package models defines the domain entities passed through the download pipeline.
//
// The types fall into three groups:
//
// 1. Requests: [DownloadRequest] and its [Format] enumeration, validated before any
// external process is started.
//
// 2. Metadata: [VideoInfo], fetched once per request and read-only afterwards.
//
// 3. Results: [DownloadResult] with its [VideoSummary], constructed only once a verified,
// non-empty file exists on disk. [Payload] flattens a result for the HTTP boundary.
package models
