package models

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/desertthunder/vidproxy/internal/shared"
)

// Format is the container requested by the client.
type Format string

const (
	FormatMP4  Format = "mp4"
	FormatWebM Format = "webm"
	FormatMP3  Format = "mp3"
)

// Formats lists every accepted format in display order.
var Formats = []Format{FormatMP4, FormatWebM, FormatMP3}

// ParseFormat returns the [Format] for s; empty input defaults to mp4.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatMP4, nil
	case FormatMP4, FormatWebM, FormatMP3:
		return f, nil
	default:
		return "", fmt.Errorf("%w: unsupported format %q (expected mp4, webm or mp3)", shared.ErrInvalidInput, s)
	}
}

// IsAudio reports whether the format is audio-only.
func (f Format) IsAudio() bool {
	return f == FormatMP3
}

// Method records which path produced a download.
type Method string

const (
	MethodPrimary  Method = "primary"
	MethodFallback Method = "fallback"
)

var (
	videoURLRe = regexp.MustCompile(`^https?://(?:www\.|m\.|music\.)?(?:youtube\.com/(?:watch\?(?:.*&)?v=|shorts/|embed/|live/|v/)|youtube-nocookie\.com/embed/|youtu\.be/)[A-Za-z0-9_-]{11}(?:[?&#/].*)?$`)
	videoIDRe  = regexp.MustCompile(`(?:[?&]v=|youtu\.be/|/shorts/|/embed/|/live/|/v/)([A-Za-z0-9_-]{11})`)
)

// IsVideoURL reports whether raw matches a recognized video-host URL.
func IsVideoURL(raw string) bool {
	if _, err := url.ParseRequestURI(raw); err != nil {
		return false
	}
	return videoURLRe.MatchString(raw)
}

// ExtractVideoID returns the 11 character video identifier in raw, or "".
func ExtractVideoID(raw string) string {
	if m := videoIDRe.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	return ""
}

// DownloadRequest is a client's request to fetch one video.
type DownloadRequest struct {
	URL    string `json:"url"`
	Format Format `json:"format"`
}

// Validate normalizes the request and rejects unrecognized URLs or formats.
func (r *DownloadRequest) Validate() error {
	r.URL = strings.TrimSpace(r.URL)
	if r.URL == "" {
		return fmt.Errorf("%w: url is required", shared.ErrInvalidInput)
	}
	if !IsVideoURL(r.URL) {
		return fmt.Errorf("%w: %q is not a recognized video URL", shared.ErrInvalidInput, r.URL)
	}

	f, err := ParseFormat(string(r.Format))
	if err != nil {
		return err
	}
	r.Format = f
	return nil
}

// VideoID returns the identifier embedded in the request URL.
func (r *DownloadRequest) VideoID() string {
	return ExtractVideoID(r.URL)
}

// VideoInfo is the metadata retrieved before any media is fetched.
type VideoInfo struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Author          string `json:"author"`
	DurationSeconds int    `json:"duration_seconds"`
	ViewCount       int64  `json:"view_count"`
	Height          int    `json:"height"`
}

// Quality describes the resolution a download was made at.
func (v VideoInfo) Quality(f Format) string {
	switch {
	case f.IsAudio():
		return "audio"
	case v.Height > 0:
		return fmt.Sprintf("%dp", v.Height)
	default:
		return "best available"
	}
}

// VideoSummary is the client-facing description of a finished download.
type VideoSummary struct {
	Title    string `json:"title"`
	Author   string `json:"author"`
	Duration string `json:"duration"`
	Views    string `json:"views"`
	Quality  string `json:"quality"`
	Method   Method `json:"method"`
}

// NewVideoSummary formats info for display.
func NewVideoSummary(info VideoInfo, quality string, method Method) VideoSummary {
	return VideoSummary{
		Title:    info.Title,
		Author:   info.Author,
		Duration: shared.FormatDuration(info.DurationSeconds),
		Views:    shared.FormatViews(info.ViewCount),
		Quality:  quality,
		Method:   method,
	}
}

// DownloadResult describes a verified file in the output directory.
type DownloadResult struct {
	Filename string       `json:"filename"`
	Path     string       `json:"-"`
	Size     int64        `json:"size"`
	Summary  VideoSummary `json:"videoInfo"`
}

// Payload is the flat JSON body returned by the download endpoint.
type Payload struct {
	Success     bool   `json:"success"`
	Filename    string `json:"filename"`
	DownloadURL string `json:"downloadUrl"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	Duration    string `json:"duration"`
	Views       string `json:"views"`
	Quality     string `json:"quality"`
	Method      Method `json:"method"`
}

// Payload flattens the result, pointing downloadUrl at the file route.
func (r *DownloadResult) Payload() Payload {
	return Payload{
		Success:     true,
		Filename:    r.Filename,
		DownloadURL: "/download-file/" + url.PathEscape(r.Filename),
		Title:       r.Summary.Title,
		Author:      r.Summary.Author,
		Duration:    r.Summary.Duration,
		Views:       r.Summary.Views,
		Quality:     r.Summary.Quality,
		Method:      r.Summary.Method,
	}
}
