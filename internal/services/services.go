// package services defines the secondary download providers used when the external
// downloader is refused by the video host.
package services

import (
	"context"

	"github.com/desertthunder/vidproxy/internal/models"
)

// NameFunc returns the extension-less output name for a video with the given title. The
// title is the one reported by the provider, which may differ from the caller's metadata.
type NameFunc func(title string) string

// FixedName ignores the provider's title and always names the file base.
func FixedName(base string) NameFunc {
	return func(string) string { return base }
}

// Provider downloads a video by ID without the external downloader.
type Provider interface {
	// Download writes the video into dir as name(title).mp4.
	Download(ctx context.Context, videoID, dir string, name NameFunc) (*Download, error)

	// Name returns the name of the provider
	Name() string
}

// Download describes a file written by a [Provider].
type Download struct {
	Path     string
	Filename string
	Size     int64
	Instance string
	Quality  string
	Info     models.VideoInfo
}
