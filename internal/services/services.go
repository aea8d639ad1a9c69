// package services defines the Provider capability used to pull audio from external sources
package services

import (
	"context"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/desertthunder/jukebox/internal/models"
)

// Provider resolves metadata for a remote media URL and opens its audio as a byte stream.
type Provider interface {
	// FetchMetadata resolves the item behind url without downloading the payload.
	FetchMetadata(ctx context.Context, url string) (*models.SourceMetadata, error)

	// OpenAudioStream starts the payload transfer. The caller must Close the stream;
	// a non-nil Close error means the transfer did not finish cleanly.
	OpenAudioStream(ctx context.Context, url string) (io.ReadCloser, error)

	// Name returns the name of the provider (e.g., "yt-dlp", "direct")
	Name() string
}

// Switch routes URLs that point straight at an audio file to Direct and everything else to Fallback.
type Switch struct {
	Direct   Provider
	Fallback Provider
}

// NewSwitch creates a Switch. A nil direct provider sends every URL to fallback.
func NewSwitch(direct, fallback Provider) *Switch {
	return &Switch{Direct: direct, Fallback: fallback}
}

// Name returns the service name.
func (s *Switch) Name() string { return "switch" }

// For returns the provider that will handle rawURL.
func (s *Switch) For(rawURL string) Provider {
	if s.Direct != nil && IsDirectAudio(rawURL) {
		return s.Direct
	}
	return s.Fallback
}

func (s *Switch) FetchMetadata(ctx context.Context, rawURL string) (*models.SourceMetadata, error) {
	return s.For(rawURL).FetchMetadata(ctx, rawURL)
}

func (s *Switch) OpenAudioStream(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	return s.For(rawURL).OpenAudioStream(ctx, rawURL)
}

var directExts = map[string]bool{".mp3": true}

// IsDirectAudio reports whether rawURL's path names an audio file the direct provider can fetch as-is.
func IsDirectAudio(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return directExts[strings.ToLower(path.Ext(u.Path))]
}
