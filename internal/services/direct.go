package services

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/desertthunder/jukebox/internal/models"
)

// DirectService implements [Provider] for URLs that serve an audio file directly.
type DirectService struct {
	userAgent  string
	httpClient *http.Client
}

// NewDirectService creates a direct HTTP provider. A nil client uses [http.DefaultClient].
func NewDirectService(userAgent string, client *http.Client) *DirectService {
	if client == nil {
		client = http.DefaultClient
	}

	return &DirectService{
		userAgent:  userAgent,
		httpClient: client,
	}
}

// Name returns the service name.
func (d *DirectService) Name() string { return "direct" }

func (d *DirectService) newRequest(ctx context.Context, method, rawURL string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}
	return req, nil
}

// FetchMetadata issues a HEAD request and derives the title from Content-Disposition,
// falling back to the last path segment of the URL.
func (d *DirectService) FetchMetadata(ctx context.Context, rawURL string) (*models.SourceMetadata, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}

	req, err := d.newRequest(ctx, http.MethodHead, rawURL)
	if err != nil {
		return nil, err
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusMethodNotAllowed {
		return nil, fmt.Errorf("direct source error: status %d", resp.StatusCode)
	}
	if err := checkAudioType(resp.Header.Get("Content-Type")); err != nil {
		return nil, err
	}

	base := path.Base(u.Path)
	if unescaped, err := url.PathUnescape(base); err == nil {
		base = unescaped
	}
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		base = params["filename"]
	}

	return &models.SourceMetadata{
		ID:         strings.TrimSuffix(path.Base(u.Path), path.Ext(u.Path)),
		Title:      strings.TrimSuffix(base, path.Ext(base)),
		WebpageURL: rawURL,
	}, nil
}

// OpenAudioStream issues a GET and returns the response body.
func (d *DirectService) OpenAudioStream(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := d.newRequest(ctx, http.MethodGet, rawURL)
	if err != nil {
		return nil, err
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("direct source error: status %d", resp.StatusCode)
	}
	if err := checkAudioType(resp.Header.Get("Content-Type")); err != nil {
		resp.Body.Close()
		return nil, err
	}

	return &lengthChecked{body: resp.Body, want: resp.ContentLength}, nil
}

// checkAudioType rejects responses that are clearly not audio, such as an HTML error page.
func checkAudioType(contentType string) error {
	if contentType == "" {
		return nil
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return fmt.Errorf("invalid content type %q: %w", contentType, err)
	}
	if strings.HasPrefix(mediaType, "audio/") || mediaType == "application/octet-stream" {
		return nil
	}
	return fmt.Errorf("direct source is not audio: %s", mediaType)
}

// lengthChecked reports a short body on Close when the server announced a Content-Length.
type lengthChecked struct {
	body io.ReadCloser
	want int64
	got  int64
}

func (l *lengthChecked) Read(p []byte) (int, error) {
	n, err := l.body.Read(p)
	l.got += int64(n)
	return n, err
}

func (l *lengthChecked) Close() error {
	err := l.body.Close()
	if l.want >= 0 && l.got != l.want {
		return fmt.Errorf("direct source truncated: got %d of %d bytes", l.got, l.want)
	}
	return err
}
