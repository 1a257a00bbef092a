package surface

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	_ "golang.org/x/image/webp"
)

// ImageInfo describes a decoded panorama.
type ImageInfo struct {
	URL    string
	Format string
	Width  int
	Height int
}

// Equirectangular reports whether the image has the 2:1 ratio of a full sphere.
func (i ImageInfo) Equirectangular() bool {
	return i.Height > 0 && i.Width == 2*i.Height
}

// ImageLoader resolves a panorama URL into image data.
type ImageLoader interface {
	Load(ctx context.Context, rawURL string) (ImageInfo, error)
}

// LoaderFunc adapts a function to ImageLoader.
type LoaderFunc func(ctx context.Context, rawURL string) (ImageInfo, error)

func (f LoaderFunc) Load(ctx context.Context, rawURL string) (ImageInfo, error) {
	return f(ctx, rawURL)
}

// HTTPLoader fetches http(s) URLs and reads file:// URLs or plain paths from disk.
// Only the image header is decoded.
type HTTPLoader struct {
	client *http.Client
}

// NewHTTPLoader creates a loader. A nil client gets a 30 second timeout.
func NewHTTPLoader(client *http.Client) *HTTPLoader {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPLoader{client: client}
}

// Load opens rawURL and decodes the image configuration.
func (l *HTTPLoader) Load(ctx context.Context, rawURL string) (ImageInfo, error) {
	rc, err := l.open(ctx, rawURL)
	if err != nil {
		return ImageInfo{}, err
	}
	defer rc.Close()
	return DecodeInfo(rawURL, rc)
}

func (l *HTTPLoader) open(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid image URL: %w", err)
	}

	switch u.Scheme {
	case "http", "https":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		resp, err := l.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("image request failed: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("image request returned status %d", resp.StatusCode)
		}
		return resp.Body, nil
	case "file":
		return os.Open(u.Path)
	case "":
		return os.Open(rawURL)
	default:
		return nil, fmt.Errorf("unsupported image URL scheme %q", u.Scheme)
	}
}

// DecodeInfo reads just enough of r to identify the image.
func DecodeInfo(rawURL string, r io.Reader) (ImageInfo, error) {
	cfg, format, err := image.DecodeConfig(r)
	if err != nil {
		return ImageInfo{}, fmt.Errorf("decode image: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return ImageInfo{}, fmt.Errorf("image has no pixels")
	}
	return ImageInfo{URL: rawURL, Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}
