package session

import (
	"bytes"
	"context"
	"strings"
	"time"

	"github.com/kitchen360/catalog/internal/storage"
	"github.com/kitchen360/catalog/internal/surface"
)

// StoreLoader resolves image URLs served from the catalog store directly from the
// backend and hands every other URL to next. base is stripped before matching.
func StoreLoader(b storage.Backend, base string, next surface.ImageLoader) surface.ImageLoader {
	if next == nil {
		next = surface.NewHTTPLoader(nil)
	}
	return surface.LoaderFunc(func(ctx context.Context, rawURL string) (surface.ImageInfo, error) {
		path := strings.TrimPrefix(rawURL, base)
		id, ok := strings.CutPrefix(path, storage.ImagePath)
		if !ok {
			return next.Load(ctx, rawURL)
		}
		img, err := b.GetImage(ctx, id)
		if err != nil {
			return surface.ImageInfo{}, err
		}
		return surface.DecodeInfo(rawURL, bytes.NewReader(img.Data))
	})
}

// withTimeout bounds every load by d. Zero disables the bound.
func withTimeout(d time.Duration, next surface.ImageLoader) surface.ImageLoader {
	if d <= 0 {
		return next
	}
	return surface.LoaderFunc(func(ctx context.Context, rawURL string) (surface.ImageInfo, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return next.Load(ctx, rawURL)
	})
}

// newLoader stacks the cache over the timeout over the store.
func newLoader(cfg Config) surface.ImageLoader {
	loader := withTimeout(cfg.Viewer.LoadTimeout, StoreLoader(cfg.Backend, cfg.Viewer.ImageBaseURL, cfg.Loader))
	if cfg.Images != nil {
		loader = cfg.Images.Loader(loader)
	}
	return loader
}

