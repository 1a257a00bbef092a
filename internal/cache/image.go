package cache

import (
	"context"
	"sync"

	"github.com/kitchen360/catalog/internal/surface"
)

// ImageCache maps panorama URLs to their decoded description so switching back
// to a view does not fetch the image header again.
type ImageCache struct {
	mu     sync.RWMutex
	images map[string]surface.ImageInfo
}

// NewImageCache creates a new ImageCache
func NewImageCache() *ImageCache {
	return &ImageCache{
		images: make(map[string]surface.ImageInfo),
	}
}

// Get retrieves image info by URL
func (c *ImageCache) Get(url string) (surface.ImageInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	info, ok := c.images[url]
	return info, ok
}

// Set stores image info by URL
func (c *ImageCache) Set(url string, info surface.ImageInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.images[url] = info
}

// Delete removes an image by URL
func (c *ImageCache) Delete(url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.images, url)
}

// Reset clears all images from the cache
func (c *ImageCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.images = make(map[string]surface.ImageInfo)
}

// Loader wraps next so successful loads are remembered. Failures are not cached.
func (c *ImageCache) Loader(next surface.ImageLoader) surface.ImageLoader {
	return surface.LoaderFunc(func(ctx context.Context, rawURL string) (surface.ImageInfo, error) {
		if info, ok := c.Get(rawURL); ok {
			return info, nil
		}
		info, err := next.Load(ctx, rawURL)
		if err != nil {
			return surface.ImageInfo{}, err
		}
		c.Set(rawURL, info)
		return info, nil
	})
}
