package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kitchen360/catalog/internal/surface"
)

func TestImageCache_SetGetDelete(t *testing.T) {
	cache := NewImageCache()

	cache.Set("/a.jpg", surface.ImageInfo{Width: 2, Height: 1})
	info, ok := cache.Get("/a.jpg")
	require.True(t, ok)
	assert.Equal(t, 2, info.Width)

	cache.Delete("/a.jpg")
	_, ok = cache.Get("/a.jpg")
	assert.False(t, ok)

	// deleting again is fine
	cache.Delete("/a.jpg")
}

func TestImageCache_Loader(t *testing.T) {
	cache := NewImageCache()
	calls := 0
	next := surface.LoaderFunc(func(ctx context.Context, rawURL string) (surface.ImageInfo, error) {
		calls++
		if rawURL == "/bad.jpg" {
			return surface.ImageInfo{}, errors.New("decode failed")
		}
		return surface.ImageInfo{URL: rawURL, Width: 4000, Height: 2000}, nil
	})
	loader := cache.Loader(next)

	for i := 0; i < 3; i++ {
		info, err := loader.Load(context.Background(), "/pano.jpg")
		require.NoError(t, err)
		assert.Equal(t, 4000, info.Width)
	}
	assert.Equal(t, 1, calls)

	_, err := loader.Load(context.Background(), "/bad.jpg")
	require.Error(t, err)
	_, err = loader.Load(context.Background(), "/bad.jpg")
	require.Error(t, err)
	assert.Equal(t, 3, calls, "failures are retried")

	cache.Reset()
	_, err = loader.Load(context.Background(), "/pano.jpg")
	require.NoError(t, err)
	assert.Equal(t, 4, calls)
}
