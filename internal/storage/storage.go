// Package storage defines the catalog store and selects a backend.
package storage

import (
	"context"

	"github.com/kitchen360/catalog/pkg/core"
)

// ErrNotFound is returned by every backend when a record does not exist.
var ErrNotFound = core.ErrNotFound

// Backend is the interface all storage implementations must satisfy.
// Create methods assign an ID when the record has none and set timestamps.
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Rooms
	CreateRoom(ctx context.Context, r *core.Room) error
	GetRoom(ctx context.Context, id string) (core.Room, error)
	ListRooms(ctx context.Context) ([]core.Room, error)
	DeleteRoom(ctx context.Context, id string) error

	// Views
	CreateView(ctx context.Context, v *core.View) error
	GetView(ctx context.Context, id string) (core.View, error)
	ListViews(ctx context.Context, roomID string) ([]core.View, error)
	UpdateView(ctx context.Context, v *core.View) error

	// Storage areas
	CreateStorageArea(ctx context.Context, a *core.StorageArea) error
	GetStorageArea(ctx context.Context, id string) (core.StorageArea, error)
	ListStorageAreas(ctx context.Context, viewID string) ([]core.StorageArea, error)
	UpdateStorageArea(ctx context.Context, a *core.StorageArea) error
	DeleteStorageArea(ctx context.Context, id string) error

	// Image blobs
	PutImage(ctx context.Context, img *core.Image) error
	GetImage(ctx context.Context, id string) (core.Image, error)
}

// Dumpable is an optional interface for backends that can snapshot to disk on demand.
type Dumpable interface {
	Dump() error
}
