// Package memory implements the storage.Backend interface with maps guarded by a
// mutex. With an output directory configured the catalog is restored from a JSON
// snapshot on Init and written back on Close.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kitchen360/catalog/internal/config"
	v1 "github.com/kitchen360/catalog/internal/storage/memory/export/v1"
	"github.com/kitchen360/catalog/pkg/core"
)

// Backend stores the catalog in memory
type Backend struct {
	cfg  config.MemoryConfig
	data *v1.CatalogData
	now  func() time.Time

	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:  cfg,
		data: v1.NewCatalogData(),
		now:  func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// Init restores the last snapshot, if any
func (b *Backend) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.importJSON()
}

// Close writes a snapshot when an output directory is configured
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cfg.OutputDir == "" {
		return nil
	}
	return b.exportJSON()
}

// Dump writes a snapshot without closing the backend
func (b *Backend) Dump() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.cfg.OutputDir == "" {
		return fmt.Errorf("memory backend has no output directory")
	}
	return b.exportJSON()
}

// LastExportPath returns the file written by the last snapshot.
func (b *Backend) LastExportPath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

func (b *Backend) stamp(id *string, createdAt, updatedAt *time.Time) {
	if *id == "" {
		*id = uuid.NewString()
	}
	now := b.now()
	if createdAt != nil && createdAt.IsZero() {
		*createdAt = now
	}
	if updatedAt != nil {
		*updatedAt = now
	}
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %q: %w", kind, id, core.ErrNotFound)
}

// CreateRoom stores a new room
func (b *Backend) CreateRoom(ctx context.Context, r *core.Room) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stamp(&r.ID, &r.CreatedAt, &r.UpdatedAt)
	if _, ok := b.data.Rooms[r.ID]; ok {
		return fmt.Errorf("room %q already exists", r.ID)
	}
	room := *r
	room.Views = nil
	b.data.Rooms[r.ID] = room
	return nil
}

// GetRoom returns a room with its views
func (b *Backend) GetRoom(ctx context.Context, id string) (core.Room, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	r, ok := b.data.Rooms[id]
	if !ok {
		return core.Room{}, notFound("room", id)
	}
	r.Views = b.viewsOf(id)
	return r, nil
}

// ListRooms returns all rooms without their views, oldest first
func (b *Backend) ListRooms(ctx context.Context) ([]core.Room, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	rooms := make([]core.Room, 0, len(b.data.Rooms))
	for _, r := range b.data.Rooms {
		rooms = append(rooms, r)
	}
	sort.Slice(rooms, func(i, j int) bool { return older(rooms[i].CreatedAt, rooms[i].ID, rooms[j].CreatedAt, rooms[j].ID) })
	return rooms, nil
}

// DeleteRoom removes a room with its views and their storage areas
func (b *Backend) DeleteRoom(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.data.Rooms[id]; !ok {
		return notFound("room", id)
	}
	for vid, v := range b.data.Views {
		if v.RoomID != id {
			continue
		}
		for aid, a := range b.data.Areas {
			if a.ViewID == vid {
				delete(b.data.Areas, aid)
			}
		}
		delete(b.data.Views, vid)
	}
	delete(b.data.Rooms, id)
	return nil
}

// CreateView stores a new view. The room must exist.
func (b *Backend) CreateView(ctx context.Context, v *core.View) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.data.Rooms[v.RoomID]; !ok {
		return notFound("room", v.RoomID)
	}
	b.stamp(&v.ID, &v.CreatedAt, &v.UpdatedAt)
	if _, ok := b.data.Views[v.ID]; ok {
		return fmt.Errorf("view %q already exists", v.ID)
	}
	b.data.Views[v.ID] = *v
	return nil
}

// GetView returns one view
func (b *Backend) GetView(ctx context.Context, id string) (core.View, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	v, ok := b.data.Views[id]
	if !ok {
		return core.View{}, notFound("view", id)
	}
	return v, nil
}

// ListViews returns the views of a room, oldest first
func (b *Backend) ListViews(ctx context.Context, roomID string) ([]core.View, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.viewsOf(roomID), nil
}

func (b *Backend) viewsOf(roomID string) []core.View {
	views := make([]core.View, 0)
	for _, v := range b.data.Views {
		if v.RoomID == roomID {
			views = append(views, v)
		}
	}
	sort.Slice(views, func(i, j int) bool { return older(views[i].CreatedAt, views[i].ID, views[j].CreatedAt, views[j].ID) })
	return views
}

// UpdateView replaces a stored view
func (b *Backend) UpdateView(ctx context.Context, v *core.View) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	old, ok := b.data.Views[v.ID]
	if !ok {
		return notFound("view", v.ID)
	}
	v.CreatedAt = old.CreatedAt
	b.stamp(&v.ID, nil, &v.UpdatedAt)
	b.data.Views[v.ID] = *v
	return nil
}

// CreateStorageArea stores a new storage area
func (b *Backend) CreateStorageArea(ctx context.Context, a *core.StorageArea) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stamp(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if _, ok := b.data.Areas[a.ID]; ok {
		return fmt.Errorf("storage area %q already exists", a.ID)
	}
	b.data.Areas[a.ID] = *a
	return nil
}

// GetStorageArea returns one storage area
func (b *Backend) GetStorageArea(ctx context.Context, id string) (core.StorageArea, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	a, ok := b.data.Areas[id]
	if !ok {
		return core.StorageArea{}, notFound("storage area", id)
	}
	return a, nil
}

// ListStorageAreas returns the storage areas of a view, oldest first. An empty
// viewID lists every area.
func (b *Backend) ListStorageAreas(ctx context.Context, viewID string) ([]core.StorageArea, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	areas := make([]core.StorageArea, 0)
	for _, a := range b.data.Areas {
		if viewID == "" || a.ViewID == viewID {
			areas = append(areas, a)
		}
	}
	sort.Slice(areas, func(i, j int) bool { return older(areas[i].CreatedAt, areas[i].ID, areas[j].CreatedAt, areas[j].ID) })
	return areas, nil
}

// UpdateStorageArea replaces a stored storage area
func (b *Backend) UpdateStorageArea(ctx context.Context, a *core.StorageArea) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	old, ok := b.data.Areas[a.ID]
	if !ok {
		return notFound("storage area", a.ID)
	}
	a.CreatedAt = old.CreatedAt
	b.stamp(&a.ID, nil, &a.UpdatedAt)
	b.data.Areas[a.ID] = *a
	return nil
}

// DeleteStorageArea removes a storage area
func (b *Backend) DeleteStorageArea(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.data.Areas[id]; !ok {
		return notFound("storage area", id)
	}
	delete(b.data.Areas, id)
	return nil
}

// PutImage stores an image blob
func (b *Backend) PutImage(ctx context.Context, img *core.Image) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stamp(&img.ID, &img.CreatedAt, nil)
	stored := *img
	stored.Data = append([]byte(nil), img.Data...)
	b.data.Images[img.ID] = stored
	return nil
}

// GetImage returns an image blob
func (b *Backend) GetImage(ctx context.Context, id string) (core.Image, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	img, ok := b.data.Images[id]
	if !ok {
		return core.Image{}, notFound("image", id)
	}
	return img, nil
}

func older(at time.Time, aid string, bt time.Time, bid string) bool {
	if !at.Equal(bt) {
		return at.Before(bt)
	}
	return aid < bid
}
