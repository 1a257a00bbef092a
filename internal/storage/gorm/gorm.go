// Package gormstorage implements the storage.Backend interface on top of GORM.
// The SQLite and PostgreSQL backends embed it and only add connection handling.
package gormstorage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/kitchen360/catalog/internal/database"
	"github.com/kitchen360/catalog/internal/model"
	"github.com/kitchen360/catalog/internal/model/convert"
	"github.com/kitchen360/catalog/pkg/core"
)

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB     *gorm.DB
	Logger *slog.Logger
	// DBLogger receives schema migration output; nil discards it.
	DBLogger *zerolog.Logger
}

// Backend implements storage.Backend with synchronous GORM queries.
type Backend struct {
	deps Dependencies
	log  *slog.Logger
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Backend{deps: deps, log: log.With("component", "storage")}
}

// DB returns the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init runs schema migration.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return errors.New("gorm backend has no database")
	}
	zl := zerolog.Nop()
	if b.deps.DBLogger != nil {
		zl = *b.deps.DBLogger
	}
	if err := database.Setup(b.deps.DB, zl); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}
	return nil
}

// Close is a no-op; the embedding backend owns the connection.
func (b *Backend) Close() error {
	return nil
}

func (b *Backend) db(ctx context.Context) *gorm.DB {
	return b.deps.DB.WithContext(ctx)
}

// lookup maps gorm.ErrRecordNotFound to core.ErrNotFound.
func lookup(err error, kind, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %q: %w", kind, id, core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to load %s %q: %w", kind, id, err)
	}
	return nil
}

func newID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

// CreateRoom inserts a room. Views are not written.
func (b *Backend) CreateRoom(ctx context.Context, r *core.Room) error {
	newID(&r.ID)
	m := convert.CoreToRoom(*r)
	if err := b.db(ctx).Create(&m).Error; err != nil {
		return fmt.Errorf("failed to insert room: %w", err)
	}
	r.CreatedAt, r.UpdatedAt = m.CreatedAt, m.UpdatedAt
	return nil
}

// GetRoom loads a room with its views.
func (b *Backend) GetRoom(ctx context.Context, id string) (core.Room, error) {
	var m model.Room
	if err := lookup(b.db(ctx).First(&m, "id = ?", id).Error, "room", id); err != nil {
		return core.Room{}, err
	}
	room := convert.RoomToCore(m)
	views, err := b.ListViews(ctx, id)
	if err != nil {
		return core.Room{}, err
	}
	room.Views = views
	return room, nil
}

// ListRooms returns all rooms, oldest first.
func (b *Backend) ListRooms(ctx context.Context) ([]core.Room, error) {
	var rows []model.Room
	if err := b.db(ctx).Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	rooms := make([]core.Room, 0, len(rows))
	for _, m := range rows {
		rooms = append(rooms, convert.RoomToCore(m))
	}
	return rooms, nil
}

// DeleteRoom removes a room, its views and their storage areas in one transaction.
func (b *Backend) DeleteRoom(ctx context.Context, id string) error {
	return b.db(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&model.Room{}, "id = ?", id)
		if res.Error != nil {
			return fmt.Errorf("failed to delete room: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("room %q: %w", id, core.ErrNotFound)
		}

		views := tx.Model(&model.View{}).Select("id").Where("room_id = ?", id)
		if err := tx.Where("view_id IN (?)", views).Delete(&model.StorageArea{}).Error; err != nil {
			return fmt.Errorf("failed to delete storage areas: %w", err)
		}
		if err := tx.Where("room_id = ?", id).Delete(&model.View{}).Error; err != nil {
			return fmt.Errorf("failed to delete views: %w", err)
		}
		return nil
	})
}

// CreateView inserts a view. The room must exist.
func (b *Backend) CreateView(ctx context.Context, v *core.View) error {
	var count int64
	if err := b.db(ctx).Model(&model.Room{}).Where("id = ?", v.RoomID).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check room: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("room %q: %w", v.RoomID, core.ErrNotFound)
	}

	newID(&v.ID)
	m := convert.CoreToView(*v)
	if err := b.db(ctx).Create(&m).Error; err != nil {
		return fmt.Errorf("failed to insert view: %w", err)
	}
	v.CreatedAt, v.UpdatedAt = m.CreatedAt, m.UpdatedAt
	return nil
}

// GetView loads one view.
func (b *Backend) GetView(ctx context.Context, id string) (core.View, error) {
	var m model.View
	if err := lookup(b.db(ctx).First(&m, "id = ?", id).Error, "view", id); err != nil {
		return core.View{}, err
	}
	return convert.ViewToCore(m), nil
}

// ListViews returns the views of a room, oldest first.
func (b *Backend) ListViews(ctx context.Context, roomID string) ([]core.View, error) {
	var rows []model.View
	if err := b.db(ctx).Where("room_id = ?", roomID).Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list views: %w", err)
	}
	views := make([]core.View, 0, len(rows))
	for _, m := range rows {
		views = append(views, convert.ViewToCore(m))
	}
	return views, nil
}

// UpdateView overwrites a view, keeping its creation time.
func (b *Backend) UpdateView(ctx context.Context, v *core.View) error {
	var old model.View
	if err := lookup(b.db(ctx).Select("id", "created_at").First(&old, "id = ?", v.ID).Error, "view", v.ID); err != nil {
		return err
	}
	m := convert.CoreToView(*v)
	m.CreatedAt = old.CreatedAt
	if err := b.db(ctx).Save(&m).Error; err != nil {
		return fmt.Errorf("failed to update view: %w", err)
	}
	v.CreatedAt, v.UpdatedAt = m.CreatedAt, m.UpdatedAt
	return nil
}

// CreateStorageArea inserts a storage area.
func (b *Backend) CreateStorageArea(ctx context.Context, a *core.StorageArea) error {
	newID(&a.ID)
	m := convert.CoreToStorageArea(*a)
	if err := b.db(ctx).Create(&m).Error; err != nil {
		return fmt.Errorf("failed to insert storage area: %w", err)
	}
	a.CreatedAt, a.UpdatedAt = m.CreatedAt, m.UpdatedAt
	b.log.Debug("Storage area created", "id", a.ID, "view", a.ViewID, "type", a.Type)
	return nil
}

// GetStorageArea loads one storage area.
func (b *Backend) GetStorageArea(ctx context.Context, id string) (core.StorageArea, error) {
	var m model.StorageArea
	if err := lookup(b.db(ctx).First(&m, "id = ?", id).Error, "storage area", id); err != nil {
		return core.StorageArea{}, err
	}
	return convert.StorageAreaToCore(m)
}

// ListStorageAreas returns the storage areas of a view, oldest first. An empty
// viewID lists every area. Rows that fail to convert are logged and skipped.
func (b *Backend) ListStorageAreas(ctx context.Context, viewID string) ([]core.StorageArea, error) {
	q := b.db(ctx).Order("created_at, id")
	if viewID != "" {
		q = q.Where("view_id = ?", viewID)
	}
	var rows []model.StorageArea
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list storage areas: %w", err)
	}

	areas := make([]core.StorageArea, 0, len(rows))
	for _, m := range rows {
		a, err := convert.StorageAreaToCore(m)
		if err != nil {
			b.log.Warn("Skipping unreadable storage area", "error", err)
			continue
		}
		areas = append(areas, a)
	}
	return areas, nil
}

// UpdateStorageArea overwrites a storage area, keeping its creation time.
func (b *Backend) UpdateStorageArea(ctx context.Context, a *core.StorageArea) error {
	var old model.StorageArea
	if err := lookup(b.db(ctx).Select("id", "created_at").First(&old, "id = ?", a.ID).Error, "storage area", a.ID); err != nil {
		return err
	}
	m := convert.CoreToStorageArea(*a)
	m.CreatedAt = old.CreatedAt
	if err := b.db(ctx).Save(&m).Error; err != nil {
		return fmt.Errorf("failed to update storage area: %w", err)
	}
	a.CreatedAt, a.UpdatedAt = m.CreatedAt, m.UpdatedAt
	return nil
}

// DeleteStorageArea removes a storage area.
func (b *Backend) DeleteStorageArea(ctx context.Context, id string) error {
	res := b.db(ctx).Delete(&model.StorageArea{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete storage area: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("storage area %q: %w", id, core.ErrNotFound)
	}
	return nil
}

// PutImage inserts an image blob.
func (b *Backend) PutImage(ctx context.Context, img *core.Image) error {
	newID(&img.ID)
	m := convert.CoreToImage(*img)
	if err := b.db(ctx).Create(&m).Error; err != nil {
		return fmt.Errorf("failed to insert image: %w", err)
	}
	img.CreatedAt = m.CreatedAt
	return nil
}

// GetImage loads an image blob.
func (b *Backend) GetImage(ctx context.Context, id string) (core.Image, error) {
	var m model.Image
	if err := lookup(b.db(ctx).First(&m, "id = ?", id).Error, "image", id); err != nil {
		return core.Image{}, err
	}
	return convert.ImageToCore(m), nil
}
