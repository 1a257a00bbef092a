// Package storagetest runs the same behavioural checks against every storage backend.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kitchen360/catalog/internal/storage"
	"github.com/kitchen360/catalog/pkg/core"
)

// Factory returns a fresh, initialized backend.
type Factory func(t *testing.T) storage.Backend

// Run exercises the full storage.Backend contract.
func Run(t *testing.T, newBackend Factory) {
	t.Run("Rooms", func(t *testing.T) { testRooms(t, newBackend(t)) })
	t.Run("Views", func(t *testing.T) { testViews(t, newBackend(t)) })
	t.Run("StorageAreas", func(t *testing.T) { testStorageAreas(t, newBackend(t)) })
	t.Run("DeleteRoomCascades", func(t *testing.T) { testDeleteRoomCascades(t, newBackend(t)) })
	t.Run("Images", func(t *testing.T) { testImages(t, newBackend(t)) })
	t.Run("NotFound", func(t *testing.T) { testNotFound(t, newBackend(t)) })
}

// Seed creates a room with one view and returns both.
func Seed(t *testing.T, b storage.Backend) (core.Room, core.View) {
	t.Helper()
	ctx := context.Background()

	room := core.Room{Name: "Kitchen", Type: "kitchen", Metadata: map[string]string{"floor": "0"}}
	require.NoError(t, b.CreateRoom(ctx, &room))

	view := core.View{
		RoomID:   room.ID,
		Name:     "By the sink",
		ImageURL: "/api/images/pano",
		Position: core.Position{Yaw: 0.5, Pitch: 0, Zoom: 50},
		Connections: []core.ViewConnection{
			{TargetViewID: "other", Position: core.Position{Yaw: 3.1, Zoom: 50}, Type: core.ConnectionDoor},
		},
	}
	require.NoError(t, b.CreateView(ctx, &view))
	return room, view
}

func testRooms(t *testing.T, b storage.Backend) {
	ctx := context.Background()
	room, view := Seed(t, b)

	assert.NotEmpty(t, room.ID)
	assert.False(t, room.CreatedAt.IsZero())

	got, err := b.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, "Kitchen", got.Name)
	assert.Equal(t, map[string]string{"floor": "0"}, got.Metadata)
	require.Len(t, got.Views, 1)
	assert.Equal(t, view.ID, got.Views[0].ID)

	second := core.Room{ID: "pantry", Name: "Pantry", CreatedAt: room.CreatedAt.Add(time.Hour)}
	require.NoError(t, b.CreateRoom(ctx, &second))

	rooms, err := b.ListRooms(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, room.ID, rooms[0].ID)
	assert.Equal(t, "pantry", rooms[1].ID)

	assert.Error(t, b.CreateRoom(ctx, &core.Room{ID: "pantry", Name: "Again"}))
}

func testViews(t *testing.T, b storage.Backend) {
	ctx := context.Background()
	room, view := Seed(t, b)

	got, err := b.GetView(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, room.ID, got.RoomID)
	assert.True(t, got.Position.ApproxEqual(core.Position{Yaw: 0.5, Zoom: 50}, 1e-12))
	require.Len(t, got.Connections, 1)
	assert.Equal(t, core.ConnectionDoor, got.Connections[0].Type)

	got.Name = "By the window"
	got.Position = core.Position{Yaw: 2, Pitch: 0.1, Zoom: 30}
	require.NoError(t, b.UpdateView(ctx, &got))

	again, err := b.GetView(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, "By the window", again.Name)
	assert.Equal(t, 2.0, again.Position.Yaw)
	assert.True(t, again.CreatedAt.Equal(view.CreatedAt))

	views, err := b.ListViews(ctx, room.ID)
	require.NoError(t, err)
	assert.Len(t, views, 1)

	views, err = b.ListViews(ctx, "nowhere")
	require.NoError(t, err)
	assert.Empty(t, views)
}

func testStorageAreas(t *testing.T, b storage.Backend) {
	ctx := context.Background()
	_, view := Seed(t, b)

	first := core.StorageArea{
		ViewID:   view.ID,
		Name:     "Spice drawer",
		Type:     core.AreaDrawer,
		Position: core.Position{Yaw: 1.2, Pitch: -0.3, Zoom: 40},
	}
	require.NoError(t, b.CreateStorageArea(ctx, &first))
	require.NotEmpty(t, first.ID)

	second := core.StorageArea{
		ViewID:    view.ID,
		Name:      "Pots cabinet",
		Type:      core.AreaCabinet,
		Position:  core.Position{Yaw: 4, Pitch: -0.5, Zoom: 50},
		CreatedAt: first.CreatedAt.Add(time.Second),
	}
	require.NoError(t, b.CreateStorageArea(ctx, &second))

	elsewhere := core.StorageArea{ViewID: "other", Name: "Broom", Type: core.AreaCustom}
	require.NoError(t, b.CreateStorageArea(ctx, &elsewhere))

	areas, err := b.ListStorageAreas(ctx, view.ID)
	require.NoError(t, err)
	require.Len(t, areas, 2)
	assert.Equal(t, first.ID, areas[0].ID)
	assert.Equal(t, second.ID, areas[1].ID)
	assert.True(t, areas[0].Position.ApproxEqual(core.Position{Yaw: 1.2, Pitch: -0.3, Zoom: 40}, 1e-12))

	all, err := b.ListStorageAreas(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	first.Description = "Top left"
	require.NoError(t, b.UpdateStorageArea(ctx, &first))
	got, err := b.GetStorageArea(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "Top left", got.Description)
	assert.Equal(t, core.AreaDrawer, got.Type)

	require.NoError(t, b.DeleteStorageArea(ctx, first.ID))
	_, err = b.GetStorageArea(ctx, first.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, b.DeleteStorageArea(ctx, first.ID), storage.ErrNotFound)
}

func testDeleteRoomCascades(t *testing.T, b storage.Backend) {
	ctx := context.Background()
	room, view := Seed(t, b)

	area := core.StorageArea{ViewID: view.ID, Name: "Shelf", Type: core.AreaShelf}
	require.NoError(t, b.CreateStorageArea(ctx, &area))

	require.NoError(t, b.DeleteRoom(ctx, room.ID))

	_, err := b.GetRoom(ctx, room.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = b.GetView(ctx, view.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = b.GetStorageArea(ctx, area.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testImages(t *testing.T, b storage.Backend) {
	ctx := context.Background()

	img := core.Image{ContentType: "image/jpeg", Data: []byte{0xff, 0xd8, 0xff}}
	require.NoError(t, b.PutImage(ctx, &img))
	require.NotEmpty(t, img.ID)

	got, err := b.GetImage(ctx, img.ID)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", got.ContentType)
	assert.Equal(t, []byte{0xff, 0xd8, 0xff}, got.Data)
}

func testNotFound(t *testing.T, b storage.Backend) {
	ctx := context.Background()

	_, err := b.GetRoom(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = b.GetView(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = b.GetStorageArea(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = b.GetImage(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.ErrorIs(t, b.DeleteRoom(ctx, "missing"), storage.ErrNotFound)
	assert.ErrorIs(t, b.UpdateView(ctx, &core.View{ID: "missing"}), storage.ErrNotFound)
	assert.ErrorIs(t, b.UpdateStorageArea(ctx, &core.StorageArea{ID: "missing", Type: core.AreaShelf}), storage.ErrNotFound)
	assert.ErrorIs(t, b.CreateView(ctx, &core.View{RoomID: "missing"}), storage.ErrNotFound)
}
