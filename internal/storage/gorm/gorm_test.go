package gormstorage_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kitchen360/catalog/internal/database"
	"github.com/kitchen360/catalog/internal/model"
	"github.com/kitchen360/catalog/internal/storage"
	gormstorage "github.com/kitchen360/catalog/internal/storage/gorm"
	"github.com/kitchen360/catalog/internal/storage/storagetest"
	"github.com/kitchen360/catalog/pkg/core"
)

var _ storage.Backend = (*gormstorage.Backend)(nil)

func newBackend(t *testing.T) *gormstorage.Backend {
	t.Helper()
	db, err := database.OpenSqlite("")
	require.NoError(t, err)
	b := gormstorage.New(gormstorage.Dependencies{DB: db})
	require.NoError(t, b.Init())
	t.Cleanup(func() {
		_ = b.Close()
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return b
}

func TestBackendConformance(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Backend { return newBackend(t) })
}

func TestInit_NoDatabase(t *testing.T) {
	b := gormstorage.New(gormstorage.Dependencies{})
	assert.Error(t, b.Init())
}

func TestListStorageAreas_SkipsUnknownType(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()
	_, view := storagetest.Seed(t, b)

	good := core.StorageArea{ViewID: view.ID, Name: "Shelf", Type: core.AreaShelf}
	require.NoError(t, b.CreateStorageArea(ctx, &good))
	require.NoError(t, b.DB().Create(&model.StorageArea{ID: "bad", ViewID: view.ID, Name: "Bin", Type: "Bin"}).Error)

	areas, err := b.ListStorageAreas(ctx, view.ID)
	require.NoError(t, err)
	require.Len(t, areas, 1)
	assert.Equal(t, good.ID, areas[0].ID)

	_, err = b.GetStorageArea(ctx, "bad")
	assert.Error(t, err)
	assert.False(t, errors.Is(err, core.ErrNotFound))
}

func TestUpdateStorageArea_Missing(t *testing.T) {
	b := newBackend(t)
	err := b.UpdateStorageArea(context.Background(), &core.StorageArea{ID: "nope", Type: core.AreaShelf})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
