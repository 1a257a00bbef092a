package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kitchen360/catalog/internal/config"
	"github.com/kitchen360/catalog/internal/model"
)

func TestOpenSqlite_InMemoryIsolated(t *testing.T) {
	a, err := OpenSqlite("")
	require.NoError(t, err)
	b, err := OpenSqlite("")
	require.NoError(t, err)

	require.NoError(t, Setup(a, zerolog.Nop()))

	assert.True(t, a.Migrator().HasTable(&model.StorageArea{}))
	assert.False(t, b.Migrator().HasTable(&model.StorageArea{}))
}

func TestSetup_Idempotent(t *testing.T) {
	db, err := OpenSqlite("")
	require.NoError(t, err)

	require.NoError(t, Setup(db, zerolog.Nop()))
	require.NoError(t, Setup(db, zerolog.Nop()))

	var infos []model.CatalogInfo
	require.NoError(t, db.Find(&infos).Error)
	require.Len(t, infos, 1)
	assert.Equal(t, SchemaVersion, infos[0].SchemaVersion)

	for _, m := range model.DatabaseModels {
		assert.True(t, db.Migrator().HasTable(m), "%T not migrated", m)
	}
}

func TestDumpMemoryDBToDisk(t *testing.T) {
	db, err := OpenSqlite("")
	require.NoError(t, err)
	require.NoError(t, Setup(db, zerolog.Nop()))
	require.NoError(t, db.Create(&model.Room{ID: "r1", Name: "Kitchen"}).Error)

	path := filepath.Join(t.TempDir(), "dump.db")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0644))
	require.NoError(t, DumpMemoryDBToDisk(db, path))

	disk, err := OpenSqlite(path)
	require.NoError(t, err)
	var room model.Room
	require.NoError(t, disk.First(&room, "id = ?", "r1").Error)
	assert.Equal(t, "Kitchen", room.Name)
}

func TestDumpMemoryDBToDisk_NoPath(t *testing.T) {
	db, err := OpenSqlite("")
	require.NoError(t, err)
	assert.Error(t, DumpMemoryDBToDisk(db, ""))
}

func TestManager_ConnectFallsBackToSqlite(t *testing.T) {
	m := NewManager(zerolog.Nop())
	pg := config.PostgresConfig{Host: "127.0.0.1", Port: "1", Username: "x", Password: "x", Database: "x"}

	require.NoError(t, m.Connect(pg, filepath.Join(t.TempDir(), "fallback.db")))
	t.Cleanup(func() { _ = m.Close() })

	assert.True(t, m.IsValid)
	assert.True(t, m.ShouldSaveLocal)
	assert.Equal(t, "sqlite", m.DB.Dialector.Name())

	require.NoError(t, m.Setup())
	require.NoError(t, m.DumpMemoryToDisk())
	_, err := os.Stat(m.SqliteFilePath)
	assert.NoError(t, err)
}
