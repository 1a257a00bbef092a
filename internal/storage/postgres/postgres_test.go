package postgres_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kitchen360/catalog/internal/config"
	"github.com/kitchen360/catalog/internal/storage"
	"github.com/kitchen360/catalog/internal/storage/postgres"
	"github.com/kitchen360/catalog/internal/storage/storagetest"
)

var (
	_ storage.Backend  = (*postgres.Backend)(nil)
	_ storage.Dumpable = (*postgres.Backend)(nil)
)

// unreachable points at a port nothing listens on, forcing the SQLite fallback.
var unreachable = config.PostgresConfig{Host: "127.0.0.1", Port: "1", Username: "x", Password: "x", Database: "x"}

func TestFallbackConformance(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Backend {
		b, err := postgres.New(postgres.Config{Postgres: unreachable}, nil, zerolog.Nop())
		require.NoError(t, err)
		require.NoError(t, b.Init())
		t.Cleanup(func() { _ = b.Close() })
		require.True(t, b.Fallback())
		return b
	})
}

func TestFallbackDumpsOnClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fallback.db")
	b, err := postgres.New(postgres.Config{Postgres: unreachable, FallbackPath: path}, nil, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, b.Init())
	storagetest.Seed(t, b)

	require.NoError(t, b.Close())
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

// TestLiveConformance runs against a real server when KITCHEN360_TEST_PG_HOST is set.
func TestLiveConformance(t *testing.T) {
	host := os.Getenv("KITCHEN360_TEST_PG_HOST")
	if host == "" {
		t.Skip("KITCHEN360_TEST_PG_HOST not set")
	}
	cfg := config.PostgresConfig{
		Host:     host,
		Port:     envOr("KITCHEN360_TEST_PG_PORT", "5432"),
		Username: envOr("KITCHEN360_TEST_PG_USER", "postgres"),
		Password: envOr("KITCHEN360_TEST_PG_PASSWORD", "postgres"),
		Database: envOr("KITCHEN360_TEST_PG_DATABASE", "kitchen360_test"),
	}

	storagetest.Run(t, func(t *testing.T) storage.Backend {
		b, err := postgres.New(postgres.Config{Postgres: cfg}, nil, zerolog.Nop())
		require.NoError(t, err)
		require.False(t, b.Fallback())
		require.NoError(t, b.Init())
		db := b.DB()
		for _, table := range []string{"storage_areas", "views", "rooms", "images"} {
			require.NoError(t, db.Exec("DELETE FROM "+table).Error)
		}
		t.Cleanup(func() { _ = b.Close() })
		return b
	})
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
