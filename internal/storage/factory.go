package storage

import (
	"fmt"
	"log/slog"

	"github.com/rs/zerolog"

	"github.com/kitchen360/catalog/internal/config"
	"github.com/kitchen360/catalog/internal/storage/memory"
	"github.com/kitchen360/catalog/internal/storage/postgres"
	sqlitestorage "github.com/kitchen360/catalog/internal/storage/sqlite"
)

// NewBackend creates a storage backend based on configuration. The backend is not
// initialized; callers run Init.
func NewBackend(cfg config.StorageConfig, logger *slog.Logger, dbLogger zerolog.Logger) (Backend, error) {
	switch cfg.Type {
	case "postgres":
		b, err := postgres.New(postgres.Config{
			Postgres:     cfg.Postgres,
			FallbackPath: cfg.SQLite.DumpPath,
			DumpInterval: cfg.SQLite.DumpInterval,
		}, logger, dbLogger)
		if err != nil {
			return nil, err
		}
		return b, nil
	case "sqlite":
		b, err := sqlitestorage.New(cfg.SQLite, logger, &dbLogger)
		if err != nil {
			return nil, err
		}
		return b, nil
	case "memory":
		return memory.New(cfg.Memory), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
