// Package postgres implements the storage.Backend interface on PostgreSQL.
// When the server cannot be reached the backend falls back to an in-memory
// SQLite database that is dumped to disk periodically and on Close.
package postgres

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kitchen360/catalog/internal/config"
	"github.com/kitchen360/catalog/internal/database"
	gormstorage "github.com/kitchen360/catalog/internal/storage/gorm"
)

// Config holds configuration for the PostgreSQL backend.
type Config struct {
	Postgres config.PostgresConfig
	// FallbackPath receives dumps of the in-memory SQLite fallback.
	FallbackPath string
	DumpInterval time.Duration
}

// Backend wraps the GORM backend and owns the database manager.
type Backend struct {
	*gormstorage.Backend
	manager  *database.Manager
	cfg      Config
	log      *slog.Logger
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New connects to PostgreSQL, or to the SQLite fallback.
func New(cfg Config, logger *slog.Logger, dbLogger zerolog.Logger) (*Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	manager := database.NewManager(dbLogger)
	if err := manager.Connect(cfg.Postgres, cfg.FallbackPath); err != nil {
		return nil, err
	}

	return &Backend{
		Backend: gormstorage.New(gormstorage.Dependencies{
			DB:       manager.DB,
			Logger:   logger,
			DBLogger: &dbLogger,
		}),
		manager:  manager,
		cfg:      cfg,
		log:      logger.With("component", "postgres"),
		stopChan: make(chan struct{}),
	}, nil
}

// Fallback reports whether the backend is running on the SQLite fallback.
func (b *Backend) Fallback() bool {
	return b.manager.ShouldSaveLocal
}

// Init migrates the schema and starts the fallback dump goroutine.
func (b *Backend) Init() error {
	if err := b.manager.Setup(); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}
	if b.Fallback() && b.cfg.FallbackPath != "" && b.cfg.DumpInterval > 0 {
		b.wg.Add(1)
		go b.dumpLoop()
	}
	return nil
}

// Dump writes the SQLite fallback to disk. It fails when connected to PostgreSQL.
func (b *Backend) Dump() error {
	if !b.Fallback() {
		return errors.New("connected to postgres, nothing to dump")
	}
	return b.manager.DumpMemoryToDisk()
}

// Close stops the dump goroutine, dumps the fallback one last time and closes the pool.
func (b *Backend) Close() error {
	b.stopOnce.Do(func() { close(b.stopChan) })
	b.wg.Wait()

	var errs []error
	if b.Fallback() && b.cfg.FallbackPath != "" {
		errs = append(errs, b.Dump())
	}
	errs = append(errs, b.Backend.Close(), b.manager.Close())
	return errors.Join(errs...)
}

func (b *Backend) dumpLoop() {
	defer b.wg.Done()
	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			if err := b.Dump(); err != nil {
				b.log.Error("Error dumping fallback to disk", "error", err)
			}
		}
	}
}
