// Package sqlitestorage implements the storage.Backend interface on SQLite.
// With no file path the database lives in memory and is dumped to disk with
// VACUUM INTO on a timer and on Close; the last dump is restored on start.
package sqlitestorage

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/kitchen360/catalog/internal/config"
	"github.com/kitchen360/catalog/internal/database"
	"github.com/kitchen360/catalog/internal/model"
	gormstorage "github.com/kitchen360/catalog/internal/storage/gorm"
)

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstorage.Backend
	db       *gorm.DB
	cfg      config.SQLiteConfig
	log      *slog.Logger
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a new SQLite storage backend.
func New(cfg config.SQLiteConfig, logger *slog.Logger, dbLogger *zerolog.Logger) (*Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := database.OpenSqlite(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite DB: %w", err)
	}

	return &Backend{
		Backend: gormstorage.New(gormstorage.Dependencies{
			DB:       db,
			Logger:   logger,
			DBLogger: dbLogger,
		}),
		db:       db,
		cfg:      cfg,
		log:      logger.With("component", "sqlite"),
		stopChan: make(chan struct{}),
	}, nil
}

func (b *Backend) inMemory() bool {
	return b.cfg.Path == ""
}

// Init migrates the schema, restores the last dump for an in-memory database
// and starts the dump goroutine.
func (b *Backend) Init() error {
	if err := b.Backend.Init(); err != nil {
		return err
	}
	if !b.inMemory() || b.cfg.DumpPath == "" {
		return nil
	}

	if err := b.restore(); err != nil {
		return err
	}
	if b.cfg.DumpInterval > 0 {
		b.wg.Add(1)
		go b.dumpLoop()
	}
	return nil
}

// restore copies every catalog table from the dump file into the in-memory database.
func (b *Backend) restore() error {
	if _, err := os.Stat(b.cfg.DumpPath); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	disk, err := database.OpenSqlite(b.cfg.DumpPath)
	if err != nil {
		return fmt.Errorf("failed to open dump %s: %w", b.cfg.DumpPath, err)
	}
	if sqlDB, err := disk.DB(); err == nil {
		defer sqlDB.Close()
	}

	var rooms []model.Room
	var views []model.View
	var areas []model.StorageArea
	var images []model.Image
	for _, dst := range []any{&rooms, &views, &areas, &images} {
		if err := disk.Find(dst).Error; err != nil {
			return fmt.Errorf("failed to read dump: %w", err)
		}
	}

	err = b.db.Transaction(func(tx *gorm.DB) error {
		batches := []struct {
			rows any
			n    int
		}{
			{&rooms, len(rooms)},
			{&views, len(views)},
			{&areas, len(areas)},
			{&images, len(images)},
		}
		for _, batch := range batches {
			if batch.n == 0 {
				continue
			}
			if err := tx.CreateInBatches(batch.rows, 200).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to restore dump: %w", err)
	}
	b.log.Info("Restored catalog from dump", "path", b.cfg.DumpPath,
		"rooms", len(rooms), "views", len(views), "areas", len(areas), "images", len(images))
	return nil
}

// Dump writes the in-memory database to DumpPath.
func (b *Backend) Dump() error {
	if !b.inMemory() {
		return fmt.Errorf("sqlite database is already on disk at %s", b.cfg.Path)
	}
	start := time.Now()
	if err := database.DumpMemoryDBToDisk(b.db, b.cfg.DumpPath); err != nil {
		return err
	}
	b.log.Debug("Dumped to disk", "path", b.cfg.DumpPath, "duration", time.Since(start))
	return nil
}

// Close stops the dump goroutine, writes a final dump and closes the database.
func (b *Backend) Close() error {
	b.stopOnce.Do(func() { close(b.stopChan) })
	b.wg.Wait()

	var errs []error
	if b.inMemory() && b.cfg.DumpPath != "" {
		errs = append(errs, b.Dump())
	}
	errs = append(errs, b.Backend.Close())
	if sqlDB, err := b.db.DB(); err == nil {
		errs = append(errs, sqlDB.Close())
	}
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
				b.log.Error("Error dumping to disk", "error", err)
			}
		}
	}
}
