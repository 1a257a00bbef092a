package memory

import (
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	v1 "github.com/kitchen360/catalog/internal/storage/memory/export/v1"
)

// snapshotName is the file written in the output directory, without extension.
const snapshotName = "catalog"

func (b *Backend) snapshotPath() string {
	name := snapshotName + ".json"
	if b.cfg.CompressOutput {
		name += ".gz"
	}
	return filepath.Join(b.cfg.OutputDir, name)
}

// exportJSON writes the catalog to a (optionally gzipped) JSON file, through a
// temporary file renamed into place.
func (b *Backend) exportJSON() error {
	export := v1.Build(b.data, b.now())

	// Ensure output directory exists
	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	outputPath := b.snapshotPath()
	tmp := outputPath + ".tmp"

	var err error
	if b.cfg.CompressOutput {
		err = writeGzipJSON(tmp, export)
	} else {
		err = writeJSON(tmp, export)
	}
	if err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, outputPath); err != nil {
		return fmt.Errorf("failed to move snapshot into place: %w", err)
	}

	b.lastExportPath = outputPath
	return nil
}

// importJSON loads the snapshot written by exportJSON. A missing file is not an error.
func (b *Backend) importJSON() error {
	if b.cfg.OutputDir == "" {
		return nil
	}

	f, err := os.Open(b.snapshotPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if b.cfg.CompressOutput {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("failed to open gzip snapshot: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	var export v1.Export
	if err := json.NewDecoder(r).Decode(&export); err != nil {
		return fmt.Errorf("failed to decode snapshot: %w", err)
	}
	data, err := v1.Restore(export)
	if err != nil {
		return fmt.Errorf("failed to restore snapshot: %w", err)
	}
	b.data = data
	return nil
}

func writeJSON(path string, data v1.Export) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	return encoder.Encode(data)
}

func writeGzipJSON(path string, data v1.Export) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	encoder := json.NewEncoder(gzWriter)
	if err := encoder.Encode(data); err != nil {
		_ = gzWriter.Close()
		return err
	}
	return gzWriter.Close()
}
