package catalogfile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/parquet-go/parquet-go"

	"github.com/kitchen360/catalog/internal/storage"
)

// AreaRow is one storage area flattened with its view and room.
type AreaRow struct {
	ID          string  `parquet:"id"`
	RoomID      string  `parquet:"room_id"`
	RoomName    string  `parquet:"room_name"`
	ViewID      string  `parquet:"view_id"`
	ViewName    string  `parquet:"view_name"`
	Name        string  `parquet:"name"`
	Type        string  `parquet:"type"`
	Description string  `parquet:"description,optional"`
	ImageURL    string  `parquet:"image_url,optional"`
	Yaw         float64 `parquet:"yaw"`
	Pitch       float64 `parquet:"pitch"`
	Zoom        float64 `parquet:"zoom"`
	CreatedAt   int64   `parquet:"created_at_us"`
	UpdatedAt   int64   `parquet:"updated_at_us"`
}

// AreaRows collects every storage area in the backend, grouped by room and view.
func AreaRows(ctx context.Context, b storage.Backend) ([]AreaRow, error) {
	rooms, err := b.ListRooms(ctx)
	if err != nil {
		return nil, err
	}
	rows := []AreaRow{}
	for _, r := range rooms {
		views, err := b.ListViews(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		for _, v := range views {
			areas, err := b.ListStorageAreas(ctx, v.ID)
			if err != nil {
				return nil, err
			}
			for _, a := range areas {
				rows = append(rows, AreaRow{
					ID:          a.ID,
					RoomID:      r.ID,
					RoomName:    r.Name,
					ViewID:      v.ID,
					ViewName:    v.Name,
					Name:        a.Name,
					Type:        string(a.Type),
					Description: a.Description,
					ImageURL:    a.ImageURL,
					Yaw:         a.Position.Yaw,
					Pitch:       a.Position.Pitch,
					Zoom:        a.Position.Zoom,
					CreatedAt:   a.CreatedAt.UnixMicro(),
					UpdatedAt:   a.UpdatedAt.UnixMicro(),
				})
			}
		}
	}
	return rows, nil
}

// WriteParquet writes rows to path, replacing any existing file.
func WriteParquet(path string, rows []AreaRow) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create parquet file: %w", err)
	}

	w := parquet.NewGenericWriter[AreaRow](file)
	if _, err := w.Write(rows); err != nil {
		file.Close()
		return fmt.Errorf("failed to write rows: %w", err)
	}
	if err := w.Close(); err != nil {
		file.Close()
		return fmt.Errorf("failed to finish parquet file: %w", err)
	}
	return file.Close()
}

// ReadParquet loads the rows written by WriteParquet.
func ReadParquet(path string) ([]AreaRow, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet: %w", err)
	}

	reader := parquet.NewGenericReader[AreaRow](pf)
	defer reader.Close()

	records := make([]AreaRow, 0, pf.NumRows())
	batch := make([]AreaRow, 128)
	for {
		n, err := reader.Read(batch)
		records = append(records, batch[:n]...)
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read rows: %w", err)
		}
	}
}
