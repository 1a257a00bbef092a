// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"encoding/json"
	"fmt"

	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/kitchen360/catalog/internal/geo"
	"github.com/kitchen360/catalog/internal/model"
	"github.com/kitchen360/catalog/pkg/core"
)

// pointToPosition reads a stored position. Rows written before a position was set
// hold an empty point and come back as the zero position.
func pointToPosition(p geom.Point) core.Position {
	pos, err := geo.PositionFromPoint(p)
	if err != nil {
		return core.Position{}
	}
	return pos
}

// RoomToCore converts a GORM Room to a core.Room. Views are not loaded.
func RoomToCore(r model.Room) core.Room {
	var metadata map[string]string
	if len(r.Metadata) > 0 {
		_ = json.Unmarshal(r.Metadata, &metadata)
	}

	return core.Room{
		ID:          r.ID,
		Name:        r.Name,
		Type:        r.Type,
		Description: r.Description,
		LayoutType:  r.LayoutType,
		Metadata:    metadata,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// ViewToCore converts a GORM View to a core.View.
func ViewToCore(v model.View) core.View {
	var connections []core.ViewConnection
	if len(v.Connections) > 0 {
		_ = json.Unmarshal(v.Connections, &connections)
	}

	return core.View{
		ID:          v.ID,
		RoomID:      v.RoomID,
		Name:        v.Name,
		Description: v.Description,
		ImageURL:    v.ImageURL,
		Position:    pointToPosition(v.Position),
		Connections: connections,
		CreatedAt:   v.CreatedAt,
		UpdatedAt:   v.UpdatedAt,
	}
}

// StorageAreaToCore converts a GORM StorageArea to a core.StorageArea.
// Unknown area types are an error: the row was not written by this package.
func StorageAreaToCore(a model.StorageArea) (core.StorageArea, error) {
	areaType, err := core.ParseStorageAreaType(a.Type)
	if err != nil {
		return core.StorageArea{}, fmt.Errorf("storage area %s: %w", a.ID, err)
	}

	return core.StorageArea{
		ID:          a.ID,
		ViewID:      a.ViewID,
		Name:        a.Name,
		Type:        areaType,
		Description: a.Description,
		Position:    pointToPosition(a.Position),
		ImageURL:    a.ImageURL,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}, nil
}

// ImageToCore converts a GORM Image to a core.Image.
func ImageToCore(img model.Image) core.Image {
	return core.Image{
		ID:          img.ID,
		ContentType: img.ContentType,
		Data:        img.Data,
		CreatedAt:   img.CreatedAt,
	}
}
