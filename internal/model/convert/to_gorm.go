package convert

import (
	"encoding/json"

	"gorm.io/datatypes"

	"github.com/kitchen360/catalog/internal/geo"
	"github.com/kitchen360/catalog/internal/model"
	"github.com/kitchen360/catalog/pkg/core"
)

// metadataToJSON converts room metadata to datatypes.JSON for DB storage.
func metadataToJSON(m map[string]string) datatypes.JSON {
	if len(m) == 0 {
		return datatypes.JSON("{}")
	}
	data, _ := json.Marshal(m)
	return datatypes.JSON(data)
}

// connectionsToJSON converts view connections to datatypes.JSON for DB storage.
func connectionsToJSON(c []core.ViewConnection) datatypes.JSON {
	if len(c) == 0 {
		return datatypes.JSON("[]")
	}
	data, _ := json.Marshal(c)
	return datatypes.JSON(data)
}

// CoreToRoom converts a core.Room to a GORM model.Room. Views are stored separately.
func CoreToRoom(r core.Room) model.Room {
	return model.Room{
		ID:          r.ID,
		Name:        r.Name,
		Type:        r.Type,
		Description: r.Description,
		LayoutType:  r.LayoutType,
		Metadata:    metadataToJSON(r.Metadata),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// CoreToView converts a core.View to a GORM model.View.
func CoreToView(v core.View) model.View {
	return model.View{
		ID:          v.ID,
		RoomID:      v.RoomID,
		Name:        v.Name,
		Description: v.Description,
		ImageURL:    v.ImageURL,
		Position:    geo.PointFromPosition(v.Position),
		Connections: connectionsToJSON(v.Connections),
		CreatedAt:   v.CreatedAt,
		UpdatedAt:   v.UpdatedAt,
	}
}

// CoreToStorageArea converts a core.StorageArea to a GORM model.StorageArea.
func CoreToStorageArea(a core.StorageArea) model.StorageArea {
	return model.StorageArea{
		ID:          a.ID,
		ViewID:      a.ViewID,
		Name:        a.Name,
		Type:        string(a.Type),
		Description: a.Description,
		Position:    geo.PointFromPosition(a.Position),
		ImageURL:    a.ImageURL,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

// CoreToImage converts a core.Image to a GORM model.Image.
func CoreToImage(img core.Image) model.Image {
	return model.Image{
		ID:          img.ID,
		ContentType: img.ContentType,
		Data:        img.Data,
		CreatedAt:   img.CreatedAt,
	}
}
