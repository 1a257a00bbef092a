package v1

import (
	"fmt"
	"sort"
	"time"

	"github.com/kitchen360/catalog/pkg/core"
)

// CatalogData is the full catalog keyed by id.
type CatalogData struct {
	Rooms  map[string]core.Room
	Views  map[string]core.View
	Areas  map[string]core.StorageArea
	Images map[string]core.Image
}

// NewCatalogData returns empty, initialized maps.
func NewCatalogData() *CatalogData {
	return &CatalogData{
		Rooms:  make(map[string]core.Room),
		Views:  make(map[string]core.View),
		Areas:  make(map[string]core.StorageArea),
		Images: make(map[string]core.Image),
	}
}

// Build converts catalog data to the v1 export format. Records are ordered by
// creation time, then id, so repeated exports of the same data are identical.
func Build(data *CatalogData, at time.Time) Export {
	export := Export{
		Version:      Version,
		ExportedAt:   at.UTC(),
		Rooms:        make([]core.Room, 0, len(data.Rooms)),
		Views:        make([]core.View, 0, len(data.Views)),
		StorageAreas: make([]core.StorageArea, 0, len(data.Areas)),
		Images:       make([]Image, 0, len(data.Images)),
	}

	for _, r := range data.Rooms {
		r.Views = nil
		export.Rooms = append(export.Rooms, r)
	}
	sort.Slice(export.Rooms, func(i, j int) bool {
		return before(export.Rooms[i].CreatedAt, export.Rooms[i].ID, export.Rooms[j].CreatedAt, export.Rooms[j].ID)
	})

	for _, v := range data.Views {
		export.Views = append(export.Views, v)
	}
	sort.Slice(export.Views, func(i, j int) bool {
		return before(export.Views[i].CreatedAt, export.Views[i].ID, export.Views[j].CreatedAt, export.Views[j].ID)
	})

	for _, a := range data.Areas {
		export.StorageAreas = append(export.StorageAreas, a)
	}
	sort.Slice(export.StorageAreas, func(i, j int) bool {
		a, b := export.StorageAreas[i], export.StorageAreas[j]
		return before(a.CreatedAt, a.ID, b.CreatedAt, b.ID)
	})

	for _, img := range data.Images {
		export.Images = append(export.Images, Image{
			ID:          img.ID,
			ContentType: img.ContentType,
			Data:        img.Data,
			CreatedAt:   img.CreatedAt,
		})
	}
	sort.Slice(export.Images, func(i, j int) bool {
		a, b := export.Images[i], export.Images[j]
		return before(a.CreatedAt, a.ID, b.CreatedAt, b.ID)
	})

	return export
}

// Restore rebuilds catalog data from an export. Records without an id and
// duplicate ids are rejected.
func Restore(export Export) (*CatalogData, error) {
	if export.Version != Version {
		return nil, fmt.Errorf("unsupported snapshot version %d", export.Version)
	}

	data := NewCatalogData()
	for _, r := range export.Rooms {
		if err := checkID("room", r.ID, data.Rooms); err != nil {
			return nil, err
		}
		data.Rooms[r.ID] = r
	}
	for _, v := range export.Views {
		if err := checkID("view", v.ID, data.Views); err != nil {
			return nil, err
		}
		data.Views[v.ID] = v
	}
	for _, a := range export.StorageAreas {
		if err := checkID("storage area", a.ID, data.Areas); err != nil {
			return nil, err
		}
		data.Areas[a.ID] = a
	}
	for _, img := range export.Images {
		if err := checkID("image", img.ID, data.Images); err != nil {
			return nil, err
		}
		data.Images[img.ID] = core.Image{
			ID:          img.ID,
			ContentType: img.ContentType,
			Data:        img.Data,
			CreatedAt:   img.CreatedAt,
		}
	}
	return data, nil
}

func checkID[T any](kind, id string, seen map[string]T) error {
	if id == "" {
		return fmt.Errorf("%s without id", kind)
	}
	if _, ok := seen[id]; ok {
		return fmt.Errorf("duplicate %s id %q", kind, id)
	}
	return nil
}

func before(at time.Time, id string, bt time.Time, bid string) bool {
	if !at.Equal(bt) {
		return at.Before(bt)
	}
	return id < bid
}
