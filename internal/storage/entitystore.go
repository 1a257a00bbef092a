package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/kitchen360/catalog/pkg/core"
)

// ErrUnsupportedKind is returned for entity kinds the catalog does not persist.
var ErrUnsupportedKind = errors.New("entity kind is not persisted")

// ErrNoView is returned when a storage area has no view to belong to.
var ErrNoView = errors.New("no view selected")

// ImagePath is the URL prefix under which stored images are served.
const ImagePath = "/api/images/"

// ViewSource reports the view new entities are placed in.
type ViewSource interface {
	ViewID() string
}

// EntityStore creates storage areas from the hotspot controller's creation data.
type EntityStore struct {
	backend Backend
	views   ViewSource
}

// NewEntityStore creates an EntityStore. views may be nil when every creation
// names its view.
func NewEntityStore(b Backend, views ViewSource) *EntityStore {
	return &EntityStore{backend: b, views: views}
}

// Create stores an uploaded image, if any, then the storage area.
func (s *EntityStore) Create(ctx context.Context, data core.CreationData) (core.Entity, error) {
	if data.Kind != core.KindStorageArea {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKind, data.Kind)
	}
	viewID := data.ViewID
	if viewID == "" && s.views != nil {
		viewID = s.views.ViewID()
	}
	if viewID == "" {
		return nil, ErrNoView
	}

	imageURL := data.ImageURL
	if data.Image != nil && len(data.Image.Data) > 0 {
		contentType := data.Image.ContentType
		if contentType == "" {
			contentType = http.DetectContentType(data.Image.Data)
		}
		img := core.Image{ContentType: contentType, Data: data.Image.Data}
		if err := s.backend.PutImage(ctx, &img); err != nil {
			return nil, fmt.Errorf("store image: %w", err)
		}
		imageURL = ImagePath + img.ID
	}

	area := core.StorageArea{
		ViewID:      viewID,
		Name:        data.Name,
		Type:        data.AreaType,
		Description: data.Description,
		Position:    data.Position,
		ImageURL:    imageURL,
	}
	if err := s.backend.CreateStorageArea(ctx, &area); err != nil {
		return nil, fmt.Errorf("store storage area: %w", err)
	}
	return area, nil
}

// Get loads a storage area by id.
func (s *EntityStore) Get(ctx context.Context, id string) (core.Entity, error) {
	area, err := s.backend.GetStorageArea(ctx, id)
	if err != nil {
		return nil, err
	}
	return area, nil
}

// Entities lists the storage areas of a view as entities.
func (s *EntityStore) Entities(ctx context.Context, viewID string) ([]core.Entity, error) {
	areas, err := s.backend.ListStorageAreas(ctx, viewID)
	if err != nil {
		return nil, err
	}
	list := make([]core.Entity, 0, len(areas))
	for _, a := range areas {
		list = append(list, a)
	}
	return list, nil
}
