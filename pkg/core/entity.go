// pkg/core/entity.go
package core

import (
	"fmt"
	"time"
)

// Entity is anything that owns a Position and wants a marker while displayed.
type Entity interface {
	EntityID() string
	EntityPosition() Position
	Marker() MarkerDescriptor
}

// EntityKind distinguishes the two marker-bearing entity types.
type EntityKind string

const (
	KindHotspot     EntityKind = "hotspot"
	KindStorageArea EntityKind = "storage_area"
)

// Hotspot is a point of interest in a view.
type Hotspot struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Position    Position    `json:"position"`
	Description string      `json:"description,omitempty"`
	RenderKind  ContentKind `json:"renderKind"`
	// Body is rendered according to RenderKind; Name is used when empty.
	Body string `json:"body,omitempty"`
}

func (h Hotspot) EntityID() string         { return h.ID }
func (h Hotspot) EntityPosition() Position { return h.Position }

// Marker renders the hotspot according to its RenderKind.
func (h Hotspot) Marker() MarkerDescriptor {
	body := h.Body
	if body == "" {
		body = h.Name
	}
	content, err := NewContent(h.RenderKind, body)
	if err != nil {
		content = PlainText(body)
	}
	return MarkerDescriptor{ID: h.ID, Position: h.Position, Content: content}
}

// StorageAreaType enumerates the kinds of storage a marker can describe.
type StorageAreaType string

const (
	AreaCabinet StorageAreaType = "Cabinet"
	AreaDrawer  StorageAreaType = "Drawer"
	AreaShelf   StorageAreaType = "Shelf"
	AreaCustom  StorageAreaType = "Custom"
)

// ParseStorageAreaType accepts the four known types, case-sensitive.
func ParseStorageAreaType(s string) (StorageAreaType, error) {
	switch t := StorageAreaType(s); t {
	case AreaCabinet, AreaDrawer, AreaShelf, AreaCustom:
		return t, nil
	default:
		return "", fmt.Errorf("unknown storage area type %q", s)
	}
}

// StorageArea is a cabinet, drawer or shelf inside a view.
type StorageArea struct {
	ID          string          `json:"id"`
	ViewID      string          `json:"viewId"`
	Name        string          `json:"name"`
	Type        StorageAreaType `json:"type"`
	Description string          `json:"description"`
	Position    Position        `json:"position"`
	ImageURL    string          `json:"imageUrl"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

func (a StorageArea) EntityID() string         { return a.ID }
func (a StorageArea) EntityPosition() Position { return a.Position }

// Marker renders the storage area as a labelled marker.
func (a StorageArea) Marker() MarkerDescriptor {
	return MarkerDescriptor{ID: a.ID, Position: a.Position, Content: StorageMarkerHTML(a.Name)}
}

// ImageUpload is raw image data attached to a creation request.
type ImageUpload struct {
	ContentType string `json:"contentType"`
	Data        []byte `json:"data"`
}

// CreationData is the user-entered part of a new entity. Position is filled in by
// the hotspot controller from the pending click.
type CreationData struct {
	Kind        EntityKind      `json:"kind"`
	ViewID      string          `json:"viewId,omitempty"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	AreaType    StorageAreaType `json:"areaType,omitempty"`
	RenderKind  ContentKind     `json:"renderKind,omitempty"`
	ImageURL    string          `json:"imageUrl,omitempty"`
	Image       *ImageUpload    `json:"image,omitempty"`
	Position    Position        `json:"position"`
}

// Validate checks the fields every backend relies on.
func (d CreationData) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("name is required")
	}
	switch d.Kind {
	case KindStorageArea:
		if _, err := ParseStorageAreaType(string(d.AreaType)); err != nil {
			return err
		}
	case KindHotspot:
	default:
		return fmt.Errorf("unknown entity kind %q", d.Kind)
	}
	return nil
}
