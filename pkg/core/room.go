// pkg/core/room.go
package core

import "time"

// Room groups the views taken inside one physical room.
type Room struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Type        string            `json:"type"`
	Description string            `json:"description"`
	LayoutType  string            `json:"layoutType"`
	Views       []View            `json:"views"`
	Metadata    map[string]string `json:"metadata"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// ConnectionType is how two views are joined.
type ConnectionType string

const (
	ConnectionDoor    ConnectionType = "door"
	ConnectionArchway ConnectionType = "archway"
	ConnectionOpening ConnectionType = "opening"
	ConnectionCustom  ConnectionType = "custom"
)

// ViewConnection links a point in one view to another view.
type ViewConnection struct {
	TargetViewID string         `json:"targetViewId"`
	Position     Position       `json:"position"`
	Type         ConnectionType `json:"type"`
}

// View is one panorama taken inside a room.
type View struct {
	ID          string           `json:"id"`
	RoomID      string           `json:"roomId"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	ImageURL    string           `json:"imageUrl"`
	Position    Position         `json:"position"`
	Connections []ViewConnection `json:"connections"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// Image is a stored image blob.
type Image struct {
	ID          string
	ContentType string
	Data        []byte
	CreatedAt   time.Time
}
