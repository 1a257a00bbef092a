package model

import (
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&CatalogInfo{},
	&Room{},
	&View{},
	&StorageArea{},
	&Image{},
}

////////////////////////
// SYSTEM MODELS
////////////////////////

// CatalogInfo describes the catalog instance. One row is created on first setup.
type CatalogInfo struct {
	gorm.Model
	Name          string `json:"name" gorm:"size:127"`
	Description   string `json:"description" gorm:"size:255"`
	SchemaVersion int    `json:"schemaVersion"`
}

func (*CatalogInfo) TableName() string {
	return "catalog_infos"
}

////////////////////////
// CATALOG MODELS
////////////////////////

// Room groups views taken in one physical room
type Room struct {
	ID          string         `json:"id" gorm:"primaryKey;size:36"`
	Name        string         `json:"name" gorm:"size:127;not null"`
	Type        string         `json:"type" gorm:"size:63"`
	Description string         `json:"description"`
	LayoutType  string         `json:"layoutType" gorm:"size:63"`
	Metadata    datatypes.JSON `json:"metadata"` // map[string]string
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

func (*Room) TableName() string {
	return "rooms"
}

// View is one panorama inside a room
type View struct {
	ID          string         `json:"id" gorm:"primaryKey;size:36"`
	RoomID      string         `json:"roomId" gorm:"size:36;index:idx_view_room_id"`
	Name        string         `json:"name" gorm:"size:127"`
	Description string         `json:"description"`
	ImageURL    string         `json:"imageUrl" gorm:"size:512"`
	Position    geom.Point     `json:"position"`    // initial camera: X yaw, Y pitch, Z zoom
	Connections datatypes.JSON `json:"connections"` // []core.ViewConnection
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

func (*View) TableName() string {
	return "views"
}

// StorageArea is a cabinet, drawer, shelf or custom area marked in a view
type StorageArea struct {
	ID          string     `json:"id" gorm:"primaryKey;size:36"`
	ViewID      string     `json:"viewId" gorm:"size:36;index:idx_storage_area_view_id"`
	Name        string     `json:"name" gorm:"size:127;not null"`
	Type        string     `json:"type" gorm:"size:31"`
	Description string     `json:"description"`
	Position    geom.Point `json:"position"` // marker: X yaw, Y pitch, Z zoom
	ImageURL    string     `json:"imageUrl" gorm:"size:512"`
	CreatedAt   time.Time  `json:"createdAt" gorm:"index:idx_storage_area_created_at"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func (*StorageArea) TableName() string {
	return "storage_areas"
}

// Image is an uploaded photo kept alongside the catalog
type Image struct {
	ID          string    `json:"id" gorm:"primaryKey;size:36"`
	ContentType string    `json:"contentType" gorm:"size:127"`
	Data        []byte    `json:"-"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (*Image) TableName() string {
	return "images"
}
