// Package v1 contains the v1 snapshot format for catalog data.
// Snapshots are written by the memory backend on Close and read back on Init.
package v1

import (
	"time"

	"github.com/kitchen360/catalog/pkg/core"
)

// Version is the format version written to every snapshot.
const Version = 1

// Export is the root JSON structure for v1 format
type Export struct {
	Version      int                `json:"version"`
	ExportedAt   time.Time          `json:"exportedAt"`
	Rooms        []core.Room        `json:"rooms"`
	Views        []core.View        `json:"views"`
	StorageAreas []core.StorageArea `json:"storageAreas"`
	Images       []Image            `json:"images"`
}

// Image is an image blob. Data is base64 in JSON.
type Image struct {
	ID          string    `json:"id"`
	ContentType string    `json:"contentType"`
	Data        []byte    `json:"data"`
	CreatedAt   time.Time `json:"createdAt"`
}
