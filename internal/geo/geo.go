package geo

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/kitchen360/catalog/pkg/core"
)

// PANORAMA POINTS
// Positions are stored as XYZ points: X is yaw, Y is pitch (both radians), Z is zoom.
// Geometry data goes to the database as WKB, which both SQLite and PostgreSQL keep
// as a plain binary column.

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// PositionFromString parses "yaw,pitch" or "yaw,pitch,zoom" (radians) into a
// normalized core.Position. A missing zoom becomes defaultZoom.
func PositionFromString(coords string, defaultZoom float64) (core.Position, error) {
	parts := strings.Split(coords, ",")
	if len(parts) < 2 || len(parts) > 3 {
		return core.Position{}, ErrInvalidCoordinates
	}
	vals := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return core.Position{}, ErrInvalidCoordinates
		}
		vals[i] = v
	}
	zoom := defaultZoom
	if len(vals) == 3 {
		zoom = vals[2]
	}
	return core.Position{Yaw: vals[0], Pitch: vals[1], Zoom: zoom}.Normalized(), nil
}

// PositionFromDegrees converts a yaw/pitch pair given in degrees.
func PositionFromDegrees(yawDeg, pitchDeg, zoom float64) core.Position {
	return core.Position{
		Yaw:   yawDeg * math.Pi / 180,
		Pitch: pitchDeg * math.Pi / 180,
		Zoom:  zoom,
	}.Normalized()
}

// FormatPosition is the inverse of PositionFromString.
func FormatPosition(p core.Position) string {
	return fmt.Sprintf("%s,%s,%s",
		strconv.FormatFloat(p.Yaw, 'f', -1, 64),
		strconv.FormatFloat(p.Pitch, 'f', -1, 64),
		strconv.FormatFloat(p.Zoom, 'f', -1, 64),
	)
}

// PointFromPosition creates an XYZ point from a position.
func PointFromPosition(p core.Position) geom.Point {
	return geom.NewPoint(
		geom.Coordinates{
			XY:   geom.XY{X: p.Yaw, Y: p.Pitch},
			Z:    p.Zoom,
			Type: geom.DimXYZ,
		},
	)
}

// PositionFromPoint reads a point written by PointFromPosition. Empty points and
// points without Z are rejected.
func PositionFromPoint(pt geom.Point) (core.Position, error) {
	c, ok := pt.Coordinates()
	if !ok {
		return core.Position{}, ErrInvalidCoordinates
	}
	if !c.Type.Is3D() {
		return core.Position{}, fmt.Errorf("%w: point has no zoom", ErrInvalidCoordinates)
	}
	return core.Position{Yaw: c.X, Pitch: c.Y, Zoom: c.Z}.Normalized(), nil
}
