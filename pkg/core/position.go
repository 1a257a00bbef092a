// pkg/core/position.go
package core

import "math"

// Zoom bounds shared by every Position.
const (
	MinZoom = 0.0
	MaxZoom = 100.0
)

// Position is a camera orientation inside a panorama.
// Yaw and Pitch are radians: yaw in [0, 2π) measured clockwise from the panorama
// centre, pitch in [-π/2, π/2] with positive values looking up. Zoom is in [0, 100].
type Position struct {
	Yaw   float64 `json:"yaw"`
	Pitch float64 `json:"pitch"`
	Zoom  float64 `json:"zoom"`
}

// Valid reports whether p lies inside the canonical convention.
func (p Position) Valid() bool {
	if math.IsNaN(p.Yaw) || math.IsNaN(p.Pitch) || math.IsNaN(p.Zoom) {
		return false
	}
	return p.Yaw >= 0 && p.Yaw < 2*math.Pi &&
		p.Pitch >= -math.Pi/2 && p.Pitch <= math.Pi/2 &&
		p.Zoom >= MinZoom && p.Zoom <= MaxZoom
}

// Normalized returns p with yaw wrapped into [0, 2π), pitch clamped to ±π/2 and
// zoom clamped to [0, 100].
func (p Position) Normalized() Position {
	return Position{
		Yaw:   NormalizeYaw(p.Yaw),
		Pitch: clamp(p.Pitch, -math.Pi/2, math.Pi/2),
		Zoom:  ClampZoom(p.Zoom),
	}
}

// WithZoom returns a copy of p with a different zoom level.
func (p Position) WithZoom(zoom float64) Position {
	p.Zoom = zoom
	return p
}

// ApproxEqual compares two positions with tolerance eps on every component.
// Yaw is compared on the circle so 0 and 2π-ε are close.
func (p Position) ApproxEqual(o Position, eps float64) bool {
	dy := math.Abs(NormalizeYaw(p.Yaw) - NormalizeYaw(o.Yaw))
	if dy > math.Pi {
		dy = 2*math.Pi - dy
	}
	return dy <= eps && math.Abs(p.Pitch-o.Pitch) <= eps && math.Abs(p.Zoom-o.Zoom) <= eps
}

// NormalizeYaw wraps an angle in radians into [0, 2π).
func NormalizeYaw(yaw float64) float64 {
	yaw = math.Mod(yaw, 2*math.Pi)
	if yaw < 0 {
		yaw += 2 * math.Pi
	}
	return yaw
}

// ClampZoom forces a zoom level into [0, 100].
func ClampZoom(zoom float64) float64 {
	return clamp(zoom, MinZoom, MaxZoom)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// LegacyPosition is the longitude/latitude shape written by older viewer builds.
// Longitude and latitude carry the same radians as Yaw and Pitch; zoom may be absent.
type LegacyPosition struct {
	Longitude float64  `json:"longitude"`
	Latitude  float64  `json:"latitude"`
	Zoom      *float64 `json:"zoom,omitempty"`
}

// FromLegacy converts a LegacyPosition, substituting defaultZoom when none was stored.
func FromLegacy(l LegacyPosition, defaultZoom float64) Position {
	zoom := defaultZoom
	if l.Zoom != nil {
		zoom = *l.Zoom
	}
	return Position{
		Yaw:   NormalizeYaw(l.Longitude),
		Pitch: l.Latitude,
		Zoom:  ClampZoom(zoom),
	}
}
