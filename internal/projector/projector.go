// Package projector converts between panorama clicks, spherical positions and
// screen coordinates.
//
// All angles are radians. Yaw grows clockwise seen from above, pitch grows
// upwards. Screen space has its origin in the top-left corner of the viewport.
package projector

import (
	"fmt"
	"math"

	"github.com/kitchen360/catalog/pkg/core"
)

// Default field of view bounds, in degrees, matching the viewer defaults.
const (
	DefaultMinFOV = 30.0
	DefaultMaxFOV = 90.0
)

// Click is the raw payload of a click on the surface, already expressed in the
// surface's native yaw/pitch.
type Click struct {
	Yaw   float64
	Pitch float64
}

// Source is a live surface whose orientation can be read.
type Source interface {
	Orientation() (yaw, pitch float64, err error)
	Zoom() (float64, error)
}

// Viewport is the size of the rendered surface in pixels.
type Viewport struct {
	Width  float64
	Height float64
}

// Valid reports whether the viewport has a drawable area.
func (v Viewport) Valid() bool {
	return v.Width > 0 && v.Height > 0
}

// Point is a location on screen in pixels.
type Point struct {
	X float64
	Y float64
}

// Projector holds the zoom to field-of-view mapping.
type Projector struct {
	minFOV float64 // radians, at zoom 100
	maxFOV float64 // radians, at zoom 0
}

// New creates a projector with vertical field of view bounds in degrees.
func New(minFOVDeg, maxFOVDeg float64) (*Projector, error) {
	if minFOVDeg <= 0 || maxFOVDeg >= 180 || minFOVDeg > maxFOVDeg {
		return nil, fmt.Errorf("invalid fov range [%v, %v]", minFOVDeg, maxFOVDeg)
	}
	return &Projector{
		minFOV: minFOVDeg * math.Pi / 180,
		maxFOV: maxFOVDeg * math.Pi / 180,
	}, nil
}

// Default returns a projector using DefaultMinFOV and DefaultMaxFOV.
func Default() *Projector {
	p, _ := New(DefaultMinFOV, DefaultMaxFOV)
	return p
}

// ScreenClickToPosition turns a surface click into a Position. Nothing is clamped:
// values outside the convention are passed through as reported.
func (p *Projector) ScreenClickToPosition(click Click, currentZoom float64) core.Position {
	return core.Position{Yaw: click.Yaw, Pitch: click.Pitch, Zoom: currentZoom}
}

// CurrentPosition reads orientation and zoom from a live surface.
func (p *Projector) CurrentPosition(src Source) (core.Position, error) {
	yaw, pitch, err := src.Orientation()
	if err != nil {
		return core.Position{}, err
	}
	zoom, err := src.Zoom()
	if err != nil {
		return core.Position{}, err
	}
	return core.Position{Yaw: yaw, Pitch: pitch, Zoom: zoom}, nil
}

// FOV returns the vertical field of view in radians for a zoom level.
// Zoom 0 is the widest view.
func (p *Projector) FOV(zoom float64) float64 {
	z := core.ClampZoom(zoom) / core.MaxZoom
	return p.maxFOV + z*(p.minFOV-p.maxFOV)
}

type vec3 struct{ x, y, z float64 }

func (a vec3) dot(b vec3) float64 { return a.x*b.x + a.y*b.y + a.z*b.z }

func direction(yaw, pitch float64) vec3 {
	cp := math.Cos(pitch)
	return vec3{cp * math.Sin(yaw), math.Sin(pitch), cp * math.Cos(yaw)}
}

// basis returns the camera forward, right and up vectors.
func basis(camera core.Position) (f, r, u vec3) {
	sy, cy := math.Sincos(camera.Yaw)
	sp, cp := math.Sincos(camera.Pitch)
	f = vec3{cp * sy, sp, cp * cy}
	r = vec3{cy, 0, -sy}
	u = vec3{-sp * sy, cp, -sp * cy}
	return f, r, u
}

func (p *Projector) focal(camera core.Position, vp Viewport) float64 {
	return (vp.Height / 2) / math.Tan(p.FOV(camera.Zoom)/2)
}

// Anchor projects target onto the viewport of a camera looking at camera.
// The boolean is false when the point is behind the camera or outside the viewport.
func (p *Projector) Anchor(target, camera core.Position, vp Viewport) (Point, bool) {
	if !vp.Valid() {
		return Point{}, false
	}
	d := direction(target.Yaw, target.Pitch)
	f, r, u := basis(camera)

	cz := d.dot(f)
	if cz <= 1e-9 {
		return Point{}, false
	}
	fl := p.focal(camera, vp)
	pt := Point{
		X: vp.Width/2 + fl*d.dot(r)/cz,
		Y: vp.Height/2 - fl*d.dot(u)/cz,
	}
	visible := pt.X >= 0 && pt.X <= vp.Width && pt.Y >= 0 && pt.Y <= vp.Height
	return pt, visible
}

// Unproject maps a screen point back to the spherical direction under it.
// The returned zoom is the camera zoom.
func (p *Projector) Unproject(pt Point, camera core.Position, vp Viewport) core.Position {
	f, r, u := basis(camera)
	fl := p.focal(camera, vp)
	cx := (pt.X - vp.Width/2) / fl
	cy := (vp.Height/2 - pt.Y) / fl

	v := vec3{
		f.x + cx*r.x + cy*u.x,
		f.y + cx*r.y + cy*u.y,
		f.z + cx*r.z + cy*u.z,
	}
	n := math.Sqrt(v.dot(v))
	return core.Position{
		Yaw:   core.NormalizeYaw(math.Atan2(v.x, v.z)),
		Pitch: math.Asin(v.y / n),
		Zoom:  camera.Zoom,
	}
}

// AngularDistance is the great-circle angle between two directions.
func AngularDistance(a, b core.Position) float64 {
	d := direction(a.Yaw, a.Pitch).dot(direction(b.Yaw, b.Pitch))
	return math.Acos(math.Max(-1, math.Min(1, d)))
}
