package geo

import (
	"errors"
	"math"
	"testing"

	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/kitchen360/catalog/pkg/core"
)

func TestPositionFromString_WithZoom(t *testing.T) {
	p, err := PositionFromString("1.2,-0.3,40", 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Yaw != 1.2 {
		t.Errorf("expected yaw=1.2, got %f", p.Yaw)
	}
	if p.Pitch != -0.3 {
		t.Errorf("expected pitch=-0.3, got %f", p.Pitch)
	}
	if p.Zoom != 40 {
		t.Errorf("expected zoom=40, got %f", p.Zoom)
	}
}

func TestPositionFromString_DefaultZoom(t *testing.T) {
	p, err := PositionFromString("0.5, 0.1", 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Zoom != 50 {
		t.Errorf("expected default zoom=50, got %f", p.Zoom)
	}
}

func TestPositionFromString_Normalizes(t *testing.T) {
	p, err := PositionFromString("-1.5707963267948966,3,250", 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(p.Yaw-3*math.Pi/2) > 1e-12 {
		t.Errorf("expected yaw wrapped to 3π/2, got %f", p.Yaw)
	}
	if p.Pitch != math.Pi/2 {
		t.Errorf("expected pitch clamped to π/2, got %f", p.Pitch)
	}
	if p.Zoom != 100 {
		t.Errorf("expected zoom clamped to 100, got %f", p.Zoom)
	}
	if !p.Valid() {
		t.Error("expected a valid position")
	}
}

func TestPositionFromString_Invalid(t *testing.T) {
	for _, in := range []string{"", "1", "a,b", "1,2,3,4", "1,NaN", "1,2,Inf"} {
		_, err := PositionFromString(in, 50)
		if !errors.Is(err, ErrInvalidCoordinates) {
			t.Errorf("%q: expected ErrInvalidCoordinates, got %v", in, err)
		}
	}
}

func TestFormatPosition_RoundTrip(t *testing.T) {
	in := core.Position{Yaw: 1.2, Pitch: -0.3, Zoom: 40}
	out, err := PositionFromString(FormatPosition(in), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != in {
		t.Errorf("expected %+v, got %+v", in, out)
	}
}

func TestPositionFromDegrees(t *testing.T) {
	p := PositionFromDegrees(-90, 45, 30)
	if math.Abs(p.Yaw-3*math.Pi/2) > 1e-12 {
		t.Errorf("expected yaw=3π/2, got %f", p.Yaw)
	}
	if math.Abs(p.Pitch-math.Pi/4) > 1e-12 {
		t.Errorf("expected pitch=π/4, got %f", p.Pitch)
	}
	if p.Zoom != 30 {
		t.Errorf("expected zoom=30, got %f", p.Zoom)
	}
}

func TestPointRoundTrip(t *testing.T) {
	in := core.Position{Yaw: 5.5, Pitch: 0.25, Zoom: 75}
	pt := PointFromPosition(in)

	coords, ok := pt.Coordinates()
	if !ok {
		t.Fatal("expected valid coordinates")
	}
	if coords.X != 5.5 || coords.Y != 0.25 || coords.Z != 75 {
		t.Errorf("unexpected coordinates %+v", coords)
	}

	out, err := PositionFromPoint(pt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != in {
		t.Errorf("expected %+v, got %+v", in, out)
	}
}

func TestPositionFromPoint_Rejects(t *testing.T) {
	if _, err := PositionFromPoint(geom.NewEmptyPoint(geom.DimXYZ)); !errors.Is(err, ErrInvalidCoordinates) {
		t.Errorf("empty point: expected ErrInvalidCoordinates, got %v", err)
	}
	flat := geom.NewPoint(geom.Coordinates{XY: geom.XY{X: 1, Y: 0}, Type: geom.DimXY})
	if _, err := PositionFromPoint(flat); !errors.Is(err, ErrInvalidCoordinates) {
		t.Errorf("2D point: expected ErrInvalidCoordinates, got %v", err)
	}
}
