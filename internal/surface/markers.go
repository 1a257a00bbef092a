package surface

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/kitchen360/catalog/internal/projector"
	"github.com/kitchen360/catalog/pkg/core"
	"github.com/kitchen360/catalog/pkg/streaming"
)

// MarkersPlugin is the overlay that renders markers on top of the panorama. It only
// mirrors what the viewer shows; ownership of the marker set lives with the caller.
type MarkersPlugin struct {
	mu       sync.Mutex
	v        *Viewer
	rendered map[string]core.MarkerDescriptor
	onSelect func(id string)
	released bool
}

func newMarkersPlugin(v *Viewer) *MarkersPlugin {
	return &MarkersPlugin{
		v:        v,
		rendered: make(map[string]core.MarkerDescriptor),
	}
}

// AddMarker renders desc.
func (m *MarkersPlugin) AddMarker(desc core.MarkerDescriptor) error {
	m.mu.Lock()
	if m.released {
		m.mu.Unlock()
		return destroyed("add marker")
	}
	if _, ok := m.rendered[desc.ID]; ok {
		m.mu.Unlock()
		return fmt.Errorf("marker %q already rendered", desc.ID)
	}
	m.rendered[desc.ID] = desc
	m.mu.Unlock()

	return m.v.render(streaming.TypeAddMarker, desc)
}

// RemoveMarker removes a rendered marker. Unknown ids are ignored.
func (m *MarkersPlugin) RemoveMarker(id string) error {
	m.mu.Lock()
	if m.released {
		m.mu.Unlock()
		return destroyed("remove marker")
	}
	if _, ok := m.rendered[id]; !ok {
		m.mu.Unlock()
		return nil
	}
	delete(m.rendered, id)
	m.mu.Unlock()

	return m.v.render(streaming.TypeRemoveMarker, streaming.MarkerIDPayload{ID: id})
}

// ClearMarkers removes every rendered marker.
func (m *MarkersPlugin) ClearMarkers() error {
	m.mu.Lock()
	if m.released {
		m.mu.Unlock()
		return destroyed("clear markers")
	}
	m.rendered = make(map[string]core.MarkerDescriptor)
	m.mu.Unlock()

	return m.v.render(streaming.TypeClearMarkers, nil)
}

// OnSelect sets the function called when the user activates a rendered marker.
func (m *MarkersPlugin) OnSelect(fn func(id string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.released {
		m.onSelect = fn
	}
}

// Has reports whether id is currently rendered.
func (m *MarkersPlugin) Has(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.rendered[id]
	return ok
}

// Len returns the number of rendered markers.
func (m *MarkersPlugin) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rendered)
}

// HitTest returns the rendered marker whose screen anchor is nearest to pt, if it
// lies within the surface's hit radius.
func (m *MarkersPlugin) HitTest(pt projector.Point, camera core.Position, vp projector.Viewport) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	best, bestDist := "", math.Inf(1)
	for id, desc := range m.rendered {
		at, ok := m.v.proj.Anchor(desc.Position, camera, vp)
		if !ok {
			continue
		}
		d := math.Hypot(at.X-pt.X, at.Y-pt.Y)
		if d <= m.v.opts.HitRadius && (d < bestDist || (d == bestDist && id < best)) {
			best, bestDist = id, d
		}
	}
	return best, best != ""
}

// Visible returns the ids of rendered markers on screen for camera, sorted.
func (m *MarkersPlugin) Visible(camera core.Position, vp projector.Viewport) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := []string{}
	for id, desc := range m.rendered {
		if _, ok := m.v.proj.Anchor(desc.Position, camera, vp); ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// activate delivers a selection for id if it is still rendered.
func (m *MarkersPlugin) activate(id string) {
	m.mu.Lock()
	_, ok := m.rendered[id]
	fn := m.onSelect
	m.mu.Unlock()

	if !ok {
		m.v.logger.Debug("Ignoring selection of marker that is not rendered", "marker", id)
		return
	}
	if fn != nil {
		fn(id)
	}
}

func (m *MarkersPlugin) release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.released = true
	m.rendered = make(map[string]core.MarkerDescriptor)
	m.onSelect = nil
}
