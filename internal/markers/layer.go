// Package markers holds the authoritative set of markers overlaid on a panorama
// surface.
//
// Callers resynchronise by calling Clear and then Add for every current entity.
// The set is always rebuilt in full, never diffed: marker counts are in the tens,
// and a full rebuild cannot leave stale markers behind after a partial update.
package markers

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/kitchen360/catalog/pkg/core"
)

// ErrDuplicateID is returned by Add when the id is already present.
var ErrDuplicateID = errors.New("duplicate marker id")

// DuplicateIDError names the offending id.
type DuplicateIDError struct {
	ID string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("marker %q: %v", e.ID, ErrDuplicateID)
}

func (e *DuplicateIDError) Unwrap() error { return ErrDuplicateID }

// Renderer draws markers on a surface. *surface.MarkersPlugin satisfies it.
type Renderer interface {
	AddMarker(desc core.MarkerDescriptor) error
	RemoveMarker(id string) error
	ClearMarkers() error
	OnSelect(fn func(id string))
}

// SelectHandler receives the id of an activated marker.
type SelectHandler func(id string)

// Layer is the marker set of one surface.
type Layer struct {
	mu       sync.RWMutex
	renderer Renderer
	markers  map[string]core.MarkerDescriptor
	order    []string
	handlers []SelectHandler
	logger   *slog.Logger
}

// New creates a layer drawing through r. A nil logger uses slog.Default.
func New(r Renderer, logger *slog.Logger) *Layer {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Layer{
		renderer: r,
		markers:  make(map[string]core.MarkerDescriptor),
		logger:   logger.With("component", "markers"),
	}
	r.OnSelect(l.selected)
	return l
}

// Add inserts desc and renders it. It fails with *DuplicateIDError if the id is
// already present.
func (l *Layer) Add(desc core.MarkerDescriptor) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.markers[desc.ID]; ok {
		return &DuplicateIDError{ID: desc.ID}
	}
	if err := l.renderer.AddMarker(desc); err != nil {
		return fmt.Errorf("render marker %q: %w", desc.ID, err)
	}
	l.markers[desc.ID] = desc
	l.order = append(l.order, desc.ID)
	return nil
}

// Remove deletes the marker with id. Absent ids are ignored.
func (l *Layer) Remove(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.markers[id]; !ok {
		return nil
	}
	delete(l.markers, id)
	for i, o := range l.order {
		if o == id {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
	if err := l.renderer.RemoveMarker(id); err != nil {
		return fmt.Errorf("remove marker %q: %w", id, err)
	}
	return nil
}

// Clear removes every marker.
func (l *Layer) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.markers = make(map[string]core.MarkerDescriptor)
	l.order = nil
	if err := l.renderer.ClearMarkers(); err != nil {
		return fmt.Errorf("clear markers: %w", err)
	}
	return nil
}

// OnSelected registers h to run when the user activates a marker present in the
// layer. Ids removed from the layer never reach h.
func (l *Layer) OnSelected(h SelectHandler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers = append(l.handlers, h)
}

// Release drops every handler. Later selections are ignored.
func (l *Layer) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers = nil
	l.markers = make(map[string]core.MarkerDescriptor)
	l.order = nil
}

// Len returns the number of markers.
func (l *Layer) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.markers)
}

// IDs returns the marker ids in insertion order.
func (l *Layer) IDs() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, len(l.order))
	copy(out, l.order)
	return out
}

// SortedIDs returns the marker ids sorted.
func (l *Layer) SortedIDs() []string {
	ids := l.IDs()
	sort.Strings(ids)
	return ids
}

// Get returns the descriptor for id.
func (l *Layer) Get(id string) (core.MarkerDescriptor, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	desc, ok := l.markers[id]
	return desc, ok
}

func (l *Layer) selected(id string) {
	l.mu.RLock()
	_, ok := l.markers[id]
	handlers := append([]SelectHandler(nil), l.handlers...)
	l.mu.RUnlock()

	if !ok {
		l.logger.Debug("Selection for unknown marker dropped", "marker", id)
		return
	}
	for _, h := range handlers {
		h(id)
	}
}
