// Package hotspot connects a panorama surface to the application's entities.
//
// The Controller keeps one marker per entity, turns panorama clicks into creation
// requests and marker selections into entity selections. Every change to the
// entity collection clears the marker layer and adds all markers again.
package hotspot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/kitchen360/catalog/internal/cache"
	"github.com/kitchen360/catalog/internal/markers"
	"github.com/kitchen360/catalog/internal/projector"
	"github.com/kitchen360/catalog/internal/surface"
	"github.com/kitchen360/catalog/pkg/core"
)

// State is the creation state of a controller.
type State int

const (
	Idle State = iota
	AwaitingDetails
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingDetails:
		return "awaiting_details"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// EntityStore persists new entities. The controller never lists: collection
// changes arrive through UpdateEntities.
type EntityStore interface {
	Create(ctx context.Context, data core.CreationData) (core.Entity, error)
}

// ActivityRecorder receives user activity for analytics. Implementations must not
// block.
type ActivityRecorder interface {
	Record(action string, fields map[string]any)
}

// Config configures a Controller.
type Config struct {
	Store     EntityStore
	Projector *projector.Projector
	// Surface options used on every Mount. The markers plugin is always requested.
	Surface  surface.Options
	Logger   *slog.Logger
	Activity ActivityRecorder
}

// mount is one surface lifetime. Callbacks from an older mount are ignored.
type mount struct {
	surface surface.Surface
	layer   *markers.Layer
	live    bool
	fatal   bool
	// closed once surface is assigned, or Mount failed
	attached chan struct{}
}

// Controller is the hotspot state machine. All methods are safe for concurrent
// use; callbacks never run while the controller lock is held.
type Controller struct {
	mu       sync.Mutex
	resyncMu sync.Mutex

	store    EntityStore
	proj     *projector.Projector
	opts     surface.Options
	logger   *slog.Logger
	activity ActivityRecorder
	metrics  *metrics

	current  *mount
	state    State
	pending  core.Position
	entities *cache.EntityCache

	onCreationRequested func(core.Position)
	onEntitySelected    func(core.Entity)
	onFatalError        func(error)
}

// New creates an unmounted controller.
func New(cfg Config) (*Controller, error) {
	if cfg.Store == nil {
		return nil, errors.New("hotspot: entity store is required")
	}
	if cfg.Projector == nil {
		cfg.Projector = projector.Default()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	m, err := newMetrics()
	if err != nil {
		return nil, err
	}

	opts := cfg.Surface
	if !hasPlugin(opts.Plugins, surface.PluginMarkers) {
		opts.Plugins = append(append([]surface.PluginKind(nil), opts.Plugins...), surface.PluginMarkers)
	}
	opts.Projector = cfg.Projector
	if opts.Logger == nil {
		opts.Logger = cfg.Logger
	}

	return &Controller{
		store:    cfg.Store,
		proj:     cfg.Projector,
		opts:     opts,
		logger:   cfg.Logger.With("component", "hotspot"),
		activity: cfg.Activity,
		metrics:  m,
		entities: cache.NewEntityCache(),
	}, nil
}

func hasPlugin(plugins []surface.PluginKind, kind surface.PluginKind) bool {
	for _, p := range plugins {
		if p == kind {
			return true
		}
	}
	return false
}

// OnCreationRequested sets the callback fired when the user clicks the panorama.
func (c *Controller) OnCreationRequested(fn func(core.Position)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onCreationRequested = fn
}

// OnEntitySelected sets the callback fired when a marker is activated.
func (c *Controller) OnEntitySelected(fn func(core.Entity)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEntitySelected = fn
}

// OnFatalError sets the callback fired once per mount when the surface cannot be
// created or its image cannot be loaded.
func (c *Controller) OnFatalError(fn func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onFatalError = fn
}

// Mount creates the surface in container and shows initial once the image is
// loaded. An existing surface is torn down first. A mount failure is returned and
// also reported through OnFatalError.
func (c *Controller) Mount(container surface.Container, imageURL string, initial []core.Entity) error {
	if err := c.UnMount(); err != nil && !errors.Is(err, ErrNotMounted) {
		return err
	}

	m := &mount{live: true, attached: make(chan struct{})}
	opts := c.opts
	opts.OnLoad = func(info surface.ImageInfo) {
		<-m.attached
		c.loaded(m)
	}
	opts.OnLoadError = func(err error) {
		<-m.attached
		c.fail(m, err)
	}

	c.mu.Lock()
	c.current = m
	c.state = Idle
	c.pending = core.Position{}
	c.mu.Unlock()
	c.setEntities(initial)

	v, err := surface.Mount(container, imageURL, opts)
	if err != nil {
		close(m.attached)
		c.fail(m, err)
		return err
	}

	c.mu.Lock()
	m.surface = v
	c.mu.Unlock()
	close(m.attached)

	if err := v.On(surface.EventClick, func(ev surface.Event) { c.surfaceClicked(m, ev) }); err != nil {
		return err
	}
	c.logger.Debug("Surface mounted", "image", imageURL, "entities", len(initial))
	return nil
}

// loaded attaches the marker layer once the markers plugin exists.
func (c *Controller) loaded(m *mount) {
	c.mu.Lock()
	if c.current != m || !m.live || m.surface == nil {
		c.mu.Unlock()
		return
	}
	s := m.surface
	c.mu.Unlock()

	plugin, err := s.Plugin(surface.PluginMarkers)
	if err != nil || plugin == nil {
		c.fail(m, fmt.Errorf("markers plugin unavailable: %w", errors.Join(err, surface.ErrMount)))
		return
	}
	layer := markers.New(plugin, c.logger)
	layer.OnSelected(func(id string) { c.markerSelected(m, id) })

	c.mu.Lock()
	if c.current != m || !m.live {
		c.mu.Unlock()
		return
	}
	m.layer = layer
	c.mu.Unlock()

	c.resync(m)
}

// fail reports err once and makes the mount inert.
func (c *Controller) fail(m *mount, err error) {
	c.mu.Lock()
	if c.current != m || m.fatal {
		c.mu.Unlock()
		return
	}
	m.fatal = true
	m.live = false
	c.state = Idle
	s, layer := m.surface, m.layer
	m.surface, m.layer = nil, nil
	cb := c.onFatalError
	c.mu.Unlock()

	c.logger.Error("Hotspot controller stopped", "error", err)
	c.metrics.fatalErrors.Add(context.Background(), 1)

	if layer != nil {
		layer.Release()
	}
	if s != nil {
		_ = s.Destroy()
	}
	if cb != nil {
		cb(err)
	}
}

// UnMount stops accepting events and tears down the surface, then the marker
// layer. It returns ErrNotMounted if nothing is mounted.
func (c *Controller) UnMount() error {
	c.mu.Lock()
	m := c.current
	if m == nil {
		c.mu.Unlock()
		return ErrNotMounted
	}
	c.current = nil
	m.live = false
	c.state = Idle
	c.pending = core.Position{}
	s, layer := m.surface, m.layer
	m.surface, m.layer = nil, nil
	c.mu.Unlock()

	var err error
	if s != nil {
		if derr := s.Destroy(); derr != nil && !errors.Is(derr, surface.ErrDestroyed) {
			err = derr
		}
	}
	if layer != nil {
		layer.Release()
	}
	c.entities.Reset()
	return err
}

// State returns the creation state and, when AwaitingDetails, the pending position.
func (c *Controller) State() (State, core.Position) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.pending
}

// Mounted reports whether a live surface is attached.
func (c *Controller) Mounted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil && c.current.live
}

// Ready reports whether the panorama has loaded and the marker layer is attached.
func (c *Controller) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil && c.current.live && c.current.layer != nil
}

// Surface returns the live surface, or nil.
func (c *Controller) Surface() surface.Surface {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil || !c.current.live {
		return nil
	}
	return c.current.surface
}

// MarkerIDs returns the ids currently on the marker layer, sorted.
func (c *Controller) MarkerIDs() []string {
	c.mu.Lock()
	var layer *markers.Layer
	if c.current != nil {
		layer = c.current.layer
	}
	c.mu.Unlock()
	if layer == nil {
		return []string{}
	}
	return layer.SortedIDs()
}

// UpdateEntities replaces the entity collection and rebuilds the markers. A
// pending creation is left untouched. Ignored when not mounted.
func (c *Controller) UpdateEntities(list []core.Entity) {
	c.mu.Lock()
	m := c.current
	if m == nil || !m.live {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.setEntities(list)
	c.resync(m)
}

// setEntities replaces the last-known collection. The first entity with an id
// keeps it; later ones are skipped.
func (c *Controller) setEntities(list []core.Entity) {
	for _, id := range c.entities.Replace(list) {
		c.metrics.duplicates.Add(context.Background(), 1)
		c.logger.Warn("Skipping duplicate entity", "error", &markers.DuplicateIDError{ID: id})
	}
}

// Entities returns the last-known entity collection.
func (c *Controller) Entities() []core.Entity {
	return c.entities.List()
}

// Submit completes a pending creation: data is stored at the pending position and
// the markers are rebuilt. The controller returns to Idle only on success, so a
// failed store call can be retried.
func (c *Controller) Submit(ctx context.Context, data core.CreationData) (core.Entity, error) {
	c.mu.Lock()
	m := c.current
	if m == nil || !m.live {
		c.mu.Unlock()
		return nil, ErrNotMounted
	}
	if c.state != AwaitingDetails {
		c.mu.Unlock()
		return nil, ErrNoPendingCreation
	}
	pos := c.pending
	c.mu.Unlock()

	data.Position = pos
	if err := data.Validate(); err != nil {
		return nil, fmt.Errorf("invalid entity: %w", err)
	}

	entity, err := c.store.Create(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", data.Kind, err)
	}

	c.mu.Lock()
	if c.state == AwaitingDetails && c.pending == pos {
		c.state = Idle
		c.pending = core.Position{}
	}
	live := c.current == m && m.live
	c.mu.Unlock()

	c.metrics.created.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(data.Kind))))
	c.record("entity_created", map[string]any{"kind": string(data.Kind), "id": entity.EntityID()})

	if live {
		c.entities.Put(entity)
		c.resync(m)
	}
	return entity, nil
}

// Cancel abandons a pending creation. Nothing is stored.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == AwaitingDetails {
		c.logger.Debug("Creation cancelled", "yaw", c.pending.Yaw, "pitch", c.pending.Pitch)
	}
	c.state = Idle
	c.pending = core.Position{}
}

func (c *Controller) surfaceClicked(m *mount, ev surface.Event) {
	pos := c.proj.ScreenClickToPosition(ev.Click, ev.Zoom)

	c.mu.Lock()
	if c.current != m || !m.live {
		c.mu.Unlock()
		return
	}
	c.state = AwaitingDetails
	c.pending = pos
	cb := c.onCreationRequested
	c.mu.Unlock()

	c.metrics.requested.Add(context.Background(), 1)
	if cb != nil {
		cb(pos)
	}
}

func (c *Controller) markerSelected(m *mount, id string) {
	c.mu.Lock()
	if c.current != m || !m.live {
		c.mu.Unlock()
		return
	}
	cb := c.onEntitySelected
	c.mu.Unlock()

	e, ok := c.entities.Get(id)
	if !ok {
		c.metrics.lookupMiss.Add(context.Background(), 1)
		c.logger.Warn("Marker selection ignored", "error", &LookupMissError{ID: id})
		return
	}

	c.metrics.selections.Add(context.Background(), 1)
	c.record("entity_selected", map[string]any{"id": id})
	if cb != nil {
		cb(e)
	}
}

// resync clears the layer and adds a marker for every known entity. Duplicate ids
// and render failures are logged and skipped.
func (c *Controller) resync(m *mount) {
	c.resyncMu.Lock()
	defer c.resyncMu.Unlock()

	c.mu.Lock()
	layer := m.layer
	live := c.current == m && m.live
	c.mu.Unlock()
	if !live || layer == nil {
		return
	}

	if err := layer.Clear(); err != nil {
		c.logger.Warn("Clearing markers failed", "error", err)
	}

	added := 0
	for _, e := range c.entities.List() {
		err := layer.Add(e.Marker())
		switch {
		case err == nil:
			added++
		case errors.Is(err, markers.ErrDuplicateID):
			c.metrics.duplicates.Add(context.Background(), 1)
			c.logger.Warn("Skipping duplicate marker", "error", err)
		default:
			c.logger.Warn("Adding marker failed", "marker", e.EntityID(), "error", err)
		}
	}

	ctx := context.Background()
	c.metrics.resyncs.Add(ctx, 1)
	c.metrics.rendered.Add(ctx, int64(added))
	c.logger.Debug("Markers rebuilt", "count", added)
}

func (c *Controller) record(action string, fields map[string]any) {
	if c.activity != nil {
		c.activity.Record(action, fields)
	}
}
