// Package surface owns the panorama rendering surface: mounting an image into a
// Container, tracking orientation and zoom, emitting click and position events,
// and hosting the markers plugin.
package surface

import (
	"context"
	"log/slog"
	"sync"

	"github.com/kitchen360/catalog/internal/projector"
	"github.com/kitchen360/catalog/pkg/core"
	"github.com/kitchen360/catalog/pkg/streaming"
)

// EventKind identifies a surface event.
type EventKind string

const (
	EventClick           EventKind = "click"
	EventPositionChanged EventKind = "positionChanged"
)

// Event is delivered to handlers registered with On.
type Event struct {
	Kind EventKind
	// Click is set for EventClick, in the viewer's native radians.
	Click projector.Click
	// Zoom is the zoom level at the time of the event.
	Zoom float64
	// Position is the new orientation for EventPositionChanged.
	Position core.Position
}

// Handler receives surface events.
type Handler func(Event)

// Surface is the panorama surface seen by the rest of the application.
type Surface interface {
	On(kind EventKind, h Handler) error
	SetPosition(p core.Position) error
	Position() (core.Position, error)
	Orientation() (yaw, pitch float64, err error)
	Zoom() (float64, error)
	Plugin(kind PluginKind) (*MarkersPlugin, error)
	Destroy() error
}

// echoTolerance is how close a reported position must be to the last applied one
// to count as the viewer echoing it back.
const echoTolerance = 1e-6

var inboundTypes = []string{
	streaming.TypeClick,
	streaming.TypePositionChanged,
	streaming.TypeSelectMarker,
	streaming.TypeResize,
}

// Viewer is the Surface implementation driving a remote panorama viewer through a
// Container.
type Viewer struct {
	mu        sync.Mutex
	container Container
	opts      Options
	proj      *projector.Projector
	logger    *slog.Logger
	imageURL  string

	alive       bool
	position    core.Position
	lastApplied *core.Position
	viewport    projector.Viewport
	handlers    map[EventKind][]Handler

	markers *MarkersPlugin
	info    ImageInfo
	loadErr error

	cancelLoad context.CancelFunc
	ready      chan struct{}
	readyOnce  sync.Once
}

var _ Surface = (*Viewer)(nil)
var _ projector.Source = (*Viewer)(nil)

// Mount creates a surface bound to container and starts loading imageURL. It fails
// synchronously with a *MountError when the container is not attached. Image
// failures arrive later through Options.OnLoadError.
func Mount(container Container, imageURL string, opts Options) (*Viewer, error) {
	if container == nil || !container.Attached() {
		return nil, &MountError{Reason: "container is not attached"}
	}
	if imageURL == "" {
		return nil, &MountError{Reason: "empty image URL"}
	}
	opts = opts.withDefaults()

	v := &Viewer{
		container: container,
		opts:      opts,
		proj:      opts.Projector,
		logger:    opts.Logger.With("component", "surface", "image", imageURL),
		imageURL:  imageURL,
		alive:     true,
		position:  core.Position{Zoom: core.ClampZoom(opts.DefaultZoom)},
		handlers:  make(map[EventKind][]Handler),
		ready:     make(chan struct{}),
	}

	env, err := streaming.NewEnvelope(streaming.TypeMount, streaming.MountPayload{
		ImageURL:    imageURL,
		Navbar:      opts.Navbar.Names(),
		Plugins:     opts.pluginNames(),
		DefaultZoom: v.position.Zoom,
	})
	if err != nil {
		return nil, &MountError{Reason: "encode mount", Err: err}
	}
	if err := container.Render(env); err != nil {
		return nil, &MountError{Reason: "render mount", Err: err}
	}

	container.Handle(streaming.TypeClick, v.handleClick)
	container.Handle(streaming.TypePositionChanged, v.handlePositionChanged)
	container.Handle(streaming.TypeSelectMarker, v.handleSelectMarker)
	container.Handle(streaming.TypeResize, v.handleResize)

	ctx, cancel := context.WithCancel(context.Background())
	v.cancelLoad = cancel
	go v.load(ctx)

	return v, nil
}

func (v *Viewer) load(ctx context.Context) {
	info, err := v.opts.Loader.Load(ctx, v.imageURL)

	v.mu.Lock()
	if !v.alive {
		v.mu.Unlock()
		v.logger.Debug("Dropping image load result after destroy")
		return
	}
	if err != nil {
		loadErr := &ImageLoadError{URL: v.imageURL, Err: err}
		v.loadErr = loadErr
		v.readyOnce.Do(func() { close(v.ready) })
		cb := v.opts.OnLoadError
		v.mu.Unlock()

		v.logger.Error("Panorama failed to load", "error", err)
		if cb != nil {
			cb(loadErr)
		}
		return
	}
	v.info = info
	if v.opts.wants(PluginMarkers) {
		v.markers = newMarkersPlugin(v)
	}
	v.readyOnce.Do(func() { close(v.ready) })
	cb := v.opts.OnLoad
	v.mu.Unlock()

	if !info.Equirectangular() {
		v.logger.Warn("Panorama is not 2:1 equirectangular", "width", info.Width, "height", info.Height)
	}
	v.logger.Debug("Panorama loaded", "format", info.Format, "width", info.Width, "height", info.Height)
	if cb != nil {
		cb(info)
	}
}

// Ready is closed once the image load has finished, successfully or not, or the
// surface was destroyed.
func (v *Viewer) Ready() <-chan struct{} {
	return v.ready
}

// LoadError returns the load failure, if any, once Ready is closed.
func (v *Viewer) LoadError() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.loadErr
}

// Info returns the decoded image description. It is zero until the load succeeds.
func (v *Viewer) Info() ImageInfo {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.info
}

// On registers h for kind. Handlers run in registration order.
func (v *Viewer) On(kind EventKind, h Handler) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.alive {
		return destroyed("on")
	}
	v.handlers[kind] = append(v.handlers[kind], h)
	return nil
}

// SetPosition rotates and zooms the view. It does not emit EventPositionChanged;
// the next matching report from the viewer is treated as an echo and dropped.
func (v *Viewer) SetPosition(p core.Position) error {
	p = p.Normalized()

	v.mu.Lock()
	if !v.alive {
		v.mu.Unlock()
		return destroyed("set position")
	}
	v.position = p
	applied := p
	v.lastApplied = &applied
	v.mu.Unlock()

	return v.render(streaming.TypeSetPosition, p)
}

// Position returns the current orientation and zoom.
func (v *Viewer) Position() (core.Position, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.alive {
		return core.Position{}, destroyed("position")
	}
	return v.position, nil
}

// Orientation returns yaw and pitch in radians.
func (v *Viewer) Orientation() (float64, float64, error) {
	p, err := v.Position()
	if err != nil {
		return 0, 0, err
	}
	return p.Yaw, p.Pitch, nil
}

// Zoom returns the zoom level.
func (v *Viewer) Zoom() (float64, error) {
	p, err := v.Position()
	if err != nil {
		return 0, err
	}
	return p.Zoom, nil
}

// Viewport returns the last size reported by the viewer.
func (v *Viewer) Viewport() projector.Viewport {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.viewport
}

// Plugin returns the live plugin of the given kind. The handle is nil, without an
// error, while the image is still loading or when the plugin was not requested.
func (v *Viewer) Plugin(kind PluginKind) (*MarkersPlugin, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.alive {
		return nil, destroyed("plugin")
	}
	if kind != PluginMarkers {
		return nil, nil
	}
	return v.markers, nil
}

// Destroy releases the surface: pending loads are abandoned, markers cleared,
// listeners detached and the viewer told to tear down. Later calls on v fail with
// ErrDestroyed.
func (v *Viewer) Destroy() error {
	v.mu.Lock()
	if !v.alive {
		v.mu.Unlock()
		return destroyed("destroy")
	}
	v.alive = false
	v.cancelLoad()
	markers := v.markers
	v.markers = nil
	v.handlers = nil
	v.lastApplied = nil
	v.readyOnce.Do(func() { close(v.ready) })
	v.mu.Unlock()

	if markers != nil {
		markers.release()
	}
	for _, t := range inboundTypes {
		v.container.Unhandle(t)
	}

	env, _ := streaming.NewEnvelope(streaming.TypeDestroy, nil)
	if err := v.container.Render(env); err != nil {
		v.logger.Debug("Viewer gone before destroy", "error", err)
	}
	return nil
}

func (v *Viewer) render(msgType string, payload any) error {
	env, err := streaming.NewEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	return v.container.Render(env)
}

func (v *Viewer) emit(ev Event, handlers []Handler) {
	for _, h := range handlers {
		h(ev)
	}
}

func (v *Viewer) handleClick(env streaming.Envelope) {
	var msg streaming.ClickPayload
	if err := env.Decode(&msg); err != nil {
		v.logger.Warn("Malformed click", "error", err)
		return
	}

	v.mu.Lock()
	if !v.alive {
		v.mu.Unlock()
		return
	}
	zoom := v.position.Zoom
	if msg.Zoom != nil {
		zoom = *msg.Zoom
	}
	camera := v.position
	vp := v.viewport
	markers := v.markers
	handlers := append([]Handler(nil), v.handlers[EventClick]...)
	v.mu.Unlock()

	if markers != nil && msg.X != nil && msg.Y != nil && vp.Valid() {
		pt := projector.Point{X: *msg.X, Y: *msg.Y}
		if id, ok := markers.HitTest(pt, camera, vp); ok {
			markers.activate(id)
			return
		}
	}

	v.emit(Event{
		Kind:  EventClick,
		Click: projector.Click{Yaw: msg.Yaw, Pitch: msg.Pitch},
		Zoom:  zoom,
	}, handlers)
}

func (v *Viewer) handlePositionChanged(env streaming.Envelope) {
	var p core.Position
	if err := env.Decode(&p); err != nil {
		v.logger.Warn("Malformed position update", "error", err)
		return
	}
	p = p.Normalized()

	v.mu.Lock()
	if !v.alive {
		v.mu.Unlock()
		return
	}
	echo := v.lastApplied != nil && v.lastApplied.ApproxEqual(p, echoTolerance)
	v.lastApplied = nil
	v.position = p
	if echo {
		v.mu.Unlock()
		return
	}
	handlers := append([]Handler(nil), v.handlers[EventPositionChanged]...)
	v.mu.Unlock()

	v.emit(Event{Kind: EventPositionChanged, Zoom: p.Zoom, Position: p}, handlers)
}

func (v *Viewer) handleSelectMarker(env streaming.Envelope) {
	var msg streaming.MarkerIDPayload
	if err := env.Decode(&msg); err != nil {
		v.logger.Warn("Malformed marker selection", "error", err)
		return
	}

	v.mu.Lock()
	markers := v.markers
	alive := v.alive
	v.mu.Unlock()
	if !alive || markers == nil {
		return
	}
	markers.activate(msg.ID)
}

func (v *Viewer) handleResize(env streaming.Envelope) {
	var msg streaming.ResizePayload
	if err := env.Decode(&msg); err != nil {
		v.logger.Warn("Malformed resize", "error", err)
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.alive {
		v.viewport = projector.Viewport{Width: msg.Width, Height: msg.Height}
	}
}
