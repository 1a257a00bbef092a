// Package session runs one viewer connection: it shows a view through a hotspot
// controller, answers the viewer's creation and navigation requests, and keeps the
// selection context current.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/kitchen360/catalog/internal/cache"
	"github.com/kitchen360/catalog/internal/config"
	"github.com/kitchen360/catalog/internal/hotspot"
	"github.com/kitchen360/catalog/internal/selection"
	"github.com/kitchen360/catalog/internal/storage"
	"github.com/kitchen360/catalog/internal/surface"
	"github.com/kitchen360/catalog/pkg/core"
	"github.com/kitchen360/catalog/pkg/streaming"
)

// connectionPrefix marks hotspots generated from view connections.
const connectionPrefix = "view:"

// ErrClosed is returned by Open once the session is closed.
var ErrClosed = errors.New("session closed")

// Config configures a Session.
type Config struct {
	Backend storage.Backend
	Viewer  config.ViewerConfig
	// Images remembers decoded panorama headers across sessions. Optional.
	Images *cache.ImageCache
	// Loader resolves URLs that are not served by the catalog. Defaults to HTTP.
	Loader   surface.ImageLoader
	Activity hotspot.ActivityRecorder
	Logger   *slog.Logger
	// Recent is set to every view this session opens. It may be shared by many
	// sessions. Optional.
	Recent *selection.Context
}

// Session binds one container to a hotspot controller.
type Session struct {
	container surface.Container
	backend   storage.Backend
	store     *storage.EntityStore
	sel       *selection.Context
	recent    *selection.Context
	ctrl      *hotspot.Controller
	imageBase string
	log       *slog.Logger

	mu     sync.Mutex
	closed bool
}

// New creates a session for container. Nothing is shown until Open.
func New(container surface.Container, cfg Config) (*Session, error) {
	if cfg.Backend == nil {
		return nil, errors.New("session: storage backend is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	navbar, err := surface.ParseNavbar(cfg.Viewer.Navbar)
	if err != nil {
		return nil, fmt.Errorf("viewer navbar: %w", err)
	}

	sel := selection.NewContext()
	store := storage.NewEntityStore(cfg.Backend, sel)
	ctrl, err := hotspot.New(hotspot.Config{
		Store: store,
		Surface: surface.Options{
			Navbar:      navbar,
			Plugins:     []surface.PluginKind{surface.PluginMarkers},
			DefaultZoom: cfg.Viewer.DefaultZoom,
			HitRadius:   cfg.Viewer.HitRadius,
			Loader:      newLoader(cfg),
		},
		Logger:   cfg.Logger,
		Activity: cfg.Activity,
	})
	if err != nil {
		return nil, err
	}

	s := &Session{
		container: container,
		backend:   cfg.Backend,
		store:     store,
		sel:       sel,
		recent:    cfg.Recent,
		ctrl:      ctrl,
		imageBase: cfg.Viewer.ImageBaseURL,
		log:       cfg.Logger.With("component", "session"),
	}

	ctrl.OnCreationRequested(s.creationRequested)
	ctrl.OnEntitySelected(s.entitySelected)
	ctrl.OnFatalError(s.fatal)

	container.Handle(streaming.TypeSubmitCreation, s.handleSubmit)
	container.Handle(streaming.TypeCancelCreation, func(streaming.Envelope) { s.ctrl.Cancel() })
	container.Handle(streaming.TypeOpenView, s.handleOpenView)
	return s, nil
}

// Controller returns the session's hotspot controller.
func (s *Session) Controller() *hotspot.Controller {
	return s.ctrl
}

// Selection returns the room and view being shown.
func (s *Session) Selection() *selection.Context {
	return s.sel
}

// Open shows viewID: its storage areas and its connections to other views become
// markers. A previously open view is replaced. Mount failures have already been
// reported to the viewer as fatal_error when Open returns them.
func (s *Session) Open(ctx context.Context, viewID string) error {
	view, err := s.backend.GetView(ctx, viewID)
	if err != nil {
		return fmt.Errorf("open view: %w", err)
	}
	room, err := s.backend.GetRoom(ctx, view.RoomID)
	if err != nil {
		return fmt.Errorf("open view %s: %w", viewID, err)
	}
	entities, err := s.entities(ctx, view)
	if err != nil {
		return err
	}

	// Close waits for a mount in progress, so nothing is mounted after it
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.sel.Set(room, view)
	if s.recent != nil {
		s.recent.Set(room, view)
	}
	if err := s.ctrl.Mount(s.container, s.imageURL(view.ImageURL), entities); err != nil {
		return err
	}
	room.Views = nil
	s.render(streaming.TypeViewOpened, streaming.ViewOpenedPayload{Room: room, View: view})
	s.log.Info("View opened", "room", room.Name, "view", view.Name, "markers", len(entities))
	return nil
}

// Refresh reloads the current view's entities without remounting.
func (s *Session) Refresh(ctx context.Context) error {
	view := s.sel.View()
	if view.ID == "" {
		return hotspot.ErrNotMounted
	}
	entities, err := s.entities(ctx, view)
	if err != nil {
		return err
	}
	s.ctrl.UpdateEntities(entities)
	return nil
}

// Close tears the view down and stops handling viewer messages.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	for _, t := range []string{streaming.TypeSubmitCreation, streaming.TypeCancelCreation, streaming.TypeOpenView} {
		s.container.Unhandle(t)
	}
	if err := s.ctrl.UnMount(); err != nil && !errors.Is(err, hotspot.ErrNotMounted) {
		return err
	}
	return nil
}

func (s *Session) entities(ctx context.Context, view core.View) ([]core.Entity, error) {
	list, err := s.store.Entities(ctx, view.ID)
	if err != nil {
		return nil, fmt.Errorf("load storage areas: %w", err)
	}
	for _, conn := range view.Connections {
		list = append(list, ConnectionHotspot(conn))
	}
	return list, nil
}

// ConnectionHotspot renders a view connection as a hotspot whose selection opens
// the target view.
func ConnectionHotspot(c core.ViewConnection) core.Hotspot {
	return core.Hotspot{
		ID:         connectionPrefix + c.TargetViewID,
		Name:       string(c.Type),
		Position:   c.Position,
		RenderKind: core.ContentPlainText,
	}
}

func (s *Session) imageURL(u string) string {
	if strings.HasPrefix(u, "/") {
		return s.imageBase + u
	}
	return u
}

func (s *Session) creationRequested(pos core.Position) {
	s.render(streaming.TypeCreationRequested, pos)
}

func (s *Session) entitySelected(e core.Entity) {
	switch e := e.(type) {
	case core.Hotspot:
		if target, ok := strings.CutPrefix(e.ID, connectionPrefix); ok {
			// remount outside the callback; it runs on the surface being replaced
			go func() {
				if err := s.Open(context.Background(), target); err != nil {
					s.log.Warn("Following view connection failed", "target", target, "error", err)
				}
			}()
			return
		}
		s.render(streaming.TypeEntitySelected, streaming.EntitySelectedPayload{Kind: core.KindHotspot, Entity: e})
	case core.StorageArea:
		s.render(streaming.TypeEntitySelected, streaming.EntitySelectedPayload{
			Kind:      core.KindStorageArea,
			Entity:    e,
			DetailURL: "/api/areas/" + e.ID,
		})
	default:
		s.log.Warn("Selected entity of unknown type", "id", e.EntityID())
	}
}

func (s *Session) fatal(err error) {
	s.render(streaming.TypeFatalError, streaming.FatalErrorPayload{
		Error:     err.Error(),
		Retryable: errors.Is(err, surface.ErrImageLoad),
	})
}

func (s *Session) handleSubmit(env streaming.Envelope) {
	var data core.CreationData
	if err := env.Decode(&data); err != nil {
		s.render(streaming.TypeCreationFailed, streaming.CreationFailedPayload{Error: err.Error()})
		return
	}
	if data.Kind == "" {
		data.Kind = core.KindStorageArea
	}
	// only storage areas are persisted; the click stays pending for a retry
	if data.Kind != core.KindStorageArea {
		err := fmt.Errorf("%w: %s", storage.ErrUnsupportedKind, data.Kind)
		s.log.Warn("Creation rejected", "error", err)
		s.render(streaming.TypeCreationFailed, streaming.CreationFailedPayload{Error: err.Error()})
		return
	}

	e, err := s.ctrl.Submit(context.Background(), data)
	if err != nil {
		s.log.Warn("Creation rejected", "error", err)
		s.render(streaming.TypeCreationFailed, streaming.CreationFailedPayload{Error: err.Error()})
		return
	}
	s.render(streaming.TypeEntityCreated, streaming.EntitySelectedPayload{Kind: data.Kind, Entity: e})
}

func (s *Session) handleOpenView(env streaming.Envelope) {
	var p streaming.OpenViewPayload
	if err := env.Decode(&p); err != nil {
		s.log.Debug("Malformed open_view", "error", err)
		return
	}
	err := s.Open(context.Background(), p.ViewID)
	if err == nil {
		return
	}
	s.log.Warn("Opening view failed", "view", p.ViewID, "error", err)
	if !errors.Is(err, surface.ErrMount) && !errors.Is(err, ErrClosed) {
		s.fatal(err)
	}
}

func (s *Session) render(msgType string, payload any) {
	env, err := streaming.NewEnvelope(msgType, payload)
	if err != nil {
		s.log.Error("Encoding viewer message failed", "type", msgType, "error", err)
		return
	}
	if err := s.container.Render(env); err != nil {
		s.log.Debug("Viewer message dropped", "type", msgType, "error", err)
	}
}
