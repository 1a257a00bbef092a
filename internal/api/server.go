// Package api serves the catalog over HTTP: JSON endpoints for rooms, views,
// storage areas and images, and a WebSocket endpoint that runs a viewer session.
package api

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/kitchen360/catalog/internal/cache"
	"github.com/kitchen360/catalog/internal/config"
	"github.com/kitchen360/catalog/internal/dispatcher"
	"github.com/kitchen360/catalog/internal/hotspot"
	"github.com/kitchen360/catalog/internal/logging"
	"github.com/kitchen360/catalog/internal/selection"
	"github.com/kitchen360/catalog/internal/session"
	"github.com/kitchen360/catalog/internal/storage"
	"github.com/kitchen360/catalog/internal/surface"
	"github.com/kitchen360/catalog/internal/surface/websocket"
	"github.com/kitchen360/catalog/pkg/core"
)

//go:embed static
var staticFiles embed.FS

// Deps holds everything the server needs.
type Deps struct {
	Backend  storage.Backend
	Server   config.ServerConfig
	Viewer   config.ViewerConfig
	Images   *cache.ImageCache
	Loader   surface.ImageLoader
	Activity hotspot.ActivityRecorder
	Logger   *slog.Logger
	// Meter reports the number of connected viewers. Optional.
	Meter metric.Meter
}

// Server routes HTTP requests to the catalog.
type Server struct {
	deps     Deps
	log      *slog.Logger
	upgrader websocket.Upgrader
	sessions cache.SafeCounter
	recent   *selection.Context
	ctx      context.Context
}

// NewServer creates a Server. ctx bounds every viewer session it starts.
func NewServer(ctx context.Context, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Images == nil {
		deps.Images = cache.NewImageCache()
	}
	if deps.Server.MaxUploadBytes <= 0 {
		deps.Server.MaxUploadBytes = 32 << 20
	}
	if deps.Meter == nil {
		deps.Meter = noop.Meter{}
	}
	s := &Server{
		deps: deps,
		log:  deps.Logger.With("component", "api"),
		upgrader: websocket.Upgrader{
			AllowedOrigins: deps.Server.AllowedOrigins,
			Logger:         deps.Logger,
		},
		recent: selection.NewContext(),
		ctx:    ctx,
	}
	_, err := deps.Meter.Int64ObservableGauge("catalog.viewer.sessions",
		metric.WithDescription("Connected viewer sessions"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(s.sessions.Value()))
			return nil
		}))
	if err != nil {
		s.log.Warn("Session gauge unavailable", "err", err)
	}
	return s
}

// RecentSelection holds the room and view most recently opened by any viewer.
func (s *Server) RecentSelection() *selection.Context {
	return s.recent
}

// ActiveSessions returns the number of connected viewers.
func (s *Server) ActiveSessions() int {
	return s.sessions.Value()
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			s.log.Error("Unable to write healthcheck", "err", err)
		}
	})

	mux.HandleFunc("GET /api/rooms", s.listRooms)
	mux.HandleFunc("POST /api/rooms", s.createRoom)
	mux.HandleFunc("GET /api/rooms/{id}", s.getRoom)
	mux.HandleFunc("DELETE /api/rooms/{id}", s.deleteRoom)
	mux.HandleFunc("POST /api/rooms/{id}/views", s.createView)

	mux.HandleFunc("GET /api/views/{id}", s.getView)
	mux.HandleFunc("PUT /api/views/{id}", s.updateView)
	mux.HandleFunc("GET /api/views/{id}/areas", s.listAreas)
	mux.HandleFunc("POST /api/views/{id}/areas", s.createArea)

	mux.HandleFunc("GET /api/areas", s.listAreas)
	mux.HandleFunc("GET /api/areas/{id}", s.getArea)
	mux.HandleFunc("PUT /api/areas/{id}", s.updateArea)
	mux.HandleFunc("DELETE /api/areas/{id}", s.deleteArea)

	mux.HandleFunc("POST /api/images", s.uploadImage)
	mux.HandleFunc("GET "+storage.ImagePath+"{id}", s.getImage)

	mux.HandleFunc("POST /api/snapshot", s.snapshot)

	mux.HandleFunc("GET /ws", s.serveViewer)

	static, _ := fs.Sub(staticFiles, "static")
	mux.Handle("GET /", http.FileServerFS(static))
	return mux
}

// Response helpers
func (s *Server) writeJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error("Unable to encode JSON response", "err", err)
	}
}

// writeError maps storage errors to status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	var bad *badRequest
	switch {
	case errors.Is(err, storage.ErrNotFound):
		code = http.StatusNotFound
	case errors.As(err, &bad):
		code = http.StatusBadRequest
	default:
		s.log.Error("Request failed", "err", err)
	}
	http.Error(w, err.Error(), code)
}

type badRequest struct{ err error }

func (e *badRequest) Error() string { return e.err.Error() }
func (e *badRequest) Unwrap() error { return e.err }

func invalid(format string, args ...any) error {
	return &badRequest{err: fmt.Errorf(format, args...)}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.deps.Server.MaxUploadBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return invalid("invalid JSON body: %v", err)
	}
	return nil
}

func (s *Server) listRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.deps.Backend.ListRooms(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rooms)
}

func (s *Server) createRoom(w http.ResponseWriter, r *http.Request) {
	var room core.Room
	if err := s.decode(w, r, &room); err != nil {
		s.writeError(w, err)
		return
	}
	if room.Name == "" {
		s.writeError(w, invalid("name is required"))
		return
	}
	room.Views = nil
	if err := s.deps.Backend.CreateRoom(r.Context(), &room); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, room)
}

func (s *Server) getRoom(w http.ResponseWriter, r *http.Request) {
	room, err := s.deps.Backend.GetRoom(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, room)
}

func (s *Server) deleteRoom(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Backend.DeleteRoom(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func validView(v *core.View) error {
	if v.ImageURL == "" {
		return invalid("imageUrl is required")
	}
	v.Position = v.Position.Normalized()
	for i, c := range v.Connections {
		if c.TargetViewID == "" {
			return invalid("connection %d has no target view", i)
		}
		v.Connections[i].Position = c.Position.Normalized()
	}
	return nil
}

func (s *Server) createView(w http.ResponseWriter, r *http.Request) {
	var view core.View
	if err := s.decode(w, r, &view); err != nil {
		s.writeError(w, err)
		return
	}
	view.RoomID = r.PathValue("id")
	if err := validView(&view); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.deps.Backend.CreateView(r.Context(), &view); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, view)
}

func (s *Server) getView(w http.ResponseWriter, r *http.Request) {
	view, err := s.deps.Backend.GetView(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) updateView(w http.ResponseWriter, r *http.Request) {
	old, err := s.deps.Backend.GetView(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	var view core.View
	if err := s.decode(w, r, &view); err != nil {
		s.writeError(w, err)
		return
	}
	view.ID, view.RoomID = old.ID, old.RoomID
	if err := validView(&view); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.deps.Backend.UpdateView(r.Context(), &view); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

// areaRequest is the body accepted when creating or replacing a storage area.
type areaRequest struct {
	Name        string        `json:"name"`
	Type        string        `json:"type"`
	Description string        `json:"description"`
	Position    core.Position `json:"position"`
	ImageURL    string        `json:"imageUrl"`
}

func (req areaRequest) area(viewID string) (core.StorageArea, error) {
	if req.Name == "" {
		return core.StorageArea{}, invalid("name is required")
	}
	typ, err := core.ParseStorageAreaType(req.Type)
	if err != nil {
		return core.StorageArea{}, &badRequest{err: err}
	}
	return core.StorageArea{
		ViewID:      viewID,
		Name:        req.Name,
		Type:        typ,
		Description: req.Description,
		Position:    req.Position.Normalized(),
		ImageURL:    req.ImageURL,
	}, nil
}

func (s *Server) listAreas(w http.ResponseWriter, r *http.Request) {
	viewID := r.PathValue("id")
	if viewID != "" {
		if _, err := s.deps.Backend.GetView(r.Context(), viewID); err != nil {
			s.writeError(w, err)
			return
		}
	}
	areas, err := s.deps.Backend.ListStorageAreas(r.Context(), viewID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, areas)
}

func (s *Server) createArea(w http.ResponseWriter, r *http.Request) {
	view, err := s.deps.Backend.GetView(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req areaRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	area, err := req.area(view.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.deps.Backend.CreateStorageArea(r.Context(), &area); err != nil {
		s.writeError(w, err)
		return
	}
	s.record("area_created", map[string]any{"id": area.ID, "kind": string(core.KindStorageArea)})
	s.writeJSON(w, http.StatusCreated, area)
}

func (s *Server) getArea(w http.ResponseWriter, r *http.Request) {
	area, err := s.deps.Backend.GetStorageArea(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, area)
}

func (s *Server) updateArea(w http.ResponseWriter, r *http.Request) {
	old, err := s.deps.Backend.GetStorageArea(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req areaRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	area, err := req.area(old.ViewID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	area.ID = old.ID
	if err := s.deps.Backend.UpdateStorageArea(r.Context(), &area); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, area)
}

func (s *Server) deleteArea(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.deps.Backend.DeleteStorageArea(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	s.record("area_deleted", map[string]any{"id": id})
	w.WriteHeader(http.StatusNoContent)
}

// uploadImage accepts a multipart "file" field or a raw image body.
func (s *Server) uploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.deps.Server.MaxUploadBytes)

	var (
		data        []byte
		contentType string
		err         error
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, header, ferr := r.FormFile("file")
		if ferr != nil {
			s.writeError(w, invalid("missing file field: %v", ferr))
			return
		}
		defer file.Close()
		data, err = io.ReadAll(file)
		contentType = header.Header.Get("Content-Type")
	} else {
		data, err = io.ReadAll(r.Body)
		contentType = r.Header.Get("Content-Type")
	}
	if err != nil {
		s.writeError(w, invalid("reading upload: %v", err))
		return
	}
	if len(data) == 0 {
		s.writeError(w, invalid("empty upload"))
		return
	}
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(contentType, "image/") {
		s.writeError(w, invalid("not an image: %s", contentType))
		return
	}

	img := core.Image{ContentType: contentType, Data: data}
	if err := s.deps.Backend.PutImage(r.Context(), &img); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{
		"id":  img.ID,
		"url": storage.ImagePath + img.ID,
	})
}

func (s *Server) getImage(w http.ResponseWriter, r *http.Request) {
	img, err := s.deps.Backend.GetImage(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", img.ContentType)
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	if _, err := w.Write(img.Data); err != nil {
		s.log.Debug("Image write aborted", "err", err)
	}
}

// snapshot asks the backend to write its on-disk copy now.
func (s *Server) snapshot(w http.ResponseWriter, r *http.Request) {
	d, ok := s.deps.Backend.(storage.Dumpable)
	if !ok {
		http.Error(w, "storage backend does not support snapshots", http.StatusNotImplemented)
		return
	}
	if err := d.Dump(); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// serveViewer upgrades to a WebSocket and runs one viewer session until it
// disconnects. The optional view query parameter is opened right away.
func (s *Server) serveViewer(w http.ResponseWriter, r *http.Request) {
	d, err := dispatcher.New(logging.NewDispatcherLogger(s.deps.Logger))
	if err != nil {
		s.writeError(w, err)
		return
	}
	defer d.Close()

	conn, err := s.upgrader.Accept(w, r, d)
	if err != nil {
		s.log.Warn("Viewer upgrade failed", "err", err)
		return
	}

	sess, err := session.New(conn, session.Config{
		Backend:  s.deps.Backend,
		Viewer:   s.deps.Viewer,
		Images:   s.deps.Images,
		Loader:   s.deps.Loader,
		Activity: s.deps.Activity,
		Logger:   s.deps.Logger,
		Recent:   s.recent,
	})
	if err != nil {
		s.log.Error("Session setup failed", "err", err)
		_ = conn.Close()
		return
	}

	s.sessions.Inc()
	defer s.sessions.Dec()
	s.log.Info("Viewer connected", "remote", r.RemoteAddr, "sessions", s.sessions.Value())

	if viewID := r.URL.Query().Get("view"); viewID != "" {
		if err := sess.Open(r.Context(), viewID); err != nil {
			s.log.Warn("Opening initial view failed", "view", viewID, "err", err)
		}
	}

	if err := conn.Serve(s.ctx); err != nil {
		s.log.Debug("Viewer connection ended", "err", err)
	}
	if err := sess.Close(); err != nil {
		s.log.Warn("Session teardown failed", "err", err)
	}
	s.log.Info("Viewer disconnected", "remote", r.RemoteAddr)
}

func (s *Server) record(action string, fields map[string]any) {
	if s.deps.Activity != nil {
		s.deps.Activity.Record(action, fields)
	}
}
