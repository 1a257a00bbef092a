// Package catalogfile moves catalogs in and out of files: YAML seed files that
// describe rooms, views and storage areas, and Parquet exports of storage areas.
package catalogfile

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/kitchen360/catalog/internal/storage"
	"github.com/kitchen360/catalog/pkg/core"
)

// Seed is the top-level document of a seed file.
type Seed struct {
	Rooms []SeedRoom `yaml:"rooms"`
}

// SeedRoom is a room with the views taken inside it.
type SeedRoom struct {
	Name        string            `yaml:"name"`
	Type        string            `yaml:"type"`
	Description string            `yaml:"description,omitempty"`
	LayoutType  string            `yaml:"layoutType,omitempty"`
	Metadata    map[string]string `yaml:"metadata,omitempty"`
	Views       []SeedView        `yaml:"views"`
}

// SeedView is one panorama. Key names the view inside the file so connections
// can point at it before it has an ID. Image is a file path, resolved relative to
// the seed file and uploaded to the backend; ImageURL is used as is.
type SeedView struct {
	Key         string           `yaml:"key"`
	Name        string           `yaml:"name"`
	Description string           `yaml:"description,omitempty"`
	Image       string           `yaml:"image,omitempty"`
	ImageURL    string           `yaml:"imageUrl,omitempty"`
	Position    SeedPosition     `yaml:"position"`
	Connections []SeedConnection `yaml:"connections,omitempty"`
	Areas       []SeedArea       `yaml:"areas,omitempty"`
}

// SeedConnection points at another view by key.
type SeedConnection struct {
	Target   string       `yaml:"target"`
	Type     string       `yaml:"type"`
	Position SeedPosition `yaml:"position"`
}

// SeedArea is a storage area inside a view.
type SeedArea struct {
	Name        string       `yaml:"name"`
	Type        string       `yaml:"type"`
	Description string       `yaml:"description,omitempty"`
	ImageURL    string       `yaml:"imageUrl,omitempty"`
	Position    SeedPosition `yaml:"position"`
}

// SeedPosition is a camera or marker position in radians.
type SeedPosition struct {
	Yaw   float64 `yaml:"yaw"`
	Pitch float64 `yaml:"pitch"`
	Zoom  float64 `yaml:"zoom"`
}

func (p SeedPosition) core() core.Position {
	return core.Position{Yaw: p.Yaw, Pitch: p.Pitch, Zoom: p.Zoom}.Normalized()
}

// LoadSeed reads and validates a seed file.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	if err := seed.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &seed, nil
}

// Validate checks names, types and that every connection targets a known key.
func (s *Seed) Validate() error {
	keys := map[string]bool{}
	for _, r := range s.Rooms {
		for _, v := range r.Views {
			if v.Key == "" {
				return fmt.Errorf("view %q in room %q has no key", v.Name, r.Name)
			}
			if keys[v.Key] {
				return fmt.Errorf("duplicate view key %q", v.Key)
			}
			keys[v.Key] = true
		}
	}

	for _, r := range s.Rooms {
		if r.Name == "" {
			return fmt.Errorf("room without a name")
		}
		for _, v := range r.Views {
			if v.Image == "" && v.ImageURL == "" {
				return fmt.Errorf("view %q has neither image nor imageUrl", v.Key)
			}
			for _, c := range v.Connections {
				if !keys[c.Target] {
					return fmt.Errorf("view %q connects to unknown view %q", v.Key, c.Target)
				}
			}
			for _, a := range v.Areas {
				if a.Name == "" {
					return fmt.Errorf("storage area without a name in view %q", v.Key)
				}
				if _, err := core.ParseStorageAreaType(a.Type); err != nil {
					return fmt.Errorf("view %q: %w", v.Key, err)
				}
			}
		}
	}
	return nil
}

// Result counts what Apply created.
type Result struct {
	Rooms  int
	Views  int
	Areas  int
	Images int
	// ViewIDs maps seed keys to the IDs the backend assigned.
	ViewIDs map[string]string
}

// Apply writes the seed into the backend. Views are created first and connected
// once every key has an ID. baseDir resolves relative image paths.
func Apply(ctx context.Context, b storage.Backend, seed *Seed, baseDir string, logger *slog.Logger) (Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	res := Result{ViewIDs: map[string]string{}}
	created := map[string]core.View{}

	for _, r := range seed.Rooms {
		room := core.Room{
			Name:        r.Name,
			Type:        r.Type,
			Description: r.Description,
			LayoutType:  r.LayoutType,
			Metadata:    r.Metadata,
		}
		if err := b.CreateRoom(ctx, &room); err != nil {
			return res, fmt.Errorf("create room %q: %w", r.Name, err)
		}
		res.Rooms++

		for _, v := range r.Views {
			imageURL := v.ImageURL
			if v.Image != "" {
				url, err := putImageFile(ctx, b, resolve(baseDir, v.Image))
				if err != nil {
					return res, fmt.Errorf("view %q: %w", v.Key, err)
				}
				imageURL = url
				res.Images++
			}

			view := core.View{
				RoomID:      room.ID,
				Name:        v.Name,
				Description: v.Description,
				ImageURL:    imageURL,
				Position:    v.Position.core(),
			}
			if err := b.CreateView(ctx, &view); err != nil {
				return res, fmt.Errorf("create view %q: %w", v.Key, err)
			}
			res.Views++
			res.ViewIDs[v.Key] = view.ID
			created[v.Key] = view

			for _, a := range v.Areas {
				typ, _ := core.ParseStorageAreaType(a.Type)
				area := core.StorageArea{
					ViewID:      view.ID,
					Name:        a.Name,
					Type:        typ,
					Description: a.Description,
					ImageURL:    a.ImageURL,
					Position:    a.Position.core(),
				}
				if err := b.CreateStorageArea(ctx, &area); err != nil {
					return res, fmt.Errorf("create storage area %q: %w", a.Name, err)
				}
				res.Areas++
			}
			logger.Debug("Seeded view", "key", v.Key, "id", view.ID, "areas", len(v.Areas))
		}
	}

	for _, r := range seed.Rooms {
		for _, v := range r.Views {
			if len(v.Connections) == 0 {
				continue
			}
			view := created[v.Key]
			for _, c := range v.Connections {
				view.Connections = append(view.Connections, core.ViewConnection{
					TargetViewID: res.ViewIDs[c.Target],
					Type:         core.ConnectionType(c.Type),
					Position:     c.Position.core(),
				})
			}
			if err := b.UpdateView(ctx, &view); err != nil {
				return res, fmt.Errorf("connect view %q: %w", v.Key, err)
			}
		}
	}

	logger.Info("Seed applied", "rooms", res.Rooms, "views", res.Views, "areas", res.Areas, "images", res.Images)
	return res, nil
}

func resolve(baseDir, path string) string {
	if filepath.IsAbs(path) || baseDir == "" {
		return path
	}
	return filepath.Join(baseDir, path)
}

func putImageFile(ctx context.Context, b storage.Backend, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}
	img := core.Image{ContentType: http.DetectContentType(data), Data: data}
	if err := b.PutImage(ctx, &img); err != nil {
		return "", fmt.Errorf("store image %s: %w", path, err)
	}
	return storage.ImagePath + img.ID, nil
}

// WriteSeed renders a seed file for the rooms in the backend. Images are referenced
// by URL.
func WriteSeed(ctx context.Context, b storage.Backend, path string) error {
	rooms, err := b.ListRooms(ctx)
	if err != nil {
		return err
	}
	seed := Seed{Rooms: make([]SeedRoom, 0, len(rooms))}
	for _, r := range rooms {
		views, err := b.ListViews(ctx, r.ID)
		if err != nil {
			return err
		}
		sr := SeedRoom{Name: r.Name, Type: r.Type, Description: r.Description, LayoutType: r.LayoutType, Metadata: r.Metadata}
		for _, v := range views {
			areas, err := b.ListStorageAreas(ctx, v.ID)
			if err != nil {
				return err
			}
			sv := SeedView{
				Key:         v.ID,
				Name:        v.Name,
				Description: v.Description,
				ImageURL:    v.ImageURL,
				Position:    seedPosition(v.Position),
			}
			for _, c := range v.Connections {
				sv.Connections = append(sv.Connections, SeedConnection{
					Target:   c.TargetViewID,
					Type:     string(c.Type),
					Position: seedPosition(c.Position),
				})
			}
			for _, a := range areas {
				sv.Areas = append(sv.Areas, SeedArea{
					Name:        a.Name,
					Type:        string(a.Type),
					Description: a.Description,
					ImageURL:    a.ImageURL,
					Position:    seedPosition(a.Position),
				})
			}
			sr.Views = append(sr.Views, sv)
		}
		seed.Rooms = append(seed.Rooms, sr)
	}

	data, err := yaml.Marshal(&seed)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write YAML file: %w", err)
	}
	return nil
}

func seedPosition(p core.Position) SeedPosition {
	return SeedPosition{Yaw: p.Yaw, Pitch: p.Pitch, Zoom: p.Zoom}
}
