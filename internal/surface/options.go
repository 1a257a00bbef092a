package surface

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/kitchen360/catalog/internal/projector"
)

// Navbar is the set of navigation controls shown by the viewer.
type Navbar uint8

const (
	NavZoom Navbar = 1 << iota
	NavMove
	NavDownload
	NavFullscreen

	NavAll = NavZoom | NavMove | NavDownload | NavFullscreen

	// NavNone hides the navbar. The zero value means "use the default" (NavAll).
	NavNone Navbar = 1 << 7
)

var navbarNames = []struct {
	flag Navbar
	name string
}{
	{NavZoom, "zoom"},
	{NavMove, "move"},
	{NavDownload, "download"},
	{NavFullscreen, "fullscreen"},
}

// Names lists the enabled controls in viewer order.
func (n Navbar) Names() []string {
	names := []string{}
	if n&NavNone != 0 {
		return names
	}
	for _, b := range navbarNames {
		if n&b.flag != 0 {
			names = append(names, b.name)
		}
	}
	return names
}

// Has reports whether the control is enabled.
func (n Navbar) Has(flag Navbar) bool {
	return n&NavNone == 0 && n&flag != 0
}

// ParseNavbar builds a Navbar from control names. An empty list yields NavNone.
func ParseNavbar(names []string) (Navbar, error) {
	if len(names) == 0 {
		return NavNone, nil
	}
	var n Navbar
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		found := false
		for _, b := range navbarNames {
			if b.name == name {
				n |= b.flag
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown navbar control %q", raw)
		}
	}
	return n, nil
}

// PluginKind names an extension the surface can activate.
type PluginKind string

const PluginMarkers PluginKind = "markers"

// Options configures Mount.
type Options struct {
	Navbar      Navbar
	Plugins     []PluginKind
	DefaultZoom float64
	// HitRadius is the click distance in pixels within which a click resolves to a
	// rendered marker instead of the panorama.
	HitRadius float64

	Loader    ImageLoader
	Projector *projector.Projector
	Logger    *slog.Logger

	// OnLoad runs once the panorama has been decoded.
	OnLoad func(ImageInfo)
	// OnLoadError runs when the panorama could not be resolved. The error is an
	// *ImageLoadError.
	OnLoadError func(error)
}

// DefaultOptions returns all navigation controls, the markers plugin and zoom 50.
func DefaultOptions() Options {
	return Options{
		Navbar:      NavAll,
		Plugins:     []PluginKind{PluginMarkers},
		DefaultZoom: 50,
		HitRadius:   16,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.Navbar == 0 {
		o.Navbar = def.Navbar
	}
	if o.Plugins == nil {
		o.Plugins = def.Plugins
	}
	if o.HitRadius <= 0 {
		o.HitRadius = def.HitRadius
	}
	if o.Loader == nil {
		o.Loader = NewHTTPLoader(nil)
	}
	if o.Projector == nil {
		o.Projector = projector.Default()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

func (o Options) wants(kind PluginKind) bool {
	for _, p := range o.Plugins {
		if p == kind {
			return true
		}
	}
	return false
}

func (o Options) pluginNames() []string {
	names := make([]string, 0, len(o.Plugins))
	for _, p := range o.Plugins {
		names = append(names, string(p))
	}
	return names
}
