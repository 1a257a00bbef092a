package selection

import (
	"log/slog"
	"sync"

	"github.com/kitchen360/catalog/pkg/core"
)

// Context holds the room and view a session is showing
type Context struct {
	mu   sync.RWMutex
	room core.Room
	view core.View
}

// NewContext creates a new Context with nothing selected
func NewContext() *Context {
	return &Context{
		room: core.Room{Name: "No room selected"},
		view: core.View{Name: "No view selected"},
	}
}

// Room returns the current room
func (c *Context) Room() core.Room {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.room
}

// View returns the current view
func (c *Context) View() core.View {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.view
}

// ViewID returns the current view id, empty when none is selected
func (c *Context) ViewID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.view.ID
}

// LogAttrs describes the selection for log records. Nothing is returned before a
// view is selected.
func (c *Context) LogAttrs() []slog.Attr {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.view.ID == "" {
		return nil
	}
	return []slog.Attr{
		slog.String("room", c.room.Name),
		slog.String("view", c.view.Name),
		slog.String("viewId", c.view.ID),
	}
}

// Set selects a room and one of its views
func (c *Context) Set(room core.Room, view core.View) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.room = room
	c.view = view
}
