package cache

import (
	"sync"

	"github.com/kitchen360/catalog/pkg/core"
)

// EntityCache holds the last-known entity collection of a view so marker
// selections resolve without a store round trip.
type EntityCache struct {
	m     sync.RWMutex
	byID  map[string]core.Entity
	order []string
}

func NewEntityCache() *EntityCache {
	return &EntityCache{
		byID: make(map[string]core.Entity),
	}
}

// Replace swaps the whole collection. The first entity with a given id wins; the
// ids of later duplicates are returned in collection order.
func (c *EntityCache) Replace(list []core.Entity) (skipped []string) {
	byID := make(map[string]core.Entity, len(list))
	order := make([]string, 0, len(list))
	for _, e := range list {
		if e == nil {
			continue
		}
		id := e.EntityID()
		if _, ok := byID[id]; ok {
			skipped = append(skipped, id)
			continue
		}
		order = append(order, id)
		byID[id] = e
	}

	c.m.Lock()
	defer c.m.Unlock()
	c.byID = byID
	c.order = order
	return skipped
}

// Put inserts or replaces a single entity.
func (c *EntityCache) Put(e core.Entity) {
	c.m.Lock()
	defer c.m.Unlock()
	id := e.EntityID()
	if _, ok := c.byID[id]; !ok {
		c.order = append(c.order, id)
	}
	c.byID[id] = e
}

func (c *EntityCache) Get(id string) (core.Entity, bool) {
	c.m.RLock()
	defer c.m.RUnlock()
	e, ok := c.byID[id]
	return e, ok
}

// List returns the entities in collection order.
func (c *EntityCache) List() []core.Entity {
	c.m.RLock()
	defer c.m.RUnlock()
	out := make([]core.Entity, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

func (c *EntityCache) Len() int {
	c.m.RLock()
	defer c.m.RUnlock()
	return len(c.byID)
}

func (c *EntityCache) Reset() {
	c.m.Lock()
	defer c.m.Unlock()
	c.byID = make(map[string]core.Entity)
	c.order = nil
}

// SafeCounter is a thread-safe counter
type SafeCounter struct {
	mu sync.Mutex
	v  int
}

func (c *SafeCounter) Value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.v
}

func (c *SafeCounter) Set(v int) {
	c.mu.Lock()
	c.v = v
	c.mu.Unlock()
}

func (c *SafeCounter) Inc() {
	c.mu.Lock()
	c.v++
	c.mu.Unlock()
}

func (c *SafeCounter) Dec() {
	c.mu.Lock()
	c.v--
	c.mu.Unlock()
}
