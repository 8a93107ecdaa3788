package mups

import (
	"slices"
	"sync"

	"github.com/cognicore/ontofix/pkg/ontofix/axiom"
)

// Cache holds every MUPS discovered so far, grouped by entity. Entries are
// immutable and only ever added, so readers always see a consistent
// snapshot. Safe for concurrent use.
type Cache struct {
	mu       sync.RWMutex
	byEntity map[axiom.Entity][]MUPS
	keys     map[string]struct{}
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{
		byEntity: make(map[axiom.Entity][]MUPS),
		keys:     make(map[string]struct{}),
	}
}

// Lookup returns the first cached MUPS of e whose axioms are all in working.
func (c *Cache) Lookup(e axiom.Entity, working Container) (MUPS, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, m := range c.byEntity[e] {
		if m.ContainedIn(working) {
			return m, true
		}
	}
	return MUPS{}, false
}

// Add inserts m and reports whether it was new.
func (c *Cache) Add(m MUPS) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.keys[m.Key()]; ok {
		return false
	}
	c.keys[m.Key()] = struct{}{}
	c.byEntity[m.Entity()] = append(c.byEntity[m.Entity()], m)
	return true
}

// ForEntity returns the cached MUPS of e in discovery order.
func (c *Cache) ForEntity(e axiom.Entity) []MUPS {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.byEntity[e])
}

// All returns every cached MUPS, sorted.
func (c *Cache) All() []MUPS {
	c.mu.RLock()
	var out []MUPS
	for _, ms := range c.byEntity {
		out = append(out, ms...)
	}
	c.mu.RUnlock()

	slices.SortFunc(out, MUPS.Compare)
	return out
}

// Len returns the number of cached MUPS.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.keys)
}
