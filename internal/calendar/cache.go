package calendar

import (
	"sync"
	"time"

	"planning/internal/event"
)

// Cache memoizes the last Bin result. The key is the collection version
// together with the reference date and granularity; any change recomputes.
type Cache struct {
	mu    sync.Mutex
	valid bool
	ver   uint64
	ref   time.Time
	g     Granularity
	view  View
	hits  int
}

func (c *Cache) Bin(version uint64, events []event.Event, ref time.Time, g Granularity) View {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.valid && c.ver == version && c.g == g && c.ref.Equal(ref) && c.ref.Location() == ref.Location() {
		c.hits++
		return c.view
	}
	c.view = Bin(events, ref, g)
	c.ver, c.ref, c.g, c.valid = version, ref, g, true
	return c.view
}

// Hits reports how many calls were served from memory.
func (c *Cache) Hits() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits
}
