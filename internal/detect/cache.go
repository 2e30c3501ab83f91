package detect

import (
	"sync"
	"time"

	"github.com/hay-kot/enso/internal/core/agent"
)

type cacheEntry struct {
	result agent.Result
	at     time.Time
}

// Cache holds the latest detection result per agent id. Entries never
// expire; Invalidate drops them and starts a new generation so probes that
// began before the invalidation cannot write their results back.
type Cache struct {
	mu      sync.Mutex
	gen     uint64
	entries map[string]cacheEntry
	now     func() time.Time
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// Get returns the cached result for id.
func (c *Cache) Get(id string) (agent.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	return e.result, ok
}

// CapturedAt returns when the result for id was stored.
func (c *Cache) CapturedAt(id string) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	return e.at, ok
}

// Generation returns the current generation. Read it before starting a
// probe and pass it to Put.
func (c *Cache) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// Put stores r for id if gen is still current and reports whether it did.
func (c *Cache) Put(id string, r agent.Result, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return false
	}
	c.entries[id] = cacheEntry{result: r, at: c.now()}
	return true
}

// Invalidate drops the given ids, or every entry when none are given, and
// advances the generation.
func (c *Cache) Invalidate(ids ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	if len(ids) == 0 {
		clear(c.entries)
		return
	}
	for _, id := range ids {
		delete(c.entries, id)
	}
}

// Len returns the number of cached results.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
