package cache

import (
	"context"
	"sync"
	"time"

	"confluence-backend/internal/domain"
)

type memoryEntry struct {
	spec    domain.ToleranceSpec
	expires time.Time
}

// MemoryToleranceCache is a process-local ToleranceCache with per-entry TTL.
// Entries are also bounded by maxEntries; when full, expired entries are swept
// and, if still full, the cache is reset.
type MemoryToleranceCache struct {
	entries    map[domain.ToleranceKey]memoryEntry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
	mu         sync.RWMutex
}

var _ domain.ToleranceCache = (*MemoryToleranceCache)(nil)

func NewMemoryToleranceCache(ttl time.Duration, maxEntries int) *MemoryToleranceCache {
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	return &MemoryToleranceCache{
		entries:    make(map[domain.ToleranceKey]memoryEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func (c *MemoryToleranceCache) Get(_ context.Context, key domain.ToleranceKey) (domain.ToleranceSpec, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return domain.ToleranceSpec{}, false
	}
	if c.ttl > 0 && c.now().After(e.expires) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return domain.ToleranceSpec{}, false
	}
	return e.spec, true
}

func (c *MemoryToleranceCache) Set(_ context.Context, key domain.ToleranceKey, spec domain.ToleranceSpec) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if len(c.entries) >= c.maxEntries {
		for k, e := range c.entries {
			if c.ttl > 0 && now.After(e.expires) {
				delete(c.entries, k)
			}
		}
		if len(c.entries) >= c.maxEntries {
			c.entries = make(map[domain.ToleranceKey]memoryEntry)
		}
	}
	c.entries[key] = memoryEntry{spec: spec, expires: now.Add(c.ttl)}
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryToleranceCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
