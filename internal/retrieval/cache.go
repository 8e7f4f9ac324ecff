package retrieval

import (
	"sync"
	"time"

	"github.com/openhouse/property-assistant/internal/db"
)

// Cache is an explicitly constructed, injectable result cache. It is
// never ambient: a retriever only caches when one is passed in, and keys
// always carry the full scope tuple, so a hit can never leak chunks
// across tenants or developments.
type Cache struct {
	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int
	entries    map[string]cacheEntry
	now        func() time.Time
}

type cacheEntry struct {
	result    *Result
	expiresAt time.Time
}

// DefaultCacheEntries bounds cache growth when no limit is given.
const DefaultCacheEntries = 512

// NewCache creates a cache with the given TTL and entry limit.
func NewCache(ttl time.Duration, maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultCacheEntries
	}
	return &Cache{
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]cacheEntry),
		now:        time.Now,
	}
}

// cloneResult copies the result and its match slice so the stored entry
// and the caller's value never alias. Callers routinely truncate or
// reorder Matches; sharing the slice would poison every later hit.
func cloneResult(r *Result) *Result {
	copied := *r
	copied.Matches = append([]db.ChunkMatch(nil), r.Matches...)
	return &copied
}

// Get returns a live cached result for the key. The returned value is a
// copy; mutating it does not affect the stored entry.
func (c *Cache) Get(key string) (*Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().After(entry.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return cloneResult(entry.result), true
}

// Put stores a copy of the result under the key, evicting expired
// entries first and the oldest entry when the cache is full.
func (c *Cache) Put(key string, result *Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, k)
		}
	}

	if len(c.entries) >= c.maxEntries {
		var oldestKey string
		var oldestAt time.Time
		for k, entry := range c.entries {
			if oldestKey == "" || entry.expiresAt.Before(oldestAt) {
				oldestKey = k
				oldestAt = entry.expiresAt
			}
		}
		delete(c.entries, oldestKey)
	}

	c.entries[key] = cacheEntry{result: cloneResult(result), expiresAt: now.Add(c.ttl)}
}

// Len returns the number of stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
