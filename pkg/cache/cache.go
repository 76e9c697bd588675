// Package cache provides a process-wide, TTL-bound request cache.
//
// Entries are keyed by request signature (see Key) and expire a fixed
// time after being stored. Entries are never invalidated early: callers
// may observe stale third-party results within the TTL window.
package cache

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// DefaultTTL bounds how long a cached value remains visible.
const DefaultTTL = 60 * time.Second

type entry struct {
	value      any
	cacheUntil time.Time
}

func (e entry) stale(now time.Time) bool {
	return now.After(e.cacheUntil)
}

// Cache is a concurrency-safe map with per-entry expiry.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

// New creates a cache with configuration options.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[string]entry),
		ttl:     DefaultTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached value for key if present and not expired.
// Expired entries are dropped on access.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if e.stale(c.now()) {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

// Put stores value under key, replacing any previous entry.
func (c *Cache) Put(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{value: value, cacheUntil: c.now().Add(c.ttl)}
}

// Remove drops the entry for key, if any.
func (c *Cache) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Flush drops every entry.
func (c *Cache) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
}

// Len returns the number of stored entries, stale ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// GC sweeps expired entries.
func (c *Cache) GC() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for k, e := range c.entries {
		if e.stale(now) {
			delete(c.entries, k)
		}
	}
}

// Key builds a request signature from a url and its query parameters,
// sorted so equivalent requests share one entry.
func Key(url string, params map[string]string) string {
	parts := make([]string, 0, len(params)+1)
	parts = append(parts, url)
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, k+"="+params[k])
	}
	return strings.Join(parts, ":")
}
