// Package dedup provides a TTL-expiring set of ticket keys. It prevents a
// ticket from being reprocessed or renotified within its TTL window.
package dedup

import (
	"sync"
	"time"
)

// Default TTLs: rule-filtered tickets stay cached long (the verdict will not
// change), freshly assigned tickets only until the tracker reflects the
// assignment in the next query.
const (
	FilteredTTL = time.Hour
	AssignedTTL = 5 * time.Minute
)

// Cache is a mutex-guarded TTL set. Expired entries are evicted lazily on
// lookup; there is no background sweep.
type Cache struct {
	mu      sync.Mutex
	expires map[string]time.Time
	now     func() time.Time
}

// New returns an empty cache using the wall clock.
func New() *Cache {
	return NewWithClock(time.Now)
}

// NewWithClock returns an empty cache with an injectable clock.
func NewWithClock(now func() time.Time) *Cache {
	return &Cache{expires: make(map[string]time.Time), now: now}
}

// Contains reports whether key is cached and unexpired. A stale entry is
// evicted as a side effect and reported as absent.
func (c *Cache) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	exp, ok := c.expires[key]
	if !ok {
		return false
	}
	if c.now().Before(exp) {
		return true
	}
	delete(c.expires, key)
	return false
}

// Add caches key for ttl. A second Add overwrites the previous expiry.
func (c *Cache) Add(key string, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expires[key] = c.now().Add(ttl)
}

// Len returns the number of entries, counting stale ones not yet evicted.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.expires)
}
