// Package dedup provides a bounded, TTL-limited key set used to suppress
// repeated propagation of the same logical subscription change.
package dedup

import (
	"sync"
	"time"
)

const (
	// DefaultMaxEntries is the default capacity bound of the cache
	DefaultMaxEntries = 100

	// DefaultTTL is the default window during which a repeated change with
	// the same key is suppressed
	DefaultTTL = 60 * time.Second
)

type entry struct {
	key       string
	expiresAt time.Time
}

// Cache is a capacity- and TTL-bounded set of dedup keys. It is purely
// in-memory; entries do not survive a process restart. All operations are
// safe for concurrent use by live-event handlers and the backfill worker.
type Cache struct {
	mu         sync.Mutex
	maxEntries int
	ttl        time.Duration
	entries    map[string]*entry
	// order tracks insertion age for capacity eviction; exact eviction order
	// is not semantically significant, only that it never grows unboundedly.
	order []*entry
	now   func() time.Time
}

// Option configures the cache.
type Option func(*Cache)

// WithClock overrides the time source, used by tests to control expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// New creates a Cache with the given capacity and TTL. Non-positive values
// fall back to the defaults.
func New(maxEntries int, ttl time.Duration, opts ...Option) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	c := &Cache{
		maxEntries: maxEntries,
		ttl:        ttl,
		entries:    make(map[string]*entry, maxEntries),
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Seen reports whether key is present and not expired.
func (c *Cache) Seen(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return false
	}
	if c.now().After(e.expiresAt) {
		c.remove(e)
		return false
	}
	return true
}

// Mark records key as seen, refreshing its TTL window. When the cache is at
// capacity the oldest entry is evicted; eviction never blocks.
func (c *Cache) Mark(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()

	if e, ok := c.entries[key]; ok {
		e.expiresAt = now.Add(c.ttl)
		c.moveToBack(e)
		return
	}

	c.evictExpired(now)
	for len(c.entries) >= c.maxEntries {
		c.remove(c.order[0])
	}

	e := &entry{key: key, expiresAt: now.Add(c.ttl)}
	c.entries[key] = e
	c.order = append(c.order, e)
}

// Len returns the number of entries currently held, including any that have
// expired but not yet been evicted.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) evictExpired(now time.Time) {
	for len(c.order) > 0 && now.After(c.order[0].expiresAt) {
		c.remove(c.order[0])
	}
}

func (c *Cache) remove(e *entry) {
	delete(c.entries, e.key)
	for i, o := range c.order {
		if o == e {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

func (c *Cache) moveToBack(e *entry) {
	for i, o := range c.order {
		if o == e {
			c.order = append(c.order[:i], c.order[i+1:]...)
			c.order = append(c.order, e)
			return
		}
	}
}
