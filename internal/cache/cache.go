// Package cache holds warehouse query results keyed by query name and data
// version. Bumping the version after a mutation makes every older entry
// unreachable, so the next read goes back to the warehouse.
package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

type entry struct {
	value   any
	expires time.Time
}

// Cache is a TTL result cache with a data version counter.
type Cache struct {
	ttl     time.Duration
	now     func() time.Time
	version atomic.Int64

	mu      sync.Mutex
	entries map[string]entry
	group   singleflight.Group
}

// New creates a cache whose entries live for ttl.
func New(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]entry),
	}
}

// Version returns the current data version.
func (c *Cache) Version() int64 {
	return c.version.Load()
}

// Bump advances the data version and drops every cached entry.
func (c *Cache) Bump() int64 {
	v := c.version.Add(1)
	c.mu.Lock()
	clear(c.entries)
	c.mu.Unlock()
	return v
}

// Get returns the cached value for name at the current version, calling load
// on a miss. Concurrent misses for the same key share one load. Errors are
// never cached.
func Get[T any](ctx context.Context, c *Cache, name string, load func(ctx context.Context) (T, error)) (T, error) {
	key := fmt.Sprintf("%s@%d", name, c.Version())

	if v, ok := c.lookup(key); ok {
		return v.(T), nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		if v, ok := c.lookup(key); ok {
			return v, nil
		}
		val, err := load(ctx)
		if err != nil {
			return nil, err
		}
		c.store(key, val)
		return val, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

func (c *Cache) lookup(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.ttl > 0 && c.now().After(e.expires) {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

func (c *Cache) store(key string, val any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{value: val, expires: c.now().Add(c.ttl)}
}

// Len reports the number of live entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
