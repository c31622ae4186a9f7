// Package counts caches expensive aggregate queries, such as the total
// package count the scheduler logs each tick. Concurrent callers of an
// expired key share a single recomputation instead of stampeding the
// database.
package counts

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const defaultTTL = time.Hour

type entry struct {
	value   int64
	expires time.Time
}

type Cache struct {
	group   singleflight.Group
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Cache{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the cached value for key, or runs compute to fill it.
// Only one compute per key runs at a time; callers that arrive while a
// flight is in progress wait for its result. Compute errors are not
// cached.
func (c *Cache) Get(ctx context.Context, key string, compute func(context.Context) (int64, error)) (int64, error) {
	if value, ok := c.cached(key); ok {
		return value, nil
	}

	result, err, _ := c.group.Do(key, func() (any, error) {
		// a concurrent flight may have landed between our miss and here
		if value, ok := c.cached(key); ok {
			return value, nil
		}
		value, err := compute(ctx)
		if err != nil {
			return int64(0), err
		}
		c.mu.Lock()
		c.entries[key] = entry{value: value, expires: c.now().Add(c.ttl)}
		c.mu.Unlock()
		return value, nil
	})
	if err != nil {
		return 0, err
	}
	return result.(int64), nil
}

// Forget drops a key so the next Get recomputes it.
func (c *Cache) Forget(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	c.group.Forget(key)
}

func (c *Cache) cached(key string) (int64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || c.now().After(e.expires) {
		return 0, false
	}
	return e.value, true
}
