// Package cache is a per-restaurant read-through cache for slowly changing
// reference data (menus, tax profiles) read on every order mutation.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// LoadFunc fetches the authoritative value for a restaurant.
type LoadFunc[V any] func(ctx context.Context, restaurantID uuid.UUID) (V, error)

type entry[V any] struct {
	value   V
	expires time.Time
}

// Cache holds one value per restaurant for ttl. Concurrent misses for the
// same restaurant share a single load.
type Cache[V any] struct {
	load  LoadFunc[V]
	ttl   time.Duration
	now   func() time.Time
	group singleflight.Group

	mu      sync.RWMutex
	entries map[uuid.UUID]entry[V]
}

func New[V any](ttl time.Duration, load LoadFunc[V]) *Cache[V] {
	return &Cache[V]{
		load:    load,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[uuid.UUID]entry[V]),
	}
}

func (c *Cache[V]) lookup(id uuid.UUID) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[id]
	if !ok || c.now().After(e.expires) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Get returns the cached value or loads it. A zero ttl disables caching.
func (c *Cache[V]) Get(ctx context.Context, restaurantID uuid.UUID) (V, error) {
	if c.ttl <= 0 {
		return c.load(ctx, restaurantID)
	}
	if v, ok := c.lookup(restaurantID); ok {
		return v, nil
	}

	v, err, _ := c.group.Do(restaurantID.String(), func() (any, error) {
		// Another caller may have filled the entry while we queued.
		if v, ok := c.lookup(restaurantID); ok {
			return v, nil
		}
		v, err := c.load(ctx, restaurantID)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[restaurantID] = entry[V]{value: v, expires: c.now().Add(c.ttl)}
		c.mu.Unlock()
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return v.(V), nil
}

// Invalidate drops the entry so the next Get reloads.
func (c *Cache[V]) Invalidate(restaurantID uuid.UUID) {
	c.mu.Lock()
	delete(c.entries, restaurantID)
	c.mu.Unlock()
	c.group.Forget(restaurantID.String())
}
