// Package cache is a small typed wrapper around an expiring in-memory
// key/value store, used to keep collaborators from re-fetching the same
// lookups within a process lifetime.
package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

type Cache[V any] struct {
	cache *gocache.Cache
}

// New creates a cache whose entries expire after ttl.
func New[V any](ttl time.Duration) *Cache[V] {
	if ttl <= 0 {
		ttl = 1 * time.Hour
	}
	return &Cache[V]{cache: gocache.New(ttl, ttl/2)}
}

func (c *Cache[V]) Get(key string) (V, bool) {
	value, found := c.cache.Get(key)
	if !found {
		var zero V
		return zero, false
	}
	typed, ok := value.(V)
	if !ok {
		var zero V
		return zero, false
	}
	return typed, true
}

func (c *Cache[V]) Set(key string, value V) {
	c.cache.Set(key, value, gocache.DefaultExpiration)
}

func (c *Cache[V]) Delete(key string) {
	c.cache.Delete(key)
}
