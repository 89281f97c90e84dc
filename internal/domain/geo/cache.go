// Package geo resolves a client address to a coarse location through a
// cache, a timezone table and an ordered chain of lookup providers.
package geo

import (
	"context"
	"sync"
	"time"

	"github.com/okian/footprint/internal/domain/model"
	"github.com/okian/footprint/pkg/metrics"
)

// DefaultTTL is how long a resolved location is reused.
const DefaultTTL = 30 * time.Minute

type entry struct {
	value     model.GeoResponse
	fetchedAt time.Time
}

// Cache is a time-bounded map from client address to location. It is safe
// for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

// NewCache creates an empty cache.
func NewCache(opts ...CacheOption) *Cache {
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

// TTL returns the entry lifetime.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Get returns the entry for key if it is younger than the TTL. Expired
// entries are dropped on access.
func (c *Cache) Get(key string) (model.GeoResponse, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return model.GeoResponse{}, false
	}
	if c.expired(e, c.now()) {
		c.Evict(key)
		return model.GeoResponse{}, false
	}
	return e.value, true
}

// Put stores value under key stamped with the current time.
func (c *Cache) Put(key string, value model.GeoResponse) {
	if key == "" {
		return
	}
	c.mu.Lock()
	c.entries[key] = entry{value: value, fetchedAt: c.now()}
	n := len(c.entries)
	c.mu.Unlock()
	metrics.UpdateGeoCacheSize(n)
}

// Evict removes key.
func (c *Cache) Evict(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	n := len(c.entries)
	c.mu.Unlock()
	metrics.UpdateGeoCacheSize(n)
}

// Purge deletes every expired entry and returns how many were removed.
func (c *Cache) Purge() int {
	now := c.now()
	c.mu.Lock()
	removed := 0
	for k, e := range c.entries {
		if c.expired(e, now) {
			delete(c.entries, k)
			removed++
		}
	}
	n := len(c.entries)
	c.mu.Unlock()
	metrics.UpdateGeoCacheSize(n)
	return removed
}

// Len returns the number of entries, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Run purges expired entries every TTL until ctx is done.
func (c *Cache) Run(ctx context.Context) {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Purge()
		}
	}
}

func (c *Cache) expired(e entry, now time.Time) bool {
	return now.Sub(e.fetchedAt) >= c.ttl
}
