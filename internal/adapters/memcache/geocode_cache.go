// Package memcache holds in-process caches backed by bluele/gcache.
package memcache

import (
	"context"
	"time"

	"github.com/bluele/gcache"

	"github.com/samirrijal/casahunt/internal/core/domain"
	"github.com/samirrijal/casahunt/internal/pkg/metrics"
)

// DefaultCapacity bounds the geocode cache when no capacity is configured.
const DefaultCapacity = 10000

// Options configures a GeocodeCache.
type Options struct {
	// Capacity is the maximum number of keys; least recently used keys are
	// evicted beyond it.
	Capacity int
	// TTL expires resolved entries. Zero keeps them until evicted.
	TTL time.Duration
	// NegativeTTL expires unresolved entries. Zero falls back to TTL.
	NegativeTTL time.Duration
	// Clock drives expiry; tests pass gcache.NewFakeClock().
	Clock gcache.Clock
}

// GeocodeCache implements ports.GeocodeCache with a bounded LRU.
// gcache serialises access internally, so it is safe for concurrent use.
type GeocodeCache struct {
	lru         gcache.Cache
	negativeTTL time.Duration
}

// NewGeocodeCache builds an LRU geocode cache.
func NewGeocodeCache(opts Options) *GeocodeCache {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}

	b := gcache.New(opts.Capacity).
		LRU().
		EvictedFunc(func(_, _ interface{}) {
			metrics.GeocodeCacheEvictions.Inc()
		})
	if opts.TTL > 0 {
		b = b.Expiration(opts.TTL)
	}
	if opts.Clock != nil {
		b = b.Clock(opts.Clock)
	}

	return &GeocodeCache{lru: b.Build(), negativeTTL: opts.NegativeTTL}
}

// Get returns the cached entry for key.
func (c *GeocodeCache) Get(_ context.Context, key string) (domain.GeocodeEntry, bool) {
	v, err := c.lru.Get(key)
	if err != nil {
		return domain.GeocodeEntry{}, false
	}
	entry, ok := v.(domain.GeocodeEntry)
	return entry, ok
}

// Set stores entry under key, replacing any previous value.
func (c *GeocodeCache) Set(_ context.Context, key string, entry domain.GeocodeEntry) {
	if !entry.Found() && c.negativeTTL > 0 {
		_ = c.lru.SetWithExpire(key, entry, c.negativeTTL)
		return
	}
	_ = c.lru.Set(key, entry)
}

// Len reports the number of live entries.
func (c *GeocodeCache) Len() int {
	return c.lru.Len(true)
}

// Purge drops every entry.
func (c *GeocodeCache) Purge() {
	c.lru.Purge()
}
