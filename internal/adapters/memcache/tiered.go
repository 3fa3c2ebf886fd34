package memcache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/samirrijal/casahunt/internal/core/domain"
	"github.com/samirrijal/casahunt/internal/core/ports"
)

const tieredKeyPrefix = "geocode:"

// Tiered puts a local GeocodeCache in front of a shared byte cache so
// resolutions survive restarts and are shared between replicas. Failures
// of the shared tier are logged and treated as misses.
type Tiered struct {
	local  ports.GeocodeCache
	remote ports.CacheService
	ttl    time.Duration
}

// NewTiered wraps local with remote. ttl bounds how long remote entries live.
func NewTiered(local ports.GeocodeCache, remote ports.CacheService, ttl time.Duration) *Tiered {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Tiered{local: local, remote: remote, ttl: ttl}
}

// Get checks the local tier, then the shared tier, warming local on a remote hit.
func (t *Tiered) Get(ctx context.Context, key string) (domain.GeocodeEntry, bool) {
	if e, ok := t.local.Get(ctx, key); ok {
		return e, true
	}

	raw, err := t.remote.Get(ctx, tieredKeyPrefix+key)
	if err != nil {
		if !errors.Is(err, ports.ErrCacheMiss) {
			slog.WarnContext(ctx, "shared geocode cache read failed", "key", key, "error", err)
		}
		return domain.GeocodeEntry{}, false
	}

	var e domain.GeocodeEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		slog.WarnContext(ctx, "shared geocode cache entry corrupt", "key", key, "error", err)
		return domain.GeocodeEntry{}, false
	}
	t.local.Set(ctx, key, e)
	return e, true
}

// Set writes through to both tiers.
func (t *Tiered) Set(ctx context.Context, key string, entry domain.GeocodeEntry) {
	t.local.Set(ctx, key, entry)

	raw, err := json.Marshal(entry)
	if err != nil {
		slog.WarnContext(ctx, "encode geocode entry", "key", key, "error", err)
		return
	}
	if err := t.remote.Set(ctx, tieredKeyPrefix+key, raw, int(t.ttl.Seconds())); err != nil {
		slog.WarnContext(ctx, "shared geocode cache write failed", "key", key, "error", err)
	}
}

// Len reports the size of the local tier.
func (t *Tiered) Len() int {
	return t.local.Len()
}
