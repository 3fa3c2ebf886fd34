package memcache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bluele/gcache"

	"github.com/samirrijal/casahunt/internal/core/domain"
)

func found(name string, lat, lon float64) domain.GeocodeEntry {
	return domain.GeocodeEntry{Point: &domain.Point{Name: name, Latitude: lat, Longitude: lon}}
}

func TestGeocodeCache_PositiveAndNegative(t *testing.T) {
	ctx := context.Background()
	c := NewGeocodeCache(Options{Capacity: 10})

	c.Set(ctx, "milano", found("Milano", 45.46, 9.19))
	c.Set(ctx, "nowhere", domain.GeocodeEntry{})

	e, ok := c.Get(ctx, "milano")
	if !ok || !e.Found() || e.Point.Name != "Milano" {
		t.Fatalf("positive entry: got %+v, %v", e, ok)
	}

	e, ok = c.Get(ctx, "nowhere")
	if !ok {
		t.Fatal("negative entry should be cached")
	}
	if e.Found() {
		t.Errorf("negative entry resolved to %+v", e.Point)
	}

	if _, ok := c.Get(ctx, "unknown"); ok {
		t.Error("unset key reported as hit")
	}
}

func TestGeocodeCache_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	c := NewGeocodeCache(Options{Capacity: 2})

	c.Set(ctx, "a", found("a", 1, 1))
	c.Set(ctx, "b", found("b", 2, 2))
	c.Get(ctx, "a") // a is now most recent
	c.Set(ctx, "c", found("c", 3, 3))

	if _, ok := c.Get(ctx, "b"); ok {
		t.Error("b should have been evicted")
	}
	if _, ok := c.Get(ctx, "a"); !ok {
		t.Error("a should survive")
	}
	if _, ok := c.Get(ctx, "c"); !ok {
		t.Error("c should be present")
	}
	if n := c.Len(); n != 2 {
		t.Errorf("Len = %d, want 2", n)
	}
}

func TestGeocodeCache_TTL(t *testing.T) {
	ctx := context.Background()
	clock := gcache.NewFakeClock()
	c := NewGeocodeCache(Options{Capacity: 10, TTL: time.Hour, NegativeTTL: time.Minute, Clock: clock})

	c.Set(ctx, "milano", found("Milano", 45.46, 9.19))
	c.Set(ctx, "nowhere", domain.GeocodeEntry{})

	clock.Advance(2 * time.Minute)
	if _, ok := c.Get(ctx, "nowhere"); ok {
		t.Error("negative entry should expire after NegativeTTL")
	}
	if _, ok := c.Get(ctx, "milano"); !ok {
		t.Error("positive entry expired too early")
	}

	clock.Advance(time.Hour)
	if _, ok := c.Get(ctx, "milano"); ok {
		t.Error("positive entry should expire after TTL")
	}
}

func TestGeocodeCache_NoTTLKeepsEntries(t *testing.T) {
	ctx := context.Background()
	clock := gcache.NewFakeClock()
	c := NewGeocodeCache(Options{Capacity: 10, Clock: clock})

	c.Set(ctx, "nowhere", domain.GeocodeEntry{})
	clock.Advance(365 * 24 * time.Hour)

	if _, ok := c.Get(ctx, "nowhere"); !ok {
		t.Error("entry without TTL should not expire")
	}
}

func TestGeocodeCache_Concurrent(t *testing.T) {
	ctx := context.Background()
	c := NewGeocodeCache(Options{Capacity: 64})

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i%8)
			c.Set(ctx, key, found(key, float64(i), float64(i)))
			c.Get(ctx, key)
		}(i)
	}
	wg.Wait()

	if n := c.Len(); n != 8 {
		t.Errorf("Len = %d, want 8", n)
	}
}
