package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/samirrijal/casahunt/internal/core/domain"
	"github.com/samirrijal/casahunt/internal/core/ports"
	"github.com/samirrijal/casahunt/internal/pkg/apperr"
	"github.com/samirrijal/casahunt/internal/pkg/metrics"
)

const (
	// DefaultGeocodeTimeout bounds a single provider lookup.
	DefaultGeocodeTimeout = 10 * time.Second
	// MaxGeocodeBatch is the largest batch ResolveBatch accepts.
	MaxGeocodeBatch = 25

	batchConcurrency = 4
)

// GeocodeResult is one entry of a batch resolution. Point is nil when the
// query could not be resolved.
type GeocodeResult struct {
	Query string        `json:"query"`
	Point *domain.Point `json:"point"`
}

// GeocodeService resolves free-text places to coordinates. Outcomes,
// including failures, are cached so a query reaches the provider at most
// once per cache lifetime.
type GeocodeService struct {
	geocoder ports.Geocoder
	cache    ports.GeocodeCache
	timeout  time.Duration
	flights  singleflight.Group
}

// NewGeocodeService creates a GeocodeService. A zero timeout uses
// DefaultGeocodeTimeout.
func NewGeocodeService(geocoder ports.Geocoder, cache ports.GeocodeCache, timeout time.Duration) *GeocodeService {
	if timeout <= 0 {
		timeout = DefaultGeocodeTimeout
	}
	return &GeocodeService{geocoder: geocoder, cache: cache, timeout: timeout}
}

// NormalizeQuery returns the cache key for a query.
func NormalizeQuery(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}

// Resolve returns the point for query, or false when it cannot be resolved.
// It never returns an error: provider failures are logged and cached as
// unresolved. If ctx ends before the provider answers, Resolve returns false
// without caching; the lookup itself still completes and is cached. A lookup
// the provider client throttled locally is absent and not cached.
func (s *GeocodeService) Resolve(ctx context.Context, query string) (*domain.Point, bool) {
	p, err := s.Lookup(ctx, query)
	if err != nil || p == nil {
		return nil, false
	}
	return p, true
}

// Lookup is Resolve for callers that retry. It returns (nil, nil) for an
// unresolvable query and an error only when the outcome is unknown: the
// provider client throttled the request (domain.ErrThrottled) or ctx ended
// first. Neither case is cached.
func (s *GeocodeService) Lookup(ctx context.Context, query string) (*domain.Point, error) {
	key := NormalizeQuery(query)
	if key == "" {
		return nil, nil
	}

	if e, ok := s.cache.Get(ctx, key); ok {
		if e.Found() {
			metrics.GeocodeCacheLookups.WithLabelValues("hit").Inc()
		} else {
			metrics.GeocodeCacheLookups.WithLabelValues("negative_hit").Inc()
		}
		return copyPoint(e.Point), nil
	}
	metrics.GeocodeCacheLookups.WithLabelValues("miss").Inc()

	ch := s.flights.DoChan(key, func() (interface{}, error) {
		// Another flight may have filled the key between our miss and now.
		if e, ok := s.cache.Get(ctx, key); ok {
			return e, nil
		}
		e, err := s.lookup(context.WithoutCancel(ctx), key, query)
		return e, err
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		e := res.Val.(domain.GeocodeEntry)
		return copyPoint(e.Point), nil
	case <-ctx.Done():
		slog.DebugContext(ctx, "geocode abandoned by caller", "query", key, "error", ctx.Err())
		return nil, ctx.Err()
	}
}

// lookup performs the provider call and caches its outcome. Local
// throttling is not a provider outcome and is returned uncached.
func (s *GeocodeService) lookup(ctx context.Context, key, query string) (domain.GeocodeEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	p, err := s.geocoder.Geocode(ctx, strings.TrimSpace(query))
	metrics.GeocodeProviderDuration.Observe(time.Since(start).Seconds())

	var entry domain.GeocodeEntry
	switch {
	case errors.Is(err, domain.ErrThrottled):
		metrics.GeocodeProviderRequests.WithLabelValues("throttled").Inc()
		slog.WarnContext(ctx, "geocode: throttled before reaching provider", "query", key, "error", err)
		return entry, err
	case errors.Is(err, domain.ErrNotFound) || (err == nil && p == nil):
		metrics.GeocodeProviderRequests.WithLabelValues("not_found").Inc()
		slog.WarnContext(ctx, "geocode: no match", "query", key)
	case err != nil:
		metrics.GeocodeProviderRequests.WithLabelValues("error").Inc()
		slog.WarnContext(ctx, "geocode: provider failed", "query", key, "error", err)
	default:
		metrics.GeocodeProviderRequests.WithLabelValues("found").Inc()
		pt := *p
		if pt.Name == "" {
			pt.Name = query
		}
		entry.Point = &pt
	}

	s.cache.Set(ctx, key, entry)
	return entry, nil
}

// ResolveBatch resolves up to MaxGeocodeBatch queries concurrently and
// returns one result per query in input order.
func (s *GeocodeService) ResolveBatch(ctx context.Context, queries []string) ([]GeocodeResult, error) {
	if len(queries) == 0 {
		return nil, apperr.Validation("at least one query is required")
	}
	if len(queries) > MaxGeocodeBatch {
		return nil, apperr.Validation(fmt.Sprintf("at most %d queries per batch", MaxGeocodeBatch))
	}

	results := make([]GeocodeResult, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)
	for i, q := range queries {
		i, q := i, q
		g.Go(func() error {
			p, _ := s.Resolve(gctx, q)
			results[i] = GeocodeResult{Query: q, Point: p}
			return nil
		})
	}
	_ = g.Wait()

	return results, nil
}

// ResolveReference turns a place query or explicit coordinates into a point.
func (s *GeocodeService) ResolveReference(ctx context.Context, query string, lat, lon *float64) (domain.Point, error) {
	if NormalizeQuery(query) != "" {
		p, err := s.Lookup(ctx, query)
		switch {
		case errors.Is(err, domain.ErrThrottled):
			return domain.Point{}, apperr.Upstream("geocoding provider busy, retry later", err)
		case err != nil:
			return domain.Point{}, err
		case p == nil:
			return domain.Point{}, apperr.NotFound(fmt.Sprintf("place %q could not be resolved", query))
		}
		return *p, nil
	}
	if lat == nil || lon == nil {
		return domain.Point{}, apperr.Validation("either q or both lat and lon are required")
	}
	if *lat < -90 || *lat > 90 || *lon < -180 || *lon > 180 {
		return domain.Point{}, apperr.Validation("lat must be within [-90, 90] and lon within [-180, 180]")
	}
	return domain.Point{Latitude: *lat, Longitude: *lon}, nil
}

// CacheSize reports how many outcomes are cached.
func (s *GeocodeService) CacheSize() int {
	return s.cache.Len()
}

func copyPoint(p *domain.Point) *domain.Point {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
