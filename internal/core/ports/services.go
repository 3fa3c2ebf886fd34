package ports

import (
	"context"
	"errors"

	"github.com/samirrijal/casahunt/internal/core/domain"
)

// ErrCacheMiss is returned by CacheService.Get when the key is absent.
var ErrCacheMiss = errors.New("cache miss")

// Geocoder resolves a place name to coordinates. It returns
// domain.ErrNotFound when the provider has no match for the query.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (*domain.Point, error)
}

// GeocodeCache stores positive and negative geocode outcomes by normalized key.
// Implementations must be safe for concurrent use.
type GeocodeCache interface {
	Get(ctx context.Context, key string) (domain.GeocodeEntry, bool)
	Set(ctx context.Context, key string, entry domain.GeocodeEntry)
	Len() int
}

// RouteProvider fetches the ways making up a transit line.
type RouteProvider interface {
	FetchWays(ctx context.Context, q domain.RouteQuery) ([]domain.RouteWay, error)
}

// EventPublisher publishes listing events to a message broker.
type EventPublisher interface {
	PublishListingGeocoded(ctx context.Context, ev *domain.ListingGeocodedEvent) error
	PublishListingGeocodeFailed(ctx context.Context, ev *domain.ListingGeocodeFailedEvent) error
}

// EventSubscriber subscribes to listing events from a message broker.
type EventSubscriber interface {
	SubscribeListingCreated(ctx context.Context, handler func(ctx context.Context, ev *domain.ListingCreatedEvent) error) error
}

// CacheService provides a shared byte cache.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
