package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/samirrijal/casahunt/internal/core/domain"
	"github.com/samirrijal/casahunt/internal/core/ports"
	"github.com/samirrijal/casahunt/internal/pkg/metrics"
)

// EnrichmentService attaches coordinates to listings that were stored with
// only an address.
type EnrichmentService struct {
	listings ports.ListingRepository
	geocode  *GeocodeService
	events   ports.EventPublisher
	now      func() time.Time
}

// NewEnrichmentService creates an EnrichmentService. events may be nil.
func NewEnrichmentService(listings ports.ListingRepository, geocode *GeocodeService, events ports.EventPublisher) *EnrichmentService {
	return &EnrichmentService{listings: listings, geocode: geocode, events: events, now: time.Now}
}

// MissingCoordinates lists up to limit listings awaiting coordinates.
func (s *EnrichmentService) MissingCoordinates(ctx context.Context, limit int) ([]domain.Listing, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.listings.ListMissingCoordinates(ctx, limit)
}

// Resolve geocodes an address. It returns nil when the address is
// unresolvable and an error when the attempt should be retried later.
func (s *EnrichmentService) Resolve(ctx context.Context, address string) (*domain.Point, error) {
	return s.geocode.Lookup(ctx, address)
}

// Save stores the coordinates and announces them.
func (s *EnrichmentService) Save(ctx context.Context, listingID string, p domain.Point) error {
	if err := s.listings.UpdateCoordinates(ctx, listingID, p.Latitude, p.Longitude); err != nil {
		return fmt.Errorf("update coordinates %s: %w", listingID, err)
	}
	metrics.ListingEvents.WithLabelValues("geocoded").Inc()

	if s.events == nil {
		return nil
	}
	return s.events.PublishListingGeocoded(ctx, &domain.ListingGeocodedEvent{
		EventID:   uuid.NewString(),
		ID:        listingID,
		Latitude:  p.Latitude,
		Longitude: p.Longitude,
		Name:      p.Name,
		At:        s.now().UTC(),
	})
}

// MarkFailed announces that a listing address could not be resolved.
func (s *EnrichmentService) MarkFailed(ctx context.Context, listingID, address string) error {
	metrics.ListingEvents.WithLabelValues("geocode_failed").Inc()
	slog.InfoContext(ctx, "listing address unresolved", "listing_id", listingID, "address", address)

	if s.events == nil {
		return nil
	}
	return s.events.PublishListingGeocodeFailed(ctx, &domain.ListingGeocodeFailedEvent{
		EventID: uuid.NewString(),
		ID:      listingID,
		Address: address,
		At:      s.now().UTC(),
	})
}

// HandleListingCreated geocodes a freshly created listing. Unresolvable
// addresses are reported, not returned as errors, so the message is acked.
// A throttled lookup is returned so the message is redelivered.
func (s *EnrichmentService) HandleListingCreated(ctx context.Context, ev *domain.ListingCreatedEvent) error {
	metrics.ListingEvents.WithLabelValues("created").Inc()
	if ev.ID == "" {
		return fmt.Errorf("listing created event without id")
	}

	p, err := s.Resolve(ctx, ev.Address)
	if err != nil {
		return fmt.Errorf("geocode listing %s: %w", ev.ID, err)
	}
	if p == nil {
		return s.MarkFailed(ctx, ev.ID, ev.Address)
	}
	return s.Save(ctx, ev.ID, *p)
}
