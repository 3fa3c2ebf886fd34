package workflows

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/activity"

	"github.com/samirrijal/casahunt/internal/core/domain"
	"github.com/samirrijal/casahunt/internal/core/usecases"
)

// ListingRef is the activity payload for a listing awaiting coordinates.
type ListingRef struct {
	ID      string
	Address string
}

// GeocodeActivities holds the activity implementations for the backfill
// workflow. Activity names are the method names.
type GeocodeActivities struct {
	Enrichment *usecases.EnrichmentService
}

// ListListingsMissingCoordinates returns up to limit listings without coordinates.
func (a *GeocodeActivities) ListListingsMissingCoordinates(ctx context.Context, limit int) ([]ListingRef, error) {
	listings, err := a.Enrichment.MissingCoordinates(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list missing coordinates: %w", err)
	}
	refs := make([]ListingRef, 0, len(listings))
	for _, l := range listings {
		refs = append(refs, ListingRef{ID: l.ID, Address: l.Address})
	}
	return refs, nil
}

// GeocodeListing resolves a listing address. A nil point means the address
// is unresolvable; that is not an activity error and is not retried. A
// throttled lookup fails the attempt so the retry policy runs it again.
func (a *GeocodeActivities) GeocodeListing(ctx context.Context, l ListingRef) (*domain.Point, error) {
	activity.GetLogger(ctx).Debug("geocoding listing", "listing_id", l.ID)
	p, err := a.Enrichment.Resolve(ctx, l.Address)
	if err != nil {
		return nil, fmt.Errorf("geocode listing %s: %w", l.ID, err)
	}
	return p, nil
}

// SaveListingCoordinates stores the point on the listing and publishes the
// geocoded event.
func (a *GeocodeActivities) SaveListingCoordinates(ctx context.Context, listingID string, p domain.Point) error {
	if err := a.Enrichment.Save(ctx, listingID, p); err != nil {
		return fmt.Errorf("save listing %s: %w", listingID, err)
	}
	return nil
}

// MarkListingGeocodeFailed publishes the geocode-failed event.
func (a *GeocodeActivities) MarkListingGeocodeFailed(ctx context.Context, l ListingRef) error {
	return a.Enrichment.MarkFailed(ctx, l.ID, l.Address)
}
