package usecases

import (
	"context"
	"fmt"

	"github.com/samirrijal/casahunt/internal/core/domain"
	"github.com/samirrijal/casahunt/internal/core/ports"
	"github.com/samirrijal/casahunt/internal/pkg/apperr"
	"github.com/samirrijal/casahunt/internal/pkg/geospatial"
)

const (
	// MaxNearbyKm caps the search radius for nearby listings.
	MaxNearbyKm = 100
	// nearbyPrefilterLimit bounds the rows pulled from the bounding box
	// before exact distance filtering.
	nearbyPrefilterLimit = 2000
)

// NearbyQuery selects listings around a place. Either Query or both Lat and
// Lon must be set; Query wins when both are present.
type NearbyQuery struct {
	Query string
	Lat   *float64
	Lon   *float64
	MaxKm float64
}

// NearbyResult holds listings ranked by distance from Reference.
type NearbyResult struct {
	Reference domain.Point                            `json:"reference"`
	Results   []domain.DistanceResult[domain.Listing] `json:"results"`
}

// ListingService ranks stored listings by distance.
type ListingService struct {
	listings ports.ListingRepository
	geocode  *GeocodeService
}

// NewListingService creates a new ListingService.
func NewListingService(listings ports.ListingRepository, geocode *GeocodeService) *ListingService {
	return &ListingService{listings: listings, geocode: geocode}
}

// Nearby returns stored listings within q.MaxKm of the reference, nearest first.
func (s *ListingService) Nearby(ctx context.Context, q NearbyQuery) (*NearbyResult, error) {
	if q.MaxKm <= 0 || q.MaxKm > MaxNearbyKm {
		return nil, apperr.Validation(fmt.Sprintf("max_km must be within (0, %d]", MaxNearbyKm))
	}
	ref, err := s.geocode.ResolveReference(ctx, q.Query, q.Lat, q.Lon)
	if err != nil {
		return nil, err
	}

	minLat, minLon, maxLat, maxLon := geospatial.BoundingBox(ref.Latitude, ref.Longitude, q.MaxKm*1000)
	candidates, err := s.listings.FindInBoundingBox(ctx, domain.Bounds{
		MinLat: minLat, MinLon: minLon, MaxLat: maxLat, MaxLon: maxLon,
	}, nearbyPrefilterLimit)
	if err != nil {
		return nil, apperr.Internal("find listings", err).WithOp("Nearby")
	}

	return &NearbyResult{
		Reference: ref,
		Results:   geospatial.FilterByDistance(candidates, ref, q.MaxKm),
	}, nil
}

// GetByID returns a single listing.
func (s *ListingService) GetByID(ctx context.Context, id string) (*domain.Listing, error) {
	return s.listings.GetByID(ctx, id)
}
