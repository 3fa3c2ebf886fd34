package ports

import (
	"context"

	"github.com/samirrijal/casahunt/internal/core/domain"
)

// ListingRepository reads listings and persists resolved coordinates.
type ListingRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Listing, error)
	// FindInBoundingBox returns geo-tagged listings inside b, newest first.
	FindInBoundingBox(ctx context.Context, b domain.Bounds, limit int) ([]domain.Listing, error)
	// ListMissingCoordinates returns listings with an address but no coordinates.
	ListMissingCoordinates(ctx context.Context, limit int) ([]domain.Listing, error)
	UpdateCoordinates(ctx context.Context, id string, lat, lon float64) error
}
