package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/casahunt/internal/core/domain"
)

// ListingRepo implements ports.ListingRepository with pgx.
type ListingRepo struct {
	db *DB
}

// NewListingRepo creates a new ListingRepo.
func NewListingRepo(db *DB) *ListingRepo {
	return &ListingRepo{db: db}
}

const listingColumns = `id::text, title, address, latitude, longitude, price_cents, created_at`

func scanListing(row pgx.Row) (domain.Listing, error) {
	var l domain.Listing
	err := row.Scan(&l.ID, &l.Title, &l.Address, &l.Latitude, &l.Longitude, &l.PriceCents, &l.CreatedAt)
	return l, err
}

func collectListings(rows pgx.Rows) ([]domain.Listing, error) {
	defer rows.Close()
	var out []domain.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// GetByID returns a listing by UUID, or domain.ErrNotFound.
func (r *ListingRepo) GetByID(ctx context.Context, id string) (*domain.Listing, error) {
	l, err := scanListing(r.db.Pool.QueryRow(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get listing %s: %w", id, err)
	}
	return &l, nil
}

// FindInBoundingBox returns geo-tagged listings inside b, newest first.
func (r *ListingRepo) FindInBoundingBox(ctx context.Context, b domain.Bounds, limit int) ([]domain.Listing, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+listingColumns+`
		FROM listings
		WHERE latitude BETWEEN $1 AND $2
		  AND longitude BETWEEN $3 AND $4
		ORDER BY created_at DESC
		LIMIT $5
	`, b.MinLat, b.MaxLat, b.MinLon, b.MaxLon, limit)
	if err != nil {
		return nil, fmt.Errorf("find listings in box: %w", err)
	}
	return collectListings(rows)
}

// ListMissingCoordinates returns the oldest listings that have an address
// but no coordinates.
func (r *ListingRepo) ListMissingCoordinates(ctx context.Context, limit int) ([]domain.Listing, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+listingColumns+`
		FROM listings
		WHERE latitude IS NULL AND address <> ''
		ORDER BY created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list listings missing coordinates: %w", err)
	}
	return collectListings(rows)
}

// UpdateCoordinates stores resolved coordinates for a listing.
func (r *ListingRepo) UpdateCoordinates(ctx context.Context, id string, lat, lon float64) error {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE listings
		SET latitude = $2, longitude = $3, geocoded_at = now()
		WHERE id = $1
	`, id, lat, lon)
	if err != nil {
		return fmt.Errorf("update listing %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Create inserts a listing and fills in its generated ID and CreatedAt.
func (r *ListingRepo) Create(ctx context.Context, l *domain.Listing) error {
	err := r.db.Pool.QueryRow(ctx, `
		INSERT INTO listings (title, address, latitude, longitude, price_cents, geocoded_at)
		VALUES ($1, $2, $3, $4, $5, CASE WHEN $3::double precision IS NULL THEN NULL ELSE now() END)
		RETURNING id::text, created_at
	`, l.Title, l.Address, l.Latitude, l.Longitude, l.PriceCents).Scan(&l.ID, &l.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert listing %q: %w", l.Title, err)
	}
	return nil
}
