//go:build integration
// +build integration

package http_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/samirrijal/casahunt/internal/adapters/http"
	"github.com/samirrijal/casahunt/internal/adapters/memcache"
	"github.com/samirrijal/casahunt/internal/adapters/postgres"
	"github.com/samirrijal/casahunt/internal/core/domain"
	"github.com/samirrijal/casahunt/internal/core/usecases"
	"github.com/samirrijal/casahunt/internal/pkg/config"
)

// setupTestDB connects to the database configured for tests.
func setupTestDB(t *testing.T) *postgres.DB {
	cfg, err := config.Load("casahunt-test")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := postgres.New(ctx, cfg.Database.DSN(), 4)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(db.Close)
	return db
}

// setupTestDeps wires a real ListingRepo with a geocoder that only knows Milano.
func setupTestDeps(t *testing.T, db *postgres.DB) *http.Dependencies {
	geocode := usecases.NewGeocodeService(&mockGeocoder{geocodeFn: milano},
		memcache.NewGeocodeCache(memcache.Options{Capacity: 10}), time.Second)
	return &http.Dependencies{
		Geocode:  geocode,
		Transit:  usecases.NewTransitService(&mockRouteProvider{}, nil, domain.Point{}),
		Listings: usecases.NewListingService(postgres.NewListingRepo(db), geocode),
		DB:       db,
	}
}

// seedListing inserts a listing and removes it when the test ends.
func seedListing(t *testing.T, db *postgres.DB, title string, lat, lon *float64) string {
	ctx := context.Background()
	var id string
	if err := db.Pool.QueryRow(ctx, `
		INSERT INTO listings (title, address, latitude, longitude, price_cents)
		VALUES ($1, $1, $2, $3, 120000)
		RETURNING id::text
	`, title, lat, lon).Scan(&id); err != nil {
		t.Fatalf("seed listing: %v", err)
	}
	t.Cleanup(func() {
		_, _ = db.Pool.Exec(context.Background(), `DELETE FROM listings WHERE id = $1`, id)
	})
	return id
}

func TestNearbyListings_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupTestDB(t)
	near := seedListing(t, db, "Bilocale Duomo "+time.Now().Format("150405"), f(45.4641), f(9.1901))
	seedListing(t, db, "Villa Como", f(45.81), f(9.08))
	seedListing(t, db, "Senza coordinate", nil, nil)

	app := setupApp(setupTestDeps(t, db))

	resp, err := app.Test(httptest.NewRequest("GET", "/api/listings/nearby?q=Milano&max_km=2", nil), -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Results []struct {
			Entity     domain.Listing `json:"entity"`
			DistanceKm float64        `json:"distance_km"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	found := false
	for _, r := range body.Results {
		if r.DistanceKm > 2 {
			t.Errorf("listing %s beyond max_km: %f", r.Entity.ID, r.DistanceKm)
		}
		if r.Entity.ID == near {
			found = true
		}
	}
	if !found {
		t.Errorf("expected seeded listing %s in results", near)
	}
}

func TestGetListing_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupTestDB(t)
	id := seedListing(t, db, "Monolocale Isola", f(45.487), f(9.19))
	app := setupApp(setupTestDeps(t, db))

	resp, err := app.Test(httptest.NewRequest("GET", "/api/listings/"+id, nil), -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var l domain.Listing
	if err := json.NewDecoder(resp.Body).Decode(&l); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if l.ID != id || l.Latitude == nil {
		t.Errorf("unexpected listing %+v", l)
	}
}

func TestListingRepo_UpdateCoordinates_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupTestDB(t)
	repo := postgres.NewListingRepo(db)
	id := seedListing(t, db, "Da geocodificare", nil, nil)

	ctx := context.Background()
	missing, err := repo.ListMissingCoordinates(ctx, 500)
	if err != nil {
		t.Fatalf("list missing: %v", err)
	}
	seen := false
	for _, l := range missing {
		seen = seen || l.ID == id
	}
	if !seen {
		t.Fatalf("expected %s among listings missing coordinates", id)
	}

	if err := repo.UpdateCoordinates(ctx, id, 45.4642, 9.19); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := repo.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Latitude == nil || *got.Latitude != 45.4642 {
		t.Errorf("coordinates not stored: %+v", got)
	}
}

func TestListingRepo_Create_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupTestDB(t)
	repo := postgres.NewListingRepo(db)
	ctx := context.Background()

	l := &domain.Listing{Title: "Trilocale Porta Romana", Address: "Corso di Porta Romana 1, Milano", PriceCents: 180000}
	if err := repo.Create(ctx, l); err != nil {
		t.Fatalf("create: %v", err)
	}
	t.Cleanup(func() {
		_, _ = db.Pool.Exec(context.Background(), `DELETE FROM listings WHERE id = $1`, l.ID)
	})
	if l.ID == "" || l.CreatedAt.IsZero() {
		t.Fatalf("generated fields not filled: %+v", l)
	}

	got, err := repo.GetByID(ctx, l.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != l.Title || got.Latitude != nil || got.PriceCents != 180000 {
		t.Errorf("unexpected stored listing %+v", got)
	}
}
