package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	handler "github.com/samirrijal/casahunt/internal/adapters/http"
	"github.com/samirrijal/casahunt/internal/adapters/memcache"
	"github.com/samirrijal/casahunt/internal/core/domain"
	"github.com/samirrijal/casahunt/internal/core/usecases"
)

// ---- Mocks ----

type mockGeocoder struct {
	calls     atomic.Int32
	geocodeFn func(ctx context.Context, q string) (*domain.Point, error)
}

func (m *mockGeocoder) Geocode(ctx context.Context, q string) (*domain.Point, error) {
	m.calls.Add(1)
	if m.geocodeFn != nil {
		return m.geocodeFn(ctx, q)
	}
	return nil, domain.ErrNotFound
}

type mockRouteProvider struct {
	lastQuery   domain.RouteQuery
	fetchWaysFn func(ctx context.Context, q domain.RouteQuery) ([]domain.RouteWay, error)
}

func (m *mockRouteProvider) FetchWays(ctx context.Context, q domain.RouteQuery) ([]domain.RouteWay, error) {
	m.lastQuery = q
	if m.fetchWaysFn != nil {
		return m.fetchWaysFn(ctx, q)
	}
	return nil, nil
}

type mockListingRepo struct {
	getByIDFn    func(ctx context.Context, id string) (*domain.Listing, error)
	findInBoxFn  func(ctx context.Context, b domain.Bounds, limit int) ([]domain.Listing, error)
	listMissFn   func(ctx context.Context, limit int) ([]domain.Listing, error)
	updateCoords func(ctx context.Context, id string, lat, lon float64) error
}

func (m *mockListingRepo) GetByID(ctx context.Context, id string) (*domain.Listing, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}
func (m *mockListingRepo) FindInBoundingBox(ctx context.Context, b domain.Bounds, limit int) ([]domain.Listing, error) {
	if m.findInBoxFn != nil {
		return m.findInBoxFn(ctx, b, limit)
	}
	return nil, nil
}
func (m *mockListingRepo) ListMissingCoordinates(ctx context.Context, limit int) ([]domain.Listing, error) {
	if m.listMissFn != nil {
		return m.listMissFn(ctx, limit)
	}
	return nil, nil
}
func (m *mockListingRepo) UpdateCoordinates(ctx context.Context, id string, lat, lon float64) error {
	if m.updateCoords != nil {
		return m.updateCoords(ctx, id, lat, lon)
	}
	return nil
}

// ---- Test helpers ----

func f(v float64) *float64 { return &v }

func milano(ctx context.Context, q string) (*domain.Point, error) {
	if strings.EqualFold(strings.TrimSpace(q), "milano") {
		return &domain.Point{Name: "Milano, Lombardia, Italia", Latitude: 45.4642, Longitude: 9.19}, nil
	}
	return nil, domain.ErrNotFound
}

func setupApp(deps *handler.Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(app, deps, handler.RouterOptions{})
	return app
}

type testDeps struct {
	geocoder *mockGeocoder
	routes   *mockRouteProvider
	listings *mockListingRepo
}

func makeDeps(opts ...func(*testDeps)) *handler.Dependencies {
	td := &testDeps{
		geocoder: &mockGeocoder{geocodeFn: milano},
		routes:   &mockRouteProvider{},
		listings: &mockListingRepo{},
	}
	for _, o := range opts {
		o(td)
	}
	geocode := usecases.NewGeocodeService(td.geocoder,
		memcache.NewGeocodeCache(memcache.Options{Capacity: 100}), time.Second)
	return &handler.Dependencies{
		Geocode:  geocode,
		Transit:  usecases.NewTransitService(td.routes, nil, domain.Point{}),
		Listings: usecases.NewListingService(td.listings, geocode),
	}
}

func readBody(t *testing.T, body io.Reader) []byte {
	t.Helper()
	b, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return b
}

type apiError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
}

func decodeError(t *testing.T, body io.Reader) apiError {
	t.Helper()
	var e apiError
	if err := json.NewDecoder(body).Decode(&e); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return e
}

func get(t *testing.T, app *fiber.App, target string) *stdhttp.Response {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest("GET", target, nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func post(t *testing.T, app *fiber.App, target, body string) *stdhttp.Response {
	t.Helper()
	req := httptest.NewRequest("POST", target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

// ---- Geocode ----

func TestGeocode_Success(t *testing.T) {
	app := setupApp(makeDeps())

	resp := get(t, app, "/api/geocode?q=Milano")
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var p domain.Point
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		t.Fatal(err)
	}
	if p.Latitude != 45.4642 || p.Longitude != 9.19 {
		t.Errorf("unexpected point %+v", p)
	}
	if p.Name == "" {
		t.Error("expected a display name")
	}
}

func TestGeocode_MissingQuery(t *testing.T) {
	app := setupApp(makeDeps())

	resp := get(t, app, "/api/geocode?q=%20%20")
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	e := decodeError(t, resp.Body)
	if e.Code != "bad_request" {
		t.Errorf("expected bad_request, got %s", e.Code)
	}
	if e.RequestID == "" {
		t.Error("expected request_id in error body")
	}
}

func TestGeocode_NotFoundIsCached(t *testing.T) {
	var td *testDeps
	app := setupApp(makeDeps(func(d *testDeps) { td = d }))

	for _, q := range []string{"Atlantide", "  atlantide "} {
		resp := get(t, app, "/api/geocode?q="+strings.ReplaceAll(q, " ", "%20"))
		if resp.StatusCode != 404 {
			t.Fatalf("%q: expected 404, got %d", q, resp.StatusCode)
		}
	}
	if n := td.geocoder.calls.Load(); n != 1 {
		t.Errorf("expected 1 provider call, got %d", n)
	}
}

func TestGeocode_ProviderErrorIsNotFound(t *testing.T) {
	app := setupApp(makeDeps(func(d *testDeps) {
		d.geocoder.geocodeFn = func(ctx context.Context, q string) (*domain.Point, error) {
			return nil, errors.New("connection refused")
		}
	}))

	resp := get(t, app, "/api/geocode?q=Roma")
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestGeocode_ThrottledIsBadGateway(t *testing.T) {
	var calls atomic.Int32
	app := setupApp(makeDeps(func(d *testDeps) {
		d.geocoder.geocodeFn = func(ctx context.Context, q string) (*domain.Point, error) {
			if calls.Add(1) == 1 {
				return nil, fmt.Errorf("rate limit: %w", domain.ErrThrottled)
			}
			return &domain.Point{Latitude: 41.9028, Longitude: 12.4964}, nil
		}
	}))

	resp := get(t, app, "/api/geocode?q=Roma")
	if resp.StatusCode != 502 {
		t.Fatalf("expected 502, got %d", resp.StatusCode)
	}

	resp = get(t, app, "/api/geocode?q=Roma")
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200 once the limiter frees up, got %d", resp.StatusCode)
	}
}

func TestGeocode_ETagNotModified(t *testing.T) {
	app := setupApp(makeDeps())

	first := get(t, app, "/api/geocode?q=Milano")
	etag := first.Header.Get("ETag")
	if etag == "" {
		t.Fatal("expected ETag header")
	}

	req := httptest.NewRequest("GET", "/api/geocode?q=Milano", nil)
	req.Header.Set("If-None-Match", etag)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 304 {
		t.Fatalf("expected 304, got %d", resp.StatusCode)
	}
}

func TestGeocodeBatch_PreservesOrder(t *testing.T) {
	app := setupApp(makeDeps())

	resp := post(t, app, "/api/geocode/batch", `{"queries":["Atlantide","Milano"]}`)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, readBody(t, resp.Body))
	}

	var body struct {
		Results []struct {
			Query string        `json:"query"`
			Point *domain.Point `json:"point"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(body.Results))
	}
	if body.Results[0].Query != "Atlantide" || body.Results[0].Point != nil {
		t.Errorf("first result: %+v", body.Results[0])
	}
	if body.Results[1].Query != "Milano" || body.Results[1].Point == nil {
		t.Errorf("second result: %+v", body.Results[1])
	}
}

func TestGeocodeBatch_Invalid(t *testing.T) {
	tooMany := make([]string, 26)
	for i := range tooMany {
		tooMany[i] = fmt.Sprintf("%q", fmt.Sprintf("place %d", i))
	}

	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"queries":`},
		{"empty", `{"queries":[]}`},
		{"blank entry", `{"queries":[""]}`},
		{"too many", `{"queries":[` + strings.Join(tooMany, ",") + `]}`},
	}
	app := setupApp(makeDeps())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(t, app, "/api/geocode/batch", tt.body)
			if resp.StatusCode != 400 {
				t.Fatalf("expected 400, got %d", resp.StatusCode)
			}
		})
	}
}

// ---- Transit ----

func twoWays(ctx context.Context, q domain.RouteQuery) ([]domain.RouteWay, error) {
	return []domain.RouteWay{
		{Type: "way", Geometry: []domain.WayNode{
			{Lat: f(45.48), Lon: f(9.20)}, {Lat: f(45.49), Lon: f(9.21)},
		}},
		{Type: "way", Geometry: []domain.WayNode{{Lat: f(45.50), Lon: f(9.22)}}},
		{Type: "node"},
	}, nil
}

func TestTransitRoute_Success(t *testing.T) {
	var td *testDeps
	app := setupApp(makeDeps(func(d *testDeps) {
		d.routes.fetchWaysFn = twoWays
		td = d
	}))

	resp := get(t, app, "/api/transit-route?routeType=subway&ref=M2")
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, readBody(t, resp.Body))
	}

	var fc domain.FeatureCollection
	if err := json.NewDecoder(resp.Body).Decode(&fc); err != nil {
		t.Fatal(err)
	}
	if fc.Type != "FeatureCollection" {
		t.Errorf("expected FeatureCollection, got %s", fc.Type)
	}
	if len(fc.Features) != 1 {
		t.Fatalf("expected 1 feature (single-node way dropped), got %d", len(fc.Features))
	}
	got := fc.Features[0].Geometry.Coordinates[0]
	if got != (domain.Position{9.20, 45.48}) {
		t.Errorf("expected [lon, lat] order, got %v", got)
	}
	if fc.Features[0].Properties["ref"] != "M2" {
		t.Errorf("expected ref property M2, got %v", fc.Features[0].Properties["ref"])
	}
	if td.routes.lastQuery.Center != usecases.DefaultCenter {
		t.Errorf("expected default center, got %+v", td.routes.lastQuery.Center)
	}
}

func TestTransitRoute_CustomCenter(t *testing.T) {
	var td *testDeps
	app := setupApp(makeDeps(func(d *testDeps) { td = d }))

	resp := get(t, app, "/api/transit-route?routeType=tram&ref=9&lat=41.9028&lon=12.4964")
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if c := td.routes.lastQuery.Center; c.Latitude != 41.9028 || c.Longitude != 12.4964 {
		t.Errorf("center not forwarded: %+v", c)
	}
}

func TestTransitRoute_NoWaysIsEmptyCollection(t *testing.T) {
	app := setupApp(makeDeps())

	resp := get(t, app, "/api/transit-route?routeType=bus&ref=999")
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := string(readBody(t, resp.Body))
	if !strings.Contains(body, `"features":[]`) {
		t.Errorf("expected empty features array, got %s", body)
	}
}

func TestTransitRoute_BadRequest(t *testing.T) {
	app := setupApp(makeDeps())

	for _, target := range []string{
		"/api/transit-route?routeType=ferry&ref=1",
		"/api/transit-route?ref=1",
		"/api/transit-route?routeType=bus",
		"/api/transit-route?routeType=bus&ref=1&lat=45.4",
		"/api/transit-route?routeType=bus&ref=1&lat=abc&lon=9",
		"/api/transit-route?routeType=bus&ref=1&lat=95&lon=9",
	} {
		resp := get(t, app, target)
		if resp.StatusCode != 400 {
			t.Errorf("%s: expected 400, got %d", target, resp.StatusCode)
		}
	}
}

func TestTransitRoute_UpstreamFailure(t *testing.T) {
	app := setupApp(makeDeps(func(d *testDeps) {
		d.routes.fetchWaysFn = func(ctx context.Context, q domain.RouteQuery) ([]domain.RouteWay, error) {
			return nil, errors.New("overpass: unexpected status 504")
		}
	}))

	resp := get(t, app, "/api/transit-route?routeType=subway&ref=1")
	if resp.StatusCode != 502 {
		t.Fatalf("expected 502, got %d", resp.StatusCode)
	}
	e := decodeError(t, resp.Body)
	if e.Code != "upstream_error" {
		t.Errorf("expected upstream_error, got %s", e.Code)
	}
	if strings.Contains(e.Message, "504") {
		t.Errorf("upstream detail leaked to client: %q", e.Message)
	}
}

func TestTransitLine_ParseAndFetch(t *testing.T) {
	var td *testDeps
	app := setupApp(makeDeps(func(d *testDeps) {
		d.routes.fetchWaysFn = twoWays
		td = d
	}))

	resp := get(t, app, "/api/transit-line?text=Vicino%20alla%20Linea%202%20della%20metropolitana")
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, readBody(t, resp.Body))
	}

	var res usecases.TransitLineResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}
	if res.Line.RouteType != domain.RouteTypeSubway || res.Line.Ref != "2" {
		t.Errorf("unexpected line %+v", res.Line)
	}
	if res.Geometry == nil || len(res.Geometry.Features) != 1 {
		t.Errorf("expected 1 feature, got %+v", res.Geometry)
	}
	if td.routes.lastQuery.RouteType != domain.RouteTypeSubway {
		t.Errorf("provider queried with %s", td.routes.lastQuery.RouteType)
	}
}

func TestTransitLine_NoLineRecognised(t *testing.T) {
	app := setupApp(makeDeps())

	resp := get(t, app, "/api/transit-line?text=bilocale%20luminoso")
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestTransitLineParse(t *testing.T) {
	app := setupApp(makeDeps())

	tests := []struct {
		text    string
		matched bool
		want    domain.ParsedTransitLine
	}{
		{"M2", true, domain.ParsedTransitLine{RouteType: domain.RouteTypeSubway, Ref: "2"}},
		{"bus 14", true, domain.ParsedTransitLine{RouteType: domain.RouteTypeBus, Ref: "14"}},
		{"", false, domain.ParsedTransitLine{}},
		{"vicino alla m3", true, domain.ParsedTransitLine{RouteType: domain.RouteTypeSubway, Ref: "3"}},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			resp := get(t, app, "/api/transit-line/parse?text="+strings.ReplaceAll(tt.text, " ", "%20"))
			if resp.StatusCode != 200 {
				t.Fatalf("expected 200, got %d", resp.StatusCode)
			}
			var body struct {
				Matched bool                      `json:"matched"`
				Line    *domain.ParsedTransitLine `json:"line"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if body.Matched != tt.matched {
				t.Fatalf("matched = %v, want %v", body.Matched, tt.matched)
			}
			if tt.matched && *body.Line != tt.want {
				t.Errorf("line = %+v, want %+v", *body.Line, tt.want)
			}
		})
	}
}

// ---- Distance filter ----

func TestDistanceFilter_ByCoordinates(t *testing.T) {
	app := setupApp(makeDeps())

	resp := post(t, app, "/api/distance/filter", `{
		"reference": {"latitude": 45.4642, "longitude": 9.19},
		"max_km": 10,
		"entities": [
			{"id": "a", "latitude": 45.46, "longitude": 9.19},
			{"id": "b", "latitude": 46.00, "longitude": 9.00},
			{"id": "c"}
		]
	}`)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, readBody(t, resp.Body))
	}

	var body struct {
		Results []struct {
			Entity     struct{ ID string } `json:"entity"`
			DistanceKm float64             `json:"distance_km"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(body.Results))
	}
	if body.Results[0].Entity.ID != "a" {
		t.Errorf("expected entity a, got %s", body.Results[0].Entity.ID)
	}
	if body.Results[0].DistanceKm > 0.5 {
		t.Errorf("expected distance under 0.5 km, got %f", body.Results[0].DistanceKm)
	}
}

func TestDistanceFilter_ByPlaceName(t *testing.T) {
	app := setupApp(makeDeps())

	resp := post(t, app, "/api/distance/filter", `{
		"reference": {"query": "Milano"},
		"max_km": 100,
		"entities": [
			{"id": "far", "latitude": 46.00, "longitude": 9.00},
			{"id": "near", "latitude": 45.47, "longitude": 9.19}
		]
	}`)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		Results []struct {
			Entity struct{ ID string } `json:"entity"`
		} `json:"results"`
	}
	json.NewDecoder(resp.Body).Decode(&body)
	if len(body.Results) != 2 || body.Results[0].Entity.ID != "near" {
		t.Errorf("expected nearest first, got %+v", body.Results)
	}
}

func TestDistanceFilter_Errors(t *testing.T) {
	app := setupApp(makeDeps())

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"no reference", `{"max_km": 5, "entities": []}`, 400},
		{"zero max", `{"reference": {"latitude": 45, "longitude": 9}, "max_km": 0}`, 400},
		{"bad latitude", `{"reference": {"latitude": 91, "longitude": 9}, "max_km": 5}`, 400},
		{"missing id", `{"reference": {"latitude": 45, "longitude": 9}, "max_km": 5, "entities": [{"latitude": 45}]}`, 400},
		{"unresolved place", `{"reference": {"query": "Atlantide"}, "max_km": 5}`, 404},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(t, app, "/api/distance/filter", tt.body)
			if resp.StatusCode != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, resp.StatusCode, readBody(t, resp.Body))
			}
		})
	}
}

// ---- Listings ----

func storedListings(ctx context.Context, b domain.Bounds, limit int) ([]domain.Listing, error) {
	return []domain.Listing{
		{ID: "l-far", Title: "Trilocale Navigli", Latitude: f(45.45), Longitude: f(9.17)},
		{ID: "l-near", Title: "Bilocale Duomo", Latitude: f(45.4641), Longitude: f(9.1901)},
		{ID: "l-none", Title: "Senza indirizzo"},
	}, nil
}

func TestNearbyListings_ByPlace(t *testing.T) {
	app := setupApp(makeDeps(func(d *testDeps) { d.listings.findInBoxFn = storedListings }))

	resp := get(t, app, "/api/listings/nearby?q=Milano&max_km=5")
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, readBody(t, resp.Body))
	}

	var body struct {
		Reference domain.Point `json:"reference"`
		Results   []struct {
			Entity     domain.Listing `json:"entity"`
			DistanceKm float64        `json:"distance_km"`
		} `json:"results"`
		Pagination struct{ Total int } `json:"pagination"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Pagination.Total != 2 || len(body.Results) != 2 {
		t.Fatalf("expected 2 results, got %d (total %d)", len(body.Results), body.Pagination.Total)
	}
	if body.Results[0].Entity.ID != "l-near" {
		t.Errorf("expected nearest first, got %s", body.Results[0].Entity.ID)
	}
	if body.Reference.Latitude != 45.4642 {
		t.Errorf("unexpected reference %+v", body.Reference)
	}
}

func TestNearbyListings_Pagination(t *testing.T) {
	app := setupApp(makeDeps(func(d *testDeps) { d.listings.findInBoxFn = storedListings }))

	resp := get(t, app, "/api/listings/nearby?lat=45.4642&lon=9.19&max_km=5&limit=1")
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	link := resp.Header.Get("Link")
	if !strings.Contains(link, `rel="next"`) || !strings.Contains(link, "max_km=5") {
		t.Errorf("unexpected Link header %q", link)
	}
}

func TestNearbyListings_Errors(t *testing.T) {
	app := setupApp(makeDeps(func(d *testDeps) {
		d.listings.findInBoxFn = func(ctx context.Context, b domain.Bounds, limit int) ([]domain.Listing, error) {
			return nil, errors.New("pool closed")
		}
	}))

	tests := []struct {
		target string
		status int
	}{
		{"/api/listings/nearby?lat=45.4&lon=9.1&max_km=500", 400},
		{"/api/listings/nearby?max_km=5", 400},
		{"/api/listings/nearby?lat=x&lon=9.1", 400},
		{"/api/listings/nearby?q=Atlantide", 404},
		{"/api/listings/nearby?lat=45.4&lon=9.1", 500},
	}
	for _, tt := range tests {
		resp := get(t, app, tt.target)
		if resp.StatusCode != tt.status {
			t.Errorf("%s: expected %d, got %d", tt.target, tt.status, resp.StatusCode)
		}
	}
}

func TestGetListing(t *testing.T) {
	app := setupApp(makeDeps(func(d *testDeps) {
		d.listings.getByIDFn = func(ctx context.Context, id string) (*domain.Listing, error) {
			if id == "abc" {
				return &domain.Listing{ID: "abc", Title: "Monolocale"}, nil
			}
			return nil, domain.ErrNotFound
		}
	}))

	if resp := get(t, app, "/api/listings/abc"); resp.StatusCode != 200 {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	if resp := get(t, app, "/api/listings/missing"); resp.StatusCode != 404 {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

// ---- Health ----

func TestHealth(t *testing.T) {
	app := setupApp(makeDeps())

	resp := get(t, app, "/api/health")
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body map[string]any
	json.NewDecoder(resp.Body).Decode(&body)
	if body["status"] != "healthy" {
		t.Errorf("unexpected body %v", body)
	}
	if _, ok := body["geocode_cache_entries"]; !ok {
		t.Error("expected geocode_cache_entries")
	}
}

func TestReady_WithoutDatabase(t *testing.T) {
	app := setupApp(makeDeps())

	resp := get(t, app, "/api/ready")
	if resp.StatusCode != 503 {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "not ready" {
		t.Errorf("status = %q", body.Status)
	}
	for _, name := range []string{"database", "nats", "cache"} {
		if body.Checks[name] != "not configured" {
			t.Errorf("check %s = %q, want not configured", name, body.Checks[name])
		}
	}
}

// ---- GraphQL ----

func TestGraphQL_Queries(t *testing.T) {
	app := setupApp(makeDeps(func(d *testDeps) { d.routes.fetchWaysFn = twoWays }))

	query := `{
		geocode(query: "Milano") { name latitude longitude }
		unknown: geocode(query: "Atlantide") { name }
		parseTransitLine(text: "tram 9") { route_type ref }
		transitRoute(routeType: "subway", ref: "2") { feature_count geojson }
	}`
	payload, _ := json.Marshal(map[string]string{"query": query})
	resp := post(t, app, "/graphql", string(payload))
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Data struct {
			Geocode          *domain.Point             `json:"geocode"`
			Unknown          *domain.Point             `json:"unknown"`
			ParseTransitLine *domain.ParsedTransitLine `json:"parseTransitLine"`
			TransitRoute     struct {
				FeatureCount int    `json:"feature_count"`
				GeoJSON      string `json:"geojson"`
			} `json:"transitRoute"`
		} `json:"data"`
		Errors []any `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.Errors) > 0 {
		t.Fatalf("unexpected errors: %v", body.Errors)
	}
	if body.Data.Geocode == nil || body.Data.Geocode.Latitude != 45.4642 {
		t.Errorf("geocode = %+v", body.Data.Geocode)
	}
	if body.Data.Unknown != nil {
		t.Errorf("expected null for unresolved place, got %+v", body.Data.Unknown)
	}
	if l := body.Data.ParseTransitLine; l == nil || l.RouteType != domain.RouteTypeTram || l.Ref != "9" {
		t.Errorf("parseTransitLine = %+v", l)
	}
	if body.Data.TransitRoute.FeatureCount != 1 || !strings.Contains(body.Data.TransitRoute.GeoJSON, "LineString") {
		t.Errorf("transitRoute = %+v", body.Data.TransitRoute)
	}
}

func TestGraphQL_NearbyListings(t *testing.T) {
	app := setupApp(makeDeps(func(d *testDeps) { d.listings.findInBoxFn = storedListings }))

	payload, _ := json.Marshal(map[string]string{
		"query": `{ nearbyListings(lat: 45.4642, lon: 9.19, maxKm: 2) { results { distance_km entity { id title } } } }`,
	})
	resp := post(t, app, "/graphql", string(payload))
	body := string(readBody(t, resp.Body))
	if resp.StatusCode != 200 || !strings.Contains(body, `"id":"l-near"`) {
		t.Fatalf("unexpected response %d: %s", resp.StatusCode, body)
	}
	if strings.Contains(body, "l-none") {
		t.Errorf("listing without coordinates returned: %s", body)
	}
}
