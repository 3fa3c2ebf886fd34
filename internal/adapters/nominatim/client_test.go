package nominatim

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/casahunt/internal/core/domain"
)

func TestGeocode_Success(t *testing.T) {
	var gotPath, gotQuery, gotUA, gotLimit, gotFormat string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query().Get("q")
		gotLimit = r.URL.Query().Get("limit")
		gotFormat = r.URL.Query().Get("format")
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"lat":"45.4641943","lon":"9.1896346","display_name":"Duomo di Milano, Milano"}]`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, UserAgent: "casahunt-test"})
	p, err := c.Geocode(context.Background(), "Duomo Milano")

	require.NoError(t, err)
	assert.Equal(t, "/search", gotPath)
	assert.Equal(t, "Duomo Milano", gotQuery)
	assert.Equal(t, "1", gotLimit)
	assert.Equal(t, "json", gotFormat)
	assert.Equal(t, "casahunt-test", gotUA)
	assert.InDelta(t, 45.4641943, p.Latitude, 1e-9)
	assert.InDelta(t, 9.1896346, p.Longitude, 1e-9)
	assert.Equal(t, "Duomo di Milano, Milano", p.Name)
}

func TestGeocode_NoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	_, err := New(Config{BaseURL: srv.URL}).Geocode(context.Background(), "atlantis")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestGeocode_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := New(Config{BaseURL: srv.URL}).Geocode(context.Background(), "Milano")
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrNotFound))
	assert.Contains(t, err.Error(), "503")
}

func TestGeocode_BadCoordinates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"lat":"north","lon":"9.1","display_name":"x"}]`))
	}))
	defer srv.Close()

	_, err := New(Config{BaseURL: srv.URL}).Geocode(context.Background(), "Milano")
	assert.Error(t, err)
}

func TestGeocode_RateLimitHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"lat":"1","lon":"2","display_name":"x"}]`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, RatePerSecond: 0.1})
	_, err := c.Geocode(context.Background(), "first")
	require.NoError(t, err)

	// The next token is ten seconds away; a short deadline must fail fast.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Geocode(ctx, "second")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrThrottled), "limiter refusal should be ErrThrottled, got %v", err)
	assert.False(t, errors.Is(err, domain.ErrNotFound))
}
