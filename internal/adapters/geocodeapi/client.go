// Package geocodeapi implements ports.Geocoder by calling another
// instance's /api/geocode endpoint.
package geocodeapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/samirrijal/casahunt/internal/core/domain"
)

// Client calls GET {BaseURL}/api/geocode?q=.
type Client struct {
	baseURL string
	http    *http.Client
}

type geocodeResponse struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Name      string   `json:"name"`
}

// New creates a client for the geocode API at baseURL.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Geocode implements ports.Geocoder. A 404 maps to domain.ErrNotFound; any
// other non-200 status is an error.
func (c *Client) Geocode(ctx context.Context, query string) (*domain.Point, error) {
	reqURL := c.baseURL + "/api/geocode?" + url.Values{"q": {query}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("geocode request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocode api: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, domain.ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("geocode api status %d", resp.StatusCode)
	}

	var body geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode geocode response: %w", err)
	}
	if body.Latitude == nil || body.Longitude == nil {
		return nil, fmt.Errorf("geocode response missing coordinates")
	}
	return &domain.Point{Name: body.Name, Latitude: *body.Latitude, Longitude: *body.Longitude}, nil
}
