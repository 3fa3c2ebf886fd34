// Package overpass implements ports.RouteProvider against the Overpass API.
package overpass

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/samirrijal/casahunt/internal/core/domain"
	"github.com/samirrijal/casahunt/internal/pkg/telemetry"
)

// DefaultURL is the public Overpass interpreter.
const DefaultURL = "https://overpass-api.de/api/interpreter"

// Client posts Overpass QL queries.
type Client struct {
	url       string
	userAgent string
	http      *http.Client
	timeout   time.Duration
}

type response struct {
	Elements []domain.RouteWay `json:"elements"`
}

// New creates a client. timeout bounds the whole request and is also sent
// to the server as the query timeout.
func New(url, userAgent string, timeout time.Duration) *Client {
	if url == "" {
		url = DefaultURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		url:       url,
		userAgent: userAgent,
		http:      &http.Client{Timeout: timeout},
		timeout:   timeout,
	}
}

// FetchWays runs one query and returns every element the server sent back,
// unfiltered. Transport failures and non-200 statuses are errors.
func (c *Client) FetchWays(ctx context.Context, q domain.RouteQuery) ([]domain.RouteWay, error) {
	ctx, span := telemetry.Tracer("overpass").Start(ctx, "overpass.interpreter")
	defer span.End()
	span.SetAttributes(
		attribute.String(telemetry.AttrRouteType, string(q.RouteType)),
		attribute.String(telemetry.AttrRouteRef, q.Ref),
	)

	query, err := BuildQuery(q, max(1, int(c.timeout.Seconds())))
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, strings.NewReader(query))
	if err != nil {
		return nil, fmt.Errorf("overpass request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("overpass query: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	span.SetAttributes(attribute.Int(telemetry.AttrUpstreamStatus, resp.StatusCode))
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		span.SetStatus(codes.Error, resp.Status)
		return nil, fmt.Errorf("overpass status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode overpass response: %w", err)
	}
	span.SetAttributes(attribute.Int(telemetry.AttrRouteWays, len(out.Elements)))
	return out.Elements, nil
}
