package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/samirrijal/casahunt/internal/core/domain"
	"github.com/samirrijal/casahunt/internal/core/ports"
	"github.com/samirrijal/casahunt/internal/pkg/apperr"
	"github.com/samirrijal/casahunt/internal/pkg/metrics"
	"github.com/samirrijal/casahunt/internal/pkg/transitline"
)

// DefaultSearchRadiusMeters is the radius searched around the center.
const DefaultSearchRadiusMeters = 50000

// DefaultCenter is used when a request carries no center point.
var DefaultCenter = domain.Point{Name: "Milano", Latitude: 45.4642, Longitude: 9.1900}

// TransitLineResult is a line recognised in text together with its geometry.
type TransitLineResult struct {
	Line     domain.ParsedTransitLine  `json:"line"`
	Geometry *domain.FeatureCollection `json:"geometry"`
}

// TransitService turns transit line references into map geometry.
type TransitService struct {
	provider     ports.RouteProvider
	parser       *transitline.Parser
	center       domain.Point
	radiusMeters int
}

// NewTransitService creates a TransitService. A nil parser uses the default
// rule table; a zero center uses DefaultCenter.
func NewTransitService(provider ports.RouteProvider, parser *transitline.Parser, center domain.Point) *TransitService {
	if parser == nil {
		parser = transitline.NewParser(transitline.DefaultRules())
	}
	if center.Latitude == 0 && center.Longitude == 0 {
		center = DefaultCenter
	}
	return &TransitService{
		provider:     provider,
		parser:       parser,
		center:       center,
		radiusMeters: DefaultSearchRadiusMeters,
	}
}

// ParseLine extracts a transit line from free text.
func (s *TransitService) ParseLine(text string) (domain.ParsedTransitLine, bool) {
	return s.parser.Parse(text)
}

// FetchRouteGeometry returns the line as a GeoJSON FeatureCollection. A line
// with no resolvable geometry yields an empty collection; a provider failure
// yields an apperr.KindUpstream error wrapping domain.ErrRouteFetchFailed.
func (s *TransitService) FetchRouteGeometry(ctx context.Context, routeType domain.TransitRouteType, ref string, center *domain.Point) (*domain.FeatureCollection, error) {
	lines, _, err := s.RouteLines(ctx, routeType, ref, center)
	if err != nil {
		return nil, err
	}
	metrics.RouteFeatures.Observe(float64(len(lines)))
	return domain.NewFeatureCollection(lines, map[string]any{
		"route_type": string(routeType),
		"ref":        ref,
	}), nil
}

// RouteLines returns the line geometry, and false when no way qualified.
// Zero matching ways and only degenerate ways both report false.
func (s *TransitService) RouteLines(ctx context.Context, routeType domain.TransitRouteType, ref string, center *domain.Point) ([]domain.LineString, bool, error) {
	if err := validateRoute(routeType, ref); err != nil {
		return nil, false, err
	}

	q := domain.RouteQuery{
		RouteType:    routeType,
		Ref:          ref,
		Center:       s.center,
		RadiusMeters: s.radiusMeters,
	}
	if center != nil {
		q.Center = *center
	}

	start := time.Now()
	ways, err := s.provider.FetchWays(ctx, q)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.RouteFetchDuration.WithLabelValues(string(routeType), outcome).Observe(time.Since(start).Seconds())
	if err != nil {
		slog.WarnContext(ctx, "route fetch failed", "route_type", routeType, "ref", ref, "error", err)
		return nil, false, apperr.Upstream("routing provider unavailable",
			fmt.Errorf("%w: %w", domain.ErrRouteFetchFailed, err)).WithOp("FetchRouteGeometry")
	}

	lines := BuildLineStrings(ways)
	return lines, len(lines) > 0, nil
}

// ResolveLineFromText parses text and fetches the recognised line.
// Text with no recognisable line is an apperr.KindNotFound error.
func (s *TransitService) ResolveLineFromText(ctx context.Context, text string, center *domain.Point) (*TransitLineResult, error) {
	line, ok := s.parser.Parse(text)
	if !ok {
		return nil, apperr.NotFound("no transit line recognised in text")
	}
	fc, err := s.FetchRouteGeometry(ctx, line.RouteType, line.Ref, center)
	if err != nil {
		return nil, err
	}
	return &TransitLineResult{Line: line, Geometry: fc}, nil
}

// BuildLineStrings keeps elements of type "way" with at least two fully
// specified nodes and converts them to [lon, lat] LineStrings, preserving
// node order.
func BuildLineStrings(ways []domain.RouteWay) []domain.LineString {
	lines := make([]domain.LineString, 0, len(ways))
	for _, w := range ways {
		if w.Type != "way" || len(w.Geometry) == 0 {
			continue
		}
		coords := make([]domain.Position, 0, len(w.Geometry))
		for _, n := range w.Geometry {
			if n.Lat == nil || n.Lon == nil {
				continue
			}
			coords = append(coords, domain.Position{*n.Lon, *n.Lat})
		}
		if len(coords) < 2 {
			continue
		}
		lines = append(lines, domain.NewLineString(coords))
	}
	return lines
}

func validateRoute(routeType domain.TransitRouteType, ref string) error {
	if !routeType.Valid() {
		return apperr.Validation("routeType must be one of subway, tram, bus")
	}
	if strings.TrimSpace(ref) == "" {
		return apperr.Validation("ref is required")
	}
	return nil
}
