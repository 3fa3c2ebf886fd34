package http

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/casahunt/internal/core/domain"
	"github.com/samirrijal/casahunt/internal/core/usecases"
	"github.com/samirrijal/casahunt/internal/pkg/apperr"
	"github.com/samirrijal/casahunt/internal/pkg/geospatial"
)

const (
	maxQueryLen       = 300
	maxTextLen        = 1000
	defaultNearbyKm   = 5.0
	maxFilterEntities = 5000
)

// GeocodeHandler resolves a free-text place to coordinates.
func GeocodeHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		q := strings.TrimSpace(c.Query("q"))
		if q == "" {
			return errBadRequest(c, "q query parameter is required")
		}
		if len(q) > maxQueryLen {
			return errBadRequest(c, fmt.Sprintf("query too long (max %d characters)", maxQueryLen))
		}

		p, err := deps.Geocode.Lookup(c.UserContext(), q)
		switch {
		case errors.Is(err, domain.ErrThrottled):
			return respondError(c, apperr.Upstream("geocoding provider busy, retry later", err))
		case err != nil:
			return respondError(c, err)
		case p == nil:
			return errNotFound(c, "location not found")
		}

		c.Set("Cache-Control", "public, max-age=3600")
		return c.JSON(p)
	}
}

type geocodeBatchRequest struct {
	Queries []string `json:"queries" validate:"required,min=1,max=25,dive,required,max=300"`
}

// GeocodeBatchHandler resolves several places in one request. Unresolved
// entries carry a null point.
func GeocodeBatchHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req geocodeBatchRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if err := validate.Struct(req); err != nil {
			return errBadRequest(c, "queries must hold 1-25 non-empty strings of at most 300 characters")
		}

		results, err := deps.Geocode.ResolveBatch(c.UserContext(), req.Queries)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"results": results})
	}
}

// TransitRouteHandler returns the geometry of a transit line as GeoJSON.
func TransitRouteHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		routeType, ok := domain.ParseTransitRouteType(c.Query("routeType"))
		if !ok {
			return errBadRequest(c, "routeType must be one of subway, tram, bus")
		}
		ref := strings.TrimSpace(c.Query("ref"))
		if ref == "" {
			return errBadRequest(c, "ref query parameter is required")
		}
		center, err := optionalCenter(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		fc, err := deps.Transit.FetchRouteGeometry(c.UserContext(), routeType, ref, center)
		if err != nil {
			return respondError(c, err)
		}

		c.Set("Cache-Control", "public, max-age=86400")
		return c.JSON(fc)
	}
}

// TransitLineHandler recognises a transit line in free text and returns it
// with its geometry.
func TransitLineHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		text := c.Query("text")
		if strings.TrimSpace(text) == "" {
			return errBadRequest(c, "text query parameter is required")
		}
		if len(text) > maxTextLen {
			return errBadRequest(c, fmt.Sprintf("text too long (max %d characters)", maxTextLen))
		}
		center, err := optionalCenter(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		res, err := deps.Transit.ResolveLineFromText(c.UserContext(), text, center)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(res)
	}
}

// TransitLineParseHandler only runs the line recogniser, without fetching
// geometry.
func TransitLineParseHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		text := c.Query("text")
		if len(text) > maxTextLen {
			return errBadRequest(c, fmt.Sprintf("text too long (max %d characters)", maxTextLen))
		}

		line, ok := deps.Transit.ParseLine(text)
		if !ok {
			return c.JSON(fiber.Map{"matched": false})
		}
		return c.JSON(fiber.Map{"matched": true, "line": line})
	}
}

type distanceReference struct {
	Query     string   `json:"query" validate:"omitempty,max=300"`
	Latitude  *float64 `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
}

// distanceEntity is a caller-supplied item to rank. Items without both
// coordinates are dropped from the result.
type distanceEntity struct {
	ID        string   `json:"id" validate:"required,max=200"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

func (e distanceEntity) Coordinates() (lat, lon float64, ok bool) {
	if e.Latitude == nil || e.Longitude == nil {
		return 0, 0, false
	}
	return *e.Latitude, *e.Longitude, true
}

type distanceFilterRequest struct {
	Reference distanceReference `json:"reference"`
	MaxKm     float64           `json:"max_km" validate:"gt=0,lte=20040"`
	Entities  []distanceEntity  `json:"entities" validate:"max=5000,dive"`
}

// DistanceFilterHandler ranks caller-supplied entities by distance from a
// reference place or point.
func DistanceFilterHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req distanceFilterRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if err := validate.Struct(req); err != nil {
			return errBadRequest(c, validationMessage(err))
		}

		ref, err := deps.Geocode.ResolveReference(c.UserContext(),
			req.Reference.Query, req.Reference.Latitude, req.Reference.Longitude)
		if err != nil {
			return respondError(c, err)
		}

		return c.JSON(fiber.Map{
			"reference": ref,
			"results":   geospatial.FilterByDistance(req.Entities, ref, req.MaxKm),
		})
	}
}

// NearbyListingsHandler returns stored listings near a place, nearest first.
func NearbyListingsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		q := strings.TrimSpace(c.Query("q"))
		if len(q) > maxQueryLen {
			return errBadRequest(c, fmt.Sprintf("query too long (max %d characters)", maxQueryLen))
		}
		lat, err := optionalFloat(c, "lat")
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		lon, err := optionalFloat(c, "lon")
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		res, err := deps.Listings.Nearby(c.UserContext(), usecases.NearbyQuery{
			Query: q,
			Lat:   lat,
			Lon:   lon,
			MaxKm: c.QueryFloat("max_km", defaultNearbyKm),
		})
		if err != nil {
			return respondError(c, err)
		}

		offset, limit := pageParams(c)
		page, pg := paginate(res.Results, offset, limit)
		SetLinkHeaders(c, pg)

		c.Set("Cache-Control", "public, max-age=300")
		return c.JSON(fiber.Map{
			"reference":  res.Reference,
			"results":    page,
			"pagination": pg,
		})
	}
}

// GetListingHandler returns a single listing by ID.
func GetListingHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "id is required")
		}

		l, err := deps.Listings.GetByID(c.UserContext(), id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return errNotFound(c, "listing not found")
			}
			return respondError(c, err)
		}
		return c.JSON(l)
	}
}

func optionalFloat(c *fiber.Ctx, key string) (*float64, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("%s must be a number", key)
	}
	return &v, nil
}

// optionalCenter reads lat/lon. Both or neither must be present.
func optionalCenter(c *fiber.Ctx) (*domain.Point, error) {
	lat, err := optionalFloat(c, "lat")
	if err != nil {
		return nil, err
	}
	lon, err := optionalFloat(c, "lon")
	if err != nil {
		return nil, err
	}
	if lat == nil && lon == nil {
		return nil, nil
	}
	if lat == nil || lon == nil {
		return nil, errors.New("lat and lon must be provided together")
	}
	if *lat < -90 || *lat > 90 || *lon < -180 || *lon > 180 {
		return nil, errors.New("lat must be within [-90, 90] and lon within [-180, 180]")
	}
	return &domain.Point{Latitude: *lat, Longitude: *lon}, nil
}
