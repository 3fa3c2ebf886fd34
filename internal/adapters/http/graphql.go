package http

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/casahunt/internal/core/domain"
	"github.com/samirrijal/casahunt/internal/core/usecases"
	"github.com/samirrijal/casahunt/internal/pkg/apperr"
)

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	pointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Point",
		Fields: graphql.Fields{
			"name":      &graphql.Field{Type: graphql.String},
			"latitude":  &graphql.Field{Type: graphql.Float},
			"longitude": &graphql.Field{Type: graphql.Float},
		},
	})

	transitLineType := graphql.NewObject(graphql.ObjectConfig{
		Name: "TransitLine",
		Fields: graphql.Fields{
			"route_type": &graphql.Field{Type: graphql.String},
			"ref":        &graphql.Field{Type: graphql.String},
		},
	})

	transitRouteType := graphql.NewObject(graphql.ObjectConfig{
		Name:        "TransitRoute",
		Description: "Line geometry; geojson holds the FeatureCollection document",
		Fields: graphql.Fields{
			"feature_count": &graphql.Field{Type: graphql.Int},
			"geojson":       &graphql.Field{Type: graphql.String},
		},
	})

	listingType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Listing",
		Fields: graphql.Fields{
			"id":          &graphql.Field{Type: graphql.String},
			"title":       &graphql.Field{Type: graphql.String},
			"address":     &graphql.Field{Type: graphql.String},
			"latitude":    &graphql.Field{Type: graphql.Float},
			"longitude":   &graphql.Field{Type: graphql.Float},
			"price_cents": &graphql.Field{Type: graphql.Int},
			"created_at":  &graphql.Field{Type: graphql.DateTime},
		},
	})

	nearbyListingType := graphql.NewObject(graphql.ObjectConfig{
		Name: "NearbyListing",
		Fields: graphql.Fields{
			"entity":      &graphql.Field{Type: listingType},
			"distance_km": &graphql.Field{Type: graphql.Float},
		},
	})

	nearbyType := graphql.NewObject(graphql.ObjectConfig{
		Name: "NearbyListings",
		Fields: graphql.Fields{
			"reference": &graphql.Field{Type: pointType},
			"results":   &graphql.Field{Type: graphql.NewList(nearbyListingType)},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"geocode": &graphql.Field{
				Type:        pointType,
				Description: "Resolve a place name to coordinates; null when unresolved",
				Args: graphql.FieldConfigArgument{
					"query": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					q := p.Args["query"].(string)
					pt, err := deps.Geocode.Lookup(p.Context, q)
					if err != nil {
						return nil, err
					}
					if pt == nil {
						return nil, nil
					}
					return pt, nil
				},
			},
			"parseTransitLine": &graphql.Field{
				Type:        transitLineType,
				Description: "Recognise a transit line in free text; null when none",
				Args: graphql.FieldConfigArgument{
					"text": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					line, ok := deps.Transit.ParseLine(p.Args["text"].(string))
					if !ok {
						return nil, nil
					}
					return line, nil
				},
			},
			"transitRoute": &graphql.Field{
				Type:        transitRouteType,
				Description: "Geometry of a transit line near a center point",
				Args: graphql.FieldConfigArgument{
					"routeType": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"ref":       &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"lat":       &graphql.ArgumentConfig{Type: graphql.Float},
					"lon":       &graphql.ArgumentConfig{Type: graphql.Float},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					routeType, _ := domain.ParseTransitRouteType(p.Args["routeType"].(string))
					ref := p.Args["ref"].(string)

					var center *domain.Point
					lat, hasLat := p.Args["lat"].(float64)
					lon, hasLon := p.Args["lon"].(float64)
					if hasLat != hasLon {
						return nil, errors.New("lat and lon must be provided together")
					}
					if hasLat {
						center = &domain.Point{Latitude: lat, Longitude: lon}
					}

					fc, err := deps.Transit.FetchRouteGeometry(p.Context, routeType, ref, center)
					if err != nil {
						return nil, gqlError(err)
					}
					doc, err := json.Marshal(fc)
					if err != nil {
						return nil, err
					}
					return map[string]interface{}{
						"feature_count": len(fc.Features),
						"geojson":       string(doc),
					}, nil
				},
			},
			"nearbyListings": &graphql.Field{
				Type:        nearbyType,
				Description: "Stored listings near a place or point, nearest first",
				Args: graphql.FieldConfigArgument{
					"query": &graphql.ArgumentConfig{Type: graphql.String},
					"lat":   &graphql.ArgumentConfig{Type: graphql.Float},
					"lon":   &graphql.ArgumentConfig{Type: graphql.Float},
					"maxKm": &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: defaultNearbyKm},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					q := usecases.NearbyQuery{MaxKm: p.Args["maxKm"].(float64)}
					q.Query, _ = p.Args["query"].(string)
					if lat, ok := p.Args["lat"].(float64); ok {
						q.Lat = &lat
					}
					if lon, ok := p.Args["lon"].(float64); ok {
						q.Lon = &lon
					}
					res, err := deps.Listings.Nearby(p.Context, q)
					if err != nil {
						return nil, gqlError(err)
					}
					return res, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// gqlError hides wrapped upstream and internal details from clients.
func gqlError(err error) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return errors.New(ae.Message)
	}
	return errors.New("internal error")
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})
		if result.HasErrors() {
			LoggerFromCtx(c.UserContext()).Debug("graphql errors", "errors", result.Errors)
		}

		return c.JSON(result)
	}
}
