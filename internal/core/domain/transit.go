package domain

import "strings"

// TransitRouteType is the kind of public transport line.
type TransitRouteType string

const (
	RouteTypeSubway TransitRouteType = "subway"
	RouteTypeTram   TransitRouteType = "tram"
	RouteTypeBus    TransitRouteType = "bus"
)

// Valid reports whether t is one of the supported route types.
func (t TransitRouteType) Valid() bool {
	switch t {
	case RouteTypeSubway, RouteTypeTram, RouteTypeBus:
		return true
	}
	return false
}

// ParseTransitRouteType maps a case-insensitive string to a route type.
func ParseTransitRouteType(s string) (TransitRouteType, bool) {
	t := TransitRouteType(strings.ToLower(strings.TrimSpace(s)))
	return t, t.Valid()
}

// ParsedTransitLine is a transit line recognised in free text.
// Ref is kept exactly as it appeared in the text.
type ParsedTransitLine struct {
	RouteType TransitRouteType `json:"route_type"`
	Ref       string           `json:"ref"`
}

// WayNode is a single vertex of a provider way. Either coordinate may be
// missing in upstream data.
type WayNode struct {
	Lat *float64 `json:"lat,omitempty"`
	Lon *float64 `json:"lon,omitempty"`
}

// RouteWay is a way element returned by the routing-data provider.
type RouteWay struct {
	Type     string    `json:"type"`
	ID       int64     `json:"id,omitempty"`
	Geometry []WayNode `json:"geometry,omitempty"`
}

// Position is a GeoJSON position: [longitude, latitude].
type Position [2]float64

// LineString is a GeoJSON LineString geometry.
type LineString struct {
	Type        string     `json:"type"`
	Coordinates []Position `json:"coordinates"`
}

// NewLineString builds a LineString from positions.
func NewLineString(coords []Position) LineString {
	return LineString{Type: "LineString", Coordinates: coords}
}

// Feature is a GeoJSON feature carrying a LineString.
type Feature struct {
	Type       string         `json:"type"`
	Geometry   LineString     `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

// FeatureCollection is the GeoJSON container returned for a transit line.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// NewFeatureCollection wraps lines as features. The result always has a
// non-nil Features slice so it serialises as [] when empty.
func NewFeatureCollection(lines []LineString, props map[string]any) *FeatureCollection {
	fc := &FeatureCollection{Type: "FeatureCollection", Features: make([]Feature, 0, len(lines))}
	for _, l := range lines {
		p := make(map[string]any, len(props))
		for k, v := range props {
			p[k] = v
		}
		fc.Features = append(fc.Features, Feature{Type: "Feature", Geometry: l, Properties: p})
	}
	return fc
}

// RouteQuery scopes a routing-data lookup to one line around a center.
type RouteQuery struct {
	RouteType    TransitRouteType
	Ref          string
	Center       Point
	RadiusMeters int
}
