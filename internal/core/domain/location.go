package domain

// Point is a resolved place with WGS 84 coordinates.
type Point struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Coordinates implements GeoTagged.
func (p Point) Coordinates() (lat, lon float64, ok bool) {
	return p.Latitude, p.Longitude, true
}

// GeocodeEntry is a cached geocode outcome. A nil Point records that the
// query was attempted and could not be resolved.
type GeocodeEntry struct {
	Point *Point `json:"point"`
}

// Found reports whether the entry holds a resolved point.
func (e GeocodeEntry) Found() bool { return e.Point != nil }

// GeoTagged is anything that may carry a coordinate pair.
type GeoTagged interface {
	Coordinates() (lat, lon float64, ok bool)
}

// DistanceResult pairs an entity with its distance from a reference point.
type DistanceResult[T any] struct {
	Entity     T       `json:"entity"`
	DistanceKm float64 `json:"distance_km"`
}

// Bounds represents a geographic bounding box.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// Contains reports whether the coordinate falls inside b (edges included).
func (b Bounds) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}
