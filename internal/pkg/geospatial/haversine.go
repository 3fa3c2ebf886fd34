// Package geospatial holds spherical distance helpers used for ranking
// geo-tagged entities.
package geospatial

import "math"

const earthRadiusKm = 6371.0

// DistanceKm returns the haversine great-circle distance in kilometres.
// It is symmetric and returns 0 for identical points.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	if lat1 == lat2 && lon1 == lon2 {
		return 0
	}

	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

// Haversine calculates the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	return DistanceKm(lat1, lon1, lat2, lon2) * 1000
}

// BoundingBox returns a bounding box around a point with the given radius in meters.
// It over-approximates the circle and is only suitable as a prefilter.
// Latitudes are clamped to [-90, 90]. When the circle reaches a pole or
// crosses the antimeridian the box spans every longitude.
func BoundingBox(lat, lon, radiusMeters float64) (minLat, minLon, maxLat, maxLon float64) {
	latDelta := radiusMeters / 111320.0
	minLat, maxLat = math.Max(lat-latDelta, -90), math.Min(lat+latDelta, 90)
	if minLat == -90 || maxLat == 90 {
		return minLat, -180, maxLat, 180
	}

	// The widest parallel inside the box is the one nearest a pole.
	widest := math.Max(math.Abs(minLat), math.Abs(maxLat))
	lonDelta := radiusMeters / (111320.0 * math.Cos(toRad(widest)))
	minLon, maxLon = lon-lonDelta, lon+lonDelta
	if lonDelta >= 180 || math.IsNaN(lonDelta) || minLon < -180 || maxLon > 180 {
		return minLat, -180, maxLat, 180
	}
	return minLat, minLon, maxLat, maxLon
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
