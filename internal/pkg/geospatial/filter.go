package geospatial

import (
	"log/slog"
	"sort"

	"github.com/samirrijal/casahunt/internal/core/domain"
)

// FilterByDistance keeps the entities within maxKm (inclusive) of ref and
// returns them nearest first. Entities without coordinates are skipped.
// Equal distances keep their input order.
func FilterByDistance[T domain.GeoTagged](entities []T, ref domain.Point, maxKm float64) []domain.DistanceResult[T] {
	results := make([]domain.DistanceResult[T], 0, len(entities))
	for i, e := range entities {
		lat, lon, ok := e.Coordinates()
		if !ok {
			slog.Debug("distance filter: entity has no coordinates", "index", i)
			continue
		}
		d := DistanceKm(ref.Latitude, ref.Longitude, lat, lon)
		if d <= maxKm {
			results = append(results, domain.DistanceResult[T]{Entity: e, DistanceKm: d})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].DistanceKm < results[j].DistanceKm
	})
	return results
}
