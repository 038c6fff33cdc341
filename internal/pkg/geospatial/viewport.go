package geospatial

import (
	"github.com/paulmach/orb"

	"github.com/samirrijal/routemap/internal/core/domain"
)

// BoundingBox returns the box enclosing every finite point.
// ok is false when there is nothing to enclose; callers treat that as "no camera change".
func BoundingBox(points []domain.Coordinate) (b domain.Bounds, ok bool) {
	mp := make(orb.MultiPoint, 0, len(points))
	for _, p := range points {
		if !p.Valid() {
			continue
		}
		mp = append(mp, orb.Point{p.Lng, p.Lat})
	}
	if len(mp) == 0 {
		return domain.Bounds{}, false
	}

	bound := mp.Bound()
	return domain.Bounds{
		Min: domain.Coordinate{Lat: bound.Min.Lat(), Lng: bound.Min.Lon()},
		Max: domain.Coordinate{Lat: bound.Max.Lat(), Lng: bound.Max.Lon()},
	}, true
}

// Centroid is the arithmetic mean of lat and lng. It approximates the center of short
// spans only; it is not a geodesic centroid.
func Centroid(points []domain.Coordinate) (c domain.Coordinate, ok bool) {
	var sumLat, sumLng float64
	n := 0
	for _, p := range points {
		if !p.Valid() {
			continue
		}
		sumLat += p.Lat
		sumLng += p.Lng
		n++
	}
	if n == 0 {
		return domain.Coordinate{}, false
	}
	return domain.Coordinate{Lat: sumLat / float64(n), Lng: sumLng / float64(n)}, true
}

// PadDegenerate widens a single-point box to radiusMeters around that point so
// fit-to-bounds does not zoom to the provider's maximum.
func PadDegenerate(b domain.Bounds, radiusMeters float64) domain.Bounds {
	if !b.Degenerate() || radiusMeters <= 0 {
		return b
	}
	minLat, minLon, maxLat, maxLon := RadiusBox(b.Min.Lat, b.Min.Lng, radiusMeters)
	return domain.Bounds{
		Min: domain.Coordinate{Lat: minLat, Lng: minLon},
		Max: domain.Coordinate{Lat: maxLat, Lng: maxLon},
	}
}
