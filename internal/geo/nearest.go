// Package geo finds the closest store to a shared location.
package geo

import "math"

const earthRadiusKm = 6371.0088

// Point is a WGS84 coordinate in degrees.
type Point struct {
	Lat float64
	Lon float64
}

// Valid reports whether p lies within coordinate bounds.
func (p Point) Valid() bool {
	return !math.IsNaN(p.Lat) && !math.IsNaN(p.Lon) &&
		p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// DistanceKm is the great-circle distance between a and b.
func DistanceKm(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

// Nearest returns the item closest to at, if one lies within maxKm.
// Items with invalid coordinates are ignored. A non-positive maxKm means
// no limit.
func Nearest[T any](items []T, at Point, maxKm float64, pos func(T) Point) (T, float64, bool) {
	var best T
	bestDist := math.Inf(1)
	found := false
	for _, it := range items {
		p := pos(it)
		if !p.Valid() {
			continue
		}
		d := DistanceKm(at, p)
		if d < bestDist {
			best, bestDist, found = it, d, true
		}
	}
	if !found || (maxKm > 0 && bestDist > maxKm) {
		var zero T
		return zero, 0, false
	}
	return best, bestDist, true
}
