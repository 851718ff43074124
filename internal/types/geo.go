// README: Great-circle distance between points, shared by pricing, trips and presence.
package types

import "math"

const earthRadiusMeters = 6371000.0

// DistanceMeters returns the haversine distance in metres between a and b.
func DistanceMeters(a, b Point) float64 {
	dLat := degreesToRadians(b.Lat - a.Lat)
	dLng := degreesToRadians(b.Lng - a.Lng)

	rLat1 := degreesToRadians(a.Lat)
	rLat2 := degreesToRadians(b.Lat)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusMeters * c
}

// DistanceKm is DistanceMeters in kilometres.
func DistanceKm(a, b Point) float64 {
	return DistanceMeters(a, b) / 1000
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}
