// README: Shared identifier and coordinate value objects.
package types

import "math"

type ID string

// Point is a WGS84 coordinate. Longitude comes first on the wire, matching GeoJSON order.
type Point struct {
	Lng float64 `json:"lng"`
	Lat float64 `json:"lat"`
}

// Valid reports whether p is finite and inside the latitude/longitude ranges.
func (p Point) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lng, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// Place is an address with its coordinate.
type Place struct {
	Address string `json:"address"`
	Point   Point  `json:"coordinates"`
}
