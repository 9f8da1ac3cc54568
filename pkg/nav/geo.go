package nav

import (
	"math"
	"strconv"
	"strings"
)

const earthRadiusMeters = 6371000.0

// Coordinate is a WGS-84 position.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Haversine returns the great-circle distance between two coordinates
// in meters.
func Haversine(a, b Coordinate) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}

// ParsePolyline decodes a "lng,lat;lng,lat" wire polyline. Malformed
// pairs are skipped rather than failing the whole line.
func ParsePolyline(s string) []Coordinate {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ";")
	coords := make([]Coordinate, 0, len(parts))
	for _, p := range parts {
		lngLat := strings.Split(strings.TrimSpace(p), ",")
		if len(lngLat) != 2 {
			continue
		}
		lng, err := strconv.ParseFloat(strings.TrimSpace(lngLat[0]), 64)
		if err != nil {
			continue
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(lngLat[1]), 64)
		if err != nil {
			continue
		}
		coords = append(coords, Coordinate{Lat: lat, Lng: lng})
	}
	return coords
}
