// Package geo holds distance math and the location lookup used by clients.
package geo

import (
	"math"
	"strconv"
)

type Unit string

const (
	Miles      Unit = "miles"
	Kilometers Unit = "km"
)

const (
	earthRadiusMiles = 3959.0
	earthRadiusKm    = 6371.0
)

// Distance returns the haversine distance between two points, rounded to
// one decimal place.
func Distance(lat1, lon1, lat2, lon2 float64, unit Unit) float64 {
	radius := earthRadiusMiles
	if unit == Kilometers {
		radius = earthRadiusKm
	}

	dLat := deg2rad(lat2 - lat1)
	dLon := deg2rad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(deg2rad(lat1))*math.Cos(deg2rad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return math.Round(radius*c*10) / 10
}

// FormatDistance renders a distance the way station cards show it.
func FormatDistance(distance float64) string {
	switch {
	case distance < 0.1:
		return "<0.1"
	case distance < 1:
		return strconv.FormatFloat(distance, 'f', 1, 64)
	default:
		return strconv.FormatFloat(math.Round(distance), 'f', 0, 64)
	}
}

// ValidCoordinates reports whether lat/lng are within range.
func ValidCoordinates(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

func deg2rad(deg float64) float64 {
	return deg * (math.Pi / 180)
}
