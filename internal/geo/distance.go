package geo

import (
	"bakso/internal/models"
	"math"
)

const earthRadiusMeters = 6371000.0

// UnreachableDistance is returned when either endpoint is missing. It equals
// the largest integer a float64 holds exactly, so radius checks reject it.
const UnreachableDistance = float64(1<<53 - 1)

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// DistanceMeters returns the haversine distance between two points.
func DistanceMeters(p1, p2 *models.Location) float64 {
	if p1 == nil || p2 == nil {
		return UnreachableDistance
	}
	if p1.Lat == p2.Lat && p1.Lng == p2.Lng {
		return 0
	}

	phi1 := toRadians(p1.Lat)
	phi2 := toRadians(p2.Lat)
	dPhi := toRadians(p2.Lat - p1.Lat)
	dLambda := toRadians(p2.Lng - p1.Lng)

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}
