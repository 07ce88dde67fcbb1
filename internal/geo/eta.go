package geo

import "math"

// DefaultWalkingSpeed is an average pedestrian pace in meters per second.
const DefaultWalkingSpeed = 1.4

// WalkingMinutes converts a distance into whole minutes on foot.
func WalkingMinutes(distanceMeters, speed float64) int {
	if speed <= 0 {
		speed = DefaultWalkingSpeed
	}
	return int(math.Round(distanceMeters / speed / 60))
}
