package geo

import "bakso/internal/models"

// DefaultCollisionOffset is the nudge (in degrees, both axes) applied to the
// later of two coincident peers.
const DefaultCollisionOffset = 0.01

// Deduplicate returns a copy of peers where no two located peers share
// bit-identical coordinates. For every pair i < j that coincide, peer j is
// moved by offset on both axes; the scan sees earlier nudges, so a third
// coincident peer ends up one offset further away. The input is not modified.
func Deduplicate(peers []models.Peer, offset float64) []models.Peer {
	out := models.ClonePeers(peers)
	for i := 0; i < len(out); i++ {
		if out[i].Location == nil {
			continue
		}
		for j := i + 1; j < len(out); j++ {
			if out[j].Location == nil {
				continue
			}
			if out[i].Location.Lat == out[j].Location.Lat && out[i].Location.Lng == out[j].Location.Lng {
				out[j].Location.Lat += offset
				out[j].Location.Lng += offset
			}
		}
	}
	return out
}
