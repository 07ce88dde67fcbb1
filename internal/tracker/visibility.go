package tracker

import (
	"bakso/internal/geo"
	"bakso/internal/models"
)

// Radii holds the visibility radius in meters for each viewer role.
type Radii struct {
	Buyer  float64
	Seller float64
}

// VisiblePeers returns the counterparts a viewer should see. A buyer sees
// sellers within Radii.Buyer. A seller sees available buyers within
// Radii.Seller, plus any unavailable buyer paired with that seller.
func VisiblePeers(peers []models.Peer, viewerLoc *models.Location, viewerRole models.Role, viewerID string, radii Radii) []models.Peer {
	out := make([]models.Peer, 0, len(peers))
	for _, p := range peers {
		if p.ID == viewerID {
			continue
		}
		if p.Role == models.RoleBuyer && !p.IsAvailable {
			if viewerRole == models.RoleSeller && p.PairedSellerID != "" && p.PairedSellerID == viewerID {
				out = append(out, p.Clone())
			}
			continue
		}

		d := geo.DistanceMeters(viewerLoc, p.Location)
		switch viewerRole {
		case models.RoleBuyer:
			if p.Role == models.RoleSeller && d <= radii.Buyer {
				out = append(out, p.Clone())
			}
		case models.RoleSeller:
			if p.Role == models.RoleBuyer && p.IsAvailable && d <= radii.Seller {
				out = append(out, p.Clone())
			}
		}
	}
	return out
}
