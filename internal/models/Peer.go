package models

import "math"

type Role string

const (
	RoleSeller Role = "seller"
	RoleBuyer  Role = "buyer"
)

func (r Role) Valid() bool {
	return r == RoleSeller || r == RoleBuyer
}

type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the coordinate is finite and inside WGS84 bounds.
func (l *Location) Valid() bool {
	if l == nil {
		return false
	}
	if math.IsNaN(l.Lat) || math.IsNaN(l.Lng) || math.IsInf(l.Lat, 0) || math.IsInf(l.Lng, 0) {
		return false
	}
	return l.Lat >= -90 && l.Lat <= 90 && l.Lng >= -180 && l.Lng <= 180
}

func (l *Location) Clone() *Location {
	if l == nil {
		return nil
	}
	c := *l
	return &c
}

// Peer is a participant broadcasting presence on a region channel.
// Location is nil for malformed records.
type Peer struct {
	ID             string    `json:"id"`
	Role           Role      `json:"role"`
	Location       *Location `json:"location"`
	DisplayName    string    `json:"display_name"`
	IsOnline       bool      `json:"is_online"`
	IsAvailable    bool      `json:"is_available"`
	PairedSellerID string    `json:"paired_seller_id,omitempty"`
}

func (p Peer) Clone() Peer {
	p.Location = p.Location.Clone()
	return p
}

func ClonePeers(peers []Peer) []Peer {
	if peers == nil {
		return nil
	}
	out := make([]Peer, len(peers))
	for i := range peers {
		out[i] = peers[i].Clone()
	}
	return out
}
