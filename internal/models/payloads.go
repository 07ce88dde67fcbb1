package models

import (
	"fmt"
	"sort"

	json "github.com/goccy/go-json"
	"github.com/gookit/validate"
)

// Broadcast event names used on region channels.
const (
	EventPing     = "ping"
	EventLocation = "location"
)

// PresencePayload is the state a peer tracks on a region channel.
type PresencePayload struct {
	UserID         string    `json:"user_id" validate:"required"`
	Role           string    `json:"role" validate:"required|in:seller,buyer"`
	Location       *Location `json:"location"`
	IsOnline       bool      `json:"isOnline"`
	UserName       string    `json:"userName"`
	IsAvailable    bool      `json:"isAvailable"`
	PairedSellerID string    `json:"paired_seller_id,omitempty"`
}

type PingPayload struct {
	SellerID  string `json:"seller_id" validate:"required"`
	BuyerID   string `json:"buyer_id" validate:"required"`
	BuyerName string `json:"buyer_name"`
}

type LocationPayload struct {
	UserID   string    `json:"user_id" validate:"required"`
	Location *Location `json:"location" validate:"required"`
}

func NewPresencePayload(p Peer) PresencePayload {
	return PresencePayload{
		UserID:         p.ID,
		Role:           string(p.Role),
		Location:       p.Location.Clone(),
		IsOnline:       p.IsOnline,
		UserName:       p.DisplayName,
		IsAvailable:    p.IsAvailable,
		PairedSellerID: p.PairedSellerID,
	}
}

func (pp PresencePayload) Peer() Peer {
	loc := pp.Location
	if !loc.Valid() {
		loc = nil
	}
	return Peer{
		ID:             pp.UserID,
		Role:           Role(pp.Role),
		Location:       loc.Clone(),
		DisplayName:    pp.UserName,
		IsOnline:       pp.IsOnline,
		IsAvailable:    pp.IsAvailable,
		PairedSellerID: pp.PairedSellerID,
	}
}

func validateStruct(s interface{}) error {
	v := validate.Struct(s)
	if !v.Validate() {
		return v.Errors
	}
	return nil
}

// DecodePresence flattens a presence map (key -> tracked states) into peers.
// Keys are visited in sorted order so the result is deterministic. Records that
// cannot be decoded or fail validation are skipped and reported in rejected.
// A record with a missing or out-of-range location is kept with a nil Location.
func DecodePresence(state map[string][]json.RawMessage) (peers []Peer, rejected []error) {
	keys := make([]string, 0, len(state))
	for k := range state {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	peers = make([]Peer, 0, len(keys))
	for _, key := range keys {
		for _, raw := range state[key] {
			var pp PresencePayload
			if err := json.Unmarshal(raw, &pp); err != nil {
				rejected = append(rejected, fmt.Errorf("presence %q: %w", key, err))
				continue
			}
			if pp.UserID == "" {
				pp.UserID = key
			}
			if err := validateStruct(&pp); err != nil {
				rejected = append(rejected, fmt.Errorf("presence %q: %w", key, err))
				continue
			}
			peers = append(peers, pp.Peer())
		}
	}
	return peers, rejected
}

func DecodePing(raw json.RawMessage) (PingPayload, error) {
	var p PingPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("ping payload: %w", err)
	}
	if err := validateStruct(&p); err != nil {
		return p, fmt.Errorf("ping payload: %w", err)
	}
	return p, nil
}

func DecodeLocation(raw json.RawMessage) (LocationPayload, error) {
	var p LocationPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("location payload: %w", err)
	}
	if err := validateStruct(&p); err != nil {
		return p, fmt.Errorf("location payload: %w", err)
	}
	if !p.Location.Valid() {
		return p, fmt.Errorf("location payload: coordinate out of range")
	}
	return p, nil
}
