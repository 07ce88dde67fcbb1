package models

import (
	"fmt"
	"time"
)

// Notification is an immutable ping record held in a seller's inbox.
type Notification struct {
	ID        string    `json:"id"`
	BuyerID   string    `json:"buyer_id"`
	BuyerName string    `json:"buyer_name"`
	SellerID  string    `json:"seller_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiryAt  time.Time `json:"expiry_at"`
	IsRead    bool      `json:"is_read"`
}

func NewNotification(ping PingPayload, now time.Time, ttl time.Duration) Notification {
	return Notification{
		ID:        fmt.Sprintf("%s-%d", ping.BuyerID, now.UnixMilli()),
		BuyerID:   ping.BuyerID,
		BuyerName: ping.BuyerName,
		SellerID:  ping.SellerID,
		CreatedAt: now,
		ExpiryAt:  now.Add(ttl),
	}
}

func (n Notification) Expired(now time.Time) bool {
	return !now.Before(n.ExpiryAt)
}

func (n Notification) MarkedRead() Notification {
	n.IsRead = true
	return n
}
