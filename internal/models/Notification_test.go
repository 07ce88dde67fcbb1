package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewNotification(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	n := NewNotification(PingPayload{SellerID: "s1", BuyerID: "b1", BuyerName: "Ani"}, now, 5*time.Minute)

	assert.Equal(t, "b1-1792411200000", n.ID)
	assert.Equal(t, "s1", n.SellerID)
	assert.Equal(t, "Ani", n.BuyerName)
	assert.Equal(t, now, n.CreatedAt)
	assert.Equal(t, now.Add(5*time.Minute), n.ExpiryAt)
	assert.False(t, n.IsRead)
}

func TestNotification_Expired(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	n := NewNotification(PingPayload{SellerID: "s1", BuyerID: "b1"}, now, 5*time.Minute)

	assert.False(t, n.Expired(now.Add(4*time.Minute)))
	assert.True(t, n.Expired(now.Add(5*time.Minute)))
}

func TestNotification_MarkedReadReturnsCopy(t *testing.T) {
	n := Notification{ID: "x"}
	read := n.MarkedRead()
	assert.True(t, read.IsRead)
	assert.False(t, n.IsRead)
}
