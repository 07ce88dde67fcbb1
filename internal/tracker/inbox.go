package tracker

import (
	"bakso/internal/models"
	"bakso/internal/providers"
	"sync"
	"time"
)

// Inbox is a seller's notification list. Every change swaps in a new slice,
// so a list handed out earlier is never modified.
type Inbox struct {
	clock providers.Clock
	ttl   time.Duration

	mu     sync.Mutex
	items  []models.Notification
	timers map[string]providers.Timer
	closed bool
}

func NewInbox(clock providers.Clock, ttl time.Duration) *Inbox {
	return &Inbox{
		clock:  clock,
		ttl:    ttl,
		items:  []models.Notification{},
		timers: make(map[string]providers.Timer),
	}
}

// Add records a ping and schedules its removal after the inbox TTL.
// A ping with the id of an existing notification replaces it.
func (in *Inbox) Add(ping models.PingPayload) (models.Notification, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.closed {
		return models.Notification{}, false
	}

	n := models.NewNotification(ping, in.clock.Now(), in.ttl)
	next := make([]models.Notification, 0, len(in.items)+1)
	for _, existing := range in.items {
		if existing.ID != n.ID {
			next = append(next, existing)
		}
	}
	in.items = append(next, n)

	if t, ok := in.timers[n.ID]; ok {
		t.Stop()
	}
	id := n.ID
	in.timers[id] = in.clock.AfterFunc(in.ttl, func() { in.expire(id) })
	return n, true
}

func (in *Inbox) expire(id string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.closed {
		return
	}
	delete(in.timers, id)
	in.items = without(in.items, id)
}

func without(items []models.Notification, id string) []models.Notification {
	next := make([]models.Notification, 0, len(items))
	for _, n := range items {
		if n.ID != id {
			next = append(next, n)
		}
	}
	return next
}

// pruneLocked drops notifications whose expiry timer has not fired yet.
func (in *Inbox) pruneLocked() {
	now := in.clock.Now()
	var next []models.Notification
	for i, n := range in.items {
		if !n.Expired(now) {
			if next != nil {
				next = append(next, n)
			}
			continue
		}
		if next == nil {
			next = make([]models.Notification, i, len(in.items))
			copy(next, in.items[:i])
		}
		if t, ok := in.timers[n.ID]; ok {
			t.Stop()
			delete(in.timers, n.ID)
		}
	}
	if next != nil {
		in.items = next
	}
}

// List returns the current notifications, oldest first.
func (in *Inbox) List() []models.Notification {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.pruneLocked()
	return in.items
}

// MarkAsRead flags a notification as read. Unknown ids are ignored.
func (in *Inbox) MarkAsRead(id string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	for i, n := range in.items {
		if n.ID != id {
			continue
		}
		if n.IsRead {
			return
		}
		next := make([]models.Notification, len(in.items))
		copy(next, in.items)
		next[i] = n.MarkedRead()
		in.items = next
		return
	}
}

func (in *Inbox) UnreadCount() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.pruneLocked()
	count := 0
	for _, n := range in.items {
		if !n.IsRead {
			count++
		}
	}
	return count
}

// Close cancels every expiry timer and empties the list.
func (in *Inbox) Close() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.closed = true
	for id, t := range in.timers {
		t.Stop()
		delete(in.timers, id)
	}
	in.items = []models.Notification{}
}
