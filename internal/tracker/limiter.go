package tracker

import (
	"sync"
	"time"
)

// PingLimiterInterface decides whether a buyer may ping again.
type PingLimiterInterface interface {
	// Allow reports whether a ping at now is permitted and, if not, how long to wait.
	Allow(buyerID string, now time.Time) (time.Duration, bool)
	Record(buyerID string, at time.Time)
}

// SessionLimiter keeps the last ping time in memory for the lifetime of one tracker.
type SessionLimiter struct {
	mu     sync.Mutex
	window time.Duration
	last   map[string]time.Time
}

func NewSessionLimiter(window time.Duration) *SessionLimiter {
	return &SessionLimiter{
		window: window,
		last:   make(map[string]time.Time),
	}
}

func (l *SessionLimiter) Allow(buyerID string, now time.Time) (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	last, ok := l.last[buyerID]
	if !ok {
		return 0, true
	}
	if elapsed := now.Sub(last); elapsed < l.window {
		return l.window - elapsed, false
	}
	return 0, true
}

func (l *SessionLimiter) Record(buyerID string, at time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.last[buyerID] = at
}
