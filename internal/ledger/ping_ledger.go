package ledger

import (
	"bakso/internal/providers"
	"encoding/binary"
	"strings"
	"time"
)

const (
	keyPrefix       = "ping:"
	snapshotVersion = 1
)

// Snapshot is the persisted form of the ledger: last ping time per buyer in
// unix milliseconds.
type Snapshot struct {
	Version int              `json:"version"`
	Pings   map[string]int64 `json:"pings"`
}

// PingLedger remembers when each buyer last pinged, shared by every tracker
// of the process. Entries live in the cache with the rate limit window as
// TTL; the stored timestamp is compared against the injected clock.
type PingLedger struct {
	cache  providers.CacheProviderInterface
	clock  providers.Clock
	window time.Duration
}

func NewPingLedger(cache providers.CacheProviderInterface, clock providers.Clock, window time.Duration) *PingLedger {
	return &PingLedger{
		cache:  cache,
		clock:  clock,
		window: window,
	}
}

func encodeMillis(ms int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(ms))
	return buf
}

func decodeMillis(b []byte) (int64, bool) {
	if len(b) != 8 {
		return 0, false
	}
	return int64(binary.BigEndian.Uint64(b)), true
}

func (l *PingLedger) Allow(buyerID string, now time.Time) (time.Duration, bool) {
	raw, ok := l.cache.Get(keyPrefix + buyerID)
	if !ok {
		return 0, true
	}
	ms, ok := decodeMillis(raw)
	if !ok {
		return 0, true
	}
	if elapsed := now.Sub(time.UnixMilli(ms)); elapsed < l.window {
		return l.window - elapsed, false
	}
	return 0, true
}

func (l *PingLedger) Record(buyerID string, at time.Time) {
	l.cache.Set(keyPrefix+buyerID, encodeMillis(at.UnixMilli()), l.window)
}

// Snapshot collects the entries still inside the window.
func (l *PingLedger) Snapshot() *Snapshot {
	now := l.clock.Now()
	snap := &Snapshot{Version: snapshotVersion, Pings: make(map[string]int64)}
	l.cache.Range(func(key string, value []byte) {
		if !strings.HasPrefix(key, keyPrefix) {
			return
		}
		ms, ok := decodeMillis(value)
		if !ok || now.Sub(time.UnixMilli(ms)) >= l.window {
			return
		}
		snap.Pings[strings.TrimPrefix(key, keyPrefix)] = ms
	})
	return snap
}

// Restore loads a snapshot, skipping entries whose window already passed.
// It returns the number of entries kept.
func (l *PingLedger) Restore(snap *Snapshot) int {
	if snap == nil {
		return 0
	}
	now := l.clock.Now()
	kept := 0
	for buyerID, ms := range snap.Pings {
		remaining := l.window - now.Sub(time.UnixMilli(ms))
		if remaining <= 0 {
			continue
		}
		l.cache.Set(keyPrefix+buyerID, encodeMillis(ms), remaining)
		kept++
	}
	return kept
}
