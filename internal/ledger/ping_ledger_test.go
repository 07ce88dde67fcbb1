package ledger

import (
	"bakso/internal/testutil"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func newTestLedger() (*PingLedger, *testutil.MockCache, *testutil.FakeClock) {
	cache := testutil.NewMockCache()
	clock := testutil.NewFakeClock(start)
	return NewPingLedger(cache, clock, 5*time.Minute), cache, clock
}

func TestPingLedger_AllowAndRecord(t *testing.T) {
	l, _, _ := newTestLedger()

	_, ok := l.Allow("b1", start)
	assert.True(t, ok)
	l.Record("b1", start)

	retry, ok := l.Allow("b1", start.Add(2*time.Minute))
	assert.False(t, ok)
	assert.Equal(t, 3*time.Minute, retry)

	_, ok = l.Allow("b1", start.Add(5*time.Minute+time.Second))
	assert.True(t, ok)
}

func TestPingLedger_SharedAcrossUsers(t *testing.T) {
	cache := testutil.NewMockCache()
	clock := testutil.NewFakeClock(start)
	first := NewPingLedger(cache, clock, 5*time.Minute)
	second := NewPingLedger(cache, clock, 5*time.Minute)

	first.Record("b1", start)
	_, ok := second.Allow("b1", start.Add(time.Minute))
	assert.False(t, ok)
}

func TestPingLedger_CorruptEntryAllows(t *testing.T) {
	l, cache, _ := newTestLedger()
	cache.Set("ping:b1", []byte("xx"), time.Minute)

	_, ok := l.Allow("b1", start)
	assert.True(t, ok)
}

func TestPingLedger_SnapshotSkipsExpiredAndForeignKeys(t *testing.T) {
	l, cache, clock := newTestLedger()
	l.Record("old", start)
	clock.Advance(4 * time.Minute)
	l.Record("fresh", clock.Now())
	cache.Set("other:key", []byte("value"), 0)
	clock.Advance(2 * time.Minute)

	snap := l.Snapshot()

	assert.Equal(t, snapshotVersion, snap.Version)
	assert.Equal(t, map[string]int64{"fresh": start.Add(4 * time.Minute).UnixMilli()}, snap.Pings)
}

func TestPingLedger_Restore(t *testing.T) {
	l, _, _ := newTestLedger()
	snap := &Snapshot{Version: snapshotVersion, Pings: map[string]int64{
		"recent":  start.Add(-time.Minute).UnixMilli(),
		"expired": start.Add(-10 * time.Minute).UnixMilli(),
	}}

	require.Equal(t, 1, l.Restore(snap))

	retry, ok := l.Allow("recent", start)
	assert.False(t, ok)
	assert.Equal(t, 4*time.Minute, retry)
	_, ok = l.Allow("expired", start)
	assert.True(t, ok)

	assert.Equal(t, 0, l.Restore(nil))
}
