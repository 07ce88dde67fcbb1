package tracker

import (
	"bakso/internal/models"
	"bakso/internal/realtime"
	"bakso/internal/structures"
	"bakso/internal/testutil"
	"sync"
	"testing"
	"time"
)

var epoch0 = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func testConfig() *structures.TrackerConfig {
	return &structures.TrackerConfig{
		SellerRadius:         3000,
		BuyerRadius:          3000,
		PresenceUpdateBuffer: time.Second,
		RetrackInterval:      3 * time.Second,
		PingRateLimit:        5 * time.Minute,
		NotificationTTL:      5 * time.Minute,
		RegionCellScale:      10,
		CollisionOffset:      0.01,
		PairOnPing:           true,
		RateLimitScope:       "session",
		WalkingSpeed:         1.4,
	}
}

type harness struct {
	conf    *structures.TrackerConfig
	clock   *testutil.FakeClock
	hub     *realtime.MemoryTransport
	flaky   *testutil.FlakyTransport
	logger  *testutil.MockLogger
	metrics *testutil.MockMetrics
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := &testutil.MockLogger{}
	hub := realtime.NewMemoryTransport(logger)
	return &harness{
		conf:    testConfig(),
		clock:   testutil.NewFakeClock(epoch0),
		hub:     hub,
		flaky:   testutil.NewFlakyTransport(hub),
		logger:  logger,
		metrics: testutil.NewMockMetrics(),
	}
}

func (h *harness) tracker(t *testing.T, id string, role models.Role, lat, lng float64) *Tracker {
	t.Helper()
	tr := NewTracker(h.conf, h.flaky, nil, h.clock, h.logger, h.metrics)
	if err := tr.Activate(id, role, "name-"+id, &models.Location{Lat: lat, Lng: lng}); err != nil {
		t.Fatalf("activate %s: %v", id, err)
	}
	t.Cleanup(func() { _ = tr.Deactivate() })
	return tr
}

func ids(peers []models.Peer) []string {
	out := make([]string, 0, len(peers))
	for _, p := range peers {
		out = append(out, p.ID)
	}
	return out
}

// recordingListener collects session events.
type recordingListener struct {
	mu        sync.Mutex
	presence  [][]models.Peer
	pings     []models.PingPayload
	locations []models.LocationPayload
}

func (l *recordingListener) OnPresence(peers []models.Peer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.presence = append(l.presence, peers)
}

func (l *recordingListener) OnPing(ping models.PingPayload) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pings = append(l.pings, ping)
}

func (l *recordingListener) OnLocation(update models.LocationPayload) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.locations = append(l.locations, update)
}

func (l *recordingListener) presenceCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.presence)
}

func (l *recordingListener) lastPresence() []models.Peer {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.presence) == 0 {
		return nil
	}
	return l.presence[len(l.presence)-1]
}
