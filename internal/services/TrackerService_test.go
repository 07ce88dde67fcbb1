package services

import (
	"bakso/internal/ledger"
	"bakso/internal/models"
	"bakso/internal/realtime"
	"bakso/internal/realtime/interfaces"
	"bakso/internal/structures"
	"bakso/internal/testutil"
	"bakso/internal/tracker"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func serviceConfig(scope string) *structures.Config {
	return &structures.Config{
		Tracker: structures.TrackerConfig{
			SellerRadius:         3000,
			BuyerRadius:          3000,
			PresenceUpdateBuffer: time.Second,
			RetrackInterval:      3 * time.Second,
			PingRateLimit:        5 * time.Minute,
			NotificationTTL:      5 * time.Minute,
			RegionCellScale:      10,
			CollisionOffset:      0.01,
			PairOnPing:           true,
			RateLimitScope:       scope,
			WalkingSpeed:         1.4,
		},
	}
}

type fixture struct {
	svc     TrackerServiceInterface
	clock   *testutil.FakeClock
	hub     *realtime.MemoryTransport
	metrics *testutil.MockMetrics
	logger  *testutil.MockLogger
}

func newFixture(t *testing.T, scope string) *fixture {
	t.Helper()
	logger := &testutil.MockLogger{}
	clock := testutil.NewFakeClock(start)
	hub := realtime.NewMemoryTransport(logger)
	metrics := testutil.NewMockMetrics()
	conf := serviceConfig(scope)
	pings := ledger.NewPingLedger(testutil.NewMockCache(), clock, conf.Tracker.PingRateLimit)
	svc := NewTrackerService(conf, hub, pings, testutil.NewMockCache(), clock, logger, metrics)
	t.Cleanup(svc.Shutdown)
	return &fixture{svc: svc, clock: clock, hub: hub, metrics: metrics, logger: logger}
}

func at(lat, lng float64) *models.Location {
	return &models.Location{Lat: lat, Lng: lng}
}

func TestTrackerService_LoginGeneratesID(t *testing.T) {
	f := newFixture(t, RateLimitSession)

	tr, err := f.svc.Login(LoginRequest{Name: "Budi", Role: models.RoleBuyer, Location: at(1, 1)})
	require.NoError(t, err)

	id := tr.Self().ID
	_, err = uuid.Parse(id)
	assert.NoError(t, err)

	got, err := f.svc.Get(id)
	require.NoError(t, err)
	assert.Same(t, tr, got)
	assert.Equal(t, 1, f.svc.Count())
	assert.Equal(t, 1, f.metrics.ActiveSessions)
}

func TestTrackerService_LoginValidation(t *testing.T) {
	f := newFixture(t, RateLimitSession)

	_, err := f.svc.Login(LoginRequest{Name: "x", Role: "chef"})
	assert.ErrorIs(t, err, ErrInvalidLogin)
	_, err = f.svc.Login(LoginRequest{Role: models.RoleSeller})
	assert.ErrorIs(t, err, ErrInvalidLogin)
	assert.Equal(t, 0, f.svc.Count())
}

func TestTrackerService_LoginReplacesExisting(t *testing.T) {
	f := newFixture(t, RateLimitSession)

	first, err := f.svc.Login(LoginRequest{ID: "s1", Name: "Pak Kumis", Role: models.RoleSeller, Location: at(1, 1)})
	require.NoError(t, err)
	second, err := f.svc.Login(LoginRequest{ID: "s1", Name: "Pak Kumis", Role: models.RoleSeller, Location: at(1, 1)})
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.Equal(t, tracker.StateClosed, first.State())
	assert.Equal(t, 1, f.svc.Count())
	assert.Equal(t, []string{"s1"}, f.hub.PresenceKeys(second.Region()))
}

func TestTrackerService_Logout(t *testing.T) {
	f := newFixture(t, RateLimitSession)
	tr, err := f.svc.Login(LoginRequest{ID: "b1", Name: "Budi", Role: models.RoleBuyer, Location: at(1, 1)})
	require.NoError(t, err)
	region := tr.Region()

	require.NoError(t, f.svc.Logout("b1"))

	assert.ErrorIs(t, f.svc.Logout("b1"), ErrSessionNotFound)
	_, err = f.svc.Get("b1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Empty(t, f.hub.PresenceKeys(region))
	assert.Equal(t, 0, f.metrics.ActiveSessions)
}

func TestTrackerService_Shutdown(t *testing.T) {
	f := newFixture(t, RateLimitSession)
	for _, id := range []string{"a", "b", "c"} {
		_, err := f.svc.Login(LoginRequest{ID: id, Name: id, Role: models.RoleBuyer, Location: at(1, 1)})
		require.NoError(t, err)
	}
	assert.Equal(t, 3, f.svc.Count())

	f.svc.Shutdown()

	assert.Equal(t, 0, f.svc.Count())
	assert.Equal(t, 0, f.hub.Members(f.hubRegion()))
}

func (f *fixture) hubRegion() string {
	return "MTAtMTA=" // cell 10-10 around (1, 1)
}

func pingOnce(t *testing.T, f *fixture) error {
	t.Helper()
	b, err := f.svc.Login(LoginRequest{ID: "b1", Name: "Budi", Role: models.RoleBuyer, Location: at(1, 1)})
	require.NoError(t, err)
	f.clock.Advance(time.Second)
	return b.SendPing(context.Background(), "s1")
}

func TestTrackerService_SharedRateLimitSurvivesRelogin(t *testing.T) {
	f := newFixture(t, RateLimitShared)
	_, err := f.svc.Login(LoginRequest{ID: "s1", Name: "Pak Kumis", Role: models.RoleSeller, Location: at(1, 1)})
	require.NoError(t, err)

	require.NoError(t, pingOnce(t, f))
	assert.Error(t, pingOnce(t, f), "a new session for the same buyer shares the window")
}

func TestTrackerService_SessionRateLimitResetsOnRelogin(t *testing.T) {
	f := newFixture(t, RateLimitSession)
	_, err := f.svc.Login(LoginRequest{ID: "s1", Name: "Pak Kumis", Role: models.RoleSeller, Location: at(1, 1)})
	require.NoError(t, err)

	require.NoError(t, pingOnce(t, f))
	assert.NoError(t, pingOnce(t, f))
}

func TestTrackerService_SharedScopeWithoutCacheFallsBack(t *testing.T) {
	logger := &testutil.MockLogger{}
	conf := serviceConfig(RateLimitShared)
	conf.Cache = structures.CacheConfig{Enabled: false}
	clock := testutil.NewFakeClock(start)
	svc := NewTrackerService(conf, realtime.NewMemoryTransport(logger), nil, disabledCache{testutil.NewMockCache()}, clock, logger, testutil.NewMockMetrics())
	defer svc.Shutdown()

	assert.Nil(t, svc.(*TrackerService).limiter)
	assert.Equal(t, 1, logger.Count("warn"))
}

type disabledCache struct{ *testutil.MockCache }

func (disabledCache) Enabled() bool { return false }

// slowTransport delays channel creation so concurrent logins overlap.
type slowTransport struct {
	interfaces.TransportInterface
	delay time.Duration
}

func (s *slowTransport) Channel(id, presenceKey string) interfaces.ChannelInterface {
	time.Sleep(s.delay)
	return s.TransportInterface.Channel(id, presenceKey)
}

func TestTrackerService_ConcurrentLoginKeepsOneSession(t *testing.T) {
	logger := &testutil.MockLogger{}
	clock := testutil.NewFakeClock(start)
	hub := realtime.NewMemoryTransport(logger)
	conf := serviceConfig(RateLimitSession)
	svc := NewTrackerService(conf, &slowTransport{TransportInterface: hub, delay: 20 * time.Millisecond},
		nil, testutil.NewMockCache(), clock, logger, testutil.NewMockMetrics())

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Login(LoginRequest{ID: "s1", Name: "Pak Joko", Role: models.RoleSeller, Location: at(1, 1)})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, svc.Count())
	assert.Equal(t, 1, hub.Members("MTAtMTA="))

	svc.Shutdown()

	assert.Equal(t, 0, svc.Count())
	assert.Equal(t, 0, hub.Members("MTAtMTA="))
	assert.Equal(t, 0, clock.Pending())
}
