package testutil

import (
	"bakso/internal/providers"
	"bakso/internal/realtime/interfaces"
	"context"
	"sort"
	"sync"
	"time"
)

// MockLogger implements providers.Logger and records calls.
type MockLogger struct {
	mu   sync.Mutex
	Logs []LogEntry
}

type LogEntry struct {
	Level  string
	Type   providers.TypeEnum
	Format string
	Args   []interface{}
}

func (m *MockLogger) record(level string, t providers.TypeEnum, format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Logs = append(m.Logs, LogEntry{Level: level, Type: t, Format: format, Args: args})
}

func (m *MockLogger) Errorf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("error", t, format, args...)
}
func (m *MockLogger) Warnf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("warn", t, format, args...)
}
func (m *MockLogger) Debugf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("debug", t, format, args...)
}
func (m *MockLogger) Infof(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("info", t, format, args...)
}
func (m *MockLogger) Fatalf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("fatal", t, format, args...)
}
func (m *MockLogger) Close() {}

// Count returns how many entries were logged at level.
func (m *MockLogger) Count(level string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.Logs {
		if e.Level == level {
			n++
		}
	}
	return n
}

// MockMetrics implements providers.MetricsProviderInterface and counts calls.
type MockMetrics struct {
	mu              sync.Mutex
	Requests        map[string]int
	Pings           map[string]int
	Notifications   int
	PresenceSyncs   int
	RegionRejoins   int
	TransportErrors map[string]int
	ActiveSessions  int
	Persistence     int
}

func NewMockMetrics() *MockMetrics {
	return &MockMetrics{
		Requests:        make(map[string]int),
		Pings:           make(map[string]int),
		TransportErrors: make(map[string]int),
	}
}

func (m *MockMetrics) IncRequestsTotal(endpoint string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests[endpoint]++
}

func (m *MockMetrics) ObserveRequestDuration(endpoint string, duration time.Duration) {}
func (m *MockMetrics) IncCacheHits()                                                  {}
func (m *MockMetrics) IncCacheMisses()                                                {}

func (m *MockMetrics) ObservePersistenceDuration(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Persistence++
}

func (m *MockMetrics) IncPings(result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Pings[result]++
}

func (m *MockMetrics) IncNotifications() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Notifications++
}

func (m *MockMetrics) IncPresenceSyncs() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PresenceSyncs++
}

func (m *MockMetrics) IncRegionRejoins() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RegionRejoins++
}

func (m *MockMetrics) IncTransportErrors(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TransportErrors[op]++
}

func (m *MockMetrics) SetActiveSessions(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ActiveSessions = count
}

func (m *MockMetrics) PingCount(result string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Pings[result]
}

// MockCache implements providers.CacheProviderInterface without expiry.
type MockCache struct {
	mu   sync.Mutex
	Data map[string][]byte
}

func NewMockCache() *MockCache {
	return &MockCache{Data: make(map[string][]byte)}
}

func (m *MockCache) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.Data[key]
	return val, ok
}

func (m *MockCache) Set(key string, value []byte, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Data[key] = append([]byte(nil), value...)
}

func (m *MockCache) Del(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Data, key)
}

func (m *MockCache) Range(fn func(key string, value []byte)) {
	m.mu.Lock()
	snapshot := make(map[string][]byte, len(m.Data))
	for k, v := range m.Data {
		snapshot[k] = v
	}
	m.mu.Unlock()
	for k, v := range snapshot {
		fn(k, v)
	}
}

func (m *MockCache) Enabled() bool { return true }

// MockCompressor implements interfaces.CompressorInterface with injectable behavior.
type MockCompressor struct {
	CompressFn   func([]byte) ([]byte, error)
	DecompressFn func([]byte) ([]byte, error)
	Closed       bool
}

func (m *MockCompressor) Close() { m.Closed = true }

func (m *MockCompressor) Compress(val []byte) ([]byte, error) {
	if m.CompressFn != nil {
		return m.CompressFn(val)
	}
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

func (m *MockCompressor) Decompress(val []byte) ([]byte, error) {
	if m.DecompressFn != nil {
		return m.DecompressFn(val)
	}
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

// FakeClock implements providers.Clock. Timers fire only from Advance, in
// deadline order, on the goroutine calling Advance.
type FakeClock struct {
	mu     sync.Mutex
	now    time.Time
	seq    int
	timers []*fakeTimer
}

type fakeTimer struct {
	clock    *FakeClock
	deadline time.Time
	seq      int
	fn       func()
	stopped  bool
	fired    bool
}

func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) AfterFunc(d time.Duration, f func()) providers.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &fakeTimer{clock: c, deadline: c.now.Add(d), seq: c.seq, fn: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves time forward by d, firing every timer that falls due,
// including timers armed by callbacks within the window.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		next := c.nextDueLocked(target)
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		if next.deadline.After(c.now) {
			c.now = next.deadline
		}
		next.fired = true
		fn := next.fn
		c.mu.Unlock()

		fn()
	}
}

func (c *FakeClock) nextDueLocked(target time.Time) *fakeTimer {
	live := c.timers[:0]
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			live = append(live, t)
		}
	}
	c.timers = live
	sort.SliceStable(c.timers, func(i, j int) bool {
		if c.timers[i].deadline.Equal(c.timers[j].deadline) {
			return c.timers[i].seq < c.timers[j].seq
		}
		return c.timers[i].deadline.Before(c.timers[j].deadline)
	})
	if len(c.timers) == 0 || c.timers[0].deadline.After(target) {
		return nil
	}
	return c.timers[0]
}

// Pending reports the number of armed timers.
func (c *FakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// FlakyTransport wraps a transport and fails Track or Send while the
// matching flag is set.
type FlakyTransport struct {
	Inner interfaces.TransportInterface

	mu        sync.Mutex
	trackErr  error
	sendErr   error
	Channels  []string
	SentCalls int
}

func NewFlakyTransport(inner interfaces.TransportInterface) *FlakyTransport {
	return &FlakyTransport{Inner: inner}
}

func (f *FlakyTransport) FailTrack(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trackErr = err
}

func (f *FlakyTransport) FailSend(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendErr = err
}

func (f *FlakyTransport) OpenedChannels() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.Channels...)
}

func (f *FlakyTransport) Channel(id, presenceKey string) interfaces.ChannelInterface {
	f.mu.Lock()
	f.Channels = append(f.Channels, id)
	f.mu.Unlock()
	return &flakyChannel{ChannelInterface: f.Inner.Channel(id, presenceKey), owner: f}
}

func (f *FlakyTransport) Close() error { return f.Inner.Close() }

type flakyChannel struct {
	interfaces.ChannelInterface
	owner *FlakyTransport
}

func (c *flakyChannel) Track(ctx context.Context, state interface{}) error {
	c.owner.mu.Lock()
	err := c.owner.trackErr
	c.owner.mu.Unlock()
	if err != nil {
		return err
	}
	return c.ChannelInterface.Track(ctx, state)
}

func (c *flakyChannel) Send(ctx context.Context, event string, payload interface{}) error {
	c.owner.mu.Lock()
	err := c.owner.sendErr
	c.owner.SentCalls++
	c.owner.mu.Unlock()
	if err != nil {
		return err
	}
	return c.ChannelInterface.Send(ctx, event, payload)
}
