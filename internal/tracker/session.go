package tracker

import (
	"bakso/internal/geo"
	"bakso/internal/models"
	"bakso/internal/providers"
	"bakso/internal/realtime"
	"bakso/internal/realtime/interfaces"
	"bakso/internal/structures"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/atomic"
)

type SessionState int

const (
	StateIdle SessionState = iota
	StateJoining
	StateSubscribed
	StateRejoining
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateJoining:
		return "joining"
	case StateSubscribed:
		return "subscribed"
	case StateRejoining:
		return "rejoining"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

const transportTimeout = 5 * time.Second

// SessionListener receives the events of the current region channel.
// Callbacks run without any session lock held.
type SessionListener interface {
	OnPresence(peers []models.Peer)
	OnPing(ping models.PingPayload)
	OnLocation(update models.LocationPayload)
}

// SessionManager owns the region channel of one user: it joins, tracks the
// user's presence, debounces presence syncs and moves channels when the user
// crosses into another region.
//
// Every channel generation carries an epoch. Callbacks and timers from an
// older epoch are dropped, so nothing reaches the listener after Deactivate
// or from a channel that was already torn down.
type SessionManager struct {
	conf      *structures.TrackerConfig
	transport interfaces.TransportInterface
	clock     providers.Clock
	logger    providers.Logger
	metrics   providers.MetricsProviderInterface
	listener  SessionListener

	closed *atomic.Bool

	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	state    SessionState
	epoch    uint64
	channel  interfaces.ChannelInterface
	joined   bool
	region   string
	self     models.Peer
	peers    []models.Peer
	pending  interfaces.PresenceState
	debounce providers.Timer
	retrack  providers.Timer
}

func NewSessionManager(
	conf *structures.TrackerConfig,
	transport interfaces.TransportInterface,
	clock providers.Clock,
	logger providers.Logger,
	metrics providers.MetricsProviderInterface,
	listener SessionListener,
) *SessionManager {
	ctx, cancel := context.WithCancel(context.Background())
	return &SessionManager{
		conf:      conf,
		transport: transport,
		clock:     clock,
		logger:    logger,
		metrics:   metrics,
		listener:  listener,
		closed:    atomic.NewBool(false),
		ctx:       ctx,
		cancel:    cancel,
		state:     StateIdle,
	}
}

func (s *SessionManager) regionOf(loc *models.Location) string {
	if loc == nil {
		return geo.RegionOf(s.conf.DefaultLat, s.conf.DefaultLng, s.conf.RegionCellScale)
	}
	return geo.RegionOf(loc.Lat, loc.Lng, s.conf.RegionCellScale)
}

// Start joins the region channel for self. The self state is tracked as
// online and available once the transport confirms the subscription.
func (s *SessionManager) Start(self models.Peer) error {
	s.mu.Lock()
	switch s.state {
	case StateClosed:
		s.mu.Unlock()
		return ErrSessionClosed
	case StateIdle:
	default:
		s.mu.Unlock()
		return ErrSessionActive
	}

	s.self = self.Clone()
	s.self.IsOnline = true
	s.self.IsAvailable = true
	s.self.PairedSellerID = ""
	s.region = s.regionOf(s.self.Location)
	s.state = StateJoining
	s.epoch++
	epoch, region, id := s.epoch, s.region, s.self.ID
	s.mu.Unlock()

	s.logger.Infof(providers.TypeSession, "Session %s (%s) joining region %s", id, self.Role, region)
	s.join(epoch, region, id)
	return nil
}

// join opens and subscribes the channel of one epoch. The status callback may
// run synchronously, so no lock is held here.
func (s *SessionManager) join(epoch uint64, region, selfID string) {
	ch := s.transport.Channel(region, selfID)
	ch.OnPresenceSync(func(state interfaces.PresenceState) { s.onSync(epoch, state) })
	ch.OnBroadcast(models.EventPing, func(raw json.RawMessage) { s.onPing(epoch, raw) })
	ch.OnBroadcast(models.EventLocation, func(raw json.RawMessage) { s.onLocation(epoch, raw) })

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		_ = ch.Unsubscribe()
		return
	}
	s.channel = ch
	s.mu.Unlock()

	ch.Subscribe(func(status interfaces.Status, err error) { s.onStatus(epoch, status, err) })
}

func (s *SessionManager) onStatus(epoch uint64, status interfaces.Status, err error) {
	switch status {
	case interfaces.StatusSubscribed:
		s.mu.Lock()
		if s.epoch == epoch {
			s.joined = true
		}
		s.mu.Unlock()
		s.trackSelf(epoch)
	default:
		s.mu.Lock()
		current := s.epoch == epoch && s.state != StateClosed
		region := s.region
		s.mu.Unlock()
		if !current {
			return
		}
		s.metrics.IncTransportErrors("subscribe")
		s.logger.Errorf(providers.TypeSession, "Subscribe to region %s: %s: %v", region, status, err)
		s.mu.Lock()
		if s.epoch == epoch {
			s.armRetrackLocked(epoch)
		}
		s.mu.Unlock()
	}
}

// trackSelf publishes the current self state on the epoch's channel. The
// first successful track moves a joining session to Subscribed. A failure
// leaves the state untouched and schedules another attempt.
func (s *SessionManager) trackSelf(epoch uint64) {
	s.mu.Lock()
	if s.epoch != epoch || s.state == StateClosed || s.channel == nil {
		s.mu.Unlock()
		return
	}
	if s.retrack != nil {
		s.retrack.Stop()
		s.retrack = nil
	}
	ch := s.channel
	payload := models.NewPresencePayload(s.self)
	ctx := s.ctx
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, transportTimeout)
	err := ch.Track(ctx, payload)
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch || s.state == StateClosed {
		return
	}
	if err != nil {
		s.metrics.IncTransportErrors("track")
		s.logger.Errorf(providers.TypeSession, "Track %s on region %s: %v", payload.UserID, s.region, err)
	} else if s.state == StateJoining || s.state == StateRejoining {
		s.state = StateSubscribed
		s.logger.Infof(providers.TypeSession, "Session %s subscribed to region %s", payload.UserID, s.region)
	}
	s.armRetrackLocked(epoch)
}

// armRetrackLocked schedules the next self track: periodically for sellers,
// and as a retry for anyone not yet subscribed.
func (s *SessionManager) armRetrackLocked(epoch uint64) {
	if s.retrack != nil || s.conf.RetrackInterval <= 0 {
		return
	}
	if s.state == StateSubscribed && s.self.Role != models.RoleSeller {
		return
	}
	s.retrack = s.clock.AfterFunc(s.conf.RetrackInterval, func() { s.onRetrack(epoch) })
}

func (s *SessionManager) onRetrack(epoch uint64) {
	s.mu.Lock()
	if s.epoch != epoch || s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.retrack = nil
	ch, region, id, joined := s.channel, s.region, s.self.ID, s.joined
	if !joined {
		s.channel = nil
	}
	s.mu.Unlock()

	if joined {
		s.trackSelf(epoch)
		return
	}
	// The subscription itself failed: rebuild the channel.
	if ch != nil {
		_ = ch.Unsubscribe()
	}
	s.join(epoch, region, id)
}

// onSync buffers a sync. The first one in a window arms the debounce timer,
// later ones replace the buffered state.
func (s *SessionManager) onSync(epoch uint64, state interfaces.PresenceState) {
	s.mu.Lock()
	if s.epoch != epoch || s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.metrics.IncPresenceSyncs()
	s.pending = state
	if s.conf.PresenceUpdateBuffer <= 0 {
		s.mu.Unlock()
		s.flush(epoch)
		return
	}
	if s.debounce == nil {
		s.debounce = s.clock.AfterFunc(s.conf.PresenceUpdateBuffer, func() { s.flush(epoch) })
	}
	s.mu.Unlock()
}

// flush processes the latest buffered sync: decode, deduplicate, replace the
// peer cache and hand the result to the listener.
func (s *SessionManager) flush(epoch uint64) {
	s.mu.Lock()
	if s.epoch != epoch || s.state == StateClosed || s.pending == nil {
		s.mu.Unlock()
		return
	}
	state := s.pending
	s.pending = nil
	s.debounce = nil
	s.mu.Unlock()

	peers, rejected := models.DecodePresence(state)
	for _, err := range rejected {
		s.logger.Warnf(providers.TypeSession, "Rejected presence record: %v", err)
	}
	peers = geo.Deduplicate(peers, s.conf.CollisionOffset)

	s.mu.Lock()
	if s.epoch != epoch || s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.peers = peers
	out := models.ClonePeers(peers)
	s.mu.Unlock()

	s.listener.OnPresence(out)
}

func (s *SessionManager) onPing(epoch uint64, raw json.RawMessage) {
	s.mu.Lock()
	current := s.epoch == epoch && s.state != StateClosed
	selfID := s.self.ID
	s.mu.Unlock()
	if !current {
		return
	}

	ping, err := models.DecodePing(raw)
	if err != nil {
		s.logger.Warnf(providers.TypePing, "Dropping ping on %s: %v", selfID, err)
		return
	}
	if ping.SellerID != selfID {
		return
	}
	s.listener.OnPing(ping)
}

func (s *SessionManager) onLocation(epoch uint64, raw json.RawMessage) {
	s.mu.Lock()
	current := s.epoch == epoch && s.state != StateClosed
	selfID := s.self.ID
	s.mu.Unlock()
	if !current {
		return
	}

	update, err := models.DecodeLocation(raw)
	if err != nil {
		s.logger.Warnf(providers.TypeSession, "Dropping location broadcast on %s: %v", selfID, err)
		return
	}
	if update.UserID == selfID {
		return
	}
	s.listener.OnLocation(update)
}

// UpdateLocation stores a new self location. Crossing into another region
// tears the old channel down completely before joining the new one. Within
// the same region the location is published by the next track.
func (s *SessionManager) UpdateLocation(loc models.Location) error {
	s.mu.Lock()
	switch s.state {
	case StateClosed:
		s.mu.Unlock()
		return ErrSessionClosed
	case StateIdle:
		s.mu.Unlock()
		return ErrNotSubscribed
	}

	s.self.Location = loc.Clone()
	region := s.regionOf(s.self.Location)
	if region == s.region {
		s.mu.Unlock()
		return nil
	}

	oldRegion := s.region
	old := s.channel
	s.epoch++
	epoch := s.epoch
	s.state = StateRejoining
	s.region = region
	s.channel = nil
	s.joined = false
	s.stopTimersLocked()
	s.pending = nil
	cleared := s.conf.ClearOnRejoin
	if cleared {
		s.peers = nil
	}
	id := s.self.ID
	ctx := s.ctx
	s.mu.Unlock()

	s.metrics.IncRegionRejoins()
	s.logger.Infof(providers.TypeSession, "Session %s moving from region %s to %s", id, oldRegion, region)

	if old != nil {
		if err := s.leave(ctx, old); err != nil {
			s.metrics.IncTransportErrors("leave")
			s.logger.Errorf(providers.TypeSession, "Leaving region %s: %v", oldRegion, err)
		}
	}
	if cleared {
		s.listener.OnPresence([]models.Peer{})
	}
	s.join(epoch, region, id)
	return nil
}

func (s *SessionManager) leave(ctx context.Context, ch interfaces.ChannelInterface) error {
	ctx, cancel := context.WithTimeout(ctx, transportTimeout)
	defer cancel()
	var untrackErr error
	if err := ch.Untrack(ctx); err != nil && !errors.Is(err, realtime.ErrNotSubscribed) {
		untrackErr = err
	}
	return errors.Join(untrackErr, ch.Unsubscribe())
}

// Track publishes a modified self state. The local state changes only after
// the transport accepted the track.
func (s *SessionManager) Track(ctx context.Context, mutate func(p *models.Peer)) error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.state != StateSubscribed || s.channel == nil {
		s.mu.Unlock()
		return ErrNotSubscribed
	}
	candidate := s.self.Clone()
	mutate(&candidate)
	ch, epoch := s.channel, s.epoch
	s.mu.Unlock()

	if err := ch.Track(ctx, models.NewPresencePayload(candidate)); err != nil {
		s.metrics.IncTransportErrors("track")
		return fmt.Errorf("track %s: %w", candidate.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch == epoch && s.state != StateClosed {
		mutate(&s.self)
	}
	return nil
}

// Send broadcasts an event on the current region channel.
func (s *SessionManager) Send(ctx context.Context, event string, payload interface{}) error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.state != StateSubscribed || s.channel == nil {
		s.mu.Unlock()
		return ErrNotSubscribed
	}
	ch := s.channel
	s.mu.Unlock()

	if err := ch.Send(ctx, event, payload); err != nil {
		s.metrics.IncTransportErrors("send")
		return fmt.Errorf("send %s: %w", event, err)
	}
	return nil
}

func (s *SessionManager) stopTimersLocked() {
	if s.debounce != nil {
		s.debounce.Stop()
		s.debounce = nil
	}
	if s.retrack != nil {
		s.retrack.Stop()
		s.retrack = nil
	}
}

// Deactivate untracks and leaves the channel, cancels pending timers and
// moves the session to Closed for good.
func (s *SessionManager) Deactivate() error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	s.state = StateClosed
	s.closed.Store(true)
	s.epoch++
	s.stopTimersLocked()
	s.pending = nil
	s.peers = nil
	ch := s.channel
	s.channel = nil
	id, region := s.self.ID, s.region
	s.cancel()
	s.mu.Unlock()

	if ch == nil {
		return nil
	}
	if err := s.leave(context.Background(), ch); err != nil {
		s.metrics.IncTransportErrors("leave")
		s.logger.Errorf(providers.TypeSession, "Leaving region %s for %s: %v", region, id, err)
		return err
	}
	s.logger.Infof(providers.TypeSession, "Session %s closed", id)
	return nil
}

func (s *SessionManager) Closed() bool {
	return s.closed.Load()
}

func (s *SessionManager) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *SessionManager) Region() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.region
}

func (s *SessionManager) Self() models.Peer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.self.Clone()
}

// Peers returns the deduplicated peers of the last processed sync.
func (s *SessionManager) Peers() []models.Peer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.ClonePeers(s.peers)
}
