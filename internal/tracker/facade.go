package tracker

import (
	"bakso/internal/geo"
	"bakso/internal/models"
	"bakso/internal/providers"
	"bakso/internal/realtime/interfaces"
	"bakso/internal/structures"
	"context"
	"sync"

	"go.uber.org/atomic"
)

type TrackerInterface interface {
	Activate(id string, role models.Role, displayName string, loc *models.Location) error
	HandleGeolocation(loc *models.Location) error
	NearbyUsers() []models.Peer
	Notifications() []models.Notification
	UnreadCount() int
	MarkAsRead(notificationID string)
	SendPing(ctx context.Context, sellerID string) error
	CancelPing(ctx context.Context) error
	HandleLocationUpdate(userID string, loc models.Location)
	EstimateWalk(sellerID string) (float64, int, error)
	Self() models.Peer
	Location() models.Location
	Region() string
	State() SessionState
	Deactivate() error
}

// Tracker is the per-user facade: one session manager, one pinger and one
// inbox, plus the last good location used as the map center.
type Tracker struct {
	conf    *structures.TrackerConfig
	logger  providers.Logger
	metrics providers.MetricsProviderInterface

	session *SessionManager
	pinger  *Pinger
	inbox   *Inbox
	active  *atomic.Bool

	mu       sync.Mutex
	peers    []models.Peer
	lastGood models.Location
}

// NewTracker builds an inactive tracker. A nil limiter gives the tracker
// its own in-memory rate limit window.
func NewTracker(
	conf *structures.TrackerConfig,
	transport interfaces.TransportInterface,
	limiter PingLimiterInterface,
	clock providers.Clock,
	logger providers.Logger,
	metrics providers.MetricsProviderInterface,
) *Tracker {
	if limiter == nil {
		limiter = NewSessionLimiter(conf.PingRateLimit)
	}
	t := &Tracker{
		conf:     conf,
		logger:   logger,
		metrics:  metrics,
		inbox:    NewInbox(clock, conf.NotificationTTL),
		active:   atomic.NewBool(false),
		peers:    []models.Peer{},
		lastGood: models.Location{Lat: conf.DefaultLat, Lng: conf.DefaultLng},
	}
	t.session = NewSessionManager(conf, transport, clock, logger, metrics, t)
	t.pinger = NewPinger(t.session, limiter, clock, logger, metrics, conf.PairOnPing)
	return t
}

// Activate starts the session at loc, or at the neutral default when loc
// is missing or invalid.
func (t *Tracker) Activate(id string, role models.Role, displayName string, loc *models.Location) error {
	t.mu.Lock()
	if loc.Valid() {
		t.lastGood = *loc
	}
	start := t.lastGood
	t.mu.Unlock()

	err := t.session.Start(models.Peer{
		ID:          id,
		Role:        role,
		Location:    &start,
		DisplayName: displayName,
	})
	if err != nil {
		return err
	}
	t.active.Store(true)
	return nil
}

// HandleGeolocation applies a geolocation sample. A nil or invalid sample
// keeps the last good location.
func (t *Tracker) HandleGeolocation(loc *models.Location) error {
	if !loc.Valid() {
		t.logger.Debugf(providers.TypeSession, "No usable location for %s, keeping last good position", t.session.Self().ID)
		return nil
	}
	t.mu.Lock()
	t.lastGood = *loc
	t.mu.Unlock()
	return t.session.UpdateLocation(*loc)
}

// Location is the last good location.
func (t *Tracker) Location() models.Location {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastGood
}

// OnPresence replaces the peer cache. A flush that lost the race with
// Deactivate is dropped.
func (t *Tracker) OnPresence(peers []models.Peer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session.Closed() {
		return
	}
	t.peers = peers
}

func (t *Tracker) OnPing(ping models.PingPayload) {
	n, ok := t.inbox.Add(ping)
	if !ok {
		return
	}
	t.metrics.IncNotifications()
	t.logger.Infof(providers.TypePing, "Seller %s notified by %s (%s)", n.SellerID, n.BuyerID, n.ID)
}

func (t *Tracker) OnLocation(update models.LocationPayload) {
	t.HandleLocationUpdate(update.UserID, *update.Location)
}

// HandleLocationUpdate moves a known peer in the local cache until the next
// presence sync replaces it. Unknown peers are ignored.
func (t *Tracker) HandleLocationUpdate(userID string, loc models.Location) {
	if !loc.Valid() {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	found := false
	next := make([]models.Peer, len(t.peers))
	for i, p := range t.peers {
		next[i] = p
		if p.ID == userID {
			next[i] = p.Clone()
			next[i].Location = loc.Clone()
			found = true
		}
	}
	if !found {
		return
	}
	t.peers = geo.Deduplicate(next, t.conf.CollisionOffset)
}

// NearbyUsers filters the cached peers against the current self state.
func (t *Tracker) NearbyUsers() []models.Peer {
	t.mu.Lock()
	peers := t.peers
	t.mu.Unlock()

	self := t.session.Self()
	return VisiblePeers(peers, self.Location, self.Role, self.ID, Radii{
		Buyer:  t.conf.BuyerRadius,
		Seller: t.conf.SellerRadius,
	})
}

func (t *Tracker) nearbySeller(sellerID string) (models.Peer, bool) {
	for _, p := range t.NearbyUsers() {
		if p.ID == sellerID && p.Role == models.RoleSeller {
			return p, true
		}
	}
	return models.Peer{}, false
}

func (t *Tracker) Notifications() []models.Notification {
	return t.inbox.List()
}

func (t *Tracker) UnreadCount() int {
	return t.inbox.UnreadCount()
}

func (t *Tracker) MarkAsRead(notificationID string) {
	t.inbox.MarkAsRead(notificationID)
}

// SendPing pings a seller currently visible to this buyer.
func (t *Tracker) SendPing(ctx context.Context, sellerID string) error {
	if !t.active.Load() {
		return ErrSessionClosed
	}
	if t.session.Self().Role != models.RoleBuyer {
		return ErrNotBuyer
	}
	if _, ok := t.nearbySeller(sellerID); !ok {
		return ErrUnknownSeller
	}
	return t.pinger.SendPing(ctx, sellerID)
}

func (t *Tracker) CancelPing(ctx context.Context) error {
	if !t.active.Load() {
		return ErrSessionClosed
	}
	return t.pinger.CancelPing(ctx)
}

// EstimateWalk returns the distance in meters to a visible seller and the
// walking time in minutes.
func (t *Tracker) EstimateWalk(sellerID string) (float64, int, error) {
	seller, ok := t.nearbySeller(sellerID)
	if !ok {
		return 0, 0, ErrUnknownSeller
	}
	d := geo.DistanceMeters(t.session.Self().Location, seller.Location)
	return d, geo.WalkingMinutes(d, t.conf.WalkingSpeed), nil
}

func (t *Tracker) Self() models.Peer {
	return t.session.Self()
}

func (t *Tracker) Region() string {
	return t.session.Region()
}

func (t *Tracker) State() SessionState {
	return t.session.State()
}

// Deactivate leaves the region channel and drops every pending timer.
// Calling it again is a no-op.
func (t *Tracker) Deactivate() error {
	err := t.session.Deactivate()
	t.inbox.Close()
	t.active.Store(false)

	t.mu.Lock()
	t.peers = []models.Peer{}
	t.mu.Unlock()
	return err
}
