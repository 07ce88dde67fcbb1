package services

import (
	"bakso/internal/ledger"
	"bakso/internal/models"
	"bakso/internal/providers"
	"bakso/internal/realtime/interfaces"
	"bakso/internal/structures"
	"bakso/internal/tracker"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrSessionNotFound = errors.New("services: session not found")
	ErrInvalidLogin    = errors.New("services: invalid login")
)

const (
	RateLimitSession = "session"
	RateLimitShared  = "shared"
)

type LoginRequest struct {
	ID       string
	Name     string
	Role     models.Role
	Location *models.Location
}

type TrackerServiceInterface interface {
	Login(req LoginRequest) (tracker.TrackerInterface, error)
	Get(id string) (tracker.TrackerInterface, error)
	Logout(id string) error
	Count() int
	Shutdown()
}

// TrackerService keeps one tracker per logged in user.
type TrackerService struct {
	conf      *structures.Config
	transport interfaces.TransportInterface
	limiter   tracker.PingLimiterInterface
	clock     providers.Clock
	logger    providers.Logger
	metrics   providers.MetricsProviderInterface

	mu       sync.RWMutex
	sessions map[string]tracker.TrackerInterface
}

// NewTrackerService wires the rate limit scope: "shared" uses the process
// wide ping ledger, "session" gives every tracker its own window. Without a
// cache the shared scope falls back to per session windows.
func NewTrackerService(
	conf *structures.Config,
	transport interfaces.TransportInterface,
	pings *ledger.PingLedger,
	cache providers.CacheProviderInterface,
	clock providers.Clock,
	logger providers.Logger,
	metrics providers.MetricsProviderInterface,
) TrackerServiceInterface {
	var limiter tracker.PingLimiterInterface
	if conf.Tracker.RateLimitScope == RateLimitShared {
		if cache.Enabled() && pings != nil {
			limiter = pings
			logger.Infof(providers.TypeApp, "Ping rate limit shared across sessions")
		} else {
			logger.Warnf(providers.TypeApp, "Shared ping rate limit needs the cache, falling back to per session limits")
		}
	}
	return &TrackerService{
		conf:      conf,
		transport: transport,
		limiter:   limiter,
		clock:     clock,
		logger:    logger,
		metrics:   metrics,
		sessions:  make(map[string]tracker.TrackerInterface),
	}
}

// Login starts a tracker for the user. A missing id gets a generated one;
// logging in again with an id replaces the previous session.
func (s *TrackerService) Login(req LoginRequest) (tracker.TrackerInterface, error) {
	if !req.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidLogin, req.Role)
	}
	if req.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidLogin)
	}
	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}

	s.mu.Lock()
	old, replaced := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if replaced {
		s.logger.Infof(providers.TypeSession, "Replacing session %s", id)
		if err := old.Deactivate(); err != nil {
			s.logger.Warnf(providers.TypeSession, "Closing replaced session %s: %v", id, err)
		}
	}

	t := tracker.NewTracker(&s.conf.Tracker, s.transport, s.limiter, s.clock, s.logger, s.metrics)
	if err := t.Activate(id, req.Role, req.Name, req.Location); err != nil {
		s.updateGauge()
		return nil, err
	}

	s.mu.Lock()
	lost, raced := s.sessions[id]
	s.sessions[id] = t
	s.mu.Unlock()
	if raced {
		s.logger.Warnf(providers.TypeSession, "Concurrent login for %s, closing the earlier session", id)
		if err := lost.Deactivate(); err != nil {
			s.logger.Warnf(providers.TypeSession, "Closing raced session %s: %v", id, err)
		}
	}
	s.updateGauge()
	return t, nil
}

func (s *TrackerService) Get(id string) (tracker.TrackerInterface, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return t, nil
}

// Logout deactivates the user's tracker and forgets it.
func (s *TrackerService) Logout(id string) error {
	s.mu.Lock()
	t, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	s.updateGauge()
	return t.Deactivate()
}

func (s *TrackerService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Shutdown deactivates every session.
func (s *TrackerService) Shutdown() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]tracker.TrackerInterface)
	s.mu.Unlock()

	for id, t := range sessions {
		if err := t.Deactivate(); err != nil {
			s.logger.Errorf(providers.TypeSession, "Closing session %s: %v", id, err)
		}
	}
	s.updateGauge()
	s.logger.Infof(providers.TypeApp, "Closed %d sessions", len(sessions))
}

func (s *TrackerService) updateGauge() {
	s.metrics.SetActiveSessions(s.Count())
}
