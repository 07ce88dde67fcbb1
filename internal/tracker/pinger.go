package tracker

import (
	"bakso/internal/models"
	"bakso/internal/providers"
	"context"
	"sync"
)

// presenceSession is the part of SessionManager the pinger drives.
type presenceSession interface {
	Self() models.Peer
	Track(ctx context.Context, mutate func(p *models.Peer)) error
	Send(ctx context.Context, event string, payload interface{}) error
}

// Pinger sends rate-limited pings from a buyer to a seller.
type Pinger struct {
	session    presenceSession
	limiter    PingLimiterInterface
	clock      providers.Clock
	logger     providers.Logger
	metrics    providers.MetricsProviderInterface
	pairOnPing bool

	// serializes check-and-record of the rate limit
	mu sync.Mutex
}

func NewPinger(
	session presenceSession,
	limiter PingLimiterInterface,
	clock providers.Clock,
	logger providers.Logger,
	metrics providers.MetricsProviderInterface,
	pairOnPing bool,
) *Pinger {
	return &Pinger{
		session:    session,
		limiter:    limiter,
		clock:      clock,
		logger:     logger,
		metrics:    metrics,
		pairOnPing: pairOnPing,
	}
}

// SendPing broadcasts a ping to sellerID. With pairing enabled the buyer is
// first re-tracked as unavailable and paired with the seller. If the
// broadcast then fails, availability is restored.
func (p *Pinger) SendPing(ctx context.Context, sellerID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	self := p.session.Self()
	if self.Role != models.RoleBuyer {
		return ErrNotBuyer
	}

	now := p.clock.Now()
	if retryAfter, ok := p.limiter.Allow(self.ID, now); !ok {
		p.metrics.IncPings(providers.PingResultRateLimited)
		p.logger.Infof(providers.TypePing, "Ping from %s to %s rejected, retry in %s", self.ID, sellerID, retryAfter)
		return &RateLimitError{RetryAfter: retryAfter}
	}

	if p.pairOnPing {
		err := p.session.Track(ctx, func(peer *models.Peer) {
			peer.IsAvailable = false
			peer.PairedSellerID = sellerID
		})
		if err != nil {
			p.metrics.IncPings(providers.PingResultFailed)
			p.logger.Errorf(providers.TypePing, "Pairing %s with %s: %v", self.ID, sellerID, err)
			return err
		}
	}

	payload := models.PingPayload{
		SellerID:  sellerID,
		BuyerID:   self.ID,
		BuyerName: self.DisplayName,
	}
	if err := p.session.Send(ctx, models.EventPing, payload); err != nil {
		p.metrics.IncPings(providers.PingResultFailed)
		p.logger.Errorf(providers.TypePing, "Ping from %s to %s: %v", self.ID, sellerID, err)
		if p.pairOnPing {
			if restoreErr := p.session.Track(ctx, makeAvailable); restoreErr != nil {
				p.logger.Errorf(providers.TypePing, "Restoring availability of %s: %v", self.ID, restoreErr)
			}
		}
		return err
	}

	p.limiter.Record(self.ID, now)
	p.metrics.IncPings(providers.PingResultSent)
	p.logger.Infof(providers.TypePing, "Ping from %s to %s sent", self.ID, sellerID)
	return nil
}

// CancelPing makes the buyer available again and drops any pairing.
// The rate limit window is not reset.
func (p *Pinger) CancelPing(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	self := p.session.Self()
	if self.Role != models.RoleBuyer {
		return ErrNotBuyer
	}
	if self.IsAvailable && self.PairedSellerID == "" {
		return nil
	}
	if err := p.session.Track(ctx, makeAvailable); err != nil {
		return err
	}
	p.logger.Infof(providers.TypePing, "Buyer %s released pairing with %s", self.ID, self.PairedSellerID)
	return nil
}

func makeAvailable(peer *models.Peer) {
	peer.IsAvailable = true
	peer.PairedSellerID = ""
}
