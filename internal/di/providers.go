package di

import (
	"bakso/internal/ledger"
	"bakso/internal/providers"
	"bakso/internal/structures"
)

// NewPingLedger sizes the shared ping ledger window from the tracker config.
func NewPingLedger(conf *structures.Config, cache providers.CacheProviderInterface, clock providers.Clock) *ledger.PingLedger {
	return ledger.NewPingLedger(cache, clock, conf.Tracker.PingRateLimit)
}
