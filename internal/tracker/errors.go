package tracker

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotSubscribed   = errors.New("tracker: session is not subscribed")
	ErrSessionClosed   = errors.New("tracker: session closed")
	ErrSessionActive   = errors.New("tracker: session already started")
	ErrNotBuyer        = errors.New("tracker: only buyers can ping")
	ErrUnknownSeller   = errors.New("tracker: seller is not nearby")
	ErrPingRateLimited = errors.New("tracker: ping rate limited")
)

// RateLimitError reports a rejected ping and how long until the next one is allowed.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%v: retry in %s", ErrPingRateLimited, e.RetryAfter.Round(time.Second))
}

func (e *RateLimitError) Is(target error) bool {
	return target == ErrPingRateLimited
}
