package interfaces

import (
	"context"

	json "github.com/goccy/go-json"
)

type Status string

const (
	StatusSubscribed   Status = "SUBSCRIBED"
	StatusChannelError Status = "CHANNEL_ERROR"
	StatusClosed       Status = "CLOSED"
)

// PresenceState maps a presence key to the states tracked under it.
type PresenceState map[string][]json.RawMessage

type PresenceHandler func(state PresenceState)

type BroadcastHandler func(payload json.RawMessage)

type StatusHandler func(status Status, err error)

// ChannelInterface is a handle on one realtime channel joined with a presence key.
// Handlers must be registered before Subscribe.
type ChannelInterface interface {
	ID() string
	OnPresenceSync(handler PresenceHandler)
	OnBroadcast(event string, handler BroadcastHandler)
	Subscribe(handler StatusHandler)
	Track(ctx context.Context, state interface{}) error
	Send(ctx context.Context, event string, payload interface{}) error
	Untrack(ctx context.Context) error
	Unsubscribe() error
}

type TransportInterface interface {
	Channel(id, presenceKey string) ChannelInterface
	Close() error
}
