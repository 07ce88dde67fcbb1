package realtime

import "errors"

var (
	ErrNotSubscribed = errors.New("realtime: channel not subscribed")
	ErrChannelClosed = errors.New("realtime: channel closed")
)
