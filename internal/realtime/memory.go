package realtime

import (
	"bakso/internal/providers"
	"bakso/internal/realtime/interfaces"
	"context"
	"fmt"
	"sort"
	"sync"

	json "github.com/goccy/go-json"
)

type presenceEntry struct {
	owner *memoryChannel
	state json.RawMessage
}

type memoryTopic struct {
	members  map[*memoryChannel]struct{}
	presence map[string]presenceEntry
	version  uint64
}

// MemoryTransport is an in-process hub: every channel handle joined with the
// same id rendezvous on one topic. Presence follows "last track wins" per key.
// Deliveries run synchronously on the caller's goroutine, outside the hub lock.
type MemoryTransport struct {
	mu     sync.Mutex
	topics map[string]*memoryTopic
	logger providers.Logger
	seq    uint64
}

func NewMemoryTransport(logger providers.Logger) *MemoryTransport {
	return &MemoryTransport{
		topics: make(map[string]*memoryTopic),
		logger: logger,
	}
}

func (t *MemoryTransport) Channel(id, presenceKey string) interfaces.ChannelInterface {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seq++
	return &memoryChannel{
		hub:        t,
		id:         id,
		key:        presenceKey,
		seq:        t.seq,
		broadcasts: make(map[string][]interfaces.BroadcastHandler),
	}
}

func (t *MemoryTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.topics = make(map[string]*memoryTopic)
	return nil
}

// Members returns the number of subscribed handles on a channel id.
func (t *MemoryTransport) Members(id string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if topic, ok := t.topics[id]; ok {
		return len(topic.members)
	}
	return 0
}

// PresenceKeys lists the keys currently tracked on a channel id.
func (t *MemoryTransport) PresenceKeys(id string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	topic, ok := t.topics[id]
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(topic.presence))
	for k := range topic.presence {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type syncDelivery struct {
	target  *memoryChannel
	state   interfaces.PresenceState
	version uint64
}

// snapshotLocked bumps the topic version and prepares one sync per member.
func (t *MemoryTransport) snapshotLocked(topic *memoryTopic) []syncDelivery {
	topic.version++
	state := make(interfaces.PresenceState, len(topic.presence))
	for k, e := range topic.presence {
		state[k] = []json.RawMessage{e.state}
	}
	members := make([]*memoryChannel, 0, len(topic.members))
	for m := range topic.members {
		members = append(members, m)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].seq < members[j].seq })

	out := make([]syncDelivery, 0, len(members))
	for _, m := range members {
		out = append(out, syncDelivery{target: m, state: copyState(state), version: topic.version})
	}
	return out
}

func copyState(state interfaces.PresenceState) interfaces.PresenceState {
	out := make(interfaces.PresenceState, len(state))
	for k, v := range state {
		out[k] = append([]json.RawMessage(nil), v...)
	}
	return out
}

func deliverSyncs(deliveries []syncDelivery) {
	for _, d := range deliveries {
		d.target.deliverSync(d.state, d.version)
	}
}

type memoryChannel struct {
	hub *MemoryTransport
	id  string
	key string
	seq uint64

	mu          sync.Mutex
	presence    []interfaces.PresenceHandler
	broadcasts  map[string][]interfaces.BroadcastHandler
	subscribed  bool
	closed      bool
	lastVersion uint64
}

func (c *memoryChannel) ID() string { return c.id }

func (c *memoryChannel) OnPresenceSync(handler interfaces.PresenceHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.presence = append(c.presence, handler)
}

func (c *memoryChannel) OnBroadcast(event string, handler interfaces.BroadcastHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.broadcasts[event] = append(c.broadcasts[event], handler)
}

func (c *memoryChannel) Subscribe(handler interfaces.StatusHandler) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		if handler != nil {
			handler(interfaces.StatusClosed, ErrChannelClosed)
		}
		return
	}
	c.subscribed = true
	c.mu.Unlock()

	c.hub.mu.Lock()
	topic, ok := c.hub.topics[c.id]
	if !ok {
		topic = &memoryTopic{
			members:  make(map[*memoryChannel]struct{}),
			presence: make(map[string]presenceEntry),
		}
		c.hub.topics[c.id] = topic
	}
	topic.members[c] = struct{}{}
	initial := c.hub.snapshotLocked(topic)
	c.hub.mu.Unlock()

	if handler != nil {
		handler(interfaces.StatusSubscribed, nil)
	}
	for _, d := range initial {
		if d.target == c {
			c.deliverSync(d.state, d.version)
		}
	}
}

func (c *memoryChannel) isSubscribed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subscribed && !c.closed
}

func (c *memoryChannel) Track(ctx context.Context, state interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !c.isSubscribed() {
		return ErrNotSubscribed
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("realtime: encode presence: %w", err)
	}

	c.hub.mu.Lock()
	topic, ok := c.hub.topics[c.id]
	if !ok {
		c.hub.mu.Unlock()
		return ErrChannelClosed
	}
	topic.presence[c.key] = presenceEntry{owner: c, state: data}
	deliveries := c.hub.snapshotLocked(topic)
	c.hub.mu.Unlock()

	deliverSyncs(deliveries)
	return nil
}

func (c *memoryChannel) Send(ctx context.Context, event string, payload interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !c.isSubscribed() {
		return ErrNotSubscribed
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("realtime: encode broadcast: %w", err)
	}

	c.hub.mu.Lock()
	topic, ok := c.hub.topics[c.id]
	var targets []*memoryChannel
	if ok {
		for m := range topic.members {
			if m != c {
				targets = append(targets, m)
			}
		}
	}
	c.hub.mu.Unlock()
	if !ok {
		return ErrChannelClosed
	}

	sort.Slice(targets, func(i, j int) bool { return targets[i].seq < targets[j].seq })
	for _, m := range targets {
		m.deliverBroadcast(event, data)
	}
	return nil
}

// removePresence drops the key only while this handle still owns it.
func (c *memoryChannel) removePresence(leave bool) []syncDelivery {
	c.hub.mu.Lock()
	defer c.hub.mu.Unlock()
	topic, ok := c.hub.topics[c.id]
	if !ok {
		return nil
	}
	changed := false
	if e, tracked := topic.presence[c.key]; tracked && e.owner == c {
		delete(topic.presence, c.key)
		changed = true
	}
	if leave {
		delete(topic.members, c)
		if len(topic.members) == 0 && len(topic.presence) == 0 {
			delete(c.hub.topics, c.id)
			return nil
		}
	}
	if !changed {
		return nil
	}
	return c.hub.snapshotLocked(topic)
}

func (c *memoryChannel) Untrack(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !c.isSubscribed() {
		return ErrNotSubscribed
	}
	deliverSyncs(c.removePresence(false))
	return nil
}

func (c *memoryChannel) Unsubscribe() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.subscribed = false
	c.mu.Unlock()

	deliverSyncs(c.removePresence(true))
	return nil
}

func (c *memoryChannel) deliverSync(state interfaces.PresenceState, version uint64) {
	c.mu.Lock()
	if c.closed || !c.subscribed || version <= c.lastVersion {
		c.mu.Unlock()
		return
	}
	c.lastVersion = version
	handlers := append([]interfaces.PresenceHandler(nil), c.presence...)
	c.mu.Unlock()

	for _, h := range handlers {
		h(state)
	}
}

func (c *memoryChannel) deliverBroadcast(event string, payload json.RawMessage) {
	c.mu.Lock()
	if c.closed || !c.subscribed {
		c.mu.Unlock()
		return
	}
	handlers := append([]interfaces.BroadcastHandler(nil), c.broadcasts[event]...)
	c.mu.Unlock()

	for _, h := range handlers {
		h(payload)
	}
}
