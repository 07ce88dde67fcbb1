package realtime

import (
	"bakso/internal/providers"
	"bakso/internal/realtime/interfaces"
	"bakso/internal/structures"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	kindSync      = "sync"
	kindBroadcast = "broadcast"
)

// envelope is the pub/sub frame shared by every node on a channel.
type envelope struct {
	Kind    string          `json:"kind"`
	Event   string          `json:"event,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	From    string          `json:"from"`
}

// presenceRecord is the value stored per presence key in the channel hash.
// Seen is refreshed by the owner's heartbeat; a record older than the
// presence TTL belongs to a node that went away without untracking.
type presenceRecord struct {
	Owner string          `json:"owner"`
	State json.RawMessage `json:"state"`
	Seen  int64           `json:"seen"`
}

func encodeEnvelope(e envelope) ([]byte, error) {
	return json.Marshal(e)
}

func decodeEnvelope(data []byte) (envelope, error) {
	var e envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return envelope{}, err
	}
	if e.Kind != kindSync && e.Kind != kindBroadcast {
		return envelope{}, fmt.Errorf("realtime: unknown envelope kind %q", e.Kind)
	}
	return e, nil
}

// decodePresence turns the raw channel hash into a presence state, skipping
// records that fail to decode. With a positive ttl, records last seen before
// now-ttl are left out and returned as stale.
func decodePresence(raw map[string]string, now time.Time, ttl time.Duration) (interfaces.PresenceState, int, []string) {
	state := make(interfaces.PresenceState, len(raw))
	skipped := 0
	var stale []string
	cutoff := now.Add(-ttl).UnixMilli()
	for key, value := range raw {
		var rec presenceRecord
		if err := json.Unmarshal([]byte(value), &rec); err != nil || len(rec.State) == 0 {
			skipped++
			continue
		}
		if ttl > 0 && rec.Seen < cutoff {
			stale = append(stale, key)
			continue
		}
		state[key] = []json.RawMessage{rec.State}
	}
	sort.Strings(stale)
	return state, skipped, stale
}

// untrackScript removes a presence key only when the caller still owns it.
var untrackScript = redis.NewScript(`
local value = redis.call('HGET', KEYS[1], ARGV[1])
if not value then
  return 0
end
local ok, rec = pcall(cjson.decode, value)
if ok and rec['owner'] == ARGV[2] then
  return redis.call('HDEL', KEYS[1], ARGV[1])
end
return 0
`)

// touchScript rewrites a presence record only when the caller still owns it.
var touchScript = redis.NewScript(`
local value = redis.call('HGET', KEYS[1], ARGV[1])
if not value then
  return 0
end
local ok, rec = pcall(cjson.decode, value)
if ok and rec['owner'] == ARGV[2] then
  redis.call('HSET', KEYS[1], ARGV[1], ARGV[3])
  return 1
end
return 0
`)

// reapScript removes a presence record that is still older than the cutoff.
var reapScript = redis.NewScript(`
local value = redis.call('HGET', KEYS[1], ARGV[1])
if not value then
  return 0
end
local ok, rec = pcall(cjson.decode, value)
if ok and (rec['seen'] or 0) < tonumber(ARGV[2]) then
  return redis.call('HDEL', KEYS[1], ARGV[1])
end
return 0
`)

// RedisTransport shares channels across processes: broadcasts and sync
// notices travel over pub/sub, presence lives in one hash per channel.
type RedisTransport struct {
	client      *redis.Client
	prefix      string
	presenceTTL time.Duration
	logger      providers.Logger
	now         func() time.Time
}

func NewRedisTransport(conf *structures.RedisConfig, logger providers.Logger) (*RedisTransport, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     conf.Addr,
		Password: conf.Password,
		DB:       conf.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("realtime: redis ping %s: %w", conf.Addr, err)
	}
	prefix := conf.Prefix
	if prefix == "" {
		prefix = "bakso"
	}
	return &RedisTransport{
		client:      client,
		prefix:      prefix,
		presenceTTL: conf.PresenceTTL,
		logger:      logger,
		now:         time.Now,
	}, nil
}

func (t *RedisTransport) topicKey(id string) string    { return t.prefix + ":ch:" + id }
func (t *RedisTransport) presenceKey(id string) string { return t.prefix + ":presence:" + id }

func (t *RedisTransport) Channel(id, presenceKey string) interfaces.ChannelInterface {
	return &redisChannel{
		transport:  t,
		id:         id,
		key:        presenceKey,
		handle:     uuid.NewString(),
		broadcasts: make(map[string][]interfaces.BroadcastHandler),
	}
}

func (t *RedisTransport) Close() error {
	return t.client.Close()
}

type redisChannel struct {
	transport *RedisTransport
	id        string
	key       string
	handle    string

	mu         sync.Mutex
	presence   []interfaces.PresenceHandler
	broadcasts map[string][]interfaces.BroadcastHandler
	pubsub     *redis.PubSub
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	tracked    json.RawMessage
	subscribed bool
	closed     bool
}

func (c *redisChannel) ID() string { return c.id }

func (c *redisChannel) OnPresenceSync(handler interfaces.PresenceHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.presence = append(c.presence, handler)
}

func (c *redisChannel) OnBroadcast(event string, handler interfaces.BroadcastHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.broadcasts[event] = append(c.broadcasts[event], handler)
}

// Subscribe confirms the pub/sub subscription, reports the status, then
// delivers the current presence and starts the receive loop.
func (c *redisChannel) Subscribe(handler interfaces.StatusHandler) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		if handler != nil {
			handler(interfaces.StatusClosed, ErrChannelClosed)
		}
		return
	}
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	pubsub := c.transport.client.Subscribe(ctx, c.transport.topicKey(c.id))
	if _, err := pubsub.Receive(ctx); err != nil {
		cancel()
		_ = pubsub.Close()
		if handler != nil {
			handler(interfaces.StatusChannelError, err)
		}
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		cancel()
		_ = pubsub.Close()
		if handler != nil {
			handler(interfaces.StatusClosed, ErrChannelClosed)
		}
		return
	}
	c.pubsub = pubsub
	c.cancel = cancel
	c.subscribed = true
	c.wg.Add(1)
	if c.transport.presenceTTL > 0 {
		c.wg.Add(1)
		go c.heartbeat(ctx, c.transport.presenceTTL/3)
	}
	c.mu.Unlock()

	if handler != nil {
		handler(interfaces.StatusSubscribed, nil)
	}
	c.refreshPresence(ctx)
	go c.receive(ctx, pubsub)
}

// heartbeat keeps this node's presence record fresh while subscribed.
func (c *redisChannel) heartbeat(ctx context.Context, interval time.Duration) {
	defer c.wg.Done()
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.touch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				c.transport.logger.Errorf(providers.TypeApp, "Presence heartbeat on %s: %v", c.id, err)
			}
		}
	}
}

// touch restamps the tracked record if this handle still owns it.
func (c *redisChannel) touch(ctx context.Context) error {
	c.mu.Lock()
	state := c.tracked
	c.mu.Unlock()
	if state == nil {
		return nil
	}
	record, err := c.record(state)
	if err != nil {
		return err
	}
	key := c.transport.presenceKey(c.id)
	if err := touchScript.Run(ctx, c.transport.client, []string{key}, c.key, c.handle, record).Err(); err != nil {
		return fmt.Errorf("realtime: touch on %s: %w", c.id, err)
	}
	return c.transport.client.Expire(ctx, key, c.transport.presenceTTL).Err()
}

func (c *redisChannel) record(state json.RawMessage) ([]byte, error) {
	return json.Marshal(presenceRecord{Owner: c.handle, State: state, Seen: c.transport.now().UnixMilli()})
}

func (c *redisChannel) receive(ctx context.Context, pubsub *redis.PubSub) {
	defer c.wg.Done()
	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			e, err := decodeEnvelope([]byte(msg.Payload))
			if err != nil {
				c.transport.logger.Warnf(providers.TypeApp, "Dropping frame on %s: %v", c.id, err)
				continue
			}
			switch e.Kind {
			case kindSync:
				c.refreshPresence(ctx)
			case kindBroadcast:
				if e.From != c.handle {
					c.deliverBroadcast(e.Event, e.Payload)
				}
			}
		}
	}
}

func (c *redisChannel) refreshPresence(ctx context.Context) {
	raw, err := c.transport.client.HGetAll(ctx, c.transport.presenceKey(c.id)).Result()
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			c.transport.logger.Errorf(providers.TypeApp, "Reading presence for %s: %v", c.id, err)
		}
		return
	}
	state, skipped, stale := decodePresence(raw, c.transport.now(), c.transport.presenceTTL)
	if skipped > 0 {
		c.transport.logger.Warnf(providers.TypeApp, "Skipped %d malformed presence records on %s", skipped, c.id)
	}
	if len(stale) > 0 {
		c.reap(ctx, stale)
	}

	c.mu.Lock()
	if !c.subscribed || c.closed {
		c.mu.Unlock()
		return
	}
	handlers := append([]interfaces.PresenceHandler(nil), c.presence...)
	c.mu.Unlock()

	for _, h := range handlers {
		h(state)
	}
}

// reap deletes presence records whose owner stopped refreshing them.
func (c *redisChannel) reap(ctx context.Context, keys []string) {
	cutoff := c.transport.now().Add(-c.transport.presenceTTL).UnixMilli()
	hash := c.transport.presenceKey(c.id)
	for _, key := range keys {
		removed, err := reapScript.Run(ctx, c.transport.client, []string{hash}, key, cutoff).Int()
		if err != nil {
			c.transport.logger.Errorf(providers.TypeApp, "Reaping presence %s on %s: %v", key, c.id, err)
			return
		}
		if removed > 0 {
			c.transport.logger.Infof(providers.TypeApp, "Reaped stale presence %s on %s", key, c.id)
		}
	}
}

func (c *redisChannel) deliverBroadcast(event string, payload json.RawMessage) {
	c.mu.Lock()
	if !c.subscribed || c.closed {
		c.mu.Unlock()
		return
	}
	handlers := append([]interfaces.BroadcastHandler(nil), c.broadcasts[event]...)
	c.mu.Unlock()

	for _, h := range handlers {
		h(payload)
	}
}

func (c *redisChannel) isSubscribed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subscribed && !c.closed
}

func (c *redisChannel) publish(ctx context.Context, e envelope) error {
	e.From = c.handle
	data, err := encodeEnvelope(e)
	if err != nil {
		return err
	}
	return c.transport.client.Publish(ctx, c.transport.topicKey(c.id), data).Err()
}

func (c *redisChannel) Track(ctx context.Context, state interface{}) error {
	if !c.isSubscribed() {
		return ErrNotSubscribed
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("realtime: encode presence: %w", err)
	}
	record, err := c.record(data)
	if err != nil {
		return err
	}

	key := c.transport.presenceKey(c.id)
	pipe := c.transport.client.TxPipeline()
	pipe.HSet(ctx, key, c.key, record)
	if c.transport.presenceTTL > 0 {
		pipe.Expire(ctx, key, c.transport.presenceTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("realtime: track on %s: %w", c.id, err)
	}
	c.mu.Lock()
	c.tracked = data
	c.mu.Unlock()
	return c.publish(ctx, envelope{Kind: kindSync})
}

func (c *redisChannel) Send(ctx context.Context, event string, payload interface{}) error {
	if !c.isSubscribed() {
		return ErrNotSubscribed
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("realtime: encode broadcast: %w", err)
	}
	if err := c.publish(ctx, envelope{Kind: kindBroadcast, Event: event, Payload: data}); err != nil {
		return fmt.Errorf("realtime: send %s on %s: %w", event, c.id, err)
	}
	return nil
}

func (c *redisChannel) untrack(ctx context.Context) error {
	c.mu.Lock()
	c.tracked = nil
	c.mu.Unlock()
	removed, err := untrackScript.Run(ctx, c.transport.client,
		[]string{c.transport.presenceKey(c.id)}, c.key, c.handle).Int()
	if err != nil {
		return fmt.Errorf("realtime: untrack on %s: %w", c.id, err)
	}
	if removed == 0 {
		return nil
	}
	return c.publish(ctx, envelope{Kind: kindSync})
}

func (c *redisChannel) Untrack(ctx context.Context) error {
	if !c.isSubscribed() {
		return ErrNotSubscribed
	}
	return c.untrack(ctx)
}

func (c *redisChannel) Unsubscribe() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	wasSubscribed := c.subscribed
	c.closed = true
	c.subscribed = false
	pubsub, cancel := c.pubsub, c.cancel
	c.mu.Unlock()

	if !wasSubscribed {
		return nil
	}

	ctx, stop := context.WithTimeout(context.Background(), 2*time.Second)
	defer stop()
	untrackErr := c.untrack(ctx)

	cancel()
	closeErr := pubsub.Close()
	c.wg.Wait()
	return errors.Join(untrackErr, closeErr)
}
