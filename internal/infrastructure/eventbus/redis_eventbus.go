// Package eventbus moves notification events between pulseboard instances
// over Redis Pub/Sub.
package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/lllypuk/pulseboard/internal/domain/event"
)

const defaultChannelPrefix = "events:"

// Errors returned by the bus.
var (
	ErrNilEvent       = errors.New("event cannot be nil")
	ErrEmptyEventType = errors.New("event type cannot be empty")
	ErrNilHandler     = errors.New("handler cannot be nil")
	ErrAlreadyRunning = errors.New("event bus is already running")
)

// wireMessage is what travels on a Redis channel.
type wireMessage struct {
	ID          string          `json:"id"`
	EventType   string          `json:"event_type"`
	AggregateID string          `json:"aggregate_id"`
	OccurredAt  time.Time       `json:"occurred_at"`
	Metadata    event.Metadata  `json:"metadata"`
	Payload     json.RawMessage `json:"payload"`
}

// received is a wireMessage handed to subscribers. It implements event.Raw.
type received struct{ msg wireMessage }

func (r received) EventType() string        { return r.msg.EventType }
func (r received) AggregateID() string      { return r.msg.AggregateID }
func (r received) OccurredAt() time.Time    { return r.msg.OccurredAt }
func (r received) Metadata() event.Metadata { return r.msg.Metadata }
func (r received) Payload() json.RawMessage { return r.msg.Payload }

// RedisEventBus implements event.Bus on Redis Pub/Sub. One goroutine handles
// messages in arrival order, so handlers observe a channel's publish order.
type RedisEventBus struct {
	client     *redis.Client
	logger     *slog.Logger
	prefix     string
	instanceID string

	mu       sync.RWMutex
	handlers map[string][]event.Handler
	pubsub   *redis.PubSub
	running  bool
	stop     chan struct{}
	stopped  chan struct{}
}

// Option configures a RedisEventBus.
type Option func(*RedisEventBus)

// WithLogger sets the bus logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *RedisEventBus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithChannelPrefix namespaces the Redis channels. Instances only hear each
// other when they share a prefix.
func WithChannelPrefix(prefix string) Option {
	return func(b *RedisEventBus) { b.prefix = prefix }
}

// WithInstanceID overrides the id stamped into Metadata.Origin.
func WithInstanceID(id string) Option {
	return func(b *RedisEventBus) {
		if id != "" {
			b.instanceID = id
		}
	}
}

// NewRedisEventBus creates a bus on client. Nothing is subscribed until Start.
func NewRedisEventBus(client *redis.Client, opts ...Option) *RedisEventBus {
	b := &RedisEventBus{
		client:     client,
		logger:     slog.Default(),
		prefix:     defaultChannelPrefix,
		instanceID: uuid.NewString(),
		handlers:   make(map[string][]event.Handler),
		stop:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// InstanceID returns the id this bus stamps on published events.
func (b *RedisEventBus) InstanceID() string { return b.instanceID }

// Publish encodes evt and publishes it on the channel for its type.
func (b *RedisEventBus) Publish(ctx context.Context, evt event.DomainEvent) error {
	if evt == nil {
		return ErrNilEvent
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", evt.EventType(), err)
	}

	meta := evt.Metadata()
	meta.Origin = b.instanceID
	msg := wireMessage{
		ID:          uuid.NewString(),
		EventType:   evt.EventType(),
		AggregateID: evt.AggregateID(),
		OccurredAt:  evt.OccurredAt(),
		Metadata:    meta,
		Payload:     payload,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	channel := b.channel(msg.EventType)
	if err := b.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}

	b.logger.DebugContext(ctx, "event published",
		slog.String("event_id", msg.ID),
		slog.String("event_type", msg.EventType),
		slog.String("aggregate_id", msg.AggregateID),
		slog.String("correlation_id", meta.CorrelationID),
	)
	return nil
}

// Subscribe adds a handler for eventType. Handlers added after Start are not
// listened for until the next Start.
func (b *RedisEventBus) Subscribe(eventType string, handler event.Handler) error {
	if eventType == "" {
		return ErrEmptyEventType
	}
	if handler == nil {
		return ErrNilHandler
	}

	b.mu.Lock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
	b.mu.Unlock()
	return nil
}

// Start subscribes to every channel with a handler and dispatches messages
// until ctx is done or Shutdown is called. It blocks.
func (b *RedisEventBus) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return ErrAlreadyRunning
	}
	b.running = true
	channels := make([]string, 0, len(b.handlers))
	for eventType := range b.handlers {
		channels = append(channels, b.channel(eventType))
	}
	b.mu.Unlock()

	defer close(b.stopped)

	if len(channels) == 0 {
		b.logger.WarnContext(ctx, "event bus started without subscriptions")
		return b.wait(ctx)
	}

	pubsub := b.client.Subscribe(ctx, channels...)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("failed to subscribe to channels: %w", err)
	}

	b.mu.Lock()
	b.pubsub = pubsub
	b.mu.Unlock()

	b.logger.InfoContext(ctx, "event bus started",
		slog.String("instance_id", b.instanceID),
		slog.Any("channels", channels),
	)

	return b.consume(ctx, pubsub.Channel())
}

func (b *RedisEventBus) wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-b.stop:
		return nil
	}
}

func (b *RedisEventBus) consume(ctx context.Context, messages <-chan *redis.Message) error {
	for {
		select {
		case <-ctx.Done():
			b.logger.InfoContext(ctx, "event bus stopped", slog.String("reason", "context done"))
			return ctx.Err()
		case <-b.stop:
			b.logger.InfoContext(ctx, "event bus stopped", slog.String("reason", "shutdown"))
			return nil
		case m, ok := <-messages:
			if !ok {
				b.logger.WarnContext(ctx, "redis message channel closed")
				return nil
			}
			b.dispatch(ctx, m)
		}
	}
}

// Shutdown stops Start, waiting for the message in flight, and closes the
// subscription. Calling it on a stopped bus is a no-op.
func (b *RedisEventBus) Shutdown() error {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return nil
	}
	b.running = false
	b.mu.Unlock()

	close(b.stop)
	<-b.stopped

	b.mu.Lock()
	pubsub := b.pubsub
	b.pubsub = nil
	b.mu.Unlock()

	if pubsub == nil {
		return nil
	}
	if err := pubsub.Close(); err != nil {
		return fmt.Errorf("failed to close pubsub: %w", err)
	}
	return nil
}

// IsRunning reports whether Start is active.
func (b *RedisEventBus) IsRunning() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.running
}

// IsSubscribed reports whether Redis has confirmed the subscription.
func (b *RedisEventBus) IsSubscribed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.pubsub != nil
}

// HandlerCount returns the number of handlers for eventType.
func (b *RedisEventBus) HandlerCount(eventType string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[eventType])
}

func (b *RedisEventBus) channel(eventType string) string {
	return b.prefix + eventType
}

// dispatch runs every handler for one message. A failing handler is logged
// and does not stop the others.
func (b *RedisEventBus) dispatch(ctx context.Context, m *redis.Message) {
	var msg wireMessage
	if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
		b.logger.ErrorContext(ctx, "dropping undecodable event",
			slog.String("channel", m.Channel),
			slog.String("error", err.Error()),
		)
		return
	}

	b.mu.RLock()
	handlers := b.handlers[msg.EventType]
	b.mu.RUnlock()

	evt := received{msg: msg}
	for i, handle := range handlers {
		if err := handle(ctx, evt); err != nil {
			b.logger.WarnContext(ctx, "event handler failed",
				slog.String("event_id", msg.ID),
				slog.String("event_type", msg.EventType),
				slog.String("origin", msg.Metadata.Origin),
				slog.Int("handler", i),
				slog.String("error", err.Error()),
			)
		}
	}
}

var _ event.Bus = (*RedisEventBus)(nil)
