package websocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/lllypuk/pulseboard/internal/domain/event"
	"github.com/lllypuk/pulseboard/internal/domain/notification"
)

// EventSubscriber registers handlers on an event bus.
// Declared on the consumer side.
type EventSubscriber interface {
	Subscribe(eventType string, handler event.Handler) error
}

// Broadcaster feeds notification events from the bus into the local
// dispatcher, so every instance reaches the channels it holds.
type Broadcaster struct {
	dispatcher *Dispatcher
	bus        EventSubscriber
	logger     *slog.Logger

	running   bool
	runningMu sync.RWMutex
}

// BroadcasterOption configures a Broadcaster.
type BroadcasterOption func(*Broadcaster)

// WithBroadcasterLogger sets the logger for the broadcaster.
func WithBroadcasterLogger(logger *slog.Logger) BroadcasterOption {
	return func(b *Broadcaster) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBroadcaster creates a new Broadcaster.
func NewBroadcaster(dispatcher *Dispatcher, bus EventSubscriber, opts ...BroadcasterOption) *Broadcaster {
	b := &Broadcaster{
		dispatcher: dispatcher,
		bus:        bus,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Start subscribes to notification events. It does not block; the bus
// must be started afterwards.
func (b *Broadcaster) Start(ctx context.Context) error {
	b.runningMu.Lock()
	defer b.runningMu.Unlock()

	if b.running {
		return nil
	}

	if err := b.bus.Subscribe(notification.EventTypeCreated, b.handleEvent); err != nil {
		return fmt.Errorf("subscribe to %s: %w", notification.EventTypeCreated, err)
	}
	b.running = true

	b.logger.InfoContext(ctx, "websocket broadcaster started")
	return nil
}

// IsRunning returns whether the broadcaster is running.
func (b *Broadcaster) IsRunning() bool {
	b.runningMu.RLock()
	defer b.runningMu.RUnlock()
	return b.running
}

func (b *Broadcaster) handleEvent(ctx context.Context, evt event.DomainEvent) error {
	created, err := decodeCreated(evt)
	if err != nil {
		b.logger.WarnContext(ctx, "undecodable notification event",
			slog.String("event_type", evt.EventType()),
			slog.String("aggregate_id", evt.AggregateID()),
			slog.String("error", err.Error()),
		)
		return err
	}

	result, err := b.dispatcher.Dispatch(ctx, created.Notification())
	if err != nil {
		return err
	}

	b.logger.DebugContext(ctx, "notification event dispatched",
		slog.String("aggregate_id", evt.AggregateID()),
		slog.String("correlation_id", evt.Metadata().CorrelationID),
		slog.Int("delivered", result.Delivered),
	)
	return nil
}

func decodeCreated(evt event.DomainEvent) (notification.Created, error) {
	if created, ok := evt.(notification.Created); ok {
		return created, nil
	}
	var created notification.Created
	if err := event.Decode(evt, &created); err != nil {
		return notification.Created{}, err
	}
	if created.UserID.IsZero() || created.ID == 0 {
		return notification.Created{}, errors.New("payload misses id or user_id")
	}
	return created, nil
}
