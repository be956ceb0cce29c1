package websocket

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lllypuk/pulseboard/internal/domain/notification"
)

// DispatchResult summarises one fanout.
type DispatchResult struct {
	// Delivered counts channels that accepted the frame.
	Delivered int
	// Pruned counts channels whose send failed. They are unregistered and closed.
	Pruned int
}

// Dispatcher pushes notifications to the live channels of their owner.
type Dispatcher struct {
	registry *Registry
	metrics  Metrics
	logger   *slog.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDispatcherMetrics sets the metrics sink.
func WithDispatcherMetrics(m Metrics) DispatcherOption {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// WithDispatcherLogger sets the logger.
func WithDispatcherLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// NewDispatcher creates a dispatcher reading from registry.
func NewDispatcher(registry *Registry, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		metrics:  nopMetrics{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch sends n to every channel of its owner, at most once per channel.
// Channels that fail are unregistered and closed. Zero live channels is a
// valid outcome.
func (d *Dispatcher) Dispatch(ctx context.Context, n *notification.Notification) (DispatchResult, error) {
	start := time.Now()
	defer func() { d.metrics.ObserveDispatch(time.Since(start)) }()

	data, err := EncodeNotification(n)
	if err != nil {
		return DispatchResult{}, fmt.Errorf("encode notification %d: %w", n.ID(), err)
	}

	var result DispatchResult
	for _, ch := range d.registry.ChannelsFor(n.UserID()) {
		if sendErr := ch.Send(data); sendErr != nil {
			d.registry.Unregister(n.UserID(), ch)
			ch.Close()
			result.Pruned++
			d.logger.DebugContext(ctx, "pruned channel after failed send",
				slog.String("channel_id", ch.ID()),
				slog.String("user_id", n.UserID().String()),
				slog.String("error", sendErr.Error()),
			)
			continue
		}
		result.Delivered++
	}

	d.metrics.DeliveryResult(result.Delivered, result.Pruned)
	if result.Pruned > 0 {
		d.metrics.ChannelPruned(PruneReasonSendFailed, result.Pruned)
	}

	d.logger.DebugContext(ctx, "notification dispatched",
		slog.Int64("notification_id", n.ID()),
		slog.String("user_id", n.UserID().String()),
		slog.Int("delivered", result.Delivered),
		slog.Int("pruned", result.Pruned),
	)

	return result, nil
}

// Deliver implements the application Deliverer port.
func (d *Dispatcher) Deliver(ctx context.Context, n *notification.Notification) (int, error) {
	result, err := d.Dispatch(ctx, n)
	return result.Delivered, err
}
