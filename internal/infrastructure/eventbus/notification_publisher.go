package eventbus

import (
	"context"
	"fmt"

	"github.com/lllypuk/pulseboard/internal/application/appcore"
	"github.com/lllypuk/pulseboard/internal/domain/event"
	"github.com/lllypuk/pulseboard/internal/domain/notification"
)

// NotificationPublisher hands stored notifications to the bus instead of
// pushing them directly. Every instance's broadcaster delivers to its own
// channels, so the local delivery count is unknown and reported as 0.
type NotificationPublisher struct {
	bus event.Bus
}

// NewNotificationPublisher creates a publisher on top of bus.
func NewNotificationPublisher(bus event.Bus) *NotificationPublisher {
	return &NotificationPublisher{bus: bus}
}

// Deliver publishes a notification.created event.
func (p *NotificationPublisher) Deliver(ctx context.Context, n *notification.Notification) (int, error) {
	ctx, correlationID := appcore.EnsureCorrelationID(ctx)

	if err := p.bus.Publish(ctx, notification.NewCreated(n, correlationID)); err != nil {
		return 0, fmt.Errorf("publish notification %d: %w", n.ID(), err)
	}
	return 0, nil
}
