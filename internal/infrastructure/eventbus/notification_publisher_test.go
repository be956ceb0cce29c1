package eventbus_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lllypuk/pulseboard/internal/application/appcore"
	"github.com/lllypuk/pulseboard/internal/domain/event"
	"github.com/lllypuk/pulseboard/internal/domain/notification"
	"github.com/lllypuk/pulseboard/internal/infrastructure/eventbus"
)

type recordingBus struct {
	published []event.DomainEvent
	err       error
}

func (b *recordingBus) Publish(_ context.Context, evt event.DomainEvent) error {
	if b.err != nil {
		return b.err
	}
	b.published = append(b.published, evt)
	return nil
}

func TestNotificationPublisher_Deliver(t *testing.T) {
	bus := &recordingBus{}
	publisher := eventbus.NewNotificationPublisher(bus)

	n := notification.Reconstruct(7, "42", "Title", "Body", notification.KindWarning, time.Now().UTC(), false)
	ctx := appcore.WithCorrelationID(context.Background(), "req-1")

	delivered, err := publisher.Deliver(ctx, n)
	require.NoError(t, err)
	assert.Zero(t, delivered)

	require.Len(t, bus.published, 1)
	created, ok := bus.published[0].(notification.Created)
	require.True(t, ok)
	assert.Equal(t, int64(7), created.ID)
	assert.Equal(t, notification.UserID("42"), created.UserID)
	assert.Equal(t, "req-1", created.CorrelationID)
}

func TestNotificationPublisher_PublishError(t *testing.T) {
	busErr := errors.New("redis down")
	publisher := eventbus.NewNotificationPublisher(&recordingBus{err: busErr})

	n := notification.Reconstruct(1, "42", "Title", "Body", notification.KindInfo, time.Now(), false)

	_, err := publisher.Deliver(context.Background(), n)
	require.ErrorIs(t, err, busErr)
}
