package eventbus_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lllypuk/pulseboard/internal/domain/event"
	"github.com/lllypuk/pulseboard/internal/domain/notification"
	"github.com/lllypuk/pulseboard/internal/infrastructure/eventbus"
	"github.com/lllypuk/pulseboard/tests/testutil"
)

// testEvent is a concrete event type for testing.
type testEvent struct {
	Type    string         `json:"-"`
	ID      string         `json:"-"`
	At      time.Time      `json:"-"`
	Meta    event.Metadata `json:"-"`
	Message string         `json:"message"`
}

func (e testEvent) EventType() string        { return e.Type }
func (e testEvent) AggregateID() string      { return e.ID }
func (e testEvent) OccurredAt() time.Time    { return e.At }
func (e testEvent) Metadata() event.Metadata { return e.Meta }

func newTestEvent(eventType, aggregateID, message string) testEvent {
	return testEvent{
		Type:    eventType,
		ID:      aggregateID,
		At:      time.Now().UTC(),
		Meta:    event.NewMetadata("user-1", "correlation-1"),
		Message: message,
	}
}

// startBus runs the bus in the background and waits for the subscription.
func startBus(ctx context.Context, t *testing.T, bus *eventbus.RedisEventBus) {
	t.Helper()

	go func() {
		_ = bus.Start(ctx)
	}()

	testutil.Eventually(t, 2*time.Second, bus.IsSubscribed)
	t.Cleanup(func() { _ = bus.Shutdown() })
}

func TestNewRedisEventBus(t *testing.T) {
	client := testutil.SetupTestRedis(t)

	t.Run("creates with defaults", func(t *testing.T) {
		bus := eventbus.NewRedisEventBus(client)

		assert.NotNil(t, bus)
		assert.False(t, bus.IsRunning())
		assert.False(t, bus.IsSubscribed())
		assert.Equal(t, 0, bus.HandlerCount("any.event"))
		assert.NotEmpty(t, bus.InstanceID())
		assert.NotEqual(t, bus.InstanceID(), eventbus.NewRedisEventBus(client).InstanceID())
	})

	t.Run("applies options", func(t *testing.T) {
		logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

		bus := eventbus.NewRedisEventBus(client,
			eventbus.WithLogger(logger),
			eventbus.WithChannelPrefix("test-events:"),
		)

		assert.NotNil(t, bus)
	})
}

func TestRedisEventBus_Subscribe(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	bus := eventbus.NewRedisEventBus(client)
	noop := func(_ context.Context, _ event.DomainEvent) error { return nil }

	t.Run("registers handler successfully", func(t *testing.T) {
		require.NoError(t, bus.Subscribe("user.created", noop))
		assert.Equal(t, 1, bus.HandlerCount("user.created"))
	})

	t.Run("allows multiple handlers for same event type", func(t *testing.T) {
		newBus := eventbus.NewRedisEventBus(client)

		require.NoError(t, newBus.Subscribe("order.created", noop))
		require.NoError(t, newBus.Subscribe("order.created", noop))

		assert.Equal(t, 2, newBus.HandlerCount("order.created"))
	})

	t.Run("returns error for empty event type", func(t *testing.T) {
		require.ErrorIs(t, bus.Subscribe("", noop), eventbus.ErrEmptyEventType)
	})

	t.Run("returns error for nil handler", func(t *testing.T) {
		require.ErrorIs(t, bus.Subscribe("user.created", nil), eventbus.ErrNilHandler)
	})
}

func TestRedisEventBus_Publish(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	bus := eventbus.NewRedisEventBus(client)
	ctx := context.Background()

	t.Run("publishes event successfully", func(t *testing.T) {
		require.NoError(t, bus.Publish(ctx, newTestEvent("user.created", "user-123", "Hello World")))
	})

	t.Run("returns error for nil event", func(t *testing.T) {
		require.ErrorIs(t, bus.Publish(ctx, nil), eventbus.ErrNilEvent)
	})
}

func TestRedisEventBus_PublishAndReceive(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	t.Run("handler receives published event with metadata and payload", func(t *testing.T) {
		bus := eventbus.NewRedisEventBus(client,
			eventbus.WithChannelPrefix("recv:"),
			eventbus.WithInstanceID("node-a"),
		)

		received := make(chan event.DomainEvent, 1)
		require.NoError(t, bus.Subscribe("user.created", func(_ context.Context, e event.DomainEvent) error {
			received <- e
			return nil
		}))

		startBus(ctx, t, bus)

		original := newTestEvent("user.created", "user-123", "Hello World")
		require.NoError(t, bus.Publish(ctx, original))

		select {
		case got := <-received:
			assert.Equal(t, "user.created", got.EventType())
			assert.Equal(t, "user-123", got.AggregateID())
			assert.Equal(t, original.Metadata().UserID, got.Metadata().UserID)
			assert.Equal(t, original.Metadata().CorrelationID, got.Metadata().CorrelationID)
			assert.Equal(t, "node-a", got.Metadata().Origin)

			var parsed map[string]any
			require.NoError(t, event.Decode(got, &parsed))
			assert.Equal(t, "Hello World", parsed["message"])
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for event")
		}
	})

	t.Run("multiple handlers receive same event", func(t *testing.T) {
		bus := eventbus.NewRedisEventBus(client, eventbus.WithChannelPrefix("multi:"))

		var count atomic.Int32
		var wg sync.WaitGroup
		wg.Add(3)

		for range 3 {
			require.NoError(t, bus.Subscribe("order.created", func(_ context.Context, _ event.DomainEvent) error {
				count.Add(1)
				wg.Done()
				return nil
			}))
		}

		startBus(ctx, t, bus)
		require.NoError(t, bus.Publish(ctx, newTestEvent("order.created", "order-456", "New order")))

		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			assert.Equal(t, int32(3), count.Load())
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for handlers")
		}
	})

	t.Run("handler error does not stop later events", func(t *testing.T) {
		bus := eventbus.NewRedisEventBus(client, eventbus.WithChannelPrefix("errs:"))

		var calls atomic.Int32
		require.NoError(t, bus.Subscribe("flaky.event", func(_ context.Context, _ event.DomainEvent) error {
			calls.Add(1)
			return errors.New("boom")
		}))

		startBus(ctx, t, bus)
		require.NoError(t, bus.Publish(ctx, newTestEvent("flaky.event", "1", "a")))
		require.NoError(t, bus.Publish(ctx, newTestEvent("flaky.event", "2", "b")))

		testutil.Eventually(t, 2*time.Second, func() bool { return calls.Load() == 2 })
	})
}

func TestRedisEventBus_PreservesPublishOrder(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	bus := eventbus.NewRedisEventBus(client, eventbus.WithChannelPrefix("order:"))

	const total = 50
	var mu sync.Mutex
	var ids []int64

	require.NoError(t, bus.Subscribe(notification.EventTypeCreated, func(_ context.Context, e event.DomainEvent) error {
		var created notification.Created
		if err := event.Decode(e, &created); err != nil {
			return err
		}
		// slow handler must not let later messages overtake
		time.Sleep(time.Millisecond)
		mu.Lock()
		ids = append(ids, created.ID)
		mu.Unlock()
		return nil
	}))

	startBus(ctx, t, bus)

	for i := int64(1); i <= total; i++ {
		n := notification.Reconstruct(i, "5", "t", "m", notification.KindInfo, time.Now(), false)
		require.NoError(t, bus.Publish(ctx, notification.NewCreated(n, "")))
	}

	testutil.Eventually(t, 3*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(ids) == total
	})

	mu.Lock()
	defer mu.Unlock()
	for i, id := range ids {
		assert.Equal(t, int64(i+1), id)
	}
}

func TestRedisEventBus_GracefulShutdown(t *testing.T) {
	client := testutil.SetupTestRedis(t)

	t.Run("waits for the running handler", func(t *testing.T) {
		bus := eventbus.NewRedisEventBus(client, eventbus.WithChannelPrefix("shutdown:"))
		ctx := context.Background()

		handlerStarted := make(chan struct{})
		handlerCompleted := atomic.Bool{}

		require.NoError(t, bus.Subscribe("shutdown.test", func(_ context.Context, _ event.DomainEvent) error {
			close(handlerStarted)
			time.Sleep(200 * time.Millisecond)
			handlerCompleted.Store(true)
			return nil
		}))

		startBus(ctx, t, bus)
		require.NoError(t, bus.Publish(ctx, newTestEvent("shutdown.test", "agg-shutdown", "shutdown test")))

		select {
		case <-handlerStarted:
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for handler to start")
		}

		require.NoError(t, bus.Shutdown())
		assert.True(t, handlerCompleted.Load(), "handler should have completed before shutdown returned")
	})

	t.Run("shutdown is idempotent", func(t *testing.T) {
		bus := eventbus.NewRedisEventBus(client)

		require.NoError(t, bus.Subscribe("shutdown.idem", func(_ context.Context, _ event.DomainEvent) error {
			return nil
		}))

		startBus(context.Background(), t, bus)

		require.NoError(t, bus.Shutdown())
		require.NoError(t, bus.Shutdown())
		assert.False(t, bus.IsRunning())
	})

	t.Run("cannot start twice", func(t *testing.T) {
		bus := eventbus.NewRedisEventBus(client)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		require.NoError(t, bus.Subscribe("start.twice", func(_ context.Context, _ event.DomainEvent) error {
			return nil
		}))

		startBus(ctx, t, bus)

		require.ErrorIs(t, bus.Start(ctx), eventbus.ErrAlreadyRunning)
	})
}

func TestRedisEventBus_ChannelPrefix(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	bus1 := eventbus.NewRedisEventBus(client, eventbus.WithChannelPrefix("bus1:"))
	bus2 := eventbus.NewRedisEventBus(client, eventbus.WithChannelPrefix("bus2:"))

	received1 := atomic.Int32{}
	received2 := atomic.Int32{}

	require.NoError(t, bus1.Subscribe("test.event", func(_ context.Context, _ event.DomainEvent) error {
		received1.Add(1)
		return nil
	}))
	require.NoError(t, bus2.Subscribe("test.event", func(_ context.Context, _ event.DomainEvent) error {
		received2.Add(1)
		return nil
	}))

	startBus(ctx, t, bus1)
	startBus(ctx, t, bus2)

	// Publish only to bus1's channel
	require.NoError(t, bus1.Publish(ctx, newTestEvent("test.event", "agg-1", "message")))

	testutil.Eventually(t, 2*time.Second, func() bool { return received1.Load() == 1 })
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(0), received2.Load())
}
