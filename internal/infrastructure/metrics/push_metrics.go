package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pulseboard"

// PushMetrics contains Prometheus metrics for the live delivery path.
// It satisfies the websocket Metrics interface and the notification
// creation observer.
type PushMetrics struct {
	ConnectionsOpened    prometheus.Counter
	ConnectionsClosed    prometheus.Counter
	RegisteredChannels   prometheus.Gauge
	RegisteredUsers      prometheus.Gauge
	Deliveries           *prometheus.CounterVec
	ChannelsPruned       *prometheus.CounterVec
	AuthAttempts         *prometheus.CounterVec
	DispatchDuration     prometheus.Histogram
	NotificationsCreated *prometheus.CounterVec
}

// NewPushMetrics creates and registers push metrics with the given registerer.
func NewPushMetrics(registerer prometheus.Registerer) *PushMetrics {
	m := &PushMetrics{
		ConnectionsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channel_connections_opened_total",
			Help:      "Total number of accepted live channels",
		}),
		ConnectionsClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channel_connections_closed_total",
			Help:      "Total number of closed live channels",
		}),
		RegisteredChannels: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registry_channels",
			Help:      "Authenticated channels currently held by this instance",
		}),
		RegisteredUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registry_users",
			Help:      "Users with at least one live channel on this instance",
		}),
		Deliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "deliveries_total",
				Help:      "Per-channel delivery attempts",
			},
			[]string{"status"}, // delivered/failed
		),
		ChannelsPruned: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "channels_pruned_total",
				Help:      "Channels removed from the registry without a client close",
			},
			[]string{"reason"},
		),
		AuthAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_attempts_total",
				Help:      "Identity announcements by outcome",
			},
			[]string{"result"},
		),
		DispatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Time to fan one notification out to local channels",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),
		NotificationsCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_created_total",
				Help:      "Notifications stored, by kind",
			},
			[]string{"kind"},
		),
	}

	registerer.MustRegister(
		m.ConnectionsOpened,
		m.ConnectionsClosed,
		m.RegisteredChannels,
		m.RegisteredUsers,
		m.Deliveries,
		m.ChannelsPruned,
		m.AuthAttempts,
		m.DispatchDuration,
		m.NotificationsCreated,
	)

	return m
}

// ConnectionOpened counts an accepted channel.
func (m *PushMetrics) ConnectionOpened() { m.ConnectionsOpened.Inc() }

// ConnectionClosed counts a closed channel.
func (m *PushMetrics) ConnectionClosed() { m.ConnectionsClosed.Inc() }

// RegistrySize records the registry size after a change.
func (m *PushMetrics) RegistrySize(channels, users int) {
	m.RegisteredChannels.Set(float64(channels))
	m.RegisteredUsers.Set(float64(users))
}

// DeliveryResult adds the outcome of one fanout.
func (m *PushMetrics) DeliveryResult(delivered, failed int) {
	if delivered > 0 {
		m.Deliveries.WithLabelValues("delivered").Add(float64(delivered))
	}
	if failed > 0 {
		m.Deliveries.WithLabelValues("failed").Add(float64(failed))
	}
}

// ChannelPruned counts channels removed for reason.
func (m *PushMetrics) ChannelPruned(reason string, count int) {
	if count <= 0 {
		return
	}
	m.ChannelsPruned.WithLabelValues(reason).Add(float64(count))
}

// AuthAttempt counts an announcement outcome.
func (m *PushMetrics) AuthAttempt(result string) {
	m.AuthAttempts.WithLabelValues(result).Inc()
}

// ObserveDispatch records fanout latency.
func (m *PushMetrics) ObserveDispatch(d time.Duration) {
	m.DispatchDuration.Observe(d.Seconds())
}

// NotificationCreated counts a stored notification.
func (m *PushMetrics) NotificationCreated(kind string) {
	m.NotificationsCreated.WithLabelValues(kind).Inc()
}
