package websocket

import "time"

// Prune reasons reported to Metrics.
const (
	PruneReasonSendFailed = "send_failed"
	PruneReasonIdle       = "idle"
	PruneReasonShutdown   = "shutdown"
)

// Auth results reported to Metrics.
const (
	AuthResultSuccess   = "success"
	AuthResultMalformed = "malformed"
	AuthResultRejected  = "rejected"
	AuthResultDuplicate = "duplicate"
)

// Metrics receives transport-level measurements.
// Declared on the consumer side; the Prometheus implementation lives in
// the metrics package.
type Metrics interface {
	ConnectionOpened()
	ConnectionClosed()
	RegistrySize(channels, users int)
	DeliveryResult(delivered, failed int)
	ChannelPruned(reason string, count int)
	AuthAttempt(result string)
	ObserveDispatch(d time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) ConnectionOpened()             {}
func (nopMetrics) ConnectionClosed()             {}
func (nopMetrics) RegistrySize(int, int)         {}
func (nopMetrics) DeliveryResult(int, int)       {}
func (nopMetrics) ChannelPruned(string, int)     {}
func (nopMetrics) AuthAttempt(string)            {}
func (nopMetrics) ObserveDispatch(time.Duration) {}
