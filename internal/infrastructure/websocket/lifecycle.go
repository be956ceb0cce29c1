package websocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lllypuk/pulseboard/internal/domain/errs"
	"github.com/lllypuk/pulseboard/internal/domain/notification"
)

// Welcome frame content pushed right after authentication.
const (
	WelcomeTitle   = "Connected"
	WelcomeMessage = "You are now receiving real-time notifications"
)

const defaultResyncLimit = 50

// State is the position of a session in its lifecycle.
type State int

const (
	// StateUnauthenticated is the initial state: open, identity unknown.
	StateUnauthenticated State = iota
	// StateAuthenticated means the channel is registered under a user.
	StateAuthenticated
	// StateClosed is terminal.
	StateClosed
)

// String returns a readable state name.
func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Resyncer returns the notifications used to rebuild a client's view.
// Declared on the consumer side; the notification service implements it.
type Resyncer interface {
	Resync(ctx context.Context, userID notification.UserID, limit int) ([]*notification.Notification, int, error)
}

// Lifecycle creates sessions that share one registry.
type Lifecycle struct {
	registry    *Registry
	resyncer    Resyncer
	resyncLimit int
	metrics     Metrics
	logger      *slog.Logger
	now         func() time.Time
}

// LifecycleOption configures a Lifecycle.
type LifecycleOption func(*Lifecycle)

// WithResync enables sending a sync frame after authentication.
func WithResync(r Resyncer, limit int) LifecycleOption {
	return func(l *Lifecycle) {
		l.resyncer = r
		if limit > 0 {
			l.resyncLimit = limit
		}
	}
}

// WithLifecycleMetrics sets the metrics sink.
func WithLifecycleMetrics(m Metrics) LifecycleOption {
	return func(l *Lifecycle) {
		l.metrics = m
	}
}

// WithLifecycleLogger sets the logger.
func WithLifecycleLogger(logger *slog.Logger) LifecycleOption {
	return func(l *Lifecycle) {
		l.logger = logger
	}
}

// WithLifecycleClock overrides the clock used for the welcome frame.
func WithLifecycleClock(now func() time.Time) LifecycleOption {
	return func(l *Lifecycle) {
		l.now = now
	}
}

// NewLifecycle creates a Lifecycle bound to registry.
func NewLifecycle(registry *Registry, opts ...LifecycleOption) *Lifecycle {
	l := &Lifecycle{
		registry:    registry,
		resyncLimit: defaultResyncLimit,
		metrics:     nopMetrics{},
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// NewSession starts tracking ch. When expected is non-zero (the upgrade
// request carried a valid token) only that user may be announced.
func (l *Lifecycle) NewSession(ch Channel, expected notification.UserID) *Session {
	l.metrics.ConnectionOpened()
	return &Session{
		lc:       l,
		ch:       ch,
		expected: expected,
		logger:   l.logger.With(slog.String("channel_id", ch.ID())),
	}
}

// Session is the state machine of one channel:
// Unauthenticated -> Authenticated -> Closed, or Unauthenticated -> Closed.
type Session struct {
	lc       *Lifecycle
	ch       Channel
	expected notification.UserID
	logger   *slog.Logger

	mu     sync.Mutex
	state  State
	userID notification.UserID
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// UserID returns the authenticated user, or the zero id.
func (s *Session) UserID() notification.UserID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// HandleMessage advances the state machine with one inbound frame.
// The returned error is informational: the channel always stays open.
func (s *Session) HandleMessage(ctx context.Context, data []byte) error {
	msg, err := ParseClientMessage(data)
	if err != nil {
		s.logger.WarnContext(ctx, "malformed channel message", slog.String("error", err.Error()))
		if s.State() == StateUnauthenticated {
			s.lc.metrics.AuthAttempt(AuthResultMalformed)
		}
		return err
	}

	switch msg.Type {
	case MessageTypeAuth:
		return s.authenticate(ctx, msg.UserID)

	case MessageTypePing:
		if s.State() != StateAuthenticated {
			return s.ignore(ctx, msg.Type)
		}
		return s.ch.Send(EncodePong())

	default:
		return s.ignore(ctx, msg.Type)
	}
}

func (s *Session) ignore(ctx context.Context, msgType string) error {
	err := fmt.Errorf("%w: unexpected %q in state %s", errs.ErrMalformedMessage, msgType, s.State())
	s.logger.DebugContext(ctx, "ignored channel message", slog.String("error", err.Error()))
	return err
}

func (s *Session) authenticate(ctx context.Context, userID notification.UserID) error {
	s.mu.Lock()
	switch s.state {
	case StateClosed:
		s.mu.Unlock()
		return nil

	case StateAuthenticated:
		current := s.userID
		s.mu.Unlock()
		if current == userID {
			s.lc.metrics.AuthAttempt(AuthResultDuplicate)
			s.logger.DebugContext(ctx, "duplicate announcement ignored", slog.String("user_id", userID.String()))
			return nil
		}
		return s.reject(ctx, userID, fmt.Errorf("%w: channel already bound to another user", errs.ErrForbidden))

	case StateUnauthenticated:
		if !s.expected.IsZero() && s.expected != userID {
			s.mu.Unlock()
			return s.reject(ctx, userID, fmt.Errorf("%w: announced user does not match token", errs.ErrUnauthorized))
		}
	}

	// registered under the session lock so Close cannot slip in between
	s.lc.registry.Register(userID, s.ch)
	s.state = StateAuthenticated
	s.userID = userID
	s.mu.Unlock()

	s.lc.metrics.AuthAttempt(AuthResultSuccess)
	s.logger.InfoContext(ctx, "channel authenticated", slog.String("user_id", userID.String()))

	s.sendWelcome(ctx, userID)
	s.resync(ctx, userID)
	return nil
}

func (s *Session) reject(ctx context.Context, userID notification.UserID, err error) error {
	s.lc.metrics.AuthAttempt(AuthResultRejected)
	s.logger.WarnContext(ctx, "announcement rejected",
		slog.String("user_id", userID.String()),
		slog.String("error", err.Error()),
	)
	_ = s.ch.Send(EncodeError(errorText(err)))
	return err
}

func (s *Session) sendWelcome(ctx context.Context, userID notification.UserID) {
	now := s.lc.now().UTC()
	welcome := notification.Reconstruct(
		now.UnixMilli(),
		userID,
		WelcomeTitle,
		WelcomeMessage,
		notification.KindInfo,
		now,
		false,
	)

	data, err := EncodeNotification(welcome)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to encode welcome", slog.String("error", err.Error()))
		return
	}
	if err = s.ch.Send(data); err != nil {
		s.logger.DebugContext(ctx, "welcome not sent", slog.String("error", err.Error()))
	}
}

func (s *Session) resync(ctx context.Context, userID notification.UserID) {
	if s.lc.resyncer == nil {
		return
	}

	list, unread, err := s.lc.resyncer.Resync(ctx, userID, s.lc.resyncLimit)
	if err != nil {
		s.logger.WarnContext(ctx, "resync failed", slog.String("error", err.Error()))
		return
	}

	data, err := EncodeSync(list, unread)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to encode sync frame", slog.String("error", err.Error()))
		return
	}
	if err = s.ch.Send(data); err != nil {
		s.logger.DebugContext(ctx, "sync frame not sent", slog.String("error", err.Error()))
	}
}

// Close moves the session to StateClosed and unregisters the channel if it
// had authenticated. Safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	prev := s.state
	userID := s.userID
	s.state = StateClosed
	s.mu.Unlock()

	if prev == StateClosed {
		return
	}
	if prev == StateAuthenticated {
		s.lc.registry.Unregister(userID, s.ch)
		s.logger.Info("channel closed", slog.String("user_id", userID.String()))
	}
	s.lc.metrics.ConnectionClosed()
}

func errorText(err error) string {
	switch {
	case errors.Is(err, errs.ErrUnauthorized):
		return "user does not match token"
	case errors.Is(err, errs.ErrForbidden):
		return "already authenticated as a different user"
	default:
		return "request rejected"
	}
}
