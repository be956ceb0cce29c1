package websocket

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Default client configuration constants.
const (
	defaultReadBufferSize  = 1024
	defaultWriteBufferSize = 1024
	defaultPingInterval    = 30 * time.Second
	defaultPongWait        = 60 * time.Second
	defaultWriteWait       = 10 * time.Second
	defaultMaxMessageSize  = 4096
	defaultSendBufferSize  = 64
)

// Send failures. Both count as a delivery failure for the dispatcher.
var (
	ErrClientClosed   = errors.New("websocket client closed")
	ErrSendBufferFull = errors.New("websocket send buffer full")
)

// ClientConfig holds configuration for WebSocket clients.
type ClientConfig struct {
	// ReadBufferSize is the size of the read buffer.
	ReadBufferSize int

	// WriteBufferSize is the size of the write buffer.
	WriteBufferSize int

	// PingInterval is the interval for sending ping messages.
	// Must be shorter than PongWait.
	PingInterval time.Duration

	// PongWait is the maximum time to wait for a pong response.
	PongWait time.Duration

	// WriteWait is the maximum time to wait for a write operation.
	WriteWait time.Duration

	// MaxMessageSize is the maximum allowed inbound message size.
	MaxMessageSize int64

	// SendBufferSize bounds the outbound queue.
	SendBufferSize int
}

// DefaultClientConfig returns sensible default configuration.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		ReadBufferSize:  defaultReadBufferSize,
		WriteBufferSize: defaultWriteBufferSize,
		PingInterval:    defaultPingInterval,
		PongWait:        defaultPongWait,
		WriteWait:       defaultWriteWait,
		MaxMessageSize:  defaultMaxMessageSize,
		SendBufferSize:  defaultSendBufferSize,
	}
}

// MessageHandler consumes inbound frames of one connection.
// Session implements it.
type MessageHandler interface {
	HandleMessage(ctx context.Context, data []byte) error
	Close()
}

// Client is a single WebSocket connection. It implements Channel.
type Client struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	config ClientConfig
	logger *slog.Logger

	lastActive atomic.Int64

	// closed guards send; Send holds the read lock while enqueueing
	closed   bool
	closedMu sync.RWMutex
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithClientConfig sets the client configuration.
func WithClientConfig(config ClientConfig) ClientOption {
	return func(c *Client) {
		c.config = config
	}
}

// WithClientLogger sets the logger for the client.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient wraps an upgraded connection.
func NewClient(conn *websocket.Conn, opts ...ClientOption) *Client {
	c := &Client{
		id:     uuid.NewString(),
		conn:   conn,
		config: DefaultClientConfig(),
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.config.SendBufferSize <= 0 {
		c.config.SendBufferSize = defaultSendBufferSize
	}
	c.send = make(chan []byte, c.config.SendBufferSize)
	c.logger = c.logger.With(slog.String("channel_id", c.id))
	c.touch()

	return c
}

// ID returns the connection id.
func (c *Client) ID() string {
	return c.id
}

// LastActive returns the last time a frame or pong arrived.
func (c *Client) LastActive() time.Time {
	return time.Unix(0, c.lastActive.Load())
}

// IsClosed returns whether the client connection has been closed.
func (c *Client) IsClosed() bool {
	c.closedMu.RLock()
	defer c.closedMu.RUnlock()
	return c.closed
}

func (c *Client) touch() {
	c.lastActive.Store(time.Now().UnixNano())
}

// ReadPump reads frames and feeds them to handler until the connection fails
// or ctx is cancelled. It always closes the handler and the client on return.
func (c *Client) ReadPump(ctx context.Context, handler MessageHandler) {
	defer func() {
		handler.Close()
		c.Close()
	}()

	stop := context.AfterFunc(ctx, c.Close)
	defer stop()

	c.conn.SetReadLimit(c.config.MaxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait)); err != nil {
		c.logger.Error("failed to set read deadline", slog.String("error", err.Error()))
		return
	}

	c.conn.SetPongHandler(func(string) error {
		c.touch()
		return c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read error", slog.String("error", err.Error()))
			}
			return
		}

		c.touch()
		if deadlineErr := c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait)); deadlineErr != nil {
			return
		}

		// handler errors are logged by the handler and never end the connection
		_ = handler.HandleMessage(ctx, message)
	}
}

// WritePump drains the send queue and keeps the connection alive with pings.
// It owns closing the connection and must run for every client.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait)); err != nil {
				return
			}

			if !ok {
				// Close drained the queue
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Warn("websocket write error", slog.String("error", err.Error()))
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait)); err != nil {
				return
			}

			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Send queues a frame. It never blocks: a closed client or a full queue is
// reported as an error.
func (c *Client) Send(message []byte) error {
	c.closedMu.RLock()
	defer c.closedMu.RUnlock()

	if c.closed {
		return ErrClientClosed
	}

	select {
	case c.send <- message:
		return nil
	default:
		c.logger.Warn("client send buffer full")
		return ErrSendBufferFull
	}
}

// Close rejects further sends and lets the write pump flush the queue, send a
// close frame and close the connection. It is idempotent.
func (c *Client) Close() {
	c.closedMu.Lock()
	defer c.closedMu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)

	c.logger.Debug("client connection closed")
}
