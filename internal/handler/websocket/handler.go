// Package websocket provides the HTTP upgrade handler for live notification channels.
package websocket

import (
	"context"
	"log/slog"
	"net/http"
	"slices"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/lllypuk/pulseboard/internal/infrastructure/httpserver"
	ws "github.com/lllypuk/pulseboard/internal/infrastructure/websocket"
	"github.com/lllypuk/pulseboard/internal/middleware"
)

// Path is the upgrade route.
const Path = "/ws"

// HandlerConfig holds configuration for the WebSocket handler.
type HandlerConfig struct {
	// AllowedOrigins restricts the Origin header. Empty allows all origins.
	AllowedOrigins []string

	// RequireToken rejects upgrades that carry no bearer token.
	// Without it anonymous channels may authenticate with an auth frame.
	RequireToken bool

	// Logger is the structured logger for the handler.
	Logger *slog.Logger

	// ClientConfig is the configuration for WebSocket clients.
	ClientConfig ws.ClientConfig
}

// DefaultHandlerConfig returns a default configuration.
func DefaultHandlerConfig() HandlerConfig {
	return HandlerConfig{
		Logger:       slog.Default(),
		ClientConfig: ws.DefaultClientConfig(),
	}
}

// Handler upgrades HTTP requests into notification channels.
type Handler struct {
	lifecycle *ws.Lifecycle
	upgrader  websocket.Upgrader
	config    HandlerConfig
	logger    *slog.Logger

	// baseCtx outlives the upgrade request and is cancelled on shutdown
	baseCtx context.Context
}

// HandlerOption configures the Handler.
type HandlerOption func(*Handler)

// WithHandlerConfig sets the handler configuration.
func WithHandlerConfig(config HandlerConfig) HandlerOption {
	return func(h *Handler) {
		h.config = config
		if config.Logger != nil {
			h.logger = config.Logger
		}
	}
}

// WithBaseContext sets the context that bounds every connection.
func WithBaseContext(ctx context.Context) HandlerOption {
	return func(h *Handler) {
		h.baseCtx = ctx
	}
}

// NewHandler creates a new WebSocket handler.
func NewHandler(lifecycle *ws.Lifecycle, opts ...HandlerOption) *Handler {
	h := &Handler{
		lifecycle: lifecycle,
		config:    DefaultHandlerConfig(),
		logger:    slog.Default(),
		baseCtx:   context.Background(),
	}

	for _, opt := range opts {
		opt(h)
	}

	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  h.config.ClientConfig.ReadBufferSize,
		WriteBufferSize: h.config.ClientConfig.WriteBufferSize,
		CheckOrigin:     h.checkOrigin,
	}

	return h
}

// HandleWebSocket handles GET /ws.
// A token validated by the auth middleware pins the identity the channel may
// announce. The channel stays unauthenticated until an auth frame arrives.
func (h *Handler) HandleWebSocket(c echo.Context) error {
	expected := middleware.GetUserID(c)
	if expected.IsZero() && h.config.RequireToken {
		h.logger.Warn("websocket connection rejected: authentication required",
			slog.String("remote_ip", c.RealIP()),
		)
		return httpserver.RespondErrorWithCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed",
			slog.String("remote_ip", c.RealIP()),
			slog.String("error", err.Error()),
		)
		return nil // Upgrade already sent an error response
	}

	client := ws.NewClient(conn,
		ws.WithClientConfig(h.config.ClientConfig),
		ws.WithClientLogger(h.logger),
	)
	session := h.lifecycle.NewSession(client, expected)

	h.logger.Info("websocket connection established",
		slog.String("channel_id", client.ID()),
		slog.String("expected_user_id", expected.String()),
		slog.String("remote_ip", c.RealIP()),
	)

	go client.WritePump()
	go client.ReadPump(h.baseCtx, session)

	return nil
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.config.AllowedOrigins) == 0 || slices.Contains(h.config.AllowedOrigins, "*") {
		return true
	}
	return slices.Contains(h.config.AllowedOrigins, origin)
}

// RegisterRoutes registers the upgrade route. The auth middleware is applied
// to this route only, in optional mode with the token query parameter.
func (h *Handler) RegisterRoutes(e *echo.Echo, authMiddleware echo.MiddlewareFunc) {
	if authMiddleware != nil {
		e.GET(Path, h.HandleWebSocket, authMiddleware)
		return
	}
	e.GET(Path, h.HandleWebSocket)
}
