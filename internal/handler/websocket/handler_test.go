package websocket_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lllypuk/pulseboard/internal/domain/notification"
	wshandler "github.com/lllypuk/pulseboard/internal/handler/websocket"
	"github.com/lllypuk/pulseboard/internal/infrastructure/auth"
	ws "github.com/lllypuk/pulseboard/internal/infrastructure/websocket"
	"github.com/lllypuk/pulseboard/internal/middleware"
)

const testSecret = "handler-test-secret"

type testServer struct {
	url      string
	registry *ws.Registry
}

func startServer(t *testing.T, opts ...wshandler.HandlerOption) *testServer {
	t.Helper()

	validator, err := auth.NewHMACValidator(auth.Config{Secret: testSecret})
	require.NoError(t, err)

	authConfig := middleware.DefaultAuthConfig()
	authConfig.Validator = validator
	authConfig.QueryParam = middleware.DefaultQueryParam
	authConfig.Optional = true

	registry := ws.NewRegistry()
	handler := wshandler.NewHandler(ws.NewLifecycle(registry), opts...)

	e := echo.New()
	handler.RegisterRoutes(e, middleware.Auth(authConfig))

	srv := httptest.NewServer(e)
	t.Cleanup(func() {
		registry.CloseAll()
		srv.Close()
	})

	return &testServer{
		url:      "ws" + strings.TrimPrefix(srv.URL, "http") + wshandler.Path,
		registry: registry,
	}
}

func dial(t *testing.T, url string, header http.Header) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func dialStatus(t *testing.T, url string, header http.Header) int {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	if conn != nil {
		_ = conn.Close()
	}
	require.NotNil(t, resp)
	_ = resp.Body.Close()
	return resp.StatusCode
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame map[string]any
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func issue(t *testing.T, userID string) string {
	t.Helper()
	token, err := auth.IssueToken(testSecret, notification.UserID(userID), auth.TokenOptions{})
	require.NoError(t, err)
	return token
}

func TestDefaultHandlerConfig(t *testing.T) {
	config := wshandler.DefaultHandlerConfig()

	assert.Empty(t, config.AllowedOrigins)
	assert.False(t, config.RequireToken)
	assert.NotNil(t, config.Logger)
	assert.Equal(t, ws.DefaultClientConfig(), config.ClientConfig)
}

func TestHandler_AnonymousChannelAuthenticates(t *testing.T) {
	srv := startServer(t)
	conn := dial(t, srv.url, nil)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "auth", "userId": 42}))

	welcome := readFrame(t, conn)
	assert.Equal(t, "notification", welcome["type"])
	payload, ok := welcome["notification"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, ws.WelcomeTitle, payload["title"])

	assert.Eventually(t, func() bool {
		return srv.registry.UserConnectionCount("42") == 1
	}, time.Second, 10*time.Millisecond)
}

func TestHandler_TokenPinsIdentity(t *testing.T) {
	srv := startServer(t)
	conn := dial(t, srv.url+"?token="+issue(t, "7"), nil)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "auth", "userId": 42}))
	rejected := readFrame(t, conn)
	assert.Equal(t, "error", rejected["type"])
	assert.Equal(t, "user does not match token", rejected["error"])
	assert.Zero(t, srv.registry.ChannelCount())

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "auth", "userId": "7"}))
	welcome := readFrame(t, conn)
	assert.Equal(t, "notification", welcome["type"])
	assert.Equal(t, 1, srv.registry.UserConnectionCount("7"))
}

func TestHandler_BearerHeader(t *testing.T) {
	srv := startServer(t)
	header := http.Header{}
	header.Set(echo.HeaderAuthorization, "Bearer "+issue(t, "9"))
	conn := dial(t, srv.url, header)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "auth", "userId": 9}))
	welcome := readFrame(t, conn)
	assert.Equal(t, "notification", welcome["type"])
}

func TestHandler_InvalidTokenRejected(t *testing.T) {
	srv := startServer(t)

	status := dialStatus(t, srv.url+"?token=not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestHandler_RequireToken(t *testing.T) {
	config := wshandler.DefaultHandlerConfig()
	config.RequireToken = true
	srv := startServer(t, wshandler.WithHandlerConfig(config))

	assert.Equal(t, http.StatusUnauthorized, dialStatus(t, srv.url, nil))

	conn := dial(t, srv.url+"?token="+issue(t, "5"), nil)
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "auth", "userId": 5}))
	assert.Equal(t, "notification", readFrame(t, conn)["type"])
}

func TestHandler_AllowedOrigins(t *testing.T) {
	config := wshandler.DefaultHandlerConfig()
	config.AllowedOrigins = []string{"https://app.example.com"}
	srv := startServer(t, wshandler.WithHandlerConfig(config))

	bad := http.Header{}
	bad.Set("Origin", "https://evil.example.com")
	assert.Equal(t, http.StatusForbidden, dialStatus(t, srv.url, bad))

	good := http.Header{}
	good.Set("Origin", "https://app.example.com")
	dial(t, srv.url, good)
}

func TestHandler_BaseContextCancelClosesChannels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv := startServer(t, wshandler.WithBaseContext(ctx))
	conn := dial(t, srv.url, nil)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "auth", "userId": 1}))
	readFrame(t, conn)
	require.Equal(t, 1, srv.registry.ChannelCount())

	cancel()

	assert.Eventually(t, func() bool {
		return srv.registry.ChannelCount() == 0
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}
