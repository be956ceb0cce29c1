package httpserver_test

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lllypuk/pulseboard/internal/infrastructure/httpserver"
)

func TestDefaultServerConfig(t *testing.T) {
	config := httpserver.DefaultServerConfig()

	assert.Equal(t, httpserver.DefaultHost, config.Host)
	assert.Equal(t, httpserver.DefaultPort, config.Port)
	assert.Equal(t, httpserver.DefaultReadTimeout, config.ReadTimeout)
	assert.Equal(t, httpserver.DefaultWriteTimeout, config.WriteTimeout)
	assert.Equal(t, httpserver.DefaultShutdownTimeout, config.ShutdownTimeout)
}

func TestNewServer(t *testing.T) {
	config := httpserver.ServerConfig{
		Host:         "127.0.0.1",
		Port:         9090,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 7 * time.Second,
	}
	server := httpserver.NewServer(config, nil)

	assert.Equal(t, "127.0.0.1:9090", server.Address())
	assert.Equal(t, 5*time.Second, server.Echo().Server.ReadTimeout)
	assert.Equal(t, 7*time.Second, server.Echo().Server.WriteTimeout)
	assert.True(t, server.Echo().HideBanner)
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func TestServer_RunStopsOnCancel(t *testing.T) {
	config := httpserver.DefaultServerConfig()
	config.Host = "127.0.0.1"
	config.Port = freePort(t)
	server := httpserver.NewServer(config, nil)
	server.Echo().GET("/ping", func(c echo.Context) error {
		return c.String(http.StatusOK, "pong")
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Run(ctx) }()

	url := "http://" + server.Address() + "/ping"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url) //nolint:noctx // test helper
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServer_ShutdownWithoutStart(t *testing.T) {
	server := httpserver.NewServer(httpserver.DefaultServerConfig(), nil)
	require.NoError(t, server.Shutdown(context.Background()))
}
