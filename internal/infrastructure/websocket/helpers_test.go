package websocket_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	ws "github.com/lllypuk/pulseboard/internal/infrastructure/websocket"
)

// fakeChannel records frames instead of writing to a socket.
type fakeChannel struct {
	id string

	mu         sync.Mutex
	frames     [][]byte
	closed     bool
	failSend   bool
	lastActive time.Time
}

func newFakeChannel(id string) *fakeChannel {
	return &fakeChannel{id: id, lastActive: time.Now()}
}

func (c *fakeChannel) ID() string { return c.id }

func (c *fakeChannel) Send(message []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ws.ErrClientClosed
	}
	if c.failSend {
		return ws.ErrSendBufferFull
	}
	c.frames = append(c.frames, message)
	return nil
}

func (c *fakeChannel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeChannel) LastActive() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActive
}

func (c *fakeChannel) setLastActive(at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastActive = at
}

func (c *fakeChannel) setFailSend(fail bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failSend = fail
}

func (c *fakeChannel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// decodedFrames returns every frame as a generic JSON object.
func (c *fakeChannel) decodedFrames(t *testing.T) []map[string]any {
	t.Helper()

	c.mu.Lock()
	defer c.mu.Unlock()

	result := make([]map[string]any, 0, len(c.frames))
	for _, f := range c.frames {
		var m map[string]any
		require.NoError(t, json.Unmarshal(f, &m))
		result = append(result, m)
	}
	return result
}

func frameTypes(frames []map[string]any) []string {
	types := make([]string, 0, len(frames))
	for _, f := range frames {
		types = append(types, f["type"].(string))
	}
	return types
}

// recordingMetrics counts calls made through the Metrics interface.
type recordingMetrics struct {
	mu        sync.Mutex
	opened    int
	closed    int
	channels  int
	users     int
	delivered int
	failed    int
	pruned    map[string]int
	auth      map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{pruned: map[string]int{}, auth: map[string]int{}}
}

func (m *recordingMetrics) ConnectionOpened() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opened++
}

func (m *recordingMetrics) ConnectionClosed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
}

func (m *recordingMetrics) RegistrySize(channels, users int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels, m.users = channels, users
}

func (m *recordingMetrics) DeliveryResult(delivered, failed int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delivered += delivered
	m.failed += failed
}

func (m *recordingMetrics) ChannelPruned(reason string, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruned[reason] += count
}

func (m *recordingMetrics) AuthAttempt(result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.auth[result]++
}

func (m *recordingMetrics) ObserveDispatch(time.Duration) {}

func (m *recordingMetrics) authCount(result string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.auth[result]
}

// createWSConnPair returns the server and client ends of a real connection.
func createWSConnPair(t *testing.T) (*websocket.Conn, *websocket.Conn) {
	t.Helper()

	upgrader := websocket.Upgrader{
		CheckOrigin: func(_ *http.Request) bool { return true },
	}

	serverChan := make(chan *websocket.Conn, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		serverChan <- conn
	}))
	t.Cleanup(server.Close)

	wsURL := "ws" + server.URL[4:]
	clientConn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = clientConn.Close() })

	select {
	case serverConn := <-serverChan:
		t.Cleanup(func() { _ = serverConn.Close() })
		return serverConn, clientConn
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for server connection")
		return nil, nil
	}
}

// readJSON reads one frame from conn within a second.
func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}
