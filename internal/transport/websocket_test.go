package transport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testPayload struct {
	Level  float64 `json:"level"`
	Beat   bool    `json:"beat"`
	Energy float64 `json:"energy"`
}

func dialHub(t *testing.T, h *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(h.handleUpgrade))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/state"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.ClientCount() < n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, have %d", n, h.ClientCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestBroadcastReachesClient(t *testing.T) {
	h := NewHub("127.0.0.1:0", nil)
	conn := dialHub(t, h)
	waitForClients(t, h, 1)

	h.Broadcast(testPayload{Level: 0.42, Beat: true, Energy: 0.8})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var got testPayload
	require.NoError(t, json.Unmarshal(data, &got))
	assert.InDelta(t, 0.42, got.Level, 1e-9)
	assert.True(t, got.Beat)
}

func TestBroadcastDropsClosedClient(t *testing.T) {
	h := NewHub("127.0.0.1:0", nil)
	conn := dialHub(t, h)
	waitForClients(t, h, 1)

	conn.Close()

	// The next broadcasts notice the dead connection and unregister it.
	deadline := time.Now().Add(2 * time.Second)
	for h.ClientCount() > 0 {
		if time.Now().After(deadline) {
			t.Fatal("closed client was never dropped")
		}
		h.Broadcast(testPayload{})
		time.Sleep(5 * time.Millisecond)
	}
}

func TestBroadcastWithNoClients(t *testing.T) {
	h := NewHub("127.0.0.1:0", nil)
	// Must not block or panic.
	h.Broadcast(testPayload{Level: 1})
	assert.Zero(t, h.ClientCount())
}

func TestBroadcastUnencodablePayload(t *testing.T) {
	h := NewHub("127.0.0.1:0", nil)
	h.Broadcast(make(chan int)) // ignored with a warning
	assert.Zero(t, h.ClientCount())
}
