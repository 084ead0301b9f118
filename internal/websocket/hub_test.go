package websocket

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todocx/internal/shared/testutil"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var ev Event
	require.NoError(t, json.Unmarshal(data, &ev))
	return ev
}

func TestHub_BroadcastReachesClients(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	hub := NewHub(logger)
	hub.Start()
	defer hub.Stop()

	srv := httptest.NewServer(Handler(hub, logger))
	defer srv.Close()

	a, b := dial(t, srv), dial(t, srv)
	assert.Equal(t, TypeConnection, readEvent(t, a).Type)
	assert.Equal(t, TypeConnection, readEvent(t, b).Type)
	assert.Eventually(t, func() bool { return hub.ClientCount() == 2 }, 2*time.Second, 10*time.Millisecond)

	hub.Broadcast("quota.updated", map[string]string{"remaining_quota": "9.2"})

	for _, conn := range []*websocket.Conn{a, b} {
		ev := readEvent(t, conn)
		assert.Equal(t, "quota.updated", ev.Type)
		assert.Equal(t, map[string]interface{}{"remaining_quota": "9.2"}, ev.Data)
		assert.NotEmpty(t, ev.Timestamp)
	}
}

func TestHub_ClientDisconnectUnregisters(t *testing.T) {
	hub := NewHub(nil)
	hub.Start()
	defer hub.Stop()

	srv := httptest.NewServer(Handler(hub, nil))
	defer srv.Close()

	conn := dial(t, srv)
	readEvent(t, conn)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(1), hub.Stats()["total_connections"])
}

func TestHub_BroadcastNeverBlocks(t *testing.T) {
	hub := NewHub(nil) // not started, nothing drains the queue

	done := make(chan struct{})
	go func() {
		for i := 0; i < broadcastBuffer+10; i++ {
			hub.Broadcast("conversion.started", i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Broadcast blocked on a full queue")
	}
	assert.Equal(t, int64(10), hub.Stats()["events_dropped"])
}

func TestHub_StopWaitsForLoop(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	hub := NewHub(logger)
	hub.Start()
	hub.Broadcast("quota.updated", map[string]string{"remaining_quota": "9.2"})

	hub.Stop()
	assert.True(t, logs.ContainsMessage("Hub shutting down"), "loop has exited when Stop returns")

	hub.Stop()
	hub.Broadcast("quota.updated", nil)
	assert.Equal(t, 0, hub.ClientCount())
}
