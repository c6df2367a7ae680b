package ws

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
	"github.com/veedran/reelsmith/internal/broadcast"
	"github.com/veedran/reelsmith/internal/jobs"
)

func dialTestServer(t *testing.T, handler *Handler) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) broadcast.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var event broadcast.Event
	require.NoError(t, json.Unmarshal(payload, &event))
	return event
}

func TestHandler_SendsSnapshotOnConnect(t *testing.T) {
	hub := broadcast.NewHub()
	registry := jobs.NewRegistry()
	registry.Create(jobs.Request{SteamAppID: "1245620"})

	conn := dialTestServer(t, NewHandler(hub, registry))

	event := readEvent(t, conn)
	assert.Equal(t, broadcast.TypeJobsSnapshot, event.Type)
	require.Len(t, event.Jobs, 1)
	assert.Equal(t, "1245620", event.Jobs[0].Request.SteamAppID)
}

func TestHandler_BroadcastReachesConnectedClient(t *testing.T) {
	hub := broadcast.NewHub()
	registry := jobs.NewRegistry()

	conn := dialTestServer(t, NewHandler(hub, registry))
	_ = readEvent(t, conn) // snapshot

	require.Eventually(t, func() bool { return hub.Count() == 1 },
		time.Second, 10*time.Millisecond)

	hub.Broadcast(broadcast.Event{Type: broadcast.TypeProgressUpdate, JobID: "job-1", Progress: 50})

	event := readEvent(t, conn)
	assert.Equal(t, broadcast.TypeProgressUpdate, event.Type)
	assert.Equal(t, "job-1", event.JobID)
	assert.Equal(t, 50, event.Progress)
}

func TestHandler_PingGetsPong(t *testing.T) {
	hub := broadcast.NewHub()
	registry := jobs.NewRegistry()

	conn := dialTestServer(t, NewHandler(hub, registry))
	_ = readEvent(t, conn) // snapshot

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("ping")))

	event := readEvent(t, conn)
	assert.Equal(t, "pong", event.Type)
}

func TestClient_SlowConsumerConnectionIsClosed(t *testing.T) {
	connCh := make(chan *websocket.Conn, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		connCh <- conn
	}))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	peer, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = peer.Close() })

	client := newClient(<-connCh)
	// No write pump, so the queue never drains.
	for i := 0; i < sendBuffer; i++ {
		require.NoError(t, client.Send(broadcast.Event{Type: broadcast.TypeProgressUpdate}))
	}

	err = client.Send(broadcast.Event{Type: broadcast.TypeProgressUpdate})
	require.ErrorIs(t, err, errSlowConsumer)
	assert.ErrorIs(t, client.Send(broadcast.Event{Type: broadcast.TypeProgressUpdate}), errClientClosed)

	require.NoError(t, peer.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = peer.ReadMessage()
	assert.Error(t, err)
}

func TestHandler_DisconnectedClientIsPrunedOnNextBroadcast(t *testing.T) {
	hub := broadcast.NewHub()
	registry := jobs.NewRegistry()

	conn := dialTestServer(t, NewHandler(hub, registry))
	_ = readEvent(t, conn)

	require.Eventually(t, func() bool { return hub.Count() == 1 },
		time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		hub.Broadcast(broadcast.Event{Type: broadcast.TypeProgressUpdate})
		return hub.Count() == 0
	}, 2*time.Second, 20*time.Millisecond)
}
