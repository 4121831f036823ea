package websocket

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

	"salesdash/pkg/contracts/events"
)

type decoded struct {
	Type    events.MessageType `json:"type"`
	ID      string             `json:"id"`
	TraceID string             `json:"trace_id"`
	Data    json.RawMessage    `json:"data"`
}

func receive(t *testing.T, client *Client) decoded {
	t.Helper()
	select {
	case payload, ok := <-client.send:
		require.True(t, ok, "send channel closed")
		var msg decoded
		require.NoError(t, json.Unmarshal(payload, &msg))
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
		return decoded{}
	}
}

func registered(t *testing.T, hub *Hub, traceID string) *Client {
	t.Helper()
	client := NewClient(hub, newFakeConn(), traceID, testLogger())
	require.True(t, hub.Register(client))
	return client
}

func TestHubGreetsNewClientWithSnapshots(t *testing.T) {
	hub := newTestHub(t)
	hub.SetSnapshotSource(func() []*events.RunSnapshot {
		return []*events.RunSnapshot{{RunID: "run-1", Status: "training", Progress: 40}}
	})
	hub.Start()

	client := registered(t, hub, "trace-9")

	connect := receive(t, client)
	assert.Equal(t, events.MessageTypeConnect, connect.Type)
	assert.Equal(t, "trace-9", connect.TraceID)
	assert.NotEmpty(t, connect.ID)

	snapshot := receive(t, client)
	assert.Equal(t, events.MessageTypeRunSnapshot, snapshot.Type)
	var run events.RunSnapshot
	require.NoError(t, json.Unmarshal(snapshot.Data, &run))
	assert.Equal(t, "run-1", run.RunID)
	assert.Equal(t, 40, run.Progress)
}

func TestHubBroadcastUpdate(t *testing.T) {
	hub := newTestHub(t)
	hub.Start()

	first := registered(t, hub, "")
	second := registered(t, hub, "")
	receive(t, first)
	receive(t, second)

	hub.BroadcastUpdate(string(events.MessageTypeEpoch), "run-2", "training", events.EpochEvent{RunID: "run-2", Epoch: 3, Epochs: 10})

	for _, client := range []*Client{first, second} {
		msg := receive(t, client)
		assert.Equal(t, events.MessageTypeEpoch, msg.Type)
		var epoch events.EpochEvent
		require.NoError(t, json.Unmarshal(msg.Data, &epoch))
		assert.Equal(t, 3, epoch.Epoch)
	}

	assert.Eventually(t, func() bool {
		return hub.GetHubMetrics()["messages_sent"].(int64) >= 2
	}, time.Second, 5*time.Millisecond)
}

func TestHubUnregisterClosesSend(t *testing.T) {
	hub := newTestHub(t)
	hub.Start()

	client := registered(t, hub, "")
	receive(t, client)
	hub.Unregister(client)

	select {
	case _, ok := <-client.send:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("send channel not closed")
	}
	assert.Equal(t, 0, hub.ClientCount())
}

func TestHubDisconnectsSlowClient(t *testing.T) {
	hub := newTestHub(t)
	hub.Start()

	client := registered(t, hub, "")
	require.Eventually(t, func() bool { return len(client.send) == 1 }, time.Second, 5*time.Millisecond)
	for len(client.send) < cap(client.send) {
		client.send <- []byte(`{}`)
	}

	hub.BroadcastUpdate(string(events.MessageTypeRunSnapshot), "run-3", "training", nil)

	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestHubBroadcastNeverBlocks(t *testing.T) {
	hub := newTestHub(t)

	done := make(chan struct{})
	go func() {
		for i := 0; i < broadcastBuffer+10; i++ {
			hub.BroadcastUpdate(string(events.MessageTypeRunSnapshot), "run-4", "idle", nil)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("BroadcastUpdate blocked without a running hub")
	}
	assert.Equal(t, int64(10), hub.GetHubMetrics()["dropped_messages"])
}

func TestHubStop(t *testing.T) {
	hub := newTestHub(t)
	hub.Start()
	client := registered(t, hub, "")

	hub.Stop()
	hub.Stop()

	assert.Equal(t, 0, hub.ClientCount())
	assert.False(t, hub.Register(NewClient(hub, newFakeConn(), "", testLogger())))

	// the greeting may still be buffered, after it the channel is closed
	for range client.send {
	}
}

func TestOriginChecker(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{name: "no origin header", origin: "", want: true},
		{name: "same host", origin: "http://dash.test", want: true},
		{name: "other host", origin: "http://evil.test", want: false},
		{name: "listed", allowed: []string{"http://a.test"}, origin: "http://a.test", want: true},
		{name: "not listed", allowed: []string{"http://a.test"}, origin: "http://b.test", want: false},
		{name: "wildcard", allowed: []string{"*"}, origin: "http://b.test", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "http://dash.test/ws", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, originChecker(tt.allowed)(r))
		})
	}
}

func TestServeHTTPStreamsMessages(t *testing.T) {
	hub := newTestHub(t)
	hub.Start()

	server := httptest.NewServer(hub)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var msg decoded
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, events.MessageTypeConnect, msg.Type)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	hub.BroadcastUpdate(string(events.MessageTypeRunSnapshot), "run-5", "complete",
		&events.RunSnapshot{RunID: "run-5", Status: "complete", Progress: 100})

	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, events.MessageTypeRunSnapshot, msg.Type)
	assert.Contains(t, string(msg.Data), `"run_id":"run-5"`)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, heartbeat))
}
