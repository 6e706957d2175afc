package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialHub(t *testing.T, hub *Hub) *gorilla.Conn {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWS(hub, w, r)
	}))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := gorilla.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHub_BroadcastReachesClient(t *testing.T) {
	hub := NewHub(nil)
	hub.Start()
	defer hub.Stop()

	conn := dialHub(t, hub)

	// Registration races the broadcast; retry until the hub has picked
	// the client up.
	received := make(chan []byte, 1)
	go func() {
		_, payload, err := conn.ReadMessage()
		if err == nil {
			received <- payload
		}
	}()

	deadline := time.After(5 * time.Second)
	for {
		hub.BroadcastJSON("job:status", map[string]string{"upload_id": "batch-1", "status": "parsing"})

		select {
		case payload := <-received:
			var msg Message
			require.NoError(t, json.Unmarshal(payload, &msg))
			assert.Equal(t, "job:status", msg.Type)
			data, ok := msg.Data.(map[string]any)
			require.True(t, ok)
			assert.Equal(t, "batch-1", data["upload_id"])
			return
		case <-deadline:
			t.Fatal("no broadcast received")
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func TestHub_StartIsIdempotent(t *testing.T) {
	hub := NewHub(nil)
	hub.Start()
	hub.Start()
	hub.Stop()
	hub.Stop()
}

func TestHub_BroadcastWithoutClientsDoesNotBlock(t *testing.T) {
	hub := NewHub(nil)
	hub.Start()
	defer hub.Stop()

	for i := 0; i < 200; i++ {
		hub.BroadcastJSON("job:status", map[string]int{"i": i})
	}
}

func TestServeWS_AfterStopClosesConnection(t *testing.T) {
	hub := NewHub(nil)
	hub.Start()
	hub.Stop()

	// A connection arriving after shutdown must be rejected rather than
	// leave its handler stuck on the register channel.
	conn := dialHub(t, hub)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

func TestHub_StopDisconnectsClients(t *testing.T) {
	hub := NewHub(nil)
	hub.Start()

	conn := dialHub(t, hub)
	time.Sleep(50 * time.Millisecond)

	hub.Stop()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
