package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/zaloga/internal/cache"
)

func startHub(t *testing.T) (*Hub, string) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := NewHub()
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, "u1")
	}))
	t.Cleanup(srv.Close)

	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestPublishReachesClients(t *testing.T) {
	hub, url := startHub(t)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Publish(TableBorrowed)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev Event
	require.NoError(t, json.Unmarshal(msg, &ev))
	assert.Equal(t, TableBorrowed, ev.Table)
	assert.False(t, ev.At.IsZero())
}

func TestClientDisconnectUnregisters(t *testing.T) {
	hub, url := startHub(t)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	conn.Close()

	assert.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestPublishWithoutClients(t *testing.T) {
	hub, _ := startHub(t)

	for range 100 {
		hub.Publish(TableInventory)
	}
	assert.Equal(t, 0, hub.Clients())
}

func TestFollowPublishesTableChanges(t *testing.T) {
	hub, url := startHub(t)
	versions := &cache.Versions{}
	hub.Follow(versions)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	versions.Bump(cache.Stats, cache.Activity)
	versions.Bump(cache.UsedGiven, cache.Stats)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev Event
	require.NoError(t, json.Unmarshal(msg, &ev))
	assert.Equal(t, TableUsedGiven, ev.Table, "stats and activity have no table")
}
