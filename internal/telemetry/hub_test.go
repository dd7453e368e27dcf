package telemetry

import (
	"context"
	"encoding/json"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitchelldurbincs/tonatiuh/internal/game/events"
	"github.com/mitchelldurbincs/tonatiuh/internal/testutil"
)

func startHub(t *testing.T) (*Hub, string, context.CancelFunc) {
	t.Helper()
	hub := NewHub(testutil.NopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(Handler(hub, "/ws"))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws", cancel
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestHub_FiltersByGame(t *testing.T) {
	hub, url, _ := startHub(t)

	all := dial(t, url)
	g1 := dial(t, url+"?game=g1")
	require.Eventually(t, func() bool { return hub.Clients() == 2 }, 2*time.Second, 10*time.Millisecond)

	hub.HandleEvent(events.NewMoveAppliedEvent("g2", "Camaxtli", 1, "walk", 0, 3, "s26/7/3k03/3K03/7/6S0-n"))
	hub.HandleEvent(events.NewGameEndedEvent("g1", "Camaxtli", false, 7, time.Second))

	got := readEvent(t, g1)
	assert.Equal(t, "g1", got["game_id"])
	assert.Equal(t, events.TypeGameEnded, got["type"])
	assert.Equal(t, "Camaxtli", got["winner"])

	first := readEvent(t, all)
	second := readEvent(t, all)
	assert.Equal(t, "g2", first["game_id"])
	assert.Equal(t, events.TypeMoveApplied, first["type"])
	assert.Equal(t, "g1", second["game_id"])
}

func TestHub_SubscribesToEventBus(t *testing.T) {
	hub, url, _ := startHub(t)
	bus := events.NewEventBus(testutil.NopLogger())
	bus.Subscribe(hub)

	conn := dial(t, url+"?game=run-1")
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	bus.Publish(events.NewEpisodeCompletedEvent("run-1", 4, "win", 12, 9.5, 0.3, 0.01))

	got := readEvent(t, conn)
	assert.Equal(t, events.TypeEpisodeCompleted, got["type"])
	assert.Equal(t, "run-1", got["game_id"])
	assert.Equal(t, "win", got["outcome"])
	assert.InDelta(t, 4, got["episode"], 1e-9)
}

func TestHub_ClientDisconnect(t *testing.T) {
	hub, url, _ := startHub(t)

	conn := dial(t, url)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_ShutdownClosesClients(t *testing.T) {
	hub, url, cancel := startHub(t)

	conn := dial(t, url)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNoStatusReceived), "got %v", err)
	assert.Zero(t, hub.Clients())
}

func TestHub_DropsWhenBehind(t *testing.T) {
	// Run is never started, so nothing drains the broadcast queue.
	hub := NewHub(testutil.NopLogger())
	for i := 0; i < broadcastBuffer+5; i++ {
		hub.HandleEvent(events.NewGameStartedEvent("g", 7, 6, "", "Camaxtli"))
	}
	assert.Equal(t, int64(5), hub.Dropped())
}

func TestServe_StopsWithContext(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	hub := NewHub(testutil.NopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- Serve(ctx, lis, hub, "/ws") }()

	dial(t, "ws://"+lis.Addr().String()+"/ws")
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return")
	}
}
