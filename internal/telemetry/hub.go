package telemetry

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/mitchelldurbincs/tonatiuh/internal/game/events"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Clients only send control frames.
	maxMessageSize = 512

	sendBuffer      = 256
	broadcastBuffer = 1024
)

// GameQueryParam filters a connection to the events of one game or training run.
const GameQueryParam = "game"

type outbound struct {
	gameID string
	data   []byte
}

type client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	gameID string
}

// Hub streams events to websocket clients. It is an events.Subscriber: subscribe it
// to a bus and every published event is sent, JSON encoded, to the clients watching
// that game (or all games).
type Hub struct {
	// clients by game ID; the empty ID holds clients watching everything.
	clients map[string]map[*client]bool

	broadcast  chan outbound
	register   chan *client
	unregister chan *client
	// done is closed when Run returns.
	done chan struct{}

	connected atomic.Int64
	dropped   atomic.Int64

	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*client]bool),
		broadcast:  make(chan outbound, broadcastBuffer),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Read-only stream of public game events.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger.With().Str("component", "TelemetryHub").Logger(),
	}
}

// Run owns the client set until ctx is done, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for _, clients := range h.clients {
				for c := range clients {
					h.unregisterClient(c)
				}
			}
			return
		case c := <-h.register:
			h.registerClient(c)
		case c := <-h.unregister:
			h.unregisterClient(c)
		case msg := <-h.broadcast:
			h.broadcastMessage(msg)
		}
	}
}

func (h *Hub) ID() string { return "telemetry-hub" }

func (h *Hub) InterestedIn(string) bool { return true }

// HandleEvent never blocks the publisher: when the hub falls behind, events are
// dropped and counted.
func (h *Hub) HandleEvent(e events.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		h.logger.Error().Err(err).Str("event_type", e.Type()).Msg("Failed to encode event")
		return
	}
	select {
	case h.broadcast <- outbound{gameID: e.GameID(), data: data}:
	default:
		if n := h.dropped.Add(1); n%100 == 1 {
			h.logger.Warn().Int64("dropped", n).Msg("Telemetry hub is behind, dropping events")
		}
	}
}

// Clients is the number of connected websocket clients.
func (h *Hub) Clients() int { return int(h.connected.Load()) }

// Dropped is the number of events lost because the hub was behind.
func (h *Hub) Dropped() int64 { return h.dropped.Load() }

// ServeHTTP upgrades the request. The optional "game" query parameter limits the
// stream to one game or training run.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	c := &client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		gameID: r.URL.Query().Get(GameQueryParam),
	}
	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

func (h *Hub) registerClient(c *client) {
	if h.clients[c.gameID] == nil {
		h.clients[c.gameID] = make(map[*client]bool)
	}
	h.clients[c.gameID][c] = true
	n := h.connected.Add(1)
	h.logger.Debug().Str("game_id", c.gameID).Int64("clients", n).Msg("Client registered")
}

func (h *Hub) unregisterClient(c *client) {
	clients, ok := h.clients[c.gameID]
	if !ok || !clients[c] {
		return
	}
	delete(clients, c)
	if len(clients) == 0 {
		delete(h.clients, c.gameID)
	}
	n := h.connected.Add(-1)
	close(c.send)
	h.logger.Debug().Str("game_id", c.gameID).Int64("clients", n).Msg("Client unregistered")
}

func (h *Hub) broadcastMessage(msg outbound) {
	h.sendTo(h.clients[msg.gameID], msg.data)
	if msg.gameID != "" {
		h.sendTo(h.clients[""], msg.data)
	}
}

func (h *Hub) sendTo(clients map[*client]bool, data []byte) {
	for c := range clients {
		select {
		case c.send <- data:
		default:
			// Slow reader.
			h.unregisterClient(c)
		}
	}
}

// readPump only serves control frames; it unregisters the client when the
// connection closes.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug().Err(err).Msg("WebSocket closed")
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
