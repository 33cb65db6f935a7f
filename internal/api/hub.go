package api

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	clientSendBuffer = 64               // cycle events per client before it is considered stuck
	clientWriteWait  = 10 * time.Second // deadline for one outgoing frame
	clientPongWait   = 60 * time.Second // read deadline; refreshed on pong
	clientPingEvery  = 45 * time.Second // keep-alive cadence, well inside clientPongWait
	clientReadLimit  = 1024             // dashboard clients never send payloads
)

// Hub fans engine stream events out to dashboard sockets.
//
// Dashboard clients are disposable: the quote cadence must never wait on a
// browser, so a client whose send buffer fills is detached on the spot and
// the engine-side channel keeps draining. Each event is marshalled once per
// broadcast, not once per client.
type Hub struct {
	mu      sync.Mutex
	clients map[*wsClient]struct{}
	logger  *slog.Logger
}

// wsClient is one attached dashboard socket.
type wsClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*wsClient]struct{}),
		logger:  logger.With("component", "ws-hub"),
	}
}

// Attach registers an upgraded connection and starts its pumps. The welcome
// event (the current engine snapshot) is queued first so the dashboard
// renders state immediately instead of waiting for the next quote cycle.
func (h *Hub) Attach(conn *websocket.Conn, welcome StreamEvent) {
	c := &wsClient{
		hub:  h,
		conn: conn,
		send: make(chan []byte, clientSendBuffer),
	}

	if data, err := json.Marshal(welcome); err != nil {
		h.logger.Error("failed to marshal welcome snapshot", "error", err)
	} else {
		c.send <- data
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("client connected", "count", count)

	go c.writePump()
	go c.readPump()
}

// Broadcast sends an event to every attached client. Clients that cannot
// absorb it are detached so the caller never blocks.
func (h *Hub) Broadcast(evt StreamEvent) {
	data, err := json.Marshal(evt)
	if err != nil {
		h.logger.Error("failed to marshal event", "type", evt.Type, "error", err)
		return
	}

	h.mu.Lock()
	var stuck []*wsClient
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			stuck = append(stuck, c)
		}
	}
	for _, c := range stuck {
		delete(h.clients, c)
		close(c.send)
	}
	count := len(h.clients)
	h.mu.Unlock()

	for range stuck {
		h.logger.Warn("dropping slow dashboard client",
			"instrument", evt.Instrument,
			"remaining", count,
		)
	}
}

// detach removes a client whose pumps have stopped. Safe to call more than
// once for the same client.
func (h *Hub) detach(c *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	count := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("client disconnected", "count", count)
}

// clientCount reports how many sockets are attached.
func (h *Hub) clientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// writePump drains the client's send queue onto the socket and keeps the
// connection alive with pings. Exits when the hub closes the queue or a
// write fails; either way the connection is torn down.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(clientPingEvery)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(clientWriteWait))
			if !ok {
				// Hub dropped this client.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(clientWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump exists only to service control frames and notice disconnects; the
// dashboard stream is one-way and any payload a client sends is discarded.
func (c *wsClient) readPump() {
	defer func() {
		c.hub.detach(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(clientReadLimit)
	c.conn.SetReadDeadline(time.Now().Add(clientPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(clientPongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Error("websocket error", "error", err)
			}
			return
		}
	}
}
