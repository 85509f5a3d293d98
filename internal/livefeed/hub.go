// Package livefeed provides a read-only WebSocket broadcast of newly
// committed blocks. It implements indexer.Notifier: the indexer calls
// NotifyBlock once per successful commit, best-effort and non-blocking,
// and every connected client receives the same summary.
package livefeed

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// MessageType constants for feed messages.
const (
	TypeNewBlock = "new_block"
	TypeError    = "error"
	TypePong     = "pong"
)

// Message is the envelope every feed message is wrapped in.
type Message struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Error     string          `json:"error,omitempty"`
}

// BlockEvent is the payload of a TypeNewBlock message.
type BlockEvent struct {
	Height       uint64 `json:"height"`
	Hash         string `json:"hash"`
	Inscriptions int    `json:"inscriptions"`
}

// Client represents one connected WebSocket client.
type Client struct {
	ID   string
	conn *websocket.Conn
	hub  *Hub
	send chan []byte
}

// Hub fans out a single broadcast stream to every connected client. There
// is no subscription model — one chain, one feed.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	mu         sync.RWMutex
	stopCh     chan struct{}
}

// NewHub creates a new Hub instance.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
		stopCh:     make(chan struct{}),
	}
}

// Run starts the hub's main loop; call it in its own goroutine.
func (h *Hub) Run() {
	for {
		select {
		case <-h.stopCh:
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
		case client := <-h.unregister:
			h.removeClient(client)
		case data := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.send <- data:
				default:
					// client buffer full, skip this message for it
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Stop stops the hub and closes every connected client.
func (h *Hub) Stop() {
	close(h.stopCh)
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		client.conn.Close()
	}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
}

// NotifyBlock implements indexer.Notifier. It never blocks: a full
// broadcast buffer silently drops the notification rather than stall the
// indexer loop.
func (h *Hub) NotifyBlock(height uint64, hash string, inscriptionCount int) {
	data, err := json.Marshal(BlockEvent{Height: height, Hash: hash, Inscriptions: inscriptionCount})
	if err != nil {
		return
	}
	msg, err := json.Marshal(Message{Type: TypeNewBlock, Data: data, Timestamp: time.Now().UTC()})
	if err != nil {
		return
	}
	select {
	case h.broadcast <- msg:
	default:
		log.Printf("livefeed: broadcast buffer full, dropping block %d notification", height)
	}
}

// GetStats returns hub statistics (the number of connected clients).
func (h *Hub) GetStats() map[string]interface{} {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return map[string]interface{}{"connected_clients": len(h.clients)}
}

// NewClient registers conn with the hub and returns the Client handle.
func NewClient(hub *Hub, conn *websocket.Conn, id string) *Client {
	c := &Client{ID: id, conn: conn, hub: hub, send: make(chan []byte, 256)}
	hub.register <- c
	return c
}

// ReadPump drains the connection so pong/close control frames are
// processed; the feed is read-only so any data frame is simply ignored.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			if _, _, err := c.conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("livefeed: connection %s closed unexpectedly: %v", c.ID, err)
				}
				return
			}
		}
	}
}

// WritePump writes broadcast messages to the connection and keeps it
// alive with a periodic ping.
func (c *Client) WritePump(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
