package models

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ClientConnection is one websocket connection for a user. A user may be
// connected from several devices at once.
type ClientConnection struct {
	Hub    *Hub
	Conn   *websocket.Conn
	Send   chan []byte
	UserID uint
}

// Hub fans server events out to connected users.
type Hub struct {
	Register   chan *ClientConnection
	Unregister chan *ClientConnection

	mu          sync.RWMutex
	connections map[uint][]*ClientConnection
}

func NewHub() *Hub {
	return &Hub{
		Register:    make(chan *ClientConnection),
		Unregister:  make(chan *ClientConnection),
		connections: make(map[uint][]*ClientConnection),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			h.connections[client.UserID] = append(h.connections[client.UserID], client)
			h.mu.Unlock()

		case client := <-h.Unregister:
			h.mu.Lock()
			conns := h.connections[client.UserID]
			for i, conn := range conns {
				if conn == client {
					h.connections[client.UserID] = append(conns[:i], conns[i+1:]...)
					close(client.Send)
					break
				}
			}
			if len(h.connections[client.UserID]) == 0 {
				delete(h.connections, client.UserID)
			}
			h.mu.Unlock()
		}
	}
}

// NotifyUser sends payload to every open connection of userID. Slow or full
// connections are skipped rather than blocking the caller.
func (h *Hub) NotifyUser(userID uint, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.connections[userID] {
		select {
		case client.Send <- payload:
		default:
		}
	}
}

func (c *ClientConnection) WritePump() {
	ticker := time.NewTicker(50 * time.Second)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
