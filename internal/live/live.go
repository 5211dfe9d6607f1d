// Package live pushes data version changes to open board pages over
// WebSockets so they refresh after an edit.
package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
)

// MessageType identifies the kind of WebSocket message.
type MessageType string

const (
	// MsgVersion carries the current data version. Sent on connect, on
	// sync and after every save.
	MsgVersion MessageType = "data_version"
	// MsgSync is sent by a client that wants the current version again.
	MsgSync MessageType = "sync"
)

// Message is the envelope for all WebSocket messages.
type Message struct {
	Type    MessageType `json:"type"`
	Version int64       `json:"version,omitempty"`
}

// VersionMessage encodes a data_version message.
func VersionMessage(v int64) []byte {
	data, _ := json.Marshal(Message{Type: MsgVersion, Version: v})
	return data
}

// Hub tracks connected pages and fans version changes out to them.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	version    func() int64
	logger     *slog.Logger
	mu         sync.RWMutex
}

type client struct {
	send chan []byte
}

// NewHub creates a hub. version reports the current data version for
// newly connected pages.
func NewHub(logger *slog.Logger, version func() int64) *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *client),
		unregister: make(chan *client),
		version:    version,
		logger:     logger,
	}
}

// Run delivers registrations and broadcasts until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
			h.logger.Debug("board page connected")

		case c := <-h.unregister:
			h.mu.Lock()
			if h.clients[c] {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			h.logger.Debug("board page disconnected")

		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// Too slow; the page catches up on reconnect.
					delete(h.clients, c)
					close(c.send)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Publish tells every connected page about data version v. It never
// blocks a save: when the queue is full the update is dropped.
func (h *Hub) Publish(v int64) {
	select {
	case h.broadcast <- VersionMessage(v):
	default:
		h.logger.Warn("live update queue full, dropping", "data_version", v)
	}
}

// ClientCount returns the number of connected pages.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
