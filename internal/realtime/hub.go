// Package realtime pushes row-change events to connected WebSocket clients.
package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/erazemk/zaloga/internal/cache"
)

// Tables that publish change events.
const (
	TableInventory = "inventory_items"
	TableBorrowed  = "borrowed_items"
	TableUsedGiven = "used_given_items"
)

// tables maps the aggregates that back a table to that table.
var tables = map[cache.Key]string{
	cache.Inventory: TableInventory,
	cache.Borrowed:  TableBorrowed,
	cache.UsedGiven: TableUsedGiven,
}

// Event is sent to every client when a table changes.
type Event struct {
	Table string    `json:"table"`
	At    time.Time `json:"at"`
}

// Hub tracks connected clients and fans out events.
type Hub struct {
	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	done       chan struct{}

	mu      sync.RWMutex
	clients map[*client]struct{}
}

// NewHub returns a hub. Call Run to start it.
func NewHub() *Hub {
	return &Hub{
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, 64),
		done:       make(chan struct{}),
		clients:    make(map[*client]struct{}),
	}
}

// Run serves the hub until ctx is done, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()
			slog.Info("realtime client connected", "client", c.id, "user", c.userID)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				slog.Info("realtime client disconnected", "client", c.id)
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// Slow consumer: drop it rather than stall everyone else.
					delete(h.clients, c)
					close(c.send)
					slog.Warn("realtime client too slow, disconnected", "client", c.id)
				}
			}
			h.mu.Unlock()

		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Publish queues a change event for table. It never blocks the caller.
func (h *Hub) Publish(table string) {
	msg, err := json.Marshal(Event{Table: table, At: time.Now().UTC()})
	if err != nil {
		slog.Error("failed to encode change event", "table", table, "error", err)
		return
	}

	select {
	case h.broadcast <- msg:
	default:
		slog.Warn("realtime broadcast queue full, dropping event", "table", table)
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Follow publishes a change event whenever versions bumps an aggregate that
// backs one of the published tables.
func (h *Hub) Follow(versions *cache.Versions) {
	versions.Watch(func(k cache.Key) {
		if table, ok := tables[k]; ok {
			h.Publish(table)
		}
	})
}
