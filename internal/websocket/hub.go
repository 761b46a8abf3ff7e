// Waypost - Embedded Viewer Visitor Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypost

package websocket

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/tomtom215/waypost/internal/logging"
	"github.com/tomtom215/waypost/internal/metrics"
	"github.com/tomtom215/waypost/internal/models"
)

// Message types.
const (
	MessageTypeUniqueCount = "unique_count"
	MessageTypePing        = "ping"
	MessageTypePong        = "pong"
)

const (
	broadcastBuffer = 256

	// replayDays is how many per-day counts a new dashboard is sent.
	replayDays = 7
)

// Message is the envelope of every WebSocket frame.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Hub fans unique-visitor counts out to dashboard clients.
//
// Register and Unregister are unbuffered, so a client registered before a
// broadcast is queued always receives it.
type Hub struct {
	Register   chan *Client
	Unregister chan *Client
	broadcast  chan Message

	mu      sync.RWMutex
	clients map[*Client]struct{}

	countsMu sync.Mutex
	counts   map[string]int // date -> last broadcast count
}

// NewHub creates a Hub. Start it with Run.
func NewHub() *Hub {
	return &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		broadcast:  make(chan Message, broadcastBuffer),
		clients:    make(map[*Client]struct{}),
		counts:     make(map[string]int),
	}
}

// Run serves the hub until ctx is canceled, then closes every client.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			n := h.closeAll()
			logging.Info().AnErr("cause", ctx.Err()).Int("clients_closed", n).Msg("WebSocket hub stopped")
			return ctx.Err()
		case c := <-h.Register:
			h.add(c)
		case c := <-h.Unregister:
			h.remove(c)
		case msg := <-h.broadcast:
			h.fanOut(msg)
		}
	}
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnections.Set(float64(total))
	logging.Info().Int("total_clients", total).Msg("Dashboard client connected")

	for _, msg := range h.replay() {
		select {
		case c.send <- msg:
		default:
		}
	}
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnections.Set(float64(total))
	logging.Info().Int("total_clients", total).Msg("Dashboard client disconnected")
}

// fanOut delivers msg in client id order. A client whose buffer is full is
// disconnected rather than allowed to stall the others.
func (h *Hub) fanOut(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, c := range h.ordered() {
		select {
		case c.send <- msg:
			metrics.WSMessagesSent.Inc()
		default:
			metrics.WSErrors.WithLabelValues("slow_client").Inc()
			delete(h.clients, c)
			close(c.send)
		}
	}
	metrics.WSConnections.Set(float64(len(h.clients)))
}

// ordered must be called with h.mu held.
func (h *Hub) ordered() []*Client {
	return slices.SortedFunc(maps.Keys(h.clients), func(a, b *Client) int {
		return cmp.Compare(a.id, b.id)
	})
}

func (h *Hub) closeAll() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := len(h.clients)
	for c := range h.clients {
		close(c.send)
	}
	clear(h.clients)
	metrics.WSConnections.Set(0)
	return n
}

// BroadcastUniqueCount sends a unique_count message when the count for
// date differs from the last one sent. Visitor record updates re-read the
// subtree without changing its size, so repeats are common.
func (h *Hub) BroadcastUniqueCount(date string, count int) {
	h.countsMu.Lock()
	if last, seen := h.counts[date]; seen && last == count {
		h.countsMu.Unlock()
		return
	}
	h.counts[date] = count
	if len(h.counts) > replayDays {
		delete(h.counts, slices.Min(slices.Collect(maps.Keys(h.counts))))
	}
	h.countsMu.Unlock()

	h.queue(Message{
		Type: MessageTypeUniqueCount,
		Data: models.UniqueCountMessage{Date: date, Count: count},
	})
}

// replay returns the latest count per remembered day, oldest first.
func (h *Hub) replay() []Message {
	h.countsMu.Lock()
	defer h.countsMu.Unlock()

	dates := slices.Sorted(maps.Keys(h.counts))
	out := make([]Message, len(dates))
	for i, date := range dates {
		out[i] = Message{
			Type: MessageTypeUniqueCount,
			Data: models.UniqueCountMessage{Date: date, Count: h.counts[date]},
		}
	}
	return out
}

func (h *Hub) queue(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		metrics.WSErrors.WithLabelValues("broadcast_full").Inc()
		logging.Warn().Str("message_type", msg.Type).Msg("Broadcast channel full, dropping message")
	}
}

// ClientCount returns the number of connected dashboards.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
