package websocket

import (
	"context"
	"log/slog"
	"sync/atomic"

	"cinehub/internal/metrics"
	"cinehub/internal/titlesync"
)

// Hub fans title deltas out to every connected client. All client
// bookkeeping happens on the Run goroutine; everything else talks to it
// through channels.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	overflow   chan struct{}
	done       chan struct{}

	clients map[*Client]struct{}
	count   atomic.Int64
	logger  *slog.Logger
}

const broadcastBuffer = 256

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, broadcastBuffer),
		overflow:   make(chan struct{}, 1),
		done:       make(chan struct{}),
		clients:    make(map[*Client]struct{}),
		logger:     logger.With("component", "ws_hub"),
	}
}

// Run serves the hub until ctx is done, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.drop(c)
			}
			return

		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.count.Add(1)
			metrics.WebsocketClients.Inc()
			h.logger.Debug("client_connected", "client_id", c.ID)

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				h.drop(c)
			}

		case msg := <-h.broadcast:
			h.fanOut(msg)

		case <-h.overflow:
			// deltas were lost, so the queued ones are superseded by a reset
			discarded := h.discardQueued()
			h.logger.Warn("broadcast_overflow_reset", "discarded", discarded, "clients", len(h.clients))
			h.fanOut(resetPayload())
		}
	}
}

func (h *Hub) fanOut(msg []byte) {
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			// too slow to keep up; it can reconnect and refetch
			h.logger.Warn("client_dropped_slow", "client_id", c.ID)
			h.drop(c)
		}
	}
}

func (h *Hub) discardQueued() int {
	n := 0
	for {
		select {
		case <-h.broadcast:
			n++
		default:
			return n
		}
	}
}

func resetPayload() []byte {
	msg, _ := MessageFromDelta(titlesync.Delta{Outcome: titlesync.OutcomeReset})
	data, _ := msg.ToJSON()
	return data
}

// join registers c unless the hub has stopped.
func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) drop(c *Client) {
	delete(h.clients, c)
	close(c.send)
	h.count.Add(-1)
	metrics.WebsocketClients.Dec()
}

// Publish queues a store delta for every client. It is a titlesync.Listener
// and never blocks the store's consumer. When the queue is full the delta is
// lost and clients are sent a reset instead, telling them to refetch.
func (h *Hub) Publish(d titlesync.Delta) {
	msg, ok := MessageFromDelta(d)
	if !ok {
		return
	}
	data, err := msg.ToJSON()
	if err != nil {
		h.logger.Error("delta_encode_failed", "id", d.ID, "error", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("broadcast_queue_full", "outcome", d.Outcome, "id", d.ID)
		select {
		case h.overflow <- struct{}{}:
		default:
		}
	}
}

// Clients returns the number of registered clients.
func (h *Hub) Clients() int {
	return int(h.count.Load())
}
