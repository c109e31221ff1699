package network

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/MRamiBalles/ZooSimulator/server/internal/events"
	"github.com/MRamiBalles/ZooSimulator/server/internal/platform/logger"
	"github.com/MRamiBalles/ZooSimulator/server/internal/platform/metrics"
)

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.Mutex

	commander Commander
	rateLimit time.Duration
	metrics   *metrics.Collector
	logger    *logger.Logger
}

// NewHub initializes a new WebSocket Hub. Client commands are forwarded to
// cmd; each client may issue at most one command per rateLimit.
func NewHub(cmd Commander, rateLimit time.Duration, m *metrics.Collector, log *logger.Logger) *Hub {
	if m == nil {
		m = metrics.Get()
	}
	return &Hub{
		broadcast:  make(chan []byte),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
		commander:  cmd,
		rateLimit:  rateLimit,
		metrics:    m,
		logger:     log,
	}
}

// Run starts the Hub's main loop to handle client connections and broadcasts.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Info("websocket hub shutting down")
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.metrics.RecordWSConnection(1)
			h.logger.Info("websocket client connected", "remote", client.remote())
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.metrics.RecordWSConnection(-1)
				h.logger.Info("websocket client disconnected", "remote", client.remote())
			}
			h.mu.Unlock()
		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
					h.metrics.RecordWSMessage(false)
				default:
					// Slow consumer
					close(client.send)
					delete(h.clients, client)
					h.metrics.RecordWSConnection(-1)
					h.metrics.RecordWSError()
				}
			}
			h.mu.Unlock()
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// BroadcastEvent serializes a GameEvent and sends it to all connected clients.
// It returns without sending once the hub has stopped.
func (h *Hub) BroadcastEvent(event events.GameEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to serialize event for broadcast", "type", event.Type, "error", err)
		return
	}
	select {
	case h.broadcast <- payload:
	case <-h.done:
	}
}

// StartEventPoller spawns a goroutine that polls the EventLog and pushes new
// events to the Hub. This lets the Hub run independently of the engine while
// seeing the same events.
func (h *Hub) StartEventPoller(ctx context.Context, eventLog *events.EventLog, interval time.Duration) {
	go func() {
		pollInterval := time.NewTicker(interval)
		defer pollInterval.Stop()

		lastProcessedEvent := 0

		for {
			select {
			case <-ctx.Done():
				return
			case <-pollInterval.C:
				var newEvents []events.GameEvent
				newEvents, lastProcessedEvent = eventLog.Next(lastProcessedEvent)
				for _, event := range newEvents {
					h.BroadcastEvent(event)
				}
			}
		}
	}()
}

// send queues a direct reply for one client, dropping it if the client is
// gone or its buffer is full.
func (h *Hub) send(c *Client, message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.clients[c] {
		return
	}
	select {
	case c.send <- message:
		h.metrics.RecordWSMessage(false)
	default:
		h.metrics.RecordWSError()
	}
}

func (h *Hub) enqueue(ch chan *Client, c *Client) {
	select {
	case ch <- c:
	case <-h.done:
	}
}
