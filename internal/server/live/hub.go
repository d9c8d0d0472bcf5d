// Package live streams poller state to websocket subscribers.
package live

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/stockboard/internal/poller"
)

// Event is the envelope sent to every client.
type Event struct {
	Type    string    `json:"type"`
	Topic   string    `json:"topic"`
	Payload any       `json:"payload"`
	SentAt  time.Time `json:"sent_at"`
}

// Hub maintains the set of active clients and broadcasts messages.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}
	logger     *zap.Logger
}

// NewHub creates a hub. Call Run to start it.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 64),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run owns the client set until ctx is done, then disconnects everyone.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for id, c := range h.clients {
				close(c.send)
				delete(h.clients, id)
			}
			return

		case c := <-h.register:
			h.clients[c.id] = c
			h.logger.Debug("live client connected", zap.String("client", c.id), zap.Int("clients", len(h.clients)))

		case c := <-h.unregister:
			if _, ok := h.clients[c.id]; ok {
				delete(h.clients, c.id)
				close(c.send)
				h.logger.Debug("live client disconnected", zap.String("client", c.id))
			}

		case msg := <-h.broadcast:
			for id, c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// Slow consumer.
					delete(h.clients, id)
					close(c.send)
					h.logger.Warn("dropping slow live client", zap.String("client", id))
				}
			}
		}
	}
}

// Publish queues an event for every connected client. It never blocks.
func (h *Hub) Publish(topic string, payload any) {
	msg, err := json.Marshal(Event{Type: "snapshot", Topic: topic, Payload: payload, SentAt: time.Now()})
	if err != nil {
		h.logger.Error("failed to encode live event", zap.String("topic", topic), zap.Error(err))
		return
	}
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("live broadcast queue full, dropping event", zap.String("topic", topic))
	}
}

// Watch forwards every applied state of p to the hub under topic. The
// returned func stops forwarding.
func Watch[T any](h *Hub, topic string, p *poller.Poller[T]) func() {
	return p.Subscribe(func(state poller.State[T]) {
		h.Publish(topic, state)
	})
}
