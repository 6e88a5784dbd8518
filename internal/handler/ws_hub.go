package handler

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Topics viewers can subscribe to.
const (
	TopicTurn   = "turn"
	TopicStatus = "status"
)

// WSEvent is the envelope for all WebSocket messages.
type WSEvent struct {
	Type  string `json:"type"`
	Topic string `json:"topic"`
	Data  any    `json:"data"`
}

// ClientMessage is the envelope for messages sent from the client.
type ClientMessage struct {
	Action string `json:"action"` // "subscribe" or "unsubscribe"
	Topic  string `json:"topic"`
}

// WSConn wraps a WebSocket connection with its viewer and subscriptions.
type WSConn struct {
	conn     *websocket.Conn
	viewerID string
	send     chan []byte
}

// Hub manages viewer connections and topic subscriptions.
type Hub struct {
	mu          sync.RWMutex
	connections map[*WSConn]bool
	topics      map[string]map[*WSConn]bool // topic -> set of connections
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		connections: make(map[*WSConn]bool),
		topics:      make(map[string]map[*WSConn]bool),
	}
}

// ValidTopic reports whether viewers may subscribe to topic.
func ValidTopic(topic string) bool {
	return topic == TopicTurn || topic == TopicStatus
}

// Register adds a connection to the hub.
func (h *Hub) Register(c *WSConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[c] = true
}

// Unregister removes a connection from the hub and all its subscriptions.
func (h *Hub) Unregister(c *WSConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.connections[c] {
		return
	}
	delete(h.connections, c)
	for topic, conns := range h.topics {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.topics, topic)
		}
	}
	close(c.send)
}

// Subscribe adds a connection to a topic.
func (h *Hub) Subscribe(c *WSConn, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.topics[topic] == nil {
		h.topics[topic] = make(map[*WSConn]bool)
	}
	h.topics[topic][c] = true
}

// Unsubscribe removes a connection from a topic.
func (h *Hub) Unsubscribe(c *WSConn, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.topics[topic]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.topics, topic)
		}
	}
}

// BroadcastToTopic sends an event to all connections subscribed to a topic.
// Slow viewers lose messages rather than stall the sender.
func (h *Hub) BroadcastToTopic(topic string, event WSEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Failed to marshal WebSocket event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.topics[topic] {
		select {
		case c.send <- data:
		default:
			log.Warn().Str("viewer", c.viewerID).Str("topic", topic).Msg("Dropping WebSocket message, buffer full")
		}
	}
}

// ConnectionCount returns the total number of active connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// TopicSubscriberCount returns the number of connections subscribed to a topic.
func (h *Hub) TopicSubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}
