package settings

import (
	"sync"
)

// statusWriter is the one capability the hub needs from a connection. The
// websocket handler passes the upgraded *websocket.Conn.
type statusWriter interface {
	WriteJSON(v interface{}) error
}

// subscriber pairs a connection with its write lock. The websocket transport
// supports a single concurrent writer, and submits for independent sections
// may complete at the same time, so every write holds the connection's mutex.
type subscriber struct {
	mu   sync.Mutex
	conn statusWriter
}

func (s *subscriber) send(event StatusEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(event)
}

// StatusHub fans lifecycle transitions out to websocket subscribers so
// presentation re-renders without polling. Subscribers are keyed by user.
type StatusHub struct {
	mu          sync.Mutex
	subscribers map[string]map[statusWriter]*subscriber
}

func NewStatusHub() *StatusHub {
	return &StatusHub{
		subscribers: make(map[string]map[statusWriter]*subscriber),
	}
}

func (h *StatusHub) Subscribe(userID string, conn statusWriter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.subscribers[userID]
	if !ok {
		subs = make(map[statusWriter]*subscriber)
		h.subscribers[userID] = subs
	}
	subs[conn] = &subscriber{conn: conn}
}

func (h *StatusHub) Unsubscribe(userID string, conn statusWriter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.subscribers[userID]
	if !ok {
		return
	}
	delete(subs, conn)
	if len(subs) == 0 {
		delete(h.subscribers, userID)
	}
}

// Broadcast pushes one status event to every subscriber of the user. A failed
// write drops that subscriber; the read loop handles the actual close.
func (h *StatusHub) Broadcast(userID string, event StatusEvent) {
	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.subscribers[userID]))
	for _, sub := range h.subscribers[userID] {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		if err := sub.send(event); err != nil {
			h.Unsubscribe(userID, sub.conn)
		}
	}
}
