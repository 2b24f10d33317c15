package protocol

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// SnapshotFunc produces a full world snapshot for a simulation. The hub
// calls it on subscribe and resync.
type SnapshotFunc func(simulationID string) (*FullState, error)

// Hub accepts observer websocket connections and fans out state frames.
type Hub struct {
	snapshot SnapshotFunc
	upgrader websocket.Upgrader

	mu          sync.Mutex
	subscribers map[*subscriber]struct{}
}

// NewHub returns a hub that serves snapshots from fn.
func NewHub(fn SnapshotFunc) *Hub {
	return &Hub{
		snapshot: fn,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Observers are read-only dashboards; any origin may watch.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		subscribers: make(map[*subscriber]struct{}),
	}
}

type subscriber struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// write sends one frame guarded by the write mutex and deadline.
func (s *subscriber) write(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *subscriber) writeJSON(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	return s.write(data)
}

// ServeHTTP upgrades the request and runs the subscriber's read loop until
// the connection drops.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}

	sub := &subscriber{conn: conn}
	h.mu.Lock()
	h.subscribers[sub] = struct{}{}
	count := len(h.subscribers)
	h.mu.Unlock()
	slog.Info("observer connected", "remote", conn.RemoteAddr().String(), "subscribers", count)

	defer func() {
		h.drop(sub)
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("observer read error", "error", err)
			}
			return
		}
		h.handleFrame(sub, data)
	}
}

func (h *Hub) handleFrame(sub *subscriber, data []byte) {
	msg, err := DecodeMessage(data)
	if err != nil {
		sub.writeJSON(&ErrorMessage{Type: TypeError, Message: err.Error()})
		return
	}

	switch m := msg.(type) {
	case *Subscribe:
		h.sendSnapshot(sub, m.SimulationID)
	case *Resync:
		h.sendSnapshot(sub, m.SimulationID)
	default:
		sub.writeJSON(&ErrorMessage{
			Type:    TypeError,
			Message: fmt.Sprintf("unexpected message type %T", msg),
		})
	}
}

func (h *Hub) sendSnapshot(sub *subscriber, simID string) {
	fs, err := h.snapshot(simID)
	if err != nil {
		slog.Error("snapshot failed", "simulation", simID, "error", err)
		sub.writeJSON(&ErrorMessage{Type: TypeError, Message: "subscription failed: " + err.Error()})
		return
	}
	if err := sub.writeJSON(fs); err != nil {
		slog.Warn("snapshot write failed", "error", err)
	}
}

func (h *Hub) drop(sub *subscriber) {
	h.mu.Lock()
	delete(h.subscribers, sub)
	h.mu.Unlock()
}

// SubscriberCount returns the number of connected observers.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Broadcast encodes a message once and sends it to every subscriber.
// Subscribers whose writes fail are dropped.
func (h *Hub) Broadcast(msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("broadcast encode failed", "error", err)
		return
	}

	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.subscribers))
	for sub := range h.subscribers {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		if err := sub.write(data); err != nil {
			slog.Warn("broadcast write failed, dropping observer", "error", err)
			h.drop(sub)
			sub.conn.Close()
		}
	}
}
