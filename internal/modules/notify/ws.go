// README: WebSocket hub pushing events to connected recipients.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"ridedesk/internal/types"
)

const writeWait = 5 * time.Second

// wsSession represents one connected recipient.
type wsSession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *wsSession) send(e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(e)
}

// Hub holds one session per recipient; a newer connection replaces the older one.
type Hub struct {
	mu       sync.RWMutex
	sessions map[types.ID]*wsSession
	log      *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{sessions: make(map[types.ID]*wsSession), log: log}
}

// Attach registers conn for id and blocks reading until the peer goes away.
func (h *Hub) Attach(id types.ID, conn *websocket.Conn) {
	s := &wsSession{conn: conn}
	h.mu.Lock()
	if old, ok := h.sessions[id]; ok {
		_ = old.conn.Close()
	}
	h.sessions[id] = s
	h.mu.Unlock()
	h.log.Info("ws session attached", "recipient_id", id)

	defer func() {
		h.mu.Lock()
		if h.sessions[id] == s {
			delete(h.sessions, id)
		}
		h.mu.Unlock()
		_ = conn.Close()
		h.log.Info("ws session closed", "recipient_id", id)
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) Connected(id types.ID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.sessions[id]
	return ok
}

// Publish pushes e to its recipient if connected. Absent recipients are skipped.
func (h *Hub) Publish(_ context.Context, e Event) error {
	h.mu.RLock()
	s, ok := h.sessions[e.RecipientID]
	h.mu.RUnlock()
	if !ok {
		h.log.Debug("ws recipient not connected", "recipient_id", e.RecipientID, "type", e.Type)
		return nil
	}
	return s.send(e)
}
