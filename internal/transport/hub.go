package transport

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/tabletop-engine/hostage-exchange/internal/eventbus"
	"github.com/tabletop-engine/hostage-exchange/internal/model"
)

// hub tracks the live websocket connections for one game, one per
// subscribed player, so that eventbus scope filtering (§4.5) has a
// concrete per-player fan-out target.
type hub struct {
	mu    sync.Mutex
	conns map[model.PlayerID]*websocket.Conn
	log   *slog.Logger
}

func newHub(log *slog.Logger) *hub {
	return &hub{conns: make(map[model.PlayerID]*websocket.Conn), log: log}
}

func (h *hub) Add(playerID model.PlayerID, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if old, ok := h.conns[playerID]; ok {
		_ = old.Close()
	}
	h.conns[playerID] = conn
}

func (h *hub) Remove(playerID model.PlayerID, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if current, ok := h.conns[playerID]; ok && current == conn {
		delete(h.conns, playerID)
	}
}

// connSubscriber adapts one player's websocket connection to
// eventbus.Subscriber. Deliver must not block (§4.5 contract); writes
// happen directly since gorilla/websocket connections serialize their own
// writes from a single goroutine in this adapter's usage pattern (one
// subscription per connection, no concurrent Delivers for the same conn
// from the journal's synchronous fan-out).
type connSubscriber struct {
	hub      *hub
	playerID model.PlayerID
	conn     *websocket.Conn
	log      *slog.Logger
}

func (s *connSubscriber) Deliver(e eventbus.Event) {
	data, err := json.Marshal(wireEvent{
		Type:     e.Type,
		Sequence: e.Sequence,
		Payload:  e.Payload,
	})
	if err != nil {
		s.log.Error("marshal event", "error", err, "type", e.Type)
		return
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.log.Warn("deliver event failed, dropping connection", "error", err, "player_id", string(s.playerID))
		s.hub.Remove(s.playerID, s.conn)
		_ = s.conn.Close()
	}
}

type wireEvent struct {
	Type     string `json:"type"`
	Sequence uint64 `json:"sequence"`
	Payload  any    `json:"payload"`
}
