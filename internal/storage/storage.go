package storage

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tabletop-engine/hostage-exchange/internal/eventbus"
	"github.com/tabletop-engine/hostage-exchange/internal/model"
)

// Open connects to Postgres using the given DSN.
func Open(databaseURL string) (*gorm.DB, error) {
	if databaseURL == "" {
		return nil, errors.New("storage: DATABASE_URL is not set")
	}
	return gorm.Open(postgres.Open(databaseURL), &gorm.Config{})
}

// Migrate runs GORM auto-migrations for the mirror tables.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return errors.New("storage: db connection is nil")
	}
	if err := conn.AutoMigrate(&GameRecord{}, &EventRecord{}); err != nil {
		return err
	}
	return nil
}

// Mirror implements controller.Observer: every successfully applied command
// upserts the game's snapshot row. It never blocks a command on a DB error
// (§10.5: the in-memory store is authoritative; the mirror is best-effort
// history), it only logs.
type Mirror struct {
	db  *gorm.DB
	log *slog.Logger
}

func NewMirror(db *gorm.DB, log *slog.Logger) *Mirror {
	return &Mirror{db: db, log: log}
}

// snapshot is the redacted JSON projection persisted for one game. It
// deliberately omits model.Game.Private in full — only the fields a
// reconnect-after-restart or an audit view would need are kept, and no
// player's un-revealed role ever reaches this struct (§3.7, P3).
type snapshot struct {
	ID           string            `json:"id"`
	Code         string            `json:"code"`
	Phase        string            `json:"phase"`
	CurrentRound int               `json:"currentRound"`
	Players      []playerSnapshot  `json:"players"`
	RoomA        []string          `json:"roomA"`
	RoomB        []string          `json:"roomB"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

type playerSnapshot struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	IsHost   bool   `json:"isHost"`
	Status   string `json:"status"`
	RoomID   string `json:"roomId,omitempty"`
	Alive    bool   `json:"alive"`
}

func buildSnapshot(g *model.Game) snapshot {
	players := make([]playerSnapshot, 0, len(g.Players))
	for _, p := range g.Players {
		players = append(players, playerSnapshot{
			ID: string(p.ID), Name: p.Name, IsHost: p.IsHost,
			Status: p.Status.String(), RoomID: string(p.CurrentRoom), Alive: p.Alive,
		})
	}
	return snapshot{
		ID: string(g.ID), Code: g.Code, Phase: g.Phase.String(), CurrentRound: g.CurrentRound,
		Players: players, RoomA: roomMemberStrings(g, model.RoomA), RoomB: roomMemberStrings(g, model.RoomB),
		UpdatedAt: g.UpdatedAt,
	}
}

func roomMemberStrings(g *model.Game, roomID model.RoomID) []string {
	room, ok := g.Rooms[roomID]
	if !ok {
		return nil
	}
	out := make([]string, len(room.Members))
	for i, id := range room.Members {
		out[i] = string(id)
	}
	return out
}

// GameMutated implements controller.Observer.
func (m *Mirror) GameMutated(g *model.Game) {
	if m.db == nil {
		return
	}
	payload, err := json.Marshal(buildSnapshot(g))
	if err != nil {
		m.log.Error("marshal game snapshot", "error", err, "game_id", string(g.ID))
		return
	}
	record := GameRecord{
		GameID: string(g.ID), Code: g.Code, Phase: g.Phase.String(), Snapshot: payload,
	}
	err = m.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "game_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"phase", "snapshot", "updated_at"}),
	}).Create(&record).Error
	if err != nil {
		m.log.Error("persist game snapshot", "error", err, "game_id", string(g.ID))
	}
}

// EventPersisted records one published journal event for durable replay
// and audit history. Controller does not call this directly; a transport
// or background subscriber wires it via Journal.Subscribe the same way a
// websocket connection does (this is just another eventbus.Subscriber).
type EventPersisted struct {
	db      *gorm.DB
	gameRow uint
	log     *slog.Logger
}

func NewEventPersisted(db *gorm.DB, gameRow uint, log *slog.Logger) *EventPersisted {
	return &EventPersisted{db: db, gameRow: gameRow, log: log}
}

func (e *EventPersisted) Deliver(ev eventbus.Event) {
	if e.db == nil {
		return
	}
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		e.log.Error("marshal event payload", "error", err, "type", ev.Type)
		return
	}
	scope := "public"
	switch ev.Scope.Kind {
	case eventbus.ScopeRoom:
		scope = "room:" + ev.Scope.RoomID
	case eventbus.ScopePlayer:
		scope = "player:" + ev.Scope.PlayerID
	}
	record := EventRecord{
		GameID: e.gameRow, Sequence: ev.Sequence, Type: ev.Type, Scope: scope, Payload: payload,
	}
	if err := e.db.Create(&record).Error; err != nil {
		e.log.Error("persist event", "error", err, "type", ev.Type)
	}
}

// DatabaseURLFromEnv reads DATABASE_URL directly, for callers that have not
// already loaded config.Config (e.g. cmd/migrate).
func DatabaseURLFromEnv() string { return os.Getenv("DATABASE_URL") }
