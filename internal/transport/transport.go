// Package transport binds the command surface (§6.1) to a concrete wire
// format over HTTP (command submission) and WebSocket (event delivery): a
// net/http.ServeMux built from "METHOD /path" patterns, a connection hub
// per live game with one connection per subscribed player, and player
// authentication via a bearer-style per-player token compared in constant
// time.
package transport

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	playground "github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"

	"github.com/tabletop-engine/hostage-exchange/internal/command"
	"github.com/tabletop-engine/hostage-exchange/internal/config"
	"github.com/tabletop-engine/hostage-exchange/internal/controller"
	"github.com/tabletop-engine/hostage-exchange/internal/eventbus"
	"github.com/tabletop-engine/hostage-exchange/internal/gamestore"
	"github.com/tabletop-engine/hostage-exchange/internal/model"
	"github.com/tabletop-engine/hostage-exchange/internal/validator"
)

// Server wires the Controller to the outside world.
type Server struct {
	ctrl  *controller.Controller
	store *gamestore.Store
	cfg   config.Config
	log   *slog.Logger

	hubsMu sync.Mutex
	hubs   map[model.GameID]*hub

	limiter  *tokenBucket
	validate *playground.Validate
}

func New(ctrl *controller.Controller, store *gamestore.Store, cfg config.Config, log *slog.Logger) *Server {
	return &Server{
		ctrl:     ctrl,
		store:    store,
		cfg:      cfg,
		log:      log,
		hubs:     make(map[model.GameID]*hub),
		limiter:  newTokenBucket(cfg.RateLimitBurst, cfg.RateLimitWindow),
		validate: playground.New(),
	}
}

// Handler builds the route table from method-qualified patterns registered
// on one mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/games", s.handleCreateGame)
	mux.HandleFunc("POST /api/games/{code}/join", s.handleJoinGame)
	mux.HandleFunc("POST /api/games/{code}/commands", s.handleCommand)
	mux.HandleFunc("GET /ws/games/{code}", s.handleWebsocket)
	return mux
}

func (s *Server) hubFor(gameID model.GameID) *hub {
	s.hubsMu.Lock()
	defer s.hubsMu.Unlock()
	h, ok := s.hubs[gameID]
	if !ok {
		h = newHub(s.log)
		s.hubs[gameID] = h
	}
	return h
}

// --- request/response envelopes ---

type errorResponse struct {
	Errors   []wireValidationError `json:"errors,omitempty"`
	Warnings []wireValidationError `json:"warnings,omitempty"`
}

type wireValidationError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Error("encode response", "error", err)
	}
}

func (s *Server) writeResult(w http.ResponseWriter, res controller.Result) {
	if !res.OK {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{
			Errors:   wireErrors(res.Errors),
			Warnings: wireErrors(res.Warnings),
		})
		return
	}
	s.writeJSON(w, http.StatusOK, struct {
		Data     any                   `json:"data,omitempty"`
		Warnings []wireValidationError `json:"warnings,omitempty"`
	}{Data: res.Data, Warnings: wireErrors(res.Warnings)})
}

func wireErrors(errs []*validator.Error) []wireValidationError {
	out := make([]wireValidationError, 0, len(errs))
	for _, e := range errs {
		out = append(out, wireValidationError{Code: string(e.Code), Message: e.Message, Suggestion: e.Suggestion})
	}
	return out
}

// --- create / join ---

type createGameRequest struct {
	HostName string `json:"hostName" validate:"required,min=1,max=32"`
}

func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	if !s.allow(r, "create") {
		s.writeJSON(w, http.StatusTooManyRequests, errorResponse{})
		return
	}
	var req createGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	res := s.ctrl.Submit("", command.Command{
		Type:      command.CreateGame,
		Payload:   command.CreateGamePayload{HostName: req.HostName},
		Timestamp: time.Now().UnixNano(),
	})
	s.writeResult(w, res)
}

type joinGameRequest struct {
	PlayerName string `json:"playerName" validate:"required,min=1,max=32"`
}

func (s *Server) handleJoinGame(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	if !s.allow(r, "join:"+code) {
		s.writeJSON(w, http.StatusTooManyRequests, errorResponse{})
		return
	}
	g, ok := s.store.GetByCode(code)
	if !ok {
		http.Error(w, "game not found", http.StatusNotFound)
		return
	}
	var req joinGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	res := s.ctrl.Submit(g.ID, command.Command{
		Type:      command.JoinGame,
		Payload:   command.JoinGamePayload{Code: code, PlayerName: req.PlayerName},
		Timestamp: time.Now().UnixNano(),
	})
	if !res.OK {
		s.writeResult(w, res)
		return
	}
	player, token, err := s.findJoinedPlayer(g, req.PlayerName)
	if err != nil {
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"gameId": string(g.ID), "playerId": string(player), "connToken": token,
	})
}

// findJoinedPlayer locates the most recently added player with the given
// name. JOIN_GAME does not return the new player id directly (it is a
// fire-and-forget mutation published as an event, §6.1), so the transport
// layer re-reads the game state it just caused to exist; this is safe only
// because names are not required unique and a race between two identically
// named joins is resolved arbitrarily, which is acceptable for a lobby
// nickname collision.
func (s *Server) findJoinedPlayer(g *model.Game, name string) (model.PlayerID, string, error) {
	live, ok := s.store.Get(g.ID)
	if !ok {
		return "", "", errors.New("game vanished")
	}
	var (
		latestID    model.PlayerID
		latestToken string
		latestSeen  time.Time
	)
	for id, p := range live.Players {
		if p.Name == name && p.LastSeen.After(latestSeen) {
			latestID = id
			latestToken = p.ConnToken
			latestSeen = p.LastSeen
		}
	}
	if latestID == "" {
		return "", "", errors.New("player not found after join")
	}
	return latestID, latestToken, nil
}

// --- command submission ---

type commandRequest struct {
	Type      command.Type    `json:"type" validate:"required"`
	PlayerID  string          `json:"playerId" validate:"required"`
	ConnToken string          `json:"connToken" validate:"required"`
	Payload   json.RawMessage `json:"payload"`
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	g, ok := s.store.GetByCode(code)
	if !ok {
		http.Error(w, "game not found", http.StatusNotFound)
		return
	}
	if !s.allow(r, "cmd:"+code) {
		s.writeJSON(w, http.StatusTooManyRequests, errorResponse{})
		return
	}

	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	playerID := model.PlayerID(req.PlayerID)
	if err := s.authenticate(g, playerID, req.ConnToken); err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	payload, err := decodePayload(req.Type, req.Payload)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	res := s.ctrl.Submit(g.ID, command.Command{
		Type:      req.Type,
		PlayerID:  playerID,
		Payload:   payload,
		Timestamp: time.Now().UnixNano(),
	})
	s.writeResult(w, res)
}

// authenticate binds a request to (gameId, playerId) via the per-player
// token handed out at CREATE_GAME/JOIN_GAME time, compared in constant time
// This domain has no session-cookie fallback, unlike some web UIs.
func (s *Server) authenticate(g *model.Game, playerID model.PlayerID, token string) error {
	live, ok := s.store.Get(g.ID)
	if !ok {
		return errors.New("game not found")
	}
	p, ok := live.Players[playerID]
	if !ok {
		return errors.New("player not found")
	}
	token = strings.TrimSpace(token)
	if subtle.ConstantTimeCompare([]byte(token), []byte(p.ConnToken)) != 1 {
		return errors.New("invalid player authentication")
	}
	return nil
}

// decodePayload unmarshals the command-specific JSON payload into the
// matching command.*Payload struct. command.Command.Payload is typed `any`
// because the wire format is one envelope for twenty-one distinct shapes
// (§6.1); Validator and Controller both expect the concrete struct, never
// the raw JSON, so binding happens once here at the edge.
func decodePayload(t command.Type, raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	switch t {
	case command.CreateGame:
		var p command.CreateGamePayload
		return p, json.Unmarshal(raw, &p)
	case command.JoinGame:
		var p command.JoinGamePayload
		return p, json.Unmarshal(raw, &p)
	case command.LeaveGame, command.LockRoom, command.UnlockRoom, command.ConfirmRoles, command.StartGame, command.PublicReveal:
		return nil, nil
	case command.SelectRoles:
		var p command.SelectRolesPayload
		return p, json.Unmarshal(raw, &p)
	case command.SetRounds:
		var p command.SetRoundsPayload
		return p, json.Unmarshal(raw, &p)
	case command.NominateLeader:
		var p command.NominateLeaderPayload
		return p, json.Unmarshal(raw, &p)
	case command.InitiateNewLeaderVote:
		var p command.InitiateNewLeaderVotePayload
		return p, json.Unmarshal(raw, &p)
	case command.VoteUsurp:
		var p command.VoteUsurpPayload
		return p, json.Unmarshal(raw, &p)
	case command.Abdicate:
		var p command.AbdicatePayload
		return p, json.Unmarshal(raw, &p)
	case command.SelectHostage:
		var p command.SelectHostagePayload
		return p, json.Unmarshal(raw, &p)
	case command.LockHostages:
		var p command.LockHostagesPayload
		return p, json.Unmarshal(raw, &p)
	case command.CardShare:
		var p command.CardSharePayload
		return p, json.Unmarshal(raw, &p)
	case command.ColorShare:
		var p command.ColorSharePayload
		return p, json.Unmarshal(raw, &p)
	case command.PrivateReveal:
		var p command.RevealPayload
		return p, json.Unmarshal(raw, &p)
	case command.ActivateAbility:
		var p command.ActivateAbilityPayload
		return p, json.Unmarshal(raw, &p)
	default:
		return nil, errors.New("unknown command type")
	}
}

// --- websocket event delivery ---

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWebsocket upgrades the connection, authenticates it against
// (gameId, playerId, token) query parameters, subscribes it to the game's
// journal with a Subscription scoped to the player's id and current room,
// replays any events the client missed since its last acked sequence, and
// streams new events thereafter (§4.5 reconnect replay).
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	g, ok := s.store.GetByCode(code)
	if !ok {
		http.NotFound(w, r)
		return
	}
	playerID := model.PlayerID(r.URL.Query().Get("playerId"))
	token := r.URL.Query().Get("token")
	if err := s.authenticate(g, playerID, token); err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.log.Info("ws connected", "game_id", string(g.ID), "player_id", string(playerID))
	if err := s.ctrl.Reconnect(g.ID, playerID, ""); err != nil {
		s.log.Warn("reconnect bookkeeping failed", "game_id", string(g.ID), "player_id", string(playerID), "error", err)
	}

	h := s.hubFor(g.ID)
	h.Add(playerID, conn)
	sub := &connSubscriber{hub: h, playerID: playerID, conn: conn, log: s.log}

	live, ok := s.store.Get(g.ID)
	if !ok {
		h.Remove(playerID, conn)
		_ = conn.Close()
		return
	}
	roomID := ""
	if rid, ok := live.PlayerRoom(playerID); ok {
		roomID = string(rid)
	}
	spec := eventbus.Subscription{ID: string(playerID), PlayerID: string(playerID), RoomID: roomID}

	j, ok := s.ctrl.Journal(g.ID)
	if !ok {
		h.Remove(playerID, conn)
		_ = conn.Close()
		return
	}
	j.Subscribe(spec, sub)

	var acked uint64
	if raw := r.URL.Query().Get("ackedSeq"); raw != "" {
		acked = parseUint64(raw)
	}
	for _, e := range j.ReplaySince(spec, acked) {
		sub.Deliver(e)
	}

	s.readLoop(g.ID, playerID, conn, j, spec)
}

// readLoop discards inbound frames other than pings; this transport only
// accepts mutations via the HTTP command endpoint, and drops the
// connection's registration on read error or close.
func (s *Server) readLoop(gameID model.GameID, playerID model.PlayerID, conn *websocket.Conn, j *eventbus.Journal, spec eventbus.Subscription) {
	h := s.hubFor(gameID)
	defer func() {
		j.Unsubscribe(spec.ID)
		h.Remove(playerID, conn)
		_ = conn.Close()
		if err := s.ctrl.Disconnect(gameID, playerID); err != nil {
			s.log.Warn("disconnect bookkeeping failed", "game_id", string(gameID), "player_id", string(playerID), "error", err)
		}
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func parseUint64(s string) uint64 {
	var v uint64
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		v = v*10 + uint64(r-'0')
	}
	return v
}

func (s *Server) allow(r *http.Request, key string) bool {
	if s.limiter == nil {
		return true
	}
	return s.limiter.Allow(r.RemoteAddr + ":" + key)
}
