// Package controller is the single public entry point described by §4.7:
// every externally submitted command funnels through Controller.Submit,
// which fetches the game, runs the Validator, applies the mutation
// (directly or by delegating to roundengine/statemachine), invokes the
// ability engine at RESOLUTION, and returns a typed Result. No other
// package is meant to be reached by a transport adapter.
package controller

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tabletop-engine/hostage-exchange/internal/ability"
	"github.com/tabletop-engine/hostage-exchange/internal/catalogue"
	"github.com/tabletop-engine/hostage-exchange/internal/command"
	"github.com/tabletop-engine/hostage-exchange/internal/config"
	"github.com/tabletop-engine/hostage-exchange/internal/events"
	"github.com/tabletop-engine/hostage-exchange/internal/eventbus"
	"github.com/tabletop-engine/hostage-exchange/internal/gamestore"
	"github.com/tabletop-engine/hostage-exchange/internal/model"
	"github.com/tabletop-engine/hostage-exchange/internal/roundengine"
	"github.com/tabletop-engine/hostage-exchange/internal/statemachine"
	"github.com/tabletop-engine/hostage-exchange/internal/validator"
)

// Observer lets an optional extension (e.g. the storage package's
// write-through mirror, §10.5) react to every successfully applied
// command without the Controller importing it.
type Observer interface {
	GameMutated(g *model.Game)
}

// Result is what Submit returns to the transport adapter: either success
// (optionally carrying warnings or a small response payload) or a
// structured validation/state error.
type Result struct {
	OK       bool
	Errors   []*validator.Error
	Warnings []*validator.Error
	Data     any
}

// Controller composes every core component. It is safe for concurrent use
// by many transport goroutines; all per-game serialization happens inside
// Store.UpdateGame.
type Controller struct {
	store *gamestore.Store
	cat   *catalogue.Catalogue
	sm    *statemachine.Machine
	val   *validator.Validator
	eng   *roundengine.Engine
	abl   *ability.Engine
	cfg   config.Config

	journalsMu sync.Mutex
	journals   map[model.GameID]*eventbus.Journal

	observersMu sync.Mutex
	observers   []Observer

	now func() time.Time
}

func New(store *gamestore.Store, cat *catalogue.Catalogue, cfg config.Config) *Controller {
	c := &Controller{
		store:    store,
		cat:      cat,
		sm:       statemachine.New(),
		val:      validator.New(cat),
		abl:      ability.New(cat),
		cfg:      cfg,
		journals: make(map[model.GameID]*eventbus.Journal),
		now:      func() time.Time { return time.Now().UTC() },
	}
	c.eng = roundengine.New(store, c, c.sm, newEventID, c.now)
	c.eng.SetHooks(
		func(g *model.Game) { c.fireAbilityTrigger(g, model.TriggerOnRoundStart) },
		func(g *model.Game) { c.resolveGame(g) },
	)
	return c
}

// Journal implements roundengine.JournalProvider.
func (c *Controller) Journal(id model.GameID) (*eventbus.Journal, bool) {
	c.journalsMu.Lock()
	defer c.journalsMu.Unlock()
	j, ok := c.journals[id]
	return j, ok
}

func (c *Controller) AddObserver(o Observer) {
	c.observersMu.Lock()
	defer c.observersMu.Unlock()
	c.observers = append(c.observers, o)
}

func (c *Controller) notifyObservers(g *model.Game) {
	c.observersMu.Lock()
	observers := append([]Observer(nil), c.observers...)
	c.observersMu.Unlock()
	for _, o := range observers {
		o.GameMutated(g)
	}
}

func newEventID() string { return uuid.NewString() }

func errResult(errs ...*validator.Error) Result {
	return Result{OK: false, Errors: errs}
}

// Submit is the only entry point a transport adapter calls. It is
// intentionally flat: look up the game (unless the command creates or
// joins one by code), validate, dispatch, publish, return.
func (c *Controller) Submit(gameID model.GameID, cmd command.Command) Result {
	if cmd.Type == command.CreateGame {
		result := c.createGame(cmd)
		if data, ok := result.Data.(map[string]string); ok && result.OK {
			if created, ok := c.store.Get(model.GameID(data["gameId"])); ok {
				c.notifyObservers(created)
			}
		}
		return result
	}

	g, ok := c.store.Get(gameID)
	if !ok {
		return errResult(&validator.Error{Code: validator.CodeGameNotFound, Message: "game not found", Severity: validator.SeverityError})
	}

	var result Result
	_, err := c.store.UpdateGame(gameID, func(g *model.Game) error {
		res := c.val.Validate(g, cmd)
		if !res.OK() {
			result = Result{OK: false, Errors: res.Errors, Warnings: res.Warnings}
			return nil
		}
		data, warnings, err := c.dispatch(g, cmd)
		if err != nil {
			result = errResult(&validator.Error{Code: validator.CodeInvalidState, Message: err.Error()})
			return nil
		}
		result = Result{OK: true, Warnings: append(res.Warnings, warnings...), Data: data}
		return nil
	})
	if err != nil {
		return errResult(&validator.Error{Code: validator.CodeGameNotFound, Message: err.Error()})
	}
	if result.OK {
		c.notifyObservers(g)
	}
	return result
}

// dispatch applies cmd's mutation. It runs inside Store.UpdateGame, so it
// is the sole writer for g at this instant (§5).
func (c *Controller) dispatch(g *model.Game, cmd command.Command) (any, []*validator.Error, error) {
	switch cmd.Type {
	case command.JoinGame:
		return nil, nil, c.joinGame(g, cmd)
	case command.LeaveGame:
		return nil, nil, c.leaveGame(g, cmd)
	case command.LockRoom:
		return nil, nil, c.lockRoom(g)
	case command.UnlockRoom:
		return nil, nil, c.unlockRoom(g)
	case command.SelectRoles:
		return nil, nil, c.selectRoles(g, cmd)
	case command.SetRounds:
		return nil, nil, c.setRounds(g, cmd)
	case command.ConfirmRoles:
		warnings, err := c.confirmRoles(g)
		return nil, warnings, err
	case command.StartGame:
		return nil, nil, c.startGame(g)
	case command.NominateLeader:
		p := cmd.Payload.(command.NominateLeaderPayload)
		return nil, nil, c.eng.CastLeaderVote(g, p.RoomID, cmd.PlayerID, p.CandidateID)
	case command.InitiateNewLeaderVote:
		p := cmd.Payload.(command.InitiateNewLeaderVotePayload)
		c.eng.InitiateNewLeaderVote(g, p.RoomID, cmd.PlayerID)
		return nil, nil, nil
	case command.VoteUsurp:
		p := cmd.Payload.(command.VoteUsurpPayload)
		c.eng.CastUsurpVote(g, p.RoomID, cmd.PlayerID, p.CandidateID)
		return nil, nil, nil
	case command.Abdicate:
		p := cmd.Payload.(command.AbdicatePayload)
		c.eng.Abdicate(g, p.RoomID, p.SuccessorID)
		return nil, nil, nil
	case command.SelectHostage:
		p := cmd.Payload.(command.SelectHostagePayload)
		c.eng.SelectHostage(g, p.RoomID, p.TargetID)
		return nil, nil, nil
	case command.LockHostages:
		p := cmd.Payload.(command.LockHostagesPayload)
		c.eng.LockHostages(g, p.RoomID)
		return nil, nil, nil
	case command.CardShare:
		p := cmd.Payload.(command.CardSharePayload)
		return nil, nil, c.cardShare(g, cmd.PlayerID, p.TargetID)
	case command.ColorShare:
		p := cmd.Payload.(command.ColorSharePayload)
		return nil, nil, c.colorShare(g, cmd.PlayerID, p.TargetID)
	case command.PrivateReveal:
		p := cmd.Payload.(command.RevealPayload)
		return nil, nil, c.reveal(g, cmd.PlayerID, p.TargetID, false)
	case command.PublicReveal:
		return nil, nil, c.reveal(g, cmd.PlayerID, "", true)
	case command.ActivateAbility:
		p := cmd.Payload.(command.ActivateAbilityPayload)
		return nil, nil, c.activateAbility(g, cmd.PlayerID, p)
	default:
		return nil, nil, fmt.Errorf("controller: unhandled command type %s", cmd.Type)
	}
}

func (c *Controller) publish(g *model.Game, eventType string, scope eventbus.Scope, payload any) {
	j, ok := c.Journal(g.ID)
	if !ok {
		return
	}
	j.Publish(c.now(), eventType, scope, payload)
}

// --- Lobby & lifecycle ---

func (c *Controller) createGame(cmd command.Command) Result {
	p, _ := cmd.Payload.(command.CreateGamePayload)
	code, err := c.store.NewCode()
	if err != nil {
		return errResult(&validator.Error{Code: validator.CodeInvalidState, Message: err.Error()})
	}
	gameID := model.GameID(uuid.NewString())
	hostID := model.PlayerID(uuid.NewString())
	now := c.now()
	g := model.NewGame(gameID, code, now, hostID)
	g.Players[hostID] = &model.Player{
		ID: hostID, Name: p.HostName, IsHost: true, Status: model.ConnConnected,
		ConnToken: uuid.NewString(), LastSeen: now, Alive: true,
	}

	j := eventbus.New(string(gameID), g, newEventID)
	c.journalsMu.Lock()
	c.journals[gameID] = j
	c.journalsMu.Unlock()

	c.store.Insert(g)
	j.Publish(now, events.TypeGameCreated, eventbus.Public(), events.GameCreatedPayload{Code: code, HostID: string(hostID)})

	return Result{OK: true, Data: map[string]string{
		"gameId": string(gameID), "code": code, "playerId": string(hostID), "connToken": g.Players[hostID].ConnToken,
	}}
}

func (c *Controller) joinGame(g *model.Game, cmd command.Command) error {
	p, _ := cmd.Payload.(command.JoinGamePayload)
	if g.Phase != model.PhaseLobby {
		return fmt.Errorf("game is not accepting new players")
	}
	if g.PlayerCount() >= c.cfg.MaxPlayers {
		return fmt.Errorf("game is full")
	}
	playerID := model.PlayerID(uuid.NewString())
	now := c.now()
	g.Players[playerID] = &model.Player{
		ID: playerID, Name: p.PlayerName, Status: model.ConnConnected,
		ConnToken: uuid.NewString(), LastSeen: now, Alive: true,
	}
	g.Touch(now)
	c.publish(g, events.TypePlayerJoined, eventbus.Public(), events.PlayerJoinedPayload{
		PlayerID: string(playerID), Name: p.PlayerName, IsHost: false,
	})
	return nil
}

func (c *Controller) leaveGame(g *model.Game, cmd command.Command) error {
	player, ok := g.Players[cmd.PlayerID]
	if !ok {
		return nil
	}
	now := c.now()
	if g.Phase == model.PhaseLobby {
		delete(g.Players, cmd.PlayerID)
	} else {
		player.Status = model.ConnDisconnected
		player.LastSeen = now
	}
	g.Touch(now)
	c.publish(g, events.TypePlayerLeft, eventbus.Public(), events.PlayerLeftPayload{PlayerID: string(cmd.PlayerID)})
	return nil
}

// Disconnect marks a player's socket as dropped without removing them from
// the roster (that is LEAVE_GAME's job, §4.7). It is called by the
// transport layer, not by a submitted command, so it reaches into the
// store directly rather than going through Submit/dispatch.
func (c *Controller) Disconnect(gameID model.GameID, playerID model.PlayerID) error {
	_, err := c.store.UpdateGame(gameID, func(g *model.Game) error {
		player, ok := g.Players[playerID]
		if !ok || player.Status == model.ConnDisconnected {
			return nil
		}
		player.Status = model.ConnDisconnected
		player.LastSeen = c.now()
		g.Touch(player.LastSeen)
		c.publish(g, events.TypePlayerDisconnected, eventbus.Public(), events.PlayerDisconnectedPayload{
			PlayerID: string(playerID),
		})
		return nil
	})
	return err
}

// Reconnect flips a previously dropped player's socket back to connected.
// When newToken is non-empty it also rotates the player's connection
// token, so a client that re-authenticated with a fresh token can't be
// impersonated by anyone holding the old one. A no-op (and no event) if
// the player was already connected, since a first connection isn't a
// reconnect.
func (c *Controller) Reconnect(gameID model.GameID, playerID model.PlayerID, newToken string) error {
	_, err := c.store.UpdateGame(gameID, func(g *model.Game) error {
		player, ok := g.Players[playerID]
		if !ok || player.Status == model.ConnConnected {
			return nil
		}
		player.Status = model.ConnConnected
		player.LastSeen = c.now()
		if newToken != "" {
			player.ConnToken = newToken
		}
		g.Touch(player.LastSeen)
		c.publish(g, events.TypePlayerReconnected, eventbus.Public(), events.PlayerReconnectedPayload{
			PlayerID: string(playerID),
		})
		return nil
	})
	return err
}

func (c *Controller) lockRoom(g *model.Game) error {
	decision := c.sm.Evaluate(g, model.TriggerLockRoom)
	if !decision.OK() {
		return fmt.Errorf("room cannot be locked in its current state")
	}
	g.Phase = decision.Next
	g.Touch(c.now())
	c.publish(g, events.TypeRoomLocked, eventbus.Public(), events.RoomLockedPayload{PlayerCount: g.PlayerCount()})
	return nil
}

func (c *Controller) unlockRoom(g *model.Game) error {
	decision := c.sm.Evaluate(g, model.TriggerUnlockRoom)
	if !decision.OK() {
		return fmt.Errorf("room cannot be unlocked in its current state")
	}
	g.Phase = decision.Next
	g.Touch(c.now())
	c.publish(g, events.TypeRoomUnlocked, eventbus.Public(), struct{}{})
	return nil
}

func (c *Controller) selectRoles(g *model.Game, cmd command.Command) error {
	p := cmd.Payload.(command.SelectRolesPayload)
	g.Config.SelectedRoles = p.Roles
	if g.Phase == model.PhaseLocked {
		decision := c.sm.Evaluate(g, model.TriggerStartRoleSelection)
		if decision.OK() {
			g.Phase = decision.Next
		}
	}
	g.Touch(c.now())
	c.publish(g, events.TypeRolesSelected, eventbus.Public(), events.RolesSelectedPayload{Count: len(p.Roles)})
	return nil
}

// setRounds re-derives RoundDurations from the default table whenever
// TotalRounds changes (§6.1 SET_ROUNDS open question, resolved in
// SPEC_FULL §6.1: the durations are never supplied independently by a
// client, only the round count).
func (c *Controller) setRounds(g *model.Game, cmd command.Command) error {
	p := cmd.Payload.(command.SetRoundsPayload)
	g.Config.TotalRounds = p.TotalRounds
	g.Config.RoundDurations = config.DefaultRoundDurations(p.TotalRounds)
	g.Touch(c.now())
	durationsSec := make([]int, len(g.Config.RoundDurations))
	for i, d := range g.Config.RoundDurations {
		durationsSec[i] = int(d / time.Second)
	}
	c.publish(g, events.TypeGameConfigUpdate, eventbus.Public(), events.ConfigUpdatedPayload{
		TotalRounds: g.Config.TotalRounds, RoundDurations: durationsSec, BuryCard: g.Config.BuryCard,
	})
	return nil
}

// confirmRoles implements §4.8 in full: role distribution immediately
// followed by room assignment, both inside the same command (the
// roles_distributed guard — every player has a role — is satisfied the
// instant distribution finishes, so there is no externally visible
// intermediate state where the cascading transition could be observed
// half-applied; see §4.4.2's cascading-transition note, generalized here).
func (c *Controller) confirmRoles(g *model.Game) ([]*validator.Error, error) {
	if err := c.val.ValidateDeck(g); err != nil {
		return nil, fmt.Errorf("%s", err.Message)
	}
	warnings := c.val.DeckWarnings(g)

	decision := c.sm.Evaluate(g, model.TriggerConfirmRoles)
	if !decision.OK() {
		return nil, fmt.Errorf("roles cannot be confirmed in the current state")
	}
	g.Phase = decision.Next

	if err := c.distributeRoles(g); err != nil {
		return nil, err
	}

	distDecision := c.sm.Evaluate(g, model.TriggerRolesDistributed)
	if !distDecision.OK() {
		return nil, fmt.Errorf("role distribution did not reach a consistent state")
	}
	g.Phase = distDecision.Next
	c.assignRooms(g)

	if len(warnings) > 0 {
		messages := make([]string, len(warnings))
		for i, w := range warnings {
			messages[i] = w.Message
		}
		c.publish(g, events.TypeDeckWarning, eventbus.Public(), events.DeckWarningPayload{Messages: messages})
	}
	return warnings, nil
}

func (c *Controller) distributeRoles(g *model.Game) error {
	roles := append([]model.CharacterID(nil), g.Config.SelectedRoles...)
	if err := shuffleCharacterIDs(roles); err != nil {
		return err
	}

	playerCount := g.PlayerCount()
	if g.Config.BuryCard && len(roles) > playerCount {
		g.Private.BuriedCard = roles[len(roles)-1]
		g.Private.HasBuriedCard = true
		roles = roles[:len(roles)-1]
	}

	playerIDs := make([]model.PlayerID, 0, len(g.Players))
	for id := range g.Players {
		playerIDs = append(playerIDs, id)
	}
	sortPlayerIDs(playerIDs)

	for i, playerID := range playerIDs {
		if i >= len(roles) {
			break
		}
		roleID := roles[i]
		p := g.Players[playerID]
		p.CurrentRole = roleID
		p.OriginalRole = roleID
		g.Private.RoleAssignments[playerID] = roleID

		ch, _ := c.cat.Lookup(roleID)
		g.Touch(c.now())
		c.publish(g, events.TypeRoleAssigned, eventbus.PlayerScope(string(playerID)), events.RoleAssignedPayload{
			PlayerID: string(playerID), CharacterID: string(roleID),
			Name: ch.Name, Description: ch.Description, Team: ch.Team.String(),
		})
	}
	return nil
}

func (c *Controller) assignRooms(g *model.Game) {
	playerIDs := make([]model.PlayerID, 0, len(g.Players))
	for id := range g.Players {
		playerIDs = append(playerIDs, id)
	}
	if err := shufflePlayerIDs(playerIDs); err != nil {
		sortPlayerIDs(playerIDs) // deterministic fallback; crypto/rand failure is effectively unreachable
	}

	mid := len(playerIDs) / 2
	roomA, roomB := g.Rooms[model.RoomA], g.Rooms[model.RoomB]
	roomA.Members = append([]model.PlayerID(nil), playerIDs[:mid]...)
	roomB.Members = append([]model.PlayerID(nil), playerIDs[mid:]...)

	for _, id := range roomA.Members {
		g.Players[id].CurrentRoom = model.RoomA
		g.Players[id].HasRoom = true
	}
	for _, id := range roomB.Members {
		g.Players[id].CurrentRoom = model.RoomB
		g.Players[id].HasRoom = true
	}

	g.Touch(c.now())
	c.publish(g, events.TypeRoomsAssigned, eventbus.Public(), events.RoomsAssignedPayload{
		RoomA: toStringIDs(roomA.Members), RoomB: toStringIDs(roomB.Members),
	})
}

func (c *Controller) startGame(g *model.Game) error {
	decision := c.sm.Evaluate(g, model.TriggerStartGame)
	if !decision.OK() {
		return fmt.Errorf("game cannot be started: rooms are not balanced")
	}
	duration := config.DefaultRoundDurations(g.Config.TotalRounds)[0]
	c.eng.StartRound(g, 1, duration)
	return nil
}

// --- Card actions ---

func (c *Controller) cardShare(g *model.Game, from, to model.PlayerID) error {
	fromPlayer, toPlayer := g.Players[from], g.Players[to]
	roomID, _ := g.PlayerRoom(from)
	sharedCard := fromPlayer.CurrentRole
	toPlayer.CollectedCards = append(toPlayer.CollectedCards, sharedCard)
	g.Private.CardShareHistory = append(g.Private.CardShareHistory, model.CardShareRecord{
		Round: g.CurrentRound, From: from, To: to, CharacterID: sharedCard, At: c.now(),
	})
	g.Touch(c.now())
	c.publish(g, events.TypeCardShared, eventbus.Room(string(roomID)), events.CardSharedPayload{
		RoomID: string(roomID), From: string(from), To: string(to),
	})
	c.fireAbilityTrigger(g, model.TriggerOnCardShare)
	return nil
}

func (c *Controller) colorShare(g *model.Game, from, to model.PlayerID) error {
	fromPlayer := g.Players[from]
	roomID, _ := g.PlayerRoom(from)
	ch, _ := c.cat.Lookup(fromPlayer.CurrentRole)
	g.Touch(c.now())
	c.publish(g, events.TypeColorShared, eventbus.Room(string(roomID)), events.ColorSharedPayload{
		RoomID: string(roomID), From: string(from), To: string(to), Team: ch.Team.String(),
	})
	return nil
}

// reveal publishes a REVEALED event. A private reveal goes only to the
// target player's scope and names the revealer's team; a public reveal
// (targetID is empty) goes to PUBLIC and must never leak raw role ids
// (§3.7, P3) — only the team colour, as RevealedPayload enforces.
func (c *Controller) reveal(g *model.Game, revealer, target model.PlayerID, public bool) error {
	revealerPlayer := g.Players[revealer]
	ch, _ := c.cat.Lookup(revealerPlayer.CurrentRole)
	g.Touch(c.now())

	scope := eventbus.PlayerScope(string(target))
	if public {
		scope = eventbus.Public()
	}
	c.publish(g, events.TypeRevealed, scope, events.RevealedPayload{
		RevealerID: string(revealer), TargetID: string(target), Public: public, Team: ch.Team.String(),
	})
	c.fireAbilityTrigger(g, model.TriggerOnReveal)
	return nil
}

// --- Abilities ---

func (c *Controller) activateAbility(g *model.Game, playerID model.PlayerID, p command.ActivateAbilityPayload) error {
	player := g.Players[playerID]
	ch, ok := c.cat.Lookup(player.CurrentRole)
	if !ok {
		return fmt.Errorf("no character assigned")
	}
	var found *model.Ability
	for i := range ch.Abilities {
		if ch.Abilities[i].ID == p.AbilityID {
			found = &ch.Abilities[i]
			break
		}
	}
	if found == nil {
		return fmt.Errorf("unknown ability %q", p.AbilityID)
	}
	g.Touch(c.now())
	c.publish(g, events.TypeAbilityActivated, eventbus.Public(), events.AbilityActivatedPayload{
		PlayerID: string(playerID), AbilityID: p.AbilityID, Targets: toStringIDs(p.Targets),
	})
	c.applyEffect(g, ability.Effect{Type: found.Effect, PlayerID: playerID, AbilityID: found.ID, Targets: p.Targets, Parameters: found.Parameters})
	return nil
}

// fireAbilityTrigger evaluates and applies every effect the ability
// engine returns for trigger, in order, each as its own versioned
// mutation (§4.7, §10.4).
func (c *Controller) fireAbilityTrigger(g *model.Game, trigger model.AbilityTrigger) {
	for _, eff := range c.abl.Evaluate(g, trigger) {
		c.applyEffect(g, eff)
	}
}

func (c *Controller) applyEffect(g *model.Game, eff ability.Effect) {
	switch eff.Type {
	case model.EffectApplyCondition:
		cond := eff.Parameters["condition"]
		for _, target := range eff.Targets {
			if p, ok := g.Players[target]; ok {
				p.Conditions = append(p.Conditions, cond)
			}
		}
		c.publishConditionChanges(g, eff.Targets, cond, true)
	case model.EffectRemoveCondition:
		cond := eff.Parameters["condition"]
		for _, target := range eff.Targets {
			if p, ok := g.Players[target]; ok {
				p.Conditions = removeString(p.Conditions, cond)
			}
		}
		c.publishConditionChanges(g, eff.Targets, cond, false)
	case model.EffectForceReveal:
		for _, target := range eff.Targets {
			c.reveal(g, eff.PlayerID, target, false)
		}
	case model.EffectSwapCard:
		if len(eff.Targets) == 2 {
			a, b := g.Players[eff.Targets[0]], g.Players[eff.Targets[1]]
			if a != nil && b != nil {
				a.CurrentRole, b.CurrentRole = b.CurrentRole, a.CurrentRole
			}
		}
	case model.EffectEndRoundEarly:
		c.eng.EndRound(g, "ABILITY_EFFECT")
	case model.EffectInstantWinForTeam:
		decision := c.sm.Evaluate(g, model.TriggerInstantWin)
		if decision.OK() {
			g.Phase = decision.Next
			g.Touch(c.now())
			c.resolveGame(g)
		}
	}
	g.Touch(c.now())
}

func (c *Controller) publishConditionChanges(g *model.Game, targets []model.PlayerID, cond string, added bool) {
	for _, target := range targets {
		c.publish(g, events.TypeConditionChanged, eventbus.PlayerScope(string(target)), events.ConditionChangedPayload{
			PlayerID: string(target), Condition: cond, Added: added,
		})
	}
}

// resolveGame runs the ability engine's RESOLUTION trigger, determines
// the winning team via the ability engine's generic evaluator, transitions
// to FINISHED, and publishes GAME_FINISHED (§4.7).
func (c *Controller) resolveGame(g *model.Game) {
	c.fireAbilityTrigger(g, model.TriggerOnResolution)
	team, winners := c.abl.ResolveWinner(g)
	decision := c.sm.Evaluate(g, model.TriggerWinConditionsResolved)
	if decision.OK() {
		g.Phase = decision.Next
	}
	g.Touch(c.now())
	c.publish(g, events.TypeGameFinished, eventbus.Public(), events.GameFinishedPayload{
		WinningTeam: team.String(), WinnerIDs: toStringIDs(winners),
	})
}

// --- helpers ---

func shuffleCharacterIDs(roles []model.CharacterID) error {
	for i := len(roles) - 1; i > 0; i-- {
		j, err := cryptoIntn(i + 1)
		if err != nil {
			return err
		}
		roles[i], roles[j] = roles[j], roles[i]
	}
	return nil
}

func shufflePlayerIDs(ids []model.PlayerID) error {
	for i := len(ids) - 1; i > 0; i-- {
		j, err := cryptoIntn(i + 1)
		if err != nil {
			return err
		}
		ids[i], ids[j] = ids[j], ids[i]
	}
	return nil
}

func cryptoIntn(n int) (int, error) {
	if n <= 0 {
		return 0, nil
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}

func sortPlayerIDs(ids []model.PlayerID) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j] < ids[j-1]; j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}
}

func toStringIDs(ids []model.PlayerID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

func removeString(s []string, v string) []string {
	out := s[:0]
	for _, x := range s {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}
