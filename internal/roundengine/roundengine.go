// Package roundengine owns everything that happens once a game enters
// PhaseRound (§4.4): leader elections (majority, tie, and random
// resolution), usurpation, abdication, re-votes, hostage selection and
// locking, the automatic parlay, hostage exchange, and the round and
// parlay timers that drive it all. It never decides the top-level phase
// transition itself — that is statemachine's job — but it is the only
// caller that requests round_complete, and it owns the scheduled timer
// callbacks described in §9 ("scheduled callbacks in place of sleep").
package roundengine

import (
	"crypto/rand"
	"math/big"
	"time"

	"github.com/tabletop-engine/hostage-exchange/internal/eventbus"
	"github.com/tabletop-engine/hostage-exchange/internal/events"
	"github.com/tabletop-engine/hostage-exchange/internal/gamestore"
	"github.com/tabletop-engine/hostage-exchange/internal/model"
	"github.com/tabletop-engine/hostage-exchange/internal/statemachine"
)

const parlayDuration = 30 * time.Second

// HostageCount returns H(playerCount, round), the single source of truth
// for the §4.4.1 hostage-selection table. Both the Validator and the
// Engine call this; the table is never duplicated.
func HostageCount(playerCount, round int) int {
	var base int
	switch {
	case playerCount >= 22:
		base = 3
	case playerCount >= 11:
		base = 2
	default:
		base = 1
	}
	reduction := round - 1
	if reduction < 0 {
		reduction = 0
	}
	h := base - reduction
	if h < 1 {
		h = 1
	}
	return h
}

// JournalProvider resolves the per-game event journal. The Controller owns
// journal lifetime (one per live game); the Engine only needs to look one
// up when it must publish.
type JournalProvider interface {
	Journal(model.GameID) (*eventbus.Journal, bool)
}

// Engine is stateless aside from its collaborators; every method that
// mutates a Game expects to be called from inside a gamestore.UpdateGame
// closure (directly, or indirectly via a scheduled timer callback that
// re-enters the store itself).
type Engine struct {
	store    *gamestore.Store
	journals JournalProvider
	sm       *statemachine.Machine
	idFunc   func() string
	now      func() time.Time

	// onRoundStart and onResolution let the Controller hook the ability
	// engine's round-start and resolution triggers into round transitions
	// the Engine itself drives (e.g. a timer-fired hostage exchange
	// advancing straight into round k+1 or into RESOLUTION), not only
	// transitions the Controller calls StartRound/EndRound for directly.
	onRoundStart func(g *model.Game)
	onResolution func(g *model.Game)
}

func New(store *gamestore.Store, journals JournalProvider, sm *statemachine.Machine, idFunc func() string, now func() time.Time) *Engine {
	return &Engine{store: store, journals: journals, sm: sm, idFunc: idFunc, now: now}
}

// SetHooks wires the Controller's ability-trigger callbacks. onRoundStart
// fires after every round (including ones the Engine begins itself after
// a hostage exchange); onResolution fires once when the state machine
// reaches RESOLUTION.
func (e *Engine) SetHooks(onRoundStart, onResolution func(g *model.Game)) {
	e.onRoundStart = onRoundStart
	e.onResolution = onResolution
}

func (e *Engine) publish(g *model.Game, eventType string, scope eventbus.Scope, payload any) {
	j, ok := e.journals.Journal(g.ID)
	if !ok {
		return
	}
	j.Publish(e.now(), eventType, scope, payload)
}

// StartRound begins round k per §4.4.1 "Start of round k": clears every
// per-round room field, and either arms the round timer without starting
// it (round 1, awaiting both leaders) or starts it immediately (round >1).
func (e *Engine) StartRound(g *model.Game, round int, duration time.Duration) {
	g.CurrentRound = round
	g.Phase = model.PhaseRound
	for _, roomID := range []model.RoomID{model.RoomA, model.RoomB} {
		room := g.Rooms[roomID]
		room.ClearRoundState()
		room.LeaderVotingActive = round == 1
	}
	if round == 1 {
		g.RoomTimer.Prepare(duration)
	} else {
		now := e.now()
		g.RoomTimer.Start(now, duration)
		e.scheduleRoundTimer(g, now, duration)
	}
	g.Touch(e.now())
	e.publish(g, events.TypeRoundStarted, eventbus.Public(), events.RoundStartedPayload{
		Round: round, Duration: int(duration / time.Second),
	})
	if e.onRoundStart != nil {
		e.onRoundStart(g)
	}
}

// --- Leader election ---

// CastLeaderVote records voterID's vote for candidateID in roomID and
// resolves the ballot once every room member has voted (§4.4.1 "Leader
// election").
func (e *Engine) CastLeaderVote(g *model.Game, roomID model.RoomID, voterID, candidateID model.PlayerID) error {
	room := g.Rooms[roomID]
	room.LeaderVotes[voterID] = candidateID
	g.Touch(e.now())
	e.publish(g, events.TypeVoteCast, eventbus.Room(string(roomID)), events.VoteCastPayload{
		RoomID: string(roomID), VoterID: string(voterID), CandidateID: string(candidateID), Kind: "leader",
	})

	if len(room.LeaderVotes) < len(room.Members) {
		return nil
	}
	return e.resolveLeaderBallot(g, roomID)
}

func (e *Engine) resolveLeaderBallot(g *model.Game, roomID model.RoomID) error {
	room := g.Rooms[roomID]
	tally := make(map[model.PlayerID]int)
	for _, candidate := range room.LeaderVotes {
		tally[candidate]++
	}
	maxVotes := 0
	for _, n := range tally {
		if n > maxVotes {
			maxVotes = n
		}
	}
	var winners []model.PlayerID
	for candidate, n := range tally {
		if n == maxVotes {
			winners = append(winners, candidate)
		}
	}

	if len(winners) == 1 {
		return e.electLeader(g, roomID, winners[0], "majority", 0)
	}

	room.LeaderVotingTieCount++
	if room.LeaderVotingTieCount >= 3 {
		winner, err := randomChoice(winners)
		if err != nil {
			return err
		}
		return e.electLeader(g, roomID, winner, "random", room.LeaderVotingTieCount)
	}

	tied := make([]string, len(winners))
	for i, w := range winners {
		tied[i] = string(w)
	}
	room.LeaderVotes = make(map[model.PlayerID]model.PlayerID)
	g.Touch(e.now())
	e.publish(g, events.TypeVoteTied, eventbus.Room(string(roomID)), events.VoteTiedPayload{
		RoomID: string(roomID), TieCount: room.LeaderVotingTieCount, Candidate: tied,
	})
	return nil
}

func randomChoice(candidates []model.PlayerID) (model.PlayerID, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(candidates))))
	if err != nil {
		return "", err
	}
	return candidates[n.Int64()], nil
}

func (e *Engine) electLeader(g *model.Game, roomID model.RoomID, newLeader model.PlayerID, method string, tieCount int) error {
	room := g.Rooms[roomID]
	if room.LeaderID != "" {
		if old, ok := g.Players[room.LeaderID]; ok {
			old.IsLeader = false
			old.CanBeHostage = true
		}
	}
	if p, ok := g.Players[newLeader]; ok {
		p.IsLeader = true
		p.CanBeHostage = false
	}
	room.LeaderID = newLeader
	room.LeaderVotes = make(map[model.PlayerID]model.PlayerID)
	room.LeaderVotingTieCount = 0
	room.LeaderVotingActive = false

	now := e.now()
	g.Touch(now)
	e.publish(g, events.TypeLeaderElected, eventbus.Room(string(roomID)), events.LeaderElectedPayload{
		RoomID: string(roomID), LeaderID: string(newLeader), Method: method, TieCount: tieCount,
	})

	if g.CurrentRound == 1 && bothRoomsHaveLeader(g) && g.RoomTimer.State == model.TimerPaused {
		g.RoomTimer.Start(now, g.RoomTimer.Duration)
		e.scheduleRoundTimer(g, now, g.RoomTimer.Duration)
		e.publish(g, events.TypeGameResumed, eventbus.Public(), events.GameResumedPayload{
			Reason: "both leaders elected",
		})
	} else if g.RoomTimer.State == model.TimerPaused && !room.LeaderVotingActive && allRoomsVotingQuiet(g) {
		// A round>1 re-vote concluded; resume the timer it paused (§4.4.1
		// "Elect": "if the election concluded while the timer was paused
		// for a re-vote, resume the timer").
		g.RoomTimer.Resume(now)
		e.scheduleRoundTimer(g, now, g.RoomTimer.RemainingAt(now))
	}
	return nil
}

func bothRoomsHaveLeader(g *model.Game) bool {
	return g.Rooms[model.RoomA].LeaderID != "" && g.Rooms[model.RoomB].LeaderID != ""
}

func allRoomsVotingQuiet(g *model.Game) bool {
	return !g.Rooms[model.RoomA].LeaderVotingActive && !g.Rooms[model.RoomB].LeaderVotingActive
}

// InitiateNewLeaderVote starts a re-vote in roomID (round > 1 only; the
// Validator enforces the round check). Pauses the round timer.
func (e *Engine) InitiateNewLeaderVote(g *model.Game, roomID model.RoomID, requestedBy model.PlayerID) {
	room := g.Rooms[roomID]
	now := e.now()
	g.RoomTimer.Pause(now)
	room.LeaderVotingActive = true
	room.LeaderVotes = make(map[model.PlayerID]model.PlayerID)
	room.LeaderVotingTieCount = 0
	g.Touch(now)
	e.publish(g, events.TypeNewLeaderVoteCalled, eventbus.Room(string(roomID)), events.NewLeaderVoteCalledPayload{
		RoomID: string(roomID), RequestedBy: string(requestedBy),
	})
}

// CastUsurpVote records a usurpation vote and promotes the candidate once
// the vote count reaches floor(roomSize/2)+1 (§4.4.1 "Usurpation").
func (e *Engine) CastUsurpVote(g *model.Game, roomID model.RoomID, voterID, candidateID model.PlayerID) {
	room := g.Rooms[roomID]
	room.UsurpVotes[voterID] = candidateID
	g.Touch(e.now())
	e.publish(g, events.TypeVoteCast, eventbus.Room(string(roomID)), events.VoteCastPayload{
		RoomID: string(roomID), VoterID: string(voterID), CandidateID: string(candidateID), Kind: "usurp",
	})

	tally := make(map[model.PlayerID][]model.PlayerID)
	for voter, candidate := range room.UsurpVotes {
		tally[candidate] = append(tally[candidate], voter)
	}
	threshold := len(room.Members)/2 + 1
	for candidate, voters := range tally {
		if len(voters) < threshold {
			continue
		}
		oldLeader := room.LeaderID
		if p, ok := g.Players[oldLeader]; ok {
			p.IsLeader = false
			p.CanBeHostage = true
		}
		if p, ok := g.Players[candidate]; ok {
			p.IsLeader = true
			p.CanBeHostage = false
			p.UsurpedLeadersCount++
		}
		room.LeaderID = candidate
		room.UsurpVotes = make(map[model.PlayerID]model.PlayerID)

		usurperIDs := make([]string, len(voters))
		for i, v := range voters {
			usurperIDs[i] = string(v)
		}
		g.Touch(e.now())
		e.publish(g, events.TypeLeaderUsurped, eventbus.Room(string(roomID)), events.LeaderUsurpedPayload{
			RoomID: string(roomID), OldLeader: string(oldLeader), NewLeader: string(candidate), UsurperIDs: usurperIDs,
		})
		return
	}
}

// Abdicate transfers leadership immediately to successorID (§4.4.1
// "Abdication"). Authorization (only the current leader may call this) is
// the Validator's responsibility.
func (e *Engine) Abdicate(g *model.Game, roomID model.RoomID, successorID model.PlayerID) {
	room := g.Rooms[roomID]
	oldLeader := room.LeaderID
	if p, ok := g.Players[oldLeader]; ok {
		p.IsLeader = false
		p.CanBeHostage = true
	}
	if p, ok := g.Players[successorID]; ok {
		p.IsLeader = true
		p.CanBeHostage = false
	}
	room.LeaderID = successorID
	g.Touch(e.now())
	e.publish(g, events.TypeLeaderAbdicated, eventbus.Room(string(roomID)), events.LeaderAbdicatedPayload{
		RoomID: string(roomID), OldLeader: string(oldLeader), Successor: string(successorID),
	})
}

// --- Hostage selection, parlay, exchange ---

// SelectHostage toggles targetID's hostage-candidate status in roomID and
// publishes the resulting count (§4.4.1 "Hostage selection"). The
// Validator has already enforced the limit and room-membership checks.
func (e *Engine) SelectHostage(g *model.Game, roomID model.RoomID, targetID model.PlayerID) {
	room := g.Rooms[roomID]
	selected := room.ToggleHostageCandidate(targetID)
	required := HostageCount(g.PlayerCount(), g.CurrentRound)
	g.Touch(e.now())
	e.publish(g, events.TypeHostageSelected, eventbus.Room(string(roomID)), events.HostageSelectedPayload{
		RoomID: string(roomID), TargetID: string(targetID), Selected: selected,
		Count: len(room.HostageCandidates), Required: required,
	})
}

// LockHostages locks roomID's hostage candidates and, once both rooms are
// locked, begins the parlay (§4.4.1 "Parlay").
func (e *Engine) LockHostages(g *model.Game, roomID model.RoomID) {
	room := g.Rooms[roomID]
	room.HostagesLocked = true
	locked := make([]string, len(room.HostageCandidates))
	for i, id := range room.HostageCandidates {
		locked[i] = string(id)
	}
	g.Touch(e.now())
	e.publish(g, events.TypeHostagesLocked, eventbus.Room(string(roomID)), events.HostagesLockedPayload{
		RoomID: string(roomID), Locked: locked,
	})

	if g.Rooms[model.RoomA].HostagesLocked && g.Rooms[model.RoomB].HostagesLocked {
		e.startParlay(g)
	}
}

func (e *Engine) startParlay(g *model.Game) {
	now := e.now()
	g.RoomTimer.Stop()
	g.ParlayActive = true
	g.ParlayTimer.Start(now, parlayDuration)
	g.Touch(now)
	e.publish(g, events.TypeParlayStarted, eventbus.Public(), events.ParlayStartedPayload{
		LeaderA: string(g.Rooms[model.RoomA].LeaderID),
		LeaderB: string(g.Rooms[model.RoomB].LeaderID),
	})
	e.scheduleParlayTimer(g, now, parlayDuration)
}

// ExpireRoundTimer handles round-timer expiry (§4.4.1 "Round-timer
// expiry"): pauses play for hostage selection. It is a no-op if the timer
// is not currently running (a stale callback, or one already superseded).
func (e *Engine) ExpireRoundTimer(g *model.Game) {
	if g.RoomTimer.State != model.TimerRunning {
		return
	}
	g.RoomTimer.Stop()
	g.Paused = true
	g.PauseReason = "hostage selection phase"
	g.Touch(e.now())
	e.publish(g, events.TypeGamePaused, eventbus.Public(), events.GamePausedPayload{Reason: g.PauseReason})
}

// ExpireParlayTimer performs the hostage exchange (§4.4.1 "Hostage
// exchange") and then ends the round. A no-op if parlay is not active.
func (e *Engine) ExpireParlayTimer(g *model.Game) {
	if !g.ParlayActive {
		return
	}
	now := e.now()
	g.ParlayTimer.Stop()
	g.ParlayActive = false
	g.Touch(now)
	e.publish(g, events.TypeParlayEnded, eventbus.Public(), events.ParlayEndedPayload{})

	roomA, roomB := g.Rooms[model.RoomA], g.Rooms[model.RoomB]
	fromAToB := e.exchangeRoom(g, model.RoomA, roomA, model.RoomB)
	fromBToA := e.exchangeRoom(g, model.RoomB, roomB, model.RoomA)

	g.Touch(e.now())
	e.publish(g, events.TypeHostagesExchanged, eventbus.Public(), events.HostagesExchangedPayload{
		FromAToB: toStrings(fromAToB), FromBToA: toStrings(fromBToA),
	})

	roomA.HostageCandidates = nil
	roomA.HostagesLocked = false
	roomB.HostageCandidates = nil
	roomB.HostagesLocked = false
	g.Paused = false
	g.PauseReason = ""

	e.EndRound(g, "HOSTAGES_EXCHANGED")
}

// exchangeRoom moves from's locked hostage candidates into destRoomID,
// returning the ids moved.
func (e *Engine) exchangeRoom(g *model.Game, fromRoomID model.RoomID, from *model.Room, destRoomID model.RoomID) []model.PlayerID {
	moved := append([]model.PlayerID(nil), from.HostageCandidates...)
	dest := g.Rooms[destRoomID]
	for _, id := range moved {
		from.RemoveMember(id)
		dest.Members = append(dest.Members, id)
		if p, ok := g.Players[id]; ok {
			p.CurrentRoom = destRoomID
			p.HasRoom = true
			p.WasSentAsHostage = true
		}
	}
	return moved
}

func toStrings(ids []model.PlayerID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

// RoundOutcome reports what happened when a round ended, so the Controller
// knows whether to begin another round or invoke the win-condition
// evaluator.
type RoundOutcome struct {
	Resolved  bool // true once the machine transitions to RESOLUTION
	NextRound int
}

// EndRound requests round_complete from the state machine and, if the
// result is another round, begins it immediately; otherwise it moves the
// game to RESOLUTION and calls the onResolution hook, which the Controller
// wires to its win-condition evaluator (§4.4.1 "End round", §4.7).
func (e *Engine) EndRound(g *model.Game, reason string) RoundOutcome {
	finishedRound := g.CurrentRound
	g.Touch(e.now())
	e.publish(g, events.TypeRoundEnded, eventbus.Public(), events.RoundEndedPayload{
		Round: finishedRound, Reason: reason,
	})

	decision := e.sm.Evaluate(g, model.TriggerRoundComplete)
	if !decision.OK() {
		return RoundOutcome{}
	}
	g.Phase = decision.Next
	g.Touch(e.now())

	if decision.Next == model.PhaseRound {
		duration := roundDuration(g, decision.NextRound)
		e.StartRound(g, decision.NextRound, duration)
		return RoundOutcome{NextRound: decision.NextRound}
	}
	if e.onResolution != nil {
		e.onResolution(g)
	}
	return RoundOutcome{Resolved: true}
}

func roundDuration(g *model.Game, round int) time.Duration {
	idx := round - 1
	if idx >= 0 && idx < len(g.Config.RoundDurations) {
		return g.Config.RoundDurations[idx]
	}
	if len(g.Config.RoundDurations) > 0 {
		return g.Config.RoundDurations[len(g.Config.RoundDurations)-1]
	}
	return 5 * time.Minute
}

// --- Scheduled callbacks ---
//
// Timers are re-armed with time.AfterFunc; the callback re-enters the
// owning game through Store.UpdateGame exactly like any externally
// submitted command (§9 "scheduled callbacks in place of sleep"). Each
// callback captures the absolute expiry instant it was scheduled for and
// re-checks the timer's live state and epoch before acting, so a late
// fire after a stop, restart, or pause is a silent no-op (§4.4.2).

func (e *Engine) scheduleRoundTimer(g *model.Game, scheduledAt time.Time, duration time.Duration) {
	gameID := g.ID
	fireEpoch := scheduledAt.Add(duration)
	time.AfterFunc(duration, func() {
		e.store.UpdateGame(gameID, func(g *model.Game) error {
			if g.RoomTimer.State != model.TimerRunning || !g.RoomTimer.StartEpoch.Add(g.RoomTimer.Duration).Equal(fireEpoch) {
				return nil
			}
			e.ExpireRoundTimer(g)
			return nil
		})
	})
	e.scheduleTimerTick(gameID, timerKindRound, fireEpoch)
}

func (e *Engine) scheduleParlayTimer(g *model.Game, scheduledAt time.Time, duration time.Duration) {
	gameID := g.ID
	fireEpoch := scheduledAt.Add(duration)
	time.AfterFunc(duration, func() {
		e.store.UpdateGame(gameID, func(g *model.Game) error {
			if !g.ParlayActive || g.ParlayTimer.State != model.TimerRunning || !g.ParlayTimer.StartEpoch.Add(g.ParlayTimer.Duration).Equal(fireEpoch) {
				return nil
			}
			e.ExpireParlayTimer(g)
			return nil
		})
	})
	e.scheduleTimerTick(gameID, timerKindParlay, fireEpoch)
}

// timerKind picks which of a game's two timers a scheduled tick watches.
type timerKind int

const (
	timerKindRound timerKind = iota
	timerKindParlay
)

func timerFor(g *model.Game, kind timerKind) *model.Timer {
	if kind == timerKindParlay {
		return &g.ParlayTimer
	}
	return &g.RoomTimer
}

// scheduleTimerTick re-arms itself once a second for as long as fireEpoch's
// timer is still the one running (§4.4 "publishes a TIMER_UPDATE event
// roughly once per second"). It piggybacks on the same epoch-guard idiom as
// scheduleRoundTimer/scheduleParlayTimer: a pause, stop, or restart changes
// the timer's live epoch, so a stale tick just declines to publish and does
// not reschedule itself, letting the chain die out on its own.
func (e *Engine) scheduleTimerTick(gameID model.GameID, kind timerKind, fireEpoch time.Time) {
	time.AfterFunc(time.Second, func() {
		e.store.UpdateGame(gameID, func(g *model.Game) error {
			timer := timerFor(g, kind)
			if timer.State != model.TimerRunning || !timer.StartEpoch.Add(timer.Duration).Equal(fireEpoch) {
				return nil
			}
			now := e.now()
			remaining := timer.RemainingAt(now)
			e.publish(g, events.TypeTimerUpdate, eventbus.Public(), events.TimerUpdatePayload{
				RemainingSeconds: remaining.Seconds(),
				DurationSeconds:  timer.Duration.Seconds(),
				State:            timer.State.String(),
			})
			e.scheduleTimerTick(gameID, kind, fireEpoch)
			return nil
		})
	})
}
