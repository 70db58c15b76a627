// Package validator is the phase-indexed gate of §4.3: every externally
// submitted command passes through here before the Controller touches a
// Game. Errors are structured values (§7), not plain error strings, so a
// transport adapter can surface a code, a human message, and a suggestion
// without string-matching.
package validator

import (
	"fmt"

	"github.com/tabletop-engine/hostage-exchange/internal/catalogue"
	"github.com/tabletop-engine/hostage-exchange/internal/command"
	"github.com/tabletop-engine/hostage-exchange/internal/model"
	"github.com/tabletop-engine/hostage-exchange/internal/roundengine"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Code is the closed set of validation error codes named in §7.
type Code string

const (
	CodeUnauthorized         Code = "UNAUTHORIZED"
	CodeInvalidState         Code = "INVALID_STATE"
	CodeMissingTarget        Code = "MISSING_TARGET"
	CodeWrongRoom            Code = "WRONG_ROOM"
	CodeLimitReached         Code = "LIMIT_REACHED"
	CodeMissingDependency    Code = "MISSING_DEPENDENCY"
	CodeMutuallyExclusive    Code = "MUTUALLY_EXCLUSIVE"
	CodeRoleCountMismatch    Code = "ROLE_COUNT_MISMATCH"
	CodeTiedVote             Code = "TIED_VOTE"
	CodeInsufficientPlayers  Code = "INSUFFICIENT_PLAYERS"
	CodeTooManyPlayers       Code = "TOO_MANY_PLAYERS"
	CodeGameNotFound         Code = "GAME_NOT_FOUND"
	CodePlayerNotFound       Code = "PLAYER_NOT_FOUND"
	CodeTeamImbalance        Code = "TEAM_IMBALANCE"
	CodeUnknownCommand       Code = "UNKNOWN_COMMAND"
)

// Error is the structured value of §7.
type Error struct {
	Code       Code
	Message    string
	Severity   Severity
	Suggestion string
	Context    map[string]any
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

func newError(code Code, msg string, suggestion string) *Error {
	return &Error{Code: code, Message: msg, Severity: SeverityError, Suggestion: suggestion}
}

func newWarning(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, Severity: SeverityWarning}
}

// Result is the outcome of validating one command: Errors must be empty
// for the command to proceed; Warnings are forwarded to the caller but do
// not block (§4.3, §7).
type Result struct {
	Errors   []*Error
	Warnings []*Error
}

func (r Result) OK() bool { return len(r.Errors) == 0 }

// Predicate is one phase-scoped check over (game, command).
type Predicate func(g *model.Game, cmd command.Command) *Error

// Validator holds the phase-indexed predicate registry plus the
// catalogue handle needed for role-configuration checks.
type Validator struct {
	cat       *catalogue.Catalogue
	universal []Predicate
	byPhase   map[model.Phase][]Predicate
	byCommand map[command.Type][]Predicate
}

// New builds the validator described by §4.3. cat is used by the
// role-configuration rules; it may be nil if role-configuration commands
// will never be validated (e.g. in unit tests of unrelated phases).
func New(cat *catalogue.Catalogue) *Validator {
	v := &Validator{
		cat:       cat,
		byPhase:   make(map[model.Phase][]Predicate),
		byCommand: make(map[command.Type][]Predicate),
	}
	v.registerUniversal()
	v.registerRoomLock()
	v.registerRoleConfiguration()
	v.registerActionRequest()
	return v
}

func (v *Validator) registerUniversal() {
	v.universal = append(v.universal, func(g *model.Game, cmd command.Command) *Error {
		if cmd.PlayerID == "" {
			return nil // CREATE_GAME / JOIN_GAME precede player identity
		}
		if _, ok := g.Players[cmd.PlayerID]; !ok {
			return newError(CodePlayerNotFound, "player is not part of this game", "")
		}
		return nil
	})
}

func (v *Validator) onCommand(t command.Type, p Predicate) {
	v.byCommand[t] = append(v.byCommand[t], p)
}

// --- ROOM_LOCK ---

func (v *Validator) registerRoomLock() {
	v.onCommand(command.LockRoom, func(g *model.Game, cmd command.Command) *Error {
		if err := requireHost(g, cmd.PlayerID); err != nil {
			return err
		}
		n := g.PlayerCount()
		if n < 6 {
			return newError(CodeInsufficientPlayers, "at least 6 players are required to lock the room",
				fmt.Sprintf("invite %d more player(s)", 6-n))
		}
		if n > 30 {
			return newError(CodeTooManyPlayers, "at most 30 players may join a room",
				"split into a second game")
		}
		return nil
	})
	v.onCommand(command.UnlockRoom, func(g *model.Game, cmd command.Command) *Error {
		return requireHost(g, cmd.PlayerID)
	})
}

// --- ROLE_CONFIGURATION ---

func (v *Validator) registerRoleConfiguration() {
	roleCheck := func(g *model.Game, cmd command.Command) *Error {
		return requireHost(g, cmd.PlayerID)
	}
	v.onCommand(command.SelectRoles, roleCheck)
	v.onCommand(command.SetRounds, roleCheck)
	v.onCommand(command.ConfirmRoles, func(g *model.Game, cmd command.Command) *Error {
		if err := requireHost(g, cmd.PlayerID); err != nil {
			return err
		}
		return v.ValidateDeck(g)
	})
}

// ValidateDeck runs the deck-shape rules of §4.3 against the game's
// currently selected configuration. It is exported so the Controller can
// re-run it at CONFIRM_ROLES time without duplicating the rule set.
func (v *Validator) ValidateDeck(g *model.Game) *Error {
	roles := g.Config.SelectedRoles
	n := g.PlayerCount()
	want := n
	if g.Config.BuryCard {
		want = n + 1
	}
	if len(roles) != want {
		return newError(CodeRoleCountMismatch,
			fmt.Sprintf("deck has %d characters but %d are required", len(roles), want),
			"adjust the selected roles or the bury-card setting")
	}

	present := make(map[model.CharacterID]bool, len(roles))
	for _, id := range roles {
		present[id] = true
	}

	if v.cat != nil {
		for _, primary := range v.cat.PrimaryIDs() {
			if !present[primary] {
				return newError(CodeMissingDependency,
					fmt.Sprintf("deck must include the primary character %q", primary),
					"add the missing primary character")
			}
		}
		for _, id := range roles {
			ch, ok := v.cat.Lookup(id)
			if !ok {
				return newError(CodeMissingDependency, fmt.Sprintf("unknown character id %q", id), "")
			}
			for _, req := range ch.Requires {
				if !present[req] {
					return newError(CodeMissingDependency,
						fmt.Sprintf("%q requires %q to also be in the deck", id, req),
						fmt.Sprintf("add %q to the deck", req))
				}
			}
			for _, excluded := range ch.MutuallyExclusive {
				if present[excluded] {
					return newError(CodeMutuallyExclusive,
						fmt.Sprintf("%q and %q cannot both be in the deck", id, excluded),
						fmt.Sprintf("remove %q or %q", id, excluded))
				}
			}
		}
	}
	return nil
}

// DeckWarnings returns non-blocking warnings about the current deck
// configuration (team-balance, §4.3).
func (v *Validator) DeckWarnings(g *model.Game) []*Error {
	if v.cat == nil {
		return nil
	}
	var red, blue int
	for _, id := range g.Config.SelectedRoles {
		ch, ok := v.cat.Lookup(id)
		if !ok {
			continue
		}
		switch ch.Team {
		case model.TeamRed:
			red++
		case model.TeamBlue:
			blue++
		}
	}
	diff := red - blue
	if diff < 0 {
		diff = -diff
	}
	if diff > 2 {
		return []*Error{newWarning(CodeTeamImbalance,
			fmt.Sprintf("red/blue team counts are unbalanced (red=%d, blue=%d)", red, blue))}
	}
	return nil
}

// --- ACTION_REQUEST ---

func (v *Validator) registerActionRequest() {
	v.onCommand(command.StartGame, func(g *model.Game, cmd command.Command) *Error {
		return requireHost(g, cmd.PlayerID)
	})

	v.onCommand(command.NominateLeader, func(g *model.Game, cmd command.Command) *Error {
		p, _ := cmd.Payload.(command.NominateLeaderPayload)
		if err := requireRoomMember(g, cmd.PlayerID, p.RoomID); err != nil {
			return err
		}
		return requireRoomMember(g, p.CandidateID, p.RoomID)
	})

	v.onCommand(command.InitiateNewLeaderVote, func(g *model.Game, cmd command.Command) *Error {
		p, _ := cmd.Payload.(command.InitiateNewLeaderVotePayload)
		if err := requireRoomMember(g, cmd.PlayerID, p.RoomID); err != nil {
			return err
		}
		room := g.Rooms[p.RoomID]
		if room.LeaderID == "" {
			return newError(CodeInvalidState, "no leader is currently elected", "")
		}
		if room.LeaderVotingActive {
			return newError(CodeInvalidState, "a leader vote is already in progress", "")
		}
		if g.CurrentRound <= 1 {
			return newError(CodeInvalidState, "a re-vote cannot be requested during round 1", "")
		}
		return nil
	})

	v.onCommand(command.VoteUsurp, func(g *model.Game, cmd command.Command) *Error {
		p, _ := cmd.Payload.(command.VoteUsurpPayload)
		if err := requireRoomMember(g, cmd.PlayerID, p.RoomID); err != nil {
			return err
		}
		return requireRoomMember(g, p.CandidateID, p.RoomID)
	})

	v.onCommand(command.Abdicate, func(g *model.Game, cmd command.Command) *Error {
		p, _ := cmd.Payload.(command.AbdicatePayload)
		room := g.Rooms[p.RoomID]
		if room.LeaderID != cmd.PlayerID {
			return newError(CodeUnauthorized, "only the current leader may abdicate", "")
		}
		return requireRoomMember(g, p.SuccessorID, p.RoomID)
	})

	v.onCommand(command.SelectHostage, func(g *model.Game, cmd command.Command) *Error {
		p, _ := cmd.Payload.(command.SelectHostagePayload)
		room := g.Rooms[p.RoomID]
		if room.LeaderID != cmd.PlayerID {
			return newError(CodeUnauthorized, "only the current leader may select hostages", "")
		}
		if !room.HasMember(p.TargetID) {
			return newError(CodeWrongRoom, "hostage target must be a member of the leader's room", "")
		}
		if p.TargetID == room.LeaderID {
			return newError(CodeMissingTarget, "the leader cannot select themselves as a hostage", "")
		}
		required := roundengine.HostageCount(g.PlayerCount(), g.CurrentRound)
		if !room.IsHostageCandidate(p.TargetID) && len(room.HostageCandidates) >= required {
			return newError(CodeLimitReached, "hostage selection limit reached",
				"deselect a current candidate first")
		}
		return nil
	})

	v.onCommand(command.LockHostages, func(g *model.Game, cmd command.Command) *Error {
		p, _ := cmd.Payload.(command.LockHostagesPayload)
		room := g.Rooms[p.RoomID]
		if room.LeaderID != cmd.PlayerID {
			return newError(CodeUnauthorized, "only the current leader may lock hostages", "")
		}
		required := roundengine.HostageCount(g.PlayerCount(), g.CurrentRound)
		if len(room.HostageCandidates) != required {
			return newError(CodeInvalidState,
				fmt.Sprintf("exactly %d hostage(s) must be selected before locking", required), "")
		}
		return nil
	})

	cardActionCheck := func(targetFn func(cmd command.Command) model.PlayerID) Predicate {
		return func(g *model.Game, cmd command.Command) *Error {
			target := targetFn(cmd)
			initiatorRoom, ok := g.PlayerRoom(cmd.PlayerID)
			if !ok {
				return newError(CodeInvalidState, "you are not seated in a room", "")
			}
			if err := requireRoomMember(g, cmd.PlayerID, initiatorRoom); err != nil {
				return err
			}
			targetRoom, ok := g.PlayerRoom(target)
			if !ok || targetRoom != initiatorRoom {
				return newError(CodeWrongRoom, "target must be in the same room as the initiator", "")
			}
			return nil
		}
	}
	v.onCommand(command.CardShare, cardActionCheck(func(cmd command.Command) model.PlayerID {
		p, _ := cmd.Payload.(command.CardSharePayload)
		return p.TargetID
	}))
	v.onCommand(command.ColorShare, cardActionCheck(func(cmd command.Command) model.PlayerID {
		p, _ := cmd.Payload.(command.ColorSharePayload)
		return p.TargetID
	}))
	v.onCommand(command.PrivateReveal, cardActionCheck(func(cmd command.Command) model.PlayerID {
		p, _ := cmd.Payload.(command.RevealPayload)
		return p.TargetID
	}))
}

func requireHost(g *model.Game, playerID model.PlayerID) *Error {
	p, ok := g.Players[playerID]
	if !ok || !p.IsHost {
		return newError(CodeUnauthorized, "only the host may perform this action", "")
	}
	return nil
}

func requireRoomMember(g *model.Game, playerID model.PlayerID, roomID model.RoomID) *Error {
	room, ok := g.Rooms[roomID]
	if !ok || !room.HasMember(playerID) {
		return newError(CodeWrongRoom, "player is not a member of the specified room", "")
	}
	return nil
}

// legalPhases enumerates, for every command type, the phases in which it
// may be submitted (§6.1's "Legal phases" column). PhaseRound here means
// "any round"; commands legal only for round > 1 additionally check
// g.CurrentRound inside their predicate (see InitiateNewLeaderVote above).
var legalPhases = map[command.Type][]model.Phase{
	command.LockRoom:              {model.PhaseLobby},
	command.UnlockRoom:            {model.PhaseLocked},
	command.SelectRoles:           {model.PhaseLocked, model.PhaseRoleSelection},
	command.SetRounds:             {model.PhaseLocked, model.PhaseRoleSelection},
	command.ConfirmRoles:          {model.PhaseRoleSelection},
	command.StartGame:             {model.PhaseRoomAssignment},
	command.NominateLeader:        {model.PhaseRound},
	command.InitiateNewLeaderVote: {model.PhaseRound},
	command.VoteUsurp:             {model.PhaseRound},
	command.Abdicate:              {model.PhaseRound},
	command.SelectHostage:         {model.PhaseRound},
	command.LockHostages:          {model.PhaseRound},
	command.CardShare:             {model.PhaseRound},
	command.ColorShare:            {model.PhaseRound},
	command.PrivateReveal:         {model.PhaseRound},
	command.PublicReveal:          {model.PhaseRound},
	command.ActivateAbility:       {model.PhaseRound},
}

func legalInPhase(t command.Type, phase model.Phase) bool {
	phases, ok := legalPhases[t]
	if !ok {
		return true // LEAVE_GAME and the pre-game commands are legal anywhere/anonymously
	}
	for _, p := range phases {
		if p == phase {
			return true
		}
	}
	return false
}

// Validate runs the universal checks, the phase-legality check, and every
// predicate registered for cmd.Type, collecting all applicable errors and
// warnings (§4.3: "a command is accepted only if all applicable
// predicates return accept").
func (v *Validator) Validate(g *model.Game, cmd command.Command) Result {
	var res Result

	if g != nil && cmd.Type != command.LeaveGame {
		if !legalInPhase(cmd.Type, g.Phase) {
			res.Errors = append(res.Errors, newError(CodeInvalidState,
				fmt.Sprintf("%s is not legal in phase %s", cmd.Type, g.Phase), ""))
			return res
		}
	}

	for _, p := range v.universal {
		if g == nil {
			break
		}
		if err := p(g, cmd); err != nil {
			res.Errors = append(res.Errors, err)
		}
	}

	for _, p := range v.byCommand[cmd.Type] {
		if g == nil {
			continue
		}
		if err := p(g, cmd); err != nil {
			if err.Severity == SeverityWarning {
				res.Warnings = append(res.Warnings, err)
			} else {
				res.Errors = append(res.Errors, err)
			}
		}
	}

	return res
}
