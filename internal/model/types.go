// Package model defines the authoritative data shapes of a game: the
// aggregate root, its partitioned state, players, and the character
// catalogue's in-memory shape. Nothing in this package mutates state on
// its own; mutation is owned by gamestore/controller.
package model

import "time"

type PlayerID string

type GameID string

type CharacterID string

// TeamColor is the closed enum of character allegiances.
type TeamColor int

const (
	TeamBlue TeamColor = iota
	TeamRed
	TeamGrey
	TeamGreen
	TeamPurple
	TeamBlack
	TeamPink
)

func (t TeamColor) String() string {
	switch t {
	case TeamBlue:
		return "blue"
	case TeamRed:
		return "red"
	case TeamGrey:
		return "grey"
	case TeamGreen:
		return "green"
	case TeamPurple:
		return "purple"
	case TeamBlack:
		return "black"
	case TeamPink:
		return "pink"
	default:
		return "unknown"
	}
}

// CharacterClass distinguishes protagonist/antagonist singletons from the
// rest of the deck.
type CharacterClass int

const (
	ClassRegular CharacterClass = iota
	ClassPrimary
	ClassBackup
)

func (c CharacterClass) String() string {
	switch c {
	case ClassPrimary:
		return "primary"
	case ClassBackup:
		return "backup"
	default:
		return "regular"
	}
}

// RoomID names one of the two fixed rooms. It doubles as the eventbus room
// scope key so the round engine never needs a translation table.
type RoomID string

const (
	RoomA RoomID = "A"
	RoomB RoomID = "B"
)

// Other returns the counterpart room.
func (r RoomID) Other() RoomID {
	if r == RoomA {
		return RoomB
	}
	return RoomA
}

// Phase is the top-level state machine position. A Game in PhaseRound also
// carries CurrentRound to identify which round.
type Phase int

const (
	PhaseLobby Phase = iota
	PhaseLocked
	PhaseRoleSelection
	PhaseRoleDistribution
	PhaseRoomAssignment
	PhaseRound
	PhaseResolution
	PhaseFinished
)

func (p Phase) String() string {
	switch p {
	case PhaseLobby:
		return "LOBBY"
	case PhaseLocked:
		return "LOCKED"
	case PhaseRoleSelection:
		return "ROLE_SELECTION"
	case PhaseRoleDistribution:
		return "ROLE_DISTRIBUTION"
	case PhaseRoomAssignment:
		return "ROOM_ASSIGNMENT"
	case PhaseRound:
		return "ROUND"
	case PhaseResolution:
		return "RESOLUTION"
	case PhaseFinished:
		return "FINISHED"
	default:
		return "UNKNOWN"
	}
}

// Trigger names a requested transition. The state machine is the only
// component that decides whether a trigger is legal from the current phase.
type Trigger int

const (
	TriggerLockRoom Trigger = iota
	TriggerUnlockRoom
	TriggerStartRoleSelection
	TriggerCancelRoleSelection
	TriggerConfirmRoles
	TriggerRolesDistributed
	TriggerStartGame
	TriggerRoundComplete
	TriggerInstantWin
	TriggerWinConditionsResolved
)

func (t Trigger) String() string {
	switch t {
	case TriggerLockRoom:
		return "lock_room"
	case TriggerUnlockRoom:
		return "unlock_room"
	case TriggerStartRoleSelection:
		return "start_role_selection"
	case TriggerCancelRoleSelection:
		return "cancel_role_selection"
	case TriggerConfirmRoles:
		return "confirm_roles"
	case TriggerRolesDistributed:
		return "roles_distributed"
	case TriggerStartGame:
		return "start_game"
	case TriggerRoundComplete:
		return "round_complete"
	case TriggerInstantWin:
		return "instant_win"
	case TriggerWinConditionsResolved:
		return "win_conditions_resolved"
	default:
		return "unknown"
	}
}

// ConnectionStatus tracks a player's transport liveness.
type ConnectionStatus int

const (
	ConnConnected ConnectionStatus = iota
	ConnDisconnected
	ConnReconnecting
)

func (c ConnectionStatus) String() string {
	switch c {
	case ConnConnected:
		return "connected"
	case ConnDisconnected:
		return "disconnected"
	case ConnReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// KnownInfo is one piece of information a player has learned through a
// reveal or card share.
type KnownInfo struct {
	Label     string
	Detail    string
	LearnedAt time.Time
}

// Player is a game participant. It persists for the life of the game;
// disconnecting never destroys it (§3.8).
type Player struct {
	ID     PlayerID
	Name   string
	IsHost bool

	Status       ConnectionStatus
	ConnToken    string
	LastSeen     time.Time
	LastAckedSeq uint64

	CurrentRole  CharacterID
	OriginalRole CharacterID
	CurrentRoom  RoomID
	HasRoom      bool
	IsLeader     bool
	CanBeHostage bool
	Alive        bool

	Conditions       []string
	CollectedCards   []CharacterID
	KnownInformation []KnownInfo

	WasSentAsHostage    bool
	UsurpedLeadersCount int
}

// Room is the per-room slice of GameState (§3.3).
type Room struct {
	Members              []PlayerID
	LeaderID             PlayerID
	LeaderVotes          map[PlayerID]PlayerID
	UsurpVotes           map[PlayerID]PlayerID
	LeaderVotingActive   bool
	LeaderVotingTieCount int
	HostageCandidates    []PlayerID
	HostagesLocked       bool
	ParlayComplete       bool
}

func NewRoom() *Room {
	return &Room{
		LeaderVotes: make(map[PlayerID]PlayerID),
		UsurpVotes:  make(map[PlayerID]PlayerID),
	}
}

// HasMember reports whether playerID is currently seated in the room.
func (r *Room) HasMember(playerID PlayerID) bool {
	for _, id := range r.Members {
		if id == playerID {
			return true
		}
	}
	return false
}

// RemoveMember deletes playerID from the member list, if present.
func (r *Room) RemoveMember(playerID PlayerID) {
	for i, id := range r.Members {
		if id == playerID {
			r.Members = append(r.Members[:i], r.Members[i+1:]...)
			return
		}
	}
}

// IsHostageCandidate reports whether playerID is currently selected.
func (r *Room) IsHostageCandidate(playerID PlayerID) bool {
	for _, id := range r.HostageCandidates {
		if id == playerID {
			return true
		}
	}
	return false
}

// ToggleHostageCandidate adds or removes playerID and reports whether it is
// now selected (§4.4.1 "Hostage selection").
func (r *Room) ToggleHostageCandidate(playerID PlayerID) bool {
	for i, id := range r.HostageCandidates {
		if id == playerID {
			r.HostageCandidates = append(r.HostageCandidates[:i], r.HostageCandidates[i+1:]...)
			return false
		}
	}
	r.HostageCandidates = append(r.HostageCandidates, playerID)
	return true
}

func (r *Room) ClearRoundState() {
	r.LeaderVotes = make(map[PlayerID]PlayerID)
	r.UsurpVotes = make(map[PlayerID]PlayerID)
	r.LeaderVotingActive = false
	r.LeaderVotingTieCount = 0
	r.HostageCandidates = nil
	r.HostagesLocked = false
	r.ParlayComplete = false
}

// Config is the game's immutable-once-started configuration (§3.2).
type Config struct {
	TotalRounds    int
	RoundDurations []time.Duration
	BuryCard       bool
	SelectedRoles  []CharacterID
}

// CardShareRecord is one entry of the private card-share history.
type CardShareRecord struct {
	Round       int
	From        PlayerID
	To          PlayerID
	CharacterID CharacterID
	At          time.Time
}

// PrivateState never leaves the server as-is; only derived, player-scoped
// views of it are ever published (§3.3, §3.7).
type PrivateState struct {
	RoleAssignments  map[PlayerID]CharacterID
	DeckConfig       []CharacterID
	BuriedCard       CharacterID
	HasBuriedCard    bool
	HostID           PlayerID
	Seed             [32]byte
	UsurpationLog    map[int][]PlayerID
	CardShareHistory []CardShareRecord
}

// Game is the aggregate root (§3.1). All mutation of a Game must be
// serialized by its owning store entry (§5).
type Game struct {
	ID        GameID
	Code      string
	CreatedAt time.Time
	UpdatedAt time.Time
	Version   uint64

	Config Config

	Players map[PlayerID]*Player

	Phase        Phase
	CurrentRound int

	Rooms map[RoomID]*Room

	RoomTimer   Timer
	ParlayTimer Timer

	Paused       bool
	PauseReason  string
	ParlayActive bool

	Private PrivateState
}

// NewGame constructs an empty lobby-phase game with both rooms present but
// unpopulated.
func NewGame(id GameID, code string, now time.Time, hostID PlayerID) *Game {
	return &Game{
		ID:        id,
		Code:      code,
		CreatedAt: now,
		UpdatedAt: now,
		Version:   0,
		Players:   make(map[PlayerID]*Player),
		Phase:     PhaseLobby,
		Rooms: map[RoomID]*Room{
			RoomA: NewRoom(),
			RoomB: NewRoom(),
		},
		Private: PrivateState{
			RoleAssignments: make(map[PlayerID]CharacterID),
			UsurpationLog:   make(map[int][]PlayerID),
			HostID:          hostID,
		},
	}
}

// RoomMembers implements eventbus.MembershipResolver structurally (no
// import needed; Go interfaces are satisfied by method shape). "PUBLIC" and
// any unknown id resolve to no members, so no seated player is in the
// audience of a room event addressed to them.
func (g *Game) RoomMembers(roomID string) []string {
	room, ok := g.Rooms[RoomID(roomID)]
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(room.Members))
	for _, id := range room.Members {
		ids = append(ids, string(id))
	}
	return ids
}

// PlayerCount returns the number of players in the roster (including
// disconnected ones, per §3.8; a player who leaves in the lobby is removed).
func (g *Game) PlayerCount() int {
	return len(g.Players)
}

// PlayerRoom returns the room a player is seated in, if any.
func (g *Game) PlayerRoom(playerID PlayerID) (RoomID, bool) {
	p, ok := g.Players[playerID]
	if !ok || !p.HasRoom {
		return "", false
	}
	return p.CurrentRoom, true
}

// Touch bumps the version counter and updated-at timestamp. Every mutation
// that is visible outside the owning executor must call this exactly once.
func (g *Game) Touch(now time.Time) {
	g.Version++
	g.UpdatedAt = now
}
