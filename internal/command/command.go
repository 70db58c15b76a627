// Package command defines the external command surface (§6.1): the typed
// message envelope every caller submits to the Controller, and the closed
// set of command types with their payloads. It has no behaviour of its
// own — Validator and Controller both import it to agree on shape.
package command

import "github.com/tabletop-engine/hostage-exchange/internal/model"

type Type string

const (
	CreateGame  Type = "CREATE_GAME"
	JoinGame    Type = "JOIN_GAME"
	LeaveGame   Type = "LEAVE_GAME"
	LockRoom    Type = "LOCK_ROOM"
	UnlockRoom  Type = "UNLOCK_ROOM"
	SelectRoles Type = "SELECT_ROLES"
	SetRounds   Type = "SET_ROUNDS"
	ConfirmRoles Type = "CONFIRM_ROLES"
	StartGame   Type = "START_GAME"

	NominateLeader        Type = "NOMINATE_LEADER"
	InitiateNewLeaderVote Type = "INITIATE_NEW_LEADER_VOTE"
	VoteUsurp             Type = "VOTE_USURP"
	Abdicate              Type = "ABDICATE"

	SelectHostage Type = "SELECT_HOSTAGE"
	LockHostages  Type = "LOCK_HOSTAGES"

	CardShare     Type = "CARD_SHARE"
	ColorShare    Type = "COLOR_SHARE"
	PrivateReveal Type = "PRIVATE_REVEAL"
	PublicReveal  Type = "PUBLIC_REVEAL"

	ActivateAbility Type = "ACTIVATE_ABILITY"
)

// Command is the external envelope described in §6.1. Payload is one of
// the *Payload types below, chosen by Type; the Controller type-asserts
// after the Validator's state/authorization checks pass.
type Command struct {
	Type      Type
	PlayerID  model.PlayerID
	Payload   any
	Timestamp int64 // unix nanos; avoids importing time into the wire envelope
}

type CreateGamePayload struct {
	HostName string
}

type JoinGamePayload struct {
	Code       string
	PlayerName string
}

type SelectRolesPayload struct {
	Roles []model.CharacterID
}

type SetRoundsPayload struct {
	TotalRounds int
}

type NominateLeaderPayload struct {
	RoomID      model.RoomID
	CandidateID model.PlayerID
}

type InitiateNewLeaderVotePayload struct {
	RoomID model.RoomID
}

type VoteUsurpPayload struct {
	RoomID      model.RoomID
	CandidateID model.PlayerID
}

type AbdicatePayload struct {
	RoomID      model.RoomID
	SuccessorID model.PlayerID
}

type SelectHostagePayload struct {
	RoomID   model.RoomID
	TargetID model.PlayerID
}

type LockHostagesPayload struct {
	RoomID model.RoomID
}

type CardSharePayload struct {
	TargetID model.PlayerID
}

type ColorSharePayload struct {
	TargetID model.PlayerID
}

type RevealPayload struct {
	TargetID model.PlayerID
}

type ActivateAbilityPayload struct {
	AbilityID string
	Targets   []model.PlayerID
}
