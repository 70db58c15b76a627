// Package statemachine is the pure decision function of §4.2: given a
// *model.Game and a model.Trigger, it reports whether the transition is
// legal and what the next phase is. It never mutates the game and never
// touches the event bus — the Controller is responsible for applying the
// transition and publishing the resulting event. The map-keyed-by-phase
// table generalizes a fixed linear phase pipeline to this domain's phase
// set plus a numbered ROUND phase.
package statemachine

import "github.com/tabletop-engine/hostage-exchange/internal/model"

// DenialReason explains why a transition was refused.
type DenialReason string

const (
	DenialNone             DenialReason = ""
	DenialWrongTrigger     DenialReason = "wrong_trigger_for_phase"
	DenialGuardFailed      DenialReason = "guard_failed"
	DenialUnknownPhase     DenialReason = "unknown_phase"
)

// Decision is the outcome of evaluating one (phase, trigger) pair.
type Decision struct {
	Allowed DenialReason
	Next    model.Phase
	// NextRound is meaningful only when Next == model.PhaseRound.
	NextRound int
}

func (d Decision) OK() bool { return d.Allowed == DenialNone }

// Guard evaluates extra, game-dependent conditions for a transition
// beyond "is this trigger legal from this phase". Guards never mutate.
type Guard func(g *model.Game) bool

// Machine holds the transition table. It carries no mutable state beyond
// construction and is safe to share across games.
type Machine struct {
	transitions map[model.Phase]map[model.Trigger]transition
}

type transition struct {
	to    model.Phase
	guard Guard
}

// New builds the transition table described by §4.2's tabular guards.
// totalRounds and lastRound-sensitive branches are resolved per game at
// Evaluate time, not baked into the table, since they vary by Config.
func New() *Machine {
	m := &Machine{transitions: make(map[model.Phase]map[model.Trigger]transition)}

	m.add(model.PhaseLobby, model.TriggerLockRoom, model.PhaseLocked, func(g *model.Game) bool {
		n := g.PlayerCount()
		return n >= 6 && n <= 30
	})
	m.add(model.PhaseLocked, model.TriggerUnlockRoom, model.PhaseLobby, func(g *model.Game) bool {
		return len(g.Private.RoleAssignments) == 0
	})
	m.add(model.PhaseLocked, model.TriggerStartRoleSelection, model.PhaseRoleSelection, always)
	m.add(model.PhaseRoleSelection, model.TriggerCancelRoleSelection, model.PhaseLocked, always)
	// confirm_roles's guard is the Validator's role-configuration pass,
	// which the Controller runs before ever calling Evaluate; by the time
	// the state machine sees this trigger the guard has already been
	// satisfied, so the machine-level guard is an always-true formality
	// that documents the dependency.
	m.add(model.PhaseRoleSelection, model.TriggerConfirmRoles, model.PhaseRoleDistribution, always)
	m.add(model.PhaseRoleDistribution, model.TriggerRolesDistributed, model.PhaseRoomAssignment, func(g *model.Game) bool {
		for _, p := range g.Players {
			if p.CurrentRole == "" {
				return false
			}
		}
		return len(g.Players) > 0
	})
	m.add(model.PhaseRoomAssignment, model.TriggerStartGame, model.PhaseRound, func(g *model.Game) bool {
		return roomSizeDiff(g) <= 1
	})
	// ROUND_k -> ROUND_{k+1} or RESOLUTION is decided dynamically in
	// Evaluate since the destination depends on g.CurrentRound and
	// g.Config.TotalRounds, which a single static table entry cannot
	// express; round_complete and instant_win are handled there.
	m.add(model.PhaseResolution, model.TriggerWinConditionsResolved, model.PhaseFinished, always)

	return m
}

func always(*model.Game) bool { return true }

func roomSizeDiff(g *model.Game) int {
	a := len(g.Rooms[model.RoomA].Members)
	b := len(g.Rooms[model.RoomB].Members)
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff
}

func (m *Machine) add(from model.Phase, trig model.Trigger, to model.Phase, guard Guard) {
	if m.transitions[from] == nil {
		m.transitions[from] = make(map[model.Trigger]transition)
	}
	m.transitions[from][trig] = transition{to: to, guard: guard}
}

// Evaluate decides the outcome of trigger against g's current phase
// without mutating g.
func (m *Machine) Evaluate(g *model.Game, trigger model.Trigger) Decision {
	if g.Phase == model.PhaseRound {
		return m.evaluateRound(g, trigger)
	}
	phaseTable, ok := m.transitions[g.Phase]
	if !ok {
		return Decision{Allowed: DenialUnknownPhase}
	}
	t, ok := phaseTable[trigger]
	if !ok {
		return Decision{Allowed: DenialWrongTrigger}
	}
	if !t.guard(g) {
		return Decision{Allowed: DenialGuardFailed}
	}
	return Decision{Allowed: DenialNone, Next: t.to}
}

// evaluateRound handles the two triggers legal while Phase == PhaseRound:
// round_complete (advances to the next round or to RESOLUTION) and
// instant_win (always permitted; the ability engine is the only caller).
//
// The round_complete guard is "hostage exchange has completed and no
// candidates remain locked" (§4.2). Hostage exchange (roundengine) clears
// HostageCandidates and HostagesLocked in both rooms as the last step
// before requesting this trigger, so the guard is satisfied by
// construction at the call site that matters; it still protects against
// any other caller requesting round_complete while a lock is outstanding
// (§9 open question, resolved in SPEC_FULL §4.2).
func (m *Machine) evaluateRound(g *model.Game, trigger model.Trigger) Decision {
	switch trigger {
	case model.TriggerInstantWin:
		return Decision{Allowed: DenialNone, Next: model.PhaseResolution}
	case model.TriggerRoundComplete:
		for _, roomID := range []model.RoomID{model.RoomA, model.RoomB} {
			room := g.Rooms[roomID]
			if len(room.HostageCandidates) != 0 || room.HostagesLocked {
				return Decision{Allowed: DenialGuardFailed}
			}
		}
		if g.CurrentRound >= g.Config.TotalRounds {
			return Decision{Allowed: DenialNone, Next: model.PhaseResolution}
		}
		return Decision{Allowed: DenialNone, Next: model.PhaseRound, NextRound: g.CurrentRound + 1}
	default:
		return Decision{Allowed: DenialWrongTrigger}
	}
}
