package statemachine

import (
	"testing"
	"time"

	"github.com/tabletop-engine/hostage-exchange/internal/model"
)

func newLobbyGame(playerCount int) *model.Game {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	g := model.NewGame("g1", "ABCDEF", now, "host")
	for i := 0; i < playerCount; i++ {
		id := model.PlayerID(string(rune('a' + i)))
		g.Players[id] = &model.Player{ID: id}
	}
	return g
}

func TestLockRoomRequiresPlayerCountInRange(t *testing.T) {
	m := New()

	tooFew := newLobbyGame(3)
	if d := m.Evaluate(tooFew, model.TriggerLockRoom); d.OK() {
		t.Fatal("expected lock_room to be denied with only 3 players")
	}

	enough := newLobbyGame(6)
	d := m.Evaluate(enough, model.TriggerLockRoom)
	if !d.OK() || d.Next != model.PhaseLocked {
		t.Fatalf("Evaluate = %+v, want OK into Locked", d)
	}
}

func TestWrongTriggerForPhaseIsDenied(t *testing.T) {
	m := New()
	g := newLobbyGame(6)

	d := m.Evaluate(g, model.TriggerStartGame)
	if d.OK() || d.Allowed != DenialWrongTrigger {
		t.Fatalf("Evaluate = %+v, want DenialWrongTrigger", d)
	}
}

func TestUnknownPhaseIsDenied(t *testing.T) {
	m := New()
	g := newLobbyGame(6)
	g.Phase = model.Phase(99)

	d := m.Evaluate(g, model.TriggerLockRoom)
	if d.Allowed != DenialUnknownPhase {
		t.Fatalf("Evaluate = %+v, want DenialUnknownPhase", d)
	}
}

func TestUnlockRoomDeniedOnceRolesAssigned(t *testing.T) {
	m := New()
	g := newLobbyGame(6)
	g.Phase = model.PhaseLocked

	d := m.Evaluate(g, model.TriggerUnlockRoom)
	if !d.OK() {
		t.Fatalf("expected unlock_room to be allowed before roles assigned: %+v", d)
	}

	g.Private.RoleAssignments["a"] = "leader-blue"
	d = m.Evaluate(g, model.TriggerUnlockRoom)
	if d.OK() {
		t.Fatal("expected unlock_room to be denied once roles are assigned")
	}
}

func TestRolesDistributedGuardRequiresEveryPlayerAssigned(t *testing.T) {
	m := New()
	g := newLobbyGame(2)
	g.Phase = model.PhaseRoleDistribution

	d := m.Evaluate(g, model.TriggerRolesDistributed)
	if d.OK() {
		t.Fatal("expected denial when no player has a role yet")
	}

	for _, p := range g.Players {
		p.CurrentRole = "leader-blue"
	}
	d = m.Evaluate(g, model.TriggerRolesDistributed)
	if !d.OK() || d.Next != model.PhaseRoomAssignment {
		t.Fatalf("Evaluate = %+v, want OK into RoomAssignment", d)
	}
}

func TestStartGameGuardRequiresBalancedRooms(t *testing.T) {
	m := New()
	g := newLobbyGame(4)
	g.Phase = model.PhaseRoomAssignment
	g.Rooms[model.RoomA].Members = []model.PlayerID{"a", "b", "c"}
	g.Rooms[model.RoomB].Members = []model.PlayerID{"d"}

	if d := m.Evaluate(g, model.TriggerStartGame); d.OK() {
		t.Fatal("expected start_game denied with unbalanced rooms")
	}

	g.Rooms[model.RoomA].Members = []model.PlayerID{"a", "b"}
	g.Rooms[model.RoomB].Members = []model.PlayerID{"c", "d"}
	d := m.Evaluate(g, model.TriggerStartGame)
	if !d.OK() || d.Next != model.PhaseRound {
		t.Fatalf("Evaluate = %+v, want OK into Round", d)
	}
}

func TestRoundCompleteBlockedByOutstandingHostageLock(t *testing.T) {
	m := New()
	g := newLobbyGame(6)
	g.Phase = model.PhaseRound
	g.CurrentRound = 1
	g.Config.TotalRounds = 3
	g.Rooms[model.RoomA].HostagesLocked = true

	d := m.Evaluate(g, model.TriggerRoundComplete)
	if d.OK() {
		t.Fatal("expected round_complete denied while a room still has a hostage lock outstanding")
	}
}

func TestRoundCompleteAdvancesToNextRoundOrResolution(t *testing.T) {
	m := New()
	g := newLobbyGame(6)
	g.Phase = model.PhaseRound
	g.CurrentRound = 1
	g.Config.TotalRounds = 3

	d := m.Evaluate(g, model.TriggerRoundComplete)
	if !d.OK() || d.Next != model.PhaseRound || d.NextRound != 2 {
		t.Fatalf("Evaluate = %+v, want OK into Round 2", d)
	}

	g.CurrentRound = 3
	d = m.Evaluate(g, model.TriggerRoundComplete)
	if !d.OK() || d.Next != model.PhaseResolution {
		t.Fatalf("Evaluate at final round = %+v, want OK into Resolution", d)
	}
}

func TestInstantWinAlwaysAllowedDuringRound(t *testing.T) {
	m := New()
	g := newLobbyGame(6)
	g.Phase = model.PhaseRound
	g.Rooms[model.RoomA].HostagesLocked = true // even with a lock outstanding

	d := m.Evaluate(g, model.TriggerInstantWin)
	if !d.OK() || d.Next != model.PhaseResolution {
		t.Fatalf("Evaluate = %+v, want OK into Resolution", d)
	}
}
