package ability

import (
	"testing"

	"github.com/tabletop-engine/hostage-exchange/internal/catalogue"
	"github.com/tabletop-engine/hostage-exchange/internal/model"
)

func newTestGame() *model.Game {
	g := &model.Game{
		Players: make(map[model.PlayerID]*model.Player),
		Rooms: map[model.RoomID]*model.Room{
			model.RoomA: model.NewRoom(),
			model.RoomB: model.NewRoom(),
		},
	}
	return g
}

func TestEvaluateSkipsDeadAndRoleslessPlayers(t *testing.T) {
	chars := []model.Character{
		{ID: "watcher", Name: "Watcher", Complexity: 1, Abilities: []model.Ability{
			{ID: "watcher-alert", Trigger: model.TriggerOnRoundStart, Effect: model.EffectApplyCondition, Targeting: model.TargetSelf},
		}},
	}
	cat, err := catalogue.New(chars)
	if err != nil {
		t.Fatalf("catalogue.New: %v", err)
	}
	eng := New(cat)

	g := newTestGame()
	g.Players["dead"] = &model.Player{ID: "dead", Alive: false, CurrentRole: "watcher"}
	g.Players["roleless"] = &model.Player{ID: "roleless", Alive: true, CurrentRole: ""}
	g.Players["live"] = &model.Player{ID: "live", Alive: true, CurrentRole: "watcher"}

	effects := eng.Evaluate(g, model.TriggerOnRoundStart)
	if len(effects) != 1 {
		t.Fatalf("len(effects) = %d, want 1", len(effects))
	}
	if effects[0].PlayerID != "live" {
		t.Fatalf("effect owner = %v, want live", effects[0].PlayerID)
	}
}

func TestEvaluateOrdersByPriorityThenCharacterID(t *testing.T) {
	chars := []model.Character{
		{ID: "zz-low", Name: "Low", Complexity: 1, Abilities: []model.Ability{
			{ID: "zz-ability", Trigger: model.TriggerOnRoundStart, Priority: 1},
		}},
		{ID: "aa-high", Name: "High", Complexity: 1, Abilities: []model.Ability{
			{ID: "aa-ability", Trigger: model.TriggerOnRoundStart, Priority: 5},
		}},
		{ID: "bb-tie", Name: "Tie", Complexity: 1, Abilities: []model.Ability{
			{ID: "bb-ability", Trigger: model.TriggerOnRoundStart, Priority: 1},
		}},
	}
	cat, _ := catalogue.New(chars)
	eng := New(cat)

	g := newTestGame()
	g.Players["p1"] = &model.Player{ID: "p1", Alive: true, CurrentRole: "zz-low"}
	g.Players["p2"] = &model.Player{ID: "p2", Alive: true, CurrentRole: "aa-high"}
	g.Players["p3"] = &model.Player{ID: "p3", Alive: true, CurrentRole: "bb-tie"}

	effects := eng.Evaluate(g, model.TriggerOnRoundStart)
	if len(effects) != 3 {
		t.Fatalf("len(effects) = %d, want 3", len(effects))
	}
	if effects[0].AbilityID != "aa-ability" {
		t.Fatalf("effects[0] = %v, want highest priority first", effects[0].AbilityID)
	}
	// Priority 1 tie between zz-low and bb-tie breaks on character id: bb < zz.
	if effects[1].AbilityID != "bb-ability" || effects[2].AbilityID != "zz-ability" {
		t.Fatalf("tie-break order = %v, %v, want bb-ability then zz-ability", effects[1].AbilityID, effects[2].AbilityID)
	}
}

func TestConditionsGateAbilityFiring(t *testing.T) {
	chars := []model.Character{
		{ID: "saboteur", Name: "Saboteur", Complexity: 1, Abilities: []model.Ability{
			{ID: "cut", Trigger: model.TriggerOnCardShare, Effect: model.EffectEndRoundEarly,
				Conditions: []model.Condition{{Key: "alert", Operator: "not_has"}}},
		}},
	}
	cat, _ := catalogue.New(chars)
	eng := New(cat)

	g := newTestGame()
	g.Players["p1"] = &model.Player{ID: "p1", Alive: true, CurrentRole: "saboteur"}

	effects := eng.Evaluate(g, model.TriggerOnCardShare)
	if len(effects) != 1 {
		t.Fatalf("expected ability to fire when condition absent, got %d effects", len(effects))
	}

	g.Players["p1"].Conditions = []string{"alert"}
	effects = eng.Evaluate(g, model.TriggerOnCardShare)
	if len(effects) != 0 {
		t.Fatalf("expected not_has to block firing once condition is present, got %d effects", len(effects))
	}
}

func TestResolveTargetsRoomAndOtherRoom(t *testing.T) {
	cat, _ := catalogue.New(nil)
	eng := New(cat)

	g := newTestGame()
	g.Rooms[model.RoomA].Members = []model.PlayerID{"p1", "p2"}
	g.Rooms[model.RoomB].Members = []model.PlayerID{"p3"}
	p := &model.Player{ID: "p1", CurrentRoom: model.RoomA}

	room := eng.resolveTargets(g, p, model.TargetRoom)
	if len(room) != 2 {
		t.Fatalf("TargetRoom = %v, want 2 members", room)
	}

	other := eng.resolveTargets(g, p, model.TargetOtherRoom)
	if len(other) != 1 || other[0] != "p3" {
		t.Fatalf("TargetOtherRoom = %v, want [p3]", other)
	}
}

func TestResolveWinnerDefaultsToTeamMajority(t *testing.T) {
	chars := []model.Character{
		{ID: "blue1", Team: model.TeamBlue, Complexity: 1},
		{ID: "red1", Team: model.TeamRed, Complexity: 1},
		{ID: "red2", Team: model.TeamRed, Complexity: 1},
	}
	cat, _ := catalogue.New(chars)
	eng := New(cat)

	g := newTestGame()
	g.Players["p1"] = &model.Player{ID: "p1", Alive: true, CurrentRole: "blue1"}
	g.Players["p2"] = &model.Player{ID: "p2", Alive: true, CurrentRole: "red1"}
	g.Players["p3"] = &model.Player{ID: "p3", Alive: true, CurrentRole: "red2"}

	team, winners := eng.ResolveWinner(g)
	if team != model.TeamRed {
		t.Fatalf("team = %v, want Red", team)
	}
	if len(winners) != 2 {
		t.Fatalf("winners = %v, want 2 red players", winners)
	}
}

func TestResolveWinnerHonorsHighestPriorityOverride(t *testing.T) {
	chars := []model.Character{
		{ID: "blue1", Team: model.TeamBlue, Complexity: 1},
		{ID: "double-agent", Team: model.TeamGrey, Complexity: 1, WinConditions: []model.WinCondition{
			{Type: model.WinConditionCustom, Priority: 10, Overrides: true},
		}},
	}
	cat, _ := catalogue.New(chars)
	eng := New(cat)

	g := newTestGame()
	g.Players["p1"] = &model.Player{ID: "p1", Alive: true, CurrentRole: "blue1"}
	g.Players["p2"] = &model.Player{ID: "p2", Alive: true, CurrentRole: "double-agent"}

	team, winners := eng.ResolveWinner(g)
	if team != model.TeamGrey {
		t.Fatalf("team = %v, want Grey (override)", team)
	}
	if len(winners) != 1 || winners[0] != "p2" {
		t.Fatalf("winners = %v, want [p2]", winners)
	}
}
