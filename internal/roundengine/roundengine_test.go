package roundengine

import (
	"testing"
	"time"

	"github.com/tabletop-engine/hostage-exchange/internal/eventbus"
	"github.com/tabletop-engine/hostage-exchange/internal/gamestore"
	"github.com/tabletop-engine/hostage-exchange/internal/model"
	"github.com/tabletop-engine/hostage-exchange/internal/statemachine"
)

type noJournals struct{}

func (noJournals) Journal(model.GameID) (*eventbus.Journal, bool) { return nil, false }

func newTestEngine() (*Engine, *gamestore.Store) {
	store := gamestore.New()
	fixedNow := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	eng := New(store, noJournals{}, statemachine.New(), func() string { return "id" }, func() time.Time { return fixedNow })
	return eng, store
}

func newRoundGame(roomAMembers, roomBMembers []model.PlayerID, totalRounds int) *model.Game {
	g := &model.Game{
		ID:      "g1",
		Players: make(map[model.PlayerID]*model.Player),
		Rooms: map[model.RoomID]*model.Room{
			model.RoomA: model.NewRoom(),
			model.RoomB: model.NewRoom(),
		},
		Config: model.Config{TotalRounds: totalRounds, RoundDurations: []time.Duration{time.Hour, time.Hour, time.Hour}},
	}
	g.Rooms[model.RoomA].Members = roomAMembers
	g.Rooms[model.RoomB].Members = roomBMembers
	for _, id := range append(append([]model.PlayerID{}, roomAMembers...), roomBMembers...) {
		g.Players[id] = &model.Player{ID: id, Alive: true, CanBeHostage: true}
	}
	return g
}

func TestHostageCountTable(t *testing.T) {
	cases := []struct {
		players, round, want int
	}{
		{10, 1, 1},
		{15, 1, 2},
		{15, 2, 1},
		{25, 1, 3},
		{25, 3, 1},
		{25, 10, 1}, // never drops below 1
	}
	for _, c := range cases {
		got := HostageCount(c.players, c.round)
		if got != c.want {
			t.Errorf("HostageCount(%d, %d) = %d, want %d", c.players, c.round, got, c.want)
		}
	}
}

func TestStartRoundOnePreparesTimerWithoutRunning(t *testing.T) {
	eng, _ := newTestEngine()
	g := newRoundGame([]model.PlayerID{"a1", "a2"}, []model.PlayerID{"b1", "b2"}, 3)

	eng.StartRound(g, 1, time.Hour)

	if g.RoomTimer.State != model.TimerPaused {
		t.Fatalf("round 1 timer state = %v, want Paused (awaiting both leaders)", g.RoomTimer.State)
	}
	if !g.Rooms[model.RoomA].LeaderVotingActive || !g.Rooms[model.RoomB].LeaderVotingActive {
		t.Fatal("round 1 should open leader voting in both rooms")
	}
}

func TestStartRoundLaterRoundStartsTimerImmediately(t *testing.T) {
	eng, _ := newTestEngine()
	g := newRoundGame([]model.PlayerID{"a1", "a2"}, []model.PlayerID{"b1", "b2"}, 3)

	eng.StartRound(g, 2, time.Hour)

	if g.RoomTimer.State != model.TimerRunning {
		t.Fatalf("round 2 timer state = %v, want Running", g.RoomTimer.State)
	}
}

func TestCastLeaderVoteResolvesMajority(t *testing.T) {
	eng, _ := newTestEngine()
	g := newRoundGame([]model.PlayerID{"a1", "a2", "a3"}, []model.PlayerID{"b1"}, 3)
	eng.StartRound(g, 1, time.Hour)

	eng.CastLeaderVote(g, model.RoomA, "a1", "a2")
	eng.CastLeaderVote(g, model.RoomA, "a2", "a2")
	eng.CastLeaderVote(g, model.RoomA, "a3", "a2")

	room := g.Rooms[model.RoomA]
	if room.LeaderID != "a2" {
		t.Fatalf("leaderID = %v, want a2", room.LeaderID)
	}
	if !g.Players["a2"].IsLeader || g.Players["a2"].CanBeHostage {
		t.Fatal("elected leader should be marked leader and ineligible as hostage")
	}
}

func TestCastLeaderVoteTieRevotesThenRandomizesAfterThreeTies(t *testing.T) {
	eng, _ := newTestEngine()
	g := newRoundGame([]model.PlayerID{"a1", "a2"}, []model.PlayerID{"b1"}, 3)
	eng.StartRound(g, 1, time.Hour)

	room := g.Rooms[model.RoomA]
	for i := 0; i < 3; i++ {
		eng.CastLeaderVote(g, model.RoomA, "a1", "a1")
		eng.CastLeaderVote(g, model.RoomA, "a2", "a2")
	}

	if room.LeaderID == "" {
		t.Fatal("expected a leader to be elected by random resolution after three ties")
	}
	if room.LeaderVotingTieCount != 0 {
		t.Fatalf("tie count after election = %d, want reset to 0", room.LeaderVotingTieCount)
	}
}

func TestBothLeadersElectedInRoundOneStartsTheTimer(t *testing.T) {
	eng, _ := newTestEngine()
	g := newRoundGame([]model.PlayerID{"a1"}, []model.PlayerID{"b1"}, 3)
	eng.StartRound(g, 1, time.Hour)

	eng.CastLeaderVote(g, model.RoomA, "a1", "a1")
	if g.RoomTimer.State != model.TimerPaused {
		t.Fatal("timer should remain paused until both rooms have a leader")
	}

	eng.CastLeaderVote(g, model.RoomB, "b1", "b1")
	if g.RoomTimer.State != model.TimerRunning {
		t.Fatal("timer should start once both rooms have elected a leader")
	}
}

func TestCastUsurpVotePromotesAtThreshold(t *testing.T) {
	eng, _ := newTestEngine()
	g := newRoundGame([]model.PlayerID{"a1", "a2", "a3"}, []model.PlayerID{"b1"}, 3)
	eng.StartRound(g, 1, time.Hour)
	eng.CastLeaderVote(g, model.RoomA, "a1", "a1")
	eng.CastLeaderVote(g, model.RoomA, "a2", "a1")
	eng.CastLeaderVote(g, model.RoomA, "a3", "a1")

	// threshold = len(members)/2 + 1 = 2
	eng.CastUsurpVote(g, model.RoomA, "a2", "a2")
	if g.Rooms[model.RoomA].LeaderID != "a1" {
		t.Fatal("one usurp vote should not yet promote")
	}
	eng.CastUsurpVote(g, model.RoomA, "a3", "a2")
	if g.Rooms[model.RoomA].LeaderID != "a2" {
		t.Fatal("usurp vote should promote once threshold reached")
	}
	if g.Players["a2"].UsurpedLeadersCount != 1 {
		t.Fatalf("usurped count = %d, want 1", g.Players["a2"].UsurpedLeadersCount)
	}
	if !g.Players["a1"].CanBeHostage {
		t.Fatal("deposed leader should become hostage-eligible again")
	}
}

func TestAbdicateTransfersLeadershipImmediately(t *testing.T) {
	eng, _ := newTestEngine()
	g := newRoundGame([]model.PlayerID{"a1", "a2"}, []model.PlayerID{"b1"}, 3)
	eng.StartRound(g, 1, time.Hour)
	eng.CastLeaderVote(g, model.RoomA, "a1", "a1")
	eng.CastLeaderVote(g, model.RoomA, "a2", "a1")

	eng.Abdicate(g, model.RoomA, "a2")

	if g.Rooms[model.RoomA].LeaderID != "a2" {
		t.Fatal("expected leadership to transfer to successor")
	}
	if g.Players["a1"].IsLeader {
		t.Fatal("old leader should no longer be marked leader")
	}
}

func TestSelectHostageTogglesAndLockHostagesStartsParlayOnceBothLocked(t *testing.T) {
	eng, _ := newTestEngine()
	g := newRoundGame([]model.PlayerID{"a1", "a2"}, []model.PlayerID{"b1", "b2"}, 3)
	eng.StartRound(g, 2, time.Hour)

	eng.SelectHostage(g, model.RoomA, "a1")
	if !g.Rooms[model.RoomA].IsHostageCandidate("a1") {
		t.Fatal("a1 should be a hostage candidate after selection")
	}

	eng.LockHostages(g, model.RoomA)
	if g.ParlayActive {
		t.Fatal("parlay must not start until both rooms are locked")
	}
	eng.SelectHostage(g, model.RoomB, "b1")
	eng.LockHostages(g, model.RoomB)
	if !g.ParlayActive {
		t.Fatal("expected parlay to start once both rooms are locked")
	}
	if g.RoomTimer.State != model.TimerStopped {
		t.Fatal("round timer should stop once parlay begins")
	}
}

func TestExpireRoundTimerPausesForHostageSelection(t *testing.T) {
	eng, _ := newTestEngine()
	g := newRoundGame([]model.PlayerID{"a1"}, []model.PlayerID{"b1"}, 3)
	eng.StartRound(g, 2, time.Hour)

	eng.ExpireRoundTimer(g)
	if !g.Paused {
		t.Fatal("expected game to be paused after round timer expiry")
	}
	if g.RoomTimer.State != model.TimerStopped {
		t.Fatal("expired round timer should stop")
	}
}

func TestExpireRoundTimerIsNoopIfNotRunning(t *testing.T) {
	eng, _ := newTestEngine()
	g := newRoundGame([]model.PlayerID{"a1"}, []model.PlayerID{"b1"}, 3)
	eng.StartRound(g, 1, time.Hour) // round 1: timer is Paused, not Running

	eng.ExpireRoundTimer(g)
	if g.Paused {
		t.Fatal("expiry of a non-running timer should be a no-op")
	}
}

func TestExpireParlayTimerExchangesHostagesAndEndsRound(t *testing.T) {
	eng, _ := newTestEngine()
	g := newRoundGame([]model.PlayerID{"a1", "a2"}, []model.PlayerID{"b1", "b2"}, 3)
	eng.StartRound(g, 2, time.Hour)
	g.CurrentRound = 2

	g.Rooms[model.RoomA].HostageCandidates = []model.PlayerID{"a1"}
	g.Rooms[model.RoomA].HostagesLocked = true
	g.Rooms[model.RoomB].HostageCandidates = []model.PlayerID{"b1"}
	g.Rooms[model.RoomB].HostagesLocked = true
	g.ParlayActive = true
	g.ParlayTimer.Start(time.Now(), parlayDuration)

	eng.ExpireParlayTimer(g)

	if g.Rooms[model.RoomA].HasMember("a1") {
		t.Fatal("a1 should have moved out of room A")
	}
	if !g.Rooms[model.RoomB].HasMember("a1") {
		t.Fatal("a1 should have moved into room B")
	}
	if !g.Players["a1"].WasSentAsHostage {
		t.Fatal("a1 should be marked as having been sent as a hostage")
	}
	if g.ParlayActive {
		t.Fatal("parlay should no longer be active")
	}
	// Round 2 of 3: should have advanced into round 3, not resolution.
	if g.CurrentRound != 3 {
		t.Fatalf("currentRound = %d, want 3", g.CurrentRound)
	}
}

func TestEndRoundReachesResolutionOnFinalRound(t *testing.T) {
	eng, _ := newTestEngine()
	g := newRoundGame([]model.PlayerID{"a1"}, []model.PlayerID{"b1"}, 2)
	eng.StartRound(g, 2, time.Hour)
	g.CurrentRound = 2

	outcome := eng.EndRound(g, "test")
	if !outcome.Resolved {
		t.Fatal("expected the final round to resolve into RESOLUTION")
	}
	if g.Phase != model.PhaseResolution {
		t.Fatalf("phase = %v, want Resolution", g.Phase)
	}
}

func TestEndRoundHooksFireOnRoundStartAndResolution(t *testing.T) {
	eng, _ := newTestEngine()
	var startedRounds []int
	var resolved bool
	eng.SetHooks(func(g *model.Game) {
		startedRounds = append(startedRounds, g.CurrentRound)
	}, func(g *model.Game) {
		resolved = true
	})

	g := newRoundGame([]model.PlayerID{"a1"}, []model.PlayerID{"b1"}, 2)
	eng.StartRound(g, 1, time.Hour)
	if len(startedRounds) != 1 || startedRounds[0] != 1 {
		t.Fatalf("startedRounds = %v, want [1]", startedRounds)
	}

	g.CurrentRound = 1
	eng.EndRound(g, "test")
	if len(startedRounds) != 2 || startedRounds[1] != 2 {
		t.Fatalf("startedRounds after EndRound = %v, want [1 2]", startedRounds)
	}

	g.CurrentRound = 2
	eng.EndRound(g, "test")
	if !resolved {
		t.Fatal("expected onResolution hook to fire once the final round ends")
	}
}
