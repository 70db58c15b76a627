package gamestore

import (
	"strings"
	"testing"
	"time"

	"github.com/tabletop-engine/hostage-exchange/internal/model"
)

func TestNewCodeIsUppercaseAndCorrectLength(t *testing.T) {
	s := New()
	code, err := s.NewCode()
	if err != nil {
		t.Fatalf("NewCode: %v", err)
	}
	if len(code) != codeLength {
		t.Fatalf("len(code) = %d, want %d", len(code), codeLength)
	}
	if code != strings.ToUpper(code) {
		t.Fatalf("code %q is not uppercase", code)
	}
	for _, r := range code {
		if !strings.ContainsRune(codeAlphabet, r) {
			t.Fatalf("code %q contains character %q outside the confusion-reduced alphabet", code, r)
		}
	}
}

func TestInsertAndLookupByIDAndCode(t *testing.T) {
	s := New()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	g := model.NewGame("g1", "abcdef", now, "host")
	s.Insert(g)

	got, ok := s.Get("g1")
	if !ok || got != g {
		t.Fatalf("Get(g1) = (%v, %v)", got, ok)
	}

	byCode, ok := s.GetByCode("ABCDEF")
	if !ok || byCode != g {
		t.Fatalf("GetByCode(ABCDEF) = (%v, %v)", byCode, ok)
	}

	byCodeLower, ok := s.GetByCode("abcdef")
	if !ok || byCodeLower != g {
		t.Fatalf("GetByCode is not case-insensitive: (%v, %v)", byCodeLower, ok)
	}
}

func TestUpdateGameReturnsNotFoundForMissingGame(t *testing.T) {
	s := New()
	_, err := s.UpdateGame("nope", func(g *model.Game) error { return nil })
	if err != ErrGameNotFound {
		t.Fatalf("err = %v, want ErrGameNotFound", err)
	}
}

func TestUpdateGameRunsFnUnderLock(t *testing.T) {
	s := New()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	g := model.NewGame("g1", "abcdef", now, "host")
	s.Insert(g)

	updated, err := s.UpdateGame("g1", func(g *model.Game) error {
		g.Phase = model.PhaseLocked
		return nil
	})
	if err != nil {
		t.Fatalf("UpdateGame: %v", err)
	}
	if updated.Phase != model.PhaseLocked {
		t.Fatalf("phase = %v, want Locked", updated.Phase)
	}
}

func TestUpdateGamePropagatesFnError(t *testing.T) {
	s := New()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	g := model.NewGame("g1", "abcdef", now, "host")
	g.Phase = model.PhaseLobby
	s.Insert(g)

	sentinel := errgamestore()
	_, err := s.UpdateGame("g1", func(g *model.Game) error {
		g.Phase = model.PhaseLocked
		return sentinel
	})
	if err != sentinel {
		t.Fatalf("err = %v, want sentinel", err)
	}
	// The mutation up to the error point is still visible, by design.
	got, _ := s.Get("g1")
	if got.Phase != model.PhaseLocked {
		t.Fatalf("phase = %v, want Locked despite returned error", got.Phase)
	}
}

func errgamestore() error { return &storeTestErr{} }

type storeTestErr struct{}

func (*storeTestErr) Error() string { return "boom" }

func TestReapRemovesOnlyStaleFinishedGames(t *testing.T) {
	s := New()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	stale := model.NewGame("stale", "stalecd", now, "host")
	stale.Phase = model.PhaseFinished
	stale.UpdatedAt = now.Add(-48 * time.Hour)
	s.Insert(stale)

	fresh := model.NewGame("fresh", "freshcd", now, "host")
	fresh.Phase = model.PhaseFinished
	fresh.UpdatedAt = now
	s.Insert(fresh)

	active := model.NewGame("active", "activecd", now, "host")
	active.Phase = model.PhaseRound
	active.UpdatedAt = now.Add(-48 * time.Hour)
	s.Insert(active)

	removed := s.Reap(now, 24*time.Hour)
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, ok := s.Get("stale"); ok {
		t.Fatal("stale finished game should have been reaped")
	}
	if _, ok := s.Get("fresh"); !ok {
		t.Fatal("fresh finished game should not have been reaped")
	}
	if _, ok := s.Get("active"); !ok {
		t.Fatal("active (non-finished) game should never be reaped regardless of age")
	}
}

func TestLenAndSnapshot(t *testing.T) {
	s := New()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.Insert(model.NewGame("g1", "aaaaaa", now, "host"))
	s.Insert(model.NewGame("g2", "bbbbbb", now, "host"))

	if s.Len() != 2 {
		t.Fatalf("Len = %d, want 2", s.Len())
	}
	if len(s.Snapshot()) != 2 {
		t.Fatalf("len(Snapshot()) = %d, want 2", len(s.Snapshot()))
	}
}
