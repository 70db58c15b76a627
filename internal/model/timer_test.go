package model

import (
	"testing"
	"time"
)

func TestTimerPrepareIsPausedAtFullDuration(t *testing.T) {
	var tm Timer
	tm.Prepare(5 * time.Minute)

	if tm.State != TimerPaused {
		t.Fatalf("state = %v, want Paused", tm.State)
	}
	if tm.Remaining != 5*time.Minute {
		t.Fatalf("remaining = %v, want 5m", tm.Remaining)
	}
}

func TestTimerRemainingAtWhileRunning(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var tm Timer
	tm.Start(start, 2*time.Minute)

	got := tm.RemainingAt(start.Add(30 * time.Second))
	want := 90 * time.Second
	if got != want {
		t.Fatalf("remaining = %v, want %v", got, want)
	}
}

func TestTimerRemainingAtNeverNegative(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var tm Timer
	tm.Start(start, time.Minute)

	got := tm.RemainingAt(start.Add(5 * time.Minute))
	if got != 0 {
		t.Fatalf("remaining = %v, want 0", got)
	}
	if !tm.Expired(start.Add(5 * time.Minute)) {
		t.Fatal("expected timer to report expired")
	}
}

func TestTimerPauseFreezesRemaining(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var tm Timer
	tm.Start(start, 2*time.Minute)

	pauseAt := start.Add(20 * time.Second)
	tm.Pause(pauseAt)

	if tm.State != TimerPaused {
		t.Fatalf("state = %v, want Paused", tm.State)
	}
	frozen := tm.Remaining
	if frozen != 100*time.Second {
		t.Fatalf("remaining at pause = %v, want 100s", frozen)
	}

	// Time passing while paused must not change the frozen value.
	if got := tm.RemainingAt(pauseAt.Add(time.Hour)); got != frozen {
		t.Fatalf("remaining while paused = %v, want %v", got, frozen)
	}
}

func TestTimerResumeContinuesFromFrozenValue(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var tm Timer
	tm.Start(start, 2*time.Minute)
	tm.Pause(start.Add(20 * time.Second))

	resumeAt := start.Add(time.Hour) // long pause
	tm.Resume(resumeAt)

	if tm.State != TimerRunning {
		t.Fatalf("state = %v, want Running", tm.State)
	}
	got := tm.RemainingAt(resumeAt.Add(10 * time.Second))
	want := 90 * time.Second // 100s frozen minus 10s elapsed since resume
	if got != want {
		t.Fatalf("remaining after resume = %v, want %v", got, want)
	}
}

func TestTimerStopIdlesAndNeverExpires(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var tm Timer
	tm.Start(start, time.Minute)
	tm.Stop()

	if tm.State != TimerStopped {
		t.Fatalf("state = %v, want Stopped", tm.State)
	}
	if tm.Expired(start.Add(time.Hour)) {
		t.Fatal("a stopped timer must never report expired")
	}
}

func TestTimerPauseOnNonRunningIsNoop(t *testing.T) {
	var tm Timer
	tm.Prepare(time.Minute)
	before := tm
	tm.Pause(time.Now())
	if tm != before {
		t.Fatalf("pausing a non-running timer mutated it: %+v vs %+v", tm, before)
	}
}
