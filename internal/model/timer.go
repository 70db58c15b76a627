package model

import "time"

// TimerState is the closed enum a Timer occupies (§4.4).
type TimerState int

const (
	TimerStopped TimerState = iota
	TimerRunning
	TimerPaused
)

func (s TimerState) String() string {
	switch s {
	case TimerRunning:
		return "running"
	case TimerPaused:
		return "paused"
	default:
		return "stopped"
	}
}

// Timer is the record described in §4.4: while running, Remaining is
// derived on read rather than decremented by a ticking goroutine. Pausing
// freezes the value; resuming shifts the start epoch forward by the pause
// span so the derivation stays correct.
type Timer struct {
	Duration      time.Duration
	Remaining     time.Duration // authoritative only while Paused or Stopped
	StartEpoch    time.Time
	PausedAtEpoch time.Time
	State         TimerState
}

// Prepare puts the timer in Paused state with the full duration loaded but
// not counting down (§4.4.1 "Start of round k", round 1 before both
// leaders are elected).
func (t *Timer) Prepare(duration time.Duration) {
	t.Duration = duration
	t.Remaining = duration
	t.State = TimerPaused
	t.StartEpoch = time.Time{}
	t.PausedAtEpoch = time.Time{}
}

// Start begins (or resumes from full duration) a running countdown.
func (t *Timer) Start(now time.Time, duration time.Duration) {
	t.Duration = duration
	t.Remaining = duration
	t.StartEpoch = now
	t.PausedAtEpoch = time.Time{}
	t.State = TimerRunning
}

// RemainingAt derives the remaining duration at instant now without
// mutating the timer.
func (t *Timer) RemainingAt(now time.Time) time.Duration {
	switch t.State {
	case TimerRunning:
		elapsed := now.Sub(t.StartEpoch)
		remaining := t.Duration - elapsed
		if remaining < 0 {
			return 0
		}
		return remaining
	default:
		return t.Remaining
	}
}

// Pause freezes the timer's remaining value (§3.7: while paused, remaining
// never decreases).
func (t *Timer) Pause(now time.Time) {
	if t.State != TimerRunning {
		return
	}
	t.Remaining = t.RemainingAt(now)
	t.PausedAtEpoch = now
	t.State = TimerPaused
}

// Resume shifts StartEpoch forward by the pause span so that future
// RemainingAt calls continue counting down from the frozen value.
func (t *Timer) Resume(now time.Time) {
	if t.State != TimerPaused {
		return
	}
	t.StartEpoch = now.Add(-(t.Duration - t.Remaining))
	t.PausedAtEpoch = time.Time{}
	t.State = TimerRunning
}

// Stop idles the timer; a stopped timer never fires (§5).
func (t *Timer) Stop() {
	t.State = TimerStopped
	t.Remaining = 0
	t.PausedAtEpoch = time.Time{}
}

// Expired reports whether a running timer has reached zero at instant now.
func (t *Timer) Expired(now time.Time) bool {
	return t.State == TimerRunning && t.RemainingAt(now) <= 0
}
