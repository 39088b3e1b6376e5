package presence

import (
	"testing"
	"time"

	"github.com/valsssa/tutorhub-chat/internal/clock/clocktest"
)

func newTestTracker() (*Tracker, *clocktest.Clock) {
	clk := clocktest.New(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	return NewTracker(clk), clk
}

func TestTypingExpiresAfterTTL(t *testing.T) {
	t.Parallel()

	tr, clk := newTestTracker()
	tr.OnTyping(7, true)
	if !tr.IsTyping(7) {
		t.Fatal("expected typing after true signal")
	}

	clk.Advance(4999 * time.Millisecond)
	if !tr.IsTyping(7) {
		t.Fatal("indicator expired before the TTL")
	}
	clk.Advance(1 * time.Millisecond)
	if tr.IsTyping(7) {
		t.Fatal("indicator survived past the TTL")
	}
}

func TestTypingRefreshRearmsTimer(t *testing.T) {
	t.Parallel()

	tr, clk := newTestTracker()
	tr.OnTyping(7, true)
	clk.Advance(3 * time.Second)
	tr.OnTyping(7, true) // refresh mid-burst

	clk.Advance(3 * time.Second)
	if !tr.IsTyping(7) {
		t.Fatal("refresh did not rearm the auto-clear timer")
	}
	clk.Advance(2 * time.Second)
	if tr.IsTyping(7) {
		t.Fatal("indicator survived past the refreshed TTL")
	}
}

func TestTypingFalseClearsImmediately(t *testing.T) {
	t.Parallel()

	tr, clk := newTestTracker()
	tr.OnTyping(7, true)
	tr.OnTyping(7, false)
	if tr.IsTyping(7) {
		t.Fatal("false signal did not clear the indicator")
	}
	if clk.Pending() != 0 {
		t.Fatalf("expected no pending timers, got %d", clk.Pending())
	}
}

func TestClearTypingOnMessage(t *testing.T) {
	t.Parallel()

	tr, _ := newTestTracker()
	tr.OnTyping(7, true)
	tr.ClearTyping(7)
	if tr.IsTyping(7) {
		t.Fatal("ClearTyping left the indicator lit")
	}
}

func TestPresenceMergesNotReplaces(t *testing.T) {
	t.Parallel()

	tr, _ := newTestTracker()
	tr.OnPresence(map[int64]bool{7: true, 9: true})
	tr.OnPresence(map[int64]bool{9: false})

	if !tr.IsOnline(7) {
		t.Fatal("user 7 lost presence from an unrelated snapshot")
	}
	if tr.IsOnline(9) {
		t.Fatal("user 9 should be offline after the second snapshot")
	}
	if tr.IsOnline(11) {
		t.Fatal("unknown user must report offline")
	}
}

func TestStopCancelsTimersAndIgnoresSignals(t *testing.T) {
	t.Parallel()

	tr, clk := newTestTracker()
	tr.OnTyping(7, true)
	tr.Stop()

	if clk.Pending() != 0 {
		t.Fatalf("expected no pending timers after Stop, got %d", clk.Pending())
	}
	tr.OnTyping(9, true)
	if tr.IsTyping(9) {
		t.Fatal("tracker accepted a signal after Stop")
	}
}
