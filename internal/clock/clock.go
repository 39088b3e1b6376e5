// Package clock provides a testable time source with cancellable timers.
//
// Components that schedule work (heartbeats, reconnect backoff, typing
// auto-clear) must go through a Clock so their timer semantics can be verified
// deterministically without sleeping. Timer handles are owned by the component
// that armed them and must be stopped on teardown; never rely on garbage
// collection to silence a timer.
package clock

import "time"

// Timer is a cancellable scheduled callback.
type Timer interface {
	// Stop cancels the timer. It reports whether the call prevented the
	// callback from firing. Stop is safe to call more than once.
	Stop() bool
}

// Clock provides the current time and timer scheduling.
type Clock interface {
	Now() time.Time

	// AfterFunc schedules fn to run after d. The callback runs on its own
	// goroutine for the real clock; fakes may run it synchronously.
	AfterFunc(d time.Duration, fn func()) Timer
}

// Real is a production Clock backed by the time package.
type Real struct{}

// Now implements Clock.
func (Real) Now() time.Time { return time.Now() }

// AfterFunc implements Clock.
func (Real) AfterFunc(d time.Duration, fn func()) Timer {
	return realTimer{time.AfterFunc(d, fn)}
}

type realTimer struct {
	t *time.Timer
}

func (rt realTimer) Stop() bool { return rt.t.Stop() }
