// Package clocktest provides a deterministic Clock for tests.
package clocktest

import (
	"sort"
	"sync"
	"time"

	"github.com/valsssa/tutorhub-chat/internal/clock"
)

// Clock is a fake clock.Clock. Timers fire synchronously from Advance on the
// calling goroutine, in deadline order.
type Clock struct {
	mu     sync.Mutex
	now    time.Time
	nextID int
	timers map[int]*fakeTimer
}

var _ clock.Clock = (*Clock)(nil)

// New returns a fake Clock starting at the given time.
func New(start time.Time) *Clock {
	return &Clock{now: start, timers: make(map[int]*fakeTimer)}
}

// Now implements clock.Clock.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc implements clock.Clock.
func (c *Clock) AfterFunc(d time.Duration, fn func()) clock.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	t := &fakeTimer{
		clock: c,
		id:    c.nextID,
		when:  c.now.Add(d),
		fn:    fn,
	}
	c.timers[t.id] = t
	return t
}

// Pending returns the number of armed timers.
func (c *Clock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// Advance moves time forward by d, firing every timer whose deadline is
// reached, in deadline order. Callbacks may arm new timers; those fire too if
// they fall within the advanced window.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		t := c.popDue(target)
		if t == nil {
			break
		}
		c.mu.Lock()
		if t.when.After(c.now) {
			c.now = t.when
		}
		c.mu.Unlock()
		t.fn()
	}

	c.mu.Lock()
	c.now = target
	c.mu.Unlock()
}

// popDue removes and returns the earliest timer due at or before target.
func (c *Clock) popDue(target time.Time) *fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()

	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.when.After(target) {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].when.Equal(due[j].when) {
			return due[i].id < due[j].id
		}
		return due[i].when.Before(due[j].when)
	})
	t := due[0]
	delete(c.timers, t.id)
	return t
}

type fakeTimer struct {
	clock *Clock
	id    int
	when  time.Time
	fn    func()
}

// Stop implements clock.Timer.
func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if _, armed := t.clock.timers[t.id]; !armed {
		return false
	}
	delete(t.clock.timers, t.id)
	return true
}
