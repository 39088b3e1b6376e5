// Package presence tracks which users are online and which are typing.
//
// Both facts are ephemeral: they reflect the live socket only, are rebuilt
// from a presence_check round trip after every (re)connect, and nothing here
// survives a teardown.
package presence

import (
	"sync"
	"time"

	"github.com/valsssa/tutorhub-chat/internal/clock"
)

// typingTTL is how long a typing indicator stays lit without a refresh.
// The server does not send typing=false on its own; a peer that stops typing
// mid-word or loses its connection would otherwise stay "typing" forever.
const typingTTL = 5 * time.Second

// Tracker holds presence and typing state for the users in one conversation.
type Tracker struct {
	clk clock.Clock

	mu      sync.Mutex
	online  map[int64]bool
	typing  map[int64]clock.Timer
	stopped bool
}

// NewTracker returns an empty Tracker scheduling on clk.
func NewTracker(clk clock.Clock) *Tracker {
	return &Tracker{
		clk:    clk,
		online: make(map[int64]bool),
		typing: make(map[int64]clock.Timer),
	}
}

// OnTyping applies a typing signal for one user. A true signal (re)arms that
// user's auto-clear timer, so the latest signal always wins the debounce; a
// false signal clears immediately.
func (t *Tracker) OnTyping(userID int64, isTyping bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	if timer, ok := t.typing[userID]; ok {
		timer.Stop()
		delete(t.typing, userID)
	}
	if !isTyping {
		return
	}
	t.typing[userID] = t.clk.AfterFunc(typingTTL, func() { t.expireTyping(userID) })
}

// ClearTyping drops the typing indicator for one user immediately. The session
// calls this when a new_message from that user arrives: sending a message ends
// the typing burst regardless of the timer.
func (t *Tracker) ClearTyping(userID int64) {
	t.OnTyping(userID, false)
}

func (t *Tracker) expireTyping(userID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.typing, userID)
}

// OnPresence merges a presence snapshot into the tracked set. Users absent
// from the snapshot keep their previous status; a presence_status frame only
// speaks for the users it names.
func (t *Tracker) OnPresence(statuses map[int64]bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	for id, online := range statuses {
		t.online[id] = online
	}
}

// IsTyping reports whether the user has an unexpired typing indicator.
func (t *Tracker) IsTyping(userID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.typing[userID]
	return ok
}

// IsOnline reports the last known presence of the user, false when unknown.
func (t *Tracker) IsOnline(userID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.online[userID]
}

// Reset clears all state, for use across a reconnect where the server will
// resend presence.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, timer := range t.typing {
		timer.Stop()
		delete(t.typing, id)
	}
	t.online = make(map[int64]bool)
}

// Stop cancels every pending timer. The Tracker ignores all signals afterwards.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	for id, timer := range t.typing {
		timer.Stop()
		delete(t.typing, id)
	}
}
