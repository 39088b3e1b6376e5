package session

import (
	"sync"
	"time"

	"github.com/valsssa/tutorhub-chat/internal/clock"
	"github.com/valsssa/tutorhub-chat/internal/wire"
)

// Outbound typing is debounced on both edges: the true goes out once at the
// start of a burst, and the false goes out only after the input debounce plus
// a grace of silence, so a pause between words does not flap the indicator.
const (
	typingInputDebounce = 300 * time.Millisecond
	typingSilenceGrace  = 2 * time.Second
)

// typingDebouncer owns the local user's typing signal for one session.
type typingDebouncer struct {
	s *Session

	mu     sync.Mutex
	active bool
	timer  clock.Timer
}

func newTypingDebouncer(s *Session) *typingDebouncer {
	return &typingDebouncer{s: s}
}

// input notes one keystroke. The first one in a burst sends typing=true; every
// one pushes the auto-false out to debounce+grace from now.
func (d *typingDebouncer) input() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.s.closed() || d.s.opts.PartnerID == 0 {
		return
	}
	if !d.active {
		d.active = true
		d.s.mgr.Send(wire.NewTyping(d.s.opts.PartnerID, true))
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = d.s.clk.AfterFunc(typingInputDebounce+typingSilenceGrace, d.expire)
}

// stop ends the burst now (message sent, input cleared, focus lost).
func (d *typingDebouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.finishLocked()
}

// expire fires when the silence window elapses.
func (d *typingDebouncer) expire() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.finishLocked()
}

func (d *typingDebouncer) finishLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if !d.active {
		return
	}
	d.active = false
	d.s.mgr.Send(wire.NewTyping(d.s.opts.PartnerID, false))
}

// cancel drops the timer without sending anything; the socket is going away.
func (d *typingDebouncer) cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.active = false
}
