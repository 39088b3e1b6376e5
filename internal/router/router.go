// Package router fans decoded frames out to per-type handlers.
package router

import (
	"github.com/valsssa/tutorhub-chat/internal/logger"
	"github.com/valsssa/tutorhub-chat/internal/wire"
)

// Handler consumes one decoded frame.
type Handler func(wire.Frame)

// Router maps frame types to handlers. Register everything before the first
// Dispatch; the table is not guarded and Dispatch runs on the session's
// dispatch goroutine only.
type Router struct {
	handlers map[wire.Type][]Handler
}

// New returns an empty Router.
func New() *Router {
	return &Router{handlers: make(map[wire.Type][]Handler)}
}

// Register appends a handler for the given frame type.
func (r *Router) Register(t wire.Type, h Handler) {
	r.handlers[t] = append(r.handlers[t], h)
}

// Dispatch invokes every handler registered for the frame's type, in
// registration order. Frames with no handler are dropped with a debug log so
// new server-side frame types never break an older client.
func (r *Router) Dispatch(f wire.Frame) {
	hs := r.handlers[f.Type]
	if len(hs) == 0 {
		logger.Debugf("router: no handler for frame type %q", f.Type)
		return
	}
	for _, h := range hs {
		h(f)
	}
}
