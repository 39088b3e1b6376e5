package transport

import (
	"errors"
	"net"
	"time"

	"github.com/gorilla/websocket"
)

// State is the connection lifecycle state. It is owned exclusively by the
// Manager; everyone else observes it through State() or the state callback.
type State string

const (
	// StateDisconnected means no socket exists and none is being opened.
	StateDisconnected State = "disconnected"
	// StateConnecting means a dial is in flight.
	StateConnecting State = "connecting"
	// StateConnected means the socket is open and frames are flowing.
	StateConnected State = "connected"
	// StateReconnecting means a backoff timer is armed for the next attempt.
	StateReconnecting State = "reconnecting"
)

// Close codes the server uses beyond the RFC 6455 set.
const (
	// closeCodeTokenExpired mirrors the token_expired frame at close time.
	closeCodeTokenExpired = 4001
	// closeCodeAuthRejected is sent when the session credential is invalid.
	closeCodeAuthRejected = 4003
)

// closeKind classifies how a connection ended, which decides whether the
// reconnection algorithm runs.
type closeKind int

const (
	// closeAbnormal is a network-level drop; reconnection applies.
	closeAbnormal closeKind = iota
	// closeNormal is a clean closure; terminal with no error.
	closeNormal
	// closeAuth is an auth failure; terminal, surfaced as ErrAuthExpired.
	closeAuth
	// closePolicy is a policy violation; terminal, surfaced as-is.
	closePolicy
	// closeTimeout is a stalled handshake; reconnection applies.
	closeTimeout
)

// classifyClose maps a read/dial error to a closeKind. It is a pure function
// so the no-reconnect rules are testable without a socket.
func classifyClose(err error) closeKind {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		switch ce.Code {
		case websocket.CloseNormalClosure:
			return closeNormal
		case closeCodeTokenExpired, closeCodeAuthRejected:
			return closeAuth
		case websocket.ClosePolicyViolation:
			return closePolicy
		}
		return closeAbnormal
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return closeTimeout
	}
	if errors.Is(err, ErrConnectTimeout) {
		return closeTimeout
	}
	return closeAbnormal
}

// Backoff returns the delay before reconnect attempt n (1-based):
// min(base * 2^n, limit).
func Backoff(attempt int, base, limit time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= limit {
			return limit
		}
	}
	return delay
}
