package transport

import "errors"

var (
	// ErrAuthExpired is terminal: the session credential was rejected, either
	// by a token_expired frame or an auth close code. No reconnection happens;
	// the UI must prompt re-authentication instead of retrying forever.
	ErrAuthExpired = errors.New("authentication expired")

	// ErrMaxAttemptsExceeded is terminal: the reconnection algorithm ran out
	// of attempts. A manual Connect() starts over.
	ErrMaxAttemptsExceeded = errors.New("reconnect attempts exhausted")

	// ErrPolicyViolation is terminal: the server closed with a policy
	// violation code.
	ErrPolicyViolation = errors.New("closed for policy violation")

	// ErrConnectTimeout marks a handshake that did not complete in time. It
	// feeds the reconnection algorithm like any abnormal closure.
	ErrConnectTimeout = errors.New("connection timed out")
)
