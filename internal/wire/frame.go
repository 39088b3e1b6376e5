// Package wire defines the JSON frame protocol spoken over the messaging
// WebSocket. Every frame is a flat JSON object tagged by a "type" field; the
// remaining fields depend on the variant.
//
// Decoding is deliberately forgiving about unknown variants (the server may
// grow new event types) and deliberately strict about the envelope itself: a
// frame without a usable "type" is malformed and gets dropped by the caller,
// never crashing the connection.
package wire

import (
	"encoding/json"
	"fmt"
)

// Type is the frame discriminator.
type Type string

// Server -> client frame types.
const (
	// TypeConnection is the welcome frame sent after a successful upgrade.
	TypeConnection Type = "connection"
	// TypeNewMessage carries a newly created message.
	TypeNewMessage Type = "new_message"
	// TypeMessageSent acknowledges a message created by this user.
	TypeMessageSent Type = "message_sent"
	// TypeMessageRead reports a message transitioning to read.
	TypeMessageRead Type = "message_read"
	// TypeMessageEdited reports an edit to an existing message.
	TypeMessageEdited Type = "message_edited"
	// TypeMessageDeleted reports a message deletion.
	TypeMessageDeleted Type = "message_deleted"
	// TypeTyping reports another participant's typing state.
	TypeTyping Type = "typing"
	// TypePresenceStatus carries online/offline statuses for requested users.
	TypePresenceStatus Type = "presence_status"
	// TypeTokenExpired signals that the session credential is no longer valid.
	TypeTokenExpired Type = "token_expired"
	// TypeError carries a server-side error description.
	TypeError Type = "error"
	// TypePong answers a client ping.
	TypePong Type = "pong"
)

// Client -> server frame types. TypeTyping and TypeMessageRead are reused in
// the outbound direction.
const (
	// TypePresenceCheck requests presence statuses for a set of users.
	TypePresenceCheck Type = "presence_check"
	// TypePing is the application-level heartbeat probe.
	TypePing Type = "ping"
)

// MalformedFrameError describes a frame that could not be decoded. Malformed
// frames are logged and dropped; they are never fatal to the connection.
type MalformedFrameError struct {
	Reason string
	Data   []byte
}

func (e *MalformedFrameError) Error() string {
	return fmt.Sprintf("malformed frame: %s", e.Reason)
}

// Frame is a decoded envelope. Raw retains the full frame body so typed
// payloads can be bound lazily by whoever handles the type.
type Frame struct {
	Type Type
	Raw  json.RawMessage
}

// Decode parses raw text into a Frame. It returns *MalformedFrameError when
// the body is not a JSON object with a non-empty string "type".
func Decode(data []byte) (Frame, error) {
	var env struct {
		Type Type `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return Frame{}, &MalformedFrameError{Reason: err.Error(), Data: data}
	}
	if env.Type == "" {
		return Frame{}, &MalformedFrameError{Reason: "missing type discriminator", Data: data}
	}
	raw := make(json.RawMessage, len(data))
	copy(raw, data)
	return Frame{Type: env.Type, Raw: raw}, nil
}

// Bind unmarshals the full frame body into a typed payload struct.
func (f Frame) Bind(v any) error {
	if err := json.Unmarshal(f.Raw, v); err != nil {
		return &MalformedFrameError{Reason: fmt.Sprintf("%s payload: %v", f.Type, err), Data: f.Raw}
	}
	return nil
}
