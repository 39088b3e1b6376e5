package wire

import (
	"strconv"
	"time"
)

// ConnectionPayload is the server -> client welcome frame.
type ConnectionPayload struct {
	// Message is a human-readable greeting ("connected").
	Message string `json:"message"`
	// UserID is the authenticated user the stream is scoped to.
	UserID int64 `json:"user_id"`
}

// NewMessagePayload is the server -> client "new_message" frame.
type NewMessagePayload struct {
	MessageID      int64     `json:"message_id"`
	SenderID       int64     `json:"sender_id"`
	RecipientID    int64     `json:"recipient_id"`
	ConversationID int64     `json:"conversation_id"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// MessageSentPayload acknowledges a message this user created. The shape
// mirrors new_message minus the sender fields the client already knows.
type MessageSentPayload struct {
	MessageID      int64     `json:"message_id"`
	ConversationID int64     `json:"conversation_id"`
	CreatedAt      time.Time `json:"created_at"`
}

// MessageReadPayload is the server -> client "message_read" frame. It is both
// the echo of this client's outbound mark-read and the notification that the
// other participant read one of ours.
type MessageReadPayload struct {
	MessageID int64     `json:"message_id"`
	ReadAt    time.Time `json:"read_at"`
}

// MessageEditedPayload is the server -> client "message_edited" frame.
type MessageEditedPayload struct {
	MessageID int64     `json:"message_id"`
	Content   string    `json:"content"`
	EditedAt  time.Time `json:"edited_at"`
}

// MessageDeletedPayload is the server -> client "message_deleted" frame.
type MessageDeletedPayload struct {
	MessageID int64 `json:"message_id"`
}

// TypingPayload is the "typing" frame in both directions. Inbound it reports
// another participant's state (UserID set); outbound it targets a recipient.
type TypingPayload struct {
	UserID   int64 `json:"user_id"`
	IsTyping bool  `json:"is_typing"`
}

// PresenceStatusPayload is the server -> client answer to a presence_check.
// Statuses maps stringified user ids to "online"/"offline"; a response only
// covers the users asked about, so consumers must merge, not replace.
type PresenceStatusPayload struct {
	Statuses map[string]string `json:"statuses"`
}

// OnlineByUser converts Statuses into a userID -> online map, skipping keys
// that are not valid user ids.
func (p PresenceStatusPayload) OnlineByUser() map[int64]bool {
	out := make(map[int64]bool, len(p.Statuses))
	for key, status := range p.Statuses {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			continue
		}
		out[id] = status == "online"
	}
	return out
}

// ErrorPayload is the server -> client "error" frame.
type ErrorPayload struct {
	Message string `json:"message"`
}
