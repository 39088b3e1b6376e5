package wire

// TypingCommand is the client -> server typing indicator.
type TypingCommand struct {
	Type        Type  `json:"type"`
	RecipientID int64 `json:"recipient_id"`
	IsTyping    bool  `json:"is_typing"`
}

// NewTyping builds a typing command for the given recipient.
func NewTyping(recipientID int64, isTyping bool) TypingCommand {
	return TypingCommand{Type: TypeTyping, RecipientID: recipientID, IsTyping: isTyping}
}

// MarkReadCommand is the client -> server read receipt. It is fire-and-forget:
// the local read state only flips when the message_read echo comes back.
type MarkReadCommand struct {
	Type      Type  `json:"type"`
	MessageID int64 `json:"message_id"`
}

// NewMarkRead builds a read receipt for one message.
func NewMarkRead(messageID int64) MarkReadCommand {
	return MarkReadCommand{Type: TypeMessageRead, MessageID: messageID}
}

// PresenceCheckCommand asks the server for the presence of a set of users.
type PresenceCheckCommand struct {
	Type    Type    `json:"type"`
	UserIDs []int64 `json:"user_ids"`
}

// NewPresenceCheck builds a presence query.
func NewPresenceCheck(userIDs ...int64) PresenceCheckCommand {
	return PresenceCheckCommand{Type: TypePresenceCheck, UserIDs: userIDs}
}

// PingCommand is the application-level heartbeat probe.
type PingCommand struct {
	Type Type `json:"type"`
}

// NewPing builds a heartbeat probe.
func NewPing() PingCommand {
	return PingCommand{Type: TypePing}
}
