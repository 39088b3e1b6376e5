package wire

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDecodeNewMessage(t *testing.T) {
	raw := []byte(`{
  "type": "new_message",
  "message_id": 42,
  "sender_id": 7,
  "recipient_id": 9,
  "conversation_id": 3,
  "content": "see you at 5pm",
  "created_at": "2026-03-01T12:30:00Z"
}`)

	frame, err := Decode(raw)
	require.NoError(t, err)
	require.Equal(t, TypeNewMessage, frame.Type)

	var p NewMessagePayload
	require.NoError(t, frame.Bind(&p))
	require.Equal(t, int64(42), p.MessageID)
	require.Equal(t, int64(7), p.SenderID)
	require.Equal(t, int64(9), p.RecipientID)
	require.Equal(t, int64(3), p.ConversationID)
	require.Equal(t, "see you at 5pm", p.Content)
	require.Equal(t, time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC), p.CreatedAt)
}

func TestDecodeMalformed(t *testing.T) {
	cases := map[string][]byte{
		"not json":     []byte(`{"type":`),
		"missing type": []byte(`{"message_id": 1}`),
		"blank type":   []byte(`{"type": ""}`),
		"array body":   []byte(`[1,2,3]`),
	}
	for name, raw := range cases {
		_, err := Decode(raw)
		var malformed *MalformedFrameError
		require.True(t, errors.As(err, &malformed), "%s: expected MalformedFrameError, got %v", name, err)
	}
}

func TestDecodeUnknownTypeSurvives(t *testing.T) {
	frame, err := Decode([]byte(`{"type": "shiny_new_event", "x": 1}`))
	require.NoError(t, err)
	require.Equal(t, Type("shiny_new_event"), frame.Type)
}

func TestBindBadPayload(t *testing.T) {
	frame, err := Decode([]byte(`{"type": "message_read", "message_id": "not-a-number"}`))
	require.NoError(t, err)

	var p MessageReadPayload
	err = frame.Bind(&p)
	var malformed *MalformedFrameError
	require.True(t, errors.As(err, &malformed))
}

func TestPresenceStatusOnlineByUser(t *testing.T) {
	p := PresenceStatusPayload{Statuses: map[string]string{
		"7":    "online",
		"9":    "offline",
		"junk": "online",
	}}
	online := p.OnlineByUser()
	require.Equal(t, map[int64]bool{7: true, 9: false}, online)
}

func TestOutboundShapes(t *testing.T) {
	data, err := json.Marshal(NewTyping(9, true))
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"typing","recipient_id":9,"is_typing":true}`, string(data))

	data, err = json.Marshal(NewMarkRead(42))
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"message_read","message_id":42}`, string(data))

	data, err = json.Marshal(NewPresenceCheck(7, 9))
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"presence_check","user_ids":[7,9]}`, string(data))

	data, err = json.Marshal(NewPing())
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"ping"}`, string(data))
}
