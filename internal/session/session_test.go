package session

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/valsssa/tutorhub-chat/internal/clock/clocktest"
	"github.com/valsssa/tutorhub-chat/internal/timeline"
	"github.com/valsssa/tutorhub-chat/internal/transport"
	"github.com/valsssa/tutorhub-chat/internal/wire"
)

var testStart = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeConn mirrors the transport test double: scripted reads, recorded writes.
type fakeConn struct {
	in   chan []byte
	done chan struct{}
	once sync.Once

	mu     sync.Mutex
	writes [][]byte
}

func newFakeConn() *fakeConn {
	return &fakeConn{in: make(chan []byte, 16), done: make(chan struct{})}
}

func (c *fakeConn) deliver(data string) { c.in <- []byte(data) }

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case data := <-c.in:
		return websocket.TextMessage, data, nil
	case <-c.done:
		return 0, nil, net.ErrClosed
	}
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	c.writes = append(c.writes, cp)
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

// writtenOfType returns every recorded write whose type field matches t.
func (c *fakeConn) writtenOfType(t wire.Type) []map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []map[string]any
	for _, raw := range c.writes {
		var m map[string]any
		if json.Unmarshal(raw, &m) == nil && m["type"] == string(t) {
			out = append(out, m)
		}
	}
	return out
}

// fakeAPI serves scripted pages keyed by page number.
type fakeAPI struct {
	mu         sync.Mutex
	pages      map[int]timeline.Page
	err        error
	calls      []int
	threadRead int
}

func (a *fakeAPI) Messages(_ context.Context, _ int64, page int) (timeline.Page, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, page)
	if a.err != nil {
		return timeline.Page{}, a.err
	}
	return a.pages[page], nil
}

func (a *fakeAPI) MarkThreadRead(context.Context, int64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.threadRead++
	return nil
}

func (a *fakeAPI) pageCalls() []int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]int(nil), a.calls...)
}

type fixture struct {
	sess   *Session
	conn   *fakeConn
	clk    *clocktest.Clock
	api    *fakeAPI
	events chan Event
}

func newFixture(t *testing.T, tweak func(*Options)) *fixture {
	t.Helper()
	fx := &fixture{
		conn:   newFakeConn(),
		clk:    clocktest.New(testStart),
		events: make(chan Event, 128),
	}
	fx.api = &fakeAPI{pages: map[int]timeline.Page{
		1: {
			Messages: []timeline.Message{{
				ID: 1, SenderID: 9, RecipientID: 7, ConversationID: 3,
				Content: "hello", CreatedAt: testStart.Add(-time.Hour),
			}},
			Page: 1, PageSize: 20, Total: 1,
		},
	}}
	opts := Options{
		ConversationID: 3,
		PartnerID:      9,
		URL:            "wss://example.test/ws/chat/3/",
		API:            fx.api,
		OnEvent:        func(ev Event) { fx.events <- ev },
		Clock:          fx.clk,
		Dial: func(context.Context, string, http.Header) (transport.Conn, error) {
			return fx.conn, nil
		},
	}
	if tweak != nil {
		tweak(&opts)
	}
	fx.sess = New(opts)
	t.Cleanup(fx.sess.Close)
	return fx
}

func (fx *fixture) waitEvent(t *testing.T, kind EventKind) Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-fx.events:
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", kind)
		}
	}
}

func (fx *fixture) waitConnected(t *testing.T) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-fx.events:
			if ev.Kind == EventState && ev.State == transport.StateConnected {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for connected state")
		}
	}
}

func TestConnectChecksPresenceAndRefreshes(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, nil)
	fx.waitConnected(t)
	fx.waitEvent(t, EventRefresh)

	checks := fx.conn.writtenOfType(wire.TypePresenceCheck)
	require.Len(t, checks, 1)
	require.Equal(t, []any{float64(9)}, checks[0]["user_ids"])

	msgs := fx.sess.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, int64(1), msgs[0].ID)
	require.Equal(t, []int{1}, fx.api.pageCalls())
}

func TestInboundMessageAppendsAndClearsTyping(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, nil)
	fx.waitConnected(t)
	fx.waitEvent(t, EventRefresh)

	fx.conn.deliver(`{"type":"typing","user_id":9,"is_typing":true}`)
	fx.waitEvent(t, EventTyping)
	require.True(t, fx.sess.IsTyping(9))

	fx.conn.deliver(`{"type":"new_message","message_id":2,"sender_id":9,"recipient_id":7,"conversation_id":3,"content":"done typing","created_at":"2026-03-01T12:01:00Z"}`)
	ev := fx.waitEvent(t, EventMessage)
	require.Equal(t, int64(2), ev.Message.ID)

	require.False(t, fx.sess.IsTyping(9), "a message must end the sender's typing burst")
	msgs := fx.sess.Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, int64(2), msgs[1].ID, "live message must sort after history")
}

func TestInboundTypingAutoClears(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, nil)
	fx.waitConnected(t)

	fx.conn.deliver(`{"type":"typing","user_id":9,"is_typing":true}`)
	fx.waitEvent(t, EventTyping)
	require.True(t, fx.sess.IsTyping(9))

	fx.clk.Advance(5 * time.Second)
	require.False(t, fx.sess.IsTyping(9))
}

func TestPresenceStatusMerges(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, nil)
	fx.waitConnected(t)

	fx.conn.deliver(`{"type":"presence_status","statuses":{"9":"online"}}`)
	fx.waitEvent(t, EventPresence)
	require.True(t, fx.sess.IsOnline(9))

	fx.conn.deliver(`{"type":"presence_status","statuses":{"11":"offline"}}`)
	fx.waitEvent(t, EventPresence)
	require.True(t, fx.sess.IsOnline(9), "unrelated snapshot must not clear known presence")
}

func TestOutboundTypingDebounce(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, nil)
	fx.waitConnected(t)

	fx.sess.InputTyping()
	fx.sess.InputTyping()
	fx.sess.InputTyping()

	typings := fx.conn.writtenOfType(wire.TypeTyping)
	require.Len(t, typings, 1, "true goes out once per burst")
	require.Equal(t, true, typings[0]["is_typing"])

	fx.clk.Advance(2300 * time.Millisecond)
	typings = fx.conn.writtenOfType(wire.TypeTyping)
	require.Len(t, typings, 2)
	require.Equal(t, false, typings[1]["is_typing"])

	// A fresh burst starts over.
	fx.sess.InputTyping()
	typings = fx.conn.writtenOfType(wire.TypeTyping)
	require.Len(t, typings, 3)
	require.Equal(t, true, typings[2]["is_typing"])
}

func TestStopTypingCutsBurstShort(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, nil)
	fx.waitConnected(t)

	fx.sess.InputTyping()
	fx.sess.StopTyping()

	typings := fx.conn.writtenOfType(wire.TypeTyping)
	require.Len(t, typings, 2)
	require.Equal(t, false, typings[1]["is_typing"])

	// The cancelled timer must not fire a second false.
	fx.clk.Advance(time.Minute)
	require.Len(t, fx.conn.writtenOfType(wire.TypeTyping), 2)
}

func TestMarkAsReadFlipsOnlyOnEcho(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, nil)
	fx.waitConnected(t)
	fx.waitEvent(t, EventRefresh)

	fx.sess.MarkAsRead(1)
	receipts := fx.conn.writtenOfType(wire.TypeMessageRead)
	require.Len(t, receipts, 1)
	require.Equal(t, float64(1), receipts[0]["message_id"])
	require.False(t, fx.sess.Messages()[0].IsRead, "send alone must not flip is_read")

	fx.conn.deliver(`{"type":"message_read","message_id":1,"read_at":"2026-03-01T12:02:00Z"}`)
	fx.waitEvent(t, EventRead)
	require.True(t, fx.sess.Messages()[0].IsRead)
}

func TestLoadOlderFetchesNextPage(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, func(o *Options) { o.DisableAutoConnect = true })
	fx.api.pages[1] = timeline.Page{
		Messages: []timeline.Message{{ID: 10, ConversationID: 3, Content: "recent", CreatedAt: testStart}},
		Page:     1, PageSize: 1, Total: 2,
	}
	fx.api.pages[2] = timeline.Page{
		Messages: []timeline.Message{{ID: 5, ConversationID: 3, Content: "older", CreatedAt: testStart.Add(-time.Hour)}},
		Page:     2, PageSize: 1, Total: 2,
	}

	fx.sess.Reconnect()
	fx.waitConnected(t)
	fx.waitEvent(t, EventRefresh)
	require.True(t, fx.sess.HasMore())

	require.NoError(t, fx.sess.LoadOlder(context.Background()))
	msgs := fx.sess.Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, int64(5), msgs[0].ID)
	require.False(t, fx.sess.HasMore())

	// Complete history makes LoadOlder a no-op.
	calls := len(fx.api.pageCalls())
	require.NoError(t, fx.sess.LoadOlder(context.Background()))
	require.Len(t, fx.api.pageCalls(), calls)
}

func TestRefreshErrorDoesNotTouchConnection(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, nil)
	fx.waitConnected(t)

	fx.api.mu.Lock()
	fx.api.err = errors.New("backend down")
	fx.api.mu.Unlock()

	require.Error(t, fx.sess.Refresh(context.Background()))
	require.Equal(t, transport.StateConnected, fx.sess.State())
}

func TestExpiredTokenPreflight(t *testing.T) {
	t.Parallel()

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": testStart.Add(-time.Hour).Unix(),
	})
	signed, err := tok.SignedString([]byte("secret"))
	require.NoError(t, err)

	var dials int
	fx := newFixture(t, func(o *Options) {
		o.Token = signed
		o.Dial = func(context.Context, string, http.Header) (transport.Conn, error) {
			dials++
			return nil, errors.New("must not dial")
		}
	})

	ev := fx.waitEvent(t, EventState)
	require.Equal(t, transport.StateDisconnected, ev.State)
	require.ErrorIs(t, ev.Err, transport.ErrAuthExpired)
	require.ErrorIs(t, fx.sess.Err(), transport.ErrAuthExpired)
	require.Zero(t, dials, "an expired token must not burn a dial attempt")
}

func TestMarkThreadRead(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, nil)
	fx.waitConnected(t)
	require.NoError(t, fx.sess.MarkThreadRead(context.Background()))
	require.Equal(t, 1, fx.api.threadRead)
}

func TestCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, nil)
	fx.waitConnected(t)

	fx.sess.Close()
	fx.sess.Close()
	require.Equal(t, transport.StateDisconnected, fx.sess.State())
	require.Equal(t, 0, fx.clk.Pending(), "close must cancel every timer")
}
