// Package session wires transport, routing, presence and the timeline into
// one facade per open conversation. A Session owns every goroutine and timer
// in its scope; closing it tears everything down and nothing is shared
// between sessions.
package session

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/valsssa/tutorhub-chat/internal/api"
	"github.com/valsssa/tutorhub-chat/internal/auth"
	"github.com/valsssa/tutorhub-chat/internal/clock"
	"github.com/valsssa/tutorhub-chat/internal/logger"
	"github.com/valsssa/tutorhub-chat/internal/presence"
	"github.com/valsssa/tutorhub-chat/internal/router"
	"github.com/valsssa/tutorhub-chat/internal/timeline"
	"github.com/valsssa/tutorhub-chat/internal/transport"
	"github.com/valsssa/tutorhub-chat/internal/wire"
)

// refreshTimeout bounds the page-1 refresh triggered by a (re)connect.
const refreshTimeout = 15 * time.Second

// EventKind names one observable change inside a session.
type EventKind string

const (
	EventState    EventKind = "state"
	EventMessage  EventKind = "message"
	EventRead     EventKind = "read"
	EventEdited   EventKind = "edited"
	EventDeleted  EventKind = "deleted"
	EventTyping   EventKind = "typing"
	EventPresence EventKind = "presence"
	EventRefresh  EventKind = "refresh"
	EventError    EventKind = "error"
)

// Event is delivered to the OnEvent callback after the session has applied
// the change, so queries from inside the callback see the new state.
type Event struct {
	Kind    EventKind
	State   transport.State
	Err     error
	Message timeline.Message
	UserID  int64
	Text    string
}

// Options configures a Session.
type Options struct {
	// ConversationID scopes the socket and the REST calls.
	ConversationID int64
	// PartnerID is the other participant, for presence checks. Optional.
	PartnerID int64
	// URL is the WebSocket endpoint for the conversation.
	URL string
	// Header is sent with the upgrade request.
	Header http.Header
	// Token, when set, is preflighted for expiry before every dial.
	Token string
	// API is the REST backfill client.
	API api.Client
	// OnEvent observes session changes. Called from the session's own
	// goroutines; keep it fast. Optional.
	OnEvent func(Event)
	// DisableAutoConnect skips the dial in New; call Reconnect to start.
	DisableAutoConnect bool

	// HeartbeatInterval, ReconnectBaseDelay and ReconnectMaxDelay override
	// the transport defaults when positive.
	HeartbeatInterval  time.Duration
	ReconnectBaseDelay time.Duration
	ReconnectMaxDelay  time.Duration

	// Dial and Clock are injection points for tests.
	Dial  transport.Dialer
	Clock clock.Clock
}

// Session is the client core for one conversation.
type Session struct {
	opts Options
	clk  clock.Clock

	mgr     *transport.Manager
	routes  *router.Router
	tracker *presence.Tracker
	rec     *timeline.Reconciler

	typing *typingDebouncer

	done chan struct{}

	mu      sync.Mutex
	authErr error
}

// New builds a Session and, unless disabled, starts connecting immediately.
func New(opts Options) *Session {
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	s := &Session{
		opts:    opts,
		clk:     opts.Clock,
		routes:  router.New(),
		tracker: presence.NewTracker(opts.Clock),
		rec:     timeline.NewReconciler(),
		done:    make(chan struct{}),
	}
	s.typing = newTypingDebouncer(s)

	s.mgr = transport.New(transport.Config{
		URL:               opts.URL,
		Header:            opts.Header,
		AutoReconnect:     true,
		HeartbeatInterval: opts.HeartbeatInterval,
		BaseDelay:         opts.ReconnectBaseDelay,
		MaxDelay:          opts.ReconnectMaxDelay,
		Dial:              opts.Dial,
		Clock:             opts.Clock,
	})
	s.mgr.OnStateChange(s.onState)
	s.register()
	go s.dispatchLoop()

	if !opts.DisableAutoConnect {
		s.Reconnect()
	}
	return s
}

func (s *Session) register() {
	s.routes.Register(wire.TypeConnection, s.onConnection)
	s.routes.Register(wire.TypeNewMessage, s.onNewMessage)
	s.routes.Register(wire.TypeMessageSent, s.onMessageSent)
	s.routes.Register(wire.TypeMessageRead, s.onMessageRead)
	s.routes.Register(wire.TypeMessageEdited, s.onMessageEdited)
	s.routes.Register(wire.TypeMessageDeleted, s.onMessageDeleted)
	s.routes.Register(wire.TypeTyping, s.onTyping)
	s.routes.Register(wire.TypePresenceStatus, s.onPresenceStatus)
	s.routes.Register(wire.TypeError, s.onServerError)
}

// dispatchLoop is the session's single event thread: every inbound frame is
// applied here, in arrival order.
func (s *Session) dispatchLoop() {
	for {
		select {
		case f := <-s.mgr.Frames():
			s.routes.Dispatch(f)
		case <-s.done:
			return
		}
	}
}

// State returns the connection lifecycle state.
func (s *Session) State() transport.State {
	return s.mgr.State()
}

// Err returns the last terminal error, including an expired-token preflight.
func (s *Session) Err() error {
	s.mu.Lock()
	authErr := s.authErr
	s.mu.Unlock()
	if authErr != nil {
		return authErr
	}
	return s.mgr.Err()
}

// Messages returns the reconciled timeline, ascending by creation time.
func (s *Session) Messages() []timeline.Message {
	return s.rec.Messages()
}

// HasMore reports whether older history pages remain.
func (s *Session) HasMore() bool {
	return s.rec.HasMore()
}

// IsTyping reports whether the user has a live typing indicator.
func (s *Session) IsTyping(userID int64) bool {
	return s.tracker.IsTyping(userID)
}

// IsOnline reports the last known presence of the user.
func (s *Session) IsOnline(userID int64) bool {
	return s.tracker.IsOnline(userID)
}

// Refresh fetches page 1 and merges it. Errors go to the caller and never
// touch the connection state machine.
func (s *Session) Refresh(ctx context.Context) error {
	p, err := s.opts.API.Messages(ctx, s.opts.ConversationID, 1)
	if err != nil {
		return err
	}
	s.rec.MergePage(p)
	s.emit(Event{Kind: EventRefresh})
	return nil
}

// LoadOlder fetches and merges the next older page. A no-op when the history
// is already complete.
func (s *Session) LoadOlder(ctx context.Context) error {
	if !s.rec.HasMore() {
		return nil
	}
	p, err := s.opts.API.Messages(ctx, s.opts.ConversationID, s.rec.NextPage())
	if err != nil {
		return err
	}
	s.rec.MergePage(p)
	s.emit(Event{Kind: EventRefresh})
	return nil
}

// MarkAsRead sends a read receipt for one message. Fire and forget: the local
// is_read only flips when the server echoes message_read back.
func (s *Session) MarkAsRead(messageID int64) {
	s.mgr.Send(wire.NewMarkRead(messageID))
}

// MarkThreadRead marks the whole conversation read over REST.
func (s *Session) MarkThreadRead(ctx context.Context) error {
	return s.opts.API.MarkThreadRead(ctx, s.opts.ConversationID)
}

// InputTyping reports local keyboard activity; see typingDebouncer.
func (s *Session) InputTyping() {
	s.typing.input()
}

// StopTyping ends the local typing burst immediately.
func (s *Session) StopTyping() {
	s.typing.stop()
}

// Reconnect (re)starts the connection, clearing any terminal error. An
// access token that is already expired short-circuits to ErrAuthExpired
// without burning dial attempts.
func (s *Session) Reconnect() {
	if s.closed() {
		return
	}
	if s.opts.Token != "" {
		expired, err := auth.Expired(s.opts.Token, s.clk.Now())
		if err != nil {
			logger.Debugf("session: token preflight skipped: %v", err)
		} else if expired {
			s.mu.Lock()
			s.authErr = transport.ErrAuthExpired
			s.mu.Unlock()
			s.emit(Event{Kind: EventState, State: transport.StateDisconnected, Err: transport.ErrAuthExpired})
			return
		}
	}
	s.mu.Lock()
	s.authErr = nil
	s.mu.Unlock()
	s.mgr.Connect()
}

// Close tears the session down: typing timers, presence timers, the socket
// and the dispatch goroutine. Idempotent; late transport callbacks into a
// closed session are ignored.
func (s *Session) Close() {
	if s.closed() {
		return
	}
	close(s.done)
	s.typing.cancel()
	s.tracker.Stop()
	s.mgr.Disconnect()
}

func (s *Session) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// onState runs on transport goroutines whenever the lifecycle state moves.
func (s *Session) onState(state transport.State, err error) {
	if s.closed() {
		return
	}
	if state == transport.StateConnected {
		// Presence is ephemeral: rebuild it for this physical connection.
		s.tracker.Reset()
		if s.opts.PartnerID != 0 {
			s.mgr.Send(wire.NewPresenceCheck(s.opts.PartnerID))
		}
	}
	s.emit(Event{Kind: EventState, State: state, Err: err})
	if state == transport.StateConnected {
		go s.refreshAfterConnect()
	}
}

// refreshAfterConnect heals any gap the socket missed while down.
func (s *Session) refreshAfterConnect() {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()
	if err := s.Refresh(ctx); err != nil {
		logger.Warnf("session: refresh after connect: %v", err)
	}
}

func (s *Session) onConnection(f wire.Frame) {
	var p wire.ConnectionPayload
	if err := f.Bind(&p); err != nil {
		logger.Warnf("session: bad connection frame: %v", err)
		return
	}
	logger.Infof("session: stream ready for user %d", p.UserID)
}

func (s *Session) onNewMessage(f wire.Frame) {
	var p wire.NewMessagePayload
	if err := f.Bind(&p); err != nil {
		logger.Warnf("session: bad new_message frame: %v", err)
		return
	}
	m := timeline.Message{
		ID:             p.MessageID,
		SenderID:       p.SenderID,
		RecipientID:    p.RecipientID,
		ConversationID: p.ConversationID,
		Content:        p.Content,
		CreatedAt:      p.CreatedAt,
	}
	s.rec.ApplyNew(m)
	// A message ends the sender's typing burst.
	s.tracker.ClearTyping(p.SenderID)
	s.emit(Event{Kind: EventMessage, Message: m, UserID: p.SenderID})
}

func (s *Session) onMessageSent(f wire.Frame) {
	var p wire.MessageSentPayload
	if err := f.Bind(&p); err != nil {
		logger.Warnf("session: bad message_sent frame: %v", err)
		return
	}
	logger.Debugf("session: message %d acknowledged", p.MessageID)
}

func (s *Session) onMessageRead(f wire.Frame) {
	var p wire.MessageReadPayload
	if err := f.Bind(&p); err != nil {
		logger.Warnf("session: bad message_read frame: %v", err)
		return
	}
	s.rec.ApplyRead(p.MessageID, p.ReadAt)
	s.emit(Event{Kind: EventRead, Message: timeline.Message{ID: p.MessageID}})
}

func (s *Session) onMessageEdited(f wire.Frame) {
	var p wire.MessageEditedPayload
	if err := f.Bind(&p); err != nil {
		logger.Warnf("session: bad message_edited frame: %v", err)
		return
	}
	s.rec.ApplyEdited(p.MessageID, p.Content, p.EditedAt)
	s.emit(Event{Kind: EventEdited, Message: timeline.Message{ID: p.MessageID, Content: p.Content}})
}

func (s *Session) onMessageDeleted(f wire.Frame) {
	var p wire.MessageDeletedPayload
	if err := f.Bind(&p); err != nil {
		logger.Warnf("session: bad message_deleted frame: %v", err)
		return
	}
	s.rec.ApplyDeleted(p.MessageID)
	s.emit(Event{Kind: EventDeleted, Message: timeline.Message{ID: p.MessageID}})
}

func (s *Session) onTyping(f wire.Frame) {
	var p wire.TypingPayload
	if err := f.Bind(&p); err != nil {
		logger.Warnf("session: bad typing frame: %v", err)
		return
	}
	s.tracker.OnTyping(p.UserID, p.IsTyping)
	s.emit(Event{Kind: EventTyping, UserID: p.UserID})
}

func (s *Session) onPresenceStatus(f wire.Frame) {
	var p wire.PresenceStatusPayload
	if err := f.Bind(&p); err != nil {
		logger.Warnf("session: bad presence_status frame: %v", err)
		return
	}
	s.tracker.OnPresence(p.OnlineByUser())
	s.emit(Event{Kind: EventPresence})
}

func (s *Session) onServerError(f wire.Frame) {
	var p wire.ErrorPayload
	if err := f.Bind(&p); err != nil {
		logger.Warnf("session: bad error frame: %v", err)
		return
	}
	logger.Warnf("session: server error: %s", p.Message)
	s.emit(Event{Kind: EventError, Text: p.Message})
}

func (s *Session) emit(ev Event) {
	if s.opts.OnEvent == nil {
		return
	}
	s.opts.OnEvent(ev)
}
