// Package transport owns the single WebSocket connection behind a messaging
// session: dialing with a handshake deadline, heartbeat pings, close-code
// classification, and exponential-backoff reconnection. It knows nothing
// about message semantics beyond the two frame types it consumes itself
// (pong, token_expired); everything else is delivered in order on the frame
// channel for the session layer to route.
package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/valsssa/tutorhub-chat/internal/clock"
	"github.com/valsssa/tutorhub-chat/internal/logger"
	"github.com/valsssa/tutorhub-chat/internal/wire"
)

// Defaults for Config fields left zero.
const (
	DefaultMaxAttempts       = 5
	DefaultBaseDelay         = 1 * time.Second
	DefaultMaxDelay          = 30 * time.Second
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultConnectTimeout    = 5 * time.Second
	defaultFrameBuffer       = 64
)

// Config configures a Manager.
type Config struct {
	// URL is the WebSocket endpoint for one conversation stream.
	URL string
	// Header is sent with the upgrade request (ambient session credential).
	Header http.Header
	// AutoReconnect enables the backoff algorithm on abnormal closure.
	AutoReconnect bool
	// MaxAttempts bounds consecutive reconnect attempts (default 5).
	MaxAttempts int
	// BaseDelay seeds the exponential backoff (default 1s).
	BaseDelay time.Duration
	// MaxDelay caps the backoff (default 30s).
	MaxDelay time.Duration
	// HeartbeatInterval is the application-level ping cadence (default 30s).
	HeartbeatInterval time.Duration
	// ConnectTimeout bounds the dial+upgrade handshake (default 5s).
	ConnectTimeout time.Duration
	// Dial opens the socket; tests inject a fake (default gorilla).
	Dial Dialer
	// Clock schedules timers; tests inject a fake (default real).
	Clock clock.Clock
}

func (c *Config) withDefaults() {
	if c.MaxAttempts == 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.BaseDelay == 0 {
		c.BaseDelay = DefaultBaseDelay
	}
	if c.MaxDelay == 0 {
		c.MaxDelay = DefaultMaxDelay
	}
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.Dial == nil {
		c.Dial = gorillaDial
	}
	if c.Clock == nil {
		c.Clock = clock.Real{}
	}
}

// Manager drives the connection lifecycle state machine.
//
// All mutable state lives behind one mutex; the state callback runs outside
// it so observers may call back into the Manager.
type Manager struct {
	cfg Config

	mu       sync.Mutex
	state    State
	err      error
	conn     Conn
	connID   string
	gen      int
	attempt  int
	closed   bool
	lastPong time.Time

	heartbeat clock.Timer
	backoff   clock.Timer

	frames  chan wire.Frame
	onState func(State, error)
}

// New creates a Manager. It does not dial until Connect.
func New(cfg Config) *Manager {
	cfg.withDefaults()
	return &Manager{
		cfg:    cfg,
		state:  StateDisconnected,
		frames: make(chan wire.Frame, defaultFrameBuffer),
	}
}

// OnStateChange registers the single state observer. Must be called before
// Connect.
func (m *Manager) OnStateChange(fn func(State, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onState = fn
}

// Frames returns the ordered stream of decoded inbound frames. pong and
// token_expired never appear here; they are consumed by the Manager.
func (m *Manager) Frames() <-chan wire.Frame {
	return m.frames
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Err returns the last terminal or transient error, nil after a clean open or
// clean disconnect.
func (m *Manager) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// LastPong returns when the server last answered a heartbeat.
func (m *Manager) LastPong() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastPong
}

// Connect starts (or restarts) the connection. It is idempotent: any existing
// socket is torn down first, the attempt counter starts fresh, and a previous
// terminal error is cleared. It returns immediately; progress is observable
// through the state callback.
func (m *Manager) Connect() {
	m.mu.Lock()
	m.closed = false
	m.err = nil
	m.attempt = 0
	m.stopTimersLocked()
	if m.conn != nil {
		writeClose(m.conn, websocket.CloseNormalClosure)
		m.conn.Close()
		m.conn = nil
	}
	m.gen++
	gen := m.gen
	m.state = StateConnecting
	notify := m.notifierLocked()
	m.mu.Unlock()

	notify()
	go m.dial(gen)
}

// Disconnect tears the connection down with a normal closure and cancels
// every timer before returning. It is idempotent and terminal: no reconnect
// fires afterwards until Connect is called again.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	if m.closed && m.conn == nil && m.state == StateDisconnected {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.gen++
	m.stopTimersLocked()
	if m.conn != nil {
		writeClose(m.conn, websocket.CloseNormalClosure)
		m.conn.Close()
		m.conn = nil
	}
	m.state = StateDisconnected
	m.err = nil
	notify := m.notifierLocked()
	m.mu.Unlock()

	notify()
}

// Send marshals v and writes it as one text frame. It reports false when the
// socket is not open or the write fails; it never blocks on connection state
// and never panics. Callers treat failed sends as best-effort drops.
func (m *Manager) Send(v any) bool {
	m.mu.Lock()
	conn := m.conn
	open := m.state == StateConnected
	m.mu.Unlock()

	if !open || conn == nil {
		return false
	}
	data, err := json.Marshal(v)
	if err != nil {
		logger.Errorf("transport: marshal outbound frame: %v", err)
		return false
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		logger.Warnf("transport: write failed: %v", err)
		return false
	}
	return true
}

// dial performs one connection attempt for generation gen.
func (m *Manager) dial(gen int) {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.ConnectTimeout)
	defer cancel()

	conn, err := m.cfg.Dial(ctx, m.cfg.URL, m.cfg.Header)

	m.mu.Lock()
	if gen != m.gen || m.closed {
		m.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}
	if err != nil {
		logger.Warnf("transport: dial failed: %v", err)
		notify := m.settleFailureLocked(err)
		m.mu.Unlock()
		notify()
		return
	}

	m.conn = conn
	m.connID = uuid.NewString()[:8]
	m.state = StateConnected
	m.attempt = 0
	m.err = nil
	m.armHeartbeatLocked(gen)
	notify := m.notifierLocked()
	connID := m.connID
	m.mu.Unlock()

	logger.Infof("transport: connected conn=%s", connID)
	notify()
	go m.readLoop(gen, conn)
}

// readLoop reads frames until the connection ends, forwarding everything the
// Manager does not consume itself.
func (m *Manager) readLoop(gen int, conn Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			m.handleClose(gen, err)
			return
		}

		frame, derr := wire.Decode(data)
		if derr != nil {
			logger.Warnf("transport: dropping malformed frame: %v", derr)
			continue
		}

		switch frame.Type {
		case wire.TypePong:
			m.mu.Lock()
			m.lastPong = m.cfg.Clock.Now()
			m.mu.Unlock()
			logger.Tracef("transport: pong")
		case wire.TypeTokenExpired:
			m.failAuth(gen)
			return
		default:
			select {
			case m.frames <- frame:
			default:
				logger.Warnf("transport: frame buffer full, dropping %s", frame.Type)
			}
		}
	}
}

// handleClose reacts to a read error on generation gen.
func (m *Manager) handleClose(gen int, err error) {
	m.mu.Lock()
	if gen != m.gen || m.closed {
		// Stale loop or intentional teardown already handled.
		m.mu.Unlock()
		return
	}
	m.stopTimersLocked()
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
	connID := m.connID

	var notify func()
	switch classifyClose(err) {
	case closeNormal:
		m.state = StateDisconnected
		m.err = nil
		notify = m.notifierLocked()
	case closeAuth:
		m.state = StateDisconnected
		m.err = ErrAuthExpired
		notify = m.notifierLocked()
	case closePolicy:
		m.state = StateDisconnected
		m.err = ErrPolicyViolation
		notify = m.notifierLocked()
	default:
		notify = m.settleFailureLocked(err)
	}
	m.mu.Unlock()

	logger.Infof("transport: closed conn=%s err=%v", connID, err)
	notify()
}

// failAuth handles an inbound token_expired frame: terminal, no reconnect.
func (m *Manager) failAuth(gen int) {
	m.mu.Lock()
	if gen != m.gen || m.closed {
		m.mu.Unlock()
		return
	}
	m.gen++
	m.stopTimersLocked()
	if m.conn != nil {
		writeClose(m.conn, closeCodeTokenExpired)
		m.conn.Close()
		m.conn = nil
	}
	m.state = StateDisconnected
	m.err = ErrAuthExpired
	notify := m.notifierLocked()
	m.mu.Unlock()

	logger.Warnf("transport: token expired, connection closed")
	notify()
}

// settleFailureLocked runs the reconnection algorithm after a failed dial or
// abnormal closure. Caller holds m.mu; the returned func must run unlocked.
func (m *Manager) settleFailureLocked(err error) func() {
	if !m.cfg.AutoReconnect {
		m.state = StateDisconnected
		m.err = err
		return m.notifierLocked()
	}
	if m.attempt >= m.cfg.MaxAttempts {
		m.state = StateDisconnected
		m.err = ErrMaxAttemptsExceeded
		return m.notifierLocked()
	}

	m.attempt++
	m.state = StateReconnecting
	m.err = err
	delay := Backoff(m.attempt, m.cfg.BaseDelay, m.cfg.MaxDelay)
	gen := m.gen
	logger.Infof("transport: reconnect attempt %d/%d in %s", m.attempt, m.cfg.MaxAttempts, delay)
	m.backoff = m.cfg.Clock.AfterFunc(delay, func() { m.retry(gen) })
	return m.notifierLocked()
}

// retry fires when a backoff timer elapses.
func (m *Manager) retry(gen int) {
	m.mu.Lock()
	if gen != m.gen || m.closed {
		m.mu.Unlock()
		return
	}
	m.gen++
	next := m.gen
	m.state = StateConnecting
	notify := m.notifierLocked()
	m.mu.Unlock()

	notify()
	go m.dial(next)
}

// armHeartbeatLocked schedules the next ping. Caller holds m.mu.
func (m *Manager) armHeartbeatLocked(gen int) {
	if m.heartbeat != nil {
		m.heartbeat.Stop()
	}
	m.heartbeat = m.cfg.Clock.AfterFunc(m.cfg.HeartbeatInterval, func() { m.heartbeatTick(gen) })
}

// heartbeatTick sends one ping and re-arms while the connection is live.
func (m *Manager) heartbeatTick(gen int) {
	m.mu.Lock()
	if gen != m.gen || m.closed || m.state != StateConnected {
		m.mu.Unlock()
		return
	}
	m.armHeartbeatLocked(gen)
	m.mu.Unlock()

	if !m.Send(wire.NewPing()) {
		logger.Debugf("transport: heartbeat skipped, socket not open")
	}
}

// stopTimersLocked cancels heartbeat and backoff timers. Caller holds m.mu.
func (m *Manager) stopTimersLocked() {
	if m.heartbeat != nil {
		m.heartbeat.Stop()
		m.heartbeat = nil
	}
	if m.backoff != nil {
		m.backoff.Stop()
		m.backoff = nil
	}
}

// notifierLocked snapshots (state, err) and returns a func that invokes the
// observer outside the lock. Caller holds m.mu.
func (m *Manager) notifierLocked() func() {
	fn := m.onState
	state := m.state
	err := m.err
	if fn == nil {
		return func() {}
	}
	return func() { fn(state, err) }
}
