// Package queuesocket manages the persistent connection to the play queue server.
package queuesocket

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-queue/internal/domain/queue"
	"github.com/edumarques81/stellar-queue/internal/protocol"
)

// ReconnectDelay is the fixed delay before retrying after an unrequested close.
const ReconnectDelay = 5 * time.Second

// ErrNotConnected is returned when sending while the socket is down.
var ErrNotConnected = errors.New("play queue not connected")

// EventKind identifies a connection event.
type EventKind int

const (
	EventConnected EventKind = iota
	EventDisconnected
	EventMessage
)

func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	default:
		return "message"
	}
}

// Event is emitted on the manager's event channel.
type Event struct {
	Kind  EventKind
	Raw   []byte
	Frame protocol.Frame
}

// Conn is the subset of *websocket.Conn used by the manager.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// DialFunc opens a socket to the given URL.
type DialFunc func(ctx context.Context, rawURL string) (Conn, error)

// Timer is a cancellable pending call.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d.
type AfterFunc func(d time.Duration, f func()) Timer

type connState int

const (
	stateIdle connState = iota
	stateConnecting
	stateConnected
)

// Option configures a Manager.
type Option func(*Manager)

// WithDialer replaces the websocket dialer.
func WithDialer(dial DialFunc) Option {
	return func(m *Manager) {
		m.dial = dial
	}
}

// WithAfterFunc replaces the reconnect timer factory.
func WithAfterFunc(fn AfterFunc) Option {
	return func(m *Manager) {
		m.afterFunc = fn
	}
}

// WithEventBuffer sets the event channel capacity.
func WithEventBuffer(n int) Option {
	return func(m *Manager) {
		m.events = make(chan Event, n)
	}
}

// Manager owns the socket lifecycle: connect, read, serialized writes and
// fixed-delay reconnect.
type Manager struct {
	baseURL   string
	info      protocol.ClientInfo
	dial      DialFunc
	afterFunc AfterFunc
	events    chan Event

	mu          sync.Mutex
	state       connState
	conn        Conn
	token       string
	sessionUUID string
	timer       Timer
	gen         uint64
	// stop is closed when the current connection is torn down, releasing a
	// read loop blocked on a full event channel.
	stop chan struct{}

	writeMu sync.Mutex
}

// NewManager creates a manager for the queue server at baseURL.
func NewManager(baseURL string, info protocol.ClientInfo, opts ...Option) *Manager {
	m := &Manager{
		baseURL:   baseURL,
		info:      info,
		dial:      dialWebsocket,
		afterFunc: func(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) },
		events:    make(chan Event, 64),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func dialWebsocket(ctx context.Context, rawURL string) (Conn, error) {
	dialer := websocket.Dialer{
		Proxy:            websocket.DefaultDialer.Proxy,
		HandshakeTimeout: 10 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, rawURL, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Events returns the channel connection events are delivered on.
func (m *Manager) Events() <-chan Event {
	return m.events
}

// SessionUUID returns the session uuid currently attached to outbound frames.
func (m *Manager) SessionUUID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionUUID
}

// Connected reports whether the socket is open.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == stateConnected
}

// Connect opens the socket with a one-time token. It is a no-op while
// connected or connecting and cancels any pending reconnect.
// An empty sessionUUID keeps the current one, generating one if none is known.
func (m *Manager) Connect(ctx context.Context, token, sessionUUID string) error {
	m.mu.Lock()
	if m.state != stateIdle {
		m.mu.Unlock()
		return nil
	}
	m.stopTimerLocked()
	m.token = token
	if sessionUUID != "" {
		m.sessionUUID = sessionUUID
	} else if m.sessionUUID == "" {
		m.sessionUUID = uuid.NewString()
	}
	m.state = stateConnecting
	m.gen++
	gen := m.gen
	m.mu.Unlock()

	endpoint, err := m.endpoint(token)
	if err != nil {
		m.mu.Lock()
		if gen == m.gen {
			m.state = stateIdle
		}
		m.mu.Unlock()
		return err
	}

	log.Info().Str("url", m.baseURL).Msg("Connecting to play queue")

	conn, err := m.dial(ctx, endpoint)

	m.mu.Lock()
	if gen != m.gen {
		// Disconnect was called while dialing.
		m.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return nil
	}
	if err != nil {
		m.state = stateIdle
		m.scheduleReconnectLocked()
		m.mu.Unlock()

		log.Warn().Err(err).Dur("retry_in", ReconnectDelay).Msg("Play queue connection failed")
		m.emit(Event{Kind: EventDisconnected})
		return fmt.Errorf("failed to connect to play queue: %w", err)
	}
	m.conn = conn
	m.state = stateConnected
	stop := make(chan struct{})
	m.stop = stop
	session := m.sessionUUID
	m.mu.Unlock()

	log.Info().Str("session", session).Msg("Connected to play queue")
	m.emit(Event{Kind: EventConnected})

	go m.readLoop(conn, gen, stop)

	frame, err := protocol.EncodeGetState(m.info, session)
	if err != nil {
		return err
	}
	if err := m.write(conn, frame); err != nil {
		log.Warn().Err(err).Msg("Failed to request play queue state")
	}
	return nil
}

// Disconnect closes the socket and suppresses reconnects.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.stopTimerLocked()
	m.gen++
	conn := m.conn
	wasUp := m.state != stateIdle
	m.conn = nil
	m.state = stateIdle
	m.closeStopLocked()
	m.mu.Unlock()

	if conn != nil {
		m.writeMu.Lock()
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		m.writeMu.Unlock()
		conn.Close()
	}
	if wasUp {
		log.Info().Msg("Disconnected from play queue")
		m.emit(Event{Kind: EventDisconnected})
	}
}

// SendSetState pushes a full snapshot. It returns ErrNotConnected while down.
func (m *Manager) SendSetState(s queue.State) error {
	m.mu.Lock()
	conn := m.conn
	session := m.sessionUUID
	m.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}

	frame, err := protocol.EncodeSetState(m.info, session, s)
	if err != nil {
		return err
	}
	return m.write(conn, frame)
}

func (m *Manager) write(conn Conn, data []byte) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

func (m *Manager) readLoop(conn Conn, gen uint64, stop <-chan struct{}) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			m.handleClose(conn, gen, err)
			return
		}

		frame, err := protocol.Decode(data)
		if frame.SessionUUID != nil && *frame.SessionUUID != "" {
			m.mu.Lock()
			m.sessionUUID = *frame.SessionUUID
			m.mu.Unlock()
		}
		if err != nil {
			log.Debug().Err(err).Int("size", len(data)).Msg("Dropping play queue frame")
			continue
		}

		select {
		case m.events <- Event{Kind: EventMessage, Raw: data, Frame: frame}:
		case <-stop:
			return
		}
	}
}

func (m *Manager) handleClose(conn Conn, gen uint64, err error) {
	m.mu.Lock()
	if gen != m.gen || m.conn != conn {
		m.mu.Unlock()
		return
	}
	m.conn = nil
	m.state = stateIdle
	m.closeStopLocked()
	m.scheduleReconnectLocked()
	m.mu.Unlock()

	conn.Close()
	log.Warn().Err(err).Dur("retry_in", ReconnectDelay).Msg("Play queue connection lost")
	m.emit(Event{Kind: EventDisconnected})
}

// scheduleReconnectLocked arms the single-shot reconnect timer (must hold lock).
func (m *Manager) scheduleReconnectLocked() {
	m.stopTimerLocked()
	token := m.token
	gen := m.gen
	m.timer = m.afterFunc(ReconnectDelay, func() {
		m.mu.Lock()
		if gen != m.gen || m.state != stateIdle {
			m.mu.Unlock()
			return
		}
		m.timer = nil
		m.mu.Unlock()

		if err := m.Connect(context.Background(), token, ""); err != nil {
			log.Debug().Err(err).Msg("Play queue reconnect failed")
		}
	})
}

func (m *Manager) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Manager) endpoint(token string) (string, error) {
	u, err := url.Parse(m.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid play queue url %q: %w", m.baseURL, err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (m *Manager) closeStopLocked() {
	if m.stop != nil {
		close(m.stop)
		m.stop = nil
	}
}

// emit delivers a lifecycle event without blocking. Disconnect runs on the
// goroutine that drains the channel, so a full buffer drops the event.
func (m *Manager) emit(ev Event) {
	select {
	case m.events <- ev:
	default:
		log.Warn().Stringer("event", ev.Kind).Msg("Play queue event buffer full, dropping event")
	}
}
