package player

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-queue/internal/audio"
	"github.com/edumarques81/stellar-queue/internal/domain/queue"
	"github.com/edumarques81/stellar-queue/internal/protocol"
	"github.com/edumarques81/stellar-queue/internal/transport/queuesocket"
)

// Engine timing defaults.
const (
	DefaultTickInterval      = 100 * time.Millisecond
	DefaultHeartbeatInterval = 2 * time.Second
	DefaultShutdownWait      = 500 * time.Millisecond
)

// Connection is the play queue socket.
type Connection interface {
	Connect(ctx context.Context, token, sessionUUID string) error
	Disconnect()
	Events() <-chan queuesocket.Event
	SendSetState(s queue.State) error
}

// Session is a one-time connection grant.
type Session struct {
	Token       string
	SessionUUID string
}

// TokenSource issues play queue tokens.
type TokenSource interface {
	PlayQueueToken(ctx context.Context) (Session, error)
}

// EngineConfig holds the Engine's collaborators and timings.
type EngineConfig struct {
	Connection Connection
	Tokens     TokenSource
	// TransportEvents may be nil when the audio engine reports nothing.
	TransportEvents <-chan audio.Event

	TickInterval      time.Duration
	HeartbeatInterval time.Duration
	ShutdownWait      time.Duration
}

// Engine is the single owner of the Reconciler. Socket events, transport
// events, timers and user actions are all handled on its goroutine.
type Engine struct {
	r       *Reconciler
	cfg     EngineConfig
	actions chan Action
	done    chan struct{}
}

// NewEngine creates an engine around r.
func NewEngine(r *Reconciler, cfg EngineConfig) *Engine {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if cfg.ShutdownWait <= 0 {
		cfg.ShutdownWait = DefaultShutdownWait
	}
	return &Engine{
		r:       r,
		cfg:     cfg,
		actions: make(chan Action, 32),
		done:    make(chan struct{}),
	}
}

// Submit queues a user action. It never blocks once the engine stopped.
func (e *Engine) Submit(a Action) {
	select {
	case e.actions <- a:
	case <-e.done:
		log.Debug().Msgf("Engine stopped, dropping %T", a)
	}
}

// Done is closed when Run returns.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// Run connects and processes events until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	defer close(e.done)

	e.connect(ctx)

	tick := time.NewTicker(e.cfg.TickInterval)
	defer tick.Stop()
	heartbeat := time.NewTicker(e.cfg.HeartbeatInterval)
	defer heartbeat.Stop()

	events := e.cfg.Connection.Events()
	transportEvents := e.cfg.TransportEvents

	for {
		select {
		case <-ctx.Done():
			e.shutdown()
			return nil

		case ev := <-events:
			e.handleConnectionEvent(ev)

		case a := <-e.actions:
			e.r.Dispatch(a)

		case ev, ok := <-transportEvents:
			if !ok {
				transportEvents = nil
				continue
			}
			e.handleTransportEvent(ev)

		case <-tick.C:
			e.r.Tick()

		case <-heartbeat.C:
			e.r.Heartbeat()
		}
	}
}

func (e *Engine) connect(ctx context.Context) {
	var session Session
	if e.cfg.Tokens != nil {
		s, err := e.cfg.Tokens.PlayQueueToken(ctx)
		if err != nil {
			log.Error().Err(err).Msg("Failed to obtain play queue token")
			return
		}
		session = s
	}

	e.r.SetPhase(PhaseConnecting)
	if err := e.cfg.Connection.Connect(ctx, session.Token, session.SessionUUID); err != nil {
		log.Warn().Err(err).Msg("Initial play queue connect failed")
	}
}

func (e *Engine) handleConnectionEvent(ev queuesocket.Event) {
	switch ev.Kind {
	case queuesocket.EventConnected:
		e.r.SetPhase(PhaseConnecting)
	case queuesocket.EventDisconnected:
		e.r.SetPhase(PhaseDisconnected)
	case queuesocket.EventMessage:
		e.handleMessage(ev.Frame.Message)
	}
}

func (e *Engine) handleMessage(msg protocol.Message) {
	switch m := msg.(type) {
	case protocol.SetState:
		e.r.ApplyRemote(m.Role, m.State)
	case protocol.UpdateLibrary:
		log.Info().Str("marker", m.LastModified).Msg("Library update requested")
		e.r.deps.Host.LibraryUpdateRequested(m.LastModified)
	case protocol.EndSession:
		e.r.EndSession()
		e.cfg.Connection.Disconnect()
	case protocol.Sessions:
		log.Debug().RawJSON("sessions", m.Raw).Msg("Sessions updated")
	}
}

func (e *Engine) handleTransportEvent(ev audio.Event) {
	switch ev.Kind {
	case audio.EventMediaLoaded:
		e.r.MediaReady(ev.DurationMs)
	case audio.EventTrackEnded:
		e.r.TrackEnded()
	}
}

func (e *Engine) shutdown() {
	if e.r.Shutdown() {
		log.Info().Dur("wait", e.cfg.ShutdownWait).Msg("Pushed final pause")
		time.Sleep(e.cfg.ShutdownWait)
	}
	e.cfg.Connection.Disconnect()
}
