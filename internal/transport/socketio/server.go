// Package socketio provides the Socket.io server the local UI talks to.
package socketio

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zishang520/socket.io/servers/socket/v3"
	"github.com/zishang520/socket.io/v3/pkg/types"

	"github.com/edumarques81/stellar-queue/internal/domain/library"
	"github.com/edumarques81/stellar-queue/internal/domain/player"
	"github.com/edumarques81/stellar-queue/internal/domain/queue"
)

const (
	// DefaultMaxExternal is the number of non-local UI clients kept at once.
	DefaultMaxExternal = 4
	// DefaultDebounceWindow collapses bursts of state changes into one push.
	DefaultDebounceWindow = 50 * time.Millisecond
)

// Controller receives user actions. *player.Engine implements it.
type Controller interface {
	Submit(a player.Action)
}

// ControllerFunc adapts a function to Controller.
type ControllerFunc func(a player.Action)

// Submit calls f(a).
func (f ControllerFunc) Submit(a player.Action) {
	f(a)
}

// Library answers the catalog questions the UI asks.
type Library interface {
	AlbumTracks(albumID int64) ([]queue.TrackID, error)
	PlaylistTracks(playlistID int64) ([]queue.TrackID, error)
	Stats() (library.Stats, error)
	Sync(ctx context.Context, marker string) (bool, error)
}

// SystemInfo describes this device on getSystemInfo.
type SystemInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Host     string `json:"host"`
	Platform string `json:"platform,omitempty"`
	Version  string `json:"systemversion"`
}

// Config tunes the server.
type Config struct {
	MaxExternal    int
	DebounceWindow time.Duration
	System         SystemInfo
}

// Server handles Socket.io connections and events. It implements player.Host.
type Server struct {
	io        *socket.Server
	engine    Controller
	library   Library
	system    SystemInfo
	limiter   *ConnectionLimiter
	debouncer *BroadcastDebouncer

	ctx    context.Context
	cancel context.CancelFunc

	mu            sync.RWMutex
	clients       map[string]*socket.Socket
	latest        map[string]any
	lastState     map[string]any
	libraryMarker string
	syncing       bool
}

// NewServer creates a new Socket.io server.
func NewServer(engine Controller, lib Library, cfg Config) (*Server, error) {
	if cfg.MaxExternal <= 0 {
		cfg.MaxExternal = DefaultMaxExternal
	}
	if cfg.DebounceWindow <= 0 {
		cfg.DebounceWindow = DefaultDebounceWindow
	}

	opts := socket.DefaultServerOptions()
	opts.SetPingTimeout(20 * time.Second)
	opts.SetPingInterval(25 * time.Second)
	opts.SetCors(&types.Cors{
		Origin:      "*",
		Credentials: true,
	})

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		io:      socket.NewServer(nil, opts),
		engine:  engine,
		library: lib,
		system:  cfg.System,
		limiter: NewConnectionLimiter(cfg.MaxExternal),
		ctx:     ctx,
		cancel:  cancel,
		clients: make(map[string]*socket.Socket),
	}
	s.debouncer = NewBroadcastDebouncer(cfg.DebounceWindow, s.BroadcastState, s.BroadcastLibraryUpdate)

	s.setupHandlers()

	return s, nil
}

// setupHandlers registers all Socket.io event handlers.
func (s *Server) setupHandlers() {
	s.io.On("connection", func(clients ...any) {
		client := clients[0].(*socket.Socket)
		clientID := string(client.Id())

		if !s.admit(client) {
			return
		}

		s.mu.Lock()
		s.clients[clientID] = client
		s.mu.Unlock()

		go func() {
			time.Sleep(100 * time.Millisecond)
			s.pushState(client)
		}()

		client.On("disconnect", func(args ...any) {
			reason := ""
			if len(args) > 0 {
				if r, ok := args[0].(string); ok {
					reason = r
				}
			}
			log.Info().Str("id", clientID).Str("reason", reason).Msg("Client disconnected")

			s.limiter.Remove(clientID)
			s.mu.Lock()
			delete(s.clients, clientID)
			s.mu.Unlock()
		})

		client.On("getState", func(args ...any) {
			log.Debug().Str("id", clientID).Msg("getState")
			s.pushState(client)
		})

		client.On("getSystemInfo", func(args ...any) {
			client.Emit("pushSystemInfo", s.system)
		})

		s.registerPlayerHandlers(client)
		s.registerQueueHandlers(client)
	})
}

// admit applies the connection limit, evicting the oldest external client
// when a new one pushes the count over.
func (s *Server) admit(client *socket.Socket) bool {
	clientID := string(client.Id())
	address := ""
	if hs := client.Handshake(); hs != nil {
		address = hs.Address
	}

	allowed, evicted := s.limiter.TryAdd(clientID, address)
	if !allowed {
		log.Warn().Str("id", clientID).Str("address", address).Msg("Client rejected")
		client.Disconnect(true)
		return false
	}
	log.Info().Str("id", clientID).Str("address", address).Msg("Client connected")

	if evicted != "" {
		s.mu.Lock()
		old := s.clients[evicted]
		delete(s.clients, evicted)
		s.mu.Unlock()
		if old != nil {
			log.Info().Str("id", evicted).Msg("Evicting oldest external client")
			old.Disconnect(true)
		}
	}
	return true
}

// submit forwards a user action to the engine.
func (s *Server) submit(clientID, event string, a player.Action) {
	log.Debug().Str("id", clientID).Str("event", event).Interface("action", a).Msg("UI action")
	s.engine.Submit(a)
}

// --- player.Host ---

// StateUpdated records the latest engine state and schedules a push.
func (s *Server) StateUpdated(u player.Update) {
	state := buildState(u)

	s.mu.Lock()
	s.latest = state
	s.mu.Unlock()

	s.debouncer.Trigger(SubsystemQueue)
}

// PositionUpdated forwards a position tick. Ticks are not debounced: the UI
// animates from them.
func (s *Server) PositionUpdated(p player.Position) {
	s.io.Emit("pushPosition", p)
}

// SessionEnded tells every client the server closed the session.
func (s *Server) SessionEnded() {
	log.Info().Msg("Play queue session ended")
	s.io.Emit("pushSessionEnded", map[string]any{"ended": true})
}

// LibraryUpdateRequested refreshes the catalog in the background and tells
// clients once it is done.
func (s *Server) LibraryUpdateRequested(marker string) {
	s.mu.Lock()
	s.libraryMarker = marker
	if s.syncing || s.library == nil {
		s.mu.Unlock()
		return
	}
	s.syncing = true
	s.mu.Unlock()

	go s.syncLibrary()
}

func (s *Server) syncLibrary() {
	for {
		s.mu.RLock()
		marker := s.libraryMarker
		s.mu.RUnlock()

		changed, err := s.library.Sync(s.ctx, marker)
		if err != nil {
			log.Error().Err(err).Str("marker", marker).Msg("Library sync failed")
		} else if changed {
			s.debouncer.Trigger(SubsystemLibrary)
		}

		s.mu.Lock()
		// A newer marker arrived while syncing: go again.
		if err == nil && s.libraryMarker != marker && s.ctx.Err() == nil {
			s.mu.Unlock()
			continue
		}
		s.syncing = false
		s.mu.Unlock()
		return
	}
}

// --- Broadcasts ---

// pushState sends the latest state to a client.
func (s *Server) pushState(client *socket.Socket) {
	s.mu.RLock()
	state := s.latest
	s.mu.RUnlock()
	if state == nil {
		return
	}
	client.Emit("pushQueueState", state)
}

// BroadcastState sends the latest state to all connected clients, unless
// nothing a client renders has changed since the last broadcast.
func (s *Server) BroadcastState() {
	s.mu.RLock()
	state := s.latest
	s.mu.RUnlock()
	if state == nil || s.isStateSame(state) {
		return
	}
	s.saveLastState(state)

	s.io.Emit("pushQueueState", state)

	if log.Debug().Enabled() {
		data, _ := json.Marshal(state)
		s.mu.RLock()
		clientCount := len(s.clients)
		s.mu.RUnlock()
		log.Debug().RawJSON("state", data).Int("clients", clientCount).Msg("Broadcast state")
	}
}

// BroadcastLibraryUpdate tells clients the catalog changed.
func (s *Server) BroadcastLibraryUpdate() {
	payload := map[string]any{}
	if s.library != nil {
		if stats, err := s.library.Stats(); err == nil {
			payload["stats"] = stats
		} else {
			log.Error().Err(err).Msg("Failed to get library stats")
		}
	}
	s.mu.RLock()
	payload["marker"] = s.libraryMarker
	s.mu.RUnlock()

	s.io.Emit("pushLibraryUpdate", payload)
}

// ServeHTTP implements http.Handler for the Socket.io server.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.io.ServeHandler(nil).ServeHTTP(w, r)
}

// Close stops pending pushes and closes the Socket.io server.
func (s *Server) Close() error {
	s.cancel()
	s.debouncer.Stop()
	s.io.Close(nil)
	return nil
}
