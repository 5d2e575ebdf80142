// Package main is the entry point for the Stellar Queue play queue client.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-queue/internal/domain/device"
	"github.com/edumarques81/stellar-queue/internal/domain/library"
	"github.com/edumarques81/stellar-queue/internal/domain/player"
	"github.com/edumarques81/stellar-queue/internal/infra/cache"
	"github.com/edumarques81/stellar-queue/internal/infra/ibroadcast"
	"github.com/edumarques81/stellar-queue/internal/infra/mpd"
	"github.com/edumarques81/stellar-queue/internal/protocol"
	"github.com/edumarques81/stellar-queue/internal/transport/queuesocket"
	"github.com/edumarques81/stellar-queue/internal/transport/socketio"
	"github.com/edumarques81/stellar-queue/internal/version"
)

const accessTokenEnv = "STELLAR_ACCESS_TOKEN"

func main() {
	// Command line flags
	port := flag.String("port", "3002", "HTTP server port")
	mpdHost := flag.String("mpd-host", "localhost", "MPD host")
	mpdPort := flag.Int("mpd-port", 6600, "MPD port")
	mpdPassword := flag.String("mpd-password", "", "MPD password")
	queueURL := flag.String("queue-url", ibroadcast.DefaultQueueURL, "Play queue server websocket URL")
	apiURL := flag.String("api-url", ibroadcast.DefaultAPIURL, "iBroadcast API URL")
	libraryURL := flag.String("library-url", ibroadcast.DefaultLibraryURL, "iBroadcast library URL")
	accessToken := flag.String("access-token", "", "iBroadcast access token (default $"+accessTokenEnv+")")
	deviceName := flag.String("device-name", "", "Name announced to the play queue (default: stored name or hostname)")
	deviceConfig := flag.String("device-config", device.DefaultConfigPath, "Device identity file")
	cacheDB := flag.String("cache-db", cache.DefaultDBPath, "Library cache database path")
	maxClients := flag.Int("max-clients", socketio.DefaultMaxExternal, "Concurrent UI clients allowed from other hosts")
	corsOrigin := flag.String("cors-origin", "", "Allowed CORS origin for HTTP endpoints (default any)")
	staticDir := flag.String("static", "", "Directory to serve static files from (optional)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	token := *accessToken
	if token == "" {
		token = os.Getenv(accessTokenEnv)
	}

	// Setup logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	versionInfo := version.GetInfo()
	log.Info().
		Str("version", versionInfo.Version).
		Str("commit", versionInfo.GitCommit).
		Msgf("Starting %s play queue sync", versionInfo.Name)
	log.Info().
		Str("port", *port).
		Str("mpd_host", *mpdHost).
		Int("mpd_port", *mpdPort).
		Str("queue_url", *queueURL).
		Str("cache_db", *cacheDB).
		Bool("token_set", token != "").
		Bool("password_set", *mpdPassword != "").
		Msg("Configuration")

	if token == "" {
		log.Warn().Msg("No access token set: the play queue and library sync stay offline")
	}

	// Library cache
	db := cache.NewDB(*cacheDB)
	if err := db.Open(); err != nil {
		log.Fatal().Err(err).Msg("Failed to open library cache")
	}
	defer db.Close()
	dao := cache.NewDAO(db)

	identity, err := device.NewService(*deviceConfig, *deviceName)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load device identity")
	}
	deviceInfo := identity.Info()

	api := ibroadcast.NewClient(ibroadcast.Config{
		APIURL:      *apiURL,
		LibraryURL:  *libraryURL,
		AccessToken: token,
		Platform:    versionInfo.Name,
	})
	defer api.Close()

	libService := library.NewService(dao, api)

	// Create MPD client
	mpdClient := mpd.NewClient(*mpdHost, *mpdPort, *mpdPassword)
	if err := mpdClient.Connect(); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to MPD")
	}
	defer mpdClient.Close()
	log.Info().Msg("MPD connection verified")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	transport := mpd.NewTransport(mpdClient)
	transportEvents, err := transport.Watch(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to start MPD watcher")
	}

	conn := queuesocket.NewManager(*queueURL, protocol.ClientInfo{
		Client:     versionInfo.Client(),
		DeviceName: deviceInfo.Name,
	})

	// The socket server needs the engine and the engine reports to the
	// socket server; actions are forwarded once the engine exists.
	var engine *player.Engine
	socketServer, err := socketio.NewServer(
		socketio.ControllerFunc(func(a player.Action) { engine.Submit(a) }),
		libService,
		socketio.Config{
			MaxExternal: *maxClients,
			System: socketio.SystemInfo{
				ID:       deviceInfo.UUID,
				Name:     deviceInfo.Name,
				Host:     deviceInfo.Host,
				Platform: deviceInfo.Platform,
				Version:  versionInfo.Version,
			},
		},
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Socket.io server")
	}
	defer socketServer.Close()

	reconciler := player.NewReconciler(player.Deps{
		Transport: transport,
		Catalog:   libService,
		Streamer:  api,
		Sender:    conn,
		Host:      socketServer,
		Snapshots: dao,
	})

	if snapshot, ok, err := dao.LoadQueueSnapshot(); err != nil {
		log.Warn().Err(err).Msg("Failed to load cached queue")
	} else if ok {
		log.Info().Int("tracks", len(snapshot.Tracks)).Msg("Restored cached queue")
		reconciler.Restore(snapshot)
	}

	engine = player.NewEngine(reconciler, player.EngineConfig{
		Connection:      conn,
		Tokens:          api,
		TransportEvents: transportEvents,
	})
	go func() {
		if err := engine.Run(ctx); err != nil {
			log.Error().Err(err).Msg("Engine stopped")
		}
	}()

	if token != "" {
		socketServer.LibraryUpdateRequested("")
	}

	// Setup HTTP server
	mux := http.NewServeMux()

	// Socket.io endpoint
	mux.Handle("/socket.io/", socketServer)

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		status := map[string]any{
			"status": "ok",
			"mpd":    "connected",
			"queue":  conn.Connected(),
		}
		code := http.StatusOK
		if err := mpdClient.Ping(); err != nil {
			status["status"] = "error"
			status["mpd"] = "disconnected"
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, status)
	})

	// Version endpoint
	mux.HandleFunc("/api/v1/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, version.GetInfo())
	})

	// Library stats endpoint
	mux.HandleFunc("/api/v1/library/stats", func(w http.ResponseWriter, r *http.Request) {
		stats, err := libService.Stats()
		if err != nil {
			log.Error().Err(err).Msg("Failed to get library stats")
			http.Error(w, "library unavailable", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	})

	if *staticDir != "" {
		log.Info().Str("dir", *staticDir).Msg("Serving static files")
		mux.Handle("/", http.FileServer(http.Dir(*staticDir)))
	}

	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      corsMiddleware(*corsOrigin, mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		log.Info().Msg("Shutting down...")
		cancel()

		// Let the engine push its final pause before the process exits.
		select {
		case <-engine.Done():
		case <-time.After(2 * time.Second):
			log.Warn().Msg("Engine did not stop in time")
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server shutdown error")
		}
	}()

	log.Info().Str("addr", ":"+*port).Msg("HTTP server listening")
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("HTTP server error")
	}

	log.Info().Msg("Server stopped")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("Failed to write response")
	}
}
