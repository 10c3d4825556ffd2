// Command gameserver runs the multiplayer game host.
//
// Architecture overview:
// - Clients connect over WebSocket and exchange JSON envelopes
// - A single scheduler drives every room at a fixed tick rate
// - Each room is a single-writer actor: commands serialize per room and
//   run concurrently across rooms
// - State changes fan out as per-tick deltas plus periodic full snapshots
//
// Connection flow:
// 1. Client connects via WebSocket to /ws
// 2. Client sends createGame or joinGame with a display name
// 3. Server replies with roomStateUpdate carrying the room code and lobby
// 4. Players ready up, the host starts the game, and submitMove commands
//    flow until the game completes
package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/TheZedxD/HomeGameServer-sub001/config"
	"github.com/TheZedxD/HomeGameServer-sub001/internal/clock"
	"github.com/TheZedxD/HomeGameServer-sub001/internal/game"
	"github.com/TheZedxD/HomeGameServer-sub001/internal/games/baccarat"
	"github.com/TheZedxD/HomeGameServer-sub001/internal/games/blackjack"
	"github.com/TheZedxD/HomeGameServer-sub001/internal/games/checkers"
	"github.com/TheZedxD/HomeGameServer-sub001/internal/games/holdem"
	"github.com/TheZedxD/HomeGameServer-sub001/internal/games/stud"
	"github.com/TheZedxD/HomeGameServer-sub001/internal/games/tictactoe"
	"github.com/TheZedxD/HomeGameServer-sub001/internal/room"
)

// GameServer owns the shared runtime: the scheduler, the registries, and
// the WebSocket endpoint.
type GameServer struct {
	cfg       *config.Config
	logger    *zap.Logger
	games     *game.Registry
	scheduler *clock.Scheduler
	rooms     *room.Registry
	upgrader  websocket.Upgrader
	stop      chan struct{}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := buildLogger(cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	server := NewGameServer(cfg, logger)
	logger.Info("game server starting",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.Int("tickRate", cfg.TickRate),
		zap.Int("snapshotRate", cfg.SnapshotRate),
		zap.Int("maxRooms", cfg.MaxRooms),
		zap.Int("maxPlayersPerRoom", cfg.MaxPlayersPerRoom))

	if err := server.Run(); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func buildLogger(format string) (*zap.Logger, error) {
	if format == "json" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// NewGameServer wires the runtime together and registers the shipped
// games.
func NewGameServer(cfg *config.Config, logger *zap.Logger) *GameServer {
	games := game.NewRegistry()
	games.Register(tictactoe.Definition())
	games.Register(checkers.Definition())
	games.Register(blackjack.Definition())
	games.Register(holdem.Definition())
	games.Register(stud.Definition())
	games.Register(baccarat.Definition())

	scheduler := clock.NewScheduler(clock.Options{
		TickInterval:     cfg.TickInterval(),
		SnapshotInterval: cfg.SnapshotInterval(),
		MaxAccumulated:   config.MaxAccumulatedMs * time.Millisecond,
		WarningThreshold: config.TickWarningThresholdMs * time.Millisecond,
		TelemetryWindow:  config.TelemetryWindow,
	}, logger)

	rooms := room.NewRegistry(cfg, games, scheduler, logger)

	return &GameServer{
		cfg:       cfg,
		logger:    logger,
		games:     games,
		scheduler: scheduler,
		rooms:     rooms,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		stop: make(chan struct{}),
	}
}

// Run starts the scheduler and serves HTTP until failure.
func (s *GameServer) Run() error {
	s.scheduler.Start()
	defer s.scheduler.Stop()

	go s.rooms.RunSweeper(30*time.Second, s.stop)
	defer close(s.stop)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/ws", s.handleWebSocket)
	r.Get("/health", s.handleHealth)
	r.Get("/stats", s.handleStats)

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.logger.Info("listening", zap.String("addr", addr))
	return http.ListenAndServe(addr, r)
}

func (s *GameServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// handleStats reports registry occupancy and tick telemetry.
func (s *GameServer) handleStats(w http.ResponseWriter, r *http.Request) {
	payload := map[string]any{
		"rooms":     s.rooms.GetStats(),
		"scheduler": s.scheduler.Stats(),
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(payload)
}

// handleWebSocket upgrades the connection and starts the session pumps.
func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	sess := newSession(s, ws)
	s.logger.Info("session connected",
		zap.String("session", sess.ID()),
		zap.String("remote", ws.RemoteAddr().String()))

	go sess.writePump()
	go sess.readPump()
}
