package room

import (
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/TheZedxD/HomeGameServer-sub001/config"
	"github.com/TheZedxD/HomeGameServer-sub001/internal/clock"
	"github.com/TheZedxD/HomeGameServer-sub001/internal/fsm"
	"github.com/TheZedxD/HomeGameServer-sub001/internal/game"
	"github.com/TheZedxD/HomeGameServer-sub001/internal/network"
)

// CreateOptions carries client-requested room parameters.
type CreateOptions struct {
	RoomCode   string // optional requested code
	MinPlayers int    // 0 means the game's default
	MaxPlayers int    // 0 means the game's default
}

// Registry is the process-wide index from room code to room. It is the
// only cross-room shared structure; all operations are safe for concurrent
// use.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room

	cfg       *config.Config
	games     *game.Registry
	scheduler *clock.Scheduler
	logger    *zap.Logger
	codeRand  *rand.Rand
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg *config.Config, games *game.Registry, scheduler *clock.Scheduler, logger *zap.Logger) *Registry {
	return &Registry{
		rooms:     make(map[string]*Room),
		cfg:       cfg,
		games:     games,
		scheduler: scheduler,
		logger:    logger,
		codeRand:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Create builds and registers a room for the host, generating a fresh code
// when none or an invalid one was requested; a valid requested code that is
// already in use is rejected. The room leaves at LOBBY.
func (reg *Registry) Create(hostID, gameID string, opts CreateOptions) (*Room, error) {
	def, err := reg.games.Get(gameID)
	if err != nil {
		return nil, err
	}

	roomOpts := Options{
		MinPlayers:       def.MinPlayers,
		MaxPlayers:       def.MaxPlayers,
		CommandTimeout:   reg.cfg.CommandTimeout(),
		UndoJournalSize:  reg.cfg.UndoJournalSize,
		DeterministicRNG: reg.cfg.DeterministicRNG,
		IdleTimeout:      reg.cfg.RoomIdleTimeout(),
	}
	if opts.MinPlayers > 0 {
		roomOpts.MinPlayers = opts.MinPlayers
	}
	if opts.MaxPlayers > 0 {
		roomOpts.MaxPlayers = opts.MaxPlayers
	}
	if roomOpts.MaxPlayers > reg.cfg.MaxPlayersPerRoom {
		roomOpts.MaxPlayers = reg.cfg.MaxPlayersPerRoom
	}
	if roomOpts.MinPlayers > roomOpts.MaxPlayers {
		return nil, network.NewError(network.CodeValidationError,
			"minPlayers %d exceeds maxPlayers %d", roomOpts.MinPlayers, roomOpts.MaxPlayers)
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	if len(reg.rooms) >= reg.cfg.MaxRooms {
		return nil, network.NewError(network.CodeRoomFull,
			"server at capacity (%d rooms)", reg.cfg.MaxRooms).AsRetryable()
	}

	code := opts.RoomCode
	if code == "" || !network.ValidRoomCode(code) {
		code = reg.generateCodeLocked()
	} else if _, taken := reg.rooms[code]; taken {
		return nil, network.NewError(network.CodeValidationError,
			"room code %s already in use", code)
	}

	r := NewRoom(code, hostID, def, roomOpts, reg.logger)
	if err := r.machine.Transition(fsm.RoomLobby, nil); err != nil {
		return nil, err
	}
	reg.rooms[code] = r
	reg.scheduler.RegisterRoom(r)
	reg.logger.Info("room created",
		zap.String("room", code),
		zap.String("game", gameID),
		zap.String("host", hostID))
	return r, nil
}

// Get looks up a room. Terminated rooms are unreachable.
func (reg *Registry) Get(code string) (*Room, error) {
	reg.mu.RLock()
	r, ok := reg.rooms[code]
	reg.mu.RUnlock()
	if !ok || r.State() == fsm.RoomTerminated {
		return nil, network.NewError(network.CodeRoomNotFound, "no room %s", code)
	}
	return r, nil
}

// Destroy terminates a room and removes it from the index.
func (reg *Registry) Destroy(code string) {
	reg.mu.Lock()
	r, ok := reg.rooms[code]
	if ok {
		delete(reg.rooms, code)
	}
	reg.mu.Unlock()

	if ok {
		reg.scheduler.UnregisterRoom(code)
		r.Destroy()
	}
}

// Sweep collects terminated rooms and idle lobbies past the TTL. Returns
// the number of rooms removed.
func (reg *Registry) Sweep(now time.Time) int {
	reg.mu.RLock()
	candidates := make([]*Room, 0, len(reg.rooms))
	for _, r := range reg.rooms {
		candidates = append(candidates, r)
	}
	reg.mu.RUnlock()

	removed := 0
	for _, r := range candidates {
		switch {
		case r.State() == fsm.RoomTerminated:
			reg.Destroy(r.Code)
			removed++
		case r.State() == fsm.RoomLobby && r.IdleFor(now) >= reg.cfg.RoomIdleTimeout():
			reg.logger.Info("collecting idle room", zap.String("room", r.Code))
			reg.Destroy(r.Code)
			removed++
		}
	}
	return removed
}

// RunSweeper collects until stop is closed.
func (reg *Registry) RunSweeper(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			if n := reg.Sweep(now); n > 0 {
				reg.logger.Info("swept rooms", zap.Int("removed", n))
			}
		}
	}
}

// Stats summarizes registry occupancy.
type Stats struct {
	Rooms   int `json:"rooms"`
	Players int `json:"players"`
}

// GetStats returns current occupancy.
func (reg *Registry) GetStats() Stats {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	st := Stats{Rooms: len(reg.rooms)}
	for _, r := range reg.rooms {
		st.Players += r.Players().Count()
	}
	return st
}

// generateCodeLocked draws codes until one is unused. The space is 36^6;
// collisions at the configured room cap are vanishingly rare.
func (reg *Registry) generateCodeLocked() string {
	for {
		buf := make([]byte, config.RoomCodeLength)
		for i := range buf {
			buf[i] = config.RoomCodeAlphabet[reg.codeRand.Intn(len(config.RoomCodeAlphabet))]
		}
		code := string(buf)
		if _, taken := reg.rooms[code]; !taken {
			return code
		}
	}
}
