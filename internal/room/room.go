package room

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/TheZedxD/HomeGameServer-sub001/internal/fsm"
	"github.com/TheZedxD/HomeGameServer-sub001/internal/game"
	"github.com/TheZedxD/HomeGameServer-sub001/internal/gamesync"
	"github.com/TheZedxD/HomeGameServer-sub001/internal/network"
)

// Options carries the per-room knobs resolved at creation time.
type Options struct {
	MinPlayers       int
	MaxPlayers       int
	CommandTimeout   time.Duration
	UndoJournalSize  int
	DeterministicRNG bool
	IdleTimeout      time.Duration
}

// Room is one game session: the host, the lobby membership, the attached
// game, and the subscriber fan-out.
//
// Concurrency: each room is a single-writer actor. The actor mutex is held
// for every state-mutating operation (commands, ticks, membership changes),
// so at most one command apply or tick callback runs for a room at any
// instant. Distinct rooms proceed concurrently under the scheduler.
type Room struct {
	actMu sync.Mutex

	Code      string
	GameID    string
	CreatedAt time.Time

	opts    Options
	def     *game.Definition
	machine *fsm.Machine
	players *Manager
	states  *game.StateManager
	sync    *gamesync.Synchronizer
	logger  *zap.Logger

	hostID       string
	bus          *game.Bus
	rng          *game.RNG
	lastActivity time.Time

	subMu       sync.RWMutex
	subscribers map[string]Session
}

// NewRoom builds a room at INITIALIZING. The registry transitions it to
// LOBBY once it is registered under its code.
func NewRoom(code, hostID string, def *game.Definition, opts Options, logger *zap.Logger) *Room {
	r := &Room{
		Code:        code,
		GameID:      def.ID,
		CreatedAt:   time.Now(),
		opts:        opts,
		def:         def,
		machine:     fsm.NewRoomMachine(),
		players:     NewManager(),
		states:      game.NewStateManager(),
		logger:      logger.With(zap.String("room", code)),
		hostID:      hostID,
		subscribers: make(map[string]Session),
	}
	r.lastActivity = r.CreatedAt
	r.sync = gamesync.NewSynchronizer(code, r.states, r, r.logger)
	return r
}

// RoomCode identifies the room to the scheduler.
func (r *Room) RoomCode() string { return r.Code }

// State returns the room FSM state.
func (r *Room) State() fsm.State { return r.machine.Current() }

// HostID returns the current host player id.
func (r *Room) HostID() string {
	r.actMu.Lock()
	defer r.actMu.Unlock()
	return r.hostID
}

// Players returns the room's player manager.
func (r *Room) Players() *Manager { return r.players }

// GameState returns the authoritative state, nil before start.
func (r *Room) GameState() *game.State { return r.states.Current() }

// Join adds a player while the room is joinable. A player id already known
// to the room in DISCONNECTED state is treated as a reconnect and rebinds
// the new session instead.
func (r *Room) Join(p *Player) error {
	r.actMu.Lock()
	defer r.actMu.Unlock()

	if existing, ok := r.players.Get(p.ID); ok {
		return r.rejoinLocked(existing, p.Session())
	}

	if !r.machine.Is(fsm.RoomLobby, fsm.RoomPaused) {
		return network.NewError(network.CodeRoomNotJoinable,
			"room %s is %s", r.Code, r.machine.Current())
	}
	if r.players.Count() >= r.opts.MaxPlayers {
		return network.NewError(network.CodeRoomFull,
			"room %s is full (%d players)", r.Code, r.opts.MaxPlayers)
	}

	if err := p.FSM.Transition(fsm.PlayerJoining, nil); err != nil {
		return err
	}
	if err := p.FSM.Transition(fsm.PlayerInLobby, nil); err != nil {
		return err
	}
	r.players.Add(p)
	if s := p.Session(); s != nil {
		r.subscribeLocked(s)
	}
	r.touchLocked()
	r.logger.Info("player joined",
		zap.String("player", p.ID),
		zap.Int("count", r.players.Count()))

	r.broadcastRoomStateLocked()
	return nil
}

// rejoinLocked rebinds a returning player's new session and pushes a full
// snapshot so the client can reconcile.
func (r *Room) rejoinLocked(p *Player, session Session) error {
	if p.FSM.Current() != fsm.PlayerDisconnected {
		return network.NewError(network.CodeValidationError,
			"player %s already in room", p.ID)
	}
	target := fsm.PlayerInLobby
	if r.machine.Is(fsm.RoomPlaying, fsm.RoomPaused) && r.states.Current() != nil {
		target = fsm.PlayerPlaying
	}
	if err := p.FSM.Transition(target, nil); err != nil {
		return err
	}
	p.Rebind(session)
	if session != nil {
		r.subscribeLocked(session)
	}
	r.touchLocked()
	r.logger.Info("player reconnected", zap.String("player", p.ID))

	if current := r.states.Current(); current != nil && session != nil {
		_ = r.sync.RequestSync(0, current, func(event string, payload any) error {
			return session.Send(event, payload)
		})
	}
	r.broadcastRoomStateLocked()
	return nil
}

// Leave removes a player. Host departure promotes the longest-connected
// remaining player; an empty room winds down.
func (r *Room) Leave(playerID, reason string) error {
	r.actMu.Lock()
	defer r.actMu.Unlock()

	p, ok := r.players.Get(playerID)
	if !ok {
		return network.NewError(network.CodeValidationError,
			"player %s not in room", playerID)
	}

	if p.FSM.Current() != fsm.PlayerLeft {
		_ = p.FSM.Transition(fsm.PlayerLeft, map[string]any{"reason": reason})
	}
	if s := p.Session(); s != nil {
		r.unsubscribeLocked(s.ID())
	}
	r.players.Remove(playerID)
	r.touchLocked()
	r.logger.Info("player left",
		zap.String("player", playerID),
		zap.String("reason", reason))

	if r.players.Count() == 0 {
		r.windDownLocked()
		return nil
	}
	if playerID == r.hostID {
		r.promoteHostLocked()
	}
	r.broadcastRoomStateLocked()
	return nil
}

// MarkDisconnected flags a transport drop without removing membership, so
// the player can rejoin with the same id.
func (r *Room) MarkDisconnected(playerID string) {
	r.actMu.Lock()
	defer r.actMu.Unlock()

	p, ok := r.players.Get(playerID)
	if !ok {
		return
	}
	if s := p.Session(); s != nil {
		r.unsubscribeLocked(s.ID())
	}
	_ = p.FSM.Transition(fsm.PlayerDisconnected, nil)
	p.MarkDisconnected()
	r.broadcastRoomStateLocked()
}

// promoteHostLocked hands the host role to the longest-connected player.
func (r *Room) promoteHostLocked() {
	players := r.players.All()
	if len(players) == 0 {
		return
	}
	next := players[0]
	for _, p := range players[1:] {
		if p.JoinedAt().Before(next.JoinedAt()) {
			next = p
		}
	}
	r.hostID = next.ID
	r.logger.Info("host migrated", zap.String("host", next.ID))
}

// SetReady sets or toggles a player's readiness. The room FSM is unchanged.
func (r *Room) SetReady(playerID string, ready *bool) error {
	r.actMu.Lock()
	defer r.actMu.Unlock()

	p, ok := r.players.Get(playerID)
	if !ok {
		return network.NewError(network.CodeValidationError,
			"player %s not in room", playerID)
	}

	var flag bool
	if ready == nil {
		flag = p.ToggleReady()
	} else {
		flag = *ready
		p.SetReady(flag)
	}

	if flag {
		_ = p.FSM.Transition(fsm.PlayerReady, nil)
	} else {
		_ = p.FSM.Transition(fsm.PlayerInLobby, nil)
	}
	r.touchLocked()
	r.broadcastRoomStateLocked()
	return nil
}

// Start moves the lobby into play: checks player count and readiness,
// builds the game state from the factory, and wires the command bus.
// forceStart lets the host skip the readiness check, never the minimum
// player count.
func (r *Room) Start(playerID string, forceStart bool) error {
	r.actMu.Lock()
	defer r.actMu.Unlock()

	if r.machine.Current() != fsm.RoomLobby {
		return network.NewError(network.CodeInvalidTransition,
			"room %s is %s, not LOBBY", r.Code, r.machine.Current())
	}
	if forceStart && playerID != r.hostID {
		return network.NewError(network.CodeValidationError,
			"only the host may force start")
	}
	if r.players.Count() < r.opts.MinPlayers {
		return network.NewError(network.CodeValidationError,
			"need %d players, have %d", r.opts.MinPlayers, r.players.Count())
	}
	if !forceStart && !r.players.AllReady() {
		return network.NewError(network.CodeValidationError,
			"not all players are ready")
	}

	if err := r.machine.Transition(fsm.RoomStarting, nil); err != nil {
		return err
	}
	r.startGameLocked()
	if err := r.machine.Transition(fsm.RoomPlaying, nil); err != nil {
		return err
	}

	for _, p := range r.players.All() {
		if p.FSM.Current() == fsm.PlayerInLobby {
			_ = p.FSM.Transition(fsm.PlayerReady, nil)
		}
		_ = p.FSM.Transition(fsm.PlayerPlaying, nil)
	}
	r.touchLocked()
	r.logger.Info("game started", zap.String("game", r.GameID))
	r.broadcastRoomStateLocked()
	return nil
}

// startGameLocked builds the RNG, the initial state, and the command bus.
func (r *Room) startGameLocked() {
	if r.opts.DeterministicRNG {
		r.rng = game.NewRNG(r.Code, r.CreatedAt)
	} else {
		r.rng = game.NewRNGFromSeed(time.Now().UnixNano())
	}
	initial := r.def.Factory(r.players, r.rng)
	r.states.Init(initial)
	r.bus = game.NewBus(r.def, r.states, r.players, r.rng,
		r.opts.CommandTimeout, r.opts.UndoJournalSize, r.logger)
}

// SubmitCommand dispatches one game command through the bus.
func (r *Room) SubmitCommand(d game.Descriptor) (next *game.State, err error) {
	defer func() {
		// Runs after the actor lock is released, so Fail can take it.
		if rec := recover(); rec != nil {
			fail := network.NewError(network.CodeRoomTerminated,
				"command %s panicked: %v", d.Type, rec)
			r.Fail(fail.Message)
			next, err = nil, fail
		}
	}()
	r.actMu.Lock()
	defer r.actMu.Unlock()

	if !r.machine.Is(fsm.RoomPlaying, fsm.RoomRoundEnd) {
		return nil, network.NewError(network.CodeInvalidMove,
			"room %s is %s", r.Code, r.machine.Current())
	}
	r.touchLocked()
	return r.bus.Submit(d)
}

// UndoLast rolls back the caller's most recent command.
func (r *Room) UndoLast(playerID string) (*game.State, error) {
	r.actMu.Lock()
	defer r.actMu.Unlock()

	if r.bus == nil {
		return nil, network.NewError(network.CodeUndoForbidden, "no game running")
	}
	r.touchLocked()
	return r.bus.UndoLast(playerID)
}

// Destroy terminates the room and detaches every subscriber.
func (r *Room) Destroy() {
	r.actMu.Lock()
	defer r.actMu.Unlock()
	r.destroyLocked()
}

func (r *Room) destroyLocked() {
	if r.machine.Current() == fsm.RoomTerminated {
		return
	}
	_ = r.machine.Transition(fsm.RoomTerminated, nil)
	r.states.Teardown()
	r.sync.Reset()
	r.bus = nil

	r.subMu.Lock()
	r.subscribers = make(map[string]Session)
	r.subMu.Unlock()
	r.logger.Info("room terminated")
}

// windDownLocked moves a room toward termination when it can no longer
// continue (no players, fatal error).
func (r *Room) windDownLocked() {
	if r.machine.Is(fsm.RoomEnding, fsm.RoomTerminated) {
		return
	}
	if err := r.machine.Transition(fsm.RoomEnding, nil); err != nil {
		// INITIALIZING and other states without an ENDING edge
		// terminate directly.
		r.destroyLocked()
		return
	}
	r.logger.Info("room ending")
}

// Fail marks the room fatally broken: subscribers are told and the room
// winds down. Called when a strategy outcome panics mid-apply.
func (r *Room) Fail(reason string) {
	r.actMu.Lock()
	defer r.actMu.Unlock()
	r.Broadcast(network.EventError, &network.Error{
		Code:    network.CodeRoomTerminated,
		Message: reason,
	})
	r.windDownLocked()
}

// Tick is the scheduler callback: advances room-level bookkeeping and lets
// the synchronizer emit a delta if the state changed.
func (r *Room) Tick(tick uint64, fixedDt time.Duration) {
	r.actMu.Lock()
	defer r.actMu.Unlock()

	switch r.machine.Current() {
	case fsm.RoomEnding:
		r.destroyLocked()
		return
	case fsm.RoomPlaying:
		current := r.states.Current()
		if current != nil && current.IsComplete {
			r.finishRoundLocked(current)
			return
		}
		r.sync.OnTick(tick, current)
	case fsm.RoomPaused:
		r.sync.OnTick(tick, r.states.Current())
	case fsm.RoomRoundEnd:
		r.resolveRoundEndLocked(tick)
	}
}

// finishRoundLocked reacts to a completed game state. Games that carry a
// post-round vote stay in ROUND_END until the vote resolves; others return
// the room to the lobby.
func (r *Room) finishRoundLocked(current *game.State) {
	if err := r.machine.Transition(fsm.RoomRoundEnd, nil); err != nil {
		return
	}
	r.logger.Info("round complete",
		zap.Uint64("version", current.Version),
		zap.String("phase", current.Phase))
	r.broadcastRoomStateLocked()
}

// resolveRoundEndLocked watches the post-round vote outcome the strategies
// record in the state body. "newGame" rebuilds state from the factory and
// continues the series; "lobby" tears the game down.
func (r *Room) resolveRoundEndLocked(tick uint64) {
	current := r.states.Current()
	if current == nil {
		_ = r.machine.Transition(fsm.RoomLobby, nil)
		return
	}
	r.sync.OnTick(tick, current)

	decision, _ := current.Body["voteResult"].(string)
	if decision == "" {
		if _, voted := current.Body["votes"]; !voted {
			// Game has no voting phase; fall back to the lobby.
			r.returnToLobbyLocked()
		}
		return
	}

	switch decision {
	case "newGame":
		if err := r.machine.Transition(fsm.RoomStarting, nil); err != nil {
			return
		}
		carry := game.CloneMap(currentCarry(current))
		next := r.def.Factory(r.players, r.rng)
		applyCarry(next, carry)
		r.states.Replace(next)
		r.sync.Reset()
		if r.bus != nil {
			r.bus.ClearJournal()
		}
		_ = r.machine.Transition(fsm.RoomPlaying, nil)
		r.logger.Info("new round started")
		r.broadcastRoomStateLocked()
	case "lobby":
		r.returnToLobbyLocked()
	}
}

// currentCarry extracts state that survives into the next round of a
// series (balances, series score).
func currentCarry(s *game.State) map[string]any {
	carry, _ := s.Body["carry"].(map[string]any)
	return carry
}

func applyCarry(next *game.State, carry map[string]any) {
	if len(carry) == 0 {
		return
	}
	next.Body["carry"] = carry
	if balances, ok := carry["balances"].(map[string]any); ok {
		next.Body["balances"] = game.CloneMap(balances)
		for id, bal := range balances {
			if attrs, ok := next.Players[id]; ok {
				attrs["balance"] = bal
			}
		}
	}
	if wins, ok := carry["seriesWins"].(map[string]any); ok {
		next.Body["seriesWins"] = game.CloneMap(wins)
	}
}

func (r *Room) returnToLobbyLocked() {
	if err := r.machine.Transition(fsm.RoomLobby, nil); err != nil {
		return
	}
	r.states.Teardown()
	r.sync.Reset()
	r.bus = nil
	for _, p := range r.players.All() {
		p.SetReady(false)
		_ = p.FSM.Transition(fsm.PlayerInLobby, nil)
	}
	r.logger.Info("returned to lobby")
	r.broadcastRoomStateLocked()
}

// Snapshot is the scheduler's snapshot-cadence callback.
func (r *Room) Snapshot(tick uint64) {
	r.actMu.Lock()
	defer r.actMu.Unlock()
	if r.machine.Is(fsm.RoomPlaying, fsm.RoomPaused, fsm.RoomRoundEnd) {
		r.sync.OnSnapshot(tick, r.states.Current())
	}
}

// RequestSync sends a full snapshot to one session.
func (r *Room) RequestSync(tick uint64, session Session) error {
	return r.sync.RequestSync(tick, r.states.Current(), func(event string, payload any) error {
		return session.Send(event, payload)
	})
}

// Pause suspends play, e.g. while a player reconnects.
func (r *Room) Pause() error {
	r.actMu.Lock()
	defer r.actMu.Unlock()
	if err := r.machine.Transition(fsm.RoomPaused, nil); err != nil {
		return err
	}
	r.broadcastRoomStateLocked()
	return nil
}

// Resume continues play after a pause.
func (r *Room) Resume() error {
	r.actMu.Lock()
	defer r.actMu.Unlock()
	if err := r.machine.Transition(fsm.RoomPlaying, nil); err != nil {
		return err
	}
	r.broadcastRoomStateLocked()
	return nil
}

// Subscribe attaches a transport session to the room's fan-out.
func (r *Room) Subscribe(s Session) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	r.subscribers[s.ID()] = s
}

func (r *Room) subscribeLocked(s Session) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	r.subscribers[s.ID()] = s
}

// Unsubscribe detaches a session.
func (r *Room) Unsubscribe(sessionID string) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	delete(r.subscribers, sessionID)
}

func (r *Room) unsubscribeLocked(sessionID string) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	delete(r.subscribers, sessionID)
}

// Broadcast sends an event to every subscribed session. Implements the
// synchronizer's sink.
func (r *Room) Broadcast(event string, payload any) {
	r.subMu.RLock()
	subs := make([]Session, 0, len(r.subscribers))
	for _, s := range r.subscribers {
		subs = append(subs, s)
	}
	r.subMu.RUnlock()

	for _, s := range subs {
		if err := s.Send(event, payload); err != nil {
			r.logger.Debug("send failed",
				zap.String("session", s.ID()), zap.Error(err))
		}
	}
}

// RelayChat re-broadcasts a validated chat message to the room.
func (r *Room) RelayChat(playerID string, msg *network.ChatMessagePayload) error {
	p, ok := r.players.Get(playerID)
	if !ok {
		return network.NewError(network.CodeValidationError,
			"player %s not in room", playerID)
	}
	p.Touch()
	r.Broadcast(network.EventChatRelay, &network.ChatRelayPayload{
		PlayerID:    playerID,
		DisplayName: p.DisplayName,
		Message:     msg.Message,
		Type:        msg.Type,
	})
	return nil
}

// IdleFor reports how long the room has been without command activity.
func (r *Room) IdleFor(now time.Time) time.Duration {
	r.actMu.Lock()
	defer r.actMu.Unlock()
	return now.Sub(r.lastActivity)
}

func (r *Room) touchLocked() { r.lastActivity = time.Now() }

// roomStatus maps the FSM state onto the client-facing status enum.
func (r *Room) roomStatus() string {
	switch r.machine.Current() {
	case fsm.RoomInitializing:
		return "waiting"
	case fsm.RoomLobby:
		if r.players.Count() >= r.opts.MinPlayers && r.players.AllReady() {
			return "ready"
		}
		return "waiting"
	case fsm.RoomStarting, fsm.RoomPlaying, fsm.RoomRoundEnd:
		return "playing"
	case fsm.RoomPaused:
		return "paused"
	default:
		return "ended"
	}
}

// RoomState builds the lobby metadata payload.
func (r *Room) RoomState() *network.RoomStatePayload {
	players := r.players.All()
	out := &network.RoomStatePayload{
		RoomCode:   r.Code,
		GameType:   r.GameID,
		Status:     r.roomStatus(),
		HostID:     r.hostID,
		MinPlayers: r.opts.MinPlayers,
		MaxPlayers: r.opts.MaxPlayers,
		Players:    make([]network.RoomStatePlayer, 0, len(players)),
	}
	for _, p := range players {
		out.Players = append(out.Players, network.RoomStatePlayer{
			ID:          p.ID,
			DisplayName: p.DisplayName,
			IsReady:     p.Ready(),
			IsHost:      p.ID == r.hostID,
		})
	}
	return out
}

func (r *Room) broadcastRoomStateLocked() {
	r.Broadcast(network.EventRoomStateUpdate, r.RoomState())
}
