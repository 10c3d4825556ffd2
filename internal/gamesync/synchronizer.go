package gamesync

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/TheZedxD/HomeGameServer-sub001/internal/game"
	"github.com/TheZedxD/HomeGameServer-sub001/internal/network"
)

// Sink receives outbound sync envelopes for a room. The room supplies its
// subscriber fan-out; the synchronizer never touches transport sessions
// directly.
type Sink interface {
	Broadcast(event string, payload any)
}

// SendFunc delivers an envelope to a single session, used for targeted
// snapshot replies to requestSync.
type SendFunc func(event string, payload any) error

// Synchronizer converts one room's state changes into deltas on tick and
// full snapshots on the snapshot cadence. It tracks the last emitted state
// so each delta describes exactly the changes since the previous emit.
type Synchronizer struct {
	mu sync.Mutex

	roomCode string
	sink     Sink
	logger   *zap.Logger

	lastEmitted map[string]any
	lastVersion uint64
	dirty       bool
	emitIndex   uint64
}

// NewSynchronizer wires a synchronizer to a room's broadcast sink and its
// state manager's change feed.
func NewSynchronizer(roomCode string, states *game.StateManager, sink Sink, logger *zap.Logger) *Synchronizer {
	s := &Synchronizer{
		roomCode: roomCode,
		sink:     sink,
		logger:   logger,
	}
	states.Subscribe(func(prev, next *game.State) {
		s.mu.Lock()
		s.dirty = true
		s.mu.Unlock()
	})
	return s
}

// OnTick emits a delta if the state changed since the last emit. Empty
// deltas are suppressed.
func (s *Synchronizer) OnTick(tick uint64, current *game.State) {
	if current == nil {
		return
	}
	s.mu.Lock()
	if !s.dirty && s.lastEmitted != nil {
		s.mu.Unlock()
		return
	}

	tree := current.ToMap()
	if s.lastEmitted == nil {
		// Nothing to diff against yet; the first emit is a snapshot.
		s.lastEmitted = tree
		s.lastVersion = current.Version
		s.dirty = false
		s.emitIndex++
		s.mu.Unlock()
		s.sink.Broadcast(network.EventGameStateSnapshot, &network.SyncPayload{
			Version:  current.Version,
			Tick:     tick,
			Kind:     "snapshot",
			Body:     tree,
			Checksum: Checksum(tree),
		})
		return
	}

	changes := Diff(s.lastEmitted, tree)
	s.lastEmitted = tree
	s.lastVersion = current.Version
	s.dirty = false
	if len(changes) == 0 {
		s.mu.Unlock()
		return
	}
	s.emitIndex++
	s.mu.Unlock()

	s.sink.Broadcast(network.EventGameStateUpdate, &network.SyncPayload{
		Version: current.Version,
		Tick:    tick,
		Kind:    "delta",
		Changes: changes,
	})
}

// OnSnapshot emits a full state snapshot with checksum. Clients reconcile
// missed deltas against it.
func (s *Synchronizer) OnSnapshot(tick uint64, current *game.State) {
	if current == nil {
		return
	}
	tree := current.ToMap()

	s.mu.Lock()
	s.lastEmitted = tree
	s.lastVersion = current.Version
	s.dirty = false
	s.emitIndex++
	s.mu.Unlock()

	s.sink.Broadcast(network.EventGameStateSnapshot, &network.SyncPayload{
		Version:  current.Version,
		Tick:     tick,
		Kind:     "snapshot",
		Body:     tree,
		Checksum: Checksum(tree),
	})
}

// RequestSync sends a full snapshot to a single session, for desync
// recovery and reconnects.
func (s *Synchronizer) RequestSync(tick uint64, current *game.State, send SendFunc) error {
	if current == nil {
		return network.NewError(network.CodeValidationError, "no game state to sync")
	}
	tree := current.ToMap()
	err := send(network.EventGameStateSnapshot, &network.SyncPayload{
		Version:  current.Version,
		Tick:     tick,
		Kind:     "snapshot",
		Body:     tree,
		Checksum: Checksum(tree),
	})
	if err != nil {
		s.logger.Warn("requestSync send failed",
			zap.String("room", s.roomCode), zap.Error(err))
	}
	return err
}

// Reset drops the emitted-state baseline, e.g. when the game tears down.
func (s *Synchronizer) Reset() {
	s.mu.Lock()
	s.lastEmitted = nil
	s.lastVersion = 0
	s.dirty = false
	s.mu.Unlock()
}

// ServerTime returns the wall clock stamped on outbound envelopes.
func ServerTime() int64 { return time.Now().UnixMilli() }
