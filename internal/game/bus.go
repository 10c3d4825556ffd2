package game

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/TheZedxD/HomeGameServer-sub001/internal/network"
)

// Descriptor identifies one client-originated command.
type Descriptor struct {
	Type     string
	Payload  json.RawMessage
	PlayerID string

	// System marks commands originated by the server itself (timers,
	// room lifecycle); these skip player authentication.
	System bool
}

// Executed describes a successfully applied command for observers.
type Executed struct {
	Descriptor Descriptor
	Version    uint64
	Metadata   map[string]any
	Duration   time.Duration
}

// journalEntry pairs a command with the closure that rolls it back.
type journalEntry struct {
	descriptor Descriptor
	undo       func() *State
}

// Bus is the per-room command dispatcher. Submissions are strictly
// serialized: at most one strategy executes and applies at a time for a
// given room, while distinct rooms dispatch concurrently.
type Bus struct {
	mu sync.Mutex

	def         *Definition
	states      *StateManager
	players     PlayerView
	rng         *RNG
	budget      time.Duration
	journalSize int
	journal     []journalEntry
	logger      *zap.Logger

	obsMu     sync.Mutex
	observers map[int]func(Executed)
	nextObsID int
}

// NewBus wires a command bus for one room's game instance.
func NewBus(def *Definition, states *StateManager, players PlayerView, rng *RNG,
	budget time.Duration, journalSize int, logger *zap.Logger) *Bus {
	return &Bus{
		def:         def,
		states:      states,
		players:     players,
		rng:         rng,
		budget:      budget,
		journalSize: journalSize,
		logger:      logger,
		observers:   make(map[int]func(Executed)),
	}
}

// Submit validates, executes, and applies one command. On success the
// room's state is atomically replaced and the undo journal gains an entry;
// on any error the state is untouched and no journal entry is made.
func (b *Bus) Submit(d Descriptor) (*State, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if d.Type == "" {
		return nil, network.NewError(network.CodeValidationError, "empty command type")
	}
	if !d.System {
		if d.PlayerID == "" || !b.players.Has(d.PlayerID) {
			return nil, network.NewError(network.CodeValidationError,
				"unknown player %q", d.PlayerID)
		}
	}

	strategy, ok := b.def.Strategies[d.Type]
	if !ok {
		return nil, network.NewError(network.CodeUnknownCommand,
			"no strategy for %q", d.Type)
	}

	current := b.states.Current()
	if current == nil {
		return nil, network.NewError(network.CodeInvalidMove, "game not started")
	}

	ctx := &Context{
		State:    current.Clone(),
		Players:  b.players,
		PlayerID: d.PlayerID,
		Payload:  d.Payload,
		RNG:      b.rng,
	}

	started := time.Now()
	outcome, err := strategy.Execute(ctx)
	elapsed := time.Since(started)

	if elapsed > b.budget {
		b.logger.Warn("command exceeded budget",
			zap.String("type", d.Type),
			zap.Duration("elapsed", elapsed),
			zap.Duration("budget", b.budget))
		return nil, network.NewError(network.CodeCommandTimeout,
			"command %q took %s", d.Type, elapsed).AsRetryable()
	}
	if err != nil {
		return nil, err
	}

	next := outcome.Apply(current)
	b.states.Replace(next)

	b.journal = append(b.journal, journalEntry{descriptor: d, undo: outcome.Undo})
	if len(b.journal) > b.journalSize {
		b.journal = b.journal[len(b.journal)-b.journalSize:]
	}

	b.notify(Executed{
		Descriptor: d,
		Version:    next.Version,
		Metadata:   outcome.Metadata,
		Duration:   elapsed,
	})
	return next, nil
}

// UndoLast rolls back the most recent command iff it was submitted by
// playerID. The restored state replaces the current one with a fresh
// version bump, so undo is itself an observable state change.
func (b *Bus) UndoLast(playerID string) (*State, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.journal) == 0 {
		return nil, network.NewError(network.CodeUndoForbidden, "nothing to undo")
	}
	last := b.journal[len(b.journal)-1]
	if last.descriptor.PlayerID != playerID {
		return nil, network.NewError(network.CodeUndoForbidden,
			"last command was not submitted by %q", playerID)
	}

	restored := last.undo()
	b.journal = b.journal[:len(b.journal)-1]
	b.states.Replace(restored)
	return restored, nil
}

// ClearJournal drops all undo entries, used when a new round begins and
// prior-round commands must no longer be undoable.
func (b *Bus) ClearJournal() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.journal = nil
}

// JournalLen returns the number of undoable commands currently retained.
func (b *Bus) JournalLen() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.journal)
}

// Subscribe registers a commandExecuted observer and returns a cancellation
// handle.
func (b *Bus) Subscribe(fn func(Executed)) (cancel func()) {
	b.obsMu.Lock()
	id := b.nextObsID
	b.nextObsID++
	b.observers[id] = fn
	b.obsMu.Unlock()
	return func() {
		b.obsMu.Lock()
		delete(b.observers, id)
		b.obsMu.Unlock()
	}
}

func (b *Bus) notify(e Executed) {
	b.obsMu.Lock()
	obs := make([]func(Executed), 0, len(b.observers))
	for _, o := range b.observers {
		obs = append(obs, o)
	}
	b.obsMu.Unlock()
	for _, o := range obs {
		o(e)
	}
}
