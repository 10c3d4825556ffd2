// Package game implements the authoritative game state container, the
// game/strategy registry, and the per-room command bus.
package game

import (
	"sync"
)

// State is the authoritative per-room game state: a shared header the sync
// layer understands plus a game-shaped generic body. State values are
// logically immutable - mutation happens on clones which then atomically
// replace the current value, so references held across versions never
// alias.
type State struct {
	Version         uint64
	Phase           string
	CurrentPlayerID string
	PlayerOrder     []string
	IsComplete      bool

	// Players maps player id to per-game public attributes
	// (displayName, color, seat, balance, ...).
	Players map[string]map[string]any

	// Body holds the game-specific state as JSON-shaped data
	// (map[string]any, []any, string, float64, bool, nil) so the sync
	// layer can diff it generically.
	Body map[string]any
}

// NewState creates an empty state at version 0.
func NewState() *State {
	return &State{
		Players: make(map[string]map[string]any),
		Body:    make(map[string]any),
	}
}

// Clone deep-copies the state. Strategies receive clones and must never
// retain references into them past the call.
func (s *State) Clone() *State {
	next := &State{
		Version:         s.Version,
		Phase:           s.Phase,
		CurrentPlayerID: s.CurrentPlayerID,
		IsComplete:      s.IsComplete,
		PlayerOrder:     append([]string(nil), s.PlayerOrder...),
		Players:         make(map[string]map[string]any, len(s.Players)),
		Body:            CloneMap(s.Body),
	}
	for id, attrs := range s.Players {
		next.Players[id] = CloneMap(attrs)
	}
	return next
}

// ToMap renders the full state (header + body) as a generic tree for
// diffing, snapshotting, and checksumming.
func (s *State) ToMap() map[string]any {
	players := make(map[string]any, len(s.Players))
	for id, attrs := range s.Players {
		players[id] = CloneMap(attrs)
	}
	order := make([]any, len(s.PlayerOrder))
	for i, id := range s.PlayerOrder {
		order[i] = id
	}
	return map[string]any{
		"version":         float64(s.Version),
		"phase":           s.Phase,
		"currentPlayerId": s.CurrentPlayerID,
		"playerOrder":     order,
		"isComplete":      s.IsComplete,
		"players":         players,
		"body":            CloneMap(s.Body),
	}
}

// CloneMap deep-copies a JSON-shaped map.
func CloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = CloneValue(v)
	}
	return out
}

// CloneSlice deep-copies a JSON-shaped slice.
func CloneSlice(s []any) []any {
	if s == nil {
		return nil
	}
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = CloneValue(v)
	}
	return out
}

// CloneValue deep-copies a JSON-shaped value. Scalars are returned as-is.
func CloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneMap(t)
	case []any:
		return CloneSlice(t)
	default:
		return v
	}
}

// StateManager owns the current authoritative state for one room and
// replaces it atomically, bumping the version by exactly one per
// replacement.
type StateManager struct {
	mu        sync.RWMutex
	current   *State
	previous  *State
	observers map[int]func(prev, next *State)
	nextObsID int
}

// NewStateManager creates a manager with no state attached yet.
func NewStateManager() *StateManager {
	return &StateManager{observers: make(map[int]func(prev, next *State))}
}

// Current returns the authoritative state, or nil before the game starts.
// Callers must treat the returned value as read-only.
func (sm *StateManager) Current() *State {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.current
}

// Previous returns the state before the last replacement.
func (sm *StateManager) Previous() *State {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.previous
}

// Init installs the initial state produced by a game factory at version 1.
func (sm *StateManager) Init(s *State) {
	sm.mu.Lock()
	s.Version = 1
	sm.current = s
	sm.previous = nil
	obs := sm.observerList()
	sm.mu.Unlock()
	for _, o := range obs {
		o(nil, s)
	}
}

// Replace installs next as the authoritative state with version bumped from
// the current one. The outgoing state is retained as Previous.
func (sm *StateManager) Replace(next *State) {
	sm.mu.Lock()
	prev := sm.current
	if prev != nil {
		next.Version = prev.Version + 1
	} else if next.Version == 0 {
		next.Version = 1
	}
	sm.previous = prev
	sm.current = next
	obs := sm.observerList()
	sm.mu.Unlock()
	for _, o := range obs {
		o(prev, next)
	}
}

// Teardown drops the state, e.g. when the room returns to lobby.
func (sm *StateManager) Teardown() {
	sm.mu.Lock()
	sm.current = nil
	sm.previous = nil
	sm.mu.Unlock()
}

// Subscribe registers a stateChanged observer and returns a cancellation
// handle. Observers run synchronously after each replacement.
func (sm *StateManager) Subscribe(fn func(prev, next *State)) (cancel func()) {
	sm.mu.Lock()
	id := sm.nextObsID
	sm.nextObsID++
	sm.observers[id] = fn
	sm.mu.Unlock()
	return func() {
		sm.mu.Lock()
		delete(sm.observers, id)
		sm.mu.Unlock()
	}
}

func (sm *StateManager) observerList() []func(prev, next *State) {
	out := make([]func(prev, next *State), 0, len(sm.observers))
	for _, o := range sm.observers {
		out = append(out, o)
	}
	return out
}
