// Package fsm implements the table-driven finite state machines that gate
// room lifecycle and player membership transitions.
package fsm

import (
	"sync"
	"time"

	"github.com/TheZedxD/HomeGameServer-sub001/internal/network"
)

// State is a named machine state.
type State string

// HistoryEntry records one completed transition for diagnostics.
type HistoryEntry struct {
	State State
	At    time.Time
	Meta  map[string]any
}

// Observer receives enter:<state> and exit:<state> events. Observers run
// synchronously on the transitioning goroutine.
type Observer func(event string, state State, meta map[string]any)

// historyLimit bounds the retained transition history per machine.
const historyLimit = 32

// Machine is a table-driven state machine. Any transition not present in
// the table fails with INVALID_TRANSITION and leaves the state unchanged.
type Machine struct {
	mu        sync.Mutex
	current   State
	table     map[State][]State
	history   []HistoryEntry
	observers map[int]Observer
	nextObsID int
}

// New creates a machine at the given initial state with the given
// legal-transition table.
func New(initial State, table map[State][]State) *Machine {
	m := &Machine{
		current:   initial,
		table:     table,
		observers: make(map[int]Observer),
	}
	m.history = append(m.history, HistoryEntry{State: initial, At: time.Now()})
	return m
}

// Current returns the machine's current state.
func (m *Machine) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Is reports whether the machine is in any of the given states.
func (m *Machine) Is(states ...State) bool {
	cur := m.Current()
	for _, s := range states {
		if cur == s {
			return true
		}
	}
	return false
}

// CanTransition reports whether moving to target is legal from the current
// state.
func (m *Machine) CanTransition(target State) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.legalLocked(target)
}

func (m *Machine) legalLocked(target State) bool {
	for _, t := range m.table[m.current] {
		if t == target {
			return true
		}
	}
	return false
}

// Transition attempts to move to target, recording history and notifying
// observers of exit:<old> then enter:<new>. Illegal attempts return
// INVALID_TRANSITION without side effects.
func (m *Machine) Transition(target State, meta map[string]any) error {
	m.mu.Lock()
	if !m.legalLocked(target) {
		from := m.current
		m.mu.Unlock()
		return network.NewError(network.CodeInvalidTransition,
			"illegal transition %s -> %s", from, target)
	}

	from := m.current
	m.current = target
	m.history = append(m.history, HistoryEntry{State: target, At: time.Now(), Meta: meta})
	if len(m.history) > historyLimit {
		m.history = m.history[len(m.history)-historyLimit:]
	}
	obs := make([]Observer, 0, len(m.observers))
	for _, o := range m.observers {
		obs = append(obs, o)
	}
	m.mu.Unlock()

	for _, o := range obs {
		o("exit:"+string(from), from, meta)
		o("enter:"+string(target), target, meta)
	}
	return nil
}

// Subscribe registers an observer and returns a cancellation handle.
func (m *Machine) Subscribe(o Observer) (cancel func()) {
	m.mu.Lock()
	id := m.nextObsID
	m.nextObsID++
	m.observers[id] = o
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.observers, id)
		m.mu.Unlock()
	}
}

// History returns a copy of the recorded transitions, oldest first.
func (m *Machine) History() []HistoryEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]HistoryEntry, len(m.history))
	copy(out, m.history)
	return out
}
