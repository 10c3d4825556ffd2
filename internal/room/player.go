// Package room implements rooms, their registry, and player membership.
package room

import (
	"sync"
	"time"

	"github.com/TheZedxD/HomeGameServer-sub001/internal/fsm"
)

// Session is a transport handle as seen by the core. Sessions are owned by
// the transport adapter; the core sends through them but never closes them.
type Session interface {
	ID() string
	Send(event string, payload any) error
}

// Player is one participant identity. A player keeps the same id across
// reconnects; only the session handle changes.
type Player struct {
	mu sync.Mutex

	ID          string
	DisplayName string
	FSM         *fsm.Machine

	session         Session
	ready           bool
	meta            map[string]any
	connectAttempts int
	joinedAt        time.Time
	lastActivity    time.Time
	lastDisconnect  time.Time
}

// NewPlayer creates a player at CONNECTING bound to its first session.
func NewPlayer(id, displayName string, session Session) *Player {
	now := time.Now()
	return &Player{
		ID:              id,
		DisplayName:     displayName,
		FSM:             fsm.NewPlayerMachine(),
		session:         session,
		meta:            make(map[string]any),
		connectAttempts: 1,
		joinedAt:        now,
		lastActivity:    now,
	}
}

// Session returns the current transport handle, which may be nil while
// disconnected.
func (p *Player) Session() Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session
}

// Rebind attaches a new transport handle after a reconnect.
func (p *Player) Rebind(session Session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.session = session
	p.connectAttempts++
	p.lastActivity = time.Now()
}

// MarkDisconnected clears the session handle and stamps the disconnect.
func (p *Player) MarkDisconnected() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.session = nil
	p.lastDisconnect = time.Now()
}

// Ready reports the readiness flag.
func (p *Player) Ready() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ready
}

// SetReady sets the readiness flag.
func (p *Player) SetReady(ready bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ready = ready
	p.lastActivity = time.Now()
}

// ToggleReady flips the readiness flag and returns the new value.
func (p *Player) ToggleReady() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ready = !p.ready
	p.lastActivity = time.Now()
	return p.ready
}

// JoinedAt returns when the player first joined.
func (p *Player) JoinedAt() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.joinedAt
}

// Touch stamps activity.
func (p *Player) Touch() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastActivity = time.Now()
}

// Send delivers an event through the current session, dropping it silently
// while disconnected.
func (p *Player) Send(event string, payload any) {
	s := p.Session()
	if s == nil {
		return
	}
	_ = s.Send(event, payload)
}

// Manager tracks a room's players in join order. It implements the
// read-only view strategies receive in their command context.
type Manager struct {
	mu      sync.RWMutex
	players map[string]*Player
	order   []string
}

// NewManager creates an empty player manager.
func NewManager() *Manager {
	return &Manager{players: make(map[string]*Player)}
}

// Add registers a player, keeping join order.
func (m *Manager) Add(p *Player) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.players[p.ID]; !exists {
		m.order = append(m.order, p.ID)
	}
	m.players[p.ID] = p
}

// Remove drops a player. Safe for unknown ids.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.players[id]; !exists {
		return
	}
	delete(m.players, id)
	for i, pid := range m.order {
		if pid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// Get looks up a player by id.
func (m *Manager) Get(id string) (*Player, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.players[id]
	return p, ok
}

// Has implements game.PlayerView.
func (m *Manager) Has(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.players[id]
	return ok
}

// DisplayName implements game.PlayerView.
func (m *Manager) DisplayName(id string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.players[id]; ok {
		return p.DisplayName
	}
	return ""
}

// IDs implements game.PlayerView: player ids in join order.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.order...)
}

// Count implements game.PlayerView.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.players)
}

// All returns the players in join order.
func (m *Manager) All() []*Player {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Player, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.players[id])
	}
	return out
}

// AllReady reports whether every player has flagged ready.
func (m *Manager) AllReady() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.players {
		if !p.Ready() {
			return false
		}
	}
	return true
}
