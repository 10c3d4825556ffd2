package gamesync

import (
	"sync"

	"github.com/TheZedxD/HomeGameServer-sub001/internal/network"
)

// ReplayGuard enforces per-session sequence-number freshness. Out-of-order
// delivery within the drift window is tolerated; duplicates and anything
// at or below highest-maxDrift are rejected. A new session id (reconnect)
// resets the window.
type ReplayGuard struct {
	mu        sync.Mutex
	maxDrift  int64
	sessionID string
	highest   int64
	started   bool
	seen      map[int64]struct{}
}

// NewReplayGuard creates a guard with the given drift window.
func NewReplayGuard(maxDrift int64) *ReplayGuard {
	return &ReplayGuard{
		maxDrift: maxDrift,
		seen:     make(map[int64]struct{}),
	}
}

// Accept records seq for the session, or returns REPLAY_REJECTED if the
// sequence number is a duplicate or has fallen out of the drift window.
func (g *ReplayGuard) Accept(sessionID string, seq uint64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if sessionID != g.sessionID {
		// New transport session: sequence numbering restarts.
		g.sessionID = sessionID
		g.highest = 0
		g.started = false
		g.seen = make(map[int64]struct{})
	}

	s := int64(seq)
	if g.started {
		if s <= g.highest-g.maxDrift {
			return network.NewError(network.CodeReplayRejected,
				"seq %d below window (highest %d, drift %d)", s, g.highest, g.maxDrift)
		}
		if _, dup := g.seen[s]; dup {
			return network.NewError(network.CodeReplayRejected, "duplicate seq %d", s)
		}
	}

	g.seen[s] = struct{}{}
	if !g.started || s > g.highest {
		g.highest = s
		g.started = true
	}
	// Drop entries that can no longer be referenced.
	floor := g.highest - g.maxDrift
	for k := range g.seen {
		if k <= floor {
			delete(g.seen, k)
		}
	}
	return nil
}
