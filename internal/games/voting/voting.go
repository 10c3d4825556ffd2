// Package voting implements the post-game vote every casino game runs:
// each player chooses between another round and returning to the lobby.
package voting

import (
	"github.com/TheZedxD/HomeGameServer-sub001/internal/network"
)

// Vote choices.
const (
	ChoiceNewGame = "newGame"
	ChoiceLobby   = "lobby"
)

// Manager collects one vote per player and resolves the outcome.
type Manager struct {
	order []string
	votes map[string]string
}

// New creates a vote across the given players.
func New(order []string) *Manager {
	return &Manager{
		order: append([]string(nil), order...),
		votes: make(map[string]string),
	}
}

// FromState rebuilds a Manager from the "votes" subtree of a state body.
func FromState(body map[string]any, order []string) *Manager {
	m := New(order)
	if votes, ok := body["votes"].(map[string]any); ok {
		for id, v := range votes {
			if choice, ok := v.(string); ok {
				m.votes[id] = choice
			}
		}
	}
	return m
}

// Save writes the votes back into the state body.
func (m *Manager) Save(body map[string]any) {
	votes := make(map[string]any, len(m.votes))
	for id, choice := range m.votes {
		votes[id] = choice
	}
	body["votes"] = votes
}

// Cast records a player's single vote.
func (m *Manager) Cast(playerID, choice string) error {
	if choice != ChoiceNewGame && choice != ChoiceLobby {
		return network.NewError(network.CodeInvalidMove, "invalid vote %q", choice)
	}
	seated := false
	for _, id := range m.order {
		if id == playerID {
			seated = true
			break
		}
	}
	if !seated {
		return network.NewError(network.CodeValidationError,
			"player %q not in vote", playerID)
	}
	if _, voted := m.votes[playerID]; voted {
		return network.NewError(network.CodeInvalidMove, "already voted")
	}
	m.votes[playerID] = choice
	return nil
}

// IsComplete reports whether every player has voted.
func (m *Manager) IsComplete() bool {
	return len(m.votes) == len(m.order)
}

// Resolve decides the outcome. With exactly two players any lobby vote
// wins; otherwise the majority wins and ties resolve to lobby.
func (m *Manager) Resolve() string {
	if len(m.order) == 2 {
		for _, choice := range m.votes {
			if choice == ChoiceLobby {
				return ChoiceLobby
			}
		}
		return ChoiceNewGame
	}

	newGame, lobby := 0, 0
	for _, choice := range m.votes {
		if choice == ChoiceNewGame {
			newGame++
		} else {
			lobby++
		}
	}
	if newGame > lobby {
		return ChoiceNewGame
	}
	return ChoiceLobby
}
