// Package tictactoe implements the two-player tic-tac-toe game.
package tictactoe

import (
	"encoding/json"

	"github.com/TheZedxD/HomeGameServer-sub001/internal/game"
	"github.com/TheZedxD/HomeGameServer-sub001/internal/network"
)

var markers = []string{"X", "O"}

// Definition returns the registrable game definition.
func Definition() *game.Definition {
	return &game.Definition{
		ID:         "tictactoe",
		Name:       "Tic-Tac-Toe",
		MinPlayers: 2,
		MaxPlayers: 2,
		Factory:    newState,
		Strategies: map[string]game.Strategy{
			"placeMark": game.StrategyFunc(placeMark),
		},
	}
}

func newState(players game.PlayerView, rng *game.RNG) *game.State {
	s := game.NewState()
	ids := players.IDs()
	if len(ids) > 2 {
		ids = ids[:2]
	}
	s.PlayerOrder = ids
	s.Phase = "playing"
	s.CurrentPlayerID = ids[0]
	for i, id := range ids {
		s.Players[id] = map[string]any{
			"displayName": players.DisplayName(id),
			"marker":      markers[i],
		}
	}
	board := make([]any, 3)
	for r := range board {
		board[r] = []any{nil, nil, nil}
	}
	s.Body["board"] = board
	return s
}

type placeMarkPayload struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func placeMark(ctx *game.Context) (*game.Outcome, error) {
	var p placeMarkPayload
	if err := json.Unmarshal(ctx.Payload, &p); err != nil {
		return nil, network.NewError(network.CodeValidationError, "bad placeMark payload")
	}

	s := ctx.State
	if s.IsComplete {
		return nil, network.NewError(network.CodeInvalidMove, "game is over")
	}
	if ctx.PlayerID != s.CurrentPlayerID {
		return nil, network.NewError(network.CodeNotYourTurn,
			"it is %s's turn", s.CurrentPlayerID)
	}
	if p.Row < 0 || p.Row > 2 || p.Col < 0 || p.Col > 2 {
		return nil, network.NewError(network.CodeInvalidMove,
			"cell (%d,%d) out of bounds", p.Row, p.Col)
	}

	board := s.Body["board"].([]any)
	row := board[p.Row].([]any)
	if row[p.Col] != nil {
		return nil, network.NewError(network.CodeInvalidMove,
			"cell (%d,%d) is occupied", p.Row, p.Col)
	}

	prev := s.Clone()

	marker := s.Players[ctx.PlayerID]["marker"].(string)
	row[p.Col] = marker

	if winningMarker(board, marker) {
		s.IsComplete = true
		s.Phase = "complete"
		s.Body["winner"] = ctx.PlayerID
		s.CurrentPlayerID = ""
	} else if boardFull(board) {
		s.IsComplete = true
		s.Phase = "complete"
		s.Body["winner"] = nil
	} else {
		s.CurrentPlayerID = other(s.PlayerOrder, ctx.PlayerID)
	}

	return &game.Outcome{
		Apply: func(_ *game.State) *game.State { return s },
		Undo:  func() *game.State { return prev },
		Metadata: map[string]any{
			"row": p.Row, "col": p.Col, "marker": marker,
		},
	}, nil
}

func other(order []string, id string) string {
	for _, o := range order {
		if o != id {
			return o
		}
	}
	return id
}

func winningMarker(board []any, marker string) bool {
	at := func(r, c int) bool {
		v := board[r].([]any)[c]
		return v == marker
	}
	for i := 0; i < 3; i++ {
		if at(i, 0) && at(i, 1) && at(i, 2) {
			return true
		}
		if at(0, i) && at(1, i) && at(2, i) {
			return true
		}
	}
	if at(0, 0) && at(1, 1) && at(2, 2) {
		return true
	}
	return at(0, 2) && at(1, 1) && at(2, 0)
}

func boardFull(board []any) bool {
	for _, r := range board {
		for _, c := range r.([]any) {
			if c == nil {
				return false
			}
		}
	}
	return true
}
