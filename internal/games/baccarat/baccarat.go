// Package baccarat implements punto banco baccarat: players back the
// player hand, the banker hand, or a tie, and the drawing follows the
// standard third-card tables.
package baccarat

import (
	"encoding/json"

	"github.com/TheZedxD/HomeGameServer-sub001/internal/game"
	"github.com/TheZedxD/HomeGameServer-sub001/internal/games/cards"
	"github.com/TheZedxD/HomeGameServer-sub001/internal/games/voting"
	"github.com/TheZedxD/HomeGameServer-sub001/internal/network"
)

const startingBalance = 100

// Definition returns the registrable game definition.
func Definition() *game.Definition {
	return &game.Definition{
		ID:         "baccarat",
		Name:       "Baccarat",
		MinPlayers: 1,
		MaxPlayers: 8,
		Factory:    newState,
		Strategies: map[string]game.Strategy{
			"placeBet": game.StrategyFunc(placeBet),
			"vote":     game.StrategyFunc(vote),
		},
	}
}

func newState(players game.PlayerView, rng *game.RNG) *game.State {
	s := game.NewState()
	s.PlayerOrder = players.IDs()
	s.Phase = "betting"
	balances := make(map[string]any, len(s.PlayerOrder))
	for _, id := range s.PlayerOrder {
		s.Players[id] = map[string]any{
			"displayName": players.DisplayName(id),
			"balance":     float64(startingBalance),
		}
		balances[id] = float64(startingBalance)
	}
	s.Body["deck"] = cards.ShuffledDeck(rng)
	s.Body["balances"] = balances
	s.Body["bets"] = map[string]any{}
	s.Body["playerHand"] = []any{}
	s.Body["bankerHand"] = []any{}
	return s
}

type betPayload struct {
	On     string `json:"on"` // player, banker, tie
	Amount int    `json:"amount"`
}

func placeBet(ctx *game.Context) (*game.Outcome, error) {
	var p betPayload
	if err := json.Unmarshal(ctx.Payload, &p); err != nil {
		return nil, network.NewError(network.CodeValidationError, "bad placeBet payload")
	}

	s := ctx.State
	if s.Phase != "betting" {
		return nil, network.NewError(network.CodeInvalidMove, "betting is closed")
	}
	switch p.On {
	case "player", "banker", "tie":
	default:
		return nil, network.NewError(network.CodeInvalidMove, "bets go on player, banker, or tie")
	}
	bets := s.Body["bets"].(map[string]any)
	if _, dup := bets[ctx.PlayerID]; dup {
		return nil, network.NewError(network.CodeInvalidMove, "bet already placed")
	}
	if p.Amount <= 0 {
		return nil, network.NewError(network.CodeInvalidMove, "bet must be positive")
	}
	balances := s.Body["balances"].(map[string]any)
	balance := intOf(balances[ctx.PlayerID])
	if balance < p.Amount {
		return nil, network.NewError(network.CodeInsufficientBalance,
			"balance %d < bet %d", balance, p.Amount)
	}

	prev := s.Clone()

	bets[ctx.PlayerID] = map[string]any{"on": p.On, "amount": float64(p.Amount)}
	setBalance(s, ctx.PlayerID, balance-p.Amount)

	if len(bets) == len(s.PlayerOrder) {
		deal(s)
	}
	return outcome(s, prev), nil
}

// deal runs the entire coup: initial hands, third-card rules, and
// settlement.
func deal(s *game.State) {
	deck := s.Body["deck"].([]any)
	var code string
	draw := func() cards.Card {
		code, deck = cards.Draw(deck)
		return cards.MustParse(code)
	}

	player := []cards.Card{draw(), draw()}
	banker := []cards.Card{draw(), draw()}

	pTotal, bTotal := total(player), total(banker)
	natural := pTotal >= 8 || bTotal >= 8

	playerThird := -1
	if !natural {
		if pTotal <= 5 {
			c := draw()
			player = append(player, c)
			playerThird = pointValue(c)
		}
		if bankerDraws(bTotal, playerThird) {
			banker = append(banker, draw())
		}
	}

	s.Body["deck"] = deck
	s.Body["playerHand"] = codes(player)
	s.Body["bankerHand"] = codes(banker)
	settle(s, total(player), total(banker))
}

// bankerDraws applies the standard banker table. playerThird is -1 when
// the player stood, in which case the banker draws on 0-5.
func bankerDraws(bTotal, playerThird int) bool {
	if playerThird < 0 {
		return bTotal <= 5
	}
	switch bTotal {
	case 0, 1, 2:
		return true
	case 3:
		return playerThird != 8
	case 4:
		return playerThird >= 2 && playerThird <= 7
	case 5:
		return playerThird >= 4 && playerThird <= 7
	case 6:
		return playerThird == 6 || playerThird == 7
	default:
		return false
	}
}

// settle pays each bet: player 1:1, banker 0.95:1, tie 8:1. Player and
// banker bets push when the coup ties.
func settle(s *game.State, pTotal, bTotal int) {
	var result string
	switch {
	case pTotal > bTotal:
		result = "player"
	case bTotal > pTotal:
		result = "banker"
	default:
		result = "tie"
	}

	bets := s.Body["bets"].(map[string]any)
	outcomes := make(map[string]any, len(bets))
	for _, id := range s.PlayerOrder {
		bet := bets[id].(map[string]any)
		on := bet["on"].(string)
		amount := intOf(bet["amount"])
		balances := s.Body["balances"].(map[string]any)
		balance := intOf(balances[id])

		var res string
		switch {
		case on == result && result == "player":
			res = "win"
			balance += amount * 2
		case on == result && result == "banker":
			res = "win"
			balance += amount + amount*95/100
		case on == result && result == "tie":
			res = "win"
			balance += amount * 9
		case result == "tie":
			// Player and banker bets push on a tie.
			res = "push"
			balance += amount
		default:
			res = "lose"
		}
		setBalance(s, id, balance)
		outcomes[id] = res
	}

	s.Body["result"] = map[string]any{
		"winner":      result,
		"playerTotal": float64(pTotal),
		"bankerTotal": float64(bTotal),
		"outcomes":    outcomes,
	}
	s.Phase = "voting"
	s.IsComplete = true
	s.Body["votes"] = map[string]any{}
	s.Body["carry"] = map[string]any{
		"balances": game.CloneValue(s.Body["balances"]),
	}
}

type votePayload struct {
	Choice string `json:"choice"`
}

func vote(ctx *game.Context) (*game.Outcome, error) {
	var p votePayload
	if err := json.Unmarshal(ctx.Payload, &p); err != nil {
		return nil, network.NewError(network.CodeValidationError, "bad vote payload")
	}

	s := ctx.State
	if s.Phase != "voting" {
		return nil, network.NewError(network.CodeInvalidMove, "no vote in progress")
	}

	prev := s.Clone()

	v := voting.FromState(s.Body, s.PlayerOrder)
	if err := v.Cast(ctx.PlayerID, p.Choice); err != nil {
		return nil, err
	}
	v.Save(s.Body)
	if v.IsComplete() {
		s.Body["voteResult"] = v.Resolve()
	}
	return outcome(s, prev), nil
}

// pointValue maps a card to its baccarat value: aces one, tens and faces
// zero.
func pointValue(c cards.Card) int {
	switch {
	case c.Rank == 14:
		return 1
	case c.Rank >= 10:
		return 0
	default:
		return c.Rank
	}
}

func total(hand []cards.Card) int {
	t := 0
	for _, c := range hand {
		t += pointValue(c)
	}
	return t % 10
}

func codes(hand []cards.Card) []any {
	out := make([]any, len(hand))
	for i, c := range hand {
		out[i] = c.String()
	}
	return out
}

func setBalance(s *game.State, id string, balance int) {
	s.Body["balances"].(map[string]any)[id] = float64(balance)
	if attrs, ok := s.Players[id]; ok {
		attrs["balance"] = float64(balance)
	}
}

func intOf(v any) int {
	if f, ok := v.(float64); ok {
		return int(f)
	}
	return 0
}

func outcome(next, prev *game.State) *game.Outcome {
	return &game.Outcome{
		Apply: func(_ *game.State) *game.State { return next },
		Undo:  func() *game.State { return prev },
	}
}
