// Package blackjack implements multi-seat blackjack against a dealer:
// betting, hit/stand/double, dealer play, 3:2 naturals, and the post-round
// vote.
package blackjack

import (
	"encoding/json"

	"github.com/TheZedxD/HomeGameServer-sub001/internal/game"
	"github.com/TheZedxD/HomeGameServer-sub001/internal/games/cards"
	"github.com/TheZedxD/HomeGameServer-sub001/internal/games/voting"
	"github.com/TheZedxD/HomeGameServer-sub001/internal/network"
)

const startingBalance = 100

// Seat statuses during the acting phase.
const (
	seatActing  = "acting"
	seatStood   = "stood"
	seatBusted  = "busted"
	seatNatural = "natural"
)

// Definition returns the registrable game definition.
func Definition() *game.Definition {
	return &game.Definition{
		ID:         "blackjack",
		Name:       "Blackjack",
		MinPlayers: 1,
		MaxPlayers: 6,
		Factory:    newState,
		Strategies: map[string]game.Strategy{
			"placeBet": game.StrategyFunc(placeBet),
			"action":   game.StrategyFunc(action),
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
	s.Body["hands"] = map[string]any{}
	s.Body["seatStatus"] = map[string]any{}
	s.Body["dealerHand"] = []any{}
	s.Body["dealerHole"] = nil
	return s
}

type betPayload struct {
	Amount int `json:"amount"`
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

	bets[ctx.PlayerID] = float64(p.Amount)
	setBalance(s, ctx.PlayerID, balance-p.Amount)

	if len(bets) == len(s.PlayerOrder) {
		deal(s)
	}

	return outcome(s, prev), nil
}

// deal gives each seat two cards and the dealer an up card plus a hole
// card, then opens the acting phase.
func deal(s *game.State) {
	deck := s.Body["deck"].([]any)
	hands := s.Body["hands"].(map[string]any)
	status := s.Body["seatStatus"].(map[string]any)

	var code string
	for _, id := range s.PlayerOrder {
		hand := []any{}
		for i := 0; i < 2; i++ {
			code, deck = cards.Draw(deck)
			hand = append(hand, code)
		}
		hands[id] = hand
		if handTotal(hand) == 21 {
			status[id] = seatNatural
		} else {
			status[id] = seatActing
		}
	}

	dealer := []any{}
	code, deck = cards.Draw(deck)
	dealer = append(dealer, code)
	code, deck = cards.Draw(deck)
	s.Body["dealerHole"] = code
	s.Body["dealerHand"] = dealer
	s.Body["deck"] = deck

	s.Phase = "acting"
	advanceTurn(s)
}

// advanceTurn points currentPlayerId at the next seat still acting, or
// runs the dealer when nobody is left.
func advanceTurn(s *game.State) {
	status := s.Body["seatStatus"].(map[string]any)
	for _, id := range s.PlayerOrder {
		if status[id] == seatActing {
			s.CurrentPlayerID = id
			return
		}
	}
	s.CurrentPlayerID = ""
	dealerPlay(s)
}

type actionPayload struct {
	Action string `json:"action"` // hit, stand, double
}

func action(ctx *game.Context) (*game.Outcome, error) {
	var p actionPayload
	if err := json.Unmarshal(ctx.Payload, &p); err != nil {
		return nil, network.NewError(network.CodeValidationError, "bad action payload")
	}

	s := ctx.State
	if s.Phase != "acting" {
		return nil, network.NewError(network.CodeInvalidMove, "no hand in progress")
	}
	if ctx.PlayerID != s.CurrentPlayerID {
		return nil, network.NewError(network.CodeNotYourTurn,
			"it is %s's turn", s.CurrentPlayerID)
	}

	prev := s.Clone()

	hands := s.Body["hands"].(map[string]any)
	status := s.Body["seatStatus"].(map[string]any)
	hand := hands[ctx.PlayerID].([]any)

	switch p.Action {
	case "hit":
		var code string
		deck := s.Body["deck"].([]any)
		code, deck = cards.Draw(deck)
		hand = append(hand, code)
		hands[ctx.PlayerID] = hand
		s.Body["deck"] = deck
		if handTotal(hand) > 21 {
			status[ctx.PlayerID] = seatBusted
			advanceTurn(s)
		}
	case "stand":
		status[ctx.PlayerID] = seatStood
		advanceTurn(s)
	case "double":
		if len(hand) != 2 {
			return nil, network.NewError(network.CodeInvalidMove,
				"double is only allowed on two cards")
		}
		bets := s.Body["bets"].(map[string]any)
		bet := intOf(bets[ctx.PlayerID])
		balances := s.Body["balances"].(map[string]any)
		balance := intOf(balances[ctx.PlayerID])
		if balance < bet {
			return nil, network.NewError(network.CodeInsufficientBalance,
				"balance %d < additional bet %d", balance, bet)
		}
		setBalance(s, ctx.PlayerID, balance-bet)
		bets[ctx.PlayerID] = float64(bet * 2)

		var code string
		deck := s.Body["deck"].([]any)
		code, deck = cards.Draw(deck)
		hand = append(hand, code)
		hands[ctx.PlayerID] = hand
		s.Body["deck"] = deck
		if handTotal(hand) > 21 {
			status[ctx.PlayerID] = seatBusted
		} else {
			status[ctx.PlayerID] = seatStood
		}
		advanceTurn(s)
	default:
		return nil, network.NewError(network.CodeInvalidMove, "unknown action %q", p.Action)
	}

	return outcome(s, prev), nil
}

// dealerPlay reveals the hole card, draws to 17, and settles every seat.
// The dealer hits on 16 or less and stands on 17 or more.
func dealerPlay(s *game.State) {
	dealer := s.Body["dealerHand"].([]any)
	if hole, ok := s.Body["dealerHole"].(string); ok && hole != "" {
		dealer = append(dealer, hole)
		s.Body["dealerHole"] = nil
	}

	deck := s.Body["deck"].([]any)
	var code string
	for handTotal(dealer) <= 16 {
		code, deck = cards.Draw(deck)
		dealer = append(dealer, code)
	}
	s.Body["dealerHand"] = dealer
	s.Body["deck"] = deck

	settle(s, dealer)
}

// settle pays each seat: naturals 3:2 (unless the dealer also has one,
// which pushes), busts lose, dealer busts pay 1:1, higher total wins,
// equal totals push.
func settle(s *game.State, dealer []any) {
	dealerTotal := handTotal(dealer)
	dealerNatural := dealerTotal == 21 && len(dealer) == 2

	bets := s.Body["bets"].(map[string]any)
	hands := s.Body["hands"].(map[string]any)
	status := s.Body["seatStatus"].(map[string]any)
	results := make(map[string]any, len(s.PlayerOrder))

	for _, id := range s.PlayerOrder {
		bet := intOf(bets[id])
		hand := hands[id].([]any)
		total := handTotal(hand)
		balances := s.Body["balances"].(map[string]any)
		balance := intOf(balances[id])

		var result string
		switch {
		case status[id] == seatBusted:
			result = "lose"
		case status[id] == seatNatural && !dealerNatural:
			result = "blackjack"
			balance += bet + bet*3/2
		case status[id] == seatNatural && dealerNatural:
			result = "push"
			balance += bet
		case dealerNatural:
			result = "lose"
		case dealerTotal > 21 || total > dealerTotal:
			result = "win"
			balance += bet * 2
		case total == dealerTotal:
			result = "push"
			balance += bet
		default:
			result = "lose"
		}
		setBalance(s, id, balance)
		results[id] = result
	}

	s.Body["results"] = results
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

// handTotal values aces at 11, dropping to 1 while the hand would bust.
func handTotal(hand []any) int {
	total, aces := 0, 0
	for _, c := range cards.ParseAll(hand) {
		switch {
		case c.Rank == 14:
			total += 11
			aces++
		case c.Rank > 10:
			total += 10
		default:
			total += c.Rank
		}
	}
	for total > 21 && aces > 0 {
		total -= 10
		aces--
	}
	return total
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
