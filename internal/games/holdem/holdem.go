// Package holdem implements Texas Hold'em: blinds, four betting streets,
// and a best-five-of-seven showdown.
package holdem

import (
	"encoding/json"

	"github.com/TheZedxD/HomeGameServer-sub001/internal/game"
	"github.com/TheZedxD/HomeGameServer-sub001/internal/games/betting"
	"github.com/TheZedxD/HomeGameServer-sub001/internal/games/cards"
	"github.com/TheZedxD/HomeGameServer-sub001/internal/games/voting"
	"github.com/TheZedxD/HomeGameServer-sub001/internal/network"
)

const (
	startingBalance = 200
	smallBlind      = 5
	bigBlind        = 10
)

// Definition returns the registrable game definition.
func Definition() *game.Definition {
	return &game.Definition{
		ID:         "holdem",
		Name:       "Texas Hold'em",
		MinPlayers: 2,
		MaxPlayers: 8,
		Factory:    newState,
		Strategies: map[string]game.Strategy{
			"bet":  game.StrategyFunc(bet),
			"vote": game.StrategyFunc(vote),
		},
	}
}

func newState(players game.PlayerView, rng *game.RNG) *game.State {
	s := game.NewState()
	s.PlayerOrder = players.IDs()
	s.Phase = "preflop"

	m := betting.New(s.PlayerOrder, startingBalance)
	for i, id := range s.PlayerOrder {
		s.Players[id] = map[string]any{
			"displayName": players.DisplayName(id),
			"seat":        float64(i),
			"balance":     float64(startingBalance),
		}
	}

	deck := cards.ShuffledDeck(rng)
	hole := make(map[string]any, len(s.PlayerOrder))
	var code string
	for _, id := range s.PlayerOrder {
		hand := []any{}
		for i := 0; i < 2; i++ {
			code, deck = cards.Draw(deck)
			hand = append(hand, code)
		}
		hole[id] = hand
	}

	m.StartRound("preflop")
	// Blinds are live bets from the first two seats.
	_ = m.PlaceBet(s.PlayerOrder[0], smallBlind)
	_ = m.PlaceBet(s.PlayerOrder[1], bigBlind)
	m.Save(s.Body)

	s.Body["deck"] = deck
	s.Body["holeCards"] = hole
	s.Body["community"] = []any{}
	s.CurrentPlayerID = s.PlayerOrder[2%len(s.PlayerOrder)]
	syncBalances(s, m)
	return s
}

type betPayload struct {
	Action string `json:"action"` // call, raise, check, fold, allIn
	Amount int    `json:"amount,omitempty"`
}

func bet(ctx *game.Context) (*game.Outcome, error) {
	var p betPayload
	if err := json.Unmarshal(ctx.Payload, &p); err != nil {
		return nil, network.NewError(network.CodeValidationError, "bad bet payload")
	}

	s := ctx.State
	switch s.Phase {
	case "preflop", "flop", "turn", "river":
	default:
		return nil, network.NewError(network.CodeInvalidMove, "no betting street open")
	}
	if ctx.PlayerID != s.CurrentPlayerID {
		return nil, network.NewError(network.CodeNotYourTurn,
			"it is %s's turn", s.CurrentPlayerID)
	}

	prev := s.Clone()

	m := betting.FromState(s.Body)
	var err error
	switch p.Action {
	case "call":
		err = m.Call(ctx.PlayerID)
	case "raise":
		err = m.Raise(ctx.PlayerID, p.Amount)
	case "check":
		err = m.Check(ctx.PlayerID)
	case "fold":
		err = m.Fold(ctx.PlayerID)
	case "allIn":
		err = m.AllIn(ctx.PlayerID)
	default:
		err = network.NewError(network.CodeInvalidMove, "unknown action %q", p.Action)
	}
	if err != nil {
		return nil, err
	}

	m.Save(s.Body)
	syncBalances(s, m)

	active := m.ActivePlayers()
	if len(active) == 1 {
		// Everyone else folded; the hand ends without a showdown.
		m.Payout(active)
		m.Save(s.Body)
		syncBalances(s, m)
		s.Body["showdown"] = map[string]any{
			"winners": []any{active[0]},
			"reason":  "foldout",
		}
		finishHand(s)
		return outcome(s, prev), nil
	}

	if m.IsRoundComplete() {
		advanceStreet(s, m)
	} else {
		s.CurrentPlayerID = nextActor(s, m, ctx.PlayerID)
	}
	return outcome(s, prev), nil
}

// advanceStreet deals the next community cards and opens the next betting
// round, fast-forwarding to showdown when nobody can act.
func advanceStreet(s *game.State, m *betting.Manager) {
	deck := s.Body["deck"].([]any)
	community := s.Body["community"].([]any)
	var code string

	for {
		switch s.Phase {
		case "preflop":
			for i := 0; i < 3; i++ {
				code, deck = cards.Draw(deck)
				community = append(community, code)
			}
			s.Phase = "flop"
		case "flop":
			code, deck = cards.Draw(deck)
			community = append(community, code)
			s.Phase = "turn"
		case "turn":
			code, deck = cards.Draw(deck)
			community = append(community, code)
			s.Phase = "river"
		case "river":
			s.Body["deck"] = deck
			s.Body["community"] = community
			showdown(s, m)
			return
		}

		m.StartRound(s.Phase)
		first := firstActor(s, m)
		if first != "" {
			s.Body["deck"] = deck
			s.Body["community"] = community
			m.Save(s.Body)
			s.CurrentPlayerID = first
			return
		}
		// All remaining players are all in; streets run out unbet.
	}
}

// firstActor returns the first player in seat order who can still act.
func firstActor(s *game.State, m *betting.Manager) string {
	for _, id := range s.PlayerOrder {
		if m.Status(id) == betting.StatusActive {
			return id
		}
	}
	return ""
}

// nextActor returns the next actionable player after the given one.
func nextActor(s *game.State, m *betting.Manager, after string) string {
	order := s.PlayerOrder
	start := 0
	for i, id := range order {
		if id == after {
			start = i + 1
			break
		}
	}
	for i := 0; i < len(order); i++ {
		id := order[(start+i)%len(order)]
		if m.Status(id) == betting.StatusActive && m.RoundContribution(id) != m.CurrentBet() ||
			(m.Status(id) == betting.StatusActive && !roundActed(s, id)) {
			return id
		}
	}
	return firstActor(s, m)
}

func roundActed(s *game.State, id string) bool {
	sub, _ := s.Body["betting"].(map[string]any)
	if sub == nil {
		return false
	}
	acted, _ := sub["acted"].(map[string]any)
	b, _ := acted[id].(bool)
	return b
}

// showdown evaluates every surviving hand against the board, splits the
// pot equally among the best, and hands the indivisible remainder to the
// earliest winner in seat order.
func showdown(s *game.State, m *betting.Manager) {
	community := cards.ParseAll(s.Body["community"].([]any))
	hole := s.Body["holeCards"].(map[string]any)

	var best cards.HandRank
	var winners []string
	evaluations := make(map[string]any)

	for _, id := range m.ActivePlayers() {
		seven := append(append([]cards.Card{}, community...),
			cards.ParseAll(hole[id].([]any))...)
		rank, hand := cards.BestOf7(seven)

		kickers := make([]any, len(rank.Kickers))
		for i, k := range rank.Kickers {
			kickers[i] = float64(k)
		}
		handCodes := make([]any, len(hand))
		for i, c := range hand {
			handCodes[i] = c.String()
		}
		evaluations[id] = map[string]any{
			"category": rank.Category.Name(),
			"kickers":  kickers,
			"hand":     handCodes,
		}

		switch {
		case len(winners) == 0 || cards.Compare(rank, best) > 0:
			best = rank
			winners = []string{id}
		case cards.Compare(rank, best) == 0:
			winners = append(winners, id)
		}
	}

	// Payout order follows playerOrder, so the odd chip lands on the
	// first winner in seat order.
	m.Payout(winners)
	m.Save(s.Body)
	syncBalances(s, m)

	winnerVals := make([]any, len(winners))
	for i, id := range winners {
		winnerVals[i] = id
	}
	s.Body["showdown"] = map[string]any{
		"winners":     winnerVals,
		"evaluations": evaluations,
		"reason":      "showdown",
	}
	finishHand(s)
}

func finishHand(s *game.State) {
	s.Phase = "voting"
	s.IsComplete = true
	s.CurrentPlayerID = ""
	s.Body["votes"] = map[string]any{}
	sub := s.Body["betting"].(map[string]any)
	s.Body["carry"] = map[string]any{
		"balances": game.CloneValue(sub["balances"]),
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

func syncBalances(s *game.State, m *betting.Manager) {
	for id, balance := range m.Balances() {
		if attrs, ok := s.Players[id]; ok {
			attrs["balance"] = float64(balance)
		}
	}
}

func outcome(next, prev *game.State) *game.Outcome {
	return &game.Outcome{
		Apply: func(_ *game.State) *game.State { return next },
		Undo:  func() *game.State { return prev },
	}
}
