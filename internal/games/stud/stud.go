// Package stud implements 5-card stud: one hole card, four up cards, a
// betting round per street, and the best showing hand acting first.
package stud

import (
	"encoding/json"

	"github.com/TheZedxD/HomeGameServer-sub001/internal/game"
	"github.com/TheZedxD/HomeGameServer-sub001/internal/games/betting"
	"github.com/TheZedxD/HomeGameServer-sub001/internal/games/cards"
	"github.com/TheZedxD/HomeGameServer-sub001/internal/games/voting"
	"github.com/TheZedxD/HomeGameServer-sub001/internal/network"
)

const startingBalance = 200

var streets = []string{"secondStreet", "thirdStreet", "fourthStreet", "fifthStreet"}

// Definition returns the registrable game definition.
func Definition() *game.Definition {
	return &game.Definition{
		ID:         "five-card-stud",
		Name:       "5-Card Stud",
		MinPlayers: 2,
		MaxPlayers: 8,
		Factory:    newState,
		Strategies: map[string]game.Strategy{
			"pokerAction": game.StrategyFunc(pokerAction),
			"vote":        game.StrategyFunc(vote),
		},
	}
}

func newState(players game.PlayerView, rng *game.RNG) *game.State {
	s := game.NewState()
	s.PlayerOrder = players.IDs()
	s.Phase = streets[0]

	m := betting.New(s.PlayerOrder, startingBalance)
	for _, id := range s.PlayerOrder {
		s.Players[id] = map[string]any{
			"displayName": players.DisplayName(id),
			"balance":     float64(startingBalance),
		}
	}

	deck := cards.ShuffledDeck(rng)
	down := make(map[string]any, len(s.PlayerOrder))
	up := make(map[string]any, len(s.PlayerOrder))
	var code string
	for _, id := range s.PlayerOrder {
		code, deck = cards.Draw(deck)
		down[id] = code
	}
	for _, id := range s.PlayerOrder {
		code, deck = cards.Draw(deck)
		up[id] = []any{code}
	}

	m.StartRound(streets[0])
	m.Save(s.Body)
	s.Body["deck"] = deck
	s.Body["downCards"] = down
	s.Body["upCards"] = up
	s.CurrentPlayerID = bestShowing(s, m)
	syncBalances(s, m)
	return s
}

type actionPayload struct {
	Action string `json:"action"` // bet, call, raise, check, fold, allIn
	Amount int    `json:"amount,omitempty"`
}

func pokerAction(ctx *game.Context) (*game.Outcome, error) {
	var p actionPayload
	if err := json.Unmarshal(ctx.Payload, &p); err != nil {
		return nil, network.NewError(network.CodeValidationError, "bad pokerAction payload")
	}

	s := ctx.State
	if !onStreet(s.Phase) {
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
	case "bet":
		err = m.PlaceBet(ctx.PlayerID, p.Amount)
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

// advanceStreet deals one up card to every surviving player and opens the
// next betting round; after fifth street the hands show down.
func advanceStreet(s *game.State, m *betting.Manager) {
	idx := streetIndex(s.Phase)
	if idx == len(streets)-1 {
		showdown(s, m)
		return
	}

	deck := s.Body["deck"].([]any)
	up := s.Body["upCards"].(map[string]any)
	var code string
	for _, id := range s.PlayerOrder {
		if m.Status(id) == betting.StatusFolded {
			continue
		}
		code, deck = cards.Draw(deck)
		up[id] = append(up[id].([]any), code)
	}
	s.Body["deck"] = deck
	s.Phase = streets[idx+1]

	m.StartRound(s.Phase)
	m.Save(s.Body)

	first := bestShowing(s, m)
	if first == "" {
		// Nobody can act; run the remaining streets out.
		advanceStreet(s, m)
		return
	}
	s.CurrentPlayerID = first
}

// bestShowing returns the active player whose exposed cards rank highest,
// ties resolving to the earliest seat.
func bestShowing(s *game.State, m *betting.Manager) string {
	up := s.Body["upCards"].(map[string]any)
	var best cards.HandRank
	bestID := ""
	for _, id := range s.PlayerOrder {
		if m.Status(id) != betting.StatusActive {
			continue
		}
		rank := showingRank(cards.ParseAll(up[id].([]any)))
		if bestID == "" || cards.Compare(rank, best) > 0 {
			best = rank
			bestID = id
		}
	}
	return bestID
}

// showingRank classifies a partial hand of exposed cards: made groups
// first, then high cards.
func showingRank(show []cards.Card) cards.HandRank {
	counts := map[int]int{}
	for _, c := range show {
		counts[c.Rank]++
	}
	type grp struct{ rank, n int }
	var groups []grp
	for r, n := range counts {
		groups = append(groups, grp{r, n})
	}
	for i := range groups {
		for j := i + 1; j < len(groups); j++ {
			if groups[j].n > groups[i].n ||
				(groups[j].n == groups[i].n && groups[j].rank > groups[i].rank) {
				groups[i], groups[j] = groups[j], groups[i]
			}
		}
	}

	kickers := make([]int, 0, len(groups))
	for _, g := range groups {
		kickers = append(kickers, g.rank)
	}
	category := cards.HighCard
	switch {
	case len(groups) > 0 && groups[0].n == 4:
		category = cards.FourOfAKind
	case len(groups) > 0 && groups[0].n == 3:
		category = cards.ThreeOfAKind
	case len(groups) > 1 && groups[0].n == 2 && groups[1].n == 2:
		category = cards.TwoPair
	case len(groups) > 0 && groups[0].n == 2:
		category = cards.Pair
	}
	return cards.HandRank{Category: category, Kickers: kickers}
}

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
		if m.Status(id) != betting.StatusActive {
			continue
		}
		if m.RoundContribution(id) != m.CurrentBet() || !acted(s, id) {
			return id
		}
	}
	return bestShowing(s, m)
}

func acted(s *game.State, id string) bool {
	sub, _ := s.Body["betting"].(map[string]any)
	if sub == nil {
		return false
	}
	actedMap, _ := sub["acted"].(map[string]any)
	b, _ := actedMap[id].(bool)
	return b
}

// showdown reveals the hole cards and evaluates each surviving five-card
// hand.
func showdown(s *game.State, m *betting.Manager) {
	down := s.Body["downCards"].(map[string]any)
	up := s.Body["upCards"].(map[string]any)

	var best cards.HandRank
	var winners []string
	evaluations := make(map[string]any)

	for _, id := range m.ActivePlayers() {
		hand := cards.ParseAll(up[id].([]any))
		if hole, ok := down[id].(string); ok {
			hand = append(hand, cards.MustParse(hole))
		}
		rank := cards.Evaluate5(hand)

		kickers := make([]any, len(rank.Kickers))
		for i, k := range rank.Kickers {
			kickers[i] = float64(k)
		}
		evaluations[id] = map[string]any{
			"category": rank.Category.Name(),
			"kickers":  kickers,
		}

		switch {
		case len(winners) == 0 || cards.Compare(rank, best) > 0:
			best = rank
			winners = []string{id}
		case cards.Compare(rank, best) == 0:
			winners = append(winners, id)
		}
	}

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

func onStreet(phase string) bool {
	return streetIndex(phase) >= 0
}

func streetIndex(phase string) int {
	for i, st := range streets {
		if st == phase {
			return i
		}
	}
	return -1
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
