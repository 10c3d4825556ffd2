package holdem

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheZedxD/HomeGameServer-sub001/internal/game"
	"github.com/TheZedxD/HomeGameServer-sub001/internal/games/betting"
	"github.com/TheZedxD/HomeGameServer-sub001/internal/network"
)

type seats struct{ ids []string }

func (p *seats) Has(id string) bool {
	for _, x := range p.ids {
		if x == id {
			return true
		}
	}
	return false
}
func (p *seats) DisplayName(id string) string { return id }
func (p *seats) IDs() []string                { return p.ids }
func (p *seats) Count() int                   { return len(p.ids) }

// table builds a preflop state with a pinned deck: hole cards first in
// seat order, then the community run-out.
func table(ids []string, deck ...string) *game.State {
	s := newState(&seats{ids: ids}, game.NewRNGFromSeed(1))
	// Rewind the deal with the pinned deck.
	d := make([]any, len(deck))
	for i, c := range deck {
		d[i] = c
	}
	hole := make(map[string]any, len(ids))
	for _, id := range ids {
		hole[id] = []any{d[0], d[1]}
		d = d[2:]
	}
	s.Body["holeCards"] = hole
	s.Body["deck"] = d
	return s
}

func act(t *testing.T, s *game.State, player, action string, amount int) *game.State {
	t.Helper()
	payload := fmt.Sprintf(`{"action":%q,"amount":%d}`, action, amount)
	out, err := Definition().Strategies["bet"].Execute(&game.Context{
		State:    s.Clone(),
		PlayerID: player,
		Payload:  json.RawMessage(payload),
	})
	require.NoError(t, err, "%s %s", player, action)
	return out.Apply(s)
}

func actErr(t *testing.T, s *game.State, player, action string, amount int) error {
	t.Helper()
	payload := fmt.Sprintf(`{"action":%q,"amount":%d}`, action, amount)
	_, err := Definition().Strategies["bet"].Execute(&game.Context{
		State:    s.Clone(),
		PlayerID: player,
		Payload:  json.RawMessage(payload),
	})
	require.Error(t, err)
	return err
}

func balance(s *game.State, id string) float64 {
	return s.Body["betting"].(map[string]any)["balances"].(map[string]any)[id].(float64)
}

func TestBlindsArePosted(t *testing.T) {
	s := table([]string{"p1", "p2"},
		"2H", "3D", "2S", "3C", "AS", "KS", "QS", "JS", "TS")

	m := betting.FromState(s.Body)
	assert.Equal(t, 15, m.Pot())
	assert.Equal(t, 10, m.CurrentBet())
	assert.Equal(t, 5, m.RoundContribution("p1"))
	assert.Equal(t, 10, m.RoundContribution("p2"))
	// Heads up, the small blind acts first preflop.
	assert.Equal(t, "p1", s.CurrentPlayerID)
}

func TestStreetsAdvanceToShowdown(t *testing.T) {
	s := table([]string{"p1", "p2"},
		"2H", "3D", "2S", "3C", "AS", "KS", "QS", "JS", "TS")

	s = act(t, s, "p1", "call", 0)
	require.Equal(t, "flop", s.Phase)
	require.Len(t, s.Body["community"].([]any), 3)

	s = act(t, s, "p1", "check", 0)
	s = act(t, s, "p2", "check", 0)
	require.Equal(t, "turn", s.Phase)

	s = act(t, s, "p1", "check", 0)
	s = act(t, s, "p2", "check", 0)
	require.Equal(t, "river", s.Phase)
	require.Len(t, s.Body["community"].([]any), 5)

	s = act(t, s, "p1", "check", 0)
	s = act(t, s, "p2", "check", 0)
	assert.Equal(t, "voting", s.Phase)
	assert.True(t, s.IsComplete)
}

func TestShowdownTieSplitsPotEqually(t *testing.T) {
	// The board is a royal flush: both players play the board and tie.
	s := table([]string{"p1", "p2"},
		"2H", "3D", "2S", "3C", "AS", "KS", "QS", "JS", "TS")

	s = act(t, s, "p1", "call", 0)
	for _, street := range []string{"flop", "turn", "river"} {
		require.Equal(t, street, s.Phase)
		s = act(t, s, "p1", "check", 0)
		s = act(t, s, "p2", "check", 0)
	}

	showdown := s.Body["showdown"].(map[string]any)
	assert.ElementsMatch(t, []any{"p1", "p2"}, showdown["winners"].([]any))
	evals := showdown["evaluations"].(map[string]any)
	assert.Equal(t, "royalFlush", evals["p1"].(map[string]any)["category"])

	// 20 in the pot splits evenly; both stacks return to 200.
	assert.Equal(t, float64(200), balance(s, "p1"))
	assert.Equal(t, float64(200), balance(s, "p2"))
}

func TestOddPotRemainderGoesToFirstWinnerInOrder(t *testing.T) {
	s := table([]string{"p1", "p2", "p3"},
		"2H", "3D", "2S", "3C", "4H", "5D", "AS", "KS", "QS", "JS", "TS")

	// p3 makes it 13 to go; both blinds call, giving an odd pot of 39.
	require.Equal(t, "p3", s.CurrentPlayerID)
	s = act(t, s, "p3", "raise", 3)
	s = act(t, s, "p1", "call", 0)
	s = act(t, s, "p2", "call", 0)
	require.Equal(t, "flop", s.Phase)

	s = act(t, s, "p1", "check", 0)
	s = act(t, s, "p2", "check", 0)
	s = act(t, s, "p3", "fold", 0)
	require.Equal(t, "turn", s.Phase)

	for _, street := range []string{"turn", "river"} {
		require.Equal(t, street, s.Phase)
		s = act(t, s, "p1", "check", 0)
		s = act(t, s, "p2", "check", 0)
	}

	require.True(t, s.IsComplete)
	// 39 splits 19 each with the odd chip to the earliest winner.
	assert.Equal(t, float64(207), balance(s, "p1"))
	assert.Equal(t, float64(206), balance(s, "p2"))
	assert.Equal(t, float64(187), balance(s, "p3"))
}

func TestFoldoutEndsHandWithoutShowdown(t *testing.T) {
	s := table([]string{"p1", "p2"},
		"2H", "3D", "2S", "3C", "AS", "KS", "QS", "JS", "TS")

	s = act(t, s, "p1", "fold", 0)

	require.True(t, s.IsComplete)
	showdown := s.Body["showdown"].(map[string]any)
	assert.Equal(t, "foldout", showdown["reason"])
	assert.Equal(t, []any{"p2"}, showdown["winners"].([]any))
	// p2 keeps the blinds: 200 - 10 + 15.
	assert.Equal(t, float64(205), balance(s, "p2"))
}

func TestOutOfTurnRejected(t *testing.T) {
	s := table([]string{"p1", "p2"},
		"2H", "3D", "2S", "3C", "AS", "KS", "QS", "JS", "TS")

	err := actErr(t, s, "p2", "check", 0)
	assert.Equal(t, network.CodeNotYourTurn, network.CodeOf(err))
}

func TestCheckFacingBetRejected(t *testing.T) {
	s := table([]string{"p1", "p2"},
		"2H", "3D", "2S", "3C", "AS", "KS", "QS", "JS", "TS")

	err := actErr(t, s, "p1", "check", 0)
	assert.Equal(t, network.CodeInvalidMove, network.CodeOf(err))
}

func TestRaiseBeyondStackRejected(t *testing.T) {
	s := table([]string{"p1", "p2"},
		"2H", "3D", "2S", "3C", "AS", "KS", "QS", "JS", "TS")

	err := actErr(t, s, "p1", "raise", 500)
	assert.Equal(t, network.CodeInsufficientBalance, network.CodeOf(err))
}

func TestCarryRecordsFinalBalances(t *testing.T) {
	s := table([]string{"p1", "p2"},
		"2H", "3D", "2S", "3C", "AS", "KS", "QS", "JS", "TS")

	s = act(t, s, "p1", "fold", 0)

	carry := s.Body["carry"].(map[string]any)
	balances := carry["balances"].(map[string]any)
	assert.Equal(t, float64(195), balances["p1"])
	assert.Equal(t, float64(205), balances["p2"])
}
