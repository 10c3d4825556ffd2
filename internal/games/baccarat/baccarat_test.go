package baccarat

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheZedxD/HomeGameServer-sub001/internal/game"
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

// pinned builds a betting-phase state with an exact deck. The coup deals
// both player cards, then both banker cards, then any third cards.
func pinned(ids []string, deck ...string) *game.State {
	s := newState(&seats{ids: ids}, game.NewRNGFromSeed(1))
	d := make([]any, len(deck))
	for i, c := range deck {
		d[i] = c
	}
	s.Body["deck"] = d
	return s
}

func bet(t *testing.T, s *game.State, player, on string, amount int) *game.State {
	t.Helper()
	payload := fmt.Sprintf(`{"on":%q,"amount":%d}`, on, amount)
	out, err := Definition().Strategies["placeBet"].Execute(&game.Context{
		State:    s.Clone(),
		PlayerID: player,
		Payload:  json.RawMessage(payload),
	})
	require.NoError(t, err)
	return out.Apply(s)
}

func result(s *game.State) map[string]any {
	return s.Body["result"].(map[string]any)
}

func TestBankerDrawsTable(t *testing.T) {
	cases := []struct {
		bTotal     int
		playerThird int
		draws      bool
	}{
		{2, 5, true},
		{3, 8, false},
		{3, 7, true},
		{4, 1, false},
		{4, 2, true},
		{4, 7, true},
		{4, 8, false},
		{5, 3, false},
		{5, 4, true},
		{5, 7, true},
		{6, 5, false},
		{6, 6, true},
		{6, 7, true},
		{7, 6, false},
		{5, -1, true},
		{6, -1, false},
	}
	for _, tc := range cases {
		got := bankerDraws(tc.bTotal, tc.playerThird)
		assert.Equal(t, tc.draws, got,
			"banker %d vs player third %d", tc.bTotal, tc.playerThird)
	}
}

func TestNaturalStopsTheCoup(t *testing.T) {
	// Player 4+5=9 natural; banker 2+2=4 must not draw.
	s := pinned([]string{"p1"}, "4H", "5D", "2S", "2C", "9H")
	s = bet(t, s, "p1", "player", 10)

	assert.Len(t, s.Body["playerHand"].([]any), 2)
	assert.Len(t, s.Body["bankerHand"].([]any), 2)
	r := result(s)
	assert.Equal(t, "player", r["winner"])
	assert.Equal(t, float64(9), r["playerTotal"])
}

func TestPlayerBetPaysEvenMoney(t *testing.T) {
	s := pinned([]string{"p1"}, "4H", "5D", "2S", "2C", "9H")
	s = bet(t, s, "p1", "player", 10)

	// 100 - 10 + 20.
	assert.Equal(t, float64(110), s.Body["balances"].(map[string]any)["p1"])
	assert.Equal(t, "win", result(s)["outcomes"].(map[string]any)["p1"])
}

func TestBankerBetPaysNinetyFivePercent(t *testing.T) {
	// Player 2+3=5 draws a 9 for 4; banker 4+3=7 stands and wins.
	s := pinned([]string{"p1"}, "2H", "3D", "4S", "3C", "9H")
	s = bet(t, s, "p1", "banker", 20)

	r := result(s)
	require.Equal(t, "banker", r["winner"])
	// 100 - 20 + 20 + 19.
	assert.Equal(t, float64(119), s.Body["balances"].(map[string]any)["p1"])
}

func TestTiePaysEightToOneAndPushesSideBets(t *testing.T) {
	// Player 4+4=8 natural; banker 5+3=8 natural tie.
	s := pinned([]string{"p1", "p2"}, "4H", "4D", "5S", "3C")
	s = bet(t, s, "p1", "tie", 10)
	s = bet(t, s, "p2", "player", 10)

	r := result(s)
	require.Equal(t, "tie", r["winner"])
	balances := s.Body["balances"].(map[string]any)
	// Tie bet: 100 - 10 + 90. Player bet pushes.
	assert.Equal(t, float64(180), balances["p1"])
	assert.Equal(t, float64(100), balances["p2"])
	assert.Equal(t, "push", r["outcomes"].(map[string]any)["p2"])
}

func TestPlayerDrawsOnFiveOrLess(t *testing.T) {
	// Player 2+3=5 draws 9H for 4. Banker 9+8=7 stands on 7.
	s := pinned([]string{"p1"}, "2H", "3D", "9S", "8C", "9H")
	s = bet(t, s, "p1", "player", 10)

	assert.Len(t, s.Body["playerHand"].([]any), 3)
	assert.Len(t, s.Body["bankerHand"].([]any), 2)
	assert.Equal(t, "banker", result(s)["winner"])
}

func TestBankerThirdCardDependsOnPlayerThird(t *testing.T) {
	// Player 2+3=5 draws 6H (third card 6, total 1).
	// Banker 2+4=6 draws against a player third of 6: 2D for 8.
	s := pinned([]string{"p1"}, "2H", "3D", "2S", "4C", "6H", "2D")
	s = bet(t, s, "p1", "banker", 10)

	assert.Len(t, s.Body["bankerHand"].([]any), 3)
	r := result(s)
	assert.Equal(t, "banker", r["winner"])
	assert.Equal(t, float64(8), r["bankerTotal"])
}

func TestInvalidBetTargetRejected(t *testing.T) {
	s := pinned([]string{"p1"}, "4H", "2S", "5D", "2C")
	_, err := Definition().Strategies["placeBet"].Execute(&game.Context{
		State:    s.Clone(),
		PlayerID: "p1",
		Payload:  json.RawMessage(`{"on":"dealer","amount":10}`),
	})
	require.Error(t, err)
	assert.Equal(t, network.CodeInvalidMove, network.CodeOf(err))
}

func TestDealWaitsForAllBets(t *testing.T) {
	s := pinned([]string{"p1", "p2"}, "4H", "4D", "5S", "3C")
	s = bet(t, s, "p1", "player", 10)
	assert.Equal(t, "betting", s.Phase)
	assert.Empty(t, s.Body["playerHand"].([]any))

	s = bet(t, s, "p2", "banker", 10)
	assert.Equal(t, "voting", s.Phase)
	assert.True(t, s.IsComplete)
}
