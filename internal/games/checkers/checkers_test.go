package checkers

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/TheZedxD/HomeGameServer-sub001/internal/game"
	"github.com/TheZedxD/HomeGameServer-sub001/internal/network"
)

type pair struct{ ids []string }

func (p *pair) Has(id string) bool {
	for _, x := range p.ids {
		if x == id {
			return true
		}
	}
	return false
}
func (p *pair) DisplayName(id string) string { return id }
func (p *pair) IDs() []string                { return p.ids }
func (p *pair) Count() int                   { return len(p.ids) }

func newGame(t *testing.T) (*game.Bus, *game.StateManager) {
	t.Helper()
	players := &pair{ids: []string{"host", "guest"}}
	def := Definition()
	states := game.NewStateManager()
	states.Init(def.Factory(players, game.NewRNGFromSeed(3)))
	bus := game.NewBus(def, states, players, game.NewRNGFromSeed(3),
		5*time.Millisecond, 64, zap.NewNop())
	return bus, states
}

func move(t *testing.T, bus *game.Bus, player string, from [2]int, steps ...[2]int) (*game.State, error) {
	t.Helper()
	stepJSON := ""
	for i, s := range steps {
		if i > 0 {
			stepJSON += ","
		}
		stepJSON += fmt.Sprintf(`{"row":%d,"col":%d}`, s[0], s[1])
	}
	payload := fmt.Sprintf(`{"from":{"row":%d,"col":%d},"steps":[%s]}`,
		from[0], from[1], stepJSON)
	return bus.Submit(game.Descriptor{
		Type:     "movePiece",
		PlayerID: player,
		Payload:  json.RawMessage(payload),
	})
}

func cell(s *game.State, row, col int) any {
	return s.Body["board"].([]any)[row].([]any)[col]
}

func TestFactoryAssignsColors(t *testing.T) {
	_, states := newGame(t)
	s := states.Current()

	assert.Equal(t, "red", s.Players["host"]["color"])
	assert.Equal(t, "black", s.Players["guest"]["color"])
	assert.Equal(t, "host", s.CurrentPlayerID)
	assert.Equal(t, redMan, cell(s, 5, 0))
	assert.Equal(t, blackMan, cell(s, 2, 3))
}

func TestForcedCaptureSequence(t *testing.T) {
	bus, _ := newGame(t)

	_, err := move(t, bus, "host", [2]int{5, 0}, [2]int{4, 1})
	require.NoError(t, err)
	_, err = move(t, bus, "guest", [2]int{2, 3}, [2]int{3, 2})
	require.NoError(t, err)

	final, err := move(t, bus, "host", [2]int{4, 1}, [2]int{2, 3})
	require.NoError(t, err)

	assert.Nil(t, cell(final, 3, 2))
	assert.Equal(t, redMan, cell(final, 2, 3))
	assert.Nil(t, cell(final, 4, 1))
	assert.Equal(t, "guest", final.CurrentPlayerID)
}

func TestNonCaptureRejectedWhenCaptureAvailable(t *testing.T) {
	bus, _ := newGame(t)

	_, err := move(t, bus, "host", [2]int{5, 0}, [2]int{4, 1})
	require.NoError(t, err)
	_, err = move(t, bus, "guest", [2]int{2, 3}, [2]int{3, 2})
	require.NoError(t, err)

	// Red has a jump over (3,2); a quiet move elsewhere is illegal.
	_, err = move(t, bus, "host", [2]int{5, 4}, [2]int{4, 5})
	require.Error(t, err)
	assert.Equal(t, network.CodeInvalidMove, network.CodeOf(err))
}

func TestOutOfTurnRejected(t *testing.T) {
	bus, _ := newGame(t)
	_, err := move(t, bus, "guest", [2]int{2, 1}, [2]int{3, 0})
	require.Error(t, err)
	assert.Equal(t, network.CodeNotYourTurn, network.CodeOf(err))
}

func TestCannotMoveOpponentPiece(t *testing.T) {
	bus, _ := newGame(t)
	_, err := move(t, bus, "host", [2]int{2, 1}, [2]int{3, 0})
	require.Error(t, err)
	assert.Equal(t, network.CodeInvalidMove, network.CodeOf(err))
}

func TestWrongDirectionRejected(t *testing.T) {
	bus, _ := newGame(t)
	_, err := move(t, bus, "host", [2]int{5, 0}, [2]int{4, 1})
	require.NoError(t, err)
	_, err = move(t, bus, "guest", [2]int{2, 1}, [2]int{3, 0})
	require.NoError(t, err)

	// Men cannot move backwards.
	_, err = move(t, bus, "host", [2]int{4, 1}, [2]int{5, 0})
	require.Error(t, err)
	assert.Equal(t, network.CodeInvalidMove, network.CodeOf(err))
}

func TestPromotionOnBackRank(t *testing.T) {
	b := &boardGrid{}
	b[1][2] = redMan
	b[7][0] = blackMan // black still has material

	captured, err := b.applyMove(square{1, 2}, []square{{0, 1}}, false)
	require.NoError(t, err)
	assert.Equal(t, 0, captured)
	assert.Equal(t, redKing, b[0][1])
}

func TestMultiJumpCapturesAll(t *testing.T) {
	b := &boardGrid{}
	b[5][0] = redMan
	b[4][1] = blackMan
	b[2][1] = blackMan
	b[7][7] = blackMan

	captured, err := b.applyMove(square{5, 0}, []square{{3, 2}, {1, 0}}, true)
	require.NoError(t, err)
	assert.Equal(t, 2, captured)
	assert.Equal(t, "", b[4][1])
	assert.Equal(t, "", b[2][1])
	assert.Equal(t, redMan, b[1][0])
}

func TestIncompleteJumpSequenceRejected(t *testing.T) {
	b := &boardGrid{}
	b[5][0] = redMan
	b[4][1] = blackMan
	b[2][1] = blackMan

	_, err := b.applyMove(square{5, 0}, []square{{3, 2}}, true)
	require.Error(t, err)
	assert.Equal(t, network.CodeInvalidMove, network.CodeOf(err))
}

func TestUndoRestoresCapturedPiece(t *testing.T) {
	bus, _ := newGame(t)

	_, err := move(t, bus, "host", [2]int{5, 0}, [2]int{4, 1})
	require.NoError(t, err)
	_, err = move(t, bus, "guest", [2]int{2, 3}, [2]int{3, 2})
	require.NoError(t, err)
	_, err = move(t, bus, "host", [2]int{4, 1}, [2]int{2, 3})
	require.NoError(t, err)

	restored, err := bus.UndoLast("host")
	require.NoError(t, err)
	assert.Equal(t, blackMan, cell(restored, 3, 2))
	assert.Equal(t, redMan, cell(restored, 4, 1))
	assert.Equal(t, "host", restored.CurrentPlayerID)
}

func TestSeriesWinStartsNextRound(t *testing.T) {
	_, states := newGame(t)
	s := states.Current().Clone()

	// Reduce to a single black piece red can take.
	s.Body["board"] = (&boardGrid{}).toBody()
	board := readBoard(s.Body["board"].([]any))
	board[5][0] = redMan
	board[4][1] = blackMan
	s.Body["board"] = board.toBody()

	winRound(s, "host")
	// One win is not the series; a fresh board begins round two.
	assert.False(t, s.IsComplete)
	assert.Equal(t, float64(2), s.Body["round"])
	assert.Equal(t, float64(1), s.Body["seriesWins"].(map[string]any)["host"])
	assert.Equal(t, blackMan, cell(s, 2, 3))

	winRound(s, "host")
	assert.True(t, s.IsComplete)
	assert.Equal(t, "host", s.Body["seriesWinner"])
}
