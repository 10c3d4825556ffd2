package tictactoe

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
	states.Init(def.Factory(players, game.NewRNGFromSeed(7)))
	bus := game.NewBus(def, states, players, game.NewRNGFromSeed(7),
		5*time.Millisecond, 64, zap.NewNop())
	return bus, states
}

func place(t *testing.T, bus *game.Bus, player string, row, col int) (*game.State, error) {
	t.Helper()
	return bus.Submit(game.Descriptor{
		Type:     "placeMark",
		PlayerID: player,
		Payload:  json.RawMessage(fmt.Sprintf(`{"row":%d,"col":%d}`, row, col)),
	})
}

func cell(s *game.State, row, col int) any {
	return s.Body["board"].([]any)[row].([]any)[col]
}

func TestHostWinsTopRow(t *testing.T) {
	bus, _ := newGame(t)

	moves := []struct {
		player   string
		row, col int
	}{
		{"host", 0, 0}, {"guest", 1, 0}, {"host", 0, 1}, {"guest", 1, 1},
	}
	for _, m := range moves {
		_, err := place(t, bus, m.player, m.row, m.col)
		require.NoError(t, err)
	}

	final, err := place(t, bus, "host", 0, 2)
	require.NoError(t, err)

	assert.True(t, final.IsComplete)
	assert.Equal(t, "host", final.Body["winner"])
	assert.Equal(t, "X", cell(final, 0, 0))
	assert.Equal(t, "X", cell(final, 0, 1))
	assert.Equal(t, "X", cell(final, 0, 2))
}

func TestUndoRestoresBoardAndTurn(t *testing.T) {
	bus, states := newGame(t)
	preVersion := states.Current().Version

	_, err := place(t, bus, "host", 0, 0)
	require.NoError(t, err)

	restored, err := bus.UndoLast("host")
	require.NoError(t, err)

	assert.Nil(t, cell(restored, 0, 0))
	assert.Equal(t, preVersion+2, restored.Version)
	assert.Equal(t, "host", restored.CurrentPlayerID)
}

func TestOutOfTurnRejected(t *testing.T) {
	bus, _ := newGame(t)
	_, err := place(t, bus, "guest", 0, 0)
	require.Error(t, err)
	assert.Equal(t, network.CodeNotYourTurn, network.CodeOf(err))
}

func TestOccupiedCellAlwaysSameError(t *testing.T) {
	bus, states := newGame(t)
	_, err := place(t, bus, "host", 0, 0)
	require.NoError(t, err)

	// Repeated attempts on the occupied cell never change state and
	// always surface the same code.
	for i := 0; i < 3; i++ {
		version := states.Current().Version
		_, err := place(t, bus, "guest", 0, 0)
		require.Error(t, err)
		assert.Equal(t, network.CodeInvalidMove, network.CodeOf(err))
		assert.Equal(t, version, states.Current().Version)
	}
}

func TestOutOfBoundsRejected(t *testing.T) {
	bus, _ := newGame(t)
	_, err := place(t, bus, "host", 3, 0)
	require.Error(t, err)
	assert.Equal(t, network.CodeInvalidMove, network.CodeOf(err))
}

func TestDrawFillsBoard(t *testing.T) {
	bus, _ := newGame(t)

	// X O X / X O O / O X X ends with no three in a row.
	seq := []struct {
		player   string
		row, col int
	}{
		{"host", 0, 0}, {"guest", 0, 1}, {"host", 0, 2},
		{"guest", 1, 1}, {"host", 1, 0}, {"guest", 1, 2},
		{"host", 2, 1}, {"guest", 2, 0}, {"host", 2, 2},
	}
	var final *game.State
	for _, m := range seq {
		s, err := place(t, bus, m.player, m.row, m.col)
		require.NoError(t, err)
		final = s
	}

	assert.True(t, final.IsComplete)
	assert.Nil(t, final.Body["winner"])
}

func TestMoveAfterCompletionRejected(t *testing.T) {
	bus, _ := newGame(t)
	for _, m := range []struct {
		player   string
		row, col int
	}{
		{"host", 0, 0}, {"guest", 1, 0}, {"host", 0, 1}, {"guest", 1, 1}, {"host", 0, 2},
	} {
		_, err := place(t, bus, m.player, m.row, m.col)
		require.NoError(t, err)
	}

	_, err := place(t, bus, "guest", 2, 2)
	require.Error(t, err)
	assert.Equal(t, network.CodeInvalidMove, network.CodeOf(err))
}
