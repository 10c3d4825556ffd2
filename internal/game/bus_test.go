package game

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/TheZedxD/HomeGameServer-sub001/internal/network"
)

type fakePlayers struct{ ids []string }

func (f *fakePlayers) Has(id string) bool {
	for _, p := range f.ids {
		if p == id {
			return true
		}
	}
	return false
}
func (f *fakePlayers) DisplayName(id string) string { return "name-" + id }
func (f *fakePlayers) IDs() []string                { return f.ids }
func (f *fakePlayers) Count() int                   { return len(f.ids) }

// counterDef is a minimal game: "incr" bumps a counter, "slow" burns the
// execution budget.
func counterDef(delay time.Duration) *Definition {
	return &Definition{
		ID: "counter",
		Factory: func(players PlayerView, rng *RNG) *State {
			s := NewState()
			s.PlayerOrder = players.IDs()
			s.Phase = "playing"
			s.Body["count"] = float64(0)
			return s
		},
		Strategies: map[string]Strategy{
			"incr": StrategyFunc(func(ctx *Context) (*Outcome, error) {
				s := ctx.State
				prev := s.Clone()
				s.Body["count"] = s.Body["count"].(float64) + 1
				return &Outcome{
					Apply: func(_ *State) *State { return s },
					Undo:  func() *State { return prev },
				}, nil
			}),
			"reject": StrategyFunc(func(ctx *Context) (*Outcome, error) {
				return nil, network.NewError(network.CodeNotYourTurn, "wait")
			}),
			"slow": StrategyFunc(func(ctx *Context) (*Outcome, error) {
				time.Sleep(delay)
				s := ctx.State
				prev := s.Clone()
				return &Outcome{
					Apply: func(_ *State) *State { return s },
					Undo:  func() *State { return prev },
				}, nil
			}),
		},
	}
}

func newTestBus(t *testing.T, delay time.Duration, journalSize int) (*Bus, *StateManager) {
	t.Helper()
	players := &fakePlayers{ids: []string{"p1", "p2"}}
	def := counterDef(delay)
	states := NewStateManager()
	states.Init(def.Factory(players, NewRNGFromSeed(1)))
	bus := NewBus(def, states, players, NewRNGFromSeed(1),
		5*time.Millisecond, journalSize, zap.NewNop())
	return bus, states
}

func TestSubmitIncrementsVersionByOne(t *testing.T) {
	bus, states := newTestBus(t, 0, 64)
	before := states.Current().Version

	next, err := bus.Submit(Descriptor{Type: "incr", PlayerID: "p1"})
	require.NoError(t, err)
	assert.Equal(t, before+1, next.Version)
	assert.Equal(t, float64(1), next.Body["count"])
}

func TestUndoRestoresStateWithVersionPlusTwo(t *testing.T) {
	bus, states := newTestBus(t, 0, 64)
	preVersion := states.Current().Version
	preBody, err := json.Marshal(states.Current().ToMap()["body"])
	require.NoError(t, err)

	_, err = bus.Submit(Descriptor{Type: "incr", PlayerID: "p1"})
	require.NoError(t, err)

	restored, err := bus.UndoLast("p1")
	require.NoError(t, err)

	assert.Equal(t, preVersion+2, restored.Version)
	postBody, err := json.Marshal(restored.ToMap()["body"])
	require.NoError(t, err)
	assert.JSONEq(t, string(preBody), string(postBody))
}

func TestUndoByOtherPlayerForbidden(t *testing.T) {
	bus, _ := newTestBus(t, 0, 64)
	_, err := bus.Submit(Descriptor{Type: "incr", PlayerID: "p1"})
	require.NoError(t, err)

	_, err = bus.UndoLast("p2")
	require.Error(t, err)
	assert.Equal(t, network.CodeUndoForbidden, network.CodeOf(err))
	assert.Equal(t, 1, bus.JournalLen())
}

func TestUndoEmptyJournalForbidden(t *testing.T) {
	bus, _ := newTestBus(t, 0, 64)
	_, err := bus.UndoLast("p1")
	require.Error(t, err)
	assert.Equal(t, network.CodeUndoForbidden, network.CodeOf(err))
}

func TestUnknownCommand(t *testing.T) {
	bus, _ := newTestBus(t, 0, 64)
	_, err := bus.Submit(Descriptor{Type: "nope", PlayerID: "p1"})
	require.Error(t, err)
	assert.Equal(t, network.CodeUnknownCommand, network.CodeOf(err))
}

func TestUnknownPlayerRejected(t *testing.T) {
	bus, states := newTestBus(t, 0, 64)
	before := states.Current().Version

	_, err := bus.Submit(Descriptor{Type: "incr", PlayerID: "intruder"})
	require.Error(t, err)
	assert.Equal(t, network.CodeValidationError, network.CodeOf(err))
	assert.Equal(t, before, states.Current().Version)
}

func TestDomainErrorLeavesNoTrace(t *testing.T) {
	bus, states := newTestBus(t, 0, 64)
	before := states.Current().Version

	_, err := bus.Submit(Descriptor{Type: "reject", PlayerID: "p1"})
	require.Error(t, err)
	assert.Equal(t, network.CodeNotYourTurn, network.CodeOf(err))
	assert.Equal(t, before, states.Current().Version)
	assert.Equal(t, 0, bus.JournalLen())
}

func TestCommandTimeout(t *testing.T) {
	bus, states := newTestBus(t, 20*time.Millisecond, 64)
	before := states.Current().Version

	_, err := bus.Submit(Descriptor{Type: "slow", PlayerID: "p1"})
	require.Error(t, err)
	assert.Equal(t, network.CodeCommandTimeout, network.CodeOf(err))
	assert.Equal(t, before, states.Current().Version)
}

func TestJournalEvictsOldest(t *testing.T) {
	bus, _ := newTestBus(t, 0, 3)
	for i := 0; i < 5; i++ {
		_, err := bus.Submit(Descriptor{Type: "incr", PlayerID: "p1"})
		require.NoError(t, err)
	}
	assert.Equal(t, 3, bus.JournalLen())
}

func TestStatesDoNotAliasAcrossVersions(t *testing.T) {
	bus, states := newTestBus(t, 0, 64)

	first, err := bus.Submit(Descriptor{Type: "incr", PlayerID: "p1"})
	require.NoError(t, err)
	countAfterFirst := first.Body["count"].(float64)

	_, err = bus.Submit(Descriptor{Type: "incr", PlayerID: "p1"})
	require.NoError(t, err)

	// The retained previous version must not see the newer mutation.
	assert.Equal(t, countAfterFirst, states.Previous().Body["count"])
}

func TestCommandExecutedObserver(t *testing.T) {
	bus, _ := newTestBus(t, 0, 64)
	var seen []Executed
	cancel := bus.Subscribe(func(e Executed) { seen = append(seen, e) })
	defer cancel()

	_, err := bus.Submit(Descriptor{Type: "incr", PlayerID: "p1"})
	require.NoError(t, err)
	require.Len(t, seen, 1)
	assert.Equal(t, "incr", seen[0].Descriptor.Type)
	assert.Equal(t, uint64(2), seen[0].Version)
}

func TestDeterministicRNGReproduces(t *testing.T) {
	a := NewRNG("ABC123", time.Unix(1000, 0))
	b := NewRNG("ABC123", time.Unix(1000, 0))
	c := NewRNG("XYZ789", time.Unix(1000, 0))

	same, diff := true, true
	for i := 0; i < 32; i++ {
		x, y, z := a.Intn(1000), b.Intn(1000), c.Intn(1000)
		same = same && x == y
		diff = diff && x == z
	}
	assert.True(t, same)
	assert.False(t, diff)
}
