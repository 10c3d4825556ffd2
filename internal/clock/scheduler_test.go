package clock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRoom struct {
	mu        sync.Mutex
	code      string
	ticks     []uint64
	snapshots []uint64
	panicOn   uint64
}

func (f *fakeRoom) RoomCode() string { return f.code }

func (f *fakeRoom) Tick(tick uint64, fixedDt time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicOn != 0 && tick == f.panicOn {
		panic("room exploded")
	}
	f.ticks = append(f.ticks, tick)
}

func (f *fakeRoom) Snapshot(tick uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots = append(f.snapshots, tick)
}

func (f *fakeRoom) tickCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ticks)
}

func testScheduler() *Scheduler {
	return NewScheduler(Options{
		TickInterval:     10 * time.Millisecond,
		SnapshotInterval: 100 * time.Millisecond,
		MaxAccumulated:   100 * time.Millisecond,
		WarningThreshold: 10 * time.Millisecond,
		TelemetryWindow:  16,
	}, zap.NewNop())
}

func TestWakeDrainsWholeTicks(t *testing.T) {
	s := testScheduler()
	room := &fakeRoom{code: "ROOM01"}
	s.RegisterRoom(room)

	base := time.Now()
	s.lastWake = base
	s.wake(base.Add(35 * time.Millisecond))

	// 35ms at a 10ms interval is three whole ticks with 5ms left over.
	assert.Equal(t, 3, room.tickCount())
	assert.Equal(t, uint64(3), s.CurrentTick())
	assert.Equal(t, 5*time.Millisecond, s.accumulator)
}

func TestTickNumbersAreMonotonic(t *testing.T) {
	s := testScheduler()
	room := &fakeRoom{code: "ROOM01"}
	s.RegisterRoom(room)

	base := time.Now()
	s.lastWake = base
	for i := 1; i <= 10; i++ {
		s.wake(base.Add(time.Duration(i) * 10 * time.Millisecond))
	}

	require.Equal(t, 10, room.tickCount())
	for i := 1; i < len(room.ticks); i++ {
		assert.Greater(t, room.ticks[i], room.ticks[i-1])
	}
}

func TestAccumulatorClampCountsSkippedTicks(t *testing.T) {
	s := testScheduler()
	room := &fakeRoom{code: "ROOM01"}
	s.RegisterRoom(room)

	base := time.Now()
	s.lastWake = base
	// A 500ms stall: only maxAccumulated/interval = 10 ticks may run.
	s.wake(base.Add(500 * time.Millisecond))

	assert.Equal(t, 10, room.tickCount())
	assert.Equal(t, uint64(40), s.Stats().SkippedTicks)
}

func TestPanickingRoomDoesNotAffectOthers(t *testing.T) {
	s := testScheduler()
	bad := &fakeRoom{code: "BADBAD", panicOn: 1}
	good := &fakeRoom{code: "GOODGD"}
	s.RegisterRoom(bad)
	s.RegisterRoom(good)

	var failures []string
	s.OnTickError(func(code string, _ uint64, _ any) {
		failures = append(failures, code)
	})

	base := time.Now()
	s.lastWake = base
	s.wake(base.Add(20 * time.Millisecond))

	assert.Equal(t, 2, good.tickCount())
	assert.Equal(t, []string{"BADBAD"}, failures)
	assert.Equal(t, uint64(2), s.CurrentTick())
}

func TestSnapshotCadence(t *testing.T) {
	s := testScheduler()
	room := &fakeRoom{code: "ROOM01"}
	s.RegisterRoom(room)

	base := time.Now()
	s.lastWake = base
	for i := 1; i <= 10; i++ {
		s.wake(base.Add(time.Duration(i) * 10 * time.Millisecond))
	}

	// 100ms of wall time at a 100ms snapshot interval: exactly one.
	assert.Len(t, room.snapshots, 1)
}

func TestPauseHaltsTicksAndResumesWithoutJump(t *testing.T) {
	s := testScheduler()
	room := &fakeRoom{code: "ROOM01"}
	s.RegisterRoom(room)

	base := time.Now()
	s.lastWake = base
	s.wake(base.Add(10 * time.Millisecond))
	require.Equal(t, uint64(1), s.CurrentTick())

	s.Pause()
	s.wake(base.Add(300 * time.Millisecond))
	assert.Equal(t, uint64(1), s.CurrentTick())

	s.Resume()
	s.mu.Lock()
	s.lastWake = base.Add(300 * time.Millisecond)
	s.mu.Unlock()
	s.wake(base.Add(310 * time.Millisecond))
	assert.Equal(t, uint64(2), s.CurrentTick())
}

func TestUnregisteredRoomStopsTicking(t *testing.T) {
	s := testScheduler()
	room := &fakeRoom{code: "ROOM01"}
	s.RegisterRoom(room)

	base := time.Now()
	s.lastWake = base
	s.wake(base.Add(10 * time.Millisecond))
	s.UnregisterRoom("ROOM01")
	s.wake(base.Add(20 * time.Millisecond))

	assert.Equal(t, 1, room.tickCount())
}

func TestTelemetryPercentiles(t *testing.T) {
	tel := newTelemetry(100)
	for i := 1; i <= 100; i++ {
		tel.record(time.Duration(i) * time.Millisecond)
	}

	st := tel.stats()
	assert.Equal(t, 100, st.Samples)
	assert.Equal(t, 1*time.Millisecond, st.Min)
	assert.Equal(t, 100*time.Millisecond, st.Max)
	assert.Equal(t, 50*time.Millisecond, st.P50)
	assert.Equal(t, 95*time.Millisecond, st.P95)
	assert.Equal(t, 99*time.Millisecond, st.P99)
}

func TestTelemetryWindowWraps(t *testing.T) {
	tel := newTelemetry(4)
	for i := 1; i <= 10; i++ {
		tel.record(time.Duration(i) * time.Millisecond)
	}
	st := tel.stats()
	assert.Equal(t, 4, st.Samples)
	assert.Equal(t, 7*time.Millisecond, st.Min)
	assert.Equal(t, 10*time.Millisecond, st.Max)
}
