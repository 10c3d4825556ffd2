// Package clock implements the fixed-timestep tick scheduler that drives
// every room, plus its duration telemetry.
package clock

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Ticker is a room as seen by the scheduler. Tick and Snapshot are invoked
// from the scheduler goroutine; implementations serialize against their own
// command processing.
type Ticker interface {
	RoomCode() string
	Tick(tick uint64, fixedDt time.Duration)
	Snapshot(tick uint64)
}

// Options configures a Scheduler.
type Options struct {
	TickInterval     time.Duration
	SnapshotInterval time.Duration
	MaxAccumulated   time.Duration
	WarningThreshold time.Duration
	TelemetryWindow  int
}

// Scheduler is the single logical clock for the process. It wakes at the
// tick interval, drains a delta accumulator into zero or more fixed-dt
// ticks, and fans each tick out to every registered room. A panicking room
// never halts the scheduler or affects other rooms.
type Scheduler struct {
	opts   Options
	logger *zap.Logger

	mu    sync.Mutex
	rooms map[string]Ticker

	currentTick  atomic.Uint64
	skippedTicks atomic.Uint64
	slowTicks    atomic.Uint64
	paused       atomic.Bool
	running      atomic.Bool
	stopChan     chan struct{}

	accumulator   time.Duration
	lastWake      time.Time
	sinceSnapshot time.Duration

	telemetry *telemetry

	obsMu       sync.Mutex
	onTickError []func(roomCode string, tick uint64, recovered any)
	onSlowTick  []func(tick uint64, duration time.Duration)
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(opts Options, logger *zap.Logger) *Scheduler {
	if opts.TelemetryWindow <= 0 {
		opts.TelemetryWindow = 1000
	}
	return &Scheduler{
		opts:      opts,
		logger:    logger,
		rooms:     make(map[string]Ticker),
		stopChan:  make(chan struct{}),
		telemetry: newTelemetry(opts.TelemetryWindow),
	}
}

// Start launches the scheduler loop. Subsequent calls are no-ops.
func (s *Scheduler) Start() {
	if s.running.Swap(true) {
		return
	}
	s.lastWake = time.Now()
	go s.run()
	s.logger.Info("scheduler started",
		zap.Duration("tickInterval", s.opts.TickInterval),
		zap.Duration("snapshotInterval", s.opts.SnapshotInterval))
}

// Stop halts the scheduler loop. Subsequent calls are no-ops.
func (s *Scheduler) Stop() {
	if !s.running.Swap(false) {
		return
	}
	close(s.stopChan)
	s.logger.Info("scheduler stopped", zap.Uint64("ticks", s.currentTick.Load()))
}

// Pause halts tick increments; Resume continues without a jump because the
// accumulator is discarded on resume.
func (s *Scheduler) Pause() { s.paused.Store(true) }

// Resume restarts tick increments after a Pause.
func (s *Scheduler) Resume() {
	s.mu.Lock()
	s.accumulator = 0
	s.lastWake = time.Now()
	s.mu.Unlock()
	s.paused.Store(false)
}

// RegisterRoom adds a room; it first receives ticks at the next tick
// boundary. Safe from any goroutine.
func (s *Scheduler) RegisterRoom(r Ticker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[r.RoomCode()] = r
}

// UnregisterRoom removes a room. Safe from any goroutine.
func (s *Scheduler) UnregisterRoom(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, code)
}

// CurrentTick returns the last emitted tick number.
func (s *Scheduler) CurrentTick() uint64 { return s.currentTick.Load() }

// OnTickError registers an observer for recovered room tick panics.
func (s *Scheduler) OnTickError(fn func(roomCode string, tick uint64, recovered any)) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	s.onTickError = append(s.onTickError, fn)
}

// OnSlowTick registers an observer for wake durations over the warning
// threshold.
func (s *Scheduler) OnSlowTick(fn func(tick uint64, duration time.Duration)) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	s.onSlowTick = append(s.onSlowTick, fn)
}

func (s *Scheduler) run() {
	ticker := time.NewTicker(s.opts.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case now := <-ticker.C:
			s.wake(now)
		}
	}
}

// wake is one scheduler wake-up: accumulate elapsed wall time, clamp,
// drain whole ticks, and emit snapshots on their own wall-time cadence.
func (s *Scheduler) wake(now time.Time) {
	if s.paused.Load() {
		s.mu.Lock()
		s.lastWake = now
		s.mu.Unlock()
		return
	}

	started := time.Now()

	s.mu.Lock()
	delta := now.Sub(s.lastWake)
	s.lastWake = now
	s.accumulator += delta
	if s.accumulator > s.opts.MaxAccumulated {
		// Excess time is dropped, not simulated; count what was lost.
		excess := s.accumulator - s.opts.MaxAccumulated
		s.skippedTicks.Add(uint64(excess / s.opts.TickInterval))
		s.accumulator = s.opts.MaxAccumulated
	}

	var ticks []uint64
	for s.accumulator >= s.opts.TickInterval {
		s.accumulator -= s.opts.TickInterval
		ticks = append(ticks, s.currentTick.Add(1))
	}

	s.sinceSnapshot += delta
	snapshotDue := s.sinceSnapshot >= s.opts.SnapshotInterval
	if snapshotDue {
		s.sinceSnapshot = 0
	}

	rooms := make([]Ticker, 0, len(s.rooms))
	for _, r := range s.rooms {
		rooms = append(rooms, r)
	}
	s.mu.Unlock()

	for _, tick := range ticks {
		for _, room := range rooms {
			s.dispatchTick(room, tick)
		}
	}
	if snapshotDue {
		tick := s.currentTick.Load()
		for _, room := range rooms {
			s.dispatchSnapshot(room, tick)
		}
	}

	duration := time.Since(started)
	s.telemetry.record(duration)
	if duration > s.opts.WarningThreshold {
		s.slowTicks.Add(1)
		tick := s.currentTick.Load()
		s.logger.Warn("slow tick",
			zap.Uint64("tick", tick),
			zap.Duration("duration", duration))
		s.obsMu.Lock()
		obs := append([]func(uint64, time.Duration)(nil), s.onSlowTick...)
		s.obsMu.Unlock()
		for _, fn := range obs {
			fn(tick, duration)
		}
	}
}

// dispatchTick runs one room tick, confining any panic to that room.
func (s *Scheduler) dispatchTick(room Ticker, tick uint64) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("room tick panicked",
				zap.String("room", room.RoomCode()),
				zap.Uint64("tick", tick),
				zap.Any("recovered", r))
			s.obsMu.Lock()
			obs := append([]func(string, uint64, any)(nil), s.onTickError...)
			s.obsMu.Unlock()
			for _, fn := range obs {
				fn(room.RoomCode(), tick, r)
			}
		}
	}()
	room.Tick(tick, s.opts.TickInterval)
}

func (s *Scheduler) dispatchSnapshot(room Ticker, tick uint64) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("room snapshot panicked",
				zap.String("room", room.RoomCode()),
				zap.Uint64("tick", tick),
				zap.Any("recovered", r))
		}
	}()
	room.Snapshot(tick)
}

// Stats reports scheduler counters and the rolling duration distribution.
func (s *Scheduler) Stats() Stats {
	st := s.telemetry.stats()
	st.CurrentTick = s.currentTick.Load()
	st.SkippedTicks = s.skippedTicks.Load()
	st.SlowTicks = s.slowTicks.Load()
	return st
}
