// Package engine runs the trading simulation: the calendar, the day
// scheduler, player actions and the wiring between subsystems.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// SpeedLevels are the accepted simulation speeds. Zero pauses the game.
var SpeedLevels = []int{0, 1, 2, 4, 8}

// DefaultFrameInterval is how often Run samples the wall clock.
const DefaultFrameInterval = 50 * time.Millisecond

// Engine converts wall-clock time into simulated days. It owns the mutex
// that guards the simulation; every reader and writer goes through it.
type Engine struct {
	mu          sync.Mutex
	sim         *Simulation
	speed       int
	accumulator time.Duration

	DayDuration   time.Duration // wall time of one simulated day at speed 1
	FrameInterval time.Duration

	// OnDay is called after each simulated day, outside the lock.
	OnDay func(DayReport)
}

// NewEngine creates a paused-at-speed-1 engine around sim.
func NewEngine(sim *Simulation, dayDuration time.Duration) *Engine {
	if dayDuration <= 0 {
		dayDuration = time.Second
	}
	return &Engine{
		sim:           sim,
		speed:         1,
		DayDuration:   dayDuration,
		FrameInterval: DefaultFrameInterval,
	}
}

// ValidSpeed reports whether n is one of SpeedLevels.
func ValidSpeed(n int) bool {
	for _, s := range SpeedLevels {
		if s == n {
			return true
		}
	}
	return false
}

// SetSpeed changes the speed. Values outside SpeedLevels are rejected and
// leave the speed unchanged.
func (e *Engine) SetSpeed(n int) bool {
	if !ValidSpeed(n) {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.speed != n {
		slog.Info("simulation speed changed", "from", e.speed, "to", n)
	}
	e.speed = n
	return true
}

// Speed returns the current speed level.
func (e *Engine) Speed() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speed
}

// Advance feeds dt of wall time into the accumulator and runs one
// AdvanceDay for every full day it holds. It returns the number of days run.
func (e *Engine) Advance(dt time.Duration) int {
	if dt <= 0 {
		return 0
	}
	e.mu.Lock()
	if e.speed == 0 {
		e.mu.Unlock()
		return 0
	}
	e.accumulator += dt * time.Duration(e.speed)
	var reports []DayReport
	for e.accumulator >= e.DayDuration {
		e.accumulator -= e.DayDuration
		reports = append(reports, e.sim.AdvanceDay())
	}
	e.mu.Unlock()

	if e.OnDay != nil {
		for _, r := range reports {
			e.OnDay(r)
		}
	}
	return len(reports)
}

// Capture copies the state and the event log under the lock so they can
// be written to disk without holding it.
func (e *Engine) Capture() (*State, []Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, err := e.sim.State.Clone()
	if err != nil {
		return nil, nil, err
	}
	return st, e.sim.RecentEvents(0), nil
}

// Pending returns the wall time accumulated toward the next day.
func (e *Engine) Pending() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.accumulator
}

// Run drives Advance from a frame ticker until ctx is done.
func (e *Engine) Run(ctx context.Context) {
	interval := e.FrameInterval
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("simulation engine started", "day", e.day(), "speed", e.Speed())
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			slog.Info("simulation engine stopped", "day", e.day())
			return
		case now := <-ticker.C:
			e.Advance(now.Sub(last))
			last = now
		}
	}
}

func (e *Engine) day() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sim.State.Day
}

// View runs fn with read access to the simulation.
func (e *Engine) View(fn func(*Simulation)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.sim)
}

// Do runs fn with write access to the simulation.
func (e *Engine) Do(fn func(*Simulation)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.sim)
}
