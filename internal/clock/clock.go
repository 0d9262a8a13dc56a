// Package clock provides the virtual simulation time source. It never reads
// the wall clock: callers feed it wall deltas.
package clock

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrInvalidScale = errors.New("invalid time scale")
	ErrClockBusy    = errors.New("clock is running")
	ErrNotPaused    = errors.New("clock is not paused")
)

// State is a copy of the clock's observable state.
type State struct {
	Elapsed time.Duration
	Running bool
	Paused  bool
	Scale   float64
	Frames  uint64
}

// Clock is a pausable, scalable virtual clock. Elapsed time only moves
// forward, except on Reset.
type Clock struct {
	elapsed time.Duration
	running bool
	paused  bool
	scale   float64
	frames  uint64
}

// New creates a stopped clock with the given scale. An invalid scale falls
// back to 1.
func New(scale float64) *Clock {
	if !validScale(scale) {
		scale = 1
	}
	return &Clock{scale: scale}
}

func validScale(f float64) bool {
	return f >= 0 && !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Advance adds wall × scale to elapsed time while running. Non-positive
// deltas are ignored.
func (c *Clock) Advance(wall time.Duration) {
	if !c.running || wall <= 0 {
		return
	}
	d := time.Duration(float64(wall) * c.scale)
	if c.elapsed+d < c.elapsed {
		c.elapsed = math.MaxInt64
	} else {
		c.elapsed += d
	}
	c.frames++
}

// SetScale changes the time scale. The clock is unchanged on error.
func (c *Clock) SetScale(f float64) error {
	if !validScale(f) {
		return fmt.Errorf("set scale %v: %w", f, ErrInvalidScale)
	}
	c.scale = f
	return nil
}

// Reset rewinds elapsed time to zero. Time must be stopped or paused first.
func (c *Clock) Reset() error {
	if c.running {
		return ErrClockBusy
	}
	c.elapsed = 0
	c.frames = 0
	return nil
}

// Start begins advancing from a stopped or paused state.
func (c *Clock) Start() {
	c.running = true
	c.paused = false
}

// Pause freezes elapsed time.
func (c *Clock) Pause() {
	if c.running {
		c.running = false
		c.paused = true
	}
}

// Resume continues after Pause.
func (c *Clock) Resume() {
	if c.paused {
		c.paused = false
		c.running = true
	}
}

// Stop halts the clock. Elapsed time is kept until Reset.
func (c *Clock) Stop() {
	c.running = false
	c.paused = false
}

// Step advances a paused clock by exactly quantum, ignoring scale, and
// leaves it paused.
func (c *Clock) Step(quantum time.Duration) error {
	if !c.paused {
		return ErrNotPaused
	}
	if quantum > 0 {
		c.elapsed += quantum
	}
	c.frames++
	return nil
}

func (c *Clock) Elapsed() time.Duration { return c.elapsed }
func (c *Clock) Running() bool          { return c.running }
func (c *Clock) Paused() bool           { return c.paused }
func (c *Clock) Scale() float64         { return c.scale }

// State returns a copy of the clock state.
func (c *Clock) State() State {
	return State{
		Elapsed: c.elapsed,
		Running: c.running,
		Paused:  c.paused,
		Scale:   c.scale,
		Frames:  c.frames,
	}
}
