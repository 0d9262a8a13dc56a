package system

import (
	"time"

	"github.com/l1jgo/workbench/internal/core/ecs"
)

// Phase defines execution ordering within a single tick.
type Phase int

const (
	PhaseInput      Phase = iota // 0: drain queued editor commands
	PhasePreUpdate               // 1: process last tick's events
	PhaseUpdate                  // 2: simulation logic
	PhasePostUpdate              // 3: derived state, metrics
	PhaseCleanup                 // 4: destroy queued entities
)

func (p Phase) String() string {
	switch p {
	case PhaseInput:
		return "input"
	case PhasePreUpdate:
		return "pre_update"
	case PhaseUpdate:
		return "update"
	case PhasePostUpdate:
		return "post_update"
	case PhaseCleanup:
		return "cleanup"
	}
	return "phase(?)"
}

// System is the interface every ECS system implements. The world is passed
// on every call; systems must not hold on to it between ticks.
type System interface {
	Phase() Phase
	Update(w *ecs.World, dt time.Duration)
}

// Func adapts a plain function to a System.
type Func struct {
	P  Phase
	Fn func(w *ecs.World, dt time.Duration)
}

func (f Func) Phase() Phase                          { return f.P }
func (f Func) Update(w *ecs.World, dt time.Duration) { f.Fn(w, dt) }
