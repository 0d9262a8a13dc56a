package system

import (
	"time"

	"github.com/l1jgo/workbench/internal/component"
	"github.com/l1jgo/workbench/internal/core/ecs"
	coresys "github.com/l1jgo/workbench/internal/core/system"
)

// RegenSystem restores one point of Health per interval of simulation time,
// never past Max. Phase 3 (PostUpdate).
// The accumulator is not component state, so Stop does not rewind it;
// Reset clears it and runs on entering Play.
type RegenSystem struct {
	interval time.Duration
	acc      time.Duration
}

func NewRegenSystem(interval time.Duration) *RegenSystem {
	if interval <= 0 {
		interval = time.Second
	}
	return &RegenSystem{interval: interval}
}

func (s *RegenSystem) Phase() coresys.Phase { return coresys.PhasePostUpdate }

// Reset clears the accumulator.
func (s *RegenSystem) Reset() error {
	s.acc = 0
	return nil
}

func (s *RegenSystem) Update(w *ecs.World, dt time.Duration) {
	s.acc += dt
	points := int64(s.acc / s.interval)
	if points == 0 {
		return
	}
	s.acc -= time.Duration(points) * s.interval
	ecs.StoreOf[component.Health](w).Each(func(_ ecs.EntityID, h *component.Health) {
		if h.Current >= h.Max {
			return
		}
		h.Current += points
		if h.Current > h.Max {
			h.Current = h.Max
		}
	})
}
