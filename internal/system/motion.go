package system

import (
	"time"

	"github.com/l1jgo/workbench/internal/component"
	"github.com/l1jgo/workbench/internal/core/ecs"
	coresys "github.com/l1jgo/workbench/internal/core/system"
)

// MotionSystem integrates Velocity into Position. Phase 2 (Update).
type MotionSystem struct{}

func NewMotionSystem() *MotionSystem { return &MotionSystem{} }

func (s *MotionSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *MotionSystem) Update(w *ecs.World, dt time.Duration) {
	sec := dt.Seconds()
	ecs.Query2(w, func(_ ecs.EntityID, p *component.Position, v *component.Velocity) {
		p.X += v.X * sec
		p.Y += v.Y * sec
	})
}
