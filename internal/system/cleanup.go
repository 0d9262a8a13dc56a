package system

import (
	"time"

	"github.com/l1jgo/workbench/internal/core/ecs"
	coresys "github.com/l1jgo/workbench/internal/core/system"
)

// CleanupSystem flushes the deferred entity destruction queue at tick end.
// Phase 4 (Cleanup).
type CleanupSystem struct{}

func NewCleanupSystem() *CleanupSystem { return &CleanupSystem{} }

func (s *CleanupSystem) Phase() coresys.Phase { return coresys.PhaseCleanup }

func (s *CleanupSystem) Update(w *ecs.World, _ time.Duration) {
	w.FlushDestroyQueue()
}
