package scripting

import (
	"time"

	"github.com/l1jgo/workbench/internal/core/ecs"
	"github.com/l1jgo/workbench/internal/core/event"
	coresys "github.com/l1jgo/workbench/internal/core/system"
	"go.uber.org/zap"
)

// System runs the engine's Lua systems as one game system. Phase 2 (Update).
type System struct {
	engine *Engine
}

func NewSystem(e *Engine) *System { return &System{engine: e} }

func (s *System) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *System) Update(w *ecs.World, dt time.Duration) {
	s.engine.Run(w, dt)
}

// ReloadHook returns an enter-play hook that reloads scripts when the
// watcher saw a change. A nil watcher disables reloading.
func (e *Engine) ReloadHook(w *Watcher, bus *event.Bus) func() error {
	return func() error {
		if w == nil || !w.TakeDirty() {
			return nil
		}
		files, took, err := e.Reload()
		if err != nil {
			// Keep the flag so the next attempt retries.
			w.MarkDirty()
			return err
		}
		e.log.Info("scripts reloaded", zap.Int("files", files), zap.Duration("took", took))
		if bus != nil {
			event.Emit(bus, event.ScriptsReloaded{Files: files, Took: took})
		}
		return nil
	}
}
