package snapshot

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/l1jgo/workbench/internal/core/ecs"
	"go.uber.org/zap"
)

// ErrRestoreConflict is returned when a snapshot refers to an entity that no
// longer exists.
var ErrRestoreConflict = errors.New("restore conflict")

// ConflictError lists the captured entities a restore could not reach. The
// rest of the snapshot is still applied.
type ConflictError struct {
	Entities []ecs.EntityID
}

func (e *ConflictError) Error() string {
	ids := make([]string, len(e.Entities))
	for i, id := range e.Entities {
		ids[i] = id.String()
	}
	return fmt.Sprintf("restore conflict: entities no longer exist: %s", strings.Join(ids, ", "))
}

func (e *ConflictError) Unwrap() error { return ErrRestoreConflict }

// Engine captures and restores snapshots. The world is passed to every call;
// the engine holds no reference to it.
type Engine struct {
	now func() time.Time
	log *zap.Logger
}

func NewEngine(now func() time.Time, log *zap.Logger) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{now: now, log: log}
}

// Capture deep-copies the state covered by target.
func (e *Engine) Capture(w *ecs.World, target Target) (*Snapshot, error) {
	s := &Snapshot{ID: uuid.New(), Taken: e.now(), Target: target}
	reg := w.Registry()

	switch target.Kind {
	case TargetComponent:
		rec, err := w.Read(target.Entity, target.Component)
		if err != nil {
			return nil, fmt.Errorf("capture: %w", err)
		}
		s.Entities = []EntityState{{
			Entity: target.Entity,
			Components: []ComponentState{{
				Type:   target.Component,
				Name:   reg.Name(target.Component),
				Record: rec,
			}},
		}}
	case TargetEntity:
		if !w.Exists(target.Entity) {
			return nil, fmt.Errorf("capture entity %s: %w", target.Entity, ecs.ErrNotFound)
		}
		s.Entities = []EntityState{captureEntity(w, target.Entity)}
	case TargetWorld:
		ids := w.Entities()
		s.Entities = make([]EntityState, 0, len(ids))
		for _, id := range ids {
			s.Entities = append(s.Entities, captureEntity(w, id))
		}
	default:
		return nil, fmt.Errorf("capture: unsupported target %s", target.Kind)
	}
	return s, nil
}

func captureEntity(w *ecs.World, id ecs.EntityID) EntityState {
	reg := w.Registry()
	types := w.ListComponents(id)
	es := EntityState{Entity: id, Exact: true, Components: make([]ComponentState, 0, len(types))}
	for _, t := range types {
		rec, err := w.Read(id, t)
		if err != nil {
			// ListComponents just reported t present.
			panic(fmt.Sprintf("snapshot: listed component %s vanished on %s: %v", reg.Name(t), id, err))
		}
		es.Components = append(es.Components, ComponentState{Type: t, Name: reg.Name(t), Record: rec})
	}
	return es
}

// Restore writes a snapshot back into w. Entities that no longer exist are
// collected into a *ConflictError after everything else has been applied.
// A world restore also destroys entities created after the capture.
func (e *Engine) Restore(w *ecs.World, s *Snapshot) error {
	var missing []ecs.EntityID
	for _, es := range s.Entities {
		if !w.Exists(es.Entity) {
			missing = append(missing, es.Entity)
			continue
		}
		if err := restoreEntity(w, es); err != nil {
			return fmt.Errorf("restore %s: %w", s.Target.Kind, err)
		}
	}

	if s.Target.Kind == TargetWorld {
		captured := make(map[ecs.EntityID]struct{}, len(s.Entities))
		for _, es := range s.Entities {
			captured[es.Entity] = struct{}{}
		}
		for _, id := range w.Entities() {
			if _, ok := captured[id]; !ok {
				w.DestroyEntity(id)
			}
		}
	}

	if len(missing) > 0 {
		err := &ConflictError{Entities: missing}
		if e.log != nil {
			e.log.Error("snapshot restore conflict",
				zap.String("snapshot", s.ID.String()),
				zap.Stringer("target", s.Target.Kind),
				zap.Int("missing", len(missing)),
			)
		}
		return err
	}
	return nil
}

func restoreEntity(w *ecs.World, es EntityState) error {
	if es.Exact {
		for _, t := range w.ListComponents(es.Entity) {
			if !hasComponent(es.Components, t) {
				if err := w.Remove(es.Entity, t); err != nil {
					return err
				}
			}
		}
	}
	for _, cs := range es.Components {
		var err error
		if w.Has(es.Entity, cs.Type) {
			err = w.Write(es.Entity, cs.Type, cs.Record)
		} else {
			err = w.Insert(es.Entity, cs.Type, cs.Record)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Build materializes a fresh world from reg holding exactly the snapshot's
// entities, with their original ids. Components are resolved by name so a
// snapshot survives changes in registration order.
func Build(reg *ecs.Registry, s *Snapshot) (*ecs.World, error) {
	w := ecs.NewWorld(reg)
	for _, es := range s.Entities {
		if err := w.Spawn(es.Entity); err != nil {
			return nil, fmt.Errorf("build: %w", err)
		}
		for _, cs := range es.Components {
			ct, ok := reg.Lookup(cs.Name)
			if !ok {
				return nil, fmt.Errorf("build %s: component %q: %w", es.Entity, cs.Name, ecs.ErrNotFound)
			}
			if err := w.Insert(es.Entity, ct.ID, cs.Record); err != nil {
				return nil, fmt.Errorf("build: %w", err)
			}
		}
	}
	return w, nil
}
