package system_test

import (
	"testing"
	"time"

	"github.com/l1jgo/workbench/internal/component"
	"github.com/l1jgo/workbench/internal/core/ecs"
	coresys "github.com/l1jgo/workbench/internal/core/system"
	"github.com/l1jgo/workbench/internal/system"
)

func newWorld(t *testing.T) *ecs.World {
	t.Helper()
	reg := ecs.NewRegistry()
	component.RegisterAll(reg)
	return ecs.NewWorld(reg)
}

func TestMotionIntegratesVelocity(t *testing.T) {
	w := newWorld(t)
	mover := w.CreateEntity()
	still := w.CreateEntity()
	for _, err := range []error{
		ecs.Set(w, mover, component.Position{X: 1, Y: 1}),
		ecs.Set(w, mover, component.Velocity{X: 2, Y: -4}),
		ecs.Set(w, still, component.Position{X: 3}),
	} {
		if err != nil {
			t.Fatal(err)
		}
	}

	system.NewMotionSystem().Update(w, 500*time.Millisecond)

	p, _ := ecs.Get[component.Position](w, mover)
	if p.X != 2 || p.Y != -1 {
		t.Errorf("mover = %+v", *p)
	}
	q, _ := ecs.Get[component.Position](w, still)
	if q.X != 3 || q.Y != 0 {
		t.Errorf("still = %+v", *q)
	}
}

func TestRegenAccumulates(t *testing.T) {
	w := newWorld(t)
	e := w.CreateEntity()
	if err := ecs.Set(w, e, component.Health{Current: 5, Max: 7}); err != nil {
		t.Fatal(err)
	}
	s := system.NewRegenSystem(time.Second)
	s.Update(w, 600*time.Millisecond)
	h, _ := ecs.Get[component.Health](w, e)
	if h.Current != 5 {
		t.Fatalf("regen before one interval: %d", h.Current)
	}
	s.Update(w, 600*time.Millisecond)
	if h.Current != 6 {
		t.Fatalf("current = %d, want 6", h.Current)
	}
	s.Update(w, 10*time.Second)
	if h.Current != 7 {
		t.Errorf("current = %d, want capped at 7", h.Current)
	}
}

func TestCleanupFlushesQueue(t *testing.T) {
	w := newWorld(t)
	e := w.CreateEntity()
	w.MarkForDestruction(e)
	r := coresys.NewRunner()
	r.Register(system.NewCleanupSystem())
	if !w.Exists(e) {
		t.Fatal("queued entity destroyed early")
	}
	r.Tick(w, time.Millisecond)
	if w.Exists(e) {
		t.Error("queued entity survived cleanup")
	}
}
