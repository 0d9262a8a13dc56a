package history_test

import (
	"errors"
	"testing"
	"time"

	"github.com/l1jgo/workbench/internal/component"
	"github.com/l1jgo/workbench/internal/core/ecs"
	"github.com/l1jgo/workbench/internal/history"
	"github.com/l1jgo/workbench/internal/snapshot"
	"go.uber.org/zap"
)

// harness records edits to one Position the way the editor does: capture,
// write, capture, push.
type harness struct {
	t     *testing.T
	world *ecs.World
	eng   *snapshot.Engine
	types component.Types
	e     ecs.EntityID
	stack *history.Stack
	now   time.Time
}

func newHarness(t *testing.T, capacity int, window time.Duration) *harness {
	t.Helper()
	reg := ecs.NewRegistry()
	h := &harness{
		t:     t,
		types: component.RegisterAll(reg),
		world: ecs.NewWorld(reg),
		now:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	h.eng = snapshot.NewEngine(func() time.Time { return h.now }, zap.NewNop())
	h.e = h.world.CreateEntity()
	if err := h.world.Insert(h.e, h.types.Position, pos(0)); err != nil {
		t.Fatal(err)
	}
	h.stack = history.NewStack(capacity, window, func(s *snapshot.Snapshot) error {
		return h.eng.Restore(h.world, s)
	})
	return h
}

func pos(x float64) ecs.Record {
	return ecs.Record{{Name: "x", Value: ecs.FloatValue(x)}, {Name: "y", Value: ecs.FloatValue(0)}}
}

func (h *harness) edit(x float64, group history.GroupID) history.Outcome {
	h.t.Helper()
	target := snapshot.ComponentTarget(h.e, h.types.Position)
	before, err := h.eng.Capture(h.world, target)
	if err != nil {
		h.t.Fatal(err)
	}
	if err := h.world.Write(h.e, h.types.Position, pos(x)); err != nil {
		h.t.Fatal(err)
	}
	after, err := h.eng.Capture(h.world, target)
	if err != nil {
		h.t.Fatal(err)
	}
	return h.stack.Push(history.Entry{Label: "move", Group: group, Before: before, After: after, Pushed: h.now})
}

func (h *harness) x() float64 {
	h.t.Helper()
	rec, err := h.world.Read(h.e, h.types.Position)
	if err != nil {
		h.t.Fatal(err)
	}
	v, _ := rec.Get("x")
	return v.Float
}

// go test -run ^TestUndoRedoRoundTrip$ ./internal/history -count 1
func TestUndoRedoRoundTrip(t *testing.T) {
	h := newHarness(t, 10, 0)
	for _, x := range []float64{1, 2, 3, 4} {
		if got := h.edit(x, 0); got != history.Appended {
			t.Fatalf("edit(%v) outcome = %v", x, got)
		}
	}
	for i := 4; i > 0; i-- {
		if _, err := h.stack.Undo(); err != nil {
			t.Fatalf("undo %d: %v", i, err)
		}
	}
	if h.x() != 0 {
		t.Errorf("after full undo x = %v, want 0", h.x())
	}
	if _, err := h.stack.Undo(); !errors.Is(err, history.ErrNothingToUndo) {
		t.Errorf("extra undo err = %v", err)
	}
	for i := 0; i < 4; i++ {
		if _, err := h.stack.Redo(); err != nil {
			t.Fatalf("redo %d: %v", i, err)
		}
	}
	if h.x() != 4 {
		t.Errorf("after full redo x = %v, want 4", h.x())
	}
	if _, err := h.stack.Redo(); !errors.Is(err, history.ErrNothingToRedo) {
		t.Errorf("extra redo err = %v", err)
	}
}

func TestPushDiscardsRedoTail(t *testing.T) {
	h := newHarness(t, 10, 0)
	h.edit(1, 0)
	h.edit(2, 0)
	if _, err := h.stack.Undo(); err != nil {
		t.Fatal(err)
	}
	h.edit(7, 0)
	if h.stack.Len() != 2 || h.stack.CanRedo() {
		t.Errorf("len=%d canRedo=%v, want 2 false", h.stack.Len(), h.stack.CanRedo())
	}
	if _, err := h.stack.Undo(); err != nil {
		t.Fatal(err)
	}
	if h.x() != 1 {
		t.Errorf("x = %v, want 1", h.x())
	}
}

func TestNoopIsIgnored(t *testing.T) {
	h := newHarness(t, 10, 0)
	h.edit(3, 0)
	if got := h.edit(3, 0); got != history.Ignored {
		t.Errorf("same-value edit outcome = %v, want ignored", got)
	}
	if h.stack.Len() != 1 {
		t.Errorf("len = %d, want 1", h.stack.Len())
	}
}

func TestGroupCoalescing(t *testing.T) {
	h := newHarness(t, 10, 0)
	h.edit(1, 0)
	for _, x := range []float64{2, 3, 4, 5} {
		h.edit(x, 7)
	}
	if h.stack.Len() != 2 {
		t.Fatalf("len = %d, want 2 (one plain + one merged)", h.stack.Len())
	}
	if _, err := h.stack.Undo(); err != nil {
		t.Fatal(err)
	}
	if h.x() != 1 {
		t.Errorf("undo of merged group left x = %v, want 1", h.x())
	}
	label, ok := h.stack.RedoLabel()
	if !ok || label != "move" {
		t.Errorf("redo label = %q, %v", label, ok)
	}
	if _, err := h.stack.Redo(); err != nil {
		t.Fatal(err)
	}
	if h.x() != 5 {
		t.Errorf("redo of merged group left x = %v, want 5", h.x())
	}
}

func TestGroupCollapsesToNoop(t *testing.T) {
	h := newHarness(t, 10, 0)
	h.edit(1, 3)
	if got := h.edit(0, 3); got != history.Collapsed {
		t.Errorf("returning to the start outcome = %v, want collapsed", got)
	}
	if h.stack.Len() != 0 {
		t.Errorf("len = %d, want 0", h.stack.Len())
	}
}

func TestCoalesceWindow(t *testing.T) {
	h := newHarness(t, 10, 500*time.Millisecond)
	h.edit(1, 9)
	h.now = h.now.Add(200 * time.Millisecond)
	if got := h.edit(2, 9); got != history.Merged {
		t.Errorf("within window outcome = %v", got)
	}
	h.now = h.now.Add(time.Second)
	if got := h.edit(3, 9); got != history.Appended {
		t.Errorf("past window outcome = %v", got)
	}
}

func TestCapacityEvictsOldest(t *testing.T) {
	h := newHarness(t, 3, 0)
	for _, x := range []float64{1, 2, 3, 4, 5} {
		h.edit(x, 0)
	}
	if h.stack.Len() != 3 || h.stack.Cursor() != 3 {
		t.Fatalf("len=%d cursor=%d", h.stack.Len(), h.stack.Cursor())
	}
	for i := 0; i < 3; i++ {
		if _, err := h.stack.Undo(); err != nil {
			t.Fatal(err)
		}
	}
	if h.x() != 2 {
		t.Errorf("oldest reachable state x = %v, want 2", h.x())
	}
	if h.stack.CanUndo() {
		t.Error("evicted steps still undoable")
	}
	entries := h.stack.Entries()
	if len(entries) != 3 {
		t.Fatalf("entries = %d", len(entries))
	}
}

func TestUndoConflictKeepsCursor(t *testing.T) {
	h := newHarness(t, 10, 0)
	h.edit(1, 0)
	h.world.DestroyEntity(h.e)
	_, err := h.stack.Undo()
	if !errors.Is(err, snapshot.ErrRestoreConflict) {
		t.Fatalf("undo err = %v, want restore conflict", err)
	}
	if h.stack.Cursor() != 1 {
		t.Errorf("cursor moved to %d on failed undo", h.stack.Cursor())
	}
}

func TestFailedUndoRollsBackSurvivors(t *testing.T) {
	h := newHarness(t, 10, 0)
	other := h.world.CreateEntity()
	if err := h.world.Insert(other, h.types.Position, pos(0)); err != nil {
		t.Fatal(err)
	}
	capture := func() *snapshot.Snapshot {
		a, err := h.eng.Capture(h.world, snapshot.ComponentTarget(h.e, h.types.Position))
		if err != nil {
			t.Fatal(err)
		}
		b, err := h.eng.Capture(h.world, snapshot.ComponentTarget(other, h.types.Position))
		if err != nil {
			t.Fatal(err)
		}
		return snapshot.Merge(a, b)
	}
	before := capture()
	_ = h.world.Write(h.e, h.types.Position, pos(3))
	_ = h.world.Write(other, h.types.Position, pos(3))
	h.stack.Push(history.Entry{Label: "move both", Before: before, After: capture(), Pushed: h.now})

	h.world.DestroyEntity(h.e)
	if _, err := h.stack.Undo(); !errors.Is(err, snapshot.ErrRestoreConflict) {
		t.Fatalf("undo err = %v, want restore conflict", err)
	}
	rec, _ := h.world.Read(other, h.types.Position)
	if v, _ := rec.Get("x"); v.Float != 3 {
		t.Errorf("surviving entity left at x=%v after failed undo, want 3", v.Float)
	}
	if h.stack.Cursor() != 1 {
		t.Errorf("cursor = %d", h.stack.Cursor())
	}
}

func TestDropTopAndClear(t *testing.T) {
	h := newHarness(t, 10, 0)
	h.edit(1, 0)
	h.edit(2, 0)
	if _, err := h.stack.Undo(); err != nil {
		t.Fatal(err)
	}
	if h.stack.DropTop() {
		t.Error("DropTop succeeded with a redo tail")
	}
	if _, err := h.stack.Redo(); err != nil {
		t.Fatal(err)
	}
	if !h.stack.DropTop() || h.stack.Len() != 1 {
		t.Errorf("DropTop failed, len = %d", h.stack.Len())
	}
	h.stack.Clear()
	if h.stack.Len() != 0 || h.stack.CanUndo() {
		t.Error("Clear left entries behind")
	}
}
