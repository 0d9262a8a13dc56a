package scripting_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/l1jgo/workbench/internal/component"
	"github.com/l1jgo/workbench/internal/core/ecs"
	"github.com/l1jgo/workbench/internal/core/event"
	"github.com/l1jgo/workbench/internal/scripting"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newWorld(t *testing.T) (*ecs.World, component.Types) {
	t.Helper()
	reg := ecs.NewRegistry()
	types := component.RegisterAll(reg)
	return ecs.NewWorld(reg), types
}

func newEngine(t *testing.T, src string) *scripting.Engine {
	t.Helper()
	e, err := scripting.NewEngine("", zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(e.Close)
	if src != "" {
		if err := e.LoadString("test", src); err != nil {
			t.Fatal(err)
		}
	}
	return e
}

// go test -run ^TestSystemMovesEntities$ ./internal/scripting -count 1
func TestSystemMovesEntities(t *testing.T) {
	w, types := newWorld(t)
	id := w.CreateEntity()
	if err := ecs.Set(w, id, component.Position{X: 1, Y: 2}); err != nil {
		t.Fatal(err)
	}
	e := newEngine(t, `
system("drift", function(dt)
  world.each("Position", function(id, p)
    world.set(id, "Position", {x = p.x + 10 * dt})
  end)
end)
`)
	if diff := cmp.Diff([]string{"drift"}, e.Systems()); diff != "" {
		t.Fatalf("systems (-want +got):\n%s", diff)
	}
	scripting.NewSystem(e).Update(w, 500*time.Millisecond)

	rec, err := w.Read(id, types.Position)
	if err != nil {
		t.Fatal(err)
	}
	want := ecs.Record{{Name: "x", Value: ecs.FloatValue(6)}, {Name: "y", Value: ecs.FloatValue(2)}}
	if !rec.Equal(want) {
		t.Errorf("position = %s, want %s", rec, want)
	}
}

func TestSpawnAndDestroy(t *testing.T) {
	w, types := newWorld(t)
	e := newEngine(t, `
spawned = nil
system("spawner", function(dt)
  if spawned == nil then
    spawned = world.spawn({Health = {current = 3, max = 9}})
  else
    world.destroy(spawned)
  end
end)
`)
	e.Run(w, time.Millisecond)
	ids := w.Entities()
	if len(ids) != 1 {
		t.Fatalf("entities = %v", ids)
	}
	rec, err := w.Read(ids[0], types.Health)
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := rec.Get("current"); v.Int != 3 {
		t.Errorf("health = %s", rec)
	}

	e.Run(w, time.Millisecond)
	if !w.Exists(ids[0]) {
		t.Fatal("destroy was not deferred")
	}
	w.FlushDestroyQueue()
	if w.Exists(ids[0]) {
		t.Error("entity survived flush")
	}
}

func TestSetReportsMismatch(t *testing.T) {
	w, _ := newWorld(t)
	w.CreateEntity()
	e := newEngine(t, `
result = {}
system("bad_set", function(dt)
  for _, id in ipairs(world.entities()) do
    local ok, msg = world.set(id, "Position", {x = "north"})
    result.ok = ok
    result.msg = msg
    result.missing = world.get(id, "Velocity") == nil
  end
end)
`)
	e.Run(w, time.Millisecond)
	if err := e.LoadString("check", `assert(result.ok == false and result.msg ~= nil and result.missing)`); err != nil {
		t.Error(err)
	}
}

func TestSetRejectsOutOfRangeInteger(t *testing.T) {
	w, types := newWorld(t)
	id := w.CreateEntity()
	if err := ecs.Set(w, id, component.Health{Current: 5, Max: 10}); err != nil {
		t.Fatal(err)
	}
	e := newEngine(t, `
result = {}
system("overflow", function(dt)
  for _, id in ipairs(world.entities()) do
    result.huge = world.set(id, "Health", {current = 1e300})
    result.edge = world.set(id, "Health", {current = 2^63})
  end
end)
`)
	e.Run(w, time.Millisecond)
	if err := e.LoadString("check", `assert(result.huge == false and result.edge == false)`); err != nil {
		t.Error(err)
	}
	rec, err := w.Read(id, types.Health)
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := rec.Get("current"); v.Int != 5 {
		t.Errorf("health = %s, want current 5", rec)
	}
}

func TestScriptErrorsAreLogged(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	e, err := scripting.NewEngine("", zap.New(core))
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()
	if err := e.LoadString("boom", `
ran = false
system("boom", function() error("kaboom") end)
system("after", function() ran = true end)
`); err != nil {
		t.Fatal(err)
	}
	w, _ := newWorld(t)
	e.Run(w, time.Millisecond)
	if logs.FilterMessage("lua system error").Len() != 1 {
		t.Errorf("logged %d errors", logs.Len())
	}
	if err := e.LoadString("check", `assert(ran)`); err != nil {
		t.Error("system after a failing one did not run")
	}
}

func TestWorldOnlyInsideSystems(t *testing.T) {
	e := newEngine(t, "")
	if err := e.LoadString("toplevel", `world.spawn()`); err == nil {
		t.Error("world reachable at load time")
	}
}

func TestReloadFromDir(t *testing.T) {
	dir := t.TempDir()
	write := func(body string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, "main.lua"), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write(`system("a", function() end)`)
	e, err := scripting.NewEngine(dir, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	write(`system("b", function() end)`)
	files, _, err := e.Reload()
	if err != nil || files != 1 {
		t.Fatalf("reload: files=%d err=%v", files, err)
	}
	if diff := cmp.Diff([]string{"b"}, e.Systems()); diff != "" {
		t.Errorf("systems (-want +got):\n%s", diff)
	}

	write(`system(`)
	if _, _, err := e.Reload(); err == nil {
		t.Fatal("broken script reloaded")
	}
	if diff := cmp.Diff([]string{"b"}, e.Systems()); diff != "" {
		t.Errorf("failed reload replaced systems (-want +got):\n%s", diff)
	}
}

func TestWatcherTriggersReloadHook(t *testing.T) {
	dir := t.TempDir()
	e, err := scripting.NewEngine(dir, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()
	w, err := scripting.NewWatcher(dir, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	bus := event.NewBus()
	var reloads []event.ScriptsReloaded
	event.Subscribe(bus, func(ev event.ScriptsReloaded) { reloads = append(reloads, ev) })
	hook := e.ReloadHook(w, bus)
	if err := hook(); err != nil {
		t.Fatal(err)
	}
	if len(e.Systems()) != 0 {
		t.Fatal("reloaded without a change")
	}

	// write then rename so the watcher never sees a half-written file
	tmp := filepath.Join(dir, "spin.tmp")
	if err := os.WriteFile(tmp, []byte(`system("spin", function() end)`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, filepath.Join(dir, "spin.lua")); err != nil {
		t.Fatal(err)
	}
	select {
	case <-w.Changed():
	case <-time.After(5 * time.Second):
		t.Fatal("no change notification")
	}
	if err := hook(); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"spin"}, e.Systems()); diff != "" {
		t.Errorf("systems (-want +got):\n%s", diff)
	}
	bus.SwapBuffers()
	bus.DispatchAll()
	if len(reloads) != 1 || reloads[0].Files != 1 {
		t.Errorf("reload events = %+v", reloads)
	}
}
