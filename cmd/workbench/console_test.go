package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/l1jgo/workbench/internal/component"
	"github.com/l1jgo/workbench/internal/core/ecs"
	"github.com/l1jgo/workbench/internal/core/event"
	"github.com/l1jgo/workbench/internal/editor"
	"github.com/l1jgo/workbench/internal/input"
	"github.com/l1jgo/workbench/internal/mode"
	"github.com/l1jgo/workbench/internal/persist"
	"github.com/l1jgo/workbench/internal/snapshot"
	"github.com/l1jgo/workbench/internal/system"
	"go.uber.org/zap"
)

type memScenes map[string]*snapshot.Snapshot

func (m memScenes) Save(_ context.Context, name string, s *snapshot.Snapshot) error {
	m[name] = s
	return nil
}

func (m memScenes) Load(_ context.Context, name string) (*snapshot.Snapshot, error) {
	s, ok := m[name]
	if !ok {
		return nil, persist.ErrSceneNotFound
	}
	return s, nil
}

func (m memScenes) List(context.Context) ([]persist.SceneInfo, error) {
	var out []persist.SceneInfo
	for name, s := range m {
		out = append(out, persist.SceneInfo{Name: name, Entities: len(s.Entities)})
	}
	return out, nil
}

type memJournal struct {
	entries []persist.JournalEntry
	marks   int
}

func (m *memJournal) Recent(_ context.Context, n int) ([]persist.JournalEntry, error) {
	out := make([]persist.JournalEntry, 0, n)
	for i := len(m.entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, m.entries[i])
	}
	return out, nil
}

func (m *memJournal) MarkProcessed(context.Context) error {
	m.marks++
	for i := range m.entries {
		m.entries[i].Processed = true
	}
	return nil
}

func newTestConsole(t *testing.T) (*console, *bytes.Buffer) {
	t.Helper()
	reg := ecs.NewRegistry()
	component.RegisterAll(reg)
	w, _ := demoWorld(reg)
	ed := editor.New(w, event.NewBus(), zap.NewNop(), editor.Options{})
	ed.AddGameSystem(system.NewMotionSystem())
	out := &bytes.Buffer{}
	return &console{ed: ed, bindings: input.DefaultBindings(), scenes: memScenes{}, out: out}, out
}

func mustExec(t *testing.T, c *console, lines ...string) {
	t.Helper()
	for _, line := range lines {
		if err := c.exec(context.Background(), line); err != nil {
			t.Fatalf("%q: %v", line, err)
		}
	}
}

func playerX(t *testing.T, c *console) float64 {
	t.Helper()
	pos, ok := ecs.Get[component.Position](c.ed.World(), ecs.NewEntityID(0, 1))
	if !ok {
		t.Fatal("player has no Position")
	}
	return pos.X
}

func TestConsoleSetUndoRedo(t *testing.T) {
	c, out := newTestConsole(t)
	mustExec(t, c, "set 0v1 Position x 12.5")
	if x := playerX(t, c); x != 12.5 {
		t.Fatalf("x = %v", x)
	}
	mustExec(t, c, "undo")
	if x := playerX(t, c); x != 0 {
		t.Errorf("x after undo = %v", x)
	}
	mustExec(t, c, "key Ctrl+Shift+Z", "history")
	if x := playerX(t, c); x != 12.5 {
		t.Errorf("x after redo key = %v", x)
	}
	if !strings.Contains(out.String(), "Modify Position on 0v1") {
		t.Errorf("history output:\n%s", out.String())
	}
}

func TestConsolePlayStopRestores(t *testing.T) {
	c, _ := newTestConsole(t)
	mustExec(t, c, "play")
	c.ed.Tick(time.Second)
	if x := playerX(t, c); x != 1 {
		t.Fatalf("x after one second of play = %v", x)
	}
	if err := c.exec(context.Background(), "set 0v1 Position x 3"); !errors.Is(err, editor.ErrModeViolation) {
		t.Errorf("set during play err = %v", err)
	}
	mustExec(t, c, "key F5")
	if c.ed.CurrentMode() != mode.Edit {
		t.Fatalf("mode = %s", c.ed.CurrentMode())
	}
	if x := playerX(t, c); x != 0 {
		t.Errorf("x after stop = %v", x)
	}
}

func TestConsoleSaveLoad(t *testing.T) {
	c, _ := newTestConsole(t)
	mustExec(t, c, "set 0v1 Health current 55", "save arena", "set 0v1 Health current 1", "load arena")
	if c.ed.Scene() != "arena" {
		t.Errorf("scene = %q", c.ed.Scene())
	}
	hp, ok := ecs.Get[component.Health](c.ed.World(), ecs.NewEntityID(0, 1))
	if !ok || hp.Current != 55 {
		t.Errorf("health after load = %+v, %v", hp, ok)
	}
	if len(c.ed.History().Labels) != 0 {
		t.Errorf("history survived load: %v", c.ed.History().Labels)
	}
	if err := c.exec(context.Background(), "load nowhere"); !errors.Is(err, persist.ErrSceneNotFound) {
		t.Errorf("load missing err = %v", err)
	}
}

func TestConsoleErrors(t *testing.T) {
	c, _ := newTestConsole(t)
	for _, line := range []string{
		"fly",
		"set 0v1 Position z 1",
		"set 0v1 Position x abc",
		"get 9v1",
		"rm 0v1 Nope",
		"scale -1",
		"key Ctrl+Q",
	} {
		if err := c.exec(context.Background(), line); err == nil {
			t.Errorf("%q succeeded", line)
		}
	}
	if err := c.exec(context.Background(), "quit"); !errors.Is(err, errQuit) {
		t.Errorf("quit err = %v", err)
	}
	c.scenes = nil
	if err := c.exec(context.Background(), "save x"); !errors.Is(err, errNoDatabase) {
		t.Errorf("save without db err = %v", err)
	}
	if err := c.exec(context.Background(), "journal"); !errors.Is(err, errNoDatabase) {
		t.Errorf("journal without db err = %v", err)
	}
}

func TestConsoleStructuralAndSpawn(t *testing.T) {
	c, out := newTestConsole(t)
	mustExec(t, c, "rm 1v1 Label", "add 1v1 Health", "spawn 4 2", "ls")
	if !strings.Contains(out.String(), "spawned 3v1") {
		t.Errorf("spawn output:\n%s", out.String())
	}
	mustExec(t, c, "undo", "undo")
	lbl, ok := ecs.Get[component.Label](c.ed.World(), ecs.NewEntityID(1, 1))
	if !ok || lbl.Text != "crate" {
		t.Errorf("label after undo = %+v, %v", lbl, ok)
	}
}

func TestConsoleTypes(t *testing.T) {
	c, out := newTestConsole(t)
	mustExec(t, c, "types")
	for _, want := range []string{"Position   x:float y:float", "Health", "Label"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("types output missing %q:\n%s", want, out.String())
		}
	}
	if strings.Contains(out.String(), "RenderHandle") {
		t.Errorf("types lists an engine-internal store:\n%s", out.String())
	}
}

func TestConsoleJournalMarksSeen(t *testing.T) {
	c, out := newTestConsole(t)
	at := time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)
	j := &memJournal{entries: []persist.JournalEntry{
		{Kind: "push", Label: "Modify Position on 0v1", At: at, Processed: true},
		{Kind: "undo", Label: "Modify Position on 0v1", At: at.Add(time.Second)},
	}}
	c.journal = j

	mustExec(t, c, "journal 1")
	if got := out.String(); got != "* 10:00:01 undo     Modify Position on 0v1 \n" {
		t.Errorf("first listing = %q", got)
	}
	out.Reset()
	mustExec(t, c, "journal")
	if strings.Contains(out.String(), "*") || strings.Count(out.String(), "\n") != 2 {
		t.Errorf("second listing:\n%s", out.String())
	}
	if j.marks != 2 {
		t.Errorf("MarkProcessed calls = %d", j.marks)
	}
	if err := c.exec(context.Background(), "journal 0"); err == nil {
		t.Error("journal 0 succeeded")
	}
}

func TestConsoleHistoryClear(t *testing.T) {
	c, out := newTestConsole(t)
	mustExec(t, c, "set 0v1 Position x 4", "history clear", "history")
	if !strings.Contains(out.String(), "(0/100)") {
		t.Errorf("history after clear:\n%s", out.String())
	}
	if err := c.exec(context.Background(), "undo"); err == nil {
		t.Error("undo after clear succeeded")
	}
	if err := c.exec(context.Background(), "history drop"); err == nil {
		t.Error("history drop succeeded")
	}
}

func TestDemoRenderHandlesSurvivePlay(t *testing.T) {
	reg := ecs.NewRegistry()
	component.RegisterAll(reg)
	w, handles := demoWorld(reg)
	ed := editor.New(w, event.NewBus(), zap.NewNop(), editor.Options{})
	ed.AddGameSystem(system.NewMotionSystem())
	player := ecs.NewEntityID(0, 1)

	if err := ed.StartPlay(); err != nil {
		t.Fatal(err)
	}
	ed.Tick(time.Second)
	if h, _ := handles.Get(player); h != nil {
		h.Slot = 7
	}
	if err := ed.Stop(); err != nil {
		t.Fatal(err)
	}
	h, ok := handles.Get(player)
	if !ok || h.Slot != 7 {
		t.Errorf("player render handle after stop = %+v, %v", h, ok)
	}
	if handles.Len() != 2 {
		t.Errorf("render slots = %d", handles.Len())
	}
}
