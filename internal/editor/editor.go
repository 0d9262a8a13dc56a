// Package editor is the core the UI and the scheduler talk to. It owns the
// world, the clock, the mode machine and the undo history, and decides which
// operations each mode allows.
//
// An Editor is owned by one goroutine (the editor loop). Other goroutines
// hand work to that loop instead of calling in directly.
package editor

import (
	"errors"
	"fmt"
	"time"

	"github.com/l1jgo/workbench/internal/clock"
	"github.com/l1jgo/workbench/internal/core/ecs"
	"github.com/l1jgo/workbench/internal/core/event"
	"github.com/l1jgo/workbench/internal/core/system"
	"github.com/l1jgo/workbench/internal/history"
	"github.com/l1jgo/workbench/internal/mode"
	"github.com/l1jgo/workbench/internal/snapshot"
	"go.uber.org/zap"
)

var (
	// ErrModeViolation is returned for operations the current mode forbids.
	ErrModeViolation = errors.New("mode violation")
	ErrGroupOpen     = errors.New("edit group already open")
	ErrNoGroup       = errors.New("no edit group open")
)

// Options tunes an Editor. Zero fields take the defaults of DefaultOptions.
type Options struct {
	HistoryCapacity  int
	CoalesceWindow   time.Duration // 0: group entries merge regardless of spacing
	GroupIdleTimeout time.Duration // 0: groups stay open until closed
	FixedStep        time.Duration // StepFrame quantum
	DefaultScale     float64
	Now              func() time.Time
}

func DefaultOptions() Options {
	return Options{
		HistoryCapacity: history.DefaultCapacity,
		FixedStep:       time.Second / 60,
		DefaultScale:    1,
		Now:             time.Now,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.HistoryCapacity <= 0 {
		o.HistoryCapacity = d.HistoryCapacity
	}
	if o.FixedStep <= 0 {
		o.FixedStep = d.FixedStep
	}
	if o.DefaultScale == 0 {
		o.DefaultScale = d.DefaultScale
	}
	if o.Now == nil {
		o.Now = d.Now
	}
	return o
}

type editGroup struct {
	id       history.GroupID
	label    string
	lastEdit time.Time
	writes   int
}

// Editor composes the snapshot engine, history, clock and mode machine over
// one world.
type Editor struct {
	world   *ecs.World
	log     *zap.Logger
	bus     *event.Bus
	opts    Options
	now     func() time.Time
	machine *mode.Machine
	clock   *clock.Clock
	snaps   *snapshot.Engine
	history *history.Stack

	editorSystems *system.Runner // every tick
	gameSystems   *system.Runner // Play and StepFrame only

	checkpoint *snapshot.Snapshot
	group      *editGroup
	nextGroup  history.GroupID
	enterPlay  []func() error
	scene      string
}

// New creates an editor in Edit mode over w.
func New(w *ecs.World, bus *event.Bus, log *zap.Logger, opts Options) *Editor {
	opts = opts.withDefaults()
	if bus == nil {
		bus = event.NewBus()
	}
	e := &Editor{
		world:         w,
		log:           log,
		bus:           bus,
		opts:          opts,
		now:           opts.Now,
		machine:       mode.NewMachine(),
		clock:         clock.New(opts.DefaultScale),
		snaps:         snapshot.NewEngine(opts.Now, log),
		editorSystems: system.NewRunner(),
		gameSystems:   system.NewRunner(),
	}
	e.history = history.NewStack(opts.HistoryCapacity, opts.CoalesceWindow, func(s *snapshot.Snapshot) error {
		return e.snaps.Restore(e.world, s)
	})
	e.wireTransitions()
	return e
}

func (e *Editor) wireTransitions() {
	m := e.machine
	mustOn := func(from mode.Mode, ev mode.Event, fn mode.Effect) {
		if err := m.On(from, ev, fn); err != nil {
			panic(fmt.Sprintf("editor: %v", err))
		}
	}
	mustOn(mode.Edit, mode.StartPlay, func(mode.Transition) error { return e.enterPlayMode() })
	mustOn(mode.Play, mode.Pause, func(mode.Transition) error {
		e.clock.Pause()
		return nil
	})
	mustOn(mode.Paused, mode.Resume, func(mode.Transition) error {
		e.clock.Resume()
		return nil
	})
	stop := func(mode.Transition) error { return e.exitPlayMode() }
	mustOn(mode.Play, mode.Stop, stop)
	mustOn(mode.Paused, mode.Stop, stop)
	mustOn(mode.Paused, mode.StepFrame, func(mode.Transition) error {
		if err := e.clock.Step(e.opts.FixedStep); err != nil {
			return err
		}
		e.gameSystems.Tick(e.world, e.opts.FixedStep)
		return nil
	})

	m.Observe(func(c mode.Change) {
		e.log.Info("mode changed",
			zap.Stringer("from", c.From),
			zap.Stringer("to", c.To),
			zap.Stringer("event", c.Event),
		)
		event.Emit(e.bus, event.ModeChanged{From: c.From.String(), To: c.To.String(), Event: c.Event.String()})
	})
}

func (e *Editor) enterPlayMode() error {
	if e.group != nil {
		e.closeGroup(false)
	}
	for _, fn := range e.enterPlay {
		if err := fn(); err != nil {
			return fmt.Errorf("enter play: %w", err)
		}
	}
	cp, err := e.snaps.Capture(e.world, snapshot.WorldTarget())
	if err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	e.clock.Stop()
	if err := e.clock.Reset(); err != nil {
		return err
	}
	e.clock.Start()
	e.checkpoint = cp
	e.log.Debug("play checkpoint captured", zap.Int("entities", len(cp.Entities)))
	return nil
}

func (e *Editor) exitPlayMode() error {
	e.clock.Stop()
	cp := e.checkpoint
	e.checkpoint = nil
	if cp == nil {
		return nil
	}
	if err := e.snaps.Restore(e.world, cp); err != nil {
		e.reportConflict("stop", err)
		return err
	}
	return nil
}

func (e *Editor) reportConflict(cause string, err error) {
	var ce *snapshot.ConflictError
	if !errors.As(err, &ce) {
		return
	}
	e.log.Error("restore conflict",
		zap.String("cause", cause),
		zap.Int("entities", len(ce.Entities)),
		zap.Error(err),
	)
	event.Emit(e.bus, event.RestoreConflict{Cause: cause, Entities: append([]ecs.EntityID(nil), ce.Entities...)})
}

// Bus returns the event bus the editor emits on.
func (e *Editor) Bus() *event.Bus { return e.bus }

// AddEditorSystem registers a system that runs on every tick in every mode.
func (e *Editor) AddEditorSystem(s system.System) { e.editorSystems.Register(s) }

// AddGameSystem registers a simulation system. Game systems run only in Play
// (with scaled time) and on StepFrame (with the fixed quantum).
func (e *Editor) AddGameSystem(s system.System) { e.gameSystems.Register(s) }

// OnEnterPlay registers fn to run when Play is entered, before the
// checkpoint is captured. An error aborts the transition.
func (e *Editor) OnEnterPlay(fn func() error) { e.enterPlay = append(e.enterPlay, fn) }

// CurrentMode returns the active mode.
func (e *Editor) CurrentMode() mode.Mode { return e.machine.Current() }

// RequestTransition asks the mode machine for ev.
func (e *Editor) RequestTransition(ev mode.Event) error {
	return e.machine.Request(ev)
}

func (e *Editor) StartPlay() error { return e.RequestTransition(mode.StartPlay) }
func (e *Editor) Pause() error     { return e.RequestTransition(mode.Pause) }
func (e *Editor) Resume() error    { return e.RequestTransition(mode.Resume) }
func (e *Editor) Stop() error      { return e.RequestTransition(mode.Stop) }
func (e *Editor) StepFrame() error { return e.RequestTransition(mode.StepFrame) }

// TogglePlay is the play/stop binding: Edit starts Play, Play or Paused stops.
func (e *Editor) TogglePlay() error {
	if e.machine.Current() == mode.Edit {
		return e.StartPlay()
	}
	return e.Stop()
}

// TogglePause is the pause/resume binding. It does nothing in Edit.
func (e *Editor) TogglePause() error {
	switch e.machine.Current() {
	case mode.Play:
		return e.Pause()
	case mode.Paused:
		return e.Resume()
	}
	return nil
}

// requireEdit guards operations that only make sense while editing.
func (e *Editor) requireEdit(op string) error {
	if e.machine.InFlight() {
		return fmt.Errorf("%s: %w", op, mode.ErrTransitionInProgress)
	}
	if cur := e.machine.Current(); cur != mode.Edit {
		return fmt.Errorf("%s in %s mode: %w", op, cur, ErrModeViolation)
	}
	return nil
}

// Read returns a copy of component t on id. Reads are allowed in every mode.
func (e *Editor) Read(id ecs.EntityID, t ecs.ComponentTypeID) (ecs.Record, error) {
	return e.world.Read(id, t)
}

func (e *Editor) ListComponents(id ecs.EntityID) []ecs.ComponentTypeID {
	return e.world.ListComponents(id)
}

func (e *Editor) Exists(id ecs.EntityID) bool { return e.world.Exists(id) }

// World returns the world being edited. Callers outside the editor loop must
// not touch it.
func (e *Editor) World() *ecs.World { return e.world }

// Entities lists the live entities.
func (e *Editor) Entities() []ecs.EntityID { return e.world.Entities() }

// Registry returns the component registry of the current world.
func (e *Editor) Registry() *ecs.Registry { return e.world.Registry() }

// Write replaces component t on id and records the edit in history. Only
// allowed in Edit.
func (e *Editor) Write(id ecs.EntityID, t ecs.ComponentTypeID, rec ecs.Record) error {
	if err := e.requireEdit("write"); err != nil {
		return err
	}
	target := snapshot.ComponentTarget(id, t)
	before, err := e.snaps.Capture(e.world, target)
	if err != nil {
		return err
	}
	if err := e.world.Write(id, t, rec); err != nil {
		return err
	}
	after, err := e.snaps.Capture(e.world, target)
	if err != nil {
		return err
	}
	e.record(fmt.Sprintf("Modify %s on %s", e.world.Registry().Name(t), id), before, after)
	return nil
}

// SetField writes a single field of component t, keeping the others.
func (e *Editor) SetField(id ecs.EntityID, t ecs.ComponentTypeID, field string, v ecs.Value) error {
	rec, err := e.world.Read(id, t)
	if err != nil {
		return err
	}
	next, ok := rec.With(field, v)
	if !ok {
		return fmt.Errorf("set %s.%s on %s: %w", e.world.Registry().Name(t), field, id, ecs.ErrTypeMismatch)
	}
	return e.Write(id, t, next)
}

// InsertComponent attaches component t to an existing entity. Undo removes
// it again.
func (e *Editor) InsertComponent(id ecs.EntityID, t ecs.ComponentTypeID, rec ecs.Record) error {
	return e.structural(fmt.Sprintf("Add %s to %s", e.world.Registry().Name(t), id), id, func() error {
		return e.world.Insert(id, t, rec)
	})
}

// RemoveComponent detaches component t. Undo restores it with its value.
func (e *Editor) RemoveComponent(id ecs.EntityID, t ecs.ComponentTypeID) error {
	if !e.world.Has(id, t) {
		return fmt.Errorf("remove %s on %s: %w", e.world.Registry().Name(t), id, ecs.ErrNotFound)
	}
	return e.structural(fmt.Sprintf("Remove %s from %s", e.world.Registry().Name(t), id), id, func() error {
		return e.world.Remove(id, t)
	})
}

func (e *Editor) structural(label string, id ecs.EntityID, apply func() error) error {
	if err := e.requireEdit("edit"); err != nil {
		return err
	}
	target := snapshot.EntityTarget(id)
	before, err := e.snaps.Capture(e.world, target)
	if err != nil {
		return err
	}
	if err := apply(); err != nil {
		return err
	}
	after, err := e.snaps.Capture(e.world, target)
	if err != nil {
		return err
	}
	e.record(label, before, after)
	return nil
}

// CreateEntity spawns an entity with the given components. Entity creation
// is scene setup: it is not recorded in history.
func (e *Editor) CreateEntity(components map[ecs.ComponentTypeID]ecs.Record) (ecs.EntityID, error) {
	if err := e.requireEdit("create entity"); err != nil {
		return 0, err
	}
	id := e.world.CreateEntity()
	for t, rec := range components {
		if err := e.world.Insert(id, t, rec); err != nil {
			e.world.DestroyEntity(id)
			return 0, err
		}
	}
	return id, nil
}

func (e *Editor) record(label string, before, after *snapshot.Snapshot) {
	entry := history.Entry{Label: label, Before: before, After: after, Pushed: e.now()}
	if g := e.group; g != nil {
		entry.Label = g.label
		entry.Group = g.id
		g.lastEdit = entry.Pushed
		g.writes++
	}
	out := e.history.Push(entry)
	if out == history.Ignored {
		return
	}
	e.log.Debug("history push",
		zap.String("label", entry.Label),
		zap.Stringer("outcome", out),
		zap.Int("depth", e.history.Cursor()),
	)
	event.Emit(e.bus, event.HistoryPushed{Label: entry.Label, Outcome: out.String(), Depth: e.history.Cursor()})
}

// Undo reverts the most recent edit. Only allowed in Edit; an open edit
// group is closed first.
func (e *Editor) Undo() error {
	if err := e.requireEdit("undo"); err != nil {
		return err
	}
	if e.group != nil {
		e.closeGroup(false)
	}
	entry, err := e.history.Undo()
	if err != nil {
		e.reportConflict("undo", err)
		return err
	}
	event.Emit(e.bus, event.HistoryUndone{Label: entry.Label})
	return nil
}

// Redo reapplies the most recently undone edit. Only allowed in Edit.
func (e *Editor) Redo() error {
	if err := e.requireEdit("redo"); err != nil {
		return err
	}
	if e.group != nil {
		e.closeGroup(false)
	}
	entry, err := e.history.Redo()
	if err != nil {
		e.reportConflict("redo", err)
		return err
	}
	event.Emit(e.bus, event.HistoryRedone{Label: entry.Label})
	return nil
}

// BeginEditGroup opens a session: writes until EndEditGroup collapse into
// one undo step labelled label.
func (e *Editor) BeginEditGroup(label string) error {
	if err := e.requireEdit("begin edit group"); err != nil {
		return err
	}
	if e.group != nil {
		return fmt.Errorf("begin %q: %w (%q)", label, ErrGroupOpen, e.group.label)
	}
	e.nextGroup++
	e.group = &editGroup{id: e.nextGroup, label: label, lastEdit: e.now()}
	return nil
}

// EndEditGroup closes the open session.
func (e *Editor) EndEditGroup() error {
	if e.group == nil {
		return ErrNoGroup
	}
	e.closeGroup(false)
	return nil
}

// AbandonEditGroup reverts every write made in the open session and drops
// its history entry.
func (e *Editor) AbandonEditGroup() error {
	if e.group == nil {
		return ErrNoGroup
	}
	g := e.group
	e.group = nil
	if top, ok := e.history.Top(); ok && top.Group == g.id {
		if err := e.snaps.Restore(e.world, top.Before); err != nil {
			e.reportConflict("abandon", err)
			return err
		}
		e.history.DropTop()
	}
	e.log.Debug("edit group abandoned", zap.String("label", g.label), zap.Int("writes", g.writes))
	event.Emit(e.bus, event.EditGroupClosed{Label: g.label, Abandoned: true})
	return nil
}

// GroupOpen reports the label of the open edit group.
func (e *Editor) GroupOpen() (string, bool) {
	if e.group == nil {
		return "", false
	}
	return e.group.label, true
}

func (e *Editor) closeGroup(idle bool) {
	g := e.group
	e.group = nil
	e.log.Debug("edit group closed",
		zap.String("label", g.label),
		zap.Int("writes", g.writes),
		zap.Bool("idle", idle),
	)
	event.Emit(e.bus, event.EditGroupClosed{Label: g.label, Idle: idle})
}

// SetScale changes the simulation time scale. Allowed in every mode.
func (e *Editor) SetScale(f float64) error { return e.clock.SetScale(f) }

// ClockSnapshot returns the clock state for the scheduler and status bars.
func (e *Editor) ClockSnapshot() clock.State { return e.clock.State() }

// Tick is called once per scheduling pass with the wall time since the last
// pass. It delivers last tick's events, runs editor systems, closes an idle
// edit group and, in Play only, advances the clock and runs game systems
// with the scaled delta.
func (e *Editor) Tick(wall time.Duration) {
	e.bus.SwapBuffers()
	e.bus.DispatchAll()

	if g := e.group; g != nil && e.opts.GroupIdleTimeout > 0 && e.now().Sub(g.lastEdit) > e.opts.GroupIdleTimeout {
		e.closeGroup(true)
	}

	e.editorSystems.Tick(e.world, wall)

	if e.machine.Current() != mode.Play {
		return
	}
	before := e.clock.Elapsed()
	e.clock.Advance(wall)
	if dt := e.clock.Elapsed() - before; dt > 0 {
		e.gameSystems.Tick(e.world, dt)
	}
}

// HistoryView is a read-only summary of the undo stack for a history panel.
type HistoryView struct {
	Labels    []string
	Cursor    int
	Capacity  int
	UndoLabel string
	RedoLabel string
}

func (e *Editor) History() HistoryView {
	entries := e.history.Entries()
	v := HistoryView{
		Labels:   make([]string, len(entries)),
		Cursor:   e.history.Cursor(),
		Capacity: e.history.Capacity(),
	}
	for i, en := range entries {
		v.Labels[i] = en.Label
	}
	v.UndoLabel, _ = e.history.UndoLabel()
	v.RedoLabel, _ = e.history.RedoLabel()
	return v
}

// ClearHistory drops every undo step and closes any open edit group. It is
// the way out when entries still reference entities a conflicted Stop could
// not bring back. Edit mode only.
func (e *Editor) ClearHistory() error {
	if err := e.requireEdit("clear history"); err != nil {
		return err
	}
	if e.group != nil {
		e.closeGroup(false)
	}
	n := e.history.Len()
	e.history.Clear()
	e.log.Info("history cleared", zap.Int("entries", n))
	return nil
}

// Scene returns the name passed to the last LoadScene.
func (e *Editor) Scene() string { return e.scene }

// LoadScene replaces the world. History, checkpoint and any open edit group
// are discarded; the editor returns to Edit with a stopped, rewound clock.
func (e *Editor) LoadScene(name string, w *ecs.World) error {
	from := e.machine.Current()
	if err := e.machine.Reset(); err != nil {
		return fmt.Errorf("load scene %q: %w", name, err)
	}
	e.clock.Stop()
	if err := e.clock.Reset(); err != nil {
		return err
	}
	e.history.Clear()
	e.group = nil
	e.checkpoint = nil
	e.world = w
	e.scene = name
	e.log.Info("scene loaded", zap.String("scene", name), zap.Int("entities", w.EntityCount()))
	if from != mode.Edit {
		event.Emit(e.bus, event.ModeChanged{From: from.String(), To: mode.Edit.String(), Event: "load_scene"})
	}
	event.Emit(e.bus, event.SceneLoaded{Name: name, Entities: w.EntityCount()})
	return nil
}

// CanSave refuses to save transient Play state.
func (e *Editor) CanSave() error {
	return e.requireEdit("save")
}

// SaveSnapshot captures the whole world for a scene repository.
func (e *Editor) SaveSnapshot() (*snapshot.Snapshot, error) {
	if err := e.CanSave(); err != nil {
		return nil, err
	}
	return e.snaps.Capture(e.world, snapshot.WorldTarget())
}
