package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/l1jgo/workbench/internal/core/ecs"
	"github.com/l1jgo/workbench/internal/editor"
	"github.com/l1jgo/workbench/internal/input"
	"github.com/l1jgo/workbench/internal/persist"
	"github.com/l1jgo/workbench/internal/snapshot"
)

var errQuit = errors.New("quit")

// sceneStore is the part of persist.SceneRepo the console needs.
type sceneStore interface {
	Save(ctx context.Context, name string, s *snapshot.Snapshot) error
	Load(ctx context.Context, name string) (*snapshot.Snapshot, error)
	List(ctx context.Context) ([]persist.SceneInfo, error)
}

// journalStore is the part of persist.JournalRepo the console needs.
type journalStore interface {
	Recent(ctx context.Context, n int) ([]persist.JournalEntry, error)
	MarkProcessed(ctx context.Context) error
}

// console executes text commands against the editor. It must only be used
// from the goroutine that ticks the editor.
type console struct {
	ed       *editor.Editor
	bindings input.Bindings
	scenes   sceneStore   // nil without a database
	journal  journalStore // nil without a database
	out      io.Writer
}

type command struct {
	usage string
	run   func(c *console, ctx context.Context, args []string) error
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"help":    {"help", (*console).help},
		"quit":    {"quit", func(*console, context.Context, []string) error { return errQuit }},
		"play":    {"play", func(c *console, _ context.Context, _ []string) error { return c.ed.StartPlay() }},
		"pause":   {"pause", func(c *console, _ context.Context, _ []string) error { return c.ed.Pause() }},
		"resume":  {"resume", func(c *console, _ context.Context, _ []string) error { return c.ed.Resume() }},
		"stop":    {"stop", func(c *console, _ context.Context, _ []string) error { return c.ed.Stop() }},
		"step":    {"step", func(c *console, _ context.Context, _ []string) error { return c.ed.StepFrame() }},
		"undo":    {"undo", func(c *console, _ context.Context, _ []string) error { return c.ed.Undo() }},
		"redo":    {"redo", func(c *console, _ context.Context, _ []string) error { return c.ed.Redo() }},
		"ls":      {"ls", (*console).list},
		"get":     {"get <entity> [Type]", (*console).get},
		"set":     {"set <entity> <Type> <field> <value>", (*console).set},
		"add":     {"add <entity> <Type>", (*console).add},
		"rm":      {"rm <entity> <Type>", (*console).remove},
		"spawn":   {"spawn [x y]", (*console).spawn},
		"begin":   {"begin <label>", (*console).begin},
		"end":     {"end", func(c *console, _ context.Context, _ []string) error { return c.ed.EndEditGroup() }},
		"abandon": {"abandon", func(c *console, _ context.Context, _ []string) error { return c.ed.AbandonEditGroup() }},
		"scale":   {"scale <factor>", (*console).scale},
		"clock":   {"clock", (*console).clock},
		"history": {"history [clear]", (*console).history},
		"types":   {"types", (*console).types},
		"journal": {"journal [n]", (*console).listJournal},
		"key":     {"key <chord>", (*console).key},
		"keys":    {"keys", (*console).keys},
		"save":    {"save [scene]", (*console).save},
		"load":    {"load <scene>", (*console).load},
		"scenes":  {"scenes", (*console).listScenes},
	}
}

// exec runs one command line. errQuit asks the caller to exit.
func (c *console) exec(ctx context.Context, line string) error {
	args := strings.Fields(line)
	if len(args) == 0 {
		return nil
	}
	cmd, ok := commands[strings.ToLower(args[0])]
	if !ok {
		return fmt.Errorf("unknown command %q (try help)", args[0])
	}
	return cmd.run(c, ctx, args[1:])
}

func (c *console) help(context.Context, []string) error {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(c.out, "  %s\n", commands[name].usage)
	}
	return nil
}

func usage(name string) error {
	return fmt.Errorf("usage: %s", commands[name].usage)
}

func (c *console) entity(s string) (ecs.EntityID, error) {
	id, err := ecs.ParseEntityID(s)
	if err != nil {
		return 0, err
	}
	if !c.ed.Exists(id) {
		return 0, fmt.Errorf("entity %s: %w", id, ecs.ErrNotFound)
	}
	return id, nil
}

func (c *console) componentType(name string) (*ecs.ComponentType, error) {
	ct, ok := c.ed.Registry().Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown component %q", name)
	}
	return ct, nil
}

func (c *console) list(context.Context, []string) error {
	reg := c.ed.Registry()
	for _, id := range c.ed.Entities() {
		var names []string
		for _, t := range c.ed.ListComponents(id) {
			names = append(names, reg.Name(t))
		}
		fmt.Fprintf(c.out, "%-6s %s\n", id, strings.Join(names, " "))
	}
	return nil
}

func (c *console) get(_ context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return usage("get")
	}
	id, err := c.entity(args[0])
	if err != nil {
		return err
	}
	types := c.ed.ListComponents(id)
	if len(args) == 2 {
		ct, err := c.componentType(args[1])
		if err != nil {
			return err
		}
		types = []ecs.ComponentTypeID{ct.ID}
	}
	for _, t := range types {
		rec, err := c.ed.Read(id, t)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "%s %s\n", c.ed.Registry().Name(t), rec)
	}
	return nil
}

func (c *console) set(_ context.Context, args []string) error {
	if len(args) < 4 {
		return usage("set")
	}
	id, err := c.entity(args[0])
	if err != nil {
		return err
	}
	ct, err := c.componentType(args[1])
	if err != nil {
		return err
	}
	field := args[2]
	var kind ecs.Kind
	for _, d := range ct.Shape {
		if d.Name == field {
			kind = d.Kind
		}
	}
	if kind == ecs.KindInvalid {
		return fmt.Errorf("%s has no field %q", ct.Name, field)
	}
	v, err := ecs.ParseValue(kind, strings.Join(args[3:], " "))
	if err != nil {
		return err
	}
	return c.ed.SetField(id, ct.ID, field, v)
}

func zero(ct *ecs.ComponentType) ecs.Record {
	rec := make(ecs.Record, len(ct.Shape))
	for i, d := range ct.Shape {
		rec[i] = ecs.Field{Name: d.Name, Value: ecs.Value{Kind: d.Kind}}
	}
	return rec
}

func (c *console) add(_ context.Context, args []string) error {
	if len(args) != 2 {
		return usage("add")
	}
	id, err := c.entity(args[0])
	if err != nil {
		return err
	}
	ct, err := c.componentType(args[1])
	if err != nil {
		return err
	}
	return c.ed.InsertComponent(id, ct.ID, zero(ct))
}

func (c *console) remove(_ context.Context, args []string) error {
	if len(args) != 2 {
		return usage("rm")
	}
	id, err := c.entity(args[0])
	if err != nil {
		return err
	}
	ct, err := c.componentType(args[1])
	if err != nil {
		return err
	}
	return c.ed.RemoveComponent(id, ct.ID)
}

func (c *console) spawn(_ context.Context, args []string) error {
	if len(args) != 0 && len(args) != 2 {
		return usage("spawn")
	}
	ct, err := c.componentType("Position")
	if err != nil {
		return err
	}
	pos := zero(ct)
	for i, s := range args {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return usage("spawn")
		}
		pos[i].Value = ecs.FloatValue(f)
	}
	id, err := c.ed.CreateEntity(map[ecs.ComponentTypeID]ecs.Record{ct.ID: pos})
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "spawned %s\n", id)
	return nil
}

func (c *console) begin(_ context.Context, args []string) error {
	if len(args) == 0 {
		return usage("begin")
	}
	return c.ed.BeginEditGroup(strings.Join(args, " "))
}

func (c *console) scale(_ context.Context, args []string) error {
	if len(args) != 1 {
		return usage("scale")
	}
	f, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return usage("scale")
	}
	return c.ed.SetScale(f)
}

func (c *console) clock(context.Context, []string) error {
	s := c.ed.ClockSnapshot()
	fmt.Fprintf(c.out, "mode=%s elapsed=%s scale=%g frames=%d running=%t paused=%t\n",
		c.ed.CurrentMode(), s.Elapsed, s.Scale, s.Frames, s.Running, s.Paused)
	return nil
}

func (c *console) history(_ context.Context, args []string) error {
	switch {
	case len(args) == 1 && args[0] == "clear":
		return c.ed.ClearHistory()
	case len(args) != 0:
		return usage("history")
	}
	h := c.ed.History()
	for i, label := range h.Labels {
		marker := " "
		if i == h.Cursor-1 {
			marker = ">"
		}
		fmt.Fprintf(c.out, "%s %2d %s\n", marker, i+1, label)
	}
	fmt.Fprintf(c.out, "undo: %q redo: %q (%d/%d)\n", h.UndoLabel, h.RedoLabel, len(h.Labels), h.Capacity)
	return nil
}

func (c *console) types(context.Context, []string) error {
	for _, ct := range c.ed.Registry().Types() {
		fields := make([]string, len(ct.Shape))
		for i, d := range ct.Shape {
			fields[i] = d.Name + ":" + d.Kind.String()
		}
		fmt.Fprintf(c.out, "%-10s %s\n", ct.Name, strings.Join(fields, " "))
	}
	return nil
}

func (c *console) key(_ context.Context, args []string) error {
	if len(args) != 1 {
		return usage("key")
	}
	a, err := c.bindings.Press(c.ed, args[0])
	if a != "" {
		fmt.Fprintf(c.out, "%s -> %s\n", args[0], a)
	}
	return err
}

func (c *console) keys(context.Context, []string) error {
	for _, a := range c.bindings.Actions() {
		fmt.Fprintf(c.out, "  %-13s %s\n", a, c.bindings.Label(a))
	}
	return nil
}

var errNoDatabase = errors.New("scenes and journal need [database] enabled = true")

func (c *console) save(ctx context.Context, args []string) error {
	if c.scenes == nil {
		return errNoDatabase
	}
	name := c.ed.Scene()
	if len(args) == 1 {
		name = args[0]
	}
	if name == "" {
		return usage("save")
	}
	s, err := c.ed.SaveSnapshot()
	if err != nil {
		return err
	}
	if err := c.scenes.Save(ctx, name, s); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "saved %s (%d entities)\n", name, len(s.Entities))
	return nil
}

func (c *console) load(ctx context.Context, args []string) error {
	if c.scenes == nil {
		return errNoDatabase
	}
	if len(args) != 1 {
		return usage("load")
	}
	return loadScene(ctx, c.ed, c.scenes, args[0])
}

func (c *console) listScenes(ctx context.Context, _ []string) error {
	if c.scenes == nil {
		return errNoDatabase
	}
	infos, err := c.scenes.List(ctx)
	if err != nil {
		return err
	}
	for _, info := range infos {
		fmt.Fprintf(c.out, "%-20s %4d entities  %s\n", info.Name, info.Entities, info.SavedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

const defaultJournalLines = 20

// listJournal prints the newest journal entries, starring the ones not seen
// by an earlier listing.
func (c *console) listJournal(ctx context.Context, args []string) error {
	if c.journal == nil {
		return errNoDatabase
	}
	n := defaultJournalLines
	if len(args) > 1 {
		return usage("journal")
	}
	if len(args) == 1 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v <= 0 {
			return usage("journal")
		}
		n = v
	}
	entries, err := c.journal.Recent(ctx, n)
	if err != nil {
		return err
	}
	for _, e := range entries {
		marker := "*"
		if e.Processed {
			marker = " "
		}
		fmt.Fprintf(c.out, "%s %s %-8s %s %s\n", marker, e.At.Format("15:04:05"), e.Kind, e.Label, e.Detail)
	}
	return c.journal.MarkProcessed(ctx)
}

// loadScene rebuilds a world from a stored snapshot and hands it to the editor.
func loadScene(ctx context.Context, ed *editor.Editor, scenes sceneStore, name string) error {
	s, err := scenes.Load(ctx, name)
	if err != nil {
		return err
	}
	w, err := snapshot.Build(ed.Registry(), s)
	if err != nil {
		return fmt.Errorf("build scene %q: %w", name, err)
	}
	return ed.LoadScene(name, w)
}
