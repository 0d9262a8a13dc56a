package mode_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/l1jgo/workbench/internal/mode"
)

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		name  string
		path  []mode.Event
		final mode.Mode
	}{
		{"play", []mode.Event{mode.StartPlay}, mode.Play},
		{"pause", []mode.Event{mode.StartPlay, mode.Pause}, mode.Paused},
		{"resume", []mode.Event{mode.StartPlay, mode.Pause, mode.Resume}, mode.Play},
		{"stop from play", []mode.Event{mode.StartPlay, mode.Stop}, mode.Edit},
		{"stop from paused", []mode.Event{mode.StartPlay, mode.Pause, mode.Stop}, mode.Edit},
		{"step stays paused", []mode.Event{mode.StartPlay, mode.Pause, mode.StepFrame}, mode.Paused},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := mode.NewMachine()
			for _, ev := range tt.path {
				if err := m.Request(ev); err != nil {
					t.Fatalf("%s: %v", ev, err)
				}
			}
			if m.Current() != tt.final {
				t.Errorf("mode = %s, want %s", m.Current(), tt.final)
			}
		})
	}
}

func TestInvalidTransitionLeavesMode(t *testing.T) {
	invalid := map[mode.Mode][]mode.Event{
		mode.Edit:   {mode.Pause, mode.Resume, mode.Stop, mode.StepFrame},
		mode.Play:   {mode.StartPlay, mode.Resume, mode.StepFrame},
		mode.Paused: {mode.StartPlay, mode.Pause},
	}
	reach := map[mode.Mode][]mode.Event{
		mode.Edit:   nil,
		mode.Play:   {mode.StartPlay},
		mode.Paused: {mode.StartPlay, mode.Pause},
	}
	for from, events := range invalid {
		for _, ev := range events {
			m := mode.NewMachine()
			for _, step := range reach[from] {
				if err := m.Request(step); err != nil {
					t.Fatal(err)
				}
			}
			if err := m.Request(ev); !errors.Is(err, mode.ErrInvalidTransition) {
				t.Errorf("%s from %s err = %v", ev, from, err)
			}
			if m.Current() != from {
				t.Errorf("%s from %s moved to %s", ev, from, m.Current())
			}
			if m.Allowed(ev) {
				t.Errorf("Allowed(%s) in %s", ev, from)
			}
		}
	}
}

func TestEffectFailureKeepsMode(t *testing.T) {
	m := mode.NewMachine()
	boom := errors.New("boom")
	if err := m.On(mode.Edit, mode.StartPlay, func(mode.Transition) error { return boom }); err != nil {
		t.Fatal(err)
	}
	if err := m.Request(mode.StartPlay); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if m.Current() != mode.Edit {
		t.Errorf("mode = %s after failed effect", m.Current())
	}
}

func TestForcedStopCommitsOnError(t *testing.T) {
	m := mode.NewMachine()
	conflict := errors.New("conflict")
	var changes []mode.Change
	m.Observe(func(c mode.Change) { changes = append(changes, c) })
	if err := m.On(mode.Play, mode.Stop, func(mode.Transition) error { return conflict }); err != nil {
		t.Fatal(err)
	}
	if err := m.Request(mode.StartPlay); err != nil {
		t.Fatal(err)
	}
	if err := m.Request(mode.Stop); !errors.Is(err, conflict) {
		t.Fatalf("stop err = %v", err)
	}
	if m.Current() != mode.Edit {
		t.Errorf("mode = %s, want edit", m.Current())
	}
	want := []mode.Change{
		{From: mode.Edit, To: mode.Play, Event: mode.StartPlay},
		{From: mode.Play, To: mode.Edit, Event: mode.Stop, Err: conflict},
	}
	if diff := cmp.Diff(want, changes, cmp.Comparer(func(a, b error) bool { return a == b })); diff != "" {
		t.Errorf("changes (-want +got):\n%s", diff)
	}
}

func TestReentrantRequestRejected(t *testing.T) {
	m := mode.NewMachine()
	var inner error
	if err := m.On(mode.Edit, mode.StartPlay, func(mode.Transition) error {
		inner = m.Request(mode.Pause)
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if err := m.Request(mode.StartPlay); err != nil {
		t.Fatal(err)
	}
	if !errors.Is(inner, mode.ErrTransitionInProgress) {
		t.Errorf("nested request err = %v", inner)
	}
	if m.Current() != mode.Play || m.InFlight() {
		t.Errorf("mode = %s inFlight = %v", m.Current(), m.InFlight())
	}
}

func TestOnRejectsUnknownRow(t *testing.T) {
	m := mode.NewMachine()
	if err := m.On(mode.Edit, mode.Stop, func(mode.Transition) error { return nil }); !errors.Is(err, mode.ErrInvalidTransition) {
		t.Errorf("On(edit, stop) err = %v", err)
	}
}

func TestEventsAndParse(t *testing.T) {
	m := mode.NewMachine()
	_ = m.Request(mode.StartPlay)
	_ = m.Request(mode.Pause)
	if diff := cmp.Diff([]mode.Event{mode.Resume, mode.Stop, mode.StepFrame}, m.Events()); diff != "" {
		t.Errorf("events (-want +got):\n%s", diff)
	}
	ev, err := mode.ParseEvent(" Step_Frame ")
	if err != nil || ev != mode.StepFrame {
		t.Errorf("ParseEvent = %v, %v", ev, err)
	}
	if _, err := mode.ParseEvent("rewind"); err == nil {
		t.Error("ParseEvent accepted unknown name")
	}
	if err := m.Reset(); err != nil || m.Current() != mode.Edit {
		t.Errorf("Reset: %v, mode %s", err, m.Current())
	}
}
