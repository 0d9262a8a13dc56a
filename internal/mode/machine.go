// Package mode holds the Edit/Play/Paused state machine. The transition
// table below is the only place mode changes are defined.
package mode

import (
	"errors"
	"fmt"
	"strings"
)

// Mode is the editor's current mode. The zero value is Edit.
type Mode uint8

const (
	Edit Mode = iota
	Play
	Paused
)

func (m Mode) String() string {
	switch m {
	case Edit:
		return "edit"
	case Play:
		return "play"
	case Paused:
		return "paused"
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

// Event is a transition request.
type Event uint8

const (
	StartPlay Event = iota + 1
	Pause
	Resume
	Stop
	StepFrame
)

var eventNames = map[Event]string{
	StartPlay: "start_play",
	Pause:     "pause",
	Resume:    "resume",
	Stop:      "stop",
	StepFrame: "step_frame",
}

func (e Event) String() string {
	if name, ok := eventNames[e]; ok {
		return name
	}
	return fmt.Sprintf("event(%d)", uint8(e))
}

// ParseEvent accepts the snake_case event names ("start_play", "stop", ...).
func ParseEvent(s string) (Event, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for ev, name := range eventNames {
		if name == s {
			return ev, nil
		}
	}
	return 0, fmt.Errorf("unknown mode event %q", s)
}

var (
	ErrInvalidTransition    = errors.New("invalid transition")
	ErrTransitionInProgress = errors.New("transition in progress")
)

// Transition is one row of the table.
type Transition struct {
	From  Mode
	Event Event
	To    Mode
	// Forced transitions land in To even if an effect fails; the effect's
	// error is still returned.
	Forced bool
}

var table = []Transition{
	{From: Edit, Event: StartPlay, To: Play},
	{From: Play, Event: Pause, To: Paused},
	{From: Paused, Event: Resume, To: Play},
	{From: Play, Event: Stop, To: Edit, Forced: true},
	{From: Paused, Event: Stop, To: Edit, Forced: true},
	{From: Paused, Event: StepFrame, To: Paused},
}

// Table returns a copy of the transition table.
func Table() []Transition {
	return append([]Transition(nil), table...)
}

type key struct {
	from  Mode
	event Event
}

// Effect runs while a transition is in flight, before the mode changes.
type Effect func(Transition) error

// Change is delivered to observers after a transition completes.
type Change struct {
	From  Mode
	To    Mode
	Event Event
	Err   error // effect error of a forced transition
}

// Machine is the mode state machine. It is not safe for concurrent use; the
// scheduler serializes calls.
type Machine struct {
	current   Mode
	inFlight  bool
	rows      map[key]Transition
	effects   map[key][]Effect
	observers []func(Change)
}

func NewMachine() *Machine {
	m := &Machine{
		rows:    make(map[key]Transition, len(table)),
		effects: make(map[key][]Effect, len(table)),
	}
	for _, t := range table {
		m.rows[key{t.From, t.Event}] = t
	}
	return m
}

// Current returns the active mode.
func (m *Machine) Current() Mode { return m.current }

// InFlight reports whether a transition is executing.
func (m *Machine) InFlight() bool { return m.inFlight }

// On attaches an effect to the (from, event) row. Effects run in the order
// they were attached.
func (m *Machine) On(from Mode, ev Event, fn Effect) error {
	k := key{from, ev}
	if _, ok := m.rows[k]; !ok {
		return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, ev, from)
	}
	m.effects[k] = append(m.effects[k], fn)
	return nil
}

// Observe registers fn to be called after each completed transition.
func (m *Machine) Observe(fn func(Change)) {
	m.observers = append(m.observers, fn)
}

// Allowed reports whether ev is in the table for the current mode.
func (m *Machine) Allowed(ev Event) bool {
	_, ok := m.rows[key{m.current, ev}]
	return ok
}

// Events lists the events accepted in the current mode.
func (m *Machine) Events() []Event {
	var out []Event
	for _, t := range table {
		if t.From == m.current {
			out = append(out, t.Event)
		}
	}
	return out
}

// Request performs the transition for ev. Effects run first; if one fails
// the mode is unchanged unless the row is forced.
func (m *Machine) Request(ev Event) error {
	if m.inFlight {
		return fmt.Errorf("%w: %s requested during another transition", ErrTransitionInProgress, ev)
	}
	k := key{m.current, ev}
	t, ok := m.rows[k]
	if !ok {
		return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, ev, m.current)
	}

	m.inFlight = true
	var effectErr error
	func() {
		defer func() { m.inFlight = false }()
		for _, fn := range m.effects[k] {
			if err := fn(t); err != nil {
				effectErr = err
				if !t.Forced {
					return
				}
			}
		}
	}()

	if effectErr != nil && !t.Forced {
		return fmt.Errorf("%s from %s: %w", ev, t.From, effectErr)
	}
	m.current = t.To
	change := Change{From: t.From, To: t.To, Event: ev, Err: effectErr}
	for _, fn := range m.observers {
		fn(change)
	}
	if effectErr != nil {
		return fmt.Errorf("%s from %s: %w", ev, t.From, effectErr)
	}
	return nil
}

// Reset returns to Edit without running effects, for scene loads.
func (m *Machine) Reset() error {
	if m.inFlight {
		return ErrTransitionInProgress
	}
	m.current = Edit
	return nil
}
