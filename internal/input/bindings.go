// Package input maps key chords to editor commands.
package input

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Action names an editor command that can be bound to keys.
type Action string

const (
	ActionUndo        Action = "undo"
	ActionRedo        Action = "redo"
	ActionPlayStop    Action = "play_stop"
	ActionPauseResume Action = "pause_resume"
	ActionStep        Action = "step"
)

var actions = []Action{ActionUndo, ActionRedo, ActionPlayStop, ActionPauseResume, ActionStep}

var ErrUnbound = errors.New("input: chord not bound")

var namedKeys = map[string]string{
	"space": "Space", "enter": "Enter", "return": "Enter", "esc": "Escape",
	"escape": "Escape", "tab": "Tab", "backspace": "Backspace", "delete": "Delete",
	"del": "Delete", "insert": "Insert", "home": "Home", "end": "End",
	"pageup": "PageUp", "pagedown": "PageDown", "up": "Up", "down": "Down",
	"left": "Left", "right": "Right",
}

// Chord is a key plus modifiers, written "Ctrl+Shift+Z".
type Chord struct {
	Key   string
	Ctrl  bool
	Shift bool
	Alt   bool
}

// ParseChord accepts modifiers in any order and case. The key must come last.
func ParseChord(s string) (Chord, error) {
	parts := strings.Split(strings.TrimSpace(s), "+")
	var c Chord
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if i < len(parts)-1 {
			switch strings.ToLower(p) {
			case "ctrl", "control":
				c.Ctrl = true
			case "shift":
				c.Shift = true
			case "alt":
				c.Alt = true
			default:
				return Chord{}, fmt.Errorf("chord %q: unknown modifier %q", s, p)
			}
			continue
		}
		key, err := normalizeKey(p)
		if err != nil {
			return Chord{}, fmt.Errorf("chord %q: %w", s, err)
		}
		c.Key = key
	}
	return c, nil
}

func normalizeKey(k string) (string, error) {
	if k == "" {
		return "", errors.New("missing key")
	}
	if len(k) == 1 {
		ch := k[0]
		switch {
		case ch >= 'a' && ch <= 'z':
			return string(ch - 'a' + 'A'), nil
		case ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9':
			return k, nil
		}
	}
	if name, ok := namedKeys[strings.ToLower(k)]; ok {
		return name, nil
	}
	if k[0] == 'F' || k[0] == 'f' {
		if n, err := strconv.Atoi(k[1:]); err == nil && n >= 1 && n <= 24 {
			return "F" + k[1:], nil
		}
	}
	return "", fmt.Errorf("unknown key %q", k)
}

// String renders the chord the way ParseChord reads it.
func (c Chord) String() string {
	var parts []string
	if c.Ctrl {
		parts = append(parts, "Ctrl")
	}
	if c.Shift {
		parts = append(parts, "Shift")
	}
	if c.Alt {
		parts = append(parts, "Alt")
	}
	return strings.Join(append(parts, c.Key), "+")
}

// Bindings holds the alternative chords for every action.
type Bindings map[Action][]Chord

func must(s string) Chord {
	c, err := ParseChord(s)
	if err != nil {
		panic(err)
	}
	return c
}

func DefaultBindings() Bindings {
	return Bindings{
		ActionUndo:        {must("Ctrl+Z")},
		ActionRedo:        {must("Ctrl+Shift+Z")},
		ActionPlayStop:    {must("F5"), must("Ctrl+P")},
		ActionPauseResume: {must("F6"), must("Ctrl+Shift+P")},
		ActionStep:        {must("F7")},
	}
}

type bindingsFile struct {
	Bindings map[string][]string `yaml:"bindings"`
}

// LoadBindings reads a YAML keybinding file over the defaults. An empty
// path returns the defaults. Actions left out of the file keep theirs.
func LoadBindings(path string) (Bindings, error) {
	b := DefaultBindings()
	if path == "" {
		return b, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bindings: %w", err)
	}
	var f bindingsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse bindings: %w", err)
	}
	for name, chords := range f.Bindings {
		a := Action(name)
		if !known(a) {
			return nil, fmt.Errorf("bindings: unknown action %q", name)
		}
		slot := make([]Chord, 0, len(chords))
		for _, s := range chords {
			c, err := ParseChord(s)
			if err != nil {
				return nil, fmt.Errorf("bindings %s: %w", name, err)
			}
			slot = append(slot, c)
		}
		b[a] = slot
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

func known(a Action) bool {
	for _, k := range actions {
		if k == a {
			return true
		}
	}
	return false
}

// Validate rejects a chord bound to more than one action.
func (b Bindings) Validate() error {
	seen := make(map[Chord]Action)
	for _, a := range actions {
		for _, c := range b[a] {
			if prev, ok := seen[c]; ok {
				return fmt.Errorf("bindings: %s bound to both %s and %s", c, prev, a)
			}
			seen[c] = a
		}
	}
	return nil
}

// Lookup finds the action bound to c.
func (b Bindings) Lookup(c Chord) (Action, bool) {
	for _, a := range actions {
		for _, bound := range b[a] {
			if bound == c {
				return a, true
			}
		}
	}
	return "", false
}

// Label lists the alternatives for a, e.g. "F5 / Ctrl+P".
func (b Bindings) Label(a Action) string {
	labels := make([]string, len(b[a]))
	for i, c := range b[a] {
		labels[i] = c.String()
	}
	return strings.Join(labels, " / ")
}

// Actions returns the bound actions in name order.
func (b Bindings) Actions() []Action {
	out := make([]Action, 0, len(b))
	for a, chords := range b {
		if len(chords) > 0 {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
