package input

import "fmt"

// Commands is the editor surface reachable from key chords.
type Commands interface {
	Undo() error
	Redo() error
	TogglePlay() error
	TogglePause() error
	StepFrame() error
}

// Dispatch runs the command bound to a.
func Dispatch(cmds Commands, a Action) error {
	switch a {
	case ActionUndo:
		return cmds.Undo()
	case ActionRedo:
		return cmds.Redo()
	case ActionPlayStop:
		return cmds.TogglePlay()
	case ActionPauseResume:
		return cmds.TogglePause()
	case ActionStep:
		return cmds.StepFrame()
	}
	return fmt.Errorf("input: unknown action %q", a)
}

// Press parses chord, resolves it and dispatches. The resolved action is
// returned even when the command fails.
func (b Bindings) Press(cmds Commands, chord string) (Action, error) {
	c, err := ParseChord(chord)
	if err != nil {
		return "", err
	}
	a, ok := b.Lookup(c)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnbound, c)
	}
	return a, Dispatch(cmds, a)
}
