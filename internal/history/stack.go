// Package history implements the linear undo/redo stack over snapshot pairs.
package history

import (
	"errors"
	"fmt"
	"time"

	"github.com/l1jgo/workbench/internal/snapshot"
)

var (
	ErrNothingToUndo = errors.New("nothing to undo")
	ErrNothingToRedo = errors.New("nothing to redo")
)

// DefaultCapacity matches the editor's historical limit of 100 steps.
const DefaultCapacity = 100

// GroupID ties entries that collapse into one undo step. Zero means
// "no group".
type GroupID uint64

// Entry is one reversible step: restoring Before undoes it, restoring After
// redoes it.
type Entry struct {
	Label  string
	Group  GroupID
	Before *snapshot.Snapshot
	After  *snapshot.Snapshot
	Pushed time.Time
}

// IsNoop reports whether the entry would not change anything.
func (e Entry) IsNoop() bool { return e.Before.Equal(e.After) }

// Outcome describes what Push did with an entry.
type Outcome uint8

const (
	Ignored   Outcome = iota // before == after, history untouched
	Appended                 // new step
	Merged                   // folded into the top step
	Collapsed                // merge turned the top step into a no-op; it was dropped
)

func (o Outcome) String() string {
	switch o {
	case Ignored:
		return "ignored"
	case Appended:
		return "appended"
	case Merged:
		return "merged"
	case Collapsed:
		return "collapsed"
	}
	return fmt.Sprintf("outcome(%d)", uint8(o))
}

// RestoreFunc applies a snapshot to the live store.
type RestoreFunc func(*snapshot.Snapshot) error

// Stack is a bounded ring of entries with a cursor. Entries before the
// cursor are applied; entries at or after it form the redo tail.
type Stack struct {
	ring    []Entry
	head    int // ring index of the oldest entry
	count   int
	cursor  int // number of applied entries, 0..count
	window  time.Duration
	restore RestoreFunc
}

// NewStack creates a stack holding at most capacity entries. Entries with the
// same non-zero group merge when pushed within window of the top entry; a
// zero window merges regardless of elapsed time.
func NewStack(capacity int, window time.Duration, restore RestoreFunc) *Stack {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Stack{
		ring:    make([]Entry, capacity),
		window:  window,
		restore: restore,
	}
}

func (s *Stack) at(i int) *Entry {
	return &s.ring[(s.head+i)%len(s.ring)]
}

func (s *Stack) check() {
	if s.cursor < 0 || s.cursor > s.count || s.count > len(s.ring) {
		panic(fmt.Sprintf("history: corrupted cursor %d (count %d, capacity %d)", s.cursor, s.count, len(s.ring)))
	}
}

// Push records e after the cursor, discarding the redo tail.
func (s *Stack) Push(e Entry) Outcome {
	defer s.check()
	if e.IsNoop() {
		return Ignored
	}

	if top := s.mergeable(e); top != nil {
		s.truncate()
		top.Before = snapshot.Merge(top.Before, e.Before)
		top.After = snapshot.Merge(e.After, top.After)
		top.Pushed = e.Pushed
		if top.IsNoop() {
			s.count--
			s.cursor--
			*s.at(s.count) = Entry{}
			return Collapsed
		}
		return Merged
	}

	s.truncate()
	if s.count == len(s.ring) {
		// Evict the oldest step. Its state is simply forgotten.
		*s.at(0) = Entry{}
		s.head = (s.head + 1) % len(s.ring)
		s.count--
		s.cursor--
	}
	*s.at(s.count) = e
	s.count++
	s.cursor++
	return Appended
}

func (s *Stack) mergeable(e Entry) *Entry {
	if e.Group == 0 || s.cursor == 0 {
		return nil
	}
	top := s.at(s.cursor - 1)
	if top.Group != e.Group {
		return nil
	}
	if s.window > 0 && e.Pushed.Sub(top.Pushed) > s.window {
		return nil
	}
	return top
}

// truncate drops the redo tail.
func (s *Stack) truncate() {
	for i := s.cursor; i < s.count; i++ {
		*s.at(i) = Entry{}
	}
	s.count = s.cursor
}

// Undo restores the Before snapshot of the entry below the cursor. The cursor
// only moves if the restore succeeds; a failed restore is rolled back to the
// entry's After snapshot so the store matches the cursor again.
func (s *Stack) Undo() (Entry, error) {
	defer s.check()
	if s.cursor == 0 {
		return Entry{}, ErrNothingToUndo
	}
	e := *s.at(s.cursor - 1)
	if err := s.restore(e.Before); err != nil {
		return e, fmt.Errorf("undo %q: %w", e.Label, s.rollback(e.After, err))
	}
	s.cursor--
	return e, nil
}

// Redo restores the After snapshot of the entry at the cursor.
func (s *Stack) Redo() (Entry, error) {
	defer s.check()
	if s.cursor == s.count {
		return Entry{}, ErrNothingToRedo
	}
	e := *s.at(s.cursor)
	if err := s.restore(e.After); err != nil {
		return e, fmt.Errorf("redo %q: %w", e.Label, s.rollback(e.Before, err))
	}
	s.cursor++
	return e, nil
}

// rollback reapplies the snapshot the cursor still points at after a failed
// restore. The conflict that failed the restore fails the rollback the same
// way and is not reported twice.
func (s *Stack) rollback(current *snapshot.Snapshot, cause error) error {
	err := s.restore(current)
	if err == nil || errors.Is(err, snapshot.ErrRestoreConflict) {
		return cause
	}
	return errors.Join(cause, fmt.Errorf("rollback: %w", err))
}

// Top returns the entry just below the cursor.
func (s *Stack) Top() (Entry, bool) {
	if s.cursor == 0 {
		return Entry{}, false
	}
	return *s.at(s.cursor - 1), true
}

// DropTop removes the entry below the cursor without restoring anything.
// It only succeeds when there is no redo tail.
func (s *Stack) DropTop() bool {
	defer s.check()
	if s.cursor == 0 || s.cursor != s.count {
		return false
	}
	s.cursor--
	s.count--
	*s.at(s.count) = Entry{}
	return true
}

// Clear forgets every entry.
func (s *Stack) Clear() {
	for i := range s.ring {
		s.ring[i] = Entry{}
	}
	s.head, s.count, s.cursor = 0, 0, 0
}

func (s *Stack) Len() int      { return s.count }
func (s *Stack) Cursor() int   { return s.cursor }
func (s *Stack) Capacity() int { return len(s.ring) }
func (s *Stack) CanUndo() bool { return s.cursor > 0 }
func (s *Stack) CanRedo() bool { return s.cursor < s.count }

// UndoLabel describes the step Undo would revert.
func (s *Stack) UndoLabel() (string, bool) {
	if s.cursor == 0 {
		return "", false
	}
	return s.at(s.cursor - 1).Label, true
}

// RedoLabel describes the step Redo would reapply.
func (s *Stack) RedoLabel() (string, bool) {
	if s.cursor == s.count {
		return "", false
	}
	return s.at(s.cursor).Label, true
}

// Entries returns the history oldest first.
func (s *Stack) Entries() []Entry {
	out := make([]Entry, s.count)
	for i := range out {
		out[i] = *s.at(i)
	}
	return out
}
