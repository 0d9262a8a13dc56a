package persist

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/l1jgo/workbench/internal/core/event"
)

// JournalEntry is one editor action in the session journal.
type JournalEntry struct {
	Kind   string // "mode", "push", "undo", "redo", "conflict", "scene"
	Label  string
	Detail string
	Scene  string
	At     time.Time
	// Processed is set by MarkProcessed; Write ignores it.
	Processed bool
}

type JournalRepo struct {
	db *DB
}

func NewJournalRepo(db *DB) *JournalRepo {
	return &JournalRepo{db: db}
}

// Write inserts a batch of entries in a single transaction.
func (r *JournalRepo) Write(ctx context.Context, entries []JournalEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("journal begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, e := range entries {
		if _, err := tx.Exec(ctx,
			`INSERT INTO editor_journal (kind, label, detail, scene, at)
			 VALUES ($1, $2, $3, $4, $5)`,
			e.Kind, e.Label, e.Detail, e.Scene, e.At,
		); err != nil {
			return fmt.Errorf("journal insert: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// Recent returns the latest n entries, newest first.
func (r *JournalRepo) Recent(ctx context.Context, n int) ([]JournalEntry, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT kind, label, detail, scene, at, processed FROM editor_journal ORDER BY at DESC, id DESC LIMIT $1`, n)
	if err != nil {
		return nil, fmt.Errorf("journal recent: %w", err)
	}
	defer rows.Close()

	var out []JournalEntry
	for rows.Next() {
		var e JournalEntry
		if err := rows.Scan(&e.Kind, &e.Label, &e.Detail, &e.Scene, &e.At, &e.Processed); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// MarkProcessed flags every unprocessed entry. The console's journal command
// calls it after listing, so the next listing marks only newer entries.
func (r *JournalRepo) MarkProcessed(ctx context.Context) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE editor_journal SET processed = TRUE WHERE processed = FALSE`,
	)
	return err
}

// Journal buffers editor events as journal entries until drained. It runs
// on the editor loop, like every bus subscriber.
type Journal struct {
	now     func() time.Time
	scene   string
	pending []JournalEntry
}

// NewJournal subscribes a journal to bus.
func NewJournal(bus *event.Bus, now func() time.Time) *Journal {
	if now == nil {
		now = time.Now
	}
	j := &Journal{now: now}
	event.Subscribe(bus, func(e event.ModeChanged) {
		j.add("mode", e.Event, e.From+" -> "+e.To)
	})
	event.Subscribe(bus, func(e event.HistoryPushed) {
		j.add("push", e.Label, e.Outcome)
	})
	event.Subscribe(bus, func(e event.HistoryUndone) {
		j.add("undo", e.Label, "")
	})
	event.Subscribe(bus, func(e event.HistoryRedone) {
		j.add("redo", e.Label, "")
	})
	event.Subscribe(bus, func(e event.RestoreConflict) {
		ids := make([]string, len(e.Entities))
		for i, id := range e.Entities {
			ids[i] = id.String()
		}
		j.add("conflict", e.Cause, strings.Join(ids, ","))
	})
	event.Subscribe(bus, func(e event.SceneLoaded) {
		j.scene = e.Name
		j.add("scene", e.Name, fmt.Sprintf("%d entities", e.Entities))
	})
	return j
}

func (j *Journal) add(kind, label, detail string) {
	j.pending = append(j.pending, JournalEntry{Kind: kind, Label: label, Detail: detail, Scene: j.scene, At: j.now()})
}

// Drain returns the buffered entries and starts a new buffer.
func (j *Journal) Drain() []JournalEntry {
	out := j.pending
	j.pending = nil
	return out
}
