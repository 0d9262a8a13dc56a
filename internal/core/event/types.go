package event

import (
	"time"

	"github.com/l1jgo/workbench/internal/core/ecs"
)

// Editor events. All are emitted by the editor core and delivered on the
// following tick; nothing in the core waits for delivery.

type ModeChanged struct {
	From  string
	To    string
	Event string
}

type HistoryPushed struct {
	Label   string
	Outcome string // appended, merged or collapsed
	Depth   int
}

type HistoryUndone struct {
	Label string
}

type HistoryRedone struct {
	Label string
}

// RestoreConflict is emitted when a restore could not reach some entities.
type RestoreConflict struct {
	Cause    string // undo, redo, stop
	Entities []ecs.EntityID
}

type EditGroupClosed struct {
	Label     string
	Abandoned bool
	Idle      bool
}

type SceneLoaded struct {
	Name     string
	Entities int
}

type ScriptsReloaded struct {
	Files int
	Took  time.Duration
}
