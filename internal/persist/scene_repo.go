package persist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/l1jgo/workbench/internal/snapshot"
)

var ErrSceneNotFound = errors.New("scene not found")

// SceneInfo is a scene listing row without the snapshot body.
type SceneInfo struct {
	Name     string
	Entities int
	SavedAt  time.Time
}

// SceneRepo stores whole-world snapshots by scene name.
type SceneRepo struct {
	db *DB
}

func NewSceneRepo(db *DB) *SceneRepo {
	return &SceneRepo{db: db}
}

// Save upserts the snapshot under name.
func (r *SceneRepo) Save(ctx context.Context, name string, s *snapshot.Snapshot) error {
	if s.Target.Kind != snapshot.TargetWorld {
		return fmt.Errorf("save scene %q: want a world snapshot, got %s", name, s.Target.Kind)
	}
	body, err := snapshot.Marshal(s)
	if err != nil {
		return fmt.Errorf("save scene %q: %w", name, err)
	}
	_, err = r.db.Pool.Exec(ctx,
		`INSERT INTO scenes (name, snapshot_id, entities, body, saved_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (name) DO UPDATE
		 SET snapshot_id = EXCLUDED.snapshot_id, entities = EXCLUDED.entities,
		     body = EXCLUDED.body, saved_at = EXCLUDED.saved_at`,
		name, s.ID.String(), len(s.Entities), body, s.Taken,
	)
	if err != nil {
		return fmt.Errorf("save scene %q: %w", name, err)
	}
	return nil
}

// Load returns the snapshot saved under name.
func (r *SceneRepo) Load(ctx context.Context, name string) (*snapshot.Snapshot, error) {
	var body []byte
	err := r.db.Pool.QueryRow(ctx, `SELECT body FROM scenes WHERE name = $1`, name).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("load scene %q: %w", name, ErrSceneNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load scene %q: %w", name, err)
	}
	s, err := snapshot.Unmarshal(body)
	if err != nil {
		return nil, fmt.Errorf("load scene %q: %w", name, err)
	}
	return s, nil
}

// List returns all scenes, most recently saved first.
func (r *SceneRepo) List(ctx context.Context) ([]SceneInfo, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT name, entities, saved_at FROM scenes ORDER BY saved_at DESC, name`)
	if err != nil {
		return nil, fmt.Errorf("list scenes: %w", err)
	}
	defer rows.Close()

	var out []SceneInfo
	for rows.Next() {
		var si SceneInfo
		if err := rows.Scan(&si.Name, &si.Entities, &si.SavedAt); err != nil {
			return nil, err
		}
		out = append(out, si)
	}
	return out, rows.Err()
}

// Delete removes a scene.
func (r *SceneRepo) Delete(ctx context.Context, name string) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM scenes WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("delete scene %q: %w", name, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete scene %q: %w", name, ErrSceneNotFound)
	}
	return nil
}
