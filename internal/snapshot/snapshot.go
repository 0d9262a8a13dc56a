// Package snapshot captures deep copies of reflectable component state and
// writes them back.
package snapshot

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/l1jgo/workbench/internal/core/ecs"
)

// TargetKind selects what a snapshot covers.
type TargetKind uint8

const (
	TargetComponent TargetKind = iota + 1 // one (entity, type) value
	TargetEntity                          // every reflectable component of one entity
	TargetWorld                           // every live entity
	TargetSelection                       // union of component captures
)

func (k TargetKind) String() string {
	switch k {
	case TargetComponent:
		return "component"
	case TargetEntity:
		return "entity"
	case TargetWorld:
		return "world"
	case TargetSelection:
		return "selection"
	}
	return fmt.Sprintf("target(%d)", uint8(k))
}

// Target identifies the part of the world a snapshot covers.
type Target struct {
	Kind      TargetKind          `json:"kind"`
	Entity    ecs.EntityID        `json:"entity,omitempty"`
	Component ecs.ComponentTypeID `json:"component,omitempty"`
}

func ComponentTarget(e ecs.EntityID, t ecs.ComponentTypeID) Target {
	return Target{Kind: TargetComponent, Entity: e, Component: t}
}

func EntityTarget(e ecs.EntityID) Target { return Target{Kind: TargetEntity, Entity: e} }

func WorldTarget() Target { return Target{Kind: TargetWorld} }

// ComponentState is one captured component value.
type ComponentState struct {
	Type   ecs.ComponentTypeID `json:"type"`
	Name   string              `json:"name"`
	Record ecs.Record          `json:"record"`
}

// EntityState is the captured state of one entity. When Exact is set the
// component list is the entity's complete reflectable set, and restoring it
// removes components that are not listed.
type EntityState struct {
	Entity     ecs.EntityID     `json:"entity"`
	Exact      bool             `json:"exact"`
	Components []ComponentState `json:"components"`
}

// Snapshot is an immutable capture. It never aliases live store memory.
type Snapshot struct {
	ID       uuid.UUID     `json:"id"`
	Taken    time.Time     `json:"taken"`
	Target   Target        `json:"target"`
	Entities []EntityState `json:"entities"`
}

// Equal reports whether two snapshots hold the same target and content.
// ID and capture time are ignored.
func (s *Snapshot) Equal(o *Snapshot) bool {
	if s == nil || o == nil {
		return s == o
	}
	if s.Target != o.Target || len(s.Entities) != len(o.Entities) {
		return false
	}
	for i := range s.Entities {
		a, b := s.Entities[i], o.Entities[i]
		if a.Entity != b.Entity || a.Exact != b.Exact || len(a.Components) != len(b.Components) {
			return false
		}
		for j := range a.Components {
			ca, cb := a.Components[j], b.Components[j]
			if ca.Type != cb.Type || !ca.Record.Equal(cb.Record) {
				return false
			}
		}
	}
	return true
}

// Lookup returns the captured record for (e, t).
func (s *Snapshot) Lookup(e ecs.EntityID, t ecs.ComponentTypeID) (ecs.Record, bool) {
	for _, es := range s.Entities {
		if es.Entity != e {
			continue
		}
		for _, cs := range es.Components {
			if cs.Type == t {
				return cs.Record, true
			}
		}
	}
	return nil, false
}

func (s *Snapshot) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[", s.Target.Kind)
	for i, es := range s.Entities {
		if i > 0 {
			b.WriteString(" ")
		}
		b.WriteString(es.Entity.String())
		b.WriteString("{")
		for j, cs := range es.Components {
			if j > 0 {
				b.WriteString(" ")
			}
			b.WriteString(cs.Name)
			b.WriteString(cs.Record.String())
		}
		b.WriteString("}")
	}
	b.WriteString("]")
	return b.String()
}

// Merge unions two snapshots into a selection. primary is the view that wins:
// where both cover a component, primary's record is kept. An exact entity
// state also covers the components it does not list (they were absent), so
// an exact primary replaces secondary's view of that entity entirely, and an
// exact secondary keeps its component set under primary's records.
//
// History merges a group's Before snapshots earliest first and its After
// snapshots latest first.
func Merge(primary, secondary *Snapshot) *Snapshot {
	byEntity := make(map[ecs.EntityID]*EntityState, len(primary.Entities)+len(secondary.Entities))
	for _, es := range primary.Entities {
		cp := EntityState{Entity: es.Entity, Exact: es.Exact}
		cp.Components = append(cp.Components, es.Components...)
		byEntity[es.Entity] = &cp
	}
	for _, es := range secondary.Entities {
		dst, ok := byEntity[es.Entity]
		if !ok {
			cp := EntityState{Entity: es.Entity, Exact: es.Exact}
			cp.Components = append(cp.Components, es.Components...)
			byEntity[es.Entity] = &cp
			continue
		}
		if dst.Exact {
			continue
		}
		dst.Exact = es.Exact
		for _, cs := range es.Components {
			if !hasComponent(dst.Components, cs.Type) {
				dst.Components = append(dst.Components, cs)
			}
		}
	}

	out := &Snapshot{
		ID:       uuid.New(),
		Taken:    primary.Taken,
		Target:   Target{Kind: TargetSelection},
		Entities: make([]EntityState, 0, len(byEntity)),
	}
	if primary.Target == secondary.Target {
		out.Target = primary.Target
	}
	for _, es := range byEntity {
		sort.Slice(es.Components, func(i, j int) bool { return es.Components[i].Type < es.Components[j].Type })
		out.Entities = append(out.Entities, *es)
	}
	sort.Slice(out.Entities, func(i, j int) bool { return out.Entities[i].Entity < out.Entities[j].Entity })
	return out
}

func hasComponent(list []ComponentState, t ecs.ComponentTypeID) bool {
	for _, cs := range list {
		if cs.Type == t {
			return true
		}
	}
	return false
}

// Marshal encodes a snapshot as JSON.
func Marshal(s *Snapshot) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot %s: %w", s.ID, err)
	}
	return data, nil
}

// Unmarshal decodes a JSON snapshot.
func Unmarshal(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &s, nil
}
