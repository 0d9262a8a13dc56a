package ecs

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrNotFound is returned when an entity is dead or lacks the component.
	ErrNotFound = errors.New("not found")
	// ErrTypeMismatch is returned when a record does not match the
	// component's registered shape.
	ErrTypeMismatch = errors.New("type mismatch")
	// ErrEntityExists is returned when claiming an id that is already live.
	ErrEntityExists = errors.New("entity exists")
)

// World is the top-level ECS container. It owns the entity pool, one record
// store per registered component type, any engine-internal stores tracked
// for cleanup, and a deferred destruction queue flushed each tick.
//
// World is the only path to component data: it is the reflective accessor
// the editor reads and writes through.
type World struct {
	pool         *EntityPool
	registry     *Registry
	stores       []recordStore // indexed by ComponentTypeID-1, created lazily
	internal     []Removable
	destroyQueue []EntityID
}

func NewWorld(reg *Registry) *World {
	return &World{
		pool:         NewEntityPool(),
		registry:     reg,
		stores:       make([]recordStore, reg.Len()),
		destroyQueue: make([]EntityID, 0, 64),
	}
}

func (w *World) Pool() *EntityPool   { return w.pool }
func (w *World) Registry() *Registry { return w.registry }

func (w *World) CreateEntity() EntityID {
	return w.pool.Create()
}

// Spawn materializes an entity with a specific id.
func (w *World) Spawn(id EntityID) error {
	return w.pool.Claim(id)
}

func (w *World) Alive(id EntityID) bool {
	return w.pool.Alive(id)
}

// Exists reports whether id refers to a live entity. Never-issued and
// destroyed ids both report false.
func (w *World) Exists(id EntityID) bool {
	return w.pool.Alive(id)
}

// Track registers an engine-internal, non-reflectable store so its data is
// dropped when an entity is destroyed. Tracked stores are invisible to the
// accessor and to snapshots.
func (w *World) Track(store Removable) {
	w.internal = append(w.internal, store)
}

// DestroyEntity removes an entity and all its components immediately.
func (w *World) DestroyEntity(id EntityID) {
	if !w.pool.Alive(id) {
		return
	}
	for _, s := range w.stores {
		if s != nil {
			s.Remove(id)
		}
	}
	for _, s := range w.internal {
		s.Remove(id)
	}
	w.pool.Destroy(id)
}

// MarkForDestruction queues an entity for end-of-tick cleanup.
func (w *World) MarkForDestruction(id EntityID) {
	w.destroyQueue = append(w.destroyQueue, id)
}

// FlushDestroyQueue destroys all queued entities and clears their components.
// Called by the cleanup phase at the end of each tick.
func (w *World) FlushDestroyQueue() {
	for _, id := range w.destroyQueue {
		w.DestroyEntity(id)
	}
	w.destroyQueue = w.destroyQueue[:0]
}

// Entities returns all live entities sorted by id.
func (w *World) Entities() []EntityID {
	ids := make([]EntityID, 0, w.pool.Len())
	w.pool.Each(func(id EntityID) { ids = append(ids, id) })
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// EntityCount returns the number of live entities.
func (w *World) EntityCount() int {
	return w.pool.Len()
}

// store returns the record store for t, creating it on first use.
func (w *World) store(t ComponentTypeID) (recordStore, bool) {
	ct, ok := w.registry.Type(t)
	if !ok {
		return nil, false
	}
	idx := int(t) - 1
	for idx >= len(w.stores) {
		w.stores = append(w.stores, nil)
	}
	if w.stores[idx] == nil {
		w.stores[idx] = ct.newStore()
	}
	return w.stores[idx], true
}

// ListComponents returns the reflectable component types present on id in
// type order. It returns an empty slice for dead entities.
func (w *World) ListComponents(id EntityID) []ComponentTypeID {
	out := make([]ComponentTypeID, 0, 4)
	if !w.pool.Alive(id) {
		return out
	}
	for i, s := range w.stores {
		if s != nil && s.has(id) {
			out = append(out, ComponentTypeID(i+1))
		}
	}
	return out
}

// Has reports whether id is alive and holds component t.
func (w *World) Has(id EntityID, t ComponentTypeID) bool {
	if !w.pool.Alive(id) {
		return false
	}
	s, ok := w.store(t)
	return ok && s.has(id)
}

// Read returns a copy of component t on id.
func (w *World) Read(id EntityID, t ComponentTypeID) (Record, error) {
	if !w.pool.Alive(id) {
		return nil, fmt.Errorf("read %s on %s: %w", w.registry.Name(t), id, ErrNotFound)
	}
	s, ok := w.store(t)
	if !ok {
		return nil, fmt.Errorf("read %s on %s: %w", w.registry.Name(t), id, ErrNotFound)
	}
	rec, ok := s.read(id)
	if !ok {
		return nil, fmt.Errorf("read %s on %s: %w", w.registry.Name(t), id, ErrNotFound)
	}
	return rec, nil
}

// Write overwrites component t on id with rec. The record must match the
// registered shape exactly. On error the live value is unchanged.
func (w *World) Write(id EntityID, t ComponentTypeID, rec Record) error {
	s, ct, err := w.resolve("write", id, t)
	if err != nil {
		return err
	}
	if !s.has(id) {
		return fmt.Errorf("write %s on %s: %w", ct.Name, id, ErrNotFound)
	}
	if !rec.MatchesShape(ct.Shape) {
		return fmt.Errorf("write %s on %s: %w", ct.Name, id, ErrTypeMismatch)
	}
	if !s.write(id, rec) {
		return fmt.Errorf("write %s on %s: %w", ct.Name, id, ErrTypeMismatch)
	}
	return nil
}

// Insert attaches component t to id, replacing any existing value.
func (w *World) Insert(id EntityID, t ComponentTypeID, rec Record) error {
	s, ct, err := w.resolve("insert", id, t)
	if err != nil {
		return err
	}
	if !rec.MatchesShape(ct.Shape) {
		return fmt.Errorf("insert %s on %s: %w", ct.Name, id, ErrTypeMismatch)
	}
	if !s.insert(id, rec) {
		return fmt.Errorf("insert %s on %s: %w", ct.Name, id, ErrTypeMismatch)
	}
	return nil
}

// Remove detaches component t from id. Removing an absent component is a no-op.
func (w *World) Remove(id EntityID, t ComponentTypeID) error {
	s, _, err := w.resolve("remove", id, t)
	if err != nil {
		return err
	}
	s.Remove(id)
	return nil
}

func (w *World) resolve(op string, id EntityID, t ComponentTypeID) (recordStore, *ComponentType, error) {
	ct, ok := w.registry.Type(t)
	if !ok {
		return nil, nil, fmt.Errorf("%s %s on %s: %w", op, w.registry.Name(t), id, ErrNotFound)
	}
	if !w.pool.Alive(id) {
		return nil, nil, fmt.Errorf("%s %s on %s: %w", op, ct.Name, id, ErrNotFound)
	}
	s, _ := w.store(t)
	return s, ct, nil
}

// StoreOf returns the typed store for a registered reflectable type T, for
// simulation code that wants direct pointer access. It panics if T was never
// registered, which is a wiring defect.
func StoreOf[T any](w *World) *PtrComponentStore[T] {
	id, ok := TypeID[T](w.registry)
	if !ok {
		panic(fmt.Sprintf("ecs: component %T not registered", *new(T)))
	}
	s, _ := w.store(id)
	return s.typed().(*PtrComponentStore[T])
}

// Get returns a pointer to id's component T.
func Get[T any](w *World, id EntityID) (*T, bool) {
	if !w.pool.Alive(id) {
		return nil, false
	}
	return StoreOf[T](w).Get(id)
}

// Set attaches or overwrites component T on id.
func Set[T any](w *World, id EntityID, c T) error {
	if !w.pool.Alive(id) {
		return fmt.Errorf("set %T on %s: %w", c, id, ErrNotFound)
	}
	StoreOf[T](w).Set(id, &c)
	return nil
}
