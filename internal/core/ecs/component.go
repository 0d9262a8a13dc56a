package ecs

// Removable is implemented by all component stores so the World can
// bulk-remove an entity's data from every store on destroy.
type Removable interface {
	Remove(id EntityID)
}

// Reflectable is the capability a component type opts into so the editor can
// read and write it generically. It is implemented on the pointer type.
type Reflectable interface {
	// Describe returns the field names and kinds in a fixed order.
	Describe() []FieldDesc
	Field(name string) (Value, bool)
	// SetField reports false if the name is unknown or the kind is wrong.
	SetField(name string, v Value) bool
}

// PtrComponentStore is a generic typed map store for ECS components.
type PtrComponentStore[T any] struct {
	data map[EntityID]*T
}

func NewPtrComponentStore[T any]() *PtrComponentStore[T] {
	return &PtrComponentStore[T]{
		data: make(map[EntityID]*T, 256),
	}
}

func (s *PtrComponentStore[T]) Set(id EntityID, c *T) {
	s.data[id] = c
}

func (s *PtrComponentStore[T]) Get(id EntityID) (*T, bool) {
	c, ok := s.data[id]
	return c, ok
}

func (s *PtrComponentStore[T]) Remove(id EntityID) {
	delete(s.data, id)
}

func (s *PtrComponentStore[T]) Has(id EntityID) bool {
	_, ok := s.data[id]
	return ok
}

func (s *PtrComponentStore[T]) Len() int {
	return len(s.data)
}

func (s *PtrComponentStore[T]) Each(fn func(EntityID, *T)) {
	for id, c := range s.data {
		fn(id, c)
	}
}

// recordStore is the type-erased view of a reflectable component store.
type recordStore interface {
	Removable
	has(id EntityID) bool
	read(id EntityID) (Record, bool)
	// write overwrites an existing component; false means the component
	// rejected a field.
	write(id EntityID, rec Record) bool
	insert(id EntityID, rec Record) bool
	typed() any
}

// reflectStore adapts a PtrComponentStore of a Reflectable type to recordStore.
type reflectStore[T any, PT interface {
	*T
	Reflectable
}] struct {
	*PtrComponentStore[T]
}

func newReflectStore[T any, PT interface {
	*T
	Reflectable
}]() recordStore {
	return reflectStore[T, PT]{NewPtrComponentStore[T]()}
}

func (s reflectStore[T, PT]) has(id EntityID) bool { return s.Has(id) }

func (s reflectStore[T, PT]) typed() any { return s.PtrComponentStore }

func (s reflectStore[T, PT]) read(id EntityID) (Record, bool) {
	c, ok := s.data[id]
	if !ok {
		return nil, false
	}
	return readRecord(PT(c)), true
}

func (s reflectStore[T, PT]) write(id EntityID, rec Record) bool {
	c, ok := s.data[id]
	if !ok {
		return false
	}
	// Apply to a copy so a rejected field leaves the live value untouched.
	tmp := *c
	if !applyRecord(PT(&tmp), rec) {
		return false
	}
	*c = tmp
	return true
}

func (s reflectStore[T, PT]) insert(id EntityID, rec Record) bool {
	c := new(T)
	if !applyRecord(PT(c), rec) {
		return false
	}
	s.data[id] = c
	return true
}

func readRecord(r Reflectable) Record {
	shape := r.Describe()
	rec := make(Record, 0, len(shape))
	for _, f := range shape {
		v, _ := r.Field(f.Name)
		rec = append(rec, Field{Name: f.Name, Value: v})
	}
	return rec
}

func applyRecord(r Reflectable, rec Record) bool {
	for _, f := range rec {
		if !r.SetField(f.Name, f.Value) {
			return false
		}
	}
	return true
}
