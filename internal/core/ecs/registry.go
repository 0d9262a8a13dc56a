package ecs

import (
	"fmt"
	"reflect"
)

// ComponentTypeID identifies a registered reflectable component type.
// IDs are assigned in registration order starting at 1.
type ComponentTypeID uint16

// ComponentType describes a registered reflectable component.
type ComponentType struct {
	ID    ComponentTypeID
	Name  string
	Shape []FieldDesc

	rtype    reflect.Type
	newStore func() recordStore
}

// Registry is the type-indexed table of reflectable component types. A
// Registry is populated once at startup and shared by every World built
// from it.
type Registry struct {
	types  []*ComponentType
	byName map[string]ComponentTypeID
	byType map[reflect.Type]ComponentTypeID
}

func NewRegistry() *Registry {
	return &Registry{
		types:  make([]*ComponentType, 0, 16),
		byName: make(map[string]ComponentTypeID, 16),
		byType: make(map[reflect.Type]ComponentTypeID, 16),
	}
}

// RegisterComponent adds T to the registry under name and returns its id.
// Registering the same type twice returns the existing id. It panics on a
// name collision between different types, which is a wiring defect.
func RegisterComponent[T any, PT interface {
	*T
	Reflectable
}](r *Registry, name string) ComponentTypeID {
	rt := reflect.TypeOf((*T)(nil)).Elem()
	if id, ok := r.byType[rt]; ok {
		return id
	}
	if _, ok := r.byName[name]; ok {
		panic(fmt.Sprintf("ecs: component name %q already registered", name))
	}
	id := ComponentTypeID(len(r.types) + 1)
	shape := PT(new(T)).Describe()
	r.types = append(r.types, &ComponentType{
		ID:       id,
		Name:     name,
		Shape:    append([]FieldDesc(nil), shape...),
		rtype:    rt,
		newStore: newReflectStore[T, PT],
	})
	r.byName[name] = id
	r.byType[rt] = id
	return id
}

// Type returns the descriptor for id.
func (r *Registry) Type(id ComponentTypeID) (*ComponentType, bool) {
	if id == 0 || int(id) > len(r.types) {
		return nil, false
	}
	return r.types[id-1], true
}

// Lookup finds a component type by its registered name.
func (r *Registry) Lookup(name string) (*ComponentType, bool) {
	id, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	return r.types[id-1], true
}

// Name returns the registered name of id, or a placeholder for unknown ids.
func (r *Registry) Name(id ComponentTypeID) string {
	if t, ok := r.Type(id); ok {
		return t.Name
	}
	return fmt.Sprintf("component#%d", id)
}

// Types returns all registered descriptors in id order.
func (r *Registry) Types() []*ComponentType {
	return append([]*ComponentType(nil), r.types...)
}

// Len returns the number of registered types.
func (r *Registry) Len() int { return len(r.types) }

// TypeID returns the registered id of T.
func TypeID[T any](r *Registry) (ComponentTypeID, bool) {
	id, ok := r.byType[reflect.TypeOf((*T)(nil)).Elem()]
	return id, ok
}
