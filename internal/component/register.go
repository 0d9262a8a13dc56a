// Package component holds the built-in reflectable component types.
package component

import "github.com/l1jgo/workbench/internal/core/ecs"

// Types holds the ids assigned to the built-in components.
type Types struct {
	Position ecs.ComponentTypeID
	Velocity ecs.ComponentTypeID
	Health   ecs.ComponentTypeID
	Label    ecs.ComponentTypeID
}

// RegisterAll registers the built-in components on reg.
func RegisterAll(reg *ecs.Registry) Types {
	return Types{
		Position: ecs.RegisterComponent[Position](reg, "Position"),
		Velocity: ecs.RegisterComponent[Velocity](reg, "Velocity"),
		Health:   ecs.RegisterComponent[Health](reg, "Health"),
		Label:    ecs.RegisterComponent[Label](reg, "Label"),
	}
}

// RenderHandle links an entity to a renderer-side resource. It is
// engine-internal: not reflectable, never captured by snapshots.
type RenderHandle struct {
	Slot uint32
}
