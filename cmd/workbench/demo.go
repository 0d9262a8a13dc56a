package main

import (
	"github.com/l1jgo/workbench/internal/component"
	"github.com/l1jgo/workbench/internal/core/ecs"
)

// demoWorld is the scene used when no saved scene is configured. Visible
// entities get a render slot in a tracked store that snapshots never see.
func demoWorld(reg *ecs.Registry) (*ecs.World, *ecs.PtrComponentStore[component.RenderHandle]) {
	w := ecs.NewWorld(reg)
	handles := ecs.NewPtrComponentStore[component.RenderHandle]()
	w.Track(handles)

	player := w.CreateEntity()
	_ = ecs.Set(w, player, component.Label{Text: "player", Visible: true})
	_ = ecs.Set(w, player, component.Position{})
	_ = ecs.Set(w, player, component.Velocity{X: 1})
	_ = ecs.Set(w, player, component.Health{Current: 80, Max: 100})
	handles.Set(player, &component.RenderHandle{Slot: 1})

	crate := w.CreateEntity()
	_ = ecs.Set(w, crate, component.Label{Text: "crate", Visible: true})
	_ = ecs.Set(w, crate, component.Position{X: 5, Y: 5})
	handles.Set(crate, &component.RenderHandle{Slot: 2})

	drone := w.CreateEntity()
	_ = ecs.Set(w, drone, component.Label{Text: "drone"})
	_ = ecs.Set(w, drone, component.Position{X: -3, Y: 2})
	_ = ecs.Set(w, drone, component.Velocity{Y: 0.5})
	_ = ecs.Set(w, drone, component.Health{Current: 40, Max: 40})
	return w, handles
}
