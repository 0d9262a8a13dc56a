package component

import "github.com/l1jgo/workbench/internal/core/ecs"

// Health tracks hit points. Current may exceed Max while buffs are active.
type Health struct {
	Current int64
	Max     int64
}

var healthShape = []ecs.FieldDesc{
	{Name: "current", Kind: ecs.KindInt},
	{Name: "max", Kind: ecs.KindInt},
}

func (h *Health) Describe() []ecs.FieldDesc { return healthShape }

func (h *Health) Field(name string) (ecs.Value, bool) {
	switch name {
	case "current":
		return ecs.IntValue(h.Current), true
	case "max":
		return ecs.IntValue(h.Max), true
	}
	return ecs.Value{}, false
}

func (h *Health) SetField(name string, v ecs.Value) bool {
	if v.Kind != ecs.KindInt {
		return false
	}
	switch name {
	case "current":
		h.Current = v.Int
	case "max":
		h.Max = v.Int
	default:
		return false
	}
	return true
}
