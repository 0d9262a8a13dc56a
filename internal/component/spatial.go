package component

import "github.com/l1jgo/workbench/internal/core/ecs"

// Position is an entity's location in world units.
type Position struct {
	X float64
	Y float64
}

var positionShape = []ecs.FieldDesc{
	{Name: "x", Kind: ecs.KindFloat},
	{Name: "y", Kind: ecs.KindFloat},
}

func (p *Position) Describe() []ecs.FieldDesc { return positionShape }

func (p *Position) Field(name string) (ecs.Value, bool) {
	switch name {
	case "x":
		return ecs.FloatValue(p.X), true
	case "y":
		return ecs.FloatValue(p.Y), true
	}
	return ecs.Value{}, false
}

func (p *Position) SetField(name string, v ecs.Value) bool {
	if v.Kind != ecs.KindFloat {
		return false
	}
	switch name {
	case "x":
		p.X = v.Float
	case "y":
		p.Y = v.Float
	default:
		return false
	}
	return true
}

// Velocity is applied to Position by MotionSystem, in world units per second.
type Velocity struct {
	X float64
	Y float64
}

var velocityShape = []ecs.FieldDesc{
	{Name: "x", Kind: ecs.KindFloat},
	{Name: "y", Kind: ecs.KindFloat},
}

func (v *Velocity) Describe() []ecs.FieldDesc { return velocityShape }

func (v *Velocity) Field(name string) (ecs.Value, bool) {
	switch name {
	case "x":
		return ecs.FloatValue(v.X), true
	case "y":
		return ecs.FloatValue(v.Y), true
	}
	return ecs.Value{}, false
}

func (v *Velocity) SetField(name string, val ecs.Value) bool {
	if val.Kind != ecs.KindFloat {
		return false
	}
	switch name {
	case "x":
		v.X = val.Float
	case "y":
		v.Y = val.Float
	default:
		return false
	}
	return true
}
