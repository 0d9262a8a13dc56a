package component

import "github.com/l1jgo/workbench/internal/core/ecs"

// Label is the display name shown in the hierarchy.
type Label struct {
	Text    string
	Visible bool
}

var labelShape = []ecs.FieldDesc{
	{Name: "text", Kind: ecs.KindString},
	{Name: "visible", Kind: ecs.KindBool},
}

func (l *Label) Describe() []ecs.FieldDesc { return labelShape }

func (l *Label) Field(name string) (ecs.Value, bool) {
	switch name {
	case "text":
		return ecs.StringValue(l.Text), true
	case "visible":
		return ecs.BoolValue(l.Visible), true
	}
	return ecs.Value{}, false
}

func (l *Label) SetField(name string, v ecs.Value) bool {
	switch {
	case name == "text" && v.Kind == ecs.KindString:
		l.Text = v.Str
	case name == "visible" && v.Kind == ecs.KindBool:
		l.Visible = v.Bool
	default:
		return false
	}
	return true
}
