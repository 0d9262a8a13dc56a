package ecs

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind is the scalar type carried by a Value.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
)

var kindNames = [...]string{
	KindInvalid: "invalid",
	KindBool:    "bool",
	KindInt:     "int",
	KindFloat:   "float",
	KindString:  "string",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

func (k Kind) MarshalText() ([]byte, error) {
	if k == KindInvalid || int(k) >= len(kindNames) {
		return nil, fmt.Errorf("marshal kind %d", k)
	}
	return []byte(kindNames[k]), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	for i, name := range kindNames {
		if i != int(KindInvalid) && name == string(b) {
			*k = Kind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown kind %q", b)
}

// Value is a tagged scalar. Only the payload field matching Kind is meaningful.
type Value struct {
	Kind  Kind    `json:"kind"`
	Bool  bool    `json:"bool,omitempty"`
	Int   int64   `json:"int,omitempty"`
	Float float64 `json:"float,omitempty"`
	Str   string  `json:"str,omitempty"`
}

func BoolValue(v bool) Value     { return Value{Kind: KindBool, Bool: v} }
func IntValue(v int64) Value     { return Value{Kind: KindInt, Int: v} }
func FloatValue(v float64) Value { return Value{Kind: KindFloat, Float: v} }
func StringValue(v string) Value { return Value{Kind: KindString, Str: v} }

// Equal compares kind and payload. Floats compare bit-for-bit so NaN equals
// itself and -0 differs from +0.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindBool:
		return v.Bool == o.Bool
	case KindInt:
		return v.Int == o.Int
	case KindFloat:
		return math.Float64bits(v.Float) == math.Float64bits(o.Float)
	case KindString:
		return v.Str == o.Str
	}
	return true
}

func (v Value) String() string {
	switch v.Kind {
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case KindString:
		return strconv.Quote(v.Str)
	}
	return "<invalid>"
}

// ParseValue parses text into a Value of the given kind. Strings may be
// quoted or bare.
func ParseValue(kind Kind, s string) (Value, error) {
	switch kind {
	case KindBool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return Value{}, fmt.Errorf("parse bool %q: %w", s, err)
		}
		return BoolValue(b), nil
	case KindInt:
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("parse int %q: %w", s, err)
		}
		return IntValue(i), nil
	case KindFloat:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Value{}, fmt.Errorf("parse float %q: %w", s, err)
		}
		return FloatValue(f), nil
	case KindString:
		if strings.HasPrefix(s, `"`) {
			u, err := strconv.Unquote(s)
			if err != nil {
				return Value{}, fmt.Errorf("parse string %s: %w", s, err)
			}
			return StringValue(u), nil
		}
		return StringValue(s), nil
	}
	return Value{}, fmt.Errorf("parse value: unsupported kind %s", kind)
}

// FieldDesc is one entry of a component's registered shape.
type FieldDesc struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
}

// Field is a named value inside a Record.
type Field struct {
	Name  string `json:"name"`
	Value Value  `json:"value"`
}

// Record is the ordered field sequence a reflectable component reads as and
// is reconstructed from.
type Record []Field

// Shape returns the (name, kind) sequence of the record.
func (r Record) Shape() []FieldDesc {
	shape := make([]FieldDesc, len(r))
	for i, f := range r {
		shape[i] = FieldDesc{Name: f.Name, Kind: f.Value.Kind}
	}
	return shape
}

// Get returns the value of the named field.
func (r Record) Get(name string) (Value, bool) {
	for _, f := range r {
		if f.Name == name {
			return f.Value, true
		}
	}
	return Value{}, false
}

// With returns a copy of r with the named field replaced. The second result
// is false if the field does not exist.
func (r Record) With(name string, v Value) (Record, bool) {
	out := r.Clone()
	for i := range out {
		if out[i].Name == name {
			out[i].Value = v
			return out, true
		}
	}
	return out, false
}

func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	copy(out, r)
	return out
}

func (r Record) Equal(o Record) bool {
	if len(r) != len(o) {
		return false
	}
	for i := range r {
		if r[i].Name != o[i].Name || !r[i].Value.Equal(o[i].Value) {
			return false
		}
	}
	return true
}

func (r Record) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(f.Name)
		b.WriteByte(':')
		b.WriteString(f.Value.String())
	}
	b.WriteByte('}')
	return b.String()
}

// MatchesShape reports whether the record has exactly the given field names
// and kinds, in order.
func (r Record) MatchesShape(shape []FieldDesc) bool {
	if len(r) != len(shape) {
		return false
	}
	for i, f := range r {
		if f.Name != shape[i].Name || f.Value.Kind != shape[i].Kind {
			return false
		}
	}
	return true
}
