package model

import "fmt"

// ValueKind tags the closed set of parameter/response value shapes a
// request interpreter decodes (spec.md §9, "Free-form variants →
// enumerated payloads").
type ValueKind int

const (
	ValuePrimitive ValueKind = iota
	ValueText
	ValueComposite
	ValueList
)

// Value is a small sum type for interface parameter/response values.
// Only one of the typed fields is meaningful, selected by Kind;
// callers that need a concrete Go type use the Datatype name to pick
// the right decode path in the per-interface adapter table.
type Value struct {
	Kind     ValueKind
	Datatype string

	Primitive any
	Text      string
	Composite map[string]Value
	List      []Value
}

// NewPrimitive wraps a scalar (bool, int64, float64, ...) value.
func NewPrimitive(datatype string, v any) Value {
	return Value{Kind: ValuePrimitive, Datatype: datatype, Primitive: v}
}

// NewText wraps a string value.
func NewText(v string) Value {
	return Value{Kind: ValueText, Datatype: "String", Text: v}
}

// NewComposite wraps a struct-shaped value as a field map.
func NewComposite(datatype string, fields map[string]Value) Value {
	return Value{Kind: ValueComposite, Datatype: datatype, Composite: fields}
}

// NewList wraps a homogeneous list value.
func NewList(datatype string, items []Value) Value {
	return Value{Kind: ValueList, Datatype: datatype, List: items}
}

// String renders a Value for logging; never used for wire encoding.
func (v Value) String() string {
	switch v.Kind {
	case ValuePrimitive:
		return fmt.Sprintf("%v", v.Primitive)
	case ValueText:
		return v.Text
	case ValueComposite:
		return fmt.Sprintf("%s%v", v.Datatype, v.Composite)
	case ValueList:
		return fmt.Sprintf("%s%v", v.Datatype, v.List)
	default:
		return "<invalid value>"
	}
}
