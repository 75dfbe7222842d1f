package expr

import (
	"fmt"
	"strings"
)

// Value represents a concrete value.
type Value interface {
	isValue()
	Type() Type
	String() string
	Equal(other Value) bool
}

// IntValue represents an integer constant.
type IntValue struct {
	Val int64
}

func (IntValue) isValue() {}
func (IntValue) Type() Type { return Int }
func (v IntValue) String() string {
	return fmt.Sprintf("%d", v.Val)
}

func (v IntValue) Equal(other Value) bool {
	if o, ok := other.(IntValue); ok {
		return v.Val == o.Val
	}
	return false
}

// BoolValue represents a boolean constant.
type BoolValue struct {
	Val bool
}

func (BoolValue) isValue() {}
func (BoolValue) Type() Type { return Bool }
func (v BoolValue) String() string {
	return fmt.Sprintf("%t", v.Val)
}

func (v BoolValue) Equal(other Value) bool {
	if o, ok := other.(BoolValue); ok {
		return v.Val == o.Val
	}
	return false
}

// ArrayValue is a concrete array.
type ArrayValue struct {
	Typ   ArrayType
	Elems []Value
}

func (ArrayValue) isValue() {}
func (v ArrayValue) Type() Type { return v.Typ }
func (v ArrayValue) String() string {
	parts := make([]string, len(v.Elems))
	for i, e := range v.Elems {
		parts[i] = e.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func (v ArrayValue) Equal(other Value) bool {
	o, ok := other.(ArrayValue)
	if !ok || len(o.Elems) != len(v.Elems) {
		return false
	}
	for i := range v.Elems {
		if !v.Elems[i].Equal(o.Elems[i]) {
			return false
		}
	}
	return true
}

// StructValue is a concrete struct.
type StructValue struct {
	Typ    StructType
	Fields []Value
}

func (StructValue) isValue() {}
func (v StructValue) Type() Type { return v.Typ }
func (v StructValue) String() string {
	parts := make([]string, len(v.Fields))
	for i, f := range v.Fields {
		parts[i] = v.Typ.Fields[i].Name + ": " + f.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func (v StructValue) Equal(other Value) bool {
	o, ok := other.(StructValue)
	if !ok || len(o.Fields) != len(v.Fields) {
		return false
	}
	for i := range v.Fields {
		if !v.Fields[i].Equal(o.Fields[i]) {
			return false
		}
	}
	return true
}

// Zero returns the zero value of t.
func Zero(t Type) Value {
	switch t := t.(type) {
	case BoolType:
		return BoolValue{}
	case ArrayType:
		elems := make([]Value, t.Len)
		for i := range elems {
			elems[i] = Zero(t.Elem)
		}
		return ArrayValue{Typ: t, Elems: elems}
	case StructType:
		fields := make([]Value, len(t.Fields))
		for i, f := range t.Fields {
			fields[i] = Zero(f.Type)
		}
		return StructValue{Typ: t, Fields: fields}
	default:
		return IntValue{}
	}
}
