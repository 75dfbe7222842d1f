package expr

import (
	"fmt"
	"strings"
)

// Type is the static type of an expression.
type Type interface {
	isType()
	String() string
}

// IntType is a signed machine integer.
type IntType struct{}

func (IntType) isType() {}
func (IntType) String() string { return "int" }

// BoolType is the boolean type.
type BoolType struct{}

func (BoolType) isType() {}
func (BoolType) String() string { return "bool" }

// ArrayType is a fixed-length array.
type ArrayType struct {
	Elem Type
	Len  int
}

func (ArrayType) isType() {}
func (t ArrayType) String() string {
	return fmt.Sprintf("[%d]%s", t.Len, t.Elem.String())
}

// Field is one named member of a struct type.
type Field struct {
	Name string
	Type Type
}

// StructType is a named or anonymous struct.
type StructType struct {
	Name   string
	Fields []Field
}

func (StructType) isType() {}
func (t StructType) String() string {
	if t.Name != "" {
		return t.Name
	}
	parts := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		parts[i] = f.Name + " " + f.Type.String()
	}
	return "struct{" + strings.Join(parts, "; ") + "}"
}

// Field returns the named field and its position.
func (t StructType) Field(name string) (Field, int, bool) {
	for i, f := range t.Fields {
		if f.Name == name {
			return f, i, true
		}
	}
	return Field{}, -1, false
}

// PointerType is the type of an address-of expression.
type PointerType struct {
	Elem Type
}

func (PointerType) isType() {}
func (t PointerType) String() string {
	return "*" + t.Elem.String()
}

var (
	Int  Type = IntType{}
	Bool Type = BoolType{}
)

// SameType reports whether a and b denote the same type.
func SameType(a, b Type) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.String() == b.String()
}

// IsScalar reports whether values of t are a single machine word or bit.
func IsScalar(t Type) bool {
	switch t.(type) {
	case IntType, BoolType, PointerType:
		return true
	default:
		return false
	}
}
