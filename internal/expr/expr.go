package expr

import (
	"fmt"
	"strings"
)

// Expr represents an expression.
type Expr interface {
	isExpr()
	Type() Type
	String() string
}

// ConstExpr is a literal value.
type ConstExpr struct {
	Val Value
}

func (ConstExpr) isExpr() {}
func (e ConstExpr) Type() Type { return e.Val.Type() }
func (e ConstExpr) String() string { return e.Val.String() }

// IdentExpr is a reference to a program variable. Static marks variables
// with whole-program storage duration; it is fixed by the front end's symbol
// table when the identifier is created.
type IdentExpr struct {
	Name   string
	Typ    Type
	Static bool
}

func (IdentExpr) isExpr() {}
func (e IdentExpr) Type() Type { return e.Typ }
func (e IdentExpr) String() string { return e.Name }

// MemberExpr selects a struct field.
type MemberExpr struct {
	X     Expr
	Field string
	Typ   Type
}

func (MemberExpr) isExpr() {}
func (e MemberExpr) Type() Type { return e.Typ }
func (e MemberExpr) String() string {
	return paren(e.X) + "." + e.Field
}

// IndexExpr selects an array element.
type IndexExpr struct {
	X     Expr
	Index Expr
	Typ   Type
}

func (IndexExpr) isExpr() {}
func (e IndexExpr) Type() Type { return e.Typ }
func (e IndexExpr) String() string {
	return paren(e.X) + "[" + e.Index.String() + "]"
}

// AddrExpr takes the address of an object or array element.
type AddrExpr struct {
	X   Expr
	Typ Type
}

func (AddrExpr) isExpr() {}
func (e AddrExpr) Type() Type { return e.Typ }
func (e AddrExpr) String() string {
	return "&" + paren(e.X)
}

// BinaryExpr represents a binary expression.
type BinaryExpr struct {
	Op    BinaryOp
	Left  Expr
	Right Expr
}

func (BinaryExpr) isExpr() {}
func (e BinaryExpr) Type() Type {
	if e.Op.IsComparison() || e.Op.IsLogical() {
		return Bool
	}
	return e.Left.Type()
}
func (e BinaryExpr) String() string {
	return paren(e.Left) + " " + e.Op.String() + " " + paren(e.Right)
}

// UnaryExpr represents a unary expression.
type UnaryExpr struct {
	Op      UnaryOp
	Operand Expr
}

func (UnaryExpr) isExpr() {}
func (e UnaryExpr) Type() Type {
	if e.Op == OpNot {
		return Bool
	}
	return e.Operand.Type()
}
func (e UnaryExpr) String() string {
	return e.Op.String() + paren(e.Operand)
}

// IteExpr is the conditional expression Cond ? Then : Else.
type IteExpr struct {
	Cond Expr
	Then Expr
	Else Expr
}

func (IteExpr) isExpr() {}
func (e IteExpr) Type() Type { return e.Then.Type() }
func (e IteExpr) String() string {
	return paren(e.Cond) + " ? " + paren(e.Then) + " : " + paren(e.Else)
}

// WithExpr is the array Array with element Index replaced by Value.
type WithExpr struct {
	Array Expr
	Index Expr
	Value Expr
}

func (WithExpr) isExpr() {}
func (e WithExpr) Type() Type { return e.Array.Type() }
func (e WithExpr) String() string {
	return paren(e.Array) + " with [" + e.Index.String() + " := " + e.Value.String() + "]"
}

// StructExpr builds a struct value from its field values in declaration
// order.
type StructExpr struct {
	Typ    StructType
	Fields []Expr
}

func (StructExpr) isExpr() {}
func (e StructExpr) Type() Type { return e.Typ }
func (e StructExpr) String() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = e.Typ.Fields[i].Name + ": " + f.String()
	}
	return e.Typ.String() + "{" + strings.Join(parts, ", ") + "}"
}

// ArrayExpr builds an array value from its elements.
type ArrayExpr struct {
	Typ   ArrayType
	Elems []Expr
}

func (ArrayExpr) isExpr() {}
func (e ArrayExpr) Type() Type { return e.Typ }
func (e ArrayExpr) String() string {
	parts := make([]string, len(e.Elems))
	for i, el := range e.Elems {
		parts[i] = el.String()
	}
	return e.Typ.String() + "{" + strings.Join(parts, ", ") + "}"
}

// SymbolExpr is a versioned SSA symbol. Symbols are the only variables that
// reach a decision procedure.
type SymbolExpr struct {
	Name string
	Typ  Type
}

func (SymbolExpr) isExpr() {}
func (e SymbolExpr) Type() Type { return e.Typ }
func (e SymbolExpr) String() string { return e.Name }

// NondetExpr is a side effect producing an arbitrary value.
type NondetExpr struct {
	Typ Type
}

func (NondetExpr) isExpr() {}
func (e NondetExpr) Type() Type { return e.Typ }
func (e NondetExpr) String() string {
	return "nondet(" + e.Typ.String() + ")"
}

// UpdateExpr is an increment or decrement of Target nested in an
// expression. Post selects whether the expression yields the old value.
type UpdateExpr struct {
	Target Expr
	Op     UpdateOp
	Post   bool
}

func (UpdateExpr) isExpr() {}
func (e UpdateExpr) Type() Type { return e.Target.Type() }
func (e UpdateExpr) String() string {
	if e.Post {
		return paren(e.Target) + e.Op.String()
	}
	return e.Op.String() + paren(e.Target)
}

func paren(e Expr) string {
	switch e.(type) {
	case BinaryExpr, IteExpr, WithExpr:
		return "(" + e.String() + ")"
	default:
		return e.String()
	}
}

// HasSideEffects reports whether e contains a NondetExpr or UpdateExpr.
func HasSideEffects(e Expr) bool {
	found := false
	Walk(e, func(n Expr) bool {
		switch n.(type) {
		case NondetExpr, UpdateExpr:
			found = true
		}
		return !found
	})
	return found
}

// Symbols returns the distinct symbol names in e in first-occurrence order.
func Symbols(e Expr) []SymbolExpr {
	seen := make(map[string]bool)
	var out []SymbolExpr
	Walk(e, func(n Expr) bool {
		if s, ok := n.(SymbolExpr); ok && !seen[s.Name] {
			seen[s.Name] = true
			out = append(out, s)
		}
		return true
	})
	return out
}

// MustBool panics if e is not boolean. It guards constructors used by the
// SSA engine, where a type mismatch is a programming error.
func MustBool(e Expr) Expr {
	if _, ok := e.Type().(BoolType); !ok {
		panic(fmt.Sprintf("expr: %s has type %s, want bool", e, e.Type()))
	}
	return e
}
