package program

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gnolang/summarizer/internal/expr"
)

// Object is one assignable storage location: a base identifier plus a path
// of field selectors. Index selectors are never part of an object; an array
// is a single object.
type Object struct {
	e      expr.Expr
	id     string
	base   string
	static bool
}

// NewObject returns the object denoted by e, which must be an identifier or
// a chain of field selections on an identifier.
func NewObject(e expr.Expr) (Object, bool) {
	cur := e
	for {
		switch n := cur.(type) {
		case expr.MemberExpr:
			cur = n.X
			continue
		case expr.IdentExpr:
			if strings.Contains(n.Name, "#") {
				return Object{}, false
			}
			return Object{e: e, id: e.String(), base: n.Name, static: n.Static}, true
		}
		return Object{}, false
	}
}

// MustObject is like NewObject but panics if e is not an object.
func MustObject(e expr.Expr) Object {
	o, ok := NewObject(e)
	if !ok {
		panic(fmt.Sprintf("program: %s is not an object", e))
	}
	return o
}

// Identifier returns the unique textual identity of the object.
func (o Object) Identifier() string { return o.id }

// Base returns the name of the root identifier.
func (o Object) Base() string { return o.base }

// Expr returns the syntactic expression denoting the object.
func (o Object) Expr() expr.Expr { return o.e }

// Type returns the type of the stored value.
func (o Object) Type() expr.Type { return o.e.Type() }

// Static reports whether the object has whole-program storage duration.
func (o Object) Static() bool { return o.static }

// Equal reports structural equality.
func (o Object) Equal(p Object) bool { return o.id == p.id }

// IsZero reports whether o is the zero Object.
func (o Object) IsZero() bool { return o.e == nil }

func (o Object) String() string { return o.id }

// Leaves expands a struct-typed expression into the projections of its
// scalar and array fields, in field order. Other expressions are returned
// unchanged.
func Leaves(e expr.Expr) []expr.Expr {
	var out []expr.Expr
	stack := []expr.Expr{e}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		st, ok := cur.Type().(expr.StructType)
		if !ok {
			out = append(out, cur)
			continue
		}
		for i := len(st.Fields) - 1; i >= 0; i-- {
			stack = append(stack, expr.Project(cur, st.Fields[i].Name))
		}
	}
	return out
}

// LeafObjects returns the leaf objects of the object expression e.
func LeafObjects(e expr.Expr) []Object {
	var out []Object
	for _, leaf := range Leaves(e) {
		if o, ok := NewObject(leaf); ok {
			out = append(out, o)
		}
	}
	return out
}

// LvalueRoot strips index selectors from an assignment target and returns
// the written object expression: a[i].f[j] is rooted at a[i].f, whose root
// is a.
func LvalueRoot(lhs expr.Expr) (expr.Expr, error) {
	cur := lhs
	for {
		switch n := cur.(type) {
		case expr.IndexExpr:
			cur = n.X
		case expr.MemberExpr:
			if _, ok := NewObject(n); ok {
				return n, nil
			}
			return nil, fmt.Errorf("unsupported assignment target %s", lhs)
		case expr.IdentExpr:
			return n, nil
		default:
			return nil, fmt.Errorf("unsupported assignment target %s", lhs)
		}
	}
}

// LvalueObjects returns the leaf objects written by an assignment to lhs.
func LvalueObjects(lhs expr.Expr) ([]Object, error) {
	root, err := LvalueRoot(lhs)
	if err != nil {
		return nil, err
	}
	return LeafObjects(root), nil
}

// UpdatedObjects returns the targets of increment and decrement side effects
// inside e.
func UpdatedObjects(e expr.Expr) []Object {
	if e == nil {
		return nil
	}
	var out []Object
	expr.Walk(e, func(n expr.Expr) bool {
		if u, ok := n.(expr.UpdateExpr); ok {
			if objs, err := LvalueObjects(u.Target); err == nil {
				out = append(out, objs...)
			}
		}
		return true
	})
	return out
}

// ReferencedObjects returns every object mentioned in e, leaf-expanded.
func ReferencedObjects(e expr.Expr) []Object {
	if e == nil {
		return nil
	}
	var out []Object
	expr.Walk(e, func(n expr.Expr) bool {
		switch n.(type) {
		case expr.IdentExpr, expr.MemberExpr:
			if _, ok := NewObject(n); ok {
				out = append(out, LeafObjects(n)...)
				return false
			}
		}
		return true
	})
	return out
}

// Assigned returns the objects a location writes, excluding the havoc
// effects of a call on static objects.
func (l *Location) Assigned() []Object {
	var out []Object
	switch l.Kind {
	case KindAssign:
		objs, _ := LvalueObjects(l.Lhs)
		out = append(out, objs...)
		out = append(out, UpdatedObjects(l.Rhs)...)
		out = append(out, updatedInSelectors(l.Lhs)...)
	case KindCall:
		if l.Lhs != nil {
			objs, _ := LvalueObjects(l.Lhs)
			out = append(out, objs...)
		}
		for _, a := range l.Args {
			out = append(out, UpdatedObjects(a)...)
		}
	case KindGoto, KindAssert, KindAssume:
		out = append(out, UpdatedObjects(l.Cond)...)
	}
	return out
}

func updatedInSelectors(lhs expr.Expr) []Object {
	var out []Object
	cur := lhs
	for {
		switch n := cur.(type) {
		case expr.IndexExpr:
			out = append(out, UpdatedObjects(n.Index)...)
			cur = n.X
		case expr.MemberExpr:
			cur = n.X
		default:
			return out
		}
	}
}

// Objects returns every object a function mentions (parameters, locals,
// result, referenced globals), sorted by identifier.
func (f *Function) Objects() []Object {
	seen := make(map[string]Object)
	add := func(objs []Object) {
		for _, o := range objs {
			seen[o.Identifier()] = o
		}
	}
	for _, p := range f.Params {
		add(LeafObjects(p))
	}
	for _, l := range f.Locals {
		add(LeafObjects(l))
	}
	if f.Result != nil {
		add(LeafObjects(*f.Result))
	}
	for _, loc := range f.Body {
		add(ReferencedObjects(loc.Lhs))
		add(ReferencedObjects(loc.Rhs))
		add(ReferencedObjects(loc.Cond))
		for _, a := range loc.Args {
			add(ReferencedObjects(a))
		}
	}
	out := make([]Object, 0, len(seen))
	for _, o := range seen {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identifier() < out[j].Identifier() })
	return out
}
