package program

import (
	"fmt"

	"github.com/gnolang/summarizer/internal/expr"
)

// Builder assembles a Function location by location. Jumps name labels that
// are resolved when Finish is called.
type Builder struct {
	fn      *Function
	pos     Position
	labels  map[string]int
	pending []string // labels attached to the next location
	jumps   map[int]string
}

// NewBuilder starts a function named name.
func NewBuilder(name string) *Builder {
	return &Builder{
		fn:     &Function{Name: name},
		labels: make(map[string]int),
		jumps:  make(map[int]string),
	}
}

// Function returns the function under construction.
func (b *Builder) Function() *Function { return b.fn }

// At sets the source position of the following locations.
func (b *Builder) At(pos Position) *Builder {
	b.pos = pos
	return b
}

// Param declares a parameter.
func (b *Builder) Param(name string, t expr.Type) expr.Expr {
	id := expr.IdentExpr{Name: name, Typ: t}
	b.fn.Params = append(b.fn.Params, id)
	return id
}

// Local declares a local variable.
func (b *Builder) Local(name string, t expr.Type) expr.Expr {
	id := expr.IdentExpr{Name: name, Typ: t}
	b.fn.Locals = append(b.fn.Locals, id)
	return id
}

// Result declares the variable holding the return value.
func (b *Builder) Result(name string, t expr.Type) expr.Expr {
	id := expr.IdentExpr{Name: name, Typ: t}
	b.fn.Result = &id
	return id
}

// Label attaches name to the next emitted location.
func (b *Builder) Label(name string) {
	b.pending = append(b.pending, name)
}

// Next returns the id the next emitted location will get.
func (b *Builder) Next() int { return len(b.fn.Body) }

func (b *Builder) emit(loc *Location) *Location {
	loc.ID = len(b.fn.Body)
	loc.Pos = b.pos
	for _, l := range b.pending {
		b.labels[l] = loc.ID
		loc.Labels = append(loc.Labels, l)
	}
	b.pending = nil
	b.fn.Body = append(b.fn.Body, loc)
	return loc
}

func (b *Builder) Skip() *Location {
	return b.emit(&Location{Kind: KindSkip})
}

func (b *Builder) Assign(lhs, rhs expr.Expr) *Location {
	return b.emit(&Location{Kind: KindAssign, Lhs: lhs, Rhs: rhs})
}

func (b *Builder) Assume(cond expr.Expr) *Location {
	return b.emit(&Location{Kind: KindAssume, Cond: cond})
}

// Assert emits an assertion of property id.
func (b *Builder) Assert(cond expr.Expr, property, comment string) *Location {
	return b.emit(&Location{Kind: KindAssert, Cond: cond, Property: property, Comment: comment, Category: "assertion"})
}

// Call emits a call; lhs may be nil.
func (b *Builder) Call(lhs expr.Expr, callee string, args ...expr.Expr) *Location {
	return b.emit(&Location{Kind: KindCall, Lhs: lhs, Callee: callee, Args: args})
}

// Goto emits a conditional jump to label; use expr.True for an
// unconditional one.
func (b *Builder) Goto(cond expr.Expr, label string) *Location {
	loc := b.emit(&Location{Kind: KindGoto, Cond: cond, Target: -1})
	b.jumps[loc.ID] = label
	return loc
}

// GotoID emits a jump to an already known location id.
func (b *Builder) GotoID(cond expr.Expr, target int) *Location {
	return b.emit(&Location{Kind: KindGoto, Cond: cond, Target: target})
}

// Finish appends the exit location, resolves jump labels and validates the
// function.
func (b *Builder) Finish() (*Function, error) {
	b.emit(&Location{Kind: KindEnd})
	for id, label := range b.jumps {
		target, ok := b.labels[label]
		if !ok {
			return nil, fmt.Errorf("%w: function %s: undefined label %q", ErrMalformed, b.fn.Name, label)
		}
		b.fn.Body[id].Target = target
	}
	if err := b.fn.Validate(); err != nil {
		return nil, err
	}
	return b.fn, nil
}

// MustFinish is like Finish but panics on error. It is meant for tests and
// fixed fixtures.
func (b *Builder) MustFinish() *Function {
	fn, err := b.Finish()
	if err != nil {
		panic(err)
	}
	return fn
}
