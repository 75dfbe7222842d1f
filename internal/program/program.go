// Package program holds the control-flow representation consumed by the SSA
// engine: functions made of totally ordered locations, each with a kind and
// successor edges, plus the object model used to name assignable storage.
package program

import (
	"errors"
	"fmt"
	"sort"

	"github.com/gnolang/summarizer/internal/expr"
)

// ErrMalformed is returned for control-flow programs that violate the
// structural rules (unique exit, jump targets in range, typed conditions).
var ErrMalformed = errors.New("malformed program")

// Kind is the kind of a location.
type Kind int

const (
	KindSkip Kind = iota
	KindAssign
	KindGoto
	KindAssert
	KindAssume
	KindCall
	KindEnd
)

func (k Kind) String() string {
	switch k {
	case KindSkip:
		return "SKIP"
	case KindAssign:
		return "ASSIGN"
	case KindGoto:
		return "GOTO"
	case KindAssert:
		return "ASSERT"
	case KindAssume:
		return "ASSUME"
	case KindCall:
		return "FUNCTION_CALL"
	case KindEnd:
		return "END_FUNCTION"
	default:
		return "?"
	}
}

// Position is a source position used for diagnostics.
type Position struct {
	File   string `json:"file,omitempty" yaml:"file,omitempty"`
	Line   int    `json:"line,omitempty" yaml:"line,omitempty"`
	Column int    `json:"column,omitempty" yaml:"column,omitempty"`
}

func (p Position) String() string {
	switch {
	case p.File == "" && p.Line == 0:
		return "-"
	case p.Column == 0:
		return fmt.Sprintf("%s:%d", p.File, p.Line)
	default:
		return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
	}
}

// Location is one point of a function's control-flow graph.
type Location struct {
	ID   int
	Kind Kind
	Pos  Position

	// Lhs is the assignment target (KindAssign) or the optional call result
	// (KindCall). Rhs is the assigned value.
	Lhs expr.Expr
	Rhs expr.Expr

	// Cond is the branch condition (KindGoto), the asserted condition
	// (KindAssert) or the assumed condition (KindAssume). A goto whose
	// condition is the literal true has no fall-through edge.
	Cond   expr.Expr
	Target int

	Callee string
	Args   []expr.Expr

	// Property identifies the checked property of an assertion. Several
	// assertions may share one property id.
	Property string
	Comment  string
	Category string

	Labels []string
}

func (l *Location) String() string {
	switch l.Kind {
	case KindAssign:
		return fmt.Sprintf("%d: %s := %s", l.ID, l.Lhs, l.Rhs)
	case KindGoto:
		if expr.IsTrue(l.Cond) {
			return fmt.Sprintf("%d: GOTO %d", l.ID, l.Target)
		}
		return fmt.Sprintf("%d: IF %s THEN GOTO %d", l.ID, l.Cond, l.Target)
	case KindAssert:
		return fmt.Sprintf("%d: ASSERT %s // %s", l.ID, l.Cond, l.Property)
	case KindAssume:
		return fmt.Sprintf("%d: ASSUME %s", l.ID, l.Cond)
	case KindCall:
		args := ""
		for i, a := range l.Args {
			if i > 0 {
				args += ", "
			}
			args += a.String()
		}
		if l.Lhs != nil {
			return fmt.Sprintf("%d: %s := %s(%s)", l.ID, l.Lhs, l.Callee, args)
		}
		return fmt.Sprintf("%d: %s(%s)", l.ID, l.Callee, args)
	default:
		return fmt.Sprintf("%d: %s", l.ID, l.Kind)
	}
}

// Function is a control-flow graph of locations. Location i has ID i; the
// last location is the unique KindEnd exit.
type Function struct {
	Name    string
	Params  []expr.IdentExpr
	Locals  []expr.IdentExpr
	Result  *expr.IdentExpr
	Body    []*Location
	Inlined bool
	Pos     Position

	preds [][]int
}

// Entry returns the first location.
func (f *Function) Entry() int { return 0 }

// Exit returns the unique exit location.
func (f *Function) Exit() int { return len(f.Body) - 1 }

// Len returns the number of locations.
func (f *Function) Len() int { return len(f.Body) }

// At returns location id.
func (f *Function) At(id int) *Location { return f.Body[id] }

// Successors returns the successors of id: the taken edge of a goto comes
// first, then the fall-through edge.
func (f *Function) Successors(id int) []int {
	loc := f.Body[id]
	switch loc.Kind {
	case KindEnd:
		return nil
	case KindGoto:
		if expr.IsTrue(loc.Cond) {
			return []int{loc.Target}
		}
		if loc.Target == id+1 {
			return []int{loc.Target}
		}
		return []int{loc.Target, id + 1}
	default:
		return []int{id + 1}
	}
}

// Predecessors returns the predecessors of id in ascending order.
func (f *Function) Predecessors(id int) []int {
	if f.preds == nil {
		f.computePreds()
	}
	return f.preds[id]
}

func (f *Function) computePreds() {
	preds := make([][]int, len(f.Body))
	for id := range f.Body {
		for _, s := range f.Successors(id) {
			preds[s] = append(preds[s], id)
		}
	}
	for _, ps := range preds {
		sort.Ints(ps)
	}
	f.preds = preds
}

// IsBackwardGoto reports whether id is a goto whose target does not come
// after it.
func (f *Function) IsBackwardGoto(id int) bool {
	loc := f.Body[id]
	return loc.Kind == KindGoto && loc.Target <= id
}

// LoopHead reports whether id is the target of a backward goto.
func (f *Function) LoopHead(id int) bool {
	for _, p := range f.Predecessors(id) {
		if p >= id && f.IsBackwardGoto(p) {
			return true
		}
	}
	return false
}

// HasAssertion reports whether the body contains an assertion.
func (f *Function) HasAssertion() bool {
	for _, loc := range f.Body {
		if loc.Kind == KindAssert {
			return true
		}
	}
	return false
}

// Assertions returns the assertion locations in program order.
func (f *Function) Assertions() []*Location {
	var out []*Location
	for _, loc := range f.Body {
		if loc.Kind == KindAssert {
			out = append(out, loc)
		}
	}
	return out
}

// Validate checks the structural rules and caches the predecessor table.
func (f *Function) Validate() error {
	n := len(f.Body)
	if n == 0 || f.Body[n-1].Kind != KindEnd {
		return fmt.Errorf("%w: function %s must end with a unique exit", ErrMalformed, f.Name)
	}
	for id, loc := range f.Body {
		if loc.ID != id {
			return fmt.Errorf("%w: function %s: location %d has id %d", ErrMalformed, f.Name, id, loc.ID)
		}
		switch loc.Kind {
		case KindEnd:
			if id != n-1 {
				return fmt.Errorf("%w: function %s: second exit at %d", ErrMalformed, f.Name, id)
			}
		case KindGoto:
			if loc.Target < 0 || loc.Target >= n {
				return fmt.Errorf("%w: function %s: goto %d targets %d", ErrMalformed, f.Name, id, loc.Target)
			}
			fallthrough
		case KindAssert, KindAssume:
			if loc.Cond == nil {
				return fmt.Errorf("%w: function %s: location %d has no condition", ErrMalformed, f.Name, id)
			}
			if _, ok := loc.Cond.Type().(expr.BoolType); !ok {
				return fmt.Errorf("%w: function %s: condition %s at %d is not boolean", ErrMalformed, f.Name, loc.Cond, id)
			}
		case KindAssign:
			if loc.Lhs == nil || loc.Rhs == nil {
				return fmt.Errorf("%w: function %s: incomplete assignment at %d", ErrMalformed, f.Name, id)
			}
			if _, err := LvalueObjects(loc.Lhs); err != nil {
				return fmt.Errorf("%w: function %s: location %d: %v", ErrMalformed, f.Name, id, err)
			}
		}
	}
	f.computePreds()
	return nil
}

// Program is a set of functions with a designated entry point.
type Program struct {
	Functions  map[string]*Function
	Order      []string
	Globals    []expr.IdentExpr
	EntryPoint string
}

// New returns an empty program.
func New(entry string) *Program {
	return &Program{
		Functions:  make(map[string]*Function),
		EntryPoint: entry,
	}
}

// Add registers fn, keeping declaration order.
func (p *Program) Add(fn *Function) {
	if _, ok := p.Functions[fn.Name]; !ok {
		p.Order = append(p.Order, fn.Name)
	}
	p.Functions[fn.Name] = fn
}

// Function looks a function up by name.
func (p *Program) Function(name string) (*Function, bool) {
	fn, ok := p.Functions[name]
	return fn, ok
}

// Each returns the functions in declaration order.
func (p *Program) Each() []*Function {
	out := make([]*Function, 0, len(p.Order))
	for _, name := range p.Order {
		out = append(out, p.Functions[name])
	}
	return out
}

// Definitions is the answer of a reaching-definition query: the locations
// whose write to an object reaches a point, and whether some path reaches it
// with no write at all (the function input).
type Definitions struct {
	Input bool
	Locs  []int
}

// Count returns the number of distinct definitions, counting the input as
// one.
func (d Definitions) Count() int {
	n := len(d.Locs)
	if d.Input {
		n++
	}
	return n
}

func (d Definitions) String() string {
	s := "{"
	if d.Input {
		s += "INPUT"
	}
	for i, l := range d.Locs {
		if i > 0 || d.Input {
			s += ", "
		}
		s += fmt.Sprint(l)
	}
	return s + "}"
}

// EdgeKind classifies a control-flow edge.
type EdgeKind int

const (
	// EdgeSuccessor is an unconditional fall-through or jump.
	EdgeSuccessor EdgeKind = iota
	// EdgeTaken is the taken edge of a conditional goto.
	EdgeTaken
	// EdgeNotTaken is the fall-through edge of a conditional goto.
	EdgeNotTaken
	// EdgeAssume leaves an assumption; it is followed only when the assumed
	// condition holds.
	EdgeAssume
)

func (k EdgeKind) String() string {
	switch k {
	case EdgeSuccessor:
		return "successor"
	case EdgeTaken:
		return "taken"
	case EdgeNotTaken:
		return "not-taken"
	case EdgeAssume:
		return "assume"
	default:
		return "?"
	}
}

// Edge is one incoming control-flow edge of a location.
type Edge struct {
	From int
	To   int
	Kind EdgeKind
}

// Backward reports whether the edge closes a loop.
func (e Edge) Backward() bool { return e.From >= e.To }
