package ssa

import (
	"github.com/gnolang/summarizer/internal/expr"
	"github.com/gnolang/summarizer/internal/program"
)

// DefinitionOracle answers reaching-definition queries for one function.
type DefinitionOracle interface {
	// Objects returns the objects of the function in a stable order.
	Objects() []program.Object
	// DefinitionsAt returns the writes of obj reaching the entry of loc.
	DefinitionsAt(obj program.Object, loc int) program.Definitions
	// Assigns reports whether loc writes obj, havoc effects included.
	Assigns(loc int, obj program.Object) bool
}

// GuardOracle enumerates control-flow edges for one function.
type GuardOracle interface {
	// Incoming returns the incoming edges of loc in a stable order.
	Incoming(loc int) []program.Edge
	// GuardSource returns the location whose guard governs loc.
	GuardSource(loc int) int
}

// ConstraintKind distinguishes the two kinds of constraint a node holds.
type ConstraintKind int

const (
	// GuardImplication states that a guard is covered by its incoming edges.
	GuardImplication ConstraintKind = iota
	// Obligation is an assertion that must hold whenever its guard does.
	Obligation
)

func (k ConstraintKind) String() string {
	if k == Obligation {
		return "obligation"
	}
	return "guard"
}

// Constraint is a formula a node contributes besides its definitions.
type Constraint struct {
	Kind ConstraintKind
	Expr expr.Expr
}

// Node is the SSA of one location.
type Node struct {
	Location *program.Location

	// Guard is the reachability condition of the location; it is the guard
	// symbol unless simplification replaced it.
	Guard expr.Expr

	Equalities  []expr.Expr
	Constraints []Constraint

	// Assertion is the asserted condition read at the location, set for
	// assertions only.
	Assertion expr.Expr
}

// Empty reports whether the node introduces nothing.
func (n *Node) Empty() bool {
	return len(n.Equalities) == 0 && len(n.Constraints) == 0
}

// SSA is the single assignment form of one function. It is immutable once
// built; concurrent readers need no locking.
type SSA struct {
	Function *program.Function
	Nodes    []*Node

	// Entry holds the input symbols of the function's local objects and Exit
	// the symbols visible at its exit, in the same order.
	Entry []expr.SymbolExpr
	Exit  []expr.SymbolExpr
}

// Build constructs the SSA of fn. Locations are visited in id order, which
// puts every predecessor first except across back edges. An oracle answer
// inconsistent with the graph yields an *InvariantError.
func Build(fn *program.Function, defs DefinitionOracle, guards GuardOracle) (s *SSA, err error) {
	defer func() {
		if r := recover(); r != nil {
			ie, ok := r.(*InvariantError)
			if !ok {
				panic(r)
			}
			s, err = nil, ie
		}
	}()

	b := newBuilder(fn, defs, guards)
	for id := 0; id < fn.Len(); id++ {
		b.buildNode(id)
	}
	if len(b.pending) != 0 {
		for src, head := range b.pending {
			b.fail(src, "back edge to %d never resolved", head)
		}
	}
	b.assertionsToConstraints()
	entry, exit := b.entryExitVars()
	return &SSA{Function: fn, Nodes: b.nodes, Entry: entry, Exit: exit}, nil
}

// Node returns the node of location id.
func (s *SSA) Node(id int) *Node { return s.Nodes[id] }

// Equalities returns every equality in location order.
func (s *SSA) Equalities() []expr.Expr {
	var out []expr.Expr
	for _, n := range s.Nodes {
		out = append(out, n.Equalities...)
	}
	return out
}

// Constraints returns the constraints of the given kind in location order.
func (s *SSA) Constraints(kind ConstraintKind) []expr.Expr {
	var out []expr.Expr
	for _, n := range s.Nodes {
		for _, c := range n.Constraints {
			if c.Kind == kind {
				out = append(out, c.Expr)
			}
		}
	}
	return out
}

// Facts returns the formulas that hold on every execution: all equalities
// followed by the guard implications. Assertion obligations are excluded;
// they are what a verification condition checks.
func (s *SSA) Facts() []expr.Expr {
	return append(s.Equalities(), s.Constraints(GuardImplication)...)
}

// Assertions returns the nodes of assertion locations in program order.
func (s *SSA) Assertions() []*Node {
	var out []*Node
	for _, n := range s.Nodes {
		if n.Location.Kind == program.KindAssert {
			out = append(out, n)
		}
	}
	return out
}

type builder struct {
	fn     *program.Function
	defs   DefinitionOracle
	guards GuardOracle
	nodes  []*Node

	// pending maps the source of a back edge to the loop head whose guard
	// references its loop-select symbol. Entries are removed when the
	// source's node resolves them.
	pending map[int]int
	// entered holds, per loop head, the disjunction of its forward edge
	// terms.
	entered map[int]expr.Expr

	cur     *Node
	written map[string]bool
	temps   int
}

func newBuilder(fn *program.Function, defs DefinitionOracle, guards GuardOracle) *builder {
	return &builder{
		fn:      fn,
		defs:    defs,
		guards:  guards,
		nodes:   make([]*Node, 0, fn.Len()),
		pending: make(map[int]int),
		entered: make(map[int]expr.Expr),
	}
}

func (b *builder) buildNode(id int) {
	loc := b.fn.At(id)
	b.cur = &Node{Location: loc, Guard: Guard(id)}
	b.written = make(map[string]bool)
	b.temps = 0
	b.nodes = append(b.nodes, b.cur)

	b.buildGuard(id)
	b.buildPhiNodes(id)

	switch loc.Kind {
	case program.KindAssign:
		b.buildTransfer(id)
	case program.KindGoto, program.KindAssume:
		b.buildCond(id)
	case program.KindAssert:
		b.cur.Assertion = b.readRHS(b.hoist(loc.Cond, id), id)
	case program.KindCall:
		// The result and every static object are havocked: their OUT
		// symbols are left unconstrained.
		for _, a := range loc.Args {
			b.hoist(a, id)
		}
	}

	b.resolveLoopSelect(id)
}

func (b *builder) emit(e expr.Expr) {
	b.cur.Equalities = append(b.cur.Equalities, e)
}

func (b *builder) constrain(kind ConstraintKind, e expr.Expr) {
	b.cur.Constraints = append(b.cur.Constraints, Constraint{Kind: kind, Expr: e})
}

// assertionsToConstraints adds one obligation per assertion: the guard of
// the assertion implies its condition.
func (b *builder) assertionsToConstraints() {
	for _, n := range b.nodes {
		if n.Location.Kind != program.KindAssert {
			continue
		}
		n.Constraints = append(n.Constraints, Constraint{
			Kind: Obligation,
			Expr: expr.Implies(n.Guard, n.Assertion),
		})
	}
}

// entryExitVars collects, per non-static object, its input symbol and the
// symbol visible at the exit.
func (b *builder) entryExitVars() (entry, exit []expr.SymbolExpr) {
	end := b.fn.Exit()
	for _, obj := range b.defs.Objects() {
		if obj.Static() {
			continue
		}
		entry = append(entry, Input(obj))
		exit = append(exit, b.readObject(obj, end))
	}
	return entry, exit
}
