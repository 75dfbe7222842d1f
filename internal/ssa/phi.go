package ssa

import (
	"github.com/gnolang/summarizer/internal/expr"
	"github.com/gnolang/summarizer/internal/program"
)

type incoming struct {
	term  expr.Expr
	edge  program.Edge
	entry bool
}

// incomingEdges returns the edges merged at loc in phi order: back edges
// first, so a loop head takes the loop-back value whenever its loop-select
// symbol holds, then the entry pseudo-edge, then forward edges in oracle
// order.
func (b *builder) incomingEdges(loc int) []incoming {
	var back, fwd []incoming
	if loc == b.fn.Entry() {
		fwd = append(fwd, incoming{term: expr.True, entry: true})
	}
	for _, e := range b.guards.Incoming(loc) {
		in := incoming{term: edgeTerm(e), edge: e}
		if e.Backward() {
			back = append(back, in)
		} else {
			fwd = append(fwd, in)
		}
	}
	return append(back, fwd...)
}

// isJoin reports whether more than one edge, counting the entry pseudo-edge,
// reaches loc.
func (b *builder) isJoin(loc int) bool {
	n := len(b.guards.Incoming(loc))
	if loc == b.fn.Entry() {
		n++
	}
	return n > 1
}

// buildPhiNodes merges, at a join, every object with more than one reaching
// definition into a phi symbol defined by a right-associated conditional
// chain over the incoming edges. The last edge is the unconditional base
// case; the guard implication added alongside makes the exhaustiveness it
// relies on explicit.
func (b *builder) buildPhiNodes(loc int) {
	if !b.isJoin(loc) {
		return
	}
	edges := b.incomingEdges(loc)
	merged := false
	for _, obj := range b.defs.Objects() {
		if b.defs.DefinitionsAt(obj, loc).Count() <= 1 {
			continue
		}
		merged = true

		rhs := b.edgeValue(obj, edges[len(edges)-1])
		for i := len(edges) - 2; i >= 0; i-- {
			rhs = expr.Ite(edges[i].term, b.edgeValue(obj, edges[i]), rhs)
		}
		b.emit(expr.Eq(Name(obj, Phi, loc), rhs))
	}
	if !merged {
		return
	}
	terms := make([]expr.Expr, len(edges))
	for i, e := range edges {
		terms[i] = e.term
	}
	b.constrain(GuardImplication, expr.Implies(Guard(loc), expr.Or(terms...)))
}

// edgeValue is the version of obj carried along one incoming edge.
func (b *builder) edgeValue(obj program.Object, in incoming) expr.Expr {
	switch {
	case in.entry:
		return Input(obj)
	case in.edge.Backward():
		return Name(obj, LoopBack, in.edge.From)
	case b.defs.Assigns(in.edge.From, obj):
		return Name(obj, Out, in.edge.From)
	default:
		return b.readObject(obj, in.edge.From)
	}
}

// mergeSite returns the join whose phi holds the merged value of obj seen at
// loc: loc itself when it is a join, otherwise the merge site of its unique
// predecessor, which must not write obj.
func (b *builder) mergeSite(obj program.Object, loc int) int {
	cur := loc
	for !b.isJoin(cur) {
		in := b.guards.Incoming(cur)
		if len(in) == 0 {
			b.fail(loc, "%s has several definitions %s but no merge point", obj, b.defs.DefinitionsAt(obj, loc))
		}
		e := in[0]
		if e.Backward() {
			b.fail(loc, "%s: merge point search reached back edge %d -> %d", obj, e.From, e.To)
		}
		if b.defs.Assigns(e.From, obj) {
			b.fail(loc, "%s has several definitions but predecessor %d writes it", obj, e.From)
		}
		cur = e.From
	}
	return cur
}
