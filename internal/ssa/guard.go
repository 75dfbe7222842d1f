package ssa

import (
	"github.com/gnolang/summarizer/internal/expr"
	"github.com/gnolang/summarizer/internal/program"
)

// edgeGuard is the condition attached to a forward edge.
func edgeGuard(e program.Edge) expr.Expr {
	switch e.Kind {
	case program.EdgeTaken, program.EdgeAssume:
		return Cond(e.From)
	case program.EdgeNotTaken:
		return expr.Not(Cond(e.From))
	default:
		return expr.True
	}
}

// edgeTerm is the contribution of an incoming edge to its target's guard.
// A back edge contributes the loop-select symbol of its source.
func edgeTerm(e program.Edge) expr.Expr {
	if e.Backward() {
		return Name(guardObject, LoopSelect, e.From)
	}
	g := edgeGuard(e)
	if expr.IsTrue(g) {
		return Guard(e.From)
	}
	return expr.And(Guard(e.From), g)
}

// buildGuard defines the guard of loc as the disjunction of its incoming
// edge terms. Back edges are registered in the pending table and resolved
// by resolveLoopSelect at their source.
func (b *builder) buildGuard(loc int) {
	var forward, backward []expr.Expr
	if loc == b.fn.Entry() {
		forward = append(forward, expr.True)
	}
	incoming := b.guards.Incoming(loc)
	for _, e := range incoming {
		if e.To != loc || e.From < 0 || e.From >= b.fn.Len() {
			b.fail(loc, "edge %d -> %d is not an incoming edge", e.From, e.To)
		}
		if e.Backward() {
			if other, ok := b.pending[e.From]; ok && other != loc {
				b.fail(loc, "location %d closes loops at %d and %d", e.From, other, loc)
			}
			b.pending[e.From] = loc
			backward = append(backward, edgeTerm(e))
			continue
		}
		forward = append(forward, edgeTerm(e))
	}
	if len(forward) == 0 && len(backward) > 0 {
		b.fail(loc, "location is only entered through back edges")
	}
	if len(backward) > 0 {
		b.entered[loc] = expr.Or(forward...)
	}
	b.emit(expr.Eq(Guard(loc), expr.Or(append(forward, backward...)...)))
}

// resolveLoopSelect constrains the loop-select symbol of a back edge leaving
// loc: the head is re-entered only if the edge was taken at the end of some
// previous iteration, which requires the loop to have been entered at all.
// The previous iteration's edge condition is the free loop-back version of
// the guard.
func (b *builder) resolveLoopSelect(loc int) {
	head, ok := b.pending[loc]
	if !ok {
		return
	}
	delete(b.pending, loc)
	b.emit(expr.Eq(
		Name(guardObject, LoopSelect, loc),
		expr.And(Name(guardObject, LoopBack, loc), b.entered[head]),
	))
}

// buildCond defines the condition symbol of a branch or assumption, read at
// loc. Unconditional jumps have none.
func (b *builder) buildCond(loc int) {
	l := b.fn.At(loc)
	if l.Kind == program.KindGoto && expr.IsTrue(l.Cond) {
		return
	}
	b.emit(expr.Eq(Cond(loc), b.readRHS(b.hoist(l.Cond, loc), loc)))
}
