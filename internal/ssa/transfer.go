package ssa

import (
	"github.com/gnolang/summarizer/internal/expr"
	"github.com/gnolang/summarizer/internal/program"
)

// readObject returns the version of obj visible on entry to loc.
func (b *builder) readObject(obj program.Object, loc int) expr.SymbolExpr {
	d := b.defs.DefinitionsAt(obj, loc)
	switch d.Count() {
	case 0:
		// Unreachable: the guard of loc is false, any version will do.
		return Input(obj)
	case 1:
		if d.Input {
			return Input(obj)
		}
		def := d.Locs[0]
		if def < 0 || def >= b.fn.Len() || !b.defs.Assigns(def, obj) {
			b.fail(loc, "%s is defined at %d, which does not write it", obj, def)
		}
		return Name(obj, Out, def)
	default:
		return Name(obj, Phi, b.mergeSite(obj, loc))
	}
}

// readRHS replaces every object reference in e by the version visible at
// loc. Struct-typed references become struct literals of their leaves.
// Address-of expressions keep the object path and rename only the index
// expressions inside it. e must be free of side effects; see hoist.
func (b *builder) readRHS(e expr.Expr, loc int) expr.Expr {
	return expr.Transform(e, func(n expr.Expr) (expr.Expr, bool) {
		switch n := n.(type) {
		case expr.IdentExpr, expr.MemberExpr:
			if obj, ok := program.NewObject(n); ok {
				return b.readValue(obj, loc), true
			}
		case expr.AddrExpr:
			return expr.AddrExpr{X: b.readPath(n.X, loc), Typ: n.Typ}, true
		case expr.NondetExpr, expr.UpdateExpr:
			b.fail(loc, "side effect %s was not hoisted", n)
		}
		return nil, false
	})
}

func (b *builder) readValue(obj program.Object, loc int) expr.Expr {
	st, ok := obj.Type().(expr.StructType)
	if !ok {
		return b.readObject(obj, loc)
	}
	fields := make([]expr.Expr, len(st.Fields))
	for i, f := range st.Fields {
		fields[i] = b.readValue(program.MustObject(expr.Member(obj.Expr(), f.Name)), loc)
	}
	return expr.StructExpr{Typ: st, Fields: fields}
}

// readPath renames the index sub-expressions of an address-of operand.
func (b *builder) readPath(e expr.Expr, loc int) expr.Expr {
	switch n := e.(type) {
	case expr.IndexExpr:
		return expr.IndexExpr{X: b.readPath(n.X, loc), Index: b.readRHS(n.Index, loc), Typ: n.Typ}
	case expr.MemberExpr:
		return expr.MemberExpr{X: b.readPath(n.X, loc), Field: n.Field, Typ: n.Typ}
	default:
		return e
	}
}

// hoist moves the side effects of e into temporaries, left to right, and
// returns e with each side effect replaced by its temporary. A nondet value
// becomes an unconstrained temporary; an increment or decrement gets a
// temporary equal to the value it yields plus the write of its target.
func (b *builder) hoist(e expr.Expr, loc int) expr.Expr {
	if e == nil || !expr.HasSideEffects(e) {
		return e
	}
	return expr.Transform(e, func(n expr.Expr) (expr.Expr, bool) {
		switch n := n.(type) {
		case expr.NondetExpr:
			t := temporary(loc, b.temps, n.Typ)
			b.temps++
			return t, true
		case expr.UpdateExpr:
			target := b.hoistSelectors(n.Target, loc)
			old := b.readRHS(target, loc)
			op := expr.OpAdd
			if n.Op == expr.OpDec {
				op = expr.OpSub
			}
			updated := expr.Binary(op, old, expr.IntLit(1))
			t := temporary(loc, b.temps, n.Type())
			b.temps++
			if n.Post {
				b.emit(expr.Eq(t, old))
			} else {
				b.emit(expr.Eq(t, updated))
			}
			b.assignRec(target, updated, loc)
			return t, true
		}
		return nil, false
	})
}

// hoistSelectors hoists the side effects inside the index expressions of an
// assignment target, keeping the target's shape.
func (b *builder) hoistSelectors(lhs expr.Expr, loc int) expr.Expr {
	switch n := lhs.(type) {
	case expr.IndexExpr:
		return expr.IndexExpr{X: b.hoistSelectors(n.X, loc), Index: b.hoist(n.Index, loc), Typ: n.Typ}
	case expr.MemberExpr:
		return expr.MemberExpr{X: b.hoistSelectors(n.X, loc), Field: n.Field, Typ: n.Typ}
	default:
		return lhs
	}
}

// buildTransfer translates an assignment into one OUT equality per written
// object.
func (b *builder) buildTransfer(loc int) {
	l := b.fn.At(loc)
	lhs := b.hoistSelectors(l.Lhs, loc)
	rhs := b.readRHS(b.hoist(l.Rhs, loc), loc)
	b.assignRec(lhs, rhs, loc)
}

// assignRec writes the already renamed value rhs to lhs at loc. Structs are
// split into their fields; an element write rewrites the whole array, with
// the selector expressions read rather than written.
func (b *builder) assignRec(lhs, rhs expr.Expr, loc int) {
	if st, ok := lhs.Type().(expr.StructType); ok {
		if _, isObj := program.NewObject(lhs); isObj {
			for _, f := range st.Fields {
				b.assignRec(expr.Member(lhs, f.Name), expr.Project(rhs, f.Name), loc)
			}
			return
		}
	}
	switch n := lhs.(type) {
	case expr.IdentExpr, expr.MemberExpr:
		obj, ok := program.NewObject(n)
		if !ok {
			b.fail(loc, "cannot assign to %s", lhs)
		}
		if b.written[obj.Identifier()] {
			b.fail(loc, "%s is written twice", obj)
		}
		b.written[obj.Identifier()] = true
		b.emit(expr.Eq(Name(obj, Out, loc), rhs))
	case expr.IndexExpr:
		updated := expr.WithExpr{
			Array: b.readRHS(n.X, loc),
			Index: b.readRHS(n.Index, loc),
			Value: rhs,
		}
		b.assignRec(n.X, updated, loc)
	default:
		b.fail(loc, "cannot assign to %s", lhs)
	}
}
