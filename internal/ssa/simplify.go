package ssa

import (
	"github.com/gnolang/summarizer/internal/expr"
)

// Simplify returns a simplified copy of s; s itself is not modified. It folds
// constants at the given integer width, propagates copies (a definition whose
// right-hand side is a symbol or a constant) into every use, and drops the
// equalities that become trivial. Each symbol is defined by at most one
// equality, so the result is satisfiable exactly when s is, and every
// verification condition keeps its verdict.
func Simplify(s *SSA, width int) *SSA {
	folder := expr.Folder{Width: width}
	nodes := make([]*Node, len(s.Nodes))
	for i, n := range s.Nodes {
		cp := *n
		cp.Equalities = append([]expr.Expr(nil), n.Equalities...)
		cp.Constraints = append([]Constraint(nil), n.Constraints...)
		nodes[i] = &cp
	}

	subst := make(map[string]expr.Expr)
	for {
		found := false
		for _, n := range nodes {
			kept := n.Equalities[:0]
			for _, eq := range n.Equalities {
				eq = folder.Fold(expr.Substitute(eq, subst))
				if expr.IsTrue(eq) {
					continue
				}
				if name, val, ok := copyOf(eq); ok {
					subst[name] = val
					found = true
					continue
				}
				kept = append(kept, eq)
			}
			n.Equalities = kept
		}
		if !found {
			break
		}
		resolve(subst)
	}

	for _, n := range nodes {
		n.Guard = folder.Fold(expr.Substitute(n.Guard, subst))
		if n.Assertion != nil {
			n.Assertion = folder.Fold(expr.Substitute(n.Assertion, subst))
		}
		kept := n.Constraints[:0]
		for _, c := range n.Constraints {
			c.Expr = folder.Fold(expr.Substitute(c.Expr, subst))
			if c.Kind == GuardImplication && expr.IsTrue(c.Expr) {
				continue
			}
			kept = append(kept, c)
		}
		n.Constraints = kept
	}

	out := *s
	out.Nodes = nodes
	return &out
}

// copyOf reports whether eq defines a symbol as another symbol or a
// constant.
func copyOf(eq expr.Expr) (string, expr.Expr, bool) {
	b, ok := eq.(expr.BinaryExpr)
	if !ok || b.Op != expr.OpEq {
		return "", nil, false
	}
	lhs, ok := b.Left.(expr.SymbolExpr)
	if !ok {
		return "", nil, false
	}
	switch r := b.Right.(type) {
	case expr.SymbolExpr:
		if r.Name == lhs.Name {
			return "", nil, false
		}
		return lhs.Name, r, true
	case expr.ConstExpr:
		return lhs.Name, r, true
	}
	return "", nil, false
}

// resolve rewrites the substitution so that no right-hand side mentions a
// substituted symbol.
func resolve(subst map[string]expr.Expr) {
	for name, val := range subst {
		seen := map[string]bool{name: true}
		for {
			s, ok := val.(expr.SymbolExpr)
			if !ok || seen[s.Name] {
				break
			}
			next, ok := subst[s.Name]
			if !ok {
				break
			}
			seen[s.Name] = true
			val = next
		}
		subst[name] = val
	}
}
