package expr

import "fmt"

// Children returns the direct operands of e in evaluation order.
func Children(e Expr) []Expr {
	switch e := e.(type) {
	case MemberExpr:
		return []Expr{e.X}
	case IndexExpr:
		return []Expr{e.X, e.Index}
	case AddrExpr:
		return []Expr{e.X}
	case BinaryExpr:
		return []Expr{e.Left, e.Right}
	case UnaryExpr:
		return []Expr{e.Operand}
	case IteExpr:
		return []Expr{e.Cond, e.Then, e.Else}
	case WithExpr:
		return []Expr{e.Array, e.Index, e.Value}
	case StructExpr:
		return e.Fields
	case ArrayExpr:
		return e.Elems
	case UpdateExpr:
		return []Expr{e.Target}
	default:
		return nil
	}
}

// WithChildren returns a copy of e whose operands are cs. len(cs) must match
// len(Children(e)).
func WithChildren(e Expr, cs []Expr) Expr {
	switch e := e.(type) {
	case MemberExpr:
		e.X = cs[0]
		return e
	case IndexExpr:
		e.X, e.Index = cs[0], cs[1]
		return e
	case AddrExpr:
		e.X = cs[0]
		return e
	case BinaryExpr:
		e.Left, e.Right = cs[0], cs[1]
		return e
	case UnaryExpr:
		e.Operand = cs[0]
		return e
	case IteExpr:
		e.Cond, e.Then, e.Else = cs[0], cs[1], cs[2]
		return e
	case WithExpr:
		e.Array, e.Index, e.Value = cs[0], cs[1], cs[2]
		return e
	case StructExpr:
		e.Fields = append([]Expr(nil), cs...)
		return e
	case ArrayExpr:
		e.Elems = append([]Expr(nil), cs...)
		return e
	case UpdateExpr:
		e.Target = cs[0]
		return e
	default:
		if len(cs) != 0 {
			panic(fmt.Sprintf("expr: %T has no operands", e))
		}
		return e
	}
}

// Walk visits e and its operands in pre-order. Returning false from fn skips
// the operands of the current node.
func Walk(e Expr, fn func(Expr) bool) {
	stack := []Expr{e}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(n) {
			continue
		}
		cs := Children(n)
		for i := len(cs) - 1; i >= 0; i-- {
			stack = append(stack, cs[i])
		}
	}
}

type frame struct {
	node Expr
	kids []Expr
	done []Expr
}

// rewrite is the shared driver of Transform and TransformPost. pre may
// replace a node before its operands are visited; post sees every rebuilt
// node after its operands.
func rewrite(root Expr, pre func(Expr) (Expr, bool), post func(Expr) Expr) Expr {
	if pre != nil {
		if r, ok := pre(root); ok {
			return r
		}
	}
	stack := []*frame{{node: root, kids: Children(root)}}
	var result Expr
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		if len(top.done) == len(top.kids) {
			stack = stack[:len(stack)-1]
			rebuilt := top.node
			if len(top.kids) > 0 {
				rebuilt = WithChildren(top.node, top.done)
			}
			if post != nil {
				rebuilt = post(rebuilt)
			}
			if len(stack) == 0 {
				result = rebuilt
			} else {
				parent := stack[len(stack)-1]
				parent.done = append(parent.done, rebuilt)
			}
			continue
		}
		child := top.kids[len(top.done)]
		if pre != nil {
			if r, ok := pre(child); ok {
				top.done = append(top.done, r)
				continue
			}
		}
		stack = append(stack, &frame{node: child, kids: Children(child)})
	}
	return result
}

// Transform rebuilds e top-down. When fn returns (r, true) the node is
// replaced by r and its operands are not visited.
func Transform(e Expr, fn func(Expr) (Expr, bool)) Expr {
	return rewrite(e, fn, nil)
}

// TransformPost rebuilds e bottom-up, applying fn to every node after its
// operands have been rebuilt.
func TransformPost(e Expr, fn func(Expr) Expr) Expr {
	return rewrite(e, nil, fn)
}

// Substitute replaces every symbol bound in m.
func Substitute(e Expr, m map[string]Expr) Expr {
	if len(m) == 0 {
		return e
	}
	return Transform(e, func(n Expr) (Expr, bool) {
		if s, ok := n.(SymbolExpr); ok {
			if r, ok := m[s.Name]; ok {
				return r, true
			}
		}
		return nil, false
	})
}

// Size returns the number of nodes in e.
func Size(e Expr) int {
	n := 0
	Walk(e, func(Expr) bool {
		n++
		return true
	})
	return n
}
