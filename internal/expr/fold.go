package expr

import (
	"errors"
	"fmt"
)

// ErrNotConstant is returned by Eval when an expression depends on an
// unbound variable or on an address.
var ErrNotConstant = errors.New("expression is not constant")

// DefaultWidth is the integer width used when none is configured.
const DefaultWidth = 32

// Folder evaluates constant sub-expressions as Width-bit two's complement
// words. Env binds symbol and identifier names to values; unbound names stay
// symbolic.
//
// Division by zero follows the bit-vector convention shared by the decision
// procedures: x/0 is -1 for x >= 0 and 1 otherwise, and x%0 is x.
type Folder struct {
	Width int
	Env   map[string]Value
}

// Fold returns e with every constant sub-expression evaluated and the
// boolean identities for constants applied.
func (f Folder) Fold(e Expr) Expr {
	return TransformPost(e, f.foldNode)
}

// Eval evaluates e completely.
func (f Folder) Eval(e Expr) (Value, error) {
	r := f.Fold(e)
	if c, ok := r.(ConstExpr); ok {
		return c.Val, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotConstant, r)
}

func (f Folder) width() int {
	if f.Width <= 0 || f.Width > 64 {
		return DefaultWidth
	}
	return f.Width
}

// Wrap truncates v to width bits and sign-extends the result.
func Wrap(v int64, width int) int64 {
	if width >= 64 {
		return v
	}
	shift := uint(64 - width)
	return (v << shift) >> shift
}

func constOf(e Expr) (Value, bool) {
	c, ok := e.(ConstExpr)
	if !ok {
		return nil, false
	}
	return c.Val, true
}

func intOf(e Expr) (int64, bool) {
	v, ok := constOf(e)
	if !ok {
		return 0, false
	}
	i, ok := v.(IntValue)
	return i.Val, ok
}

func boolOf(e Expr) (bool, bool) {
	v, ok := constOf(e)
	if !ok {
		return false, false
	}
	b, ok := v.(BoolValue)
	return b.Val, ok
}

func (f Folder) foldNode(n Expr) Expr {
	switch n := n.(type) {
	case SymbolExpr:
		if v, ok := f.Env[n.Name]; ok {
			return ConstExpr{Val: v}
		}
	case IdentExpr:
		if v, ok := f.Env[n.Name]; ok {
			return ConstExpr{Val: v}
		}
	case BinaryExpr:
		return f.foldBinary(n)
	case UnaryExpr:
		return f.foldUnary(n)
	case IteExpr:
		if c, ok := boolOf(n.Cond); ok {
			if c {
				return n.Then
			}
			return n.Else
		}
		if n.Then.String() == n.Else.String() && !HasSideEffects(n) {
			return n.Then
		}
	case IndexExpr:
		return f.foldIndex(n)
	case WithExpr:
		av, ok1 := constOf(n.Array)
		i, ok2 := intOf(n.Index)
		v, ok3 := constOf(n.Value)
		if ok1 && ok2 && ok3 {
			arr, ok := av.(ArrayValue)
			if ok && i >= 0 && i < int64(len(arr.Elems)) {
				elems := append([]Value(nil), arr.Elems...)
				elems[i] = v
				return ConstExpr{Val: ArrayValue{Typ: arr.Typ, Elems: elems}}
			}
		}
	case MemberExpr:
		if v, ok := constOf(n.X); ok {
			if sv, ok := v.(StructValue); ok {
				if _, i, ok := sv.Typ.Field(n.Field); ok {
					return ConstExpr{Val: sv.Fields[i]}
				}
			}
		}
		if s, ok := n.X.(StructExpr); ok {
			if _, i, ok := s.Typ.Field(n.Field); ok {
				return s.Fields[i]
			}
		}
	case ArrayExpr:
		elems := make([]Value, len(n.Elems))
		for i, e := range n.Elems {
			v, ok := constOf(e)
			if !ok {
				return n
			}
			elems[i] = v
		}
		return ConstExpr{Val: ArrayValue{Typ: n.Typ, Elems: elems}}
	case StructExpr:
		fields := make([]Value, len(n.Fields))
		for i, e := range n.Fields {
			v, ok := constOf(e)
			if !ok {
				return n
			}
			fields[i] = v
		}
		return ConstExpr{Val: StructValue{Typ: n.Typ, Fields: fields}}
	}
	return n
}

func (f Folder) foldIndex(n IndexExpr) Expr {
	i, ok := intOf(n.Index)
	if !ok {
		return n
	}
	switch arr := n.X.(type) {
	case ConstExpr:
		if av, ok := arr.Val.(ArrayValue); ok && i >= 0 && i < int64(len(av.Elems)) {
			return ConstExpr{Val: av.Elems[i]}
		}
	case ArrayExpr:
		if i >= 0 && i < int64(len(arr.Elems)) {
			return arr.Elems[i]
		}
	case WithExpr:
		if j, ok := intOf(arr.Index); ok {
			if i == j {
				return arr.Value
			}
			return f.foldIndex(IndexExpr{X: arr.Array, Index: n.Index, Typ: n.Typ})
		}
	}
	return n
}

func (f Folder) foldUnary(n UnaryExpr) Expr {
	if inner, ok := n.Operand.(UnaryExpr); ok && inner.Op == n.Op && n.Op != OpNeg {
		return inner.Operand
	}
	switch n.Op {
	case OpNot:
		if b, ok := boolOf(n.Operand); ok {
			return BoolLit(!b)
		}
	case OpNeg:
		if v, ok := intOf(n.Operand); ok {
			return IntLit(Wrap(-v, f.width()))
		}
	case OpBitNot:
		if v, ok := intOf(n.Operand); ok {
			return IntLit(Wrap(^v, f.width()))
		}
	}
	return n
}

func (f Folder) foldBinary(n BinaryExpr) Expr {
	if n.Op.IsLogical() {
		return foldLogical(n)
	}
	if n.Op == OpEq || n.Op == OpNeq {
		lv, lok := constOf(n.Left)
		rv, rok := constOf(n.Right)
		if lok && rok {
			li, lint := lv.(IntValue)
			ri, rint := rv.(IntValue)
			if lint && rint {
				return BoolLit((Wrap(li.Val, f.width()) == Wrap(ri.Val, f.width())) == (n.Op == OpEq))
			}
			return BoolLit(lv.Equal(rv) == (n.Op == OpEq))
		}
		if n.Left.String() == n.Right.String() && !HasSideEffects(n) {
			return BoolLit(n.Op == OpEq)
		}
		return n
	}
	l, lok := intOf(n.Left)
	r, rok := intOf(n.Right)
	if !lok || !rok {
		return n
	}
	w := f.width()
	l, r = Wrap(l, w), Wrap(r, w)
	switch n.Op {
	case OpLt:
		return BoolLit(l < r)
	case OpLte:
		return BoolLit(l <= r)
	case OpGt:
		return BoolLit(l > r)
	case OpGte:
		return BoolLit(l >= r)
	}
	v, ok := Arith(n.Op, l, r, w)
	if !ok {
		return n
	}
	return IntLit(v)
}

// Arith applies an arithmetic or bitwise operator to two width-bit words.
func Arith(op BinaryOp, l, r int64, width int) (int64, bool) {
	var v int64
	switch op {
	case OpAdd:
		v = l + r
	case OpSub:
		v = l - r
	case OpMul:
		v = l * r
	case OpDiv:
		switch {
		case r == 0 && l >= 0:
			v = -1
		case r == 0:
			v = 1
		case r == -1:
			v = -l
		default:
			v = l / r
		}
	case OpMod:
		switch {
		case r == 0:
			v = l
		case r == -1:
			v = 0
		default:
			v = l % r
		}
	case OpBitAnd:
		v = l & r
	case OpBitOr:
		v = l | r
	case OpBitXor:
		v = l ^ r
	case OpAndNot:
		v = l &^ r
	case OpShl:
		amount := uint64(r) & mask(width)
		if amount >= uint64(width) {
			v = 0
		} else {
			v = l << amount
		}
	case OpShr:
		amount := uint64(r) & mask(width)
		if amount >= uint64(width) {
			if l < 0 {
				v = -1
			} else {
				v = 0
			}
		} else {
			v = l >> amount
		}
	default:
		return 0, false
	}
	return Wrap(v, width), true
}

func mask(width int) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(width)) - 1
}

func foldLogical(n BinaryExpr) Expr {
	l, lok := boolOf(n.Left)
	r, rok := boolOf(n.Right)
	switch n.Op {
	case OpAnd:
		switch {
		case lok && !l, rok && !r:
			return False
		case lok:
			return n.Right
		case rok:
			return n.Left
		}
	case OpOr:
		switch {
		case lok && l, rok && r:
			return True
		case lok:
			return n.Right
		case rok:
			return n.Left
		}
	case OpImplies:
		switch {
		case lok && !l, rok && r:
			return True
		case lok:
			return n.Right
		case rok:
			return Not(n.Left)
		}
	}
	if n.Left.String() == n.Right.String() && !HasSideEffects(n) {
		if n.Op == OpImplies {
			return True
		}
		return n.Left
	}
	return n
}
