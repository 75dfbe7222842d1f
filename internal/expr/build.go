package expr

// Helper functions for building expressions.

var (
	True  Expr = ConstExpr{Val: BoolValue{Val: true}}
	False Expr = ConstExpr{Val: BoolValue{Val: false}}
)

func IntLit(v int64) Expr {
	return ConstExpr{Val: IntValue{Val: v}}
}

func BoolLit(v bool) Expr {
	if v {
		return True
	}
	return False
}

// Lit converts a concrete value into an expression.
func Lit(v Value) Expr {
	switch v := v.(type) {
	case ArrayValue:
		elems := make([]Expr, len(v.Elems))
		for i, e := range v.Elems {
			elems[i] = Lit(e)
		}
		return ArrayExpr{Typ: v.Typ, Elems: elems}
	case StructValue:
		fields := make([]Expr, len(v.Fields))
		for i, f := range v.Fields {
			fields[i] = Lit(f)
		}
		return StructExpr{Typ: v.Typ, Fields: fields}
	default:
		return ConstExpr{Val: v}
	}
}

func Var(name string, t Type) Expr {
	return IdentExpr{Name: name, Typ: t}
}

func Global(name string, t Type) Expr {
	return IdentExpr{Name: name, Typ: t, Static: true}
}

func Symbol(name string, t Type) SymbolExpr {
	return SymbolExpr{Name: name, Typ: t}
}

func Binary(op BinaryOp, l, r Expr) Expr {
	return BinaryExpr{Op: op, Left: l, Right: r}
}

func Eq(l, r Expr) Expr {
	return BinaryExpr{Op: OpEq, Left: l, Right: r}
}

func Not(e Expr) Expr {
	if u, ok := e.(UnaryExpr); ok && u.Op == OpNot {
		return u.Operand
	}
	if c, ok := e.(ConstExpr); ok {
		if b, ok := c.Val.(BoolValue); ok {
			return BoolLit(!b.Val)
		}
	}
	return UnaryExpr{Op: OpNot, Operand: e}
}

// And returns the left-associated conjunction of es; the empty conjunction
// is true.
func And(es ...Expr) Expr {
	if len(es) == 0 {
		return True
	}
	out := es[0]
	for _, e := range es[1:] {
		out = BinaryExpr{Op: OpAnd, Left: out, Right: e}
	}
	return out
}

// Or returns the left-associated disjunction of es; the empty disjunction
// is false.
func Or(es ...Expr) Expr {
	if len(es) == 0 {
		return False
	}
	out := es[0]
	for _, e := range es[1:] {
		out = BinaryExpr{Op: OpOr, Left: out, Right: e}
	}
	return out
}

func Implies(l, r Expr) Expr {
	return BinaryExpr{Op: OpImplies, Left: l, Right: r}
}

func Ite(c, t, e Expr) Expr {
	return IteExpr{Cond: c, Then: t, Else: e}
}

func Member(x Expr, field string) Expr {
	st, ok := x.Type().(StructType)
	if !ok {
		return MemberExpr{X: x, Field: field}
	}
	f, _, _ := st.Field(field)
	return MemberExpr{X: x, Field: field, Typ: f.Type}
}

func Index(x, i Expr) Expr {
	var elem Type
	if at, ok := x.Type().(ArrayType); ok {
		elem = at.Elem
	}
	return IndexExpr{X: x, Index: i, Typ: elem}
}

func Addr(x Expr) Expr {
	return AddrExpr{X: x, Typ: PointerType{Elem: x.Type()}}
}

// Project returns field name of the struct-typed expression x, pushing the
// selection through struct literals and conditionals.
func Project(x Expr, name string) Expr {
	switch x := x.(type) {
	case StructExpr:
		if _, i, ok := x.Typ.Field(name); ok {
			return x.Fields[i]
		}
	case ConstExpr:
		if sv, ok := x.Val.(StructValue); ok {
			if _, i, ok := sv.Typ.Field(name); ok {
				return Lit(sv.Fields[i])
			}
		}
	case IteExpr:
		return Ite(x.Cond, Project(x.Then, name), Project(x.Else, name))
	}
	return Member(x, name)
}

// IsTrue reports whether e is the literal true.
func IsTrue(e Expr) bool {
	c, ok := e.(ConstExpr)
	if !ok {
		return false
	}
	b, ok := c.Val.(BoolValue)
	return ok && b.Val
}

// IsFalse reports whether e is the literal false.
func IsFalse(e Expr) bool {
	c, ok := e.(ConstExpr)
	if !ok {
		return false
	}
	b, ok := c.Val.(BoolValue)
	return ok && !b.Val
}
