package frontend

import (
	"fmt"
	"go/ast"
	"go/constant"
	"go/token"
	"go/types"

	"golang.org/x/tools/go/ast/astutil"

	"github.com/gnolang/summarizer/internal/expr"
	"github.com/gnolang/summarizer/internal/program"
)

func unparen(e ast.Expr) ast.Expr { return astutil.Unparen(e) }

var binaryOps = map[token.Token]expr.BinaryOp{
	token.ADD:     expr.OpAdd,
	token.SUB:     expr.OpSub,
	token.MUL:     expr.OpMul,
	token.QUO:     expr.OpDiv,
	token.REM:     expr.OpMod,
	token.AND:     expr.OpBitAnd,
	token.OR:      expr.OpBitOr,
	token.XOR:     expr.OpBitXor,
	token.AND_NOT: expr.OpAndNot,
	token.SHL:     expr.OpShl,
	token.SHR:     expr.OpShr,
	token.EQL:     expr.OpEq,
	token.NEQ:     expr.OpNeq,
	token.LSS:     expr.OpLt,
	token.LEQ:     expr.OpLte,
	token.GTR:     expr.OpGt,
	token.GEQ:     expr.OpGte,
	token.LAND:    expr.OpAnd,
	token.LOR:     expr.OpOr,
}

// value lowers e as an rvalue. Calls of program functions are hoisted into
// call locations writing fresh temporaries.
func (lw *lowerer) value(e ast.Expr) (expr.Expr, error) {
	e = unparen(e)
	if tv, ok := lw.info.Types[e]; ok && tv.Value != nil {
		return lw.constant(e, tv)
	}

	switch e := e.(type) {
	case *ast.Ident:
		return lw.variable(e)
	case *ast.BinaryExpr:
		return lw.binary(e)
	case *ast.UnaryExpr:
		return lw.unary(e)
	case *ast.IndexExpr:
		return lw.index(e)
	case *ast.SelectorExpr:
		return lw.selector(e)
	case *ast.CallExpr:
		return lw.callValue(e)
	case *ast.CompositeLit:
		return lw.composite(e)
	case *ast.StarExpr:
		return nil, lw.errorf(e, "pointer dereference is not supported")
	}
	return nil, lw.errorf(e, "unsupported expression %s", types.ExprString(e))
}

func (lw *lowerer) constant(e ast.Expr, tv types.TypeAndValue) (expr.Expr, error) {
	switch tv.Value.Kind() {
	case constant.Bool:
		return expr.BoolLit(constant.BoolVal(tv.Value)), nil
	case constant.Int:
		if _, err := lw.typeOf(tv.Type, e); err != nil {
			return nil, err
		}
		v, exact := constant.Int64Val(tv.Value)
		if !exact {
			return nil, lw.errorf(e, "constant %s overflows", tv.Value)
		}
		return expr.IntLit(v), nil
	}
	return nil, lw.errorf(e, "constant %s is not supported", tv.Value)
}

func (lw *lowerer) variable(id *ast.Ident) (expr.Expr, error) {
	obj := lw.info.Uses[id]
	if obj == nil {
		obj = lw.info.Defs[id]
	}
	v, ok := obj.(*types.Var)
	if !ok {
		return nil, lw.errorf(id, "%s is not a variable", id.Name)
	}
	if e, ok := lw.vars[v]; ok {
		return e, nil
	}
	if e, ok := lw.globals[v]; ok {
		return e, nil
	}
	return nil, lw.errorf(id, "variable %s is used before its declaration", id.Name)
}

func (lw *lowerer) binary(e *ast.BinaryExpr) (expr.Expr, error) {
	op, ok := binaryOps[e.Op]
	if !ok {
		return nil, lw.errorf(e, "operator %s is not supported", e.Op)
	}
	left, err := lw.value(e.X)
	if err != nil {
		return nil, err
	}

	// The right operand of && and || is only evaluated when the left one
	// does not decide the result.
	switch op {
	case expr.OpAnd:
		lw.guards = append(lw.guards, left)
	case expr.OpOr:
		lw.guards = append(lw.guards, expr.Not(left))
	}
	right, err := lw.value(e.Y)
	if op == expr.OpAnd || op == expr.OpOr {
		lw.guards = lw.guards[:len(lw.guards)-1]
	}
	if err != nil {
		return nil, err
	}

	if op == expr.OpDiv || op == expr.OpMod {
		lw.divisor(right, e, types.ExprString(e))
	}
	return expr.Binary(op, left, right), nil
}

func (lw *lowerer) unary(e *ast.UnaryExpr) (expr.Expr, error) {
	x, err := lw.value(e.X)
	if err != nil {
		return nil, err
	}
	switch e.Op {
	case token.ADD:
		return x, nil
	case token.SUB:
		return expr.UnaryExpr{Op: expr.OpNeg, Operand: x}, nil
	case token.XOR:
		return expr.UnaryExpr{Op: expr.OpBitNot, Operand: x}, nil
	case token.NOT:
		return expr.Not(x), nil
	case token.AND:
		switch x.(type) {
		case expr.IdentExpr, expr.MemberExpr, expr.IndexExpr:
			return expr.Addr(x), nil
		}
		return nil, lw.errorf(e, "cannot take the address of %s", types.ExprString(e.X))
	}
	return nil, lw.errorf(e, "operator %s is not supported", e.Op)
}

func (lw *lowerer) index(e *ast.IndexExpr) (expr.Expr, error) {
	at, ok := lw.info.Types[e.X].Type.Underlying().(*types.Array)
	if !ok {
		return nil, lw.errorf(e, "only arrays can be indexed")
	}
	x, err := lw.value(e.X)
	if err != nil {
		return nil, err
	}
	i, err := lw.value(e.Index)
	if err != nil {
		return nil, err
	}
	if _, isConst := i.(expr.ConstExpr); !isConst && lw.opts.BoundsCheck {
		n := expr.IntLit(at.Len())
		lw.addCheck(
			expr.And(expr.Binary(expr.OpGte, i, expr.IntLit(0)), expr.Binary(expr.OpLt, i, n)),
			"array_bounds",
			fmt.Sprintf("array %s index %s in bounds", types.ExprString(e.X), types.ExprString(e.Index)),
			e,
		)
	}
	return expr.Index(x, i), nil
}

func (lw *lowerer) selector(e *ast.SelectorExpr) (expr.Expr, error) {
	sel, ok := lw.info.Selections[e]
	if !ok || sel.Kind() != types.FieldVal {
		return nil, lw.errorf(e, "unsupported selector %s", types.ExprString(e))
	}
	if sel.Indirect() {
		return nil, lw.errorf(e, "pointer dereference is not supported")
	}
	x, err := lw.value(e.X)
	if err != nil {
		return nil, err
	}
	return expr.Member(x, e.Sel.Name), nil
}

func (lw *lowerer) callValue(e *ast.CallExpr) (expr.Expr, error) {
	tv := lw.info.Types[e.Fun]
	if tv.IsType() {
		// conversion between integer types
		x, err := lw.value(e.Args[0])
		if err != nil {
			return nil, err
		}
		t, err := lw.typeOf(tv.Type, e)
		if err != nil {
			return nil, err
		}
		if !expr.SameType(t, x.Type()) {
			return nil, lw.errorf(e, "conversion to %s is not supported", tv.Type)
		}
		return x, nil
	}

	if id, ok := unparen(e.Fun).(*ast.Ident); ok {
		switch lw.predeclared(lw.info.Uses[id]) {
		case "nondet":
			return expr.NondetExpr{Typ: expr.Int}, nil
		case "nondetBool":
			return expr.NondetExpr{Typ: expr.Bool}, nil
		}
	}

	call, ok := lw.userCall(e)
	if !ok {
		return nil, lw.errorf(e, "unsupported call %s", types.ExprString(e))
	}
	t, err := lw.typeOf(lw.info.Types[e].Type, e)
	if err != nil {
		return nil, err
	}
	tmp := lw.temp(t)
	if err := lw.call(tmp, call); err != nil {
		return nil, err
	}
	return tmp, nil
}

func (lw *lowerer) composite(e *ast.CompositeLit) (expr.Expr, error) {
	t, err := lw.typeOf(lw.info.Types[e].Type, e)
	if err != nil {
		return nil, err
	}
	switch t := t.(type) {
	case expr.ArrayType:
		elems := make([]expr.Expr, t.Len)
		for i := range elems {
			elems[i] = zero(t.Elem)
		}
		pos := 0
		for _, el := range e.Elts {
			if kv, ok := el.(*ast.KeyValueExpr); ok {
				k, _ := constant.Int64Val(lw.info.Types[kv.Key].Value)
				pos = int(k)
				el = kv.Value
			}
			v, err := lw.value(el)
			if err != nil {
				return nil, err
			}
			elems[pos] = v
			pos++
		}
		return expr.ArrayExpr{Typ: t, Elems: elems}, nil
	case expr.StructType:
		fields := make([]expr.Expr, len(t.Fields))
		for i, f := range t.Fields {
			fields[i] = zero(f.Type)
		}
		for i, el := range e.Elts {
			idx := i
			if kv, ok := el.(*ast.KeyValueExpr); ok {
				_, idx, _ = t.Field(kv.Key.(*ast.Ident).Name)
				el = kv.Value
			}
			v, err := lw.value(el)
			if err != nil {
				return nil, err
			}
			fields[idx] = v
		}
		return expr.StructExpr{Typ: t, Fields: fields}, nil
	}
	return nil, lw.errorf(e, "composite literal of type %s is not supported", t)
}

// lvalue lowers an assignment target.
func (lw *lowerer) lvalue(e ast.Expr) (expr.Expr, error) {
	v, err := lw.value(e)
	if err != nil {
		return nil, err
	}
	if _, err := program.LvalueRoot(v); err != nil {
		return nil, lw.errorf(e, "%v", err)
	}
	return v, nil
}

// divisor records a division-by-zero check on a divisor that is not a
// nonzero constant.
func (lw *lowerer) divisor(d expr.Expr, at ast.Node, text string) {
	if !lw.opts.DivByZeroCheck {
		return
	}
	if c, ok := d.(expr.ConstExpr); ok && !c.Val.Equal(expr.IntValue{}) {
		return
	}
	lw.addCheck(expr.Binary(expr.OpNeq, d, expr.IntLit(0)), "division-by-zero", "division by zero in "+text, at)
}

func (lw *lowerer) addCheck(cond expr.Expr, category, comment string, at ast.Node) {
	if len(lw.guards) > 0 {
		cond = expr.Implies(expr.And(lw.guards...), cond)
	}
	lw.checks = append(lw.checks, check{
		cond:     cond,
		category: category,
		comment:  comment,
		pos:      lw.position(at.Pos()),
	})
}
