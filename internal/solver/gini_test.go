package solver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnolang/summarizer/internal/expr"
)

func check(t *testing.T, dp DecisionProcedure, formulas ...expr.Expr) Result {
	t.Helper()
	for _, f := range formulas {
		require.NoError(t, dp.Assert(f))
	}
	res, err := dp.Check(context.Background())
	require.NoError(t, err)
	return res
}

func TestGiniRoundTrip(t *testing.T) {
	t.Parallel()
	x := expr.Symbol("x#0", expr.Int)
	g := expr.Symbol("@guard#1", expr.Bool)

	// x = 1; assert(x == 2)
	fail := NewGini(32)
	res := check(t, fail,
		expr.Eq(x, expr.IntLit(1)),
		expr.Eq(g, expr.True),
		g,
		expr.Not(expr.Eq(x, expr.IntLit(2))),
	)
	require.Equal(t, Satisfiable, res)
	assert.Equal(t, expr.IntValue{Val: 1}, fail.Model()["x#0"])
	assert.Equal(t, expr.BoolValue{Val: true}, fail.Model()["@guard#1"])

	// x = 1; assert(x == 1)
	pass := NewGini(32)
	assert.Equal(t, Unsatisfiable, check(t, pass,
		expr.Eq(x, expr.IntLit(1)),
		expr.Not(expr.Eq(x, expr.IntLit(1))),
	))
}

func TestGiniMatchesFolder(t *testing.T) {
	t.Parallel()

	ops := []expr.BinaryOp{
		expr.OpAdd, expr.OpSub, expr.OpMul, expr.OpDiv, expr.OpMod,
		expr.OpBitAnd, expr.OpBitOr, expr.OpBitXor, expr.OpAndNot,
		expr.OpShl, expr.OpShr,
	}
	operands := [][2]int64{
		{7, 2}, {-7, 2}, {7, -2}, {5, 0}, {-5, 0}, {-128, -1}, {127, 1}, {-4, 1}, {1, 9}, {-1, 200},
	}
	const width = 8

	for _, op := range ops {
		for _, lr := range operands {
			op, lr := op, lr
			t.Run(op.String(), func(t *testing.T) {
				t.Parallel()
				x := expr.Symbol("x", expr.Int)
				y := expr.Symbol("y", expr.Int)
				r := expr.Symbol("r", expr.Int)
				want, ok := expr.Arith(op, expr.Wrap(lr[0], width), expr.Wrap(lr[1], width), width)
				require.True(t, ok)

				dp := NewGini(width)
				res := check(t, dp,
					expr.Eq(x, expr.IntLit(lr[0])),
					expr.Eq(y, expr.IntLit(lr[1])),
					expr.Eq(r, expr.Binary(op, x, y)),
				)
				require.Equal(t, Satisfiable, res)
				assert.Equal(t, expr.IntValue{Val: want}, dp.Model()["r"], "%d %s %d", lr[0], op, lr[1])
			})
		}
	}
}

func TestGiniComparisons(t *testing.T) {
	t.Parallel()
	const width = 8
	pairs := [][2]int64{{-1, 0}, {0, -1}, {3, 3}, {-128, 127}, {100, -100}}
	ops := []expr.BinaryOp{expr.OpLt, expr.OpLte, expr.OpGt, expr.OpGte, expr.OpEq, expr.OpNeq}

	for _, op := range ops {
		for _, p := range pairs {
			want, err := expr.Folder{Width: width}.Eval(expr.Binary(op, expr.IntLit(p[0]), expr.IntLit(p[1])))
			require.NoError(t, err)

			dp := NewGini(width)
			x := expr.Symbol("x", expr.Int)
			y := expr.Symbol("y", expr.Int)
			b := expr.Symbol("b", expr.Bool)
			res := check(t, dp,
				expr.Eq(x, expr.IntLit(p[0])),
				expr.Eq(y, expr.IntLit(p[1])),
				expr.Eq(b, expr.Binary(op, x, y)),
			)
			require.Equal(t, Satisfiable, res)
			assert.Equal(t, want, dp.Model()["b"], "%d %s %d", p[0], op, p[1])
		}
	}
}

func TestGiniArraysAndAddresses(t *testing.T) {
	t.Parallel()
	arr := expr.ArrayType{Elem: expr.Int, Len: 3}
	a := expr.Symbol("a#in", arr)
	i := expr.Symbol("i#in", expr.Int)
	updated := expr.WithExpr{Array: a, Index: i, Value: expr.IntLit(9)}

	// reading back the written element always yields the written value
	assert.Equal(t, Unsatisfiable, check(t, NewGini(16),
		expr.Binary(expr.OpGte, i, expr.IntLit(0)),
		expr.Binary(expr.OpLt, i, expr.IntLit(3)),
		expr.Not(expr.Eq(expr.Index(updated, i), expr.IntLit(9))),
	))

	// other elements are untouched
	assert.Equal(t, Unsatisfiable, check(t, NewGini(16),
		expr.Eq(i, expr.IntLit(1)),
		expr.Not(expr.Eq(expr.Index(updated, expr.IntLit(2)), expr.Index(a, expr.IntLit(2)))),
	))

	model := NewGini(16)
	require.Equal(t, Satisfiable, check(t, model, expr.Eq(a, expr.Lit(expr.ArrayValue{Typ: arr, Elems: []expr.Value{
		expr.IntValue{Val: 1}, expr.IntValue{Val: 2}, expr.IntValue{Val: 3},
	}}))))
	assert.Equal(t, "{1, 2, 3}", model.Model()["a#in"].String())

	path := expr.Var("b", arr)
	p0 := expr.Addr(expr.Index(path, expr.IntLit(0)))
	p1 := expr.Addr(expr.Index(path, i))
	assert.Equal(t, Unsatisfiable, check(t, NewGini(32),
		expr.Eq(i, expr.IntLit(0)),
		expr.Not(expr.Eq(p0, p1)),
	))
	assert.Equal(t, Unsatisfiable, check(t, NewGini(32),
		expr.Eq(i, expr.IntLit(1)),
		expr.Eq(p0, p1),
	))
}

func TestGiniStructs(t *testing.T) {
	t.Parallel()
	st := expr.StructType{Name: "P", Fields: []expr.Field{{Name: "x", Type: expr.Int}, {Name: "ok", Type: expr.Bool}}}
	c := expr.Symbol("c", expr.Bool)
	lhs := expr.StructExpr{Typ: st, Fields: []expr.Expr{expr.Symbol("p.x", expr.Int), expr.Symbol("p.ok", expr.Bool)}}
	rhs := expr.Ite(c, expr.StructExpr{Typ: st, Fields: []expr.Expr{expr.IntLit(1), expr.True}}, expr.StructExpr{Typ: st, Fields: []expr.Expr{expr.IntLit(2), expr.False}})

	assert.Equal(t, Unsatisfiable, check(t, NewGini(32),
		expr.Eq(lhs, rhs),
		c,
		expr.Not(expr.Eq(expr.Member(lhs, "x"), expr.IntLit(1))),
	))
}

func TestGiniCancelled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dp := NewGini(32)
	require.NoError(t, dp.Assert(expr.Symbol("b", expr.Bool)))
	res, err := dp.Check(ctx)
	require.NoError(t, err)
	assert.Equal(t, Unknown, res)
}

func TestGiniRejectsSideEffects(t *testing.T) {
	t.Parallel()
	err := NewGini(32).Assert(expr.Eq(expr.NondetExpr{Typ: expr.Int}, expr.IntLit(0)))
	assert.ErrorIs(t, err, ErrUnsupported)
	err = NewGini(32).Assert(expr.IntLit(0))
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestNew(t *testing.T) {
	t.Parallel()

	f, err := New(Config{})
	require.NoError(t, err)
	assert.IsType(t, &Gini{}, f())

	f, err = New(Config{Name: "smtlib", Width: 16})
	require.NoError(t, err)
	assert.IsType(t, &SMTLib{}, f())

	_, err = New(Config{Name: "cvc9"})
	assert.ErrorIs(t, err, ErrUnknownSolver)
	_, err = New(Config{Width: 12})
	assert.ErrorIs(t, err, ErrWidth)
}
