package solver

import (
	"context"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnolang/summarizer/internal/expr"
)

func TestSMTLibScript(t *testing.T) {
	t.Parallel()
	x := expr.Symbol("x#0", expr.Int)
	g := expr.Symbol("@guard#1", expr.Bool)
	a := expr.Symbol("a#in", expr.ArrayType{Elem: expr.Int, Len: 2})

	s := NewSMTLib(8, nil)
	require.NoError(t, s.Assert(expr.Eq(x, expr.IntLit(-1))))
	require.NoError(t, s.Assert(expr.Implies(g, expr.Binary(expr.OpLt, expr.Index(a, x), expr.IntLit(3)))))
	require.NoError(t, s.Assert(expr.Binary(expr.OpNeq, expr.Binary(expr.OpAndNot, x, x), expr.IntLit(1))))

	script, err := s.Script()
	require.NoError(t, err)
	expected := "(set-option :produce-models true)\n" +
		"(declare-const |x#0| (_ BitVec 8))\n" +
		"(declare-const |@guard#1| Bool)\n" +
		"(declare-const |a#in| (Array (_ BitVec 8) (_ BitVec 8)))\n" +
		"(assert (= |x#0| (_ bv255 8)))\n" +
		"(assert (=> |@guard#1| (bvslt (select |a#in| |x#0|) (_ bv3 8))))\n" +
		"(assert (distinct (bvand |x#0| (bvnot |x#0|)) (_ bv1 8)))\n" +
		"(check-sat)\n" +
		"(get-value (|x#0| |@guard#1|))\n" +
		"(exit)\n"
	assert.Equal(t, expected, script)
}

func TestSMTLibArrayLiteralAndStructs(t *testing.T) {
	t.Parallel()
	arr := expr.ArrayType{Elem: expr.Int, Len: 2}
	st := expr.StructType{Name: "P", Fields: []expr.Field{{Name: "x", Type: expr.Int}}}

	s := NewSMTLib(8, nil)
	lit := expr.ArrayExpr{Typ: arr, Elems: []expr.Expr{expr.IntLit(1), expr.IntLit(2)}}
	require.NoError(t, s.Assert(expr.Eq(expr.Symbol("a", arr), lit)))
	left := expr.StructExpr{Typ: st, Fields: []expr.Expr{expr.Symbol("p.x", expr.Int)}}
	right := expr.StructExpr{Typ: st, Fields: []expr.Expr{expr.IntLit(4)}}
	require.NoError(t, s.Assert(expr.Eq(left, right)))

	require.Len(t, s.asserts, 2)
	assert.Equal(t, "(= |a| (store (store ((as const (Array (_ BitVec 8) (_ BitVec 8))) (_ bv0 8)) (_ bv0 8) (_ bv1 8)) (_ bv1 8) (_ bv2 8)))", s.asserts[0])
	assert.Equal(t, "(= |p.x| (_ bv4 8))", s.asserts[1])
}

func TestSMTLibParseModel(t *testing.T) {
	t.Parallel()
	s := NewSMTLib(8, nil)
	require.NoError(t, s.Assert(expr.Eq(expr.Symbol("x#0", expr.Int), expr.Symbol("y#0", expr.Int))))
	require.NoError(t, s.Assert(expr.Symbol("b", expr.Bool)))

	m := s.parseModel("((|x#0| #xff)\n (|y#0| (_ bv3 8))\n (|b| true))\n")
	assert.Equal(t, Model{
		"x#0": expr.IntValue{Val: -1},
		"y#0": expr.IntValue{Val: 3},
		"b":   expr.BoolValue{Val: true},
	}, m)
}

func TestSMTLibCheckWithScriptedSolver(t *testing.T) {
	t.Parallel()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	tests := []struct {
		name     string
		answer   string
		expected Result
		hasErr   bool
	}{
		{"sat", `printf 'sat\n((|x| #x05))\n'`, Satisfiable, false},
		{"unsat", `echo unsat`, Unsatisfiable, false},
		{"unknown", `echo unknown`, Unknown, false},
		{"error", `echo '(error "boom")'`, Unknown, true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := NewSMTLib(8, []string{"sh", "-c", "cat >/dev/null; " + tt.answer})
			require.NoError(t, s.Assert(expr.Eq(expr.Symbol("x", expr.Int), expr.IntLit(5))))
			res, err := s.Check(context.Background())
			if tt.hasErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, res)
			if res == Satisfiable {
				assert.Equal(t, expr.IntValue{Val: 5}, s.Model()["x"])
			}
		})
	}
}

func TestSMTLibWithZ3(t *testing.T) {
	t.Parallel()
	if _, err := exec.LookPath("z3"); err != nil {
		t.Skip("z3 not installed")
	}
	x := expr.Symbol("x", expr.Int)
	s := NewSMTLib(32, []string{"z3", "-in"})
	require.NoError(t, s.Assert(expr.Eq(x, expr.Binary(expr.OpDiv, expr.IntLit(-5), expr.IntLit(0)))))
	res, err := s.Check(context.Background())
	require.NoError(t, err)
	require.Equal(t, Satisfiable, res)
	assert.Equal(t, expr.IntValue{Val: 1}, s.Model()["x"])
}
