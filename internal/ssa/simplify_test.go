package ssa

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnolang/summarizer/internal/expr"
	"github.com/gnolang/summarizer/internal/program"
)

func straightLine(expected int64) *program.Function {
	b := program.NewBuilder("main")
	x := b.Local("x", expr.Int)
	b.Assign(x, expr.IntLit(1))
	b.At(program.Position{File: "main.go", Line: 3})
	b.Assert(expr.Eq(x, expr.IntLit(expected)), "main.assertion.1", "x == 2")
	return b.MustFinish()
}

func TestSimplifyFoldsCopies(t *testing.T) {
	t.Parallel()
	s := build(t, straightLine(1))
	simple := Simplify(s, 32)

	assert.Empty(t, simple.Equalities())
	n := simple.Assertions()[0]
	assert.Equal(t, "true", n.Guard.String())
	assert.Equal(t, "true", n.Assertion.String())

	// the original is untouched
	assert.Len(t, s.Equalities(), 4)
	assert.Equal(t, "@guard#1", s.Assertions()[0].Guard.String())
}

func TestSimplifyKeepsFalsifiedAssertion(t *testing.T) {
	t.Parallel()
	simple := Simplify(build(t, straightLine(2)), 32)
	assert.Equal(t, "false", simple.Assertions()[0].Assertion.String())
	assert.Equal(t, []string{"false"}, strs(simple.Constraints(Obligation)))
}

func TestSimplifyLoopKeepsLoopBackFree(t *testing.T) {
	t.Parallel()
	simple := Simplify(build(t, loop()), 32)

	text := strings.Join(strs(simple.Equalities()), "\n")
	assert.Contains(t, text, "x#lb3")
	assert.NotContains(t, text, "@guard#0")
	for _, eq := range simple.Equalities() {
		_, _, isCopy := copyOf(eq)
		assert.False(t, isCopy, eq.String())
	}
}

func TestSimplifyIsIdempotent(t *testing.T) {
	t.Parallel()
	once := Simplify(build(t, loop()), 32)
	twice := Simplify(once, 32)
	require.Equal(t, strs(once.Equalities()), strs(twice.Equalities()))
	assert.Equal(t, strs(once.Constraints(Obligation)), strs(twice.Constraints(Obligation)))
}
