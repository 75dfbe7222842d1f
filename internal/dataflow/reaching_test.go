package dataflow

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnolang/summarizer/internal/expr"
	"github.com/gnolang/summarizer/internal/program"
)

// loop builds
//
//	0: x := 0
//	1: IF !(x < 10) THEN GOTO 4
//	2: x := x + 1
//	3: GOTO 1
//	4: ASSERT x == 10
//	5: END
func loop(t *testing.T) *program.Function {
	t.Helper()
	b := program.NewBuilder("loop")
	x := b.Local("x", expr.Int)
	b.Assign(x, expr.IntLit(0))
	b.Label("head")
	b.Goto(expr.Not(expr.Binary(expr.OpLt, x, expr.IntLit(10))), "done")
	b.Assign(x, expr.Binary(expr.OpAdd, x, expr.IntLit(1)))
	b.Goto(expr.True, "head")
	b.Label("done")
	b.Assert(expr.Eq(x, expr.IntLit(10)), "loop.assertion.1", "x == 10")
	fn, err := b.Finish()
	require.NoError(t, err)
	return fn
}

func TestReachingDefinitionsLoop(t *testing.T) {
	t.Parallel()
	fn := loop(t)
	r := Analyze(fn)
	x := program.MustObject(expr.Var("x", expr.Int))

	tests := []struct {
		name     string
		loc      int
		expected program.Definitions
	}{
		{"entry", 0, program.Definitions{Input: true}},
		{"loop head merges", 1, program.Definitions{Locs: []int{0, 2}}},
		{"body", 2, program.Definitions{Locs: []int{0, 2}}},
		{"back edge", 3, program.Definitions{Locs: []int{2}}},
		{"exit of loop", 4, program.Definitions{Locs: []int{0, 2}}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, r.DefinitionsAt(x, tt.loc))
		})
	}

	assert.True(t, r.Assigns(0, x))
	assert.False(t, r.Assigns(1, x))
	assert.True(t, r.Reachable(5))
}

func TestCallHavocsStatics(t *testing.T) {
	t.Parallel()
	b := program.NewBuilder("f")
	g := expr.Global("main::g", expr.Int)
	y := b.Local("y", expr.Int)
	b.Assign(g, expr.IntLit(1))
	b.Assign(y, expr.IntLit(2))
	b.Call(nil, "h")
	b.Assert(expr.Eq(g, y), "f.assertion.1", "")
	fn := b.MustFinish()

	r := Analyze(fn)
	gobj := program.MustObject(g)
	yobj := program.MustObject(y)
	assert.True(t, r.Assigns(2, gobj))
	assert.False(t, r.Assigns(2, yobj))
	assert.Equal(t, program.Definitions{Locs: []int{2}}, r.DefinitionsAt(gobj, 3))
	assert.Equal(t, program.Definitions{Locs: []int{1}}, r.DefinitionsAt(yobj, 3))
}

func TestUnreachableAndUnknown(t *testing.T) {
	t.Parallel()
	b := program.NewBuilder("f")
	x := b.Local("x", expr.Int)
	b.Goto(expr.True, "end")
	b.Assign(x, expr.IntLit(1))
	b.Label("end")
	b.Skip()
	fn := b.MustFinish()

	r := Analyze(fn)
	assert.False(t, r.Reachable(1))
	assert.Equal(t, program.Definitions{}, r.DefinitionsAt(program.MustObject(x), 1))
	assert.Equal(t, program.Definitions{Input: true}, r.DefinitionsAt(program.MustObject(x), 2))

	other := program.MustObject(expr.Var("other", expr.Int))
	assert.Equal(t, program.Definitions{Input: true}, r.DefinitionsAt(other, 2))
	assert.False(t, r.Assigns(1, other))
}

func TestStructLeaves(t *testing.T) {
	t.Parallel()
	st := expr.StructType{Name: "P", Fields: []expr.Field{{Name: "a", Type: expr.Int}, {Name: "b", Type: expr.Int}}}
	b := program.NewBuilder("f")
	p := b.Local("p", st)
	b.Assign(expr.Member(p, "a"), expr.IntLit(1))
	b.Skip()
	fn := b.MustFinish()

	r := Analyze(fn)
	a := program.MustObject(expr.Member(p, "a"))
	bb := program.MustObject(expr.Member(p, "b"))
	assert.Equal(t, program.Definitions{Locs: []int{0}}, r.DefinitionsAt(a, 1))
	assert.Equal(t, program.Definitions{Input: true}, r.DefinitionsAt(bb, 1))
}

func TestDump(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	require.NoError(t, Analyze(loop(t)).Dump(&buf))
	assert.Contains(t, buf.String(), "  x <- {0, 2}\n")
	assert.Contains(t, buf.String(), "  x <- {INPUT}\n")
}
