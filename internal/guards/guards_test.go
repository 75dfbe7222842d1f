package guards

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gnolang/summarizer/internal/expr"
	"github.com/gnolang/summarizer/internal/program"
)

// diamond builds
//
//	0: IF c THEN GOTO 3
//	1: x := 1
//	2: GOTO 4
//	3: x := 2
//	4: ASSUME x > 0
//	5: SKIP
//	6: GOTO 5
//	7: END
func diamond() *program.Function {
	b := program.NewBuilder("f")
	c := b.Param("c", expr.Bool)
	x := b.Local("x", expr.Int)
	b.Goto(c, "else")
	b.Assign(x, expr.IntLit(1))
	b.Goto(expr.True, "join")
	b.Label("else")
	b.Assign(x, expr.IntLit(2))
	b.Label("join")
	b.Assume(expr.Binary(expr.OpGt, x, expr.IntLit(0)))
	b.Label("spin")
	b.Skip()
	b.Goto(expr.True, "spin")
	return b.MustFinish()
}

func TestIncoming(t *testing.T) {
	t.Parallel()
	m := Analyze(diamond())

	assert.Empty(t, m.Incoming(0))
	assert.Equal(t, []program.Edge{{From: 0, To: 1, Kind: program.EdgeNotTaken}}, m.Incoming(1))
	assert.Equal(t, []program.Edge{{From: 0, To: 3, Kind: program.EdgeTaken}}, m.Incoming(3))
	assert.Equal(t, []program.Edge{
		{From: 2, To: 4, Kind: program.EdgeSuccessor},
		{From: 3, To: 4, Kind: program.EdgeSuccessor},
	}, m.Incoming(4))
	assert.Equal(t, []program.Edge{
		{From: 4, To: 5, Kind: program.EdgeAssume},
		{From: 6, To: 5, Kind: program.EdgeSuccessor},
	}, m.Incoming(5))
	assert.True(t, m.Incoming(5)[1].Backward())
	assert.Empty(t, m.Incoming(7))
}

func TestGuardSource(t *testing.T) {
	t.Parallel()
	m := Analyze(diamond())

	tests := []struct {
		loc      int
		expected int
	}{
		{0, 0},
		{1, 1},
		{2, 1},
		{3, 3},
		{4, 4},
		{5, 5},
		{6, 5},
		{7, 7},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, m.GuardSource(tt.loc), "location %d", tt.loc)
	}
}

func TestSelfLoopGotoNextIsSuccessor(t *testing.T) {
	t.Parallel()
	b := program.NewBuilder("f")
	b.GotoID(expr.Symbol("c", expr.Bool), 1)
	b.Skip()
	m := Analyze(b.MustFinish())
	assert.Equal(t, []program.Edge{{From: 0, To: 1, Kind: program.EdgeSuccessor}}, m.Incoming(1))
}

func TestDump(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	assert.NoError(t, Analyze(diamond()).Dump(&buf))
	assert.Contains(t, buf.String(), "guard source 4\n")
	assert.Contains(t, buf.String(), "    <- 6 successor (back edge)\n")
}
