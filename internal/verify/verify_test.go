package verify

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gnolang/summarizer/internal/expr"
	"github.com/gnolang/summarizer/internal/program"
	"github.com/gnolang/summarizer/internal/solver"
)

type mockProcedure struct {
	mock.Mock
}

func (m *mockProcedure) Assert(e expr.Expr) error {
	return m.Called(e).Error(0)
}

func (m *mockProcedure) Check(ctx context.Context) (solver.Result, error) {
	args := m.Called(ctx)
	return args.Get(0).(solver.Result), args.Error(1)
}

func (m *mockProcedure) Model() solver.Model {
	args := m.Called()
	if v := args.Get(0); v != nil {
		return v.(solver.Model)
	}
	return nil
}

func answering(res solver.Result, err error) *mockProcedure {
	m := &mockProcedure{}
	m.On("Assert", mock.Anything).Return(nil)
	m.On("Check", mock.Anything).Return(res, err)
	m.On("Model").Return(solver.Model{"x#0": expr.IntValue{Val: 1}}).Maybe()
	return m
}

// sequence hands out the procedures in order.
func sequence(procs ...solver.DecisionProcedure) solver.Factory {
	var mu sync.Mutex
	next := 0
	return func() solver.DecisionProcedure {
		mu.Lock()
		defer mu.Unlock()
		p := procs[next]
		next++
		return p
	}
}

func newProgram(fns ...*program.Function) *program.Program {
	prog := program.New(fns[0].Name)
	for _, fn := range fns {
		prog.Add(fn)
	}
	return prog
}

// straight builds
//
//	0: x := 1
//	1: ASSERT x == 1 // main.assertion.1
//	2: ASSERT x == 2 // main.assertion.2
//	3: END
func straight() *program.Function {
	b := program.NewBuilder("main")
	x := b.Local("x", expr.Int)
	b.Assign(x, expr.IntLit(1))
	b.At(program.Position{File: "main.go", Line: 4})
	b.Assert(expr.Eq(x, expr.IntLit(1)), "main.assertion.1", "x == 1")
	b.At(program.Position{File: "main.go", Line: 5})
	b.Assert(expr.Eq(x, expr.IntLit(2)), "main.assertion.2", "x == 2")
	return b.MustFinish()
}

// counting increments x up to 10 and checks the exit condition.
func counting() *program.Function {
	b := program.NewBuilder("main")
	x := b.Local("x", expr.Int)
	b.Assign(x, expr.IntLit(0))
	b.Label("head")
	b.Goto(expr.Not(expr.Binary(expr.OpLt, x, expr.IntLit(10))), "done")
	b.Assign(x, expr.Binary(expr.OpAdd, x, expr.IntLit(1)))
	b.Goto(expr.True, "head")
	b.Label("done")
	b.Assert(expr.Binary(expr.OpGte, x, expr.IntLit(10)), "main.assertion.1", "x >= 10")
	return b.MustFinish()
}

// branching picks x from a nondeterministic y.
func branching() *program.Function {
	b := program.NewBuilder("main")
	x := b.Local("x", expr.Int)
	y := b.Local("y", expr.Int)
	b.Assign(y, expr.NondetExpr{Typ: expr.Int})
	b.Goto(expr.Not(expr.Binary(expr.OpGt, y, expr.IntLit(0))), "else")
	b.Assign(x, expr.IntLit(1))
	b.Goto(expr.True, "end")
	b.Label("else")
	b.Assign(x, expr.IntLit(2))
	b.Label("end")
	b.Assert(expr.Binary(expr.OpGt, x, expr.IntLit(0)), "main.assertion.1", "x > 0")
	b.Assert(expr.Eq(x, expr.IntLit(1)), "main.assertion.2", "x == 1")
	return b.MustFinish()
}

func statuses(r *Report) map[string]Status {
	out := make(map[string]Status)
	for _, p := range r.Properties {
		out[p.ID] = p.Status
	}
	return out
}

func TestCheckWithGini(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		fn       *program.Function
		expected map[string]Status
		verdict  Verdict
	}{
		{
			name: "straight line",
			fn:   straight(),
			expected: map[string]Status{
				"main.assertion.1": StatusPass,
				"main.assertion.2": StatusFail,
			},
			verdict: Unsafe,
		},
		{
			name:     "loop exit condition",
			fn:       counting(),
			expected: map[string]Status{"main.assertion.1": StatusPass},
			verdict:  Safe,
		},
		{
			name: "branches",
			fn:   branching(),
			expected: map[string]Status{
				"main.assertion.1": StatusPass,
				"main.assertion.2": StatusFail,
			},
			verdict: Unsafe,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			prog := newProgram(tt.fn)
			for _, simplify := range []bool{false, true} {
				c := New(Options{Simplify: simplify, Width: 32, Jobs: 2, Logger: zap.NewNop()})
				report, err := c.Check(context.Background(), prog)
				require.NoError(t, err)
				assert.Equal(t, tt.expected, statuses(report), "simplify=%v", simplify)
				assert.Equal(t, tt.verdict, report.Verdict, "simplify=%v", simplify)
			}
		})
	}
}

func TestCounterexampleTrace(t *testing.T) {
	t.Parallel()

	c := New(Options{Width: 32})
	report, err := c.Check(context.Background(), newProgram(straight()))
	require.NoError(t, err)

	p := report.Properties[1]
	require.Equal(t, StatusFail, p.Status)
	require.NotEmpty(t, p.Trace)
	assert.Equal(t, Step{Symbol: "x#0", Object: "x", Location: 0, Value: "1"}, p.Trace[0])
	assert.Equal(t, "main.go", p.Pos.File)
	assert.Equal(t, 5, p.Pos.Line)
	assert.Equal(t, 1, report.Failed())
	assert.Zero(t, report.Unknown())
}

// twice asserts two conditions under the same property id.
func twice() *program.Function {
	b := program.NewBuilder("main")
	x := b.Local("x", expr.Int)
	b.Assign(x, expr.IntLit(1))
	b.Assert(expr.Eq(x, expr.IntLit(1)), "p", "first")
	b.Assert(expr.Eq(x, expr.IntLit(1)), "p", "second")
	return b.MustFinish()
}

func TestSharedPropertyResolution(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		results  []solver.Result
		expected Status
	}{
		{"fail then pass", []solver.Result{solver.Satisfiable, solver.Unsatisfiable}, StatusFail},
		{"pass then fail", []solver.Result{solver.Unsatisfiable, solver.Satisfiable}, StatusFail},
		{"all pass", []solver.Result{solver.Unsatisfiable, solver.Unsatisfiable}, StatusPass},
		{"pass then timeout", []solver.Result{solver.Unsatisfiable, solver.Unknown}, StatusUnknown},
		{"timeout then fail", []solver.Result{solver.Unknown, solver.Satisfiable}, StatusFail},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var procs []solver.DecisionProcedure
			var mocks []*mockProcedure
			for _, r := range tt.results {
				m := answering(r, nil)
				mocks = append(mocks, m)
				procs = append(procs, m)
			}
			c := New(Options{Factory: sequence(procs...), Jobs: 1})
			report, err := c.Check(context.Background(), newProgram(twice()))
			require.NoError(t, err)
			require.Len(t, report.Properties, 1)
			assert.Equal(t, tt.expected, report.Properties[0].Status)
			assert.Equal(t, "first", report.Properties[0].Description)
			for _, m := range mocks {
				m.AssertExpectations(t)
			}
		})
	}
}

func TestQueryContents(t *testing.T) {
	t.Parallel()

	m := &mockProcedure{}
	var asserted []string
	m.On("Assert", mock.Anything).Run(func(args mock.Arguments) {
		asserted = append(asserted, args.Get(0).(expr.Expr).String())
	}).Return(nil)
	m.On("Check", mock.Anything).Return(solver.Unsatisfiable, nil)

	b := program.NewBuilder("main")
	x := b.Local("x", expr.Int)
	b.Assign(x, expr.IntLit(1))
	b.Assert(expr.Eq(x, expr.IntLit(1)), "p", "")
	prog := newProgram(b.MustFinish())

	c := New(Options{Factory: sequence(m), Jobs: 1})
	_, err := c.Check(context.Background(), prog)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"@guard#0 == true",
		"x#0 == 1",
		"@guard#1 == @guard#0",
		"@guard#2 == @guard#1",
		"@guard#1",
		"!(x#0 == 1)",
	}, asserted)
	m.AssertExpectations(t)
}

func TestDecisionProcedureErrorAborts(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	c := New(Options{
		Factory: sequence(answering(solver.Unsatisfiable, nil), answering(solver.Unknown, boom)),
		Jobs:    1,
	})
	report, err := c.Check(context.Background(), newProgram(straight()))
	assert.ErrorIs(t, err, ErrDecisionProcedure)
	assert.Nil(t, report)
}

type blockingProcedure struct{}

func (blockingProcedure) Assert(expr.Expr) error { return nil }

func (blockingProcedure) Check(ctx context.Context) (solver.Result, error) {
	<-ctx.Done()
	return solver.Unknown, nil
}

func (blockingProcedure) Model() solver.Model { return nil }

func TestTimeoutLeavesUnknown(t *testing.T) {
	t.Parallel()

	c := New(Options{
		Factory: func() solver.DecisionProcedure { return blockingProcedure{} },
		Timeout: 10 * time.Millisecond,
	})
	report, err := c.Check(context.Background(), newProgram(straight()))
	require.NoError(t, err)
	for _, p := range report.Properties {
		assert.Equal(t, StatusUnknown, p.Status)
	}
	assert.Equal(t, Safe, report.Verdict)
	assert.Equal(t, 2, report.Unknown())
}

func TestCancelledCheckReturnsNoReport(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := New(Options{}).Check(ctx, newProgram(straight()))
	assert.ErrorIs(t, err, ErrInterrupted)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, report)
}

func TestCancelDuringCheck(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	c := New(Options{
		Factory: func() solver.DecisionProcedure { return blockingProcedure{} },
		OnCheck: cancel,
		Jobs:    1,
		Timeout: 10 * time.Millisecond,
	})
	report, err := c.Check(ctx, newProgram(straight()))
	assert.ErrorIs(t, err, ErrInterrupted)
	assert.Nil(t, report)
}

func TestPropertyFilter(t *testing.T) {
	t.Parallel()

	c := New(Options{Properties: []string{"main.assertion.2"}})
	report, err := c.Check(context.Background(), newProgram(straight()))
	require.NoError(t, err)
	require.Len(t, report.Properties, 1)
	assert.Equal(t, "main.assertion.2", report.Properties[0].ID)
	assert.Equal(t, StatusFail, report.Properties[0].Status)

	analyses, err := c.Assertions(newProgram(straight()))
	require.NoError(t, err)
	assert.Equal(t, 1, c.Count(analyses))
}

func helper(inlined bool) *program.Function {
	b := program.NewBuilder("helper")
	y := b.Local("y", expr.Int)
	b.Assign(y, expr.IntLit(3))
	b.Assert(expr.Eq(y, expr.IntLit(3)), "helper.assertion.1", "y == 3")
	fn := b.MustFinish()
	fn.Inlined = inlined
	return fn
}

func TestInitializePropertyMap(t *testing.T) {
	t.Parallel()

	props := InitializePropertyMap(newProgram(straight(), helper(false)))
	assert.Equal(t, 3, props.Len())
	p, ok := props.Get("helper.assertion.1")
	require.True(t, ok)
	assert.Equal(t, StatusUnknown, p.Status)
	assert.Equal(t, "helper", p.Function)
	assert.Equal(t, "assertion", p.Category)

	props = InitializePropertyMap(newProgram(straight(), helper(true)))
	assert.Equal(t, 2, props.Len())
	_, ok = props.Get("helper.assertion.1")
	assert.False(t, ok)

	// The entry point is checked even when inlined.
	entry := helper(true)
	props = InitializePropertyMap(newProgram(entry))
	assert.Equal(t, 1, props.Len())
}

func TestFunctionSelection(t *testing.T) {
	t.Parallel()

	prog := newProgram(straight(), helper(false))

	report, err := New(Options{Function: "helper"}).Check(context.Background(), prog)
	require.NoError(t, err)
	require.Len(t, report.Properties, 1)
	assert.Equal(t, StatusPass, report.Properties[0].Status)

	_, err = New(Options{Function: "missing"}).Check(context.Background(), prog)
	assert.ErrorIs(t, err, ErrUnknownFunction)
}

func TestNoEntryPoint(t *testing.T) {
	t.Parallel()

	prog := program.New("main")
	prog.Add(helper(false))
	_, err := New(Options{}).Check(context.Background(), prog)
	assert.ErrorIs(t, err, ErrNoEntryPoint)
}

func TestWriteVCC(t *testing.T) {
	t.Parallel()

	c := New(Options{Properties: []string{"main.assertion.2"}})
	analyses, err := c.Assertions(newProgram(straight()))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, c.WriteVCC(&buf, analyses))
	assert.Equal(t, "main.go:5 function main\n"+
		"x == 2\n"+
		"{-1} @guard#0 == true\n"+
		"{-2} x#0 == 1\n"+
		"{-3} @guard#1 == @guard#0\n"+
		"{-4} @guard#2 == @guard#1\n"+
		"{-5} @guard#3 == @guard#2\n"+
		"|--------------------------\n"+
		"{1} @guard#2 => (x#0 == 2)\n\n", buf.String())
}

func TestOnCheckProgress(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	calls := 0
	c := New(Options{OnCheck: func() {
		mu.Lock()
		calls++
		mu.Unlock()
	}})
	_, err := c.Check(context.Background(), newProgram(straight(), helper(false)))
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}
