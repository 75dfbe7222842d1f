package frontend

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnolang/summarizer/internal/program"
	"github.com/gnolang/summarizer/internal/verify"
)

func load(t *testing.T, src string, opts Options) *program.Program {
	t.Helper()
	prog, err := ParseSource("main.go", []byte(src), opts)
	require.NoError(t, err)
	return prog
}

func listing(fn *program.Function) []string {
	out := make([]string, fn.Len())
	for i, loc := range fn.Body {
		out[i] = loc.String()
	}
	return out
}

func TestLowering(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		src      string
		fn       string
		expected []string
	}{
		{
			name: "loop",
			src: `package main

func main() {
	x := 0
	for x < 10 {
		x++
	}
	assert(x == 10)
}
`,
			fn: "main",
			expected: []string{
				"0: x := 0",
				"1: IF !(x < 10) THEN GOTO 4",
				"2: x := x + 1",
				"3: GOTO 1",
				"4: ASSERT x == 10 // main.assertion.1",
				"5: END_FUNCTION",
			},
		},
		{
			name: "early return",
			src: `package main

func abs(a int) int {
	if a < 0 {
		return -a
	}
	return a
}
`,
			fn: "abs",
			expected: []string{
				"0: IF !(a < 0) THEN GOTO 3",
				"1: $result := -a",
				"2: GOTO 4",
				"3: $result := a",
				"4: END_FUNCTION",
			},
		},
		{
			name: "tagged switch",
			src: `package main

func classify(x int) int {
	switch x {
	case 1:
		return 10
	case 2, 3:
		return 20
	}
	return 0
}
`,
			fn: "classify",
			expected: []string{
				"0: $tmp1 := x",
				"1: IF !($tmp1 == 1) THEN GOTO 4",
				"2: $result := 10",
				"3: GOTO 9",
				"4: IF $tmp1 == 2 THEN GOTO 6",
				"5: IF !($tmp1 == 3) THEN GOTO 8",
				"6: $result := 20",
				"7: GOTO 9",
				"8: $result := 0",
				"9: END_FUNCTION",
			},
		},
		{
			name: "calls and globals",
			src: `package main

var g = 2

func inc(x int) int {
	return x + g
}

func main() {
	y := inc(1) + inc(2)
	assert(y > 0)
}
`,
			fn: "main",
			expected: []string{
				"0: main::g := 2",
				"1: $tmp1 := inc(1)",
				"2: $tmp2 := inc(2)",
				"3: y := $tmp1 + $tmp2",
				"4: ASSERT y > 0 // main.assertion.1",
				"5: END_FUNCTION",
			},
		},
		{
			name: "global read in callee",
			src: `package main

var g = 2

func inc(x int) int {
	return x + g
}

func main() {}
`,
			fn: "inc",
			expected: []string{
				"0: $result := x + main::g",
				"1: END_FUNCTION",
			},
		},
		{
			name: "zero values and compound assignment",
			src: `package main

func main() {
	var s [2]int
	var n int
	n += 3
	s[1] = n
}
`,
			fn: "main",
			expected: []string{
				"0: s := [2]int{0, 0}",
				"1: n := 0",
				"2: n := n + 3",
				"3: s[1] := n",
				"4: END_FUNCTION",
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			prog := load(t, tt.src, Options{})
			fn, ok := prog.Function(tt.fn)
			require.True(t, ok)
			assert.Equal(t, tt.expected, listing(fn))
		})
	}
}

func TestShadowedNamesAreRenamed(t *testing.T) {
	t.Parallel()

	prog := load(t, `package main

func main() {
	x := 1
	if x > 0 {
		x := 2
		assert(x == 2)
	}
	assert(x == 1)
}
`, Options{})
	fn, _ := prog.Function("main")
	assert.Equal(t, []string{
		"0: x := 1",
		"1: IF !(x > 0) THEN GOTO 4",
		"2: x$1 := 2",
		"3: ASSERT x$1 == 2 // main.assertion.1",
		"4: ASSERT x == 1 // main.assertion.2",
		"5: END_FUNCTION",
	}, listing(fn))
}

func TestPositions(t *testing.T) {
	t.Parallel()

	prog := load(t, "package main\n\nfunc main() {\n\tx := 1\n\tassert(x == 1)\n}\n", Options{})
	fn, _ := prog.Function("main")
	assert.Equal(t, program.Position{File: "main.go", Line: 5, Column: 2}, fn.At(1).Pos)
	assert.Equal(t, "assertion x == 1", fn.At(1).Comment)
	assert.Equal(t, "assertion", fn.At(1).Category)
	assert.Equal(t, 3, fn.Pos.Line)
}

func TestAssertionsAndAssumptionsCanBeDropped(t *testing.T) {
	t.Parallel()

	src := `package main

func main() {
	x := nondet()
	assume(x > 0)
	assert(x > 0)
}
`
	tests := []struct {
		name     string
		opts     Options
		expected []program.Kind
	}{
		{"all", Options{}, []program.Kind{program.KindAssign, program.KindAssume, program.KindAssert, program.KindEnd}},
		{"no assertions", Options{NoAssertions: true}, []program.Kind{program.KindAssign, program.KindAssume, program.KindEnd}},
		{"no assumptions", Options{NoAssumptions: true}, []program.Kind{program.KindAssign, program.KindAssert, program.KindEnd}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			fn, _ := load(t, src, tt.opts).Function("main")
			var kinds []program.Kind
			for _, loc := range fn.Body {
				kinds = append(kinds, loc.Kind)
			}
			assert.Equal(t, tt.expected, kinds)
		})
	}
}

func checkStatuses(t *testing.T, prog *program.Program) map[string]verify.Status {
	t.Helper()
	return checkStatusesWith(t, prog, true)
}

func checkStatusesWith(t *testing.T, prog *program.Program, simplify bool) map[string]verify.Status {
	t.Helper()
	report, err := verify.New(verify.Options{Width: 32, Simplify: simplify}).Check(context.Background(), prog)
	require.NoError(t, err)
	out := make(map[string]verify.Status)
	for _, p := range report.Properties {
		out[p.ID] = p.Status
	}
	return out
}

func TestInstrumentation(t *testing.T) {
	t.Parallel()

	src := `package main

func main() {
	var a [4]int
	i := nondet()
	d := nondet()
	if i >= 0 && i < 4 && a[i] == 0 {
		a[i] = 10 / d
	}
}
`
	prog := load(t, src, Options{BoundsCheck: true, DivByZeroCheck: true})
	fn, _ := prog.Function("main")

	categories := map[string]string{}
	for _, loc := range fn.Assertions() {
		categories[loc.Property] = loc.Category
	}
	assert.Equal(t, map[string]string{
		"main.array_bounds.1":     "array_bounds",
		"main.array_bounds.2":     "array_bounds",
		"main.division-by-zero.1": "division-by-zero",
	}, categories)

	assert.Equal(t, map[string]verify.Status{
		"main.array_bounds.1":     verify.StatusPass,
		"main.array_bounds.2":     verify.StatusPass,
		"main.division-by-zero.1": verify.StatusFail,
	}, checkStatuses(t, prog))

	plain := load(t, src, Options{})
	fn, _ = plain.Function("main")
	assert.False(t, fn.HasAssertion())
}

func TestErrorLabel(t *testing.T) {
	t.Parallel()

	src := `package main

func main() {
	x := nondet()
	if x > 5 {
		goto ERROR
	}
	return
ERROR:
	x = 0
}
`
	prog := load(t, src, Options{ErrorLabel: "ERROR"})
	fn, _ := prog.Function("main")
	require.Len(t, fn.Assertions(), 1)
	loc := fn.Assertions()[0]
	assert.Equal(t, "main.error_label.1", loc.Property)
	assert.Equal(t, "error-label", loc.Category)
	assert.Equal(t, 9, loc.Pos.Line)
	assert.Equal(t, map[string]verify.Status{"main.error_label.1": verify.StatusFail}, checkStatuses(t, prog))

	fn, _ = load(t, src, Options{}).Function("main")
	assert.False(t, fn.HasAssertion())
}

func TestVerifyLoweredPrograms(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		src      string
		expected map[string]verify.Status
	}{
		{
			name: "loop exit",
			src: `package main

func main() {
	x := 0
	for x < 10 {
		x++
	}
	assert(x >= 10)
}
`,
			expected: map[string]verify.Status{"main.assertion.1": verify.StatusPass},
		},
		{
			name: "structs arrays and addresses",
			src: `package main

type P struct {
	x, y int
}

func main() {
	p := P{x: 1}
	a := [3]int{1, 2, 3}
	p.y = a[2]
	q := &a[1]
	assert(p.x+p.y == 4)
	assert(q == &a[1])
	assert(p.y == 2)
}
`,
			expected: map[string]verify.Status{
				"main.assertion.1": verify.StatusPass,
				"main.assertion.2": verify.StatusPass,
				"main.assertion.3": verify.StatusFail,
			},
		},
		{
			name: "assumption restricts inputs",
			src: `package main

func main() {
	x := nondet()
	assume(x > 0 && x < 100)
	y := x * 2
	assert(y > x)
}
`,
			expected: map[string]verify.Status{"main.assertion.1": verify.StatusPass},
		},
		{
			name: "calls havoc their result",
			src: `package main

func one() int {
	return 1
}

func main() {
	y := one()
	assert(y == 1)
}
`,
			expected: map[string]verify.Status{
				"main.assertion.1": verify.StatusFail,
			},
		},
		{
			name: "globals named like construction symbols",
			src: `package ssa

var guard bool
var cond int
var tmp0 int

func main() {
	x := nondet()
	guard = false
	cond = 1
	tmp0 = x
	assert(x != 12345)
}
`,
			expected: map[string]verify.Status{"main.assertion.1": verify.StatusFail},
		},
		{
			name: "branches and division",
			src: `package main

func main() {
	x := nondet()
	y := 0
	if x > 3 {
		y = x / 2
	} else {
		y = 7
	}
	assert(y >= 2)
	assert(y != 7)
}
`,
			expected: map[string]verify.Status{
				"main.assertion.1": verify.StatusPass,
				"main.assertion.2": verify.StatusFail,
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			prog := load(t, tt.src, Options{})
			simplified := checkStatusesWith(t, prog, true)
			assert.Equal(t, tt.expected, simplified)
			assert.Equal(t, simplified, checkStatusesWith(t, prog, false))
		})
	}
}

func TestRejectedPrograms(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  string
		msg  string
		line int
	}{
		{"imports", "package main\n\nimport \"fmt\"\n\nfunc main() { fmt.Println() }\n", "imports are not supported", 3},
		{"dereference", "package main\n\nfunc main() {\n\tx := 1\n\tp := &x\n\tassert(*p == 1)\n}\n", "pointer dereference is not supported", 6},
		{"range", "package main\n\nfunc main() {\n\tvar a [2]int\n\tfor i := range a {\n\t\t_ = i\n\t}\n}\n", "range loops are not supported", 5},
		{"method", "package main\n\ntype T struct{}\n\nfunc (T) m() {}\n", "method m is not supported", 5},
		{"unsigned", "package main\n\nfunc main() {\n\tvar u uint\n\t_ = u\n}\n", "type uint is not supported", 4},
		{"multiple results", "package main\n\nfunc f() (int, int) { return 1, 2 }\n", "returns more than one value", 3},
		{"type error", "package main\n\nfunc main() {\n\tx := true + 1\n}\n", "", 4},
		{"syntax error", "package main\n\nfunc main( {\n}\n", "", 3},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseSource("main.go", []byte(tt.src), Options{})
			require.Error(t, err)
			var fe *Error
			require.ErrorAs(t, err, &fe)
			assert.Contains(t, fe.Msg, tt.msg)
			assert.Equal(t, tt.line, fe.Pos.Line)
			assert.Equal(t, "main.go", fe.Pos.File)
		})
	}
}

func TestParseFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := filepath.Join(dir, "a.go")
	b := filepath.Join(dir, "b.go")
	require.NoError(t, os.WriteFile(a, []byte("package main\n\nfunc main() {\n\tassert(helper() == 1)\n}\n"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("package main\n\nfunc helper() int {\n\treturn 1\n}\n"), 0o644))

	prog, err := ParseFiles([]string{a, b}, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"main", "helper"}, prog.Order)
	assert.Equal(t, "main", prog.EntryPoint)

	_, err = ParseFiles(nil, Options{})
	assert.ErrorIs(t, err, ErrNoInput)

	_, err = ParseFiles([]string{filepath.Join(dir, "missing.go")}, Options{})
	assert.ErrorIs(t, err, os.ErrNotExist)
}
