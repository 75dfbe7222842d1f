package ssa

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnolang/summarizer/internal/dataflow"
	"github.com/gnolang/summarizer/internal/guards"
)

func TestWriteVCC(t *testing.T) {
	t.Parallel()
	s := build(t, straightLine(2))

	var buf bytes.Buffer
	require.NoError(t, s.WriteVCC(&buf, s.Assertions()[0]))
	expected := "main.go:3 function main\n" +
		"x == 2\n" +
		"{-1} @guard#0 == true\n" +
		"{-2} x#0 == 1\n" +
		"{-3} @guard#1 == @guard#0\n" +
		"{-4} @guard#2 == @guard#1\n" +
		"|--------------------------\n" +
		"{1} @guard#1 => (x#0 == 2)\n" +
		"\n"
	assert.Equal(t, expected, buf.String())
}

func TestWriteSSA(t *testing.T) {
	t.Parallel()
	s := build(t, loop())

	var buf bytes.Buffer
	require.NoError(t, s.Write(&buf))
	out := buf.String()
	assert.Contains(t, out, "*** 1 - function loop\n")
	assert.Contains(t, out, "(E) x#phi1 == (@guard#ls3 ? x#lb3 : x#0)\n")
	assert.Contains(t, out, "(C) @guard#1 => (@guard#ls3 || @guard#0)\n")
	assert.Contains(t, out, "(A) @guard#4 => (x#phi1 == 10)\n")
}

func TestWriteGuardsAndAssignments(t *testing.T) {
	t.Parallel()
	fn := loop()
	s := build(t, fn)

	var buf bytes.Buffer
	require.NoError(t, s.WriteGuards(&buf, guards.Analyze(fn)))
	assert.Contains(t, buf.String(), "  3 (source 2): @guard#3 == @guard#2\n")

	buf.Reset()
	require.NoError(t, WriteAssignments(&buf, fn, dataflow.Analyze(fn)))
	assert.Equal(t, "0: x := 0\n  x\n2: x := x + 1\n  x\n", buf.String())

	buf.Reset()
	require.NoError(t, s.WriteEntryExit(&buf))
	assert.Equal(t, "function loop\n  entry: x#in\n  exit:  x#phi1\n", buf.String())
}
