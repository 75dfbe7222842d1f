package program

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintDot(t *testing.T) {
	t.Parallel()
	fn := loop(t)

	var sb strings.Builder
	require.NoError(t, fn.PrintDot(&sb, func(l *Location) string {
		return fmt.Sprintf("%s - %d", l.Kind, l.ID)
	}))

	expected := `
digraph mgraph {
	mode="heir";
	splines="ortho";

	"ENTRY" -> "ASSIGN - 0"
	"ASSIGN - 0" -> "GOTO - 1"
	"GOTO - 1" -> "ASSERT - 4" [label="taken"]
	"GOTO - 1" -> "ASSIGN - 2" [label="not-taken"]
	"ASSIGN - 2" -> "GOTO - 3"
	"GOTO - 3" -> "GOTO - 1"
	"ASSERT - 4" -> "END_FUNCTION - 5"
	"END_FUNCTION - 5" -> "EXIT"
}
`
	assert.Equal(t, normalizeDotOutput(expected), normalizeDotOutput(sb.String()))
}

func TestPrintDotDefaultFormat(t *testing.T) {
	t.Parallel()
	fn := loop(t)

	var sb strings.Builder
	require.NoError(t, fn.PrintDot(&sb, nil))
	assert.Contains(t, sb.String(), `"3: GOTO 1" -> "1: IF !(x < 10) THEN GOTO 4"`)
}

func normalizeDotOutput(dot string) string {
	var normalized []string
	for _, line := range strings.Split(dot, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			normalized = append(normalized, trimmed)
		}
	}
	return strings.Join(normalized, "\n")
}
