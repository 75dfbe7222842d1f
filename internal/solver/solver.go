// Package solver provides the decision procedures that discharge
// verification conditions: an in-process SAT backend that bit-blasts
// formulas into a gini circuit, and an SMT-LIB2 backend that pipes a script
// to an external solver process.
//
// Both backends interpret integers as Width-bit two's complement words with
// the same division, remainder and shift conventions as expr.Folder, so
// constant folding never changes a verdict.
package solver

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/gnolang/summarizer/internal/expr"
)

// Result is the outcome of a satisfiability check.
type Result int

const (
	// Unknown means the check was cancelled or timed out.
	Unknown Result = iota
	Satisfiable
	Unsatisfiable
)

func (r Result) String() string {
	switch r {
	case Satisfiable:
		return "SATISFIABLE"
	case Unsatisfiable:
		return "UNSATISFIABLE"
	default:
		return "UNKNOWN"
	}
}

var (
	// ErrUnsupported is returned when a formula uses a construct the
	// backend cannot encode.
	ErrUnsupported = errors.New("unsupported expression")
	// ErrUnknownSolver is returned by New for an unrecognized backend name.
	ErrUnknownSolver = errors.New("unknown decision procedure")
	// ErrWidth is returned for an integer width other than 8, 16, 32 or 64.
	ErrWidth = errors.New("integer width must be 8, 16, 32 or 64")
)

// Model maps symbol names to the values a satisfying assignment gives them.
type Model map[string]expr.Value

// Names returns the symbol names of m in sorted order.
func (m Model) Names() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m Model) String() string {
	var sb strings.Builder
	for _, name := range m.Names() {
		fmt.Fprintf(&sb, "%s = %s\n", name, m[name])
	}
	return sb.String()
}

// DecisionProcedure decides the satisfiability of a conjunction of boolean
// formulas over versioned symbols. An instance is used for a single check.
type DecisionProcedure interface {
	// Assert adds a formula to the conjunction.
	Assert(e expr.Expr) error
	// Check decides the conjunction. Cancellation of ctx yields Unknown
	// with a nil error; an error means the procedure itself failed.
	Check(ctx context.Context) (Result, error)
	// Model returns the satisfying assignment after a Satisfiable check.
	Model() Model
}

// Factory creates fresh decision procedures.
type Factory func() DecisionProcedure

// Config selects and parameterizes a backend.
type Config struct {
	// Name is "gini" (the default) or "smtlib".
	Name string
	// Width is the integer width in bits.
	Width int
	// Command is the solver command line of the smtlib backend.
	Command string
}

// DefaultCommand runs z3 reading a script from standard input.
const DefaultCommand = "z3 -in"

// ValidWidth reports whether w is a supported integer width.
func ValidWidth(w int) bool {
	return w == 8 || w == 16 || w == 32 || w == 64
}

// New returns a factory for the configured backend.
func New(cfg Config) (Factory, error) {
	width := cfg.Width
	if width == 0 {
		width = expr.DefaultWidth
	}
	if !ValidWidth(width) {
		return nil, fmt.Errorf("%w: %d", ErrWidth, width)
	}
	switch cfg.Name {
	case "", "gini":
		return func() DecisionProcedure { return NewGini(width) }, nil
	case "smtlib":
		command := cfg.Command
		if command == "" {
			command = DefaultCommand
		}
		args := strings.Fields(command)
		return func() DecisionProcedure { return NewSMTLib(width, args) }, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSolver, cfg.Name)
	}
}
