package ssa

import (
	"fmt"
	"io"
	"strings"

	"github.com/gnolang/summarizer/internal/expr"
	"github.com/gnolang/summarizer/internal/program"
)

// Write renders every node, for show ssa.
func (s *SSA) Write(w io.Writer) error {
	for _, n := range s.Nodes {
		if n.Empty() {
			continue
		}
		loc := n.Location
		if _, err := fmt.Fprintf(w, "*** %d %s function %s\n", loc.ID, loc.Pos, s.Function.Name); err != nil {
			return err
		}
		for _, e := range n.Equalities {
			if _, err := fmt.Fprintf(w, "(E) %s\n", e); err != nil {
				return err
			}
		}
		for _, c := range n.Constraints {
			tag := "(C)"
			if c.Kind == Obligation {
				tag = "(A)"
			}
			if _, err := fmt.Fprintf(w, "%s %s\n", tag, c.Expr); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	return nil
}

// WriteVCC renders the verification condition of the assertion node n: the
// numbered facts, a separator, and the guarded property.
func (s *SSA) WriteVCC(w io.Writer, n *Node) error {
	loc := n.Location
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s:%d function %s\n", loc.Pos.File, loc.Pos.Line, s.Function.Name)
	fmt.Fprintf(&sb, "%s\n", loc.Comment)
	for i, f := range s.Facts() {
		fmt.Fprintf(&sb, "{-%d} %s\n", i+1, f)
	}
	sb.WriteString("|--------------------------\n")
	fmt.Fprintf(&sb, "{1} %s\n\n", expr.Implies(n.Guard, n.Assertion))
	_, err := io.WriteString(w, sb.String())
	return err
}

// WriteGuards lists the guard equality of every location, grouped under
// the guard source reported by the oracle.
func (s *SSA) WriteGuards(w io.Writer, guards GuardOracle) error {
	for _, n := range s.Nodes {
		id := n.Location.ID
		if src := guards.GuardSource(id); src != id {
			if _, err := fmt.Fprintf(w, "  %d (source %d): %s\n", id, src, guardEquality(n)); err != nil {
				return err
			}
			continue
		}
		if _, err := fmt.Fprintf(w, "%d: %s\n", id, guardEquality(n)); err != nil {
			return err
		}
	}
	return nil
}

func guardEquality(n *Node) expr.Expr {
	if len(n.Equalities) > 0 {
		return n.Equalities[0]
	}
	return n.Guard
}

// WriteAssignments lists the objects written at every location.
func WriteAssignments(w io.Writer, fn *program.Function, defs DefinitionOracle) error {
	for id := 0; id < fn.Len(); id++ {
		var names []string
		for _, obj := range defs.Objects() {
			if defs.Assigns(id, obj) {
				names = append(names, obj.Identifier())
			}
		}
		if len(names) == 0 {
			continue
		}
		if _, err := fmt.Fprintf(w, "%s\n  %s\n", fn.At(id), strings.Join(names, ", ")); err != nil {
			return err
		}
	}
	return nil
}

// WriteEntryExit renders the entry and exit variable lists.
func (s *SSA) WriteEntryExit(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "function %s\n", s.Function.Name); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "  entry: %s\n", joinSymbols(s.Entry)); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "  exit:  %s\n", joinSymbols(s.Exit))
	return err
}

func joinSymbols(syms []expr.SymbolExpr) string {
	parts := make([]string, len(syms))
	for i, s := range syms {
		parts[i] = s.Name
	}
	return strings.Join(parts, ", ")
}
