// Package guards enumerates the raw control-flow edges of a function for
// the SSA engine's guard construction: the incoming edges of every location
// in a stable order and the location whose guard governs it.
package guards

import (
	"fmt"
	"io"

	"github.com/gnolang/summarizer/internal/expr"
	"github.com/gnolang/summarizer/internal/program"
)

// Map is the guard-structure oracle for one function.
type Map struct {
	fn       *program.Function
	incoming [][]program.Edge
	source   []int
}

// Analyze enumerates the edges of fn. Incoming edges are ordered by their
// source location.
func Analyze(fn *program.Function) *Map {
	m := &Map{
		fn:       fn,
		incoming: make([][]program.Edge, fn.Len()),
		source:   make([]int, fn.Len()),
	}
	for id := 0; id < fn.Len(); id++ {
		for _, e := range outgoing(fn, id) {
			m.incoming[e.To] = append(m.incoming[e.To], e)
		}
	}
	for id := 0; id < fn.Len(); id++ {
		in := m.incoming[id]
		if id == fn.Entry() || len(in) != 1 || in[0].Kind != program.EdgeSuccessor || in[0].Backward() {
			m.source[id] = id
			continue
		}
		m.source[id] = m.source[in[0].From]
	}
	return m
}

func outgoing(fn *program.Function, id int) []program.Edge {
	loc := fn.At(id)
	switch loc.Kind {
	case program.KindEnd:
		return nil
	case program.KindGoto:
		if expr.IsTrue(loc.Cond) || loc.Target == id+1 {
			return []program.Edge{{From: id, To: loc.Target, Kind: program.EdgeSuccessor}}
		}
		return []program.Edge{
			{From: id, To: loc.Target, Kind: program.EdgeTaken},
			{From: id, To: id + 1, Kind: program.EdgeNotTaken},
		}
	case program.KindAssume:
		return []program.Edge{{From: id, To: id + 1, Kind: program.EdgeAssume}}
	default:
		return []program.Edge{{From: id, To: id + 1, Kind: program.EdgeSuccessor}}
	}
}

// Incoming returns the incoming edges of loc.
func (m *Map) Incoming(loc int) []program.Edge {
	return m.incoming[loc]
}

// GuardSource returns the location governing the guard of loc: loc itself
// for the entry, joins and targets of conditional edges, otherwise the
// source of its unique predecessor.
func (m *Map) GuardSource(loc int) int {
	return m.source[loc]
}

// Dump writes the edges grouped by guard source, for show guards.
func (m *Map) Dump(w io.Writer) error {
	for id := 0; id < m.fn.Len(); id++ {
		if m.source[id] == id {
			if _, err := fmt.Fprintf(w, "guard source %d\n", id); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "  %s\n", m.fn.At(id)); err != nil {
			return err
		}
		for _, e := range m.incoming[id] {
			back := ""
			if e.Backward() {
				back = " (back edge)"
			}
			if _, err := fmt.Fprintf(w, "    <- %d %s%s\n", e.From, e.Kind, back); err != nil {
				return err
			}
		}
	}
	return nil
}
