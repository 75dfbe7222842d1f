// Package dataflow computes the reaching-definition oracle consumed by the
// SSA engine: for every object and location, which writes (or the function
// input) can be the last one seen on some path.
package dataflow

import (
	"fmt"
	"io"
	"sort"

	"github.com/gnolang/summarizer/internal/program"
	"github.com/gnolang/summarizer/internal/queue"
)

type defset struct {
	input bool
	locs  []int // sorted, unique
}

func (d defset) equal(o defset) bool {
	if d.input != o.input || len(d.locs) != len(o.locs) {
		return false
	}
	for i := range d.locs {
		if d.locs[i] != o.locs[i] {
			return false
		}
	}
	return true
}

func union(a, b defset) defset {
	out := defset{input: a.input || b.input}
	out.locs = make([]int, 0, len(a.locs)+len(b.locs))
	i, j := 0, 0
	for i < len(a.locs) || j < len(b.locs) {
		switch {
		case j == len(b.locs) || (i < len(a.locs) && a.locs[i] < b.locs[j]):
			out.locs = append(out.locs, a.locs[i])
			i++
		case i == len(a.locs) || b.locs[j] < a.locs[i]:
			out.locs = append(out.locs, b.locs[j])
			j++
		default:
			out.locs = append(out.locs, a.locs[i])
			i++
			j++
		}
	}
	return out
}

// state maps object index to its reaching definitions; nil means the
// location has not been reached.
type state []defset

// ReachingDefinitions is a precomputed table of reaching definitions for one
// function. It is immutable once Analyze returns and safe for concurrent
// queries.
type ReachingDefinitions struct {
	fn      *program.Function
	objects []program.Object
	index   map[string]int
	assigns [][]int // per location, written object indices
	in      []state
}

// Analyze runs the worklist fixed point over fn. A call writes its result
// and havocs every static object the function mentions.
func Analyze(fn *program.Function) *ReachingDefinitions {
	objects := fn.Objects()
	r := &ReachingDefinitions{
		fn:      fn,
		objects: objects,
		index:   make(map[string]int, len(objects)),
		assigns: make([][]int, fn.Len()),
		in:      make([]state, fn.Len()),
	}
	for i, o := range objects {
		r.index[o.Identifier()] = i
	}

	for id := 0; id < fn.Len(); id++ {
		loc := fn.At(id)
		seen := make(map[int]bool)
		add := func(o program.Object) {
			if i, ok := r.index[o.Identifier()]; ok && !seen[i] {
				seen[i] = true
				r.assigns[id] = append(r.assigns[id], i)
			}
		}
		for _, o := range loc.Assigned() {
			add(o)
		}
		if loc.Kind == program.KindCall {
			for _, o := range objects {
				if o.Static() {
					add(o)
				}
			}
		}
		sort.Ints(r.assigns[id])
	}

	entry := make(state, len(objects))
	for i := range entry {
		entry[i] = defset{input: true}
	}
	r.in[fn.Entry()] = entry

	var work queue.Worklist[int]
	work.Push(fn.Entry())
	for !work.Empty() {
		id := work.Pop()
		out := r.transfer(id)
		for _, s := range fn.Successors(id) {
			if r.join(s, out) {
				work.Push(s)
			}
		}
	}
	return r
}

func (r *ReachingDefinitions) transfer(id int) state {
	out := make(state, len(r.objects))
	copy(out, r.in[id])
	for _, i := range r.assigns[id] {
		out[i] = defset{locs: []int{id}}
	}
	return out
}

// join merges out into the entry state of s and reports whether it changed.
func (r *ReachingDefinitions) join(s int, out state) bool {
	if r.in[s] == nil {
		r.in[s] = out
		return true
	}
	changed := false
	for i := range out {
		merged := union(r.in[s][i], out[i])
		if !merged.equal(r.in[s][i]) {
			r.in[s][i] = merged
			changed = true
		}
	}
	return changed
}

// Objects returns the objects the analysis tracks, sorted by identifier.
func (r *ReachingDefinitions) Objects() []program.Object {
	return r.objects
}

// DefinitionsAt returns the definitions of obj reaching the entry of loc.
// Objects the function never mentions are reported as input.
func (r *ReachingDefinitions) DefinitionsAt(obj program.Object, loc int) program.Definitions {
	i, ok := r.index[obj.Identifier()]
	if !ok {
		return program.Definitions{Input: true}
	}
	st := r.in[loc]
	if st == nil {
		return program.Definitions{}
	}
	d := st[i]
	return program.Definitions{Input: d.input, Locs: append([]int(nil), d.locs...)}
}

// Assigns reports whether loc writes obj.
func (r *ReachingDefinitions) Assigns(loc int, obj program.Object) bool {
	i, ok := r.index[obj.Identifier()]
	if !ok {
		return false
	}
	for _, j := range r.assigns[loc] {
		if j == i {
			return true
		}
	}
	return false
}

// Reachable reports whether loc is reachable from the entry.
func (r *ReachingDefinitions) Reachable(loc int) bool {
	return r.in[loc] != nil
}

// Dump writes the table, one location per line, for show defs.
func (r *ReachingDefinitions) Dump(w io.Writer) error {
	for id := 0; id < r.fn.Len(); id++ {
		if _, err := fmt.Fprintf(w, "%s\n", r.fn.At(id)); err != nil {
			return err
		}
		if r.in[id] == nil {
			if _, err := fmt.Fprintln(w, "  unreachable"); err != nil {
				return err
			}
			continue
		}
		for i, o := range r.objects {
			d := program.Definitions{Input: r.in[id][i].input, Locs: r.in[id][i].locs}
			if _, err := fmt.Fprintf(w, "  %s <- %s\n", o, d); err != nil {
				return err
			}
		}
	}
	return nil
}
