package verify

import (
	"sort"
	"sync"

	"github.com/gnolang/summarizer/internal/program"
	"github.com/gnolang/summarizer/internal/solver"
	"github.com/gnolang/summarizer/internal/ssa"
)

// Status is the verdict of one property.
type Status int

const (
	StatusUnknown Status = iota
	StatusPass
	StatusFail
)

func (s Status) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// Step is the value of one program variable version in a counterexample.
type Step struct {
	Symbol   string `json:"symbol"`
	Object   string `json:"object"`
	Location int    `json:"location"`
	Value    string `json:"value"`
}

// Property is the state of one property id.
type Property struct {
	ID          string           `json:"id"`
	Description string           `json:"description"`
	Category    string           `json:"category"`
	Function    string           `json:"function"`
	Location    int              `json:"location"`
	Pos         program.Position `json:"position"`
	Status      Status           `json:"-"`
	Trace       []Step           `json:"trace,omitempty"`
}

type entry struct {
	mu     sync.Mutex
	prop   Property
	total  int
	passed int
}

// PropertyMap holds one entry per property id. Entries are created by
// InitializePropertyMap and updated concurrently by the dispatcher; a
// failure is final.
type PropertyMap struct {
	order   []string
	entries map[string]*entry
}

// Checked reports whether fn takes part in checking: it was not inlined
// away, or it is the entry point.
func Checked(prog *program.Program, fn *program.Function) bool {
	return !fn.Inlined || fn.Name == prog.EntryPoint
}

// InitializePropertyMap creates an UNKNOWN entry for every distinct property
// id asserted in a checked function. The description and location of an id
// are those of its first assertion.
func InitializePropertyMap(prog *program.Program) *PropertyMap {
	m := &PropertyMap{entries: make(map[string]*entry)}
	for _, fn := range prog.Each() {
		if !Checked(prog, fn) {
			continue
		}
		for _, loc := range fn.Assertions() {
			e, ok := m.entries[loc.Property]
			if !ok {
				e = &entry{prop: Property{
					ID:          loc.Property,
					Description: loc.Comment,
					Category:    loc.Category,
					Function:    fn.Name,
					Location:    loc.ID,
					Pos:         loc.Pos,
				}}
				m.entries[loc.Property] = e
				m.order = append(m.order, loc.Property)
			}
		}
	}
	return m
}

// Len returns the number of properties.
func (m *PropertyMap) Len() int { return len(m.order) }

// Get returns a snapshot of property id.
func (m *PropertyMap) Get(id string) (Property, bool) {
	e, ok := m.entries[id]
	if !ok {
		return Property{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.prop, true
}

// All returns a snapshot of every property in declaration order.
func (m *PropertyMap) All() []Property {
	out := make([]Property, 0, len(m.order))
	for _, id := range m.order {
		p, _ := m.Get(id)
		out = append(out, p)
	}
	return out
}

// expect registers one more assertion of id to be checked.
func (m *PropertyMap) expect(id string) {
	if e, ok := m.entries[id]; ok {
		e.mu.Lock()
		e.total++
		e.mu.Unlock()
	}
}

// Fail marks id as failed with the given counterexample. It is final.
func (m *PropertyMap) Fail(id string, trace []Step) {
	e, ok := m.entries[id]
	if !ok {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.prop.Status == StatusFail {
		return
	}
	e.prop.Status = StatusFail
	e.prop.Trace = trace
}

// Pass records that one assertion of id holds. The property passes once
// all of its assertions do, unless it already failed.
func (m *PropertyMap) Pass(id string) {
	e, ok := m.entries[id]
	if !ok {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.passed++
	if e.prop.Status == StatusUnknown && e.passed >= e.total {
		e.prop.Status = StatusPass
	}
}

// Verdict is the overall result of a check.
type Verdict int

const (
	Safe Verdict = iota
	Unsafe
)

func (v Verdict) String() string {
	if v == Unsafe {
		return "UNSAFE"
	}
	return "SAFE"
}

// Report is the result of checking a program.
type Report struct {
	Properties []Property
	Verdict    Verdict
}

// Failed returns the number of failed properties.
func (r *Report) Failed() int {
	n := 0
	for _, p := range r.Properties {
		if p.Status == StatusFail {
			n++
		}
	}
	return n
}

// Unknown returns the number of unresolved properties.
func (r *Report) Unknown() int {
	n := 0
	for _, p := range r.Properties {
		if p.Status == StatusUnknown {
			n++
		}
	}
	return n
}

// verdictOf is UNSAFE if any property failed, SAFE otherwise.
func verdictOf(props []Property) Verdict {
	for _, p := range props {
		if p.Status == StatusFail {
			return Unsafe
		}
	}
	return Safe
}

// traceOf keeps the program variables of a model, ordered by location.
func traceOf(m solver.Model) []Step {
	var steps []Step
	for _, name := range m.Names() {
		sym, ok := ssa.ParseSymbol(name)
		if !ok || sym.Auxiliary() {
			continue
		}
		steps = append(steps, Step{
			Symbol:   name,
			Object:   sym.Identifier,
			Location: sym.Location,
			Value:    m[name].String(),
		})
	}
	sort.SliceStable(steps, func(i, j int) bool {
		return steps[i].Location < steps[j].Location
	})
	return steps
}
