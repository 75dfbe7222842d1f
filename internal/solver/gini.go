package solver

import (
	"context"
	"fmt"
	"time"

	"github.com/go-air/gini"
	"github.com/go-air/gini/z"

	"github.com/gnolang/summarizer/internal/expr"
)

// pollInterval is how often a running gini solve is tested for completion
// while waiting for cancellation.
const pollInterval = 2 * time.Millisecond

// Gini decides formulas by bit-blasting them into an and-inverter circuit
// solved by the gini SAT solver.
type Gini struct {
	b     *blaster
	roots []z.Lit
	model Model
}

var _ DecisionProcedure = (*Gini)(nil)

// NewGini returns an empty gini decision procedure for width-bit integers.
func NewGini(width int) *Gini {
	return &Gini{b: newBlaster(width)}
}

func (s *Gini) Assert(e expr.Expr) error {
	if _, ok := e.Type().(expr.BoolType); !ok {
		return fmt.Errorf("%w: assertion %s is not boolean", ErrUnsupported, e)
	}
	v, err := s.b.blast(e)
	if err != nil {
		return err
	}
	s.roots = append(s.roots, v.bits[0])
	return nil
}

func (s *Gini) Check(ctx context.Context) (Result, error) {
	if ctx.Err() != nil {
		return Unknown, nil
	}
	g := gini.New()
	s.b.c.ToCnf(g)
	for _, root := range s.roots {
		g.Add(root)
		g.Add(z.LitNull)
	}

	handle := g.GoSolve()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			handle.Stop()
			return Unknown, nil
		case <-ticker.C:
			res, done := handle.Test()
			if !done {
				continue
			}
			switch res {
			case 1:
				s.model = s.extract(g)
				return Satisfiable, nil
			case -1:
				return Unsatisfiable, nil
			default:
				return Unknown, nil
			}
		}
	}
}

func (s *Gini) Model() Model { return s.model }

func (s *Gini) extract(g *gini.Gini) Model {
	m := make(Model, len(s.b.order))
	maxVar := g.MaxVar()
	val := func(l z.Lit) bool {
		if l == s.b.t() {
			return true
		}
		if l == s.b.f() || l.Var() > maxVar {
			return false
		}
		return g.Value(l)
	}
	for _, name := range s.b.order {
		sym := s.b.symbols[name]
		m[name] = decode(sym.typ, sym.val, s.b.width, val)
	}
	return m
}

func decode(t expr.Type, v value, width int, val func(z.Lit) bool) expr.Value {
	switch t := t.(type) {
	case expr.BoolType:
		return expr.BoolValue{Val: val(v.bits[0])}
	case expr.ArrayType:
		elems := make([]expr.Value, len(v.elems))
		for i := range v.elems {
			elems[i] = decode(t.Elem, v.elems[i], width, val)
		}
		return expr.ArrayValue{Typ: t, Elems: elems}
	case expr.StructType:
		fields := make([]expr.Value, len(v.fields))
		for i, f := range t.Fields {
			fields[i] = decode(f.Type, v.fields[i], width, val)
		}
		return expr.StructValue{Typ: t, Fields: fields}
	default:
		var u uint64
		for i, bit := range v.bits {
			if val(bit) {
				u |= 1 << uint(i)
			}
		}
		return expr.IntValue{Val: expr.Wrap(int64(u), width)}
	}
}
