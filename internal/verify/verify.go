// Package verify discharges the assertions of a program. Every assertion is
// checked on its own: the facts of its function's SSA, its guard and the
// negation of its condition go to a fresh decision procedure, and the answer
// resolves the assertion's property.
package verify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gnolang/summarizer/internal/dataflow"
	"github.com/gnolang/summarizer/internal/expr"
	"github.com/gnolang/summarizer/internal/guards"
	"github.com/gnolang/summarizer/internal/program"
	"github.com/gnolang/summarizer/internal/solver"
	"github.com/gnolang/summarizer/internal/ssa"
)

var (
	ErrNoEntryPoint      = errors.New("the program has no entry point; please complete linking")
	ErrDecisionProcedure = errors.New("decision procedure failed")
	ErrUnknownFunction   = errors.New("unknown function")
	ErrInterrupted       = errors.New("check interrupted")
)

// Analysis is the SSA of one function together with the oracles it was
// built from.
type Analysis struct {
	Function *program.Function
	Defs     *dataflow.ReachingDefinitions
	Guards   *guards.Map
	SSA      *ssa.SSA
}

// Analyze runs both oracles over fn and builds its SSA, simplified at the
// given integer width when simplify is set.
func Analyze(fn *program.Function, simplify bool, width int) (*Analysis, error) {
	defs := dataflow.Analyze(fn)
	g := guards.Analyze(fn)
	s, err := ssa.Build(fn, defs, g)
	if err != nil {
		return nil, err
	}
	if simplify {
		s = ssa.Simplify(s, width)
	}
	return &Analysis{Function: fn, Defs: defs, Guards: g, SSA: s}, nil
}

// Options configures a Checker.
type Options struct {
	Factory  solver.Factory
	Width    int
	Simplify bool

	// Jobs bounds the number of concurrent checks; zero means one per CPU.
	Jobs int
	// Timeout bounds a single check; zero means no limit.
	Timeout time.Duration

	// Function restricts checking to one function.
	Function string
	// Properties restricts checking and reporting to the listed ids.
	Properties []string

	Logger *zap.Logger
	// OnCheck is called after every finished check. It may be called
	// concurrently.
	OnCheck func()
}

// Checker checks the assertions of programs.
type Checker struct {
	opts   Options
	logger *zap.Logger
}

// New returns a Checker. A nil logger logs nothing; a nil factory uses the
// gini backend at the configured width.
func New(opts Options) *Checker {
	if opts.Width == 0 {
		opts.Width = expr.DefaultWidth
	}
	if opts.Factory == nil {
		width := opts.Width
		opts.Factory = func() solver.DecisionProcedure { return solver.NewGini(width) }
	}
	if opts.Jobs <= 0 {
		opts.Jobs = runtime.NumCPU()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{opts: opts, logger: logger}
}

type job struct {
	analysis *Analysis
	facts    []expr.Expr
	node     *ssa.Node
}

// Functions returns the functions a check covers, in declaration order.
func (c *Checker) Functions(prog *program.Program) ([]*program.Function, error) {
	if _, ok := prog.Function(prog.EntryPoint); !ok {
		return nil, ErrNoEntryPoint
	}
	if c.opts.Function != "" {
		fn, ok := prog.Function(c.opts.Function)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownFunction, c.opts.Function)
		}
		return []*program.Function{fn}, nil
	}
	var out []*program.Function
	for _, fn := range prog.Each() {
		if Checked(prog, fn) {
			out = append(out, fn)
		}
	}
	return out, nil
}

// Assertions analyzes the covered functions and returns the assertions to
// check, in program order.
func (c *Checker) Assertions(prog *program.Program) ([]*Analysis, error) {
	fns, err := c.Functions(prog)
	if err != nil {
		return nil, err
	}
	var out []*Analysis
	for _, fn := range fns {
		if !fn.HasAssertion() {
			continue
		}
		c.logger.Debug("Analyzing", zap.String("function", fn.Name))
		a, err := Analyze(fn, c.opts.Simplify, c.opts.Width)
		if err != nil {
			return nil, fmt.Errorf("function %s: %w", fn.Name, err)
		}
		out = append(out, a)
	}
	return out, nil
}

func (c *Checker) selected(id string) bool {
	if len(c.opts.Properties) == 0 {
		return true
	}
	for _, p := range c.opts.Properties {
		if p == id {
			return true
		}
	}
	return false
}

func (c *Checker) reported(p Property) bool {
	if c.opts.Function != "" && p.Function != c.opts.Function {
		return false
	}
	return c.selected(p.ID)
}

// Count returns the number of checks Check would run.
func (c *Checker) Count(analyses []*Analysis) int {
	n := 0
	for _, a := range analyses {
		for _, node := range a.SSA.Assertions() {
			if c.selected(node.Location.Property) {
				n++
			}
		}
	}
	return n
}

// Check checks every selected assertion of prog. A decision procedure
// failure or the cancellation of ctx aborts the whole check and no report
// is returned.
func (c *Checker) Check(ctx context.Context, prog *program.Program) (*Report, error) {
	analyses, err := c.Assertions(prog)
	if err != nil {
		return nil, err
	}
	return c.CheckAnalyses(ctx, prog, analyses)
}

// CheckAnalyses is Check over already built analyses.
func (c *Checker) CheckAnalyses(ctx context.Context, prog *program.Program, analyses []*Analysis) (*Report, error) {
	props := InitializePropertyMap(prog)

	var jobs []job
	for _, a := range analyses {
		facts := a.SSA.Facts()
		for _, node := range a.SSA.Assertions() {
			if c.selected(node.Location.Property) {
				props.expect(node.Location.Property)
				jobs = append(jobs, job{analysis: a, facts: facts, node: node})
			}
		}
	}
	c.logger.Info("Checking assertions",
		zap.Int("assertions", len(jobs)),
		zap.Int("properties", props.Len()))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Jobs)
	for _, j := range jobs {
		j := j
		g.Go(func() error {
			return c.checkAssertion(gctx, j, props)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	// Checks cut short by the caller read as UNKNOWN; the report would be
	// partial.
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInterrupted, err)
	}

	var reported []Property
	for _, p := range props.All() {
		if c.reported(p) {
			reported = append(reported, p)
		}
	}
	return &Report{Properties: reported, Verdict: verdictOf(reported)}, nil
}

func (c *Checker) checkAssertion(ctx context.Context, j job, props *PropertyMap) error {
	if c.opts.OnCheck != nil {
		defer c.opts.OnCheck()
	}
	loc := j.node.Location
	dp := c.opts.Factory()
	assert := func(e expr.Expr) error {
		if err := dp.Assert(e); err != nil {
			return fmt.Errorf("%w: %s at %s: %v", ErrDecisionProcedure, loc.Property, loc.Pos, err)
		}
		return nil
	}
	for _, f := range j.facts {
		if err := assert(f); err != nil {
			return err
		}
	}
	if err := assert(j.node.Guard); err != nil {
		return err
	}
	if err := assert(expr.Not(j.node.Assertion)); err != nil {
		return err
	}

	checkCtx := ctx
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		checkCtx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}
	start := time.Now()
	res, err := dp.Check(checkCtx)
	if err != nil {
		return fmt.Errorf("%w: %s at %s: %v", ErrDecisionProcedure, loc.Property, loc.Pos, err)
	}
	c.logger.Debug("Checked assertion",
		zap.String("property", loc.Property),
		zap.String("function", j.analysis.Function.Name),
		zap.Int("location", loc.ID),
		zap.Stringer("result", res),
		zap.Duration("elapsed", time.Since(start)))

	switch res {
	case solver.Satisfiable:
		props.Fail(loc.Property, traceOf(dp.Model()))
	case solver.Unsatisfiable:
		props.Pass(loc.Property)
	}
	return nil
}

// WriteVCC renders the verification condition of every selected assertion
// instead of checking it.
func (c *Checker) WriteVCC(w io.Writer, analyses []*Analysis) error {
	for _, a := range analyses {
		for _, node := range a.SSA.Assertions() {
			if !c.selected(node.Location.Property) {
				continue
			}
			if err := a.SSA.WriteVCC(w, node); err != nil {
				return err
			}
		}
	}
	return nil
}
