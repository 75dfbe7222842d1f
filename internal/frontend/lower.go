package frontend

import (
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"sort"

	"golang.org/x/tools/go/cfg"

	"github.com/gnolang/summarizer/internal/expr"
	"github.com/gnolang/summarizer/internal/program"
)

const exitLabel = "$exit"

type check struct {
	cond     expr.Expr
	category string
	comment  string
	pos      program.Position
}

// lowerer turns one function declaration into a program.Function.
type lowerer struct {
	*loader
	b    *program.Builder
	decl *ast.FuncDecl

	vars   map[*types.Var]expr.Expr
	used   map[string]bool
	result expr.Expr
	temps  int
	counts map[string]int

	// tags maps a switch tag to the temporary holding its value, and
	// cases maps every case expression of a tagged switch to its tag.
	tags  map[ast.Expr]expr.Expr
	cases map[ast.Expr]ast.Expr

	// checks are the instrumentation assertions waiting to be emitted in
	// front of the next location; guards are the short-circuit conditions
	// under which the expression being lowered is evaluated.
	checks []check
	guards []expr.Expr
	cur    program.Position
}

func (l *loader) lowerFunc(fd *ast.FuncDecl, entry bool) (*program.Function, error) {
	lw := &lowerer{
		loader: l,
		b:      program.NewBuilder(fd.Name.Name),
		decl:   fd,
		vars:   make(map[*types.Var]expr.Expr),
		used:   make(map[string]bool),
		counts: make(map[string]int),
		tags:   make(map[ast.Expr]expr.Expr),
		cases:  make(map[ast.Expr]ast.Expr),
	}
	if err := lw.validate(fd.Body); err != nil {
		return nil, err
	}
	if err := lw.signature(fd); err != nil {
		return nil, err
	}

	g := cfg.New(fd.Body, func(*ast.CallExpr) bool { return true })
	blocks := reversePostorder(g)
	for i, blk := range blocks {
		var next *cfg.Block
		if i+1 < len(blocks) {
			next = blocks[i+1]
		}
		lw.b.Label(blockLabel(blk))
		lw.at(fd.Body.Lbrace)
		if i == 0 && entry {
			if err := lw.initGlobals(); err != nil {
				return nil, err
			}
		}
		if err := lw.block(blk, next); err != nil {
			return nil, err
		}
	}
	lw.at(fd.Body.Rbrace)
	lw.b.Label(exitLabel)
	fn, err := lw.b.Finish()
	if err != nil {
		return nil, fmt.Errorf("function %s: %w", fd.Name.Name, err)
	}
	fn.Pos = l.position(fd.Pos())
	return fn, nil
}

func blockLabel(b *cfg.Block) string {
	return fmt.Sprintf("$b%d", b.Index)
}

// reversePostorder lists the live blocks reachable from the entry so that
// every edge goes forward except the back edges of loops. Successors are
// explored last to first, which lays out the first successor (the then
// branch, the loop body) right after its predecessor.
func reversePostorder(g *cfg.CFG) []*cfg.Block {
	if len(g.Blocks) == 0 {
		return nil
	}
	type frame struct {
		b    *cfg.Block
		next int
	}
	visited := map[*cfg.Block]bool{g.Blocks[0]: true}
	stack := []frame{{b: g.Blocks[0]}}
	var post []*cfg.Block
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next < len(top.b.Succs) {
			s := top.b.Succs[len(top.b.Succs)-1-top.next]
			top.next++
			if !visited[s] {
				visited[s] = true
				stack = append(stack, frame{b: s})
			}
			continue
		}
		post = append(post, top.b)
		stack = stack[:len(stack)-1]
	}
	for i, j := 0, len(post)-1; i < j; i, j = i+1, j-1 {
		post[i], post[j] = post[j], post[i]
	}
	return post
}

// validate rejects the statements and expressions the lowering has no
// model for, and records the case expressions of tagged switches.
func (lw *lowerer) validate(body *ast.BlockStmt) error {
	var err error
	ast.Inspect(body, func(n ast.Node) bool {
		if err != nil {
			return false
		}
		switch n := n.(type) {
		case *ast.RangeStmt:
			err = lw.errorf(n, "range loops are not supported")
		case *ast.TypeSwitchStmt:
			err = lw.errorf(n, "type switches are not supported")
		case *ast.SelectStmt, *ast.SendStmt, *ast.GoStmt:
			err = lw.errorf(n, "concurrency is not supported")
		case *ast.DeferStmt:
			err = lw.errorf(n, "defer is not supported")
		case *ast.FuncLit:
			err = lw.errorf(n, "function literals are not supported")
		case *ast.SwitchStmt:
			if n.Tag == nil {
				break
			}
			for _, s := range n.Body.List {
				for _, e := range s.(*ast.CaseClause).List {
					lw.cases[e] = n.Tag
				}
			}
			lw.tags[n.Tag] = nil
		}
		return true
	})
	return err
}

func (lw *lowerer) signature(fd *ast.FuncDecl) error {
	sig := lw.info.Defs[fd.Name].Type().(*types.Signature)
	params := sig.Params()
	for i := 0; i < params.Len(); i++ {
		v := params.At(i)
		t, err := lw.typeOf(v.Type(), fd)
		if err != nil {
			return err
		}
		name := lw.unique(v.Name(), fmt.Sprintf("$arg%d", i))
		lw.vars[v] = lw.b.Param(name, t)
	}

	results := sig.Results()
	switch results.Len() {
	case 0:
	case 1:
		v := results.At(0)
		t, err := lw.typeOf(v.Type(), fd)
		if err != nil {
			return err
		}
		name := lw.unique(v.Name(), "$result")
		lw.result = lw.b.Result(name, t)
		lw.vars[v] = lw.result
	default:
		return lw.errorf(fd, "function %s returns more than one value", fd.Name.Name)
	}
	return nil
}

// unique returns name, or fallback for a blank name, made distinct from
// every variable already declared in the function.
func (lw *lowerer) unique(name, fallback string) string {
	if name == "" || name == "_" {
		name = fallback
	}
	out := name
	for n := 1; lw.used[out]; n++ {
		out = fmt.Sprintf("%s$%d", name, n)
	}
	lw.used[out] = true
	return out
}

func (lw *lowerer) declare(v *types.Var, at ast.Node) (expr.Expr, error) {
	t, err := lw.typeOf(v.Type(), at)
	if err != nil {
		return nil, err
	}
	e := lw.b.Local(lw.unique(v.Name(), "$blank"), t)
	lw.vars[v] = e
	return e, nil
}

func (lw *lowerer) temp(t expr.Type) expr.Expr {
	lw.temps++
	return lw.b.Local(lw.unique(fmt.Sprintf("$tmp%d", lw.temps), ""), t)
}

func (lw *lowerer) at(p token.Pos) {
	lw.cur = lw.position(p)
	lw.b.At(lw.cur)
}

func (lw *lowerer) property(category string) string {
	lw.counts[category]++
	return fmt.Sprintf("%s.%s.%d", lw.decl.Name.Name, category, lw.counts[category])
}

// flush emits the pending instrumentation assertions.
func (lw *lowerer) flush() {
	for _, c := range lw.checks {
		lw.b.At(c.pos)
		loc := lw.b.Assert(c.cond, lw.property(c.category), c.comment)
		loc.Category = c.category
	}
	lw.checks = nil
	lw.b.At(lw.cur)
}

func (lw *lowerer) initGlobals() error {
	initialized := make(map[*types.Var]bool)
	for _, in := range lw.info.InitOrder {
		for _, v := range in.Lhs {
			initialized[v] = true
		}
	}
	// Zero values first, in declaration order, then initializers in
	// dependency order.
	for _, g := range lw.sortedGlobals() {
		if initialized[g.v] {
			continue
		}
		if hasPointer(g.e.Type()) {
			continue
		}
		lw.b.Assign(g.e, zero(g.e.Type()))
	}
	for _, in := range lw.info.InitOrder {
		if len(in.Lhs) != 1 {
			return lw.errorf(in.Rhs, "multi-value initialization is not supported")
		}
		g, ok := lw.globals[in.Lhs[0]]
		if !ok {
			// blank global: evaluate for its effects
			if _, err := lw.value(in.Rhs); err != nil {
				return err
			}
			continue
		}
		if err := lw.assignValue(g, in.Rhs); err != nil {
			return err
		}
	}
	return nil
}

type global struct {
	v *types.Var
	e expr.Expr
}

func (lw *lowerer) sortedGlobals() []global {
	out := make([]global, 0, len(lw.globals))
	for v, e := range lw.globals {
		out = append(out, global{v: v, e: e})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].v.Pos() < out[j].v.Pos() })
	return out
}

func (lw *lowerer) block(blk *cfg.Block, next *cfg.Block) error {
	if lw.opts.ErrorLabel != "" && blk.Kind == cfg.KindLabel {
		if ls, ok := blk.Stmt.(*ast.LabeledStmt); ok && ls.Label.Name == lw.opts.ErrorLabel {
			lw.at(ls.Pos())
			loc := lw.b.Assert(expr.False, lw.property("error_label"), "error label "+ls.Label.Name)
			loc.Category = "error-label"
		}
	}

	nodes := blk.Nodes
	var cond ast.Expr
	if len(blk.Succs) == 2 {
		cond = nodes[len(nodes)-1].(ast.Expr)
		nodes = nodes[:len(nodes)-1]
	}
	for _, n := range nodes {
		lw.at(n.Pos())
		if err := lw.node(n); err != nil {
			return err
		}
	}

	switch len(blk.Succs) {
	case 0:
		if next != nil {
			lw.b.Goto(expr.True, exitLabel)
		}
	case 1:
		if blk.Succs[0] != next {
			lw.b.Goto(expr.True, blockLabel(blk.Succs[0]))
		}
	case 2:
		lw.at(cond.Pos())
		c, err := lw.condition(cond)
		if err != nil {
			return err
		}
		lw.flush()
		t, f := blk.Succs[0], blk.Succs[1]
		switch {
		case t == next:
			lw.b.Goto(expr.Not(c), blockLabel(f))
		case f == next:
			lw.b.Goto(c, blockLabel(t))
		default:
			lw.b.Goto(c, blockLabel(t))
			lw.b.Goto(expr.True, blockLabel(f))
		}
	}
	return nil
}

// condition lowers a branch condition; a case expression of a tagged
// switch compares against the tag.
func (lw *lowerer) condition(e ast.Expr) (expr.Expr, error) {
	if tag, ok := lw.cases[e]; ok {
		v, err := lw.value(e)
		if err != nil {
			return nil, err
		}
		return expr.Eq(lw.tags[tag], v), nil
	}
	return lw.value(e)
}

func (lw *lowerer) node(n ast.Node) error {
	switch n := n.(type) {
	case *ast.AssignStmt:
		return lw.assign(n)
	case *ast.IncDecStmt:
		target, err := lw.lvalue(n.X)
		if err != nil {
			return err
		}
		op := expr.OpAdd
		if n.Tok == token.DEC {
			op = expr.OpSub
		}
		lw.flush()
		lw.b.Assign(target, expr.Binary(op, target, expr.IntLit(1)))
		return nil
	case *ast.ExprStmt:
		return lw.exprStmt(n)
	case *ast.ValueSpec:
		return lw.valueSpec(n)
	case *ast.ReturnStmt:
		return lw.returnStmt(n)
	case *ast.EmptyStmt:
		return nil
	case ast.Expr:
		if _, ok := lw.tags[n]; ok {
			v, err := lw.value(n)
			if err != nil {
				return err
			}
			tmp := lw.temp(v.Type())
			lw.flush()
			lw.b.Assign(tmp, v)
			lw.tags[n] = tmp
			return nil
		}
	}
	return lw.errorf(n, "unsupported statement")
}

func (lw *lowerer) assign(s *ast.AssignStmt) error {
	if len(s.Lhs) != len(s.Rhs) {
		return lw.errorf(s, "multi-value assignment is not supported")
	}

	if op, ok := assignOps[s.Tok]; ok {
		target, err := lw.lvalue(s.Lhs[0])
		if err != nil {
			return err
		}
		rhs, err := lw.value(s.Rhs[0])
		if err != nil {
			return err
		}
		if op == expr.OpDiv || op == expr.OpMod {
			lw.divisor(rhs, s, fmt.Sprintf("%s %s %s", types.ExprString(s.Lhs[0]), s.Tok, types.ExprString(s.Rhs[0])))
		}
		lw.flush()
		lw.b.Assign(target, expr.Binary(op, target, rhs))
		return nil
	}

	if len(s.Lhs) == 1 {
		return lw.assignTo(s.Lhs[0], s.Rhs[0], s.Tok == token.DEFINE)
	}

	// Parallel assignment: evaluate every operand first.
	values := make([]expr.Expr, len(s.Rhs))
	for i, r := range s.Rhs {
		v, err := lw.value(r)
		if err != nil {
			return err
		}
		tmp := lw.temp(v.Type())
		lw.flush()
		lw.b.Assign(tmp, v)
		values[i] = tmp
	}
	for i, lhs := range s.Lhs {
		if isBlank(lhs) {
			continue
		}
		target, err := lw.target(lhs, s.Tok == token.DEFINE)
		if err != nil {
			return err
		}
		lw.flush()
		lw.b.Assign(target, values[i])
	}
	return nil
}

var assignOps = map[token.Token]expr.BinaryOp{
	token.ADD_ASSIGN:     expr.OpAdd,
	token.SUB_ASSIGN:     expr.OpSub,
	token.MUL_ASSIGN:     expr.OpMul,
	token.QUO_ASSIGN:     expr.OpDiv,
	token.REM_ASSIGN:     expr.OpMod,
	token.AND_ASSIGN:     expr.OpBitAnd,
	token.OR_ASSIGN:      expr.OpBitOr,
	token.XOR_ASSIGN:     expr.OpBitXor,
	token.AND_NOT_ASSIGN: expr.OpAndNot,
	token.SHL_ASSIGN:     expr.OpShl,
	token.SHR_ASSIGN:     expr.OpShr,
}

func isBlank(e ast.Expr) bool {
	id, ok := e.(*ast.Ident)
	return ok && id.Name == "_"
}

// target lowers an assignment target, declaring it when define introduces
// a new variable.
func (lw *lowerer) target(lhs ast.Expr, define bool) (expr.Expr, error) {
	if id, ok := lhs.(*ast.Ident); ok && define {
		if v, ok := lw.info.Defs[id].(*types.Var); ok {
			return lw.declare(v, id)
		}
	}
	return lw.lvalue(lhs)
}

func (lw *lowerer) assignTo(lhs, rhs ast.Expr, define bool) error {
	if isBlank(lhs) {
		if call, ok := lw.userCall(rhs); ok {
			return lw.call(nil, call)
		}
		_, err := lw.value(rhs)
		lw.flush()
		return err
	}
	target, err := lw.target(lhs, define)
	if err != nil {
		return err
	}
	return lw.assignValue(target, rhs)
}

// assignValue assigns rhs to target; a call assigns its result directly.
func (lw *lowerer) assignValue(target expr.Expr, rhs ast.Expr) error {
	if call, ok := lw.userCall(rhs); ok {
		return lw.call(target, call)
	}
	v, err := lw.value(rhs)
	if err != nil {
		return err
	}
	lw.flush()
	lw.b.Assign(target, v)
	return nil
}

func (lw *lowerer) exprStmt(s *ast.ExprStmt) error {
	call, ok := unparen(s.X).(*ast.CallExpr)
	if !ok {
		return lw.errorf(s, "unsupported statement")
	}
	if id, ok := unparen(call.Fun).(*ast.Ident); ok {
		switch lw.predeclared(lw.info.Uses[id]) {
		case "assert":
			if lw.opts.NoAssertions {
				return nil
			}
			c, err := lw.value(call.Args[0])
			if err != nil {
				return err
			}
			lw.flush()
			lw.b.Assert(c, lw.property("assertion"), "assertion "+types.ExprString(call.Args[0]))
			return nil
		case "assume":
			if lw.opts.NoAssumptions {
				return nil
			}
			c, err := lw.value(call.Args[0])
			if err != nil {
				return err
			}
			lw.flush()
			lw.b.Assume(c)
			return nil
		case "nondet", "nondetBool":
			return nil
		}
	}
	if call, ok := lw.userCall(s.X); ok {
		return lw.call(nil, call)
	}
	return lw.errorf(s, "unsupported call %s", types.ExprString(s.X))
}

func (lw *lowerer) valueSpec(spec *ast.ValueSpec) error {
	if len(spec.Values) != 0 && len(spec.Values) != len(spec.Names) {
		return lw.errorf(spec, "multi-value declaration is not supported")
	}
	for i, name := range spec.Names {
		v, ok := lw.info.Defs[name].(*types.Var)
		if !ok {
			continue
		}
		if len(spec.Values) == 0 {
			if name.Name == "_" {
				continue
			}
			target, err := lw.declare(v, name)
			if err != nil {
				return err
			}
			if hasPointer(target.Type()) {
				return lw.errorf(name, "pointer variable %s needs an initializer", name.Name)
			}
			lw.b.Assign(target, zero(target.Type()))
			continue
		}
		if err := lw.assignTo(name, spec.Values[i], true); err != nil {
			return err
		}
	}
	return nil
}

func (lw *lowerer) returnStmt(s *ast.ReturnStmt) error {
	switch len(s.Results) {
	case 0:
		return nil
	case 1:
		return lw.assignValue(lw.result, s.Results[0])
	default:
		return lw.errorf(s, "multiple return values are not supported")
	}
}

// userCall reports whether e is a call of a function of the program.
func (lw *lowerer) userCall(e ast.Expr) (*ast.CallExpr, bool) {
	call, ok := unparen(e).(*ast.CallExpr)
	if !ok {
		return nil, false
	}
	id, ok := unparen(call.Fun).(*ast.Ident)
	if !ok {
		return nil, false
	}
	fn, ok := lw.info.Uses[id].(*types.Func)
	if !ok || lw.predeclared(fn) != "" {
		return nil, false
	}
	return call, true
}

// call emits a call location whose result, if any, goes to lhs.
func (lw *lowerer) call(lhs expr.Expr, call *ast.CallExpr) error {
	args := make([]expr.Expr, len(call.Args))
	for i, a := range call.Args {
		v, err := lw.value(a)
		if err != nil {
			return err
		}
		args[i] = v
	}
	lw.flush()
	lw.b.Call(lhs, unparen(call.Fun).(*ast.Ident).Name, args...)
	return nil
}

func hasPointer(t expr.Type) bool {
	switch t := t.(type) {
	case expr.PointerType:
		return true
	case expr.ArrayType:
		return hasPointer(t.Elem)
	case expr.StructType:
		for _, f := range t.Fields {
			if hasPointer(f.Type) {
				return true
			}
		}
	}
	return false
}
