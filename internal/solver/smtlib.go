package solver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/gnolang/summarizer/internal/expr"
)

// SMTLib writes the conjunction as an SMT-LIB2 script over bit-vectors and
// arrays and runs an external solver on it.
type SMTLib struct {
	width   int
	command []string

	decls   []expr.SymbolExpr
	seen    map[string]bool
	objects map[string]int64
	asserts []string
	model   Model
}

var _ DecisionProcedure = (*SMTLib)(nil)

// NewSMTLib returns a decision procedure running command, which must read
// a script on standard input.
func NewSMTLib(width int, command []string) *SMTLib {
	return &SMTLib{
		width:   width,
		command: command,
		seen:    make(map[string]bool),
		objects: make(map[string]int64),
	}
}

func (s *SMTLib) Assert(e expr.Expr) error {
	if _, ok := e.Type().(expr.BoolType); !ok {
		return fmt.Errorf("%w: assertion %s is not boolean", ErrUnsupported, e)
	}
	var sb strings.Builder
	if err := s.term(&sb, flattenStructs(e)); err != nil {
		return err
	}
	s.asserts = append(s.asserts, sb.String())
	return nil
}

// Script returns the SMT-LIB2 text sent to the solver.
func (s *SMTLib) Script() (string, error) {
	var sb strings.Builder
	sb.WriteString("(set-option :produce-models true)\n")
	for _, d := range s.decls {
		srt, err := s.sort(d.Typ)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&sb, "(declare-const %s %s)\n", quote(d.Name), srt)
	}
	for _, a := range s.asserts {
		fmt.Fprintf(&sb, "(assert %s)\n", a)
	}
	sb.WriteString("(check-sat)\n")
	if scalars := s.scalars(); len(scalars) > 0 {
		fmt.Fprintf(&sb, "(get-value (%s))\n", strings.Join(scalars, " "))
	}
	sb.WriteString("(exit)\n")
	return sb.String(), nil
}

func (s *SMTLib) scalars() []string {
	var out []string
	for _, d := range s.decls {
		if expr.IsScalar(d.Typ) {
			out = append(out, quote(d.Name))
		}
	}
	return out
}

func (s *SMTLib) Check(ctx context.Context) (Result, error) {
	if len(s.command) == 0 {
		return Unknown, errors.New("no solver command configured")
	}
	script, err := s.Script()
	if err != nil {
		return Unknown, err
	}

	cmd := exec.CommandContext(ctx, s.command[0], s.command[1:]...)
	cmd.Stdin = strings.NewReader(script)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	runErr := cmd.Run()
	if ctx.Err() != nil {
		return Unknown, nil
	}

	out := stdout.String()
	status, rest, _ := strings.Cut(strings.TrimLeft(out, " \t\r\n"), "\n")
	switch strings.TrimSpace(status) {
	case "sat":
		s.model = s.parseModel(rest)
		return Satisfiable, nil
	case "unsat":
		return Unsatisfiable, nil
	case "unknown":
		return Unknown, nil
	}
	if runErr != nil {
		return Unknown, fmt.Errorf("%s: %w: %s", s.command[0], runErr, strings.TrimSpace(stderr.String()+out))
	}
	return Unknown, fmt.Errorf("%s: unexpected answer %q", s.command[0], strings.TrimSpace(status))
}

func (s *SMTLib) Model() Model { return s.model }

func quote(name string) string { return "|" + name + "|" }

func (s *SMTLib) sort(t expr.Type) (string, error) {
	switch t := t.(type) {
	case expr.BoolType:
		return "Bool", nil
	case expr.IntType, expr.PointerType:
		return fmt.Sprintf("(_ BitVec %d)", s.width), nil
	case expr.ArrayType:
		elem, err := s.sort(t.Elem)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(Array (_ BitVec %d) %s)", s.width, elem), nil
	}
	return "", fmt.Errorf("%w: type %v", ErrUnsupported, t)
}

func (s *SMTLib) bv(v int64) string {
	return fmt.Sprintf("(_ bv%d %d)", uint64(v)&mask(s.width), s.width)
}

func mask(width int) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}
	return 1<<uint(width) - 1
}

var binaryOps = map[expr.BinaryOp]string{
	expr.OpAdd:     "bvadd",
	expr.OpSub:     "bvsub",
	expr.OpMul:     "bvmul",
	expr.OpDiv:     "bvsdiv",
	expr.OpMod:     "bvsrem",
	expr.OpBitAnd:  "bvand",
	expr.OpBitOr:   "bvor",
	expr.OpBitXor:  "bvxor",
	expr.OpShl:     "bvshl",
	expr.OpShr:     "bvashr",
	expr.OpEq:      "=",
	expr.OpLt:      "bvslt",
	expr.OpLte:     "bvsle",
	expr.OpGt:      "bvsgt",
	expr.OpGte:     "bvsge",
	expr.OpAnd:     "and",
	expr.OpOr:      "or",
	expr.OpImplies: "=>",
}

func (s *SMTLib) term(sb *strings.Builder, e expr.Expr) error {
	switch n := e.(type) {
	case expr.ConstExpr:
		return s.constant(sb, n.Val)
	case expr.SymbolExpr:
		if !s.seen[n.Name] {
			s.seen[n.Name] = true
			s.decls = append(s.decls, n)
		}
		sb.WriteString(quote(n.Name))
		return nil
	case expr.BinaryExpr:
		switch n.Op {
		case expr.OpNeq:
			return s.apply(sb, "distinct", n.Left, n.Right)
		case expr.OpAndNot:
			return s.apply(sb, "bvand", n.Left, expr.UnaryExpr{Op: expr.OpBitNot, Operand: n.Right})
		}
		if op, ok := binaryOps[n.Op]; ok {
			return s.apply(sb, op, n.Left, n.Right)
		}
	case expr.UnaryExpr:
		switch n.Op {
		case expr.OpNot:
			return s.apply(sb, "not", n.Operand)
		case expr.OpNeg:
			return s.apply(sb, "bvneg", n.Operand)
		case expr.OpBitNot:
			return s.apply(sb, "bvnot", n.Operand)
		}
	case expr.IteExpr:
		return s.apply(sb, "ite", n.Cond, n.Then, n.Else)
	case expr.IndexExpr:
		return s.apply(sb, "select", n.X, n.Index)
	case expr.WithExpr:
		return s.apply(sb, "store", n.Array, n.Index, n.Value)
	case expr.ArrayExpr:
		return s.array(sb, n.Typ, n.Elems)
	case expr.AddrExpr:
		return s.address(sb, n.X)
	}
	return fmt.Errorf("%w: %s", ErrUnsupported, e)
}

func (s *SMTLib) apply(sb *strings.Builder, op string, args ...expr.Expr) error {
	sb.WriteString("(" + op)
	for _, a := range args {
		sb.WriteByte(' ')
		if err := s.term(sb, a); err != nil {
			return err
		}
	}
	sb.WriteByte(')')
	return nil
}

func (s *SMTLib) constant(sb *strings.Builder, v expr.Value) error {
	switch v := v.(type) {
	case expr.BoolValue:
		sb.WriteString(strconv.FormatBool(v.Val))
	case expr.IntValue:
		sb.WriteString(s.bv(v.Val))
	case expr.ArrayValue:
		elems := make([]expr.Expr, len(v.Elems))
		for i, el := range v.Elems {
			elems[i] = expr.Lit(el)
		}
		return s.array(sb, v.Typ, elems)
	default:
		return fmt.Errorf("%w: constant %s", ErrUnsupported, v)
	}
	return nil
}

// array writes an array literal as stores over a constant array of zeros.
func (s *SMTLib) array(sb *strings.Builder, t expr.ArrayType, elems []expr.Expr) error {
	srt, err := s.sort(t)
	if err != nil {
		return err
	}
	var base strings.Builder
	fmt.Fprintf(&base, "((as const %s) ", srt)
	if err := s.constant(&base, expr.Zero(t.Elem)); err != nil {
		return err
	}
	base.WriteByte(')')

	for range elems {
		sb.WriteString("(store ")
	}
	sb.WriteString(base.String())
	for i, el := range elems {
		fmt.Fprintf(sb, " %s ", s.bv(int64(i)))
		if err := s.term(sb, el); err != nil {
			return err
		}
		sb.WriteByte(')')
	}
	return nil
}

func (s *SMTLib) address(sb *strings.Builder, path expr.Expr) error {
	var parts []string
	stride := int64(1)
	cur := path
	for {
		n, ok := cur.(expr.IndexExpr)
		if !ok {
			break
		}
		var idx strings.Builder
		if err := s.term(&idx, n.Index); err != nil {
			return err
		}
		parts = append(parts, fmt.Sprintf("(bvmul %s %s)", idx.String(), s.bv(stride)))
		if at, ok := n.X.Type().(expr.ArrayType); ok {
			stride *= int64(at.Len)
		}
		cur = n.X
	}
	base := cur.String()
	id, ok := s.objects[base]
	if !ok {
		id = int64(len(s.objects) + 1)
		s.objects[base] = id
	}
	t := s.bv(id << uint(s.width/2))
	for _, p := range parts {
		t = fmt.Sprintf("(bvadd %s %s)", t, p)
	}
	sb.WriteString(t)
	return nil
}

// flattenStructs removes struct-typed terms, which have no SMT-LIB sort
// here: selections are pushed into struct literals and conditionals, and
// struct comparisons become field-wise conjunctions.
func flattenStructs(e expr.Expr) expr.Expr {
	return expr.TransformPost(e, func(n expr.Expr) expr.Expr {
		switch n := n.(type) {
		case expr.MemberExpr:
			if _, ok := n.X.Type().(expr.StructType); ok {
				return expr.Project(n.X, n.Field)
			}
		case expr.BinaryExpr:
			st, ok := n.Left.Type().(expr.StructType)
			if !ok || (n.Op != expr.OpEq && n.Op != expr.OpNeq) {
				return n
			}
			conj := make([]expr.Expr, len(st.Fields))
			for i, f := range st.Fields {
				conj[i] = flattenStructs(expr.Eq(expr.Project(n.Left, f.Name), expr.Project(n.Right, f.Name)))
			}
			if n.Op == expr.OpNeq {
				return expr.Not(expr.And(conj...))
			}
			return expr.And(conj...)
		}
		return n
	})
}

// parseModel reads the answer to get-value: a list of (name value) pairs
// where values are bit-vector or boolean literals.
func (s *SMTLib) parseModel(text string) Model {
	types := make(map[string]expr.Type, len(s.decls))
	for _, d := range s.decls {
		types[d.Name] = d.Typ
	}
	m := make(Model)
	root, err := parseSExpr(text)
	if err != nil {
		return m
	}
	for _, pair := range root.list {
		if len(pair.list) != 2 || pair.list[0].atom == "" {
			continue
		}
		name := strings.Trim(pair.list[0].atom, "|")
		t, ok := types[name]
		if !ok {
			continue
		}
		if v, ok := s.literal(pair.list[1], t); ok {
			m[name] = v
		}
	}
	return m
}

func (s *SMTLib) literal(n sexpr, t expr.Type) (expr.Value, bool) {
	if _, ok := t.(expr.BoolType); ok {
		switch n.atom {
		case "true":
			return expr.BoolValue{Val: true}, true
		case "false":
			return expr.BoolValue{Val: false}, true
		}
		return nil, false
	}
	var u uint64
	var err error
	switch {
	case strings.HasPrefix(n.atom, "#x"):
		u, err = strconv.ParseUint(n.atom[2:], 16, 64)
	case strings.HasPrefix(n.atom, "#b"):
		u, err = strconv.ParseUint(n.atom[2:], 2, 64)
	case len(n.list) == 3 && n.list[0].atom == "_" && strings.HasPrefix(n.list[1].atom, "bv"):
		u, err = strconv.ParseUint(n.list[1].atom[2:], 10, 64)
	default:
		return nil, false
	}
	if err != nil {
		return nil, false
	}
	return expr.IntValue{Val: expr.Wrap(int64(u), s.width)}, true
}

type sexpr struct {
	atom string
	list []sexpr
}

// parseSExpr parses the first s-expression of text.
func parseSExpr(text string) (sexpr, error) {
	var stack [][]sexpr
	var cur []sexpr
	i := 0
	for i < len(text) {
		c := text[i]
		switch {
		case c == '(':
			stack = append(stack, cur)
			cur = nil
			i++
		case c == ')':
			if len(stack) == 0 {
				return sexpr{}, errors.New("unbalanced parenthesis")
			}
			node := sexpr{list: cur}
			cur = stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return node, nil
			}
			cur = append(cur, node)
			i++
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '|':
			j := strings.IndexByte(text[i+1:], '|')
			if j < 0 {
				return sexpr{}, errors.New("unterminated symbol")
			}
			cur = append(cur, sexpr{atom: text[i : i+j+2]})
			i += j + 2
		default:
			j := i
			for j < len(text) && !strings.ContainsRune("() \t\r\n|", rune(text[j])) {
				j++
			}
			cur = append(cur, sexpr{atom: text[i:j]})
			i = j
		}
	}
	return sexpr{}, errors.New("no s-expression")
}
