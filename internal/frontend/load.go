// Package frontend lowers a subset of Go into location programs.
//
// The accepted language is a single package without imports whose functions
// use signed integers, booleans, fixed-length arrays, structs and
// address-of. Four functions are predeclared for every package:
//
//	func assert(cond bool)
//	func assume(cond bool)
//	func nondet() int
//	func nondetBool() bool
//
// Each function body is turned into a control-flow graph, its blocks are
// laid out in reverse postorder, and every statement becomes one or more
// locations, so the only backward jumps are loop back edges.
package frontend

import (
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/scanner"
	"go/token"
	"go/types"
	"os"

	"github.com/gnolang/summarizer/internal/expr"
	"github.com/gnolang/summarizer/internal/program"
)

// ErrNoInput is returned when there is nothing to load.
var ErrNoInput = errors.New("please provide a program to verify")

// Error is a problem in the user's program.
type Error struct {
	Pos program.Position
	Msg string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.Msg)
}

// Options controls lowering and instrumentation.
type Options struct {
	// Entry is the name of the entry function; "main" when empty.
	Entry string

	NoAssertions  bool
	NoAssumptions bool

	// BoundsCheck asserts that every array index is in range.
	BoundsCheck bool
	// DivByZeroCheck asserts that every divisor is nonzero.
	DivByZeroCheck bool
	// ErrorLabel makes reaching a statement with this label a failure.
	ErrorLabel string
}

const preludeName = "prelude.go"

const preludeSource = `package %s

func assert(cond bool) {}
func assume(cond bool) {}
func nondet() int      { return 0 }
func nondetBool() bool { return false }
`

// ParseFiles loads the Go files at paths as one package.
func ParseFiles(paths []string, opts Options) (*program.Program, error) {
	if len(paths) == 0 {
		return nil, ErrNoInput
	}
	fset := token.NewFileSet()
	files := make([]*ast.File, 0, len(paths))
	for _, path := range paths {
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		f, err := parser.ParseFile(fset, path, src, 0)
		if err != nil {
			return nil, syntaxError(err)
		}
		files = append(files, f)
	}
	return Load(fset, files, opts)
}

// ParseSource loads a single file held in memory.
func ParseSource(filename string, src []byte, opts Options) (*program.Program, error) {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, filename, src, 0)
	if err != nil {
		return nil, syntaxError(err)
	}
	return Load(fset, []*ast.File{f}, opts)
}

func syntaxError(err error) error {
	var list scanner.ErrorList
	if errors.As(err, &list) && len(list) > 0 {
		p := list[0].Pos
		return &Error{Pos: program.Position{File: p.Filename, Line: p.Line, Column: p.Column}, Msg: list[0].Msg}
	}
	return err
}

// Load type-checks files as one package and lowers every function.
func Load(fset *token.FileSet, files []*ast.File, opts Options) (*program.Program, error) {
	if len(files) == 0 {
		return nil, ErrNoInput
	}
	if opts.Entry == "" {
		opts.Entry = "main"
	}

	pkgName := files[0].Name.Name
	for _, f := range files {
		if f.Name.Name != pkgName {
			return nil, errorAt(fset, f.Name, "package %s conflicts with package %s", f.Name.Name, pkgName)
		}
		if len(f.Imports) > 0 {
			return nil, errorAt(fset, f.Imports[0], "imports are not supported")
		}
	}

	prelude, err := parser.ParseFile(fset, preludeName, fmt.Sprintf(preludeSource, pkgName), 0)
	if err != nil {
		return nil, err
	}

	info := &types.Info{
		Types:      make(map[ast.Expr]types.TypeAndValue),
		Defs:       make(map[*ast.Ident]types.Object),
		Uses:       make(map[*ast.Ident]types.Object),
		Selections: make(map[*ast.SelectorExpr]*types.Selection),
	}
	var typeErr error
	conf := types.Config{
		Error: func(err error) {
			if typeErr == nil {
				typeErr = err
			}
		},
	}
	pkg, _ := conf.Check(pkgName, fset, append([]*ast.File{prelude}, files...), info)
	if typeErr != nil {
		var te types.Error
		if errors.As(typeErr, &te) {
			p := te.Fset.Position(te.Pos)
			return nil, &Error{Pos: program.Position{File: p.Filename, Line: p.Line, Column: p.Column}, Msg: te.Msg}
		}
		return nil, typeErr
	}

	l := &loader{
		fset:    fset,
		info:    info,
		pkg:     pkg,
		opts:    opts,
		globals: make(map[*types.Var]expr.Expr),
		types:   make(map[types.Type]expr.Type),
	}
	return l.load(files)
}

func errorAt(fset *token.FileSet, n ast.Node, format string, args ...any) *Error {
	p := fset.Position(n.Pos())
	return &Error{
		Pos: program.Position{File: p.Filename, Line: p.Line, Column: p.Column},
		Msg: fmt.Sprintf(format, args...),
	}
}

type loader struct {
	fset *token.FileSet
	info *types.Info
	pkg  *types.Package
	opts Options

	globals map[*types.Var]expr.Expr
	types   map[types.Type]expr.Type
}

func (l *loader) errorf(n ast.Node, format string, args ...any) error {
	return errorAt(l.fset, n, format, args...)
}

func (l *loader) position(p token.Pos) program.Position {
	pp := l.fset.Position(p)
	return program.Position{File: pp.Filename, Line: pp.Line, Column: pp.Column}
}

// predeclared reports which prelude function obj is, if any.
func (l *loader) predeclared(obj types.Object) string {
	fn, ok := obj.(*types.Func)
	if !ok || fn.Pkg() != l.pkg {
		return ""
	}
	if l.fset.Position(fn.Pos()).Filename != preludeName {
		return ""
	}
	return fn.Name()
}

func (l *loader) load(files []*ast.File) (*program.Program, error) {
	prog := program.New(l.opts.Entry)

	for _, f := range files {
		for _, decl := range f.Decls {
			gen, ok := decl.(*ast.GenDecl)
			if !ok || gen.Tok != token.VAR {
				continue
			}
			for _, spec := range gen.Specs {
				for _, name := range spec.(*ast.ValueSpec).Names {
					v, ok := l.info.Defs[name].(*types.Var)
					if !ok {
						continue
					}
					t, err := l.typeOf(v.Type(), name)
					if err != nil {
						return nil, err
					}
					if _, ok := t.(expr.PointerType); ok {
						return nil, l.errorf(name, "global pointer %s is not supported", name.Name)
					}
					g := expr.Global(l.pkg.Name()+"::"+name.Name, t)
					l.globals[v] = g
					prog.Globals = append(prog.Globals, g.(expr.IdentExpr))
				}
			}
		}
	}

	for _, f := range files {
		for _, decl := range f.Decls {
			fd, ok := decl.(*ast.FuncDecl)
			if !ok {
				continue
			}
			if fd.Recv != nil {
				return nil, l.errorf(fd, "method %s is not supported", fd.Name.Name)
			}
			if fd.Type.TypeParams != nil {
				return nil, l.errorf(fd, "generic function %s is not supported", fd.Name.Name)
			}
			if fd.Body == nil {
				return nil, l.errorf(fd, "function %s has no body", fd.Name.Name)
			}
			fn, err := l.lowerFunc(fd, fd.Name.Name == l.opts.Entry)
			if err != nil {
				return nil, err
			}
			prog.Add(fn)
		}
	}
	return prog, nil
}
