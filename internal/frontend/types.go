package frontend

import (
	"go/ast"
	"go/types"

	"github.com/gnolang/summarizer/internal/expr"
)

// typeOf maps a Go type onto the expression type model. Unsigned integers,
// floats, strings, slices, maps and the like are rejected.
func (l *loader) typeOf(t types.Type, at ast.Node) (expr.Type, error) {
	return l.mapType(t, at, make(map[types.Type]bool))
}

func (l *loader) mapType(t types.Type, at ast.Node, visiting map[types.Type]bool) (expr.Type, error) {
	if et, ok := l.types[t]; ok {
		return et, nil
	}
	if visiting[t] {
		return nil, l.errorf(at, "recursive type %s is not supported", t)
	}
	visiting[t] = true
	defer delete(visiting, t)

	var out expr.Type
	switch tt := t.(type) {
	case *types.Basic:
		switch tt.Kind() {
		case types.Int, types.Int8, types.Int16, types.Int32, types.Int64, types.UntypedInt, types.UntypedRune:
			out = expr.Int
		case types.Bool, types.UntypedBool:
			out = expr.Bool
		default:
			return nil, l.errorf(at, "type %s is not supported", t)
		}
	case *types.Array:
		elem, err := l.mapType(tt.Elem(), at, visiting)
		if err != nil {
			return nil, err
		}
		out = expr.ArrayType{Elem: elem, Len: int(tt.Len())}
	case *types.Pointer:
		elem, err := l.mapType(tt.Elem(), at, visiting)
		if err != nil {
			return nil, err
		}
		out = expr.PointerType{Elem: elem}
	case *types.Named:
		st, ok := tt.Underlying().(*types.Struct)
		if !ok {
			u, err := l.mapType(tt.Underlying(), at, visiting)
			if err != nil {
				return nil, err
			}
			out = u
			break
		}
		s, err := l.structType(tt.Obj().Name(), st, at, visiting)
		if err != nil {
			return nil, err
		}
		out = s
	case *types.Struct:
		s, err := l.structType("", tt, at, visiting)
		if err != nil {
			return nil, err
		}
		out = s
	default:
		return nil, l.errorf(at, "type %s is not supported", t)
	}
	l.types[t] = out
	return out, nil
}

func (l *loader) structType(name string, st *types.Struct, at ast.Node, visiting map[types.Type]bool) (expr.StructType, error) {
	out := expr.StructType{Name: name}
	for i := 0; i < st.NumFields(); i++ {
		f := st.Field(i)
		ft, err := l.mapType(f.Type(), at, visiting)
		if err != nil {
			return expr.StructType{}, err
		}
		out.Fields = append(out.Fields, expr.Field{Name: f.Name(), Type: ft})
	}
	return out, nil
}

// zero is the zero value of t as a literal.
func zero(t expr.Type) expr.Expr {
	return expr.Lit(expr.Zero(t))
}
