package ssa

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gnolang/summarizer/internal/expr"
	"github.com/gnolang/summarizer/internal/program"
)

// Kind tags the role of a versioned symbol.
type Kind int

const (
	// Out is the value of an object written at a location.
	Out Kind = iota
	// Phi is the merged value of an object at a join.
	Phi
	// LoopBack is the value carried by a loop back edge from the previous
	// iteration. It is never constrained.
	LoopBack
	// LoopSelect chooses whether a loop head is entered through a back edge.
	LoopSelect
)

func (k Kind) String() string {
	switch k {
	case Out:
		return "OUT"
	case Phi:
		return "PHI"
	case LoopBack:
		return "LOOP_BACK"
	case LoopSelect:
		return "LOOP_SELECT"
	default:
		return "?"
	}
}

func (k Kind) tag() string {
	switch k {
	case Phi:
		return "phi"
	case LoopBack:
		return "lb"
	case LoopSelect:
		return "ls"
	default:
		return ""
	}
}

const inputTag = "in"

// auxPrefix starts the identifiers of objects owned by the construction. No
// Go identifier contains '@', so program objects never share them.
const auxPrefix = "@"

// Auxiliary objects owned by the construction.
var (
	guardObject = program.MustObject(expr.Var(auxPrefix+"guard", expr.Bool))
	condObject  = program.MustObject(expr.Var(auxPrefix+"cond", expr.Bool))
)

// Name returns the versioned symbol of obj with the given kind at loc. It
// is a pure function of its arguments: equal inputs give equal symbols and
// distinct inputs give distinct ones.
func Name(obj program.Object, kind Kind, loc int) expr.SymbolExpr {
	return expr.Symbol(obj.Identifier()+"#"+kind.tag()+strconv.Itoa(loc), obj.Type())
}

// Input returns the symbol of obj's value on function entry.
func Input(obj program.Object) expr.SymbolExpr {
	return expr.Symbol(obj.Identifier()+"#"+inputTag, obj.Type())
}

// Guard returns the guard symbol of loc.
func Guard(loc int) expr.SymbolExpr { return Name(guardObject, Out, loc) }

// Cond returns the symbol holding the branch or assumed condition of loc.
func Cond(loc int) expr.SymbolExpr { return Name(condObject, Out, loc) }

func temporary(loc, n int, t expr.Type) expr.SymbolExpr {
	obj := program.MustObject(expr.Var(fmt.Sprintf("%stmp%d", auxPrefix, n), t))
	return Name(obj, Out, loc)
}

// Symbol is a decoded versioned symbol name.
type Symbol struct {
	Identifier string
	Kind       Kind
	Location   int
	Input      bool
}

// Auxiliary reports whether the symbol belongs to the construction rather
// than to a program object.
func (s Symbol) Auxiliary() bool {
	return strings.HasPrefix(s.Identifier, auxPrefix)
}

// ParseSymbol decodes a name produced by Name or Input.
func ParseSymbol(name string) (Symbol, bool) {
	i := strings.LastIndexByte(name, '#')
	if i <= 0 {
		return Symbol{}, false
	}
	id, rest := name[:i], name[i+1:]
	if rest == inputTag {
		return Symbol{Identifier: id, Input: true, Location: -1}, true
	}
	kind := Out
	for _, k := range []Kind{Phi, LoopBack, LoopSelect} {
		if strings.HasPrefix(rest, k.tag()) {
			kind = k
			rest = rest[len(k.tag()):]
			break
		}
	}
	loc, err := strconv.Atoi(rest)
	if err != nil || loc < 0 {
		return Symbol{}, false
	}
	return Symbol{Identifier: id, Kind: kind, Location: loc}, true
}
