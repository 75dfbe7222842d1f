package solver

import (
	"fmt"

	"github.com/go-air/gini/logic"
	"github.com/go-air/gini/z"

	"github.com/gnolang/summarizer/internal/expr"
)

// value is the circuit encoding of an expression: bits for scalars (one
// literal for booleans, Width literals, least significant first, for
// integers and pointers), elems for arrays, fields for structs.
type value struct {
	bits   []z.Lit
	elems  []value
	fields []value
}

type symbol struct {
	typ expr.Type
	val value
}

// blaster translates expressions into an and-inverter circuit.
type blaster struct {
	c       *logic.C
	width   int
	symbols map[string]symbol
	order   []string
	objects map[string]int64
}

func newBlaster(width int) *blaster {
	return &blaster{
		c:       logic.NewC(),
		width:   width,
		symbols: make(map[string]symbol),
		objects: make(map[string]int64),
	}
}

func (b *blaster) t() z.Lit { return b.c.T }
func (b *blaster) f() z.Lit { return b.c.T.Not() }

func (b *blaster) lit(v bool) z.Lit {
	if v {
		return b.t()
	}
	return b.f()
}

func (b *blaster) fresh(t expr.Type) (value, error) {
	switch t := t.(type) {
	case expr.BoolType:
		return value{bits: []z.Lit{b.c.Lit()}}, nil
	case expr.IntType, expr.PointerType:
		bits := make([]z.Lit, b.width)
		for i := range bits {
			bits[i] = b.c.Lit()
		}
		return value{bits: bits}, nil
	case expr.ArrayType:
		elems := make([]value, t.Len)
		for i := range elems {
			v, err := b.fresh(t.Elem)
			if err != nil {
				return value{}, err
			}
			elems[i] = v
		}
		return value{elems: elems}, nil
	case expr.StructType:
		fields := make([]value, len(t.Fields))
		for i, f := range t.Fields {
			v, err := b.fresh(f.Type)
			if err != nil {
				return value{}, err
			}
			fields[i] = v
		}
		return value{fields: fields}, nil
	}
	return value{}, fmt.Errorf("%w: type %v", ErrUnsupported, t)
}

func (b *blaster) word(v int64) []z.Lit {
	bits := make([]z.Lit, b.width)
	u := uint64(v)
	for i := range bits {
		bits[i] = b.lit(u&(1<<uint(i)) != 0)
	}
	return bits
}

func (b *blaster) constant(v expr.Value) value {
	switch v := v.(type) {
	case expr.BoolValue:
		return value{bits: []z.Lit{b.lit(v.Val)}}
	case expr.ArrayValue:
		elems := make([]value, len(v.Elems))
		for i, e := range v.Elems {
			elems[i] = b.constant(e)
		}
		return value{elems: elems}
	case expr.StructValue:
		fields := make([]value, len(v.Fields))
		for i, f := range v.Fields {
			fields[i] = b.constant(f)
		}
		return value{fields: fields}
	case expr.IntValue:
		return value{bits: b.word(v.Val)}
	}
	return value{}
}

func (b *blaster) blast(e expr.Expr) (value, error) {
	switch n := e.(type) {
	case expr.ConstExpr:
		return b.constant(n.Val), nil
	case expr.SymbolExpr:
		if s, ok := b.symbols[n.Name]; ok {
			return s.val, nil
		}
		v, err := b.fresh(n.Typ)
		if err != nil {
			return value{}, err
		}
		b.symbols[n.Name] = symbol{typ: n.Typ, val: v}
		b.order = append(b.order, n.Name)
		return v, nil
	case expr.BinaryExpr:
		return b.binary(n)
	case expr.UnaryExpr:
		x, err := b.blast(n.Operand)
		if err != nil {
			return value{}, err
		}
		switch n.Op {
		case expr.OpNot:
			return value{bits: []z.Lit{x.bits[0].Not()}}, nil
		case expr.OpNeg:
			return value{bits: b.neg(x.bits)}, nil
		case expr.OpBitNot:
			return value{bits: not(x.bits)}, nil
		}
	case expr.IteExpr:
		c, err := b.blast(n.Cond)
		if err != nil {
			return value{}, err
		}
		t, err := b.blast(n.Then)
		if err != nil {
			return value{}, err
		}
		f, err := b.blast(n.Else)
		if err != nil {
			return value{}, err
		}
		return b.mux(c.bits[0], t, f), nil
	case expr.IndexExpr:
		return b.index(n)
	case expr.WithExpr:
		return b.with(n)
	case expr.MemberExpr:
		st, ok := n.X.Type().(expr.StructType)
		if !ok {
			break
		}
		_, i, ok := st.Field(n.Field)
		if !ok {
			break
		}
		x, err := b.blast(n.X)
		if err != nil {
			return value{}, err
		}
		return x.fields[i], nil
	case expr.StructExpr:
		fields := make([]value, len(n.Fields))
		for i, f := range n.Fields {
			v, err := b.blast(f)
			if err != nil {
				return value{}, err
			}
			fields[i] = v
		}
		return value{fields: fields}, nil
	case expr.ArrayExpr:
		elems := make([]value, len(n.Elems))
		for i, el := range n.Elems {
			v, err := b.blast(el)
			if err != nil {
				return value{}, err
			}
			elems[i] = v
		}
		return value{elems: elems}, nil
	case expr.AddrExpr:
		return b.address(n.X)
	}
	return value{}, fmt.Errorf("%w: %s", ErrUnsupported, e)
}

func (b *blaster) binary(n expr.BinaryExpr) (value, error) {
	l, err := b.blast(n.Left)
	if err != nil {
		return value{}, err
	}
	r, err := b.blast(n.Right)
	if err != nil {
		return value{}, err
	}
	c := b.c
	one := func(m z.Lit) (value, error) { return value{bits: []z.Lit{m}}, nil }
	word := func(bits []z.Lit) (value, error) { return value{bits: bits}, nil }

	switch n.Op {
	case expr.OpAnd:
		return one(c.And(l.bits[0], r.bits[0]))
	case expr.OpOr:
		return one(c.Or(l.bits[0], r.bits[0]))
	case expr.OpImplies:
		return one(c.Implies(l.bits[0], r.bits[0]))
	case expr.OpEq:
		return one(b.equal(l, r))
	case expr.OpNeq:
		return one(b.equal(l, r).Not())
	case expr.OpLt:
		return one(b.slt(l.bits, r.bits))
	case expr.OpLte:
		return one(b.slt(r.bits, l.bits).Not())
	case expr.OpGt:
		return one(b.slt(r.bits, l.bits))
	case expr.OpGte:
		return one(b.slt(l.bits, r.bits).Not())
	case expr.OpAdd:
		return word(b.add(l.bits, r.bits, b.f()))
	case expr.OpSub:
		return word(b.add(l.bits, not(r.bits), b.t()))
	case expr.OpMul:
		return word(b.mul(l.bits, r.bits))
	case expr.OpDiv:
		q, _ := b.sdivmod(l.bits, r.bits)
		return word(q)
	case expr.OpMod:
		_, m := b.sdivmod(l.bits, r.bits)
		return word(m)
	case expr.OpBitAnd:
		return word(b.zip(l.bits, r.bits, c.And))
	case expr.OpBitOr:
		return word(b.zip(l.bits, r.bits, c.Or))
	case expr.OpBitXor:
		return word(b.zip(l.bits, r.bits, c.Xor))
	case expr.OpAndNot:
		return word(b.zip(l.bits, not(r.bits), c.And))
	case expr.OpShl:
		return word(b.shift(l.bits, r.bits, true, b.f()))
	case expr.OpShr:
		return word(b.shift(l.bits, r.bits, false, l.bits[len(l.bits)-1]))
	}
	return value{}, fmt.Errorf("%w: operator %s", ErrUnsupported, n.Op)
}

func not(x []z.Lit) []z.Lit {
	out := make([]z.Lit, len(x))
	for i, m := range x {
		out[i] = m.Not()
	}
	return out
}

func (b *blaster) zip(x, y []z.Lit, op func(a, b z.Lit) z.Lit) []z.Lit {
	out := make([]z.Lit, len(x))
	for i := range x {
		out[i] = op(x[i], y[i])
	}
	return out
}

// add is a ripple-carry adder.
func (b *blaster) add(x, y []z.Lit, carry z.Lit) []z.Lit {
	out, _ := b.adder(x, y, carry)
	return out
}

func (b *blaster) adder(x, y []z.Lit, carry z.Lit) ([]z.Lit, z.Lit) {
	c := b.c
	out := make([]z.Lit, len(x))
	for i := range x {
		t := c.Xor(x[i], y[i])
		out[i] = c.Xor(t, carry)
		carry = c.Or(c.And(x[i], y[i]), c.And(carry, t))
	}
	return out, carry
}

func (b *blaster) neg(x []z.Lit) []z.Lit {
	zero := make([]z.Lit, len(x))
	for i := range zero {
		zero[i] = b.f()
	}
	return b.add(not(x), zero, b.t())
}

// ult is unsigned less-than: x - y borrows.
func (b *blaster) ult(x, y []z.Lit) z.Lit {
	_, carry := b.adder(x, not(y), b.t())
	return carry.Not()
}

// slt is signed less-than: unsigned comparison with the sign bits flipped.
func (b *blaster) slt(x, y []z.Lit) z.Lit {
	fx := append([]z.Lit(nil), x...)
	fy := append([]z.Lit(nil), y...)
	fx[len(fx)-1] = fx[len(fx)-1].Not()
	fy[len(fy)-1] = fy[len(fy)-1].Not()
	return b.ult(fx, fy)
}

func (b *blaster) mul(x, y []z.Lit) []z.Lit {
	w := len(x)
	acc := make([]z.Lit, w)
	for i := range acc {
		acc[i] = b.f()
	}
	for i := 0; i < w; i++ {
		partial := make([]z.Lit, w)
		for j := range partial {
			if j < i {
				partial[j] = b.f()
			} else {
				partial[j] = b.c.And(x[j-i], y[i])
			}
		}
		acc = b.add(acc, partial, b.f())
	}
	return acc
}

// udivmod is a restoring divider. Division by zero yields an all-ones
// quotient and the dividend as remainder.
func (b *blaster) udivmod(x, y []z.Lit) (q, r []z.Lit) {
	w := len(x)
	rem := make([]z.Lit, w+1)
	for i := range rem {
		rem[i] = b.f()
	}
	ext := append(append([]z.Lit(nil), y...), b.f())
	q = make([]z.Lit, w)
	for i := w - 1; i >= 0; i-- {
		shifted := append([]z.Lit{x[i]}, rem[:w]...)
		diff, noBorrow := b.adder(shifted, not(ext), b.t())
		q[i] = noBorrow
		rem = b.muxBits(noBorrow, diff, shifted)
	}
	return q, rem[:w]
}

// sdivmod is truncated signed division: the quotient rounds toward zero and
// the remainder takes the dividend's sign.
func (b *blaster) sdivmod(x, y []z.Lit) (q, r []z.Lit) {
	w := len(x)
	sx, sy := x[w-1], y[w-1]
	ax := b.muxBits(sx, b.neg(x), x)
	ay := b.muxBits(sy, b.neg(y), y)
	uq, ur := b.udivmod(ax, ay)
	q = b.muxBits(b.c.Xor(sx, sy), b.neg(uq), uq)
	r = b.muxBits(sx, b.neg(ur), ur)
	return q, r
}

// shift is a barrel shifter. Amounts are unsigned; an amount of at least
// the width shifts every bit out and leaves fill.
func (b *blaster) shift(x, amount []z.Lit, left bool, fill z.Lit) []z.Lit {
	w := len(x)
	stages := 0
	for 1<<uint(stages) < w {
		stages++
	}
	cur := x
	for k := 0; k < stages; k++ {
		s := 1 << uint(k)
		next := make([]z.Lit, w)
		for i := range next {
			var src z.Lit
			switch {
			case left && i-s >= 0:
				src = cur[i-s]
			case left:
				src = b.f()
			case i+s < w:
				src = cur[i+s]
			default:
				src = fill
			}
			next[i] = b.c.Choice(amount[k], src, cur[i])
		}
		cur = next
	}
	over := b.c.Ors(amount[stages:]...)
	out := make([]z.Lit, w)
	for i := range out {
		out[i] = b.c.Choice(over, fill, cur[i])
	}
	return out
}

func (b *blaster) muxBits(c z.Lit, t, e []z.Lit) []z.Lit {
	out := make([]z.Lit, len(t))
	for i := range t {
		out[i] = b.c.Choice(c, t[i], e[i])
	}
	return out
}

func (b *blaster) mux(c z.Lit, t, e value) value {
	out := value{}
	if t.bits != nil {
		out.bits = b.muxBits(c, t.bits, e.bits)
	}
	if t.elems != nil {
		out.elems = make([]value, len(t.elems))
		for i := range t.elems {
			out.elems[i] = b.mux(c, t.elems[i], e.elems[i])
		}
	}
	if t.fields != nil {
		out.fields = make([]value, len(t.fields))
		for i := range t.fields {
			out.fields[i] = b.mux(c, t.fields[i], e.fields[i])
		}
	}
	return out
}

func (b *blaster) equal(x, y value) z.Lit {
	var conj []z.Lit
	for i := range x.bits {
		conj = append(conj, b.c.Xor(x.bits[i], y.bits[i]).Not())
	}
	for i := range x.elems {
		conj = append(conj, b.equal(x.elems[i], y.elems[i]))
	}
	for i := range x.fields {
		conj = append(conj, b.equal(x.fields[i], y.fields[i]))
	}
	if len(conj) == 0 {
		return b.t()
	}
	return b.c.Ands(conj...)
}

func (b *blaster) isIndex(idx []z.Lit, k int) z.Lit {
	return b.equal(value{bits: idx}, value{bits: b.word(int64(k))})
}

// index reads an array element. An index out of range reads an
// unconstrained value.
func (b *blaster) index(n expr.IndexExpr) (value, error) {
	arr, err := b.blast(n.X)
	if err != nil {
		return value{}, err
	}
	if c, ok := n.Index.(expr.ConstExpr); ok {
		if iv, ok := c.Val.(expr.IntValue); ok && iv.Val >= 0 && iv.Val < int64(len(arr.elems)) {
			return arr.elems[iv.Val], nil
		}
	}
	idx, err := b.blast(n.Index)
	if err != nil {
		return value{}, err
	}
	out, err := b.fresh(n.Typ)
	if err != nil {
		return value{}, err
	}
	for k := len(arr.elems) - 1; k >= 0; k-- {
		out = b.mux(b.isIndex(idx.bits, k), arr.elems[k], out)
	}
	return out, nil
}

func (b *blaster) with(n expr.WithExpr) (value, error) {
	arr, err := b.blast(n.Array)
	if err != nil {
		return value{}, err
	}
	idx, err := b.blast(n.Index)
	if err != nil {
		return value{}, err
	}
	v, err := b.blast(n.Value)
	if err != nil {
		return value{}, err
	}
	elems := make([]value, len(arr.elems))
	for k := range arr.elems {
		elems[k] = b.mux(b.isIndex(idx.bits, k), v, arr.elems[k])
	}
	return value{elems: elems}, nil
}

// address encodes &path as the object's number in the upper half of the
// word plus the flattened element offset.
func (b *blaster) address(path expr.Expr) (value, error) {
	offset := b.word(0)
	stride := int64(1)
	cur := path
	for {
		n, ok := cur.(expr.IndexExpr)
		if !ok {
			break
		}
		idx, err := b.blast(n.Index)
		if err != nil {
			return value{}, err
		}
		offset = b.add(offset, b.mul(idx.bits, b.word(stride)), b.f())
		if at, ok := n.X.Type().(expr.ArrayType); ok {
			stride *= int64(at.Len)
		}
		cur = n.X
	}
	base := cur.String()
	id, ok := b.objects[base]
	if !ok {
		id = int64(len(b.objects) + 1)
		b.objects[base] = id
	}
	return value{bits: b.add(b.word(id<<uint(b.width/2)), offset, b.f())}, nil
}
