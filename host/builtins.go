package host

import (
	"context"
	"fmt"

	"golang.org/x/exp/constraints"

	"github.com/chazu/ssaeval/rt"
)

// BuiltinT is the type of builtin functions.
var BuiltinT = &rt.Type{Name: "Builtin", Kind: rt.KindStruct, Super: rt.AnyType}

// Builtin is a function implemented in Go.
type Builtin struct {
	Name rt.Symbol
	Fn   func(ctx context.Context, args []rt.Value) (rt.Value, error)
}

func (b *Builtin) CallValue(ctx context.Context, args []rt.Value) (rt.Value, error) {
	return b.Fn(ctx, args)
}

func (b *Builtin) TypeOf() *rt.Type { return BuiltinT }

func (b *Builtin) String() string { return string(b.Name) }

func (r *Runtime) installBuiltins() {
	builtins := []*Builtin{
		{"add_int", arith(func(a, b int64) int64 { return a + b }, func(a, b uint64) uint64 { return a + b })},
		{"sub_int", arith(func(a, b int64) int64 { return a - b }, func(a, b uint64) uint64 { return a - b })},
		{"mul_int", arith(func(a, b int64) int64 { return a * b }, func(a, b uint64) uint64 { return a * b })},
		{"slt_int", compare(func(a, b int64) bool { return a < b })},
		{"sle_int", compare(func(a, b int64) bool { return a <= b })},
		{"not_int", notInt},
		{"===", egal},
		{"throw", throw},
		{"tuple", tuple},
		{"getfield", getfield},
		{"typeof", typeOf},
		{"isa", isa},
	}
	for _, b := range builtins {
		if err := r.SetConst(r.Core, b.Name, b); err != nil {
			panic(err)
		}
	}
	for _, t := range []*rt.Type{
		rt.AnyType, rt.NothingT, rt.BoolT, rt.Int8T, rt.Int16T, rt.Int32T, rt.Int64T, rt.Int128T,
		rt.UInt8T, rt.UInt16T, rt.UInt32T, rt.UInt64T, rt.UInt128T, rt.Float32T, rt.Float64T,
		rt.SymbolT, rt.StringT, rt.ModuleT,
	} {
		if err := r.SetConst(r.Core, rt.Symbol(t.Name), t); err != nil {
			panic(err)
		}
	}
}

func nargs(name string, args []rt.Value, n int) error {
	if len(args) != n {
		return rt.Errorf(rt.ErrTypeMismatch, "%s: expected %d arguments, got %d", name, n, len(args))
	}
	return nil
}

// intBinop applies op to two integers of the same Go type.
func intBinop[T constraints.Integer](a rt.Value, b rt.Value, op func(x, y T) T) (rt.Value, bool) {
	x, ok1 := a.(T)
	y, ok2 := b.(T)
	if !ok1 || !ok2 {
		return nil, false
	}
	return op(x, y), true
}

// arith builds a same-width integer operation. Narrow integers are computed
// in 64 bits and truncated back to their width.
func arith(signed func(a, b int64) int64, unsigned func(a, b uint64) uint64) func(context.Context, []rt.Value) (rt.Value, error) {
	return func(_ context.Context, args []rt.Value) (rt.Value, error) {
		if err := nargs("integer arithmetic", args, 2); err != nil {
			return nil, err
		}
		a, b := args[0], args[1]
		if v, ok := intBinop(a, b, signed); ok {
			return v, nil
		}
		if v, ok := intBinop(a, b, func(x, y int32) int32 { return int32(signed(int64(x), int64(y))) }); ok {
			return v, nil
		}
		if v, ok := intBinop(a, b, func(x, y int16) int16 { return int16(signed(int64(x), int64(y))) }); ok {
			return v, nil
		}
		if v, ok := intBinop(a, b, func(x, y int8) int8 { return int8(signed(int64(x), int64(y))) }); ok {
			return v, nil
		}
		if v, ok := intBinop(a, b, unsigned); ok {
			return v, nil
		}
		if v, ok := intBinop(a, b, func(x, y uint32) uint32 { return uint32(unsigned(uint64(x), uint64(y))) }); ok {
			return v, nil
		}
		if v, ok := intBinop(a, b, func(x, y uint16) uint16 { return uint16(unsigned(uint64(x), uint64(y))) }); ok {
			return v, nil
		}
		if v, ok := intBinop(a, b, func(x, y uint8) uint8 { return uint8(unsigned(uint64(x), uint64(y))) }); ok {
			return v, nil
		}
		return nil, rt.Errorf(rt.ErrTypeMismatch, "integer arithmetic on %s and %s", rt.TypeOf(a), rt.TypeOf(b))
	}
}

func compare(op func(a, b int64) bool) func(context.Context, []rt.Value) (rt.Value, error) {
	return func(_ context.Context, args []rt.Value) (rt.Value, error) {
		if err := nargs("integer comparison", args, 2); err != nil {
			return nil, err
		}
		ta, tb := rt.TypeOf(args[0]), rt.TypeOf(args[1])
		if ta != tb || ta.Kind != rt.KindInt || ta.Size > 8 {
			return nil, rt.Errorf(rt.ErrTypeMismatch, "integer comparison of %s and %s", ta, tb)
		}
		x, _, _ := rt.ToBits(args[0])
		y, _, _ := rt.ToBits(args[1])
		return op(int64(x), int64(y)), nil
	}
}

func notInt(_ context.Context, args []rt.Value) (rt.Value, error) {
	if err := nargs("not_int", args, 1); err != nil {
		return nil, err
	}
	if b, ok := args[0].(bool); ok {
		return !b, nil
	}
	lo, hi, ok := rt.ToBits(args[0])
	if !ok {
		return nil, rt.Errorf(rt.ErrTypeMismatch, "not_int of %s", rt.TypeOf(args[0]))
	}
	return rt.FromBits(rt.TypeOf(args[0]), ^lo, ^hi)
}

func egal(_ context.Context, args []rt.Value) (rt.Value, error) {
	if err := nargs("===", args, 2); err != nil {
		return nil, err
	}
	return Egal(args[0], args[1]), nil
}

// Egal reports identity of two values: bitwise equality for immutable
// values, pointer identity for everything else.
func Egal(a, b rt.Value) bool {
	if ta, ok := a.(rt.Tuple); ok {
		tb, ok := b.(rt.Tuple)
		if !ok || len(ta) != len(tb) {
			return false
		}
		for i := range ta {
			if !Egal(ta[i], tb[i]) {
				return false
			}
		}
		return true
	}
	if _, ok := b.(rt.Tuple); ok {
		return false
	}
	defer func() { _ = recover() }()
	return a == b
}

func throw(_ context.Context, args []rt.Value) (rt.Value, error) {
	if err := nargs("throw", args, 1); err != nil {
		return nil, err
	}
	return nil, &rt.Raise{Value: args[0]}
}

func tuple(_ context.Context, args []rt.Value) (rt.Value, error) {
	return rt.Tuple(append([]rt.Value(nil), args...)), nil
}

func getfield(_ context.Context, args []rt.Value) (rt.Value, error) {
	if err := nargs("getfield", args, 2); err != nil {
		return nil, err
	}
	switch x := args[0].(type) {
	case rt.Tuple:
		i, ok := args[1].(int64)
		if !ok || i < 1 || int(i) > len(x) {
			return nil, rt.Errorf(rt.ErrInvalidReference, "tuple index %v out of range", args[1])
		}
		return x[i-1], nil
	case *rt.Struct:
		switch k := args[1].(type) {
		case rt.Symbol:
			v, ok := x.Field(k)
			if !ok {
				return nil, &rt.Error{Kind: rt.ErrUndefinedField, Name: k}
			}
			return v, nil
		case int64:
			if k < 1 || int(k) > len(x.Fields) {
				return nil, rt.Errorf(rt.ErrInvalidReference, "field index %d out of range", k)
			}
			if x.Fields[k-1] == nil {
				return nil, &rt.Error{Kind: rt.ErrUndefinedField, Name: x.Type.Fields[k-1]}
			}
			return x.Fields[k-1], nil
		}
	}
	return nil, rt.Errorf(rt.ErrTypeMismatch, "getfield(%s, %s)", rt.TypeOf(args[0]), rt.TypeOf(args[1]))
}

func typeOf(_ context.Context, args []rt.Value) (rt.Value, error) {
	if err := nargs("typeof", args, 1); err != nil {
		return nil, err
	}
	return rt.TypeOf(args[0]), nil
}

func isa(_ context.Context, args []rt.Value) (rt.Value, error) {
	if err := nargs("isa", args, 2); err != nil {
		return nil, err
	}
	t, ok := args[1].(*rt.Type)
	if !ok {
		return nil, rt.Errorf(rt.ErrTypeMismatch, "isa: %v is not a type", args[1])
	}
	return rt.Isa(args[0], t), nil
}

// Builtin returns the Core builtin named name.
func (r *Runtime) Builtin(name rt.Symbol) (*Builtin, error) {
	v, ok := r.Get(r.Core, name)
	if !ok {
		return nil, fmt.Errorf("no builtin %s", name)
	}
	b, ok := v.(*Builtin)
	if !ok {
		return nil, fmt.Errorf("%s is not a builtin", name)
	}
	return b, nil
}
