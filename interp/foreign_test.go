package interp

import (
	"context"
	"errors"
	"testing"

	"github.com/chazu/ssaeval/ffi"
	"github.com/chazu/ssaeval/host"
	"github.com/chazu/ssaeval/ir"
	"github.com/chazu/ssaeval/rt"
)

func withLoopback(fx *fixture) (*ffi.SymbolTable, *ffi.Loopback) {
	syms := ffi.NewSymbolTable()
	lb := ffi.NewLoopback()
	fx.in.Bridge = ffi.NewBridge(fx.in.Config(), syms, lb, ffi.NewArena())
	return syms, lb
}

func TestForeignCall(t *testing.T) {
	fx := newFixture(t)
	syms, lb := withLoopback(fx)
	syms.Define("", "twice", 0x4000)
	lb.Register(0x4000, func(args []ffi.Arg) ffi.Word {
		return ffi.Word{Lo: args[0].Lo * 2}
	})

	b := ir.NewBuilder("native", "x")
	b.Emit(&ir.Return{Val: &ir.ForeignCall{
		Target:   ir.C(rt.Symbol("twice")),
		Ret:      rt.Int64T,
		ArgTypes: []*rt.Type{rt.Int64T},
		CallConv: "ccall",
		Args:     []ir.Node{ir.Slot{N: 2}},
		Roots:    []ir.Node{ir.Slot{N: 2}},
	}})
	f := fx.define(t, "native", []*rt.Type{rt.Int64T}, b.Build())

	got, err := fx.call(context.Background(), f, int64(21))
	if err != nil || got != int64(42) {
		t.Errorf("twice(21) = %v, %v; want 42", got, err)
	}
	if lb.Calls() != 1 {
		t.Errorf("native calls = %d, want 1", lb.Calls())
	}
}

func TestForeignCallErrors(t *testing.T) {
	fx := newFixture(t)
	withLoopback(fx)

	tests := []struct {
		name string
		fc   *ir.ForeignCall
		kind error
	}{
		{
			name: "unresolved symbol",
			fc:   &ir.ForeignCall{Target: ir.C(rt.Symbol("no_such_fn")), Ret: rt.NothingT},
			kind: rt.ErrUnresolvedSymbol,
		},
		{
			name: "unresolved in library",
			fc:   &ir.ForeignCall{Target: ir.C(rt.Tuple{rt.Symbol("no_such_fn"), "libmissing"}), Ret: rt.NothingT},
			kind: rt.ErrUnresolvedSymbol,
		},
		{
			name: "null pointer",
			fc:   &ir.ForeignCall{Target: ir.C(rt.Pointer{Type: rt.PtrOf(rt.NothingT)}), Ret: rt.NothingT},
			kind: rt.ErrNullFunctionPointer,
		},
		{
			name: "variadic",
			fc:   &ir.ForeignCall{Target: ir.C(rt.Symbol("printf")), Ret: rt.Int32T, NVarArg: 1},
			kind: rt.ErrUnsupportedCallingConvention,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fx.in.EvalExprIn(context.Background(), fx.r.Main, tt.fc, nil, nil)
			if !errors.Is(err, tt.kind) {
				t.Errorf("err = %v, want %v", err, tt.kind)
			}
		})
	}
}

func TestForeignCallStaticParams(t *testing.T) {
	fx := newFixture(t)
	syms, lb := withLoopback(fx)
	syms.Define("", "echo", 0x4100)

	tv := &rt.TypeVar{Name: "T", Upper: rt.IntegerType}
	b := ir.NewBuilder("echo", "x")
	b.Emit(&ir.Return{Val: &ir.ForeignCall{
		Target:   ir.C(rt.Symbol("echo")),
		Ret:      rt.VarType(tv),
		ArgTypes: []*rt.Type{rt.VarType(tv)},
		Args:     []ir.Node{ir.Slot{N: 2}},
	}})
	code := b.Build()
	sig := &host.Signature{Name: "echo", Params: []*rt.Type{rt.VarType(tv)}, TypeVars: []*rt.TypeVar{tv}}
	if err := fx.r.DefineMethod(context.Background(), sig, nil, code, fx.r.Main); err != nil {
		t.Fatal(err)
	}
	f, _ := fx.r.Get(fx.r.Main, "echo")

	got, err := fx.call(context.Background(), f, int16(-9))
	if err != nil || got != int16(-9) {
		t.Errorf("echo(Int16) = %#v, %v; want -9", got, err)
	}
	if args := lb.LastArgs(); len(args) != 1 || args[0].Class != ffi.ClassInt16 {
		t.Errorf("marshaled args = %+v, want one int16", args)
	}

	unbound := &ir.ForeignCall{Target: ir.C(rt.Symbol("echo")), Ret: rt.Int64T, ArgTypes: []*rt.Type{rt.VarType(tv)}, Args: []ir.Node{ir.C(int64(1))}}
	if _, err := fx.in.EvalExprIn(context.Background(), fx.r.Main, unbound, nil, nil); !rt.IsFault(err) {
		t.Errorf("foreign call with unbound parameter = %v, want fault", err)
	}
}

func TestSymbolIntrinsicThroughInterpreter(t *testing.T) {
	fx := newFixture(t)
	withLoopback(fx)
	name := &ir.ForeignCall{
		Target:   ir.C(rt.Symbol("symbol_name")),
		Ret:      rt.PtrOf(rt.UInt8T),
		ArgTypes: []*rt.Type{rt.AnyType},
		Args:     []ir.Node{ir.C(rt.Symbol("hello"))},
	}
	b := ir.NewBuilder("roundtrip")
	ptr := b.Emit(name)
	b.Emit(&ir.Return{Val: &ir.ForeignCall{
		Target:   ir.C(rt.Symbol("symbol_n")),
		Ret:      rt.SymbolT,
		ArgTypes: []*rt.Type{rt.PtrOf(rt.UInt8T), rt.Int64T},
		Args:     []ir.Node{ptr, ir.C(int64(5))},
	}})

	got, err := fx.toplevel(context.Background(), b.Build())
	if err != nil || got != rt.Symbol("hello") {
		t.Errorf("symbol round trip = %v, %v; want :hello", got, err)
	}
}
