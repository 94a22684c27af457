package interp

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/chazu/ssaeval/host"
	"github.com/chazu/ssaeval/ir"
	"github.com/chazu/ssaeval/rt"
)

func TestVarArgPacking(t *testing.T) {
	fx := newFixture(t)
	b := ir.NewBuilder("pack", "first", "rest")
	b.Emit(&ir.Return{Val: call("tuple", ir.Slot{N: 2}, ir.Slot{N: 3})})
	sig := &host.Signature{Name: "pack", Params: []*rt.Type{rt.AnyType, rt.AnyType}, VarArg: true}
	if err := fx.r.DefineMethod(context.Background(), sig, nil, b.Build(), fx.r.Main); err != nil {
		t.Fatal(err)
	}
	f, _ := fx.r.Get(fx.r.Main, "pack")

	tests := []struct {
		args []rt.Value
		want rt.Value
	}{
		{[]rt.Value{int64(1)}, rt.Tuple{int64(1), rt.Tuple{}}},
		{[]rt.Value{int64(1), int64(2)}, rt.Tuple{int64(1), rt.Tuple{int64(2)}}},
		{[]rt.Value{"a", "b", "c"}, rt.Tuple{"a", rt.Tuple{"b", "c"}}},
	}
	for _, tt := range tests {
		got, err := fx.call(context.Background(), f, tt.args...)
		if err != nil {
			t.Fatalf("pack%v: %v", tt.args, err)
		}
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("pack%v mismatch (-want +got):\n%s", tt.args, diff)
		}
	}
}

func TestArityFault(t *testing.T) {
	fx := newFixture(t)
	f := fx.define(t, "sign", []*rt.Type{rt.Int64T}, signCode())
	mis, err := fx.r.MethodInstances(context.Background(), f, []*rt.Type{rt.Int64T})
	if err != nil || len(mis) != 1 {
		t.Fatalf("instances = %v, %v", mis, err)
	}
	_, err = fx.in.CallMethod(context.Background(), mis[0], f)
	if !rt.IsFault(err) {
		t.Errorf("call with missing argument = %v, want fault", err)
	}
}

func TestVarArgWithoutRestSlot(t *testing.T) {
	fx := newFixture(t)
	body := ir.NewBuilder("self")
	body.Emit(&ir.Return{Val: ir.C(int64(0))})
	src := &rt.Method{Name: "self", Module: fx.r.Main, NArgs: 1, Source: body.Build()}

	b := ir.NewBuilder("make")
	b.Emit(&ir.Return{Val: &ir.NewOpaqueClosure{
		ArgTypes: ir.C(rt.TupleOf()),
		IsVarArg: ir.C(true),
		RetLower: ir.C(rt.NothingT),
		RetUpper: ir.C(rt.AnyType),
		Source:   ir.C(src),
	}})
	got, err := fx.toplevel(context.Background(), b.Build())
	if err != nil {
		t.Fatal(err)
	}
	c := got.(*OpaqueClosure)
	for _, args := range [][]rt.Value{nil, {int64(1)}} {
		if _, err := c.CallValue(context.Background(), args); !rt.IsFault(err) {
			t.Errorf("vararg call with %d args = %v, want fault", len(args), err)
		}
	}
}

func opaqueClosureMethod(m *rt.Module) *rt.Method {
	b := ir.NewBuilder("adder", "y")
	captured := b.Emit(call("getfield", ir.Slot{N: 1}, ir.C(int64(1))))
	b.Emit(&ir.Return{Val: call("add_int", captured, ir.Slot{N: 2})})
	return &rt.Method{Name: "adder", Module: m, NArgs: 2, Source: b.Build()}
}

func TestOpaqueClosure(t *testing.T) {
	fx := newFixture(t)
	b := ir.NewBuilder("make")
	oc := b.Emit(&ir.NewOpaqueClosure{
		ArgTypes: ir.C(rt.TupleOf(rt.Int64T)),
		IsVarArg: ir.C(false),
		RetLower: ir.C(rt.NothingT),
		RetUpper: ir.C(rt.AnyType),
		Source:   ir.C(opaqueClosureMethod(fx.r.Main)),
		Captures: []ir.Node{ir.C(int64(40))},
	})
	res := b.Emit(&ir.Call{Args: []ir.Node{oc, ir.C(int64(2))}})
	b.Emit(&ir.Return{Val: call("tuple", oc, res)})

	got, err := fx.toplevel(context.Background(), b.Build())
	if err != nil {
		t.Fatal(err)
	}
	tup := got.(rt.Tuple)
	if tup[1] != int64(42) {
		t.Errorf("closure result = %v, want 42", tup[1])
	}
	c := tup[0].(*OpaqueClosure)
	if diff := cmp.Diff(rt.Tuple{int64(40)}, c.Captures); diff != "" {
		t.Errorf("captures mismatch (-want +got):\n%s", diff)
	}
	if rt.TypeOf(c) != OpaqueClosureT {
		t.Errorf("closure type = %s", rt.TypeOf(c))
	}

	again, err := c.CallValue(context.Background(), []rt.Value{int64(-40)})
	if err != nil || again != int64(0) {
		t.Errorf("direct call = %v, %v; want 0", again, err)
	}
}

func TestOpaqueClosureBadOperands(t *testing.T) {
	fx := newFixture(t)
	e := &ir.NewOpaqueClosure{
		ArgTypes: ir.C(rt.Int64T),
		IsVarArg: ir.C(false),
		RetLower: ir.C(rt.NothingT),
		RetUpper: ir.C(rt.AnyType),
		Source:   ir.C(opaqueClosureMethod(fx.r.Main)),
	}
	if _, err := fx.in.EvalExprIn(context.Background(), fx.r.Main, e, nil, nil); !errors.Is(err, rt.ErrTypeMismatch) {
		t.Errorf("non-tuple argument types = %v, want TypeMismatch", err)
	}
}

func TestGlobalAssignment(t *testing.T) {
	fx := newFixture(t)
	if err := fx.r.SetConst(fx.r.Main, "k", int64(1)); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		lhs  ir.Node
		want rt.Value
		kind error
	}{
		{"symbol", sym("g"), int64(7), nil},
		{"global ref", ir.GlobalRef{Module: fx.r.Main, Name: "h"}, int64(7), nil},
		{"const", sym("k"), nil, rt.ErrConstReassignment},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := ir.NewBuilder("assign")
			b.Emit(&ir.Assign{LHS: tt.lhs, RHS: ir.C(int64(7))})
			b.Emit(&ir.Return{Val: tt.lhs})
			got, err := fx.toplevel(context.Background(), b.Build())
			if tt.kind != nil {
				if !errors.Is(err, tt.kind) {
					t.Errorf("err = %v, want %v", err, tt.kind)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("value = %v, %v; want %v", got, err, tt.want)
			}
		})
	}
	if v, _ := fx.r.Get(fx.r.Main, "k"); v != int64(1) {
		t.Errorf("k = %v, want 1", v)
	}
}

func TestMethodDeclareAndDefine(t *testing.T) {
	fx := newFixture(t)
	body := ir.NewBuilder("sq", "x")
	body.Emit(&ir.Return{Val: call("mul_int", ir.Slot{N: 2}, ir.Slot{N: 2})})
	sig := &host.Signature{Name: "sq", Params: []*rt.Type{rt.Int64T}}

	b := ir.NewBuilder("script")
	fn := b.Emit(&ir.Method{Name: sym("sq")})
	b.Emit(&ir.Method{Name: fn, Sig: ir.C(sig), Body: ir.C(body.Build())})
	res := b.Emit(&ir.Call{Args: []ir.Node{fn, ir.C(int64(4))}})
	b.Emit(&ir.Return{Val: res})

	before := fx.r.World()
	got, err := fx.toplevel(context.Background(), b.Build())
	if err != nil {
		t.Fatal(err)
	}
	if got != int64(16) {
		t.Errorf("sq(4) = %v, want 16", got)
	}
	if fx.r.World() <= before {
		t.Errorf("world %d did not advance past %d", fx.r.World(), before)
	}
	f, ok := fx.r.Get(fx.r.Main, "sq")
	if !ok || len(f.(*host.Function).Methods()) != 1 {
		t.Errorf("sq binding = %v, %v", f, ok)
	}
}

func TestMethodDeclarationErrors(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.in.EvalExprIn(context.Background(), fx.r.Main, &ir.Method{Name: ir.C(int64(3))}, nil, nil)
	if !errors.Is(err, rt.ErrInvalidDeclaration) {
		t.Errorf("declare non-name = %v, want InvalidDeclaration", err)
	}

	if err := fx.r.SetConst(fx.r.Main, "taken", int64(1)); err != nil {
		t.Fatal(err)
	}
	_, err = fx.in.EvalExprIn(context.Background(), fx.r.Main, &ir.Method{Name: sym("taken")}, nil, nil)
	if !errors.Is(err, rt.ErrInvalidDeclaration) {
		t.Errorf("declare over non-function = %v, want InvalidDeclaration", err)
	}
}

func TestToplevelOnlyForms(t *testing.T) {
	fx := newFixture(t)
	sig := &host.Signature{Name: "f", Params: nil}
	forms := []ir.Node{
		&ir.Method{Name: sym("f"), Sig: ir.C(sig), Body: ir.C(signCode())},
		&ir.Toplevel{Head: "global", Args: []rt.Value{rt.Symbol("v")}},
		&ir.Meta{Kind: ir.MetaGeneric, Args: []rt.Value{rt.Symbol("optlevel"), int64(1)}},
	}
	for _, form := range forms {
		b := ir.NewBuilder("body")
		b.Emit(form)
		b.Emit(&ir.Return{Val: ir.C(rt.Nothing)})
		f := fx.define(t, "body", nil, b.Build())
		if _, err := fx.call(context.Background(), f); !rt.IsFault(err) {
			t.Errorf("%T in a method body = %v, want fault", form, err)
		}
	}
}

func TestToplevelWrapperAndDirectives(t *testing.T) {
	fx := newFixture(t)
	nested := ir.NewBuilder("nested")
	nested.Emit(&ir.Return{Val: ir.C(int64(99))})

	b := ir.NewBuilder("script")
	b.Emit(ir.LineNumber{Line: 12})
	b.Emit(&ir.Meta{Kind: ir.MetaGeneric, Args: []rt.Value{rt.Symbol("optlevel"), int64(2)}})
	b.Emit(&ir.Meta{Kind: ir.MetaGeneric, Args: []rt.Value{rt.Symbol("nospecialize")}})
	b.Emit(&ir.Toplevel{Head: "global", Args: []rt.Value{rt.Symbol("declared")}})
	wrapped := b.Emit(&ir.Toplevel{Head: "toplevel", Args: []rt.Value{nested.Build()}})
	b.Emit(&ir.Return{Val: wrapped})

	got, err := fx.toplevel(context.Background(), b.Build())
	if err != nil {
		t.Fatal(err)
	}
	if got != int64(99) {
		t.Errorf("toplevel wrapper = %v, want 99", got)
	}
	if fx.r.Main.OptLevel() != 2 || !fx.r.Main.NoSpecialize() {
		t.Errorf("module settings: optlevel %d, nospecialize %v", fx.r.Main.OptLevel(), fx.r.Main.NoSpecialize())
	}
}

func TestToplevelRestoresWorld(t *testing.T) {
	fx := newFixture(t)
	task := NewTask()
	ctx := WithTask(context.Background(), task)
	start := task.World()

	body := ir.NewBuilder("g")
	body.Emit(&ir.Return{Val: ir.C(int64(1))})
	sig := &host.Signature{Name: "g"}
	var seen uint64
	b := ir.NewBuilder("script")
	b.Emit(&ir.Method{Name: ir.C(rt.Nothing), Sig: ir.C(sig), Body: ir.C(body.Build())})
	b.Emit(&ir.Call{Args: []ir.Node{ir.C(probe(func(t *Task) rt.Value { seen = t.World(); return rt.Nothing }))}})
	b.Emit(&ir.Return{Val: ir.C(rt.Nothing)})

	if _, err := fx.toplevel(ctx, b.Build()); err != nil {
		t.Fatal(err)
	}
	if seen != fx.r.World() {
		t.Errorf("world during script = %d, want %d", seen, fx.r.World())
	}
	if task.World() != start {
		t.Errorf("world after script = %d, want %d", task.World(), start)
	}
}

func TestStaticParams(t *testing.T) {
	fx := newFixture(t)
	tv := &rt.TypeVar{Name: "T", Upper: rt.IntegerType}
	b := ir.NewBuilder("eltype", "x")
	b.Emit(&ir.Return{Val: ir.StaticParam{N: 1}})
	code := b.Build()
	sig := &host.Signature{Name: "eltype", Params: []*rt.Type{rt.VarType(tv)}, TypeVars: []*rt.TypeVar{tv}}
	if err := fx.r.DefineMethod(context.Background(), sig, nil, code, fx.r.Main); err != nil {
		t.Fatal(err)
	}
	f, _ := fx.r.Get(fx.r.Main, "eltype")

	got, err := fx.call(context.Background(), f, int32(3))
	if err != nil || got != rt.Int32T {
		t.Errorf("eltype(Int32) = %v, %v; want Int32", got, err)
	}

	meth := f.(*host.Function).Methods()[0]
	mi := &rt.MethodInstance{Def: meth, SparamVals: []rt.Value{tv}}
	_, err = fx.in.CallMethod(context.Background(), mi, f, int32(3))
	var rerr *rt.Error
	if !errors.As(err, &rerr) || !errors.Is(err, rt.ErrUndefinedVariable) || rerr.Name != "T" {
		t.Errorf("unbound static parameter = %v, want UndefinedVariable T", err)
	}
}

func TestCFunction(t *testing.T) {
	fx := newFixture(t)
	f := fx.define(t, "sign", []*rt.Type{rt.Int64T}, signCode())
	ptrType := rt.PtrOf(rt.NothingT)

	cf := &ir.CFunction{PtrType: ptrType, Func: sym("sign"), Ret: rt.Int64T, ArgTypes: []*rt.Type{rt.Int64T}}
	v, err := fx.in.EvalExprIn(context.Background(), fx.r.Main, cf, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	p, ok := v.(rt.Pointer)
	if !ok || p.Type != ptrType || p.Addr == 0 {
		t.Fatalf("cfunction = %#v", v)
	}
	mi, ok := fx.r.InstanceAt(p.Addr)
	if !ok || mi.Def.Name != f.Name {
		t.Errorf("entry point resolves to %v", mi)
	}

	again, _ := fx.in.EvalExprIn(context.Background(), fx.r.Main, cf, nil, nil)
	if again.(rt.Pointer).Addr != p.Addr {
		t.Error("entry point should be stable")
	}

	bad := &ir.CFunction{PtrType: ptrType, Func: sym("sign"), Ret: rt.Int64T, ArgTypes: []*rt.Type{rt.StringT}}
	if _, err := fx.in.EvalExprIn(context.Background(), fx.r.Main, bad, nil, nil); !rt.IsFault(err) {
		t.Errorf("cfunction without a unique specialization = %v, want fault", err)
	}
}

func TestInvokeResolvedTarget(t *testing.T) {
	fx := newFixture(t)
	f := fx.define(t, "sign", []*rt.Type{rt.Int64T}, signCode())
	mis, err := fx.r.MethodInstances(context.Background(), f, []*rt.Type{rt.Int64T})
	if err != nil || len(mis) != 1 {
		t.Fatalf("instances = %v, %v", mis, err)
	}
	e := &ir.Invoke{Target: mis[0], Args: []ir.Node{ir.C(f), ir.C(int64(-8))}}
	got, err := fx.in.EvalExprIn(context.Background(), fx.r.Main, e, nil, nil)
	if err != nil || got != int64(-1) {
		t.Errorf("invoke = %v, %v; want -1", got, err)
	}
}
