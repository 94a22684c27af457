package interp

import (
	"context"
	"errors"
	"testing"

	"github.com/chazu/ssaeval/host"
	"github.com/chazu/ssaeval/ir"
	"github.com/chazu/ssaeval/rt"
)

type fixture struct {
	r  *host.Runtime
	in *Interpreter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	r := host.New()
	in := New(HostOf(r), nil)
	r.Attach(in)
	return &fixture{r: r, in: in}
}

// define registers code as the method name(params...) in Main.
func (fx *fixture) define(t *testing.T, name rt.Symbol, params []*rt.Type, code *ir.CodeUnit) *host.Function {
	t.Helper()
	f, err := fx.r.Define(fx.r.Main, name, params, code)
	if err != nil {
		t.Fatalf("define %s: %v", name, err)
	}
	return f
}

func (fx *fixture) call(ctx context.Context, f rt.Value, args ...rt.Value) (rt.Value, error) {
	return fx.r.Apply(ctx, append([]rt.Value{f}, args...))
}

func (fx *fixture) toplevel(ctx context.Context, code *ir.CodeUnit) (rt.Value, error) {
	return fx.in.EvalToplevel(ctx, fx.r.Main, code)
}

func sym(name rt.Symbol) ir.SymbolRef { return ir.SymbolRef{Name: name} }

func call(f rt.Symbol, args ...ir.Node) *ir.Call {
	return &ir.Call{Args: append([]ir.Node{sym(f)}, args...)}
}

// probe returns a builtin that runs fn with the calling task.
func probe(fn func(t *Task) rt.Value) *host.Builtin {
	return &host.Builtin{Name: "probe", Fn: func(ctx context.Context, _ []rt.Value) (rt.Value, error) {
		t, ok := TaskFrom(ctx)
		if !ok {
			return nil, errors.New("probe called without a task")
		}
		return fn(t), nil
	}}
}

func handlerDepth() *host.Builtin {
	return probe(func(t *Task) rt.Value { return int64(t.HandlerDepth()) })
}

// signCode is: if 0 < x return 1 else return -1.
func signCode() *ir.CodeUnit {
	b := ir.NewBuilder("sign", "x")
	cond := b.Emit(call("slt_int", ir.C(int64(0)), ir.Slot{N: 2}))
	br := b.Emit(&ir.GotoIfNot{Cond: cond})
	b.Emit(&ir.Return{Val: ir.C(int64(1))})
	neg := b.Next()
	b.Emit(&ir.Return{Val: ir.C(int64(-1))})
	b.Patch(br, &ir.GotoIfNot{Cond: cond, Label: neg})
	return b.Build()
}

func TestSignScenario(t *testing.T) {
	fx := newFixture(t)
	f := fx.define(t, "sign", []*rt.Type{rt.Int64T}, signCode())
	tests := []struct {
		x, want int64
	}{
		{5, 1},
		{-3, -1},
		{0, -1},
	}
	for _, tt := range tests {
		got, err := fx.call(context.Background(), f, tt.x)
		if err != nil {
			t.Fatalf("sign(%d): %v", tt.x, err)
		}
		if got != tt.want {
			t.Errorf("sign(%d) = %v, want %v", tt.x, got, tt.want)
		}
	}
}

// mergeCode is: v = 0 < x ? x+10 : x-10, merged by a φ-node.
func mergeCode() *ir.CodeUnit {
	b := ir.NewBuilder("merge", "x")
	x := ir.Slot{N: 2}
	cond := b.Emit(call("slt_int", ir.C(int64(0)), x))
	br := b.Emit(&ir.GotoIfNot{Cond: cond})
	pos := b.Emit(call("add_int", x, ir.C(int64(10))))
	jump := b.Emit(ir.Goto{})
	elseLabel := b.Next()
	neg := b.Emit(call("sub_int", x, ir.C(int64(10))))
	join := b.Next()
	phi := b.Emit(&ir.Phi{Edges: []int{jump.ID, neg.ID}, Values: []ir.Node{pos, neg}})
	b.Emit(&ir.Return{Val: phi})
	b.Patch(br, &ir.GotoIfNot{Cond: cond, Label: elseLabel})
	b.Patch(jump, ir.Goto{Label: join})
	return b.Build()
}

func TestPhiMergesTakenBranch(t *testing.T) {
	fx := newFixture(t)
	f := fx.define(t, "merge", []*rt.Type{rt.Int64T}, mergeCode())
	for _, tt := range []struct{ x, want int64 }{{5, 15}, {-3, -13}} {
		got, err := fx.call(context.Background(), f, tt.x)
		if err != nil {
			t.Fatalf("merge(%d): %v", tt.x, err)
		}
		if got != tt.want {
			t.Errorf("merge(%d) = %v, want %v", tt.x, got, tt.want)
		}
	}
}

func TestPhiResolutionIdempotent(t *testing.T) {
	fx := newFixture(t)
	code := mergeCode()
	fr := newFrame(code, fx.r.Main, nil)
	if err := fr.setSSA(2, int64(15)); err != nil {
		t.Fatal(err)
	}
	if err := fr.setSSA(4, int64(-13)); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	for _, from := range []int{3, 4} {
		var first rt.Value
		for run := 0; run < 2; run++ {
			next, err := fx.in.resolvePhis(ctx, fr, from, 5)
			if err != nil {
				t.Fatalf("resolvePhis(%d): %v", from, err)
			}
			if next != 6 {
				t.Errorf("next = %d, want 6", next)
			}
			v, err := fr.ssa(5)
			if err != nil {
				t.Fatal(err)
			}
			if run == 0 {
				first = v
			} else if v != first {
				t.Errorf("from %d: second resolution = %v, first = %v", from, v, first)
			}
		}
	}
}

func TestPhiMissingEdgeHasNoValue(t *testing.T) {
	fx := newFixture(t)
	b := ir.NewBuilder("partial")
	b.Emit(ir.Goto{Label: 3})
	b.Emit(ir.Goto{Label: 3})
	phi := b.Emit(&ir.Phi{Edges: []int{2}, Values: []ir.Node{ir.C(int64(1))}})
	b.Emit(&ir.Return{Val: phi})
	code := b.Build()

	_, err := fx.in.EvalToplevel(context.Background(), fx.r.Main, code)
	if !errors.Is(err, rt.ErrInvalidReference) || !rt.IsFault(err) {
		t.Errorf("reading a φ with no live edge = %v, want invalid-reference fault", err)
	}
}

func TestPhiFallThroughBlock(t *testing.T) {
	// Statement 3 is a φ-only block that falls through into the block at
	// statement 4, whose φ reads it.
	fx := newFixture(t)
	b := ir.NewBuilder("telescope")
	b.Emit(ir.Goto{Label: 3})
	b.Emit(&ir.Return{Val: ir.C(int64(0))})
	outer := b.Emit(&ir.Phi{Edges: []int{1}, Values: []ir.Node{ir.C(int64(10))}})
	inner := b.Emit(&ir.Phi{Edges: []int{outer.ID}, Values: []ir.Node{outer}})
	b.Emit(&ir.Return{Val: inner})

	got, err := fx.toplevel(context.Background(), b.Build())
	if err != nil {
		t.Fatal(err)
	}
	if got != int64(10) {
		t.Errorf("telescoped φ = %v, want 10", got)
	}
}

func TestNewVarInvalidatesSlot(t *testing.T) {
	fx := newFixture(t)
	b := ir.NewBuilder("scoped")
	tmp := b.AddSlot("tmp")
	b.Emit(&ir.Assign{LHS: tmp, RHS: ir.C(int64(1))})
	b.Emit(ir.NewVar{Slot: tmp})
	b.Emit(&ir.Return{Val: tmp})

	_, err := fx.toplevel(context.Background(), b.Build())
	var rerr *rt.Error
	if !errors.As(err, &rerr) || !errors.Is(err, rt.ErrUndefinedVariable) {
		t.Fatalf("err = %v, want UndefinedVariable", err)
	}
	if rerr.Name != "tmp" {
		t.Errorf("undefined name = %s, want tmp", rerr.Name)
	}
}

func TestNonBoolCondition(t *testing.T) {
	fx := newFixture(t)
	b := ir.NewBuilder("badcond")
	b.Emit(&ir.GotoIfNot{Cond: ir.C(int64(1)), Label: 3})
	b.Emit(&ir.Return{Val: ir.C(int64(1))})
	b.Emit(&ir.Return{Val: ir.C(int64(2))})

	_, err := fx.toplevel(context.Background(), b.Build())
	if !errors.Is(err, rt.ErrTypeMismatch) {
		t.Errorf("err = %v, want TypeMismatch", err)
	}
}

func TestFallOffEnd(t *testing.T) {
	fx := newFixture(t)
	b := ir.NewBuilder("noreturn")
	b.Emit(call("add_int", ir.C(int64(1)), ir.C(int64(2))))

	_, err := fx.toplevel(context.Background(), b.Build())
	if !rt.IsFault(err) {
		t.Errorf("err = %v, want fault", err)
	}
}

func TestBranchOutsideStatements(t *testing.T) {
	fx := newFixture(t)
	tests := []struct {
		name string
		stmt ir.Node
	}{
		{"goto 0", ir.Goto{Label: 0}},
		{"goto negative", ir.Goto{Label: -4}},
		{"goto past end", ir.Goto{Label: 9}},
		{"if-not 0", &ir.GotoIfNot{Cond: ir.C(false), Label: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := ir.NewBuilder("jump")
			b.Emit(tt.stmt)
			b.Emit(&ir.Return{Val: ir.C(int64(1))})
			_, err := fx.toplevel(context.Background(), b.Build())
			if !rt.IsFault(err) {
				t.Errorf("err = %v, want fault", err)
			}
		})
	}
}

func TestSlotOutOfRange(t *testing.T) {
	fx := newFixture(t)
	b := ir.NewBuilder("oob")
	b.Emit(&ir.Return{Val: ir.Slot{N: 9}})

	_, err := fx.toplevel(context.Background(), b.Build())
	if !rt.IsFault(err) || !errors.Is(err, rt.ErrInvalidReference) {
		t.Errorf("err = %v, want invalid-reference fault", err)
	}
}

func TestEvalNodes(t *testing.T) {
	fx := newFixture(t)
	point := rt.NewStructType("Point", false, []rt.Symbol{"x", "y"}, []*rt.Type{rt.Int64T, rt.Int64T})
	tv := &rt.TypeVar{Name: "T", Upper: rt.AnyType}

	tests := []struct {
		name    string
		expr    ir.Node
		sparams []rt.Value
		want    rt.Value
		kind    error
		fault   bool
	}{
		{name: "const", expr: ir.C(int64(3)), want: int64(3)},
		{name: "global", expr: sym("Int64"), want: rt.Int64T},
		{name: "undefined global", expr: sym("nope"), kind: rt.ErrUndefinedVariable},
		{name: "boundscheck", expr: ir.BoundsCheck{}, want: true},
		{name: "meta", expr: &ir.Meta{Kind: ir.MetaInbounds}, want: rt.Nothing},
		{name: "no exception", expr: ir.TheException{}, want: rt.Nothing},
		{name: "isdefined bound", expr: &ir.IsDefined{Target: sym("add_int")}, want: true},
		{name: "isdefined unbound", expr: &ir.IsDefined{Target: sym("nope")}, want: false},
		{name: "isdefined sparam", expr: &ir.IsDefined{Target: ir.StaticParam{N: 1}}, sparams: []rt.Value{rt.Int64T}, want: true},
		{name: "isdefined typevar", expr: &ir.IsDefined{Target: ir.StaticParam{N: 1}}, sparams: []rt.Value{tv}, want: false},
		{name: "isdefined sparam missing", expr: &ir.IsDefined{Target: ir.StaticParam{N: 2}}, sparams: []rt.Value{tv}, fault: true},
		{name: "isdefined const", expr: &ir.IsDefined{Target: ir.C(int64(1))}, fault: true},
		{name: "sparam preeval", expr: ir.StaticParam{N: 1}, sparams: []rt.Value{tv}, want: tv},
		{name: "sparam none", expr: ir.StaticParam{N: 1}, fault: true},
		{name: "undef check passes", expr: &ir.ThrowUndefIfNot{Var: "x", Cond: ir.C(true)}, want: rt.Nothing},
		{name: "undef check var", expr: &ir.ThrowUndefIfNot{Var: "x", Cond: ir.C(false)}, kind: rt.ErrUndefinedVariable},
		{name: "undef check field", expr: &ir.ThrowUndefIfNot{Var: ir.UndefRefMarker, Cond: ir.C(false)}, kind: rt.ErrUndefinedField},
		{name: "invoke_modify", expr: &ir.InvokeModify{Args: []ir.Node{ir.C(rt.Symbol("modify")), sym("add_int"), ir.C(int64(2)), ir.C(int64(3))}}, want: int64(5)},
		{name: "new wrong field", expr: &ir.New{Args: []ir.Node{ir.C(point), ir.C("a")}}, kind: rt.ErrTypeMismatch},
		{name: "new non-type", expr: &ir.New{Args: []ir.Node{ir.C(int64(1))}}, kind: rt.ErrTypeMismatch},
		{name: "phi as expression", expr: &ir.Phi{}, fault: true},
		{name: "method definition as expression", expr: &ir.Method{Name: sym("f"), Sig: ir.C(rt.Nothing)}, fault: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := fx.in.EvalExprIn(context.Background(), fx.r.Main, tt.expr, nil, tt.sparams)
			switch {
			case tt.fault:
				if !rt.IsFault(err) {
					t.Errorf("err = %v, want fault", err)
				}
			case tt.kind != nil:
				if !errors.Is(err, tt.kind) {
					t.Errorf("err = %v, want %v", err, tt.kind)
				}
			case err != nil:
				t.Errorf("unexpected error: %v", err)
			case got != tt.want:
				t.Errorf("value = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewStruct(t *testing.T) {
	fx := newFixture(t)
	point := rt.NewStructType("Point", false, []rt.Symbol{"x", "y"}, []*rt.Type{rt.Int64T, rt.Int64T})
	ctx := context.Background()

	v, err := fx.in.EvalExprIn(ctx, fx.r.Main, &ir.New{Args: []ir.Node{ir.C(point), ir.C(int64(1)), ir.C(int64(2))}}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	p := v.(*rt.Struct)
	if y, _ := p.Field("y"); y != int64(2) {
		t.Errorf("p.y = %v, want 2", y)
	}

	v, err = fx.in.EvalExprIn(ctx, fx.r.Main, &ir.SplatNew{Type: ir.C(point), Fields: ir.C(rt.Tuple{int64(3)})}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	p = v.(*rt.Struct)
	if x, _ := p.Field("x"); x != int64(3) {
		t.Errorf("p.x = %v, want 3", x)
	}
	if _, ok := p.Field("y"); ok {
		t.Error("unsupplied field should be undefined")
	}
}

func TestTypeAssertGatedByConfig(t *testing.T) {
	fx := newFixture(t)
	pi := &ir.Pi{Val: ir.C("s"), Type: rt.Int64T}
	ctx := context.Background()

	if _, err := fx.in.EvalExprIn(ctx, fx.r.Main, pi, nil, nil); err != nil {
		t.Errorf("unchecked pi: %v", err)
	}
	fx.in.Config().Interpreter.DebugTypeAsserts = true
	if _, err := fx.in.EvalExprIn(ctx, fx.r.Main, pi, nil, nil); !errors.Is(err, rt.ErrTypeMismatch) {
		t.Errorf("checked pi = %v, want TypeMismatch", err)
	}
}
