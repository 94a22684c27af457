package interp

import (
	"context"

	"github.com/chazu/ssaeval/ir"
	"github.com/chazu/ssaeval/rt"
)

// ---------------------------------------------------------------------------
// Expression evaluation
// ---------------------------------------------------------------------------

// eval computes the value of an expression node in fr.
func (in *Interpreter) eval(ctx context.Context, fr *Frame, n ir.Node) (rt.Value, error) {
	switch e := n.(type) {
	case ir.SSA:
		return fr.ssa(e.Index())
	case ir.Slot:
		return fr.slot(e.Index())
	case ir.Const:
		return e.Value, nil
	case ir.GlobalRef:
		return in.global(e.Module, e.Name)
	case ir.SymbolRef:
		return in.global(fr.Module, e.Name)
	case ir.StaticParam:
		return in.staticParam(fr, e.N)
	case *ir.Pi:
		v, err := in.eval(ctx, fr, e.Val)
		if err != nil {
			return nil, err
		}
		if in.cfg.Interpreter.DebugTypeAsserts && e.Type != nil && !rt.Isa(v, e.Type) {
			return nil, rt.Errorf(rt.ErrTypeMismatch, "typeassert: expected %s, got %s", e.Type, rt.TypeOf(v))
		}
		return v, nil

	case *ir.Call:
		args, err := in.evalAll(ctx, fr, e.Args)
		if err != nil {
			return nil, err
		}
		return in.apply(ctx, fr, args)
	case *ir.Invoke:
		args, err := in.evalAll(ctx, fr, e.Args)
		if err != nil {
			return nil, err
		}
		if len(args) == 0 {
			return nil, rt.Faultf("%s: invoke without a callee", fr.name())
		}
		return in.host.Dispatch.Invoke(ctx, e.Target, args[0], args[1:])
	case *ir.InvokeModify:
		if len(e.Args) < 2 {
			return nil, rt.Faultf("%s: invoke_modify without a callee", fr.name())
		}
		args, err := in.evalAll(ctx, fr, e.Args[1:])
		if err != nil {
			return nil, err
		}
		return in.apply(ctx, fr, args)

	case *ir.IsDefined:
		return in.isDefined(fr, e.Target)
	case *ir.ThrowUndefIfNot:
		v, err := in.eval(ctx, fr, e.Cond)
		if err != nil {
			return nil, err
		}
		ok, isBool := v.(bool)
		if !isBool {
			return nil, rt.Errorf(rt.ErrTypeMismatch, "undefcheck: expected Bool, got %s", rt.TypeOf(v))
		}
		if !ok {
			if e.Var == ir.UndefRefMarker {
				return nil, &rt.Error{Kind: rt.ErrUndefinedField}
			}
			return nil, rt.UndefVar(e.Var)
		}
		return rt.Nothing, nil

	case *ir.New:
		args, err := in.evalAll(ctx, fr, e.Args)
		if err != nil {
			return nil, err
		}
		if len(args) == 0 {
			return nil, rt.Faultf("%s: new without a type", fr.name())
		}
		return newStruct(args[0], args[1:])
	case *ir.SplatNew:
		t, err := in.eval(ctx, fr, e.Type)
		if err != nil {
			return nil, err
		}
		fields, err := in.eval(ctx, fr, e.Fields)
		if err != nil {
			return nil, err
		}
		tup, ok := fields.(rt.Tuple)
		if !ok {
			return nil, rt.Errorf(rt.ErrTypeMismatch, "splatnew: expected Tuple, got %s", rt.TypeOf(fields))
		}
		return newStruct(t, tup)
	case *ir.NewOpaqueClosure:
		return in.newOpaqueClosure(ctx, fr, e)
	case *ir.ForeignCall:
		return in.foreignCall(ctx, fr, e)
	case *ir.CFunction:
		return in.cfunction(ctx, fr, e)
	case *ir.Method:
		if e.Sig == nil {
			return in.declareMethod(ctx, fr, e)
		}

	case ir.TheException:
		if t, ok := TaskFrom(ctx); ok {
			return t.CurrentException(), nil
		}
		return rt.Nothing, nil
	case ir.BoundsCheck:
		return true, nil
	case *ir.Meta, ir.LineNumber:
		return rt.Nothing, nil
	}
	return nil, rt.Faultf("%s: unsupported or misplaced expression %T", fr.name(), n)
}

func (in *Interpreter) evalAll(ctx context.Context, fr *Frame, nodes []ir.Node) ([]rt.Value, error) {
	vals := make([]rt.Value, len(nodes))
	for i, n := range nodes {
		v, err := in.eval(ctx, fr, n)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return vals, nil
}

func (in *Interpreter) apply(ctx context.Context, fr *Frame, args []rt.Value) (rt.Value, error) {
	if len(args) == 0 {
		return nil, rt.Faultf("%s: call without a callee", fr.name())
	}
	return in.host.Dispatch.Apply(ctx, args)
}

func (in *Interpreter) global(m *rt.Module, name rt.Symbol) (rt.Value, error) {
	if v, ok := in.host.Bindings.Get(m, name); ok {
		return v, nil
	}
	return nil, rt.UndefVar(name)
}

// staticParam returns the nth (1-based) static parameter. A parameter that
// is still an unbound TypeVar is an undefined variable, except while
// pre-evaluating expressions for the compiler.
func (in *Interpreter) staticParam(fr *Frame, n int) (rt.Value, error) {
	if n < 1 || n > len(fr.Sparams) {
		return nil, rt.Faultf("%s: could not determine static parameter %d", fr.name(), n)
	}
	v := fr.Sparams[n-1]
	if tv, ok := v.(*rt.TypeVar); ok && !fr.PreEval {
		return nil, rt.UndefVar(tv.Name)
	}
	return v, nil
}

func (in *Interpreter) isDefined(fr *Frame, target ir.Node) (rt.Value, error) {
	switch e := target.(type) {
	case ir.Slot:
		return fr.slotDefined(e.Index())
	case ir.GlobalRef:
		return in.host.Bindings.IsBound(e.Module, e.Name), nil
	case ir.SymbolRef:
		return in.host.Bindings.IsBound(fr.Module, e.Name), nil
	case ir.StaticParam:
		if e.N < 1 || e.N > len(fr.Sparams) {
			return nil, rt.Faultf("%s: could not determine static parameter %d", fr.name(), e.N)
		}
		_, unbound := fr.Sparams[e.N-1].(*rt.TypeVar)
		return !unbound, nil
	}
	return nil, rt.Faultf("%s: invalid isdefined target %T", fr.name(), target)
}

// newStruct builds an instance of a struct type from positional field
// values. Trailing fields not supplied are left undefined.
func newStruct(tv rt.Value, vals []rt.Value) (rt.Value, error) {
	t, ok := tv.(*rt.Type)
	if !ok || t.Kind != rt.KindStruct {
		return nil, rt.Errorf(rt.ErrTypeMismatch, "new: expected a struct type, got %v", tv)
	}
	if len(vals) > len(t.Fields) {
		return nil, rt.Errorf(rt.ErrTypeMismatch, "new: too many fields for %s", t)
	}
	s := &rt.Struct{Type: t, Fields: make([]rt.Value, len(t.Fields))}
	for i, v := range vals {
		if i < len(t.FieldTypes) && t.FieldTypes[i] != nil && !rt.Isa(v, t.FieldTypes[i]) {
			return nil, rt.Errorf(rt.ErrTypeMismatch, "new: field %s of %s expects %s, got %s",
				t.Fields[i], t, t.FieldTypes[i], rt.TypeOf(v))
		}
		s.Fields[i] = v
	}
	return s, nil
}
