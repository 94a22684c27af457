package interp

import (
	"context"

	"github.com/chazu/ssaeval/ir"
	"github.com/chazu/ssaeval/rt"
)

// ---------------------------------------------------------------------------
// Entry points
// ---------------------------------------------------------------------------

// CallMethod interprets the specialization mi called as f(args...). Slot 1
// holds f and the arguments follow; for a vararg method the trailing
// arguments are packed into a tuple in the last parameter slot.
func (in *Interpreter) CallMethod(ctx context.Context, mi *rt.MethodInstance, f rt.Value, args ...rt.Value) (rt.Value, error) {
	if mi == nil || mi.Def == nil {
		return nil, rt.Faultf("call of a specialization without a method")
	}
	if in.host.Code == nil {
		return nil, rt.Faultf("no code source for %s", mi)
	}
	code, err := in.host.Code.CodeFor(mi)
	if err != nil {
		return nil, err
	}
	fr := newFrame(code, mi.Owner(), mi)
	fr.Sparams = mi.SparamVals
	if err := fr.bindArgs(f, args, mi.Def.NArgs, mi.Def.IsVarArg); err != nil {
		return nil, err
	}
	return in.execute(ctx, fr)
}

// CallOpaqueClosure interprets the body of c. Slot 1 holds the captured
// environment and the explicit arguments follow.
func (in *Interpreter) CallOpaqueClosure(ctx context.Context, c *OpaqueClosure, args ...rt.Value) (rt.Value, error) {
	code, ok := c.Source.Source.(*ir.CodeUnit)
	if !ok {
		return nil, rt.Faultf("opaque closure %s has no code", c.Source)
	}
	fr := newFrame(code, c.Source.Module, nil)
	if err := fr.bindArgs(c.Captures, args, c.Source.NArgs, c.IsVarArg); err != nil {
		return nil, err
	}
	return in.execute(ctx, fr)
}

// EvalToplevel runs a top-level thunk in module m. The task's world age
// follows the host clock while the thunk runs and is restored afterwards.
func (in *Interpreter) EvalToplevel(ctx context.Context, m *rt.Module, code *ir.CodeUnit) (rt.Value, error) {
	ctx, t := in.task(ctx)
	saved := t.world
	defer func() { t.world = saved }()

	fr := newFrame(code, m, nil)
	fr.Toplevel = true
	return in.execute(ctx, fr)
}

// EvalExprIn evaluates a single expression in module m. code supplies slot
// and statement numbering and may be nil. A non-nil sparams marks the
// evaluation as pre-evaluation: unbound static parameters are returned as
// TypeVars instead of raising.
func (in *Interpreter) EvalExprIn(ctx context.Context, m *rt.Module, e ir.Node, code *ir.CodeUnit, sparams []rt.Value) (rt.Value, error) {
	ctx, t := in.task(ctx)
	fr := newFrame(code, m, nil)
	fr.Sparams = sparams
	fr.PreEval = sparams != nil
	t.pushFrame(fr)
	defer t.popFrame()
	return in.eval(ctx, fr, e)
}
