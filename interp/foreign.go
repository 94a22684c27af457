package interp

import (
	"context"
	"runtime"

	"github.com/chazu/ssaeval/ffi"
	"github.com/chazu/ssaeval/ir"
	"github.com/chazu/ssaeval/rt"
)

// ---------------------------------------------------------------------------
// Foreign calls and native-callable pointers
// ---------------------------------------------------------------------------

// foreignCall evaluates the target, the arguments and the GC roots, then
// hands the call to the bridge with the frame's static parameters in scope.
func (in *Interpreter) foreignCall(ctx context.Context, fr *Frame, e *ir.ForeignCall) (rt.Value, error) {
	target, err := in.eval(ctx, fr, e.Target)
	if err != nil {
		return nil, err
	}
	args, err := in.evalAll(ctx, fr, e.Args)
	if err != nil {
		return nil, err
	}
	roots, err := in.evalAll(ctx, fr, e.Roots)
	if err != nil {
		return nil, err
	}
	if in.Bridge == nil {
		return nil, rt.Errorf(rt.ErrUnsupportedCallingConvention, "no foreign-call bridge configured")
	}

	env := ffi.Env{Vars: fr.typeVars(), Vals: fr.Sparams}
	d, err := in.Bridge.Prepare(target, e.Ret, e.ArgTypes, e.NVarArg, e.CallConv, env)
	if err != nil {
		return nil, err
	}
	v, err := in.Bridge.Call(d, args)
	runtime.KeepAlive(roots)
	return v, err
}

// cfunction resolves the unique specialization of the callee for the
// declared argument types and returns its native entry point, boxed as the
// declared pointer type.
func (in *Interpreter) cfunction(ctx context.Context, fr *Frame, e *ir.CFunction) (rt.Value, error) {
	f, err := in.eval(ctx, fr, e.Func)
	if err != nil {
		return nil, err
	}
	vars := fr.typeVars()
	argTypes := make([]*rt.Type, len(e.ArgTypes))
	for i, t := range e.ArgTypes {
		argTypes[i] = rt.Instantiate(t, vars, fr.Sparams)
	}

	mis, err := in.host.Instances.MethodInstances(ctx, f, argTypes)
	if err != nil {
		return nil, err
	}
	if len(mis) != 1 {
		return nil, rt.Faultf("%s: cfunction: %d specializations of %v for %v, want exactly one",
			fr.name(), len(mis), f, argTypes)
	}
	addr, err := in.host.Entries.EntryPoint(mis[0], in.world())
	if err != nil {
		return nil, err
	}
	ptrType := e.PtrType
	if ptrType == nil {
		ptrType = rt.PtrOf(rt.NothingT)
	}
	return rt.FromBits(ptrType, uint64(addr), 0)
}
