package host

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/chazu/ssaeval/ir"
	"github.com/chazu/ssaeval/rt"
)

// FunctionT is the type of generic functions.
var FunctionT = &rt.Type{Name: "Function", Kind: rt.KindStruct, Super: rt.AnyType}

// Function is a generic function: a named method table.
type Function struct {
	Name   rt.Symbol
	Module *rt.Module

	mu        sync.RWMutex
	methods   []*rt.Method
	instances map[*rt.Method]map[string]*rt.MethodInstance
}

// NewFunction creates an empty generic function.
func NewFunction(m *rt.Module, name rt.Symbol) *Function {
	return &Function{Name: name, Module: m, instances: make(map[*rt.Method]map[string]*rt.MethodInstance)}
}

func (f *Function) MethodTableName() rt.Symbol { return f.Name }

func (f *Function) TypeOf() *rt.Type { return FunctionT }

func (f *Function) String() string { return string(f.Name) }

// Methods returns the function's methods in definition order.
func (f *Function) Methods() []*rt.Method {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]*rt.Method(nil), f.methods...)
}

// add inserts m, replacing a method with an identical signature.
func (f *Function) add(m *rt.Method) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, old := range f.methods {
		if sameSig(old, m) {
			f.methods[i] = m
			delete(f.instances, old)
			return
		}
	}
	f.methods = append(f.methods, m)
}

func sameSig(a, b *rt.Method) bool {
	if len(a.Sig) != len(b.Sig) || a.IsVarArg != b.IsVarArg {
		return false
	}
	for i := range a.Sig {
		if !a.Sig[i].Equal(b.Sig[i]) {
			return false
		}
	}
	return true
}

// Signature is the evaluated signature operand of a method definition.
// Params excludes the callee.
type Signature struct {
	Name     rt.Symbol
	Params   []*rt.Type
	TypeVars []*rt.TypeVar
	VarArg   bool
}

// ---------------------------------------------------------------------------
// Method tables
// ---------------------------------------------------------------------------

// DefineGeneric returns the generic function held by b, creating one if
// b is unset.
func (r *Runtime) DefineGeneric(ctx context.Context, m *rt.Module, name rt.Symbol, b rt.Binding) (rt.Value, error) {
	if v, ok := b.Load(); ok {
		if _, isFn := v.(*Function); isFn {
			return v, nil
		}
		return nil, &rt.Error{Kind: rt.ErrInvalidDeclaration, Name: name,
			Msg: fmt.Sprintf("already bound to a %s", rt.TypeOf(v))}
	}
	f := NewFunction(m, name)
	if err := b.CheckedAssign(f); err != nil {
		return nil, err
	}
	log.Debugf("declared generic function %s.%s", m, name)
	return f, nil
}

// DefineMethod adds a method to mt, or to the function sig names in m when
// mt is nil.
func (r *Runtime) DefineMethod(ctx context.Context, sig rt.Value, mt rt.MethodTable, body rt.Value, m *rt.Module) error {
	s, ok := sig.(*Signature)
	if !ok {
		return &rt.Error{Kind: rt.ErrInvalidDeclaration, Msg: fmt.Sprintf("invalid method signature %v", sig)}
	}
	switch body.(type) {
	case *ir.CodeUnit, rt.Callable:
	default:
		return &rt.Error{Kind: rt.ErrInvalidDeclaration, Name: s.Name, Msg: fmt.Sprintf("invalid method body %v", body)}
	}

	var f *Function
	if mt != nil {
		fn, ok := mt.(*Function)
		if !ok {
			return &rt.Error{Kind: rt.ErrInvalidDeclaration, Name: mt.MethodTableName(), Msg: "not a generic function"}
		}
		f = fn
	} else {
		b, err := r.BindingForMethodDef(m, s.Name)
		if err != nil {
			return err
		}
		v, err := r.DefineGeneric(ctx, m, s.Name, b)
		if err != nil {
			return err
		}
		f = v.(*Function)
	}

	meth := &rt.Method{
		Name:     f.Name,
		Module:   m,
		Sig:      append([]*rt.Type{FunctionT}, s.Params...),
		TypeVars: s.TypeVars,
		NArgs:    len(s.Params) + 1,
		IsVarArg: s.VarArg,
		Source:   body,
	}
	f.add(meth)
	world := r.bumpWorld()
	log.Debugf("defined method %s%v in world %d", f.Name, s.Params, world)
	return nil
}

// Define is a convenience for registering a method from Go.
func (r *Runtime) Define(m *rt.Module, name rt.Symbol, params []*rt.Type, body rt.Value) (*Function, error) {
	sig := &Signature{Name: name, Params: params}
	if err := r.DefineMethod(context.Background(), sig, nil, body, m); err != nil {
		return nil, err
	}
	v, _ := r.resolve(m, name).Load()
	return v.(*Function), nil
}

// ---------------------------------------------------------------------------
// Dispatch and specialization
// ---------------------------------------------------------------------------

// match reports whether a call with argument types ts is applicable to
// meth and returns the bound static parameter values.
func match(meth *rt.Method, ts []*rt.Type) ([]rt.Value, bool) {
	params := meth.Sig[1:]
	if meth.IsVarArg {
		if len(params) == 0 || len(ts) < len(params)-1 {
			return nil, false
		}
	} else if len(ts) != len(params) {
		return nil, false
	}
	env := make(map[*rt.TypeVar]*rt.Type)
	for i, t := range ts {
		p := params[min(i, len(params)-1)]
		if !unify(p, t, env) {
			return nil, false
		}
	}
	vals := make([]rt.Value, len(meth.TypeVars))
	for i, tv := range meth.TypeVars {
		if bound, ok := env[tv]; ok {
			vals[i] = bound
		} else {
			vals[i] = tv
		}
	}
	return vals, true
}

// unify matches an argument type against a parameter type, binding static
// parameters the first time they are seen.
func unify(p, t *rt.Type, env map[*rt.TypeVar]*rt.Type) bool {
	if p.Kind == rt.KindVar {
		if bound, ok := env[p.Var]; ok {
			return bound.Equal(t)
		}
		if p.Var.Upper != nil && !t.Subtype(p.Var.Upper) {
			return false
		}
		env[p.Var] = t
		return true
	}
	if p.HasVars() && p.Kind == t.Kind && len(p.Params) == len(t.Params) {
		for i := range p.Params {
			if !unify(p.Params[i], t.Params[i], env) {
				return false
			}
		}
		return true
	}
	return t.Subtype(p)
}

// moreSpecific reports whether a's parameters are all subtypes of b's.
func moreSpecific(a, b *rt.Method) bool {
	pa, pb := a.Sig[1:], b.Sig[1:]
	if len(pa) != len(pb) {
		return len(pa) > len(pb)
	}
	for i := range pa {
		if !pa[i].Subtype(pb[i]) {
			return false
		}
	}
	return true
}

func (f *Function) applicable(ts []*rt.Type) []*rt.Method {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var out []*rt.Method
	for _, m := range f.methods {
		if _, ok := match(m, ts); ok {
			out = append(out, m)
		}
	}
	return out
}

// dispatch selects the most specific applicable method and specializes it
// for ts.
func (f *Function) dispatch(ts []*rt.Type) (*rt.MethodInstance, error) {
	cands := f.applicable(ts)
	if len(cands) == 0 {
		return nil, fmt.Errorf("%w %s(%s)", ErrNoMethod, f.Name, typeList(ts))
	}
	best := cands[0]
	for _, c := range cands[1:] {
		if moreSpecific(c, best) {
			best = c
		}
	}
	for _, c := range cands {
		if c != best && !moreSpecific(best, c) {
			return nil, fmt.Errorf("%w %s(%s)", ErrAmbiguous, f.Name, typeList(ts))
		}
	}
	return f.specialize(best, ts), nil
}

// specialize returns the cached instance of meth for ts.
func (f *Function) specialize(meth *rt.Method, ts []*rt.Type) *rt.MethodInstance {
	key := typeList(ts)
	f.mu.Lock()
	defer f.mu.Unlock()
	cache := f.instances[meth]
	if cache == nil {
		cache = make(map[string]*rt.MethodInstance)
		f.instances[meth] = cache
	}
	if mi, ok := cache[key]; ok {
		return mi
	}
	vals, _ := match(meth, ts)
	mi := &rt.MethodInstance{
		Def:        meth,
		SpecTypes:  append([]*rt.Type{FunctionT}, ts...),
		SparamVals: vals,
	}
	cache[key] = mi
	return mi
}

func typeList(ts []*rt.Type) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = t.String()
	}
	return strings.Join(parts, ", ")
}

// MethodInstances returns one specialization per method applicable to a
// call of f with argTypes.
func (r *Runtime) MethodInstances(ctx context.Context, f rt.Value, argTypes []*rt.Type) ([]*rt.MethodInstance, error) {
	fn, ok := f.(*Function)
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrNotCallable, f)
	}
	var out []*rt.MethodInstance
	for _, m := range fn.applicable(argTypes) {
		out = append(out, fn.specialize(m, argTypes))
	}
	return out, nil
}
