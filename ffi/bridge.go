package ffi

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/tliron/commonlog"

	"github.com/chazu/ssaeval/config"
	"github.com/chazu/ssaeval/rt"
)

var log = commonlog.GetLogger("ssaeval.ffi")

// Env is the static parameter environment of the calling activation.
type Env struct {
	Vars []*rt.TypeVar
	Vals []rt.Value
}

// Descriptor is a prepared foreign call: target, instantiated signature
// and intrinsic tag.
type Descriptor struct {
	Target    Target
	Ret       *rt.Type
	Params    []*rt.Type
	CallConv  rt.Symbol
	Intrinsic Intrinsic
}

// Bridge performs foreign calls.
type Bridge struct {
	loader  SymbolLoader
	caller  Caller
	memory  Memory
	handles *Handles
	cfg     *config.Config

	internalOnce sync.Once
	internal     Library
	internalErr  error

	degraded atomic.Int64
}

// NewBridge creates a bridge over the given backends.
func NewBridge(cfg *config.Config, loader SymbolLoader, caller Caller, memory Memory) *Bridge {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Bridge{
		loader:  loader,
		caller:  caller,
		memory:  memory,
		handles: NewHandles(),
		cfg:     cfg,
	}
}

// Handles returns the bridge's handle table.
func (b *Bridge) Handles() *Handles { return b.handles }

// Degraded returns how many values crossed the boundary through the
// opaque-pointer fallback.
func (b *Bridge) Degraded() int64 { return b.degraded.Load() }

// Prepare builds a call descriptor. Variadic calls are rejected before
// anything else is examined.
func (b *Bridge) Prepare(target rt.Value, ret *rt.Type, params []*rt.Type, nvararg int, cc rt.Symbol, env Env) (*Descriptor, error) {
	if nvararg != 0 {
		return nil, rt.Errorf(rt.ErrUnsupportedCallingConvention, "variadic foreign call")
	}
	t, err := ParseTarget(target)
	if err != nil {
		return nil, err
	}
	d := &Descriptor{
		Target:   t,
		Ret:      rt.Instantiate(ret, env.Vars, env.Vals),
		Params:   make([]*rt.Type, len(params)),
		CallConv: cc,
	}
	for i, p := range params {
		d.Params[i] = rt.Instantiate(p, env.Vars, env.Vals)
		if d.Params[i].HasVars() {
			return nil, rt.Faultf("foreign call %s: could not determine static parameter in %s", t, p)
		}
	}
	if d.Ret.HasVars() {
		return nil, rt.Faultf("foreign call %s: could not determine static parameter in %s", t, ret)
	}
	if !t.IsAddress() {
		d.Intrinsic = intrinsicNames[t.Name]
	}
	return d, nil
}

// Call performs a prepared call with evaluated arguments.
func (b *Bridge) Call(d *Descriptor, args []rt.Value) (rt.Value, error) {
	if len(args) != len(d.Params) {
		return nil, rt.Faultf("foreign call %s: %d arguments for %d parameters", d.Target, len(args), len(d.Params))
	}
	args, err := b.convertArgs(d, args)
	if err != nil {
		return nil, err
	}
	if d.Intrinsic != IntrinsicNone {
		return b.intrinsic(d, args)
	}

	fn, err := b.resolve(d.Target)
	if err != nil {
		return nil, err
	}

	retClass, err := ClassifyReturn(d.Ret)
	if err != nil {
		return nil, err
	}
	if retClass == ClassOpaque {
		b.degrade(d.Ret, "return")
	}

	native := make([]Arg, 0, len(args))
	for i, a := range args {
		arg, skip, err := b.marshal(d.Params[i], a)
		if err != nil {
			return nil, fmt.Errorf("foreign call %s argument %d: %w", d.Target, i+1, err)
		}
		if !skip {
			native = append(native, arg)
		}
	}

	w, err := b.caller.Call(fn, native, retClass)
	if err != nil {
		return nil, fmt.Errorf("foreign call %s: %w", d.Target, err)
	}
	return b.decode(d.Ret, retClass, w)
}

// convertArgs applies implicit numeric conversion where a primitive
// argument's runtime type differs from the declared primitive type.
func (b *Bridge) convertArgs(d *Descriptor, args []rt.Value) ([]rt.Value, error) {
	var out []rt.Value
	for i, a := range args {
		want := d.Params[i]
		have := rt.TypeOf(a)
		if have.Equal(want) || !want.IsPrimitive() || !have.IsPrimitive() {
			continue
		}
		c, err := rt.Convert(want, a)
		if err != nil {
			return nil, err
		}
		if out == nil {
			out = append([]rt.Value(nil), args...)
		}
		out[i] = c
	}
	if out == nil {
		return args, nil
	}
	return out, nil
}

// resolve finds the address of a named target: the internal-prefixed name
// in the internal library, then the literal name, then the global scope.
func (b *Bridge) resolve(t Target) (uintptr, error) {
	if t.IsAddress() {
		return t.Addr, nil
	}
	if b.loader == nil {
		return 0, &rt.Error{Kind: rt.ErrUnresolvedSymbol, Name: rt.Symbol(t.Name), Msg: "no symbol loader"}
	}

	var lib Library
	if t.Library != "" {
		l, err := b.loader.Open(b.cfg.ResolveLibrary(t.Library))
		if err != nil {
			return 0, &rt.Error{Kind: rt.ErrUnresolvedSymbol, Name: rt.Symbol(t.Name), Msg: err.Error()}
		}
		lib = l
	} else {
		b.internalOnce.Do(func() {
			b.internal, b.internalErr = b.loader.Open(b.cfg.FFI.InternalLibrary)
			if b.internalErr != nil {
				log.Warningf("internal library %q: %s", b.cfg.FFI.InternalLibrary, b.internalErr)
			}
		})
		if b.internalErr != nil {
			lib = b.loader.Default()
		} else {
			lib = b.internal
		}
	}

	if p := b.cfg.FFI.InternalPrefix; p != "" {
		if addr, ok := b.loader.Lookup(lib, p+t.Name); ok && addr != 0 {
			return addr, nil
		}
	}
	if addr, ok := b.loader.Lookup(lib, t.Name); ok && addr != 0 {
		return addr, nil
	}
	if addr, ok := b.loader.Lookup(b.loader.Default(), t.Name); ok && addr != 0 {
		return addr, nil
	}
	return 0, &rt.Error{Kind: rt.ErrUnresolvedSymbol, Name: rt.Symbol(t.Name)}
}

func (b *Bridge) degrade(t *rt.Type, where string) {
	b.degraded.Add(1)
	if b.cfg.FFI.WarnOpaque {
		log.Warningf("%s of type %s passed as opaque pointer", where, t)
	}
}

// marshal converts one argument by its declared type. Zero-size
// primitives are skipped.
func (b *Bridge) marshal(t *rt.Type, v rt.Value) (Arg, bool, error) {
	c := ClassifyParam(t)
	switch c {
	case ClassVoid:
		return Arg{}, true, nil
	case ClassFloat32:
		f, ok := v.(float32)
		if !ok {
			return Arg{}, false, rt.Errorf(rt.ErrTypeMismatch, "expected Float32, got %s", rt.TypeOf(v))
		}
		lo, _, _ := rt.ToBits(f)
		return Arg{Class: c, Word: Word{Lo: lo}}, false, nil
	case ClassFloat64:
		f, ok := v.(float64)
		if !ok {
			return Arg{}, false, rt.Errorf(rt.ErrTypeMismatch, "expected Float64, got %s", rt.TypeOf(v))
		}
		lo, _, _ := rt.ToBits(f)
		return Arg{Class: c, Word: Word{Lo: lo}}, false, nil
	case ClassPointer:
		return Arg{Class: c, Word: Word{Lo: uint64(b.pointerArg(t, v))}}, false, nil
	case ClassOpaque:
		b.degrade(t, "argument")
		return Arg{Class: ClassPointer, Word: Word{Lo: uint64(b.handles.Register(v))}}, false, nil
	}
	lo, hi, ok := rt.ToBits(v)
	if !ok {
		return Arg{}, false, rt.Errorf(rt.ErrTypeMismatch, "cannot pass %s as %s", rt.TypeOf(v), t)
	}
	return Arg{Class: c, Word: Word{Lo: lo, Hi: hi}}, false, nil
}

// pointerArg returns the address passed for a pointer-shaped parameter.
// Raw pointers pass their address, foreign references their cell address;
// managed values pass a handle.
func (b *Bridge) pointerArg(t *rt.Type, v rt.Value) uintptr {
	switch x := v.(type) {
	case rt.Pointer:
		return x.Addr
	case *rt.Ref:
		if x.Addr != 0 {
			return x.Addr
		}
	case rt.NothingType:
		if t.Kind == rt.KindPointer {
			return 0
		}
	}
	if t.Kind == rt.KindPointer {
		if lo, _, ok := rt.ToBits(v); ok {
			return uintptr(lo)
		}
	}
	return b.handles.Register(v)
}

// decode boxes a native result by its declared type.
func (b *Bridge) decode(t *rt.Type, c Class, w Word) (rt.Value, error) {
	switch c {
	case ClassVoid:
		if t.Kind == rt.KindNothing {
			return rt.Nothing, nil
		}
		return rt.FromBits(t, 0, 0)
	case ClassFloat32, ClassFloat64:
		return rt.FromBits(t, w.Lo, 0)
	case ClassPointer:
		addr := uintptr(w.Lo)
		switch t.Kind {
		case rt.KindPointer:
			return rt.Pointer{Type: t, Addr: addr}, nil
		case rt.KindRef:
			if v, ok := b.handles.Value(addr); ok {
				return v, nil
			}
			return &rt.Ref{Type: t, Addr: addr}, nil
		}
		if v, ok := b.handles.Value(addr); ok {
			return v, nil
		}
		b.degrade(t, "return")
		return rt.Pointer{Type: rt.PtrOf(t), Addr: addr}, nil
	case ClassOpaque:
		return rt.Pointer{Type: rt.PtrOf(t), Addr: uintptr(w.Lo)}, nil
	}
	return rt.FromBits(t, w.Lo, w.Hi)
}
