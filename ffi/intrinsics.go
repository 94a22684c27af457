package ffi

import (
	"math"

	"github.com/chazu/ssaeval/rt"
)

// Intrinsic identifies a target name handled without a native call.
type Intrinsic uint8

const (
	IntrinsicNone Intrinsic = iota
	// IntrinsicValuePtr converts between a managed value and a pointer.
	IntrinsicValuePtr
	// IntrinsicSymbolN interns a symbol from a (pointer, length) buffer.
	IntrinsicSymbolN
	// IntrinsicSymbolName returns a NUL-terminated buffer for a symbol.
	IntrinsicSymbolName
	// IntrinsicDlsym looks a symbol up in a library handle, storing the
	// address through an out-pointer and returning a status.
	IntrinsicDlsym
)

var intrinsicNames = map[string]Intrinsic{
	"value_ptr":   IntrinsicValuePtr,
	"symbol_n":    IntrinsicSymbolN,
	"symbol_name": IntrinsicSymbolName,
	"dlsym":       IntrinsicDlsym,
}

func (b *Bridge) intrinsic(d *Descriptor, args []rt.Value) (rt.Value, error) {
	switch d.Intrinsic {
	case IntrinsicValuePtr:
		return b.valuePtr(d, args)
	case IntrinsicSymbolN:
		return b.symbolN(args)
	case IntrinsicSymbolName:
		return b.symbolName(d, args)
	case IntrinsicDlsym:
		return b.dlsym(d, args)
	}
	return nil, rt.Faultf("unknown intrinsic %d", d.Intrinsic)
}

func arity(d *Descriptor, args []rt.Value, n int) error {
	if len(args) != n {
		return rt.Faultf("%s takes %d arguments, got %d", d.Target.Name, n, len(args))
	}
	return nil
}

func (b *Bridge) valuePtr(d *Descriptor, args []rt.Value) (rt.Value, error) {
	if err := arity(d, args, 1); err != nil {
		return nil, err
	}
	switch {
	case d.Ret.Kind == rt.KindAny:
		p, ok := args[0].(rt.Pointer)
		if !ok {
			return nil, rt.Faultf("value_ptr: expected a pointer, got %s", rt.TypeOf(args[0]))
		}
		v, ok := b.handles.Value(p.Addr)
		if !ok {
			return nil, rt.Errorf(rt.ErrInvalidReference, "no value at 0x%x", p.Addr)
		}
		return v, nil
	case d.Ret.Kind == rt.KindPointer:
		if p, ok := args[0].(rt.Pointer); ok && d.Params[0].Kind == rt.KindPointer {
			return rt.Pointer{Type: d.Ret, Addr: p.Addr}, nil
		}
		return rt.Pointer{Type: d.Ret, Addr: b.handles.Register(args[0])}, nil
	}
	return nil, rt.Faultf("value_ptr: unsupported return type %s", d.Ret)
}

func (b *Bridge) symbolN(args []rt.Value) (rt.Value, error) {
	if len(args) != 2 {
		return nil, rt.Faultf("symbol_n takes 2 arguments, got %d", len(args))
	}
	p, ok := args[0].(rt.Pointer)
	if !ok {
		return nil, rt.Faultf("symbol_n: expected a pointer, got %s", rt.TypeOf(args[0]))
	}
	n, _, ok := rt.ToBits(args[1])
	if !ok {
		return nil, rt.Errorf(rt.ErrTypeMismatch, "symbol_n: length of type %s", rt.TypeOf(args[1]))
	}
	if n > math.MaxInt {
		return nil, rt.Errorf(rt.ErrTypeMismatch, "symbol_n: negative or oversized length %d", int64(n))
	}
	buf, err := b.memory.Read(p.Addr, int(n))
	if err != nil {
		return nil, err
	}
	return rt.Symbol(buf), nil
}

func (b *Bridge) symbolName(d *Descriptor, args []rt.Value) (rt.Value, error) {
	if err := arity(d, args, 1); err != nil {
		return nil, err
	}
	s, ok := args[0].(rt.Symbol)
	if !ok {
		return nil, rt.Errorf(rt.ErrTypeMismatch, "symbol_name: expected a symbol, got %s", rt.TypeOf(args[0]))
	}
	ret := d.Ret
	if ret.Kind != rt.KindPointer {
		ret = rt.PtrOf(rt.UInt8T)
	}
	return rt.Pointer{Type: ret, Addr: b.memory.CString(string(s))}, nil
}

func (b *Bridge) dlsym(d *Descriptor, args []rt.Value) (rt.Value, error) {
	if err := arity(d, args, 4); err != nil {
		return nil, err
	}
	lib, ok1 := args[0].(rt.Pointer)
	namePtr, ok2 := args[1].(rt.Pointer)
	store, ok3 := args[2].(rt.Pointer)
	if !ok1 || !ok2 || !ok3 {
		return nil, rt.Faultf("dlsym: expected (handle, name, out) pointers")
	}
	throw, _, _ := rt.ToBits(args[3])

	name, err := b.memory.ReadCString(namePtr.Addr)
	if err != nil {
		return nil, err
	}
	var status uint64
	if b.loader != nil {
		if addr, ok := b.loader.Lookup(Library(lib.Addr), name); ok && addr != 0 {
			if err := b.memory.WritePointer(store.Addr, addr); err != nil {
				return nil, err
			}
			status = 1
		}
	}
	if status == 0 && throw != 0 {
		return nil, &rt.Error{Kind: rt.ErrUnresolvedSymbol, Name: rt.Symbol(name)}
	}
	if d.Ret.IsPrimitive() {
		return rt.FromBits(d.Ret, status, 0)
	}
	return int32(status), nil
}
