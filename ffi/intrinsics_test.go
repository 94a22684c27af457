package ffi

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/chazu/ssaeval/rt"
)

func TestValuePtrRoundTrip(t *testing.T) {
	b, _, lb, _ := newTestBridge(t)

	p, err := call(t, b, rt.Symbol("value_ptr"), rt.PtrOf(rt.AnyType), []*rt.Type{rt.AnyType}, "hello")
	if err != nil {
		t.Fatalf("value_ptr(value): %v", err)
	}
	ptr, ok := p.(rt.Pointer)
	if !ok || ptr.Addr == 0 {
		t.Fatalf("value_ptr(value) = %#v, want a non-null pointer", p)
	}

	v, err := call(t, b, rt.Symbol("value_ptr"), rt.AnyType, []*rt.Type{rt.PtrOf(rt.AnyType)}, ptr)
	if err != nil {
		t.Fatalf("value_ptr(pointer): %v", err)
	}
	if v != "hello" {
		t.Errorf("value_ptr(pointer) = %v, want hello", v)
	}
	if lb.Calls() != 0 {
		t.Errorf("intrinsics made %d native calls", lb.Calls())
	}

	bogus := rt.Pointer{Type: rt.PtrOf(rt.AnyType), Addr: 0xdead}
	if _, err := call(t, b, rt.Symbol("value_ptr"), rt.AnyType, []*rt.Type{rt.PtrOf(rt.AnyType)}, bogus); !errors.Is(err, rt.ErrInvalidReference) {
		t.Errorf("unknown handle err = %v, want ErrInvalidReference", err)
	}
}

func TestSymbolIntrinsics(t *testing.T) {
	b, _, _, arena := newTestBridge(t)
	bytePtr := rt.PtrOf(rt.UInt8T)

	buf := arena.Alloc([]byte("abcdef"))
	sym, err := call(t, b, rt.Symbol("symbol_n"), rt.SymbolT, []*rt.Type{bytePtr, rt.Int64T},
		rt.Pointer{Type: bytePtr, Addr: buf}, int64(3))
	if err != nil {
		t.Fatalf("symbol_n: %v", err)
	}
	if sym != rt.Symbol("abc") {
		t.Errorf("symbol_n = %v, want :abc", sym)
	}

	for _, n := range []int64{-1, math.MinInt64} {
		_, err := call(t, b, rt.Symbol("symbol_n"), rt.SymbolT, []*rt.Type{bytePtr, rt.Int64T},
			rt.Pointer{Type: bytePtr, Addr: buf}, n)
		if !errors.Is(err, rt.ErrTypeMismatch) {
			t.Errorf("symbol_n length %d: err = %v, want %v", n, err, rt.ErrTypeMismatch)
		}
	}
	if _, err := arena.Read(buf, -1); !errors.Is(err, rt.ErrInvalidReference) {
		t.Errorf("Read(-1) err = %v, want %v", err, rt.ErrInvalidReference)
	}

	p, err := call(t, b, rt.Symbol("symbol_name"), bytePtr, []*rt.Type{rt.SymbolT}, rt.Symbol("xyz"))
	if err != nil {
		t.Fatalf("symbol_name: %v", err)
	}
	s, err := arena.ReadCString(p.(rt.Pointer).Addr)
	if err != nil || s != "xyz" {
		t.Errorf("symbol_name buffer = %q, %v; want xyz", s, err)
	}
}

func TestDlsymIntrinsic(t *testing.T) {
	b, syms, _, arena := newTestBridge(t)
	syms.Define("libz", "deflate", 0x77)
	lib, err := syms.Open("libz")
	if err != nil {
		t.Fatal(err)
	}

	voidPtr := rt.PtrOf(rt.NothingT)
	params := []*rt.Type{voidPtr, rt.PtrOf(rt.UInt8T), rt.PtrOf(voidPtr), rt.Int32T}
	store := arena.Alloc(make([]byte, 8))
	args := func(name string, throw int32) []rt.Value {
		return []rt.Value{
			rt.Pointer{Type: voidPtr, Addr: uintptr(lib)},
			rt.Pointer{Type: rt.PtrOf(rt.UInt8T), Addr: arena.CString(name)},
			rt.Pointer{Type: rt.PtrOf(voidPtr), Addr: store},
			throw,
		}
	}

	got, err := call(t, b, rt.Symbol("dlsym"), rt.Int32T, params, args("deflate", 1)...)
	if err != nil {
		t.Fatalf("dlsym: %v", err)
	}
	if got != int32(1) {
		t.Errorf("dlsym status = %v, want 1", got)
	}
	out, _ := arena.Read(store, 8)
	if addr := binary.LittleEndian.Uint64(out); addr != 0x77 {
		t.Errorf("stored address = 0x%x, want 0x77", addr)
	}

	got, err = call(t, b, rt.Symbol("dlsym"), rt.Int32T, params, args("inflate", 0)...)
	if err != nil || got != int32(0) {
		t.Errorf("dlsym missing = %v, %v; want 0, nil", got, err)
	}
	if _, err := call(t, b, rt.Symbol("dlsym"), rt.Int32T, params, args("inflate", 1)...); !errors.Is(err, rt.ErrUnresolvedSymbol) {
		t.Errorf("dlsym throwing err = %v, want ErrUnresolvedSymbol", err)
	}
}
