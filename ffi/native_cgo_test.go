//go:build linux && cgo && libffi

package ffi

import (
	"testing"

	"github.com/chazu/ssaeval/config"
	"github.com/chazu/ssaeval/rt"
)

func TestNativeLibc(t *testing.T) {
	b := NewNativeBridge(config.Default())

	got, err := call(t, b, rt.Symbol("labs"), rt.Int64T, []*rt.Type{rt.Int64T}, int64(-42))
	if err != nil {
		t.Fatalf("labs: %v", err)
	}
	if got != int64(42) {
		t.Errorf("labs(-42) = %v, want 42", got)
	}

	s, err := call(t, b, rt.Symbol("symbol_name"), rt.PtrOf(rt.UInt8T), []*rt.Type{rt.SymbolT}, rt.Symbol("hello"))
	if err != nil {
		t.Fatalf("symbol_name: %v", err)
	}
	n, err := call(t, b, rt.Symbol("strlen"), rt.UInt64T, []*rt.Type{rt.PtrOf(rt.UInt8T)}, s)
	if err != nil {
		t.Fatalf("strlen: %v", err)
	}
	if n != uint64(5) {
		t.Errorf("strlen = %v, want 5", n)
	}
}
