//go:build !linux || !cgo || !libffi

package ffi

import (
	"github.com/chazu/ssaeval/config"
	"github.com/chazu/ssaeval/rt"
)

// NativeAvailable reports whether this build can call native code.
const NativeAvailable = false

type unavailable struct{}

func (unavailable) Open(name string) (Library, error) {
	return 0, rt.Errorf(rt.ErrUnsupportedCallingConvention, "native calls need linux, cgo and the libffi build tag")
}

func (unavailable) Lookup(Library, string) (uintptr, bool) { return 0, false }

func (unavailable) Default() Library { return 0 }

func (unavailable) Call(uintptr, []Arg, Class) (Word, error) {
	return Word{}, rt.Errorf(rt.ErrUnsupportedCallingConvention, "native calls need linux, cgo and the libffi build tag")
}

// NewDynamicLoader returns a loader that resolves nothing on this platform.
func NewDynamicLoader() SymbolLoader { return unavailable{} }

// NewNativeCaller returns a caller that always fails on this platform.
func NewNativeCaller() Caller { return unavailable{} }

// NewProcessMemory returns an arena, since process memory is not
// reachable without cgo.
func NewProcessMemory() Memory { return NewArena() }

// NewNativeBridge creates a bridge whose native calls fail with
// ErrUnsupportedCallingConvention.
func NewNativeBridge(cfg *config.Config) *Bridge {
	return NewBridge(cfg, NewDynamicLoader(), NewNativeCaller(), NewProcessMemory())
}
