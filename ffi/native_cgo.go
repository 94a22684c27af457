//go:build linux && cgo && libffi

package ffi

/*
#define _GNU_SOURCE
#cgo LDFLAGS: -ldl
#cgo pkg-config: libffi
#include <ffi.h>
#include <dlfcn.h>
#include <stdlib.h>
#include <string.h>
#include <stdint.h>

static ffi_type *ssa_i128_elements[3] = { &ffi_type_uint64, &ffi_type_uint64, NULL };
static ffi_type ssa_type_i128 = { 16, 8, FFI_TYPE_STRUCT, ssa_i128_elements };

// Class numbering matches ffi.Class.
static ffi_type *ssa_ffi_type(int cls) {
	switch (cls) {
	case 0: return &ffi_type_void;
	case 1: return &ffi_type_float;
	case 2: return &ffi_type_double;
	case 4: return &ffi_type_sint8;
	case 5: return &ffi_type_sint16;
	case 6: return &ffi_type_sint32;
	case 7: return &ffi_type_sint64;
	case 8: return &ssa_type_i128;
	default: return &ffi_type_pointer;
	}
}

// Each argument occupies 16 bytes of argbuf.
static int ssa_call(uintptr_t fn, int ret, int nargs, const int *classes, void *argbuf, void *rvalue) {
	ffi_cif cif;
	ffi_type *atypes[nargs > 0 ? nargs : 1];
	void *avalues[nargs > 0 ? nargs : 1];
	for (int i = 0; i < nargs; i++) {
		atypes[i] = ssa_ffi_type(classes[i]);
		avalues[i] = (char *)argbuf + 16 * i;
	}
	if (ffi_prep_cif(&cif, FFI_DEFAULT_ABI, (unsigned)nargs, ssa_ffi_type(ret), atypes) != FFI_OK) {
		return -1;
	}
	ffi_call(&cif, (void (*)(void))fn, rvalue, avalues);
	return 0;
}

static uintptr_t ssa_dlopen(const char *path) {
	return (uintptr_t)dlopen(path, RTLD_LAZY | RTLD_LOCAL);
}

static const char *ssa_dlerror(void) {
	return dlerror();
}

static uintptr_t ssa_dlsym(uintptr_t h, const char *name) {
	dlerror();
	void *p = dlsym((void *)h, name);
	if (dlerror() != NULL) return 0;
	return (uintptr_t)p;
}

static uintptr_t ssa_default_handle(void) {
	return (uintptr_t)RTLD_DEFAULT;
}

static void ssa_read(uintptr_t addr, void *dst, size_t n) {
	memcpy(dst, (const void *)addr, n);
}

static size_t ssa_strlen(uintptr_t addr) {
	return strlen((const char *)addr);
}

static void ssa_write_ptr(uintptr_t addr, uintptr_t v) {
	*(uintptr_t *)addr = v;
}
*/
import "C"

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/chazu/ssaeval/config"
	"github.com/chazu/ssaeval/rt"
)

// NativeAvailable reports whether this build can call native code.
const NativeAvailable = true

// ---------------------------------------------------------------------------
// libdl symbol loader
// ---------------------------------------------------------------------------

type dlLoader struct {
	mu   sync.Mutex
	open map[string]Library
}

// NewDynamicLoader returns a SymbolLoader backed by dlopen and dlsym.
func NewDynamicLoader() SymbolLoader {
	return &dlLoader{open: make(map[string]Library)}
}

func (l *dlLoader) Open(name string) (Library, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if h, ok := l.open[name]; ok {
		return h, nil
	}
	var h C.uintptr_t
	if name == "" {
		h = C.ssa_dlopen(nil)
	} else {
		cs := C.CString(name)
		defer C.free(unsafe.Pointer(cs))
		h = C.ssa_dlopen(cs)
	}
	if h == 0 {
		msg := "unknown dlerror"
		if e := C.ssa_dlerror(); e != nil {
			msg = C.GoString(e)
		}
		return 0, fmt.Errorf("dlopen(%q) failed: %s", name, msg)
	}
	l.open[name] = Library(h)
	return Library(h), nil
}

func (l *dlLoader) Lookup(lib Library, name string) (uintptr, bool) {
	cs := C.CString(name)
	defer C.free(unsafe.Pointer(cs))
	p := C.ssa_dlsym(C.uintptr_t(lib), cs)
	return uintptr(p), p != 0
}

func (l *dlLoader) Default() Library {
	return Library(C.ssa_default_handle())
}

// ---------------------------------------------------------------------------
// libffi caller
// ---------------------------------------------------------------------------

type ffiCaller struct{}

// NewNativeCaller returns a Caller that invokes native functions through
// libffi.
func NewNativeCaller() Caller { return ffiCaller{} }

func (ffiCaller) Call(fn uintptr, args []Arg, ret Class) (Word, error) {
	if fn == 0 {
		return Word{}, &rt.Error{Kind: rt.ErrNullFunctionPointer}
	}
	n := len(args)
	classes := make([]C.int, n+1)
	buf := make([]uint64, 2*n+2)
	for i, a := range args {
		classes[i] = C.int(a.Class)
		buf[2*i] = a.Lo
		buf[2*i+1] = a.Hi
	}
	var rv [2]uint64
	st := C.ssa_call(C.uintptr_t(fn), C.int(ret), C.int(n), &classes[0],
		unsafe.Pointer(&buf[0]), unsafe.Pointer(&rv[0]))
	if st != 0 {
		return Word{}, rt.Errorf(rt.ErrUnsupportedCallingConvention, "ffi_prep_cif failed for %d arguments", n)
	}
	return truncate(Word{Lo: rv[0], Hi: rv[1]}, ret), nil
}

// ---------------------------------------------------------------------------
// Process memory
// ---------------------------------------------------------------------------

type processMemory struct {
	mu      sync.Mutex
	strings map[string]*C.char
}

// NewProcessMemory returns a Memory over the address space of the running
// process. Strings handed out by CString are never freed.
func NewProcessMemory() Memory {
	return &processMemory{strings: make(map[string]*C.char)}
}

func (m *processMemory) Read(addr uintptr, n int) ([]byte, error) {
	if n < 0 {
		return nil, rt.Errorf(rt.ErrInvalidReference, "read of %d bytes at 0x%x", n, addr)
	}
	if n == 0 {
		return []byte{}, nil
	}
	if addr == 0 {
		return nil, rt.Errorf(rt.ErrInvalidReference, "read through null pointer")
	}
	buf := make([]byte, n)
	C.ssa_read(C.uintptr_t(addr), unsafe.Pointer(&buf[0]), C.size_t(n))
	return buf, nil
}

func (m *processMemory) ReadCString(addr uintptr) (string, error) {
	if addr == 0 {
		return "", rt.Errorf(rt.ErrInvalidReference, "read through null pointer")
	}
	n := int(C.ssa_strlen(C.uintptr_t(addr)))
	b, err := m.Read(addr, n)
	return string(b), err
}

func (m *processMemory) CString(s string) uintptr {
	m.mu.Lock()
	defer m.mu.Unlock()
	cs, ok := m.strings[s]
	if !ok {
		cs = C.CString(s)
		m.strings[s] = cs
	}
	return uintptr(unsafe.Pointer(cs))
}

func (m *processMemory) WritePointer(addr uintptr, v uintptr) error {
	if addr == 0 {
		return rt.Errorf(rt.ErrInvalidReference, "write through null pointer")
	}
	C.ssa_write_ptr(C.uintptr_t(addr), C.uintptr_t(v))
	return nil
}

// NewNativeBridge creates a bridge that calls real native code.
func NewNativeBridge(cfg *config.Config) *Bridge {
	return NewBridge(cfg, NewDynamicLoader(), NewNativeCaller(), NewProcessMemory())
}
