package ffi

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/chazu/ssaeval/rt"
)

// Word is a raw value of up to 16 bytes crossing the native boundary.
type Word struct {
	Lo, Hi uint64
}

// Arg is one marshaled argument.
type Arg struct {
	Class Class
	Word
}

// Caller performs the machine-level call.
type Caller interface {
	Call(fn uintptr, args []Arg, ret Class) (Word, error)
}

// ---------------------------------------------------------------------------
// Loopback: an in-process stand-in for native code
// ---------------------------------------------------------------------------

// Loopback is a Caller backed by Go functions registered at fake
// addresses. Calling an unregistered address returns the first argument
// unchanged, or zero when there is none.
type Loopback struct {
	mu    sync.Mutex
	funcs map[uintptr]func(args []Arg) Word
	last  []Arg
	calls int
}

// NewLoopback creates an empty loopback caller.
func NewLoopback() *Loopback {
	return &Loopback{funcs: make(map[uintptr]func([]Arg) Word)}
}

// Register installs fn at addr.
func (l *Loopback) Register(addr uintptr, fn func(args []Arg) Word) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.funcs[addr] = fn
}

func (l *Loopback) Call(fn uintptr, args []Arg, ret Class) (Word, error) {
	l.mu.Lock()
	f := l.funcs[fn]
	l.last = append([]Arg(nil), args...)
	l.calls++
	l.mu.Unlock()

	if f != nil {
		return truncate(f(args), ret), nil
	}
	if ret == ClassVoid || len(args) == 0 {
		return Word{}, nil
	}
	return truncate(args[0].Word, ret), nil
}

// LastArgs returns the arguments of the most recent call.
func (l *Loopback) LastArgs() []Arg {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.last
}

// Calls returns the number of calls made.
func (l *Loopback) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

// truncate keeps only the bytes a native return of class c carries.
func truncate(w Word, c Class) Word {
	switch n := c.Size(); {
	case n == 16:
		return w
	case n == 8:
		return Word{Lo: w.Lo}
	case n == 0:
		return Word{}
	default:
		return Word{Lo: w.Lo & (1<<(uint(n)*8) - 1)}
	}
}

// ---------------------------------------------------------------------------
// Arena: Memory backed by Go byte slices
// ---------------------------------------------------------------------------

const arenaBase uintptr = 0x5100_0000_0000

// Arena is a Memory whose addresses refer to Go-managed buffers. It is used
// together with Loopback.
type Arena struct {
	mu      sync.Mutex
	next    uintptr
	blocks  map[uintptr][]byte
	strings map[string]uintptr
}

// NewArena creates an empty arena.
func NewArena() *Arena {
	return &Arena{next: arenaBase, blocks: make(map[uintptr][]byte), strings: make(map[string]uintptr)}
}

// Alloc copies b into the arena and returns its address.
func (a *Arena) Alloc(b []byte) uintptr {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.alloc(b)
}

func (a *Arena) alloc(b []byte) uintptr {
	addr := a.next
	a.blocks[addr] = append([]byte(nil), b...)
	a.next += (uintptr(len(b)) + 16) &^ 15
	return addr
}

// find returns the block containing addr and the offset into it.
func (a *Arena) find(addr uintptr) ([]byte, int, bool) {
	for base, b := range a.blocks {
		if addr >= base && addr < base+uintptr(len(b)) {
			return b, int(addr - base), true
		}
	}
	return nil, 0, false
}

func (a *Arena) Read(addr uintptr, n int) ([]byte, error) {
	if n < 0 {
		return nil, rt.Errorf(rt.ErrInvalidReference, "read of %d bytes at 0x%x", n, addr)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if n == 0 {
		return []byte{}, nil
	}
	b, off, ok := a.find(addr)
	if !ok || off+n > len(b) {
		return nil, rt.Errorf(rt.ErrInvalidReference, "read of %d bytes at 0x%x", n, addr)
	}
	return append([]byte(nil), b[off:off+n]...), nil
}

func (a *Arena) ReadCString(addr uintptr) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	b, off, ok := a.find(addr)
	if !ok {
		return "", rt.Errorf(rt.ErrInvalidReference, "string at 0x%x", addr)
	}
	for i := off; i < len(b); i++ {
		if b[i] == 0 {
			return string(b[off:i]), nil
		}
	}
	return "", rt.Errorf(rt.ErrInvalidReference, "unterminated string at 0x%x", addr)
}

func (a *Arena) CString(s string) uintptr {
	a.mu.Lock()
	defer a.mu.Unlock()
	if addr, ok := a.strings[s]; ok {
		return addr
	}
	addr := a.alloc(append([]byte(s), 0))
	a.strings[s] = addr
	return addr
}

func (a *Arena) WritePointer(addr uintptr, v uintptr) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	b, off, ok := a.find(addr)
	if !ok || off+8 > len(b) {
		return fmt.Errorf("write at 0x%x: %w", addr, rt.ErrInvalidReference)
	}
	binary.LittleEndian.PutUint64(b[off:], uint64(v))
	return nil
}
