package ffi

import (
	"github.com/chazu/ssaeval/rt"
)

// Target is a foreign call target: either a literal address or a symbol
// name, optionally qualified by a library name.
type Target struct {
	Name    string
	Library string
	Addr    uintptr
	literal bool
}

// IsAddress reports whether t is a literal function address.
func (t Target) IsAddress() bool { return t.literal }

func (t Target) String() string {
	switch {
	case t.literal:
		return rt.Pointer{Type: rt.PtrOf(rt.NothingT), Addr: t.Addr}.String()
	case t.Library != "":
		return t.Library + ":" + t.Name
	}
	return t.Name
}

// ParseTarget interprets an evaluated call-target operand. Names may be
// symbols or strings; a 2-tuple is (name, library); pointers and unsigned
// words are literal addresses.
func ParseTarget(v rt.Value) (Target, error) {
	switch x := v.(type) {
	case rt.Symbol:
		return Target{Name: string(x)}, nil
	case string:
		return Target{Name: x}, nil
	case rt.Pointer:
		return addrTarget(x.Addr)
	case uint64:
		return addrTarget(uintptr(x))
	case int64:
		return addrTarget(uintptr(x))
	case rt.Tuple:
		if len(x) != 2 {
			break
		}
		name, ok1 := nameOf(x[0])
		lib, ok2 := nameOf(x[1])
		if !ok1 || !ok2 {
			break
		}
		return Target{Name: name, Library: lib}, nil
	}
	return Target{}, rt.Faultf("invalid foreign call target %v", v)
}

func addrTarget(a uintptr) (Target, error) {
	if a == 0 {
		return Target{}, &rt.Error{Kind: rt.ErrNullFunctionPointer}
	}
	return Target{Addr: a, literal: true}, nil
}

func nameOf(v rt.Value) (string, bool) {
	switch x := v.(type) {
	case rt.Symbol:
		return string(x), true
	case string:
		return x, true
	}
	return "", false
}
