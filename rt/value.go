package rt

import "fmt"

// ---------------------------------------------------------------------------
// Value: the runtime value handle
// ---------------------------------------------------------------------------

// Value is an opaque handle to a runtime value. The interpreter reads and
// writes handles but never owns the underlying storage; Go's collector keeps
// everything reachable from an activation record alive.
//
// Primitive values use the native Go type of matching width (bool, int8 ...
// uint64, float32, float64). Wider or non-Go values use the types below.
type Value = any

// NothingType is the type of the singleton "no meaningful value" result.
type NothingType struct{}

// Nothing is the result of statements evaluated for effect only.
var Nothing = NothingType{}

func (NothingType) String() string { return "nothing" }

// Symbol is an interned identifier.
type Symbol string

func (s Symbol) String() string { return ":" + string(s) }

// Int128 is a signed 16-byte integer.
type Int128 struct {
	Lo uint64
	Hi int64
}

// UInt128 is an unsigned 16-byte integer.
type UInt128 struct {
	Lo uint64
	Hi uint64
}

// Bits is an instance of an opaque primitive type (one with no Go
// counterpart, such as a 4-byte character type). Only the low Size bytes of
// Lo/Hi are meaningful.
type Bits struct {
	Type *Type
	Lo   uint64
	Hi   uint64
}

// Pointer is a raw machine address tagged with its Ptr{T} type.
type Pointer struct {
	Type *Type
	Addr uintptr
}

func (p Pointer) String() string {
	return fmt.Sprintf("%s(0x%x)", p.Type, p.Addr)
}

// Ref is a mutable reference cell. When Addr is non-zero the cell refers to
// foreign memory; otherwise it refers to the managed value X.
type Ref struct {
	Type *Type
	X    Value
	Addr uintptr
}

// Tuple is an immutable ordered collection of values.
type Tuple []Value

// Struct is an instance of a struct type.
type Struct struct {
	Type   *Type
	Fields []Value
}

// Field returns a field by name.
func (s *Struct) Field(name Symbol) (Value, bool) {
	for i, n := range s.Type.Fields {
		if n == name && i < len(s.Fields) {
			return s.Fields[i], s.Fields[i] != nil
		}
	}
	return nil, false
}

// TypeVar is an unbound method static parameter.
type TypeVar struct {
	Name  Symbol
	Upper *Type
}

func (tv *TypeVar) String() string { return string(tv.Name) }

// Typed is implemented by host values that report their own type.
type Typed interface {
	TypeOf() *Type
}
