// Package ffi implements the foreign-call bridge: it resolves native call
// targets, marshals runtime values into machine calling conventions by their
// type descriptors, invokes the target and boxes the result.
package ffi

import (
	"fmt"

	"github.com/chazu/ssaeval/rt"
)

// ---------------------------------------------------------------------------
// TypeClass: calling-convention class of a parameter or return type
// ---------------------------------------------------------------------------

// Class is the calling-convention class of a value. The numeric values are
// shared with the native backend.
type Class uint8

const (
	ClassVoid    Class = 0
	ClassFloat32 Class = 1
	ClassFloat64 Class = 2
	ClassPointer Class = 3
	ClassInt8    Class = 4
	ClassInt16   Class = 5
	ClassInt32   Class = 6
	ClassInt64   Class = 7
	ClassInt128  Class = 8
	// ClassOpaque is the degraded-fidelity fallback: the value crosses the
	// boundary as an opaque pointer.
	ClassOpaque Class = 9
)

var classNames = [...]string{
	ClassVoid:    "void",
	ClassFloat32: "float32",
	ClassFloat64: "float64",
	ClassPointer: "pointer",
	ClassInt8:    "int8",
	ClassInt16:   "int16",
	ClassInt32:   "int32",
	ClassInt64:   "int64",
	ClassInt128:  "int128",
	ClassOpaque:  "opaque",
}

func (c Class) String() string {
	if int(c) < len(classNames) {
		return classNames[c]
	}
	return fmt.Sprintf("Class(%d)", c)
}

// Size returns the byte width of a value of class c.
func (c Class) Size() int {
	switch c {
	case ClassVoid:
		return 0
	case ClassInt8:
		return 1
	case ClassInt16:
		return 2
	case ClassFloat32, ClassInt32:
		return 4
	case ClassInt128:
		return 16
	}
	return 8
}

func primitiveClass(size int) (Class, bool) {
	switch size {
	case 0:
		return ClassVoid, true
	case 1:
		return ClassInt8, true
	case 2:
		return ClassInt16, true
	case 4:
		return ClassInt32, true
	case 8:
		return ClassInt64, true
	case 16:
		return ClassInt128, true
	}
	return ClassOpaque, false
}

// ClassifyParam returns the class used to pass an argument declared as t.
// Floats are checked first, then pointer-shaped types, then fixed-size
// primitives; anything else is opaque.
func ClassifyParam(t *rt.Type) Class {
	if t.Kind == rt.KindFloat {
		switch t.Size {
		case 4:
			return ClassFloat32
		case 8:
			return ClassFloat64
		}
	}
	switch t.Kind {
	case rt.KindAny, rt.KindRef, rt.KindPointer:
		return ClassPointer
	}
	if t.IsPrimitive() {
		c, _ := primitiveClass(t.Size)
		return c
	}
	return ClassOpaque
}

// ClassifyReturn returns the class used to decode a result declared as t.
func ClassifyReturn(t *rt.Type) (Class, error) {
	switch t.Kind {
	case rt.KindAny, rt.KindArray, rt.KindPointer:
		return ClassPointer, nil
	case rt.KindNothing:
		return ClassVoid, nil
	case rt.KindFloat:
		switch t.Size {
		case 4:
			return ClassFloat32, nil
		case 8:
			return ClassFloat64, nil
		}
	case rt.KindRef:
		elem := t.Elem()
		if elem.Kind == rt.KindSymbol || elem.Kind == rt.KindModule || elem.Mutable {
			return ClassPointer, nil
		}
		return ClassOpaque, rt.Errorf(rt.ErrUnsupportedCallingConvention, "cannot return %s by reference", t)
	}
	if t.IsPrimitive() {
		c, _ := primitiveClass(t.Size)
		return c, nil
	}
	return ClassOpaque, nil
}
