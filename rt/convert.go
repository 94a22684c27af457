package rt

import (
	"math"

	"golang.org/x/exp/constraints"
)

// ---------------------------------------------------------------------------
// Numeric conversion
// ---------------------------------------------------------------------------

type numClass uint8

const (
	numSigned numClass = iota
	numUnsigned
	numFloat
	numWide // 16-byte integer
)

// number is a widened view of a primitive numeric value.
type number struct {
	class numClass
	i     int64
	u     uint64
	f     float64
	lo    uint64
	hi    uint64
	neg   bool
}

func signedNum[T constraints.Signed](x T) number {
	return number{class: numSigned, i: int64(x)}
}

func unsignedNum[T constraints.Unsigned](x T) number {
	return number{class: numUnsigned, u: uint64(x)}
}

func floatNum[T constraints.Float](x T) number {
	return number{class: numFloat, f: float64(x)}
}

func toNumber(v Value) (number, bool) {
	switch x := v.(type) {
	case bool:
		if x {
			return unsignedNum(uint8(1)), true
		}
		return unsignedNum(uint8(0)), true
	case int8:
		return signedNum(x), true
	case int16:
		return signedNum(x), true
	case int32:
		return signedNum(x), true
	case int64:
		return signedNum(x), true
	case int:
		return signedNum(x), true
	case uint8:
		return unsignedNum(x), true
	case uint16:
		return unsignedNum(x), true
	case uint32:
		return unsignedNum(x), true
	case uint64:
		return unsignedNum(x), true
	case uint:
		return unsignedNum(x), true
	case float32:
		return floatNum(x), true
	case float64:
		return floatNum(x), true
	case Int128:
		if x.Hi == 0 && x.Lo <= math.MaxInt64 || x.Hi == -1 && x.Lo > math.MaxInt64 {
			return signedNum(int64(x.Lo)), true
		}
		return number{class: numWide, lo: x.Lo, hi: uint64(x.Hi), neg: x.Hi < 0}, true
	case UInt128:
		if x.Hi == 0 {
			return unsignedNum(x.Lo), true
		}
		return number{class: numWide, lo: x.Lo, hi: x.Hi}, true
	}
	return number{}, false
}

// toInt64 narrows n to int64, reporting whether the value is exact.
func (n number) toInt64() (int64, bool) {
	switch n.class {
	case numSigned:
		return n.i, true
	case numUnsigned:
		if n.u > math.MaxInt64 {
			return 0, false
		}
		return int64(n.u), true
	case numFloat:
		if n.f != math.Trunc(n.f) || n.f < math.MinInt64 || n.f >= math.MaxInt64 {
			return 0, false
		}
		return int64(n.f), true
	}
	return 0, false
}

// toUint64 narrows n to uint64, reporting whether the value is exact.
func (n number) toUint64() (uint64, bool) {
	switch n.class {
	case numSigned:
		if n.i < 0 {
			return 0, false
		}
		return uint64(n.i), true
	case numUnsigned:
		return n.u, true
	case numFloat:
		if n.f != math.Trunc(n.f) || n.f < 0 || n.f >= math.MaxUint64 {
			return 0, false
		}
		return uint64(n.f), true
	}
	return 0, false
}

func (n number) toFloat64() float64 {
	switch n.class {
	case numSigned:
		return float64(n.i)
	case numUnsigned:
		return float64(n.u)
	case numFloat:
		return n.f
	}
	f := float64(n.hi)*math.Exp2(64) + float64(n.lo)
	if n.neg {
		f = -(float64(^n.hi)*math.Exp2(64) + float64(^n.lo) + 1)
	}
	return f
}

func fitSigned[T constraints.Signed](n number) (T, bool) {
	i, ok := n.toInt64()
	if !ok {
		return 0, false
	}
	t := T(i)
	return t, int64(t) == i
}

func fitUnsigned[T constraints.Unsigned](n number) (T, bool) {
	u, ok := n.toUint64()
	if !ok {
		return 0, false
	}
	t := T(u)
	return t, uint64(t) == u
}

// Convert performs an exact numeric conversion of v to the primitive type t.
// Inexact or unsupported conversions fail with ErrTypeMismatch.
func Convert(t *Type, v Value) (Value, error) {
	if TypeOf(v).Equal(t) {
		return v, nil
	}
	if t.Kind == KindPointer {
		switch x := v.(type) {
		case Pointer:
			return Pointer{Type: t, Addr: x.Addr}, nil
		}
	}
	n, ok := toNumber(v)
	if !ok {
		return nil, Errorf(ErrTypeMismatch, "cannot convert %v to %s", TypeOf(v), t)
	}
	var out Value
	switch t {
	case BoolT:
		u, exact := n.toUint64()
		ok = exact && u <= 1
		out = u == 1
	case Int8T:
		out, ok = fitSigned[int8](n)
	case Int16T:
		out, ok = fitSigned[int16](n)
	case Int32T:
		out, ok = fitSigned[int32](n)
	case Int64T:
		out, ok = fitSigned[int64](n)
	case UInt8T:
		out, ok = fitUnsigned[uint8](n)
	case UInt16T:
		out, ok = fitUnsigned[uint16](n)
	case UInt32T:
		out, ok = fitUnsigned[uint32](n)
	case UInt64T:
		out, ok = fitUnsigned[uint64](n)
	case Int128T:
		switch n.class {
		case numWide:
			out, ok = Int128{Lo: n.lo, Hi: int64(n.hi)}, n.neg || n.hi <= math.MaxInt64
		default:
			i, exact := n.toInt64()
			if exact {
				out, ok = Int128{Lo: uint64(i), Hi: i >> 63}, true
			} else if u, uexact := n.toUint64(); uexact {
				out, ok = Int128{Lo: u}, true
			} else {
				ok = false
			}
		}
	case UInt128T:
		switch n.class {
		case numWide:
			out, ok = UInt128{Lo: n.lo, Hi: n.hi}, !n.neg
		default:
			u, exact := n.toUint64()
			out, ok = UInt128{Lo: u}, exact
		}
	case Float32T:
		out, ok = float32(n.toFloat64()), true
	case Float64T:
		out, ok = n.toFloat64(), true
	default:
		if t.Kind == KindPointer {
			u, exact := n.toUint64()
			out, ok = Pointer{Type: t, Addr: uintptr(u)}, exact
		} else {
			ok = false
		}
	}
	if !ok {
		return nil, Errorf(ErrTypeMismatch, "inexact conversion of %v to %s", v, t)
	}
	return out, nil
}
