package rt

import (
	"math"
)

// ---------------------------------------------------------------------------
// Raw bits boxing
// ---------------------------------------------------------------------------

// ToBits returns the raw bit pattern of a primitive value. Signed integers
// are sign-extended into lo; hi carries the upper word of 16-byte values.
func ToBits(v Value) (lo, hi uint64, ok bool) {
	switch x := v.(type) {
	case bool:
		if x {
			return 1, 0, true
		}
		return 0, 0, true
	case int8:
		return uint64(int64(x)), 0, true
	case int16:
		return uint64(int64(x)), 0, true
	case int32:
		return uint64(int64(x)), 0, true
	case int64:
		return uint64(x), 0, true
	case int:
		return uint64(x), 0, true
	case uint8:
		return uint64(x), 0, true
	case uint16:
		return uint64(x), 0, true
	case uint32:
		return uint64(x), 0, true
	case uint64:
		return x, 0, true
	case uint:
		return uint64(x), 0, true
	case float32:
		return uint64(math.Float32bits(x)), 0, true
	case float64:
		return math.Float64bits(x), 0, true
	case Int128:
		return x.Lo, uint64(x.Hi), true
	case UInt128:
		return x.Lo, x.Hi, true
	case Pointer:
		return uint64(x.Addr), 0, true
	case Bits:
		return x.Lo, x.Hi, true
	}
	return 0, 0, false
}

func sizeMask(size int) uint64 {
	if size >= 8 {
		return math.MaxUint64
	}
	return 1<<(uint(size)*8) - 1
}

// FromBits boxes a raw bit pattern as an instance of the primitive type t.
func FromBits(t *Type, lo, hi uint64) (Value, error) {
	switch t.Kind {
	case KindNothing:
		return Nothing, nil
	case KindBool:
		return lo&0xff != 0, nil
	case KindInt:
		switch t.Size {
		case 1:
			return int8(lo), nil
		case 2:
			return int16(lo), nil
		case 4:
			return int32(lo), nil
		case 8:
			return int64(lo), nil
		case 16:
			return Int128{Lo: lo, Hi: int64(hi)}, nil
		}
	case KindUInt:
		switch t.Size {
		case 1:
			return uint8(lo), nil
		case 2:
			return uint16(lo), nil
		case 4:
			return uint32(lo), nil
		case 8:
			return lo, nil
		case 16:
			return UInt128{Lo: lo, Hi: hi}, nil
		}
	case KindFloat:
		switch t.Size {
		case 4:
			return math.Float32frombits(uint32(lo)), nil
		case 8:
			return math.Float64frombits(lo), nil
		}
	case KindPointer:
		return Pointer{Type: t, Addr: uintptr(lo)}, nil
	case KindBits:
		if t.Size > 16 {
			break
		}
		b := Bits{Type: t, Lo: lo & sizeMask(t.Size)}
		if t.Size > 8 {
			b.Lo, b.Hi = lo, hi&sizeMask(t.Size-8)
		}
		return b, nil
	}
	return nil, Errorf(ErrUnsupportedCallingConvention, "cannot box %d-byte %s", t.Size, t)
}
