package interp

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/ssaeval/ir"
	"github.com/chazu/ssaeval/rt"
)

// ---------------------------------------------------------------------------
// Backtrace capture
// ---------------------------------------------------------------------------

// NonPtrEntry marks the start of an extended backtrace entry.
const NonPtrEntry = ^uintptr(0)

// InterpFrameTag identifies an interpreter frame in an entry descriptor.
const InterpFrameTag = 1

// Entry is one backtrace buffer element: a raw word, or a runtime value.
type Entry struct {
	Word  uintptr
	Value rt.Value
}

// Descriptor packs an extended-entry header: the count of runtime-value
// words, the count of raw words, the frame tag and a tag-specific header
// (the statement index for interpreter frames).
func Descriptor(njl, nuint, tag int, header uintptr) uintptr {
	return uintptr(njl&7) | uintptr(nuint&7)<<3 | uintptr(tag&15)<<6 | header<<10
}

// DecodeDescriptor is the inverse of Descriptor.
func DecodeDescriptor(d uintptr) (njl, nuint, tag int, header uintptr) {
	return int(d & 7), int(d >> 3 & 7), int(d >> 6 & 15), d >> 10
}

// CaptureFrame writes the entry for fr into buf and returns the number of
// elements written, or 0 if buf is too small. Frames without a
// specialization also record their module.
func CaptureFrame(fr *Frame, buf []Entry) int {
	needModule := fr.MI == nil
	required := 3
	njl := 1
	if needModule {
		required, njl = 4, 2
	}
	if len(buf) < required {
		return 0
	}
	buf[0] = Entry{Word: NonPtrEntry}
	buf[1] = Entry{Word: Descriptor(njl, 0, InterpFrameTag, uintptr(fr.IP))}
	switch {
	case fr.MI != nil:
		buf[2] = Entry{Value: fr.MI}
	case fr.Code != nil:
		buf[2] = Entry{Value: fr.Code}
	default:
		buf[2] = Entry{Value: rt.Nothing}
	}
	if needModule {
		buf[3] = Entry{Value: fr.Module}
	}
	return required
}

// Backtrace captures the task's active frames, innermost first, into at
// most budget elements.
func (t *Task) Backtrace(budget int) []Entry {
	buf := make([]Entry, budget)
	n := 0
	for i := len(t.frames) - 1; i >= 0; i-- {
		w := CaptureFrame(t.frames[i], buf[n:])
		if w == 0 {
			break
		}
		n += w
	}
	return buf[:n]
}

// ---------------------------------------------------------------------------
// Backtrace serialization
// ---------------------------------------------------------------------------

// FrameRecord is the serializable form of a captured interpreter frame.
type FrameRecord struct {
	IP     int    `cbor:"1,keyasint"`
	Method string `cbor:"2,keyasint,omitempty"`
	Code   string `cbor:"3,keyasint,omitempty"`
	Module string `cbor:"4,keyasint,omitempty"`
	Line   int    `cbor:"5,keyasint,omitempty"`
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("interp: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Records decodes a captured buffer into frame records.
func Records(entries []Entry) ([]FrameRecord, error) {
	var out []FrameRecord
	for i := 0; i < len(entries); {
		if entries[i].Word != NonPtrEntry || i+1 >= len(entries) {
			return nil, fmt.Errorf("interp: backtrace entry %d is not an extended entry", i)
		}
		njl, nuint, tag, header := DecodeDescriptor(entries[i+1].Word)
		vals := entries[i+2:]
		if len(vals) < njl+nuint {
			return nil, fmt.Errorf("interp: backtrace entry %d is truncated", i)
		}
		if tag == InterpFrameTag {
			rec := FrameRecord{IP: int(header)}
			for _, e := range vals[:njl] {
				switch v := e.Value.(type) {
				case *rt.MethodInstance:
					rec.Method = v.String()
					if code, ok := methodCode(v); ok {
						rec.Code = code.Name
						rec.Line = code.Line(rec.IP)
					}
				case *ir.CodeUnit:
					rec.Code = v.Name
					rec.Line = v.Line(rec.IP)
				case *rt.Module:
					rec.Module = v.String()
				}
			}
			out = append(out, rec)
		}
		i += 2 + njl + nuint
	}
	return out, nil
}

func methodCode(mi *rt.MethodInstance) (*ir.CodeUnit, bool) {
	if mi.Def == nil {
		return nil, false
	}
	code, ok := mi.Def.Source.(*ir.CodeUnit)
	return code, ok
}

// EncodeBacktrace serializes a captured buffer to canonical CBOR.
func EncodeBacktrace(entries []Entry) ([]byte, error) {
	recs, err := Records(entries)
	if err != nil {
		return nil, err
	}
	return cborEncMode.Marshal(recs)
}

// DecodeBacktrace deserializes frame records produced by EncodeBacktrace.
func DecodeBacktrace(data []byte) ([]FrameRecord, error) {
	var recs []FrameRecord
	if err := cbor.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("interp: unmarshal backtrace: %w", err)
	}
	return recs, nil
}
