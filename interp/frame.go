package interp

import (
	"fmt"

	"github.com/chazu/ssaeval/ir"
	"github.com/chazu/ssaeval/rt"
)

// ---------------------------------------------------------------------------
// Frame: the activation record of one interpreted invocation
// ---------------------------------------------------------------------------

// cell is one storage location. set distinguishes "no value" from a stored
// nil handle.
type cell struct {
	v   rt.Value
	set bool
}

// Frame is the activation record of one interpreted invocation. Slots and
// SSA values share a single contiguous cell array: slots first, then one
// cell per SSA value. A frame is owned by the goroutine running it.
type Frame struct {
	Code     *ir.CodeUnit
	MI       *rt.MethodInstance // nil for top-level thunks and opaque closures
	Module   *rt.Module
	Sparams  []rt.Value
	Toplevel bool
	PreEval  bool // static parameters may still be unbound TypeVars
	IP       int  // 0-based index of the statement being executed
	Line     int

	cells  []cell
	nslots int

	// upsilon maps an Upsilon statement to the PhiC SSA value it feeds,
	// recorded by the Enter prescan.
	upsilon map[ir.SSAIndex]ir.SSAIndex

	resumeAt    int // statement a Leave continues at, -1 when unset
	handlerBase int // handler stack depth when the frame started
}

func newFrame(code *ir.CodeUnit, m *rt.Module, mi *rt.MethodInstance) *Frame {
	fr := &Frame{Code: code, MI: mi, Module: m, resumeAt: -1}
	if code != nil {
		fr.nslots = code.NSlots()
		fr.cells = make([]cell, fr.nslots+code.NSSA())
	}
	return fr
}

func (fr *Frame) name() string {
	if fr.Code == nil {
		return "<expr>"
	}
	return fr.Code.Name
}

func (fr *Frame) slotName(i ir.SlotIndex) rt.Symbol {
	if fr.Code == nil {
		return rt.Symbol(fmt.Sprintf("_%d", int(i)+1))
	}
	return fr.Code.SlotName(i)
}

func (fr *Frame) slotInRange(i ir.SlotIndex) bool {
	return i >= 0 && int(i) < fr.nslots
}

func (fr *Frame) ssaInRange(i ir.SSAIndex) bool {
	return i >= 0 && fr.nslots+int(i) < len(fr.cells)
}

// slot reads a local. An unassigned slot raises UndefinedVariable.
func (fr *Frame) slot(i ir.SlotIndex) (rt.Value, error) {
	if !fr.slotInRange(i) {
		return nil, rt.InvalidRef("%s: slot %d out of range", fr.name(), int(i)+1)
	}
	c := fr.cells[i]
	if !c.set {
		return nil, rt.UndefVar(fr.slotName(i))
	}
	return c.v, nil
}

func (fr *Frame) slotDefined(i ir.SlotIndex) (bool, error) {
	if !fr.slotInRange(i) {
		return false, rt.InvalidRef("%s: slot %d out of range", fr.name(), int(i)+1)
	}
	return fr.cells[i].set, nil
}

func (fr *Frame) setSlot(i ir.SlotIndex, v rt.Value) error {
	if !fr.slotInRange(i) {
		return rt.InvalidRef("%s: slot %d out of range", fr.name(), int(i)+1)
	}
	fr.cells[i] = cell{v: v, set: true}
	return nil
}

func (fr *Frame) clearSlot(i ir.SlotIndex) error {
	if !fr.slotInRange(i) {
		return rt.InvalidRef("%s: slot %d out of range", fr.name(), int(i)+1)
	}
	fr.cells[i] = cell{}
	return nil
}

// ssa reads an SSA value. Reading one that was never produced is a fault:
// well-formed IR only reads values that dominate the use.
func (fr *Frame) ssa(i ir.SSAIndex) (rt.Value, error) {
	if !fr.ssaInRange(i) {
		return nil, rt.InvalidRef("%s: SSA value %%%d out of range", fr.name(), int(i)+1)
	}
	c := fr.cells[fr.nslots+int(i)]
	if !c.set {
		return nil, rt.InvalidRef("%s: SSA value %%%d read before definition", fr.name(), int(i)+1)
	}
	return c.v, nil
}

func (fr *Frame) setCell(i ir.SSAIndex, c cell) error {
	if !fr.ssaInRange(i) {
		return rt.InvalidRef("%s: SSA value %%%d out of range", fr.name(), int(i)+1)
	}
	fr.cells[fr.nslots+int(i)] = c
	return nil
}

func (fr *Frame) setSSA(i ir.SSAIndex, v rt.Value) error {
	return fr.setCell(i, cell{v: v, set: true})
}

func (fr *Frame) clearSSA(i ir.SSAIndex) error {
	return fr.setCell(i, cell{})
}

// typeVars returns the static parameters of the method being run.
func (fr *Frame) typeVars() []*rt.TypeVar {
	if fr.MI != nil && fr.MI.Def != nil {
		return fr.MI.Def.TypeVars
	}
	return nil
}

// bindArgs stores the callee in slot 1 and the arguments after it. For a
// vararg method the trailing arguments are packed into a tuple in the last
// parameter slot. nargs counts the callee.
func (fr *Frame) bindArgs(callee rt.Value, args []rt.Value, nargs int, isva bool) error {
	if isva {
		if nargs < 2 {
			return rt.Faultf("%s: vararg method without a vararg parameter", fr.name())
		}
		if len(args)+2 < nargs {
			return rt.Faultf("%s: %d arguments for a vararg method of %d parameters", fr.name(), len(args), nargs-1)
		}
	} else if len(args)+1 != nargs {
		return rt.Faultf("%s: %d arguments for a method of %d parameters", fr.name(), len(args), nargs-1)
	}
	if nargs > fr.nslots {
		return rt.Faultf("%s: %d parameters but only %d slots", fr.name(), nargs, fr.nslots)
	}
	fr.cells[0] = cell{v: callee, set: true}
	fixed := nargs - 1
	if isva {
		fixed--
	}
	for i := 0; i < fixed; i++ {
		fr.cells[i+1] = cell{v: args[i], set: true}
	}
	if isva {
		rest := make(rt.Tuple, len(args)-fixed)
		copy(rest, args[fixed:])
		fr.cells[nargs-1] = cell{v: rest, set: true}
	}
	return nil
}
