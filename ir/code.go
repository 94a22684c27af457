package ir

import (
	"fmt"

	"github.com/chazu/ssaeval/rt"
)

// ---------------------------------------------------------------------------
// Index spaces
// ---------------------------------------------------------------------------

// SlotIndex is a 0-based index into the slot region of an activation record.
type SlotIndex int

// SSAIndex is a 0-based index into the SSA region of an activation record.
type SSAIndex int

// Index returns the 0-based slot index.
func (s Slot) Index() SlotIndex { return SlotIndex(s.N - 1) }

// Index returns the 0-based SSA index.
func (s SSA) Index() SSAIndex { return SSAIndex(s.ID - 1) }

// Slot flag bits.
const (
	SlotAssigned uint8 = 1 << iota
	SlotCaptured
	SlotUsedUndef
)

// ---------------------------------------------------------------------------
// CodeUnit: an immutable method, closure or script body
// ---------------------------------------------------------------------------

// CodeUnit is an ordered statement sequence plus the metadata needed to
// size its activation record. It is read-only once built and may be shared
// by concurrent invocations.
type CodeUnit struct {
	Name         string
	Stmts        []Node
	SlotNames    []rt.Symbol
	SlotFlags    []uint8
	SSACount     int // 0 means one SSA value per statement
	StaticParams int
	Lines        []int // statement → source line, optional
}

// NSlots returns the number of local slots.
func (c *CodeUnit) NSlots() int {
	return len(c.SlotFlags)
}

// NSSA returns the number of SSA values.
func (c *CodeUnit) NSSA() int {
	if c.SSACount > 0 {
		return c.SSACount
	}
	return len(c.Stmts)
}

// SlotName returns the name of a slot, or a placeholder.
func (c *CodeUnit) SlotName(i SlotIndex) rt.Symbol {
	if int(i) >= 0 && int(i) < len(c.SlotNames) && c.SlotNames[i] != "" {
		return c.SlotNames[i]
	}
	return rt.Symbol(fmt.Sprintf("_%d", int(i)+1))
}

// Line returns the source line recorded for statement ip (0-based).
func (c *CodeUnit) Line(ip int) int {
	if ip >= 0 && ip < len(c.Lines) {
		return c.Lines[ip]
	}
	return 0
}

func (c *CodeUnit) String() string {
	return fmt.Sprintf("CodeUnit(%s, %d stmts)", c.Name, len(c.Stmts))
}
