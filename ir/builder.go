package ir

import "github.com/chazu/ssaeval/rt"

// ---------------------------------------------------------------------------
// Builder: helper for constructing code units
// ---------------------------------------------------------------------------

// Builder helps construct CodeUnit instances statement by statement.
type Builder struct {
	unit *CodeUnit
	line int
}

// NewBuilder creates a builder for a code unit whose first slots are the
// callee and its arguments.
func NewBuilder(name string, args ...rt.Symbol) *Builder {
	b := &Builder{unit: &CodeUnit{Name: name}}
	b.AddSlot("#self#")
	for _, a := range args {
		b.AddSlot(a)
	}
	return b
}

// AddSlot appends a local slot and returns a reference to it.
func (b *Builder) AddSlot(name rt.Symbol) Slot {
	b.unit.SlotNames = append(b.unit.SlotNames, name)
	b.unit.SlotFlags = append(b.unit.SlotFlags, 0)
	return Slot{N: len(b.unit.SlotNames)}
}

// SetStaticParams sets the number of static parameters.
func (b *Builder) SetStaticParams(n int) *Builder {
	b.unit.StaticParams = n
	return b
}

// SetLine sets the source line attached to subsequently emitted statements.
func (b *Builder) SetLine(line int) *Builder {
	b.line = line
	return b
}

// Emit appends a statement and returns the SSA reference it defines.
func (b *Builder) Emit(stmt Node) SSA {
	b.unit.Stmts = append(b.unit.Stmts, stmt)
	b.unit.Lines = append(b.unit.Lines, b.line)
	if a, ok := stmt.(*Assign); ok {
		if s, ok := a.LHS.(Slot); ok && s.N >= 1 && s.N <= len(b.unit.SlotFlags) {
			b.unit.SlotFlags[s.N-1] |= SlotAssigned
		}
	}
	return SSA{ID: len(b.unit.Stmts)}
}

// Next returns the statement number the next Emit will use, for branch
// targets.
func (b *Builder) Next() int {
	return len(b.unit.Stmts) + 1
}

// Patch replaces an already emitted statement, for forward branches.
func (b *Builder) Patch(at SSA, stmt Node) {
	b.unit.Stmts[at.ID-1] = stmt
}

// Build returns the finished code unit.
func (b *Builder) Build() *CodeUnit {
	return b.unit
}

// C is shorthand for a constant node.
func C(v rt.Value) Const {
	return Const{Value: v}
}
