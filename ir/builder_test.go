package ir

import (
	"testing"

	"github.com/chazu/ssaeval/rt"
)

func TestBuilderSlotsAndStatements(t *testing.T) {
	b := NewBuilder("sign", "x")
	tmp := b.AddSlot("tmp")
	if tmp.N != 3 {
		t.Errorf("tmp slot = %d, want 3", tmp.N)
	}

	b.SetLine(10)
	s1 := b.Emit(&Assign{LHS: tmp, RHS: C(int64(1))})
	br := b.Emit(Goto{})
	b.SetLine(11)
	target := b.Next()
	b.Emit(&Return{Val: tmp})
	b.Patch(br, Goto{Label: target})

	u := b.Build()
	if u.NSlots() != 3 {
		t.Errorf("NSlots = %d, want 3", u.NSlots())
	}
	if u.NSSA() != 3 {
		t.Errorf("NSSA = %d, want 3", u.NSSA())
	}
	if s1.ID != 1 || s1.Index() != 0 {
		t.Errorf("first SSA = %d (index %d), want 1 (index 0)", s1.ID, s1.Index())
	}
	if g := u.Stmts[1].(Goto); g.Label != 3 {
		t.Errorf("patched goto label = %d, want 3", g.Label)
	}
	if u.SlotFlags[2]&SlotAssigned == 0 {
		t.Error("assigned slot should be flagged")
	}
	if u.Line(2) != 11 || u.Line(0) != 10 || u.Line(99) != 0 {
		t.Errorf("lines = %v", u.Lines)
	}
	if u.SlotName(1) != "x" || u.SlotName(7) != rt.Symbol("_8") {
		t.Errorf("slot names = %v", u.SlotNames)
	}
}

func TestSSACountOverride(t *testing.T) {
	u := &CodeUnit{Stmts: make([]Node, 4), SSACount: 6}
	if u.NSSA() != 6 {
		t.Errorf("NSSA = %d, want 6", u.NSSA())
	}
	if (Slot{N: 1}).Index() != 0 {
		t.Error("slot 1 should map to index 0")
	}
}

func TestToplevelOnly(t *testing.T) {
	if !(&Toplevel{Head: "using"}).IsToplevelOnly() {
		t.Error("using should be toplevel-only")
	}
	if (&Toplevel{Head: "toplevel"}).IsToplevelOnly() {
		t.Error("toplevel wrapper should not be toplevel-only")
	}
}
