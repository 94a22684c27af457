// Package ir defines the SSA-form intermediate representation executed by
// the interpreter: the node taxonomy, code units and a builder.
//
// Statement numbers, slot numbers and SSA ids are 1-based as they appear in
// printed IR. The interpreter converts them to the 0-based SlotIndex and
// SSAIndex spaces at the point of use.
package ir

import (
	"github.com/chazu/ssaeval/rt"
)

// Node is any IR node: a value reference, an expression or a statement.
type Node interface {
	irNode()
}

// ---------------------------------------------------------------------------
// Value references
// ---------------------------------------------------------------------------

// Slot references a local variable slot (arguments included).
type Slot struct {
	N int // 1-based
}

// SSA references the value defined by statement ID.
type SSA struct {
	ID int // 1-based
}

// Const is a literal value.
type Const struct {
	Value rt.Value
}

// GlobalRef references a global binding in a specific module.
type GlobalRef struct {
	Module *rt.Module
	Name   rt.Symbol
}

// SymbolRef is a bare name resolved in the frame's module.
type SymbolRef struct {
	Name rt.Symbol
}

// StaticParam references the Nth (1-based) static parameter value.
type StaticParam struct {
	N int
}

// Pi asserts that Val has type Type and returns it unchanged.
type Pi struct {
	Val  Node
	Type *rt.Type
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// Call performs dynamic dispatch on Args[0] applied to Args[1:].
type Call struct {
	Args []Node
}

// Invoke calls a pre-resolved specialization; Args[0] is the callee.
type Invoke struct {
	Target *rt.MethodInstance
	Args   []Node
}

// InvokeModify dispatches like Call over Args[1:]; Args[0] names the
// modify operation and is not evaluated.
type InvokeModify struct {
	Args []Node
}

// IsDefined tests a slot, global or static parameter without raising.
type IsDefined struct {
	Target Node
}

// ThrowUndefIfNot raises UndefinedVariable for Var unless Cond is true.
type ThrowUndefIfNot struct {
	Var  rt.Symbol
	Cond Node
}

// UndefRefMarker is the reserved ThrowUndefIfNot marker that reports an
// undefined field instead of an undefined variable.
const UndefRefMarker rt.Symbol = "getfield_undefref"

// New constructs Args[0] (a struct type) from positional Args[1:].
type New struct {
	Args []Node
}

// SplatNew constructs Type with fields unpacked from the tuple Fields.
type SplatNew struct {
	Type   Node
	Fields Node
}

// NewOpaqueClosure binds Captures to a closure body.
type NewOpaqueClosure struct {
	ArgTypes Node // tuple type of the explicit arguments
	IsVarArg Node
	RetLower Node
	RetUpper Node
	Source   Node // evaluates to *rt.Method whose Source is a *CodeUnit
	Captures []Node
}

// ForeignCall invokes a native function.
type ForeignCall struct {
	Target   Node // symbol, string, pointer, integer, or (name, library) tuple
	Ret      *rt.Type
	ArgTypes []*rt.Type
	NVarArg  int
	CallConv rt.Symbol
	Args     []Node
	Roots    []Node // values kept alive for the duration of the call
}

// CFunction produces a native-callable pointer to the unique
// specialization of Func for ArgTypes.
type CFunction struct {
	PtrType  *rt.Type
	Func     Node
	Ret      *rt.Type
	ArgTypes []*rt.Type
	CallConv rt.Symbol
}

// Method declares (Sig == nil) or defines a method. The defining form is a
// top-level statement.
type Method struct {
	Name Node // GlobalRef or SymbolRef for the declaring form, any value otherwise
	Sig  Node
	Body Node
}

// TheException evaluates to the innermost caught exception.
type TheException struct{}

// BoundsCheck evaluates to true.
type BoundsCheck struct{}

// MetaKind enumerates annotations with no runtime effect.
type MetaKind uint8

const (
	MetaGeneric MetaKind = iota
	MetaInbounds
	MetaLoopInfo
	MetaAliasScope
	MetaPopAliasScope
	MetaInline
	MetaNoInline
	MetaCoverageEffect
	MetaGCPreserveBegin
	MetaGCPreserveEnd
)

// Meta is a hint or directive. At top level, generic meta directives can
// adjust module settings.
type Meta struct {
	Kind MetaKind
	Args []rt.Value
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// Goto jumps to statement Label.
type Goto struct {
	Label int
}

// GotoIfNot jumps to Label when Cond is false and falls through when true.
type GotoIfNot struct {
	Cond  Node
	Label int
}

// Return ends the invocation with Val.
type Return struct {
	Val Node
}

// Assign stores RHS into a slot or a global.
type Assign struct {
	LHS Node // Slot, GlobalRef or SymbolRef
	RHS Node
}

// NewVar invalidates a slot.
type NewVar struct {
	Slot Slot
}

// Enter opens a handler scope whose catch block starts at statement Catch.
type Enter struct {
	Catch int
}

// Leave exits N handler scopes.
type Leave struct {
	N int
}

// PopException restores the exception log to the watermark produced by an
// Enter statement.
type PopException struct {
	State Node
}

// Phi merges values at a block entry. Edges are 1-based statement numbers
// of the predecessor branch; a nil Values entry means "no value".
type Phi struct {
	Edges  []int
	Values []Node
}

// PhiC merges values that survive unwinding into a catch block. Each value
// is an SSA reference to an Upsilon statement.
type PhiC struct {
	Values []SSA
}

// Upsilon feeds Val (nil for "no value") into its paired PhiC.
type Upsilon struct {
	Val Node
}

// LineNumber records a source position.
type LineNumber struct {
	Line int
	File rt.Symbol
}

// Toplevel is a nested top-level expression handed to the host.
type Toplevel struct {
	Head rt.Symbol
	Args []rt.Value
}

// IsToplevelOnly reports whether the statement may only appear at top level
// and is handled by the host (module, import, using, export, global, const).
func (t *Toplevel) IsToplevelOnly() bool {
	switch t.Head {
	case "module", "import", "using", "export", "global", "const":
		return true
	}
	return false
}

func (Slot) irNode() {}
func (SSA) irNode() {}
func (Const) irNode() {}
func (GlobalRef) irNode() {}
func (SymbolRef) irNode() {}
func (StaticParam) irNode() {}
func (*Pi) irNode() {}
func (*Call) irNode() {}
func (*Invoke) irNode() {}
func (*InvokeModify) irNode() {}
func (*IsDefined) irNode() {}
func (*ThrowUndefIfNot) irNode() {}
func (*New) irNode() {}
func (*SplatNew) irNode() {}
func (*NewOpaqueClosure) irNode() {}
func (*ForeignCall) irNode() {}
func (*CFunction) irNode() {}
func (*Method) irNode() {}
func (TheException) irNode() {}
func (BoundsCheck) irNode() {}
func (*Meta) irNode() {}
func (Goto) irNode() {}
func (*GotoIfNot) irNode() {}
func (*Return) irNode() {}
func (*Assign) irNode() {}
func (NewVar) irNode() {}
func (Enter) irNode() {}
func (Leave) irNode() {}
func (*PopException) irNode() {}
func (*Phi) irNode() {}
func (*PhiC) irNode() {}
func (*Upsilon) irNode() {}
func (LineNumber) irNode() {}
func (*Toplevel) irNode() {}
