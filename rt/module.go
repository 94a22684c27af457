package rt

import (
	"fmt"
	"sync/atomic"
)

// ---------------------------------------------------------------------------
// Module: lexical scope for globals
// ---------------------------------------------------------------------------

// Module is a namespace for global bindings. Bindings themselves live in the
// host's binding store; the module carries identity and compiler settings.
type Module struct {
	Name   Symbol
	Parent *Module

	nospecialize atomic.Bool
	optlevel     atomic.Int32
	compile      atomic.Int32
	infer        atomic.Int32
}

// NewModule creates a module. Unset compiler settings read as -1.
func NewModule(name Symbol, parent *Module) *Module {
	m := &Module{Name: name, Parent: parent}
	m.optlevel.Store(-1)
	m.compile.Store(-1)
	m.infer.Store(-1)
	return m
}

func (m *Module) String() string {
	if m.Parent != nil && m.Parent != m {
		return fmt.Sprintf("%s.%s", m.Parent, m.Name)
	}
	return string(m.Name)
}

// SetNoSpecialize toggles the module-wide nospecialize default.
func (m *Module) SetNoSpecialize(on bool) { m.nospecialize.Store(on) }

// NoSpecialize reports the module-wide nospecialize default.
func (m *Module) NoSpecialize() bool { return m.nospecialize.Load() }

// SetOptLevel sets the module optimization level.
func (m *Module) SetOptLevel(n int) { m.optlevel.Store(int32(n)) }

// OptLevel returns the module optimization level.
func (m *Module) OptLevel() int { return int(m.optlevel.Load()) }

// SetCompile sets the module compile mode.
func (m *Module) SetCompile(n int) { m.compile.Store(int32(n)) }

// Compile returns the module compile mode.
func (m *Module) Compile() int { return int(m.compile.Load()) }

// SetInfer sets the module inference mode.
func (m *Module) SetInfer(n int) { m.infer.Store(int32(n)) }

// Infer returns the module inference mode.
func (m *Module) Infer() int { return int(m.infer.Load()) }

// ---------------------------------------------------------------------------
// Methods and method instances
// ---------------------------------------------------------------------------

// Method is a method definition owned by a generic function.
type Method struct {
	Name     Symbol
	Module   *Module
	Sig      []*Type    // parameter types, the callee itself first
	TypeVars []*TypeVar // static parameters in binding order
	NArgs    int        // parameter count including the callee
	IsVarArg bool
	Source   Value // body, typically an *ir.CodeUnit
}

func (m *Method) String() string {
	return fmt.Sprintf("%s.%s", m.Module, m.Name)
}

// MethodInstance is a specialization of a Method for concrete argument
// types, or a top-level thunk when Def is nil.
type MethodInstance struct {
	Def        *Method
	Module     *Module // owner of a top-level thunk
	SpecTypes  []*Type
	SparamVals []Value
}

// Owner returns the module globals resolve against.
func (mi *MethodInstance) Owner() *Module {
	if mi.Def != nil {
		return mi.Def.Module
	}
	return mi.Module
}

func (mi *MethodInstance) String() string {
	if mi.Def == nil {
		return fmt.Sprintf("toplevel(%s)", mi.Module)
	}
	return fmt.Sprintf("%s%v", mi.Def, mi.SpecTypes)
}
