package rt

import "context"

// ---------------------------------------------------------------------------
// Host collaborators
// ---------------------------------------------------------------------------
//
// The interpreter never reaches for process-wide state. Everything it needs
// from the surrounding runtime is passed in through these interfaces, which
// the host implements with its own synchronization.

// Dispatcher performs calls through the host's generic call mechanism.
type Dispatcher interface {
	// Apply calls args[0] with args[1:], dispatching on runtime types.
	Apply(ctx context.Context, args []Value) (Value, error)
	// Invoke calls an already resolved specialization.
	Invoke(ctx context.Context, mi *MethodInstance, f Value, args []Value) (Value, error)
}

// Binding is a module-scoped global storage cell.
type Binding interface {
	Load() (Value, bool)
	// CheckedAssign stores v, failing for constants and type-restricted
	// bindings.
	CheckedAssign(v Value) error
}

// Bindings is the module-scoped global binding store.
type Bindings interface {
	Get(m *Module, name Symbol) (Value, bool)
	IsBound(m *Module, name Symbol) bool
	GetWritable(m *Module, name Symbol) (Binding, error)
	BindingForMethodDef(m *Module, name Symbol) (Binding, error)
}

// MethodTable is implemented by host values that can own method definitions.
type MethodTable interface {
	MethodTableName() Symbol
}

// MethodTables registers generic functions and methods.
type MethodTables interface {
	// DefineGeneric returns the generic function held by b, creating an
	// empty one if b is unset.
	DefineGeneric(ctx context.Context, m *Module, name Symbol, b Binding) (Value, error)
	// DefineMethod adds a method with signature sig and body to mt (or to
	// the function named by sig when mt is nil), scoped to module m.
	DefineMethod(ctx context.Context, sig Value, mt MethodTable, body Value, m *Module) error
}

// InstanceResolver finds the specializations matching a call signature.
type InstanceResolver interface {
	MethodInstances(ctx context.Context, f Value, argTypes []*Type) ([]*MethodInstance, error)
}

// EntryPointCache produces native entry points for specializations.
type EntryPointCache interface {
	EntryPoint(mi *MethodInstance, world uint64) (uintptr, error)
}

// Clock reports the host's current world age.
type Clock interface {
	World() uint64
}

// Callable is implemented by values that know how to be called, such as
// builtins and opaque closures.
type Callable interface {
	CallValue(ctx context.Context, args []Value) (Value, error)
}
