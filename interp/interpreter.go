// Package interp executes SSA-form code units directly, without
// compilation. It evaluates expressions, drives control flow through a
// statement list, resolves φ-nodes on block entry, manages handler scopes
// and exception state, processes method definitions, and bridges foreign
// calls.
//
// The package owns no process-wide state. A host runtime supplies
// dispatch, global bindings, method tables and the world clock through the
// Host struct; per-task state (handler stack, exception log, world age and
// the active frames) lives on a Task carried by the context.
package interp

import (
	"context"

	"github.com/tliron/commonlog"

	"github.com/chazu/ssaeval/config"
	"github.com/chazu/ssaeval/ffi"
	"github.com/chazu/ssaeval/ir"
	"github.com/chazu/ssaeval/rt"
)

var log = commonlog.GetLogger("ssaeval.interp")

// CodeSource returns the code unit to interpret for a specialization.
type CodeSource interface {
	CodeFor(mi *rt.MethodInstance) (*ir.CodeUnit, error)
}

// ToplevelEvaluator evaluates host-level top-level statements (module,
// using, import, export, global, const and the nested toplevel wrapper).
type ToplevelEvaluator interface {
	EvalToplevel(ctx context.Context, m *rt.Module, stmt ir.Node) (rt.Value, error)
}

// Host bundles the runtime collaborators the interpreter calls into.
type Host struct {
	Dispatch  rt.Dispatcher
	Bindings  rt.Bindings
	Methods   rt.MethodTables
	Instances rt.InstanceResolver
	Entries   rt.EntryPointCache
	Clock     rt.Clock
	Code      CodeSource
	Toplevel  ToplevelEvaluator
}

// Runtime is implemented by hosts that provide every collaborator at once.
type Runtime interface {
	rt.Dispatcher
	rt.Bindings
	rt.MethodTables
	rt.InstanceResolver
	rt.EntryPointCache
	rt.Clock
	CodeSource
	ToplevelEvaluator
}

// HostOf fills every Host field from a single runtime.
func HostOf(r Runtime) Host {
	return Host{
		Dispatch:  r,
		Bindings:  r,
		Methods:   r,
		Instances: r,
		Entries:   r,
		Clock:     r,
		Code:      r,
		Toplevel:  r,
	}
}

// Interpreter evaluates code units against a host. It is safe for
// concurrent use; each goroutine runs its own Task.
type Interpreter struct {
	host   Host
	cfg    *config.Config
	Bridge *ffi.Bridge
}

// New creates an interpreter. A nil cfg uses config.Default. The foreign
// call bridge defaults to the native backend when one is built in.
func New(h Host, cfg *config.Config) *Interpreter {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Interpreter{
		host:   h,
		cfg:    cfg,
		Bridge: ffi.NewNativeBridge(cfg),
	}
}

// Config returns the interpreter configuration.
func (in *Interpreter) Config() *config.Config { return in.cfg }

func (in *Interpreter) world() uint64 {
	if in.host.Clock == nil {
		return 0
	}
	return in.host.Clock.World()
}
