// Package host is an in-memory reference runtime for the interpreter. It
// implements every collaborator the interpreter consumes:
//
//   - module-scoped global bindings with const and type-restricted cells
//   - generic functions with signature-based dispatch
//   - method instance lookup and a native entry-point cache
//   - a world-age clock bumped by every method definition
//   - a small set of builtins in the Core module
//
// Interpreted method bodies are run through an attached Interpreter.
package host

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/tliron/commonlog"

	"github.com/chazu/ssaeval/ir"
	"github.com/chazu/ssaeval/rt"
)

var log = commonlog.GetLogger("ssaeval.host")

var (
	ErrNoMethod     = errors.New("no method matching")
	ErrAmbiguous    = errors.New("ambiguous method call")
	ErrNotCallable  = errors.New("object is not callable")
	ErrNoEntryPoint = errors.New("no entry point")
)

// Interpreter runs interpreted code on behalf of the runtime.
type Interpreter interface {
	CallMethod(ctx context.Context, mi *rt.MethodInstance, f rt.Value, args ...rt.Value) (rt.Value, error)
	EvalToplevel(ctx context.Context, m *rt.Module, code *ir.CodeUnit) (rt.Value, error)
}

// Runtime is the reference host.
type Runtime struct {
	Core *rt.Module
	Main *rt.Module

	mu       sync.RWMutex
	bindings map[*rt.Module]map[rt.Symbol]*Binding
	usings   map[*rt.Module][]*rt.Module
	exports  map[*rt.Module]map[rt.Symbol]bool

	entryMu   sync.Mutex
	entries   map[*rt.MethodInstance]uintptr
	byEntry   map[uintptr]*rt.MethodInstance
	nextEntry uintptr

	world  atomic.Uint64
	interp atomic.Pointer[Interpreter]
}

// New creates a runtime with Core builtins installed and an empty Main.
func New() *Runtime {
	r := &Runtime{
		Core:      rt.NewModule("Core", nil),
		Main:      rt.NewModule("Main", nil),
		bindings:  make(map[*rt.Module]map[rt.Symbol]*Binding),
		usings:    make(map[*rt.Module][]*rt.Module),
		exports:   make(map[*rt.Module]map[rt.Symbol]bool),
		entries:   make(map[*rt.MethodInstance]uintptr),
		byEntry:   make(map[uintptr]*rt.MethodInstance),
		nextEntry: 0xE000_0000,
	}
	r.world.Store(1)
	r.installBuiltins()
	return r
}

// Attach sets the interpreter used for interpreted bodies.
func (r *Runtime) Attach(in Interpreter) {
	r.interp.Store(&in)
}

func (r *Runtime) interpreter() (Interpreter, error) {
	p := r.interp.Load()
	if p == nil {
		return nil, fmt.Errorf("host: no interpreter attached")
	}
	return *p, nil
}

// World returns the current world age.
func (r *Runtime) World() uint64 { return r.world.Load() }

func (r *Runtime) bumpWorld() uint64 { return r.world.Add(1) }

// CodeFor returns the code unit of an interpreted method instance.
func (r *Runtime) CodeFor(mi *rt.MethodInstance) (*ir.CodeUnit, error) {
	if mi == nil || mi.Def == nil {
		return nil, rt.Faultf("no method for %v", mi)
	}
	code, ok := mi.Def.Source.(*ir.CodeUnit)
	if !ok {
		return nil, rt.Faultf("method %s has no interpreted body", mi.Def)
	}
	return code, nil
}

// ---------------------------------------------------------------------------
// Dispatch
// ---------------------------------------------------------------------------

// Apply calls args[0] with args[1:].
func (r *Runtime) Apply(ctx context.Context, args []rt.Value) (rt.Value, error) {
	if len(args) == 0 {
		return nil, rt.Faultf("call with no callee")
	}
	switch f := args[0].(type) {
	case *Function:
		mi, err := f.dispatch(argTypes(args[1:]))
		if err != nil {
			return nil, err
		}
		return r.Invoke(ctx, mi, f, args[1:])
	case rt.Callable:
		return f.CallValue(ctx, args[1:])
	}
	return nil, fmt.Errorf("%w: %v of type %s", ErrNotCallable, args[0], rt.TypeOf(args[0]))
}

// Invoke calls a resolved specialization.
func (r *Runtime) Invoke(ctx context.Context, mi *rt.MethodInstance, f rt.Value, args []rt.Value) (rt.Value, error) {
	if mi == nil || mi.Def == nil {
		return nil, rt.Faultf("invoke of %v", mi)
	}
	switch body := mi.Def.Source.(type) {
	case *ir.CodeUnit:
		in, err := r.interpreter()
		if err != nil {
			return nil, err
		}
		return in.CallMethod(ctx, mi, f, args...)
	case rt.Callable:
		return body.CallValue(ctx, args)
	}
	return nil, rt.Faultf("method %s has no body", mi.Def)
}

func argTypes(args []rt.Value) []*rt.Type {
	ts := make([]*rt.Type, len(args))
	for i, a := range args {
		ts[i] = rt.TypeOf(a)
	}
	return ts
}

// ---------------------------------------------------------------------------
// Entry points
// ---------------------------------------------------------------------------

// EntryPoint returns a stable pseudo-address for mi. Instances defined
// after world are not yet visible.
func (r *Runtime) EntryPoint(mi *rt.MethodInstance, world uint64) (uintptr, error) {
	if mi == nil {
		return 0, ErrNoEntryPoint
	}
	if world > r.World() {
		return 0, fmt.Errorf("%w: world %d is in the future", ErrNoEntryPoint, world)
	}
	r.entryMu.Lock()
	defer r.entryMu.Unlock()
	if addr, ok := r.entries[mi]; ok {
		return addr, nil
	}
	r.nextEntry += 16
	addr := r.nextEntry
	r.entries[mi] = addr
	r.byEntry[addr] = mi
	return addr, nil
}

// InstanceAt returns the method instance behind an entry point.
func (r *Runtime) InstanceAt(addr uintptr) (*rt.MethodInstance, bool) {
	r.entryMu.Lock()
	defer r.entryMu.Unlock()
	mi, ok := r.byEntry[addr]
	return mi, ok
}
