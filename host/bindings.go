package host

import (
	"sync"

	"github.com/chazu/ssaeval/rt"
)

// ---------------------------------------------------------------------------
// Binding: a global storage cell
// ---------------------------------------------------------------------------

// Binding is a module-scoped global cell.
type Binding struct {
	Module *rt.Module
	Name   rt.Symbol

	mu       sync.RWMutex
	value    rt.Value
	set      bool
	constant bool
	typ      *rt.Type
}

// Load returns the bound value.
func (b *Binding) Load() (rt.Value, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.value, b.set
}

// CheckedAssign stores v. Constants may be assigned once; typed bindings
// only accept instances of their type.
func (b *Binding) CheckedAssign(v rt.Value) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.constant && b.set {
		return &rt.Error{Kind: rt.ErrConstReassignment, Name: b.Name}
	}
	if b.typ != nil && !rt.Isa(v, b.typ) {
		return &rt.Error{Kind: rt.ErrTypeMismatch, Name: b.Name,
			Msg: "cannot assign " + rt.TypeOf(v).String() + " to binding of type " + b.typ.String()}
	}
	b.value, b.set = v, true
	return nil
}

// MarkConst makes the binding constant.
func (b *Binding) MarkConst() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.constant = true
}

// IsConst reports whether the binding is constant.
func (b *Binding) IsConst() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.constant
}

// Restrict limits the binding to instances of t.
func (b *Binding) Restrict(t *rt.Type) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.typ = t
}

// ---------------------------------------------------------------------------
// Binding store
// ---------------------------------------------------------------------------

func (r *Runtime) lookup(m *rt.Module, name rt.Symbol) *Binding {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.bindings[m][name]
}

// resolve finds the binding name refers to in m: its own binding, then
// exported bindings of modules it uses, then Core.
func (r *Runtime) resolve(m *rt.Module, name rt.Symbol) *Binding {
	if b := r.lookup(m, name); b != nil {
		return b
	}
	r.mu.RLock()
	usings := r.usings[m]
	r.mu.RUnlock()
	for _, u := range usings {
		r.mu.RLock()
		exported := r.exports[u][name]
		r.mu.RUnlock()
		if exported {
			if b := r.lookup(u, name); b != nil {
				return b
			}
		}
	}
	if m != r.Core {
		return r.lookup(r.Core, name)
	}
	return nil
}

// Get returns the value name refers to in m.
func (r *Runtime) Get(m *rt.Module, name rt.Symbol) (rt.Value, bool) {
	b := r.resolve(m, name)
	if b == nil {
		return nil, false
	}
	return b.Load()
}

// IsBound reports whether name refers to a value in m.
func (r *Runtime) IsBound(m *rt.Module, name rt.Symbol) bool {
	_, ok := r.Get(m, name)
	return ok
}

// GetWritable returns m's own binding for name, creating it if needed.
func (r *Runtime) GetWritable(m *rt.Module, name rt.Symbol) (rt.Binding, error) {
	return r.binding(m, name), nil
}

// BindingForMethodDef returns the binding a method definition on name
// extends: m's own binding, or an imported generic function.
func (r *Runtime) BindingForMethodDef(m *rt.Module, name rt.Symbol) (rt.Binding, error) {
	if b := r.lookup(m, name); b != nil {
		return b, nil
	}
	if b := r.resolve(m, name); b != nil {
		if v, ok := b.Load(); ok {
			if _, isFn := v.(*Function); isFn && b.Module != r.Core {
				return b, nil
			}
		}
	}
	return r.binding(m, name), nil
}

// Binding returns m's own binding for name, creating it if needed.
func (r *Runtime) Binding(m *rt.Module, name rt.Symbol) *Binding {
	return r.binding(m, name)
}

func (r *Runtime) binding(m *rt.Module, name rt.Symbol) *Binding {
	r.mu.Lock()
	defer r.mu.Unlock()
	tbl := r.bindings[m]
	if tbl == nil {
		tbl = make(map[rt.Symbol]*Binding)
		r.bindings[m] = tbl
	}
	b := tbl[name]
	if b == nil {
		b = &Binding{Module: m, Name: name}
		tbl[name] = b
	}
	return b
}

// SetConst binds name in m to a constant value.
func (r *Runtime) SetConst(m *rt.Module, name rt.Symbol, v rt.Value) error {
	b := r.binding(m, name)
	b.MarkConst()
	return b.CheckedAssign(v)
}

// Using makes the exported bindings of u visible in m.
func (r *Runtime) Using(m, u *rt.Module) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, x := range r.usings[m] {
		if x == u {
			return
		}
	}
	r.usings[m] = append(r.usings[m], u)
}

// Export marks names of m as visible to modules using it.
func (r *Runtime) Export(m *rt.Module, names ...rt.Symbol) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tbl := r.exports[m]
	if tbl == nil {
		tbl = make(map[rt.Symbol]bool)
		r.exports[m] = tbl
	}
	for _, n := range names {
		tbl[n] = true
	}
}
