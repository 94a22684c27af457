package interp

import (
	"context"

	"github.com/chazu/ssaeval/ir"
	"github.com/chazu/ssaeval/rt"
)

// declareMethod handles the one-argument method form: it ensures a generic
// function exists under the given name and returns it.
func (in *Interpreter) declareMethod(ctx context.Context, fr *Frame, e *ir.Method) (rt.Value, error) {
	m := fr.Module
	var name rt.Symbol
	switch n := e.Name.(type) {
	case ir.GlobalRef:
		m, name = n.Module, n.Name
	case ir.SymbolRef:
		name = n.Name
	case ir.Const:
		name, _ = n.Value.(rt.Symbol)
	}
	if name == "" {
		return nil, rt.Errorf(rt.ErrInvalidDeclaration, "method: invalid declaration %v", e.Name)
	}
	b, err := in.host.Bindings.BindingForMethodDef(m, name)
	if err != nil {
		return nil, err
	}
	return in.host.Methods.DefineGeneric(ctx, m, name, b)
}

// defineMethod handles the three-argument form. When the name evaluates to
// a method table the method is added there; otherwise the host picks the
// table from the signature.
func (in *Interpreter) defineMethod(ctx context.Context, fr *Frame, e *ir.Method) error {
	fname, err := in.eval(ctx, fr, e.Name)
	if err != nil {
		return err
	}
	mt, _ := fname.(rt.MethodTable)

	sig, err := in.eval(ctx, fr, e.Sig)
	if err != nil {
		return err
	}
	body, err := in.eval(ctx, fr, e.Body)
	if err != nil {
		return err
	}
	return in.host.Methods.DefineMethod(ctx, sig, mt, body, fr.Module)
}
