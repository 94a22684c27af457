package host

import (
	"context"

	"github.com/chazu/ssaeval/ir"
	"github.com/chazu/ssaeval/rt"
)

// EvalToplevel evaluates a top-level-only statement in m.
//
//	module name          create a child module bound as a constant
//	using M...           make M's exports visible
//	import M...          bind each M by name
//	export names...      export names of m
//	global names...      declare bindings
//	const names...       declare constant bindings
//	toplevel values...   evaluate nested thunks in order
func (r *Runtime) EvalToplevel(ctx context.Context, m *rt.Module, stmt ir.Node) (rt.Value, error) {
	tl, ok := stmt.(*ir.Toplevel)
	if !ok {
		return nil, rt.Faultf("unexpected top-level statement %T", stmt)
	}
	switch tl.Head {
	case "module":
		name, err := symbolArg(tl, 0)
		if err != nil {
			return nil, err
		}
		child := rt.NewModule(name, m)
		if err := r.SetConst(m, name, child); err != nil {
			return nil, err
		}
		return child, nil
	case "using", "import":
		for _, a := range tl.Args {
			u, ok := a.(*rt.Module)
			if !ok {
				return nil, rt.Errorf(rt.ErrTypeMismatch, "%s: %v is not a module", tl.Head, a)
			}
			if tl.Head == "using" {
				r.Using(m, u)
			} else if err := r.SetConst(m, u.Name, u); err != nil {
				return nil, err
			}
		}
		return rt.Nothing, nil
	case "export", "global", "const":
		for i := range tl.Args {
			name, err := symbolArg(tl, i)
			if err != nil {
				return nil, err
			}
			switch tl.Head {
			case "export":
				r.Export(m, name)
			case "global":
				r.binding(m, name)
			case "const":
				r.binding(m, name).MarkConst()
			}
		}
		return rt.Nothing, nil
	case "toplevel":
		var result rt.Value = rt.Nothing
		for _, a := range tl.Args {
			v, err := r.evalNested(ctx, m, a)
			if err != nil {
				return nil, err
			}
			result = v
		}
		return result, nil
	}
	return nil, rt.Faultf("unknown top-level head %s", tl.Head)
}

func (r *Runtime) evalNested(ctx context.Context, m *rt.Module, v rt.Value) (rt.Value, error) {
	switch x := v.(type) {
	case *ir.CodeUnit:
		in, err := r.interpreter()
		if err != nil {
			return nil, err
		}
		return in.EvalToplevel(ctx, m, x)
	case *ir.Toplevel:
		return r.EvalToplevel(ctx, m, x)
	}
	return v, nil
}

func symbolArg(tl *ir.Toplevel, i int) (rt.Symbol, error) {
	if i < len(tl.Args) {
		if s, ok := tl.Args[i].(rt.Symbol); ok {
			return s, nil
		}
	}
	return "", rt.Errorf(rt.ErrInvalidDeclaration, "%s expects a name", tl.Head)
}
