package interp

import (
	"context"

	"github.com/chazu/ssaeval/ir"
	"github.com/chazu/ssaeval/rt"
)

// ---------------------------------------------------------------------------
// Control outcome
// ---------------------------------------------------------------------------

// OutcomeKind says how a statement-list run ended.
type OutcomeKind uint8

const (
	// Normal: a Return statement produced Value.
	Normal OutcomeKind = iota
	// Raised: evaluation failed with Err, which may be caught by an
	// enclosing handler scope unless it is a fault.
	Raised
	// LeftScope: a Leave statement exited handler scopes down to Depth.
	LeftScope
)

func (k OutcomeKind) String() string {
	switch k {
	case Normal:
		return "normal"
	case Raised:
		return "raised"
	case LeftScope:
		return "left-scope"
	}
	return "unknown"
}

// Outcome is the result of running a statement list from some point.
type Outcome struct {
	Kind  OutcomeKind
	Value rt.Value
	Err   error
	Depth int
}

func raised(err error) Outcome {
	return Outcome{Kind: Raised, Err: err}
}

// ---------------------------------------------------------------------------
// Driver
// ---------------------------------------------------------------------------

// execute runs fr from its first statement on the task carried by ctx.
func (in *Interpreter) execute(ctx context.Context, fr *Frame) (rt.Value, error) {
	ctx, t := in.task(ctx)
	t.pushFrame(fr)
	defer t.popFrame()

	out := in.run(ctx, t, fr, 0)
	switch out.Kind {
	case Normal:
		return out.Value, nil
	case LeftScope:
		return nil, rt.Faultf("%s: leave escaped its handler scope", fr.name())
	}
	return nil, out.Err
}

// run executes statements of fr starting at ip until a Return, an
// uncaught error, or a Leave that exits a scope opened by a caller of run.
func (in *Interpreter) run(ctx context.Context, t *Task, fr *Frame, ip int) Outcome {
	stmts := fr.Code.Stmts
	for {
		if ip < 0 || ip >= len(stmts) {
			return raised(rt.Faultf("%s: control fell off the statement list at %d", fr.name(), ip+1))
		}
		fr.IP = ip
		if fr.Toplevel {
			t.world = in.world()
		}

		next := ip + 1
		switch s := stmts[ip].(type) {
		case ir.Goto:
			next = s.Label - 1
		case *ir.GotoIfNot:
			v, err := in.eval(ctx, fr, s.Cond)
			if err != nil {
				return raised(err)
			}
			b, ok := v.(bool)
			if !ok {
				return raised(rt.Errorf(rt.ErrTypeMismatch, "if: expected Bool, got %s", rt.TypeOf(v)))
			}
			if !b {
				next = s.Label - 1
			}
		case *ir.Return:
			v, err := in.eval(ctx, fr, s.Val)
			if err != nil {
				return raised(err)
			}
			return Outcome{Kind: Normal, Value: v}
		case *ir.Upsilon:
			if err := in.upsilon(ctx, fr, ip, s); err != nil {
				return raised(err)
			}
		case *ir.Assign:
			if err := in.assign(ctx, fr, s); err != nil {
				return raised(err)
			}
		case ir.Enter:
			resume, out := in.enter(ctx, t, fr, ip, s)
			if out != nil {
				return *out
			}
			// Entering the protected region or a catch block does not
			// cross a φ-resolving edge.
			ip = resume
			continue
		case ir.Leave:
			return in.leave(t, fr, ip, s)
		case *ir.PopException:
			if err := in.popException(ctx, t, fr, s); err != nil {
				return raised(err)
			}
		case ir.NewVar:
			if err := fr.clearSlot(s.Slot.Index()); err != nil {
				return raised(err)
			}
		case ir.LineNumber:
			fr.Line = s.Line
			if !fr.Toplevel {
				if err := fr.setSSA(ir.SSAIndex(ip), rt.Nothing); err != nil {
					return raised(err)
				}
			}
		case *ir.Phi, *ir.PhiC:
			return raised(rt.Faultf("%s: φ-node at %d outside a block entry", fr.name(), ip+1))
		default:
			if err := in.statement(ctx, fr, ip, s); err != nil {
				return raised(err)
			}
		}

		var err error
		if ip, err = in.resolvePhis(ctx, fr, fr.IP, next); err != nil {
			return raised(err)
		}
	}
}

// statement evaluates a statement that is neither control flow nor a
// handler operation. Top-level-only forms are dispatched here too.
func (in *Interpreter) statement(ctx context.Context, fr *Frame, ip int, s ir.Node) error {
	switch e := s.(type) {
	case *ir.Method:
		if e.Sig != nil {
			if !fr.Toplevel {
				return rt.Faultf("%s: method definition outside top level", fr.name())
			}
			return in.defineMethod(ctx, fr, e)
		}
	case *ir.Toplevel:
		if !fr.Toplevel {
			return rt.Faultf("%s: %s expression outside top level", fr.name(), e.Head)
		}
		if in.host.Toplevel == nil {
			return rt.Faultf("%s: no top-level evaluator for %s", fr.name(), e.Head)
		}
		v, err := in.host.Toplevel.EvalToplevel(ctx, fr.Module, e)
		if err != nil {
			return err
		}
		if e.IsToplevelOnly() {
			return nil
		}
		return fr.setSSA(ir.SSAIndex(ip), v)
	case *ir.Meta:
		if name, ok := directive(e); ok {
			if !fr.Toplevel {
				return rt.Faultf("%s: meta %s outside top level", fr.name(), name)
			}
			return in.metaDirective(fr, name, e)
		}
	}
	v, err := in.eval(ctx, fr, s)
	if err != nil {
		return err
	}
	return fr.setSSA(ir.SSAIndex(ip), v)
}

// assign stores into a local slot or a global binding.
func (in *Interpreter) assign(ctx context.Context, fr *Frame, s *ir.Assign) error {
	v, err := in.eval(ctx, fr, s.RHS)
	if err != nil {
		return err
	}
	switch lhs := s.LHS.(type) {
	case ir.Slot:
		return fr.setSlot(lhs.Index(), v)
	case ir.GlobalRef:
		return in.assignGlobal(lhs.Module, lhs.Name, v)
	case ir.SymbolRef:
		return in.assignGlobal(fr.Module, lhs.Name, v)
	}
	return rt.Faultf("%s: invalid assignment target %T", fr.name(), s.LHS)
}

func (in *Interpreter) assignGlobal(m *rt.Module, name rt.Symbol, v rt.Value) error {
	b, err := in.host.Bindings.GetWritable(m, name)
	if err != nil {
		return err
	}
	return b.CheckedAssign(v)
}

// ---------------------------------------------------------------------------
// Top-level meta directives
// ---------------------------------------------------------------------------

func directive(e *ir.Meta) (rt.Symbol, bool) {
	if e.Kind != ir.MetaGeneric || len(e.Args) == 0 {
		return "", false
	}
	name, ok := e.Args[0].(rt.Symbol)
	if !ok {
		return "", false
	}
	switch name {
	case "nospecialize", "specialize", "optlevel", "compile", "infer":
		return name, true
	}
	return "", false
}

func (in *Interpreter) metaDirective(fr *Frame, name rt.Symbol, e *ir.Meta) error {
	m := fr.Module
	switch name {
	case "nospecialize", "specialize":
		if len(e.Args) == 1 {
			m.SetNoSpecialize(name == "nospecialize")
		}
		return nil
	}
	if len(e.Args) != 2 {
		return nil
	}
	n, ok := e.Args[1].(int64)
	if !ok {
		return nil
	}
	switch name {
	case "optlevel":
		m.SetOptLevel(int(n))
	case "compile":
		m.SetCompile(int(n))
	case "infer":
		m.SetInfer(int(n))
	}
	log.Debugf("module %s: %s = %d", m, name, n)
	return nil
}
