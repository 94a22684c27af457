package interp

import (
	"context"

	"github.com/chazu/ssaeval/ir"
	"github.com/chazu/ssaeval/rt"
)

// ---------------------------------------------------------------------------
// Handler scopes
// ---------------------------------------------------------------------------

// enter opens a handler scope at statement ip and runs the protected region
// that follows it as a nested run. It returns the statement to continue at
// when the region is left through a Leave targeting this scope or when an
// error is caught; otherwise the nested outcome is propagated.
//
// The SSA value of the Enter statement is the exception-log watermark that
// a matching PopException restores.
func (in *Interpreter) enter(ctx context.Context, t *Task, fr *Frame, ip int, s ir.Enter) (int, *Outcome) {
	catchIP, err := in.prescanCatch(fr, s.Catch-1)
	if err != nil {
		out := raised(err)
		return 0, &out
	}
	if err := fr.setSSA(ir.SSAIndex(ip), uint64(len(t.excStack))); err != nil {
		out := raised(err)
		return 0, &out
	}

	depth := len(t.handlers)
	t.handlers = append(t.handlers, handler{frame: fr, enterIP: ip, catchIP: catchIP})
	log.Debugf("task %s: %s:%d: enter handler scope %d", t.ID, fr.name(), ip+1, depth)

	out := in.run(ctx, t, fr, ip+1)
	switch out.Kind {
	case LeftScope:
		if out.Depth != depth {
			return 0, &out
		}
		resume := fr.resumeAt
		fr.resumeAt = -1
		return resume, nil
	case Raised:
		if rt.IsFault(out.Err) {
			return 0, &out
		}
		t.handlers = t.handlers[:depth]
		exc := rt.ExceptionValue(out.Err)
		t.excStack = append(t.excStack, exc)
		log.Debugf("task %s: %s:%d: caught %v", t.ID, fr.name(), catchIP+1, exc)
		return catchIP, nil
	}
	// A return from inside the protected region closes the scope.
	t.handlers = t.handlers[:depth]
	return 0, &out
}

// prescanCatch walks the PhiC nodes that open the catch block at ip, pairs
// each with the Upsilon statements that feed it and marks the PhiC unset.
// It returns the first statement of the catch block after the PhiC run.
func (in *Interpreter) prescanCatch(fr *Frame, ip int) (int, error) {
	stmts := fr.Code.Stmts
	for ip >= 0 && ip < len(stmts) {
		phic, ok := stmts[ip].(*ir.PhiC)
		if !ok {
			break
		}
		for _, u := range phic.Values {
			at := u.Index()
			if at < 0 || int(at) >= len(stmts) {
				return 0, rt.InvalidRef("%s: PhiC at %d references statement %d", fr.name(), ip+1, u.ID)
			}
			if _, ok := stmts[at].(*ir.Upsilon); !ok {
				return 0, rt.Faultf("%s: PhiC at %d references non-Upsilon %T", fr.name(), ip+1, stmts[at])
			}
			if fr.upsilon == nil {
				fr.upsilon = make(map[ir.SSAIndex]ir.SSAIndex)
			}
			fr.upsilon[at] = ir.SSAIndex(ip)
		}
		if err := fr.clearSSA(ir.SSAIndex(ip)); err != nil {
			return 0, err
		}
		ip++
	}
	return ip, nil
}

// leave exits s.N handler scopes. The innermost scope being exited must
// have been opened by fr; control continues after the Leave once the
// nested run of that scope unwinds.
func (in *Interpreter) leave(t *Task, fr *Frame, ip int, s ir.Leave) Outcome {
	depth := len(t.handlers) - s.N
	if s.N <= 0 || depth < fr.handlerBase {
		return raised(rt.Faultf("%s:%d: leave %d with %d open handler scopes",
			fr.name(), ip+1, s.N, len(t.handlers)-fr.handlerBase))
	}
	if t.handlers[depth].frame != fr {
		return raised(rt.Faultf("%s:%d: leave targets a scope of another frame", fr.name(), ip+1))
	}
	t.handlers = t.handlers[:depth]
	fr.resumeAt = ip + 1
	log.Debugf("task %s: %s:%d: leave handler scope %d", t.ID, fr.name(), ip+1, depth)
	return Outcome{Kind: LeftScope, Depth: depth}
}

// popException truncates the exception log to the watermark recorded by an
// Enter.
func (in *Interpreter) popException(ctx context.Context, t *Task, fr *Frame, s *ir.PopException) error {
	v, err := in.eval(ctx, fr, s.State)
	if err != nil {
		return err
	}
	mark, ok := v.(uint64)
	if !ok {
		return rt.Faultf("%s: pop_exception state is %T, not a handler watermark", fr.name(), v)
	}
	if mark > uint64(len(t.excStack)) {
		return rt.Faultf("%s: pop_exception to %d with %d caught exceptions", fr.name(), mark, len(t.excStack))
	}
	clear(t.excStack[mark:])
	t.excStack = t.excStack[:mark]
	return nil
}

// upsilon writes its value into the PhiC it feeds. A nil value marks the
// PhiC as holding no value.
func (in *Interpreter) upsilon(ctx context.Context, fr *Frame, ip int, s *ir.Upsilon) error {
	target, ok := fr.upsilon[ir.SSAIndex(ip)]
	if !ok {
		return rt.Faultf("%s: upsilon at %d feeds no PhiC", fr.name(), ip+1)
	}
	if s.Val == nil {
		return fr.clearSSA(target)
	}
	v, err := in.eval(ctx, fr, s.Val)
	if err != nil {
		return err
	}
	return fr.setSSA(target, v)
}
