package interp

import (
	"context"

	"github.com/google/uuid"

	"github.com/chazu/ssaeval/rt"
)

// ---------------------------------------------------------------------------
// Task: per-goroutine interpreter state
// ---------------------------------------------------------------------------

// handler is one open handler scope.
type handler struct {
	frame   *Frame
	enterIP int
	catchIP int
}

// Task holds the state one logical thread of evaluation threads through
// nested invocations: the handler stack, the log of caught exceptions, the
// world age and the active frames. A Task must not be shared between
// goroutines.
type Task struct {
	ID uuid.UUID

	handlers []handler
	excStack []rt.Value
	world    uint64
	frames   []*Frame
}

// NewTask creates an empty task.
func NewTask() *Task {
	return &Task{ID: uuid.New()}
}

type taskKey struct{}

// WithTask returns a context carrying t.
func WithTask(ctx context.Context, t *Task) context.Context {
	return context.WithValue(ctx, taskKey{}, t)
}

// TaskFrom returns the task carried by ctx.
func TaskFrom(ctx context.Context) (*Task, bool) {
	t, ok := ctx.Value(taskKey{}).(*Task)
	return t, ok
}

// task returns the task carried by ctx, attaching a fresh one if there is
// none.
func (in *Interpreter) task(ctx context.Context) (context.Context, *Task) {
	if t, ok := TaskFrom(ctx); ok {
		return ctx, t
	}
	t := NewTask()
	t.world = in.world()
	log.Debugf("task %s: started at world %d", t.ID, t.world)
	return WithTask(ctx, t), t
}

// HandlerDepth returns the number of open handler scopes.
func (t *Task) HandlerDepth() int { return len(t.handlers) }

// Exceptions returns a copy of the caught-exception log, innermost last.
func (t *Task) Exceptions() []rt.Value {
	return append([]rt.Value(nil), t.excStack...)
}

// CurrentException returns the innermost caught exception, or Nothing.
func (t *Task) CurrentException() rt.Value {
	if n := len(t.excStack); n > 0 {
		return t.excStack[n-1]
	}
	return rt.Nothing
}

// World returns the task's current world age.
func (t *Task) World() uint64 { return t.world }

// Frames returns the active frames, innermost last.
func (t *Task) Frames() []*Frame {
	return append([]*Frame(nil), t.frames...)
}

func (t *Task) pushFrame(fr *Frame) {
	fr.handlerBase = len(t.handlers)
	t.frames = append(t.frames, fr)
}

// popFrame removes the innermost frame and closes any handler scopes it
// left open.
func (t *Task) popFrame() {
	n := len(t.frames) - 1
	fr := t.frames[n]
	t.frames[n] = nil
	t.frames = t.frames[:n]
	if len(t.handlers) > fr.handlerBase {
		t.handlers = t.handlers[:fr.handlerBase]
	}
}
