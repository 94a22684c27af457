package interp

import (
	"context"
	"fmt"

	"github.com/chazu/ssaeval/ir"
	"github.com/chazu/ssaeval/rt"
)

// OpaqueClosureT is the runtime type of opaque closures.
var OpaqueClosureT = &rt.Type{Name: "OpaqueClosure", Kind: rt.KindStruct, Super: rt.AnyType}

// OpaqueClosure binds a captured environment to a closure body. Calling it
// runs the body with the captures in slot 1 and the explicit arguments in
// the slots after it.
type OpaqueClosure struct {
	ArgTypes *rt.Type // tuple type of the explicit arguments
	IsVarArg bool
	RetLower *rt.Type
	RetUpper *rt.Type
	Source   *rt.Method
	Captures rt.Tuple

	in *Interpreter
}

func (c *OpaqueClosure) TypeOf() *rt.Type { return OpaqueClosureT }

func (c *OpaqueClosure) String() string {
	return fmt.Sprintf("OpaqueClosure(%s, %d captures)", c.Source.Name, len(c.Captures))
}

// CallValue calls the closure with args.
func (c *OpaqueClosure) CallValue(ctx context.Context, args []rt.Value) (rt.Value, error) {
	return c.in.CallOpaqueClosure(ctx, c, args...)
}

func (in *Interpreter) newOpaqueClosure(ctx context.Context, fr *Frame, e *ir.NewOpaqueClosure) (rt.Value, error) {
	vals, err := in.evalAll(ctx, fr, []ir.Node{e.ArgTypes, e.IsVarArg, e.RetLower, e.RetUpper, e.Source})
	if err != nil {
		return nil, err
	}
	argTypes, ok := vals[0].(*rt.Type)
	if !ok || argTypes.Kind != rt.KindTuple {
		return nil, rt.Errorf(rt.ErrTypeMismatch, "new_opaque_closure: argument types must be a tuple type, got %v", vals[0])
	}
	isva, ok := vals[1].(bool)
	if !ok {
		return nil, rt.Errorf(rt.ErrTypeMismatch, "new_opaque_closure: isva must be Bool, got %s", rt.TypeOf(vals[1]))
	}
	lb, ok1 := vals[2].(*rt.Type)
	ub, ok2 := vals[3].(*rt.Type)
	if !ok1 || !ok2 {
		return nil, rt.Errorf(rt.ErrTypeMismatch, "new_opaque_closure: return bounds must be types")
	}
	src, ok := vals[4].(*rt.Method)
	if !ok {
		return nil, rt.Errorf(rt.ErrTypeMismatch, "new_opaque_closure: source must be a method, got %s", rt.TypeOf(vals[4]))
	}
	if _, ok := src.Source.(*ir.CodeUnit); !ok {
		return nil, rt.Errorf(rt.ErrTypeMismatch, "new_opaque_closure: method %s has no code", src)
	}
	captures, err := in.evalAll(ctx, fr, e.Captures)
	if err != nil {
		return nil, err
	}
	return &OpaqueClosure{
		ArgTypes: argTypes,
		IsVarArg: isva,
		RetLower: lb,
		RetUpper: ub,
		Source:   src,
		Captures: rt.Tuple(captures),
		in:       in,
	}, nil
}
