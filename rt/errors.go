package rt

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Error kinds
// ---------------------------------------------------------------------------

var (
	ErrUndefinedVariable            = errors.New("undefined variable")
	ErrUndefinedField               = errors.New("access to undefined reference")
	ErrInvalidReference             = errors.New("invalid reference")
	ErrTypeMismatch                 = errors.New("type mismatch")
	ErrUnresolvedSymbol             = errors.New("unresolved symbol")
	ErrNullFunctionPointer          = errors.New("null function pointer")
	ErrUnsupportedCallingConvention = errors.New("unsupported calling convention")
	ErrInvalidDeclaration           = errors.New("invalid declaration")
	ErrConstReassignment            = errors.New("invalid redefinition of constant")
)

// Error is a runtime error of a known kind. It is itself a runtime value,
// so catch blocks can inspect it.
type Error struct {
	Kind error
	Name Symbol // offending variable or symbol, if any
	Msg  string
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Name != "":
		return fmt.Sprintf("%v: %s: %s", e.Kind, e.Name, e.Msg)
	case e.Name != "":
		return fmt.Sprintf("%v: %s", e.Kind, e.Name)
	case e.Msg != "":
		return fmt.Sprintf("%v: %s", e.Kind, e.Msg)
	}
	return e.Kind.Error()
}

func (e *Error) Unwrap() error { return e.Kind }

// Errorf creates an Error of the given kind.
func Errorf(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// UndefVar creates an UndefinedVariable error naming sym.
func UndefVar(sym Symbol) *Error {
	return &Error{Kind: ErrUndefinedVariable, Name: sym}
}

// Raise carries a user-raised runtime value.
type Raise struct {
	Value Value
}

func (r *Raise) Error() string {
	return fmt.Sprintf("raised %v", r.Value)
}

// Fault is a consistency fault: malformed IR or an interpreter bug. Faults
// are never caught by handler scopes.
type Fault struct {
	Kind error // optional classification, such as ErrInvalidReference
	Msg  string
}

func (f *Fault) Error() string { return "consistency fault: " + f.Msg }

func (f *Fault) Unwrap() error { return f.Kind }

// InvalidRef creates a Fault for an out-of-range or unset slot or SSA
// reference.
func InvalidRef(format string, args ...any) *Fault {
	return &Fault{Kind: ErrInvalidReference, Msg: fmt.Sprintf(format, args...)}
}

// Faultf creates a Fault.
func Faultf(format string, args ...any) *Fault {
	return &Fault{Msg: fmt.Sprintf(format, args...)}
}

// IsFault reports whether err is, or wraps, a consistency fault.
func IsFault(err error) bool {
	var f *Fault
	return errors.As(err, &f)
}

// ExceptionValue returns the runtime value a catch block observes for err.
func ExceptionValue(err error) Value {
	var r *Raise
	if errors.As(err, &r) {
		return r.Value
	}
	return err
}
