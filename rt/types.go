package rt

import (
	"strings"
)

// ---------------------------------------------------------------------------
// Type descriptors
// ---------------------------------------------------------------------------

// Kind classifies a type descriptor.
type Kind uint8

const (
	KindAny      Kind = iota // the top type
	KindAbstract             // an abstract supertype (Number, Integer, ...)
	KindNothing
	KindBool
	KindInt   // signed integer
	KindUInt  // unsigned integer
	KindFloat // IEEE float
	KindBits  // opaque primitive bits type
	KindPointer
	KindRef
	KindSymbol
	KindString
	KindModule
	KindType
	KindTuple
	KindStruct
	KindArray
	KindVar // reference to a method static parameter
)

// Type describes a runtime type.
type Type struct {
	Name       string
	Kind       Kind
	Size       int     // byte size of primitive kinds
	Super      *Type   // abstract supertype, nil for Any
	Params     []*Type // element type for Ptr/Ref/Array, element types for tuples
	Fields     []Symbol
	FieldTypes []*Type
	Mutable    bool
	Var        *TypeVar // set for KindVar
}

// Abstract supertypes.
var (
	AnyType      = &Type{Name: "Any", Kind: KindAny}
	NumberType   = &Type{Name: "Number", Kind: KindAbstract, Super: AnyType}
	RealType     = &Type{Name: "Real", Kind: KindAbstract, Super: NumberType}
	IntegerType  = &Type{Name: "Integer", Kind: KindAbstract, Super: RealType}
	SignedType   = &Type{Name: "Signed", Kind: KindAbstract, Super: IntegerType}
	UnsignedType = &Type{Name: "Unsigned", Kind: KindAbstract, Super: IntegerType}
	FloatType    = &Type{Name: "AbstractFloat", Kind: KindAbstract, Super: RealType}
)

// Concrete builtin types.
var (
	NothingT = &Type{Name: "Nothing", Kind: KindNothing, Super: AnyType}
	BoolT    = &Type{Name: "Bool", Kind: KindBool, Size: 1, Super: IntegerType}
	Int8T    = &Type{Name: "Int8", Kind: KindInt, Size: 1, Super: SignedType}
	Int16T   = &Type{Name: "Int16", Kind: KindInt, Size: 2, Super: SignedType}
	Int32T   = &Type{Name: "Int32", Kind: KindInt, Size: 4, Super: SignedType}
	Int64T   = &Type{Name: "Int64", Kind: KindInt, Size: 8, Super: SignedType}
	Int128T  = &Type{Name: "Int128", Kind: KindInt, Size: 16, Super: SignedType}
	UInt8T   = &Type{Name: "UInt8", Kind: KindUInt, Size: 1, Super: UnsignedType}
	UInt16T  = &Type{Name: "UInt16", Kind: KindUInt, Size: 2, Super: UnsignedType}
	UInt32T  = &Type{Name: "UInt32", Kind: KindUInt, Size: 4, Super: UnsignedType}
	UInt64T  = &Type{Name: "UInt64", Kind: KindUInt, Size: 8, Super: UnsignedType}
	UInt128T = &Type{Name: "UInt128", Kind: KindUInt, Size: 16, Super: UnsignedType}
	Float16T = &Type{Name: "Float16", Kind: KindFloat, Size: 2, Super: FloatType}
	Float32T = &Type{Name: "Float32", Kind: KindFloat, Size: 4, Super: FloatType}
	Float64T = &Type{Name: "Float64", Kind: KindFloat, Size: 8, Super: FloatType}
	SymbolT  = &Type{Name: "Symbol", Kind: KindSymbol, Super: AnyType}
	StringT  = &Type{Name: "String", Kind: KindString, Super: AnyType}
	ModuleT  = &Type{Name: "Module", Kind: KindModule, Super: AnyType, Mutable: true}
	TypeT    = &Type{Name: "Type", Kind: KindType, Super: AnyType}
	TypeVarT = &Type{Name: "TypeVar", Kind: KindStruct, Super: AnyType}
)

// PtrOf returns the raw pointer type Ptr{elem}.
func PtrOf(elem *Type) *Type {
	return &Type{Kind: KindPointer, Size: 8, Super: AnyType, Params: []*Type{elem}}
}

// RefOf returns the reference type Ref{elem}.
func RefOf(elem *Type) *Type {
	return &Type{Kind: KindRef, Super: AnyType, Params: []*Type{elem}, Mutable: true}
}

// ArrayOf returns the array type Array{elem}.
func ArrayOf(elem *Type) *Type {
	return &Type{Kind: KindArray, Super: AnyType, Params: []*Type{elem}, Mutable: true}
}

// TupleOf returns the tuple type with the given element types.
func TupleOf(elems ...*Type) *Type {
	return &Type{Kind: KindTuple, Super: AnyType, Params: elems}
}

// VarType returns a type that stands for the static parameter tv.
func VarType(tv *TypeVar) *Type {
	return &Type{Name: string(tv.Name), Kind: KindVar, Var: tv}
}

// NewStructType declares a struct type with the given fields.
func NewStructType(name string, mutable bool, fields []Symbol, types []*Type) *Type {
	return &Type{
		Name:       name,
		Kind:       KindStruct,
		Super:      AnyType,
		Fields:     fields,
		FieldTypes: types,
		Mutable:    mutable,
	}
}

// NewBitsType declares an opaque primitive type of the given byte size.
func NewBitsType(name string, size int) *Type {
	return &Type{Name: name, Kind: KindBits, Size: size, Super: AnyType}
}

// Elem returns the element type of a Ptr, Ref or Array type.
func (t *Type) Elem() *Type {
	if len(t.Params) == 0 {
		return AnyType
	}
	return t.Params[0]
}

// IsPrimitive reports whether t is a fixed-size bits type.
func (t *Type) IsPrimitive() bool {
	switch t.Kind {
	case KindBool, KindInt, KindUInt, KindFloat, KindBits, KindPointer:
		return true
	}
	return false
}

// HasVars reports whether t mentions any static parameter.
func (t *Type) HasVars() bool {
	if t == nil {
		return false
	}
	if t.Kind == KindVar {
		return true
	}
	for _, p := range t.Params {
		if p.HasVars() {
			return true
		}
	}
	return false
}

// Equal reports structural type equality.
func (t *Type) Equal(u *Type) bool {
	if t == u {
		return true
	}
	if t == nil || u == nil || t.Kind != u.Kind {
		return false
	}
	switch t.Kind {
	case KindPointer, KindRef, KindArray, KindTuple:
		if len(t.Params) != len(u.Params) {
			return false
		}
		for i := range t.Params {
			if !t.Params[i].Equal(u.Params[i]) {
				return false
			}
		}
		return true
	case KindVar:
		return t.Var == u.Var
	}
	// Named types are singletons.
	return false
}

func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	switch t.Kind {
	case KindPointer:
		return "Ptr{" + t.Elem().String() + "}"
	case KindRef:
		return "Ref{" + t.Elem().String() + "}"
	case KindArray:
		return "Array{" + t.Elem().String() + "}"
	case KindTuple:
		parts := make([]string, len(t.Params))
		for i, p := range t.Params {
			parts[i] = p.String()
		}
		return "Tuple{" + strings.Join(parts, ", ") + "}"
	}
	return t.Name
}

// Subtype reports whether t <: u.
func (t *Type) Subtype(u *Type) bool {
	if u.Kind == KindAny || u.Kind == KindVar {
		return true
	}
	if t.Equal(u) {
		return true
	}
	if t.Kind == KindTuple && u.Kind == KindTuple {
		if len(t.Params) != len(u.Params) {
			return false
		}
		for i := range t.Params {
			if !t.Params[i].Subtype(u.Params[i]) {
				return false
			}
		}
		return true
	}
	for s := t.Super; s != nil; s = s.Super {
		if s == u {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Runtime type of a value
// ---------------------------------------------------------------------------

// TypeOf returns the runtime type of v.
func TypeOf(v Value) *Type {
	switch x := v.(type) {
	case NothingType:
		return NothingT
	case bool:
		return BoolT
	case int8:
		return Int8T
	case int16:
		return Int16T
	case int32:
		return Int32T
	case int64:
		return Int64T
	case int:
		return Int64T
	case Int128:
		return Int128T
	case uint8:
		return UInt8T
	case uint16:
		return UInt16T
	case uint32:
		return UInt32T
	case uint64:
		return UInt64T
	case uint:
		return UInt64T
	case UInt128:
		return UInt128T
	case float32:
		return Float32T
	case float64:
		return Float64T
	case Symbol:
		return SymbolT
	case string:
		return StringT
	case Bits:
		return x.Type
	case Pointer:
		return x.Type
	case *Ref:
		return x.Type
	case *Struct:
		return x.Type
	case Tuple:
		elems := make([]*Type, len(x))
		for i, e := range x {
			elems[i] = TypeOf(e)
		}
		return TupleOf(elems...)
	case *Type:
		return TypeT
	case *TypeVar:
		return TypeVarT
	case *Module:
		return ModuleT
	case Typed:
		return x.TypeOf()
	}
	return AnyType
}

// Isa reports whether v is an instance of t.
func Isa(v Value, t *Type) bool {
	return TypeOf(v).Subtype(t)
}

// ---------------------------------------------------------------------------
// Static parameter instantiation
// ---------------------------------------------------------------------------

// Instantiate substitutes bound static parameter values into t. Variables
// whose value is not itself a type (or is still a TypeVar) are left in place.
func Instantiate(t *Type, vars []*TypeVar, vals []Value) *Type {
	if t == nil || !t.HasVars() {
		return t
	}
	if t.Kind == KindVar {
		for i, tv := range vars {
			if tv == t.Var && i < len(vals) {
				if bound, ok := vals[i].(*Type); ok {
					return bound
				}
			}
		}
		return t
	}
	cp := *t
	cp.Params = make([]*Type, len(t.Params))
	for i, p := range t.Params {
		cp.Params[i] = Instantiate(p, vars, vals)
	}
	return &cp
}
