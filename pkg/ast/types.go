package ast

import "fmt"

type TypeKind int

const (
	TYPE_INTEGER TypeKind = iota
	TYPE_BOOL
	TYPE_POINTER
	TYPE_REFERENCE
	TYPE_ARRAY
	TYPE_SLICE
	TYPE_STR
)

// Type describes a value's static type. Integer types carry their width in
// bits; arrays carry their element count; pointers, references, arrays and
// slices carry their base type.
type Type struct {
	Kind   TypeKind
	Width  int
	Signed bool
	Base   *Type
	Len    int64
}

var (
	TypeI8   = &Type{Kind: TYPE_INTEGER, Width: 8, Signed: true}
	TypeI16  = &Type{Kind: TYPE_INTEGER, Width: 16, Signed: true}
	TypeI32  = &Type{Kind: TYPE_INTEGER, Width: 32, Signed: true}
	TypeI64  = &Type{Kind: TYPE_INTEGER, Width: 64, Signed: true}
	TypeU8   = &Type{Kind: TYPE_INTEGER, Width: 8, Signed: false}
	TypeU16  = &Type{Kind: TYPE_INTEGER, Width: 16, Signed: false}
	TypeU32  = &Type{Kind: TYPE_INTEGER, Width: 32, Signed: false}
	TypeU64  = &Type{Kind: TYPE_INTEGER, Width: 64, Signed: false}
	TypeBool = &Type{Kind: TYPE_BOOL}
	TypeStr  = &Type{Kind: TYPE_STR}
)

func NewPointer(base *Type) *Type   { return &Type{Kind: TYPE_POINTER, Base: base} }
func NewReference(base *Type) *Type { return &Type{Kind: TYPE_REFERENCE, Base: base} }
func NewSlice(base *Type) *Type     { return &Type{Kind: TYPE_SLICE, Base: base} }
func NewArray(base *Type, n int64) *Type {
	return &Type{Kind: TYPE_ARRAY, Base: base, Len: n}
}

func (t *Type) IsInteger() bool { return t != nil && t.Kind == TYPE_INTEGER }

// TypesEqual reports structural equality. Pointer and reference types are
// distinct here; interchangeability is an assignment rule, not an equality.
func TypesEqual(a, b *Type) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil || a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case TYPE_INTEGER:
		return a.Width == b.Width && a.Signed == b.Signed
	case TYPE_BOOL, TYPE_STR:
		return true
	case TYPE_POINTER, TYPE_REFERENCE, TYPE_SLICE:
		return TypesEqual(a.Base, b.Base)
	case TYPE_ARRAY:
		return a.Len == b.Len && TypesEqual(a.Base, b.Base)
	}
	return false
}

func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	switch t.Kind {
	case TYPE_INTEGER:
		prefix := "i"
		if !t.Signed {
			prefix = "u"
		}
		return fmt.Sprintf("%s%d", prefix, t.Width)
	case TYPE_BOOL:
		return "bool"
	case TYPE_STR:
		return "str"
	case TYPE_POINTER:
		return "*" + t.Base.String()
	case TYPE_REFERENCE:
		return "&" + t.Base.String()
	case TYPE_ARRAY:
		return fmt.Sprintf("[%s; %d]", t.Base, t.Len)
	case TYPE_SLICE:
		return fmt.Sprintf("[%s]", t.Base)
	}
	return "<unknown>"
}

// SizeOf returns the storage size of t in bytes. Slices occupy a data
// pointer plus a length word.
func SizeOf(t *Type, wordSize int) int64 {
	switch t.Kind {
	case TYPE_INTEGER:
		return int64(t.Width / 8)
	case TYPE_BOOL:
		return 1
	case TYPE_POINTER, TYPE_REFERENCE, TYPE_STR:
		return int64(wordSize)
	case TYPE_ARRAY:
		return t.Len * SizeOf(t.Base, wordSize)
	case TYPE_SLICE:
		return 2 * int64(wordSize)
	}
	return int64(wordSize)
}

func AlignOf(t *Type, wordSize int) int64 {
	switch t.Kind {
	case TYPE_ARRAY:
		return AlignOf(t.Base, wordSize)
	case TYPE_SLICE:
		return int64(wordSize)
	default:
		return SizeOf(t, wordSize)
	}
}

// IntRange returns the inclusive bounds representable by an integer type.
// For u64 the upper bound saturates at the largest signed value the literal
// parser can produce.
func IntRange(t *Type) (min, max int64) {
	if t.Signed {
		max = int64(1)<<(t.Width-1) - 1
		min = -max - 1
		return min, max
	}
	if t.Width == 64 {
		return 0, int64(^uint64(0) >> 1)
	}
	return 0, int64(1)<<t.Width - 1
}

// Truncate wraps v to the representable range of t, mirroring what a store
// of the low bytes does at runtime.
func Truncate(v int64, t *Type) int64 {
	if t.Width == 64 {
		return v
	}
	bits := uint(t.Width)
	masked := uint64(v) & (1<<bits - 1)
	if t.Signed && masked&(1<<(bits-1)) != 0 {
		return int64(masked) - int64(1)<<bits
	}
	return int64(masked)
}
