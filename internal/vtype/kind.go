// Package vtype holds the flat runtime type tags shared by every other
// package in the runtime: the GC, the heap object views, and the VM's
// instruction handlers all classify values through ValueKind/ValueMeta/
// SlotType rather than any richer compile-time type representation.
package vtype

// ValueKind is the flat runtime classification of a vo value. IDs 0-31 are
// reserved for builtin kinds; user-defined struct/interface/named types are
// identified by a MetaId, not by a new ValueKind.
type ValueKind uint8

const (
	Void ValueKind = iota
	Bool
	Int
	Int8
	Int16
	Int32
	Int64
	Uint
	Uint8
	Uint16
	Uint32
	Uint64
	Float32
	Float64
	String
	Slice
	Map
	Struct
	Pointer
	Interface
	Array
	Channel
	Closure
	FuncPtr
)

// FirstUserKind is the first ValueKind id available to user-defined types.
const FirstUserKind ValueKind = 32

// IsInteger reports whether k is one of the signed or unsigned integer kinds.
func (k ValueKind) IsInteger() bool {
	switch k {
	case Int, Int8, Int16, Int32, Int64, Uint, Uint8, Uint16, Uint32, Uint64:
		return true
	}
	return false
}

// IsFloat reports whether k is a floating point kind.
func (k ValueKind) IsFloat() bool {
	return k == Float32 || k == Float64
}

// IsNumeric reports whether k is an integer or float kind.
func (k ValueKind) IsNumeric() bool {
	return k.IsInteger() || k.IsFloat()
}

// IsReference reports whether k denotes a GC-managed heap allocation.
// Interface is excluded: it is two inline slots, never a standalone object.
func (k ValueKind) IsReference() bool {
	switch k {
	case String, Slice, Map, Array, Channel, Closure, Pointer, Struct:
		return true
	}
	return false
}

// MayContainGcRefs reports whether a slot of this kind must be scanned by
// the garbage collector, either because it is itself a GcRef or because it
// is a container whose scan-by-type rule must inspect its elements.
func (k ValueKind) MayContainGcRefs() bool {
	return k.IsReference()
}

// SlotCount is the number of 8-byte stack/field slots a value of this kind
// occupies. Every kind is one slot except Interface, which is two.
func (k ValueKind) SlotCount() uint16 {
	if k == Interface {
		return 2
	}
	return 1
}

// ElemBytes reports a kind's packed byte width: primitives narrower than a
// slot get their natural width; everything else (including all reference
// kinds) gets a full 8-byte slot. internal/heap arrays and slices do not
// pack by this width; they store one full slot per element.
func (k ValueKind) ElemBytes() int {
	switch k {
	case Bool, Int8, Uint8:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	default:
		return 8
	}
}

func (k ValueKind) String() string {
	switch k {
	case Void:
		return "void"
	case Bool:
		return "bool"
	case Int:
		return "int"
	case Int8:
		return "int8"
	case Int16:
		return "int16"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Uint:
		return "uint"
	case Uint8:
		return "uint8"
	case Uint16:
		return "uint16"
	case Uint32:
		return "uint32"
	case Uint64:
		return "uint64"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case String:
		return "string"
	case Slice:
		return "slice"
	case Map:
		return "map"
	case Struct:
		return "struct"
	case Pointer:
		return "pointer"
	case Interface:
		return "interface"
	case Array:
		return "array"
	case Channel:
		return "channel"
	case Closure:
		return "closure"
	case FuncPtr:
		return "funcptr"
	default:
		return "user"
	}
}
