// Package bytecode defines the on-disk and in-memory module format: the
// fixed-width instruction encoding, constants, function/struct/interface
// metadata, itabs, and the binary (.vob) / text (.vot) module codecs.
package bytecode

// Instruction is the fixed 8-byte encoding every opcode uses:
// op:8, flags:8, a:16, b:16, c:16. a/b/c are register or operand fields
// whose meaning is opcode-specific; b/c together also double as a packed
// 32-bit immediate via Imm32/Imm32Unsigned.
type Instruction struct {
	Op    Opcode
	Flags uint8
	A     uint16
	B     uint16
	C     uint16
}

// NewInstruction builds a zero-flags instruction.
func NewInstruction(op Opcode, a, b, c uint16) Instruction {
	return Instruction{Op: op, A: a, B: b, C: c}
}

// Imm32 reinterprets B|C<<16 as a signed 32-bit immediate.
func (i Instruction) Imm32() int32 { return int32(i.Imm32Unsigned()) }

// Imm32Unsigned reinterprets B|C<<16 as an unsigned 32-bit immediate.
func (i Instruction) Imm32Unsigned() uint32 {
	return uint32(i.B) | uint32(i.C)<<16
}

// Opcode is the 8-bit operation tag. Ordering and numbering match
// original_source's instruction.rs exactly, family comment blocks
// included, so a disassembly reads the same shape as the original.
type Opcode uint8

const (
	// LOAD: load immediate/constant
	Nop Opcode = iota
	LoadNil
	LoadTrue
	LoadFalse
	LoadInt
	LoadConst

	// COPY: stack slot copy
	Copy
	CopyN

	// SLOT: stack dynamic indexing (stack-allocated arrays)
	SlotGet
	SlotSet
	SlotGetN
	SlotSetN

	// GLOBAL: global variables
	GlobalGet
	GlobalGetN
	GlobalSet
	GlobalSetN

	// PTR: heap pointer operations
	PtrNew
	PtrClone
	PtrGet
	PtrSet
	PtrGetN
	PtrSetN

	// ARITH: integer arithmetic
	AddI
	SubI
	MulI
	DivI
	ModI
	NegI

	// ARITH: float arithmetic
	AddF
	SubF
	MulF
	DivF
	NegF

	// CMP: integer comparison
	EqI
	NeI
	LtI
	LeI
	GtI
	GeI

	// CMP: float comparison
	EqF
	NeF
	LtF
	LeF
	GtF
	GeF

	// CMP: reference comparison
	EqRef
	NeRef
	IsNil

	// BIT: bitwise operations
	And
	Or
	Xor
	Not
	Shl
	ShrS
	ShrU

	// LOGIC: logical operations
	BoolNot

	// JUMP: control flow
	Jump
	JumpIf
	JumpIfNot

	// CALL: function calls
	Call
	CallExtern
	CallClosure
	CallIface
	Return

	// STR: string operations
	StrNew
	StrLen
	StrIndex
	StrConcat
	StrSlice
	StrEq
	StrNe
	StrLt
	StrLe
	StrGt
	StrGe

	// ARRAY: heap array operations
	ArrayNew
	ArrayGet
	ArraySet
	ArrayLen

	// SLICE: slice operations
	SliceNew
	SliceGet
	SliceSet
	SliceLen
	SliceCap
	SliceSlice
	SliceAppend

	// MAP: map operations
	MapNew
	MapGet
	MapSet
	MapDelete
	MapLen

	// CHAN: channel operations
	ChanNew
	ChanSend
	ChanRecv
	ChanClose

	// SELECT: select statement
	SelectBegin
	SelectSend
	SelectRecv
	SelectExec

	// ITER: for-range iteration
	IterBegin
	IterNext
	IterEnd

	// CLOSURE: closure operations
	ClosureNew
	ClosureGet
	ClosureSet

	// GO: goroutines
	GoCall
	Yield

	// DEFER: defer and error handling
	DeferPush
	ErrDeferPush
	Panic
	Recover

	// IFACE: interface operations
	IfaceAssign
	IfaceAssert

	// CONV: type conversion
	ConvI2F
	ConvF2I
	ConvI32I64
	ConvI64I32

	opcodeMax
)

// Invalid is the sentinel returned by FromU8 for any byte outside the
// valid opcode range.
const Invalid Opcode = 255

// FromU8 decodes a raw opcode byte, returning Invalid for anything past
// the last defined opcode.
func FromU8(v uint8) Opcode {
	if Opcode(v) < opcodeMax {
		return Opcode(v)
	}
	return Invalid
}
