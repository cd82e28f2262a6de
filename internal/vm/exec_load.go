package vm

import (
	"github.com/vo-lang/vort/internal/bytecode"
	"github.com/vo-lang/vort/internal/fiber"
	"github.com/vo-lang/vort/internal/gc"
	"github.com/vo-lang/vort/internal/heap"
	"github.com/vo-lang/vort/internal/vtype"
)

// execNop, execLoadNil/True/False/Int/Const: a = destination register.
func execNop(f *fiber.Fiber, ins bytecode.Instruction) {}

func execLoadNil(f *fiber.Fiber, ins bytecode.Instruction)   { f.WriteReg(ins.A, 0) }
func execLoadTrue(f *fiber.Fiber, ins bytecode.Instruction)  { f.WriteReg(ins.A, 1) }
func execLoadFalse(f *fiber.Fiber, ins bytecode.Instruction) { f.WriteReg(ins.A, 0) }

func execLoadInt(f *fiber.Fiber, ins bytecode.Instruction) {
	f.WriteReg(ins.A, uint64(int64(ins.Imm32())))
}

func execLoadConst(f *fiber.Fiber, ins bytecode.Instruction, consts []bytecode.Constant) {
	c := consts[ins.B]
	var v uint64
	switch c.Kind {
	case bytecode.ConstBool:
		if c.B {
			v = 1
		}
	case bytecode.ConstInt:
		v = uint64(c.I)
	case bytecode.ConstFloat:
		v = f64bits(c.F)
	}
	f.WriteReg(ins.A, v)
}

// execCopy: a=dst, b=src. execCopyN: a=dst, b=src, flags=n contiguous slots.
func execCopy(f *fiber.Fiber, ins bytecode.Instruction) { f.WriteReg(ins.A, f.ReadReg(ins.B)) }

func execCopyN(f *fiber.Fiber, ins bytecode.Instruction) {
	n := int(ins.Flags)
	for i := 0; i < n; i++ {
		f.WriteReg(ins.A+uint16(i), f.ReadReg(ins.B+uint16(i)))
	}
}

// SlotGet/Set address a stack-allocated array living directly in the
// frame's own registers (a compiler-managed fixed-size local array), not
// a heap allocation: a=dst/src value reg, b=base reg, c=index reg.
func execSlotGet(f *fiber.Fiber, ins bytecode.Instruction) {
	idx := f.ReadReg(ins.C)
	f.WriteReg(ins.A, f.ReadReg(ins.B+uint16(idx)))
}

func execSlotSet(f *fiber.Fiber, ins bytecode.Instruction) {
	idx := f.ReadReg(ins.C)
	f.WriteReg(ins.B+uint16(idx), f.ReadReg(ins.A))
}

func execSlotGetN(f *fiber.Fiber, ins bytecode.Instruction) {
	idx := f.ReadReg(ins.C)
	n := int(ins.Flags)
	for i := 0; i < n; i++ {
		f.WriteReg(ins.A+uint16(i), f.ReadReg(ins.B+uint16(idx)+uint16(i)))
	}
}

func execSlotSetN(f *fiber.Fiber, ins bytecode.Instruction) {
	idx := f.ReadReg(ins.C)
	n := int(ins.Flags)
	for i := 0; i < n; i++ {
		f.WriteReg(ins.B+uint16(idx)+uint16(i), f.ReadReg(ins.A+uint16(i)))
	}
}

// Global ops: b is the global's slot offset into vm.State.Globals,
// precomputed by the compiler the same way register indices are.
func execGlobalGet(st *State, f *fiber.Fiber, ins bytecode.Instruction) {
	f.WriteReg(ins.A, st.Globals[ins.B])
}

func execGlobalGetN(st *State, f *fiber.Fiber, ins bytecode.Instruction) {
	n := int(ins.Flags)
	for i := 0; i < n; i++ {
		f.WriteReg(ins.A+uint16(i), st.Globals[int(ins.B)+i])
	}
}

func execGlobalSet(st *State, f *fiber.Fiber, ins bytecode.Instruction) {
	st.Globals[ins.B] = f.ReadReg(ins.A)
}

func execGlobalSetN(st *State, f *fiber.Fiber, ins bytecode.Instruction) {
	n := int(ins.Flags)
	for i := 0; i < n; i++ {
		st.Globals[int(ins.B)+i] = f.ReadReg(ins.A + uint16(i))
	}
}

// Pointer ops operate on a boxed pointee allocation classified with kind
// Pointer: PtrNew allocates a zeroed one for the struct meta named by the
// register at b; PtrClone copies the reference (not the pointee);
// Get/Set read and write one field of the pointee directly.
func execPtrNew(st *State, f *fiber.Fiber, ins bytecode.Instruction, metas heap.StructMetaTable) {
	metaID := vtype.MetaId(f.ReadReg(ins.B))
	sm, ok := metas.StructMeta(metaID)
	if !ok {
		sm = heap.StructMeta{}
	}
	ref := heap.PointerCreate(st.Gc, metaID, sm)
	f.WriteReg(ins.A, uint64(ref))
}

func execPtrClone(f *fiber.Fiber, ins bytecode.Instruction) { f.WriteReg(ins.A, f.ReadReg(ins.B)) }

// nilPointerError builds the trap spec.md §7 requires for a field
// access through a nil pointer.
func nilPointerError(fiberID uint32) *Error {
	return &Error{Kind: ErrNilDereference, Fiber: fiberID, Message: "nil pointer dereference"}
}

func execPtrGet(st *State, f *fiber.Fiber, fiberID uint32, ins bytecode.Instruction) (ExecResult, *Error) {
	ptr := gc.Ref(f.ReadReg(ins.B))
	if ptr.IsNil() {
		return Panic, nilPointerError(fiberID)
	}
	idx := int(ins.C)
	f.WriteReg(ins.A, heap.FieldGet(st.Gc, ptr, idx))
	return Continue, nil
}

func execPtrSet(st *State, f *fiber.Fiber, fiberID uint32, ins bytecode.Instruction, st0 vtype.SlotType) (ExecResult, *Error) {
	ptr := gc.Ref(f.ReadReg(ins.B))
	if ptr.IsNil() {
		return Panic, nilPointerError(fiberID)
	}
	idx := int(ins.C)
	heap.FieldSet(st.Gc, ptr, idx, f.ReadReg(ins.A), st0)
	return Continue, nil
}

func execPtrGetN(st *State, f *fiber.Fiber, fiberID uint32, ins bytecode.Instruction) (ExecResult, *Error) {
	ptr := gc.Ref(f.ReadReg(ins.B))
	if ptr.IsNil() {
		return Panic, nilPointerError(fiberID)
	}
	idx := int(ins.C)
	n := int(ins.Flags)
	for i := 0; i < n; i++ {
		f.WriteReg(ins.A+uint16(i), heap.FieldGet(st.Gc, ptr, idx+i))
	}
	return Continue, nil
}

func execPtrSetN(st *State, f *fiber.Fiber, fiberID uint32, ins bytecode.Instruction, slotTypes []vtype.SlotType) (ExecResult, *Error) {
	ptr := gc.Ref(f.ReadReg(ins.B))
	if ptr.IsNil() {
		return Panic, nilPointerError(fiberID)
	}
	idx := int(ins.C)
	n := int(ins.Flags)
	for i := 0; i < n; i++ {
		st0 := vtype.Plain
		if idx+i < len(slotTypes) {
			st0 = slotTypes[idx+i]
		}
		heap.FieldSet(st.Gc, ptr, idx+i, f.ReadReg(ins.A+uint16(i)), st0)
	}
	return Continue, nil
}
