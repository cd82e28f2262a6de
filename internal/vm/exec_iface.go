package vm

import (
	"github.com/vo-lang/vort/internal/bytecode"
	"github.com/vo-lang/vort/internal/fiber"
	"github.com/vo-lang/vort/internal/gc"
	"github.com/vo-lang/vort/internal/heap"
)

// IfaceAssign boxes a concrete named-type value into an interface.
// a=dst (2 slots), b=src reg (a gc.Ref: named types with methods are
// always struct or pointer backed in this runtime, so src always carries
// its own ValueMeta in its heap header), c=named-type id reg; the
// interface's meta id is read from register c+1. flags bit 0 is
// src_is_pointer, needed to reject an attempted value-receiver method set
// through a non-pointer source.
func execIfaceAssign(vm *VM, f *fiber.Fiber, ins bytecode.Instruction) (ExecResult, *Error) {
	src := gc.Ref(f.ReadReg(ins.B))
	if src.IsNil() {
		f.WriteReg(ins.A, 0)
		f.WriteReg(ins.A+1, 0)
		return Continue, nil
	}
	namedTypeID := uint32(f.ReadReg(ins.C))
	ifaceMetaID := uint32(f.ReadReg(ins.C + 1))
	srcIsPointer := ins.Flags&1 != 0

	itabID, ok := vm.State.Itabs.TryGetOrCreate(namedTypeID, ifaceMetaID, srcIsPointer, vm.Module.NamedTypes, vm.Module.InterfaceMetas)
	if !ok {
		return Panic, &Error{Kind: ErrTypeAssertionFailed, Message: "type does not implement interface"}
	}

	meta := vm.State.Gc.Header(src).Meta
	f.WriteReg(ins.A, heap.PackSlot0(itabID, meta))
	f.WriteReg(ins.A+1, uint64(src))
	return Continue, nil
}

// IfaceAssert implements both the single-value (panicking) and comma-ok
// forms of a type assertion. a=dst (N value slots, plus a trailing ok
// slot when flags bit 1 is set), b=src interface reg (2 slots at b,b+1),
// c=expected concrete kind reg (a packed ValueMeta to compare slot0's
// embedded kind/meta against). flags bit 0 unused, bit 1 = comma-ok.
func execIfaceAssert(f *fiber.Fiber, ins bytecode.Instruction) (ExecResult, *Error) {
	slot0 := f.ReadReg(ins.B)
	slot1 := f.ReadReg(ins.B + 1)
	wantMeta := uint32(f.ReadReg(ins.C))
	commaOk := ins.Flags&2 != 0

	match := !heap.IfaceIsNil(slot0) && heap.UnpackValueMeta(slot0).Raw() == wantMeta
	if match {
		f.WriteReg(ins.A, slot1)
	} else {
		f.WriteReg(ins.A, 0)
	}
	if commaOk {
		f.WriteReg(ins.A+1, boolToReg(match))
		return Continue, nil
	}
	if !match {
		return Panic, &Error{Kind: ErrTypeAssertionFailed, Message: "interface conversion failed"}
	}
	return Continue, nil
}
