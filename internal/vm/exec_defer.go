package vm

import (
	"github.com/vo-lang/vort/internal/bytecode"
	"github.com/vo-lang/vort/internal/fiber"
	"github.com/vo-lang/vort/internal/gc"
	"github.com/vo-lang/vort/internal/heap"
	"github.com/vo-lang/vort/internal/vtype"
)

// argArrayMeta tags a defer's argument array as a plain (non-scanned)
// container: gcroots.go's scanDeferEntry walks its live slots itself,
// against the target function's own SlotTypes, rather than relying on
// the array's generic elemMeta-driven scan.
var argArrayMeta = vtype.NewValueMeta(0, vtype.Int64)

// DeferPush/ErrDeferPush instruction format:
//   a: func_id (flags bit 0 = 0) or closure reg (flags bit 0 = 1)
//   b: arg_start
//   c: arg_slots
//   flags bit 0: is_closure
func execDeferPushOp(st *State, f *fiber.Fiber, ins bytecode.Instruction, isErrdefer bool) {
	isClosure := ins.Flags&1 != 0
	argStart := ins.B
	argSlots := ins.C

	var funcID uint32
	var closure gc.Ref
	if isClosure {
		closure = gc.Ref(f.ReadReg(ins.A))
	} else {
		funcID = uint32(ins.A)
	}

	var args gc.Ref
	if argSlots > 0 {
		args = heap.ArrayCreate(st.Gc, argArrayMeta, int(argSlots))
		for i := uint16(0); i < argSlots; i++ {
			heap.ArraySet(st.Gc, args, int(i), f.ReadReg(argStart+i))
		}
	}

	f.PushDefer(fiber.DeferEntry{
		FuncID:     funcID,
		Closure:    closure,
		Args:       args,
		ArgSlots:   argSlots,
		IsClosure:  isClosure,
		IsErrdefer: isErrdefer,
	})
}

// execPanicOp: a=panic value reg (a gc.Ref, typically a boxed error or
// string). Begins an unwind that the dispatch loop drives via unwindPanic.
func execPanicOp(f *fiber.Fiber, ins bytecode.Instruction) {
	f.PanicValue = gc.Ref(f.ReadReg(ins.A))
}

// execRecoverOp: a=dst. Clears an in-flight panic and returns the value
// that was being unwound, or nil if no panic is active. Only meaningful
// when called from within a running defer; elsewhere it is a no-op that
// always yields nil, matching calling recover() outside a deferred call.
func execRecoverOp(f *fiber.Fiber, ins bytecode.Instruction) {
	f.WriteReg(ins.A, uint64(f.PanicValue))
	f.PanicValue = 0
}
