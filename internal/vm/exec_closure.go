package vm

import (
	"github.com/vo-lang/vort/internal/bytecode"
	"github.com/vo-lang/vort/internal/fiber"
	"github.com/vo-lang/vort/internal/gc"
	"github.com/vo-lang/vort/internal/heap"
)

// ClosureNew: a=dst, b=target func id, flags=capture count. Captures are
// filled in afterward by a run of ClosureSet instructions, the same
// two-step allocate-then-populate shape PtrNew/PtrSet use for structs.
func execClosureNew(st *State, f *fiber.Fiber, ins bytecode.Instruction) {
	f.WriteReg(ins.A, uint64(heap.ClosureCreate(st.Gc, uint32(ins.B), int(ins.Flags))))
}

// ClosureGet: a=dst, b=closure reg, c=capture index.
func execClosureGet(st *State, f *fiber.Fiber, ins bytecode.Instruction) {
	c := gc.Ref(f.ReadReg(ins.B))
	f.WriteReg(ins.A, uint64(heap.ClosureGetCapture(st.Gc, c, int(ins.C))))
}

// ClosureSet: a=closure reg, b=capture index, c=src reg holding the
// captured gc.Ref.
func execClosureSet(st *State, f *fiber.Fiber, ins bytecode.Instruction) {
	c := gc.Ref(f.ReadReg(ins.A))
	heap.ClosureSetCapture(st.Gc, c, int(ins.B), gc.Ref(f.ReadReg(ins.C)))
}
