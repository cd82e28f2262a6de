package vm

import (
	"github.com/vo-lang/vort/internal/bytecode"
	"github.com/vo-lang/vort/internal/fiber"
	"github.com/vo-lang/vort/internal/gc"
	"github.com/vo-lang/vort/internal/heap"
)

// StrNew: a=dst, b=constant index of a ConstString.
func execStrNew(st *State, f *fiber.Fiber, ins bytecode.Instruction, consts []bytecode.Constant) {
	c := consts[ins.B]
	f.WriteReg(ins.A, uint64(heap.StrNew(st.Gc, []byte(c.AsStr()))))
}

func execStrLen(st *State, f *fiber.Fiber, ins bytecode.Instruction) {
	f.WriteReg(ins.A, uint64(heap.StrLen(st.Gc, gc.Ref(f.ReadReg(ins.B)))))
}

func execStrIndex(st *State, f *fiber.Fiber, ins bytecode.Instruction) (ExecResult, *Error) {
	s := gc.Ref(f.ReadReg(ins.B))
	idx := int(f.ReadReg(ins.C))
	length := heap.StrLen(st.Gc, s)
	if idx < 0 || idx >= length {
		return Panic, indexOutOfBoundsError(idx, length)
	}
	f.WriteReg(ins.A, uint64(heap.StrIndex(st.Gc, s, idx)))
	return Continue, nil
}

func execStrConcat(st *State, f *fiber.Fiber, ins bytecode.Instruction) {
	a := gc.Ref(f.ReadReg(ins.B))
	b := gc.Ref(f.ReadReg(ins.C))
	f.WriteReg(ins.A, uint64(heap.StrConcat(st.Gc, a, b)))
}

// StrSlice: a=dst, b=src, c=lo, c+1=hi, mirroring the two-register-window
// convention exec_str_slice uses for the range bounds.
func execStrSlice(st *State, f *fiber.Fiber, ins bytecode.Instruction) (ExecResult, *Error) {
	s := gc.Ref(f.ReadReg(ins.B))
	lo := int(f.ReadReg(ins.C))
	hi := int(f.ReadReg(ins.C + 1))
	length := heap.StrLen(st.Gc, s)
	if lo < 0 || hi < lo || hi > length {
		return Panic, indexOutOfBoundsError(hi, length+1)
	}
	f.WriteReg(ins.A, uint64(heap.StrSliceOf(st.Gc, s, lo, hi)))
	return Continue, nil
}

func strBytesCompare(g *gc.Gc, a, b gc.Ref) int {
	ba, bb := heap.StrBytes(g, a), heap.StrBytes(g, b)
	n := len(ba)
	if len(bb) < n {
		n = len(bb)
	}
	for i := 0; i < n; i++ {
		if ba[i] != bb[i] {
			if ba[i] < bb[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(ba) < len(bb):
		return -1
	case len(ba) > len(bb):
		return 1
	default:
		return 0
	}
}

func execStrEq(st *State, f *fiber.Fiber, ins bytecode.Instruction) {
	f.WriteReg(ins.A, boolToReg(heap.StrEqual(st.Gc, gc.Ref(f.ReadReg(ins.B)), gc.Ref(f.ReadReg(ins.C)))))
}
func execStrNe(st *State, f *fiber.Fiber, ins bytecode.Instruction) {
	f.WriteReg(ins.A, boolToReg(!heap.StrEqual(st.Gc, gc.Ref(f.ReadReg(ins.B)), gc.Ref(f.ReadReg(ins.C)))))
}
func execStrLt(st *State, f *fiber.Fiber, ins bytecode.Instruction) {
	f.WriteReg(ins.A, boolToReg(strBytesCompare(st.Gc, gc.Ref(f.ReadReg(ins.B)), gc.Ref(f.ReadReg(ins.C))) < 0))
}
func execStrLe(st *State, f *fiber.Fiber, ins bytecode.Instruction) {
	f.WriteReg(ins.A, boolToReg(strBytesCompare(st.Gc, gc.Ref(f.ReadReg(ins.B)), gc.Ref(f.ReadReg(ins.C))) <= 0))
}
func execStrGt(st *State, f *fiber.Fiber, ins bytecode.Instruction) {
	f.WriteReg(ins.A, boolToReg(strBytesCompare(st.Gc, gc.Ref(f.ReadReg(ins.B)), gc.Ref(f.ReadReg(ins.C))) > 0))
}
func execStrGe(st *State, f *fiber.Fiber, ins bytecode.Instruction) {
	f.WriteReg(ins.A, boolToReg(strBytesCompare(st.Gc, gc.Ref(f.ReadReg(ins.B)), gc.Ref(f.ReadReg(ins.C))) >= 0))
}
