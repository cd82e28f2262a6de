package vm

import (
	"github.com/vo-lang/vort/internal/bytecode"
	"github.com/vo-lang/vort/internal/fiber"
	"github.com/vo-lang/vort/internal/gc"
	"github.com/vo-lang/vort/internal/heap"
	"github.com/vo-lang/vort/internal/vtype"
)

// Every range loop lowers to the same (key, value) shape regardless of
// container kind: a slice/array/string yields (index, element); a map
// yields (key, value) directly. IterBegin/IterNext/IterEnd carry a single
// cursor register the container-specific step advances in place.

// IterBegin: a=cursor reg, initialized to 0.
func execIterBegin(f *fiber.Fiber, ins bytecode.Instruction) {
	f.WriteReg(ins.A, 0)
}

// IterNext: a=cursor reg (read-modify-write), b=container reg, c=dst key
// start. flags low nibble = key slot count, high nibble = value slot
// count; ok is written to register c+keySlots+valSlots.
func execIterNext(st *State, f *fiber.Fiber, ins bytecode.Instruction) {
	keySlots := int(ins.Flags & 0x0F)
	valSlots := int(ins.Flags >> 4)
	okReg := ins.C + uint16(keySlots+valSlots)
	ref := gc.Ref(f.ReadReg(ins.B))
	cursor := int(f.ReadReg(ins.A))

	if ref.IsNil() {
		f.WriteReg(okReg, boolToReg(false))
		return
	}

	switch st.Gc.Kind(ref) {
	case vtype.Array, vtype.Slice:
		n := containerLen(st.Gc, ref)
		if cursor >= n {
			f.WriteReg(okReg, boolToReg(false))
			return
		}
		f.WriteReg(ins.C, uint64(cursor))
		val := containerGet(st.Gc, ref, cursor)
		f.WriteReg(ins.C+uint16(keySlots), val)
		f.WriteReg(ins.A, uint64(cursor+1))
		f.WriteReg(okReg, boolToReg(true))

	case vtype.String:
		n := heap.StrLen(st.Gc, ref)
		if cursor >= n {
			f.WriteReg(okReg, boolToReg(false))
			return
		}
		f.WriteReg(ins.C, uint64(cursor))
		f.WriteReg(ins.C+uint16(keySlots), uint64(heap.StrIndex(st.Gc, ref, cursor)))
		f.WriteReg(ins.A, uint64(cursor+1))
		f.WriteReg(okReg, boolToReg(true))

	case vtype.Map:
		cap := heap.MapCap(st.Gc, ref)
		for cursor < cap {
			if k, v, ok := heap.MapIterAt(st.Gc, ref, cursor); ok {
				writeWordsToRegs(f, ins.C, k)
				writeWordsToRegs(f, ins.C+uint16(keySlots), v)
				f.WriteReg(ins.A, uint64(cursor+1))
				f.WriteReg(okReg, boolToReg(true))
				return
			}
			cursor++
		}
		f.WriteReg(ins.A, uint64(cursor))
		f.WriteReg(okReg, boolToReg(false))

	default:
		f.WriteReg(okReg, boolToReg(false))
	}
}

func containerLen(g *gc.Gc, ref gc.Ref) int {
	if g.Kind(ref) == vtype.Slice {
		return heap.SliceLen(g, ref)
	}
	return heap.ArrayLen(g, ref)
}

func containerGet(g *gc.Gc, ref gc.Ref, idx int) uint64 {
	if g.Kind(ref) == vtype.Slice {
		return heap.SliceGet(g, ref, idx)
	}
	return heap.ArrayGet(g, ref, idx)
}

// IterEnd has no per-container teardown today; it exists so the compiler
// has a symmetric bracket to emit even though nothing needs releasing.
func execIterEnd(f *fiber.Fiber, ins bytecode.Instruction) {}
