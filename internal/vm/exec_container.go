package vm

import (
	"fmt"

	"github.com/vo-lang/vort/internal/bytecode"
	"github.com/vo-lang/vort/internal/fiber"
	"github.com/vo-lang/vort/internal/gc"
	"github.com/vo-lang/vort/internal/heap"
	"github.com/vo-lang/vort/internal/vtype"
)

// indexOutOfBoundsError builds the trap spec.md §7 requires for an
// array/slice/string index that fell outside [0, length).
func indexOutOfBoundsError(idx, length int) *Error {
	return &Error{Kind: ErrIndexOutOfBounds, Message: fmt.Sprintf("index %d out of bounds [0,%d)", idx, length)}
}

// ArrayNew: a=dst, b=elem_meta reg (packed ValueMeta), c=len reg.
func execArrayNew(st *State, f *fiber.Fiber, ins bytecode.Instruction) {
	elemMeta := vtype.ValueMetaFromRaw(uint32(f.ReadReg(ins.B)))
	length := int(f.ReadReg(ins.C))
	f.WriteReg(ins.A, uint64(heap.ArrayCreate(st.Gc, elemMeta, length)))
}

func execArrayGet(st *State, f *fiber.Fiber, ins bytecode.Instruction) (ExecResult, *Error) {
	arr := gc.Ref(f.ReadReg(ins.B))
	idx := int(f.ReadReg(ins.C))
	if idx < 0 || idx >= heap.ArrayLen(st.Gc, arr) {
		return Panic, indexOutOfBoundsError(idx, heap.ArrayLen(st.Gc, arr))
	}
	f.WriteReg(ins.A, heap.ArrayGet(st.Gc, arr, idx))
	return Continue, nil
}

// ArraySet: a=val, b=arr, c=idx.
func execArraySet(st *State, f *fiber.Fiber, ins bytecode.Instruction) (ExecResult, *Error) {
	arr := gc.Ref(f.ReadReg(ins.B))
	idx := int(f.ReadReg(ins.C))
	if idx < 0 || idx >= heap.ArrayLen(st.Gc, arr) {
		return Panic, indexOutOfBoundsError(idx, heap.ArrayLen(st.Gc, arr))
	}
	val := f.ReadReg(ins.A)
	if heap.ArrayElemMeta(st.Gc, arr).Kind().MayContainGcRefs() {
		heap.ArraySetRef(st.Gc, arr, idx, gc.Ref(val))
	} else {
		heap.ArraySet(st.Gc, arr, idx, val)
	}
	return Continue, nil
}

func execArrayLen(st *State, f *fiber.Fiber, ins bytecode.Instruction) {
	f.WriteReg(ins.A, uint64(heap.ArrayLen(st.Gc, gc.Ref(f.ReadReg(ins.B)))))
}

// SliceNew: a=dst, b=elem_meta reg, c=len reg. Capacity starts equal to
// length, matching a slice literal's backing array.
func execSliceNew(st *State, f *fiber.Fiber, ins bytecode.Instruction) {
	elemMeta := vtype.ValueMetaFromRaw(uint32(f.ReadReg(ins.B)))
	length := int(f.ReadReg(ins.C))
	f.WriteReg(ins.A, uint64(heap.SliceCreate(st.Gc, elemMeta, length, length)))
}

func execSliceGet(st *State, f *fiber.Fiber, ins bytecode.Instruction) (ExecResult, *Error) {
	s := gc.Ref(f.ReadReg(ins.B))
	idx := int(f.ReadReg(ins.C))
	if idx < 0 || idx >= heap.SliceLen(st.Gc, s) {
		return Panic, indexOutOfBoundsError(idx, heap.SliceLen(st.Gc, s))
	}
	f.WriteReg(ins.A, heap.SliceGet(st.Gc, s, idx))
	return Continue, nil
}

func execSliceSet(st *State, f *fiber.Fiber, ins bytecode.Instruction) (ExecResult, *Error) {
	s := gc.Ref(f.ReadReg(ins.B))
	idx := int(f.ReadReg(ins.C))
	if idx < 0 || idx >= heap.SliceLen(st.Gc, s) {
		return Panic, indexOutOfBoundsError(idx, heap.SliceLen(st.Gc, s))
	}
	val := f.ReadReg(ins.A)
	if heap.SliceElemMeta(st.Gc, s).Kind().MayContainGcRefs() {
		heap.SliceSetRef(st.Gc, s, idx, gc.Ref(val))
	} else {
		heap.SliceSet(st.Gc, s, idx, val)
	}
	return Continue, nil
}

func execSliceLen(st *State, f *fiber.Fiber, ins bytecode.Instruction) {
	f.WriteReg(ins.A, uint64(heap.SliceLen(st.Gc, gc.Ref(f.ReadReg(ins.B)))))
}

func execSliceCap(st *State, f *fiber.Fiber, ins bytecode.Instruction) {
	f.WriteReg(ins.A, uint64(heap.SliceCap(st.Gc, gc.Ref(f.ReadReg(ins.B)))))
}

// SliceSlice: a=dst, b=src, c=lo, c+1=hi (two-index form only; a three-
// index s[lo:hi:max] is compiled to this plus a follow-on SliceSlice-like
// extern in the rare case a module needs it).
func execSliceSlice(st *State, f *fiber.Fiber, ins bytecode.Instruction) (ExecResult, *Error) {
	s := gc.Ref(f.ReadReg(ins.B))
	lo := int(f.ReadReg(ins.C))
	hi := int(f.ReadReg(ins.C + 1))
	sliceCap := heap.SliceCap(st.Gc, s)
	if lo < 0 || hi < lo || hi > sliceCap {
		return Panic, indexOutOfBoundsError(hi, sliceCap+1)
	}
	f.WriteReg(ins.A, uint64(heap.SliceOf(st.Gc, s, lo, hi)))
	return Continue, nil
}

// SliceAppend: a=dst, b=slice reg, c=val reg. Reads the element's packed
// ValueMeta out of register c+1 so a nil slice (no backing array to ask)
// can still be grown from scratch; a live slice's own recorded elem meta
// always wins once one exists.
func execSliceAppend(st *State, f *fiber.Fiber, ins bytecode.Instruction) {
	s := gc.Ref(f.ReadReg(ins.B))
	val := f.ReadReg(ins.C)
	var elemMeta vtype.ValueMeta
	if !s.IsNil() {
		elemMeta = heap.SliceElemMeta(st.Gc, s)
	} else {
		elemMeta = vtype.ValueMetaFromRaw(uint32(f.ReadReg(ins.C + 1)))
	}
	f.WriteReg(ins.A, uint64(heap.SliceAppend(st.Gc, elemMeta, s, val)))
}

// MapNew: a=dst, b=key_meta reg, c=val_meta reg.
func execMapNew(st *State, f *fiber.Fiber, ins bytecode.Instruction) {
	keyMeta := vtype.ValueMetaFromRaw(uint32(f.ReadReg(ins.B)))
	valMeta := vtype.ValueMetaFromRaw(uint32(f.ReadReg(ins.C)))
	f.WriteReg(ins.A, uint64(heap.MapCreate(st.Gc, keyMeta, valMeta)))
}

func readWordsFromRegs(f *fiber.Fiber, start uint16, n int) []uint64 {
	out := make([]uint64, n)
	for i := 0; i < n; i++ {
		out[i] = f.ReadReg(start + uint16(i))
	}
	return out
}

func writeWordsToRegs(f *fiber.Fiber, start uint16, words []uint64) {
	for i, w := range words {
		f.WriteReg(start+uint16(i), w)
	}
}

// MapGet: a=dst (value slots, followed by a trailing ok bool slot), b=map
// reg, c=key start reg. A nil map (key/val meta live only on the
// allocated table, never as immediate operands) traps rather than
// silently answering not-found the way a real nil map read would.
func execMapGet(st *State, f *fiber.Fiber, fiberID uint32, ins bytecode.Instruction) (ExecResult, *Error) {
	m := gc.Ref(f.ReadReg(ins.B))
	if m.IsNil() {
		return Panic, nilPointerError(fiberID)
	}
	keyMeta := heap.MapKeyMeta(st.Gc, m)
	valMeta := heap.MapValMeta(st.Gc, m)
	key := readWordsFromRegs(f, ins.C, int(keyMeta.Kind().SlotCount()))
	val, ok := heap.MapGet(st.Gc, m, key)
	valSlots := int(valMeta.Kind().SlotCount())
	if !ok {
		val = make([]uint64, valSlots)
	}
	writeWordsToRegs(f, ins.A, val)
	f.WriteReg(ins.A+uint16(valSlots), boolToReg(ok))
	return Continue, nil
}

// MapSet: a=map reg, b=key start reg, c=val start reg. Matches Go's own
// "assignment to entry in nil map" panic.
func execMapSet(st *State, f *fiber.Fiber, fiberID uint32, ins bytecode.Instruction) (ExecResult, *Error) {
	m := gc.Ref(f.ReadReg(ins.A))
	if m.IsNil() {
		return Panic, &Error{Kind: ErrNilDereference, Fiber: fiberID, Message: "assignment to entry in nil map"}
	}
	keyMeta := heap.MapKeyMeta(st.Gc, m)
	valMeta := heap.MapValMeta(st.Gc, m)
	key := readWordsFromRegs(f, ins.B, int(keyMeta.Kind().SlotCount()))
	val := readWordsFromRegs(f, ins.C, int(valMeta.Kind().SlotCount()))
	heap.MapSet(st.Gc, m, key, val)
	return Continue, nil
}

// MapDelete: a=dst (bool found), b=map reg, c=key start reg.
func execMapDelete(st *State, f *fiber.Fiber, fiberID uint32, ins bytecode.Instruction) (ExecResult, *Error) {
	m := gc.Ref(f.ReadReg(ins.B))
	if m.IsNil() {
		return Panic, nilPointerError(fiberID)
	}
	keyMeta := heap.MapKeyMeta(st.Gc, m)
	key := readWordsFromRegs(f, ins.C, int(keyMeta.Kind().SlotCount()))
	f.WriteReg(ins.A, boolToReg(heap.MapDelete(st.Gc, m, key)))
	return Continue, nil
}

func execMapLen(st *State, f *fiber.Fiber, ins bytecode.Instruction) {
	f.WriteReg(ins.A, uint64(heap.MapLen(st.Gc, gc.Ref(f.ReadReg(ins.B)))))
}
