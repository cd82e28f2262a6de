package heap

import (
	"github.com/vo-lang/vort/internal/gc"
	"github.com/vo-lang/vort/internal/vtype"
)

// Slice layout: GcHeader + SliceData{array, start, len, cap} — 4 slots,
// field-for-field from original_source's objects/slice.rs.
const (
	sliceDataSlots  = 4
	sliceFieldArray = 0
	sliceFieldStart = 1
	sliceFieldLen   = 2
	sliceFieldCap   = 3
)

func sliceNew(g *gc.Gc, arr gc.Ref, start, length, capacity int) gc.Ref {
	s := g.Alloc(vtype.NewValueMeta(0, vtype.Slice), sliceDataSlots)
	g.WriteRefSlot(s, sliceFieldArray, arr)
	g.WriteSlot(s, sliceFieldStart, uint64(start))
	g.WriteSlot(s, sliceFieldLen, uint64(length))
	g.WriteSlot(s, sliceFieldCap, uint64(capacity))
	return s
}

// SliceCreate allocates a backing array of capacity and a slice view of
// length over it.
func SliceCreate(g *gc.Gc, elemMeta vtype.ValueMeta, length, capacity int) gc.Ref {
	arr := ArrayCreate(g, elemMeta, capacity)
	return sliceNew(g, arr, 0, length, capacity)
}

// SliceFromArray wraps an existing array entirely.
func SliceFromArray(g *gc.Gc, arr gc.Ref) gc.Ref {
	return sliceNew(g, arr, 0, ArrayLen(g, arr), ArrayLen(g, arr))
}

func SliceArrayRef(g *gc.Gc, s gc.Ref) gc.Ref { return gc.Ref(g.ReadSlot(s, sliceFieldArray)) }
func SliceStart(g *gc.Gc, s gc.Ref) int       { return int(g.ReadSlot(s, sliceFieldStart)) }

// SliceLen and SliceCap treat a nil ref as the zero-value slice (length
// and capacity 0), matching len(nilSlice)/cap(nilSlice) rather than
// dereferencing a header that was never allocated.
func SliceLen(g *gc.Gc, s gc.Ref) int {
	if s.IsNil() {
		return 0
	}
	return int(g.ReadSlot(s, sliceFieldLen))
}

func SliceCap(g *gc.Gc, s gc.Ref) int {
	if s.IsNil() {
		return 0
	}
	return int(g.ReadSlot(s, sliceFieldCap))
}

func SliceElemMeta(g *gc.Gc, s gc.Ref) vtype.ValueMeta {
	return ArrayElemMeta(g, SliceArrayRef(g, s))
}

// SliceGet reads element idx (relative to the slice's own start).
func SliceGet(g *gc.Gc, s gc.Ref, idx int) uint64 {
	return ArrayGet(g, SliceArrayRef(g, s), SliceStart(g, s)+idx)
}

// SliceSet writes element idx without the write barrier.
func SliceSet(g *gc.Gc, s gc.Ref, idx int, val uint64) {
	ArraySet(g, SliceArrayRef(g, s), SliceStart(g, s)+idx, val)
}

// SliceSetRef writes element idx with the write barrier applied.
func SliceSetRef(g *gc.Gc, s gc.Ref, idx int, val gc.Ref) {
	ArraySetRef(g, SliceArrayRef(g, s), SliceStart(g, s)+idx, val)
}

// SliceOf implements the two-index s[lo:hi] form: capacity extends to the
// original slice's remaining capacity.
func SliceOf(g *gc.Gc, s gc.Ref, lo, hi int) gc.Ref {
	arr := SliceArrayRef(g, s)
	start := SliceStart(g, s)
	cap := SliceCap(g, s)
	return sliceNew(g, arr, start+lo, hi-lo, cap-lo)
}

// SliceOfWithCap implements the three-index s[lo:hi:max] form.
func SliceOfWithCap(g *gc.Gc, s gc.Ref, lo, hi, max int) gc.Ref {
	arr := SliceArrayRef(g, s)
	start := SliceStart(g, s)
	return sliceNew(g, arr, start+lo, hi-lo, max-lo)
}

// elemIsRef reports whether a slice's element kind needs the write
// barrier when copied/appended in bulk.
func elemIsRef(g *gc.Gc, s gc.Ref) bool {
	return SliceElemMeta(g, s).Kind().MayContainGcRefs()
}

// SliceAppend appends val (exactly one element's worth of raw word) to s,
// growing the backing array when at capacity. Mirrors the original's
// doubling growth policy: new slices start at capacity 4, full slices
// double.
func SliceAppend(g *gc.Gc, elemMeta vtype.ValueMeta, s gc.Ref, val uint64) gc.Ref {
	if s.IsNil() {
		arr := ArrayCreate(g, elemMeta, 4)
		if elemMeta.Kind().MayContainGcRefs() {
			ArraySetRef(g, arr, 0, gc.Ref(val))
		} else {
			ArraySet(g, arr, 0, val)
		}
		return sliceNew(g, arr, 0, 1, 4)
	}

	curLen := SliceLen(g, s)
	curCap := SliceCap(g, s)
	arr := SliceArrayRef(g, s)
	start := SliceStart(g, s)
	isRef := elemMeta.Kind().MayContainGcRefs()

	if curLen < curCap {
		if isRef {
			ArraySetRef(g, arr, start+curLen, gc.Ref(val))
		} else {
			ArraySet(g, arr, start+curLen, val)
		}
		g.WriteSlot(s, sliceFieldLen, uint64(curLen+1))
		return s
	}

	newCap := curCap * 2
	if newCap == 0 {
		newCap = 4
	}
	newArr := ArrayCreate(g, elemMeta, newCap)
	if isRef {
		for i := 0; i < curLen; i++ {
			ArraySetRef(g, newArr, i, gc.Ref(ArrayGet(g, arr, start+i)))
		}
		ArraySetRef(g, newArr, curLen, gc.Ref(val))
	} else {
		ArrayCopyRange(g, arr, start, newArr, 0, curLen)
		ArraySet(g, newArr, curLen, val)
	}
	return sliceNew(g, newArr, 0, curLen+1, newCap)
}
