// Package heap implements typed views over gc.Gc allocations: strings,
// arrays, slices, maps, channels, closures, structs/pointers and inline
// interface values. internal/gc knows only headers and raw slot words;
// this package knows what those slots mean for each ValueKind and is the
// only place that layout is encoded.
package heap

import (
	"github.com/vo-lang/vort/internal/gc"
	"github.com/vo-lang/vort/internal/vtype"
)

// Array layout: GcHeader + [len:1, elem_meta:1] + elements, one slot per
// element.
//
// The original carries two conflicting revisions of this file in
// original_source — one packs sub-word elements (bool/int8/int16/int32)
// into fewer bytes per slot, the other stores one element per slot
// unconditionally. This port takes the plain one-slot-per-element form:
// it needs no unsafe byte-level aliasing to implement in Go, and
// ValueKind.ElemBytes is kept only as metadata, not a packing directive.
const (
	arrayHeaderSlots  = 2
	arrayFieldLen     = 0
	arrayFieldElem    = 1
	arrayDataStartOff = arrayHeaderSlots
)

// ArrayCreate allocates a new array of length holding elements of kind
// elemMeta.
func ArrayCreate(g *gc.Gc, elemMeta vtype.ValueMeta, length int) gc.Ref {
	total := arrayHeaderSlots + length
	ref := g.Alloc(vtype.NewValueMeta(0, vtype.Array), uint16(total))
	g.WriteSlot(ref, arrayFieldLen, uint64(length))
	g.WriteSlot(ref, arrayFieldElem, uint64(elemMeta.Raw()))
	return ref
}

// ArrayLen returns the number of elements.
func ArrayLen(g *gc.Gc, ref gc.Ref) int { return int(g.ReadSlot(ref, arrayFieldLen)) }

// ArrayElemMeta returns the element ValueMeta recorded at creation.
func ArrayElemMeta(g *gc.Gc, ref gc.Ref) vtype.ValueMeta {
	return vtype.ValueMetaFromRaw(uint32(g.ReadSlot(ref, arrayFieldElem)))
}

// ArrayGet reads the raw element word at idx.
func ArrayGet(g *gc.Gc, ref gc.Ref, idx int) uint64 {
	return g.ReadSlot(ref, arrayDataStartOff+idx)
}

// ArraySet writes idx with no write barrier. Use ArraySetRef when the
// element kind is a GcRef-holding kind.
func ArraySet(g *gc.Gc, ref gc.Ref, idx int, val uint64) {
	g.WriteSlot(ref, arrayDataStartOff+idx, val)
}

// ArraySetRef writes idx with the GC write barrier applied.
func ArraySetRef(g *gc.Gc, ref gc.Ref, idx int, val gc.Ref) {
	g.WriteRefSlot(ref, arrayDataStartOff+idx, val)
}

// ArrayCopyRange copies count elements from src[srcOff:] to dst[dstOff:].
// Caller is responsible for re-graying dst's elements if dst is already
// black and the element kind holds GcRefs (ArraySetRef does this one
// element at a time; bulk copies of reference-typed arrays should prefer
// ArraySetRef in a loop over this helper).
func ArrayCopyRange(g *gc.Gc, src gc.Ref, srcOff int, dst gc.Ref, dstOff int, count int) {
	for i := 0; i < count; i++ {
		g.WriteSlot(dst, arrayDataStartOff+dstOff+i, g.ReadSlot(src, arrayDataStartOff+srcOff+i))
	}
}
