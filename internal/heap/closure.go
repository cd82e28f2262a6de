package heap

import (
	"github.com/vo-lang/vort/internal/gc"
	"github.com/vo-lang/vort/internal/vtype"
)

// Closure layout: GcHeader + [func_id:1] + captures (capture_count slots,
// each an escaped-variable gc.Ref stored directly).
const closureHeaderSlots = 1

// ClosureCreate allocates a closure over funcID with captureCount empty
// capture slots.
func ClosureCreate(g *gc.Gc, funcID uint32, captureCount int) gc.Ref {
	total := closureHeaderSlots + captureCount
	c := g.Alloc(vtype.NewValueMeta(0, vtype.Closure), uint16(total))
	g.WriteSlot(c, 0, uint64(funcID))
	return c
}

// ClosureFuncID returns the closure's target function id.
func ClosureFuncID(g *gc.Gc, c gc.Ref) uint32 { return uint32(g.ReadSlot(c, 0)) }

// ClosureCaptureCount returns the number of capture slots.
func ClosureCaptureCount(g *gc.Gc, c gc.Ref) int {
	return g.SlotCount(c) - closureHeaderSlots
}

// ClosureGetCapture reads capture idx (a gc.Ref to the escaped variable).
func ClosureGetCapture(g *gc.Gc, c gc.Ref, idx int) gc.Ref {
	return gc.Ref(g.ReadSlot(c, closureHeaderSlots+idx))
}

// ClosureSetCapture writes capture idx with the write barrier applied.
func ClosureSetCapture(g *gc.Gc, c gc.Ref, idx int, val gc.Ref) {
	g.WriteRefSlot(c, closureHeaderSlots+idx, val)
}

// ClosureCallLayout is the single source of truth for where a call's
// arguments land relative to the receiver/closure-ref slot, mirroring
// the three cases in the original's closure::call_layout.
type ClosureCallLayout struct {
	// HasSlot0 and Slot0 describe what (if anything) goes in the call
	// frame's register 0 before the arguments.
	HasSlot0 bool
	Slot0    uint64
	// ArgOffset is the register at which the actual call arguments begin.
	ArgOffset int
}

// ClosureCallLayoutFor computes the call layout for invoking closureRef
// (boxed as the raw 64-bit value closureRaw) with a receiver occupying
// recvSlots register slots, where isClosure distinguishes an anonymous
// closure literal from a plain named-function wrapper with zero captures.
func ClosureCallLayoutFor(g *gc.Gc, closureRaw uint64, closureRef gc.Ref, recvSlots int, isClosure bool) ClosureCallLayout {
	capCount := ClosureCaptureCount(g, closureRef)

	switch {
	case recvSlots > 0 && capCount > 0:
		// Method closure: receiver was captured at index 0.
		return ClosureCallLayout{
			HasSlot0:  true,
			Slot0:     uint64(ClosureGetCapture(g, closureRef, 0)),
			ArgOffset: recvSlots,
		}
	case capCount > 0 || isClosure:
		// Closure with captures, or an anonymous closure literal: the
		// closure itself goes to slot 0 so opcodes can read captures.
		return ClosureCallLayout{HasSlot0: true, Slot0: closureRaw, ArgOffset: 1}
	default:
		// Named function wrapper, no captures: arguments start at 0.
		return ClosureCallLayout{ArgOffset: 0}
	}
}
