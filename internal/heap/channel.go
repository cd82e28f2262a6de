package heap

import (
	"github.com/vo-lang/vort/internal/gc"
	"github.com/vo-lang/vort/internal/vtype"
)

// Channel layout: GcHeader + [elem_meta, capacity, head, count, closed] +
// a fixed ring buffer of capacity*elem_slots slots.
//
// Blocking semantics (parking a sender against a full buffer or a
// receiver against an empty one, and unbuffered rendezvous) are not
// modeled here: those need per-channel FIFOs of waiting fiber ids that
// can grow past any capacity fixed at allocation time, which doesn't fit
// a single GC object. internal/scheduler owns that bookkeeping in plain
// Go slices keyed by channel Ref, and registers itself as an extra GC
// root source (see scheduler.Scheduler.ScanRoots) so values handed off
// to a blocked sender are still traced even while sitting outside any
// fiber's stack.
const (
	chanFieldElemMeta = 0
	chanFieldCap      = 1
	chanFieldHead     = 2
	chanFieldCount    = 3
	chanFieldClosed   = 4
	chanHeaderSlots   = 5
)

// ChanNew allocates a channel with room for capacity buffered elements of
// kind elemMeta. capacity 0 is a valid, legal unbuffered channel: every
// send must rendezvous directly with a receiver via the scheduler.
func ChanNew(g *gc.Gc, elemMeta vtype.ValueMeta, capacity int) gc.Ref {
	elemSlots := int(elemMeta.Kind().SlotCount())
	total := chanHeaderSlots + capacity*elemSlots
	ch := g.Alloc(vtype.NewValueMeta(0, vtype.Channel), uint16(total))
	g.WriteSlot(ch, chanFieldElemMeta, uint64(elemMeta.Raw()))
	g.WriteSlot(ch, chanFieldCap, uint64(capacity))
	g.WriteSlot(ch, chanFieldHead, 0)
	g.WriteSlot(ch, chanFieldCount, 0)
	g.WriteSlot(ch, chanFieldClosed, 0)
	g.SetFlags(ch, gc.FlagFinalize)
	return ch
}

func ChanElemMeta(g *gc.Gc, ch gc.Ref) vtype.ValueMeta {
	return vtype.ValueMetaFromRaw(uint32(g.ReadSlot(ch, chanFieldElemMeta)))
}
func ChanCap(g *gc.Gc, ch gc.Ref) int   { return int(g.ReadSlot(ch, chanFieldCap)) }
func ChanLen(g *gc.Gc, ch gc.Ref) int   { return int(g.ReadSlot(ch, chanFieldCount)) }
func ChanClosed(g *gc.Gc, ch gc.Ref) bool { return g.ReadSlot(ch, chanFieldClosed) != 0 }

// ChanHasRoom reports whether the ring buffer could accept a send
// without blocking, with no side effect — used by select's readiness
// scan, which must not commit a send before a case is actually chosen.
func ChanHasRoom(g *gc.Gc, ch gc.Ref) bool { return ChanLen(g, ch) < ChanCap(g, ch) }

// ChanClose marks the channel closed. Sending on an already-closed
// channel, and double-close, are traps the VM raises before calling this.
func ChanClose(g *gc.Gc, ch gc.Ref) { g.WriteSlot(ch, chanFieldClosed, 1) }

func chanElemSlots(g *gc.Gc, ch gc.Ref) int { return int(ChanElemMeta(g, ch).Kind().SlotCount()) }

func chanSlotOffset(g *gc.Gc, ch gc.Ref, ringIdx int) int {
	return chanHeaderSlots + ringIdx*chanElemSlots(g, ch)
}

// ChanTryBufferedSend pushes val into the ring buffer if it has room,
// reporting whether it did.
func ChanTryBufferedSend(g *gc.Gc, ch gc.Ref, val []uint64) bool {
	cap := ChanCap(g, ch)
	count := ChanLen(g, ch)
	if count >= cap {
		return false
	}
	head := int(g.ReadSlot(ch, chanFieldHead))
	tail := (head + count) % cap
	off := chanSlotOffset(g, ch, tail)
	isRef := ChanElemMeta(g, ch).Kind().MayContainGcRefs()
	writeWordsRef(g, ch, off, val, isRef)
	g.WriteSlot(ch, chanFieldCount, uint64(count+1))
	return true
}

// ChanTryBufferedRecv pops the oldest value from the ring buffer if one
// is available.
func ChanTryBufferedRecv(g *gc.Gc, ch gc.Ref) ([]uint64, bool) {
	count := ChanLen(g, ch)
	if count == 0 {
		return nil, false
	}
	cap := ChanCap(g, ch)
	head := int(g.ReadSlot(ch, chanFieldHead))
	off := chanSlotOffset(g, ch, head)
	val := readWords(g, ch, off, chanElemSlots(g, ch))
	g.WriteSlot(ch, chanFieldHead, uint64((head+1)%cap))
	g.WriteSlot(ch, chanFieldCount, uint64(count-1))
	return val, true
}

// ChanScanBuffer calls mark for every live ring-buffer slot that may hold
// a GcRef, for the collector's scan-by-type pass.
func ChanScanBuffer(g *gc.Gc, ch gc.Ref, mark func(gc.Ref)) {
	if !ChanElemMeta(g, ch).Kind().MayContainGcRefs() {
		return
	}
	count := ChanLen(g, ch)
	es := chanElemSlots(g, ch)
	cap := ChanCap(g, ch)
	head := int(g.ReadSlot(ch, chanFieldHead))
	for i := 0; i < count; i++ {
		ringIdx := (head + i) % cap
		off := chanSlotOffset(g, ch, ringIdx)
		for s := 0; s < es; s++ {
			if w := g.ReadSlot(ch, off+s); w != 0 {
				mark(gc.Ref(w))
			}
		}
	}
}
