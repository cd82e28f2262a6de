package heap

import (
	"github.com/vo-lang/vort/internal/gc"
	"github.com/vo-lang/vort/internal/vtype"
)

// StructMetaTable resolves a struct/pointer MetaId to its field layout.
// The VM owns the concrete table (loaded from the bytecode module's
// struct metadata section) and passes it through to ScanObject.
type StructMetaTable interface {
	StructMeta(id vtype.MetaId) (StructMeta, bool)
}

// ScanObject is gc.Gc's scanChildren callback: given a gray object, gray
// every child it references, by Kind-specific rule. Ported field-for-
// field from original_source's gc_types.rs scan_object/scan_array/
// scan_struct.
func ScanObject(g *gc.Gc, ref gc.Ref, metas StructMetaTable) {
	switch g.Kind(ref) {
	case vtype.Array:
		scanArray(g, ref)

	case vtype.String:
		if arr := StrArrayRef(g, ref); !arr.IsNil() {
			g.MarkGray(arr)
		}

	case vtype.Slice:
		if arr := SliceArrayRef(g, ref); !arr.IsNil() {
			g.MarkGray(arr)
		}

	case vtype.Struct, vtype.Pointer:
		scanStruct(g, ref, metas)

	case vtype.Closure:
		for i := 0; i < ClosureCaptureCount(g, ref); i++ {
			if cap := ClosureGetCapture(g, ref, i); !cap.IsNil() {
				g.MarkGray(cap)
			}
		}

	case vtype.Map:
		// The bucket table is allocated with kind Map too; only the
		// one-slot outer handle is walked (scanMap grays the table).
		if g.SlotCount(ref) == 1 {
			scanMap(g, ref)
		}

	case vtype.Channel:
		ChanScanBuffer(g, ref, g.MarkGray)

	default:
		// Plain numeric/bool/funcptr kinds hold no children.
	}
}

func scanArray(g *gc.Gc, ref gc.Ref) {
	elemMeta := ArrayElemMeta(g, ref)
	if !elemMeta.Kind().MayContainGcRefs() {
		return
	}
	n := ArrayLen(g, ref)
	for i := 0; i < n; i++ {
		if w := ArrayGet(g, ref, i); w != 0 {
			g.MarkGray(gc.Ref(w))
		}
	}
}

func scanStruct(g *gc.Gc, ref gc.Ref, metas StructMetaTable) {
	meta, ok := metas.StructMeta(g.Header(ref).Meta.MetaId())
	if !ok {
		return
	}
	i := 0
	for i < len(meta.SlotTypes) {
		switch meta.SlotTypes[i] {
		case vtype.GcRef:
			if w := g.ReadSlot(ref, i); w != 0 {
				g.MarkGray(gc.Ref(w))
			}
		case vtype.Interface0:
			slot0 := g.ReadSlot(ref, i)
			if IfaceDataIsGcRef(slot0) {
				if w := g.ReadSlot(ref, i+1); w != 0 {
					g.MarkGray(gc.Ref(w))
				}
			}
			i++
		}
		i++
	}
}

func scanMap(g *gc.Gc, ref gc.Ref) {
	table := mapTable(g, ref)
	if table.IsNil() {
		return
	}
	g.MarkGray(table)

	keyIsRef := MapKeyMeta(g, ref).Kind().MayContainGcRefs()
	valIsRef := MapValMeta(g, ref).Kind().MayContainGcRefs()
	if !keyIsRef && !valIsRef {
		return
	}
	cap := MapCap(g, ref)
	for i := 0; i < cap; i++ {
		k, v, ok := MapIterAt(g, ref, i)
		if !ok {
			continue
		}
		if keyIsRef {
			for _, w := range k {
				if w != 0 {
					g.MarkGray(gc.Ref(w))
				}
			}
		}
		if valIsRef {
			for _, w := range v {
				if w != 0 {
					g.MarkGray(gc.Ref(w))
				}
			}
		}
	}
}

// FinalizeObject releases native resources a heap object may hold
// outside the GC's own slot storage before its slot is freed for reuse.
// Only channels carry the finalize flag today (see ChanNew); maps and
// strings own nothing external.
func FinalizeObject(g *gc.Gc, ref gc.Ref) {
	// Nothing to release yet: the ring buffer and wait queues live
	// entirely in GC slots / scheduler-owned tables respectively, and a
	// channel's wait-queue entries are dropped when it is closed (see
	// scheduler.Scheduler.Forget), not when it becomes unreachable. Kept as an
	// explicit hook so a future native resource (e.g. an OS file handle
	// extern) has a place to wire a release.
}
