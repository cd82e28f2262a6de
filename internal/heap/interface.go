package heap

import "github.com/vo-lang/vort/internal/vtype"

// Interface values live inline as two stack/slot words — never as their
// own heap allocation:
//
//	slot0: itab_id:32 | value_meta:32  (value_meta = meta_id:24 | kind:8)
//	slot1: data — an immediate value or a gc.Ref
//
// Ported field-for-field from original_source's objects/interface.rs.

// PackSlot0 combines an itab id and value meta into slot0.
func PackSlot0(itabID uint32, meta vtype.ValueMeta) uint64 {
	return uint64(itabID)<<32 | uint64(meta.Raw())
}

// UnpackItabID extracts the itab id from slot0.
func UnpackItabID(slot0 uint64) uint32 { return uint32(slot0 >> 32) }

// UnpackValueMeta extracts the ValueMeta from slot0.
func UnpackValueMeta(slot0 uint64) vtype.ValueMeta {
	return vtype.ValueMetaFromRaw(uint32(slot0))
}

// UnpackValueKind extracts the ValueKind carried in slot0.
func UnpackValueKind(slot0 uint64) vtype.ValueKind { return UnpackValueMeta(slot0).Kind() }

// IfaceIsNil reports whether the interface is the nil interface. A typed
// nil (e.g. a nil *T boxed into an interface) is NOT nil here, matching
// Go's own interface nil semantics.
func IfaceIsNil(slot0 uint64) bool { return UnpackValueKind(slot0) == vtype.Void }

// IfaceDataIsGcRef reports whether slot1 holds a gc.Ref that the
// collector must trace, based on the kind packed in slot0.
func IfaceDataIsGcRef(slot0 uint64) bool { return UnpackValueKind(slot0).MayContainGcRefs() }
