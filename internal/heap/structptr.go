package heap

import (
	"github.com/vo-lang/vort/internal/gc"
	"github.com/vo-lang/vort/internal/vtype"
)

// StructMeta describes one struct (or pointee-of-pointer) layout: the
// static SlotType of each field slot, used both to build a zeroed
// instance and to drive the GC's scan-by-type pass.
type StructMeta struct {
	Name      string
	SlotTypes []vtype.SlotType
}

// StructCreate allocates a zeroed struct instance for metaID, whose
// layout is meta.
func StructCreate(g *gc.Gc, metaID vtype.MetaId, meta StructMeta) gc.Ref {
	return g.Alloc(vtype.NewValueMeta(metaID, vtype.Struct), uint16(len(meta.SlotTypes)))
}

// PointerCreate allocates a boxed pointee: same field layout as a struct,
// classified as Pointer so the VM can distinguish "this is addressed
// through a pointer" call sites (method sets, escaped locals) from a
// plain struct value.
func PointerCreate(g *gc.Gc, metaID vtype.MetaId, meta StructMeta) gc.Ref {
	return g.Alloc(vtype.NewValueMeta(metaID, vtype.Pointer), uint16(len(meta.SlotTypes)))
}

// FieldGet/FieldSet read and write a single struct/pointer field slot.
func FieldGet(g *gc.Gc, ref gc.Ref, idx int) uint64 { return g.ReadSlot(ref, idx) }

func FieldSet(g *gc.Gc, ref gc.Ref, idx int, val uint64, st vtype.SlotType) {
	if st == vtype.GcRef {
		g.WriteRefSlot(ref, idx, gc.Ref(val))
	} else {
		g.WriteSlot(ref, idx, val)
	}
}

// FieldSetInterface writes the two slots of an interface-typed field.
func FieldSetInterface(g *gc.Gc, ref gc.Ref, idx int, slot0, slot1 uint64) {
	g.WriteInterfaceSlots(ref, idx, slot0, slot1, IfaceDataIsGcRef(slot0))
}
