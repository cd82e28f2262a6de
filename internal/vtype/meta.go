package vtype

// MetaId indexes a module's per-kind metadata table (struct layout,
// interface method order, named-type method table). Reserved builtin
// kinds never need one and carry MetaId 0.
type MetaId uint32

// ValueMeta is the packed 32-bit runtime identity of a value: a 24-bit
// MetaId plus the 8-bit ValueKind. Kind alone drives dispatch on packed
// primitives; the full ValueMeta is the identity the GC and itab cache key
// on for anything with per-module layout.
type ValueMeta uint32

// NewValueMeta packs a MetaId and ValueKind into a ValueMeta.
func NewValueMeta(id MetaId, kind ValueKind) ValueMeta {
	return ValueMeta((uint32(id)&0x00FFFFFF)<<8 | uint32(kind))
}

// ValueMetaFromRaw reinterprets a raw 32-bit value as a ValueMeta (used when the
// value arrives already packed, e.g. from a stack slot or bytecode operand).
func ValueMetaFromRaw(raw uint32) ValueMeta { return ValueMeta(raw) }

// Raw returns the packed 32-bit representation.
func (m ValueMeta) Raw() uint32 { return uint32(m) }

// Kind extracts the 8-bit ValueKind.
func (m ValueMeta) Kind() ValueKind { return ValueKind(uint32(m) & 0xFF) }

// MetaId extracts the 24-bit meta id.
func (m ValueMeta) MetaId() MetaId { return MetaId(uint32(m) >> 8) }

// SlotType classifies a single stack/global/struct slot for GC root
// scanning. Interface0 marks the first of a two-slot interface value; the
// second slot is scanned conditionally, based on the embedded kind in
// slot 0 (see heap.IfaceDataIsGcRef).
type SlotType uint8

const (
	Plain SlotType = iota
	GcRef
	Interface0
)
