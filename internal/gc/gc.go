// Package gc implements the tri-color incremental garbage collector that
// owns every heap allocation in the runtime. It knows nothing about the
// shape of strings, slices, maps, or closures — that is internal/heap's
// job — it only knows headers, slots, and colors. Kind-specific scanning
// is supplied to Collect as a callback so this package stays a leaf.
package gc

import (
	"fmt"

	"github.com/vo-lang/vort/internal/vtype"
)

// Ref is a handle to a heap allocation: an index into the Gc's object
// table, offset by one so the zero value means nil. It stands in for the
// original's raw header pointer — a stable 64-bit handle plays the same
// role without reaching for unsafe.Pointer arithmetic to fake a C-style
// header-plus-payload layout.
type Ref uint64

// IsNil reports whether r is the nil reference.
func (r Ref) IsNil() bool { return r == 0 }

// Color is a node's tri-color mark state.
type Color uint8

const (
	White Color = iota
	Gray
	Black
)

// Flags are per-object bits orthogonal to color.
type Flags uint8

const (
	// FlagFinalize marks objects (channels today) that need a finalize
	// callback run before their slots are released back to the pool.
	FlagFinalize Flags = 1 << iota
)

// GcHeader is the fixed-size prefix of every heap allocation.
type GcHeader struct {
	Meta      vtype.ValueMeta
	SlotCount uint16
	Color     Color
	Flags     Flags
}

type object struct {
	header GcHeader
	slots  []uint64
}

// Stats summarizes the outcome of one Collect call, reported through
// internal/metrics by the VM driver.
type Stats struct {
	LiveObjects int
	LiveBytes   int
	Freed       int
}

// Gc is the collector and the sole owner of heap object storage. It is
// not safe for concurrent use — the VM drives exactly one Gc from its
// single execution loop, matching the single-island scheduler.
type Gc struct {
	objects  []*object // index i holds Ref(i+1); nil means free slot
	freeList []Ref

	gray *grayQueue

	bytesLive    int
	bytesAtMark  int // bytesLive recorded at the end of the last collection
	heapGrowth   float64
	minThreshold int
}

// New creates a Gc. heapGrowth is the fraction (e.g. 1.0 doubles) of live
// bytes that must be allocated since the last collection before
// ShouldCollect reports true; minThreshold is a floor so tiny heaps don't
// trigger collections on every allocation.
func New(heapGrowth float64, minThreshold int) *Gc {
	return &Gc{
		gray:         newGrayQueue(),
		heapGrowth:   heapGrowth,
		minThreshold: minThreshold,
	}
}

func (g *Gc) get(ref Ref) *object {
	if ref == 0 || int(ref) > len(g.objects) {
		panic(fmt.Sprintf("gc: invalid ref %d", ref))
	}
	o := g.objects[ref-1]
	if o == nil {
		panic(fmt.Sprintf("gc: use of freed ref %d", ref))
	}
	return o
}

// Alloc reserves a new object with slotCount payload slots, all zeroed,
// tagged white (new objects are born white and get greyed by the next
// write barrier that roots them — unless a collection is in progress, in
// which case the VM roots new allocations directly via MarkGray).
func (g *Gc) Alloc(meta vtype.ValueMeta, slotCount uint16) Ref {
	o := &object{
		header: GcHeader{Meta: meta, SlotCount: slotCount, Color: White},
		slots:  make([]uint64, slotCount),
	}
	g.bytesLive += objectBytes(o)

	if n := len(g.freeList); n > 0 {
		ref := g.freeList[n-1]
		g.freeList = g.freeList[:n-1]
		g.objects[ref-1] = o
		return ref
	}
	g.objects = append(g.objects, o)
	return Ref(len(g.objects))
}

func objectBytes(o *object) int {
	return 8 /* header */ + 8*len(o.slots)
}

// Header returns a copy of ref's header.
func (g *Gc) Header(ref Ref) GcHeader { return g.get(ref).header }

// Kind is shorthand for Header(ref).Meta.Kind().
func (g *Gc) Kind(ref Ref) vtype.ValueKind { return g.get(ref).header.Meta.Kind() }

// SlotCount is shorthand for Header(ref).SlotCount.
func (g *Gc) SlotCount(ref Ref) int { return int(g.get(ref).header.SlotCount) }

// SetFlags ORs extra bits into ref's flags.
func (g *Gc) SetFlags(ref Ref, f Flags) { g.get(ref).header.Flags |= f }

// HasFlag reports whether ref carries flag f.
func (g *Gc) HasFlag(ref Ref, f Flags) bool { return g.get(ref).header.Flags&f != 0 }

// ReadSlot returns the raw payload word at idx.
func (g *Gc) ReadSlot(ref Ref, idx int) uint64 { return g.get(ref).slots[idx] }

// WriteSlot stores val at idx with no write barrier. Use for slots that
// are statically known never to hold a GcRef (numeric/bool payloads).
func (g *Gc) WriteSlot(ref Ref, idx int, val uint64) {
	g.get(ref).slots[idx] = val
}

// WriteRefSlot stores a GcRef-typed value at idx and fires the Dijkstra
// write barrier: if the container is already black (scanned this cycle)
// the new target must be shaded gray immediately, or a concurrent/
// interleaved collection could sweep it out from under a black object
// that now points to it.
func (g *Gc) WriteRefSlot(ref Ref, idx int, val Ref) {
	o := g.get(ref)
	o.slots[idx] = uint64(val)
	if o.header.Color == Black && !val.IsNil() {
		g.MarkGray(val)
	}
}

// WriteInterfaceSlots stores both words of a two-slot interface value
// (slot0 = itab_id|value_meta, slot1 = data) and fires the write barrier
// on slot1 only when it actually carries a GcRef, per slot0's embedded
// kind.
func (g *Gc) WriteInterfaceSlots(ref Ref, idx int, slot0, slot1 uint64, slot1IsRef bool) {
	o := g.get(ref)
	o.slots[idx] = slot0
	o.slots[idx+1] = slot1
	if o.header.Color == Black && slot1IsRef && slot1 != 0 {
		g.MarkGray(Ref(slot1))
	}
}

// MarkGray shades ref gray and enqueues it for scanning, unless it is
// already gray or black. Roots are grayed by calling this directly;
// children are grayed by the write barrier and by scanChildren callbacks
// during Collect.
func (g *Gc) MarkGray(ref Ref) {
	if ref.IsNil() {
		return
	}
	o := g.get(ref)
	if o.header.Color != White {
		return
	}
	o.header.Color = Gray
	g.gray.push(ref)
}

// ShouldCollect reports whether enough has been allocated since the last
// collection to warrant running one.
func (g *Gc) ShouldCollect() bool {
	grown := g.bytesLive - g.bytesAtMark
	threshold := int(float64(g.bytesAtMark) * g.heapGrowth)
	if threshold < g.minThreshold {
		threshold = g.minThreshold
	}
	return grown >= threshold
}

// LiveBytes returns the collector's current live-byte accounting.
func (g *Gc) LiveBytes() int { return g.bytesLive }

// LiveObjects returns the number of allocated (non-freed) objects.
func (g *Gc) LiveObjects() int {
	n := 0
	for _, o := range g.objects {
		if o != nil {
			n++
		}
	}
	return n
}

// Collect runs one full stop-the-world mark/sweep cycle:
//
//  1. scanRoots grays every root-reachable object (globals, fiber stacks,
//     defer records, in-flight panic values).
//  2. the gray queue drains: each popped object is handed to scanChildren,
//     which grays whatever it references, then the object turns black.
//  3. every object still white is unreachable: finalize (if flagged) then
//     free its slot for reuse, and every surviving object resets to white
//     for the next cycle.
func (g *Gc) Collect(scanRoots func(*Gc), scanChildren func(*Gc, Ref), finalize func(*Gc, Ref)) Stats {
	scanRoots(g)

	for {
		ref, ok := g.gray.pop()
		if !ok {
			break
		}
		o := g.get(ref)
		if o.header.Color != Gray {
			continue
		}
		scanChildren(g, ref)
		o.header.Color = Black
	}

	stats := Stats{}
	for i, o := range g.objects {
		if o == nil {
			continue
		}
		if o.header.Color == White {
			if o.header.Flags&FlagFinalize != 0 && finalize != nil {
				finalize(g, Ref(i+1))
			}
			g.bytesLive -= objectBytes(o)
			g.objects[i] = nil
			g.freeList = append(g.freeList, Ref(i+1))
			stats.Freed++
			continue
		}
		o.header.Color = White
		stats.LiveObjects++
		stats.LiveBytes += objectBytes(o)
	}
	g.bytesAtMark = g.bytesLive
	return stats
}
