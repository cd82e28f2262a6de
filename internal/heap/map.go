package heap

import (
	"github.com/cespare/xxhash/v2"

	"github.com/vo-lang/vort/internal/gc"
	"github.com/vo-lang/vort/internal/vtype"
)

// Map identity is a stable one-slot object holding a ref to the current
// bucket table, the same way Go's own map value is a stable pointer to a
// growable hmap. Growing the table (MapSet past the load factor)
// reallocates the table and repoints this slot — every alias of the map
// value keeps working because it only ever holds the stable outer ref.
const mapTableField = 0

// Bucket table layout: GcHeader + [keyMeta, valMeta, len, cap] + buckets.
// Each bucket is [state:1, key:keySlots, val:valSlots]. state is 0 empty,
// 1 occupied, 2 tombstone.
const (
	tableFieldKeyMeta = 0
	tableFieldValMeta = 1
	tableFieldLen     = 2
	tableFieldCap     = 3
	tableHeaderSlots  = 4

	bucketEmpty     = 0
	bucketOccupied  = 1
	bucketTombstone = 2
)

const mapInitialCap = 8
const mapLoadFactor = 0.75

func keySlots(keyMeta vtype.ValueMeta) int { return int(keyMeta.Kind().SlotCount()) }
func valSlots(valMeta vtype.ValueMeta) int { return int(valMeta.Kind().SlotCount()) }

func bucketStride(keyMeta, valMeta vtype.ValueMeta) int {
	return 1 + keySlots(keyMeta) + valSlots(valMeta)
}

func allocTable(g *gc.Gc, keyMeta, valMeta vtype.ValueMeta, capacity int) gc.Ref {
	total := tableHeaderSlots + capacity*bucketStride(keyMeta, valMeta)
	t := g.Alloc(vtype.NewValueMeta(0, vtype.Map), uint16(total))
	g.WriteSlot(t, tableFieldKeyMeta, uint64(keyMeta.Raw()))
	g.WriteSlot(t, tableFieldValMeta, uint64(valMeta.Raw()))
	g.WriteSlot(t, tableFieldLen, 0)
	g.WriteSlot(t, tableFieldCap, uint64(capacity))
	return t
}

// MapCreate allocates a new empty map keyed by keyMeta with values of
// valMeta.
func MapCreate(g *gc.Gc, keyMeta, valMeta vtype.ValueMeta) gc.Ref {
	table := allocTable(g, keyMeta, valMeta, mapInitialCap)
	m := g.Alloc(vtype.NewValueMeta(0, vtype.Map), 1)
	g.WriteRefSlot(m, mapTableField, table)
	return m
}

func mapTable(g *gc.Gc, m gc.Ref) gc.Ref { return gc.Ref(g.ReadSlot(m, mapTableField)) }

// MapLen returns the number of live entries. A nil map (the zero value,
// never passed through MapCreate) has length 0, matching len(nilMap).
func MapLen(g *gc.Gc, m gc.Ref) int {
	if m.IsNil() {
		return 0
	}
	return int(g.ReadSlot(mapTable(g, m), tableFieldLen))
}

// MapKeyMeta and MapValMeta return the map's static key/value kinds.
func MapKeyMeta(g *gc.Gc, m gc.Ref) vtype.ValueMeta {
	return vtype.ValueMetaFromRaw(uint32(g.ReadSlot(mapTable(g, m), tableFieldKeyMeta)))
}
func MapValMeta(g *gc.Gc, m gc.Ref) vtype.ValueMeta {
	return vtype.ValueMetaFromRaw(uint32(g.ReadSlot(mapTable(g, m), tableFieldValMeta)))
}

// hashKey mixes a key's raw slot words into a 64-bit hash. String keys
// hash their byte contents with xxhash, the same mixing function
// hashicorp-nomad/hydraide-hydraide/Hawthorne001-aistore reach for over
// byte-keyed maps; every other kind (numeric, bool, pointer, 2-word
// interface) mixes its raw words with a splitmix64 finalizer since there
// is no byte buffer to hash.
func hashKey(g *gc.Gc, keyMeta vtype.ValueMeta, words []uint64) uint64 {
	if keyMeta.Kind() == vtype.String {
		return xxhash.Sum64(StrBytes(g, gc.Ref(words[0])))
	}
	h := uint64(0)
	for _, w := range words {
		h = splitmix64(h ^ w)
	}
	return h
}

func splitmix64(x uint64) uint64 {
	x += 0x9E3779B97F4A7C15
	x = (x ^ (x >> 30)) * 0xBF58476D1CE4E5B9
	x = (x ^ (x >> 27)) * 0x94D049BB133111EB
	return x ^ (x >> 31)
}

func keyEqual(g *gc.Gc, keyMeta vtype.ValueMeta, a, b []uint64) bool {
	if keyMeta.Kind() == vtype.String {
		return StrEqual(g, gc.Ref(a[0]), gc.Ref(b[0]))
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func bucketOffset(idx int, keyMeta, valMeta vtype.ValueMeta) int {
	return tableHeaderSlots + idx*bucketStride(keyMeta, valMeta)
}

// MapGet looks up key, returning its value words and true, or (nil,
// false) if absent or m is nil (reading from a nil map is legal and
// always misses, the same as Go's own nil-map read semantics).
func MapGet(g *gc.Gc, m gc.Ref, key []uint64) ([]uint64, bool) {
	if m.IsNil() {
		return nil, false
	}
	table := mapTable(g, m)
	keyMeta := MapKeyMeta(g, m)
	valMeta := MapValMeta(g, m)
	cap := int(g.ReadSlot(table, tableFieldCap))
	if cap == 0 {
		return nil, false
	}
	ks, vs := keySlots(keyMeta), valSlots(valMeta)
	idx := int(hashKey(g, keyMeta, key) % uint64(cap))

	for probed := 0; probed < cap; probed++ {
		off := bucketOffset(idx, keyMeta, valMeta)
		state := g.ReadSlot(table, off)
		if state == bucketEmpty {
			return nil, false
		}
		if state == bucketOccupied {
			storedKey := readWords(g, table, off+1, ks)
			if keyEqual(g, keyMeta, storedKey, key) {
				return readWords(g, table, off+1+ks, vs), true
			}
		}
		idx = (idx + 1) % cap
	}
	return nil, false
}

func readWords(g *gc.Gc, ref gc.Ref, off, n int) []uint64 {
	out := make([]uint64, n)
	for i := 0; i < n; i++ {
		out[i] = g.ReadSlot(ref, off+i)
	}
	return out
}

// MapSet inserts or updates key with val, growing the backing table (and
// repointing m at a fresh one) if the load factor is exceeded. m's own
// identity never changes.
func MapSet(g *gc.Gc, m gc.Ref, key, val []uint64) {
	table := mapTable(g, m)
	keyMeta := MapKeyMeta(g, m)
	valMeta := MapValMeta(g, m)
	cap := int(g.ReadSlot(table, tableFieldCap))
	length := int(g.ReadSlot(table, tableFieldLen))

	if float64(length+1) > mapLoadFactor*float64(cap) {
		table = growTable(g, m, table, keyMeta, valMeta, cap)
		cap = int(g.ReadSlot(table, tableFieldCap))
	}

	ks, vs := keySlots(keyMeta), valSlots(valMeta)
	idx := int(hashKey(g, keyMeta, key) % uint64(cap))
	firstTombstone := -1

	for probed := 0; probed < cap; probed++ {
		off := bucketOffset(idx, keyMeta, valMeta)
		state := g.ReadSlot(table, off)
		switch state {
		case bucketEmpty:
			writeIdx := idx
			if firstTombstone >= 0 {
				writeIdx = firstTombstone
			}
			insertBucket(g, table, writeIdx, keyMeta, valMeta, key, val)
			g.WriteSlot(table, tableFieldLen, uint64(length+1))
			return
		case bucketTombstone:
			if firstTombstone < 0 {
				firstTombstone = idx
			}
		case bucketOccupied:
			storedKey := readWords(g, table, off+1, ks)
			if keyEqual(g, keyMeta, storedKey, key) {
				writeWordsRef(g, table, off+1+ks, val, valMeta.Kind().MayContainGcRefs())
				return
			}
		}
		idx = (idx + 1) % cap
	}
	// Unreachable under the load-factor invariant above, but fall back
	// to a tombstone slot if linear probing exhausted every live bucket.
	if firstTombstone >= 0 {
		insertBucket(g, table, firstTombstone, keyMeta, valMeta, key, val)
		g.WriteSlot(table, tableFieldLen, uint64(length+1))
	}
}

func insertBucket(g *gc.Gc, table gc.Ref, idx int, keyMeta, valMeta vtype.ValueMeta, key, val []uint64) {
	off := bucketOffset(idx, keyMeta, valMeta)
	g.WriteSlot(table, off, bucketOccupied)
	writeWordsRef(g, table, off+1, key, keyMeta.Kind().MayContainGcRefs())
	writeWordsRef(g, table, off+1+len(key), val, valMeta.Kind().MayContainGcRefs())
}

func writeWordsRef(g *gc.Gc, ref gc.Ref, off int, words []uint64, isRef bool) {
	for i, w := range words {
		if isRef {
			g.WriteRefSlot(ref, off+i, gc.Ref(w))
		} else {
			g.WriteSlot(ref, off+i, w)
		}
	}
}

func growTable(g *gc.Gc, m, oldTable gc.Ref, keyMeta, valMeta vtype.ValueMeta, oldCap int) gc.Ref {
	newCap := oldCap * 2
	if newCap == 0 {
		newCap = mapInitialCap
	}
	newTable := allocTable(g, keyMeta, valMeta, newCap)
	ks, vs := keySlots(keyMeta), valSlots(valMeta)

	for i := 0; i < oldCap; i++ {
		off := bucketOffset(i, keyMeta, valMeta)
		if g.ReadSlot(oldTable, off) != bucketOccupied {
			continue
		}
		k := readWords(g, oldTable, off+1, ks)
		v := readWords(g, oldTable, off+1+ks, vs)
		rehashInsert(g, newTable, keyMeta, valMeta, newCap, k, v)
	}
	g.WriteSlot(newTable, tableFieldLen, g.ReadSlot(oldTable, tableFieldLen))
	g.WriteRefSlot(m, mapTableField, newTable)
	return newTable
}

func rehashInsert(g *gc.Gc, table gc.Ref, keyMeta, valMeta vtype.ValueMeta, cap int, key, val []uint64) {
	idx := int(hashKey(g, keyMeta, key) % uint64(cap))
	for {
		off := bucketOffset(idx, keyMeta, valMeta)
		if g.ReadSlot(table, off) == bucketEmpty {
			insertBucket(g, table, idx, keyMeta, valMeta, key, val)
			return
		}
		idx = (idx + 1) % cap
	}
}

// MapDelete removes key if present, tombstoning its bucket. A nil map has
// nothing to delete, matching the no-op Go gives delete() on a nil map.
func MapDelete(g *gc.Gc, m gc.Ref, key []uint64) bool {
	if m.IsNil() {
		return false
	}
	table := mapTable(g, m)
	keyMeta := MapKeyMeta(g, m)
	valMeta := MapValMeta(g, m)
	cap := int(g.ReadSlot(table, tableFieldCap))
	if cap == 0 {
		return false
	}
	ks := keySlots(keyMeta)
	idx := int(hashKey(g, keyMeta, key) % uint64(cap))

	for probed := 0; probed < cap; probed++ {
		off := bucketOffset(idx, keyMeta, valMeta)
		state := g.ReadSlot(table, off)
		if state == bucketEmpty {
			return false
		}
		if state == bucketOccupied {
			storedKey := readWords(g, table, off+1, ks)
			if keyEqual(g, keyMeta, storedKey, key) {
				g.WriteSlot(table, off, bucketTombstone)
				g.WriteSlot(table, tableFieldLen, g.ReadSlot(table, tableFieldLen)-1)
				return true
			}
		}
		idx = (idx + 1) % cap
	}
	return false
}

// MapIterAt returns the key/value words stored in the idx'th raw bucket
// slot (not a logical entry index), or ok=false if that bucket is not
// occupied. Used by the GC's scan-by-type pass and by user-visible range
// iteration, which both walk the bucket array directly.
func MapIterAt(g *gc.Gc, m gc.Ref, idx int) (key, val []uint64, ok bool) {
	table := mapTable(g, m)
	keyMeta := MapKeyMeta(g, m)
	valMeta := MapValMeta(g, m)
	cap := int(g.ReadSlot(table, tableFieldCap))
	if idx < 0 || idx >= cap {
		return nil, nil, false
	}
	off := bucketOffset(idx, keyMeta, valMeta)
	if g.ReadSlot(table, off) != bucketOccupied {
		return nil, nil, false
	}
	ks, vs := keySlots(keyMeta), valSlots(valMeta)
	return readWords(g, table, off+1, ks), readWords(g, table, off+1+ks, vs), true
}

// MapCap returns the current bucket table capacity, for range iteration
// bounds.
func MapCap(g *gc.Gc, m gc.Ref) int { return int(g.ReadSlot(mapTable(g, m), tableFieldCap)) }
