package heap

import (
	"github.com/vo-lang/vort/internal/gc"
	"github.com/vo-lang/vort/internal/vtype"
)

// String layout: GcHeader + [array_ref:1] over a byte-holding array.
// Strings are immutable once created; Concat and SliceOf always allocate.
const stringArrayField = 0

var byteMeta = vtype.NewValueMeta(0, vtype.Uint8)

// StrNew copies b into a fresh string object.
func StrNew(g *gc.Gc, b []byte) gc.Ref {
	arr := ArrayCreate(g, byteMeta, len(b))
	for i, c := range b {
		ArraySet(g, arr, i, uint64(c))
	}
	s := g.Alloc(vtype.NewValueMeta(0, vtype.String), 1)
	g.WriteRefSlot(s, stringArrayField, arr)
	return s
}

// StrArrayRef returns the backing byte array.
func StrArrayRef(g *gc.Gc, s gc.Ref) gc.Ref { return gc.Ref(g.ReadSlot(s, stringArrayField)) }

// StrLen returns the byte length.
func StrLen(g *gc.Gc, s gc.Ref) int {
	arr := StrArrayRef(g, s)
	if arr.IsNil() {
		return 0
	}
	return ArrayLen(g, arr)
}

// StrIndex returns the byte at i.
func StrIndex(g *gc.Gc, s gc.Ref, i int) byte {
	return byte(ArrayGet(g, StrArrayRef(g, s), i))
}

// StrBytes materializes the string's contents as a Go []byte, for
// interop with externs and formatting.
func StrBytes(g *gc.Gc, s gc.Ref) []byte {
	n := StrLen(g, s)
	out := make([]byte, n)
	arr := StrArrayRef(g, s)
	for i := 0; i < n; i++ {
		out[i] = byte(ArrayGet(g, arr, i))
	}
	return out
}

// StrConcat allocates a new string holding a's bytes followed by b's.
func StrConcat(g *gc.Gc, a, b gc.Ref) gc.Ref {
	return StrNew(g, append(StrBytes(g, a), StrBytes(g, b)...))
}

// StrSliceOf returns the substring [lo:hi).
func StrSliceOf(g *gc.Gc, s gc.Ref, lo, hi int) gc.Ref {
	return StrNew(g, StrBytes(g, s)[lo:hi])
}

// StrEqual reports byte-for-byte equality.
func StrEqual(g *gc.Gc, a, b gc.Ref) bool {
	la, lb := StrLen(g, a), StrLen(g, b)
	if la != lb {
		return false
	}
	arrA, arrB := StrArrayRef(g, a), StrArrayRef(g, b)
	for i := 0; i < la; i++ {
		if ArrayGet(g, arrA, i) != ArrayGet(g, arrB, i) {
			return false
		}
	}
	return true
}
