package heap

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vo-lang/vort/internal/gc"
	"github.com/vo-lang/vort/internal/vtype"
)

func newGc() *gc.Gc { return gc.New(1.0, 1<<20) }

func TestStringRoundTrip(t *testing.T) {
	g := newGc()
	s := StrNew(g, []byte("hello"))
	require.Equal(t, 5, StrLen(g, s))
	require.Equal(t, byte('h'), StrIndex(g, s, 0))
	require.Equal(t, "hello", string(StrBytes(g, s)))
}

func TestStringConcatAndSlice(t *testing.T) {
	g := newGc()
	a := StrNew(g, []byte("foo"))
	b := StrNew(g, []byte("bar"))
	c := StrConcat(g, a, b)
	require.Equal(t, "foobar", string(StrBytes(g, c)))

	sub := StrSliceOf(g, c, 1, 4)
	require.Equal(t, "oob", string(StrBytes(g, sub)))
	require.True(t, StrEqual(g, sub, StrNew(g, []byte("oob"))))
}

func TestArrayGetSet(t *testing.T) {
	g := newGc()
	arr := ArrayCreate(g, vtype.NewValueMeta(0, vtype.Int64), 3)
	ArraySet(g, arr, 0, 10)
	ArraySet(g, arr, 1, 20)
	ArraySet(g, arr, 2, 30)
	require.EqualValues(t, 3, ArrayLen(g, arr))
	require.EqualValues(t, 20, ArrayGet(g, arr, 1))
}

func TestSliceAppendGrowsByDoubling(t *testing.T) {
	g := newGc()
	elemMeta := vtype.NewValueMeta(0, vtype.Int64)
	var s gc.Ref // nil slice

	for i := 0; i < 10; i++ {
		s = SliceAppend(g, elemMeta, s, uint64(i))
	}

	require.Equal(t, 10, SliceLen(g, s))
	require.Equal(t, 16, SliceCap(g, s)) // 4 -> 8 -> 16
	for i := 0; i < 10; i++ {
		require.EqualValues(t, i, SliceGet(g, s, i))
	}
}

func TestSliceOfTwoAndThreeIndex(t *testing.T) {
	g := newGc()
	elemMeta := vtype.NewValueMeta(0, vtype.Int64)
	arr := ArrayCreate(g, elemMeta, 10)
	for i := 0; i < 10; i++ {
		ArraySet(g, arr, i, uint64(i*10))
	}
	s := SliceFromArray(g, arr)

	sub := SliceOf(g, s, 2, 5)
	require.Equal(t, 3, SliceLen(g, sub))
	require.EqualValues(t, 20, SliceGet(g, sub, 0))
	require.Equal(t, 8, SliceCap(g, sub)) // cap extends to original cap minus lo

	sub3 := SliceOfWithCap(g, s, 2, 5, 7)
	require.Equal(t, 5, SliceCap(g, sub3))
}

func TestMapSetGetDelete(t *testing.T) {
	g := newGc()
	keyMeta := vtype.NewValueMeta(0, vtype.Int64)
	valMeta := vtype.NewValueMeta(0, vtype.Int64)
	m := MapCreate(g, keyMeta, valMeta)

	for i := 0; i < 50; i++ {
		MapSet(g, m, []uint64{uint64(i)}, []uint64{uint64(i * 2)})
	}
	require.Equal(t, 50, MapLen(g, m))

	v, ok := MapGet(g, m, []uint64{7})
	require.True(t, ok)
	require.EqualValues(t, 14, v[0])

	require.True(t, MapDelete(g, m, []uint64{7}))
	_, ok = MapGet(g, m, []uint64{7})
	require.False(t, ok)
	require.Equal(t, 49, MapLen(g, m))
}

func TestMapStringKeys(t *testing.T) {
	g := newGc()
	keyMeta := vtype.NewValueMeta(0, vtype.String)
	valMeta := vtype.NewValueMeta(0, vtype.Int64)
	m := MapCreate(g, keyMeta, valMeta)

	k1 := StrNew(g, []byte("alpha"))
	MapSet(g, m, []uint64{uint64(k1)}, []uint64{1})

	k2 := StrNew(g, []byte("alpha")) // distinct ref, equal contents
	v, ok := MapGet(g, m, []uint64{uint64(k2)})
	require.True(t, ok)
	require.EqualValues(t, 1, v[0])
}

func TestMapGrowsPastLoadFactor(t *testing.T) {
	g := newGc()
	keyMeta := vtype.NewValueMeta(0, vtype.Int64)
	valMeta := vtype.NewValueMeta(0, vtype.Int64)
	m := MapCreate(g, keyMeta, valMeta)

	for i := 0; i < 100; i++ {
		MapSet(g, m, []uint64{uint64(i)}, []uint64{uint64(i)})
	}
	require.GreaterOrEqual(t, MapCap(g, m), 128)
	for i := 0; i < 100; i++ {
		v, ok := MapGet(g, m, []uint64{uint64(i)})
		require.True(t, ok)
		require.EqualValues(t, i, v[0])
	}
}

func TestChannelBufferedSendRecv(t *testing.T) {
	g := newGc()
	ch := ChanNew(g, vtype.NewValueMeta(0, vtype.Int64), 2)
	require.True(t, ChanTryBufferedSend(g, ch, []uint64{1}))
	require.True(t, ChanTryBufferedSend(g, ch, []uint64{2}))
	require.False(t, ChanTryBufferedSend(g, ch, []uint64{3})) // full

	v, ok := ChanTryBufferedRecv(g, ch)
	require.True(t, ok)
	require.EqualValues(t, 1, v[0])

	require.True(t, ChanTryBufferedSend(g, ch, []uint64{3}))
	v, ok = ChanTryBufferedRecv(g, ch)
	require.True(t, ok)
	require.EqualValues(t, 2, v[0])
}

func TestChannelCloseIsVisible(t *testing.T) {
	g := newGc()
	ch := ChanNew(g, vtype.NewValueMeta(0, vtype.Int64), 1)
	require.False(t, ChanClosed(g, ch))
	ChanClose(g, ch)
	require.True(t, ChanClosed(g, ch))
}

func TestClosureCaptureAndCallLayout(t *testing.T) {
	g := newGc()
	c := ClosureCreate(g, 42, 2)
	require.Equal(t, uint32(42), ClosureFuncID(g, c))
	require.Equal(t, 2, ClosureCaptureCount(g, c))

	captured := ArrayCreate(g, vtype.NewValueMeta(0, vtype.Int64), 1)
	ClosureSetCapture(g, c, 0, captured)
	require.Equal(t, captured, ClosureGetCapture(g, c, 0))

	// Method closure: recv_slots > 0 and captures present.
	layout := ClosureCallLayoutFor(g, uint64(c), c, 1, false)
	require.True(t, layout.HasSlot0)
	require.EqualValues(t, captured, layout.Slot0)
	require.Equal(t, 1, layout.ArgOffset)

	// Anonymous closure, no receiver.
	layout2 := ClosureCallLayoutFor(g, uint64(c), c, 0, true)
	require.True(t, layout2.HasSlot0)
	require.Equal(t, uint64(c), layout2.Slot0)
	require.Equal(t, 1, layout2.ArgOffset)
}

func TestClosureCallLayoutNamedFunctionNoCaptures(t *testing.T) {
	g := newGc()
	c := ClosureCreate(g, 7, 0)
	layout := ClosureCallLayoutFor(g, uint64(c), c, 0, false)
	require.False(t, layout.HasSlot0)
	require.Equal(t, 0, layout.ArgOffset)
}

func TestInterfacePackUnpack(t *testing.T) {
	meta := vtype.NewValueMeta(3, vtype.Int64)
	slot0 := PackSlot0(99, meta)
	require.Equal(t, uint32(99), UnpackItabID(slot0))
	require.Equal(t, meta, UnpackValueMeta(slot0))
	require.False(t, IfaceIsNil(slot0))
	require.False(t, IfaceDataIsGcRef(slot0))

	nilSlot0 := PackSlot0(0, vtype.NewValueMeta(0, vtype.Void))
	require.True(t, IfaceIsNil(nilSlot0))
}

func TestMapSurvivesCollectAndTableStaysReachable(t *testing.T) {
	g := newGc()
	metas := fakeMetaTable{}
	keyMeta := vtype.NewValueMeta(0, vtype.Int64)
	valMeta := vtype.NewValueMeta(0, vtype.String)
	m := MapCreate(g, keyMeta, valMeta)
	MapSet(g, m, []uint64{1}, []uint64{uint64(StrNew(g, []byte("one")))})
	MapSet(g, m, []uint64{2}, []uint64{uint64(StrNew(g, []byte("two")))})

	scanChildren := func(gg *gc.Gc, ref gc.Ref) { ScanObject(gg, ref, metas) }
	g.Collect(func(gg *gc.Gc) {
		gg.MarkGray(m)
	}, scanChildren, nil)

	// The map's own bucket table must still be reachable after a
	// collection over a live map, not swept as an unreferenced Map-kind
	// object distinct from the outer map handle.
	require.NotPanics(t, func() {
		v, ok := MapGet(g, m, []uint64{1})
		require.True(t, ok)
		require.Equal(t, "one", string(StrBytes(g, gc.Ref(v[0]))))
	})
	require.NotPanics(t, func() {
		MapSet(g, m, []uint64{3}, []uint64{uint64(StrNew(g, []byte("three")))})
	})
	require.Equal(t, 3, MapLen(g, m))
}

type fakeMetaTable map[vtype.MetaId]StructMeta

func (f fakeMetaTable) StructMeta(id vtype.MetaId) (StructMeta, bool) {
	m, ok := f[id]
	return m, ok
}

func TestScanObjectStructFollowsGcRefFields(t *testing.T) {
	g := newGc()
	metas := fakeMetaTable{
		1: {Name: "Node", SlotTypes: []vtype.SlotType{vtype.GcRef, vtype.Plain}},
	}
	child := StrNew(g, []byte("x"))
	parent := StructCreate(g, 1, metas[1])
	FieldSet(g, parent, 0, uint64(child), vtype.GcRef)
	FieldSet(g, parent, 1, 123, vtype.Plain)

	scanChildren := func(gg *gc.Gc, ref gc.Ref) { ScanObject(gg, ref, metas) }

	stats := g.Collect(func(gg *gc.Gc) {
		gg.MarkGray(parent)
	}, scanChildren, nil)

	// parent struct + child string object + the string's backing byte array
	require.Equal(t, 3, stats.LiveObjects)
	require.NotPanics(t, func() { g.Header(child) })
}
