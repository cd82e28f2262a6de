package scheduler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vo-lang/vort/internal/fiber"
	"github.com/vo-lang/vort/internal/gc"
	"github.com/vo-lang/vort/internal/heap"
	"github.com/vo-lang/vort/internal/vtype"
)

func newGc() *gc.Gc { return gc.New(1.0, 1<<20) }

func TestSpawnAndRoundRobin(t *testing.T) {
	s := New(0)
	f0 := fiber.New(0)
	f1 := fiber.New(1)
	s.Spawn(f0)
	s.Spawn(f1)

	id, ok := s.NextRunnable()
	require.True(t, ok)
	require.EqualValues(t, 0, id)

	id, ok = s.NextRunnable()
	require.True(t, ok)
	require.EqualValues(t, 1, id)

	_, ok = s.NextRunnable()
	require.False(t, ok)
}

func TestParkAndWakeSender(t *testing.T) {
	s := New(0)
	f0 := fiber.New(0)
	s.fibers = append(s.fibers, f0)

	ch := gc.Ref(1)
	s.ParkForSend(ch, 0, []uint64{42})
	require.True(t, s.HasSendWaiter(ch))
	require.Equal(t, fiber.Suspended, f0.Status)

	w, ok := s.WakeSender(ch)
	require.True(t, ok)
	require.EqualValues(t, 42, w.Value[0])
	require.Equal(t, fiber.Running, f0.Status)
	require.False(t, s.HasSendWaiter(ch))

	id, ok := s.NextRunnable()
	require.True(t, ok)
	require.EqualValues(t, 0, id)
}

func TestDeadlockedWhenNothingRunnableButFibersAlive(t *testing.T) {
	s := New(0)
	f0 := fiber.New(0)
	s.fibers = append(s.fibers, f0)
	require.True(t, s.Deadlocked())

	s.Enqueue(0)
	require.False(t, s.Deadlocked())
}

func TestSelectExecPicksReadyRecvFromBuffer(t *testing.T) {
	g := newGc()
	s := New(0)
	ch := heap.ChanNew(g, vtype.NewValueMeta(0, vtype.Int64), 1)
	heap.ChanTryBufferedSend(g, ch, []uint64{7})

	state := fiber.NewSelectState([]fiber.SelectCase{{Kind: fiber.SelectRecv, ChanReg: 0}}, false)
	res := Exec(g, s, 0, state, func(uint16) gc.Ref { return ch }, nil)

	require.True(t, res.Ready)
	require.Equal(t, 0, res.Index)
	require.True(t, res.Ok)
	require.EqualValues(t, 7, res.Value[0])
}

func TestSelectExecNotReadyWhenNothingAvailable(t *testing.T) {
	g := newGc()
	s := New(0)
	ch := heap.ChanNew(g, vtype.NewValueMeta(0, vtype.Int64), 1)

	state := fiber.NewSelectState([]fiber.SelectCase{{Kind: fiber.SelectRecv, ChanReg: 0}}, false)
	res := Exec(g, s, 0, state, func(uint16) gc.Ref { return ch }, nil)
	require.False(t, res.Ready)
}

func TestSelectExecSendWakesWaitingReceiver(t *testing.T) {
	g := newGc()
	s := New(0)
	ch := heap.ChanNew(g, vtype.NewValueMeta(0, vtype.Int64), 0) // unbuffered

	recv := fiber.New(1)
	s.fibers = append(s.fibers, fiber.New(0), recv)
	s.ParkForRecv(ch, 1)

	state := fiber.NewSelectState([]fiber.SelectCase{{Kind: fiber.SelectSend, ChanReg: 0, ValReg: 0}}, false)
	res := Exec(g, s, 0, state, func(uint16) gc.Ref { return ch }, func(uint16) []uint64 { return []uint64{9} })

	require.True(t, res.Ready)
	require.True(t, res.Ok)
	v, ok := s.TakeDelivered(1)
	require.True(t, ok)
	require.EqualValues(t, 9, v[0])
}

func TestScanRootsMarksPendingSendValues(t *testing.T) {
	g := newGc()
	s := New(0)
	elemMeta := vtype.NewValueMeta(0, vtype.String)
	ch := heap.ChanNew(g, elemMeta, 0)
	s.fibers = append(s.fibers, fiber.New(0))

	strRef := heap.StrNew(g, []byte("x"))
	s.ParkForSend(ch, 0, []uint64{uint64(strRef)})

	var marked []gc.Ref
	s.ScanRoots(g, func(r gc.Ref) { marked = append(marked, r) })
	require.Contains(t, marked, strRef)
}

func TestScanRootsMarksDeliveredValues(t *testing.T) {
	g := newGc()
	s := New(0)
	elemMeta := vtype.NewValueMeta(0, vtype.String)
	ch := heap.ChanNew(g, elemMeta, 0)
	s.fibers = append(s.fibers, fiber.New(0))

	strRef := heap.StrNew(g, []byte("handed off"))
	s.DeliverToReceiver(0, ch, []uint64{uint64(strRef)})

	var marked []gc.Ref
	s.ScanRoots(g, func(r gc.Ref) { marked = append(marked, r) })
	require.Contains(t, marked, strRef)

	v, ok := s.TakeDelivered(0)
	require.True(t, ok)
	require.EqualValues(t, strRef, v[0])
}
