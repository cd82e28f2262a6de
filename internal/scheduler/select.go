package scheduler

import (
	"math/rand"

	"github.com/vo-lang/vort/internal/fiber"
	"github.com/vo-lang/vort/internal/gc"
	"github.com/vo-lang/vort/internal/heap"
)

// SelectResult reports which case (if any) a select statement resolved
// to immediately.
type SelectResult struct {
	Ready bool
	Index int
	// Value is populated once commit runs a ready recv case.
	Value []uint64
	// Ok mirrors the comma-ok result: false for a recv case whose channel
	// is closed and empty, and for a send case whose channel is closed.
	Ok bool
}

// peekReady reports whether case c on ch could complete without
// blocking, with no side effects — Exec calls this for every case before
// picking a winner, so it must never consume a buffered value or wake a
// waiter itself.
func peekReady(g *gc.Gc, s *Scheduler, c fiber.SelectCase, ch gc.Ref) bool {
	switch c.Kind {
	case fiber.SelectRecv:
		return heap.ChanLen(g, ch) > 0 || s.HasSendWaiter(ch) || heap.ChanClosed(g, ch)
	case fiber.SelectSend:
		return heap.ChanClosed(g, ch) || s.HasRecvWaiter(ch) || heap.ChanHasRoom(g, ch)
	}
	return false
}

// commit performs the actual send/recv for the chosen case, now that it
// alone has been picked. sendVal is the value to send, read from the
// case's val_reg by the caller; it is ignored for recv cases.
func commit(g *gc.Gc, s *Scheduler, selfID uint32, c fiber.SelectCase, ch gc.Ref, sendVal []uint64) (value []uint64, ok bool) {
	switch c.Kind {
	case fiber.SelectRecv:
		if v, got := heap.ChanTryBufferedRecv(g, ch); got {
			// A buffered slot just freed up; hand it to the oldest
			// parked sender, if any, so the rendezvous completes.
			if w, woke := s.WakeSender(ch); woke {
				heap.ChanTryBufferedSend(g, ch, w.Value)
			}
			return v, true
		}
		if w, woke := s.WakeSender(ch); woke {
			return w.Value, true
		}
		return nil, false // channel closed and empty

	case fiber.SelectSend:
		if heap.ChanClosed(g, ch) {
			return nil, false
		}
		if w, woke := s.WakeReceiver(ch); woke {
			s.DeliverToReceiver(w.FiberID, ch, sendVal)
			return nil, true
		}
		heap.ChanTryBufferedSend(g, ch, sendVal)
		return nil, true
	}
	return nil, false
}

// Exec evaluates every case of state against channel registers resolved
// by chanOf, scanning all of them (same non-blocking "check everybody,
// then act" shape as zenq's Select) and, among every case found ready,
// picking uniformly at random rather than by a fewest-reads counter —
// spec calls for a random tiebreak since fiber fairness here doesn't
// hinge on a per-channel read counter the way zenq's queue selection
// does. Only the winning case is actually committed.
func Exec(g *gc.Gc, s *Scheduler, selfID uint32, state *fiber.SelectState, chanOf func(reg uint16) gc.Ref, valOf func(reg uint16) []uint64) SelectResult {
	var readyIdx []int
	for i, c := range state.Cases {
		if peekReady(g, s, c, chanOf(c.ChanReg)) {
			readyIdx = append(readyIdx, i)
		}
	}
	if len(readyIdx) == 0 {
		return SelectResult{Ready: false}
	}

	pick := readyIdx[0]
	if len(readyIdx) > 1 {
		pick = readyIdx[rand.Intn(len(readyIdx))]
	}

	c := state.Cases[pick]
	var sendVal []uint64
	if c.Kind == fiber.SelectSend {
		sendVal = valOf(c.ValReg)
	}
	val, ok := commit(g, s, selfID, c, chanOf(c.ChanReg), sendVal)
	return SelectResult{Ready: true, Index: pick, Value: val, Ok: ok}
}
