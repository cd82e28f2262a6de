// Package scheduler runs a single island's cooperative round-robin
// scheduler: a runnable ring of fibers, and per-channel FIFOs of fibers
// parked on a send or a recv. Channel buffers themselves live in
// internal/heap; this package only tracks who is waiting on them and in
// what order to wake them.
//
// The park-queue shape is adapted from alphadose/zenq's ThreadParker
// (thread_parker.go): "one waiter enqueues, the other side dequeues and
// wakes it" becomes "one fiber parks in a channel's wait queue, the
// scheduler dequeues and re-enqueues it as runnable" — fibers are
// user-space coroutines here, not OS threads, so there is no real
// park/unpark syscall underneath; the queue discipline is what's kept.
package scheduler

import (
	"github.com/vo-lang/vort/internal/fiber"
	"github.com/vo-lang/vort/internal/gc"
	"github.com/vo-lang/vort/internal/heap"
)

// DefaultTimeSlice is the number of instructions a fiber runs before the
// scheduler preempts it back onto the runnable ring.
const DefaultTimeSlice = 1000

// Waiter is one fiber parked against a channel operation.
type Waiter struct {
	FiberID uint32
	// Value holds the word(s) being sent, for a send-side waiter. Empty
	// for a recv-side waiter until the scheduler hands it a value.
	Value []uint64
}

// Scheduler owns fiber lifecycle and channel wait queues for one island.
type Scheduler struct {
	fibers []*fiber.Fiber

	runnable []uint32 // FIFO ring, oldest-first
	runHead  int

	sendWaiters map[gc.Ref][]Waiter
	recvWaiters map[gc.Ref][]Waiter

	// delivered holds a value handed directly to a woken receiver
	// (rendezvous or select-commit path) until it resumes and claims it.
	// Chan is kept alongside Value so ScanRoots can look up the element
	// kind the same way it does for sendWaiters.
	delivered map[uint32]deliveredValue

	timeSlice int
}

// deliveredValue is one entry of Scheduler.delivered.
type deliveredValue struct {
	Chan  gc.Ref
	Value []uint64
}

// New creates a Scheduler with the given preemption time slice.
func New(timeSlice int) *Scheduler {
	if timeSlice <= 0 {
		timeSlice = DefaultTimeSlice
	}
	return &Scheduler{
		sendWaiters: make(map[gc.Ref][]Waiter),
		recvWaiters: make(map[gc.Ref][]Waiter),
		delivered:   make(map[uint32]deliveredValue),
		timeSlice:   timeSlice,
	}
}

// TimeSlice returns the configured preemption budget.
func (s *Scheduler) TimeSlice() int { return s.timeSlice }

// Spawn registers f as a new fiber and marks it runnable.
func (s *Scheduler) Spawn(f *fiber.Fiber) {
	s.fibers = append(s.fibers, f)
	s.Enqueue(f.ID)
}

// Fiber returns the fiber with the given scheduler-local id.
func (s *Scheduler) Fiber(id uint32) *fiber.Fiber { return s.fibers[id] }

// Fibers returns every fiber the scheduler knows about, live or dead,
// for root scanning and metrics.
func (s *Scheduler) Fibers() []*fiber.Fiber { return s.fibers }

// Enqueue appends a fiber id to the back of the runnable ring.
func (s *Scheduler) Enqueue(id uint32) {
	s.runnable = append(s.runnable, id)
}

// NextRunnable pops the next fiber id off the front of the ring.
func (s *Scheduler) NextRunnable() (uint32, bool) {
	if s.runHead >= len(s.runnable) {
		s.runnable = s.runnable[:0]
		s.runHead = 0
		return 0, false
	}
	id := s.runnable[s.runHead]
	s.runHead++
	if s.runHead == len(s.runnable) {
		s.runnable = s.runnable[:0]
		s.runHead = 0
	}
	return id, true
}

// RunnableCount reports how many fibers are currently queued to run.
func (s *Scheduler) RunnableCount() int { return len(s.runnable) - s.runHead }

// ParkForSend blocks fiberID against ch with the value it wants to send.
func (s *Scheduler) ParkForSend(ch gc.Ref, fiberID uint32, value []uint64) {
	s.sendWaiters[ch] = append(s.sendWaiters[ch], Waiter{FiberID: fiberID, Value: value})
	s.fibers[fiberID].Status = fiber.Suspended
}

// ParkForRecv blocks fiberID waiting for a value from ch.
func (s *Scheduler) ParkForRecv(ch gc.Ref, fiberID uint32) {
	s.recvWaiters[ch] = append(s.recvWaiters[ch], Waiter{FiberID: fiberID})
	s.fibers[fiberID].Status = fiber.Suspended
}

// WakeSender pops the oldest fiber parked sending on ch, marks it
// runnable, and returns the value it was trying to send.
func (s *Scheduler) WakeSender(ch gc.Ref) (Waiter, bool) {
	q := s.sendWaiters[ch]
	if len(q) == 0 {
		return Waiter{}, false
	}
	w := q[0]
	s.sendWaiters[ch] = q[1:]
	s.wake(w.FiberID)
	return w, true
}

// WakeReceiver pops the oldest fiber parked receiving on ch and marks it
// runnable.
func (s *Scheduler) WakeReceiver(ch gc.Ref) (Waiter, bool) {
	q := s.recvWaiters[ch]
	if len(q) == 0 {
		return Waiter{}, false
	}
	w := q[0]
	s.recvWaiters[ch] = q[1:]
	s.wake(w.FiberID)
	return w, true
}

// HasSendWaiter / HasRecvWaiter report whether any fiber is parked on ch
// in that direction, without dequeuing it.
func (s *Scheduler) HasSendWaiter(ch gc.Ref) bool { return len(s.sendWaiters[ch]) > 0 }
func (s *Scheduler) HasRecvWaiter(ch gc.Ref) bool { return len(s.recvWaiters[ch]) > 0 }

// DeliverToReceiver hands value to the fiber a caller just woke with
// WakeReceiver, for it to claim via TakeDelivered once it resumes. ch is
// the channel the value came from, kept only so ScanRoots can resolve the
// element's kind while the value sits off every fiber stack.
func (s *Scheduler) DeliverToReceiver(fiberID uint32, ch gc.Ref, value []uint64) {
	s.delivered[fiberID] = deliveredValue{Chan: ch, Value: value}
}

// TakeDelivered returns and clears any value waiting for fiberID.
func (s *Scheduler) TakeDelivered(fiberID uint32) ([]uint64, bool) {
	d, ok := s.delivered[fiberID]
	if ok {
		delete(s.delivered, fiberID)
	}
	return d.Value, ok
}

func (s *Scheduler) wake(fiberID uint32) {
	s.fibers[fiberID].Status = fiber.Running
	s.Enqueue(fiberID)
}

// Forget drops every waiter still queued against ch; execChanClose calls
// it after waking every fiber parked on ch.
func (s *Scheduler) Forget(ch gc.Ref) {
	delete(s.sendWaiters, ch)
	delete(s.recvWaiters, ch)
}

// Deadlocked reports whether no fiber can make progress: nothing
// runnable, but fibers remain parked on channel operations that nothing
// will ever unblock.
func (s *Scheduler) Deadlocked() bool {
	if s.RunnableCount() > 0 {
		return false
	}
	for _, f := range s.fibers {
		if f.Status != fiber.Dead {
			return true
		}
	}
	return false
}

// ScanRoots is the scheduler's contribution to GC root scanning: values
// held by fibers parked trying to send are not reachable from any
// fiber's stack (they were already copied out of it), so they must be
// traced here directly.
func (s *Scheduler) ScanRoots(g *gc.Gc, mark func(gc.Ref)) {
	for ch, waiters := range s.sendWaiters {
		if !heap.ChanElemMeta(g, ch).Kind().MayContainGcRefs() {
			continue
		}
		for _, w := range waiters {
			for _, word := range w.Value {
				if word != 0 {
					mark(gc.Ref(word))
				}
			}
		}
	}
	for _, d := range s.delivered {
		if d.Chan.IsNil() || !heap.ChanElemMeta(g, d.Chan).Kind().MayContainGcRefs() {
			continue
		}
		for _, word := range d.Value {
			if word != 0 {
				mark(gc.Ref(word))
			}
		}
	}
}
