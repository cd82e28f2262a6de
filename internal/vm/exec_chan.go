package vm

import (
	"github.com/vo-lang/vort/internal/bytecode"
	"github.com/vo-lang/vort/internal/fiber"
	"github.com/vo-lang/vort/internal/gc"
	"github.com/vo-lang/vort/internal/heap"
	"github.com/vo-lang/vort/internal/scheduler"
	"github.com/vo-lang/vort/internal/vtype"
)

// ChanNew: a=dst, b=elem_meta reg, c=capacity reg.
func execChanNew(st *State, f *fiber.Fiber, ins bytecode.Instruction) {
	elemMeta := vtype.ValueMetaFromRaw(uint32(f.ReadReg(ins.B)))
	capacity := int(f.ReadReg(ins.C))
	f.WriteReg(ins.A, uint64(heap.ChanNew(st.Gc, elemMeta, capacity)))
}

// ChanSend: a=chan reg, b=val start reg. Tries a buffered send or a direct
// rendezvous with a parked receiver first; parks this fiber otherwise and
// reports Block so the dispatch loop suspends it without re-queueing.
func execChanSend(vm *VM, f *fiber.Fiber, fiberID uint32, ins bytecode.Instruction) (ExecResult, *Error) {
	ch := gc.Ref(f.ReadReg(ins.A))
	if ch.IsNil() {
		return Panic, &Error{Kind: ErrNilDereference, Fiber: fiberID, Message: "send on nil channel"}
	}
	if heap.ChanClosed(vm.State.Gc, ch) {
		return Panic, &Error{Kind: ErrSendOnClosedChannel, Fiber: fiberID, Message: "send on closed channel"}
	}
	elemSlots := int(heap.ChanElemMeta(vm.State.Gc, ch).Kind().SlotCount())
	val := readWordsFromRegs(f, ins.B, elemSlots)

	if w, ok := vm.Scheduler.WakeReceiver(ch); ok {
		vm.Scheduler.DeliverToReceiver(w.FiberID, ch, val)
		return Continue, nil
	}
	if heap.ChanTryBufferedSend(vm.State.Gc, ch, val) {
		return Continue, nil
	}
	vm.Scheduler.ParkForSend(ch, fiberID, val)
	return Block, nil
}

// ChanRecv: a=dst (value slots followed by a trailing ok bool), b=chan reg.
func execChanRecv(vm *VM, f *fiber.Fiber, fiberID uint32, ins bytecode.Instruction) (ExecResult, *Error) {
	ch := gc.Ref(f.ReadReg(ins.B))
	if ch.IsNil() {
		return Panic, &Error{Kind: ErrNilDereference, Fiber: fiberID, Message: "receive on nil channel"}
	}
	elemSlots := int(heap.ChanElemMeta(vm.State.Gc, ch).Kind().SlotCount())

	if v, delivered := vm.Scheduler.TakeDelivered(fiberID); delivered {
		writeWordsToRegs(f, ins.A, v)
		f.WriteReg(ins.A+uint16(elemSlots), boolToReg(true))
		return Continue, nil
	}
	if v, ok := heap.ChanTryBufferedRecv(vm.State.Gc, ch); ok {
		if w, woke := vm.Scheduler.WakeSender(ch); woke {
			heap.ChanTryBufferedSend(vm.State.Gc, ch, w.Value)
		}
		writeWordsToRegs(f, ins.A, v)
		f.WriteReg(ins.A+uint16(elemSlots), boolToReg(true))
		return Continue, nil
	}
	if w, ok := vm.Scheduler.WakeSender(ch); ok {
		writeWordsToRegs(f, ins.A, w.Value)
		f.WriteReg(ins.A+uint16(elemSlots), boolToReg(true))
		return Continue, nil
	}
	if heap.ChanClosed(vm.State.Gc, ch) {
		writeWordsToRegs(f, ins.A, make([]uint64, elemSlots))
		f.WriteReg(ins.A+uint16(elemSlots), boolToReg(false))
		return Continue, nil
	}
	vm.Scheduler.ParkForRecv(ch, fiberID)
	return Block, nil
}

// ChanClose: a=chan reg.
func execChanClose(vm *VM, f *fiber.Fiber, fiberID uint32, ins bytecode.Instruction) (ExecResult, *Error) {
	ch := gc.Ref(f.ReadReg(ins.A))
	if ch.IsNil() {
		return Panic, &Error{Kind: ErrNilDereference, Fiber: fiberID, Message: "close of nil channel"}
	}
	if heap.ChanClosed(vm.State.Gc, ch) {
		return Panic, &Error{Kind: ErrSendOnClosedChannel, Fiber: fiberID, Message: "close of closed channel"}
	}
	heap.ChanClose(vm.State.Gc, ch)
	// Woken fibers re-run their blocked op against the closed channel:
	// receivers get (zero, false), senders trap.
	for {
		if _, ok := vm.Scheduler.WakeReceiver(ch); !ok {
			break
		}
	}
	for {
		if _, ok := vm.Scheduler.WakeSender(ch); !ok {
			break
		}
	}
	vm.Scheduler.Forget(ch)
	return Continue, nil
}

// SelectBegin: flags=case count, starts a fresh select statement on this
// fiber. hasDefault is carried in bit 7 of flags.
func execSelectBegin(f *fiber.Fiber, ins bytecode.Instruction) {
	n := int(ins.Flags &^ 0x80)
	hasDefault := ins.Flags&0x80 != 0
	f.SelectState = fiber.NewSelectState(make([]fiber.SelectCase, 0, n), hasDefault)
}

// SelectSend appends a send case: b=chan reg, c=val reg.
func execSelectSend(f *fiber.Fiber, ins bytecode.Instruction) {
	f.SelectState.Cases = append(f.SelectState.Cases, fiber.SelectCase{
		Kind: fiber.SelectSend, ChanReg: ins.B, ValReg: ins.C,
	})
}

// SelectRecv appends a recv case: b=chan reg, c=dst reg, flags=elem slots.
func execSelectRecv(f *fiber.Fiber, ins bytecode.Instruction) {
	f.SelectState.Cases = append(f.SelectState.Cases, fiber.SelectCase{
		Kind: fiber.SelectRecv, ChanReg: ins.B, ValReg: ins.C, ElemSlots: ins.Flags,
	})
}

// SelectExec: a=dst for the winning case index, b=dst for the recv ok
// flag (ignored for a winning send case). Runs every case through
// scheduler.Exec. If nothing is ready and there is no default, the fiber
// parks on the channel of its first recv case only: a send to that
// channel (whose value that case then takes) or its close wakes it, and
// the whole select is evaluated again. Readiness of any other case is not
// noticed while it is parked, and a select with no recv case and no
// default parks on no channel at all.
func execSelectExec(vm *VM, f *fiber.Fiber, fiberID uint32, ins bytecode.Instruction) ExecResult {
	state := f.SelectState
	if v, ok := vm.Scheduler.TakeDelivered(fiberID); ok {
		// A sender handed a value straight to this fiber while it was
		// parked on its first recv case; that case wins.
		for i, c := range state.Cases {
			if c.Kind == fiber.SelectRecv {
				f.WriteReg(ins.A, uint64(i))
				writeWordsToRegs(f, c.ValReg, v)
				f.WriteReg(ins.B, boolToReg(true))
				f.SelectState = nil
				return Continue
			}
		}
	}
	chanOf := func(reg uint16) gc.Ref { return gc.Ref(f.ReadReg(reg)) }
	valOf := func(reg uint16) []uint64 {
		for _, c := range state.Cases {
			if c.ValReg == reg && c.Kind == fiber.SelectSend {
				return readWordsFromRegs(f, reg, 1)
			}
		}
		return nil
	}

	result := scheduler.Exec(vm.State.Gc, vm.Scheduler, fiberID, state, chanOf, valOf)
	if result.Ready {
		f.WriteReg(ins.A, uint64(result.Index))
		c := state.Cases[result.Index]
		if c.Kind == fiber.SelectRecv {
			writeWordsToRegs(f, c.ValReg, result.Value)
			f.WriteReg(ins.B, boolToReg(result.Ok))
		}
		f.SelectState = nil
		return Continue
	}
	if state.HasDefault {
		f.WriteReg(ins.A, ^uint64(0))
		f.SelectState = nil
		return Continue
	}
	for _, c := range state.Cases {
		if c.Kind == fiber.SelectRecv {
			vm.Scheduler.ParkForRecv(chanOf(c.ChanReg), fiberID)
			break
		}
	}
	return Block
}
