package vm

import (
	"errors"

	"github.com/vo-lang/vort/internal/bytecode"
	"github.com/vo-lang/vort/internal/extern"
	"github.com/vo-lang/vort/internal/fiber"
	"github.com/vo-lang/vort/internal/gc"
	"github.com/vo-lang/vort/internal/heap"
	"github.com/vo-lang/vort/internal/vtype"
)

// Run drives every fiber to completion or deadlock: the entry function
// spawns fiber 0, GoCall spawns the rest, and the scheduler's runnable
// ring decides whose turn it is one time slice at a time.
func (vm *VM) Run() error {
	if vm.Module == nil {
		return &Error{Kind: ErrNoEntryFunction, Message: "no module loaded"}
	}
	entry := fiber.New(0)
	fn, ok := vm.Module.GetFunction(vm.Module.EntryFunc)
	if !ok {
		return &Error{Kind: ErrNoEntryFunction, Message: "entry function id out of range"}
	}
	entry.PushFrame(vm.Module.EntryFunc, fn.ParamSlots+fn.LocalSlots, 0, 0)
	vm.Scheduler.Spawn(entry)

	for {
		id, ok := vm.Scheduler.NextRunnable()
		if !ok {
			if vm.Scheduler.Deadlocked() {
				return &Error{Kind: ErrDeadlock, Message: "no fiber can make progress"}
			}
			return nil
		}
		f := vm.Scheduler.Fiber(id)
		if f.Status == fiber.Dead {
			continue
		}
		f.Status = fiber.Running

		result, vmErr := vm.runSlice(f, id)
		switch result {
		case Yield:
			vm.Scheduler.Enqueue(id)
		case Block:
			// The exec handler already parked this fiber in the
			// scheduler; it must not be re-enqueued here.
		case Done:
			f.Status = fiber.Dead
		case Panic:
			f.Status = fiber.Dead
			if vmErr != nil {
				vm.Log.WithField("fiber", id).WithError(vmErr).Error("fiber died on unhandled fault")
			} else {
				vm.Log.WithField("fiber", id).Error("fiber died on unhandled panic")
			}
			if id == 0 {
				if vm.LastFault != nil {
					return errors.New(vm.LastFault.String())
				}
				if vmErr != nil {
					return vmErr
				}
				return errors.New("panic: unrecovered panic in entry fiber")
			}
		default:
			vm.Scheduler.Enqueue(id)
		}

		if vmErr != nil && id == 0 {
			return vmErr
		}
		if vm.State.Gc.ShouldCollect() {
			vm.collect()
		}
	}
}

// recordFault builds vm.LastFault from the fiber's still-set panic value
// (an unrecovered panic never clears it) and the site captured the
// instant the panic was first raised.
func (vm *VM) recordFault(f *fiber.Fiber) {
	msg := f.PanicMsg
	if msg == "" && !f.PanicValue.IsNil() {
		msg = string(heap.StrBytes(vm.State.Gc, f.PanicValue))
	}
	if msg == "" {
		msg = "unrecovered panic"
	}
	info := &FaultInfo{Message: msg, FuncID: vm.lastFaultSite.FuncID, PC: vm.lastFaultSite.PC}
	if vm.Module.DebugInfo != nil {
		if loc, ok := vm.Module.DebugInfo.Lookup(info.FuncID, info.PC); ok {
			info.Location = loc.String()
		}
	}
	vm.LastFault = info
}

// collect runs one GC cycle over the whole VM's live roots.
func (vm *VM) collect() gc.Stats {
	stats := vm.State.Gc.Collect(vm.scanRoots, func(g *gc.Gc, ref gc.Ref) {
		heap.ScanObject(g, ref, vm.structMetas())
	}, heap.FinalizeObject)
	if vm.Metrics != nil {
		vm.Metrics.ObserveCollection(stats)
		vm.Metrics.ObserveScheduler(vm.Scheduler)
	}
	return stats
}

// runSlice steps f for up to its time slice, or until it blocks,
// finishes, or yields. A Return result that leaves frames on the stack
// is transparent to the caller: runSlice loops through it and keeps
// counting against the same time slice.
func (vm *VM) runSlice(f *fiber.Fiber, fiberID uint32) (ExecResult, *Error) {
	budget := vm.timeSlice
	for budget > 0 {
		if len(f.Frames) == 0 {
			return Done, nil
		}
		result, err := vm.step(f, fiberID)
		switch result {
		case Continue:
			budget--
			continue
		case Return:
			budget--
			continue
		case Yield:
			return Yield, nil
		case Block:
			return Block, nil
		case Panic:
			frame := f.CurrentFrame()
			vm.lastFaultSite = faultSite{FuncID: frame.FuncID, PC: uint32(frame.PC)}
			vm.unwindPanic(f, fiberID, err)
			if len(f.Frames) == 0 {
				vm.recordFault(f)
				return Panic, err
			}
			budget--
			continue
		case Done:
			return Done, nil
		}
	}
	return Yield, nil
}

// step executes exactly one instruction, dispatching by opcode to the
// exec_*.go family handlers, and reports what the dispatch loop should
// do next.
func (vm *VM) step(f *fiber.Fiber, fiberID uint32) (ExecResult, *Error) {
	frame := f.CurrentFrame()
	fn, ok := vm.Module.GetFunction(frame.FuncID)
	if !ok {
		return Panic, &Error{Kind: ErrInvalidFunctionID, Fiber: fiberID, Message: "current frame's function id is invalid"}
	}
	if frame.PC >= len(fn.Code) {
		return vm.execReturnOp(f, fiberID, bytecode.Instruction{Flags: uint8(frame.RetCount)})
	}
	ins := fn.Code[frame.PC]
	st := vm.State

	switch ins.Op {
	case bytecode.Nop:
		execNop(f, ins)
	case bytecode.LoadNil:
		execLoadNil(f, ins)
	case bytecode.LoadTrue:
		execLoadTrue(f, ins)
	case bytecode.LoadFalse:
		execLoadFalse(f, ins)
	case bytecode.LoadInt:
		execLoadInt(f, ins)
	case bytecode.LoadConst:
		execLoadConst(f, ins, vm.Module.Constants)
	case bytecode.Copy:
		execCopy(f, ins)
	case bytecode.CopyN:
		execCopyN(f, ins)
	case bytecode.SlotGet:
		execSlotGet(f, ins)
	case bytecode.SlotSet:
		execSlotSet(f, ins)
	case bytecode.SlotGetN:
		execSlotGetN(f, ins)
	case bytecode.SlotSetN:
		execSlotSetN(f, ins)
	case bytecode.GlobalGet:
		execGlobalGet(st, f, ins)
	case bytecode.GlobalGetN:
		execGlobalGetN(st, f, ins)
	case bytecode.GlobalSet:
		execGlobalSet(st, f, ins)
	case bytecode.GlobalSetN:
		execGlobalSetN(st, f, ins)
	case bytecode.PtrNew:
		execPtrNew(st, f, ins, vm.structMetas())
	case bytecode.PtrClone:
		execPtrClone(f, ins)
	case bytecode.PtrGet:
		return trappedStep(f, execPtrGet(st, f, fiberID, ins))
	case bytecode.PtrSet:
		return trappedStep(f, execPtrSet(st, f, fiberID, ins, vm.fieldSlotType(f, ins)))
	case bytecode.PtrGetN:
		return trappedStep(f, execPtrGetN(st, f, fiberID, ins))
	case bytecode.PtrSetN:
		return trappedStep(f, execPtrSetN(st, f, fiberID, ins, vm.fieldSlotTypes(f, ins)))

	case bytecode.AddI:
		execAddI(f, ins)
	case bytecode.SubI:
		execSubI(f, ins)
	case bytecode.MulI:
		execMulI(f, ins)
	case bytecode.DivI:
		return trappedStep(f, execDivI(f, ins))
	case bytecode.ModI:
		return trappedStep(f, execModI(f, ins))
	case bytecode.NegI:
		execNegI(f, ins)
	case bytecode.AddF:
		execAddF(f, ins)
	case bytecode.SubF:
		execSubF(f, ins)
	case bytecode.MulF:
		execMulF(f, ins)
	case bytecode.DivF:
		execDivF(f, ins)
	case bytecode.NegF:
		execNegF(f, ins)
	case bytecode.EqI:
		execEqI(f, ins)
	case bytecode.NeI:
		execNeI(f, ins)
	case bytecode.LtI:
		execLtI(f, ins)
	case bytecode.LeI:
		execLeI(f, ins)
	case bytecode.GtI:
		execGtI(f, ins)
	case bytecode.GeI:
		execGeI(f, ins)
	case bytecode.EqF:
		execEqF(f, ins)
	case bytecode.NeF:
		execNeF(f, ins)
	case bytecode.LtF:
		execLtF(f, ins)
	case bytecode.LeF:
		execLeF(f, ins)
	case bytecode.GtF:
		execGtF(f, ins)
	case bytecode.GeF:
		execGeF(f, ins)
	case bytecode.EqRef:
		execEqRef(f, ins)
	case bytecode.NeRef:
		execNeRef(f, ins)
	case bytecode.IsNil:
		execIsNil(f, ins)
	case bytecode.And:
		execAnd(f, ins)
	case bytecode.Or:
		execOr(f, ins)
	case bytecode.Xor:
		execXor(f, ins)
	case bytecode.Not:
		execNot(f, ins)
	case bytecode.Shl:
		execShl(f, ins)
	case bytecode.ShrS:
		execShrS(f, ins)
	case bytecode.ShrU:
		execShrU(f, ins)
	case bytecode.BoolNot:
		execBoolNot(f, ins)

	case bytecode.Jump:
		frame.PC = int(ins.Imm32())
		return Continue, nil
	case bytecode.JumpIf:
		if regToBool(f.ReadReg(ins.A)) {
			frame.PC = int(ins.Imm32())
			return Continue, nil
		}
	case bytecode.JumpIfNot:
		if !regToBool(f.ReadReg(ins.A)) {
			frame.PC = int(ins.Imm32())
			return Continue, nil
		}

	case bytecode.Call:
		return vm.execCallOp(f, fiberID, ins)
	case bytecode.CallExtern:
		return vm.execCallExternOp(f, fiberID, ins)
	case bytecode.CallClosure:
		return vm.execCallClosureOp(f, fiberID, ins)
	case bytecode.CallIface:
		return vm.execCallIfaceOp(f, fiberID, ins)
	case bytecode.Return:
		return vm.execReturnOp(f, fiberID, ins)

	case bytecode.StrNew:
		execStrNew(st, f, ins, vm.Module.Constants)
	case bytecode.StrLen:
		execStrLen(st, f, ins)
	case bytecode.StrIndex:
		return trappedStep(f, execStrIndex(st, f, ins))
	case bytecode.StrConcat:
		execStrConcat(st, f, ins)
	case bytecode.StrSlice:
		return trappedStep(f, execStrSlice(st, f, ins))
	case bytecode.StrEq:
		execStrEq(st, f, ins)
	case bytecode.StrNe:
		execStrNe(st, f, ins)
	case bytecode.StrLt:
		execStrLt(st, f, ins)
	case bytecode.StrLe:
		execStrLe(st, f, ins)
	case bytecode.StrGt:
		execStrGt(st, f, ins)
	case bytecode.StrGe:
		execStrGe(st, f, ins)

	case bytecode.ArrayNew:
		execArrayNew(st, f, ins)
	case bytecode.ArrayGet:
		return trappedStep(f, execArrayGet(st, f, ins))
	case bytecode.ArraySet:
		return trappedStep(f, execArraySet(st, f, ins))
	case bytecode.ArrayLen:
		execArrayLen(st, f, ins)

	case bytecode.SliceNew:
		execSliceNew(st, f, ins)
	case bytecode.SliceGet:
		return trappedStep(f, execSliceGet(st, f, ins))
	case bytecode.SliceSet:
		return trappedStep(f, execSliceSet(st, f, ins))
	case bytecode.SliceLen:
		execSliceLen(st, f, ins)
	case bytecode.SliceCap:
		execSliceCap(st, f, ins)
	case bytecode.SliceSlice:
		return trappedStep(f, execSliceSlice(st, f, ins))
	case bytecode.SliceAppend:
		execSliceAppend(st, f, ins)

	case bytecode.MapNew:
		execMapNew(st, f, ins)
	case bytecode.MapGet:
		return trappedStep(f, execMapGet(st, f, fiberID, ins))
	case bytecode.MapSet:
		return trappedStep(f, execMapSet(st, f, fiberID, ins))
	case bytecode.MapDelete:
		return trappedStep(f, execMapDelete(st, f, fiberID, ins))
	case bytecode.MapLen:
		execMapLen(st, f, ins)

	case bytecode.ChanNew:
		execChanNew(st, f, ins)
	case bytecode.ChanSend:
		return vm.execChanSendOp(f, fiberID, ins)
	case bytecode.ChanRecv:
		return vm.execChanRecvOp(f, fiberID, ins)
	case bytecode.ChanClose:
		return vm.execChanCloseOp(f, fiberID, ins)

	case bytecode.SelectBegin:
		execSelectBegin(f, ins)
	case bytecode.SelectSend:
		execSelectSend(f, ins)
	case bytecode.SelectRecv:
		execSelectRecv(f, ins)
	case bytecode.SelectExec:
		result := execSelectExec(vm, f, fiberID, ins)
		if result == Block {
			return Block, nil
		}

	case bytecode.IterBegin:
		execIterBegin(f, ins)
	case bytecode.IterNext:
		execIterNext(st, f, ins)
	case bytecode.IterEnd:
		execIterEnd(f, ins)

	case bytecode.ClosureNew:
		execClosureNew(st, f, ins)
	case bytecode.ClosureGet:
		execClosureGet(st, f, ins)
	case bytecode.ClosureSet:
		execClosureSet(st, f, ins)

	case bytecode.GoCall:
		vm.execGoCallOp(f, ins)
	case bytecode.Yield:
		frame.PC++
		return Yield, nil

	case bytecode.DeferPush:
		execDeferPushOp(st, f, ins, false)
	case bytecode.ErrDeferPush:
		execDeferPushOp(st, f, ins, true)
	case bytecode.Panic:
		execPanicOp(f, ins)
		return Panic, nil
	case bytecode.Recover:
		execRecoverOp(f, ins)

	case bytecode.IfaceAssign:
		return trappedStep(f, execIfaceAssign(vm, f, ins))
	case bytecode.IfaceAssert:
		return trappedStep(f, execIfaceAssert(f, ins))

	case bytecode.ConvI2F:
		execConvI2F(f, ins)
	case bytecode.ConvF2I:
		execConvF2I(f, ins)
	case bytecode.ConvI32I64:
		execConvI32I64(f, ins)
	case bytecode.ConvI64I32:
		execConvI64I32(f, ins)

	default:
		return Panic, &Error{Kind: ErrInvalidOpcode, Fiber: fiberID, Message: "unrecognized opcode"}
	}

	frame.PC++
	return Continue, nil
}

// fieldSlotType/fieldSlotTypes resolve a pointer's struct layout so
// PtrSet/PtrSetN can apply the right GC write barrier per field; they
// live here rather than in exec_load.go because only the dispatch loop
// has vm.structMetas() in scope.
func (vm *VM) fieldSlotType(f *fiber.Fiber, ins bytecode.Instruction) vtype.SlotType {
	types := vm.fieldSlotTypes(f, ins)
	idx := int(ins.C)
	if idx < len(types) {
		return types[idx]
	}
	return vtype.Plain
}

func (vm *VM) fieldSlotTypes(f *fiber.Fiber, ins bytecode.Instruction) []vtype.SlotType {
	ptr := gc.Ref(f.ReadReg(ins.B))
	if ptr.IsNil() {
		return nil
	}
	metaID := vm.State.Gc.Header(ptr).Meta.MetaId()
	sm, ok := vm.structMetas().StructMeta(metaID)
	if !ok {
		return nil
	}
	return sm.SlotTypes
}

func (vm *VM) execChanSendOp(f *fiber.Fiber, fiberID uint32, ins bytecode.Instruction) (ExecResult, *Error) {
	result, err := execChanSend(vm, f, fiberID, ins)
	if result == Continue {
		f.CurrentFrame().PC++
	}
	return result, err
}

func (vm *VM) execChanRecvOp(f *fiber.Fiber, fiberID uint32, ins bytecode.Instruction) (ExecResult, *Error) {
	result, err := execChanRecv(vm, f, fiberID, ins)
	if result == Continue {
		f.CurrentFrame().PC++
	}
	return result, err
}

func (vm *VM) execChanCloseOp(f *fiber.Fiber, fiberID uint32, ins bytecode.Instruction) (ExecResult, *Error) {
	result, err := execChanClose(vm, f, fiberID, ins)
	if result == Continue {
		f.CurrentFrame().PC++
	}
	return result, err
}

// trappedStep advances PC on a successful access and leaves it alone on
// a trap, matching the ChanSend/Recv/Close handlers' own
// result-then-advance shape: any exec handler that can fault (bounds
// checks in exec_container.go/exec_string.go, nil-pointer checks in
// exec_load.go) reports Continue/Panic directly rather than going
// through step()'s shared trailing PC++.
func trappedStep(f *fiber.Fiber, result ExecResult, err *Error) (ExecResult, *Error) {
	if result == Continue {
		f.CurrentFrame().PC++
	}
	return result, err
}

// execGoCallOp: a=arg_start, b=func_id, flags=arg_count. Spawns a new
// fiber with its own frame over the target function, copying the
// caller's argument registers into the new frame's low registers.
func (vm *VM) execGoCallOp(f *fiber.Fiber, ins bytecode.Instruction) {
	funcID := uint32(ins.B)
	fn, ok := vm.Module.GetFunction(funcID)
	if !ok {
		return
	}
	args := readWordsFromRegs(f, ins.A, int(ins.Flags))

	id := uint32(len(vm.Scheduler.Fibers()))
	nf := fiber.New(id)
	nf.Status = fiber.Running
	nf.PushFrame(funcID, fn.ParamSlots+fn.LocalSlots, 0, 0)
	for i, w := range args {
		nf.WriteReg(uint16(i), w)
	}
	vm.Scheduler.Spawn(nf)
}

// execCallOp: a=arg_start, b=func_id, c=ret_reg, flags=ret_count. The
// callee's argument registers are populated by copying out of the
// caller's frame rather than aliasing the stack, trading one extra copy
// for a call convention that needs no base-pointer arithmetic tricks.
func (vm *VM) execCallOp(f *fiber.Fiber, fiberID uint32, ins bytecode.Instruction) (ExecResult, *Error) {
	funcID := uint32(ins.B)
	fn, ok := vm.Module.GetFunction(funcID)
	if !ok {
		return Panic, &Error{Kind: ErrInvalidFunctionID, Fiber: fiberID, Message: "call to invalid function id"}
	}
	if len(f.Frames) >= MaxCallDepth {
		return Panic, &Error{Kind: ErrStackOverflow, Fiber: fiberID, Message: "call stack exceeded max depth"}
	}
	args := readWordsFromRegs(f, ins.A, int(fn.ParamSlots))
	f.CurrentFrame().PC++
	f.PushFrame(funcID, fn.ParamSlots+fn.LocalSlots, ins.C, uint16(ins.Flags))
	for i, w := range args {
		f.WriteReg(uint16(i), w)
	}
	return Continue, nil
}

// execCallExternOp: a unused, b=extern_id, c=args_start, flags=arg_count.
// The return values are written back into the same registers the
// arguments were read from.
func (vm *VM) execCallExternOp(f *fiber.Fiber, fiberID uint32, ins bytecode.Instruction) (ExecResult, *Error) {
	ext, ok := vm.Module.GetExtern(uint32(ins.B))
	if !ok {
		return Panic, &Error{Kind: ErrInvalidFunctionID, Fiber: fiberID, Message: "call to invalid extern id"}
	}
	if vm.Metrics != nil {
		vm.Metrics.ObserveExternCall(ext.Name)
	}
	frame := f.CurrentFrame()
	stack := f.Stack[frame.BP:]
	ctx := extern.NewContext(vm.State.Gc, stack, ins.C, uint16(ins.Flags), ins.C)
	result := vm.State.Externs.Call(uint32(ins.B), ctx)
	switch result {
	case extern.ResultOk, extern.ResultYield:
		frame.PC++
		if result == extern.ResultYield {
			return Yield, nil
		}
		return Continue, nil
	default:
		return Panic, &Error{Kind: ErrInvalidFunctionID, Fiber: fiberID, Message: ctx.PanicMessage()}
	}
}

// execCallClosureOp: a=arg_start, b=closure reg, c=ret_reg, flags=ret
// count. Arguments are laid out by heap.ClosureCallLayoutFor so a
// captured receiver or the closure itself lands in register 0 ahead of
// the real call arguments, exactly as the closure's own body expects.
func (vm *VM) execCallClosureOp(f *fiber.Fiber, fiberID uint32, ins bytecode.Instruction) (ExecResult, *Error) {
	closureRaw := f.ReadReg(ins.B)
	closure := gc.Ref(closureRaw)
	if closure.IsNil() {
		return Panic, &Error{Kind: ErrNilDereference, Fiber: fiberID, Message: "call through nil closure"}
	}
	funcID := heap.ClosureFuncID(vm.State.Gc, closure)
	fn, ok := vm.Module.GetFunction(funcID)
	if !ok {
		return Panic, &Error{Kind: ErrInvalidFunctionID, Fiber: fiberID, Message: "closure targets invalid function id"}
	}
	if len(f.Frames) >= MaxCallDepth {
		return Panic, &Error{Kind: ErrStackOverflow, Fiber: fiberID, Message: "call stack exceeded max depth"}
	}
	layout := heap.ClosureCallLayoutFor(vm.State.Gc, closureRaw, closure, int(fn.RecvSlots), fn.IsClosure)
	nargs := int(fn.ParamSlots)
	if layout.ArgOffset > 0 {
		nargs -= layout.ArgOffset
	}
	if nargs < 0 {
		nargs = 0
	}
	args := readWordsFromRegs(f, ins.A, nargs)

	f.CurrentFrame().PC++
	f.PushFrame(funcID, fn.ParamSlots+fn.LocalSlots, ins.C, uint16(ins.Flags))
	if layout.HasSlot0 {
		f.WriteReg(0, layout.Slot0)
	}
	for i, w := range args {
		f.WriteReg(uint16(layout.ArgOffset+i), w)
	}
	return Continue, nil
}

// execCallIfaceOp: a=arg_start, b=iface reg (2 slots), c=ret_reg,
// flags low 4 bits=method index, high 4 bits=ret_count. The call target
// is resolved through the itab packed into the interface's slot0.
func (vm *VM) execCallIfaceOp(f *fiber.Fiber, fiberID uint32, ins bytecode.Instruction) (ExecResult, *Error) {
	slot0 := f.ReadReg(ins.B)
	recv := f.ReadReg(ins.B + 1)
	if heap.IfaceIsNil(slot0) {
		return Panic, &Error{Kind: ErrNilDereference, Fiber: fiberID, Message: "method call on nil interface"}
	}
	itabID := heap.UnpackItabID(slot0)
	methodIdx := int(ins.Flags & 0x0F)
	retCount := uint16(ins.Flags >> 4)

	funcID := vm.State.Itabs.LookupMethod(itabID, methodIdx)
	fn, ok := vm.Module.GetFunction(funcID)
	if !ok {
		return Panic, &Error{Kind: ErrInvalidFunctionID, Fiber: fiberID, Message: "itab targets invalid function id"}
	}
	if len(f.Frames) >= MaxCallDepth {
		return Panic, &Error{Kind: ErrStackOverflow, Fiber: fiberID, Message: "call stack exceeded max depth"}
	}
	recvSlots := int(fn.RecvSlots)
	nargs := int(fn.ParamSlots) - recvSlots
	if nargs < 0 {
		nargs = 0
	}
	args := readWordsFromRegs(f, ins.A, nargs)

	f.CurrentFrame().PC++
	f.PushFrame(funcID, fn.ParamSlots+fn.LocalSlots, ins.C, retCount)
	if recvSlots > 0 {
		f.WriteReg(0, recv)
	}
	for i, w := range args {
		f.WriteReg(uint16(recvSlots+i), w)
	}
	return Continue, nil
}

// execReturnOp pops the current frame, runs its ordinary (non-errdefer)
// defers, and copies the return values into the caller's registers.
func (vm *VM) execReturnOp(f *fiber.Fiber, fiberID uint32, ins bytecode.Instruction) (ExecResult, *Error) {
	retCount := int(f.CurrentFrame().RetCount)
	if retCount == 0 {
		retCount = int(ins.Flags)
	}
	vals := readWordsFromRegs(f, ins.A, retCount)

	depth := len(f.Frames)
	defers := f.PopDefersAt(depth)
	var live []fiber.DeferEntry
	for _, d := range defers {
		if !d.IsErrdefer {
			live = append(live, d)
		}
	}
	popped, ok := f.PopFrame()
	if !ok {
		return Done, nil
	}
	vm.runDefers(f, fiberID, live)

	if !f.PanicValue.IsNil() {
		return Panic, nil
	}
	if len(f.Frames) == 0 {
		return Done, nil
	}
	for i, w := range vals {
		f.WriteRegAbs(f.CurrentFrame().BP+int(popped.RetReg)+i, w)
	}
	return Return, nil
}

// runDefers executes a popped frame's surviving defer chain in LIFO
// order (as PopDefersAt already returned them), each as its own nested
// call driven to completion before the next one starts.
func (vm *VM) runDefers(f *fiber.Fiber, fiberID uint32, defers []fiber.DeferEntry) {
	for _, d := range defers {
		funcID := d.FuncID
		if d.IsClosure {
			funcID = heap.ClosureFuncID(vm.State.Gc, d.Closure)
		}
		fn, ok := vm.Module.GetFunction(funcID)
		if !ok {
			continue
		}
		preDepth := len(f.Frames)
		f.PushFrame(funcID, fn.ParamSlots+fn.LocalSlots, 0, 0)

		argOffset := 0
		if d.IsClosure {
			f.WriteReg(0, uint64(d.Closure))
			argOffset = 1
		}
		for i := 0; i < int(d.ArgSlots); i++ {
			f.WriteReg(uint16(argOffset+i), heap.ArrayGet(vm.State.Gc, d.Args, i))
		}

		for len(f.Frames) > preDepth {
			result, err := vm.step(f, fiberID)
			if result == Panic {
				vm.unwindPanicTo(f, fiberID, err, preDepth)
				break
			}
		}
	}
}

// unwindPanic drives a fiber's panic unwind starting at whatever frame
// is currently active, stopping early if a defer calls Recover.
func (vm *VM) unwindPanic(f *fiber.Fiber, fiberID uint32, vmErr *Error) {
	if f.PanicValue.IsNil() && vmErr != nil {
		f.PanicValue = heap.StrNew(vm.State.Gc, []byte(vmErr.Message))
	}
	vm.unwindPanicTo(f, fiberID, vmErr, 0)
}

// unwindPanicTo unwinds frames (running every defer, errdefer included)
// until either the panic is recovered or the fiber runs out of frames at
// or above floor.
func (vm *VM) unwindPanicTo(f *fiber.Fiber, fiberID uint32, vmErr *Error, floor int) {
	if f.PanicValue.IsNil() && vmErr != nil {
		f.PanicValue = heap.StrNew(vm.State.Gc, []byte(vmErr.Message))
	}
	for len(f.Frames) > floor {
		depth := len(f.Frames)
		defers := f.PopDefersAt(depth)
		popped, ok := f.PopFrame()
		if !ok {
			break
		}
		vm.runDefers(f, fiberID, defers)

		if f.PanicValue.IsNil() {
			// Something in this defer chain recovered: the popped
			// frame's original return values are gone, so the caller
			// gets zeros in their place. A recover in the entry
			// function's own defer leaves no caller to write into.
			if len(f.Frames) > 0 {
				for i := 0; i < int(popped.RetCount); i++ {
					f.WriteRegAbs(f.CurrentFrame().BP+int(popped.RetReg)+i, 0)
				}
			}
			return
		}
	}
	if len(f.Frames) == floor && floor == 0 {
		vm.Log.WithField("fiber", fiberID).Error("unhandled panic: fiber terminated")
	}
}
