package vm

import (
	"github.com/vo-lang/vort/internal/bytecode"
	"github.com/vo-lang/vort/internal/fiber"
	"github.com/vo-lang/vort/internal/gc"
	"github.com/vo-lang/vort/internal/heap"
	"github.com/vo-lang/vort/internal/vtype"
)

// scanRoots is gc.Gc's scanRoots callback: it grays every live reference
// reachable without going through another heap object — globals, every
// fiber's stack frames (scoped by each function's SlotTypes), defer
// bookkeeping, panic values, and the scheduler's own parked-value roots.
// Ported from original_source's vo-vm/src/gc_roots.rs.
func (vm *VM) scanRoots(g *gc.Gc) {
	if vm.Module == nil {
		return
	}
	scanSlotsByTypes(g, vm.State.Globals, globalSlotTypes(vm.Module))

	for _, f := range vm.Scheduler.Fibers() {
		scanFiber(g, vm, f)
	}
	vm.Scheduler.ScanRoots(g, g.MarkGray)
}

func globalSlotTypes(m *bytecode.Module) []vtype.SlotType {
	var out []vtype.SlotType
	for _, def := range m.Globals {
		out = append(out, def.SlotTypes...)
	}
	return out
}

func scanSlotsByTypes(g *gc.Gc, slots []uint64, types []vtype.SlotType) {
	n := len(slots)
	if len(types) < n {
		n = len(types)
	}
	i := 0
	for i < n {
		switch types[i] {
		case vtype.GcRef:
			if slots[i] != 0 {
				g.MarkGray(gc.Ref(slots[i]))
			}
		case vtype.Interface0:
			if i+1 < len(slots) && heap.IfaceDataIsGcRef(slots[i]) && slots[i+1] != 0 {
				g.MarkGray(gc.Ref(slots[i+1]))
			}
			i++
		}
		i++
	}
}

func scanFiber(g *gc.Gc, vm *VM, f *fiber.Fiber) {
	for _, frame := range f.Frames {
		fn, ok := vm.Module.GetFunction(frame.FuncID)
		if !ok {
			continue
		}
		scanSlotsByTypes(g, f.Stack[frame.BP:], fn.SlotTypes)
	}

	for _, entry := range f.DeferStack {
		scanDeferEntry(g, vm, entry)
	}
	if !f.PanicValue.IsNil() {
		g.MarkGray(f.PanicValue)
	}
}

// scanDeferEntry grays the closure and argument-array containers, then
// walks the argument array's live slots against the target function's own
// SlotTypes rather than trusting the array's generic elemMeta-driven
// scan (see exec_defer.go's argArrayMeta).
func scanDeferEntry(g *gc.Gc, vm *VM, entry fiber.DeferEntry) {
	if !entry.Closure.IsNil() {
		g.MarkGray(entry.Closure)
	}
	if entry.Args.IsNil() {
		return
	}
	g.MarkGray(entry.Args)

	funcID := entry.FuncID
	if entry.IsClosure {
		funcID = heap.ClosureFuncID(g, entry.Closure)
	}
	fn, ok := vm.Module.GetFunction(funcID)
	if !ok {
		return
	}
	n := int(entry.ArgSlots)
	if n > len(fn.SlotTypes) {
		n = len(fn.SlotTypes)
	}
	for i := 0; i < n; i++ {
		if fn.SlotTypes[i] == vtype.GcRef {
			if w := heap.ArrayGet(g, entry.Args, i); w != 0 {
				g.MarkGray(gc.Ref(w))
			}
		}
	}
}
