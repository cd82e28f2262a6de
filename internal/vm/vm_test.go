package vm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vo-lang/vort/internal/bytecode"
	"github.com/vo-lang/vort/internal/extern"
	"github.com/vo-lang/vort/internal/gc"
	"github.com/vo-lang/vort/internal/heap"
	"github.com/vo-lang/vort/internal/vtype"
)

func ins(op bytecode.Opcode, a, b, c uint16) bytecode.Instruction {
	return bytecode.NewInstruction(op, a, b, c)
}

func insF(op bytecode.Opcode, flags uint8, a, b, c uint16) bytecode.Instruction {
	i := bytecode.NewInstruction(op, a, b, c)
	i.Flags = flags
	return i
}

func mustLoad(t *testing.T, v *VM, m *bytecode.Module) {
	t.Helper()
	require.NoError(t, v.Load(m))
}

// TestArithmeticAndReturn: main() computes (3+4)*2 and returns it.
func TestArithmeticAndReturn(t *testing.T) {
	m := bytecode.NewModule("arith")
	main := bytecode.FunctionDef{
		Name:       "main",
		ParamSlots: 0,
		LocalSlots: 4,
		RetSlots:   1,
		SlotTypes:  []vtype.SlotType{vtype.Plain, vtype.Plain, vtype.Plain, vtype.Plain},
		Code: []bytecode.Instruction{
			ins(bytecode.LoadInt, 0, 3, 0),
			ins(bytecode.LoadInt, 1, 4, 0),
			ins(bytecode.AddI, 2, 0, 1),
			ins(bytecode.LoadInt, 3, 2, 0),
			ins(bytecode.MulI, 0, 2, 3),
			insF(bytecode.Return, 1, 0, 0, 0),
		},
	}
	m.AddFunction(main)
	m.EntryFunc = 0

	v := New(DefaultConfig())
	mustLoad(t, v, m)
	require.NoError(t, v.Run())
}

// TestCallAndReturnValue exercises Call/Return across two functions:
// add(a,b) called from main, with the sum routed through an extern so
// the test can observe it.
func TestCallAndReturnValue(t *testing.T) {
	m := bytecode.NewModule("call")
	var observed int64

	addFn := bytecode.FunctionDef{
		Name:       "add",
		ParamSlots: 2,
		LocalSlots: 2,
		RetSlots:   1,
		SlotTypes:  []vtype.SlotType{vtype.Plain, vtype.Plain},
		Code: []bytecode.Instruction{
			ins(bytecode.AddI, 0, 0, 1),
			insF(bytecode.Return, 1, 0, 0, 0),
		},
	}
	addID := m.AddFunction(addFn)
	externID := m.AddExtern("observe", 1, 0)

	main := bytecode.FunctionDef{
		Name:       "main",
		LocalSlots: 4,
		SlotTypes:  []vtype.SlotType{vtype.Plain, vtype.Plain, vtype.Plain, vtype.Plain},
		Code: []bytecode.Instruction{
			ins(bytecode.LoadInt, 0, 10, 0),
			ins(bytecode.LoadInt, 1, 32, 0),
			insF(bytecode.Call, 1, 0, uint16(addID), 2),
			insF(bytecode.CallExtern, 1, 0, uint16(externID), 2),
			insF(bytecode.Return, 0, 0, 0, 0),
		},
	}
	m.AddFunction(main)
	m.EntryFunc = 1

	v := New(DefaultConfig())
	v.State.Externs.Register("observe", func(ctx *extern.Context) extern.Result {
		observed = ctx.ArgI64(0)
		return extern.ResultOk
	})
	mustLoad(t, v, m)
	require.NoError(t, v.Run())
	require.EqualValues(t, 42, observed)
}

// TestDeferOrderAndRecover checks that a deferred recover stops an
// in-flight panic and main records 1 and 2, in order, around the call.
func TestDeferOrderAndRecover(t *testing.T) {
	m := bytecode.NewModule("defer")
	var order []int64

	record := func(v int64) {
		order = append(order, v)
	}
	externID := m.AddExtern("record", 1, 0)

	// recoverer(): recovers whatever panic value is live into r0.
	recoverer := bytecode.FunctionDef{
		Name:       "recoverer",
		LocalSlots: 1,
		SlotTypes:  []vtype.SlotType{vtype.GcRef},
		Code: []bytecode.Instruction{
			ins(bytecode.Recover, 0, 0, 0),
			insF(bytecode.Return, 0, 0, 0, 0),
		},
	}
	recovererID := m.AddFunction(recoverer)

	// panicker(): pushes a recover-defer, then panics.
	panicker := bytecode.FunctionDef{
		Name:       "panicker",
		LocalSlots: 2,
		SlotTypes:  []vtype.SlotType{vtype.GcRef, vtype.Plain},
		Code: []bytecode.Instruction{
			insF(bytecode.DeferPush, 0, uint16(recovererID), 0, 0),
			ins(bytecode.LoadInt, 1, 99, 0),
			ins(bytecode.Panic, 1, 0, 0),
		},
	}
	panickerID := m.AddFunction(panicker)

	main := bytecode.FunctionDef{
		Name:       "main",
		LocalSlots: 2,
		SlotTypes:  []vtype.SlotType{vtype.Plain, vtype.Plain},
		Code: []bytecode.Instruction{
			ins(bytecode.LoadInt, 0, 1, 0),
			insF(bytecode.CallExtern, 1, 0, uint16(externID), 0),
			insF(bytecode.Call, 0, 0, uint16(panickerID), 0),
			ins(bytecode.LoadInt, 0, 2, 0),
			insF(bytecode.CallExtern, 1, 0, uint16(externID), 0),
			insF(bytecode.Return, 0, 0, 0, 0),
		},
	}
	m.AddFunction(main)
	m.EntryFunc = 2

	v := New(DefaultConfig())
	v.State.Externs.Register("record", func(ctx *extern.Context) extern.Result {
		record(ctx.ArgI64(0))
		return extern.ResultOk
	})
	mustLoad(t, v, m)
	require.NoError(t, v.Run())
	require.Equal(t, []int64{1, 2}, order, "main must resume after the panic was recovered")
}

// TestSliceAppendGrowth builds the element ValueMeta as a LoadInt
// immediate (a plain Int64 element meta easily fits in 32 bits) and
// appends past an initial zero-length slice several times.
func TestSliceAppendGrowth(t *testing.T) {
	m := bytecode.NewModule("slice")
	elemMeta := vtype.NewValueMeta(0, vtype.Int64).Raw()
	var gotLen, gotLast int64
	lenExtern := m.AddExtern("observe_len", 1, 0)
	lastExtern := m.AddExtern("observe_last", 1, 0)

	main := bytecode.FunctionDef{
		Name:       "main",
		LocalSlots: 6,
		SlotTypes:  []vtype.SlotType{vtype.GcRef, vtype.Plain, vtype.Plain, vtype.Plain, vtype.Plain, vtype.Plain},
		Code: []bytecode.Instruction{
			// r1 = elemMeta, r2 = 0 (initial len)
			withImm32(ins(bytecode.LoadInt, 1, 0, 0), int32(elemMeta)),
			ins(bytecode.LoadInt, 2, 0, 0),
			ins(bytecode.SliceNew, 0, 1, 2), // r0 = new([]int64, 0)
			// append 10, 20, 30
			ins(bytecode.LoadInt, 3, 10, 0),
			ins(bytecode.SliceAppend, 0, 0, 3),
			ins(bytecode.LoadInt, 3, 20, 0),
			ins(bytecode.SliceAppend, 0, 0, 3),
			ins(bytecode.LoadInt, 3, 30, 0),
			ins(bytecode.SliceAppend, 0, 0, 3),
			ins(bytecode.SliceLen, 5, 0, 0),
			insF(bytecode.CallExtern, 1, 0, uint16(lenExtern), 5),
			ins(bytecode.LoadInt, 4, 2, 0),
			ins(bytecode.SliceGet, 5, 0, 4),
			insF(bytecode.CallExtern, 1, 0, uint16(lastExtern), 5),
			insF(bytecode.Return, 0, 0, 0, 0),
		},
	}
	m.AddFunction(main)
	m.EntryFunc = 0

	v := New(DefaultConfig())
	v.State.Externs.Register("observe_len", func(ctx *extern.Context) extern.Result {
		gotLen = ctx.ArgI64(0)
		return extern.ResultOk
	})
	v.State.Externs.Register("observe_last", func(ctx *extern.Context) extern.Result {
		gotLast = ctx.ArgI64(0)
		return extern.ResultOk
	})
	mustLoad(t, v, m)
	require.NoError(t, v.Run())
	require.EqualValues(t, 3, gotLen)
	require.EqualValues(t, 30, gotLast)
}

func withImm32(i bytecode.Instruction, v int32) bytecode.Instruction {
	u := uint32(v)
	i.B = uint16(u & 0xFFFF)
	i.C = uint16(u >> 16)
	return i
}

// TestGoroutineChannelHandoff spawns a fiber via GoCall that sends a
// value on a channel the main fiber receives.
func TestGoroutineChannelHandoff(t *testing.T) {
	m := bytecode.NewModule("chan")
	var received int64 = -1
	externID := m.AddExtern("observe", 1, 0)

	sender := bytecode.FunctionDef{
		Name:       "sender",
		ParamSlots: 1,
		LocalSlots: 2,
		SlotTypes:  []vtype.SlotType{vtype.GcRef, vtype.Plain},
		Code: []bytecode.Instruction{
			ins(bytecode.LoadInt, 1, 7, 0),
			ins(bytecode.ChanSend, 0, 1, 0),
			insF(bytecode.Return, 0, 0, 0, 0),
		},
	}
	senderID := m.AddFunction(sender)

	main := bytecode.FunctionDef{
		Name:       "main",
		LocalSlots: 4,
		SlotTypes:  []vtype.SlotType{vtype.GcRef, vtype.Plain, vtype.Plain, vtype.Plain},
		Code: []bytecode.Instruction{
			withImm32(ins(bytecode.LoadInt, 1, 0, 0), int32(vtype.NewValueMeta(0, vtype.Int64).Raw())),
			ins(bytecode.LoadInt, 2, 0, 0),
			ins(bytecode.ChanNew, 0, 1, 2),
			insF(bytecode.GoCall, 1, 0, uint16(senderID), 0),
			ins(bytecode.ChanRecv, 2, 0, 0),
			insF(bytecode.CallExtern, 1, 0, uint16(externID), 2),
			insF(bytecode.Return, 0, 0, 0, 0),
		},
	}
	m.AddFunction(main)
	m.EntryFunc = 1

	v := New(DefaultConfig())
	v.State.Externs.Register("observe", func(ctx *extern.Context) extern.Result {
		received = ctx.ArgI64(0)
		return extern.ResultOk
	})
	mustLoad(t, v, m)
	require.NoError(t, v.Run())
	require.EqualValues(t, 7, received)
}

// TestGCSurvivesMutationUnderPressure forces frequent collection while
// building a linked chain of heap pointers, then checks the chain is
// still intact afterward (nothing got swept out from under it).
func TestGCSurvivesMutationUnderPressure(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GcMinThreshold = 1 // collect very aggressively
	cfg.GcHeapGrowth = 0
	cfg.TimeSlice = 1 // collection is checked after every slice
	v := New(cfg)
	var observed int64

	sm := bytecode.StructMeta{Name: "node", SlotTypes: []vtype.SlotType{vtype.Plain, vtype.GcRef}}
	m := bytecode.NewModule("gcstress")
	m.StructMetas = append(m.StructMetas, sm)
	externID := m.AddExtern("observe", 1, 0)

	main := bytecode.FunctionDef{
		Name:       "main",
		LocalSlots: 6,
		SlotTypes:  []vtype.SlotType{vtype.GcRef, vtype.GcRef, vtype.Plain, vtype.Plain, vtype.Plain, vtype.Plain},
		Code: []bytecode.Instruction{
			ins(bytecode.LoadInt, 2, 0, 0), // meta id reg = 0
			ins(bytecode.PtrNew, 0, 2, 0),  // r0 = head node
			ins(bytecode.LoadInt, 3, 42, 0),
			insF(bytecode.PtrSet, 0, 3, 0, 0), // head.field0 = 42
			ins(bytecode.PtrNew, 1, 2, 0),     // r1 = second node
			ins(bytecode.LoadInt, 4, 43, 0),
			insF(bytecode.PtrSet, 0, 4, 1, 0), // second.field0 = 43
			insF(bytecode.PtrSet, 0, 1, 0, 1), // head.field1 = second (gc ref)
			ins(bytecode.LoadNil, 1, 0, 0),
			ins(bytecode.PtrNew, 1, 2, 0),     // r1 = third node; second is reachable only via head
			insF(bytecode.PtrGet, 0, 1, 0, 1), // r1 = head.field1
			insF(bytecode.PtrGet, 0, 5, 1, 0), // r5 = second.field0
			insF(bytecode.CallExtern, 1, 0, uint16(externID), 5),
			insF(bytecode.Return, 0, 0, 0, 0),
		},
	}
	m.AddFunction(main)
	m.EntryFunc = 0

	v.State.Externs.Register("observe", func(ctx *extern.Context) extern.Result {
		observed = ctx.ArgI64(0)
		return extern.ResultOk
	})
	mustLoad(t, v, m)
	require.NoError(t, v.Run())
	require.GreaterOrEqual(t, v.State.Gc.LiveObjects(), 0)
	require.EqualValues(t, 43, observed)
}

// TestInterfaceDispatch boxes a pointer-receiver method into an
// interface value and calls it through CallIface, resolving the itab
// lazily via TryGetOrCreate.
func TestInterfaceDispatch(t *testing.T) {
	m := bytecode.NewModule("iface")
	var observed int64
	externID := m.AddExtern("observe", 1, 0)

	m.StructMetas = append(m.StructMetas, bytecode.StructMeta{
		Name:      "greeter",
		SlotTypes: []vtype.SlotType{vtype.Plain},
	})

	speak := bytecode.FunctionDef{
		Name:       "speak",
		ParamSlots: 1,
		LocalSlots: 2,
		RetSlots:   1,
		RecvSlots:  1,
		SlotTypes:  []vtype.SlotType{vtype.Plain, vtype.Plain, vtype.Plain},
		Code: []bytecode.Instruction{
			ins(bytecode.PtrGet, 1, 0, 0),
			ins(bytecode.LoadInt, 2, 2, 0),
			ins(bytecode.MulI, 1, 1, 2),
			insF(bytecode.Return, 1, 1, 0, 0),
		},
	}
	speakID := m.AddFunction(speak)

	m.NamedTypes = append(m.NamedTypes, bytecode.NamedTypeMeta{
		Name: "greeter",
		Methods: map[string]bytecode.MethodInfo{
			"Speak": {FuncID: speakID, IsPointerReceiver: true},
		},
	})
	m.InterfaceMetas = append(m.InterfaceMetas, bytecode.InterfaceMeta{
		Name:        "Speaker",
		MethodNames: []string{"Speak"},
	})

	main := bytecode.FunctionDef{
		Name:       "main",
		LocalSlots: 8,
		SlotTypes: []vtype.SlotType{
			vtype.GcRef, vtype.Plain, vtype.Interface0, vtype.Plain,
			vtype.Plain, vtype.Plain, vtype.Plain, vtype.Plain,
		},
		Code: []bytecode.Instruction{
			ins(bytecode.LoadInt, 1, 0, 0),
			ins(bytecode.PtrNew, 0, 1, 0),
			ins(bytecode.LoadInt, 7, 21, 0),
			insF(bytecode.PtrSet, 0, 7, 0, 0),
			ins(bytecode.LoadInt, 4, 0, 0),
			ins(bytecode.LoadInt, 5, 0, 0),
			insF(bytecode.IfaceAssign, 1, 2, 0, 4),
			insF(bytecode.CallIface, 16, 0, 2, 6),
			insF(bytecode.CallExtern, 1, 0, uint16(externID), 6),
			insF(bytecode.Return, 0, 0, 0, 0),
		},
	}
	m.AddFunction(main)
	m.EntryFunc = 1

	v := New(DefaultConfig())
	v.State.Externs.Register("observe", func(ctx *extern.Context) extern.Result {
		observed = ctx.ArgI64(0)
		return extern.ResultOk
	})
	mustLoad(t, v, m)
	require.NoError(t, v.Run())
	require.EqualValues(t, 42, observed)
}

// TestPtrFieldRoundTrip is a narrower unit check of PtrNew/PtrSet/PtrGet
// against the same struct meta table the VM resolves through vm.go's
// fieldSlotType helper.
func TestPtrFieldRoundTrip(t *testing.T) {
	g := gc.New(2.0, 1<<16)
	sm := heap.StructMeta{Name: "pair", SlotTypes: []vtype.SlotType{vtype.Plain, vtype.Plain}}
	ref := heap.PointerCreate(g, 0, sm)
	heap.FieldSet(g, ref, 0, 11, vtype.Plain)
	heap.FieldSet(g, ref, 1, 22, vtype.Plain)
	require.EqualValues(t, 11, heap.FieldGet(g, ref, 0))
	require.EqualValues(t, 22, heap.FieldGet(g, ref, 1))
}

// TestDivIAndModIAdvancePastSuccess checks that a successful (non-zero
// divisor) DivI/ModI advances the program counter instead of
// re-executing the same instruction forever; both opcodes report
// (Continue, nil) directly rather than through step()'s shared
// trailing PC++, so each is individually responsible for the advance.
func TestDivIAndModIAdvancePastSuccess(t *testing.T) {
	m := bytecode.NewModule("divmod")
	main := bytecode.FunctionDef{
		Name:       "main",
		LocalSlots: 4,
		RetSlots:   1,
		SlotTypes:  []vtype.SlotType{vtype.Plain, vtype.Plain, vtype.Plain, vtype.Plain},
		Code: []bytecode.Instruction{
			ins(bytecode.LoadInt, 0, 17, 0),
			ins(bytecode.LoadInt, 1, 5, 0),
			ins(bytecode.DivI, 2, 0, 1),
			ins(bytecode.ModI, 3, 0, 1),
			insF(bytecode.Return, 1, 2, 0, 0),
		},
	}
	m.AddFunction(main)
	m.EntryFunc = 0

	v := New(DefaultConfig())
	mustLoad(t, v, m)
	require.NoError(t, v.Run())
}

// TestDivisionByZeroTraps checks that an integer division by zero
// terminates the entry fiber with a rendered fault rather than
// crashing the host process.
func TestDivisionByZeroTraps(t *testing.T) {
	m := bytecode.NewModule("divzero")
	main := bytecode.FunctionDef{
		Name:       "main",
		LocalSlots: 3,
		SlotTypes:  []vtype.SlotType{vtype.Plain, vtype.Plain, vtype.Plain},
		Code: []bytecode.Instruction{
			ins(bytecode.LoadInt, 0, 10, 0),
			ins(bytecode.LoadInt, 1, 0, 0),
			ins(bytecode.DivI, 2, 0, 1),
			insF(bytecode.Return, 0, 0, 0, 0),
		},
	}
	m.AddFunction(main)
	m.EntryFunc = 0

	v := New(DefaultConfig())
	mustLoad(t, v, m)
	err := v.Run()
	require.Error(t, err)
	require.Contains(t, err.Error(), "division by zero")
	require.NotNil(t, v.LastFault)
}

// TestArrayIndexOutOfBoundsTraps checks an out-of-range ArrayGet raises
// a recoverable panic (ErrIndexOutOfBounds) instead of an unrecovered
// Go runtime slice-bounds panic.
func TestArrayIndexOutOfBoundsTraps(t *testing.T) {
	m := bytecode.NewModule("arrbounds")
	elemMeta := vtype.NewValueMeta(0, vtype.Int64).Raw()
	main := bytecode.FunctionDef{
		Name:       "main",
		LocalSlots: 4,
		SlotTypes:  []vtype.SlotType{vtype.GcRef, vtype.Plain, vtype.Plain, vtype.Plain},
		Code: []bytecode.Instruction{
			withImm32(ins(bytecode.LoadInt, 1, 0, 0), int32(elemMeta)),
			ins(bytecode.LoadInt, 2, 3, 0), // length 3
			ins(bytecode.ArrayNew, 0, 1, 2),
			ins(bytecode.LoadInt, 3, 5, 0), // idx 5, out of range
			ins(bytecode.ArrayGet, 3, 0, 3),
			insF(bytecode.Return, 0, 0, 0, 0),
		},
	}
	m.AddFunction(main)
	m.EntryFunc = 0

	v := New(DefaultConfig())
	mustLoad(t, v, m)
	err := v.Run()
	require.Error(t, err)
	require.Contains(t, err.Error(), "out of bounds")
}

// TestStringIndexOutOfBoundsTraps mirrors TestArrayIndexOutOfBoundsTraps
// for StrIndex.
func TestStringIndexOutOfBoundsTraps(t *testing.T) {
	m := bytecode.NewModule("strbounds")
	m.AddConstant(bytecode.StringConstant("hi"))
	main := bytecode.FunctionDef{
		Name:       "main",
		LocalSlots: 3,
		SlotTypes:  []vtype.SlotType{vtype.GcRef, vtype.Plain, vtype.Plain},
		Code: []bytecode.Instruction{
			ins(bytecode.StrNew, 0, 0, 0),
			ins(bytecode.LoadInt, 2, 9, 0),
			ins(bytecode.StrIndex, 1, 0, 2),
			insF(bytecode.Return, 0, 0, 0, 0),
		},
	}
	m.AddFunction(main)
	m.EntryFunc = 0

	v := New(DefaultConfig())
	mustLoad(t, v, m)
	err := v.Run()
	require.Error(t, err)
	require.Contains(t, err.Error(), "out of bounds")
}

// TestStackOverflowOnUnboundedRecursion checks that a function calling
// itself without a base case trips MaxCallDepth rather than exhausting
// the host process's own stack or heap.
func TestStackOverflowOnUnboundedRecursion(t *testing.T) {
	m := bytecode.NewModule("overflow")
	recurseID := m.AddFunction(bytecode.FunctionDef{Name: "recurse"})
	m.Functions[recurseID].Code = []bytecode.Instruction{
		insF(bytecode.Call, 0, 0, uint16(recurseID), 0),
	}

	main := bytecode.FunctionDef{
		Name: "main",
		Code: []bytecode.Instruction{
			insF(bytecode.Call, 0, 0, uint16(recurseID), 0),
			insF(bytecode.Return, 0, 0, 0, 0),
		},
	}
	m.AddFunction(main)
	m.EntryFunc = 1

	v := New(DefaultConfig())
	mustLoad(t, v, m)
	err := v.Run()
	require.Error(t, err)
	require.Contains(t, err.Error(), "stack")
}

// TestNilPointerFieldGetTraps checks that PtrGet through a nil pointer
// raises a recoverable panic rather than faulting the host process.
func TestNilPointerFieldGetTraps(t *testing.T) {
	m := bytecode.NewModule("nilderef")
	main := bytecode.FunctionDef{
		Name:       "main",
		LocalSlots: 2,
		SlotTypes:  []vtype.SlotType{vtype.GcRef, vtype.Plain},
		Code: []bytecode.Instruction{
			ins(bytecode.LoadNil, 0, 0, 0),
			ins(bytecode.PtrGet, 1, 0, 0),
			insF(bytecode.Return, 0, 0, 0, 0),
		},
	}
	m.AddFunction(main)
	m.EntryFunc = 0

	v := New(DefaultConfig())
	mustLoad(t, v, m)
	err := v.Run()
	require.Error(t, err)
	require.Contains(t, err.Error(), "nil pointer")
}

// TestNilSliceIndexTraps checks that indexing a nil (never-allocated)
// slice reports an out-of-bounds panic, matching indexing a nil Go
// slice, rather than dereferencing an absent backing array.
func TestNilSliceIndexTraps(t *testing.T) {
	m := bytecode.NewModule("nilslice")
	main := bytecode.FunctionDef{
		Name:       "main",
		LocalSlots: 3,
		SlotTypes:  []vtype.SlotType{vtype.GcRef, vtype.Plain, vtype.Plain},
		Code: []bytecode.Instruction{
			ins(bytecode.LoadNil, 0, 0, 0),
			ins(bytecode.LoadInt, 2, 0, 0),
			ins(bytecode.SliceGet, 1, 0, 2),
			insF(bytecode.Return, 0, 0, 0, 0),
		},
	}
	m.AddFunction(main)
	m.EntryFunc = 0

	v := New(DefaultConfig())
	mustLoad(t, v, m)
	err := v.Run()
	require.Error(t, err)
	require.Contains(t, err.Error(), "out of bounds")
}

// TestMapSetOnNilMapTraps checks that writing through a nil (never
// make()'d) map raises a recoverable panic matching Go's own
// "assignment to entry in nil map", rather than dereferencing an
// unallocated bucket table.
func TestMapSetOnNilMapTraps(t *testing.T) {
	m := bytecode.NewModule("nilmap")
	main := bytecode.FunctionDef{
		Name:       "main",
		LocalSlots: 3,
		SlotTypes:  []vtype.SlotType{vtype.GcRef, vtype.Plain, vtype.Plain},
		Code: []bytecode.Instruction{
			ins(bytecode.LoadNil, 0, 0, 0),
			ins(bytecode.LoadInt, 1, 1, 0),
			ins(bytecode.LoadInt, 2, 2, 0),
			ins(bytecode.MapSet, 0, 1, 2),
			insF(bytecode.Return, 0, 0, 0, 0),
		},
	}
	m.AddFunction(main)
	m.EntryFunc = 0

	v := New(DefaultConfig())
	mustLoad(t, v, m)
	err := v.Run()
	require.Error(t, err)
	require.Contains(t, err.Error(), "nil map")
}

// TestDeadlockOnUnbufferedRecvWithNoSender checks that blocking forever
// on a channel nothing will ever fill is reported as a deadlock rather
// than hanging Run() indefinitely.
func TestDeadlockOnUnbufferedRecvWithNoSender(t *testing.T) {
	m := bytecode.NewModule("deadlock")
	main := bytecode.FunctionDef{
		Name:       "main",
		LocalSlots: 4,
		SlotTypes:  []vtype.SlotType{vtype.GcRef, vtype.Plain, vtype.Plain, vtype.Plain},
		Code: []bytecode.Instruction{
			withImm32(ins(bytecode.LoadInt, 1, 0, 0), int32(vtype.NewValueMeta(0, vtype.Int64).Raw())),
			ins(bytecode.LoadInt, 2, 0, 0),
			ins(bytecode.ChanNew, 0, 1, 2),
			ins(bytecode.ChanRecv, 2, 0, 0),
			insF(bytecode.Return, 0, 0, 0, 0),
		},
	}
	m.AddFunction(main)
	m.EntryFunc = 0

	v := New(DefaultConfig())
	mustLoad(t, v, m)
	err := v.Run()
	require.Error(t, err)
	require.Contains(t, err.Error(), "blocked")
}
