// Package vm is the bytecode interpreter: it drives fibers through a
// loaded module's instructions, cooperating with the scheduler for
// goroutine/channel semantics and with the GC for allocation and
// collection. Exec handlers are split into per-family files the way
// original_source's vo-vm/src/exec/ directory is, one file per opcode
// group.
package vm

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/vo-lang/vort/internal/bytecode"
	"github.com/vo-lang/vort/internal/extern"
	"github.com/vo-lang/vort/internal/gc"
	"github.com/vo-lang/vort/internal/heap"
	"github.com/vo-lang/vort/internal/itab"
	"github.com/vo-lang/vort/internal/metrics"
	"github.com/vo-lang/vort/internal/scheduler"
	"github.com/vo-lang/vort/internal/vtype"
)

// ExecResult is what one exec handler reports back to the instruction
// loop, deciding whether PC advances, the fiber yields, or the fiber's
// run ends.
type ExecResult uint8

const (
	// Continue advances PC by one and keeps running this fiber.
	Continue ExecResult = iota
	// Return unwound a frame; the loop re-checks whether any frames
	// remain before continuing.
	Return
	// Yield cooperatively hands control back to the scheduler; this
	// fiber is re-queued as runnable.
	Yield
	// Block suspends the fiber without re-queueing it: a channel
	// operation parked it, and the scheduler will wake it later.
	Block
	// Panic begins unwinding toward the nearest recover or the fiber's
	// death.
	Panic
	// Done means the fiber's last frame returned with nothing left to
	// unwind; it is now Dead.
	Done
)

func (r ExecResult) String() string {
	switch r {
	case Continue:
		return "continue"
	case Return:
		return "return"
	case Yield:
		return "yield"
	case Block:
		return "block"
	case Panic:
		return "panic"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// Error is a typed VM fault, returned from Run for conditions the
// instruction loop itself detects (as opposed to a vo-level panic, which
// flows through ExecResult/fiber.PanicValue instead).
type Error struct {
	Kind    ErrorKind
	Fiber   uint32
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("vm: %s (fiber %d): %s", e.Kind, e.Fiber, e.Message)
}

// ErrorKind classifies an Error.
type ErrorKind uint8

const (
	ErrNoEntryFunction ErrorKind = iota
	ErrInvalidFunctionID
	ErrStackOverflow
	ErrStackUnderflow
	ErrInvalidOpcode
	ErrDivisionByZero
	ErrIndexOutOfBounds
	ErrNilDereference
	ErrTypeAssertionFailed
	ErrSendOnClosedChannel
	ErrDeadlock
)

func (k ErrorKind) String() string {
	switch k {
	case ErrNoEntryFunction:
		return "no entry function"
	case ErrInvalidFunctionID:
		return "invalid function id"
	case ErrStackOverflow:
		return "stack overflow"
	case ErrStackUnderflow:
		return "stack underflow"
	case ErrInvalidOpcode:
		return "invalid opcode"
	case ErrDivisionByZero:
		return "division by zero"
	case ErrIndexOutOfBounds:
		return "index out of bounds"
	case ErrNilDereference:
		return "nil pointer dereference"
	case ErrTypeAssertionFailed:
		return "type assertion failed"
	case ErrSendOnClosedChannel:
		return "send on closed channel"
	case ErrDeadlock:
		return "all fibers blocked"
	default:
		return "unknown vm error"
	}
}

// MaxCallDepth bounds the call stack the same way the teacher's
// ring-buffer queue bounds its backlog: a fixed ceiling turns unbounded
// recursion into a reported error instead of an OOM.
const MaxCallDepth = 4096

// Config holds the knobs a CLI or embedder sets before calling New.
type Config struct {
	TimeSlice      int
	GcHeapGrowth   float64
	GcMinThreshold int
	Log            *logrus.Logger

	// Metrics is registered and reported into if set; New builds a
	// private one when left nil, so an embedder that doesn't care about
	// metrics never has to think about the registry.
	Metrics *metrics.Collectors
}

// DefaultConfig mirrors original_source's TIME_SLICE=1000 constant and a
// generation-scavenger-style default growth factor for the GC.
func DefaultConfig() Config {
	return Config{
		TimeSlice:      scheduler.DefaultTimeSlice,
		GcHeapGrowth:   2.0,
		GcMinThreshold: 1 << 16,
		Log:            logrus.StandardLogger(),
	}
}

// State is the VM's mutable core: the GC heap, global variable slots,
// the itab cache, and the extern registry. Kept as its own struct (the
// way original_source's VmState splits borrow scope from the scheduler)
// so gc roots scanning can hold it independently of fiber bookkeeping.
type State struct {
	Gc       *gc.Gc
	Globals  []uint64
	Itabs    *itab.Cache
	Externs  *extern.Registry
}

// VM ties a loaded module, VM state, and scheduler together and drives
// execution one fiber at a time.
type VM struct {
	Module    *bytecode.Module
	State     *State
	Scheduler *scheduler.Scheduler
	Log       *logrus.Logger
	Metrics   *metrics.Collectors

	// LastFault is set when the main fiber terminates on an unrecovered
	// panic, rendering spec.md §7's required `panic: <msg> at
	// <file:line:col>` diagnostic once DebugInfo resolves the site.
	LastFault *FaultInfo

	timeSlice     int
	lastFaultSite faultSite
}

// faultSite is the (func, pc) pair captured the instant a panic is
// first raised, before unwinding pops the frame it happened in.
type faultSite struct {
	FuncID uint32
	PC     uint32
}

// FaultInfo is a rendered, user-facing description of an unrecovered
// panic on the main fiber.
type FaultInfo struct {
	Message  string
	FuncID   uint32
	PC       uint32
	Location string // "file:line:col", empty if the module carries no DebugInfo
}

func (f *FaultInfo) String() string {
	if f.Location == "" {
		return fmt.Sprintf("panic: %s (func %d, pc %d)", f.Message, f.FuncID, f.PC)
	}
	return fmt.Sprintf("panic: %s at %s", f.Message, f.Location)
}

// New builds a VM ready to Load a module into.
func New(cfg Config) *VM {
	if cfg.Log == nil {
		cfg.Log = logrus.StandardLogger()
	}
	if cfg.TimeSlice <= 0 {
		cfg.TimeSlice = scheduler.DefaultTimeSlice
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New()
	}
	return &VM{
		State: &State{
			Gc:      gc.New(cfg.GcHeapGrowth, cfg.GcMinThreshold),
			Itabs:   itab.FromModuleItabs(nil),
			Externs: extern.NewRegistry(),
		},
		Scheduler: scheduler.New(cfg.TimeSlice),
		Log:       cfg.Log,
		Metrics:   cfg.Metrics,
		timeSlice: cfg.TimeSlice,
	}
}

// structMetaAdapter lets heap.ScanObject resolve struct layouts straight
// out of the loaded module, satisfying heap.StructMetaTable without
// internal/heap importing internal/bytecode.
type structMetaAdapter struct{ m *bytecode.Module }

func (a structMetaAdapter) StructMeta(id vtype.MetaId) (heap.StructMeta, bool) {
	sm, ok := a.m.StructMeta(id)
	if !ok {
		return heap.StructMeta{}, false
	}
	return heap.StructMeta{Name: sm.Name, SlotTypes: sm.SlotTypes}, true
}
