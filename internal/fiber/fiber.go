// Package fiber implements the runtime's coroutine: a call-frame stack,
// defer bookkeeping, select state, and panic state, ported field-for-
// field from original_source's vo-vm/src/fiber.rs.
package fiber

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/vo-lang/vort/internal/gc"
)

// CallFrame is one entry in a fiber's call stack.
type CallFrame struct {
	FuncID   uint32
	PC       int
	BP       int
	RetReg   uint16
	RetCount uint16
}

// DeferEntry records one `defer`/`errdefer` registration.
type DeferEntry struct {
	FrameDepth int
	FuncID     uint32
	Closure    gc.Ref
	Args       gc.Ref
	ArgSlots   uint16
	IsClosure  bool
	IsErrdefer bool
}

// SelectCaseKind distinguishes a select arm's direction.
type SelectCaseKind uint8

const (
	SelectSend SelectCaseKind = iota
	SelectRecv
)

// SelectCase is one arm of a pending select statement.
type SelectCase struct {
	Kind      SelectCaseKind
	ChanReg   uint16
	ValReg    uint16
	ElemSlots uint8
	HasOk     bool
}

// SelectState holds a fiber's in-progress select statement.
type SelectState struct {
	Cases      []SelectCase
	HasDefault bool
	WokenIndex int // -1 until the scheduler wakes a specific case
}

// NewSelectState builds a SelectState with WokenIndex unset.
func NewSelectState(cases []SelectCase, hasDefault bool) *SelectState {
	return &SelectState{Cases: cases, HasDefault: hasDefault, WokenIndex: -1}
}

// FiberStatus is the fiber's scheduling state.
type FiberStatus uint8

const (
	Running FiberStatus = iota
	Suspended
	Dead
)

func (s FiberStatus) String() string {
	switch s {
	case Running:
		return "running"
	case Suspended:
		return "suspended"
	case Dead:
		return "dead"
	default:
		return "unknown"
	}
}

// Fiber is one cooperatively-scheduled coroutine: its own register stack,
// call frames, defer state, select state, and panic state.
type Fiber struct {
	ID          uint32
	DisplayID   uuid.UUID // stable human-facing identity for logs/metrics; ID stays the hot-path index
	Status      FiberStatus
	Stack       []uint64
	Frames      []CallFrame
	DeferStack  []DeferEntry
	SelectState *SelectState
	PanicValue  gc.Ref
	PanicMsg    string
}

// New creates a suspended fiber with the given scheduler-local index.
func New(id uint32) *Fiber {
	return &Fiber{
		ID:        id,
		DisplayID: uuid.New(),
		Status:    Suspended,
	}
}

// Reset clears a fiber for reuse from a pool, leaving ID/DisplayID alone.
func (f *Fiber) Reset() {
	f.Status = Running
	f.Stack = f.Stack[:0]
	f.Frames = f.Frames[:0]
	f.DeferStack = f.DeferStack[:0]
	f.SelectState = nil
	f.PanicValue = 0
	f.PanicMsg = ""
}

// PushFrame grows the stack by localSlots words and pushes a new frame
// based at the current stack top.
func (f *Fiber) PushFrame(funcID uint32, localSlots uint16, retReg, retCount uint16) {
	bp := len(f.Stack)
	f.Stack = append(f.Stack, make([]uint64, localSlots)...)
	f.Frames = append(f.Frames, CallFrame{FuncID: funcID, BP: bp, RetReg: retReg, RetCount: retCount})
}

// PopFrame removes and returns the top frame, truncating the stack back
// to its base pointer. Returns false if there is no frame to pop.
func (f *Fiber) PopFrame() (CallFrame, bool) {
	n := len(f.Frames)
	if n == 0 {
		return CallFrame{}, false
	}
	frame := f.Frames[n-1]
	f.Frames = f.Frames[:n-1]
	f.Stack = f.Stack[:frame.BP]
	return frame, true
}

// CurrentFrame returns a pointer to the top frame so callers can update
// its PC in place; it panics if the fiber has no active frame, matching
// the original's `.expect("no active frame")`.
func (f *Fiber) CurrentFrame() *CallFrame {
	if len(f.Frames) == 0 {
		panic("fiber: no active frame")
	}
	return &f.Frames[len(f.Frames)-1]
}

// ReadReg reads register reg in the current frame.
func (f *Fiber) ReadReg(reg uint16) uint64 {
	frame := f.CurrentFrame()
	return f.Stack[frame.BP+int(reg)]
}

// WriteReg writes register reg in the current frame.
func (f *Fiber) WriteReg(reg uint16, val uint64) {
	frame := f.CurrentFrame()
	f.Stack[frame.BP+int(reg)] = val
}

// ReadRegAbs/WriteRegAbs address the stack by absolute index, used when
// walking another frame (e.g. a caller's registers during a return).
func (f *Fiber) ReadRegAbs(idx int) uint64    { return f.Stack[idx] }
func (f *Fiber) WriteRegAbs(idx int, v uint64) { f.Stack[idx] = v }

// PushDefer registers a defer/errdefer at the current frame depth.
func (f *Fiber) PushDefer(entry DeferEntry) {
	entry.FrameDepth = len(f.Frames)
	f.DeferStack = append(f.DeferStack, entry)
}

// PopDefersAt removes and returns, in LIFO order, every defer registered
// at exactly frameDepth — the defers belonging to the frame that just
// returned or panicked.
func (f *Fiber) PopDefersAt(frameDepth int) []DeferEntry {
	var out []DeferEntry
	for len(f.DeferStack) > 0 && f.DeferStack[len(f.DeferStack)-1].FrameDepth == frameDepth {
		n := len(f.DeferStack)
		out = append(out, f.DeferStack[n-1])
		f.DeferStack = f.DeferStack[:n-1]
	}
	return out
}

func (f *Fiber) String() string {
	return fmt.Sprintf("fiber(id=%d status=%s frames=%d)", f.ID, f.Status, len(f.Frames))
}
