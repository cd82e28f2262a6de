// Package extern is the host function boundary: the registry CallExtern
// dispatches through, the argument/return accessors extern functions use
// to read and write VM register slots, and the dynamic-library loader
// that pulls third-party extensions in at startup.
package extern

import (
	"fmt"
	"math"

	"github.com/vo-lang/vort/internal/gc"
)

// Result is what an extern call hands back to the instruction loop.
type Result uint8

const (
	// ResultOk completes the call normally; execution continues at the
	// next instruction.
	ResultOk Result = iota
	// ResultYield suspends the calling fiber, same as a channel block.
	ResultYield
	// ResultPanic raises a VM panic with the message the extern set on
	// the Context before returning this result.
	ResultPanic
)

// Context is the argument/return window an extern function operates on:
// a slice of the caller's register stack starting at the call's argument
// base, plus the Gc needed to allocate or inspect heap values.
type Context struct {
	Gc       *gc.Gc
	stack    []uint64
	argStart uint16
	argCount uint16
	retStart uint16

	panicMsg string
}

// NewContext builds a Context over one CallExtern's argument window.
func NewContext(g *gc.Gc, stack []uint64, argStart, argCount, retStart uint16) *Context {
	return &Context{Gc: g, stack: stack, argStart: argStart, argCount: argCount, retStart: retStart}
}

// ArgCount reports how many argument slots were passed.
func (c *Context) ArgCount() int { return int(c.argCount) }

// ArgSlot reads raw argument slot i.
func (c *Context) ArgSlot(i int) uint64 { return c.stack[int(c.argStart)+i] }

// ArgI64 reads argument i as a signed integer.
func (c *Context) ArgI64(i int) int64 { return int64(c.ArgSlot(i)) }

// ArgF64 reads argument i as a float64, bit-reinterpreted.
func (c *Context) ArgF64(i int) float64 { return f64FromBits(c.ArgSlot(i)) }

// ArgBool reads argument i as a bool.
func (c *Context) ArgBool(i int) bool { return c.ArgSlot(i) != 0 }

// ArgRef reads argument i as a GC reference.
func (c *Context) ArgRef(i int) gc.Ref { return gc.Ref(c.ArgSlot(i)) }

// RetSlot writes raw return slot i.
func (c *Context) RetSlot(i int, v uint64) { c.stack[int(c.retStart)+i] = v }

// RetI64 writes return slot i as a signed integer.
func (c *Context) RetI64(i int, v int64) { c.RetSlot(i, uint64(v)) }

// RetF64 writes return slot i as a float64, bit-reinterpreted.
func (c *Context) RetF64(i int, v float64) { c.RetSlot(i, f64Bits(v)) }

// RetBool writes return slot i as a bool.
func (c *Context) RetBool(i int, v bool) {
	var u uint64
	if v {
		u = 1
	}
	c.RetSlot(i, u)
}

// RetRef writes return slot i as a GC reference.
func (c *Context) RetRef(i int, v gc.Ref) { c.RetSlot(i, uint64(v)) }

// Panic records a panic message; the caller of Fn must return ResultPanic
// alongside it.
func (c *Context) Panic(format string, args ...any) {
	c.panicMsg = fmt.Sprintf(format, args...)
}

// PanicMessage returns whatever message was last recorded by Panic.
func (c *Context) PanicMessage() string { return c.panicMsg }

func f64Bits(v float64) uint64      { return math.Float64bits(v) }
func f64FromBits(b uint64) float64 { return math.Float64frombits(b) }

// Fn is a host function bound to an extern declaration. It reads its
// arguments and writes its return values through ctx, and reports how
// execution should proceed.
type Fn func(ctx *Context) Result

// Registry maps extern ids (module-local, assigned at load time from a
// module's Externs table) to bound host functions.
type Registry struct {
	byID   map[uint32]Fn
	byName map[string]Fn
}

func NewRegistry() *Registry {
	return &Registry{byID: make(map[uint32]Fn), byName: make(map[string]Fn)}
}

// Register binds a name to a host function, callable once an extern id
// is resolved against it via Bind.
func (r *Registry) Register(name string, fn Fn) {
	r.byName[name] = fn
}

// Bind resolves a module's extern table against the registered names,
// assigning each a stable numeric id the bytecode's CallExtern operand
// addresses directly. Returns the names that had no registered host
// function, so the loader can fail loudly instead of panicking mid-run.
func (r *Registry) Bind(names []string) (missing []string) {
	for id, name := range names {
		fn, ok := r.byName[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		r.byID[uint32(id)] = fn
	}
	return missing
}

// Call dispatches extern id against its bound host function.
func (r *Registry) Call(id uint32, ctx *Context) Result {
	fn, ok := r.byID[id]
	if !ok {
		ctx.Panic("extern: no function bound for id %d", id)
		return ResultPanic
	}
	return fn(ctx)
}

// Has reports whether name is registered, regardless of whether it has
// been bound to a numeric id yet.
func (r *Registry) Has(name string) bool {
	_, ok := r.byName[name]
	return ok
}

// Len reports how many names are registered.
func (r *Registry) Len() int { return len(r.byName) }
