package bytecode

import "github.com/vo-lang/vort/internal/vtype"

// FunctionDef is one compiled function: its register-frame shape and its
// instruction stream.
type FunctionDef struct {
	Name       string
	ParamCount uint16
	ParamSlots uint16
	LocalSlots uint16
	RetSlots   uint16
	Code       []Instruction
	RecvSlots  uint16 // 0 for a plain function; >0 for a method
	IsClosure  bool

	// SlotTypes classifies every register in this function's frame
	// (length is the frame's total addressable register count) for GC
	// root scanning: the VM walks a live fiber's stack, frame by frame,
	// zipping each frame's live slots against its function's SlotTypes.
	SlotTypes []vtype.SlotType
}

// ExternDef references a host function registered in the extern
// registry by name, with the slot-width signature the caller must match.
type ExternDef struct {
	Name       string
	ParamSlots uint16
	RetSlots   uint16
}

// GlobalDef is one module-level variable, which may span more than one
// slot (an interface global takes two: meta|itab word and data word).
type GlobalDef struct {
	Name      string
	Meta      vtype.ValueMeta
	SlotTypes []vtype.SlotType
}

// StructMeta describes a struct (or pointer pointee) field layout: one
// SlotType per field slot, used to build zeroed instances and to drive
// GC scanning.
type StructMeta struct {
	Name      string
	SlotTypes []vtype.SlotType
}

// InterfaceMeta names an interface's method set, in the fixed order its
// itabs are built against.
type InterfaceMeta struct {
	Name        string
	MethodNames []string
}

// MethodInfo is one entry in a named type's method table.
type MethodInfo struct {
	FuncID            uint32
	IsPointerReceiver bool
}

// NamedTypeMeta is a named type's method set, keyed by method name.
type NamedTypeMeta struct {
	Name    string
	Methods map[string]MethodInfo
}

// Itab is a resolved interface method table: FuncID per interface method
// slot, in the interface's declared method order.
type Itab struct {
	Methods []uint32
}

// Module is the whole loaded program: code, constants, and every
// metadata table the VM, GC, and itab cache need to interpret it.
type Module struct {
	Name string

	Constants      []Constant
	Functions      []FunctionDef
	Externs        []ExternDef
	Globals        []GlobalDef
	StructMetas    []StructMeta
	InterfaceMetas []InterfaceMeta
	NamedTypes     []NamedTypeMeta
	Itabs          []Itab

	// DebugInfo is optional: a module built without source spans (or
	// read from a .vob written by a stripped build) leaves this nil,
	// and every Lookup-driven diagnostic falls back to a bare
	// function/pc reference.
	DebugInfo *DebugInfo

	EntryFunc uint32
}

func NewModule(name string) *Module { return &Module{Name: name} }

func (m *Module) AddConstant(c Constant) uint16 {
	m.Constants = append(m.Constants, c)
	return uint16(len(m.Constants) - 1)
}

func (m *Module) AddFunction(f FunctionDef) uint32 {
	m.Functions = append(m.Functions, f)
	return uint32(len(m.Functions) - 1)
}

func (m *Module) AddExtern(name string, paramSlots, retSlots uint16) uint32 {
	m.Externs = append(m.Externs, ExternDef{Name: name, ParamSlots: paramSlots, RetSlots: retSlots})
	return uint32(len(m.Externs) - 1)
}

func (m *Module) GetFunction(id uint32) (FunctionDef, bool) {
	if int(id) >= len(m.Functions) {
		return FunctionDef{}, false
	}
	return m.Functions[id], true
}

func (m *Module) GetExtern(id uint32) (ExternDef, bool) {
	if int(id) >= len(m.Externs) {
		return ExternDef{}, false
	}
	return m.Externs[id], true
}

func (m *Module) FindFunction(name string) (uint32, bool) {
	for i, f := range m.Functions {
		if f.Name == name {
			return uint32(i), true
		}
	}
	return 0, false
}

func (m *Module) FindExtern(name string) (uint32, bool) {
	for i, e := range m.Externs {
		if e.Name == name {
			return uint32(i), true
		}
	}
	return 0, false
}

// StructMeta looks up a struct layout by metadata id. The vm package
// wraps this in a tiny adapter to satisfy heap.StructMetaTable, since
// internal/heap must not import internal/bytecode.
func (m *Module) StructMeta(id vtype.MetaId) (StructMetaView, bool) {
	if int(id) >= len(m.StructMetas) {
		return StructMetaView{}, false
	}
	sm := m.StructMetas[id]
	return StructMetaView{Name: sm.Name, SlotTypes: sm.SlotTypes}, true
}

// StructMetaView mirrors heap.StructMeta's shape without importing
// internal/heap from internal/bytecode — the vm package adapts between
// the two with a one-line wrapper (see vm.structMetaAdapter).
type StructMetaView struct {
	Name      string
	SlotTypes []vtype.SlotType
}
