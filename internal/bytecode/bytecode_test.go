package bytecode

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vo-lang/vort/internal/vtype"
)

func TestOpcodeRoundTrip(t *testing.T) {
	for v := 0; v < int(opcodeMax); v++ {
		op := FromU8(uint8(v))
		require.NotEqual(t, Invalid, op)
		require.EqualValues(t, v, op)
	}
}

func TestFromU8InvalidPastRange(t *testing.T) {
	require.Equal(t, Invalid, FromU8(uint8(opcodeMax)))
	require.Equal(t, Invalid, FromU8(255))
}

func TestImm32RoundTrip(t *testing.T) {
	ins := NewInstruction(LoadInt, 0, 0, 0)
	ins.B = uint16(uint32(12345) & 0xFFFF)
	ins.C = uint16(uint32(12345) >> 16)
	require.EqualValues(t, 12345, ins.Imm32())
	require.EqualValues(t, 12345, ins.Imm32Unsigned())
}

func TestImm32Signed(t *testing.T) {
	var v int32 = -1
	u := uint32(v)
	ins := Instruction{B: uint16(u & 0xFFFF), C: uint16(u >> 16)}
	require.EqualValues(t, -1, ins.Imm32())
	require.EqualValues(t, 0xFFFFFFFF, ins.Imm32Unsigned())
}

func TestConstantCoercion(t *testing.T) {
	require.EqualValues(t, 42, IntConstant(42).AsI64())
	require.EqualValues(t, 1, BoolConstant(true).AsI64())
	require.EqualValues(t, 0, BoolConstant(false).AsI64())

	require.EqualValues(t, 3.5, FloatConstant(3.5).AsF64())
	require.EqualValues(t, 3.0, IntConstant(3).AsF64())

	require.True(t, BoolConstant(true).AsBool())
	require.True(t, IntConstant(7).AsBool())
	require.False(t, IntConstant(0).AsBool())

	require.Equal(t, "hi", StringConstant("hi").AsStr())
}

func TestConstantCoercionPanicsOnMismatch(t *testing.T) {
	require.Panics(t, func() { NilConstant().AsI64() })
	require.Panics(t, func() { NilConstant().AsStr() })
}

func TestModuleAddAndFind(t *testing.T) {
	m := NewModule("demo")
	idx := m.AddConstant(IntConstant(7))
	require.EqualValues(t, 0, idx)

	fid := m.AddFunction(FunctionDef{Name: "main", Code: []Instruction{NewInstruction(Return, 0, 0, 0)}})
	require.EqualValues(t, 0, fid)

	eid := m.AddExtern("os_write", 2, 1)
	require.EqualValues(t, 0, eid)

	got, ok := m.FindFunction("main")
	require.True(t, ok)
	require.EqualValues(t, fid, got)

	_, ok = m.FindFunction("missing")
	require.False(t, ok)

	e, ok := m.GetExtern(eid)
	require.True(t, ok)
	require.Equal(t, "os_write", e.Name)

	_, ok = m.GetFunction(99)
	require.False(t, ok)
}

func TestDebugInfoLookupFindsLargestPcAtOrBelow(t *testing.T) {
	d := NewDebugInfo()
	f := d.GetOrAddFile("main.vo")
	d.AddLoc(0, DebugLoc{PC: 0, File: f, Line: 1, Col: 1})
	d.AddLoc(0, DebugLoc{PC: 5, File: f, Line: 2, Col: 1})
	d.AddLoc(0, DebugLoc{PC: 10, File: f, Line: 3, Col: 1})
	d.Finalize()

	loc, ok := d.Lookup(0, 7)
	require.True(t, ok)
	require.EqualValues(t, 2, loc.Line)

	loc, ok = d.Lookup(0, 0)
	require.True(t, ok)
	require.EqualValues(t, 1, loc.Line)

	loc, ok = d.Lookup(0, 100)
	require.True(t, ok)
	require.EqualValues(t, 3, loc.Line)

	_, ok = d.Lookup(1, 0)
	require.False(t, ok)
}

func TestDebugInfoLookupEmptyFunc(t *testing.T) {
	d := NewDebugInfo()
	d.EnsureFunc(0)
	_, ok := d.Lookup(0, 0)
	require.False(t, ok)
}

func buildSampleModule() *Module {
	m := NewModule("sample")
	m.AddConstant(IntConstant(10))
	m.AddConstant(StringConstant("hello"))
	m.AddFunction(FunctionDef{
		Name:       "main",
		ParamCount: 0,
		ParamSlots: 0,
		LocalSlots: 2,
		RetSlots:   1,
		Code: []Instruction{
			NewInstruction(LoadConst, 0, 0, 0),
			NewInstruction(Return, 0, 1, 0),
		},
		SlotTypes: []vtype.SlotType{vtype.Plain, vtype.GcRef},
	})
	m.AddExtern("print", 1, 0)
	m.Globals = append(m.Globals, GlobalDef{Name: "counter", Meta: vtype.NewValueMeta(0, vtype.Int64), SlotTypes: []vtype.SlotType{vtype.Plain}})
	m.StructMetas = append(m.StructMetas, StructMeta{Name: "Point", SlotTypes: []vtype.SlotType{vtype.Plain, vtype.Plain}})
	m.InterfaceMetas = append(m.InterfaceMetas, InterfaceMeta{Name: "Shape", MethodNames: []string{"Area"}})
	m.NamedTypes = append(m.NamedTypes, NamedTypeMeta{Name: "Circle", Methods: map[string]MethodInfo{"Area": {FuncID: 0, IsPointerReceiver: false}}})
	m.Itabs = append(m.Itabs, Itab{Methods: []uint32{0}})
	m.EntryFunc = 0
	return m
}

func TestBinaryRoundTrip(t *testing.T) {
	m := buildSampleModule()
	var buf bytes.Buffer
	require.NoError(t, WriteBinary(&buf, m))

	got, err := ReadBinary(&buf)
	require.NoError(t, err)

	require.Equal(t, m.Name, got.Name)
	require.Equal(t, m.EntryFunc, got.EntryFunc)
	require.Equal(t, m.Constants, got.Constants)
	require.Equal(t, m.Functions, got.Functions)
	require.Equal(t, m.Externs, got.Externs)
	require.Equal(t, m.Globals, got.Globals)
	require.Equal(t, m.StructMetas, got.StructMetas)
	require.Equal(t, m.InterfaceMetas, got.InterfaceMetas)
	require.Equal(t, m.NamedTypes, got.NamedTypes)
	require.Equal(t, m.Itabs, got.Itabs)
}

func TestReadBinaryRejectsBadMagic(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("XXXX")
	_, err := ReadBinary(&buf)
	require.Error(t, err)
}

func TestTextRoundTrip(t *testing.T) {
	m := buildSampleModule()
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, m))

	got, err := ReadText(&buf)
	require.NoError(t, err)

	require.Equal(t, m.Name, got.Name)
	require.Equal(t, m.EntryFunc, got.EntryFunc)
	require.Equal(t, m.Constants, got.Constants)
	require.Len(t, got.Functions, 1)
	require.Equal(t, m.Functions[0].Name, got.Functions[0].Name)
	require.Equal(t, m.Functions[0].Code, got.Functions[0].Code)
	require.Equal(t, m.Externs, got.Externs)
	require.Equal(t, m.NamedTypes, got.NamedTypes)
}
