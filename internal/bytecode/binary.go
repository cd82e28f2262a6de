package bytecode

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/vo-lang/vort/internal/vtype"
)

// Magic identifies a compiled module file. Version is bumped whenever
// the binary layout changes in a way older readers can't tolerate.
const (
	Magic        = "VOXB"
	BinaryVersion = 2
)

// WriteBinary serializes a module to w in the .vob format: a magic/
// version header followed by length-prefixed sections in a fixed order.
func WriteBinary(w io.Writer, m *Module) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(Magic); err != nil {
		return err
	}
	if err := writeU32(bw, BinaryVersion); err != nil {
		return err
	}
	if err := writeString(bw, m.Name); err != nil {
		return err
	}
	if err := writeU32(bw, m.EntryFunc); err != nil {
		return err
	}

	if err := writeConstants(bw, m.Constants); err != nil {
		return err
	}
	if err := writeFunctions(bw, m.Functions); err != nil {
		return err
	}
	if err := writeExterns(bw, m.Externs); err != nil {
		return err
	}
	if err := writeGlobals(bw, m.Globals); err != nil {
		return err
	}
	if err := writeStructMetas(bw, m.StructMetas); err != nil {
		return err
	}
	if err := writeInterfaceMetas(bw, m.InterfaceMetas); err != nil {
		return err
	}
	if err := writeNamedTypes(bw, m.NamedTypes); err != nil {
		return err
	}
	if err := writeItabs(bw, m.Itabs); err != nil {
		return err
	}
	if err := writeDebugInfo(bw, m.DebugInfo); err != nil {
		return err
	}
	return bw.Flush()
}

// ReadBinary parses a .vob module from r.
func ReadBinary(r io.Reader) (*Module, error) {
	br := bufio.NewReader(r)

	magic := make([]byte, 4)
	if _, err := io.ReadFull(br, magic); err != nil {
		return nil, fmt.Errorf("bytecode: reading magic: %w", err)
	}
	if string(magic) != Magic {
		return nil, fmt.Errorf("bytecode: bad magic %q, expected %q", magic, Magic)
	}
	version, err := readU32(br)
	if err != nil {
		return nil, err
	}
	if version != BinaryVersion {
		return nil, fmt.Errorf("bytecode: unsupported module version %d", version)
	}

	m := &Module{}
	if m.Name, err = readString(br); err != nil {
		return nil, err
	}
	if m.EntryFunc, err = readU32(br); err != nil {
		return nil, err
	}
	if m.Constants, err = readConstants(br); err != nil {
		return nil, err
	}
	if m.Functions, err = readFunctions(br); err != nil {
		return nil, err
	}
	if m.Externs, err = readExterns(br); err != nil {
		return nil, err
	}
	if m.Globals, err = readGlobals(br); err != nil {
		return nil, err
	}
	if m.StructMetas, err = readStructMetas(br); err != nil {
		return nil, err
	}
	if m.InterfaceMetas, err = readInterfaceMetas(br); err != nil {
		return nil, err
	}
	if m.NamedTypes, err = readNamedTypes(br); err != nil {
		return nil, err
	}
	if m.Itabs, err = readItabs(br); err != nil {
		return nil, err
	}
	if m.DebugInfo, err = readDebugInfo(br); err != nil {
		return nil, err
	}
	return m, nil
}

// writeDebugInfo writes a presence byte followed by the file table and
// every function's sorted PC-to-source entries. A nil table writes a
// single zero byte, matching a stripped build's .vob.
func writeDebugInfo(w io.Writer, d *DebugInfo) error {
	if d == nil {
		return writeBool(w, false)
	}
	if err := writeBool(w, true); err != nil {
		return err
	}
	if err := writeStrings(w, d.Files); err != nil {
		return err
	}
	if err := writeU32(w, uint32(len(d.Funcs))); err != nil {
		return err
	}
	for _, fn := range d.Funcs {
		if err := writeU32(w, uint32(len(fn.Entries))); err != nil {
			return err
		}
		for _, loc := range fn.Entries {
			if err := writeU32(w, loc.PC); err != nil {
				return err
			}
			if err := writeU16(w, loc.File); err != nil {
				return err
			}
			if err := writeU32(w, loc.Line); err != nil {
				return err
			}
			if err := writeU16(w, loc.Col); err != nil {
				return err
			}
			if err := writeU16(w, loc.Len); err != nil {
				return err
			}
		}
	}
	return nil
}

func readDebugInfo(r io.Reader) (*DebugInfo, error) {
	present, err := readBool(r)
	if err != nil {
		return nil, err
	}
	if !present {
		return nil, nil
	}
	d := NewDebugInfo()
	if d.Files, err = readStrings(r); err != nil {
		return nil, err
	}
	numFuncs, err := readU32(r)
	if err != nil {
		return nil, err
	}
	d.Funcs = make([]FuncDebugInfo, numFuncs)
	for i := range d.Funcs {
		numEntries, err := readU32(r)
		if err != nil {
			return nil, err
		}
		entries := make([]DebugLoc, numEntries)
		for j := range entries {
			if entries[j].PC, err = readU32(r); err != nil {
				return nil, err
			}
			if entries[j].File, err = readU16(r); err != nil {
				return nil, err
			}
			if entries[j].Line, err = readU32(r); err != nil {
				return nil, err
			}
			if entries[j].Col, err = readU16(r); err != nil {
				return nil, err
			}
			if entries[j].Len, err = readU16(r); err != nil {
				return nil, err
			}
		}
		d.Funcs[i].Entries = entries
	}
	d.Finalize()
	return d, nil
}

func writeU8(w io.Writer, v uint8) error  { return binary.Write(w, binary.LittleEndian, v) }
func writeU16(w io.Writer, v uint16) error { return binary.Write(w, binary.LittleEndian, v) }
func writeU32(w io.Writer, v uint32) error { return binary.Write(w, binary.LittleEndian, v) }
func writeU64(w io.Writer, v uint64) error { return binary.Write(w, binary.LittleEndian, v) }
func writeI64(w io.Writer, v int64) error  { return binary.Write(w, binary.LittleEndian, v) }
func writeF64(w io.Writer, v float64) error { return binary.Write(w, binary.LittleEndian, v) }
func writeBool(w io.Writer, v bool) error {
	var b uint8
	if v {
		b = 1
	}
	return writeU8(w, b)
}

func readU8(r io.Reader) (uint8, error) {
	var v uint8
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}
func readU16(r io.Reader) (uint16, error) {
	var v uint16
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}
func readU32(r io.Reader) (uint32, error) {
	var v uint32
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}
func readU64(r io.Reader) (uint64, error) {
	var v uint64
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}
func readI64(r io.Reader) (int64, error) {
	var v int64
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}
func readF64(r io.Reader) (float64, error) {
	var v float64
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}
func readBool(r io.Reader) (bool, error) {
	v, err := readU8(r)
	return v != 0, err
}

func writeString(w io.Writer, s string) error {
	if err := writeU32(w, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	n, err := readU32(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func writeStrings(w io.Writer, ss []string) error {
	if err := writeU32(w, uint32(len(ss))); err != nil {
		return err
	}
	for _, s := range ss {
		if err := writeString(w, s); err != nil {
			return err
		}
	}
	return nil
}

func readStrings(r io.Reader) ([]string, error) {
	n, err := readU32(r)
	if err != nil {
		return nil, err
	}
	out := make([]string, n)
	for i := range out {
		if out[i], err = readString(r); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func writeInstruction(w io.Writer, ins Instruction) error {
	if err := writeU8(w, uint8(ins.Op)); err != nil {
		return err
	}
	if err := writeU8(w, ins.Flags); err != nil {
		return err
	}
	if err := writeU16(w, ins.A); err != nil {
		return err
	}
	if err := writeU16(w, ins.B); err != nil {
		return err
	}
	return writeU16(w, ins.C)
}

func readInstruction(r io.Reader) (Instruction, error) {
	op, err := readU8(r)
	if err != nil {
		return Instruction{}, err
	}
	flags, err := readU8(r)
	if err != nil {
		return Instruction{}, err
	}
	a, err := readU16(r)
	if err != nil {
		return Instruction{}, err
	}
	b, err := readU16(r)
	if err != nil {
		return Instruction{}, err
	}
	c, err := readU16(r)
	if err != nil {
		return Instruction{}, err
	}
	return Instruction{Op: FromU8(op), Flags: flags, A: a, B: b, C: c}, nil
}

func writeConstants(w io.Writer, cs []Constant) error {
	if err := writeU32(w, uint32(len(cs))); err != nil {
		return err
	}
	for _, c := range cs {
		if err := writeU8(w, uint8(c.Kind)); err != nil {
			return err
		}
		switch c.Kind {
		case ConstInt:
			if err := writeI64(w, c.I); err != nil {
				return err
			}
		case ConstFloat:
			if err := writeF64(w, c.F); err != nil {
				return err
			}
		case ConstBool:
			if err := writeBool(w, c.B); err != nil {
				return err
			}
		case ConstString:
			if err := writeString(w, c.S); err != nil {
				return err
			}
		}
	}
	return nil
}

func readConstants(r io.Reader) ([]Constant, error) {
	n, err := readU32(r)
	if err != nil {
		return nil, err
	}
	out := make([]Constant, n)
	for i := range out {
		kind, err := readU8(r)
		if err != nil {
			return nil, err
		}
		c := Constant{Kind: ConstKind(kind)}
		switch c.Kind {
		case ConstInt:
			if c.I, err = readI64(r); err != nil {
				return nil, err
			}
		case ConstFloat:
			if c.F, err = readF64(r); err != nil {
				return nil, err
			}
		case ConstBool:
			if c.B, err = readBool(r); err != nil {
				return nil, err
			}
		case ConstString:
			if c.S, err = readString(r); err != nil {
				return nil, err
			}
		}
		out[i] = c
	}
	return out, nil
}

func writeFunctions(w io.Writer, fs []FunctionDef) error {
	if err := writeU32(w, uint32(len(fs))); err != nil {
		return err
	}
	for _, f := range fs {
		if err := writeString(w, f.Name); err != nil {
			return err
		}
		if err := writeU16(w, f.ParamCount); err != nil {
			return err
		}
		if err := writeU16(w, f.ParamSlots); err != nil {
			return err
		}
		if err := writeU16(w, f.LocalSlots); err != nil {
			return err
		}
		if err := writeU16(w, f.RetSlots); err != nil {
			return err
		}
		if err := writeU16(w, f.RecvSlots); err != nil {
			return err
		}
		if err := writeBool(w, f.IsClosure); err != nil {
			return err
		}
		if err := writeU32(w, uint32(len(f.Code))); err != nil {
			return err
		}
		for _, ins := range f.Code {
			if err := writeInstruction(w, ins); err != nil {
				return err
			}
		}
		if err := writeSlotTypes(w, f.SlotTypes); err != nil {
			return err
		}
	}
	return nil
}

func readFunctions(r io.Reader) ([]FunctionDef, error) {
	n, err := readU32(r)
	if err != nil {
		return nil, err
	}
	out := make([]FunctionDef, n)
	for i := range out {
		f := FunctionDef{}
		if f.Name, err = readString(r); err != nil {
			return nil, err
		}
		if f.ParamCount, err = readU16(r); err != nil {
			return nil, err
		}
		if f.ParamSlots, err = readU16(r); err != nil {
			return nil, err
		}
		if f.LocalSlots, err = readU16(r); err != nil {
			return nil, err
		}
		if f.RetSlots, err = readU16(r); err != nil {
			return nil, err
		}
		if f.RecvSlots, err = readU16(r); err != nil {
			return nil, err
		}
		if f.IsClosure, err = readBool(r); err != nil {
			return nil, err
		}
		codeLen, err := readU32(r)
		if err != nil {
			return nil, err
		}
		f.Code = make([]Instruction, codeLen)
		for j := range f.Code {
			if f.Code[j], err = readInstruction(r); err != nil {
				return nil, err
			}
		}
		if f.SlotTypes, err = readSlotTypes(r); err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}

func writeExterns(w io.Writer, es []ExternDef) error {
	if err := writeU32(w, uint32(len(es))); err != nil {
		return err
	}
	for _, e := range es {
		if err := writeString(w, e.Name); err != nil {
			return err
		}
		if err := writeU16(w, e.ParamSlots); err != nil {
			return err
		}
		if err := writeU16(w, e.RetSlots); err != nil {
			return err
		}
	}
	return nil
}

func readExterns(r io.Reader) ([]ExternDef, error) {
	n, err := readU32(r)
	if err != nil {
		return nil, err
	}
	out := make([]ExternDef, n)
	for i := range out {
		e := ExternDef{}
		if e.Name, err = readString(r); err != nil {
			return nil, err
		}
		if e.ParamSlots, err = readU16(r); err != nil {
			return nil, err
		}
		if e.RetSlots, err = readU16(r); err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

func writeSlotTypes(w io.Writer, sts []vtype.SlotType) error {
	if err := writeU32(w, uint32(len(sts))); err != nil {
		return err
	}
	for _, st := range sts {
		if err := writeU8(w, uint8(st)); err != nil {
			return err
		}
	}
	return nil
}

func readSlotTypes(r io.Reader) ([]vtype.SlotType, error) {
	n, err := readU32(r)
	if err != nil {
		return nil, err
	}
	out := make([]vtype.SlotType, n)
	for i := range out {
		b, err := readU8(r)
		if err != nil {
			return nil, err
		}
		out[i] = vtype.SlotType(b)
	}
	return out, nil
}

func writeGlobals(w io.Writer, gs []GlobalDef) error {
	if err := writeU32(w, uint32(len(gs))); err != nil {
		return err
	}
	for _, g := range gs {
		if err := writeString(w, g.Name); err != nil {
			return err
		}
		if err := writeU32(w, g.Meta.Raw()); err != nil {
			return err
		}
		if err := writeSlotTypes(w, g.SlotTypes); err != nil {
			return err
		}
	}
	return nil
}

func readGlobals(r io.Reader) ([]GlobalDef, error) {
	n, err := readU32(r)
	if err != nil {
		return nil, err
	}
	out := make([]GlobalDef, n)
	for i := range out {
		g := GlobalDef{}
		if g.Name, err = readString(r); err != nil {
			return nil, err
		}
		raw, err := readU32(r)
		if err != nil {
			return nil, err
		}
		g.Meta = vtype.ValueMetaFromRaw(raw)
		if g.SlotTypes, err = readSlotTypes(r); err != nil {
			return nil, err
		}
		out[i] = g
	}
	return out, nil
}

func writeStructMetas(w io.Writer, ss []StructMeta) error {
	if err := writeU32(w, uint32(len(ss))); err != nil {
		return err
	}
	for _, s := range ss {
		if err := writeString(w, s.Name); err != nil {
			return err
		}
		if err := writeSlotTypes(w, s.SlotTypes); err != nil {
			return err
		}
	}
	return nil
}

func readStructMetas(r io.Reader) ([]StructMeta, error) {
	n, err := readU32(r)
	if err != nil {
		return nil, err
	}
	out := make([]StructMeta, n)
	for i := range out {
		s := StructMeta{}
		if s.Name, err = readString(r); err != nil {
			return nil, err
		}
		if s.SlotTypes, err = readSlotTypes(r); err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

func writeInterfaceMetas(w io.Writer, is []InterfaceMeta) error {
	if err := writeU32(w, uint32(len(is))); err != nil {
		return err
	}
	for _, iface := range is {
		if err := writeString(w, iface.Name); err != nil {
			return err
		}
		if err := writeStrings(w, iface.MethodNames); err != nil {
			return err
		}
	}
	return nil
}

func readInterfaceMetas(r io.Reader) ([]InterfaceMeta, error) {
	n, err := readU32(r)
	if err != nil {
		return nil, err
	}
	out := make([]InterfaceMeta, n)
	for i := range out {
		iface := InterfaceMeta{}
		if iface.Name, err = readString(r); err != nil {
			return nil, err
		}
		if iface.MethodNames, err = readStrings(r); err != nil {
			return nil, err
		}
		out[i] = iface
	}
	return out, nil
}

func writeNamedTypes(w io.Writer, ns []NamedTypeMeta) error {
	if err := writeU32(w, uint32(len(ns))); err != nil {
		return err
	}
	for _, n := range ns {
		if err := writeString(w, n.Name); err != nil {
			return err
		}
		if err := writeU32(w, uint32(len(n.Methods))); err != nil {
			return err
		}
		for name, info := range n.Methods {
			if err := writeString(w, name); err != nil {
				return err
			}
			if err := writeU32(w, info.FuncID); err != nil {
				return err
			}
			if err := writeBool(w, info.IsPointerReceiver); err != nil {
				return err
			}
		}
	}
	return nil
}

func readNamedTypes(r io.Reader) ([]NamedTypeMeta, error) {
	n, err := readU32(r)
	if err != nil {
		return nil, err
	}
	out := make([]NamedTypeMeta, n)
	for i := range out {
		nt := NamedTypeMeta{}
		if nt.Name, err = readString(r); err != nil {
			return nil, err
		}
		cnt, err := readU32(r)
		if err != nil {
			return nil, err
		}
		nt.Methods = make(map[string]MethodInfo, cnt)
		for j := uint32(0); j < cnt; j++ {
			name, err := readString(r)
			if err != nil {
				return nil, err
			}
			funcID, err := readU32(r)
			if err != nil {
				return nil, err
			}
			ptrRecv, err := readBool(r)
			if err != nil {
				return nil, err
			}
			nt.Methods[name] = MethodInfo{FuncID: funcID, IsPointerReceiver: ptrRecv}
		}
		out[i] = nt
	}
	return out, nil
}

func writeItabs(w io.Writer, its []Itab) error {
	if err := writeU32(w, uint32(len(its))); err != nil {
		return err
	}
	for _, it := range its {
		if err := writeU32(w, uint32(len(it.Methods))); err != nil {
			return err
		}
		for _, m := range it.Methods {
			if err := writeU32(w, m); err != nil {
				return err
			}
		}
	}
	return nil
}

func readItabs(r io.Reader) ([]Itab, error) {
	n, err := readU32(r)
	if err != nil {
		return nil, err
	}
	out := make([]Itab, n)
	for i := range out {
		cnt, err := readU32(r)
		if err != nil {
			return nil, err
		}
		methods := make([]uint32, cnt)
		for j := range methods {
			if methods[j], err = readU32(r); err != nil {
				return nil, err
			}
		}
		out[i] = Itab{Methods: methods}
	}
	return out, nil
}
