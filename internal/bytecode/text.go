package bytecode

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/vo-lang/vort/internal/vtype"
)

// WriteText renders a module as a human-readable .vot listing: one
// directive per line, functions disassembled instruction by instruction.
// It is meant for disasm output and test fixtures, not for speed.
func WriteText(w io.Writer, m *Module) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, ".module %s\n", quote(m.Name))
	fmt.Fprintf(bw, ".entry %d\n\n", m.EntryFunc)

	for i, c := range m.Constants {
		fmt.Fprintf(bw, ".const %d %s\n", i, constantText(c))
	}
	if len(m.Constants) > 0 {
		bw.WriteString("\n")
	}

	for i, e := range m.Externs {
		fmt.Fprintf(bw, ".extern %d %s %d %d\n", i, e.Name, e.ParamSlots, e.RetSlots)
	}
	if len(m.Externs) > 0 {
		bw.WriteString("\n")
	}

	for i, g := range m.Globals {
		fmt.Fprintf(bw, ".global %d %s meta=%d slots=%s\n", i, g.Name, g.Meta.Raw(), slotTypesText(g.SlotTypes))
	}
	if len(m.Globals) > 0 {
		bw.WriteString("\n")
	}

	for i, s := range m.StructMetas {
		fmt.Fprintf(bw, ".struct %d %s slots=%s\n", i, s.Name, slotTypesText(s.SlotTypes))
	}
	if len(m.StructMetas) > 0 {
		bw.WriteString("\n")
	}

	for i, iface := range m.InterfaceMetas {
		fmt.Fprintf(bw, ".iface %d %s methods=%s\n", i, iface.Name, strings.Join(iface.MethodNames, ","))
	}
	if len(m.InterfaceMetas) > 0 {
		bw.WriteString("\n")
	}

	for i, nt := range m.NamedTypes {
		fmt.Fprintf(bw, ".namedtype %d %s %s\n", i, nt.Name, methodsText(nt.Methods))
	}
	if len(m.NamedTypes) > 0 {
		bw.WriteString("\n")
	}

	for i, it := range m.Itabs {
		fmt.Fprintf(bw, ".itab %d methods=%s\n", i, joinU32(it.Methods))
	}
	if len(m.Itabs) > 0 {
		bw.WriteString("\n")
	}

	for i, f := range m.Functions {
		fmt.Fprintf(bw, ".func %d %s params=%d paramSlots=%d locals=%d ret=%d recv=%d closure=%t slots=%s\n",
			i, f.Name, f.ParamCount, f.ParamSlots, f.LocalSlots, f.RetSlots, f.RecvSlots, f.IsClosure, slotTypesText(f.SlotTypes))
		for pc, ins := range f.Code {
			fmt.Fprintf(bw, "  %04d %s a=%d b=%d c=%d flags=%d\n", pc, opcodeName(ins.Op), ins.A, ins.B, ins.C, ins.Flags)
		}
		bw.WriteString(".endfunc\n\n")
	}

	return bw.Flush()
}

// ReadText parses a .vot listing back into a Module.
func ReadText(r io.Reader) (*Module, error) {
	m := &Module{}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var curFunc *FunctionDef

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if curFunc != nil && line != ".endfunc" && !strings.HasPrefix(line, ".") {
			ins, err := parseInstructionLine(line)
			if err != nil {
				return nil, err
			}
			curFunc.Code = append(curFunc.Code, ins)
			continue
		}

		fields := strings.Fields(line)
		directive := fields[0]

		switch directive {
		case ".module":
			m.Name = unquote(strings.Join(fields[1:], " "))
		case ".entry":
			v, err := strconv.ParseUint(fields[1], 10, 32)
			if err != nil {
				return nil, err
			}
			m.EntryFunc = uint32(v)
		case ".const":
			c, err := parseConstantText(fields[2:])
			if err != nil {
				return nil, err
			}
			m.Constants = append(m.Constants, c)
		case ".extern":
			ps, _ := strconv.ParseUint(fields[3], 10, 16)
			rs, _ := strconv.ParseUint(fields[4], 10, 16)
			m.Externs = append(m.Externs, ExternDef{Name: fields[2], ParamSlots: uint16(ps), RetSlots: uint16(rs)})
		case ".global":
			g := GlobalDef{Name: fields[2]}
			for _, kv := range fields[3:] {
				k, v, _ := strings.Cut(kv, "=")
				switch k {
				case "meta":
					raw, _ := strconv.ParseUint(v, 10, 32)
					g.Meta = vtype.ValueMetaFromRaw(uint32(raw))
				case "slots":
					g.SlotTypes = parseSlotTypesText(v)
				}
			}
			m.Globals = append(m.Globals, g)
		case ".struct":
			sm := StructMeta{Name: fields[2]}
			_, v, _ := strings.Cut(fields[3], "=")
			sm.SlotTypes = parseSlotTypesText(v)
			m.StructMetas = append(m.StructMetas, sm)
		case ".iface":
			im := InterfaceMeta{Name: fields[2]}
			_, v, _ := strings.Cut(fields[3], "=")
			if v != "" {
				im.MethodNames = strings.Split(v, ",")
			}
			m.InterfaceMetas = append(m.InterfaceMetas, im)
		case ".namedtype":
			nt := NamedTypeMeta{Name: fields[2], Methods: map[string]MethodInfo{}}
			for _, entry := range fields[3:] {
				name, rest, _ := strings.Cut(entry, ":")
				parts := strings.Split(rest, ":")
				if len(parts) != 2 {
					continue
				}
				funcID, _ := strconv.ParseUint(parts[0], 10, 32)
				ptrRecv, _ := strconv.ParseBool(parts[1])
				nt.Methods[name] = MethodInfo{FuncID: uint32(funcID), IsPointerReceiver: ptrRecv}
			}
			m.NamedTypes = append(m.NamedTypes, nt)
		case ".itab":
			_, v, _ := strings.Cut(fields[2], "=")
			it := Itab{}
			if v != "" {
				for _, s := range strings.Split(v, ",") {
					n, _ := strconv.ParseUint(s, 10, 32)
					it.Methods = append(it.Methods, uint32(n))
				}
			}
			m.Itabs = append(m.Itabs, it)
		case ".func":
			f := FunctionDef{Name: fields[2]}
			for _, kv := range fields[3:] {
				k, v, _ := strings.Cut(kv, "=")
				switch k {
				case "params":
					n, _ := strconv.ParseUint(v, 10, 16)
					f.ParamCount = uint16(n)
				case "paramSlots":
					n, _ := strconv.ParseUint(v, 10, 16)
					f.ParamSlots = uint16(n)
				case "locals":
					n, _ := strconv.ParseUint(v, 10, 16)
					f.LocalSlots = uint16(n)
				case "ret":
					n, _ := strconv.ParseUint(v, 10, 16)
					f.RetSlots = uint16(n)
				case "recv":
					n, _ := strconv.ParseUint(v, 10, 16)
					f.RecvSlots = uint16(n)
				case "closure":
					f.IsClosure = v == "true"
				case "slots":
					f.SlotTypes = parseSlotTypesText(v)
				}
			}
			m.Functions = append(m.Functions, f)
			curFunc = &m.Functions[len(m.Functions)-1]
		case ".endfunc":
			curFunc = nil
		default:
			return nil, fmt.Errorf("bytecode: unknown directive %q", directive)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

func quote(s string) string   { return strconv.Quote(s) }
func unquote(s string) string { u, err := strconv.Unquote(s); if err != nil { return s }; return u }

func constantText(c Constant) string {
	switch c.Kind {
	case ConstNil:
		return "nil"
	case ConstBool:
		return "bool " + strconv.FormatBool(c.B)
	case ConstInt:
		return "int " + strconv.FormatInt(c.I, 10)
	case ConstFloat:
		return "float " + strconv.FormatFloat(c.F, 'g', -1, 64)
	case ConstString:
		return "string " + quote(c.S)
	default:
		return "nil"
	}
}

func parseConstantText(fields []string) (Constant, error) {
	if len(fields) == 0 {
		return Constant{}, fmt.Errorf("bytecode: empty constant")
	}
	switch fields[0] {
	case "nil":
		return NilConstant(), nil
	case "bool":
		v, err := strconv.ParseBool(fields[1])
		if err != nil {
			return Constant{}, err
		}
		return BoolConstant(v), nil
	case "int":
		v, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return Constant{}, err
		}
		return IntConstant(v), nil
	case "float":
		v, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return Constant{}, err
		}
		return FloatConstant(v), nil
	case "string":
		return StringConstant(unquote(strings.Join(fields[1:], " "))), nil
	default:
		return Constant{}, fmt.Errorf("bytecode: unknown constant kind %q", fields[0])
	}
}

func slotTypesText(sts []vtype.SlotType) string {
	parts := make([]string, len(sts))
	for i, st := range sts {
		parts[i] = strconv.Itoa(int(st))
	}
	return strings.Join(parts, ",")
}

func parseSlotTypesText(s string) []vtype.SlotType {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]vtype.SlotType, len(parts))
	for i, p := range parts {
		v, _ := strconv.ParseUint(p, 10, 8)
		out[i] = vtype.SlotType(v)
	}
	return out
}

func methodsText(methods map[string]MethodInfo) string {
	parts := make([]string, 0, len(methods))
	for name, info := range methods {
		parts = append(parts, fmt.Sprintf("%s:%d:%t", name, info.FuncID, info.IsPointerReceiver))
	}
	return strings.Join(parts, " ")
}

func joinU32(vs []uint32) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = strconv.FormatUint(uint64(v), 10)
	}
	return strings.Join(parts, ",")
}

func opcodeName(op Opcode) string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("op%d", uint8(op))
}

func parseInstructionLine(line string) (Instruction, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return Instruction{}, fmt.Errorf("bytecode: malformed instruction line %q", line)
	}
	op, ok := opcodeByName[fields[1]]
	if !ok {
		return Instruction{}, fmt.Errorf("bytecode: unknown opcode %q", fields[1])
	}
	ins := Instruction{Op: op}
	for _, kv := range fields[2:] {
		k, v, _ := strings.Cut(kv, "=")
		n, err := strconv.ParseUint(v, 10, 16)
		if err != nil {
			return Instruction{}, err
		}
		switch k {
		case "a":
			ins.A = uint16(n)
		case "b":
			ins.B = uint16(n)
		case "c":
			ins.C = uint16(n)
		case "flags":
			ins.Flags = uint8(n)
		}
	}
	return ins, nil
}
