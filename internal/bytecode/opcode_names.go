package bytecode

// opcodeNames gives every opcode its disassembly mnemonic, in the same
// order instruction.go declares them.
var opcodeNames = map[Opcode]string{
	Nop:       "nop",
	LoadNil:   "load_nil",
	LoadTrue:  "load_true",
	LoadFalse: "load_false",
	LoadInt:   "load_int",
	LoadConst: "load_const",

	Copy:  "copy",
	CopyN: "copy_n",

	SlotGet:  "slot_get",
	SlotSet:  "slot_set",
	SlotGetN: "slot_get_n",
	SlotSetN: "slot_set_n",

	GlobalGet:  "global_get",
	GlobalGetN: "global_get_n",
	GlobalSet:  "global_set",
	GlobalSetN: "global_set_n",

	PtrNew:   "ptr_new",
	PtrClone: "ptr_clone",
	PtrGet:   "ptr_get",
	PtrSet:   "ptr_set",
	PtrGetN:  "ptr_get_n",
	PtrSetN:  "ptr_set_n",

	AddI: "add_i",
	SubI: "sub_i",
	MulI: "mul_i",
	DivI: "div_i",
	ModI: "mod_i",
	NegI: "neg_i",

	AddF: "add_f",
	SubF: "sub_f",
	MulF: "mul_f",
	DivF: "div_f",
	NegF: "neg_f",

	EqI: "eq_i",
	NeI: "ne_i",
	LtI: "lt_i",
	LeI: "le_i",
	GtI: "gt_i",
	GeI: "ge_i",

	EqF: "eq_f",
	NeF: "ne_f",
	LtF: "lt_f",
	LeF: "le_f",
	GtF: "gt_f",
	GeF: "ge_f",

	EqRef: "eq_ref",
	NeRef: "ne_ref",
	IsNil: "is_nil",

	And:  "and",
	Or:   "or",
	Xor:  "xor",
	Not:  "not",
	Shl:  "shl",
	ShrS: "shr_s",
	ShrU: "shr_u",

	BoolNot: "bool_not",

	Jump:      "jump",
	JumpIf:    "jump_if",
	JumpIfNot: "jump_if_not",

	Call:        "call",
	CallExtern:  "call_extern",
	CallClosure: "call_closure",
	CallIface:   "call_iface",
	Return:      "return",

	StrNew:    "str_new",
	StrLen:    "str_len",
	StrIndex:  "str_index",
	StrConcat: "str_concat",
	StrSlice:  "str_slice",
	StrEq:     "str_eq",
	StrNe:     "str_ne",
	StrLt:     "str_lt",
	StrLe:     "str_le",
	StrGt:     "str_gt",
	StrGe:     "str_ge",

	ArrayNew: "array_new",
	ArrayGet: "array_get",
	ArraySet: "array_set",
	ArrayLen: "array_len",

	SliceNew:    "slice_new",
	SliceGet:    "slice_get",
	SliceSet:    "slice_set",
	SliceLen:    "slice_len",
	SliceCap:    "slice_cap",
	SliceSlice:  "slice_slice",
	SliceAppend: "slice_append",

	MapNew:    "map_new",
	MapGet:    "map_get",
	MapSet:    "map_set",
	MapDelete: "map_delete",
	MapLen:    "map_len",

	ChanNew:   "chan_new",
	ChanSend:  "chan_send",
	ChanRecv:  "chan_recv",
	ChanClose: "chan_close",

	SelectBegin: "select_begin",
	SelectSend:  "select_send",
	SelectRecv:  "select_recv",
	SelectExec:  "select_exec",

	IterBegin: "iter_begin",
	IterNext:  "iter_next",
	IterEnd:   "iter_end",

	ClosureNew: "closure_new",
	ClosureGet: "closure_get",
	ClosureSet: "closure_set",

	GoCall: "go_call",
	Yield:  "yield",

	DeferPush:    "defer_push",
	ErrDeferPush: "errdefer_push",
	Panic:        "panic",
	Recover:      "recover",

	IfaceAssign: "iface_assign",
	IfaceAssert: "iface_assert",

	ConvI2F:    "conv_i2f",
	ConvF2I:    "conv_f2i",
	ConvI32I64: "conv_i32_i64",
	ConvI64I32: "conv_i64_i32",
}

var opcodeByName = func() map[string]Opcode {
	m := make(map[string]Opcode, len(opcodeNames))
	for op, name := range opcodeNames {
		m[name] = op
	}
	return m
}()
