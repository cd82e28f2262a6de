package vm

import (
	"github.com/vo-lang/vort/internal/bytecode"
	"github.com/vo-lang/vort/internal/fiber"
)

// Integer arithmetic: a=dst, b=lhs, c=rhs, all registers hold the
// operand's bit pattern directly (two's complement for signed).
func execAddI(f *fiber.Fiber, ins bytecode.Instruction) {
	f.WriteReg(ins.A, f.ReadReg(ins.B)+f.ReadReg(ins.C))
}
func execSubI(f *fiber.Fiber, ins bytecode.Instruction) {
	f.WriteReg(ins.A, f.ReadReg(ins.B)-f.ReadReg(ins.C))
}
func execMulI(f *fiber.Fiber, ins bytecode.Instruction) {
	f.WriteReg(ins.A, f.ReadReg(ins.B)*f.ReadReg(ins.C))
}

// execDivI/execModI report division by zero as an ExecResult-carrying
// VM error rather than letting the Go runtime panic on integer divide.
func execDivI(f *fiber.Fiber, ins bytecode.Instruction) (ExecResult, *Error) {
	rhs := int64(f.ReadReg(ins.C))
	if rhs == 0 {
		return Panic, &Error{Kind: ErrDivisionByZero, Message: "integer division by zero"}
	}
	f.WriteReg(ins.A, uint64(int64(f.ReadReg(ins.B))/rhs))
	return Continue, nil
}

func execModI(f *fiber.Fiber, ins bytecode.Instruction) (ExecResult, *Error) {
	rhs := int64(f.ReadReg(ins.C))
	if rhs == 0 {
		return Panic, &Error{Kind: ErrDivisionByZero, Message: "integer modulo by zero"}
	}
	f.WriteReg(ins.A, uint64(int64(f.ReadReg(ins.B))%rhs))
	return Continue, nil
}

func execNegI(f *fiber.Fiber, ins bytecode.Instruction) {
	f.WriteReg(ins.A, uint64(-int64(f.ReadReg(ins.B))))
}

// Float arithmetic: registers carry IEEE-754 bit patterns via f64bits.
func execAddF(f *fiber.Fiber, ins bytecode.Instruction) {
	f.WriteReg(ins.A, f64bits(f64FromBits(f.ReadReg(ins.B))+f64FromBits(f.ReadReg(ins.C))))
}
func execSubF(f *fiber.Fiber, ins bytecode.Instruction) {
	f.WriteReg(ins.A, f64bits(f64FromBits(f.ReadReg(ins.B))-f64FromBits(f.ReadReg(ins.C))))
}
func execMulF(f *fiber.Fiber, ins bytecode.Instruction) {
	f.WriteReg(ins.A, f64bits(f64FromBits(f.ReadReg(ins.B))*f64FromBits(f.ReadReg(ins.C))))
}
func execDivF(f *fiber.Fiber, ins bytecode.Instruction) {
	f.WriteReg(ins.A, f64bits(f64FromBits(f.ReadReg(ins.B))/f64FromBits(f.ReadReg(ins.C))))
}
func execNegF(f *fiber.Fiber, ins bytecode.Instruction) {
	f.WriteReg(ins.A, f64bits(-f64FromBits(f.ReadReg(ins.B))))
}

// Integer comparison.
func execEqI(f *fiber.Fiber, ins bytecode.Instruction) {
	f.WriteReg(ins.A, boolToReg(f.ReadReg(ins.B) == f.ReadReg(ins.C)))
}
func execNeI(f *fiber.Fiber, ins bytecode.Instruction) {
	f.WriteReg(ins.A, boolToReg(f.ReadReg(ins.B) != f.ReadReg(ins.C)))
}
func execLtI(f *fiber.Fiber, ins bytecode.Instruction) {
	f.WriteReg(ins.A, boolToReg(int64(f.ReadReg(ins.B)) < int64(f.ReadReg(ins.C))))
}
func execLeI(f *fiber.Fiber, ins bytecode.Instruction) {
	f.WriteReg(ins.A, boolToReg(int64(f.ReadReg(ins.B)) <= int64(f.ReadReg(ins.C))))
}
func execGtI(f *fiber.Fiber, ins bytecode.Instruction) {
	f.WriteReg(ins.A, boolToReg(int64(f.ReadReg(ins.B)) > int64(f.ReadReg(ins.C))))
}
func execGeI(f *fiber.Fiber, ins bytecode.Instruction) {
	f.WriteReg(ins.A, boolToReg(int64(f.ReadReg(ins.B)) >= int64(f.ReadReg(ins.C))))
}

// Float comparison.
func execEqF(f *fiber.Fiber, ins bytecode.Instruction) {
	f.WriteReg(ins.A, boolToReg(f64FromBits(f.ReadReg(ins.B)) == f64FromBits(f.ReadReg(ins.C))))
}
func execNeF(f *fiber.Fiber, ins bytecode.Instruction) {
	f.WriteReg(ins.A, boolToReg(f64FromBits(f.ReadReg(ins.B)) != f64FromBits(f.ReadReg(ins.C))))
}
func execLtF(f *fiber.Fiber, ins bytecode.Instruction) {
	f.WriteReg(ins.A, boolToReg(f64FromBits(f.ReadReg(ins.B)) < f64FromBits(f.ReadReg(ins.C))))
}
func execLeF(f *fiber.Fiber, ins bytecode.Instruction) {
	f.WriteReg(ins.A, boolToReg(f64FromBits(f.ReadReg(ins.B)) <= f64FromBits(f.ReadReg(ins.C))))
}
func execGtF(f *fiber.Fiber, ins bytecode.Instruction) {
	f.WriteReg(ins.A, boolToReg(f64FromBits(f.ReadReg(ins.B)) > f64FromBits(f.ReadReg(ins.C))))
}
func execGeF(f *fiber.Fiber, ins bytecode.Instruction) {
	f.WriteReg(ins.A, boolToReg(f64FromBits(f.ReadReg(ins.B)) >= f64FromBits(f.ReadReg(ins.C))))
}

// Reference comparison compares raw register bit patterns: gc.Ref values,
// nil (0), and packed interface slot0/slot1 pairs all compare this way.
func execEqRef(f *fiber.Fiber, ins bytecode.Instruction) {
	f.WriteReg(ins.A, boolToReg(f.ReadReg(ins.B) == f.ReadReg(ins.C)))
}
func execNeRef(f *fiber.Fiber, ins bytecode.Instruction) {
	f.WriteReg(ins.A, boolToReg(f.ReadReg(ins.B) != f.ReadReg(ins.C)))
}
func execIsNil(f *fiber.Fiber, ins bytecode.Instruction) {
	f.WriteReg(ins.A, boolToReg(f.ReadReg(ins.B) == 0))
}

// Bitwise and logical ops.
func execAnd(f *fiber.Fiber, ins bytecode.Instruction) {
	f.WriteReg(ins.A, f.ReadReg(ins.B)&f.ReadReg(ins.C))
}
func execOr(f *fiber.Fiber, ins bytecode.Instruction) {
	f.WriteReg(ins.A, f.ReadReg(ins.B)|f.ReadReg(ins.C))
}
func execXor(f *fiber.Fiber, ins bytecode.Instruction) {
	f.WriteReg(ins.A, f.ReadReg(ins.B)^f.ReadReg(ins.C))
}
func execNot(f *fiber.Fiber, ins bytecode.Instruction) {
	f.WriteReg(ins.A, ^f.ReadReg(ins.B))
}
func execShl(f *fiber.Fiber, ins bytecode.Instruction) {
	f.WriteReg(ins.A, f.ReadReg(ins.B)<<(f.ReadReg(ins.C)&63))
}
func execShrS(f *fiber.Fiber, ins bytecode.Instruction) {
	f.WriteReg(ins.A, uint64(int64(f.ReadReg(ins.B))>>(f.ReadReg(ins.C)&63)))
}
func execShrU(f *fiber.Fiber, ins bytecode.Instruction) {
	f.WriteReg(ins.A, f.ReadReg(ins.B)>>(f.ReadReg(ins.C)&63))
}
func execBoolNot(f *fiber.Fiber, ins bytecode.Instruction) {
	f.WriteReg(ins.A, boolToReg(!regToBool(f.ReadReg(ins.B))))
}
