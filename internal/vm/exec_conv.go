package vm

import (
	"github.com/vo-lang/vort/internal/bytecode"
	"github.com/vo-lang/vort/internal/fiber"
)

// ConvI2F: a=dst, b=src (int64 bit pattern -> float64 bit pattern).
func execConvI2F(f *fiber.Fiber, ins bytecode.Instruction) {
	f.WriteReg(ins.A, f64bits(float64(int64(f.ReadReg(ins.B)))))
}

// ConvF2I: a=dst, b=src (float64 bit pattern -> truncated int64).
func execConvF2I(f *fiber.Fiber, ins bytecode.Instruction) {
	f.WriteReg(ins.A, uint64(int64(f64FromBits(f.ReadReg(ins.B)))))
}

// ConvI32I64 sign-extends a 32-bit value held in the low bits of a
// register out to a full 64-bit register.
func execConvI32I64(f *fiber.Fiber, ins bytecode.Instruction) {
	f.WriteReg(ins.A, uint64(int64(int32(f.ReadReg(ins.B)))))
}

// ConvI64I32 truncates to the low 32 bits, sign-extended back into a
// 64-bit register for uniform register width.
func execConvI64I32(f *fiber.Fiber, ins bytecode.Instruction) {
	f.WriteReg(ins.A, uint64(int64(int32(uint32(f.ReadReg(ins.B))))))
}
