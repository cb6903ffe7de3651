package emu

import (
	"math/big"
	"sync/atomic"

	"github.com/sarchlab/axpsim/insts"
)

// FPUnit executes the four floating-point families: IEEE S/T operate
// (opcode 0x16), VAX F/D/G operate (0x15), the integer-to-float and
// fused group (0x14), and FP data movement (0x17). Arithmetic always
// accumulates the FPCR sticky status bits; whether an exception also
// traps depends on the instruction's qualifier bits and, under
// software completion, the FPCR disable bits.
type FPUnit struct {
	ops        atomic.Uint64
	suppressed atomic.Uint64
}

// NewFPUnit creates a floating-point executor.
func NewFPUnit() *FPUnit {
	return &FPUnit{}
}

// Operations returns the number of FP instructions executed.
func (u *FPUnit) Operations() uint64 {
	return u.ops.Load()
}

// Suppressed returns how many traps software completion absorbed.
func (u *FPUnit) Suppressed() uint64 {
	return u.suppressed.Load()
}

// Execute runs one floating-point instruction.
func (u *FPUnit) Execute(cpu *CPU, inst *insts.Instruction, out *Outcome) error {
	u.ops.Add(1)
	switch inst.Opcode {
	case insts.OpFLTL:
		return u.dataMove(cpu, inst, out)
	case insts.OpFLTI:
		return u.ieeeOperate(cpu, inst, out)
	case insts.OpFLTV:
		return u.vaxOperate(cpu, inst, out)
	case insts.OpITFP:
		return u.intToFloat(cpu, inst, out)
	case insts.OpFPTI:
		return u.floatToInt(cpu, inst, out)
	}
	return NewTrap(ExcIllegalOpcode)
}

// deliver finishes an arithmetic op: raise sticky FPCR status, decide
// whether an enabled exception traps, and write the result. Under
// software completion (/S) a trap whose FPCR disable bit is set is
// suppressed and the default result is delivered instead. The
// underflow-to-zero mode flushes suppressed underflows to true zero.
func (u *FPUnit) deliver(cpu *CPU, inst *insts.Instruction, out *Outcome, result uint64, flags uint64) error {
	if flags != 0 {
		cpu.RaiseFPFlags(flags)
	}
	exc, disable := firstFPTrap(inst.Fn, flags)
	if exc != ExcNone {
		if inst.Fn&insts.FPTrpS == 0 || (disable != 0 && cpu.FPCR&disable == 0) {
			return NewTrap(exc)
		}
		u.suppressed.Add(1)
	}
	if flags&FPCRUnf != 0 && cpu.FPCR&FPCRUndZ != 0 {
		result = 0
	}
	out.writeFReg(inst.Rc, result)
	return nil
}

// firstFPTrap picks the highest-priority raised exception that the
// instruction's qualifiers enable, along with the FPCR bit that can
// disable it under software completion. Invalid, divide-by-zero, and
// overflow are always enabled; underflow needs /U, inexact needs /I,
// and integer overflow needs /V. Integer overflow has no disable bit:
// /S alone suppresses it.
func firstFPTrap(fn uint16, flags uint64) (Exception, uint64) {
	switch {
	case flags&FPCRInv != 0:
		return ExcFPInvalidOp, FPCRInvD
	case flags&FPCRDze != 0:
		return ExcFPDivideByZero, FPCRDzeD
	case flags&FPCROvf != 0:
		return ExcFPOverflow, FPCROvfD
	case flags&FPCRUnf != 0 && fn&insts.FPTrpU != 0:
		return ExcFPUnderflow, FPCRUnfD
	case flags&FPCRIne != 0 && fn&insts.FPTrpI != 0:
		return ExcFPInexact, FPCRIneD
	case flags&FPCRIov != 0 && fn&insts.FPTrpV != 0:
		return ExcIntegerOverflow, 0
	}
	return ExcNone, 0
}

// roundMode resolves the instruction's rounding field, consulting the
// FPCR dynamic field when the instruction defers to it.
func roundMode(cpu *CPU, fn uint16) uint8 {
	switch fn & insts.FPRndMask {
	case insts.FPRndChopped:
		return RoundChopped
	case insts.FPRndMinus:
		return RoundMinus
	case insts.FPRndNormal:
		return RoundNearest
	}
	return cpu.DynRounding()
}

// bigMode maps a rounding mode to its big.Float equivalent.
func bigMode(round uint8) big.RoundingMode {
	switch round {
	case RoundChopped:
		return big.ToZero
	case RoundMinus:
		return big.ToNegativeInf
	case RoundPlus:
		return big.ToPositiveInf
	}
	return big.ToNearestEven
}

const fpSignBit = uint64(1) << 63

// dataMove executes the opcode 0x17 group: sign copies, FPCR access,
// conditional moves, and the longword/quadword shuffles. Trap
// qualifiers on CVTQL mask down to the same low-byte code.
func (u *FPUnit) dataMove(cpu *CPU, inst *insts.Instruction, out *Outcome) error {
	av := cpu.ReadFReg(inst.Ra)
	bv := cpu.ReadFReg(inst.Rb)

	switch inst.Fn & 0xFF {
	case insts.FnCPYS:
		out.writeFReg(inst.Rc, av&fpSignBit|bv&^fpSignBit)
	case insts.FnCPYSN:
		out.writeFReg(inst.Rc, (av^fpSignBit)&fpSignBit|bv&^fpSignBit)
	case insts.FnCPYSE:
		out.writeFReg(inst.Rc, av&0xFFF0000000000000|bv&0x000FFFFFFFFFFFFF)

	case insts.FnMT_FPCR:
		cpu.SetFPCR(av)
	case insts.FnMF_FPCR:
		out.writeFReg(inst.Rc, cpu.FPCR)

	case insts.FnFCMOVEQ, insts.FnFCMOVNE, insts.FnFCMOVLT,
		insts.FnFCMOVGE, insts.FnFCMOVLE, insts.FnFCMOVGT,
		insts.FnFCMOVUN, insts.FnFCMOVORD:
		if fcmovCondition(inst.Fn&0xFF, av) {
			out.writeFReg(inst.Rc, bv)
		}

	case insts.FnCVTLQ:
		w := bv>>62&3<<30 | bv>>29&0x3FFFFFFF
		out.writeFReg(inst.Rc, sext32(uint32(w)))
	case insts.FnCVTQL:
		r := bv>>30&3<<62 | bv&0x3FFFFFFF<<29
		var flags uint64
		if inst.Fn&insts.FPTrpV != 0 && int64(bv) != int64(int32(bv)) {
			flags = FPCRIov
		}
		return u.deliver(cpu, inst, out, r, flags)

	default:
		return NewTrap(ExcIllegalOpcode)
	}
	return nil
}

// fcmovCondition evaluates an FCMOV predicate against Fa. The ordered
// predicates compare to zero of either sign; NaN satisfies only NE and
// the unordered predicate.
func fcmovCondition(fn uint16, a uint64) bool {
	nan := tIsNaN(a)
	zero := a<<1 == 0
	neg := a>>63 != 0 && !zero
	switch fn {
	case insts.FnFCMOVEQ:
		return zero
	case insts.FnFCMOVNE:
		return !zero
	case insts.FnFCMOVLT:
		return !nan && neg
	case insts.FnFCMOVGE:
		return !nan && !neg
	case insts.FnFCMOVLE:
		return !nan && (neg || zero)
	case insts.FnFCMOVGT:
		return !nan && !neg && !zero
	case insts.FnFCMOVUN:
		return nan
	case insts.FnFCMOVORD:
		return !nan
	}
	return false
}

// floatToInt handles FTOIT and FTOIS, the raw register moves into the
// integer file. FTOIS compresses to the memory S form and delivers the
// canonical longword, matching a store-load pair.
func (u *FPUnit) floatToInt(cpu *CPU, inst *insts.Instruction, out *Outcome) error {
	av := cpu.ReadFReg(inst.Ra)
	switch inst.Fn {
	case insts.FnFTOIT:
		out.writeReg(inst.Rc, av)
	case insts.FnFTOIS:
		out.writeReg(inst.Rc, sext32(stsCompress(av)))
	default:
		return NewTrap(ExcIllegalOpcode)
	}
	return nil
}
