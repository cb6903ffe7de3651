package emu

import (
	"math/big"

	"github.com/sarchlab/axpsim/insts"
)

// vaxFormat describes a VAX encoding in its register form. F and G
// share the 11-bit exponent layout (F arrives widened by the load
// path); D keeps its narrow 8-bit exponent above a 55-bit fraction.
type vaxFormat struct {
	prec     uint
	fracBits uint
	expShift uint
	expMask  uint64
	bias     int
	expMin   int
	expMax   int
}

var (
	vaxFmtF = vaxFormat{prec: 24, fracBits: 52, expShift: 52, expMask: 0x7FF, bias: 1024, expMin: 897, expMax: 1151}
	vaxFmtG = vaxFormat{prec: 53, fracBits: 52, expShift: 52, expMask: 0x7FF, bias: 1024, expMin: 1, expMax: 2047}
	vaxFmtD = vaxFormat{prec: 56, fracBits: 55, expShift: 55, expMask: 0xFF, bias: 128, expMin: 1, expMax: 255}
)

// vaxDecode reads a register operand. A set sign with a zero exponent
// is the reserved operand; a clear sign with a zero exponent reads as
// true zero whatever the fraction says.
func vaxDecode(bits uint64, f vaxFormat) (*big.Float, bool) {
	e := int(bits >> f.expShift & f.expMask)
	neg := bits>>63 != 0
	if e == 0 {
		if neg {
			return nil, true
		}
		return new(big.Float), false
	}
	frac := bits & (1<<f.fracBits - 1)
	v := new(big.Float).SetPrec(f.fracBits + 1).SetUint64(1<<f.fracBits | frac)
	v.SetMantExp(v, e-f.bias-int(f.fracBits)-1)
	if neg {
		v.Neg(v)
	}
	return v, false
}

// vaxEncode writes a rounded value back into register form. Exponents
// past the format fault as overflow; below it the result flushes to
// true zero, VAX having no graduated underflow.
func vaxEncode(r *big.Float, f vaxFormat, inexact bool) (uint64, uint64) {
	var flags uint64
	if inexact {
		flags = FPCRIne
	}
	if r.Sign() == 0 {
		return 0, flags
	}
	mant := new(big.Float)
	e := r.MantExp(mant)
	regExp := e + f.bias
	if regExp > f.expMax {
		return vaxMax(f, r.Signbit()), flags | FPCROvf
	}
	if regExp < f.expMin {
		return 0, flags | FPCRUnf | FPCRIne
	}
	mant.Abs(mant)
	mi := new(big.Float).SetMantExp(mant, int(f.fracBits)+1)
	iv, _ := mi.Uint64()
	bits := uint64(regExp)<<f.expShift | iv&^(1<<f.fracBits)
	if r.Signbit() {
		bits |= fpSignBit
	}
	return bits, flags
}

// vaxMax is the largest finite value, delivered when a suppressed
// overflow still needs a result.
func vaxMax(f vaxFormat, neg bool) uint64 {
	frac := (uint64(1)<<(f.prec-1) - 1) << (f.fracBits - (f.prec - 1))
	bits := uint64(f.expMax)<<f.expShift | frac
	if neg {
		bits |= fpSignBit
	}
	return bits
}

// vaxRound maps the function rounding field; VAX ops know only chopped
// and round-to-nearest with ties away from zero.
func vaxRound(fn uint16) big.RoundingMode {
	if fn&insts.FPRndMask == insts.FPRndChopped {
		return big.ToZero
	}
	return big.ToNearestAway
}

// vaxOperate dispatches the opcode 0x15 group.
func (u *FPUnit) vaxOperate(cpu *CPU, inst *insts.Instruction, out *Outcome) error {
	av := cpu.ReadFReg(inst.Ra)
	bv := cpu.ReadFReg(inst.Rb)
	rm := vaxRound(inst.Fn)
	base := inst.Fn & insts.FPFnMask

	switch base {
	case insts.FPADDF, insts.FPSUBF, insts.FPMULF, insts.FPDIVF:
		return u.vaxArith(cpu, inst, out, fpOp(base&3), av, bv, vaxFmtF, rm)
	case insts.FPADDD, insts.FPSUBD, insts.FPMULD, insts.FPDIVD:
		return u.vaxArith(cpu, inst, out, fpOp(base&3), av, bv, vaxFmtD, rm)
	case insts.FPADDG, insts.FPSUBG, insts.FPMULG, insts.FPDIVG:
		return u.vaxArith(cpu, inst, out, fpOp(base&3), av, bv, vaxFmtG, rm)

	case insts.FPCMPGEQ, insts.FPCMPGLT, insts.FPCMPGLE:
		r, flags := vaxCompare(base, av, bv)
		return u.deliver(cpu, inst, out, r, flags)

	case insts.FPCVTGF:
		r, flags := vaxConvert(bv, vaxFmtG, vaxFmtF, rm)
		return u.deliver(cpu, inst, out, r, flags)
	case insts.FPCVTGD:
		r, flags := vaxConvert(bv, vaxFmtG, vaxFmtD, rm)
		return u.deliver(cpu, inst, out, r, flags)
	case insts.FPCVTDG:
		r, flags := vaxConvert(bv, vaxFmtD, vaxFmtG, rm)
		return u.deliver(cpu, inst, out, r, flags)

	case insts.FPCVTGQ:
		round := RoundNearest
		if inst.Fn&insts.FPRndMask == insts.FPRndChopped {
			round = RoundChopped
		}
		r, flags := vaxToQuad(bv, round)
		return u.deliver(cpu, inst, out, r, flags)
	case insts.FPCVTQF:
		r, flags := quadToVax(bv, vaxFmtF, rm)
		return u.deliver(cpu, inst, out, r, flags)
	case insts.FPCVTQG:
		r, flags := quadToVax(bv, vaxFmtG, rm)
		return u.deliver(cpu, inst, out, r, flags)
	}
	return NewTrap(ExcIllegalOpcode)
}

// vaxArith runs one add, subtract, multiply, or divide. Reserved
// operands fault as invalid; a zero divisor always faults, the VAX
// having no infinity to absorb it.
func (u *FPUnit) vaxArith(cpu *CPU, inst *insts.Instruction, out *Outcome, op fpOp, av, bv uint64, f vaxFormat, rm big.RoundingMode) error {
	xa, resA := vaxDecode(av, f)
	xb, resB := vaxDecode(bv, f)
	if resA || resB {
		return u.deliver(cpu, inst, out, 0, FPCRInv)
	}

	switch op {
	case fpSub:
		xb.Neg(xb)
		op = fpAdd
	case fpMul:
		if xa.Sign() == 0 || xb.Sign() == 0 {
			return u.deliver(cpu, inst, out, 0, 0)
		}
	case fpDiv:
		if xb.Sign() == 0 {
			return u.deliver(cpu, inst, out, 0, FPCRDze)
		}
		if xa.Sign() == 0 {
			return u.deliver(cpu, inst, out, 0, 0)
		}
	}

	r := new(big.Float).SetPrec(f.prec).SetMode(rm)
	switch op {
	case fpAdd:
		r.Add(xa, xb)
	case fpMul:
		r.Mul(xa, xb)
	case fpDiv:
		r.Quo(xa, xb)
	}
	bits, flags := vaxEncode(r, f, r.Acc() != big.Exact)
	return u.deliver(cpu, inst, out, bits, flags)
}

// vaxCompare evaluates the G-format compares. True is the G value 2.0.
func vaxCompare(base uint16, av, bv uint64) (uint64, uint64) {
	xa, resA := vaxDecode(av, vaxFmtG)
	xb, resB := vaxDecode(bv, vaxFmtG)
	if resA || resB {
		return 0, FPCRInv
	}
	d := xa.Cmp(xb)
	var t bool
	switch base {
	case insts.FPCMPGEQ:
		t = d == 0
	case insts.FPCMPGLT:
		t = d < 0
	case insts.FPCMPGLE:
		t = d <= 0
	}
	if t {
		return vaxTrue, 0
	}
	return 0, 0
}

// vaxConvert re-rounds a value from one VAX format into another.
func vaxConvert(bv uint64, src, dst vaxFormat, rm big.RoundingMode) (uint64, uint64) {
	x, res := vaxDecode(bv, src)
	if res {
		return 0, FPCRInv
	}
	if x.Sign() == 0 {
		return 0, 0
	}
	r := new(big.Float).SetPrec(dst.prec).SetMode(rm).Set(x)
	return vaxEncode(r, dst, r.Acc() != big.Exact)
}

// vaxToQuad converts G to a signed quadword. Out-of-range results
// raise integer overflow and deliver the indefinite pattern.
func vaxToQuad(bv uint64, round uint8) (uint64, uint64) {
	x, res := vaxDecode(bv, vaxFmtG)
	if res {
		return intIndefinite, FPCRInv
	}
	v, _ := x.Float64()
	r := roundToInt(v, round, true)
	if r >= 9223372036854775808.0 || r < -9223372036854775808.0 {
		return intIndefinite, FPCRIov
	}
	var flags uint64
	if r != v {
		flags = FPCRIne
	}
	return uint64(int64(r)), flags
}

// quadToVax converts a signed quadword to F or G.
func quadToVax(bv uint64, f vaxFormat, rm big.RoundingMode) (uint64, uint64) {
	v := int64(bv)
	if v == 0 {
		return 0, 0
	}
	r := new(big.Float).SetPrec(f.prec).SetMode(rm).SetInt64(v)
	return vaxEncode(r, f, r.Acc() != big.Exact)
}

// vaxSqrt implements SQRTF and SQRTG. A negative operand is a reserved
// operand fault.
func (u *FPUnit) vaxSqrt(cpu *CPU, inst *insts.Instruction, out *Outcome, f vaxFormat) error {
	x, res := vaxDecode(cpu.ReadFReg(inst.Rb), f)
	if res {
		return u.deliver(cpu, inst, out, 0, FPCRInv)
	}
	if x.Sign() == 0 {
		return u.deliver(cpu, inst, out, 0, 0)
	}
	if x.Sign() < 0 {
		return u.deliver(cpu, inst, out, 0, FPCRInv)
	}
	r := new(big.Float).SetPrec(f.prec).SetMode(vaxRound(inst.Fn))
	r.Sqrt(x)
	bits, flags := vaxEncode(r, f, r.Acc() != big.Exact)
	return u.deliver(cpu, inst, out, bits, flags)
}
