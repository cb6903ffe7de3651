package emu

import (
	"math"
	"math/big"

	"github.com/sarchlab/axpsim/insts"
)

// ieeeFormat describes an IEEE rounding target: significand precision
// and the normalized exponents (as big.Float.MantExp reports them) of
// the smallest normal and smallest subnormal values.
type ieeeFormat struct {
	prec     uint
	minNormE int
	minSubE  int
	maxFin   float64
}

var (
	fmtS = ieeeFormat{prec: 24, minNormE: -125, minSubE: -148, maxFin: float64(math.MaxFloat32)}
	fmtT = ieeeFormat{prec: 53, minNormE: -1021, minSubE: -1073, maxFin: math.MaxFloat64}
)

// operandPrec holds any float64 operand exactly.
const operandPrec = 64

// intIndefinite is delivered by conversions to integer that overflow
// or see a NaN.
const intIndefinite = 0x8000000000000000

type fpOp int

const (
	fpAdd fpOp = iota
	fpSub
	fpMul
	fpDiv
)

// operandFloat lifts a float64 operand into an exact big.Float.
func operandFloat(v float64) *big.Float {
	return new(big.Float).SetPrec(operandPrec).SetFloat64(v)
}

// roundIEEE rounds the value produced by compute into format f.
// compute must write a correctly rounded result into its receiver and
// is re-invoked at reduced precision when the value lands below the
// normal range, so the subnormal grid rounds in one step. Returns the
// value and the FPCR status bits it raises.
func roundIEEE(f ieeeFormat, rm big.RoundingMode, compute func(z *big.Float)) (float64, uint64) {
	r := new(big.Float).SetPrec(f.prec).SetMode(rm)
	compute(r)

	if r.Sign() == 0 {
		var flags uint64
		if r.Acc() != big.Exact {
			flags = FPCRIne
		}
		if r.Signbit() {
			return math.Copysign(0, -1), flags
		}
		return 0, flags
	}

	neg := r.Signbit()
	ar := new(big.Float).Abs(r)
	maxf := operandFloat(f.maxFin)
	if ar.Cmp(maxf) > 0 {
		flags := FPCROvf | FPCRIne
		if rm == big.ToZero || (rm == big.ToNegativeInf && !neg) || (rm == big.ToPositiveInf && neg) {
			return math.Copysign(f.maxFin, boolSign(neg)), flags
		}
		return math.Inf(signInt(neg)), flags
	}

	e := r.MantExp(nil)
	if e >= f.minNormE {
		var flags uint64
		if r.Acc() != big.Exact {
			flags = FPCRIne
		}
		v, _ := r.Float64()
		return v, flags
	}

	avail := int(f.prec) + e - f.minNormE
	if avail < 1 {
		// below half the smallest subnormal step; recompute with
		// enough bits to settle the boundary comparison
		rx := new(big.Float).SetPrec(2*f.prec + 8)
		compute(rx)
		return roundTiny(f, rm, rx)
	}

	rr := new(big.Float).SetPrec(uint(avail)).SetMode(rm)
	compute(rr)
	e2 := rr.MantExp(nil)
	if avail2 := int(f.prec) + e2 - f.minNormE; e2 < e && int(rr.MinPrec()) > avail2 {
		// the value sits one binade lower than the first rounding
		// suggested, where the grid is a bit coarser
		if avail2 < 1 {
			return roundTiny(f, rm, rr)
		}
		rr = new(big.Float).SetPrec(uint(avail2)).SetMode(rm)
		compute(rr)
	}

	v, _ := rr.Float64()
	if rr.Acc() == big.Exact {
		return v, 0
	}
	if rr.MantExp(nil) >= f.minNormE {
		// rounded up into the normal range
		return v, FPCRIne
	}
	return v, FPCRUnf | FPCRIne
}

// roundTiny rounds a nonzero magnitude smaller than the smallest
// subnormal, which resolves to zero or the smallest subnormal.
func roundTiny(f ieeeFormat, rm big.RoundingMode, r *big.Float) (float64, uint64) {
	neg := r.Signbit()
	minSub := math.Ldexp(1, f.minSubE-1)
	flags := FPCRUnf | FPCRIne

	var mag float64
	switch rm {
	case big.ToZero:
	case big.ToNegativeInf:
		if neg {
			mag = minSub
		}
	case big.ToPositiveInf:
		if !neg {
			mag = minSub
		}
	default:
		half := new(big.Float).SetMantExp(big.NewFloat(0.5), f.minSubE-1)
		if new(big.Float).Abs(r).Cmp(half) > 0 {
			mag = minSub
		}
	}
	return math.Copysign(mag, boolSign(neg)), flags
}

func boolSign(neg bool) float64 {
	if neg {
		return -1
	}
	return 1
}

func signInt(neg bool) int {
	if neg {
		return -1
	}
	return 1
}

// nanPropagate2 applies the NaN input rules: a signaling NaN raises
// invalid, and the first NaN operand is delivered quieted.
func nanPropagate2(a, b uint64) (uint64, uint64, bool) {
	if !tIsNaN(a) && !tIsNaN(b) {
		return 0, 0, false
	}
	var flags uint64
	if tIsSNaN(a) || tIsSNaN(b) {
		flags = FPCRInv
	}
	if tIsNaN(a) {
		return tQuiet(a), flags, true
	}
	return tQuiet(b), flags, true
}

func infRegBits(neg bool) uint64 {
	return tBits(math.Inf(signInt(neg)))
}

func zeroRegBits(neg bool) uint64 {
	if neg {
		return fpSignBit
	}
	return 0
}

// directedZero picks the sign of an exact zero result from inputs of
// opposite sign, which only rounding toward minus infinity makes
// negative.
func directedZero(rm big.RoundingMode) uint64 {
	if rm == big.ToNegativeInf {
		return fpSignBit
	}
	return 0
}

// ieeeArith computes a scalar binary op with full special-value
// handling. Operands and result use the register T layout; single ops
// see their operands through the widened form and round to the S grid.
func ieeeArith(op fpOp, abits, bbits uint64, f ieeeFormat, rm big.RoundingMode) (uint64, uint64) {
	if r, flags, ok := nanPropagate2(abits, bbits); ok {
		return r, flags
	}
	a := tFloat(abits)
	b := tFloat(bbits)
	if op == fpSub {
		b = -b
		op = fpAdd
	}
	ainf := math.IsInf(a, 0)
	binf := math.IsInf(b, 0)
	xor := math.Signbit(a) != math.Signbit(b)

	switch op {
	case fpAdd:
		switch {
		case ainf && binf:
			if math.Signbit(a) != math.Signbit(b) {
				return canonicalQNaN, FPCRInv
			}
			return tBits(a), 0
		case ainf:
			return tBits(a), 0
		case binf:
			return tBits(b), 0
		}
		if a == -b {
			// exact cancellation, including the zero operand grid
			if a == 0 && math.Signbit(a) == math.Signbit(b) {
				return tBits(a), 0
			}
			return directedZero(rm), 0
		}
		if a == 0 {
			a, b = b, a
		}
		if b == 0 {
			// the other operand passes through the target rounding
			return roundBits(f, rm, operandFloat(a))
		}
	case fpMul:
		if ainf || binf {
			if a == 0 || b == 0 {
				return canonicalQNaN, FPCRInv
			}
			return infRegBits(xor), 0
		}
		if a == 0 || b == 0 {
			return zeroRegBits(xor), 0
		}
	case fpDiv:
		switch {
		case ainf && binf:
			return canonicalQNaN, FPCRInv
		case ainf:
			return infRegBits(xor), 0
		case binf:
			return zeroRegBits(xor), 0
		case b == 0:
			if a == 0 {
				return canonicalQNaN, FPCRInv
			}
			return infRegBits(xor), FPCRDze
		case a == 0:
			return zeroRegBits(xor), 0
		}
	}

	xa := operandFloat(a)
	xb := operandFloat(b)
	v, flags := roundIEEE(f, rm, func(z *big.Float) {
		switch op {
		case fpAdd:
			z.Add(xa, xb)
		case fpMul:
			z.Mul(xa, xb)
		case fpDiv:
			z.Quo(xa, xb)
		}
	})
	return tBits(v), flags
}

// roundBits rounds a single exact operand into the target format.
func roundBits(f ieeeFormat, rm big.RoundingMode, x *big.Float) (uint64, uint64) {
	v, flags := roundIEEE(f, rm, func(z *big.Float) { z.Set(x) })
	return tBits(v), flags
}

// ieeeSqrt computes the square root. A negative operand, minus zero
// excepted, raises invalid.
func ieeeSqrt(bbits uint64, f ieeeFormat, rm big.RoundingMode) (uint64, uint64) {
	if tIsNaN(bbits) {
		var flags uint64
		if tIsSNaN(bbits) {
			flags = FPCRInv
		}
		return tQuiet(bbits), flags
	}
	b := tFloat(bbits)
	if b == 0 {
		return bbits, 0
	}
	if math.Signbit(b) {
		return canonicalQNaN, FPCRInv
	}
	if math.IsInf(b, 1) {
		return bbits, 0
	}
	xb := operandFloat(b)
	v, flags := roundIEEE(f, rm, func(z *big.Float) { z.Sqrt(xb) })
	return tBits(v), flags
}

// exactMul forms the exact double-width product.
func exactMul(x, y *big.Float) *big.Float {
	z := new(big.Float).SetPrec(x.MinPrec() + y.MinPrec() + 1)
	return z.Mul(x, y)
}

// exactAdd forms the exact sum, sizing the precision to the operand
// exponent span so the addition cannot round.
func exactAdd(x, y *big.Float) *big.Float {
	if x.Sign() == 0 {
		return y
	}
	if y.Sign() == 0 {
		return x
	}
	hiX := x.MantExp(nil)
	hiY := y.MantExp(nil)
	loX := hiX - int(x.MinPrec())
	loY := hiY - int(y.MinPrec())
	hi := hiX
	if hiY > hi {
		hi = hiY
	}
	lo := loX
	if loY < lo {
		lo = loY
	}
	z := new(big.Float).SetPrec(uint(hi-lo) + 4)
	return z.Add(x, y)
}

// ieeeFused computes a fused multiply-add with a single rounding. The
// negProduct and negAddend selectors cover the four variants; the
// addend doubles as the destination register.
func ieeeFused(negProduct, negAddend bool, abits, bbits, cbits uint64, f ieeeFormat, rm big.RoundingMode) (uint64, uint64) {
	if tIsNaN(abits) || tIsNaN(bbits) || tIsNaN(cbits) {
		var flags uint64
		if tIsSNaN(abits) || tIsSNaN(bbits) || tIsSNaN(cbits) {
			flags = FPCRInv
		}
		switch {
		case tIsNaN(abits):
			return tQuiet(abits), flags
		case tIsNaN(bbits):
			return tQuiet(bbits), flags
		}
		return tQuiet(cbits), flags
	}

	a := tFloat(abits)
	b := tFloat(bbits)
	c := tFloat(cbits)
	if negProduct {
		a = -a
	}
	if negAddend {
		c = -c
	}
	psign := math.Signbit(a) != math.Signbit(b)
	pinf := math.IsInf(a, 0) || math.IsInf(b, 0)

	switch {
	case pinf && (a == 0 || b == 0):
		return canonicalQNaN, FPCRInv
	case pinf:
		if math.IsInf(c, 0) && math.Signbit(c) != psign {
			return canonicalQNaN, FPCRInv
		}
		return infRegBits(psign), 0
	case math.IsInf(c, 0):
		return tBits(c), 0
	case a == 0 || b == 0:
		if c != 0 {
			return roundBits(f, rm, operandFloat(c))
		}
		if psign == math.Signbit(c) {
			return zeroRegBits(psign), 0
		}
		return directedZero(rm), 0
	case c == 0:
		return roundBits(f, rm, exactMul(operandFloat(a), operandFloat(b)))
	}

	sum := exactAdd(exactMul(operandFloat(a), operandFloat(b)), operandFloat(c))
	if sum.Sign() == 0 {
		if psign == math.Signbit(c) {
			return zeroRegBits(psign), 0
		}
		return directedZero(rm), 0
	}
	return roundBits(f, rm, sum)
}

// isNaN32 and friends mirror the T-format NaN helpers on raw single
// lanes.
func isNaN32(v uint32) bool {
	return v&0x7F800000 == 0x7F800000 && v&0x7FFFFF != 0
}

func isSNaN32(v uint32) bool {
	return isNaN32(v) && v&0x400000 == 0
}

func quiet32(v uint32) uint32 {
	return v | 0x400000
}

// fpLane32 computes one lane of a paired-single op on raw 32-bit
// patterns, widening non-NaN lanes to exact doubles for the shared
// scalar path.
func fpLane32(op fpOp, a32, b32 uint32, rm big.RoundingMode) (uint32, uint64) {
	if isNaN32(a32) || isNaN32(b32) {
		var flags uint64
		if isSNaN32(a32) || isSNaN32(b32) {
			flags = FPCRInv
		}
		if isNaN32(a32) {
			return quiet32(a32), flags
		}
		return quiet32(b32), flags
	}
	ab := tBits(float64(math.Float32frombits(a32)))
	bb := tBits(float64(math.Float32frombits(b32)))
	r64, flags := ieeeArith(op, ab, bb, fmtS, rm)
	return math.Float32bits(float32(tFloat(r64))), flags
}

// pairedSingles applies op to both 32-bit lanes and merges the flags.
func pairedSingles(op fpOp, av, bv uint64, rm big.RoundingMode) (uint64, uint64) {
	lo, f0 := fpLane32(op, uint32(av), uint32(bv), rm)
	hi, f1 := fpLane32(op, uint32(av>>32), uint32(bv>>32), rm)
	return uint64(hi)<<32 | uint64(lo), f0 | f1
}

// ieeeCompare evaluates the four T compares. The ordered predicates
// signal invalid on any NaN; equality and unordered only on a
// signaling one.
func ieeeCompare(base uint16, av, bv uint64) (uint64, uint64) {
	if tIsNaN(av) || tIsNaN(bv) {
		var flags uint64
		if tIsSNaN(av) || tIsSNaN(bv) {
			flags = FPCRInv
		}
		switch base {
		case insts.FPCMPUN:
			return fpTrue, flags
		case insts.FPCMPEQ:
			return 0, flags
		}
		return 0, FPCRInv
	}
	a := tFloat(av)
	b := tFloat(bv)
	var t bool
	switch base {
	case insts.FPCMPEQ:
		t = a == b
	case insts.FPCMPLT:
		t = a < b
	case insts.FPCMPLE:
		t = a <= b
	}
	if t {
		return fpTrue, 0
	}
	return 0, 0
}

// cvtTS narrows T to the S grid.
func cvtTS(bv uint64, rm big.RoundingMode) (uint64, uint64) {
	if tIsNaN(bv) {
		var flags uint64
		if tIsSNaN(bv) {
			flags = FPCRInv
		}
		return tQuiet(bv), flags
	}
	b := tFloat(bv)
	if b == 0 || math.IsInf(b, 0) {
		return bv, 0
	}
	return roundBits(fmtS, rm, operandFloat(b))
}

// cvtST widens S to T, which is exact apart from NaN quieting.
func cvtST(bv uint64) (uint64, uint64) {
	if tIsNaN(bv) {
		var flags uint64
		if tIsSNaN(bv) {
			flags = FPCRInv
		}
		return tQuiet(bv), flags
	}
	return bv, 0
}

// roundToInt rounds to an integral float64 in the given mode. VAX
// converts break ties away from zero, IEEE ones to even.
func roundToInt(v float64, round uint8, tiesAway bool) float64 {
	switch round {
	case RoundChopped:
		return math.Trunc(v)
	case RoundMinus:
		return math.Floor(v)
	case RoundPlus:
		return math.Ceil(v)
	}
	if tiesAway {
		return math.Round(v)
	}
	return math.RoundToEven(v)
}

// cvtTQ converts T to a signed quadword. NaN and out-of-range inputs
// raise invalid and deliver the integer-indefinite pattern.
func cvtTQ(bv uint64, round uint8) (uint64, uint64) {
	if tIsNaN(bv) || math.IsInf(tFloat(bv), 0) {
		return intIndefinite, FPCRInv
	}
	v := tFloat(bv)
	r := roundToInt(v, round, false)
	if r >= 9223372036854775808.0 || r < -9223372036854775808.0 {
		return intIndefinite, FPCRInv
	}
	var flags uint64
	if r != v {
		flags = FPCRIne
	}
	return uint64(int64(r)), flags
}

// cvtQF converts a signed quadword to S or T.
func cvtQF(bv uint64, f ieeeFormat, rm big.RoundingMode) (uint64, uint64) {
	v := int64(bv)
	r, flags := roundIEEE(f, rm, func(z *big.Float) { z.SetInt64(v) })
	return tBits(r), flags
}

// ieeeOperate dispatches the opcode 0x16 group.
func (u *FPUnit) ieeeOperate(cpu *CPU, inst *insts.Instruction, out *Outcome) error {
	av := cpu.ReadFReg(inst.Ra)
	bv := cpu.ReadFReg(inst.Rb)

	// CVTST carries a fixed qualifier layout outside the base grid
	if inst.Fn == insts.FnCVTST || inst.Fn == insts.FnCVTSTS {
		r, flags := cvtST(bv)
		return u.deliver(cpu, inst, out, r, flags)
	}

	round := roundMode(cpu, inst.Fn)
	rm := bigMode(round)
	var r, flags uint64
	switch inst.Fn & insts.FPFnMask {
	case insts.FPADDS:
		r, flags = ieeeArith(fpAdd, av, bv, fmtS, rm)
	case insts.FPSUBS:
		r, flags = ieeeArith(fpSub, av, bv, fmtS, rm)
	case insts.FPMULS:
		r, flags = ieeeArith(fpMul, av, bv, fmtS, rm)
	case insts.FPDIVS:
		r, flags = ieeeArith(fpDiv, av, bv, fmtS, rm)
	case insts.FPADDT:
		r, flags = ieeeArith(fpAdd, av, bv, fmtT, rm)
	case insts.FPSUBT:
		r, flags = ieeeArith(fpSub, av, bv, fmtT, rm)
	case insts.FPMULT:
		r, flags = ieeeArith(fpMul, av, bv, fmtT, rm)
	case insts.FPDIVT:
		r, flags = ieeeArith(fpDiv, av, bv, fmtT, rm)
	case insts.FPCMPUN, insts.FPCMPEQ, insts.FPCMPLT, insts.FPCMPLE:
		r, flags = ieeeCompare(inst.Fn&insts.FPFnMask, av, bv)
	case insts.FPCVTTS:
		r, flags = cvtTS(bv, rm)
	case insts.FPCVTTQ:
		r, flags = cvtTQ(bv, round)
	case insts.FPCVTQS:
		r, flags = cvtQF(bv, fmtS, rm)
	case insts.FPCVTQT:
		r, flags = cvtQF(bv, fmtT, rm)
	default:
		return NewTrap(ExcIllegalOpcode)
	}
	return u.deliver(cpu, inst, out, r, flags)
}

// intToFloat dispatches the opcode 0x14 group: register transfers,
// square roots, the fused ops, and paired singles.
func (u *FPUnit) intToFloat(cpu *CPU, inst *insts.Instruction, out *Outcome) error {
	round := roundMode(cpu, inst.Fn)
	rm := bigMode(round)

	switch inst.Fn & insts.FPFnMask {
	case insts.FPITOFS:
		out.writeFReg(inst.Rc, ldsExpand(uint32(cpu.ReadReg(inst.Ra))))
		return nil
	case insts.FPITOFF:
		out.writeFReg(inst.Rc, ldfExpand(uint32(cpu.ReadReg(inst.Ra))))
		return nil
	case insts.FPITOFT:
		out.writeFReg(inst.Rc, cpu.ReadReg(inst.Ra))
		return nil

	case insts.FPSQRTS:
		r, flags := ieeeSqrt(cpu.ReadFReg(inst.Rb), fmtS, rm)
		return u.deliver(cpu, inst, out, r, flags)
	case insts.FPSQRTT:
		r, flags := ieeeSqrt(cpu.ReadFReg(inst.Rb), fmtT, rm)
		return u.deliver(cpu, inst, out, r, flags)
	case insts.FPSQRTF:
		return u.vaxSqrt(cpu, inst, out, vaxFmtF)
	case insts.FPSQRTG:
		return u.vaxSqrt(cpu, inst, out, vaxFmtG)

	case insts.FPVADDS, insts.FPVSUBS, insts.FPVMULS:
		op := fpAdd
		switch inst.Fn & insts.FPFnMask {
		case insts.FPVSUBS:
			op = fpSub
		case insts.FPVMULS:
			op = fpMul
		}
		r, flags := pairedSingles(op, cpu.ReadFReg(inst.Ra), cpu.ReadFReg(inst.Rb), rm)
		return u.deliver(cpu, inst, out, r, flags)
	}

	f := fmtS
	if inst.Fn&insts.FPFnMask >= insts.FPFMADDT {
		f = fmtT
	}
	var negP, negA bool
	switch inst.Fn & insts.FPFnMask {
	case insts.FPFMADDS, insts.FPFMADDT:
	case insts.FPFMSUBS, insts.FPFMSUBT:
		negA = true
	case insts.FPFNMADDS, insts.FPFNMADDT:
		negP, negA = true, true
	case insts.FPFNMSUBS, insts.FPFNMSUBT:
		negP = true
	default:
		return NewTrap(ExcIllegalOpcode)
	}
	r, flags := ieeeFused(negP, negA,
		cpu.ReadFReg(inst.Ra), cpu.ReadFReg(inst.Rb), cpu.ReadFReg(inst.Rc), f, rm)
	return u.deliver(cpu, inst, out, r, flags)
}
