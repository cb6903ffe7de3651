package emu_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/axpsim/emu"
	"github.com/sarchlab/axpsim/insts"
)

const (
	fpTrueBits    = uint64(0x4000000000000000)
	vaxTrueBits   = uint64(0x4020000000000000)
	qnanBits      = uint64(0x7FF8000000000000)
	snanBits      = uint64(0x7FF0000000000001)
	posInfBits    = uint64(0x7FF0000000000000)
	indefiniteInt = uint64(0x8000000000000000)
)

var _ = Describe("FPUnit", func() {
	var (
		engine *emu.Engine
		cpu    *emu.CPU
	)

	BeforeEach(func() {
		engine = emu.NewEngine()
		cpu = engine.CPU(0)
	})

	step := func(word uint32) emu.Outcome {
		return engine.Step(0, word, 0x1000)
	}

	flti := func(fa, fb uint8, fn uint16, fc uint8) emu.Outcome {
		return step(insts.EncodeFPOp(insts.OpFLTI, fa, fb, fn, fc))
	}

	fltv := func(fa, fb uint8, fn uint16, fc uint8) emu.Outcome {
		return step(insts.EncodeFPOp(insts.OpFLTV, fa, fb, fn, fc))
	}

	fltl := func(fa, fb uint8, fn uint16, fc uint8) emu.Outcome {
		return step(insts.EncodeFPOp(insts.OpFLTL, fa, fb, fn, fc))
	}

	itfp := func(fa, fb uint8, fn uint16, fc uint8) emu.Outcome {
		return step(insts.EncodeFPOp(insts.OpITFP, fa, fb, fn, fc))
	}

	Context("IEEE arithmetic", func() {
		It("should add T operands exactly", func() {
			cpu.WriteFReg(1, tb(1.5))
			cpu.WriteFReg(2, tb(2.25))

			out := flti(1, 2, insts.FPADDT|insts.FPRndNormal, 3)

			Expect(out.Exception).To(Equal(emu.ExcNone))
			Expect(cpu.ReadFReg(3)).To(Equal(tb(3.75)))
			Expect(cpu.FPCR & emu.FPCRSum).To(BeZero())
		})

		It("should subtract, multiply, and divide", func() {
			cpu.WriteFReg(1, tb(1.0))
			cpu.WriteFReg(2, tb(2.5))
			flti(1, 2, insts.FPSUBT|insts.FPRndNormal, 3)
			Expect(cpu.ReadFReg(3)).To(Equal(tb(-1.5)))

			cpu.WriteFReg(1, tb(3.0))
			cpu.WriteFReg(2, tb(0.5))
			flti(1, 2, insts.FPMULT|insts.FPRndNormal, 3)
			Expect(cpu.ReadFReg(3)).To(Equal(tb(1.5)))

			cpu.WriteFReg(1, tb(7.0))
			cpu.WriteFReg(2, tb(2.0))
			flti(1, 2, insts.FPDIVT|insts.FPRndNormal, 3)
			Expect(cpu.ReadFReg(3)).To(Equal(tb(3.5)))
		})

		It("should round single additions to the S grid", func() {
			cpu.WriteFReg(1, tb(1.0))
			cpu.WriteFReg(2, tb(math.Ldexp(1, -24)+math.Ldexp(1, -30)))

			out := flti(1, 2, insts.FPADDS|insts.FPRndNormal, 3)

			Expect(out.Exception).To(Equal(emu.ExcNone))
			Expect(cpu.ReadFReg(3)).To(Equal(tb(1 + math.Ldexp(1, -23))))
			Expect(cpu.FPCR & emu.FPCRIne).ToNot(BeZero())
			Expect(cpu.FPCR & emu.FPCRSum).ToNot(BeZero())
		})

		It("should absorb one infinite operand", func() {
			cpu.WriteFReg(1, posInfBits)
			cpu.WriteFReg(2, tb(1.0))

			out := flti(1, 2, insts.FPADDT|insts.FPRndNormal, 3)

			Expect(out.Exception).To(Equal(emu.ExcNone))
			Expect(cpu.ReadFReg(3)).To(Equal(posInfBits))
		})

		It("should fault on infinity minus infinity", func() {
			cpu.WriteFReg(1, posInfBits)
			cpu.WriteFReg(2, tb(math.Inf(-1)))
			cpu.WriteFReg(3, tb(9.0))

			out := flti(1, 2, insts.FPADDT|insts.FPRndNormal, 3)

			Expect(out.Exception).To(Equal(emu.ExcFPInvalidOp))
			Expect(cpu.ReadFReg(3)).To(Equal(tb(9.0)))
			Expect(cpu.FPCR & emu.FPCRInv).ToNot(BeZero())
		})

		It("should fault on zero times infinity", func() {
			cpu.WriteFReg(1, 0)
			cpu.WriteFReg(2, posInfBits)

			out := flti(1, 2, insts.FPMULT|insts.FPRndNormal, 3)

			Expect(out.Exception).To(Equal(emu.ExcFPInvalidOp))
		})

		It("should keep the sign of a zero product", func() {
			cpu.WriteFReg(1, tb(-2.0))
			cpu.WriteFReg(2, 0)

			flti(1, 2, insts.FPMULT|insts.FPRndNormal, 3)

			Expect(cpu.ReadFReg(3)).To(Equal(tb(math.Copysign(0, -1))))
		})
	})

	Context("rounding modes", func() {
		BeforeEach(func() {
			cpu.WriteFReg(1, tb(1.0))
			cpu.WriteFReg(2, tb(math.Ldexp(1, -24)+math.Ldexp(1, -30)))
		})

		It("should chop toward zero under /C", func() {
			flti(1, 2, insts.FPADDS|insts.FPRndChopped, 3)
			Expect(cpu.ReadFReg(3)).To(Equal(tb(1.0)))
			Expect(cpu.FPCR & emu.FPCRIne).ToNot(BeZero())
		})

		It("should round toward minus infinity under /M", func() {
			flti(1, 2, insts.FPADDS|insts.FPRndMinus, 3)
			Expect(cpu.ReadFReg(3)).To(Equal(tb(1.0)))

			cpu.WriteFReg(1, tb(-1.0))
			cpu.WriteFReg(2, tb(-math.Ldexp(1, -30)))
			flti(1, 2, insts.FPADDS|insts.FPRndMinus, 3)
			Expect(cpu.ReadFReg(3)).To(Equal(tb(-(1 + math.Ldexp(1, -23)))))
		})

		It("should take the dynamic mode from the FPCR under /D", func() {
			cpu.WriteFReg(2, tb(math.Ldexp(1, -25)))

			flti(1, 2, insts.FPADDS|insts.FPRndNormal, 3)
			Expect(cpu.ReadFReg(3)).To(Equal(tb(1.0)))

			cpu.SetFPCR(uint64(emu.RoundPlus) << 58)
			flti(1, 2, insts.FPADDS|insts.FPRndDynamic, 3)
			Expect(cpu.ReadFReg(3)).To(Equal(tb(1 + math.Ldexp(1, -23))))
		})
	})

	Context("IEEE compares", func() {
		It("should deliver true as the T value 2.0", func() {
			cpu.WriteFReg(1, tb(1.5))
			cpu.WriteFReg(2, tb(1.5))
			flti(1, 2, insts.FPCMPEQ|insts.FPRndNormal, 3)
			Expect(cpu.ReadFReg(3)).To(Equal(fpTrueBits))
		})

		It("should treat zeros of both signs as equal", func() {
			cpu.WriteFReg(1, 0)
			cpu.WriteFReg(2, tb(math.Copysign(0, -1)))
			flti(1, 2, insts.FPCMPEQ|insts.FPRndNormal, 3)
			Expect(cpu.ReadFReg(3)).To(Equal(fpTrueBits))
		})

		It("should write false over a stale register", func() {
			cpu.WriteFReg(1, tb(2.0))
			cpu.WriteFReg(2, tb(1.0))
			cpu.WriteFReg(3, 0xdead)
			flti(1, 2, insts.FPCMPLT|insts.FPRndNormal, 3)
			Expect(cpu.ReadFReg(3)).To(BeZero())
		})

		It("should order finite values", func() {
			cpu.WriteFReg(1, tb(1.0))
			cpu.WriteFReg(2, tb(2.0))
			flti(1, 2, insts.FPCMPLT|insts.FPRndNormal, 3)
			Expect(cpu.ReadFReg(3)).To(Equal(fpTrueBits))

			cpu.WriteFReg(2, tb(1.0))
			flti(1, 2, insts.FPCMPLE|insts.FPRndNormal, 3)
			Expect(cpu.ReadFReg(3)).To(Equal(fpTrueBits))
		})

		It("should report a quiet NaN as unordered without faulting", func() {
			cpu.WriteFReg(1, qnanBits)
			cpu.WriteFReg(2, tb(1.0))

			out := flti(1, 2, insts.FPCMPUN|insts.FPRndNormal, 3)
			Expect(out.Exception).To(Equal(emu.ExcNone))
			Expect(cpu.ReadFReg(3)).To(Equal(fpTrueBits))

			out = flti(1, 2, insts.FPCMPEQ|insts.FPRndNormal, 3)
			Expect(out.Exception).To(Equal(emu.ExcNone))
			Expect(cpu.ReadFReg(3)).To(BeZero())
		})

		It("should fault ordered compares on any NaN", func() {
			cpu.WriteFReg(1, qnanBits)
			cpu.WriteFReg(2, tb(1.0))

			out := flti(1, 2, insts.FPCMPLT|insts.FPRndNormal, 3)

			Expect(out.Exception).To(Equal(emu.ExcFPInvalidOp))
			Expect(cpu.FPCR & emu.FPCRInv).ToNot(BeZero())
		})

		It("should fault equality on a signaling NaN", func() {
			cpu.WriteFReg(1, snanBits)
			cpu.WriteFReg(2, tb(1.0))

			out := flti(1, 2, insts.FPCMPEQ|insts.FPRndNormal, 3)

			Expect(out.Exception).To(Equal(emu.ExcFPInvalidOp))
		})
	})

	Context("conversions", func() {
		It("should convert T to quadword with ties to even", func() {
			cpu.WriteFReg(2, tb(2.5))

			out := flti(31, 2, insts.FPCVTTQ|insts.FPRndNormal, 3)

			Expect(out.Exception).To(Equal(emu.ExcNone))
			Expect(cpu.ReadFReg(3)).To(Equal(uint64(2)))
			Expect(cpu.FPCR & emu.FPCRIne).ToNot(BeZero())
		})

		It("should truncate under /C", func() {
			cpu.WriteFReg(2, tb(-2.5))
			flti(31, 2, insts.FPCVTTQ|insts.FPRndChopped, 3)
			Expect(cpu.ReadFReg(3)).To(Equal(uint64(0xFFFFFFFFFFFFFFFE)))
		})

		It("should fault out-of-range conversions and keep the destination", func() {
			cpu.WriteFReg(2, tb(1e300))
			cpu.WriteFReg(3, tb(7.0))

			out := flti(31, 2, insts.FPCVTTQ|insts.FPRndNormal, 3)

			Expect(out.Exception).To(Equal(emu.ExcFPInvalidOp))
			Expect(cpu.ReadFReg(3)).To(Equal(tb(7.0)))
		})

		It("should fault converting a NaN to integer", func() {
			cpu.WriteFReg(2, qnanBits)
			out := flti(31, 2, insts.FPCVTTQ|insts.FPRndNormal, 3)
			Expect(out.Exception).To(Equal(emu.ExcFPInvalidOp))
		})

		It("should convert quadwords to T", func() {
			cpu.WriteFReg(2, 7)
			flti(31, 2, insts.FPCVTQT|insts.FPRndNormal, 3)
			Expect(cpu.ReadFReg(3)).To(Equal(tb(7.0)))

			cpu.WriteFReg(2, uint64(0xFFFFFFFFFFFFFFFD)) // -3
			flti(31, 2, insts.FPCVTQT|insts.FPRndNormal, 3)
			Expect(cpu.ReadFReg(3)).To(Equal(tb(-3.0)))
		})

		It("should round quadword to S when the value needs more bits", func() {
			cpu.WriteFReg(2, uint64(1<<24+1))

			flti(31, 2, insts.FPCVTQS|insts.FPRndNormal, 3)

			Expect(cpu.ReadFReg(3)).To(Equal(tb(16777216.0)))
			Expect(cpu.FPCR & emu.FPCRIne).ToNot(BeZero())
		})

		It("should narrow T to S", func() {
			cpu.WriteFReg(2, tb(1+math.Ldexp(1, -30)))
			flti(31, 2, insts.FPCVTTS|insts.FPRndNormal, 3)
			Expect(cpu.ReadFReg(3)).To(Equal(tb(1.0)))
			Expect(cpu.FPCR & emu.FPCRIne).ToNot(BeZero())
		})

		It("should pass infinity through a narrowing", func() {
			cpu.WriteFReg(2, posInfBits)
			flti(31, 2, insts.FPCVTTS|insts.FPRndNormal, 3)
			Expect(cpu.ReadFReg(3)).To(Equal(posInfBits))
		})

		It("should widen S to T exactly", func() {
			cpu.WriteFReg(2, tb(1.5))
			flti(31, 2, insts.FnCVTST, 3)
			Expect(cpu.ReadFReg(3)).To(Equal(tb(1.5)))
		})

		It("should shuffle longwords through CVTQL and CVTLQ", func() {
			cpu.WriteFReg(1, 0x12345678)

			fltl(31, 1, insts.FnCVTQL, 2)
			Expect(cpu.ReadFReg(2)).To(Equal(uint64(0x02468ACF00000000)))

			fltl(31, 2, insts.FnCVTLQ, 3)
			Expect(cpu.ReadFReg(3)).To(Equal(uint64(0x12345678)))
		})

		It("should round-trip a negative longword", func() {
			cpu.WriteFReg(1, 0xFFFFFFFF80000000)

			fltl(31, 1, insts.FnCVTQL, 2)
			Expect(cpu.ReadFReg(2)).To(Equal(uint64(0x8000000000000000)))

			fltl(31, 2, insts.FnCVTLQ, 3)
			Expect(cpu.ReadFReg(3)).To(Equal(uint64(0xFFFFFFFF80000000)))
		})

		It("should truncate silently without /V", func() {
			cpu.WriteFReg(1, uint64(1)<<32)
			out := fltl(31, 1, insts.FnCVTQL, 2)
			Expect(out.Exception).To(Equal(emu.ExcNone))
			Expect(cpu.ReadFReg(2)).To(BeZero())
			Expect(cpu.FPCR & emu.FPCRIov).To(BeZero())
		})

		It("should fault a lost longword under /V", func() {
			cpu.WriteFReg(1, uint64(1)<<32)
			out := fltl(31, 1, insts.FnCVTQL|insts.FPTrpV, 2)
			Expect(out.Exception).To(Equal(emu.ExcIntegerOverflow))
			Expect(cpu.FPCR & emu.FPCRIov).ToNot(BeZero())
		})

		It("should suppress the overflow under /SV", func() {
			cpu.WriteFReg(1, uint64(1)<<32)
			out := fltl(31, 1, insts.FnCVTQL|insts.FPTrpS|insts.FPTrpV, 2)
			Expect(out.Exception).To(Equal(emu.ExcNone))
			Expect(cpu.ReadFReg(2)).To(BeZero())
			Expect(cpu.FPCR & emu.FPCRIov).ToNot(BeZero())
		})
	})

	Context("sign copies and FPCR access", func() {
		It("should copy the sign with CPYS", func() {
			cpu.WriteFReg(1, tb(-1.0))
			cpu.WriteFReg(2, tb(3.0))
			fltl(1, 2, insts.FnCPYS, 3)
			Expect(cpu.ReadFReg(3)).To(Equal(tb(-3.0)))
		})

		It("should negate the sign with CPYSN", func() {
			cpu.WriteFReg(1, tb(1.0))
			cpu.WriteFReg(2, tb(3.0))
			fltl(1, 2, insts.FnCPYSN, 3)
			Expect(cpu.ReadFReg(3)).To(Equal(tb(-3.0)))

			cpu.WriteFReg(1, tb(-1.0))
			fltl(1, 2, insts.FnCPYSN, 3)
			Expect(cpu.ReadFReg(3)).To(Equal(tb(3.0)))
		})

		It("should splice sign and exponent with CPYSE", func() {
			cpu.WriteFReg(1, tb(2.0))
			cpu.WriteFReg(2, tb(1.75))
			fltl(1, 2, insts.FnCPYSE, 3)
			Expect(cpu.ReadFReg(3)).To(Equal(tb(3.5)))
		})

		It("should move control bits through MT_FPCR and MF_FPCR", func() {
			want := emu.FPCRInvD | uint64(emu.RoundMinus)<<58
			cpu.WriteFReg(1, want)

			fltl(1, 1, insts.FnMT_FPCR, 1)
			Expect(cpu.FPCR).To(Equal(want))
			Expect(cpu.DynRounding()).To(Equal(emu.RoundMinus))

			fltl(2, 2, insts.FnMF_FPCR, 2)
			Expect(cpu.ReadFReg(2)).To(Equal(want))
		})

		It("should recompute the summary bit on a write", func() {
			cpu.WriteFReg(1, emu.FPCRInv)
			fltl(1, 1, insts.FnMT_FPCR, 1)
			Expect(cpu.FPCR).To(Equal(emu.FPCRInv | emu.FPCRSum))
		})
	})

	Context("conditional moves", func() {
		It("should move on zero of either sign", func() {
			cpu.WriteFReg(1, 0)
			cpu.WriteFReg(2, tb(5.0))
			fltl(1, 2, insts.FnFCMOVEQ, 3)
			Expect(cpu.ReadFReg(3)).To(Equal(tb(5.0)))

			cpu.WriteFReg(1, tb(math.Copysign(0, -1)))
			cpu.WriteFReg(2, tb(6.0))
			fltl(1, 2, insts.FnFCMOVEQ, 3)
			Expect(cpu.ReadFReg(3)).To(Equal(tb(6.0)))
		})

		It("should leave the destination alone when the predicate fails", func() {
			cpu.WriteFReg(1, tb(1.0))
			cpu.WriteFReg(2, tb(5.0))
			cpu.WriteFReg(3, tb(9.0))
			fltl(1, 2, insts.FnFCMOVEQ, 3)
			Expect(cpu.ReadFReg(3)).To(Equal(tb(9.0)))
		})

		It("should let NaN satisfy only NE and the unordered predicate", func() {
			cpu.WriteFReg(1, qnanBits)
			cpu.WriteFReg(2, tb(5.0))
			cpu.WriteFReg(3, tb(9.0))

			fltl(1, 2, insts.FnFCMOVGE, 3)
			Expect(cpu.ReadFReg(3)).To(Equal(tb(9.0)))

			fltl(1, 2, insts.FnFCMOVNE, 3)
			Expect(cpu.ReadFReg(3)).To(Equal(tb(5.0)))

			cpu.WriteFReg(3, tb(9.0))
			fltl(1, 2, insts.FnFCMOVUN, 3)
			Expect(cpu.ReadFReg(3)).To(Equal(tb(5.0)))

			cpu.WriteFReg(3, tb(9.0))
			fltl(1, 2, insts.FnFCMOVORD, 3)
			Expect(cpu.ReadFReg(3)).To(Equal(tb(9.0)))
		})

		It("should order against zero", func() {
			cpu.WriteFReg(1, tb(-2.0))
			cpu.WriteFReg(2, tb(5.0))
			fltl(1, 2, insts.FnFCMOVLT, 3)
			Expect(cpu.ReadFReg(3)).To(Equal(tb(5.0)))

			cpu.WriteFReg(1, 0)
			cpu.WriteFReg(2, tb(7.0))
			cpu.WriteFReg(3, tb(9.0))
			fltl(1, 2, insts.FnFCMOVGT, 3)
			Expect(cpu.ReadFReg(3)).To(Equal(tb(9.0)))
		})
	})

	Context("register transfers", func() {
		It("should move raw bits with FTOIT and ITOFT", func() {
			cpu.WriteFReg(1, 0xDEADBEEFCAFEF00D)
			step(insts.EncodeFPOp(insts.OpFPTI, 1, 31, insts.FnFTOIT, 2))
			Expect(cpu.ReadReg(2)).To(Equal(uint64(0xDEADBEEFCAFEF00D)))

			cpu.WriteReg(4, 0x123456789ABCDEF0)
			itfp(4, 31, insts.FPITOFT, 5)
			Expect(cpu.ReadFReg(5)).To(Equal(uint64(0x123456789ABCDEF0)))
		})

		It("should compress to the memory S form with FTOIS", func() {
			cpu.WriteFReg(1, tb(-2.5))
			step(insts.EncodeFPOp(insts.OpFPTI, 1, 31, insts.FnFTOIS, 2))
			Expect(cpu.ReadReg(2)).To(Equal(uint64(0xFFFFFFFFC0200000)))
		})

		It("should expand an S pattern with ITOFS", func() {
			cpu.WriteReg(1, uint64(math.Float32bits(1.5)))
			itfp(1, 31, insts.FPITOFS, 2)
			Expect(cpu.ReadFReg(2)).To(Equal(tb(1.5)))
		})
	})

	Context("square roots", func() {
		It("should take exact square roots", func() {
			cpu.WriteFReg(1, tb(2.25))
			itfp(31, 1, insts.FPSQRTT|insts.FPRndNormal, 2)
			Expect(cpu.ReadFReg(2)).To(Equal(tb(1.5)))
			Expect(cpu.FPCR & emu.FPCRSum).To(BeZero())
		})

		It("should round inexact square roots to nearest", func() {
			cpu.WriteFReg(1, tb(2.0))
			itfp(31, 1, insts.FPSQRTT|insts.FPRndNormal, 2)
			Expect(cpu.ReadFReg(2)).To(Equal(tb(math.Sqrt(2.0))))
			Expect(cpu.FPCR & emu.FPCRIne).ToNot(BeZero())
		})

		It("should fault on a negative operand", func() {
			cpu.WriteFReg(1, tb(-4.0))
			out := itfp(31, 1, insts.FPSQRTT|insts.FPRndNormal, 2)
			Expect(out.Exception).To(Equal(emu.ExcFPInvalidOp))
		})

		It("should compute single roots on the S grid", func() {
			cpu.WriteFReg(1, tb(2.25))
			itfp(31, 1, insts.FPSQRTS|insts.FPRndNormal, 2)
			Expect(cpu.ReadFReg(2)).To(Equal(tb(1.5)))
		})
	})

	Context("fused multiply-add", func() {
		It("should compute the four T variants", func() {
			load := func() {
				cpu.WriteFReg(1, tb(2.0))
				cpu.WriteFReg(2, tb(3.0))
				cpu.WriteFReg(3, tb(4.0))
			}

			load()
			itfp(1, 2, insts.FPFMADDT|insts.FPRndNormal, 3)
			Expect(cpu.ReadFReg(3)).To(Equal(tb(10.0)))

			load()
			itfp(1, 2, insts.FPFMSUBT|insts.FPRndNormal, 3)
			Expect(cpu.ReadFReg(3)).To(Equal(tb(2.0)))

			load()
			itfp(1, 2, insts.FPFNMADDT|insts.FPRndNormal, 3)
			Expect(cpu.ReadFReg(3)).To(Equal(tb(-10.0)))

			load()
			itfp(1, 2, insts.FPFNMSUBT|insts.FPRndNormal, 3)
			Expect(cpu.ReadFReg(3)).To(Equal(tb(-2.0)))
		})

		It("should round the product and sum only once", func() {
			// (1+2^-52)^2 - (1+2^-51) leaves exactly 2^-104, which a
			// separate multiply would have rounded away
			cpu.WriteFReg(1, tb(1.0)+1)
			cpu.WriteFReg(2, tb(1.0)+1)
			cpu.WriteFReg(3, tb(-(1 + math.Ldexp(1, -51))))

			out := itfp(1, 2, insts.FPFMADDT|insts.FPRndNormal, 3)

			Expect(out.Exception).To(Equal(emu.ExcNone))
			Expect(cpu.ReadFReg(3)).To(Equal(tb(math.Ldexp(1, -104))))
			Expect(cpu.FPCR & emu.FPCRSum).To(BeZero())
		})
	})

	Context("paired singles", func() {
		lanes := func(lo, hi float32) uint64 {
			return uint64(math.Float32bits(hi))<<32 | uint64(math.Float32bits(lo))
		}

		It("should add both lanes", func() {
			cpu.WriteFReg(1, lanes(1.5, 2.5))
			cpu.WriteFReg(2, lanes(0.25, 0.5))

			itfp(1, 2, insts.FPVADDS|insts.FPRndNormal, 3)

			Expect(cpu.ReadFReg(3)).To(Equal(lanes(1.75, 3.0)))
		})

		It("should multiply both lanes", func() {
			cpu.WriteFReg(1, lanes(2.0, 4.0))
			cpu.WriteFReg(2, lanes(3.0, 0.5))

			itfp(1, 2, insts.FPVMULS|insts.FPRndNormal, 3)

			Expect(cpu.ReadFReg(3)).To(Equal(lanes(6.0, 2.0)))
		})

		It("should keep a quiet NaN lane quiet", func() {
			cpu.WriteFReg(1, uint64(0x7FC00001)<<32|uint64(math.Float32bits(1.0)))
			cpu.WriteFReg(2, lanes(2.0, 1.0))

			out := itfp(1, 2, insts.FPVADDS|insts.FPRndNormal, 3)

			Expect(out.Exception).To(Equal(emu.ExcNone))
			Expect(cpu.ReadFReg(3)).To(Equal(uint64(0x7FC00001)<<32 | uint64(math.Float32bits(3.0))))
		})

		It("should fault when one lane overflows", func() {
			cpu.WriteFReg(1, lanes(math.MaxFloat32, 1.0))
			cpu.WriteFReg(2, lanes(math.MaxFloat32, 1.0))

			out := itfp(1, 2, insts.FPVADDS|insts.FPRndNormal, 3)

			Expect(out.Exception).To(Equal(emu.ExcFPOverflow))
		})
	})

	Context("exception delivery", func() {
		It("should fault division by zero and keep the sticky bit", func() {
			cpu.WriteFReg(1, tb(1.0))
			cpu.WriteFReg(2, 0)
			cpu.WriteFReg(3, tb(9.0))

			out := flti(1, 2, insts.FPDIVT|insts.FPRndNormal, 3)

			Expect(out.Exception).To(Equal(emu.ExcFPDivideByZero))
			Expect(cpu.ReadFReg(3)).To(Equal(tb(9.0)))
			Expect(cpu.FPCR & emu.FPCRDze).ToNot(BeZero())
			Expect(cpu.FPCR & emu.FPCRSum).ToNot(BeZero())
		})

		It("should deliver infinity when /S and the disable bit suppress it", func() {
			cpu.SetFPCR(uint64(emu.RoundNearest)<<58 | emu.FPCRDzeD)
			cpu.WriteFReg(1, tb(1.0))
			cpu.WriteFReg(2, 0)

			out := flti(1, 2, insts.FPDIVT|insts.FPRndNormal|insts.FPTrpS, 3)

			Expect(out.Exception).To(Equal(emu.ExcNone))
			Expect(cpu.ReadFReg(3)).To(Equal(posInfBits))
		})

		It("should still fault under /S while the disable bit is clear", func() {
			cpu.WriteFReg(1, tb(1.0))
			cpu.WriteFReg(2, 0)

			out := flti(1, 2, insts.FPDIVT|insts.FPRndNormal|insts.FPTrpS, 3)

			Expect(out.Exception).To(Equal(emu.ExcFPDivideByZero))
		})

		It("should fault zero over zero as invalid", func() {
			cpu.WriteFReg(1, 0)
			cpu.WriteFReg(2, 0)
			out := flti(1, 2, insts.FPDIVT|insts.FPRndNormal, 3)
			Expect(out.Exception).To(Equal(emu.ExcFPInvalidOp))
		})

		It("should deliver the canonical quiet NaN when invalid is suppressed", func() {
			cpu.SetFPCR(uint64(emu.RoundNearest)<<58 | emu.FPCRInvD)
			cpu.WriteFReg(1, 0)
			cpu.WriteFReg(2, 0)

			out := flti(1, 2, insts.FPDIVT|insts.FPRndNormal|insts.FPTrpS, 3)

			Expect(out.Exception).To(Equal(emu.ExcNone))
			Expect(cpu.ReadFReg(3)).To(Equal(qnanBits))
		})

		It("should quiet a signaling NaN when suppressed", func() {
			cpu.SetFPCR(uint64(emu.RoundNearest)<<58 | emu.FPCRInvD)
			cpu.WriteFReg(1, snanBits)
			cpu.WriteFReg(2, tb(1.0))

			out := flti(1, 2, insts.FPADDT|insts.FPRndNormal|insts.FPTrpS, 3)

			Expect(out.Exception).To(Equal(emu.ExcNone))
			Expect(cpu.ReadFReg(3)).To(Equal(snanBits | 1<<51))
			Expect(cpu.FPCR & emu.FPCRInv).ToNot(BeZero())
		})

		It("should fault overflow and record the flag", func() {
			cpu.WriteFReg(1, tb(math.MaxFloat64))
			cpu.WriteFReg(2, tb(math.MaxFloat64))

			out := flti(1, 2, insts.FPADDT|insts.FPRndNormal, 3)

			Expect(out.Exception).To(Equal(emu.ExcFPOverflow))
			Expect(cpu.FPCR & emu.FPCROvf).ToNot(BeZero())
		})

		It("should deliver infinity for a suppressed overflow", func() {
			cpu.SetFPCR(uint64(emu.RoundNearest)<<58 | emu.FPCROvfD)
			cpu.WriteFReg(1, tb(math.MaxFloat64))
			cpu.WriteFReg(2, tb(math.MaxFloat64))

			out := flti(1, 2, insts.FPADDT|insts.FPRndNormal|insts.FPTrpS, 3)

			Expect(out.Exception).To(Equal(emu.ExcNone))
			Expect(cpu.ReadFReg(3)).To(Equal(posInfBits))
		})

		It("should pin a suppressed chopped overflow at the largest finite value", func() {
			cpu.SetFPCR(uint64(emu.RoundNearest)<<58 | emu.FPCROvfD)
			cpu.WriteFReg(1, tb(math.MaxFloat64))
			cpu.WriteFReg(2, tb(math.MaxFloat64))

			flti(1, 2, insts.FPADDT|insts.FPRndChopped|insts.FPTrpS, 3)

			Expect(cpu.ReadFReg(3)).To(Equal(tb(math.MaxFloat64)))
		})

		It("should flush a vanishing product to zero without trapping", func() {
			cpu.WriteFReg(1, tb(math.Ldexp(1, -1040)))
			cpu.WriteFReg(2, tb(math.Ldexp(1, -1040)))

			out := flti(1, 2, insts.FPMULT|insts.FPRndNormal, 3)

			Expect(out.Exception).To(Equal(emu.ExcNone))
			Expect(cpu.ReadFReg(3)).To(BeZero())
			Expect(cpu.FPCR & emu.FPCRUnf).ToNot(BeZero())
			Expect(cpu.FPCR & emu.FPCRIne).ToNot(BeZero())
		})

		It("should deliver an exact subnormal without flags", func() {
			cpu.WriteFReg(1, tb(math.Ldexp(1, -1000)))
			cpu.WriteFReg(2, tb(math.Ldexp(1, -50)))

			out := flti(1, 2, insts.FPMULT|insts.FPRndNormal, 3)

			Expect(out.Exception).To(Equal(emu.ExcNone))
			Expect(cpu.ReadFReg(3)).To(Equal(tb(math.Ldexp(1, -1050))))
			Expect(cpu.FPCR & emu.FPCRSum).To(BeZero())
		})

		It("should round an inexact subnormal like the hardware grid", func() {
			minNorm := math.Ldexp(1, -1022)
			cpu.WriteFReg(1, tb(minNorm))
			cpu.WriteFReg(2, tb(3.0))

			out := flti(1, 2, insts.FPDIVT|insts.FPRndNormal, 3)

			Expect(out.Exception).To(Equal(emu.ExcNone))
			Expect(cpu.ReadFReg(3)).To(Equal(tb(minNorm / 3)))
			Expect(cpu.FPCR & emu.FPCRUnf).ToNot(BeZero())
		})

		It("should trap underflow only under /U", func() {
			cpu.WriteFReg(1, tb(math.Ldexp(1, -1022)))
			cpu.WriteFReg(2, tb(3.0))

			out := flti(1, 2, insts.FPDIVT|insts.FPRndNormal|insts.FPTrpS|insts.FPTrpU, 3)

			Expect(out.Exception).To(Equal(emu.ExcFPUnderflow))
		})

		It("should flush a suppressed underflow to zero in underflow-to-zero mode", func() {
			cpu.SetFPCR(uint64(emu.RoundNearest)<<58 | emu.FPCRUnfD | emu.FPCRUndZ)
			cpu.WriteFReg(1, tb(math.Ldexp(1, -1022)))
			cpu.WriteFReg(2, tb(3.0))

			out := flti(1, 2, insts.FPDIVT|insts.FPRndNormal|insts.FPTrpS|insts.FPTrpU, 3)

			Expect(out.Exception).To(Equal(emu.ExcNone))
			Expect(cpu.ReadFReg(3)).To(BeZero())
		})

		It("should accumulate sticky flags across instructions", func() {
			cpu.WriteFReg(1, tb(1.0))
			cpu.WriteFReg(2, tb(math.Ldexp(1, -24)+math.Ldexp(1, -30)))
			flti(1, 2, insts.FPADDS|insts.FPRndNormal, 3)

			cpu.WriteFReg(4, qnanBits)
			flti(4, 1, insts.FPCMPLT|insts.FPRndNormal, 5)

			Expect(cpu.FPCR & emu.FPCRIne).ToNot(BeZero())
			Expect(cpu.FPCR & emu.FPCRInv).ToNot(BeZero())
			Expect(cpu.FPCR & emu.FPCRSum).ToNot(BeZero())
		})
	})

	Context("VAX formats", func() {
		It("should convert quadwords to G", func() {
			cpu.WriteFReg(1, 1)
			fltv(31, 1, insts.FPCVTQG|insts.FPRndNormal, 2)
			Expect(cpu.ReadFReg(2)).To(Equal(uint64(0x4010000000000000)))

			cpu.WriteFReg(1, 2)
			fltv(31, 1, insts.FPCVTQG|insts.FPRndNormal, 2)
			Expect(cpu.ReadFReg(2)).To(Equal(vaxTrueBits))
		})

		It("should add G operands through an integer round trip", func() {
			cpu.WriteFReg(1, 1)
			cpu.WriteFReg(2, 2)
			fltv(31, 1, insts.FPCVTQG|insts.FPRndNormal, 3)
			fltv(31, 2, insts.FPCVTQG|insts.FPRndNormal, 4)

			fltv(3, 4, insts.FPADDG|insts.FPRndNormal, 5)
			Expect(cpu.ReadFReg(5)).To(Equal(uint64(0x4028000000000000)))

			fltv(31, 5, insts.FPCVTGQ|insts.FPRndNormal, 6)
			Expect(cpu.ReadFReg(6)).To(Equal(uint64(3)))
		})

		It("should break G conversion ties away from zero", func() {
			cpu.WriteFReg(1, 0x4024000000000000) // G 2.5

			out := fltv(31, 1, insts.FPCVTGQ|insts.FPRndNormal, 2)

			Expect(out.Exception).To(Equal(emu.ExcNone))
			Expect(cpu.ReadFReg(2)).To(Equal(uint64(3)))
			Expect(cpu.FPCR & emu.FPCRIne).ToNot(BeZero())
		})

		It("should truncate G conversions under /C", func() {
			cpu.WriteFReg(1, 0x4024000000000000)
			fltv(31, 1, insts.FPCVTGQ|insts.FPRndChopped, 2)
			Expect(cpu.ReadFReg(2)).To(Equal(uint64(2)))
		})

		It("should round quadword to G away from zero on ties", func() {
			cpu.WriteFReg(1, uint64(1<<53+1))

			fltv(31, 1, insts.FPCVTQG|insts.FPRndNormal, 2)
			Expect(cpu.ReadFReg(2)).To(Equal(uint64(0x4360000000000001)))

			fltv(31, 1, insts.FPCVTQG|insts.FPRndChopped, 2)
			Expect(cpu.ReadFReg(2)).To(Equal(uint64(0x4360000000000000)))
		})

		It("should deliver G compares as the VAX value 2.0", func() {
			cpu.WriteFReg(1, vaxTrueBits)
			cpu.WriteFReg(2, vaxTrueBits)
			fltv(1, 2, insts.FPCMPGEQ|insts.FPRndNormal, 3)
			Expect(cpu.ReadFReg(3)).To(Equal(vaxTrueBits))

			cpu.WriteFReg(1, 0x4010000000000000) // G 1.0
			fltv(1, 2, insts.FPCMPGLT|insts.FPRndNormal, 3)
			Expect(cpu.ReadFReg(3)).To(Equal(vaxTrueBits))

			fltv(2, 1, insts.FPCMPGLE|insts.FPRndNormal, 3)
			Expect(cpu.ReadFReg(3)).To(BeZero())
		})

		It("should fault a reserved operand", func() {
			cpu.WriteFReg(1, 0x8000000000000000)
			cpu.WriteFReg(2, vaxTrueBits)

			out := fltv(1, 2, insts.FPADDG|insts.FPRndNormal, 3)

			Expect(out.Exception).To(Equal(emu.ExcFPInvalidOp))
			Expect(cpu.FPCR & emu.FPCRInv).ToNot(BeZero())
		})

		It("should fault division by a VAX zero", func() {
			cpu.WriteFReg(1, vaxTrueBits)
			cpu.WriteFReg(2, 0)

			out := fltv(1, 2, insts.FPDIVG|insts.FPRndNormal, 3)

			Expect(out.Exception).To(Equal(emu.ExcFPDivideByZero))
		})

		It("should deliver zero for a suppressed divide, the VAX having no infinity", func() {
			cpu.SetFPCR(uint64(emu.RoundNearest)<<58 | emu.FPCRDzeD)
			cpu.WriteFReg(1, vaxTrueBits)
			cpu.WriteFReg(2, 0)

			out := fltv(1, 2, insts.FPDIVG|insts.FPRndNormal|insts.FPTrpS, 3)

			Expect(out.Exception).To(Equal(emu.ExcNone))
			Expect(cpu.ReadFReg(3)).To(BeZero())
		})

		It("should fault G overflow and pin the suppressed result at the maximum", func() {
			cpu.WriteFReg(1, 0x7FF0000000000000) // G 2^1022
			cpu.WriteFReg(2, 0x4030000000000000) // G 4.0

			out := fltv(1, 2, insts.FPMULG|insts.FPRndNormal, 3)
			Expect(out.Exception).To(Equal(emu.ExcFPOverflow))

			cpu.SetFPCR(uint64(emu.RoundNearest)<<58 | emu.FPCROvfD)
			out = fltv(1, 2, insts.FPMULG|insts.FPRndNormal|insts.FPTrpS, 3)
			Expect(out.Exception).To(Equal(emu.ExcNone))
			Expect(cpu.ReadFReg(3)).To(Equal(uint64(0x7FFFFFFFFFFFFFFF)))
		})

		It("should flush G underflow to true zero", func() {
			cpu.WriteFReg(1, 0x0010000000000000) // G 2^-1024
			cpu.WriteFReg(2, 0x0010000000000000)

			out := fltv(1, 2, insts.FPMULG|insts.FPRndNormal, 3)

			Expect(out.Exception).To(Equal(emu.ExcNone))
			Expect(cpu.ReadFReg(3)).To(BeZero())
			Expect(cpu.FPCR & emu.FPCRUnf).ToNot(BeZero())
		})

		It("should take G square roots through the divide chain", func() {
			cpu.WriteFReg(1, 9)
			cpu.WriteFReg(2, 4)
			fltv(31, 1, insts.FPCVTQG|insts.FPRndNormal, 3)
			fltv(31, 2, insts.FPCVTQG|insts.FPRndNormal, 4)
			fltv(3, 4, insts.FPDIVG|insts.FPRndNormal, 5)
			Expect(cpu.ReadFReg(5)).To(Equal(uint64(0x4022000000000000))) // G 2.25

			itfp(31, 5, insts.FPSQRTG|insts.FPRndNormal, 6)
			Expect(cpu.ReadFReg(6)).To(Equal(uint64(0x4018000000000000))) // G 1.5
		})

		It("should fault a reserved operand to SQRTG", func() {
			cpu.WriteFReg(1, 0x8000000000000000)
			out := itfp(31, 1, insts.FPSQRTG|insts.FPRndNormal, 2)
			Expect(out.Exception).To(Equal(emu.ExcFPInvalidOp))
		})

		It("should add in D format", func() {
			cpu.WriteFReg(1, 0x4080000000000000) // D 1.0
			cpu.WriteFReg(2, 0x4080000000000000)

			fltv(1, 2, insts.FPADDD|insts.FPRndNormal, 3)

			Expect(cpu.ReadFReg(3)).To(Equal(uint64(0x4100000000000000)))
		})

		It("should re-round between G and D", func() {
			cpu.WriteFReg(1, 0x4028000000000000) // G 3.0

			fltv(31, 1, insts.FPCVTGD|insts.FPRndNormal, 2)
			Expect(cpu.ReadFReg(2)).To(Equal(uint64(0x4140000000000000)))

			fltv(31, 2, insts.FPCVTDG|insts.FPRndNormal, 3)
			Expect(cpu.ReadFReg(3)).To(Equal(uint64(0x4028000000000000)))
		})

		It("should keep in-range values across CVTGF", func() {
			cpu.WriteFReg(1, 0x4018000000000000) // G 1.5
			fltv(31, 1, insts.FPCVTGF|insts.FPRndNormal, 2)
			Expect(cpu.ReadFReg(2)).To(Equal(uint64(0x4018000000000000)))
		})

		It("should fault CVTGF past the F exponent range", func() {
			cpu.WriteFReg(1, 0x4C80000000000000) // G 2^199
			out := fltv(31, 1, insts.FPCVTGF|insts.FPRndNormal, 2)
			Expect(out.Exception).To(Equal(emu.ExcFPOverflow))
		})

		It("should add F operands within the narrow exponent range", func() {
			cpu.WriteFReg(1, 0x4018000000000000) // F 1.5
			cpu.WriteFReg(2, 0x4018000000000000)

			fltv(1, 2, insts.FPADDF|insts.FPRndNormal, 3)

			Expect(cpu.ReadFReg(3)).To(Equal(uint64(0x4028000000000000)))
		})

		It("should flush F underflow below the narrow range", func() {
			cpu.WriteFReg(1, 0x3810000000000000) // F 2^-128
			cpu.WriteFReg(2, 0x3810000000000000)

			out := fltv(1, 2, insts.FPMULF|insts.FPRndNormal, 3)

			Expect(out.Exception).To(Equal(emu.ExcNone))
			Expect(cpu.ReadFReg(3)).To(BeZero())
			Expect(cpu.FPCR & emu.FPCRUnf).ToNot(BeZero())
		})
	})

	Context("direct execution", func() {
		It("should count operations and suppressed traps", func() {
			unit := emu.NewFPUnit()
			c := emu.NewCPU(0)
			c.SetFPCR(c.FPCR | emu.FPCRDzeD)
			c.WriteFReg(1, tb(1.0))
			inst := decodeWord(insts.EncodeFPOp(insts.OpFLTI, 1, 2,
				insts.FPDIVT|insts.FPRndNormal|insts.FPTrpS, 3))
			var out emu.Outcome

			Expect(unit.Execute(c, &inst, &out)).To(Succeed())
			Expect(unit.Operations()).To(Equal(uint64(1)))
			Expect(unit.Suppressed()).To(Equal(uint64(1)))
			Expect(out.RegWrites).To(HaveLen(1))
			Expect(out.RegWrites[0].FP).To(BeTrue())
			Expect(out.RegWrites[0].Value).To(Equal(posInfBits))
		})
	})
})

// tb is the T-register pattern of a float64 value.
func tb(v float64) uint64 {
	return math.Float64bits(v)
}
