package emu_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/axpsim/emu"
	"github.com/sarchlab/axpsim/insts"
)

var _ = Describe("ControlUnit", func() {
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

	Context("unconditional branches", func() {
		It("should write the return address and redirect", func() {
			out := step(insts.EncodeBranch(insts.OpBR, 26, 3))

			Expect(out.Exception).To(Equal(emu.ExcNone))
			Expect(cpu.ReadReg(26)).To(Equal(uint64(0x1004)))
			Expect(cpu.PC).To(Equal(uint64(0x1010)))
		})

		It("should branch backward with a negative displacement", func() {
			out := step(insts.EncodeBranch(insts.OpBSR, 26, -2))

			Expect(out.NextPC).To(Equal(uint64(0xFFC)))
			Expect(cpu.ReadReg(26)).To(Equal(uint64(0x1004)))
		})

		It("should discard the link when Ra is the zero register", func() {
			out := step(insts.EncodeBranch(insts.OpBR, 31, 1))
			Expect(out.NextPC).To(Equal(uint64(0x1008)))
			Expect(cpu.ReadReg(31)).To(BeZero())
		})
	})

	Context("conditional branches", func() {
		It("should take BEQ on zero and fall through otherwise", func() {
			cpu.WriteReg(1, 0)
			out := step(insts.EncodeBranch(insts.OpBEQ, 1, 4))
			Expect(out.NextPC).To(Equal(uint64(0x1014)))

			cpu.WriteReg(1, 5)
			out = step(insts.EncodeBranch(insts.OpBEQ, 1, 4))
			Expect(out.NextPC).To(Equal(uint64(0x1004)))
			Expect(cpu.PC).To(Equal(uint64(0x1004)))
		})

		It("should compare signed for BLT and BGE", func() {
			cpu.WriteReg(1, 0xFFFFFFFFFFFFFFFF) // -1
			out := step(insts.EncodeBranch(insts.OpBLT, 1, 2))
			Expect(out.NextPC).To(Equal(uint64(0x100C)))

			cpu.WriteReg(1, 0)
			out = step(insts.EncodeBranch(insts.OpBGE, 1, 2))
			Expect(out.NextPC).To(Equal(uint64(0x100C)))
		})

		It("should treat zero as the boundary for BLE and BGT", func() {
			cpu.WriteReg(1, 0)
			out := step(insts.EncodeBranch(insts.OpBLE, 1, 1))
			Expect(out.NextPC).To(Equal(uint64(0x1008)))

			out = step(insts.EncodeBranch(insts.OpBGT, 1, 1))
			Expect(out.NextPC).To(Equal(uint64(0x1004)))
		})

		It("should test the low bit for BLBS and BLBC", func() {
			cpu.WriteReg(1, 5)
			out := step(insts.EncodeBranch(insts.OpBLBS, 1, 1))
			Expect(out.NextPC).To(Equal(uint64(0x1008)))

			out = step(insts.EncodeBranch(insts.OpBLBC, 1, 1))
			Expect(out.NextPC).To(Equal(uint64(0x1004)))
		})
	})

	Context("floating-point branches", func() {
		It("should take FBEQ on a zero of either sign", func() {
			cpu.WriteFReg(1, 0)
			out := step(insts.EncodeBranch(insts.OpFBEQ, 1, 1))
			Expect(out.NextPC).To(Equal(uint64(0x1008)))

			cpu.WriteFReg(1, tb(math.Copysign(0, -1)))
			out = step(insts.EncodeBranch(insts.OpFBEQ, 1, 1))
			Expect(out.NextPC).To(Equal(uint64(0x1008)))
		})

		It("should let only FBNE see a NaN", func() {
			cpu.WriteFReg(1, qnanBits)

			out := step(insts.EncodeBranch(insts.OpFBNE, 1, 1))
			Expect(out.NextPC).To(Equal(uint64(0x1008)))

			out = step(insts.EncodeBranch(insts.OpFBEQ, 1, 1))
			Expect(out.NextPC).To(Equal(uint64(0x1004)))

			out = step(insts.EncodeBranch(insts.OpFBGE, 1, 1))
			Expect(out.NextPC).To(Equal(uint64(0x1004)))
		})

		It("should order against zero for FBLT", func() {
			cpu.WriteFReg(1, tb(-1.0))
			out := step(insts.EncodeBranch(insts.OpFBLT, 1, 1))
			Expect(out.NextPC).To(Equal(uint64(0x1008)))
		})
	})

	Context("jumps", func() {
		It("should clear the low target bits and link", func() {
			cpu.WriteReg(27, 0x20003)

			out := step(insts.EncodeJump(insts.JmpJSR, 26, 27, 0))

			Expect(out.NextPC).To(Equal(uint64(0x20000)))
			Expect(cpu.ReadReg(26)).To(Equal(uint64(0x1004)))
			Expect(cpu.PC).To(Equal(uint64(0x20000)))
		})

		It("should return through the link register", func() {
			cpu.WriteReg(26, 0x1004)
			out := step(insts.EncodeJump(insts.JmpRET, 31, 26, 1))
			Expect(out.NextPC).To(Equal(uint64(0x1004)))
		})

		It("should run all four variants through one datapath", func() {
			cpu.WriteReg(5, 0x3000)
			for _, fn := range []uint8{insts.JmpJMP, insts.JmpJSR, insts.JmpRET, insts.JmpJSRCoroutine} {
				out := step(insts.EncodeJump(fn, 6, 5, 0))
				Expect(out.NextPC).To(Equal(uint64(0x3000)))
				Expect(cpu.ReadReg(6)).To(Equal(uint64(0x1004)))
			}
		})
	})

	Context("conditional moves", func() {
		It("should move operand B when the predicate holds", func() {
			cpu.WriteReg(1, 0)
			cpu.WriteReg(2, 7)
			step(insts.EncodeOperate(insts.OpINTL, 1, 2, insts.FnCMOVEQ, 3))
			Expect(cpu.ReadReg(3)).To(Equal(uint64(7)))
		})

		It("should leave the destination alone when it does not", func() {
			cpu.WriteReg(1, 1)
			cpu.WriteReg(2, 7)
			cpu.WriteReg(3, 0x1234)
			step(insts.EncodeOperate(insts.OpINTL, 1, 2, insts.FnCMOVEQ, 3))
			Expect(cpu.ReadReg(3)).To(Equal(uint64(0x1234)))
		})

		It("should accept a literal operand", func() {
			cpu.WriteReg(1, 5)
			step(insts.EncodeOperateLit(insts.OpINTL, 1, 9, insts.FnCMOVLBS, 3))
			Expect(cpu.ReadReg(3)).To(Equal(uint64(9)))
		})

		It("should compare signed for CMOVGT", func() {
			cpu.WriteReg(1, 0xFFFFFFFFFFFFFFFC) // -4
			cpu.WriteReg(2, 7)
			cpu.WriteReg(3, 0x1234)
			step(insts.EncodeOperate(insts.OpINTL, 1, 2, insts.FnCMOVGT, 3))
			Expect(cpu.ReadReg(3)).To(Equal(uint64(0x1234)))
		})
	})

	Context("misprediction reporting", func() {
		It("should flag a first taken branch for its unknown target", func() {
			cpu.WriteReg(1, 0)
			word := insts.EncodeBranch(insts.OpBEQ, 1, 4)

			out := step(word)
			Expect(out.Mispredicted).To(BeTrue())

			// the BTB now holds the target, and direction agrees
			out = step(word)
			Expect(out.Mispredicted).To(BeFalse())
		})

		It("should flag a fall-through against the taken bias, then learn it", func() {
			cpu.WriteReg(1, 5)
			word := insts.EncodeBranch(insts.OpBEQ, 1, 4)

			out := step(word)
			Expect(out.Mispredicted).To(BeTrue())

			out = step(word)
			Expect(out.Mispredicted).To(BeFalse())
		})

		It("should flag a jump whose target moved", func() {
			cpu.WriteReg(27, 0x2000)
			word := insts.EncodeJump(insts.JmpJSR, 31, 27, 0)

			step(word)
			out := step(word)
			Expect(out.Mispredicted).To(BeFalse())

			cpu.WriteReg(27, 0x4000)
			out = step(word)
			Expect(out.Mispredicted).To(BeTrue())
		})

		It("should train the per-CPU predictor", func() {
			cpu.WriteReg(1, 0)
			word := insts.EncodeBranch(insts.OpBEQ, 1, 4)
			step(word)
			step(word)

			stats := engine.Predictor(0).Stats()
			Expect(stats.Predictions).To(Equal(uint64(2)))
			Expect(stats.BTBHits).To(Equal(uint64(1)))
			Expect(stats.BTBMisses).To(Equal(uint64(1)))
		})
	})

	Context("direct execution", func() {
		It("should count branches, jumps, and moves", func() {
			unit := emu.NewControlUnit([]*emu.Predictor{emu.NewPredictor()})
			c := emu.NewCPU(0)
			c.PC = 0x1000

			var out emu.Outcome
			inst := decodeWord(insts.EncodeBranch(insts.OpBR, 31, 1))
			Expect(unit.Execute(c, &inst, &out)).To(Succeed())
			Expect(out.NextPC).To(Equal(uint64(0x1008)))

			c.WriteReg(1, 5)
			inst = decodeWord(insts.EncodeBranch(insts.OpBEQ, 1, 1))
			out = emu.Outcome{NextPC: 0x1004}
			Expect(unit.Execute(c, &inst, &out)).To(Succeed())
			Expect(out.NextPC).To(Equal(uint64(0x1004)))

			inst = decodeWord(insts.EncodeJump(insts.JmpJSR, 31, 1, 0))
			out = emu.Outcome{}
			Expect(unit.Execute(c, &inst, &out)).To(Succeed())

			inst = decodeWord(insts.EncodeOperate(insts.OpINTL, 31, 2, insts.FnCMOVEQ, 3))
			out = emu.Outcome{}
			Expect(unit.Execute(c, &inst, &out)).To(Succeed())

			Expect(unit.Branches()).To(Equal(uint64(2)))
			Expect(unit.Taken()).To(Equal(uint64(1)))
			Expect(unit.Jumps()).To(Equal(uint64(1)))
			Expect(unit.ConditionalMoves()).To(Equal(uint64(1)))
		})
	})
})
