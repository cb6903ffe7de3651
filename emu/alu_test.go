package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/axpsim/emu"
	"github.com/sarchlab/axpsim/insts"
)

var _ = Describe("IntUnit", func() {
	var (
		engine *emu.Engine
		cpu    *emu.CPU
	)

	BeforeEach(func() {
		engine = emu.NewEngine()
		cpu = engine.CPU(0)
	})

	operate := func(opcode, ra, rb uint8, fn uint16, rc uint8) emu.Outcome {
		return engine.Step(0, insts.EncodeOperate(opcode, ra, rb, fn, rc), 0x1000)
	}

	operateLit := func(opcode, ra, lit uint8, fn uint16, rc uint8) emu.Outcome {
		return engine.Step(0, insts.EncodeOperateLit(opcode, ra, lit, fn, rc), 0x1000)
	}

	Context("addition and subtraction", func() {
		It("should add quadwords", func() {
			cpu.WriteReg(1, 0xFFFFFFFF00000001)
			cpu.WriteReg(2, 1)
			operate(insts.OpINTA, 1, 2, insts.FnADDQ, 3)
			Expect(cpu.ReadReg(3)).To(Equal(uint64(0xFFFFFFFF00000002)))
		})

		It("should use the 8-bit literal as operand b", func() {
			cpu.WriteReg(1, 10)
			operateLit(insts.OpINTA, 1, 255, insts.FnADDQ, 3)
			Expect(cpu.ReadReg(3)).To(Equal(uint64(265)))
		})

		It("should wrap ADDL and sign-extend the longword result", func() {
			cpu.WriteReg(1, 0x7FFFFFFF)
			cpu.WriteReg(2, 1)
			out := operate(insts.OpINTA, 1, 2, insts.FnADDL, 3)
			Expect(out.Exception).To(Equal(emu.ExcNone))
			Expect(cpu.ReadReg(3)).To(Equal(uint64(0xFFFFFFFF80000000)))
		})

		It("should trap ADDLV on longword overflow", func() {
			cpu.WriteReg(1, 0x7FFFFFFF)
			cpu.WriteReg(2, 1)
			out := operate(insts.OpINTA, 1, 2, insts.FnADDLV, 3)
			Expect(out.Exception).To(Equal(emu.ExcIntegerOverflow))
		})

		It("should trap ADDQV on quadword overflow", func() {
			cpu.WriteReg(1, 0x7FFFFFFFFFFFFFFF)
			cpu.WriteReg(2, 1)
			out := operate(insts.OpINTA, 1, 2, insts.FnADDQV, 3)
			Expect(out.Exception).To(Equal(emu.ExcIntegerOverflow))
		})

		It("should subtract quadwords", func() {
			cpu.WriteReg(1, 5)
			cpu.WriteReg(2, 7)
			operate(insts.OpINTA, 1, 2, insts.FnSUBQ, 3)
			Expect(cpu.ReadReg(3)).To(Equal(uint64(0xFFFFFFFFFFFFFFFE)))
		})

		It("should trap SUBLV on longword overflow", func() {
			cpu.WriteReg(1, 0x80000000) // most negative int32
			cpu.WriteReg(2, 1)
			out := operate(insts.OpINTA, 1, 2, insts.FnSUBLV, 3)
			Expect(out.Exception).To(Equal(emu.ExcIntegerOverflow))
		})
	})

	Context("scaled addition", func() {
		It("should scale by four", func() {
			cpu.WriteReg(1, 3)
			cpu.WriteReg(2, 100)
			operate(insts.OpINTA, 1, 2, insts.FnS4ADDQ, 3)
			Expect(cpu.ReadReg(3)).To(Equal(uint64(112)))
		})

		It("should scale by eight and sign-extend the longword form", func() {
			cpu.WriteReg(1, 0x10000000)
			cpu.WriteReg(2, 0)
			operate(insts.OpINTA, 1, 2, insts.FnS8ADDL, 3)
			Expect(cpu.ReadReg(3)).To(Equal(uint64(0xFFFFFFFF80000000)))
		})

		It("should subtract the scaled operand", func() {
			cpu.WriteReg(1, 10)
			cpu.WriteReg(2, 4)
			operate(insts.OpINTA, 1, 2, insts.FnS4SUBQ, 3)
			Expect(cpu.ReadReg(3)).To(Equal(uint64(36)))
		})
	})

	Context("comparisons", func() {
		It("should compare for equality", func() {
			cpu.WriteReg(1, 42)
			cpu.WriteReg(2, 42)
			operate(insts.OpINTA, 1, 2, insts.FnCMPEQ, 3)
			Expect(cpu.ReadReg(3)).To(Equal(uint64(1)))

			cpu.WriteReg(2, 43)
			operate(insts.OpINTA, 1, 2, insts.FnCMPEQ, 3)
			Expect(cpu.ReadReg(3)).To(Equal(uint64(0)))
		})

		It("should compare signed", func() {
			cpu.WriteReg(1, 0xFFFFFFFFFFFFFFFF) // -1
			cpu.WriteReg(2, 1)
			operate(insts.OpINTA, 1, 2, insts.FnCMPLT, 3)
			Expect(cpu.ReadReg(3)).To(Equal(uint64(1)))
		})

		It("should compare unsigned", func() {
			cpu.WriteReg(1, 0xFFFFFFFFFFFFFFFF)
			cpu.WriteReg(2, 1)
			operate(insts.OpINTA, 1, 2, insts.FnCMPULT, 3)
			Expect(cpu.ReadReg(3)).To(Equal(uint64(0)))
		})

		It("should honor CMPLE on equal operands", func() {
			cpu.WriteReg(1, 9)
			cpu.WriteReg(2, 9)
			operate(insts.OpINTA, 1, 2, insts.FnCMPLE, 3)
			Expect(cpu.ReadReg(3)).To(Equal(uint64(1)))
		})

		It("should build the CMPBGE byte mask", func() {
			cpu.WriteReg(1, 0x0102030405060708)
			cpu.WriteReg(2, 0x0102030405060708)
			operate(insts.OpINTA, 1, 2, insts.FnCMPBGE, 3)
			Expect(cpu.ReadReg(3)).To(Equal(uint64(0xFF)))

			// A zero byte in Ra loses against any nonzero byte of Rb.
			cpu.WriteReg(1, 0x00FF000000000000)
			cpu.WriteReg(2, 0x0100FF0000000000)
			operate(insts.OpINTA, 1, 2, insts.FnCMPBGE, 3)
			Expect(cpu.ReadReg(3)).To(Equal(uint64(0x5F)))
		})
	})

	Context("logical operations", func() {
		It("should AND, OR, and XOR", func() {
			cpu.WriteReg(1, 0xF0F0)
			cpu.WriteReg(2, 0xFF00)

			operate(insts.OpINTL, 1, 2, insts.FnAND, 3)
			Expect(cpu.ReadReg(3)).To(Equal(uint64(0xF000)))

			operate(insts.OpINTL, 1, 2, insts.FnBIS, 3)
			Expect(cpu.ReadReg(3)).To(Equal(uint64(0xFFF0)))

			operate(insts.OpINTL, 1, 2, insts.FnXOR, 3)
			Expect(cpu.ReadReg(3)).To(Equal(uint64(0x0FF0)))
		})

		It("should clear bits with BIC", func() {
			cpu.WriteReg(1, 0xFFFF)
			cpu.WriteReg(2, 0x00FF)
			operate(insts.OpINTL, 1, 2, insts.FnBIC, 3)
			Expect(cpu.ReadReg(3)).To(Equal(uint64(0xFF00)))
		})

		It("should OR with the complement via ORNOT", func() {
			cpu.WriteReg(1, 0)
			cpu.WriteReg(2, 0xFFFFFFFFFFFFFFFE)
			operate(insts.OpINTL, 1, 2, insts.FnORNOT, 3)
			Expect(cpu.ReadReg(3)).To(Equal(uint64(1)))
		})

		It("should compute EQV as XOR with the complement", func() {
			cpu.WriteReg(1, 0xAAAA)
			cpu.WriteReg(2, 0xAAAA)
			operate(insts.OpINTL, 1, 2, insts.FnEQV, 3)
			Expect(cpu.ReadReg(3)).To(Equal(uint64(0xFFFFFFFFFFFFFFFF)))
		})
	})

	Context("implementation queries", func() {
		It("should clear the implemented feature bits with AMASK", func() {
			cpu.WriteReg(2, 0x307)
			operate(insts.OpINTL, 31, 2, insts.FnAMASK, 3)
			// EV6 implements BWX, FIX, MVI, and precise traps but not CIX.
			Expect(cpu.ReadReg(3)).To(Equal(uint64(0x004)))
		})

		It("should report all features on EV67", func() {
			e := emu.NewEngine(emu.WithEVFamily(emu.EV67))
			e.CPU(0).WriteReg(2, 0x307)
			e.Step(0, insts.EncodeOperate(insts.OpINTL, 31, 2, insts.FnAMASK, 3), 0)
			Expect(e.CPU(0).ReadReg(3)).To(Equal(uint64(0)))
		})

		It("should report the implementation version", func() {
			operate(insts.OpINTL, 31, 31, insts.FnIMPLVER, 3)
			Expect(cpu.ReadReg(3)).To(Equal(uint64(2)))

			e := emu.NewEngine(emu.WithEVFamily(emu.EV4))
			e.Step(0, insts.EncodeOperate(insts.OpINTL, 31, 31, insts.FnIMPLVER, 3), 0)
			Expect(e.CPU(0).ReadReg(3)).To(Equal(uint64(0)))
		})
	})

	Context("shifts", func() {
		It("should shift left by the low six bits of the count", func() {
			cpu.WriteReg(1, 1)
			cpu.WriteReg(2, 65) // 65 & 0x3F = 1
			operate(insts.OpINTS, 1, 2, insts.FnSLL, 3)
			Expect(cpu.ReadReg(3)).To(Equal(uint64(2)))
		})

		It("should shift right logically", func() {
			cpu.WriteReg(1, 0x8000000000000000)
			operateLit(insts.OpINTS, 1, 63, insts.FnSRL, 3)
			Expect(cpu.ReadReg(3)).To(Equal(uint64(1)))
		})

		It("should shift right arithmetically", func() {
			cpu.WriteReg(1, 0x8000000000000000)
			operateLit(insts.OpINTS, 1, 63, insts.FnSRA, 3)
			Expect(cpu.ReadReg(3)).To(Equal(uint64(0xFFFFFFFFFFFFFFFF)))
		})
	})

	Context("multiplication", func() {
		It("should multiply longwords and sign-extend", func() {
			cpu.WriteReg(1, 0xFFFFFFFFFFFFFFFF) // -1
			cpu.WriteReg(2, 5)
			operate(insts.OpINTM, 1, 2, insts.FnMULL, 3)
			Expect(cpu.ReadReg(3)).To(Equal(uint64(0xFFFFFFFFFFFFFFFB)))
		})

		It("should wrap MULL silently on overflow", func() {
			cpu.WriteReg(1, 0x40000000)
			cpu.WriteReg(2, 4)
			out := operate(insts.OpINTM, 1, 2, insts.FnMULL, 3)
			Expect(out.Exception).To(Equal(emu.ExcNone))
			Expect(cpu.ReadReg(3)).To(Equal(uint64(0)))
		})

		It("should trap MULLV on overflow", func() {
			cpu.WriteReg(1, 0x40000000)
			cpu.WriteReg(2, 4)
			out := operate(insts.OpINTM, 1, 2, insts.FnMULLV, 3)
			Expect(out.Exception).To(Equal(emu.ExcIntegerOverflow))
		})

		It("should multiply quadwords", func() {
			cpu.WriteReg(1, 1<<32)
			cpu.WriteReg(2, 3)
			operate(insts.OpINTM, 1, 2, insts.FnMULQ, 3)
			Expect(cpu.ReadReg(3)).To(Equal(uint64(3) << 32))
		})

		It("should produce the high half with UMULH", func() {
			cpu.WriteReg(1, 1<<32)
			cpu.WriteReg(2, 1<<32)
			operate(insts.OpINTM, 1, 2, insts.FnUMULH, 3)
			Expect(cpu.ReadReg(3)).To(Equal(uint64(1)))
		})
	})

	Context("register 31", func() {
		It("should read as zero", func() {
			cpu.WriteReg(1, 7)
			operate(insts.OpINTA, 1, 31, insts.FnADDQ, 3)
			Expect(cpu.ReadReg(3)).To(Equal(uint64(7)))
		})

		It("should discard writes", func() {
			cpu.WriteReg(1, 7)
			cpu.WriteReg(2, 8)
			operate(insts.OpINTA, 1, 2, insts.FnADDQ, 31)
			Expect(cpu.ReadReg(31)).To(Equal(uint64(0)))
		})
	})

	Context("wrap accounting", func() {
		It("should count silent overflow wraps", func() {
			unit := emu.NewIntUnit(emu.EV6)
			c := emu.NewCPU(0)
			c.WriteReg(1, 0x7FFFFFFF)
			c.WriteReg(2, 1)
			inst := decodeWord(insts.EncodeOperate(insts.OpINTA, 1, 2, insts.FnADDL, 3))
			var out emu.Outcome

			Expect(unit.Execute(c, &inst, &out)).To(Succeed())
			Expect(unit.OverflowWraps()).To(Equal(uint64(1)))
		})
	})
})

// decodeWord decodes a single instruction word for direct unit tests.
func decodeWord(word uint32) insts.Instruction {
	return insts.NewDecoder().Decode(word)
}
