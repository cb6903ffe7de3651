package emu_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/axpsim/emu"
	"github.com/sarchlab/axpsim/insts"
)

var _ = Describe("LoadStoreUnit", func() {
	var (
		engine *emu.Engine
		cpu    *emu.CPU
		mem    *emu.Memory
	)

	BeforeEach(func() {
		engine = emu.NewEngine()
		cpu = engine.CPU(0)
		mem = engine.Memory()
	})

	step := func(word uint32) emu.Outcome {
		return engine.Step(0, word, 0x1000)
	}

	Context("address generation", func() {
		It("should compute LDA as base plus displacement", func() {
			cpu.WriteReg(2, 0x10000)
			step(insts.EncodeMemory(insts.OpLDA, 1, 2, -8))
			Expect(cpu.ReadReg(1)).To(Equal(uint64(0xFFF8)))
		})

		It("should scale the LDAH displacement by 65536", func() {
			cpu.WriteReg(2, 0x100)
			step(insts.EncodeMemory(insts.OpLDAH, 1, 2, 2))
			Expect(cpu.ReadReg(1)).To(Equal(uint64(0x20100)))
		})

		It("should build 32-bit constants from an LDAH/LDA pair", func() {
			step(insts.EncodeMemory(insts.OpLDAH, 1, 31, 0x1234))
			engine.Step(0, insts.EncodeMemory(insts.OpLDA, 1, 1, 0x5678), 0x1004)
			Expect(cpu.ReadReg(1)).To(Equal(uint64(0x12345678)))
		})
	})

	Context("integer loads and stores", func() {
		It("should round-trip a quadword", func() {
			cpu.WriteReg(1, 0x0123456789ABCDEF)
			cpu.WriteReg(2, 0x2000)

			step(insts.EncodeMemory(insts.OpSTQ, 1, 2, 0x10))
			step(insts.EncodeMemory(insts.OpLDQ, 3, 2, 0x10))

			Expect(cpu.ReadReg(3)).To(Equal(uint64(0x0123456789ABCDEF)))
		})

		It("should sign-extend LDL", func() {
			mem.Write32(0x2000, 0x80000001)
			cpu.WriteReg(2, 0x2000)

			step(insts.EncodeMemory(insts.OpLDL, 1, 2, 0))

			Expect(cpu.ReadReg(1)).To(Equal(uint64(0xFFFFFFFF80000001)))
		})

		It("should zero-extend the byte and word loads", func() {
			mem.Write8(0x2000, 0xFF)
			mem.Write16(0x2008, 0x8001)
			cpu.WriteReg(2, 0x2000)

			step(insts.EncodeMemory(insts.OpLDBU, 1, 2, 0))
			Expect(cpu.ReadReg(1)).To(Equal(uint64(0xFF)))

			step(insts.EncodeMemory(insts.OpLDWU, 1, 2, 8))
			Expect(cpu.ReadReg(1)).To(Equal(uint64(0x8001)))
		})

		It("should store only the low byte with STB", func() {
			mem.Write64(0x2000, 0xFFFFFFFFFFFFFFFF)
			cpu.WriteReg(1, 0x1234567890ABCD42)
			cpu.WriteReg(2, 0x2000)

			step(insts.EncodeMemory(insts.OpSTB, 1, 2, 3))

			Expect(mem.Read8(0x2003)).To(Equal(uint8(0x42)))
			Expect(mem.Read8(0x2002)).To(Equal(uint8(0xFF)))
			Expect(mem.Read8(0x2004)).To(Equal(uint8(0xFF)))
		})

		It("should record stores in the outcome", func() {
			cpu.WriteReg(1, 0xAB)
			cpu.WriteReg(2, 0x3000)

			out := step(insts.EncodeMemory(insts.OpSTL, 1, 2, 4))

			Expect(out.MemWrites).To(HaveLen(1))
			Expect(out.MemWrites[0].Addr).To(Equal(uint64(0x3004)))
			Expect(out.MemWrites[0].Size).To(Equal(uint8(4)))
			Expect(out.MemWrites[0].Value).To(Equal(uint64(0xAB)))
		})
	})

	Context("alignment", func() {
		It("should fault a misaligned quadword load", func() {
			cpu.WriteReg(2, 0x2001)
			cpu.WriteReg(1, 0x1234)

			out := step(insts.EncodeMemory(insts.OpLDQ, 1, 2, 0))

			Expect(out.Exception).To(Equal(emu.ExcAlignmentFault))
			Expect(out.NextPC).To(Equal(uint64(0x1000)))
			Expect(cpu.ReadReg(1)).To(Equal(uint64(0x1234)))
		})

		It("should fault a misaligned longword store", func() {
			cpu.WriteReg(2, 0x2002)

			out := step(insts.EncodeMemory(insts.OpSTL, 1, 2, 1))

			Expect(out.Exception).To(Equal(emu.ExcAlignmentFault))
			Expect(mem.Read32(0x2003)).To(Equal(uint32(0)))
		})

		It("should allow byte loads at any address", func() {
			mem.Write8(0x2003, 0x7E)
			cpu.WriteReg(2, 0x2003)

			out := step(insts.EncodeMemory(insts.OpLDBU, 1, 2, 0))

			Expect(out.Exception).To(Equal(emu.ExcNone))
			Expect(cpu.ReadReg(1)).To(Equal(uint64(0x7E)))
		})
	})

	Context("unaligned fixup", func() {
		var fixed *emu.Engine

		BeforeEach(func() {
			fixed = emu.NewEngine(emu.WithUnalignedFixup())
		})

		It("should split a quadword load across two aligned accesses", func() {
			fixed.Memory().Write64(0x1000, 0x8877665544332211)
			fixed.Memory().Write64(0x1008, 0x00FFEEDDCCBBAA99)
			fixed.CPU(0).WriteReg(2, 0x1003)

			out := fixed.Step(0, insts.EncodeMemory(insts.OpLDQ, 1, 2, 0), 0)

			Expect(out.Exception).To(Equal(emu.ExcNone))
			Expect(fixed.CPU(0).ReadReg(1)).To(Equal(uint64(0xBBAA998877665544)))
			Expect(fixed.Unaligned().Fixups()).To(Equal(uint64(1)))
		})

		It("should merge a misaligned word store into place", func() {
			fixed.CPU(0).WriteReg(1, 0xBEEF)
			fixed.CPU(0).WriteReg(2, 0x2001)

			out := fixed.Step(0, insts.EncodeMemory(insts.OpSTW, 1, 2, 0), 0)

			Expect(out.Exception).To(Equal(emu.ExcNone))
			Expect(fixed.Memory().Read8(0x2001)).To(Equal(uint8(0xEF)))
			Expect(fixed.Memory().Read8(0x2002)).To(Equal(uint8(0xBE)))
			Expect(fixed.Memory().Read8(0x2000)).To(Equal(uint8(0)))
		})
	})

	Context("floating-point formats", func() {
		It("should widen an S load into the register layout", func() {
			mem.Write32(0x2000, math.Float32bits(1.5))
			cpu.WriteReg(2, 0x2000)

			step(insts.EncodeMemory(insts.OpLDS, 1, 2, 0))

			Expect(cpu.ReadFReg(1)).To(Equal(math.Float64bits(1.5)))
		})

		It("should narrow an S store back to 32 bits", func() {
			cpu.WriteFReg(1, math.Float64bits(2.5))
			cpu.WriteReg(2, 0x2000)

			step(insts.EncodeMemory(insts.OpSTS, 1, 2, 0))

			Expect(mem.Read32(0x2000)).To(Equal(math.Float32bits(2.5)))
		})

		It("should preserve S infinities and NaNs across the widening", func() {
			inf32 := math.Float32bits(float32(math.Inf(-1)))
			mem.Write32(0x2000, inf32)
			cpu.WriteReg(2, 0x2000)

			step(insts.EncodeMemory(insts.OpLDS, 1, 2, 0))

			Expect(cpu.ReadFReg(1)).To(Equal(math.Float64bits(math.Inf(-1))))
		})

		It("should move T values untouched", func() {
			cpu.WriteFReg(1, math.Float64bits(3.14159))
			cpu.WriteReg(2, 0x2000)

			step(insts.EncodeMemory(insts.OpSTT, 1, 2, 0))
			step(insts.EncodeMemory(insts.OpLDT, 3, 2, 0))

			Expect(cpu.ReadFReg(3)).To(Equal(math.Float64bits(3.14159)))
			Expect(mem.Read64(0x2000)).To(Equal(math.Float64bits(3.14159)))
		})

		It("should round-trip G values through the word swap", func() {
			cpu.WriteFReg(1, 0x0123456789ABCDEF)
			cpu.WriteReg(2, 0x2000)

			step(insts.EncodeMemory(insts.OpSTG, 1, 2, 0))
			step(insts.EncodeMemory(insts.OpLDG, 3, 2, 0))

			Expect(cpu.ReadFReg(3)).To(Equal(uint64(0x0123456789ABCDEF)))
			Expect(mem.Read64(0x2000)).To(Equal(uint64(0xCDEF89AB45670123)))
		})
	})

	Context("prefetch hints", func() {
		It("should turn a zero-register load into a hint", func() {
			cpu.WriteReg(2, 0x2001) // misaligned on purpose

			out := step(insts.EncodeMemory(insts.OpLDQ, 31, 2, 0))

			Expect(out.Exception).To(Equal(emu.ExcNone))
			Expect(out.RegWrites).To(BeEmpty())
		})
	})

	Context("direct unit accounting", func() {
		It("should count loads, stores, and prefetches", func() {
			m := emu.NewMemory()
			unit := emu.NewLoadStoreUnit(m)
			c := emu.NewCPU(0)
			c.WriteReg(2, 0x100)
			var out emu.Outcome

			ld := decodeWord(insts.EncodeMemory(insts.OpLDQ, 1, 2, 0))
			st := decodeWord(insts.EncodeMemory(insts.OpSTQ, 1, 2, 8))
			hint := decodeWord(insts.EncodeMemory(insts.OpLDQ, 31, 2, 16))

			Expect(unit.Execute(c, &ld, &out)).To(Succeed())
			Expect(unit.Execute(c, &st, &out)).To(Succeed())
			Expect(unit.Execute(c, &hint, &out)).To(Succeed())

			Expect(unit.Loads()).To(Equal(uint64(1)))
			Expect(unit.Stores()).To(Equal(uint64(1)))
			Expect(unit.Prefetches()).To(Equal(uint64(1)))
		})
	})
})
