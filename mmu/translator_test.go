package mmu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/axpsim/emu"
	"github.com/sarchlab/axpsim/mmu"
)

var _ = Describe("Translator", func() {
	var (
		tlb *mmu.TLB
		rec *mmu.CountingRecorder
		tr  *mmu.Translator
	)

	rwx := mmu.FlagValid | mmu.FlagKernel | mmu.FlagUser | mmu.FlagWrite | mmu.FlagExec

	BeforeEach(func() {
		tlb = mmu.NewTLB(mmu.DefaultTLBConfig())
		rec = mmu.NewCountingRecorder()
		tr = mmu.NewTranslator(tlb, rec)
	})

	translate := func(va uint64, kind mmu.Access, mode emu.Mode) mmu.Response {
		return tr.Translate(mmu.Request{VA: va, ASN: 1, Kind: kind, Mode: mode, Now: 7})
	}

	Context("address splitting", func() {
		It("should assemble the physical address from the mapped page and the offset", func() {
			tlb.Insert(1, 0x10000, 0x40000, rwx)

			resp := translate(0x10ABC, mmu.AccessLoad, emu.ModeKernel)

			Expect(resp.Result).To(Equal(mmu.Hit))
			Expect(resp.PA).To(Equal(uint64(0x40ABC)))
			Expect(resp.Flags).To(Equal(rwx))
			Expect(resp.Timestamp).To(Equal(uint64(7)))
		})

		It("should carry all thirteen offset bits through", func() {
			tlb.Insert(1, 0x2000, 0xA000, rwx)

			resp := translate(0x3FFF, mmu.AccessLoad, emu.ModeKernel)

			Expect(resp.Result).To(Equal(mmu.Hit))
			Expect(resp.PA).To(Equal(uint64(0xBFFF)))
		})

		It("should report the slot and tag a hit came from", func() {
			tlb.Insert(1, 0x2000, 0xA000, rwx)
			tlb.Insert(1, 0x4000, 0xC000, rwx)

			resp := translate(0x4000, mmu.AccessLoad, emu.ModeKernel)

			Expect(resp.Result).To(Equal(mmu.Hit))
			Expect(resp.Index).To(Equal(1))
			Expect(resp.VirtualTag).To(Equal(uint64(2)))
		})
	})

	Context("canonical form", func() {
		It("should accept addresses whose high bits replicate bit 47", func() {
			Expect(mmu.Canonical(0)).To(BeTrue())
			Expect(mmu.Canonical(0x00007FFFFFFFFFFF)).To(BeTrue())
			Expect(mmu.Canonical(0xFFFF800000000000)).To(BeTrue())
			Expect(mmu.Canonical(^uint64(0))).To(BeTrue())
		})

		It("should reject addresses whose high bits do not", func() {
			Expect(mmu.Canonical(0x0000800000000000)).To(BeFalse())
			Expect(mmu.Canonical(0x0001000000000000)).To(BeFalse())
			Expect(mmu.Canonical(0xFFFF7FFFFFFFFFFF)).To(BeFalse())
		})

		It("should fail a non-canonical address without consulting the entries", func() {
			resp := translate(0x0000800000001234, mmu.AccessLoad, emu.ModeKernel)

			Expect(resp.Result).To(Equal(mmu.InvalidAddress))
			Expect(resp.PA).To(BeZero())
			Expect(tlb.Stats().Lookups).To(BeZero())
			Expect(rec.Stats().InvalidAddresses).To(Equal(uint64(1)))
		})
	})

	Context("outcome classification", func() {
		It("should miss on an unmapped page and report where it would land", func() {
			resp := translate(0x6000, mmu.AccessLoad, emu.ModeKernel)

			Expect(resp.Result).To(Equal(mmu.Miss))
			Expect(resp.Index).To(Equal(0))
			Expect(resp.VirtualTag).To(Equal(uint64(3)))
			Expect(rec.Stats().Misses).To(Equal(uint64(1)))
		})

		It("should fault on an entry whose valid bit is clear", func() {
			tlb.Insert(1, 0x8000, 0x10000, mmu.FlagKernel|mmu.FlagWrite)

			resp := translate(0x8000, mmu.AccessLoad, emu.ModeKernel)

			Expect(resp.Result).To(Equal(mmu.Fault))
			Expect(rec.Stats().Faults).To(Equal(uint64(1)))
		})

		It("should refuse a store through a read-only mapping", func() {
			tlb.Insert(1, 0xA000, 0x12000, mmu.FlagValid|mmu.FlagKernel)

			resp := translate(0xA000, mmu.AccessStore, emu.ModeKernel)

			Expect(resp.Result).To(Equal(mmu.ProtectionViolation))
			Expect(rec.Stats().ProtectionViolations).To(Equal(uint64(1)))
		})

		It("should refuse an instruction fetch from a no-execute mapping", func() {
			tlb.Insert(1, 0xC000, 0x14000, mmu.FlagValid|mmu.FlagKernel|mmu.FlagWrite)

			resp := translate(0xC000, mmu.AccessIFetch, emu.ModeKernel)

			Expect(resp.Result).To(Equal(mmu.ProtectionViolation))
		})

		It("should keep user mode out of kernel-only pages", func() {
			tlb.Insert(1, 0xE000, 0x16000, mmu.FlagValid|mmu.FlagKernel|mmu.FlagWrite)

			Expect(translate(0xE000, mmu.AccessLoad, emu.ModeKernel).Result).To(Equal(mmu.Hit))
			Expect(translate(0xE000, mmu.AccessLoad, emu.ModeUser).Result).To(Equal(mmu.ProtectionViolation))
		})

		It("should check the kernel enable bit separately from the user one", func() {
			tlb.Insert(1, 0x2000, 0x18000, mmu.FlagValid|mmu.FlagUser)

			Expect(translate(0x2000, mmu.AccessLoad, emu.ModeUser).Result).To(Equal(mmu.Hit))
			Expect(translate(0x2000, mmu.AccessLoad, emu.ModeKernel).Result).To(Equal(mmu.ProtectionViolation))
		})

		It("should let prefetches probe like loads", func() {
			tlb.Insert(1, 0x4000, 0x1A000, mmu.FlagValid|mmu.FlagKernel)

			resp := translate(0x4000, mmu.AccessPrefetch, emu.ModeKernel)

			Expect(resp.Result).To(Equal(mmu.Hit))
			Expect(resp.PA).To(Equal(uint64(0x1A000)))
		})
	})

	Context("outcome recording", func() {
		It("should tally one counter per outcome kind", func() {
			tlb.Insert(1, 0x2000, 0xA000, rwx)
			tlb.Insert(1, 0x4000, 0xC000, mmu.FlagKernel)
			tlb.Insert(1, 0x6000, 0xE000, mmu.FlagValid|mmu.FlagKernel)

			translate(0x2000, mmu.AccessLoad, emu.ModeKernel)
			translate(0x8000, mmu.AccessLoad, emu.ModeKernel)
			translate(0x4000, mmu.AccessLoad, emu.ModeKernel)
			translate(0x6000, mmu.AccessStore, emu.ModeKernel)
			translate(0x0000800000000000, mmu.AccessLoad, emu.ModeKernel)

			Expect(rec.Stats()).To(Equal(mmu.TranslationStats{
				Hits:                 1,
				Misses:               1,
				Faults:               1,
				ProtectionViolations: 1,
				InvalidAddresses:     1,
			}))
		})

		It("should run without a recorder", func() {
			bare := mmu.NewTranslator(tlb, nil)
			tlb.Insert(1, 0x2000, 0xA000, rwx)

			hit := bare.Translate(mmu.Request{VA: 0x2000, ASN: 1, Mode: emu.ModeKernel})
			miss := bare.Translate(mmu.Request{VA: 0x9000, ASN: 1, Mode: emu.ModeKernel})

			Expect(hit.Result).To(Equal(mmu.Hit))
			Expect(miss.Result).To(Equal(mmu.Miss))
		})
	})
})
