package memsys_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/axpsim/memsys"
)

var _ = Describe("Coherency", func() {
	var tracker *memsys.Coherency

	BeforeEach(func() {
		tracker = memsys.NewCoherency()
	})

	Context("reads", func() {
		It("should grant a lone reader exclusive state", func() {
			Expect(tracker.OnRead(0, 0x1000)).To(Equal(memsys.Exclusive))
			Expect(tracker.StateOf(0, 0x1000)).To(Equal(memsys.Exclusive))
		})

		It("should downgrade an exclusive holder when another CPU reads", func() {
			tracker.OnRead(0, 0x1000)

			Expect(tracker.OnRead(1, 0x1000)).To(Equal(memsys.Shared))
			Expect(tracker.StateOf(0, 0x1000)).To(Equal(memsys.Shared))
			Expect(tracker.Stats().Downgrades).To(Equal(uint64(1)))
		})

		It("should move a modified holder to owned when another CPU reads", func() {
			tracker.OnWrite(0, 0x1000)

			Expect(tracker.OnRead(1, 0x1000)).To(Equal(memsys.Shared))
			Expect(tracker.StateOf(0, 0x1000)).To(Equal(memsys.Owned))
			Expect(tracker.Stats().Interventions).To(Equal(uint64(1)))
		})

		It("should not disturb an existing holder re-reading", func() {
			tracker.OnWrite(0, 0x1000)

			Expect(tracker.OnRead(0, 0x1000)).To(Equal(memsys.Modified))
			Expect(tracker.Stats()).To(Equal(memsys.CoherencyStats{}))
		})

		It("should track lines independently", func() {
			tracker.OnRead(0, 0x1000)

			Expect(tracker.OnRead(1, 0x2000)).To(Equal(memsys.Exclusive))
			Expect(tracker.StateOf(0, 0x1000)).To(Equal(memsys.Exclusive))
		})
	})

	Context("writes", func() {
		It("should invalidate every other holder", func() {
			tracker.OnRead(0, 0x1000)
			tracker.OnRead(1, 0x1000)
			tracker.OnRead(2, 0x1000)

			Expect(tracker.OnWrite(1, 0x1000)).To(Equal(memsys.Modified))
			Expect(tracker.StateOf(0, 0x1000)).To(Equal(memsys.Invalid))
			Expect(tracker.StateOf(2, 0x1000)).To(Equal(memsys.Invalid))
			Expect(tracker.Stats().Invalidations).To(Equal(uint64(2)))
		})

		It("should upgrade a sharer in place", func() {
			tracker.OnRead(0, 0x1000)
			tracker.OnRead(1, 0x1000)

			Expect(tracker.OnWrite(0, 0x1000)).To(Equal(memsys.Modified))
			Expect(tracker.StateOf(1, 0x1000)).To(Equal(memsys.Invalid))
		})
	})

	Context("invalidation", func() {
		It("should drop every claim on a line", func() {
			tracker.OnRead(0, 0x1000)
			tracker.OnRead(1, 0x1000)

			tracker.InvalidateLine(0x1000)

			Expect(tracker.StateOf(0, 0x1000)).To(Equal(memsys.Invalid))
			Expect(tracker.StateOf(1, 0x1000)).To(Equal(memsys.Invalid))
		})
	})

	Context("statistics", func() {
		It("should snapshot and reset", func() {
			tracker.OnRead(0, 0x1000)
			tracker.OnRead(1, 0x1000)
			tracker.OnWrite(0, 0x1000)
			tracker.OnRead(1, 0x1000)

			Expect(tracker.Stats()).To(Equal(memsys.CoherencyStats{
				Invalidations: 1,
				Downgrades:    1,
				Interventions: 1,
			}))

			tracker.Reset()
			Expect(tracker.Stats()).To(Equal(memsys.CoherencyStats{}))
			Expect(tracker.StateOf(0, 0x1000)).To(Equal(memsys.Invalid))
		})
	})
})
