package clock_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"

	"github.com/tracegraph/ctf/clock"
)

var _ = Describe("Class.CyclesToNS", func() {
	DescribeTable("should convert a cycle count to ns-from-origin",
		func(frequency uint64, offsetSec int64, offsetCycles, cycles uint64, wantNS int64) {
			cls, err := clock.New(frequency, offsetSec, offsetCycles)
			Expect(err).NotTo(HaveOccurred())

			got, err := cls.CyclesToNS(cycles)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(wantNS))
		},
		Entry("1GHz, zero origin, zero cycles", uint64(1_000_000_000), int64(0), uint64(0), uint64(0), int64(0)),
		Entry("1GHz, zero origin, 1 cycle == 1ns", uint64(1_000_000_000), int64(0), uint64(0), uint64(1), int64(1)),
		Entry("1GHz, 1s origin offset", uint64(1_000_000_000), int64(1), uint64(0), uint64(0), int64(1_000_000_000)),
		Entry("1GHz, origin offset cycles fold into ns", uint64(1_000_000_000), int64(0), uint64(500_000_000), uint64(0), int64(500_000_000)),
		Entry("low frequency, 500 cycles at 1kHz is half a second", uint64(1000), int64(0), uint64(0), uint64(500), int64(500_000_000)),
	)

	It("rejects a cycle count that overflows the clock's frequency bound", func() {
		cls, err := clock.New(1000, 0, 999)
		Expect(err).NotTo(HaveOccurred())

		_, err = cls.CyclesToNS(^uint64(0))
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Comparable", func() {
	It("treats the same clock class object as comparable to itself", func() {
		cls, err := clock.New(1_000_000_000, 0, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(clock.Comparable(cls, cls)).To(BeTrue())
	})

	It("treats two distinct absolute clock classes as comparable", func() {
		a, _ := clock.New(1_000_000_000, 0, 0)
		b, _ := clock.New(1_000_000_000, 0, 0)
		a.IsAbsolute, b.IsAbsolute = true, true
		Expect(clock.Comparable(a, b)).To(BeTrue())
	})

	It("treats two distinct non-absolute clock classes without a shared UUID as incomparable", func() {
		a, _ := clock.New(1_000_000_000, 0, 0)
		b, _ := clock.New(1_000_000_000, 0, 0)
		Expect(clock.Comparable(a, b)).To(BeFalse())
	})
})
