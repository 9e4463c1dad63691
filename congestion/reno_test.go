package congestion_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/quicgo/congestion"
)

var _ = Describe("RenoController", func() {
	base := time.Now()

	It("seeds the initial window per RFC 9002 §7.2", func() {
		c := congestion.NewRenoController(1200)
		Expect(c.CongestionWindow()).To(Equal(uint64(12000)))
		Expect(c.InSlowStart()).To(BeTrue())
	})

	It("grows the window by the full acked size during slow start", func() {
		c := congestion.NewRenoController(1200)
		before := c.CongestionWindow()
		c.OnPacketSent(base, 1200, true)
		c.OnPacketAcked(base, 1200)
		Expect(c.CongestionWindow()).To(Equal(before + 1200))
	})

	It("halves the window and enters recovery on loss", func() {
		c := congestion.NewRenoController(1200)
		before := c.CongestionWindow()
		c.OnPacketSent(base, 1200, true)
		c.OnPacketLost(base, 1200)

		Expect(c.CongestionWindow()).To(Equal(before / 2))
		Expect(c.InSlowStart()).To(BeFalse())
		Expect(c.InRecovery(base)).To(BeTrue())
	})

	It("does not grow the window for acks of packets sent during recovery", func() {
		c := congestion.NewRenoController(1200)
		c.OnPacketSent(base, 1200, true)
		c.OnPacketLost(base, 1200)
		afterLoss := c.CongestionWindow()

		// A retransmission sent at the same instant recovery began is
		// still considered part of the recovery period.
		c.OnPacketAcked(base, 1200)
		Expect(c.CongestionWindow()).To(Equal(afterLoss))
	})

	It("grows by a fraction of a datagram per acked byte once past ssthresh", func() {
		c := congestion.NewRenoController(1200)
		c.OnPacketSent(base, 1200, true)
		c.OnPacketLost(base, 1200) // cwnd -> 6000, ssthresh -> 6000

		later := base.Add(time.Second)
		c.OnPacketSent(later, 6000, true)
		before := c.CongestionWindow()
		c.OnPacketAcked(later, 6000)
		Expect(c.CongestionWindow()).To(BeNumerically(">", before))
		Expect(c.InSlowStart()).To(BeFalse())
	})

	It("collapses to the minimum window on persistent congestion", func() {
		c := congestion.NewRenoController(1200)
		c.OnPersistentCongestion()
		Expect(c.CongestionWindow()).To(Equal(uint64(2400)))
	})

	It("reports available bytes as the window minus bytes in flight", func() {
		c := congestion.NewRenoController(1200)
		c.OnPacketSent(base, 1200, true)
		Expect(c.BytesInFlight()).To(Equal(uint64(1200)))
		Expect(c.AvailableBytes()).To(Equal(c.CongestionWindow() - 1200))
	})
})
