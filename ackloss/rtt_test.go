package ackloss_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/quicgo/ackloss"
)

var _ = Describe("RTTStats", func() {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	It("matches the RTT baseline scenario", func() {
		r := ackloss.NewRTTStats()
		sample := r.Update(base, base.Add(31*time.Millisecond), 5*time.Millisecond)

		Expect(sample.Latest).To(Equal(31 * time.Millisecond))
		Expect(sample.NoAckDelayAvailable).To(BeTrue())
		Expect(sample.LatestNoAckDelay).To(Equal(26 * time.Millisecond))
		Expect(r.MinRTT()).To(Equal(31 * time.Millisecond))

		minNoDelay, ok := r.MinRTTNoAckDelay()
		Expect(ok).To(BeTrue())
		Expect(minNoDelay).To(Equal(26 * time.Millisecond))
	})

	It("matches the ack-delay-exceeds-RTT scenario", func() {
		r := ackloss.NewRTTStats()
		sample := r.Update(base, base.Add(25*time.Millisecond), 26*time.Millisecond)

		Expect(sample.NoAckDelayAvailable).To(BeFalse())
		Expect(r.MinRTT()).To(Equal(25 * time.Millisecond))

		_, ok := r.MinRTTNoAckDelay()
		Expect(ok).To(BeFalse())
	})

	It("matches the zero-time RTT scenario", func() {
		r := ackloss.NewRTTStats()
		sample := r.Update(base, base, 0)

		Expect(sample.Latest).To(Equal(time.Duration(0)))
		minNoDelay, ok := r.MinRTTNoAckDelay()
		Expect(ok).To(BeTrue())
		Expect(r.MinRTT()).To(Equal(minNoDelay))
	})
})
