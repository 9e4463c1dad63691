package congestion_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/quicgo/congestion"
)

var _ = Describe("RatePacer", func() {
	It("allows an immediate send within the initial burst", func() {
		p := congestion.NewRatePacer(1200)
		Expect(p.TimeUntilSend(time.Now(), 1200)).To(Equal(time.Duration(0)))
	})

	It("delays a send once the configured rate is exhausted", func() {
		p := congestion.NewRatePacer(1200)
		p.SetRate(1200) // 1200 bytes/sec, i.e. one more datagram needs ~1s

		now := time.Now()
		p.OnPacketSent(now, 1200)
		delay := p.TimeUntilSend(now, 1200)
		Expect(delay).To(BeNumerically(">", 0))
	})
})
