package scheduler_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/quicgo/scheduler"
)

var _ = Describe("AmplificationLimiter", func() {
	It("allows up to 3x what the client has sent", func() {
		a := scheduler.NewAmplificationLimiter()
		a.OnBytesReceived(1200)
		Expect(a.WritableBytes()).To(Equal(uint64(3600)))
	})

	It("shrinks the remaining budget as bytes are sent", func() {
		a := scheduler.NewAmplificationLimiter()
		a.OnBytesReceived(1200)
		a.OnBytesSent(3000)
		Expect(a.WritableBytes()).To(Equal(uint64(600)))
	})

	It("reports zero once the cap is reached", func() {
		a := scheduler.NewAmplificationLimiter()
		a.OnBytesReceived(1200)
		a.OnBytesSent(3600)
		Expect(a.WritableBytes()).To(Equal(uint64(0)))
	})

	It("lifts the cap once the path is validated", func() {
		a := scheduler.NewAmplificationLimiter()
		a.OnBytesReceived(100)
		a.MarkValidated()
		Expect(a.Validated()).To(BeTrue())
		Expect(a.WritableBytes()).To(Equal(^uint64(0)))
	})
})
