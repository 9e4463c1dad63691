package scheduler_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/quicgo/scheduler"
)

var _ = Describe("ShouldWriteData", func() {
	It("reports NoWrite when nothing is pending", func() {
		Expect(scheduler.ShouldWriteData(scheduler.Inputs{})).To(Equal(scheduler.NoWrite))
	})

	It("prefers a due probe over everything else", func() {
		r := scheduler.ShouldWriteData(scheduler.Inputs{
			ProbeDue:      true,
			AckDue:        true,
			HasStreamData: true,
		})
		Expect(r).To(Equal(scheduler.ReasonProbe))
	})

	It("prefers an ack over crypto and stream data", func() {
		r := scheduler.ShouldWriteData(scheduler.Inputs{
			AckDue:        true,
			HasCryptoData: true,
			HasStreamData: true,
		})
		Expect(r).To(Equal(scheduler.ReasonAckDue))
	})

	It("prefers crypto data over stream control frames", func() {
		r := scheduler.ShouldWriteData(scheduler.Inputs{
			HasCryptoData:   true,
			HasResetPending: true,
		})
		Expect(r).To(Equal(scheduler.ReasonCryptoData))
	})

	It("falls through to stream data when nothing higher priority is pending", func() {
		r := scheduler.ShouldWriteData(scheduler.Inputs{HasStreamData: true})
		Expect(r).To(Equal(scheduler.ReasonStreamData))
	})

	It("prefers ping and datagram over stream data", func() {
		r := scheduler.ShouldWriteData(scheduler.Inputs{
			PingRequested: true,
			HasStreamData: true,
		})
		Expect(r).To(Equal(scheduler.ReasonPing))

		r = scheduler.ShouldWriteData(scheduler.Inputs{
			HasDatagram:   true,
			HasStreamData: true,
		})
		Expect(r).To(Equal(scheduler.ReasonDatagram))
	})
})
