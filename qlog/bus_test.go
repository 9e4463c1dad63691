package qlog_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/quicgo/qlog"
)

var _ = Describe("Bus", func() {
	It("reports disabled for a kind with no subscribers", func() {
		b := qlog.NewBus()
		Expect(b.Enabled(qlog.EventPacketSent)).To(BeFalse())
	})

	It("fires only subscribers whose mask includes the kind", func() {
		b := qlog.NewBus()
		var sentCount, lostCount int

		b.Subscribe(qlog.EventPacketSent, func(kind qlog.EventKind, data interface{}) { sentCount++ })
		b.Subscribe(qlog.EventPacketLost, func(kind qlog.EventKind, data interface{}) { lostCount++ })

		Expect(b.Enabled(qlog.EventPacketSent)).To(BeTrue())
		b.Fire(qlog.EventPacketSent, nil)
		Expect(sentCount).To(Equal(1))
		Expect(lostCount).To(Equal(0))
	})

	It("stops dispatching after cancel and recomputes the mask", func() {
		b := qlog.NewBus()
		var count int
		cancel := b.Subscribe(qlog.EventPacketAcked, func(kind qlog.EventKind, data interface{}) { count++ })

		cancel()
		Expect(b.Enabled(qlog.EventPacketAcked)).To(BeFalse())
		b.Fire(qlog.EventPacketAcked, nil)
		Expect(count).To(Equal(0))
	})

	It("dispatches one event to every matching multi-mask subscriber", func() {
		b := qlog.NewBus()
		var calls []qlog.EventKind
		b.Subscribe(qlog.EventPacketSent|qlog.EventPacketLost, func(kind qlog.EventKind, data interface{}) {
			calls = append(calls, kind)
		})

		b.Fire(qlog.EventPacketSent, nil)
		b.Fire(qlog.EventPacketLost, nil)
		b.Fire(qlog.EventByteEvent, nil) // not subscribed, ignored

		Expect(calls).To(Equal([]qlog.EventKind{qlog.EventPacketSent, qlog.EventPacketLost}))
	})
})

var _ = Describe("Logger", func() {
	It("NopLogger accepts chained Field calls without panicking", func() {
		l := qlog.NopLogger()
		l.Entry(qlog.LevelInfo, "hello").Field("k", "v").Log()
	})
})
