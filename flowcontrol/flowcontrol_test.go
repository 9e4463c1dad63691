package flowcontrol_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/quicgo/flowcontrol"
)

var _ = Describe("Window", func() {
	It("reports available send credit against the peer limit", func() {
		w := flowcontrol.NewSendWindow(100)
		Expect(w.Available()).To(Equal(uint64(100)))
		Expect(w.AddSent(40)).To(BeTrue())
		Expect(w.Available()).To(Equal(uint64(60)))
	})

	It("reports send over the peer limit as a violation", func() {
		w := flowcontrol.NewSendWindow(10)
		Expect(w.AddSent(11)).To(BeFalse())
	})

	It("ignores a peer limit update that would shrink the window", func() {
		w := flowcontrol.NewSendWindow(100)
		w.UpdatePeerLimit(50)
		Expect(w.PeerLimit()).To(Equal(uint64(100)))
		w.UpdatePeerLimit(150)
		Expect(w.PeerLimit()).To(Equal(uint64(150)))
	})

	It("signals BLOCKED exactly once per limit", func() {
		w := flowcontrol.NewSendWindow(10)
		w.AddSent(10)
		Expect(w.ShouldSendBlocked()).To(BeTrue())
		w.MarkBlockedSent()
		Expect(w.ShouldSendBlocked()).To(BeFalse())
		w.UpdatePeerLimit(20)
		Expect(w.ShouldSendBlocked()).To(BeFalse())
	})

	It("rejects received data beyond the local limit", func() {
		w := flowcontrol.NewReceiveWindow(100)
		Expect(w.AddReceived(50)).NotTo(HaveOccurred())
		Expect(w.AddReceived(101)).To(HaveOccurred())
	})

	It("auto-tunes the receive limit upward past the halfway point", func() {
		w := flowcontrol.NewReceiveWindow(100)
		Expect(w.AddReceived(60)).NotTo(HaveOccurred())
		limit, due := w.MaybeUpdateLimit()
		Expect(due).To(BeTrue())
		Expect(limit).To(Equal(uint64(200)))
	})
})

var _ = Describe("ConnectionFlowController and StreamFlowController", func() {
	It("bounds stream send credit by both stream and connection windows", func() {
		conn := flowcontrol.NewConnectionFlowController(1000, 1000)
		conn.SetInitialStreamLimits(300, 300, 300)
		s := flowcontrol.NewStreamFlowController(conn, true)

		Expect(s.SendCredit()).To(Equal(uint64(300)))

		conn.Send().AddSent(800)
		Expect(s.SendCredit()).To(Equal(uint64(200)))
	})

	It("propagates received bytes to both stream and connection receive windows", func() {
		conn := flowcontrol.NewConnectionFlowController(1000, 1000)
		conn.SetInitialStreamLimits(300, 300, 300)
		s := flowcontrol.NewStreamFlowController(conn, true)

		Expect(s.AddReceived(100)).NotTo(HaveOccurred())
		Expect(conn.Receive().Consumed()).To(Equal(uint64(100)))
	})

	It("rejects a stream receive beyond the connection-level limit", func() {
		conn := flowcontrol.NewConnectionFlowController(50, 1000)
		conn.SetInitialStreamLimits(300, 300, 300)
		s := flowcontrol.NewStreamFlowController(conn, true)

		Expect(s.AddReceived(100)).To(HaveOccurred())
	})
})
