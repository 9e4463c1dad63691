package stream_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/quicgo/flowcontrol"
	"github.com/nabbar/quicgo/stream"
)

func newSendStream() *stream.SendStream {
	conn := flowcontrol.NewConnectionFlowController(1 << 20, 1<<20)
	conn.SetInitialStreamLimits(1<<18, 1<<18, 1<<18)
	fc := flowcontrol.NewStreamFlowController(conn, true)
	return stream.NewSendStream(4, fc)
}

var _ = Describe("SendStream", func() {
	It("starts in Ready and moves to Send on first write", func() {
		s := newSendStream()
		Expect(s.State()).To(Equal(stream.SendStateReady))
		_, err := s.Write([]byte("hello"), false)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.State()).To(Equal(stream.SendStateSend))
	})

	It("drains written bytes in order and reports FIN on the last chunk", func() {
		s := newSendStream()
		_, _ = s.Write([]byte("hello"), true)

		data, offset, fin := s.DrainForFrame(3)
		Expect(data).To(Equal([]byte("hel")))
		Expect(offset).To(Equal(uint64(0)))
		Expect(fin).To(BeFalse())

		data, offset, fin = s.DrainForFrame(10)
		Expect(data).To(Equal([]byte("lo")))
		Expect(offset).To(Equal(uint64(3)))
		Expect(fin).To(BeTrue())
		Expect(s.State()).To(Equal(stream.SendStateDataSent))
	})

	It("moves to DataRecvd once all bytes up to FIN are acked", func() {
		s := newSendStream()
		_, _ = s.Write([]byte("hi"), true)
		_, _, _ = s.DrainForFrame(10)
		s.OnAcked(0, 2)
		Expect(s.State()).To(Equal(stream.SendStateDataRecvd))
	})

	It("rejects writes after FIN", func() {
		s := newSendStream()
		_, _ = s.Write([]byte("hi"), true)
		_, err := s.Write([]byte("more"), false)
		Expect(err).To(HaveOccurred())
	})

	It("still offers the reliable prefix for framing after a RESET_STREAM_AT", func() {
		s := newSendStream()
		_, _ = s.Write([]byte("0123456789"), false)

		reliable := uint64(4)
		Expect(s.Reset(1, &reliable)).NotTo(HaveOccurred())
		Expect(s.State()).To(Equal(stream.SendStateResetSent))

		data, offset, _ := s.DrainForFrame(10)
		Expect(data).To(Equal([]byte("0123")))
		Expect(offset).To(Equal(uint64(0)))

		data, _, _ = s.DrainForFrame(10)
		Expect(data).To(BeEmpty())
	})

	It("offers nothing after an unreliable reset", func() {
		s := newSendStream()
		_, _ = s.Write([]byte("0123456789"), false)
		Expect(s.Reset(1, nil)).NotTo(HaveOccurred())

		data, _, _ := s.DrainForFrame(10)
		Expect(data).To(BeEmpty())
	})

	It("fires a byte event once its offset is acked", func() {
		s := newSendStream()
		_, _ = s.Write([]byte("hello"), false)
		_, _, _ = s.DrainForFrame(10)

		fired := false
		Expect(s.RegisterByteEvent(5, func() { fired = true })).NotTo(HaveOccurred())
		s.OnAcked(0, 3)
		Expect(fired).To(BeFalse())
		s.OnAcked(3, 2)
		Expect(fired).To(BeTrue())
	})

	It("rejects a second callback registered at the same offset", func() {
		s := newSendStream()
		Expect(s.RegisterByteEvent(5, func() {})).NotTo(HaveOccurred())
		Expect(s.RegisterByteEvent(5, func() {})).To(HaveOccurred())
	})

	It("merges acked intervals received out of order instead of discarding the reordered one", func() {
		s := newSendStream()
		_, _ = s.Write([]byte("helloworld"), true)
		_, _, _ = s.DrainForFrame(10)

		fired := false
		Expect(s.RegisterByteEvent(9, func() { fired = true })).NotTo(HaveOccurred())

		s.OnAcked(5, 5) // "world" acked first
		Expect(fired).To(BeFalse())
		Expect(s.State()).To(Equal(stream.SendStateDataSent))

		s.OnAcked(0, 5) // "hello" acked second, filling the gap back to 0
		Expect(fired).To(BeTrue())
		Expect(s.State()).To(Equal(stream.SendStateDataRecvd))
	})

	It("re-offers a lost range for retransmission ahead of any new data", func() {
		s := newSendStream()
		_, _ = s.Write([]byte("hello"), false)
		data, offset, _ := s.DrainForFrame(10)
		Expect(data).To(Equal([]byte("hello")))
		Expect(offset).To(Equal(uint64(0)))

		_, _ = s.Write([]byte("world"), false)
		Expect(s.PendingBytes()).To(Equal(uint64(5)))

		s.MarkLost(0, 5)
		Expect(s.PendingBytes()).To(Equal(uint64(10)))

		data, offset, _ = s.DrainForFrame(10)
		Expect(data).To(Equal([]byte("hello")))
		Expect(offset).To(Equal(uint64(0)))

		data, offset, _ = s.DrainForFrame(10)
		Expect(data).To(Equal([]byte("world")))
		Expect(offset).To(Equal(uint64(5)))
	})

	It("does not re-offer a lost range that a reordered ACK already covered", func() {
		s := newSendStream()
		_, _ = s.Write([]byte("hello"), false)
		_, _, _ = s.DrainForFrame(10)

		s.OnAcked(0, 5)
		s.MarkLost(0, 5)
		Expect(s.PendingBytes()).To(Equal(uint64(0)))
	})
})
