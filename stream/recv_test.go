package stream_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/quicgo/flowcontrol"
	"github.com/nabbar/quicgo/stream"
)

func newRecvStream() *stream.ReceiveStream {
	conn := flowcontrol.NewConnectionFlowController(1<<20, 1<<20)
	conn.SetInitialStreamLimits(1<<18, 1<<18, 1<<18)
	fc := flowcontrol.NewStreamFlowController(conn, true)
	return stream.NewReceiveStream(4, fc)
}

var _ = Describe("ReceiveStream", func() {
	It("reassembles out-of-order chunks", func() {
		r := newRecvStream()
		Expect(r.HandleStreamFrame(5, []byte("world"), true)).NotTo(HaveOccurred())
		Expect(r.HandleStreamFrame(0, []byte("hello"), false)).NotTo(HaveOccurred())

		buf := make([]byte, 32)
		n, err := r.Read(buf)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(buf[:n])).To(Equal("helloworld"))
		Expect(r.State()).To(Equal(stream.RecvStateDataRead))
	})

	It("rejects a FIN offset inconsistent with a previously seen final size", func() {
		r := newRecvStream()
		Expect(r.HandleStreamFrame(0, []byte("hello"), true)).NotTo(HaveOccurred())
		err := r.HandleStreamFrame(10, []byte("x"), true)
		Expect(err).To(HaveOccurred())
	})

	It("rejects data extending past a known final size", func() {
		r := newRecvStream()
		Expect(r.HandleStreamFrame(0, []byte("hello"), true)).NotTo(HaveOccurred())
		err := r.HandleStreamFrame(5, []byte("oops"), false)
		Expect(err).To(HaveOccurred())
	})

	It("delivers the reliable prefix of a RESET_STREAM_AT before resetting", func() {
		r := newRecvStream()
		Expect(r.HandleStreamFrame(0, []byte("ab"), false)).NotTo(HaveOccurred())

		reliable := uint64(4)
		Expect(r.HandleResetStream(1, 10, &reliable)).NotTo(HaveOccurred())
		Expect(r.State()).To(Equal(stream.RecvStateSizeKnown))

		Expect(r.HandleStreamFrame(2, []byte("cd"), false)).NotTo(HaveOccurred())

		buf := make([]byte, 32)
		n, err := r.Read(buf)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(buf[:n])).To(Equal("abcd"))
	})

	It("resets immediately when the reliable prefix is already fully delivered", func() {
		r := newRecvStream()
		Expect(r.HandleStreamFrame(0, []byte("abcd"), false)).NotTo(HaveOccurred())

		reliable := uint64(4)
		Expect(r.HandleResetStream(7, 10, &reliable)).NotTo(HaveOccurred())
		Expect(r.State()).To(Equal(stream.RecvStateResetRecvd))
		Expect(*r.ResetErrorCode()).To(Equal(uint64(7)))
	})
})
