package stream_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/quicgo/flowcontrol"
	"github.com/nabbar/quicgo/stream"
)

func newManager(isServer bool) *stream.Manager {
	conn := flowcontrol.NewConnectionFlowController(1<<20, 1<<20)
	conn.SetInitialStreamLimits(1<<18, 1<<18, 1<<18)
	m := stream.NewManager(isServer, conn)
	m.SetLimits(10, 10, 10, 10)
	return m
}

var _ = Describe("Manager", func() {
	It("assigns client-initiated bidi stream IDs starting at 0", func() {
		m := newManager(false)
		send, recv, err := m.OpenBidi()
		Expect(err).NotTo(HaveOccurred())
		Expect(send.ID()).To(Equal(uint64(0)))
		Expect(recv).NotTo(BeNil())

		send2, _, err := m.OpenBidi()
		Expect(err).NotTo(HaveOccurred())
		Expect(send2.ID()).To(Equal(uint64(4)))
	})

	It("assigns server-initiated uni stream IDs with the server+uni bits set", func() {
		m := newManager(true)
		send, err := m.OpenUni()
		Expect(err).NotTo(HaveOccurred())
		Expect(send.ID() & 0x3).To(Equal(uint64(0x3)))
	})

	It("rejects opening a stream beyond the peer-advertised limit", func() {
		m := newManager(false)
		m.SetLimits(10, 10, 0, 10)
		_, _, err := m.OpenBidi()
		Expect(err).To(HaveOccurred())
	})

	It("accepts a peer-initiated stream on first reference", func() {
		m := newManager(false)
		// server-initiated bidi stream (id&0x3 == 1)
		send, recv, err := m.GetOrAccept(1)
		Expect(err).NotTo(HaveOccurred())
		Expect(recv).NotTo(BeNil())
		Expect(send).NotTo(BeNil())
		Expect(m.Count()).To(Equal(1))
	})

	It("rejects referencing an unopened stream this endpoint should have created", func() {
		m := newManager(false)
		// client-initiated bidi stream (id&0x3 == 0) this client never opened
		_, _, err := m.GetOrAccept(400)
		Expect(err).To(HaveOccurred())
	})

	It("rejects a peer-initiated stream beyond the locally advertised limit", func() {
		m := newManager(false)
		m.SetLimits(0, 10, 10, 10)
		_, _, err := m.GetOrAccept(1)
		Expect(err).To(HaveOccurred())
	})

	It("lists writable streams in ascending ID order", func() {
		m := newManager(false)
		s2, _, _ := m.OpenBidi()
		s1, _, _ := m.OpenBidi()
		_, _ = s1.Write([]byte("x"), false)
		_, _ = s2.Write([]byte("y"), false)

		w := m.Writable()
		Expect(w).To(HaveLen(2))
		Expect(w[0].ID()).To(BeNumerically("<", w[1].ID()))
	})
})
