package stream_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/quicgo/stream"
)

var _ = Describe("ByteEventRegistry", func() {
	It("fires callbacks in ascending offset order up to the acked frontier", func() {
		r := stream.NewByteEventRegistry()
		var order []int
		Expect(r.Register(30, func() { order = append(order, 30) })).NotTo(HaveOccurred())
		Expect(r.Register(10, func() { order = append(order, 10) })).NotTo(HaveOccurred())
		Expect(r.Register(20, func() { order = append(order, 20) })).NotTo(HaveOccurred())

		r.Fire(20)
		Expect(order).To(Equal([]int{10, 20}))

		r.Fire(100)
		Expect(order).To(Equal([]int{10, 20, 30}))
	})

	It("rejects a duplicate registration at the same offset", func() {
		r := stream.NewByteEventRegistry()
		Expect(r.Register(5, func() {})).NotTo(HaveOccurred())
		Expect(r.Register(5, func() {})).To(HaveOccurred())
	})
})
