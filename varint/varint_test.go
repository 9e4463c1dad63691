package varint_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/quicgo/varint"
)

func TestVarint(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "varint Suite")
}

var _ = Describe("varint codec", func() {
	DescribeTable("round-trips values at each length boundary",
		func(v uint64, wantLen int) {
			enc, err := varint.Encode(nil, v)
			Expect(err).NotTo(HaveOccurred())
			Expect(enc).To(HaveLen(wantLen))

			got, n, err := varint.Decode(enc)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(wantLen))
			Expect(got).To(Equal(v))
		},
		Entry("1-byte min", uint64(0), 1),
		Entry("1-byte max", uint64(63), 1),
		Entry("2-byte min", uint64(64), 2),
		Entry("2-byte max", uint64(16383), 2),
		Entry("4-byte min", uint64(16384), 4),
		Entry("4-byte max", uint64(1073741823), 4),
		Entry("8-byte min", uint64(1073741824), 8),
		Entry("8-byte max", varint.Max, 8),
	)

	It("rejects values above the 62-bit range", func() {
		_, err := varint.Encode(nil, varint.Max+1)
		Expect(err).To(MatchError(varint.ErrTooLarge))
	})

	It("reports truncation on a short buffer", func() {
		_, _, err := varint.Decode([]byte{0x80})
		Expect(err).To(MatchError(varint.ErrTruncated))
	})

	Describe("packet number truncation", func() {
		It("reconstructs a packet number from its truncated form", func() {
			const largestAcked = 0x1000
			full := uint64(largestAcked + 5)
			n := varint.EncodedLenForPacketNumber(full, largestAcked)
			enc := varint.EncodePacketNumber(full, n)

			var truncated uint64
			for _, b := range enc {
				truncated = truncated<<8 | uint64(b)
			}
			got := varint.DecodePacketNumber(truncated, n, largestAcked+1)
			Expect(got).To(Equal(full))
		})
	})
})
