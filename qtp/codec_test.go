package qtp_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/quicgo/qtp"
	"github.com/nabbar/quicgo/varint"
)

var _ = Describe("transport parameters", func() {
	It("round-trips the default parameter set", func() {
		p := qtp.Default()
		p.InitialSourceConnectionID = []byte{1, 2, 3}

		enc, err := qtp.Encode(nil, p)
		Expect(err).NotTo(HaveOccurred())

		got, err := qtp.Decode(enc)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.InitialMaxData).To(Equal(p.InitialMaxData))
		Expect(got.MaxAckDelayMs).To(Equal(p.MaxAckDelayMs))
		Expect(got.InitialSourceConnectionID).To(Equal(p.InitialSourceConnectionID))
	})

	It("round-trips custom extension parameters", func() {
		p := qtp.Default()
		p.StreamGroupsEnabled = true
		p.AckReceiveTimestampsEnabled = true
		p.ReliableStreamReset = true
		p.KnobFramesSupported = true

		enc, err := qtp.Encode(nil, p)
		Expect(err).NotTo(HaveOccurred())
		got, err := qtp.Decode(enc)
		Expect(err).NotTo(HaveOccurred())

		Expect(got.StreamGroupsEnabled).To(BeTrue())
		Expect(got.AckReceiveTimestampsEnabled).To(BeTrue())
		Expect(got.ReliableStreamReset).To(BeTrue())
		Expect(got.KnobFramesSupported).To(BeTrue())
		Expect(got.MaxReceiveTimestampsPerAck).To(Equal(p.MaxReceiveTimestampsPerAck))
	})

	It("round-trips a preferred_address parameter", func() {
		p := qtp.Default()
		p.PreferredAddress = &qtp.PreferredAddress{
			IPv4: [4]byte{127, 0, 0, 1}, IPv4Port: 443,
			ConnectionID: []byte{9, 9}, StatelessResetToken: [16]byte{1},
		}
		enc, err := qtp.Encode(nil, p)
		Expect(err).NotTo(HaveOccurred())
		got, err := qtp.Decode(enc)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.PreferredAddress).NotTo(BeNil())
		Expect(got.PreferredAddress.IPv4Port).To(Equal(uint16(443)))
		Expect(got.PreferredAddress.ConnectionID).To(Equal([]byte{9, 9}))
	})

	It("ignores unknown parameter ids", func() {
		p := qtp.Default()
		enc, err := qtp.Encode(nil, p)
		Expect(err).NotTo(HaveOccurred())

		enc, err = varint.Encode(enc, 0xbeef) // unrecognized id
		Expect(err).NotTo(HaveOccurred())
		enc, err = varint.Encode(enc, 1)
		Expect(err).NotTo(HaveOccurred())
		enc = append(enc, 0xaa)

		_, err = qtp.Decode(enc)
		Expect(err).NotTo(HaveOccurred())
	})
})

var _ = Describe("Validate", func() {
	It("rejects an ack_delay_exponent above 20", func() {
		p := qtp.Default()
		p.AckDelayExponent = 21
		Expect(qtp.Validate(p)).To(HaveOccurred())
	})

	It("rejects a max_ack_delay at or above 2^14 ms", func() {
		p := qtp.Default()
		p.MaxAckDelayMs = 1 << 14
		Expect(qtp.Validate(p)).To(HaveOccurred())
	})

	It("rejects a nonzero max_datagram_frame_size below the overhead floor", func() {
		p := qtp.Default()
		p.MaxDatagramFrameSize = 10
		Expect(qtp.Validate(p)).To(HaveOccurred())
	})

	It("accepts a zero max_datagram_frame_size (datagrams disabled)", func() {
		p := qtp.Default()
		p.MaxDatagramFrameSize = 0
		Expect(qtp.Validate(p)).NotTo(HaveOccurred())
	})
})

var _ = Describe("ValidateZeroRTTConsistency", func() {
	It("rejects a shrunk initial_max_data", func() {
		remembered := qtp.Default()
		current := qtp.Default()
		current.InitialMaxData = remembered.InitialMaxData - 1
		Expect(qtp.ValidateZeroRTTConsistency(remembered, current)).To(HaveOccurred())
	})

	It("accepts parameters that only grow", func() {
		remembered := qtp.Default()
		current := qtp.Default()
		current.InitialMaxData = remembered.InitialMaxData + 1
		Expect(qtp.ValidateZeroRTTConsistency(remembered, current)).NotTo(HaveOccurred())
	})
})
