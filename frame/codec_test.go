package frame_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/quicgo/frame"
)

func roundTrip(f frame.Frame) frame.Frame {
	enc, err := frame.Serialize(nil, f)
	Expect(err).NotTo(HaveOccurred())
	got, n, err := frame.Parse(enc)
	Expect(err).NotTo(HaveOccurred())
	Expect(n).To(Equal(len(enc)))
	return got
}

var _ = Describe("frame codec", func() {
	It("round-trips PADDING and PING", func() {
		Expect(roundTrip(frame.Padding()).Kind).To(Equal(frame.KindPadding))
		Expect(roundTrip(frame.Ping()).Kind).To(Equal(frame.KindPing))
	})

	It("round-trips a simple ACK frame with one range", func() {
		f := frame.Frame{Kind: frame.KindAck, Ack: &frame.AckFrame{
			LargestAcked: 100,
			AckDelay:     5,
			Ranges:       []frame.AckRange{{Smallest: 90, Largest: 100}},
		}}
		got := roundTrip(f)
		Expect(got.Ack.LargestAcked).To(Equal(uint64(100)))
		Expect(got.Ack.Ranges).To(HaveLen(1))
		Expect(got.Ack.Ranges[0]).To(Equal(frame.AckRange{Smallest: 90, Largest: 100}))
	})

	It("round-trips an ACK frame with multiple ranges and ECN counts", func() {
		f := frame.Frame{Kind: frame.KindAck, Ack: &frame.AckFrame{
			LargestAcked: 50,
			AckDelay:     3,
			Ranges: []frame.AckRange{
				{Smallest: 45, Largest: 50},
				{Smallest: 30, Largest: 40},
				{Smallest: 10, Largest: 20},
			},
			HasECN: true, ECT0: 1, ECT1: 2, ECNCE: 3,
		}}
		got := roundTrip(f)
		Expect(got.Ack.Ranges).To(Equal(f.Ack.Ranges))
		Expect(got.Ack.HasECN).To(BeTrue())
		Expect(got.Ack.ECT0).To(Equal(uint64(1)))
	})

	It("round-trips RESET_STREAM and RESET_STREAM_AT", func() {
		plain := roundTrip(frame.Frame{Kind: frame.KindResetStream, ResetStream: &frame.ResetStreamFrame{
			StreamID: 4, ApplicationErrorCode: 1, FinalSize: 100,
		}})
		Expect(plain.Kind).To(Equal(frame.KindResetStream))
		Expect(plain.ResetStream.ReliableSize).To(BeNil())

		reliableSize := uint64(50)
		reliable := roundTrip(frame.Frame{Kind: frame.KindResetStreamAt, ResetStream: &frame.ResetStreamFrame{
			StreamID: 4, ApplicationErrorCode: 1, FinalSize: 100, ReliableSize: &reliableSize,
		}})
		Expect(reliable.Kind).To(Equal(frame.KindResetStreamAt))
		Expect(*reliable.ResetStream.ReliableSize).To(Equal(uint64(50)))
	})

	It("round-trips a STREAM frame", func() {
		f := frame.Frame{Kind: frame.KindStream, Stream: &frame.StreamFrame{
			StreamID: 8, Offset: 16, Data: []byte("hello"), Fin: true,
		}}
		got := roundTrip(f)
		Expect(got.Stream.StreamID).To(Equal(uint64(8)))
		Expect(got.Stream.Data).To(Equal([]byte("hello")))
		Expect(got.Stream.Fin).To(BeTrue())
	})

	It("round-trips CRYPTO and NEW_TOKEN", func() {
		c := roundTrip(frame.Frame{Kind: frame.KindCrypto, Crypto: &frame.CryptoFrame{Offset: 3, Data: []byte("abc")}})
		Expect(c.Crypto.Data).To(Equal([]byte("abc")))

		nt := roundTrip(frame.Frame{Kind: frame.KindNewToken, NewToken: &frame.NewTokenFrame{Token: []byte("tok")}})
		Expect(nt.NewToken.Token).To(Equal([]byte("tok")))
	})

	It("round-trips flow-control frames", func() {
		Expect(roundTrip(frame.Frame{Kind: frame.KindMaxData, MaxData: &frame.MaxDataFrame{MaximumData: 9000}}).
			MaxData.MaximumData).To(Equal(uint64(9000)))
		Expect(roundTrip(frame.Frame{Kind: frame.KindMaxStreamData, MaxStreamData: &frame.MaxStreamDataFrame{StreamID: 1, MaximumStreamData: 500}}).
			MaxStreamData.MaximumStreamData).To(Equal(uint64(500)))
		Expect(roundTrip(frame.Frame{Kind: frame.KindMaxStreams, MaxStreams: &frame.MaxStreamsFrame{Type: frame.StreamUni, MaximumStreams: 10}}).
			MaxStreams.Type).To(Equal(frame.StreamUni))
	})

	It("round-trips NEW_CONNECTION_ID", func() {
		f := frame.Frame{Kind: frame.KindNewConnectionID, NewConnectionID: &frame.NewConnectionIDFrame{
			SequenceNumber: 2, RetirePriorTo: 1, ConnectionID: []byte{1, 2, 3, 4},
			StatelessResetToken: [16]byte{1, 2, 3},
		}}
		got := roundTrip(f)
		Expect(got.NewConnectionID.ConnectionID).To(Equal([]byte{1, 2, 3, 4}))
		Expect(got.NewConnectionID.StatelessResetToken[0]).To(Equal(byte(1)))
	})

	It("round-trips both CONNECTION_CLOSE variants", func() {
		t := roundTrip(frame.Frame{Kind: frame.KindConnectionCloseTransport, ConnectionCloseTransport: &frame.ConnectionCloseTransportFrame{
			ErrorCode: 7, FrameType: 2, ReasonPhrase: "bye",
		}})
		Expect(t.ConnectionCloseTransport.ReasonPhrase).To(Equal("bye"))

		a := roundTrip(frame.Frame{Kind: frame.KindConnectionCloseApplication, ConnectionCloseApplication: &frame.ConnectionCloseApplicationFrame{
			ErrorCode: 9, ReasonPhrase: "done",
		}})
		Expect(a.ConnectionCloseApplication.ErrorCode).To(Equal(uint64(9)))
	})

	It("round-trips DATAGRAM, ACK_FREQUENCY, IMMEDIATE_ACK and KNOB", func() {
		Expect(roundTrip(frame.Frame{Kind: frame.KindDatagram, Datagram: &frame.DatagramFrame{Data: []byte("d")}}).
			Datagram.Data).To(Equal([]byte("d")))
		Expect(roundTrip(frame.Frame{Kind: frame.KindImmediateAck}).Kind).To(Equal(frame.KindImmediateAck))
		Expect(roundTrip(frame.Frame{Kind: frame.KindAckFrequency, AckFrequency: &frame.AckFrequencyFrame{
			SequenceNumber: 1, AckElicitingThreshold: 2, RequestedMaxAckDelay: 25000, ReorderThreshold: 3,
		}}).AckFrequency.RequestedMaxAckDelay).To(Equal(uint64(25000)))
		Expect(roundTrip(frame.Frame{Kind: frame.KindKnob, Knob: &frame.KnobFrame{KnobSpace: 1, KnobID: 2, KnobValue: []byte{9}}}).
			Knob.KnobValue).To(Equal([]byte{9}))
	})

	It("parses every frame out of a multi-frame payload", func() {
		var payload []byte
		payload, _ = frame.Serialize(payload, frame.Ping())
		payload, _ = frame.Serialize(payload, frame.Frame{Kind: frame.KindMaxData, MaxData: &frame.MaxDataFrame{MaximumData: 1}})
		payload, _ = frame.Serialize(payload, frame.Padding())

		got, err := frame.ParseAll(payload)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(HaveLen(3))
		Expect(got[0].Kind).To(Equal(frame.KindPing))
		Expect(got[1].Kind).To(Equal(frame.KindMaxData))
		Expect(got[2].Kind).To(Equal(frame.KindPadding))
	})

	It("rejects an unknown frame type", func() {
		_, _, err := frame.Parse([]byte{0x3f})
		Expect(err).To(HaveOccurred())
	})
})
