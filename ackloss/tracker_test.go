package ackloss_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/quicgo/ackloss"
	"github.com/nabbar/quicgo/frame"
)

var _ = Describe("Tracker", func() {
	base := time.Now()

	It("assigns strictly increasing packet numbers", func() {
		tr := ackloss.NewTracker(ackloss.SpaceAppData)
		pn1 := tr.ReserveNext(0)
		pn2 := tr.ReserveNext(0)
		Expect(pn2).To(BeNumerically(">", pn1))
	})

	It("rejects an ACK that covers a packet number never sent", func() {
		tr := ackloss.NewTracker(ackloss.SpaceAppData)
		tr.SentPacket(0, base, nil, 100, nil)

		ack := frame.AckFrame{LargestAcked: 5, Ranges: []frame.AckRange{{Smallest: 0, Largest: 5}}}
		_, _, err := tr.ProcessAck(ack, base.Add(time.Millisecond), 0, ackloss.AckVisitor{})
		Expect(err).To(HaveOccurred())
	})

	It("dispatches per-frame ack callbacks and extracts an RTT sample from the largest newly acked packet", func() {
		tr := ackloss.NewTracker(ackloss.SpaceAppData)
		tr.SentPacket(0, base, []ackloss.SentFrame{{Kind: frame.KindStream, StreamID: 4, Offset: 0, Length: 5}}, 50, nil)

		ackedAt := base.Add(31 * time.Millisecond)
		ack := frame.AckFrame{LargestAcked: 0, Ranges: []frame.AckRange{{Smallest: 0, Largest: 0}}}

		var ackedStreamID uint64
		visitor := ackloss.AckVisitor{OnStreamAcked: func(sf ackloss.SentFrame) { ackedStreamID = sf.StreamID }}

		acked, sample, err := tr.ProcessAck(ack, ackedAt, 5*time.Millisecond, visitor)
		Expect(err).NotTo(HaveOccurred())
		Expect(acked).To(HaveLen(1))
		Expect(ackedStreamID).To(Equal(uint64(4)))
		Expect(sample).NotTo(BeNil())
		Expect(sample.Latest).To(Equal(31 * time.Millisecond))
		Expect(tr.OutstandingCount()).To(Equal(0))
	})

	It("declares a packet lost once the reordering threshold is exceeded", func() {
		tr := ackloss.NewTracker(ackloss.SpaceAppData)
		tr.SentPacket(0, base, []ackloss.SentFrame{{Kind: frame.KindStream}}, 10, nil)
		for pn := uint64(1); pn <= 3; pn++ {
			tr.SentPacket(pn, base, nil, 10, nil)
		}

		ack := frame.AckFrame{LargestAcked: 3, Ranges: []frame.AckRange{{Smallest: 3, Largest: 3}}}
		_, _, err := tr.ProcessAck(ack, base, 0, ackloss.AckVisitor{})
		Expect(err).NotTo(HaveOccurred())

		var lostKind frame.Kind
		lost, _ := tr.DetectLosses(base, ackloss.LossVisitor{
			OnStreamLost: func(sf ackloss.SentFrame) { lostKind = sf.Kind },
		})
		Expect(lost).To(HaveLen(1))
		Expect(lostKind).To(Equal(frame.KindStream))
	})

	It("declares a packet lost once the time threshold elapses", func() {
		tr := ackloss.NewTracker(ackloss.SpaceAppData)
		tr.SentPacket(0, base, []ackloss.SentFrame{{Kind: frame.KindPing}}, 10, nil)
		tr.SentPacket(1, base, nil, 10, nil)

		ack := frame.AckFrame{LargestAcked: 1, Ranges: []frame.AckRange{{Smallest: 1, Largest: 1}}}
		_, _, err := tr.ProcessAck(ack, base, 0, ackloss.AckVisitor{})
		Expect(err).NotTo(HaveOccurred())

		lost, _ := tr.DetectLosses(base.Add(time.Second), ackloss.LossVisitor{})
		Expect(lost).To(HaveLen(1))
	})

	It("rejects an ACK that covers a deliberately skipped packet number", func() {
		tr := ackloss.NewTracker(ackloss.SpaceAppData)
		// Force a skip by using denominator 1 (always skip).
		pn := tr.ReserveNext(1)
		tr.SentPacket(pn, base, nil, 10, nil)

		ack := frame.AckFrame{LargestAcked: 0, Ranges: []frame.AckRange{{Smallest: 0, Largest: 0}}}
		_, _, err := tr.ProcessAck(ack, base, 0, ackloss.AckVisitor{})
		Expect(err).To(HaveOccurred())
	})

	It("resolves an entire clone group when one member is acked", func() {
		tr := ackloss.NewTracker(ackloss.SpaceAppData)
		group := tr.NewCloneGroup()
		tr.SentPacket(0, base, []ackloss.SentFrame{{Kind: frame.KindPing}}, 10, &group)
		tr.SentPacket(1, base, []ackloss.SentFrame{{Kind: frame.KindPing}}, 10, &group)

		ack := frame.AckFrame{LargestAcked: 0, Ranges: []frame.AckRange{{Smallest: 0, Largest: 0}}}
		acked, _, err := tr.ProcessAck(ack, base, 0, ackloss.AckVisitor{})
		Expect(err).NotTo(HaveOccurred())
		Expect(acked).To(HaveLen(1))
		Expect(tr.OutstandingCount()).To(Equal(0))
	})

	It("backs off PTO exponentially with the probe count", func() {
		tr := ackloss.NewTracker(ackloss.SpaceAppData)
		tr.SentPacket(0, base, []ackloss.SentFrame{{Kind: frame.KindPing}}, 10, nil)
		ack := frame.AckFrame{LargestAcked: 0, Ranges: []frame.AckRange{{Smallest: 0, Largest: 0}}}
		_, _, _ = tr.ProcessAck(ack, base.Add(10*time.Millisecond), 0, ackloss.AckVisitor{})

		pto0 := tr.ComputePTO(25 * time.Millisecond)
		tr.OnPTOFired()
		pto1 := tr.ComputePTO(25 * time.Millisecond)
		Expect(pto1).To(Equal(2 * pto0))
	})
})
