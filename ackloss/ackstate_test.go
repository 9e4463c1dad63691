package ackloss_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/quicgo/ackloss"
	"github.com/nabbar/quicgo/frame"
)

var _ = Describe("AckState", func() {
	now := time.Now()

	It("compresses contiguous packet numbers into a single descending range", func() {
		a := ackloss.NewAckState()
		for _, pn := range []uint64{0, 1, 2, 3} {
			Expect(a.RecordReceived(pn, now, true)).To(BeTrue())
		}
		Expect(a.BuildRanges()).To(Equal([]frame.AckRange{{Smallest: 0, Largest: 3}}))
	})

	It("keeps reordered gaps as separate ranges", func() {
		a := ackloss.NewAckState()
		for _, pn := range []uint64{0, 1, 5, 6, 7} {
			a.RecordReceived(pn, now, true)
		}
		Expect(a.BuildRanges()).To(Equal([]frame.AckRange{
			{Smallest: 5, Largest: 7},
			{Smallest: 0, Largest: 1},
		}))
	})

	It("reports a duplicate packet number without changing state", func() {
		a := ackloss.NewAckState()
		Expect(a.RecordReceived(4, now, true)).To(BeTrue())
		Expect(a.RecordReceived(4, now, true)).To(BeFalse())
		Expect(a.BuildRanges()).To(Equal([]frame.AckRange{{Smallest: 4, Largest: 4}}))
	})

	It("tracks whether an ACK is owed", func() {
		a := ackloss.NewAckState()
		Expect(a.HasAckEliciting()).To(BeFalse())
		a.RecordReceived(0, now, false)
		Expect(a.HasAckEliciting()).To(BeFalse())
		a.RecordReceived(1, now, true)
		Expect(a.HasAckEliciting()).To(BeTrue())
	})
})
