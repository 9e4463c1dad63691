package scheduler_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/quicgo/frame"
	"github.com/nabbar/quicgo/scheduler"
)

var _ = Describe("OrderFrames", func() {
	It("packs ACK before CRYPTO before STREAM before PING", func() {
		in := []frame.Frame{
			frame.Ping(),
			{Kind: frame.KindStream},
			{Kind: frame.KindCrypto},
			{Kind: frame.KindAck},
		}
		out := scheduler.OrderFrames(in)
		kinds := make([]frame.Kind, len(out))
		for i, f := range out {
			kinds[i] = f.Kind
		}
		Expect(kinds).To(Equal([]frame.Kind{
			frame.KindAck, frame.KindCrypto, frame.KindStream, frame.KindPing,
		}))
	})

	It("keeps stream control frames ahead of raw STREAM frames", func() {
		in := []frame.Frame{
			{Kind: frame.KindStream},
			{Kind: frame.KindResetStream},
			{Kind: frame.KindMaxData},
		}
		out := scheduler.OrderFrames(in)
		Expect(out[0].Kind).To(Equal(frame.KindResetStream))
		Expect(out[1].Kind).To(Equal(frame.KindMaxData))
		Expect(out[2].Kind).To(Equal(frame.KindStream))
	})

	It("preserves relative order among frames of the same kind", func() {
		first := frame.Frame{Kind: frame.KindStream, Stream: &frame.StreamFrame{StreamID: 1}}
		second := frame.Frame{Kind: frame.KindStream, Stream: &frame.StreamFrame{StreamID: 5}}
		out := scheduler.OrderFrames([]frame.Frame{first, second})
		Expect(out[0].Stream.StreamID).To(Equal(uint64(1)))
		Expect(out[1].Stream.StreamID).To(Equal(uint64(5)))
	})

	It("sorts unlisted kinds after everything in the normal pass", func() {
		in := []frame.Frame{
			{Kind: frame.KindPadding},
			{Kind: frame.KindStream},
		}
		out := scheduler.OrderFrames(in)
		Expect(out[0].Kind).To(Equal(frame.KindStream))
		Expect(out[1].Kind).To(Equal(frame.KindPadding))
	})
})
