package qerr_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/quicgo/qerr"
)

var _ = Describe("QuicError", func() {
	Describe("transport errors", func() {
		It("carries the protocol violation code", func() {
			err := qerr.ProtocolViolation("zero frames in packet", nil)
			Expect(err.Kind()).To(Equal(qerr.KindTransport))
			Expect(err.IsCode(qerr.ProtocolViolation)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("PROTOCOL_VIOLATION"))
		})

		It("encodes the tls alert inside a crypto error code", func() {
			err := qerr.CryptoErrorf(42, "bad certificate", nil)
			Expect(err.Code().IsCryptoError()).To(BeTrue())
			Expect(err.Code().TLSAlert()).To(Equal(uint8(42)))
		})
	})

	Describe("hierarchy", func() {
		It("chains parents and finds codes anywhere in the chain", func() {
			parent := qerr.FlowControlError("stream window exceeded", nil)
			err := qerr.ProtocolViolation("wrapped", parent)
			Expect(err.HasCode(qerr.FlowControlError)).To(BeTrue())
			Expect(err.IsCode(qerr.FlowControlError)).To(BeFalse())
		})

		It("wraps plain errors as local leaves", func() {
			err := qerr.ProtocolViolation("wrapped", nil)
			err.Add(errors.New("plain"))
			Expect(err.HasCode(qerr.ProtocolViolation)).To(BeTrue())
			Expect(len(err.Unwrap())).To(Equal(1))
		})
	})

	Describe("local errors", func() {
		It("identifies idle timeout via errors.As", func() {
			err := error(qerr.ErrIdleTimeout())
			Expect(qerr.IsTimeout(err)).To(BeTrue())
		})

		It("is never mistaken for a different code", func() {
			a := qerr.ErrStreamClosed(4)
			b := qerr.ErrConnectionClosed()
			Expect(errors.Is(error(a), error(b))).To(BeFalse())
		})
	})

	Describe("application errors", func() {
		It("stores the raw application-chosen code", func() {
			err := qerr.Application(77, "bye", nil)
			Expect(err.Kind()).To(Equal(qerr.KindApplication))
			Expect(uint64(err.Code())).To(Equal(uint64(77)))
		})
	})
})
