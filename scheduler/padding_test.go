package scheduler_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/quicgo/qerr"
	"github.com/nabbar/quicgo/scheduler"
)

var _ = Describe("PadClientInitial", func() {
	It("pads a short client Initial datagram up to 1200 bytes", func() {
		d := make([]byte, 300)
		out := scheduler.PadClientInitial(d, true, true)
		Expect(out).To(HaveLen(1200))
		Expect(out[:300]).To(Equal(d))
	})

	It("leaves a server Initial untouched", func() {
		d := make([]byte, 300)
		out := scheduler.PadClientInitial(d, false, true)
		Expect(out).To(HaveLen(300))
	})

	It("leaves non-Initial client packets untouched", func() {
		d := make([]byte, 300)
		out := scheduler.PadClientInitial(d, true, false)
		Expect(out).To(HaveLen(300))
	})

	It("leaves an already-large datagram untouched", func() {
		d := make([]byte, 1400)
		out := scheduler.PadClientInitial(d, true, true)
		Expect(out).To(HaveLen(1400))
	})
})

var _ = Describe("CheckMigrationDuringHandshake", func() {
	It("rejects a path change before the handshake is confirmed", func() {
		err := scheduler.CheckMigrationDuringHandshake(false, true)
		Expect(err).To(HaveOccurred())
		qe, ok := err.(*qerr.QuicError)
		Expect(ok).To(BeTrue())
		Expect(qe.Code()).To(Equal(qerr.InvalidMigration))
	})

	It("allows a path change once the handshake is confirmed", func() {
		Expect(scheduler.CheckMigrationDuringHandshake(true, true)).To(Succeed())
	})

	It("is a no-op when the path has not changed", func() {
		Expect(scheduler.CheckMigrationDuringHandshake(false, false)).To(Succeed())
	})
})
