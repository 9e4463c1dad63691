package token_test

import (
	"net/netip"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/quicgo/token"
)

var secret = [32]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

var _ = Describe("Service", func() {
	var (
		svc    *token.Service
		client netip.AddrPort
		now    time.Time
	)

	BeforeEach(func() {
		var err error
		svc, err = token.NewService(secret)
		Expect(err).NotTo(HaveOccurred())
		client = netip.MustParseAddrPort("198.51.100.7:4433")
		now = time.Now()
	})

	It("round-trips a Retry token for the same client address", func() {
		odcid := []byte{0xde, 0xad, 0xbe, 0xef}
		tok, err := svc.IssueRetry(odcid, client, now)
		Expect(err).NotTo(HaveOccurred())

		info, err := svc.ValidateRetry(tok, client, now.Add(time.Second), 30*time.Second)
		Expect(err).NotTo(HaveOccurred())
		Expect(info.OriginalDestCID).To(Equal(odcid))
		Expect(info.ClientAddr).To(Equal(client))
	})

	It("rejects a Retry token presented from a different address", func() {
		tok, err := svc.IssueRetry([]byte{1, 2, 3}, client, now)
		Expect(err).NotTo(HaveOccurred())

		other := netip.MustParseAddrPort("198.51.100.8:4433")
		_, err = svc.ValidateRetry(tok, other, now, 30*time.Second)
		Expect(err).To(HaveOccurred())
	})

	It("rejects an expired Retry token", func() {
		tok, err := svc.IssueRetry([]byte{1, 2, 3}, client, now)
		Expect(err).NotTo(HaveOccurred())

		_, err = svc.ValidateRetry(tok, client, now.Add(time.Minute), 10*time.Second)
		Expect(err).To(HaveOccurred())
	})

	It("rejects a tampered Retry token", func() {
		tok, err := svc.IssueRetry([]byte{1, 2, 3}, client, now)
		Expect(err).NotTo(HaveOccurred())
		tok[len(tok)-1] ^= 0xff

		_, err = svc.ValidateRetry(tok, client, now, 30*time.Second)
		Expect(err).To(HaveOccurred())
	})

	It("round-trips a NEW_TOKEN value", func() {
		tok, err := svc.IssueNewToken(client, now)
		Expect(err).NotTo(HaveOccurred())

		addr, issuedAt, err := svc.ValidateNewToken(tok)
		Expect(err).NotTo(HaveOccurred())
		Expect(addr).To(Equal(client))
		Expect(issuedAt.UnixMilli()).To(Equal(now.UnixMilli()))
	})

	It("produces tokens two different services cannot cross-validate", func() {
		tok, err := svc.IssueNewToken(client, now)
		Expect(err).NotTo(HaveOccurred())

		other, err := token.NewService([32]byte{9, 9, 9})
		Expect(err).NotTo(HaveOccurred())
		_, _, err = other.ValidateNewToken(tok)
		Expect(err).To(HaveOccurred())
	})
})
