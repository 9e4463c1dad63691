package pathmgr_test

import (
	"net/netip"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/quicgo/pathmgr"
)

var (
	localAddr = netip.MustParseAddrPort("10.0.0.1:4433")
	peerAddr  = netip.MustParseAddrPort("203.0.113.5:55000")
)

var _ = Describe("Manager", func() {
	It("starts with a single validated current path", func() {
		m := pathmgr.NewManager(localAddr, peerAddr, false)
		cur := m.Current()
		Expect(cur.State).To(Equal(pathmgr.StateValidated))
		Expect(cur.Remote).To(Equal(peerAddr))
		Expect(m.Count()).To(Equal(1))
	})

	It("treats a same-/24 port change as a NAT rebind and keeps congestion state", func() {
		m := pathmgr.NewManager(localAddr, peerAddr, false)
		snap := &pathmgr.CongestionSnapshot{CongestionWindow: 12000}
		rebind := netip.MustParseAddrPort("203.0.113.9:9999")

		p, err := m.ObservePeerAddressChange(time.Now(), rebind, snap, true)
		Expect(err).NotTo(HaveOccurred())
		Expect(p.State).To(Equal(pathmgr.StateValidated))
		Expect(p.CongestionSnapshot).To(Equal(snap))
	})

	It("treats a genuine address change as pending validation with a fresh limiter", func() {
		m := pathmgr.NewManager(localAddr, peerAddr, false)
		other := netip.MustParseAddrPort("198.51.100.9:4000")

		p, err := m.ObservePeerAddressChange(time.Now(), other, nil, true)
		Expect(err).NotTo(HaveOccurred())
		Expect(p.State).To(Equal(pathmgr.StatePending))
		Expect(p.Limiter).NotTo(BeNil())
	})

	It("rejects migration when the peer disabled active migration", func() {
		m := pathmgr.NewManager(localAddr, peerAddr, true)
		other := netip.MustParseAddrPort("198.51.100.9:4000")
		_, err := m.ObservePeerAddressChange(time.Now(), other, nil, true)
		Expect(err).To(HaveOccurred())
	})

	It("rejects migration before handshake confirmation", func() {
		m := pathmgr.NewManager(localAddr, peerAddr, false)
		other := netip.MustParseAddrPort("198.51.100.9:4000")
		_, err := m.ObservePeerAddressChange(time.Now(), other, nil, false)
		Expect(err).To(HaveOccurred())
	})

	It("validates a path once the matching PATH_RESPONSE token arrives", func() {
		m := pathmgr.NewManager(localAddr, peerAddr, false)
		other := netip.MustParseAddrPort("198.51.100.9:4000")
		p, _ := m.ObservePeerAddressChange(time.Now(), other, nil, true)

		tok, err := m.IssueChallenge(p.ID, time.Now())
		Expect(err).NotTo(HaveOccurred())

		resolved, ok := m.HandleResponse(tok)
		Expect(ok).To(BeTrue())
		Expect(resolved.ID).To(Equal(p.ID))
		Expect(resolved.State).To(Equal(pathmgr.StateValidated))
	})

	It("does not validate on a non-matching token", func() {
		m := pathmgr.NewManager(localAddr, peerAddr, false)
		other := netip.MustParseAddrPort("198.51.100.9:4000")
		p, _ := m.ObservePeerAddressChange(time.Now(), other, nil, true)
		_, _ = m.IssueChallenge(p.ID, time.Now())

		_, ok := m.HandleResponse([8]byte{9, 9, 9, 9, 9, 9, 9, 9})
		Expect(ok).To(BeFalse())
	})

	It("gives up after the migration ceiling and drops further attempts", func() {
		m := pathmgr.NewManager(localAddr, peerAddr, false)
		for i := 0; i < 10; i++ {
			addr := netip.AddrPortFrom(netip.MustParseAddr("198.51.100.9"), uint16(5000+i))
			_, err := m.ObservePeerAddressChange(time.Now(), addr, nil, true)
			Expect(err).NotTo(HaveOccurred())
		}
		_, err := m.ObservePeerAddressChange(time.Now(), netip.MustParseAddrPort("198.51.100.9:6000"), nil, true)
		Expect(err).To(HaveOccurred())
	})

	It("sweeps retired paths once their retention deadline passes", func() {
		m := pathmgr.NewManager(localAddr, peerAddr, false)
		rebind := netip.MustParseAddrPort("203.0.113.9:9999")
		now := time.Now()
		_, err := m.ObservePeerAddressChange(now, rebind, nil, true)
		Expect(err).NotTo(HaveOccurred())

		removed := m.Sweep(now.Add(10*time.Second), 10*time.Millisecond)
		Expect(removed).To(HaveLen(1))
		Expect(m.Count()).To(Equal(1))
	})
})

var _ = Describe("IsNATRebind", func() {
	It("matches same IPv4 /24 with different port", func() {
		a := netip.MustParseAddrPort("203.0.113.5:1000")
		b := netip.MustParseAddrPort("203.0.113.200:2000")
		Expect(pathmgr.IsNATRebind(a, b)).To(BeTrue())
	})

	It("rejects a different IPv4 /24", func() {
		a := netip.MustParseAddrPort("203.0.113.5:1000")
		b := netip.MustParseAddrPort("198.51.100.5:1000")
		Expect(pathmgr.IsNATRebind(a, b)).To(BeFalse())
	})

	It("matches same IPv6 address with different port only", func() {
		a := netip.MustParseAddrPort("[2001:db8::1]:1000")
		b := netip.MustParseAddrPort("[2001:db8::1]:2000")
		Expect(pathmgr.IsNATRebind(a, b)).To(BeTrue())
	})
})
