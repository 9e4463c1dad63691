package scheduler_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/quicgo/scheduler"
)

var _ = Describe("ComputeBudget", func() {
	It("takes the smaller of congestion and flow-control bytes", func() {
		b := scheduler.ComputeBudget(scheduler.BudgetInputs{
			CongestionAvailable:  7000,
			FlowControlAvailable: 9000,
		})
		Expect(b.MaxBytes).To(Equal(uint64(7000)))
	})

	It("ignores congestion bytes entirely when marked unlimited", func() {
		b := scheduler.ComputeBudget(scheduler.BudgetInputs{
			CongestionAvailable:  0,
			CongestionUnlimited:  true,
			FlowControlAvailable: 1200,
		})
		Expect(b.MaxBytes).To(Equal(uint64(1200)))
	})

	It("computes a wall-clock deadline from sRTT when available", func() {
		begin := time.Now()
		b := scheduler.ComputeBudget(scheduler.BudgetInputs{
			SmoothedRTT:        100 * time.Millisecond,
			WriteLoopBeginTime: begin,
		})
		Expect(b.HasDeadline).To(BeTrue())
		Expect(b.DeadlineExceeded(begin)).To(BeFalse())
		Expect(b.DeadlineExceeded(begin.Add(time.Second))).To(BeTrue())
	})

	It("has no deadline without an RTT sample yet", func() {
		b := scheduler.ComputeBudget(scheduler.BudgetInputs{})
		Expect(b.HasDeadline).To(BeFalse())
		Expect(b.DeadlineExceeded(time.Now())).To(BeFalse())
	})

	// The CWND-limited write scenario: a static 7000-byte congestion
	// window, a 10000-byte application write. The first pass sends
	// exactly 5 full 1400-byte packets (7000 bytes) and is congestion-
	// limited, not app-limited; once the ACK clears the window, the
	// remaining 3000 bytes go out in the next pass (≤3 packets) and
	// that pass IS app-limited, since it stops with congestion budget
	// still unused.
	It("matches the CWND-limited write literal scenario", func() {
		const mtu = 1400
		const cwnd = 7000
		const writeSize = 10000

		first := scheduler.ComputeBudget(scheduler.BudgetInputs{
			CongestionAvailable:  cwnd,
			FlowControlAvailable: writeSize,
		})
		sent := 0
		packets := 0
		for sent+mtu <= int(first.MaxBytes) && sent < writeSize {
			sent += mtu
			packets++
		}
		Expect(packets).To(Equal(5))
		Expect(sent).To(Equal(7000))
		Expect(first.IsAppLimited(uint64(sent))).To(BeFalse())

		remaining := writeSize - sent
		second := scheduler.ComputeBudget(scheduler.BudgetInputs{
			CongestionAvailable:  cwnd,
			FlowControlAvailable: 1 << 20,
		})
		sentSecond := 0
		packetsSecond := 0
		for sentSecond < remaining {
			chunk := mtu
			if remaining-sentSecond < mtu {
				chunk = remaining - sentSecond
			}
			sentSecond += chunk
			packetsSecond++
		}
		Expect(packetsSecond).To(BeNumerically("<=", 3))
		Expect(sentSecond).To(Equal(remaining))
		Expect(second.IsAppLimited(uint64(sentSecond))).To(BeTrue())
	})
})
