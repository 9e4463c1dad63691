package qtimer_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/quicgo/qtimer"
)

var _ = Describe("Loop", func() {
	It("fires a due timer on RunOnce and not before", func() {
		base := time.Unix(0, 0)
		l := qtimer.NewLoop(func() time.Time { return base })

		fired := false
		l.ScheduleAfter(qtimer.KindIdle, 10*time.Millisecond, func() { fired = true })

		l.RunOnce(base)
		Expect(fired).To(BeFalse())

		l.RunOnce(base.Add(10 * time.Millisecond))
		Expect(fired).To(BeTrue())
	})

	It("cancellation is idempotent and prevents firing", func() {
		base := time.Unix(0, 0)
		l := qtimer.NewLoop(func() time.Time { return base })

		fired := false
		l.ScheduleAfter(qtimer.KindLossDetection, 5*time.Millisecond, func() { fired = true })
		l.Cancel(qtimer.KindLossDetection)
		l.Cancel(qtimer.KindLossDetection) // idempotent, must not panic

		l.RunOnce(base.Add(time.Second))
		Expect(fired).To(BeFalse())
		Expect(l.Armed(qtimer.KindLossDetection)).To(BeFalse())
	})

	It("reschedule is cancel-then-schedule: only the latest callback fires", func() {
		base := time.Unix(0, 0)
		l := qtimer.NewLoop(func() time.Time { return base })

		var fired string
		l.ScheduleAfter(qtimer.KindAckDelay, 5*time.Millisecond, func() { fired = "first" })
		l.ScheduleAfter(qtimer.KindAckDelay, 5*time.Millisecond, func() { fired = "second" })

		l.RunOnce(base.Add(time.Second))
		Expect(fired).To(Equal("second"))
	})

	It("fires multiple armed timers in deadline order", func() {
		base := time.Unix(0, 0)
		l := qtimer.NewLoop(func() time.Time { return base })

		var order []string
		l.ScheduleAfter(qtimer.KindDrain, 20*time.Millisecond, func() { order = append(order, "drain") })
		l.ScheduleAfter(qtimer.KindPing, 5*time.Millisecond, func() { order = append(order, "ping") })
		l.ScheduleAfter(qtimer.KindKeepalive, 10*time.Millisecond, func() { order = append(order, "keepalive") })

		l.RunOnce(base.Add(time.Second))
		Expect(order).To(Equal([]string{"ping", "keepalive", "drain"}))
	})

	It("runs posted microtasks FIFO after due timers", func() {
		base := time.Unix(0, 0)
		l := qtimer.NewLoop(func() time.Time { return base })

		var order []int
		l.RunInLoop(func() { order = append(order, 1) })
		l.RunInLoop(func() { order = append(order, 2) })
		l.ScheduleAfter(qtimer.KindPing, time.Millisecond, func() { order = append(order, 0) })

		l.RunOnce(base.Add(time.Second))
		Expect(order).To(Equal([]int{0, 1, 2}))
	})
})
