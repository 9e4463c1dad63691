/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package scheduler

import "time"

// writeLimitRTTFraction bounds how long a single write pass may run:
// writeLoopBeginTime + sRTT/writeLimitRTTFraction. A pass that packs an
// unbounded number of small streams would otherwise be able to hold the
// connection's single writer goroutine for a full RTT or more.
const writeLimitRTTFraction = 2

// BudgetInputs carries the four independent constraints a write pass
// must respect simultaneously; the pass may send no more than the
// smallest of them.
type BudgetInputs struct {
	// PacketLimit caps the number of packets built in one pass (a batch
	// size, not a byte count). Zero means unbounded.
	PacketLimit int

	// CongestionAvailable is congestion.Controller.AvailableBytes().
	// CongestionUnlimited is set for packets that must bypass CWND
	// entirely (PATH_CHALLENGE/RESPONSE probes, and the unvalidated
	// server's response to a client Initial, which is separately capped
	// by the amplification limiter instead).
	CongestionAvailable  uint64
	CongestionUnlimited  bool

	// FlowControlAvailable is the connection-level send credit
	// (flowcontrol.ConnectionFlowController.Send().Available()).
	FlowControlAvailable uint64

	// SmoothedRTT and WriteLoopBeginTime compute the wall-clock deadline.
	// A zero SmoothedRTT (no RTT sample yet) disables the deadline.
	SmoothedRTT      time.Duration
	WriteLoopBeginTime time.Time
	Now              time.Time
}

// Budget is the resolved outcome of ComputeBudget: the byte ceiling for
// this pass and, separately, whether the wall-clock deadline has already
// elapsed (checked per packet, not folded into MaxBytes, since it is a
// time condition rather than a size one).
type Budget struct {
	MaxBytes     uint64
	MaxPackets   int
	Deadline     time.Time
	HasDeadline  bool
}

// ComputeBudget resolves the byte and packet ceilings for one write
// pass. Congestion and flow-control bytes are independent ceilings on
// the same budget, not additive quantities, so the pass may send no
// more than the smaller of the two.
func ComputeBudget(in BudgetInputs) Budget {
	b := Budget{MaxPackets: in.PacketLimit}

	if in.CongestionUnlimited {
		b.MaxBytes = in.FlowControlAvailable
	} else {
		b.MaxBytes = in.CongestionAvailable
		if in.FlowControlAvailable < b.MaxBytes {
			b.MaxBytes = in.FlowControlAvailable
		}
	}

	if in.SmoothedRTT > 0 && !in.WriteLoopBeginTime.IsZero() {
		b.Deadline = in.WriteLoopBeginTime.Add(in.SmoothedRTT / writeLimitRTTFraction)
		b.HasDeadline = true
	}

	return b
}

// DeadlineExceeded reports whether the pass's wall-clock budget has
// elapsed as of now.
func (b Budget) DeadlineExceeded(now time.Time) bool {
	return b.HasDeadline && !now.Before(b.Deadline)
}

// PacketsExhausted reports whether the pass has already built its
// allotted number of packets (MaxPackets == 0 means unbounded).
func (b Budget) PacketsExhausted(built int) bool {
	return b.MaxPackets > 0 && built >= b.MaxPackets
}

// IsAppLimited reports whether a completed write pass stopped because
// the application ran out of data to send rather than because any of
// the congestion, flow-control, packet, or deadline ceilings bound it.
// Distinguishing the two matters to a congestion controller: growing
// CWND based on acks from an app-limited pass overstates the path's
// actual capacity, since the pass never tried to use the window it had.
func (b Budget) IsAppLimited(bytesWritten uint64) bool {
	return bytesWritten < b.MaxBytes
}
