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

// Package congestion defines the pluggable congestion-controller and
// pacer boundary the scheduler writes against, and supplies one concrete
// Reno-style controller and a token-bucket pacer as the default
// implementation.
package congestion

import "time"

// Controller is the congestion-control boundary the scheduler consults
// before each write pass and notifies after every send, ack and loss
// event. A QUIC implementation may swap in BBR or any other algorithm
// behind this interface without touching the scheduler.
type Controller interface {
	// OnPacketSent records bytes of a newly sent packet as in flight.
	OnPacketSent(sentTime time.Time, bytes int, isAckEliciting bool)

	// OnPacketAcked records bytes of an acknowledged packet, growing the
	// congestion window per the controller's algorithm.
	OnPacketAcked(sentTime time.Time, bytes int)

	// OnPacketLost records bytes of a packet declared lost, invoking a
	// congestion event if this loss starts a new recovery period.
	OnPacketLost(sentTime time.Time, bytes int)

	// OnPersistentCongestion signals a persistent-congestion period
	// (RFC 9002 §7.6), collapsing the window to its floor.
	OnPersistentCongestion()

	// CongestionWindow returns the current congestion window in bytes.
	CongestionWindow() uint64

	// BytesInFlight returns the number of bytes currently in flight.
	BytesInFlight() uint64

	// AvailableBytes returns CongestionWindow - BytesInFlight, floored at 0.
	AvailableBytes() uint64

	// InSlowStart reports whether the controller is still in the slow
	// start phase (cwnd below ssthresh).
	InSlowStart() bool

	// InRecovery reports whether a packet sent at sentTime falls within
	// the current recovery period.
	InRecovery(sentTime time.Time) bool
}

// Pacer smooths a burst of congestion-window-permitted bytes out over a
// round trip, so a sender does not dump an entire window on the wire in
// one instant.
type Pacer interface {
	// TimeUntilSend returns how long to wait before the next packet of
	// size bytes may leave, zero if it may leave immediately.
	TimeUntilSend(now time.Time, bytes int) time.Duration

	// OnPacketSent records that bytes were just sent at now, consuming
	// pacing budget.
	OnPacketSent(now time.Time, bytes int)

	// SetRate updates the pacing rate, typically recomputed as
	// congestion_window / smoothed_rtt after each RTT update.
	SetRate(bytesPerSecond float64)
}
