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

package congestion

import (
	"sync"
	"time"
)

// RFC 9002 Appendix B constants.
const (
	kLossReductionFactor  = 0.5
	kMinimumWindowPackets = 2
)

// RenoController is a standard Reno/NewReno-style congestion controller:
// additive increase in congestion avoidance, multiplicative decrease on
// loss, and byte-counting slow start.
type RenoController struct {
	mu sync.Mutex

	maxDatagramSize uint64

	cwnd     uint64
	ssthresh uint64
	inFlight uint64

	recoveryStartTime    time.Time
	hasRecoveryStartTime bool
}

// NewRenoController builds a controller seeded with the RFC 9002 §7.2
// initial window for the given max datagram size.
func NewRenoController(maxDatagramSize uint64) *RenoController {
	initial := 10 * maxDatagramSize
	if floor := 2 * maxDatagramSize; initial < floor {
		initial = floor
	}
	if ceil := uint64(14720); initial > ceil && ceil > 2*maxDatagramSize {
		initial = ceil
	}
	return &RenoController{
		maxDatagramSize: maxDatagramSize,
		cwnd:            initial,
		ssthresh:        ^uint64(0),
	}
}

func (r *RenoController) OnPacketSent(sentTime time.Time, bytes int, isAckEliciting bool) {
	if !isAckEliciting {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inFlight += uint64(bytes)
}

func (r *RenoController) OnPacketAcked(sentTime time.Time, bytes int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if uint64(bytes) > r.inFlight {
		r.inFlight = 0
	} else {
		r.inFlight -= uint64(bytes)
	}

	if r.inRecoveryLocked(sentTime) {
		return
	}
	if r.cwnd < r.ssthresh {
		r.cwnd += uint64(bytes)
		return
	}
	r.cwnd += r.maxDatagramSize * uint64(bytes) / r.cwnd
}

func (r *RenoController) OnPacketLost(sentTime time.Time, bytes int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if uint64(bytes) > r.inFlight {
		r.inFlight = 0
	} else {
		r.inFlight -= uint64(bytes)
	}

	if r.inRecoveryLocked(sentTime) {
		return
	}

	r.recoveryStartTime = sentTime
	r.hasRecoveryStartTime = true

	newCwnd := uint64(float64(r.cwnd) * kLossReductionFactor)
	floor := kMinimumWindowPackets * r.maxDatagramSize
	if newCwnd < floor {
		newCwnd = floor
	}
	r.cwnd = newCwnd
	r.ssthresh = r.cwnd
}

func (r *RenoController) OnPersistentCongestion() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cwnd = kMinimumWindowPackets * r.maxDatagramSize
}

func (r *RenoController) CongestionWindow() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cwnd
}

func (r *RenoController) BytesInFlight() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inFlight
}

func (r *RenoController) AvailableBytes() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inFlight >= r.cwnd {
		return 0
	}
	return r.cwnd - r.inFlight
}

func (r *RenoController) InSlowStart() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cwnd < r.ssthresh
}

func (r *RenoController) InRecovery(sentTime time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inRecoveryLocked(sentTime)
}

// inRecoveryLocked reports whether sentTime falls within the current
// recovery period: a packet sent before (or at) the start of recovery is
// part of the loss burst that triggered it, per RFC 9002 §7.3.2.
func (r *RenoController) inRecoveryLocked(sentTime time.Time) bool {
	if !r.hasRecoveryStartTime {
		return false
	}
	return !sentTime.After(r.recoveryStartTime)
}
