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

package ackloss

import "time"

// rttAlphaDenom / rttBetaDenom are RFC 9002 §5.3's smoothing weights:
// 1/8 for sRTT, 1/4 for the mean deviation.
const (
	rttAlphaDenom = 8
	rttBetaDenom  = 4
)

// RTTSample is the outcome of one RTT measurement, reported only when the
// acked packet was the largest newly-acked in its ACK frame.
type RTTSample struct {
	Latest              time.Duration
	LatestNoAckDelay    time.Duration // meaningless when NoAckDelayAvailable is false
	NoAckDelayAvailable bool
}

// RTTStats accumulates the running RTT estimate for one packet-number
// space, per RFC 9002 §5. minRTT and minRTTNoAckDelay are tracked as two
// independent minimums: the first over every raw sample, the second only
// over samples where the peer's reported ack-delay did not exceed the
// measured RTT.
type RTTStats struct {
	minRTT    time.Duration
	hasMinRTT bool

	minRTTNoAckDelay    time.Duration
	hasMinRTTNoAckDelay bool

	smoothedRTT time.Duration
	rttVar      time.Duration
	latestRTT   time.Duration
	hasSample   bool
}

// NewRTTStats returns a zeroed estimator; the first sample seeds sRTT and
// rttVar directly per RFC 9002 §5.3.
func NewRTTStats() *RTTStats { return &RTTStats{} }

// Update folds in one RTT sample. sentTime/ackTime are wall-clock
// timestamps of the packet's send and the ACK's arrival; ackDelay is the
// peer-reported, already-decoded ACK_DELAY for this ACK.
func (r *RTTStats) Update(sentTime, ackTime time.Time, ackDelay time.Duration) RTTSample {
	rtt := ackTime.Sub(sentTime)
	if rtt < 0 {
		rtt = 0
	}
	r.latestRTT = rtt

	sample := RTTSample{Latest: rtt}
	if ackDelay <= rtt {
		sample.NoAckDelayAvailable = true
		sample.LatestNoAckDelay = rtt - ackDelay
	}

	if !r.hasMinRTT || rtt < r.minRTT {
		r.minRTT = rtt
		r.hasMinRTT = true
	}
	if sample.NoAckDelayAvailable && (!r.hasMinRTTNoAckDelay || sample.LatestNoAckDelay < r.minRTTNoAckDelay) {
		r.minRTTNoAckDelay = sample.LatestNoAckDelay
		r.hasMinRTTNoAckDelay = true
	}

	if !r.hasSample {
		r.smoothedRTT = rtt
		r.rttVar = rtt / 2
		r.hasSample = true
	} else {
		adjusted := rtt
		if sample.NoAckDelayAvailable && sample.LatestNoAckDelay >= r.minRTT {
			adjusted = sample.LatestNoAckDelay
		}
		dev := adjusted - r.smoothedRTT
		if dev < 0 {
			dev = -dev
		}
		r.rttVar = r.rttVar - r.rttVar/rttBetaDenom + dev/rttBetaDenom
		r.smoothedRTT = r.smoothedRTT - r.smoothedRTT/rttAlphaDenom + adjusted/rttAlphaDenom
	}

	return sample
}

func (r *RTTStats) MinRTT() time.Duration { return r.minRTT }

// MinRTTNoAckDelay returns the minimum ack-delay-adjusted RTT observed and
// true, or false if no sample has ever had an ack-delay not exceeding its
// RTT ("unavailable" per the concrete scenario in this implementation's
// testable properties).
func (r *RTTStats) MinRTTNoAckDelay() (time.Duration, bool) {
	return r.minRTTNoAckDelay, r.hasMinRTTNoAckDelay
}

func (r *RTTStats) SmoothedRTT() time.Duration { return r.smoothedRTT }
func (r *RTTStats) RTTVar() time.Duration      { return r.rttVar }
func (r *RTTStats) LatestRTT() time.Duration   { return r.latestRTT }
