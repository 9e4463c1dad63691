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

	"golang.org/x/time/rate"
)

// minPacingRate keeps the limiter from collapsing to a standstill before
// the first RTT sample sets a real rate (recomputed as
// congestion_window / smoothed_rtt once available).
const minPacingRate = 1 << 20 // 1 MB/s

// RatePacer smooths packet departures using a token-bucket limiter keyed
// on the current pacing rate, so a full congestion window is not written
// to the wire in one burst.
type RatePacer struct {
	mu      sync.Mutex
	limiter *rate.Limiter
}

// NewRatePacer builds a pacer with burst capacity for one maximum-size
// datagram.
func NewRatePacer(maxDatagramSize int) *RatePacer {
	return &RatePacer{
		limiter: rate.NewLimiter(rate.Limit(minPacingRate), maxDatagramSize),
	}
}

// TimeUntilSend reports how long to wait, from now, before bytes may be
// sent without violating the current pacing rate.
func (p *RatePacer) TimeUntilSend(now time.Time, bytes int) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	r := p.limiter.ReserveN(now, bytes)
	if !r.OK() {
		return 0
	}
	delay := r.DelayFrom(now)
	r.Cancel()
	return delay
}

// OnPacketSent consumes bytes of pacing budget for a packet actually
// sent at now.
func (p *RatePacer) OnPacketSent(now time.Time, bytes int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.limiter.ReserveN(now, bytes)
}

// SetRate updates the token-bucket fill rate, typically recomputed as
// congestion_window / smoothed_rtt after every RTT update.
func (p *RatePacer) SetRate(bytesPerSecond float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if bytesPerSecond < 1 {
		bytesPerSecond = 1
	}
	p.limiter.SetLimit(rate.Limit(bytesPerSecond))
}
