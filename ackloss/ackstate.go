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

import (
	"sort"
	"sync"
	"time"

	"github.com/bits-and-blooms/bitset"

	"github.com/nabbar/quicgo/frame"
)

// defaultAckStateWindow bounds how many distinct packet numbers an
// AckState remembers before pruning the oldest, keeping the generated ACK
// frame's range list bounded regardless of how long a space has been
// open.
const defaultAckStateWindow = 2048

// AckState tracks which packet numbers this endpoint has received in one
// packet-number space, so an ACK frame covering them can be built. A
// bitset sieve, indexed by packet-number modulo the window size, gives an
// O(1) duplicate check before the authoritative map lookup — the receive
// path's first line of defense against re-processing a retransmitted
// duplicate.
type AckState struct {
	mu sync.Mutex

	capacity uint64
	sieve    *bitset.BitSet
	received map[uint64]time.Time
	eliciting map[uint64]bool

	hasAny      bool
	largest     uint64
	largestTime time.Time
}

// NewAckState builds an AckState with the default receive window.
func NewAckState() *AckState {
	return &AckState{
		capacity:  defaultAckStateWindow,
		sieve:     bitset.New(defaultAckStateWindow),
		received:  make(map[uint64]time.Time),
		eliciting: make(map[uint64]bool),
	}
}

// RecordReceived registers pn as received at now, returning false without
// side effects if pn is a duplicate of an already-recorded packet.
func (a *AckState) RecordReceived(pn uint64, now time.Time, ackEliciting bool) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	idx := uint(pn % a.capacity)
	if a.sieve.Test(idx) {
		if _, dup := a.received[pn]; dup {
			return false
		}
	}

	a.sieve.Set(idx)
	a.received[pn] = now
	if ackEliciting {
		a.eliciting[pn] = true
	}

	if !a.hasAny || pn > a.largest {
		a.largest = pn
		a.largestTime = now
		a.hasAny = true
	}
	a.pruneLocked()
	return true
}

// pruneLocked drops tracked packet numbers that have fallen out of the
// receive window, bounding memory use on a long-lived space.
func (a *AckState) pruneLocked() {
	if a.largest < a.capacity {
		return
	}
	floor := a.largest - a.capacity
	for pn := range a.received {
		if pn < floor {
			delete(a.received, pn)
			delete(a.eliciting, pn)
		}
	}
}

// HasAckEliciting reports whether any currently-tracked received packet
// was ack-eliciting, i.e. whether an ACK is owed at all.
func (a *AckState) HasAckEliciting() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.eliciting) > 0
}

// Largest returns the largest packet number received so far and the time
// it arrived.
func (a *AckState) Largest() (uint64, time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.largest, a.largestTime
}

// BuildRanges returns the received packet numbers compressed into
// descending, non-overlapping inclusive ranges suitable for
// frame.AckFrame.Ranges (largest range first, per RFC 9000 §19.3).
func (a *AckState) BuildRanges() []frame.AckRange {
	a.mu.Lock()
	pns := make([]uint64, 0, len(a.received))
	for pn := range a.received {
		pns = append(pns, pn)
	}
	a.mu.Unlock()

	sort.Slice(pns, func(i, j int) bool { return pns[i] > pns[j] })

	var ranges []frame.AckRange
	for i := 0; i < len(pns); {
		largest := pns[i]
		smallest := largest
		j := i + 1
		for j < len(pns) && pns[j] == smallest-1 {
			smallest = pns[j]
			j++
		}
		ranges = append(ranges, frame.AckRange{Smallest: smallest, Largest: largest})
		i = j
	}
	return ranges
}

// PurgeUpTo drops tracked receive state for packet numbers at or below
// largestAckedByPeer, once the peer's own ACK confirms it no longer needs
// this endpoint to keep reporting them (RFC 9000 §13.2.4).
func (a *AckState) PurgeUpTo(largestAckedByPeer uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for pn := range a.received {
		if pn <= largestAckedByPeer {
			delete(a.received, pn)
			delete(a.eliciting, pn)
		}
	}
}
