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
	"math/rand"
	"sync"
	"time"

	"github.com/nabbar/quicgo/frame"
	"github.com/nabbar/quicgo/qerr"
)

// Default loss-detection constants from RFC 9002 §6.1/§6.2.
const (
	defaultReorderingThreshold = 3
	defaultKGranularity        = time.Millisecond
	timeThresholdDividend      = 9
	timeThresholdDivisor       = 8
	maxPTOBackoffShift         = 6 // caps 2^ptoCount growth at 64x
)

// AckVisitor is invoked once per sent frame covered by a newly-acked
// packet, dispatched by frame kind per this implementation's ACK
// processing rules.
type AckVisitor struct {
	OnStreamAcked        func(sf SentFrame)
	OnCryptoAcked        func(sf SentFrame)
	OnResetAcked         func(sf SentFrame)
	OnWindowUpdateAcked  func(sf SentFrame)
	OnAckFrameAcked      func(largestAckedByPeer uint64)
	OnHandshakeDoneAcked func()
	OnPingAcked          func()
}

// LossVisitor is invoked once per sent frame covered by a packet declared
// lost, so the connection can re-queue retransmittable content.
type LossVisitor struct {
	OnStreamLost       func(sf SentFrame)
	OnCryptoLost       func(sf SentFrame)
	OnWindowUpdateLost func(sf SentFrame)
	OnSimpleFrameLost  func(kind frame.Kind)
}

// CongestionNotifier is the subset of congestion.Controller the tracker
// drives directly; kept as a local interface so ackloss has no import
// dependency on the congestion package.
type CongestionNotifier interface {
	OnPacketAcked(sentTime time.Time, bytes int)
	OnPacketLost(sentTime time.Time, bytes int)
}

// Tracker owns the outstanding-packet deque, RTT estimator, loss
// detection and PTO computation for one packet-number space.
type Tracker struct {
	mu sync.Mutex

	space Space
	rtt   *RTTStats

	outstanding []*OutstandingPacket

	largestSent     uint64
	hasLargestSent  bool
	largestAcked    uint64
	hasLargestAcked bool

	ptoCount int

	nextPN      uint64
	skippedPNs  map[uint64]bool
	cloneGroups map[uint64]map[uint64]bool // group id -> set of live packet numbers

	nextCloneGroup uint64

	reorderingThreshold uint64
	kGranularity        time.Duration
}

// NewTracker builds a Tracker for the given space with RFC-default loss
// detection parameters.
func NewTracker(space Space) *Tracker {
	return &Tracker{
		space:               space,
		rtt:                 NewRTTStats(),
		skippedPNs:          make(map[uint64]bool),
		cloneGroups:         make(map[uint64]map[uint64]bool),
		reorderingThreshold: defaultReorderingThreshold,
		kGranularity:        defaultKGranularity,
	}
}

// RTT returns the space's RTT estimator.
func (t *Tracker) RTT() *RTTStats { return t.rtt }

// ReserveNext returns the next packet number to send in this space. When
// skipDenominator > 0, with probability 1/skipDenominator it instead
// consumes and records one extra packet number as deliberately skipped
// (the anti-optimistic-ack defense) before returning the following one.
func (t *Tracker) ReserveNext(skipDenominator int) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	pn := t.nextPN
	t.nextPN++
	if skipDenominator > 0 && rand.Intn(skipDenominator) == 0 {
		t.skippedPNs[pn] = true
		pn = t.nextPN
		t.nextPN++
	}
	return pn
}

// NewCloneGroup allocates a fresh clone-group identifier for a probe
// packet family: acknowledging any member, or declaring any member lost,
// resolves every packet number registered under it.
func (t *Tracker) NewCloneGroup() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextCloneGroup
	t.nextCloneGroup++
	t.cloneGroups[id] = make(map[uint64]bool)
	return id
}

// SentPacket records a newly sent ack-eliciting packet as outstanding.
// cloneGroup, if non-nil, names a group built with NewCloneGroup.
func (t *Tracker) SentPacket(pn uint64, sentTime time.Time, frames []SentFrame, inFlightSize int, cloneGroup *uint64) *OutstandingPacket {
	t.mu.Lock()
	defer t.mu.Unlock()

	pkt := &OutstandingPacket{
		PacketNumber: pn,
		Space:        t.space,
		SentTime:     sentTime,
		InFlightSize: inFlightSize,
		Frames:       frames,
		CloneGroup:   cloneGroup,
	}
	t.outstanding = append(t.outstanding, pkt)
	if !t.hasLargestSent || pn > t.largestSent {
		t.largestSent = pn
		t.hasLargestSent = true
	}
	if cloneGroup != nil {
		if g, ok := t.cloneGroups[*cloneGroup]; ok {
			g[pn] = true
		}
	}
	return pkt
}

// LargestSent returns the largest packet number sent so far in this
// space.
func (t *Tracker) LargestSent() (uint64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.largestSent, t.hasLargestSent
}

// LargestAcked returns the largest packet number the peer has acknowledged
// so far in this space, used to pick the minimal packet-number encoding
// length for the next packet sent (RFC 9000 §17.1).
func (t *Tracker) LargestAcked() (uint64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.largestAcked, t.hasLargestAcked
}

func ackRangesCover(ranges []frame.AckRange, pn uint64) bool {
	for _, r := range ranges {
		if pn >= r.Smallest && pn <= r.Largest {
			return true
		}
	}
	return false
}

// ProcessAck applies a received ACK frame: removes every newly-covered
// outstanding packet, dispatches per-frame acknowledgment callbacks,
// extracts an RTT sample when eligible, and resolves clone groups.
//
// ackDelay is the frame's ACK_DELAY already decoded to a time.Duration.
// now is the local receive time of the ACK.
func (t *Tracker) ProcessAck(ack frame.AckFrame, now time.Time, ackDelay time.Duration, visitor AckVisitor) ([]*OutstandingPacket, *RTTSample, error) {
	t.mu.Lock()

	if t.hasLargestSent && ack.LargestAcked > t.largestSent {
		t.mu.Unlock()
		return nil, nil, qerr.ProtocolViolation("ACK references a packet number never sent", nil)
	}
	if t.skippedPNs[ack.LargestAcked] || ackCoversAnySkipped(ack.Ranges, t.skippedPNs) {
		t.mu.Unlock()
		return nil, nil, qerr.ProtocolViolation("ACK references a deliberately skipped packet number", nil)
	}

	var newlyAcked []*OutstandingPacket
	var remaining []*OutstandingPacket
	var largestNewlyAcked *OutstandingPacket

	for _, pkt := range t.outstanding {
		if ackRangesCover(ack.Ranges, pkt.PacketNumber) {
			newlyAcked = append(newlyAcked, pkt)
			if largestNewlyAcked == nil || pkt.PacketNumber > largestNewlyAcked.PacketNumber {
				largestNewlyAcked = pkt
			}
		} else {
			remaining = append(remaining, pkt)
		}
	}
	t.outstanding = remaining

	resolvedGroups := make(map[uint64]bool)
	for _, pkt := range newlyAcked {
		if pkt.CloneGroup != nil {
			resolvedGroups[*pkt.CloneGroup] = true
		}
	}
	if len(resolvedGroups) > 0 {
		var kept []*OutstandingPacket
		for _, pkt := range t.outstanding {
			if pkt.CloneGroup != nil && resolvedGroups[*pkt.CloneGroup] {
				continue // released by the clone group resolving above
			}
			kept = append(kept, pkt)
		}
		t.outstanding = kept
		for id := range resolvedGroups {
			delete(t.cloneGroups, id)
		}
	}

	if ack.LargestAcked > t.largestAcked || !t.hasLargestAcked {
		t.largestAcked = ack.LargestAcked
		t.hasLargestAcked = true
	}

	var sample *RTTSample
	if largestNewlyAcked != nil && largestNewlyAcked.PacketNumber == ack.LargestAcked {
		t.ptoCount = 0
		s := t.rtt.Update(largestNewlyAcked.SentTime, now, ackDelay)
		sample = &s
	}

	t.mu.Unlock()

	for _, pkt := range newlyAcked {
		dispatchAcked(pkt, visitor)
	}
	return newlyAcked, sample, nil
}

func ackCoversAnySkipped(ranges []frame.AckRange, skipped map[uint64]bool) bool {
	for pn := range skipped {
		if ackRangesCover(ranges, pn) {
			return true
		}
	}
	return false
}

func dispatchAcked(pkt *OutstandingPacket, visitor AckVisitor) {
	for _, sf := range pkt.Frames {
		switch sf.Kind {
		case frame.KindStream:
			if visitor.OnStreamAcked != nil {
				visitor.OnStreamAcked(sf)
			}
		case frame.KindCrypto:
			if visitor.OnCryptoAcked != nil {
				visitor.OnCryptoAcked(sf)
			}
		case frame.KindResetStream, frame.KindResetStreamAt:
			if visitor.OnResetAcked != nil {
				visitor.OnResetAcked(sf)
			}
		case frame.KindMaxData, frame.KindMaxStreamData, frame.KindMaxStreams:
			if visitor.OnWindowUpdateAcked != nil {
				visitor.OnWindowUpdateAcked(sf)
			}
		case frame.KindAck:
			if visitor.OnAckFrameAcked != nil {
				visitor.OnAckFrameAcked(sf.AckFrameLargest)
			}
		case frame.KindHandshakeDone:
			if visitor.OnHandshakeDoneAcked != nil {
				visitor.OnHandshakeDoneAcked()
			}
		case frame.KindPing:
			if visitor.OnPingAcked != nil {
				visitor.OnPingAcked()
			}
		}
	}
}

// lossDelay computes the time-threshold loss window per RFC 9002 §6.1.2.
func (t *Tracker) lossDelay() time.Duration {
	sRTT := t.rtt.SmoothedRTT()
	latest := t.rtt.LatestRTT()
	base := sRTT
	if latest > base {
		base = latest
	}
	d := base * timeThresholdDividend / timeThresholdDivisor
	if d < t.kGranularity {
		d = t.kGranularity
	}
	return d
}

// DetectLosses scans outstanding packets at or below the largest acked
// packet number and declares loss by the reordering and time thresholds,
// dispatching the loss visitor and removing lost packets from the
// outstanding set. It returns the declared-lost packets and, if any
// remain outstanding and eligible, the earliest time a future loss-timer
// fire should re-run detection.
func (t *Tracker) DetectLosses(now time.Time, visitor LossVisitor) ([]*OutstandingPacket, time.Time) {
	t.mu.Lock()

	if !t.hasLargestAcked {
		t.mu.Unlock()
		return nil, time.Time{}
	}

	delay := t.lossDelay()
	var lost []*OutstandingPacket
	var remaining []*OutstandingPacket
	var nextLossTime time.Time

	for _, pkt := range t.outstanding {
		if pkt.PacketNumber > t.largestAcked {
			remaining = append(remaining, pkt)
			continue
		}
		byReorder := t.largestAcked-pkt.PacketNumber >= t.reorderingThreshold
		lossTime := pkt.SentTime.Add(delay)
		byTime := !now.Before(lossTime)

		if byReorder || byTime {
			lost = append(lost, pkt)
			continue
		}
		remaining = append(remaining, pkt)
		if nextLossTime.IsZero() || lossTime.Before(nextLossTime) {
			nextLossTime = lossTime
		}
	}
	for _, pkt := range lost {
		if pkt.CloneGroup == nil {
			continue
		}
		delete(t.cloneGroups, *pkt.CloneGroup)
		var kept []*OutstandingPacket
		for _, r := range remaining {
			if r.CloneGroup == nil || *r.CloneGroup != *pkt.CloneGroup {
				kept = append(kept, r) // siblings are released with the lost member
			}
		}
		remaining = kept
	}
	t.outstanding = remaining
	t.mu.Unlock()

	for _, pkt := range lost {
		for _, sf := range pkt.Frames {
			switch sf.Kind {
			case frame.KindStream:
				if visitor.OnStreamLost != nil {
					visitor.OnStreamLost(sf)
				}
			case frame.KindCrypto:
				if visitor.OnCryptoLost != nil {
					visitor.OnCryptoLost(sf)
				}
			case frame.KindMaxData, frame.KindMaxStreamData, frame.KindMaxStreams:
				if visitor.OnWindowUpdateLost != nil {
					visitor.OnWindowUpdateLost(sf)
				}
			default:
				if visitor.OnSimpleFrameLost != nil {
					visitor.OnSimpleFrameLost(sf.Kind)
				}
			}
		}
	}
	return lost, nextLossTime
}

// ComputePTO returns the probe-timeout duration for this space per
// RFC 9002 §6.2.1, backed off exponentially by the current probe count.
func (t *Tracker) ComputePTO(maxAckDelay time.Duration) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	rttVarTerm := 4 * t.rtt.RTTVar()
	if rttVarTerm < t.kGranularity {
		rttVarTerm = t.kGranularity
	}
	base := t.rtt.SmoothedRTT() + rttVarTerm + maxAckDelay

	shift := t.ptoCount
	if shift > maxPTOBackoffShift {
		shift = maxPTOBackoffShift
	}
	return base << shift
}

// OnPTOFired records that a probe timeout fired, backing off the next
// PTO computation.
func (t *Tracker) OnPTOFired() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ptoCount++
}

// PTOCount returns the current probe count.
func (t *Tracker) PTOCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ptoCount
}

// OutstandingCount returns the number of packets currently outstanding,
// for tests and diagnostics.
func (t *Tracker) OutstandingCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.outstanding)
}
