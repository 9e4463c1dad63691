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

// Package flowcontrol tracks the send/receive byte windows QUIC enforces
// at both the connection and the stream level (RFC 9000 §4), and decides
// when a MAX_DATA/MAX_STREAM_DATA update or a *_BLOCKED frame is due.
package flowcontrol

import "github.com/nabbar/quicgo/qerr"

// autoTuneFactor is the fraction of the current window consumed before a
// receive-side window is auto-tuned upward on the next update, mirroring
// common receive-buffer-doubling heuristics.
const autoTuneFactor = 2

// Window tracks one direction of one flow-controlled entity (a stream or
// the connection as a whole): bytes already sent/received against an
// advertised limit, the limit itself, and the peer's limit on the
// opposite direction.
type Window struct {
	consumed uint64
	limit    uint64

	peerLimit uint64

	blockedSent bool
}

// NewSendWindow returns a Window for the local send direction, seeded with
// the peer-advertised limit.
func NewSendWindow(peerLimit uint64) *Window {
	return &Window{peerLimit: peerLimit}
}

// NewReceiveWindow returns a Window for the local receive direction,
// seeded with the limit this endpoint has advertised to the peer.
func NewReceiveWindow(limit uint64) *Window {
	return &Window{limit: limit}
}

// Consumed returns the number of bytes accounted so far.
func (w *Window) Consumed() uint64 { return w.consumed }

// Available returns how many more bytes may be sent before hitting the
// peer's advertised limit (send direction) — callers on the receive side
// should use IsViolation instead.
func (w *Window) Available() uint64 {
	if w.consumed >= w.peerLimit {
		return 0
	}
	return w.peerLimit - w.consumed
}

// AddSent records n bytes sent, and reports whether the send is still
// within the peer's advertised limit.
func (w *Window) AddSent(n uint64) bool {
	w.consumed += n
	return w.consumed <= w.peerLimit
}

// UpdatePeerLimit applies a peer MAX_DATA/MAX_STREAM_DATA update. Per RFC
// 9000 §4.1, updates are monotonic: a lower value than already known is
// ignored, never an error (the peer may deliver updates out of order).
func (w *Window) UpdatePeerLimit(newLimit uint64) {
	if newLimit > w.peerLimit {
		w.peerLimit = newLimit
		w.blockedSent = false
	}
}

// PeerLimit returns the last known limit advertised by the peer.
func (w *Window) PeerLimit() uint64 { return w.peerLimit }

// ShouldSendBlocked reports whether a *_BLOCKED frame should be queued:
// the send side has data to send but has hit the peer's limit, and hasn't
// already told the peer so at this limit.
func (w *Window) ShouldSendBlocked() bool {
	if w.blockedSent {
		return false
	}
	return w.consumed >= w.peerLimit
}

// MarkBlockedSent records that a *_BLOCKED frame referencing the current
// peer limit has been queued, so it isn't sent again until the limit
// moves.
func (w *Window) MarkBlockedSent() { w.blockedSent = true }

// AddReceived records highestOffset, the highest byte offset received so
// far, against the local limit, returning
// a FLOW_CONTROL_ERROR if the peer exceeded the advertised window.
func (w *Window) AddReceived(highestOffset uint64) error {
	if highestOffset > w.limit {
		return qerr.FlowControlError("peer exceeded the advertised flow control limit", nil)
	}
	if highestOffset > w.consumed {
		w.consumed = highestOffset
	}
	return nil
}

// MaybeUpdateLimit auto-tunes the receive limit upward once at least half
// of the current window has been consumed, returning the new limit and
// true if an update is due (the caller queues a MAX_DATA/MAX_STREAM_DATA
// frame with it).
func (w *Window) MaybeUpdateLimit() (uint64, bool) {
	if w.consumed*autoTuneFactor < w.limit {
		return w.limit, false
	}
	w.limit *= autoTuneFactor
	return w.limit, true
}

// Limit returns the limit this endpoint currently advertises to the peer.
func (w *Window) Limit() uint64 { return w.limit }
