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

package stream

import (
	"sync"

	"github.com/nabbar/quicgo/flowcontrol"
	"github.com/nabbar/quicgo/qerr"
)

// SendStream is the send half of a stream: an append-only byte buffer with
// flow-control accounting and the RFC 9000 §3.1 state machine, including
// RESET_STREAM_AT (reliable reset), which lets a reset still guarantee
// delivery of the bytes below a chosen offset instead of abandoning the
// stream outright.
type SendStream struct {
	mu sync.Mutex

	id    uint64
	state SendState
	fc    *flowcontrol.StreamFlowController

	buf       []byte
	writeOff  uint64 // end of buffered data, i.e. next byte to append at
	sentOff   uint64 // bytes already handed to the scheduler at least once
	acked     []byteRange // sorted, non-overlapping, increasing acked intervals
	lost      []byteRange // sorted, non-overlapping, increasing loss buffer awaiting retransmission
	finSet    bool
	finalSize uint64

	resetErrorCode uint64
	reliableSize   *uint64 // RESET_STREAM_AT: bytes below this offset still delivered
	resetFrameSent bool    // the RESET_STREAM/RESET_STREAM_AT frame itself has been written once

	events *ByteEventRegistry
}

// NewSendStream creates a send stream seeded with its flow-control
// controller.
func NewSendStream(id uint64, fc *flowcontrol.StreamFlowController) *SendStream {
	return &SendStream{id: id, state: SendStateReady, fc: fc, events: NewByteEventRegistry()}
}

// ID returns the stream identifier.
func (s *SendStream) ID() uint64 { return s.id }

// State returns the current send-side state.
func (s *SendStream) State() SendState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Write appends data to the stream's send buffer. It is rejected once the
// stream has moved past Send (e.g. after Reset or after Fin has closed
// the byte range).
func (s *SendStream) Write(p []byte, fin bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != SendStateReady && s.state != SendStateSend {
		return 0, qerr.ErrStreamClosed(s.id)
	}
	if s.finSet {
		return 0, qerr.ErrInvalidOperation("write after FIN")
	}

	s.buf = append(s.buf, p...)
	s.writeOff += uint64(len(p))
	if s.state == SendStateReady {
		s.state = SendStateSend
	}
	if fin {
		s.finSet = true
		s.finalSize = s.writeOff
	}
	return len(p), nil
}

// PendingBytes reports how many bytes are owed to the scheduler: bytes
// sitting in the loss buffer awaiting retransmission, plus whatever has
// not yet been handed to it for framing at all.
func (s *SendStream) PendingBytes() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	pending := s.lossLenLocked()
	if s.state == SendStateResetSent || s.state == SendStateResetRecvd {
		if s.reliableSize != nil && s.sentOff < *s.reliableSize {
			pending += *s.reliableSize - s.sentOff
		}
		return pending
	}
	return pending + (s.writeOff - s.sentOff)
}

// lossLenLocked sums the outstanding loss buffer. Caller holds s.mu.
func (s *SendStream) lossLenLocked() uint64 {
	var n uint64
	for _, r := range s.lost {
		n += r.end - r.start
	}
	return n
}

// DrainForFrame removes up to maxLen bytes for inclusion in a STREAM
// frame, returning the data, its starting offset, and whether this chunk
// carries the stream's FIN. Bytes sitting in the loss buffer are always
// re-offered before any new, never-yet-sent data, per RFC 9000's
// retransmission requirement for lost STREAM frames.
func (s *SendStream) DrainForFrame(maxLen int) (data []byte, offset uint64, fin bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if data, offset, ok := s.drainLostLocked(maxLen); ok {
		fin = s.finSet && offset+uint64(len(data)) == s.finalSize
		return data, offset, fin
	}

	if s.state == SendStateResetSent || s.state == SendStateResetRecvd {
		// RESET_STREAM_AT still owes the peer reliable delivery of the
		// prefix below reliableSize; anything at or beyond it is abandoned.
		if s.reliableSize == nil || s.sentOff >= *s.reliableSize {
			return nil, 0, false
		}
		if remaining := *s.reliableSize - s.sentOff; uint64(maxLen) > remaining {
			maxLen = int(remaining)
		}
	}

	avail := s.writeOff - s.sentOff
	if avail == 0 {
		return nil, s.sentOff, false
	}

	credit := s.fc.SendCredit()
	n := avail
	if uint64(maxLen) < n {
		n = uint64(maxLen)
	}
	if credit < n {
		n = credit
	}
	if n == 0 {
		return nil, s.sentOff, false
	}

	rel := s.sentOff - s.bufBase()
	data = append([]byte(nil), s.buf[rel:rel+n]...)
	offset = s.sentOff
	s.sentOff += n
	s.fc.AddSent(n)

	if s.finSet && s.sentOff == s.finalSize {
		fin = true
		if s.state == SendStateSend {
			s.state = SendStateDataSent
		}
	}
	return data, offset, fin
}

// drainLostLocked returns up to maxLen bytes from the oldest range still
// in the loss buffer, removing that much from it since it is back in
// flight; ok is false if nothing is currently marked lost. Caller holds
// s.mu.
func (s *SendStream) drainLostLocked(maxLen int) (data []byte, offset uint64, ok bool) {
	if len(s.lost) == 0 {
		return nil, 0, false
	}
	r := s.lost[0]
	n := r.end - r.start
	if uint64(maxLen) < n {
		n = uint64(maxLen)
	}
	if n == 0 {
		return nil, 0, false
	}
	rel := r.start - s.bufBase()
	data = append([]byte(nil), s.buf[rel:rel+n]...)
	if n == r.end-r.start {
		s.lost = s.lost[1:]
	} else {
		s.lost[0].start += n
	}
	return data, r.start, true
}

// MarkLost re-queues [offset, offset+length) in the loss buffer for
// retransmission, mirroring the crypto stream's OnCryptoLost rewind but
// as a real range set: a stream can have several independent lost
// ranges in flight at once, unlike the sequential crypto stream. Any
// sub-range already confirmed by an ACK is excluded, since a reordered
// ACK can beat the loss timer.
func (s *SendStream) MarkLost(offset, length uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range rangeGaps(s.acked, offset, offset+length) {
		s.lost = rangeInsert(s.lost, g.start, g.end)
	}
}

// bufBase returns the offset of buf[0] within the stream's byte space.
// Bytes acknowledged and trimmed from buf shift this base forward.
func (s *SendStream) bufBase() uint64 {
	return s.writeOff - uint64(len(s.buf))
}

// OnAcked records that [offset, offset+n) has been acknowledged into the
// stream's sorted, non-overlapping acked-interval set, trimming the
// contiguous-from-zero prefix out of the buffer and firing any byte-event
// callbacks it now satisfies. Acks may arrive out of order; merging into
// the interval set (rather than a single forward-only watermark) ensures
// a later, lower-offset ack is not permanently lost.
func (s *SendStream) OnAcked(offset uint64, n uint64) {
	s.mu.Lock()
	end := offset + n
	s.acked = rangeInsert(s.acked, offset, end)
	s.lost = rangeSubtract(s.lost, offset, end)

	base := s.bufBase()
	trim := uint64(0)
	if len(s.acked) > 0 && s.acked[0].start <= base && s.acked[0].end > base {
		trim = s.acked[0].end - base
	}
	if trim > 0 && trim <= uint64(len(s.buf)) {
		s.buf = s.buf[trim:]
	}

	done := s.finSet && s.state == SendStateDataSent && rangeCovers(s.acked, 0, s.finalSize)
	if done {
		s.state = SendStateDataRecvd
	}
	frontier := uint64(0)
	if len(s.acked) > 0 && s.acked[0].start == 0 {
		frontier = s.acked[0].end
	}
	s.mu.Unlock()

	s.events.Fire(frontier)
}

// Reset moves the stream to ResetSent, per RESET_STREAM_AT optionally
// preserving reliable delivery of bytes below reliableOffset: the send
// side still retransmits that prefix until acknowledged even though the
// stream is logically reset, per the decision recorded for this
// implementation to support RESET_STREAM_AT as a first-class operation
// rather than a deferred extension.
func (s *SendStream) Reset(errorCode uint64, reliableOffset *uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Terminal() {
		return qerr.ErrStreamClosed(s.id)
	}

	s.resetErrorCode = errorCode
	s.reliableSize = reliableOffset
	s.state = SendStateResetSent
	if reliableOffset == nil {
		s.lost = nil
	} else {
		s.lost = rangeClip(s.lost, *reliableOffset)
	}
	return nil
}

// ReliableSize returns the RESET_STREAM_AT reliable prefix offset, if one
// was set on Reset.
func (s *SendStream) ReliableSize() *uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reliableSize
}

// WriteOffset returns the end of buffered data, the value RESET_STREAM's
// Final Size field reports as "the amount of data sent" when the stream is
// reset (RFC 9000 §19.4).
func (s *SendStream) WriteOffset() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeOff
}

// NeedsResetFrame reports whether a RESET_STREAM/RESET_STREAM_AT frame is
// owed to the peer: the stream has been reset locally but the frame
// carrying that reset has not yet gone out once (loss of the frame itself
// is retried through the same ackloss.SentFrame bookkeeping as any other
// frame, not through this flag).
func (s *SendStream) NeedsResetFrame() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == SendStateResetSent && !s.resetFrameSent
}

// MarkResetFrameSent records that the RESET_STREAM frame has gone out at
// least once.
func (s *SendStream) MarkResetFrameSent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetFrameSent = true
}

// ResetErrorCode returns the application error code passed to Reset.
func (s *SendStream) ResetErrorCode() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resetErrorCode
}

// UpdatePeerSendLimit applies a MAX_STREAM_DATA frame's advertised limit
// to this stream's send-side flow-control window.
func (s *SendStream) UpdatePeerSendLimit(limit uint64) {
	s.fc.Send().UpdatePeerLimit(limit)
}

// OnResetAcked transitions a reset stream to ResetRecvd once the peer has
// acknowledged the RESET_STREAM frame.
func (s *SendStream) OnResetAcked() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == SendStateResetSent {
		s.state = SendStateResetRecvd
	}
}

// RegisterByteEvent arms a callback to fire once offset has been fully
// acknowledged, per the offset-sorted next-loop delivery discipline
// shared across the stream manager.
func (s *SendStream) RegisterByteEvent(offset uint64, cb func()) error {
	return s.events.Register(offset, cb)
}
