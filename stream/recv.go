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
	"sort"
	"sync"

	"github.com/nabbar/quicgo/flowcontrol"
	"github.com/nabbar/quicgo/qerr"
)

// recvChunk is one received, possibly out-of-order, byte range.
type recvChunk struct {
	offset uint64
	data   []byte
}

func (c recvChunk) end() uint64 { return c.offset + uint64(len(c.data)) }

// ReceiveStream is the receive half of a stream: an out-of-order
// reassembly buffer with flow-control accounting and the RFC 9000 §3.2
// state machine.
type ReceiveStream struct {
	mu sync.Mutex

	id    uint64
	state RecvState
	fc    *flowcontrol.StreamFlowController

	chunks    []recvChunk
	readOff   uint64
	finalSize *uint64

	resetErrorCode *uint64
}

// NewReceiveStream creates a receive stream seeded with its flow-control
// controller.
func NewReceiveStream(id uint64, fc *flowcontrol.StreamFlowController) *ReceiveStream {
	return &ReceiveStream{id: id, state: RecvStateRecv, fc: fc}
}

// ID returns the stream identifier.
func (r *ReceiveStream) ID() uint64 { return r.id }

// State returns the current receive-side state.
func (r *ReceiveStream) State() RecvState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// HandleStreamFrame reassembles one STREAM frame's payload into the
// receive buffer, enforcing flow control and the immutability of a
// stream's final size once known.
func (r *ReceiveStream) HandleStreamFrame(offset uint64, data []byte, fin bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state.Terminal() || r.state == RecvStateResetRecvd {
		return nil
	}

	end := offset + uint64(len(data))
	if fin {
		if r.finalSize != nil && *r.finalSize != end {
			return qerr.FrameEncodingError("FIN offset inconsistent with previously known final size", nil)
		}
		r.finalSize = &end
		r.state = RecvStateSizeKnown
	}
	if r.finalSize != nil && end > *r.finalSize {
		return qerr.FrameEncodingError("stream data extends beyond its final size", nil)
	}

	if err := r.fc.AddReceived(end); err != nil {
		return err
	}

	if len(data) > 0 {
		r.chunks = append(r.chunks, recvChunk{offset: offset, data: append([]byte(nil), data...)})
		sort.Slice(r.chunks, func(i, j int) bool { return r.chunks[i].offset < r.chunks[j].offset })
	}

	if r.finalSize != nil && r.contiguousThrough() >= *r.finalSize {
		r.state = RecvStateDataRecvd
	}
	return nil
}

// contiguousThrough returns the highest offset reachable by a contiguous
// run of received chunks starting at readOff.
func (r *ReceiveStream) contiguousThrough() uint64 {
	frontier := r.readOff
	for _, c := range r.chunks {
		if c.offset > frontier {
			break
		}
		if c.end() > frontier {
			frontier = c.end()
		}
	}
	return frontier
}

// Read drains contiguously available bytes starting at the current read
// offset into p, returning the number of bytes copied.
func (r *ReceiveStream) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == RecvStateResetRecvd {
		r.state = RecvStateResetRead
		return 0, qerr.ErrStreamClosed(r.id)
	}

	n := 0
	for n < len(p) && len(r.chunks) > 0 {
		c := r.chunks[0]
		if c.offset > r.readOff {
			break
		}
		skip := r.readOff - c.offset
		if skip >= uint64(len(c.data)) {
			r.chunks = r.chunks[1:]
			continue
		}
		avail := c.data[skip:]
		copied := copy(p[n:], avail)
		n += copied
		r.readOff += uint64(copied)
		if uint64(copied) == uint64(len(avail)) {
			r.chunks = r.chunks[1:]
		} else {
			break
		}
	}

	if r.state == RecvStateDataRecvd && r.finalSize != nil && r.readOff >= *r.finalSize {
		r.state = RecvStateDataRead
	}
	if n == 0 && r.state == RecvStateDataRead {
		return 0, nil
	}
	return n, nil
}

// HandleResetStream applies a RESET_STREAM (optionally RESET_STREAM_AT)
// from the peer: data below reliableOffset is still expected and
// reassembled normally, while everything from reliableOffset onward is
// abandoned immediately, per this implementation's decision to support
// reliable reset as a first-class operation.
func (r *ReceiveStream) HandleResetStream(errorCode uint64, finalSize uint64, reliableOffset *uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state.Terminal() {
		return nil
	}
	if r.finalSize != nil && *r.finalSize != finalSize {
		return qerr.FrameEncodingError("RESET_STREAM final size inconsistent with prior data", nil)
	}
	r.finalSize = &finalSize
	if err := r.fc.AddReceived(finalSize); err != nil {
		return err
	}

	if reliableOffset != nil && *reliableOffset > r.contiguousThrough() {
		// Reliable prefix not fully delivered yet: stay in Recv/SizeKnown
		// so the sender's continued retransmission of that prefix is
		// still accepted; only the abandoned tail is dropped.
		r.state = RecvStateSizeKnown
		r.resetErrorCode = &errorCode
		return nil
	}

	r.resetErrorCode = &errorCode
	r.state = RecvStateResetRecvd
	return nil
}

// ResetErrorCode returns the application error code carried by a received
// RESET_STREAM, if one has been applied.
func (r *ReceiveStream) ResetErrorCode() *uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resetErrorCode
}
