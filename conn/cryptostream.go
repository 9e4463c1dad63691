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

package conn

import (
	"sort"
	"sync"
)

// cryptoChunk is one received, possibly out-of-order, CRYPTO frame payload.
type cryptoChunk struct {
	offset uint64
	data   []byte
}

func (c cryptoChunk) end() uint64 { return c.offset + uint64(len(c.data)) }

// cryptoRecvBuffer reassembles CRYPTO frame bytes for a single encryption
// level into the in-order stream the handshake engine expects, mirroring
// stream.ReceiveStream's reassembly logic minus flow control: CRYPTO data
// carries no flow-control accounting of its own (RFC 9000 section 7.5).
type cryptoRecvBuffer struct {
	mu sync.Mutex

	chunks  []cryptoChunk
	readOff uint64
}

func (b *cryptoRecvBuffer) handleFrame(offset uint64, data []byte) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(data) > 0 {
		b.chunks = append(b.chunks, cryptoChunk{offset: offset, data: append([]byte(nil), data...)})
		sort.Slice(b.chunks, func(i, j int) bool { return b.chunks[i].offset < b.chunks[j].offset })
	}

	var out []byte
	for len(b.chunks) > 0 {
		c := b.chunks[0]
		if c.offset > b.readOff {
			break
		}
		skip := b.readOff - c.offset
		if skip >= uint64(len(c.data)) {
			b.chunks = b.chunks[1:]
			continue
		}
		avail := c.data[skip:]
		out = append(out, avail...)
		b.readOff += uint64(len(avail))
		b.chunks = b.chunks[1:]
	}
	return out
}

// cryptoSendBuffer accumulates outgoing CRYPTO bytes for one level and
// drains them in caller-sized slices suitable for a single CRYPTO frame,
// tracking the offset each slice started at so the frame can be built with
// its correct wire offset.
type cryptoSendBuffer struct {
	mu sync.Mutex

	buf      []byte
	sentOff  uint64
	writeOff uint64
}

func (b *cryptoSendBuffer) write(p []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	b.writeOff += uint64(len(p))
}

// drain returns up to maxLen unsent bytes along with the offset they start
// at, advancing the internal send cursor. It does not forget the bytes:
// ackloss retransmission replays from the same buffer by offset.
func (b *cryptoSendBuffer) drain(maxLen int) ([]byte, uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	pending := b.buf[b.sentOff-b.base():]
	if len(pending) == 0 {
		return nil, b.sentOff
	}
	n := maxLen
	if n > len(pending) {
		n = len(pending)
	}
	off := b.sentOff
	b.sentOff += uint64(n)
	return pending[:n], off
}

// base returns the offset of buf[0]; crypto send buffers never trim so it
// is always zero, kept as a seam for a future bounded ring buffer.
func (b *cryptoSendBuffer) base() uint64 { return 0 }

func (b *cryptoSendBuffer) pending() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.writeOff - b.sentOff
}
