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

package scheduler

import "github.com/nabbar/quicgo/frame"

// streamFramePriority orders the per-stream control frames ahead of raw
// STREAM data, matching the fact that losing a RESET_STREAM or a
// MAX_STREAM_DATA update is more disruptive than delaying a byte range
// that can simply be retransmitted later.
var streamFramePriority = []frame.Kind{
	frame.KindResetStream,
	frame.KindResetStreamAt,
	frame.KindStopSending,
	frame.KindMaxStreamData,
	frame.KindMaxData,
	frame.KindMaxStreams,
	frame.KindStreamDataBlocked,
	frame.KindDataBlocked,
	frame.KindStreamsBlocked,
	frame.KindStream,
}

// packetPriority is the fixed order frame kinds are packed into a packet:
// acknowledgements first so loss feedback never starves, then the
// handshake (CRYPTO), then the per-stream group above, then liveness and
// best-effort kinds last.
var packetPriority = []frame.Kind{
	frame.KindAck,
	frame.KindCrypto,
	frame.KindResetStream,
	frame.KindResetStreamAt,
	frame.KindStopSending,
	frame.KindMaxStreamData,
	frame.KindMaxData,
	frame.KindMaxStreams,
	frame.KindStreamDataBlocked,
	frame.KindDataBlocked,
	frame.KindStreamsBlocked,
	frame.KindStream,
	frame.KindPing,
	frame.KindDatagram,
	frame.KindImmediateAck,
}

// priorityIndex maps each kind to its position in packetPriority for O(1)
// comparisons; kinds absent from packetPriority (e.g. PADDING, the
// connection-close kinds, path validation and connection-ID maintenance)
// sort after everything listed, keeping their input order relative to
// each other, since the write loop special-cases them outside the normal pass.
var priorityIndex = func() map[frame.Kind]int {
	m := make(map[frame.Kind]int, len(packetPriority))
	for i, k := range packetPriority {
		m[k] = i
	}
	return m
}()

func rank(k frame.Kind) int {
	if i, ok := priorityIndex[k]; ok {
		return i
	}
	return len(packetPriority)
}

// OrderFrames sorts frames into packing order. The sort is stable so
// frames of the same kind (e.g. multiple STREAM frames from different
// streams) retain whatever order the caller already chose among them
// (typically the stream manager's round-robin order).
func OrderFrames(frames []frame.Frame) []frame.Frame {
	out := make([]frame.Frame, len(frames))
	copy(out, frames)
	stableInsertionSort(out)
	return out
}

func stableInsertionSort(frames []frame.Frame) {
	for i := 1; i < len(frames); i++ {
		j := i
		for j > 0 && rank(frames[j].Kind) < rank(frames[j-1].Kind) {
			frames[j], frames[j-1] = frames[j-1], frames[j]
			j--
		}
	}
}
