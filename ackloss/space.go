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

// Package ackloss tracks, per packet-number space, which sent packets are
// still outstanding, turns incoming ACK frames into RTT samples and
// per-frame acknowledgment callbacks, detects loss by reordering and time
// thresholds, and computes the probe timeout.
package ackloss

import (
	"time"

	"github.com/nabbar/quicgo/frame"
)

// Space names one of the three independent packet-number spaces RFC 9000
// §12.3 defines; each runs its own ACK state and loss detection.
type Space int

const (
	SpaceInitial Space = iota
	SpaceHandshake
	SpaceAppData
)

func (s Space) String() string {
	switch s {
	case SpaceInitial:
		return "Initial"
	case SpaceHandshake:
		return "Handshake"
	case SpaceAppData:
		return "AppData"
	default:
		return "Unknown"
	}
}

// SentFrame is a lightweight record of one frame included in a sent
// packet — enough information for the ack/loss visitors to locate the
// stream or crypto range the frame covered without re-parsing wire bytes.
type SentFrame struct {
	Kind     frame.Kind
	StreamID uint64
	Offset   uint64
	Length   uint64
	Fin      bool

	// AckFrameLargest carries the largestAcked value an outgoing ACK
	// frame was built with, so acknowledging it lets the peer's own ACK
	// state be purged up to that point (RFC 9000 §13.2.4).
	AckFrameLargest uint64
}

// OutstandingPacket is one ack-eliciting packet still awaiting
// acknowledgment or loss declaration.
type OutstandingPacket struct {
	PacketNumber uint64
	Space        Space
	SentTime     time.Time
	InFlightSize int
	Frames       []SentFrame

	// CloneGroup, when non-nil, names the probe clone set this packet
	// belongs to: resolving (acking or declaring lost) one member resolves
	// every packet number sharing the pointer's value.
	CloneGroup *uint64

	// Skipped marks a packet number deliberately left unsent as the
	// anti-optimistic-ack defense; it is never actually transmitted, but
	// occupies a slot in the outstanding sequence space so an ACK
	// referencing it can be detected.
	Skipped bool
}
