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

// Package packet implements the QUIC v1 packet codec (RFC 9000 §17):
// parsing and serializing long and short headers, header-protection
// apply/remove, and splitting a datagram into its coalesced packets.
// AEAD sealing/opening and header-protection masking are delegated to the
// qcrypto ciphers installed for the packet's encryption level; this package
// only assembles and disassembles the bytes around them.
package packet

import "github.com/nabbar/quicgo/qcrypto"

// LongType distinguishes the four long-header packet types (RFC 9000
// §17.2).
type LongType uint8

const (
	TypeInitial LongType = iota
	TypeZeroRTT
	TypeHandshake
	TypeRetry
)

// ConnectionID is an opaque QUIC connection identifier, 0-20 bytes.
type ConnectionID []byte

// Header is the common decoded header for any packet this codec can
// produce, long or short. ShortHeader fields (SpinBit, KeyPhase) are zero
// for long-header packets and vice versa for Version/Type/Token.
type Header struct {
	IsLong bool

	// Long-header fields.
	Type    LongType
	Version uint32
	DestCID ConnectionID
	SrcCID  ConnectionID
	Token   []byte // Initial packets only

	// Short-header fields.
	SpinBit  bool
	KeyPhase qcrypto.Phase

	// Shared.
	PacketNumber       uint64
	PacketNumberLength int // 1-4, wire length of the truncated PN
}

// Level returns the encryption level a header's packet type is protected
// under.
func (h Header) Level() qcrypto.Level {
	if !h.IsLong {
		return qcrypto.AppData
	}
	switch h.Type {
	case TypeInitial:
		return qcrypto.Initial
	case TypeZeroRTT:
		return qcrypto.ZeroRTT
	case TypeHandshake:
		return qcrypto.Handshake
	default:
		return qcrypto.Initial
	}
}
