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

// Package qtp encodes, decodes, and validates the QUIC transport parameter
// set exchanged inside the TLS handshake extension (RFC 9000 §18), plus
// this implementation's custom extension parameters.
package qtp

// kMaxDatagramPacketOverhead bounds the minimum non-zero
// max_datagram_frame_size a peer may advertise.
const kMaxDatagramPacketOverhead = 47

// Parameters holds every transport parameter this endpoint understands,
// both the standard RFC 9000 set and the custom extensions. Zero-value
// fields mean "not present/default": preferred_address is absent when its
// pointer is nil, and the connection ID fields when their slice is empty.
type Parameters struct {
	OriginalDestinationConnectionID []byte
	MaxIdleTimeoutMs                uint64
	StatelessResetToken             *[16]byte
	MaxUDPPayloadSize               uint64
	InitialMaxData                  uint64
	InitialMaxStreamDataBidiLocal   uint64
	InitialMaxStreamDataBidiRemote  uint64
	InitialMaxStreamDataUni         uint64
	InitialMaxStreamsBidi           uint64
	InitialMaxStreamsUni            uint64
	AckDelayExponent                uint64
	MaxAckDelayMs                   uint64
	DisableActiveMigration          bool
	PreferredAddress                *PreferredAddress
	ActiveConnectionIDLimit         uint64
	InitialSourceConnectionID       []byte
	RetrySourceConnectionID         []byte
	MaxDatagramFrameSize            uint64
	MinAckDelayUs                   uint64

	// Custom extensions.
	StreamGroupsEnabled        bool
	AckReceiveTimestampsEnabled bool
	MaxReceiveTimestampsPerAck uint64
	ReceiveTimestampsExponent  uint64
	KnobFramesSupported        bool
	ExtendedAckFeatures        uint64
	ReliableStreamReset        bool
	CwndHintBytes              uint64
	ClientDirectEncap          bool
}

// PreferredAddress carries the server's preferred_address transport
// parameter (RFC 9000 §18.2).
type PreferredAddress struct {
	IPv4                [4]byte
	IPv4Port            uint16
	IPv6                [16]byte
	IPv6Port            uint16
	ConnectionID        []byte
	StatelessResetToken [16]byte
}

// Default returns the parameter set this endpoint offers before any peer
// negotiation, with every numeric limit at its spec-recommended default.
func Default() Parameters {
	return Parameters{
		MaxIdleTimeoutMs:               30000,
		MaxUDPPayloadSize:              1452,
		InitialMaxData:                 1 << 20,
		InitialMaxStreamDataBidiLocal:  1 << 18,
		InitialMaxStreamDataBidiRemote: 1 << 18,
		InitialMaxStreamDataUni:        1 << 18,
		InitialMaxStreamsBidi:          100,
		InitialMaxStreamsUni:           100,
		AckDelayExponent:               3,
		MaxAckDelayMs:                  25,
		ActiveConnectionIDLimit:        4,
		MaxReceiveTimestampsPerAck:     10,
		ReceiveTimestampsExponent:      3,
	}
}
