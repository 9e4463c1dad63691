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

// Package frame represents the closed QUIC frame set as a tagged variant
// (a Kind byte plus one populated payload struct) instead of a class
// hierarchy, so dispatch is an exhaustive switch the compiler can be made
// to check rather than virtual-call polymorphism.
package frame

// Kind identifies which payload field of a Frame is populated.
type Kind uint8

const (
	KindPadding Kind = iota
	KindPing
	KindAck
	KindResetStream
	KindResetStreamAt
	KindStopSending
	KindCrypto
	KindNewToken
	KindStream
	KindMaxData
	KindMaxStreamData
	KindMaxStreams
	KindDataBlocked
	KindStreamDataBlocked
	KindStreamsBlocked
	KindNewConnectionID
	KindRetireConnectionID
	KindPathChallenge
	KindPathResponse
	KindConnectionCloseTransport
	KindConnectionCloseApplication
	KindHandshakeDone
	KindDatagram
	KindAckFrequency
	KindImmediateAck
	KindKnob
)

// StreamType distinguishes bidirectional from unidirectional stream IDs;
// carried alongside stream-related frames for convenience, not part of the
// wire encoding itself (the stream ID's low bits already determine it).
type StreamType uint8

const (
	StreamBidi StreamType = iota
	StreamUni
)

// Frame is the tagged union over every frame this codec can produce or
// consume. Exactly one of the payload fields is meaningful, selected by
// Kind; ack-eliciting-ness is derived from Kind via IsAckEliciting.
type Frame struct {
	Kind Kind

	Ack                     *AckFrame
	ResetStream             *ResetStreamFrame
	StopSending             *StopSendingFrame
	Crypto                  *CryptoFrame
	NewToken                *NewTokenFrame
	Stream                  *StreamFrame
	MaxData                 *MaxDataFrame
	MaxStreamData           *MaxStreamDataFrame
	MaxStreams              *MaxStreamsFrame
	DataBlocked             *DataBlockedFrame
	StreamDataBlocked       *StreamDataBlockedFrame
	StreamsBlocked          *StreamsBlockedFrame
	NewConnectionID         *NewConnectionIDFrame
	RetireConnectionID      *RetireConnectionIDFrame
	PathChallenge           *PathChallengeFrame
	PathResponse            *PathResponseFrame
	ConnectionCloseTransport *ConnectionCloseTransportFrame
	ConnectionCloseApplication *ConnectionCloseApplicationFrame
	Datagram                *DatagramFrame
	AckFrequency            *AckFrequencyFrame
	Knob                    *KnobFrame
}

// IsAckEliciting reports whether a frame of this kind requires the peer to
// send an acknowledgement, per RFC 9000 §13.2.
func (k Kind) IsAckEliciting() bool {
	switch k {
	case KindAck, KindConnectionCloseTransport, KindConnectionCloseApplication, KindPadding:
		return false
	default:
		return true
	}
}

// Padding and Ping carry no fields; HandshakeDone and ImmediateAck
// likewise. Helper constructors keep call sites uniform.

func Padding() Frame        { return Frame{Kind: KindPadding} }
func Ping() Frame           { return Frame{Kind: KindPing} }
func HandshakeDone() Frame  { return Frame{Kind: KindHandshakeDone} }
func ImmediateAck() Frame   { return Frame{Kind: KindImmediateAck} }
