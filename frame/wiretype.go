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

package frame

// Wire frame type codes, RFC 9000 §19. The extension types below
// RESET_STREAM_AT/ACK_FREQUENCY/IMMEDIATE_ACK/DATAGRAM/KNOB occupy this
// implementation's private-use range (RFC 9000 §19 reserves no specific
// codepoints for them at the time of writing); peers are expected to be
// this same implementation on both ends of any connection that negotiates
// the matching transport parameter.
const (
	wirePadding     = 0x00
	wirePing        = 0x01
	wireAck         = 0x02
	wireAckECN      = 0x03
	wireResetStream = 0x04
	wireStopSending = 0x05
	wireCrypto      = 0x06
	wireNewToken    = 0x07
	wireStreamBase  = 0x08 // 0x08-0x0f, bits OFF=0x04 LEN=0x02 FIN=0x01
	wireMaxData     = 0x10
	wireMaxStreamData = 0x11
	wireMaxStreamsBidi = 0x12
	wireMaxStreamsUni  = 0x13
	wireDataBlocked    = 0x14
	wireStreamDataBlocked = 0x15
	wireStreamsBlockedBidi = 0x16
	wireStreamsBlockedUni  = 0x17
	wireNewConnectionID    = 0x18
	wireRetireConnectionID = 0x19
	wirePathChallenge      = 0x1a
	wirePathResponse       = 0x1b
	wireConnectionCloseTransport   = 0x1c
	wireConnectionCloseApplication = 0x1d
	wireHandshakeDone              = 0x1e

	wireResetStreamAt = 0x24 // reliable reset extension

	wireDatagram       = 0x30 // no explicit length, runs to end of packet
	wireDatagramWithLen = 0x31

	wireAckFrequency = 0xaf
	wireImmediateAck = 0xac

	wireKnob = 0x1550 // arbitrary private-use value, encodes as a 2-byte varint
)
