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

// Package qcrypto holds the AEAD and header-protection ciphers the opaque
// TLS 1.3 engine produces for each encryption level, and performs the one
// piece of key derivation the core owns outright: deriving the next-phase
// 1-RTT secret on a key update (RFC 9001 §6). The AEAD and header-protection
// primitives themselves remain byte-in/byte-out collaborators supplied by
// the handshake engine; this package never implements a cipher, only holds
// and rotates the ones it is given.
package qcrypto

// Level identifies one of the four QUIC encryption levels.
type Level uint8

const (
	Initial Level = iota
	ZeroRTT
	Handshake
	AppData
)

func (l Level) String() string {
	switch l {
	case Initial:
		return "initial"
	case ZeroRTT:
		return "0-rtt"
	case Handshake:
		return "handshake"
	case AppData:
		return "1-rtt"
	default:
		return "unknown"
	}
}

// Phase identifies the 1-RTT key-phase bit carried in the short header.
type Phase uint8

const (
	PhaseZero Phase = iota
	PhaseOne
)

// Toggle returns the other phase.
func (p Phase) Toggle() Phase {
	if p == PhaseZero {
		return PhaseOne
	}
	return PhaseZero
}
