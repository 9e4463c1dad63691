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

package packet

import (
	"github.com/nabbar/quicgo/qcrypto"
	"github.com/nabbar/quicgo/qerr"
)

// ResultKind tags the variant held by a CodecResult.
type ResultKind uint8

const (
	// Nothing means the datagram carried no further packets worth acting
	// on (e.g. trailing padding after the last coalesced packet).
	Nothing ResultKind = iota
	RegularPacket
	VersionNegotiation
	Retry
	StatelessReset
	CipherUnavailable
	CodecError
)

// CodecResult is the tagged union Parse returns. Only the field matching
// Kind is populated.
type CodecResult struct {
	Kind ResultKind

	// RegularPacket
	Header         Header
	Payload        []byte // decrypted frame bytes
	AssociatedData []byte // header bytes as sent, for retransmit/logging
	Consumed       int    // bytes of the input this packet occupied, for coalescing

	// VersionNegotiation
	Versions []uint32
	SrcCID   ConnectionID
	DestCID  ConnectionID

	// Retry
	RetryToken        []byte
	RetryIntegrityTag [16]byte
	RetrySourceCID    ConnectionID

	// StatelessReset
	ResetToken [16]byte

	// CipherUnavailable
	RawPayload     []byte
	ProtectionType qcrypto.Level

	// Nothing
	Reason string

	// CodecError
	Err *qerr.QuicError
}
