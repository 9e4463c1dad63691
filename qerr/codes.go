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

package qerr

// Kind distinguishes the three error families a connection can raise.
type Kind uint8

const (
	// KindTransport errors close the connection and are carried on the wire
	// in a CONNECTION_CLOSE frame of the transport variant.
	KindTransport Kind = iota

	// KindApplication errors close the connection and are carried on the
	// wire in a CONNECTION_CLOSE frame of the application variant, or in
	// RESET_STREAM / STOP_SENDING.
	KindApplication

	// KindLocal errors never cross the wire; they are reported only to the
	// local application via onConnectionEnd / onConnectionError.
	KindLocal
)

// Code is a numeric error code. Its namespace depends on the Kind it is
// paired with: for KindTransport it is one of the TransportCode constants
// (RFC 9000 §20.1 plus two core-local extensions); for KindApplication it is
// the 62-bit code chosen by the application; for KindLocal it is one of the
// LocalCode constants below.
type Code uint64

// Transport error codes, RFC 9000 §20.1, plus INVALID_MIGRATION which mvfst
// raises as a transport-level close even though it has no assigned codepoint
// in the RFC — this build reuses the first unassigned code in the "iana
// private use" band reserved by RFC 9000 (0x10 onward is left to extensions).
const (
	NoError                  Code = 0x00
	InternalError            Code = 0x01
	ConnectionRefused        Code = 0x02
	FlowControlError         Code = 0x03
	StreamLimitError         Code = 0x04
	StreamStateError         Code = 0x05
	FinalSizeError           Code = 0x06
	FrameEncodingError       Code = 0x07
	TransportParameterError  Code = 0x08
	ConnectionIDLimitError   Code = 0x09
	ProtocolViolation        Code = 0x0a
	InvalidToken             Code = 0x0b
	ApplicationErrorCode     Code = 0x0c
	CryptoBufferExceeded     Code = 0x0d
	KeyUpdateError           Code = 0x0e
	AeadLimitReached         Code = 0x0f
	NoViablePathError        Code = 0x10
	InvalidMigration         Code = 0x11
	cryptoErrorBase          Code = 0x0100
)

// CryptoErrorCode builds the transport error code for a CRYPTO_ERROR carrying
// the given TLS alert, per RFC 9000 §20.1 ("0x0100-0x01ff").
func CryptoErrorCode(tlsAlert uint8) Code {
	return cryptoErrorBase + Code(tlsAlert)
}

// IsCryptoError reports whether code falls in the CRYPTO_ERROR band.
func (c Code) IsCryptoError() bool {
	return c >= cryptoErrorBase && c <= cryptoErrorBase+0xff
}

// TLSAlert extracts the alert byte from a CRYPTO_ERROR code. Only valid when
// IsCryptoError() is true.
func (c Code) TLSAlert() uint8 {
	return uint8(c - cryptoErrorBase)
}

// Local error codes. These never touch the wire: they classify what the
// application callback receives from onConnectionError, or a per-operation
// return value such as a stream-write result.
const (
	localBase Code = 1 << 32

	ConnectionReset Code = localBase + iota
	ConnectionAbandoned
	IdleTimeout
	ShuttingDown
	StreamNotExists
	InvalidOperation
	InvalidWriteCallback
	CallbackAlreadyInstalled
	StreamClosed
	ConnectionClosed
	KnobFrameUnsupported
	MigrationFailed
	NewVersionNegotiated
)

// transportCodeNames gives a human string for known transport codes; used by
// Error() and by qlog event rendering.
var transportCodeNames = map[Code]string{
	NoError:                 "NO_ERROR",
	InternalError:           "INTERNAL_ERROR",
	ConnectionRefused:       "CONNECTION_REFUSED",
	FlowControlError:        "FLOW_CONTROL_ERROR",
	StreamLimitError:        "STREAM_LIMIT_ERROR",
	StreamStateError:        "STREAM_STATE_ERROR",
	FinalSizeError:          "FINAL_SIZE_ERROR",
	FrameEncodingError:      "FRAME_ENCODING_ERROR",
	TransportParameterError: "TRANSPORT_PARAMETER_ERROR",
	ConnectionIDLimitError:  "CONNECTION_ID_LIMIT_ERROR",
	ProtocolViolation:       "PROTOCOL_VIOLATION",
	InvalidToken:            "INVALID_TOKEN",
	ApplicationErrorCode:    "APPLICATION_ERROR",
	CryptoBufferExceeded:    "CRYPTO_BUFFER_EXCEEDED",
	KeyUpdateError:          "KEY_UPDATE_ERROR",
	AeadLimitReached:        "AEAD_LIMIT_REACHED",
	NoViablePathError:       "NO_VIABLE_PATH",
	InvalidMigration:        "INVALID_MIGRATION",
}

var localCodeNames = map[Code]string{
	ConnectionReset:          "CONNECTION_RESET",
	ConnectionAbandoned:      "CONNECTION_ABANDONED",
	IdleTimeout:              "IDLE_TIMEOUT",
	ShuttingDown:             "SHUTTING_DOWN",
	StreamNotExists:          "STREAM_NOT_EXISTS",
	InvalidOperation:         "INVALID_OPERATION",
	InvalidWriteCallback:     "INVALID_WRITE_CALLBACK",
	CallbackAlreadyInstalled: "CALLBACK_ALREADY_INSTALLED",
	StreamClosed:             "STREAM_CLOSED",
	ConnectionClosed:         "CONNECTION_CLOSED",
	KnobFrameUnsupported:     "KNOB_FRAME_UNSUPPORTED",
	MigrationFailed:          "MIGRATION_FAILED",
	NewVersionNegotiated:     "NEW_VERSION_NEGOTIATED",
}

// name renders the short wire/local name for a code, falling back to its
// hex form for unrecognized or application-chosen codes.
func (c Code) name(k Kind) string {
	switch k {
	case KindTransport:
		if c.IsCryptoError() {
			return "CRYPTO_ERROR"
		}
		if n, ok := transportCodeNames[c]; ok {
			return n
		}
	case KindLocal:
		if n, ok := localCodeNames[c]; ok {
			return n
		}
	}
	return "0x" + hex(uint64(c))
}

func hex(v uint64) string {
	const digits = "0123456789abcdef"
	if v == 0 {
		return "0"
	}
	var buf [16]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = digits[v&0xf]
		v >>= 4
	}
	return string(buf[i:])
}
