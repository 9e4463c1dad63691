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

// Package stream implements the per-stream send/receive state machines of
// RFC 9000 §3, the stream manager that lists which streams are writable
// (including those carrying retransmittable loss), and the byte-offset
// delivery callbacks used to notify the application when data has been
// acknowledged.
package stream

// SendState is the send-side stream state machine of RFC 9000 §3.1.
type SendState int

const (
	SendStateReady SendState = iota
	SendStateSend
	SendStateDataSent
	SendStateResetSent
	SendStateDataRecvd
	SendStateResetRecvd
)

func (s SendState) String() string {
	switch s {
	case SendStateReady:
		return "Ready"
	case SendStateSend:
		return "Send"
	case SendStateDataSent:
		return "DataSent"
	case SendStateResetSent:
		return "ResetSent"
	case SendStateDataRecvd:
		return "DataRecvd"
	case SendStateResetRecvd:
		return "ResetRecvd"
	default:
		return "Unknown"
	}
}

// Terminal reports whether the send state is one from which no further
// transition is possible.
func (s SendState) Terminal() bool {
	return s == SendStateDataRecvd || s == SendStateResetRecvd
}

// RecvState is the receive-side stream state machine of RFC 9000 §3.2.
type RecvState int

const (
	RecvStateRecv RecvState = iota
	RecvStateSizeKnown
	RecvStateDataRecvd
	RecvStateResetRecvd
	RecvStateDataRead
	RecvStateResetRead
)

func (s RecvState) String() string {
	switch s {
	case RecvStateRecv:
		return "Recv"
	case RecvStateSizeKnown:
		return "SizeKnown"
	case RecvStateDataRecvd:
		return "DataRecvd"
	case RecvStateResetRecvd:
		return "ResetRecvd"
	case RecvStateDataRead:
		return "DataRead"
	case RecvStateResetRead:
		return "ResetRead"
	default:
		return "Unknown"
	}
}

// Terminal reports whether the receive state is one from which no further
// transition is possible.
func (s RecvState) Terminal() bool {
	return s == RecvStateDataRead || s == RecvStateResetRead
}
