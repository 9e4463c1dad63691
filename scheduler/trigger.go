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

// Package scheduler decides when a connection's write loop should run,
// how much of a write pass's budget each constraint contributes, and in
// what order pending frames are packed into a packet.
package scheduler

// WriteReason names why (or why not) the write loop should run a pass,
// mirroring the reasons enumerated for shouldWriteData.
type WriteReason int

const (
	NoWrite WriteReason = iota
	ReasonProbe
	ReasonAckDue
	ReasonBufferedRetry
	ReasonCryptoData
	ReasonResetPending
	ReasonWindowUpdate
	ReasonBlocked
	ReasonPathChallenge
	ReasonPing
	ReasonDatagram
	ReasonStreamData
)

func (r WriteReason) String() string {
	switch r {
	case NoWrite:
		return "NO_WRITE"
	case ReasonProbe:
		return "PROBE"
	case ReasonAckDue:
		return "ACK_DUE"
	case ReasonBufferedRetry:
		return "BUFFERED_RETRY"
	case ReasonCryptoData:
		return "CRYPTO_DATA"
	case ReasonResetPending:
		return "RESET_PENDING"
	case ReasonWindowUpdate:
		return "WINDOW_UPDATE"
	case ReasonBlocked:
		return "BLOCKED"
	case ReasonPathChallenge:
		return "PATH_CHALLENGE"
	case ReasonPing:
		return "PING"
	case ReasonDatagram:
		return "DATAGRAM"
	case ReasonStreamData:
		return "STREAM_DATA"
	default:
		return "UNKNOWN"
	}
}

// Inputs is the set of pending obligations shouldWriteData consults, in
// the priority order they are checked.
type Inputs struct {
	ProbeDue           bool
	AckDue             bool
	BufferedWriteRetry bool
	HasCryptoData      bool
	HasResetPending    bool
	HasWindowUpdate    bool
	HasBlocked         bool
	PathChallengeDue   bool
	PingRequested      bool
	HasDatagram        bool
	HasStreamData      bool
}

// ShouldWriteData returns the highest-priority reason a write pass is
// due, or NoWrite if nothing is pending.
func ShouldWriteData(in Inputs) WriteReason {
	switch {
	case in.ProbeDue:
		return ReasonProbe
	case in.AckDue:
		return ReasonAckDue
	case in.BufferedWriteRetry:
		return ReasonBufferedRetry
	case in.HasCryptoData:
		return ReasonCryptoData
	case in.HasResetPending:
		return ReasonResetPending
	case in.HasWindowUpdate:
		return ReasonWindowUpdate
	case in.HasBlocked:
		return ReasonBlocked
	case in.PathChallengeDue:
		return ReasonPathChallenge
	case in.PingRequested:
		return ReasonPing
	case in.HasDatagram:
		return ReasonDatagram
	case in.HasStreamData:
		return ReasonStreamData
	default:
		return NoWrite
	}
}
