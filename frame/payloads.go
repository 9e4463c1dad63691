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

// AckRange is one contiguous inclusive range of acknowledged packet
// numbers, [Smallest, Largest].
type AckRange struct {
	Smallest uint64
	Largest  uint64
}

// AckFrame covers ACK and ACK_ECN in one struct; zero-value ECN fields
// mean the ECN variant was not present. ReceiveTimestamps holds the
// ACK_EXTENDED receive-timestamp list, but Parse and Serialize neither
// read nor write it, so it is always empty after decoding.
type AckFrame struct {
	LargestAcked uint64
	AckDelay     uint64 // raw wire value; shift by ack_delay_exponent for microseconds
	Ranges       []AckRange

	HasECN  bool
	ECT0    uint64
	ECT1    uint64
	ECNCE   uint64

	ReceiveTimestamps []ReceiveTimestamp
}

// ReceiveTimestamp is one entry of the ACK_EXTENDED per-packet receive
// timestamp list (gated by ack_receive_timestamps_enabled).
type ReceiveTimestamp struct {
	GapFromPrevious  uint64
	DeltaMicros      uint64
}

// ResetStreamFrame covers RESET_STREAM; when ReliableSize is non-nil this
// carries the RESET_STREAM_AT (reliable reset) extension fields instead of
// the plain variant.
type ResetStreamFrame struct {
	StreamID     uint64
	ApplicationErrorCode uint64
	FinalSize    uint64
	ReliableSize *uint64
}

type StopSendingFrame struct {
	StreamID             uint64
	ApplicationErrorCode uint64
}

type CryptoFrame struct {
	Offset uint64
	Data   []byte
}

type NewTokenFrame struct {
	Token []byte
}

// StreamFrame has a GroupID field for the custom stream-group extension
// (stream_groups_enabled transport parameter). Parse and Serialize neither
// read nor write a group id, so GroupID is always nil after decoding.
type StreamFrame struct {
	StreamID uint64
	Offset   uint64
	Data     []byte
	Fin      bool
	GroupID  *uint64
}

type MaxDataFrame struct {
	MaximumData uint64
}

type MaxStreamDataFrame struct {
	StreamID         uint64
	MaximumStreamData uint64
}

type MaxStreamsFrame struct {
	Type        StreamType
	MaximumStreams uint64
}

type DataBlockedFrame struct {
	MaximumData uint64
}

type StreamDataBlockedFrame struct {
	StreamID          uint64
	MaximumStreamData uint64
}

type StreamsBlockedFrame struct {
	Type           StreamType
	MaximumStreams uint64
}

type NewConnectionIDFrame struct {
	SequenceNumber      uint64
	RetirePriorTo       uint64
	ConnectionID        []byte
	StatelessResetToken [16]byte
}

type RetireConnectionIDFrame struct {
	SequenceNumber uint64
}

type PathChallengeFrame struct {
	Data [8]byte
}

type PathResponseFrame struct {
	Data [8]byte
}

type ConnectionCloseTransportFrame struct {
	ErrorCode     uint64
	FrameType     uint64 // 0 if not applicable
	ReasonPhrase  string
}

type ConnectionCloseApplicationFrame struct {
	ErrorCode    uint64
	ReasonPhrase string
}

type DatagramFrame struct {
	Data []byte
}

// AckFrequencyFrame updates the peer's ack-eliciting-threshold and
// max_ack_delay, per the ACK_FREQUENCY extension.
type AckFrequencyFrame struct {
	SequenceNumber    uint64
	AckElicitingThreshold uint64
	RequestedMaxAckDelay uint64
	ReorderThreshold  uint64
}

// KnobFrame carries an opaque opt-in signal (custom extension, gated by
// knob_frames_supported).
type KnobFrame struct {
	KnobSpace uint64
	KnobID    uint64
	KnobValue []byte
}
