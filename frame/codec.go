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

import (
	"github.com/nabbar/quicgo/qerr"
	"github.com/nabbar/quicgo/varint"
)

// ParseAll decodes every frame in a packet's decrypted payload. A payload
// that yields zero frames is itself a protocol violation per spec, but
// that check belongs to the caller (the connection dispatch loop), which
// is in a better position to close with the right context.
func ParseAll(payload []byte) ([]Frame, error) {
	var out []Frame
	for len(payload) > 0 {
		f, n, err := Parse(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
		payload = payload[n:]
	}
	return out, nil
}

// Parse decodes one frame from the front of b, returning the frame and the
// number of bytes consumed.
func Parse(b []byte) (Frame, int, error) {
	typ, n, err := varint.Decode(b)
	if err != nil {
		return Frame{}, 0, qerr.FrameEncodingError("truncated frame type", err)
	}
	pos := n

	switch {
	case typ == wirePadding:
		return Frame{Kind: KindPadding}, pos, nil
	case typ == wirePing:
		return Frame{Kind: KindPing}, pos, nil
	case typ == wireAck || typ == wireAckECN:
		return parseAck(b, pos, typ == wireAckECN)
	case typ == wireResetStream:
		return parseResetStream(b, pos, false)
	case typ == wireResetStreamAt:
		return parseResetStream(b, pos, true)
	case typ == wireStopSending:
		return parseStopSending(b, pos)
	case typ == wireCrypto:
		return parseCrypto(b, pos)
	case typ == wireNewToken:
		return parseNewToken(b, pos)
	case typ >= wireStreamBase && typ <= 0x0f:
		return parseStream(b, pos, typ)
	case typ == wireMaxData:
		return parseMaxData(b, pos)
	case typ == wireMaxStreamData:
		return parseMaxStreamData(b, pos)
	case typ == wireMaxStreamsBidi || typ == wireMaxStreamsUni:
		return parseMaxStreams(b, pos, typ == wireMaxStreamsUni)
	case typ == wireDataBlocked:
		return parseDataBlocked(b, pos)
	case typ == wireStreamDataBlocked:
		return parseStreamDataBlocked(b, pos)
	case typ == wireStreamsBlockedBidi || typ == wireStreamsBlockedUni:
		return parseStreamsBlocked(b, pos, typ == wireStreamsBlockedUni)
	case typ == wireNewConnectionID:
		return parseNewConnectionID(b, pos)
	case typ == wireRetireConnectionID:
		return parseRetireConnectionID(b, pos)
	case typ == wirePathChallenge:
		return parsePathChallenge(b, pos)
	case typ == wirePathResponse:
		return parsePathResponse(b, pos)
	case typ == wireConnectionCloseTransport:
		return parseConnectionCloseTransport(b, pos)
	case typ == wireConnectionCloseApplication:
		return parseConnectionCloseApplication(b, pos)
	case typ == wireHandshakeDone:
		return Frame{Kind: KindHandshakeDone}, pos, nil
	case typ == wireDatagram || typ == wireDatagramWithLen:
		return parseDatagram(b, pos, typ == wireDatagramWithLen)
	case typ == wireAckFrequency:
		return parseAckFrequency(b, pos)
	case typ == wireImmediateAck:
		return Frame{Kind: KindImmediateAck}, pos, nil
	case typ == wireKnob:
		return parseKnob(b, pos)
	default:
		return Frame{}, 0, qerr.FrameEncodingError("unknown frame type", nil)
	}
}

func readVarint(b []byte, pos *int) (uint64, error) {
	v, n, err := varint.Decode(b[*pos:])
	if err != nil {
		return 0, qerr.FrameEncodingError("truncated varint field", err)
	}
	*pos += n
	return v, nil
}

func readBytes(b []byte, pos *int, n int) ([]byte, error) {
	if *pos+n > len(b) {
		return nil, qerr.FrameEncodingError("truncated fixed-length field", nil)
	}
	out := b[*pos : *pos+n]
	*pos += n
	return out, nil
}

func parseAck(b []byte, pos int, ecn bool) (Frame, int, error) {
	largest, err := readVarint(b, &pos)
	if err != nil {
		return Frame{}, 0, err
	}
	delay, err := readVarint(b, &pos)
	if err != nil {
		return Frame{}, 0, err
	}
	rangeCount, err := readVarint(b, &pos)
	if err != nil {
		return Frame{}, 0, err
	}
	firstRange, err := readVarint(b, &pos)
	if err != nil {
		return Frame{}, 0, err
	}

	af := &AckFrame{LargestAcked: largest, AckDelay: delay}
	smallest := largest - firstRange
	af.Ranges = append(af.Ranges, AckRange{Smallest: smallest, Largest: largest})

	for i := uint64(0); i < rangeCount; i++ {
		gap, err := readVarint(b, &pos)
		if err != nil {
			return Frame{}, 0, err
		}
		length, err := readVarint(b, &pos)
		if err != nil {
			return Frame{}, 0, err
		}
		newLargest := smallest - gap - 2
		newSmallest := newLargest - length
		af.Ranges = append(af.Ranges, AckRange{Smallest: newSmallest, Largest: newLargest})
		smallest = newSmallest
	}

	if ecn {
		af.HasECN = true
		if af.ECT0, err = readVarint(b, &pos); err != nil {
			return Frame{}, 0, err
		}
		if af.ECT1, err = readVarint(b, &pos); err != nil {
			return Frame{}, 0, err
		}
		if af.ECNCE, err = readVarint(b, &pos); err != nil {
			return Frame{}, 0, err
		}
	}

	return Frame{Kind: KindAck, Ack: af}, pos, nil
}

func parseResetStream(b []byte, pos int, reliable bool) (Frame, int, error) {
	sid, err := readVarint(b, &pos)
	if err != nil {
		return Frame{}, 0, err
	}
	code, err := readVarint(b, &pos)
	if err != nil {
		return Frame{}, 0, err
	}
	finalSize, err := readVarint(b, &pos)
	if err != nil {
		return Frame{}, 0, err
	}

	rs := &ResetStreamFrame{StreamID: sid, ApplicationErrorCode: code, FinalSize: finalSize}
	if reliable {
		reliableSize, err := readVarint(b, &pos)
		if err != nil {
			return Frame{}, 0, err
		}
		rs.ReliableSize = &reliableSize
		return Frame{Kind: KindResetStreamAt, ResetStream: rs}, pos, nil
	}
	return Frame{Kind: KindResetStream, ResetStream: rs}, pos, nil
}

func parseStopSending(b []byte, pos int) (Frame, int, error) {
	sid, err := readVarint(b, &pos)
	if err != nil {
		return Frame{}, 0, err
	}
	code, err := readVarint(b, &pos)
	if err != nil {
		return Frame{}, 0, err
	}
	return Frame{Kind: KindStopSending, StopSending: &StopSendingFrame{StreamID: sid, ApplicationErrorCode: code}}, pos, nil
}

func parseCrypto(b []byte, pos int) (Frame, int, error) {
	offset, err := readVarint(b, &pos)
	if err != nil {
		return Frame{}, 0, err
	}
	length, err := readVarint(b, &pos)
	if err != nil {
		return Frame{}, 0, err
	}
	data, err := readBytes(b, &pos, int(length))
	if err != nil {
		return Frame{}, 0, err
	}
	return Frame{Kind: KindCrypto, Crypto: &CryptoFrame{Offset: offset, Data: data}}, pos, nil
}

func parseNewToken(b []byte, pos int) (Frame, int, error) {
	length, err := readVarint(b, &pos)
	if err != nil {
		return Frame{}, 0, err
	}
	data, err := readBytes(b, &pos, int(length))
	if err != nil {
		return Frame{}, 0, err
	}
	return Frame{Kind: KindNewToken, NewToken: &NewTokenFrame{Token: data}}, pos, nil
}

func parseStream(b []byte, pos int, typ uint64) (Frame, int, error) {
	hasOff := typ&0x04 != 0
	hasLen := typ&0x02 != 0
	fin := typ&0x01 != 0

	sid, err := readVarint(b, &pos)
	if err != nil {
		return Frame{}, 0, err
	}

	var offset uint64
	if hasOff {
		if offset, err = readVarint(b, &pos); err != nil {
			return Frame{}, 0, err
		}
	}

	var data []byte
	if hasLen {
		length, err := readVarint(b, &pos)
		if err != nil {
			return Frame{}, 0, err
		}
		if data, err = readBytes(b, &pos, int(length)); err != nil {
			return Frame{}, 0, err
		}
	} else {
		data = b[pos:]
		pos = len(b)
	}

	return Frame{Kind: KindStream, Stream: &StreamFrame{StreamID: sid, Offset: offset, Data: data, Fin: fin}}, pos, nil
}

func parseMaxData(b []byte, pos int) (Frame, int, error) {
	v, err := readVarint(b, &pos)
	if err != nil {
		return Frame{}, 0, err
	}
	return Frame{Kind: KindMaxData, MaxData: &MaxDataFrame{MaximumData: v}}, pos, nil
}

func parseMaxStreamData(b []byte, pos int) (Frame, int, error) {
	sid, err := readVarint(b, &pos)
	if err != nil {
		return Frame{}, 0, err
	}
	max, err := readVarint(b, &pos)
	if err != nil {
		return Frame{}, 0, err
	}
	return Frame{Kind: KindMaxStreamData, MaxStreamData: &MaxStreamDataFrame{StreamID: sid, MaximumStreamData: max}}, pos, nil
}

func parseMaxStreams(b []byte, pos int, uni bool) (Frame, int, error) {
	v, err := readVarint(b, &pos)
	if err != nil {
		return Frame{}, 0, err
	}
	t := StreamBidi
	if uni {
		t = StreamUni
	}
	return Frame{Kind: KindMaxStreams, MaxStreams: &MaxStreamsFrame{Type: t, MaximumStreams: v}}, pos, nil
}

func parseDataBlocked(b []byte, pos int) (Frame, int, error) {
	v, err := readVarint(b, &pos)
	if err != nil {
		return Frame{}, 0, err
	}
	return Frame{Kind: KindDataBlocked, DataBlocked: &DataBlockedFrame{MaximumData: v}}, pos, nil
}

func parseStreamDataBlocked(b []byte, pos int) (Frame, int, error) {
	sid, err := readVarint(b, &pos)
	if err != nil {
		return Frame{}, 0, err
	}
	v, err := readVarint(b, &pos)
	if err != nil {
		return Frame{}, 0, err
	}
	return Frame{Kind: KindStreamDataBlocked, StreamDataBlocked: &StreamDataBlockedFrame{StreamID: sid, MaximumStreamData: v}}, pos, nil
}

func parseStreamsBlocked(b []byte, pos int, uni bool) (Frame, int, error) {
	v, err := readVarint(b, &pos)
	if err != nil {
		return Frame{}, 0, err
	}
	t := StreamBidi
	if uni {
		t = StreamUni
	}
	return Frame{Kind: KindStreamsBlocked, StreamsBlocked: &StreamsBlockedFrame{Type: t, MaximumStreams: v}}, pos, nil
}

func parseNewConnectionID(b []byte, pos int) (Frame, int, error) {
	seq, err := readVarint(b, &pos)
	if err != nil {
		return Frame{}, 0, err
	}
	retire, err := readVarint(b, &pos)
	if err != nil {
		return Frame{}, 0, err
	}
	if pos >= len(b) {
		return Frame{}, 0, qerr.FrameEncodingError("truncated new connection id length", nil)
	}
	cidLen := int(b[pos])
	pos++
	cid, err := readBytes(b, &pos, cidLen)
	if err != nil {
		return Frame{}, 0, err
	}
	tokenBytes, err := readBytes(b, &pos, 16)
	if err != nil {
		return Frame{}, 0, err
	}
	var token [16]byte
	copy(token[:], tokenBytes)

	return Frame{Kind: KindNewConnectionID, NewConnectionID: &NewConnectionIDFrame{
		SequenceNumber: seq, RetirePriorTo: retire, ConnectionID: append([]byte{}, cid...), StatelessResetToken: token,
	}}, pos, nil
}

func parseRetireConnectionID(b []byte, pos int) (Frame, int, error) {
	seq, err := readVarint(b, &pos)
	if err != nil {
		return Frame{}, 0, err
	}
	return Frame{Kind: KindRetireConnectionID, RetireConnectionID: &RetireConnectionIDFrame{SequenceNumber: seq}}, pos, nil
}

func parsePathChallenge(b []byte, pos int) (Frame, int, error) {
	data, err := readBytes(b, &pos, 8)
	if err != nil {
		return Frame{}, 0, err
	}
	var arr [8]byte
	copy(arr[:], data)
	return Frame{Kind: KindPathChallenge, PathChallenge: &PathChallengeFrame{Data: arr}}, pos, nil
}

func parsePathResponse(b []byte, pos int) (Frame, int, error) {
	data, err := readBytes(b, &pos, 8)
	if err != nil {
		return Frame{}, 0, err
	}
	var arr [8]byte
	copy(arr[:], data)
	return Frame{Kind: KindPathResponse, PathResponse: &PathResponseFrame{Data: arr}}, pos, nil
}

func parseConnectionCloseTransport(b []byte, pos int) (Frame, int, error) {
	code, err := readVarint(b, &pos)
	if err != nil {
		return Frame{}, 0, err
	}
	frameType, err := readVarint(b, &pos)
	if err != nil {
		return Frame{}, 0, err
	}
	reasonLen, err := readVarint(b, &pos)
	if err != nil {
		return Frame{}, 0, err
	}
	reason, err := readBytes(b, &pos, int(reasonLen))
	if err != nil {
		return Frame{}, 0, err
	}
	return Frame{Kind: KindConnectionCloseTransport, ConnectionCloseTransport: &ConnectionCloseTransportFrame{
		ErrorCode: code, FrameType: frameType, ReasonPhrase: string(reason),
	}}, pos, nil
}

func parseConnectionCloseApplication(b []byte, pos int) (Frame, int, error) {
	code, err := readVarint(b, &pos)
	if err != nil {
		return Frame{}, 0, err
	}
	reasonLen, err := readVarint(b, &pos)
	if err != nil {
		return Frame{}, 0, err
	}
	reason, err := readBytes(b, &pos, int(reasonLen))
	if err != nil {
		return Frame{}, 0, err
	}
	return Frame{Kind: KindConnectionCloseApplication, ConnectionCloseApplication: &ConnectionCloseApplicationFrame{
		ErrorCode: code, ReasonPhrase: string(reason),
	}}, pos, nil
}

func parseDatagram(b []byte, pos int, withLen bool) (Frame, int, error) {
	var data []byte
	if withLen {
		length, err := readVarint(b, &pos)
		if err != nil {
			return Frame{}, 0, err
		}
		var derr error
		if data, derr = readBytes(b, &pos, int(length)); derr != nil {
			return Frame{}, 0, derr
		}
	} else {
		data = b[pos:]
		pos = len(b)
	}
	return Frame{Kind: KindDatagram, Datagram: &DatagramFrame{Data: data}}, pos, nil
}

func parseAckFrequency(b []byte, pos int) (Frame, int, error) {
	seq, err := readVarint(b, &pos)
	if err != nil {
		return Frame{}, 0, err
	}
	threshold, err := readVarint(b, &pos)
	if err != nil {
		return Frame{}, 0, err
	}
	maxDelay, err := readVarint(b, &pos)
	if err != nil {
		return Frame{}, 0, err
	}
	reorder, err := readVarint(b, &pos)
	if err != nil {
		return Frame{}, 0, err
	}
	return Frame{Kind: KindAckFrequency, AckFrequency: &AckFrequencyFrame{
		SequenceNumber: seq, AckElicitingThreshold: threshold, RequestedMaxAckDelay: maxDelay, ReorderThreshold: reorder,
	}}, pos, nil
}

func parseKnob(b []byte, pos int) (Frame, int, error) {
	space, err := readVarint(b, &pos)
	if err != nil {
		return Frame{}, 0, err
	}
	id, err := readVarint(b, &pos)
	if err != nil {
		return Frame{}, 0, err
	}
	length, err := readVarint(b, &pos)
	if err != nil {
		return Frame{}, 0, err
	}
	val, err := readBytes(b, &pos, int(length))
	if err != nil {
		return Frame{}, 0, err
	}
	return Frame{Kind: KindKnob, Knob: &KnobFrame{KnobSpace: space, KnobID: id, KnobValue: val}}, pos, nil
}
