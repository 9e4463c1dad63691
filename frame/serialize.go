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

// Serialize appends the wire encoding of f to dst.
func Serialize(dst []byte, f Frame) ([]byte, error) {
	var err error
	switch f.Kind {
	case KindPadding:
		return append(dst, wirePadding), nil
	case KindPing:
		return append(dst, wirePing), nil
	case KindHandshakeDone:
		return append(dst, wireHandshakeDone), nil
	case KindImmediateAck:
		return append(dst, wireImmediateAck), nil
	case KindAck:
		return serializeAck(dst, f.Ack)
	case KindResetStream:
		return serializeResetStream(dst, f.ResetStream, false)
	case KindResetStreamAt:
		return serializeResetStream(dst, f.ResetStream, true)
	case KindStopSending:
		if dst, err = varint.Encode(dst, wireStopSending); err != nil {
			return nil, err
		}
		if dst, err = varint.Encode(dst, f.StopSending.StreamID); err != nil {
			return nil, err
		}
		return varint.Encode(dst, f.StopSending.ApplicationErrorCode)
	case KindCrypto:
		return serializeCrypto(dst, f.Crypto)
	case KindNewToken:
		if dst, err = varint.Encode(dst, wireNewToken); err != nil {
			return nil, err
		}
		if dst, err = varint.Encode(dst, uint64(len(f.NewToken.Token))); err != nil {
			return nil, err
		}
		return append(dst, f.NewToken.Token...), nil
	case KindStream:
		return serializeStream(dst, f.Stream)
	case KindMaxData:
		if dst, err = varint.Encode(dst, wireMaxData); err != nil {
			return nil, err
		}
		return varint.Encode(dst, f.MaxData.MaximumData)
	case KindMaxStreamData:
		if dst, err = varint.Encode(dst, wireMaxStreamData); err != nil {
			return nil, err
		}
		if dst, err = varint.Encode(dst, f.MaxStreamData.StreamID); err != nil {
			return nil, err
		}
		return varint.Encode(dst, f.MaxStreamData.MaximumStreamData)
	case KindMaxStreams:
		typ := uint64(wireMaxStreamsBidi)
		if f.MaxStreams.Type == StreamUni {
			typ = wireMaxStreamsUni
		}
		if dst, err = varint.Encode(dst, typ); err != nil {
			return nil, err
		}
		return varint.Encode(dst, f.MaxStreams.MaximumStreams)
	case KindDataBlocked:
		if dst, err = varint.Encode(dst, wireDataBlocked); err != nil {
			return nil, err
		}
		return varint.Encode(dst, f.DataBlocked.MaximumData)
	case KindStreamDataBlocked:
		if dst, err = varint.Encode(dst, wireStreamDataBlocked); err != nil {
			return nil, err
		}
		if dst, err = varint.Encode(dst, f.StreamDataBlocked.StreamID); err != nil {
			return nil, err
		}
		return varint.Encode(dst, f.StreamDataBlocked.MaximumStreamData)
	case KindStreamsBlocked:
		typ := uint64(wireStreamsBlockedBidi)
		if f.StreamsBlocked.Type == StreamUni {
			typ = wireStreamsBlockedUni
		}
		if dst, err = varint.Encode(dst, typ); err != nil {
			return nil, err
		}
		return varint.Encode(dst, f.StreamsBlocked.MaximumStreams)
	case KindNewConnectionID:
		return serializeNewConnectionID(dst, f.NewConnectionID)
	case KindRetireConnectionID:
		if dst, err = varint.Encode(dst, wireRetireConnectionID); err != nil {
			return nil, err
		}
		return varint.Encode(dst, f.RetireConnectionID.SequenceNumber)
	case KindPathChallenge:
		dst, err = varint.Encode(dst, wirePathChallenge)
		if err != nil {
			return nil, err
		}
		return append(dst, f.PathChallenge.Data[:]...), nil
	case KindPathResponse:
		dst, err = varint.Encode(dst, wirePathResponse)
		if err != nil {
			return nil, err
		}
		return append(dst, f.PathResponse.Data[:]...), nil
	case KindConnectionCloseTransport:
		return serializeConnectionCloseTransport(dst, f.ConnectionCloseTransport)
	case KindConnectionCloseApplication:
		return serializeConnectionCloseApplication(dst, f.ConnectionCloseApplication)
	case KindDatagram:
		if dst, err = varint.Encode(dst, wireDatagramWithLen); err != nil {
			return nil, err
		}
		if dst, err = varint.Encode(dst, uint64(len(f.Datagram.Data))); err != nil {
			return nil, err
		}
		return append(dst, f.Datagram.Data...), nil
	case KindAckFrequency:
		return serializeAckFrequency(dst, f.AckFrequency)
	case KindKnob:
		return serializeKnob(dst, f.Knob)
	default:
		return nil, qerr.FrameEncodingError("unknown frame kind to serialize", nil)
	}
}

func serializeAck(dst []byte, a *AckFrame) ([]byte, error) {
	var err error
	typ := uint64(wireAck)
	if a.HasECN {
		typ = wireAckECN
	}
	if dst, err = varint.Encode(dst, typ); err != nil {
		return nil, err
	}
	if dst, err = varint.Encode(dst, a.LargestAcked); err != nil {
		return nil, err
	}
	if dst, err = varint.Encode(dst, a.AckDelay); err != nil {
		return nil, err
	}
	if dst, err = varint.Encode(dst, uint64(len(a.Ranges)-1)); err != nil {
		return nil, err
	}
	first := a.Ranges[0]
	if dst, err = varint.Encode(dst, first.Largest-first.Smallest); err != nil {
		return nil, err
	}

	prevSmallest := first.Smallest
	for _, r := range a.Ranges[1:] {
		gap := prevSmallest - r.Largest - 2
		length := r.Largest - r.Smallest
		if dst, err = varint.Encode(dst, gap); err != nil {
			return nil, err
		}
		if dst, err = varint.Encode(dst, length); err != nil {
			return nil, err
		}
		prevSmallest = r.Smallest
	}

	if a.HasECN {
		if dst, err = varint.Encode(dst, a.ECT0); err != nil {
			return nil, err
		}
		if dst, err = varint.Encode(dst, a.ECT1); err != nil {
			return nil, err
		}
		if dst, err = varint.Encode(dst, a.ECNCE); err != nil {
			return nil, err
		}
	}
	return dst, nil
}

func serializeResetStream(dst []byte, r *ResetStreamFrame, reliable bool) ([]byte, error) {
	var err error
	typ := uint64(wireResetStream)
	if reliable {
		typ = wireResetStreamAt
	}
	if dst, err = varint.Encode(dst, typ); err != nil {
		return nil, err
	}
	if dst, err = varint.Encode(dst, r.StreamID); err != nil {
		return nil, err
	}
	if dst, err = varint.Encode(dst, r.ApplicationErrorCode); err != nil {
		return nil, err
	}
	if dst, err = varint.Encode(dst, r.FinalSize); err != nil {
		return nil, err
	}
	if reliable {
		reliableSize := uint64(0)
		if r.ReliableSize != nil {
			reliableSize = *r.ReliableSize
		}
		return varint.Encode(dst, reliableSize)
	}
	return dst, nil
}

func serializeCrypto(dst []byte, c *CryptoFrame) ([]byte, error) {
	var err error
	if dst, err = varint.Encode(dst, wireCrypto); err != nil {
		return nil, err
	}
	if dst, err = varint.Encode(dst, c.Offset); err != nil {
		return nil, err
	}
	if dst, err = varint.Encode(dst, uint64(len(c.Data))); err != nil {
		return nil, err
	}
	return append(dst, c.Data...), nil
}

func serializeStream(dst []byte, s *StreamFrame) ([]byte, error) {
	var err error
	typ := uint64(wireStreamBase) | 0x02 // always send explicit length
	typ |= 0x04                          // always send explicit offset
	if s.Fin {
		typ |= 0x01
	}
	if dst, err = varint.Encode(dst, typ); err != nil {
		return nil, err
	}
	if dst, err = varint.Encode(dst, s.StreamID); err != nil {
		return nil, err
	}
	if dst, err = varint.Encode(dst, s.Offset); err != nil {
		return nil, err
	}
	if dst, err = varint.Encode(dst, uint64(len(s.Data))); err != nil {
		return nil, err
	}
	return append(dst, s.Data...), nil
}

func serializeNewConnectionID(dst []byte, f *NewConnectionIDFrame) ([]byte, error) {
	var err error
	if dst, err = varint.Encode(dst, wireNewConnectionID); err != nil {
		return nil, err
	}
	if dst, err = varint.Encode(dst, f.SequenceNumber); err != nil {
		return nil, err
	}
	if dst, err = varint.Encode(dst, f.RetirePriorTo); err != nil {
		return nil, err
	}
	dst = append(dst, byte(len(f.ConnectionID)))
	dst = append(dst, f.ConnectionID...)
	return append(dst, f.StatelessResetToken[:]...), nil
}

func serializeConnectionCloseTransport(dst []byte, f *ConnectionCloseTransportFrame) ([]byte, error) {
	var err error
	if dst, err = varint.Encode(dst, wireConnectionCloseTransport); err != nil {
		return nil, err
	}
	if dst, err = varint.Encode(dst, f.ErrorCode); err != nil {
		return nil, err
	}
	if dst, err = varint.Encode(dst, f.FrameType); err != nil {
		return nil, err
	}
	if dst, err = varint.Encode(dst, uint64(len(f.ReasonPhrase))); err != nil {
		return nil, err
	}
	return append(dst, f.ReasonPhrase...), nil
}

func serializeConnectionCloseApplication(dst []byte, f *ConnectionCloseApplicationFrame) ([]byte, error) {
	var err error
	if dst, err = varint.Encode(dst, wireConnectionCloseApplication); err != nil {
		return nil, err
	}
	if dst, err = varint.Encode(dst, f.ErrorCode); err != nil {
		return nil, err
	}
	if dst, err = varint.Encode(dst, uint64(len(f.ReasonPhrase))); err != nil {
		return nil, err
	}
	return append(dst, f.ReasonPhrase...), nil
}

func serializeAckFrequency(dst []byte, f *AckFrequencyFrame) ([]byte, error) {
	var err error
	if dst, err = varint.Encode(dst, wireAckFrequency); err != nil {
		return nil, err
	}
	if dst, err = varint.Encode(dst, f.SequenceNumber); err != nil {
		return nil, err
	}
	if dst, err = varint.Encode(dst, f.AckElicitingThreshold); err != nil {
		return nil, err
	}
	if dst, err = varint.Encode(dst, f.RequestedMaxAckDelay); err != nil {
		return nil, err
	}
	return varint.Encode(dst, f.ReorderThreshold)
}

func serializeKnob(dst []byte, f *KnobFrame) ([]byte, error) {
	var err error
	if dst, err = varint.Encode(dst, wireKnob); err != nil {
		return nil, err
	}
	if dst, err = varint.Encode(dst, f.KnobSpace); err != nil {
		return nil, err
	}
	if dst, err = varint.Encode(dst, f.KnobID); err != nil {
		return nil, err
	}
	if dst, err = varint.Encode(dst, uint64(len(f.KnobValue))); err != nil {
		return nil, err
	}
	return append(dst, f.KnobValue...), nil
}
