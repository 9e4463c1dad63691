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
	"github.com/nabbar/quicgo/varint"
)

// KMaxNumCoalescedPackets bounds how many packets Split will pull out of a
// single datagram, per spec: implementation-fixed, at least 4.
const KMaxNumCoalescedPackets = 8

const longHeaderForm = 0x80

// Keys supplies the cipher pair Parse/SerializePacket need for one
// encryption level and direction.
type Keys struct {
	AEAD qcrypto.AEAD
	HP   qcrypto.HeaderProtector
}

// KeySource resolves the keys installed for a given level, so Parse can
// pull the right cipher pair once it has read enough of the header to know
// the packet's encryption level.
type KeySource interface {
	ReadKeys(level qcrypto.Level) (Keys, bool)
}

// Parse decodes one packet from the front of raw, which may be a coalesced
// datagram; callers use Split to iterate all packets in a datagram. selfCIDLen
// is the length this endpoint uses for its own connection IDs, needed to
// parse a short header (which carries no explicit DCID length).
func Parse(raw []byte, keys KeySource, selfCIDLen int) CodecResult {
	if len(raw) == 0 {
		return CodecResult{Kind: Nothing, Reason: "empty datagram"}
	}

	if raw[0]&longHeaderForm != 0 {
		return parseLongHeader(raw, keys)
	}
	return parseShortHeader(raw, keys, selfCIDLen)
}

func parseLongHeader(raw []byte, keys KeySource) CodecResult {
	if len(raw) < 6 {
		return CodecResult{Kind: Nothing, Reason: "short long-header prefix"}
	}

	version := uint32(raw[1])<<24 | uint32(raw[2])<<16 | uint32(raw[3])<<8 | uint32(raw[4])
	pos := 5

	if version == 0 {
		return parseVersionNegotiation(raw, pos)
	}

	dcidLen := int(raw[pos])
	pos++
	if pos+dcidLen > len(raw) {
		return CodecResult{Kind: Nothing, Reason: "truncated destination connection id"}
	}
	dcid := ConnectionID(raw[pos : pos+dcidLen])
	pos += dcidLen

	if pos >= len(raw) {
		return CodecResult{Kind: Nothing, Reason: "truncated after destination connection id"}
	}
	scidLen := int(raw[pos])
	pos++
	if pos+scidLen > len(raw) {
		return CodecResult{Kind: Nothing, Reason: "truncated source connection id"}
	}
	scid := ConnectionID(raw[pos : pos+scidLen])
	pos += scidLen

	typ := LongType((raw[0] >> 4) & 0x03)

	if typ == TypeRetry {
		return parseRetry(raw, pos, dcid, scid)
	}

	var token []byte
	if typ == TypeInitial {
		tokenLen, n, err := varint.Decode(raw[pos:])
		if err != nil {
			return CodecResult{Kind: Nothing, Reason: "truncated token length"}
		}
		pos += n
		if pos+int(tokenLen) > len(raw) {
			return CodecResult{Kind: Nothing, Reason: "truncated token"}
		}
		token = raw[pos : pos+int(tokenLen)]
		pos += int(tokenLen)
	}

	payloadLen, n, err := varint.Decode(raw[pos:])
	if err != nil {
		return CodecResult{Kind: Nothing, Reason: "truncated length field"}
	}
	pos += n

	hdr := Header{
		IsLong:  true,
		Type:    typ,
		Version: version,
		DestCID: dcid,
		SrcCID:  scid,
		Token:   token,
	}

	end := pos + int(payloadLen)
	if end > len(raw) {
		return CodecResult{Kind: Nothing, Reason: "truncated packet payload"}
	}

	res := decryptAndFinish(raw[:end], keys, hdr, pos, true)
	if res.Kind == RegularPacket || res.Kind == CipherUnavailable {
		res.Consumed = end
	}
	return res
}

func parseVersionNegotiation(raw []byte, pos int) CodecResult {
	if pos >= len(raw) {
		return CodecResult{Kind: Nothing, Reason: "truncated version negotiation"}
	}
	dcidLen := int(raw[pos])
	pos++
	if pos+dcidLen > len(raw) {
		return CodecResult{Kind: Nothing, Reason: "truncated version negotiation dcid"}
	}
	dcid := ConnectionID(raw[pos : pos+dcidLen])
	pos += dcidLen

	if pos >= len(raw) {
		return CodecResult{Kind: Nothing, Reason: "truncated version negotiation"}
	}
	scidLen := int(raw[pos])
	pos++
	if pos+scidLen > len(raw) {
		return CodecResult{Kind: Nothing, Reason: "truncated version negotiation scid"}
	}
	scid := ConnectionID(raw[pos : pos+scidLen])
	pos += scidLen

	var versions []uint32
	for pos+4 <= len(raw) {
		versions = append(versions, uint32(raw[pos])<<24|uint32(raw[pos+1])<<16|uint32(raw[pos+2])<<8|uint32(raw[pos+3]))
		pos += 4
	}

	return CodecResult{Kind: VersionNegotiation, Versions: versions, SrcCID: scid, DestCID: dcid}
}

func parseRetry(raw []byte, pos int, dcid, scid ConnectionID) CodecResult {
	if len(raw)-pos < 16 {
		return CodecResult{Kind: Nothing, Reason: "truncated retry integrity tag"}
	}
	tagStart := len(raw) - 16
	var tag [16]byte
	copy(tag[:], raw[tagStart:])

	return CodecResult{
		Kind:              Retry,
		RetryToken:        raw[pos:tagStart],
		RetryIntegrityTag: tag,
		RetrySourceCID:    scid,
		DestCID:           dcid,
	}
}

func parseShortHeader(raw []byte, keys KeySource, selfCIDLen int) CodecResult {
	if 1+selfCIDLen > len(raw) {
		return CodecResult{Kind: Nothing, Reason: "truncated short header"}
	}
	dcid := ConnectionID(raw[1 : 1+selfCIDLen])
	hdr := Header{
		IsLong:  false,
		DestCID: dcid,
	}
	res := decryptAndFinish(raw, keys, hdr, 1+selfCIDLen, false)
	if res.Kind == RegularPacket {
		res.Consumed = len(raw)
	}
	return res
}

// decryptAndFinish removes header protection, reconstructs the packet
// number, and AEAD-opens the body, given raw sliced to exactly this
// packet's bytes and pos pointing at the start of the packet-number field.
func decryptAndFinish(raw []byte, keys KeySource, hdr Header, pos int, isLong bool) CodecResult {
	level := hdr.Level()
	k, ok := keys.ReadKeys(level)
	if !ok {
		return CodecResult{Kind: CipherUnavailable, RawPayload: raw, ProtectionType: level}
	}

	pnLen := removeHeaderProtection(k.HP, raw, pos, isLong)
	if pnLen == 0 {
		return CodecResult{Kind: Nothing, Reason: "packet shorter than header protection sample"}
	}

	hdr.SpinBit = !isLong && raw[0]&0x20 != 0
	if !isLong {
		hdr.KeyPhase = qcrypto.Phase((raw[0] >> 2) & 0x01)
	}
	hdr.PacketNumberLength = pnLen

	var truncated uint64
	for i := 0; i < pnLen; i++ {
		truncated = truncated<<8 | uint64(raw[pos+i])
	}
	hdr.PacketNumber = truncated // reconstructed to a full PN by the caller, which knows largestReceived per space

	aad := raw[:pos+pnLen]
	body := raw[pos+pnLen:]

	plain, err := k.AEAD.Open(nil, pnNonce(hdr.PacketNumber), body, aad)
	if err != nil {
		return CodecResult{Kind: CodecError, Err: qerr.Local(qerr.InternalError, "aead authentication failed", err)}
	}

	return CodecResult{Kind: RegularPacket, Header: hdr, Payload: plain, AssociatedData: aad}
}

// pnNonce XORs the packet number into the low bytes of a zeroed IV-length
// buffer; the AEAD collaborator is expected to further XOR this against its
// own static IV per RFC 9001 §5.3. Exposed at package scope only for reuse
// by SerializePacket, not part of the public API.
func pnNonce(pn uint64) []byte {
	b := make([]byte, 12)
	for i := 0; i < 8; i++ {
		b[11-i] = byte(pn >> (8 * i))
	}
	return b
}

// SerializePacket assembles and protects one packet: it writes the header,
// appends the AEAD-sealed frames, then applies header protection, using
// largestAcked to pick the minimal packet-number encoding length.
func SerializePacket(hdr Header, frames []byte, largestAcked uint64, k Keys) ([]byte, error) {
	pnLen := varint.EncodedLenForPacketNumber(hdr.PacketNumber, largestAcked)
	hdr.PacketNumberLength = pnLen

	sealedLen := len(frames) + k.AEAD.Overhead()

	head, pnOffset, err := writeHeaderPrefix(hdr, pnLen, sealedLen)
	if err != nil {
		return nil, err
	}

	aad := head
	sealed := k.AEAD.Seal(nil, pnNonce(hdr.PacketNumber), frames, aad)

	out := append(append([]byte{}, head...), sealed...)
	applyHeaderProtection(k.HP, out, pnOffset, pnLen, hdr.IsLong)
	return out, nil
}

// writeHeaderPrefix renders the header bytes up to and including the
// packet-number field. sealedLen is the already-known length of the
// AEAD-sealed body (frames plus authentication tag), needed so the
// long-header Length field can be written correctly before the body is
// sealed (the Length field is itself part of the AEAD associated data).
func writeHeaderPrefix(hdr Header, pnLen, sealedLen int) ([]byte, int, error) {
	var b []byte

	if hdr.IsLong {
		first := longHeaderForm | 0x40 | byte(hdr.Type)<<4 | byte(pnLen-1)
		b = append(b, first)
		b = append(b, byte(hdr.Version>>24), byte(hdr.Version>>16), byte(hdr.Version>>8), byte(hdr.Version))
		b = append(b, byte(len(hdr.DestCID)))
		b = append(b, hdr.DestCID...)
		b = append(b, byte(len(hdr.SrcCID)))
		b = append(b, hdr.SrcCID...)

		if hdr.Type == TypeInitial {
			var err error
			b, err = varint.Encode(b, uint64(len(hdr.Token)))
			if err != nil {
				return nil, 0, err
			}
			b = append(b, hdr.Token...)
		}

		var err error
		b, err = varint.Encode(b, uint64(pnLen+sealedLen))
		if err != nil {
			return nil, 0, err
		}
	} else {
		first := byte(pnLen - 1)
		if hdr.SpinBit {
			first |= 0x20
		}
		first |= byte(hdr.KeyPhase) << 2
		b = append(b, first)
		b = append(b, hdr.DestCID...)
	}

	pnOffset := len(b)
	b = append(b, varint.EncodePacketNumber(hdr.PacketNumber, pnLen)...)
	return b, pnOffset, nil
}
