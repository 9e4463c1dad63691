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

// Package varint implements the QUIC variable-length integer encoding
// (RFC 9000 §16): a two-bit length prefix selecting a 1, 2, 4, or 8 byte
// big-endian encoding of a 6/14/30/62-bit value.
package varint

import "errors"

// Max is the largest value representable (2^62 - 1).
const Max = uint64(1)<<62 - 1

// ErrTooLarge is returned when an encode target exceeds Max.
var ErrTooLarge = errors.New("varint: value exceeds 62-bit range")

// ErrTruncated is returned when a buffer ends before the encoded length.
var ErrTruncated = errors.New("varint: buffer truncated")

// Len returns the number of bytes Encode would produce for v.
func Len(v uint64) int {
	switch {
	case v <= 63:
		return 1
	case v <= 16383:
		return 2
	case v <= 1073741823:
		return 4
	default:
		return 8
	}
}

// Encode appends the varint encoding of v to dst and returns the result.
func Encode(dst []byte, v uint64) ([]byte, error) {
	switch n := Len(v); n {
	case 1:
		return append(dst, byte(v)), nil
	case 2:
		return append(dst, byte(v>>8)|0x40, byte(v)), nil
	case 4:
		return append(dst, byte(v>>24)|0x80, byte(v>>16), byte(v>>8), byte(v)), nil
	case 8:
		if v > Max {
			return dst, ErrTooLarge
		}
		return append(dst,
			byte(v>>56)|0xc0, byte(v>>48), byte(v>>40), byte(v>>32),
			byte(v>>24), byte(v>>16), byte(v>>8), byte(v)), nil
	default:
		return dst, ErrTooLarge
	}
}

// Decode reads one varint from b, returning the value and the number of
// bytes consumed.
func Decode(b []byte) (uint64, int, error) {
	if len(b) == 0 {
		return 0, 0, ErrTruncated
	}
	n := 1 << (b[0] >> 6)
	if len(b) < n {
		return 0, 0, ErrTruncated
	}
	v := uint64(b[0] & 0x3f)
	for i := 1; i < n; i++ {
		v = v<<8 | uint64(b[i])
	}
	return v, n, nil
}

// EncodedLenForPacketNumber returns the byte length (1-4) QUIC uses for a
// truncated packet number given the gap to the largest acknowledged packet
// number, per RFC 9000 §17.1 (not the general varint — packet numbers use a
// fixed-width truncation, not the 2-bit prefix scheme).
func EncodedLenForPacketNumber(fullPN, largestAcked uint64) int {
	numUnacked := fullPN - largestAcked
	if largestAcked == 0 {
		numUnacked = fullPN + 1
	}
	switch {
	case numUnacked*2 < 1<<8:
		return 1
	case numUnacked*2 < 1<<16:
		return 2
	case numUnacked*2 < 1<<24:
		return 3
	default:
		return 4
	}
}

// EncodePacketNumber truncates fullPN to n bytes, little endianness is NOT
// used: QUIC packet numbers are big-endian.
func EncodePacketNumber(fullPN uint64, n int) []byte {
	b := make([]byte, n)
	for i := n - 1; i >= 0; i-- {
		b[i] = byte(fullPN)
		fullPN >>= 8
	}
	return b
}

// DecodePacketNumber reconstructs a full packet number from its truncated
// wire form, given the expected value (largest-received + 1 for the space),
// per RFC 9000 Appendix A.
func DecodePacketNumber(truncated uint64, n int, expected uint64) uint64 {
	pnBits := uint(n * 8)
	pnWin := uint64(1) << pnBits
	pnHalfWin := pnWin / 2
	pnMask := pnWin - 1

	candidate := (expected &^ pnMask) | truncated
	switch {
	case expected >= pnHalfWin && candidate <= expected-pnHalfWin && candidate < (uint64(1)<<62)-pnWin:
		return candidate + pnWin
	case candidate > expected+pnHalfWin && candidate >= pnWin:
		return candidate - pnWin
	default:
		return candidate
	}
}
