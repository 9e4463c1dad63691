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

import "github.com/nabbar/quicgo/qcrypto"

// sampleOffset is the fixed distance (RFC 9001 §5.4.2) from the start of
// the packet-number field to the ciphertext sample used for header
// protection, assuming a worst-case 4-byte packet-number field.
const sampleOffset = 4

const (
	longFirstByteMask  = 0x0f
	shortFirstByteMask = 0x1f
)

// headerProtectionSample extracts the 16-byte ciphertext sample used to
// derive the header-protection mask.
func headerProtectionSample(raw []byte, pnOffset int) []byte {
	start := pnOffset + sampleOffset
	if start+16 > len(raw) {
		return nil
	}
	return raw[start : start+16]
}

// removeHeaderProtection decrypts the first-byte bits, then the revealed
// number of packet-number bytes, in place. It returns the packet-number
// length (1-4), or 0 if the sample was unavailable (truncated datagram).
func removeHeaderProtection(hp qcrypto.HeaderProtector, raw []byte, pnOffset int, isLong bool) int {
	sample := headerProtectionSample(raw, pnOffset)
	if sample == nil {
		return 0
	}
	mask := hp.Mask(sample)

	bits := byte(shortFirstByteMask)
	if isLong {
		bits = longFirstByteMask
	}
	raw[0] ^= mask[0] & bits

	pnLen := int(raw[0]&0x03) + 1
	for i := 0; i < pnLen; i++ {
		raw[pnOffset+i] ^= mask[1+i]
	}
	return pnLen
}

// applyHeaderProtection encrypts the first-byte bits and the packet-number
// field in place. raw must already hold the AEAD-sealed body, since the
// mask is derived from real ciphertext; pnLen is the already-known
// plaintext packet-number length (it must be read before this call, since
// the first byte's low bits are about to be masked).
func applyHeaderProtection(hp qcrypto.HeaderProtector, raw []byte, pnOffset, pnLen int, isLong bool) {
	sample := headerProtectionSample(raw, pnOffset)
	if sample == nil {
		return
	}
	mask := hp.Mask(sample)

	for i := 0; i < pnLen; i++ {
		raw[pnOffset+i] ^= mask[1+i]
	}

	bits := byte(shortFirstByteMask)
	if isLong {
		bits = longFirstByteMask
	}
	raw[0] ^= mask[0] & bits
}
