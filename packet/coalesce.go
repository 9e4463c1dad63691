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

// Split parses every coalesced packet out of a single datagram, in order,
// stopping at KMaxNumCoalescedPackets, a Nothing/VersionNegotiation/Retry/
// StatelessReset result (which cannot be followed by further coalesced
// packets), or a short header (which always runs to the end of the
// datagram, since it carries no explicit length field).
func Split(raw []byte, keys KeySource, selfCIDLen int) []CodecResult {
	var results []CodecResult

	for len(raw) > 0 && len(results) < KMaxNumCoalescedPackets {
		res := Parse(raw, keys, selfCIDLen)
		results = append(results, res)

		switch res.Kind {
		case RegularPacket:
			if !res.Header.IsLong {
				return results // short header always runs to the datagram's end
			}
		case CipherUnavailable:
			// still a long header with a known length field; coalescing may
			// continue once Consumed is trustworthy.
		default:
			return results
		}

		if res.Consumed <= 0 || res.Consumed >= len(raw) {
			return results
		}
		raw = raw[res.Consumed:]
	}

	return results
}
