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

package qcrypto

import (
	"crypto/sha256"
	"encoding/binary"
	"io"

	"golang.org/x/crypto/hkdf"
)

// quicKeyUpdateLabel is the HKDF-Expand-Label label fixed by RFC 9001 §6.1.
const quicKeyUpdateLabel = "quic ku"

// DeriveNext implements the HKDF-Expand-Label("quic ku") step of RFC 9001
// §6.1: given the current 1-RTT secret for one direction, it produces the
// secret for the next key phase. The caller (the handshake engine, via
// whatever cipher suite the connection negotiated) is responsible for
// turning the returned secret into an AEAD/HeaderProtector pair with the
// matching cipher primitives; this function only performs the one
// direction-agnostic derivation step the core is specified to own.
func DeriveNext(secret []byte) []byte {
	out := make([]byte, len(secret))

	info := buildHkdfLabel(quicKeyUpdateLabel, len(secret))
	r := hkdf.Expand(sha256.New, secret, info)
	if _, err := io.ReadFull(r, out); err != nil {
		// hkdf.Expand only fails when the requested length exceeds the
		// hash's expansion limit (255 * hash size); a 1-RTT secret is at
		// most a hash digest long, so this is unreachable in practice.
		panic("qcrypto: hkdf expand: " + err.Error())
	}
	return out
}

// buildHkdfLabel renders the TLS 1.3 HkdfLabel structure (RFC 8446 §7.1)
// used by QUIC's HKDF-Expand-Label: a 2-byte length, a length-prefixed
// "tls13 "-joined label, and an empty context.
func buildHkdfLabel(label string, length int) []byte {
	full := "tls13 " + label
	b := make([]byte, 0, 2+1+len(full)+1)

	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(length))
	b = append(b, lenBuf[:]...)

	b = append(b, byte(len(full)))
	b = append(b, full...)

	b = append(b, 0) // empty context
	return b
}
