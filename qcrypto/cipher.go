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

// AEAD is the byte-in/byte-out authenticated cipher the handshake engine
// exports for a given (level, direction). The core never constructs one
// itself; it only calls Seal/Open with data assembled from the wire.
type AEAD interface {
	// Seal encrypts and authenticates plaintext, appending the result to
	// dst. nonce is the packet-number derived per-packet nonce; aad is the
	// packet header bytes.
	Seal(dst, nonce, plaintext, aad []byte) []byte

	// Open authenticates and decrypts ciphertext, appending the result to
	// dst, or returns an error if authentication fails.
	Open(dst, nonce, ciphertext, aad []byte) ([]byte, error)

	// Overhead is the number of bytes Seal adds (the authentication tag).
	Overhead() int
}

// HeaderProtector derives the 5-byte header-protection mask from a
// ciphertext sample (RFC 9001 §5.4.1): mask[0] is XORed against the
// first-byte protected bits, mask[1:] against up to 4 packet-number bytes.
// The codec applies the mask itself, since which bits of the mask apply
// depends on the already-decrypted (or not-yet-encrypted) first byte,
// something only the caller can sequence correctly.
type HeaderProtector interface {
	Mask(sample []byte) [5]byte
}

// DirectionalKeys bundles one direction's AEAD and header-protection cipher.
type DirectionalKeys struct {
	AEAD AEAD
	HP   HeaderProtector
}

// LevelKeys bundles read and write keys for one encryption level.
type LevelKeys struct {
	Read  *DirectionalKeys
	Write *DirectionalKeys
}
