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

package scheduler

import "github.com/nabbar/quicgo/qerr"

// clientInitialMinSize is RFC 9000 §14.1's floor on a UDP datagram
// carrying a client Initial packet: padded to at least 1200 bytes so the
// path MTU is proven before either side commits to a larger size.
const clientInitialMinSize = 1200

// PadClientInitial grows a datagram that carries a client Initial packet
// up to clientInitialMinSize using PADDING bytes (zero-valued, since a
// PADDING frame is encoded as a single zero byte and is indistinguishable
// run-length from more of the same). Packets from the server, or
// non-Initial client packets, are returned unchanged.
func PadClientInitial(datagram []byte, isClient, isInitial bool) []byte {
	if !isClient || !isInitial {
		return datagram
	}
	if len(datagram) >= clientInitialMinSize {
		return datagram
	}
	padded := make([]byte, clientInitialMinSize)
	copy(padded, datagram)
	return padded
}

// CheckMigrationDuringHandshake returns an INVALID_MIGRATION connection
// error if a non-probing packet arrives on a new path before the
// handshake has confirmed, per RFC 9000 §9: the server has no way to
// validate the client's address until it owns a confirmed handshake key,
// so an early migration attempt is grounds for closing the connection
// rather than silently adopting the new path.
func CheckMigrationDuringHandshake(handshakeConfirmed, pathChanged bool) error {
	if handshakeConfirmed || !pathChanged {
		return nil
	}
	return qerr.InvalidMigrationError("path migration attempted before handshake confirmation", nil)
}
