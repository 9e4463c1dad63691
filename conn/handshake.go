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

package conn

import (
	"net/netip"

	"github.com/nabbar/quicgo/qcrypto"
	"github.com/nabbar/quicgo/qtp"
)

// CipherInstall is one cipher pair the handshake engine hands back for
// installation into the connection's Keyring, draining from Installed.
type CipherInstall struct {
	Level qcrypto.Level
	Read  *qcrypto.DirectionalKeys
	Write *qcrypto.DirectionalKeys
}

// HandshakeEngine is the opaque TLS 1.3 boundary spec §1 places out of
// this core's scope: everything about cipher suite negotiation, the
// certificate chain, and the CRYPTO-stream byte semantics of TLS itself
// lives behind this interface. The core only feeds it CRYPTO frame bytes
// by level, drains whatever bytes and cipher installs it produces, and
// reads the transport parameters it extracted from the peer's
// EncryptedExtensions/ClientHello once available.
type HandshakeEngine interface {
	// FeedCryptoBytes delivers in-order CRYPTO frame bytes received at
	// level to the TLS state machine.
	FeedCryptoBytes(level qcrypto.Level, data []byte) error

	// PendingCryptoBytes drains (and clears) the next chunk of outgoing
	// CRYPTO bytes the engine has produced for level, or nil if none are
	// pending.
	PendingCryptoBytes(level qcrypto.Level) []byte

	// Installed drains every cipher pair the engine has derived since the
	// last call, in the order they should be installed.
	Installed() []CipherInstall

	// TransportParameters returns the peer's transport parameters, once
	// the engine has parsed them out of the handshake, and whether they
	// are available yet.
	TransportParameters() (qtp.Parameters, bool)

	// IsHandshakeConfirmed reports whether the handshake has reached the
	// confirmed state (RFC 9001 §4.1.2): the server has seen a HANDSHAKE
	// level packet from the client, or the client has processed a
	// HANDSHAKE_DONE frame.
	IsHandshakeConfirmed() bool

	// DeriveNextPhase derives and builds the next 1-RTT key phase's
	// read/write cipher pair (RFC 9001 §6), using qcrypto.DeriveNext for
	// the secret derivation step this core owns and the engine's own
	// cipher-suite-specific key/IV expansion for the rest.
	DeriveNextPhase() (read, write *qcrypto.DirectionalKeys, err error)

	// VerifyRetryIntegrityTag checks a Retry packet's integrity tag
	// against the original destination connection ID, per RFC 9001 §5.8.
	VerifyRetryIntegrityTag(retryPacket []byte, tag [16]byte, originalDestCID []byte) bool
}

// Socket is the opaque UDP transport boundary: the core never owns a
// file descriptor directly, only this narrow send contract, so the same
// Connection logic runs over a real kernel socket, a QUIC-over-something
// tunnel, or (in tests) quictest.Socket.
type Socket interface {
	WriteTo(b []byte, addr netip.AddrPort) (int, error)
}
