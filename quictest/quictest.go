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

// Package quictest holds deterministic fakes shared by the _test.go files of
// every package that needs a cipher, a handshake engine or a socket without
// pulling in real cryptography or a real UDP socket, mirroring the packet
// package's own openableAEAD/noopHP test helpers (packet/codec_test.go) but
// promoted to an importable package since conn's tests are not alone in
// needing them.
package quictest

import (
	"net/netip"
	"sync"

	"github.com/nabbar/quicgo/conn"
	"github.com/nabbar/quicgo/qcrypto"
	"github.com/nabbar/quicgo/qtp"
)

// OpenableAEAD is a non-cryptographic AEAD stand-in: Seal appends a
// fixed-size zero tag, Open strips and ignores it unconditionally. Grounded
// on packet/codec_test.go's openableAEAD.
type OpenableAEAD struct{}

func (OpenableAEAD) Seal(dst, nonce, plaintext, aad []byte) []byte {
	out := append(dst, plaintext...)
	return append(out, make([]byte, 16)...)
}

func (OpenableAEAD) Open(dst, nonce, ciphertext, aad []byte) ([]byte, error) {
	if len(ciphertext) < 16 {
		return nil, errShortCiphertext
	}
	return append(dst, ciphertext[:len(ciphertext)-16]...), nil
}

func (OpenableAEAD) Overhead() int { return 16 }

var errShortCiphertext = shortCiphertextError{}

type shortCiphertextError struct{}

func (shortCiphertextError) Error() string { return "quictest: ciphertext shorter than tag" }

// NoopHP is a header-protection stand-in that contributes no mask, grounded
// on packet/codec_test.go's noopHP.
type NoopHP struct{}

func (NoopHP) Mask(sample []byte) [5]byte { return [5]byte{} }

// StaticKeys answers every KeySource.ReadKeys call with the same Keys pair,
// grounded on packet/codec_test.go's staticKeys.
type StaticKeys struct {
	AEAD qcrypto.AEAD
	HP   qcrypto.HeaderProtector
}

func NewStaticKeys() StaticKeys {
	return StaticKeys{AEAD: OpenableAEAD{}, HP: NoopHP{}}
}

func (s StaticKeys) Directional() *qcrypto.DirectionalKeys {
	return &qcrypto.DirectionalKeys{AEAD: s.AEAD, HP: s.HP}
}

// Handshake is a scriptable fake of conn.HandshakeEngine: tests feed it
// crypto bytes and key installs directly instead of running a real TLS 1.3
// state machine, which is out of scope per the core's handshake-engine
// boundary.
type Handshake struct {
	mu sync.Mutex

	fed       map[qcrypto.Level][][]byte
	outgoing  map[qcrypto.Level][][]byte
	installs  []conn.CipherInstall
	params    qtp.Parameters
	hasParams bool
	confirmed bool
	nextRead  *qcrypto.DirectionalKeys
	nextWrite *qcrypto.DirectionalKeys
	nextErr   error
	retryOK   bool
}

func NewHandshake() *Handshake {
	return &Handshake{
		fed:      make(map[qcrypto.Level][][]byte),
		outgoing: make(map[qcrypto.Level][][]byte),
	}
}

func (h *Handshake) FeedCryptoBytes(level qcrypto.Level, data []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	cp := append([]byte(nil), data...)
	h.fed[level] = append(h.fed[level], cp)
	return nil
}

func (h *Handshake) FedBytes(level qcrypto.Level) [][]byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.fed[level]
}

// QueueOutgoing arms data to be returned by the next PendingCryptoBytes call
// for level.
func (h *Handshake) QueueOutgoing(level qcrypto.Level, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.outgoing[level] = append(h.outgoing[level], data)
}

func (h *Handshake) PendingCryptoBytes(level qcrypto.Level) []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	q := h.outgoing[level]
	if len(q) == 0 {
		return nil
	}
	next := q[0]
	h.outgoing[level] = q[1:]
	return next
}

// QueueInstall arms a cipher-install the next Installed call drains.
func (h *Handshake) QueueInstall(level qcrypto.Level, read, write *qcrypto.DirectionalKeys) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.installs = append(h.installs, conn.CipherInstall{Level: level, Read: read, Write: write})
}

func (h *Handshake) Installed() []conn.CipherInstall {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := h.installs
	h.installs = nil
	return out
}

// SetConfirmed arms IsHandshakeConfirmed's return value.
func (h *Handshake) SetConfirmed(v bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.confirmed = v
}

func (h *Handshake) IsHandshakeConfirmed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.confirmed
}

// SetTransportParameters arms the value TransportParameters reports as
// available.
func (h *Handshake) SetTransportParameters(p qtp.Parameters) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.params = p
	h.hasParams = true
}

func (h *Handshake) TransportParameters() (qtp.Parameters, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.params, h.hasParams
}

// ArmNextPhase arms the pair DeriveNextPhase returns, or the error if err is
// non-nil.
func (h *Handshake) ArmNextPhase(read, write *qcrypto.DirectionalKeys, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextRead, h.nextWrite, h.nextErr = read, write, err
}

func (h *Handshake) DeriveNextPhase() (*qcrypto.DirectionalKeys, *qcrypto.DirectionalKeys, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.nextRead, h.nextWrite, h.nextErr
}

// SetRetryIntegrityValid arms VerifyRetryIntegrityTag's return value.
func (h *Handshake) SetRetryIntegrityValid(v bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.retryOK = v
}

func (h *Handshake) VerifyRetryIntegrityTag(retryPacket []byte, tag [16]byte, originalDestCID []byte) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.retryOK
}

// Socket is a fake UDP socket recording every datagram handed to WriteTo.
type Socket struct {
	mu   sync.Mutex
	Sent []SentDatagram
	Err  error
}

type SentDatagram struct {
	Data []byte
	Addr netip.AddrPort
}

func NewSocket() *Socket { return &Socket{} }

func (s *Socket) WriteTo(b []byte, addr netip.AddrPort) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}
	s.Sent = append(s.Sent, SentDatagram{Data: append([]byte(nil), b...), Addr: addr})
	return len(b), nil
}

func (s *Socket) SentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Sent)
}
