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

// Package token issues and validates the two address-validation tokens a
// QUIC server hands out: the Retry token (carried in a Retry packet, then
// echoed back in the client's next Initial) and NEW_TOKEN (handed out
// after the handshake, redeemable on a future connection's first Initial
// to skip the Retry round trip). Both are AES-256-GCM-sealed blobs under
// a server-held secret; this is a narrow, fixed AEAD use and is kept on
// the standard library rather than reusing qcrypto's pluggable cipher
// interface, which exists for the connection's negotiated, per-level
// ciphers, not for this single always-AES-GCM server secret.
package token

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"net/netip"
	"time"

	"github.com/nabbar/quicgo/qerr"
)

// Service issues and validates Retry tokens and NEW_TOKEN values under one
// server-held secret. A Service is safe for concurrent use: it holds no
// mutable state beyond the immutable AEAD built at construction time.
type Service struct {
	aead cipher.AEAD
}

// NewService derives an AES-256-GCM AEAD from a 32-byte secret
// (typically itself derived from a longer-lived server key via HKDF, but
// that derivation is the caller's concern, not this package's).
func NewService(secret [32]byte) (*Service, error) {
	block, err := aes.NewCipher(secret[:])
	if err != nil {
		return nil, qerr.Local(qerr.InternalError, "token: build AES cipher", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, qerr.Local(qerr.InternalError, "token: build GCM", err)
	}
	return &Service{aead: gcm}, nil
}

func (s *Service) seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, qerr.Local(qerr.InternalError, "token: nonce generation", err)
	}
	return s.aead.Seal(nonce, nonce, plaintext, nil), nil
}

func (s *Service) open(token []byte) ([]byte, error) {
	n := s.aead.NonceSize()
	if len(token) < n {
		return nil, qerr.ErrInvalidOperation("token: too short")
	}
	nonce, ciphertext := token[:n], token[n:]
	pt, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, qerr.ErrInvalidOperation("token: authentication failed")
	}
	return pt, nil
}

// RetryInfo is the payload bound into a Retry token.
type RetryInfo struct {
	OriginalDestCID []byte
	ClientAddr      netip.AddrPort
	IssuedAt        time.Time
}

func encodeAddr(dst []byte, a netip.AddrPort) []byte {
	ip := a.Addr().As16()
	dst = append(dst, ip[:]...)
	var port [2]byte
	binary.BigEndian.PutUint16(port[:], a.Port())
	return append(dst, port[:]...)
}

func decodeAddr(b []byte) (netip.AddrPort, []byte, error) {
	if len(b) < 18 {
		return netip.AddrPort{}, nil, qerr.ErrInvalidOperation("token: truncated address")
	}
	var ip [16]byte
	copy(ip[:], b[:16])
	port := binary.BigEndian.Uint16(b[16:18])
	return netip.AddrPortFrom(netip.AddrFrom16(ip).Unmap(), port), b[18:], nil
}

// IssueRetry seals (odcid, clientAddr, now) into a Retry token.
func (s *Service) IssueRetry(odcid []byte, clientAddr netip.AddrPort, now time.Time) ([]byte, error) {
	plain := make([]byte, 0, 1+len(odcid)+18+8)
	plain = append(plain, byte(len(odcid)))
	plain = append(plain, odcid...)
	plain = encodeAddr(plain, clientAddr)
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(now.UnixMilli()))
	plain = append(plain, ts[:]...)
	return s.seal(plain)
}

// ValidateRetry opens a Retry token and checks that the embedded client
// address matches the address the token is now being presented from, and
// that it is not older than maxAge.
func (s *Service) ValidateRetry(tok []byte, clientAddr netip.AddrPort, now time.Time, maxAge time.Duration) (RetryInfo, error) {
	plain, err := s.open(tok)
	if err != nil {
		return RetryInfo{}, err
	}
	if len(plain) < 1 {
		return RetryInfo{}, qerr.ErrInvalidOperation("token: empty retry payload")
	}
	odcidLen := int(plain[0])
	rest := plain[1:]
	if len(rest) < odcidLen {
		return RetryInfo{}, qerr.ErrInvalidOperation("token: truncated odcid")
	}
	odcid := rest[:odcidLen]
	rest = rest[odcidLen:]

	addr, rest, err := decodeAddr(rest)
	if err != nil {
		return RetryInfo{}, err
	}
	if len(rest) < 8 {
		return RetryInfo{}, qerr.ErrInvalidOperation("token: truncated timestamp")
	}
	issuedMs := binary.BigEndian.Uint64(rest[:8])
	issuedAt := time.UnixMilli(int64(issuedMs))

	if addr != clientAddr {
		return RetryInfo{}, qerr.ErrInvalidOperation("token: client address mismatch")
	}
	if now.Sub(issuedAt) > maxAge {
		return RetryInfo{}, qerr.ErrInvalidOperation("token: expired")
	}
	return RetryInfo{OriginalDestCID: odcid, ClientAddr: addr, IssuedAt: issuedAt}, nil
}

// IssueNewToken seals (clientAddr, now) into a NEW_TOKEN value, redeemable
// on a future connection to waive the Retry round trip.
func (s *Service) IssueNewToken(clientAddr netip.AddrPort, now time.Time) ([]byte, error) {
	plain := make([]byte, 0, 18+8)
	plain = encodeAddr(plain, clientAddr)
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(now.UnixMilli()))
	plain = append(plain, ts[:]...)
	return s.seal(plain)
}

// ValidateNewToken opens a NEW_TOKEN value. The caller decides acceptance
// policy from the returned address/age (spec §6: "the server decides
// acceptance based on age and address match") — this only decrypts and
// authenticates.
func (s *Service) ValidateNewToken(tok []byte) (netip.AddrPort, time.Time, error) {
	plain, err := s.open(tok)
	if err != nil {
		return netip.AddrPort{}, time.Time{}, err
	}
	addr, rest, err := decodeAddr(plain)
	if err != nil {
		return netip.AddrPort{}, time.Time{}, err
	}
	if len(rest) < 8 {
		return netip.AddrPort{}, time.Time{}, qerr.ErrInvalidOperation("token: truncated timestamp")
	}
	issuedMs := binary.BigEndian.Uint64(rest[:8])
	return addr, time.UnixMilli(int64(issuedMs)), nil
}
