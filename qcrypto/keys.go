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
	"sync"

	"github.com/nabbar/quicgo/qerr"
)

// Keyring holds the installed cipher pairs for all four encryption levels
// plus the 1-RTT key-update state. One Keyring exists per connection; it is
// only ever touched from the connection's single owning goroutine, so the
// mutex here guards against the one legitimate exception: a reader goroutine
// fetching the AppData read keys to verify an incoming packet while a write
// is in flight is never done in practice, but the lock keeps the zero-value
// safe to share if that assumption ever changes.
type Keyring struct {
	mu sync.RWMutex

	levels [4]LevelKeys

	phase         Phase
	previousPhase Phase
	nextRead      *DirectionalKeys
	nextWrite     *DirectionalKeys
	updateSeen    bool

	pendingVerification   bool
	pendingVerificationPN uint64
}

// NewKeyring returns an empty Keyring; every level starts with nil keys.
func NewKeyring() *Keyring {
	return &Keyring{}
}

// Install sets the read and/or write keys for a level. A nil DirectionalKeys
// argument leaves that direction untouched, so the handshake engine can
// install read and write keys in separate calls as it derives them.
func (k *Keyring) Install(level Level, read, write *DirectionalKeys) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if read != nil {
		k.levels[level].Read = read
	}
	if write != nil {
		k.levels[level].Write = write
	}
}

// Get returns the installed keys for a level, or ok=false if neither
// direction has been installed yet.
func (k *Keyring) Get(level Level) (LevelKeys, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	lk := k.levels[level]
	return lk, lk.Read != nil || lk.Write != nil
}

// HasAppData reports whether 1-RTT keys are installed in both directions,
// which is the signal the handshake confirmation and key-update logic gate
// on.
func (k *Keyring) HasAppData() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()

	lk := k.levels[AppData]
	return lk.Read != nil && lk.Write != nil
}

// Phase returns the current 1-RTT key phase.
func (k *Keyring) Phase() Phase {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.phase
}

// ArmNextPhase installs the pre-derived next-phase keys so that an incoming
// packet carrying the flipped phase bit can be decrypted immediately,
// without blocking on derivation, per RFC 9001 §6.3.
func (k *Keyring) ArmNextPhase(read, write *DirectionalKeys) {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.nextRead = read
	k.nextWrite = write
}

// UpdateKeys promotes the armed next-phase keys to current, flips the phase
// bit, and clears the armed slot. It returns an error if no next-phase keys
// were armed, which indicates the handshake engine has not kept up with key
// derivation.
func (k *Keyring) UpdateKeys() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.nextRead == nil || k.nextWrite == nil {
		return qerr.Transport(qerr.KeyUpdateError, "next phase keys not armed", nil)
	}

	k.levels[AppData].Read = k.nextRead
	k.levels[AppData].Write = k.nextWrite
	k.nextRead = nil
	k.nextWrite = nil
	k.previousPhase = k.phase
	k.phase = k.phase.Toggle()
	k.updateSeen = true
	return nil
}

// BeginPendingVerification records pn as the first packet number sent under
// the just-toggled phase. Until the update is confirmed or explicitly
// cleared, any ACK of a packet number >= pn that arrives in a datagram
// still protected under the previous phase indicates the peer never caught
// up to the update and is a CRYPTO_ERROR (RFC 9001 §6.2).
func (k *Keyring) BeginPendingVerification(pn uint64) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.pendingVerification {
		return
	}
	k.pendingVerification = true
	k.pendingVerificationPN = pn
}

// ClearPendingVerification marks the current key update as confirmed by the
// peer, so later ACKs are no longer checked against it.
func (k *Keyring) ClearPendingVerification() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.pendingVerification = false
}

// CheckAckPhase inspects an ACK frame with the given largestAcked, carried
// by a packet decrypted with recvPhase, against a pending key update
// verification. It returns false if the peer acknowledged a packet number
// we only sent under the new phase while itself still protected under the
// old one (a CRYPTO_ERROR per RFC 9001 §6.2). A passing ACK decrypted under
// the new phase that covers the first new-phase packet number confirms the
// update and clears pendingVerification.
func (k *Keyring) CheckAckPhase(recvPhase Phase, largestAcked uint64) bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	if !k.pendingVerification {
		return true
	}
	if recvPhase == k.previousPhase && largestAcked >= k.pendingVerificationPN {
		return false
	}
	if recvPhase == k.phase && largestAcked >= k.pendingVerificationPN {
		k.pendingVerification = false
	}
	return true
}

// PendingVerification reports whether a locally-initiated key update is
// still awaiting confirmation, and the first packet number sent in the new
// phase if so.
func (k *Keyring) PendingVerification() (uint64, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.pendingVerificationPN, k.pendingVerification
}
