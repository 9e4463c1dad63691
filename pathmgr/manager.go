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

package pathmgr

import (
	"crypto/rand"
	"net/netip"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nabbar/quicgo/qerr"
)

// defaultMaxNumMigrationsAllowed bounds how many times one connection may
// migrate before further attempts are treated as abuse (spec §4.6).
const defaultMaxNumMigrationsAllowed = 10

// kClientTimeToKeepOldPathAfterMigrationRTTs is the multiplier applied to
// smoothed RTT to decide how long a client retains its old path after
// migrating, to absorb late-arriving datagrams (spec §4.6).
const kClientTimeToKeepOldPathAfterMigrationRTTs = 2

// Manager owns every (local, peer) path a connection has observed or
// created, keyed by a monotonic path id, and drives PATH_CHALLENGE /
// PATH_RESPONSE validation and migration bookkeeping.
type Manager struct {
	mu sync.Mutex

	paths     map[uint64]*Path
	nextID    uint64
	currentID uint64

	migrationsUsed   int
	maxMigrations    int
	disableMigration bool
}

// NewManager creates the path table seeded with the connection's initial
// (local, peer) pair, already validated (it is the path the handshake
// started on).
func NewManager(local, peer netip.AddrPort, disableActiveMigration bool) *Manager {
	m := &Manager{
		paths:         make(map[uint64]*Path),
		maxMigrations: defaultMaxNumMigrationsAllowed,
		disableMigration: disableActiveMigration,
	}
	p := &Path{
		ID:      m.nextID,
		UUID:    uuid.New(),
		Local:   local,
		Remote:  peer,
		State:   StateValidated,
		Created: time.Now(),
	}
	m.paths[p.ID] = p
	m.currentID = p.ID
	m.nextID++
	return m
}

// Current returns the path currently bound for writes.
func (m *Manager) Current() *Path {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paths[m.currentID]
}

// Get returns the path with the given id, if known.
func (m *Manager) Get(id uint64) (*Path, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.paths[id]
	return p, ok
}

func randomToken() [8]byte {
	var t [8]byte
	_, _ = rand.Read(t[:])
	return t
}

// ObservePeerAddressChange is the server-side hook: a non-probing packet
// arrived from peerAddr, which differs from the current path's remote
// address. It records (or reuses) a path for the new address, classifies
// it as a NAT rebind or a genuine migration, snapshots/restores
// congestion state accordingly, and marks a genuinely new path pending so
// the caller can issue a PATH_CHALLENGE on it (IssueChallenge). It
// returns the (possibly new) path the caller should now treat as current,
// or an error if migration is not allowed.
func (m *Manager) ObservePeerAddressChange(now time.Time, peerAddr netip.AddrPort, currentCongestion *CongestionSnapshot, handshakeConfirmed bool) (*Path, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur := m.paths[m.currentID]
	if cur == nil {
		return nil, qerr.ErrMigrationFailed("no current path")
	}
	if cur.Remote == peerAddr {
		return cur, nil
	}
	if m.disableMigration {
		return nil, qerr.InvalidMigrationError("active migration disabled by peer", nil)
	}
	if !handshakeConfirmed {
		return nil, qerr.InvalidMigrationError("migration attempted before handshake confirmation", nil)
	}
	if m.migrationsUsed >= m.maxMigrations {
		return nil, qerr.InvalidMigrationError("maximum number of migrations exceeded", nil)
	}

	natRebind := IsNATRebind(cur.Remote, peerAddr)

	// Reuse an existing retired/pending path for this exact address if one
	// exists (the peer migrated back).
	for _, p := range m.paths {
		if p.Remote == peerAddr && p.Local == cur.Local {
			m.migrationsUsed++
			oldID := m.currentID
			m.currentID = p.ID
			m.retireLocked(oldID, now)
			if natRebind {
				p.CongestionSnapshot = currentCongestion
				p.State = StateValidated
			} else if p.CongestionSnapshot.Expired(now) {
				p.CongestionSnapshot = nil
				p.State = StatePending
				p.Limiter = NewValidationLimiter()
			} else {
				p.State = StateValidated
			}
			return p, nil
		}
	}

	np := &Path{
		ID:      m.nextID,
		UUID:    uuid.New(),
		Local:   cur.Local,
		Remote:  peerAddr,
		Created: now,
	}
	m.nextID++
	m.paths[np.ID] = np

	if natRebind {
		np.State = StateValidated
		np.CongestionSnapshot = currentCongestion
	} else {
		np.State = StatePending
		np.Limiter = NewValidationLimiter()
		cur.CongestionSnapshot = currentCongestion
	}

	m.migrationsUsed++
	oldID := m.currentID
	m.currentID = np.ID
	m.retireLocked(oldID, now)
	return np, nil
}

// retireLocked marks a path retired so late datagrams on it are still
// accepted briefly, without removing it from the table yet. Caller holds m.mu.
func (m *Manager) retireLocked(id uint64, now time.Time) {
	if p, ok := m.paths[id]; ok && p.State != StateRetired {
		p.State = StateRetired
		p.RetiredAt = now
	}
}

// IssueChallenge arms a fresh PATH_CHALLENGE token on the given path and
// returns it for the caller to schedule as an outgoing frame.
func (m *Manager) IssueChallenge(pathID uint64, now time.Time) ([8]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.paths[pathID]
	if !ok {
		return [8]byte{}, qerr.ErrMigrationFailed("unknown path")
	}
	p.ValidationToken = randomToken()
	p.HasToken = true
	p.ValidationSentAt = now
	return p.ValidationToken, nil
}

// HandleResponse matches an incoming PATH_RESPONSE token against every
// path with an outstanding challenge, validating the first match.
func (m *Manager) HandleResponse(token [8]byte) (*Path, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.paths {
		if p.HasToken && p.ValidationToken == token {
			p.State = StateValidated
			p.HasToken = false
			p.Limiter = nil
			return p, true
		}
	}
	return nil, false
}

// BeginClientMigration is the client-side hook: the application rebound
// its socket to a new local address. It records the new path as pending
// validation and keeps the old path retained for
// kClientTimeToKeepOldPathAfterMigrationRTTs * sRTT.
func (m *Manager) BeginClientMigration(newLocal netip.AddrPort, peerAddr netip.AddrPort, now time.Time) (*Path, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.disableMigration {
		return nil, qerr.InvalidMigrationError("active migration disabled by peer", nil)
	}
	if m.migrationsUsed >= m.maxMigrations {
		return nil, qerr.InvalidMigrationError("maximum number of migrations exceeded", nil)
	}

	np := &Path{
		ID:      m.nextID,
		UUID:    uuid.New(),
		Local:   newLocal,
		Remote:  peerAddr,
		State:   StatePending,
		Created: now,
		Limiter: NewValidationLimiter(),
	}
	m.nextID++
	m.paths[np.ID] = np
	m.migrationsUsed++
	return np, nil
}

// PromoteValidated switches the current path to a newly validated one
// (client migration completing) and retires the previous current path.
func (m *Manager) PromoteValidated(pathID uint64, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.paths[pathID]
	if !ok || p.State != StateValidated {
		return qerr.ErrMigrationFailed("path not validated")
	}
	old := m.currentID
	m.currentID = pathID
	m.retireLocked(old, now)
	return nil
}

// OldPathRetentionDeadline returns when a retired path may be physically
// removed, given the connection's current smoothed RTT.
func OldPathRetentionDeadline(p *Path, smoothedRTT time.Duration) time.Time {
	if p.State != StateRetired {
		return time.Time{}
	}
	d := smoothedRTT * kClientTimeToKeepOldPathAfterMigrationRTTs
	if d < kTimeToRetainLastCongestionAndRttState {
		d = kTimeToRetainLastCongestionAndRttState
	}
	return p.RetiredAt.Add(d)
}

// Sweep removes retired paths whose retention deadline has passed.
func (m *Manager) Sweep(now time.Time, smoothedRTT time.Duration) []uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed []uint64
	for id, p := range m.paths {
		if p.State != StateRetired || id == m.currentID {
			continue
		}
		if deadline := OldPathRetentionDeadline(p, smoothedRTT); !deadline.IsZero() && now.After(deadline) {
			delete(m.paths, id)
			removed = append(removed, id)
		}
	}
	return removed
}

// Count returns how many paths are currently tracked.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.paths)
}
