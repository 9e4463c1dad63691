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

// Package pathmgr tracks every (local, peer) address pair a connection
// has observed, validates newly observed peer addresses with
// PATH_CHALLENGE/PATH_RESPONSE, and manages the congestion/RTT state
// carried across a migration.
package pathmgr

import (
	"net/netip"
	"time"

	"github.com/google/uuid"
)

// State is a path's validation lifecycle.
type State int

const (
	// StatePending has been observed but not yet validated; its
	// ValidationLimiter (Path.Limiter) gates how many bytes may be sent on it.
	StatePending State = iota
	// StateValidated has completed a PATH_CHALLENGE/PATH_RESPONSE
	// round trip (or is the path the connection was created on).
	StateValidated
	// StateRetired is kept only to absorb late-arriving datagrams
	// before removal.
	StateRetired
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateValidated:
		return "validated"
	case StateRetired:
		return "retired"
	default:
		return "unknown"
	}
}

// Path is one (local, peer) address pair known to the connection. Each
// path is stamped with a random UUID in addition to the connection-
// scoped monotonic ID so that externally-facing logs/qlog records can
// name a path without leaking the monotonic counter's ordering.
type Path struct {
	ID       uint64
	UUID     uuid.UUID
	Local    netip.AddrPort
	Remote   netip.AddrPort
	State    State
	Created  time.Time
	RetiredAt time.Time

	ValidationToken  [8]byte
	HasToken         bool
	ValidationSentAt time.Time

	Limiter *ValidationLimiter

	CongestionSnapshot *CongestionSnapshot
}

// CongestionSnapshot is the RTT/congestion state saved when a
// connection migrates away from a path, and restored if the connection
// migrates back to it within kTimeToRetainLastCongestionAndRttState.
type CongestionSnapshot struct {
	SavedAt          time.Time
	CongestionWindow uint64
	SlowStartThresh  uint64
	SmoothedRTT      time.Duration
	RTTVar           time.Duration
	MinRTT           time.Duration
}

// kTimeToRetainLastCongestionAndRttState bounds how long a path's
// congestion/RTT snapshot survives after migrating away from it, per
// RFC 9002's recommendation to discard stale path characteristics
// rather than restore them indefinitely.
const kTimeToRetainLastCongestionAndRttState = 3 * time.Second

// Expired reports whether this snapshot is too old to restore.
func (c *CongestionSnapshot) Expired(now time.Time) bool {
	return c == nil || now.Sub(c.SavedAt) > kTimeToRetainLastCongestionAndRttState
}

func isSameIPv4Slash24(a, b netip.Addr) bool {
	if !a.Is4() || !b.Is4() {
		return false
	}
	a4, b4 := a.As4(), b.As4()
	return a4[0] == b4[0] && a4[1] == b4[1] && a4[2] == b4[2]
}

// IsNATRebind reports whether moving from oldAddr to newAddr looks like
// a NAT re-binding its external port rather than a genuine change of
// network path: for IPv4, the same /24; for IPv6, the same address with
// only the port differing.
func IsNATRebind(oldAddr, newAddr netip.AddrPort) bool {
	oldIP, newIP := oldAddr.Addr(), newAddr.Addr()
	if oldIP.Is4() && newIP.Is4() {
		return isSameIPv4Slash24(oldIP, newIP)
	}
	if oldIP.Is6() && newIP.Is6() {
		return oldIP == newIP && oldAddr.Port() != newAddr.Port()
	}
	return false
}
