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

package stream

import (
	"sort"
	"sync"

	"github.com/nabbar/quicgo/flowcontrol"
	"github.com/nabbar/quicgo/qerr"
)

// streamIDInitiatorMask / streamIDDirMask mirror RFC 9000 §2.1's use of the two
// low bits of a stream ID to encode initiator and directionality.
const (
	streamIDInitiatorMask = 0x1
	streamIDDirMask       = 0x2

	streamIDInitiatorServer = 0x1
	streamIDUni             = 0x2
)

// entry bundles one stream's send and/or receive halves; unidirectional
// streams only populate the half their initiator may use.
type entry struct {
	send *SendStream
	recv *ReceiveStream
}

// Manager owns every stream of one connection: creation, peer-initiated
// acceptance against the negotiated stream-count limits, and the
// writable and pending-reset listings the write path consumes. It keeps
// no readable or peekable set.
type Manager struct {
	mu sync.Mutex

	isServer bool
	conn     *flowcontrol.ConnectionFlowController

	streams map[uint64]*entry

	nextBidi uint64
	nextUni  uint64

	maxStreamsBidi uint64
	maxStreamsUni  uint64
	peerMaxBidi    uint64
	peerMaxUni     uint64
}

// NewManager builds a stream manager for either connection role.
func NewManager(isServer bool, conn *flowcontrol.ConnectionFlowController) *Manager {
	return &Manager{
		isServer: isServer,
		conn:     conn,
		streams:  make(map[uint64]*entry),
	}
}

// SetLimits records the locally advertised and peer-advertised
// initial_max_streams_* values.
func (m *Manager) SetLimits(localBidi, localUni, peerBidi, peerUni uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maxStreamsBidi = localBidi
	m.maxStreamsUni = localUni
	m.peerMaxBidi = peerBidi
	m.peerMaxUni = peerUni
}

func (m *Manager) localInitiatorBit() uint64 {
	if m.isServer {
		return streamIDInitiatorServer
	}
	return 0
}

// OpenBidi opens the next locally-initiated bidirectional stream.
func (m *Manager) OpenBidi() (*SendStream, *ReceiveStream, error) {
	return m.open(false)
}

// OpenUni opens the next locally-initiated unidirectional stream.
func (m *Manager) OpenUni() (*SendStream, error) {
	send, _, err := m.open(true)
	return send, err
}

func (m *Manager) open(uni bool) (*SendStream, *ReceiveStream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var seq *uint64
	var limit uint64
	if uni {
		seq, limit = &m.nextUni, m.peerMaxUni
	} else {
		seq, limit = &m.nextBidi, m.peerMaxBidi
	}
	if *seq >= limit {
		return nil, nil, qerr.StreamStateError("stream limit reached", nil)
	}

	id := m.encodeID(*seq, uni, true)
	*seq++

	sfc := flowcontrol.NewStreamFlowController(m.conn, !uni)
	send := NewSendStream(id, sfc)
	e := &entry{send: send}
	if !uni {
		e.recv = NewReceiveStream(id, sfc)
	}
	m.streams[id] = e
	return send, e.recv, nil
}

// encodeID builds a stream ID from a per-type sequence number, direction
// and whether this endpoint is the initiator.
func (m *Manager) encodeID(seq uint64, uni, local bool) uint64 {
	id := seq << 2
	if uni {
		id |= streamIDUni
	}
	initiatorBit := m.localInitiatorBit()
	if !local {
		initiatorBit ^= streamIDInitiatorMask
	}
	id |= initiatorBit
	return id
}

// isLocallyInitiated reports whether this endpoint opened the stream
// identified by id.
func (m *Manager) isLocallyInitiated(id uint64) bool {
	return (id & streamIDInitiatorMask) == m.localInitiatorBit()
}

// isUni reports whether id names a unidirectional stream.
func isUni(id uint64) bool { return id&streamIDDirMask != 0 }

// GetOrAccept returns the entry for id, creating it via peer-initiated
// acceptance if this is the first reference to a stream the peer is
// opening, enforcing the locally advertised stream-count limit.
func (m *Manager) GetOrAccept(id uint64) (*SendStream, *ReceiveStream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.streams[id]; ok {
		return e.send, e.recv, nil
	}
	if m.isLocallyInitiated(id) {
		return nil, nil, qerr.ErrStreamNotExists(id)
	}

	uni := isUni(id)
	seq := id >> 2
	var limit uint64
	if uni {
		limit = m.maxStreamsUni
	} else {
		limit = m.maxStreamsBidi
	}
	if seq >= limit {
		return nil, nil, qerr.StreamStateError("peer exceeded advertised stream limit", nil)
	}

	sfc := flowcontrol.NewStreamFlowController(m.conn, !uni)
	e := &entry{recv: NewReceiveStream(id, sfc)}
	if !uni {
		e.send = NewSendStream(id, sfc)
	}
	m.streams[id] = e
	return e.send, e.recv, nil
}

// Writable returns, in ascending stream-ID order, every stream that
// currently has send-side bytes to frame (new data or lost ranges awaiting
// retransmission); streams owing a RESET_STREAM are listed by PendingResets.
func (m *Manager) Writable() []*SendStream {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ids []uint64
	for id, e := range m.streams {
		if e.send == nil {
			continue
		}
		if e.send.PendingBytes() > 0 {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]*SendStream, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.streams[id].send)
	}
	return out
}

// PendingResets returns, in ascending stream-ID order, every send stream
// that owes the peer its RESET_STREAM/RESET_STREAM_AT frame for the first
// time.
func (m *Manager) PendingResets() []*SendStream {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ids []uint64
	for id, e := range m.streams {
		if e.send != nil && e.send.NeedsResetFrame() {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]*SendStream, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.streams[id].send)
	}
	return out
}

// Remove drops a stream whose send and receive halves (if any) have both
// reached a terminal state, reclaiming it from the manager's bookkeeping.
func (m *Manager) Remove(id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.streams[id]
	if !ok {
		return
	}
	if e.send != nil && !e.send.State().Terminal() {
		return
	}
	if e.recv != nil && !e.recv.State().Terminal() {
		return
	}
	delete(m.streams, id)
}

// Count returns the number of streams currently tracked, for tests and
// diagnostics.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.streams)
}
