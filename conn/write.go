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
	"errors"
	"syscall"
	"time"

	"github.com/nabbar/quicgo/ackloss"
	"github.com/nabbar/quicgo/frame"
	"github.com/nabbar/quicgo/packet"
	"github.com/nabbar/quicgo/qtimer"
	"github.com/nabbar/quicgo/scheduler"
)

// excessWriteRetryInterval is how long the write loop waits before
// retrying a batch parked on socket backpressure (spec §7).
const excessWriteRetryInterval = 2 * time.Millisecond

// errSocketBackpressure marks a send that failed only because the
// socket's send buffer is momentarily full, not a fatal transport error.
var errSocketBackpressure = errors.New("conn: socket write would block")

// isTransientWriteError reports whether err is the kind of socket
// backpressure a UDP sender must treat as non-fatal and retry, per
// EAGAIN/EWOULDBLOCK/ENOBUFS handling in the original's
// writeQuicDataToSocket.
func isTransientWriteError(err error) bool {
	return errors.Is(err, syscall.EAGAIN) ||
		errors.Is(err, syscall.EWOULDBLOCK) ||
		errors.Is(err, syscall.ENOBUFS)
}

// maxPacketsPerWritePass bounds how many packets a single WritePackets
// call builds per space, so one call to the cooperative loop can never
// monopolize it indefinitely (scheduler.BudgetInputs.PacketLimit).
const maxPacketsPerWritePass = 16

// streamFrameOverhead is a conservative estimate of a STREAM frame's
// non-data bytes (type, stream ID, offset, length varints), used to
// decide whether it is worth asking a stream to drain at all.
const streamFrameOverhead = 16

// WritePackets drives one write pass across every packet-number space
// with installed write keys, in space order (Initial, Handshake,
// AppData), and re-arms the loss-detection timer for every space that
// now has something outstanding.
func (c *Connection) WritePackets(now time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writePacketsLocked(now)
}

func (c *Connection) writePacketsLocked(now time.Time) error {
	if c.closeState != StateOpen {
		return nil
	}

	// A client's first flight has nothing to drain keys off of: the
	// engine derives Initial secrets from the destination CID the moment
	// it's constructed, with no datagram received yet to trigger read.go's
	// drainInstalledKeys. Draining here too keeps both paths in sync
	// without installing anything twice (Installed() only ever hands back
	// what hasn't been drained already).
	c.drainInstalledKeys()

	anySent := false
	for _, sp := range []ackloss.Space{ackloss.SpaceInitial, ackloss.SpaceHandshake, ackloss.SpaceAppData} {
		space := c.spaces[sp]
		if space == nil || space.discarded {
			continue
		}
		if _, ok := c.writeKeys(spaceLevel(sp)); !ok {
			continue
		}
		n, err := c.writeSpace(sp, now)
		if err != nil {
			return err
		}
		if n > 0 {
			anySent = true
		}
	}

	if anySent {
		c.armLossDetectionTimerLocked(now)
	}
	return nil
}

// writeSpace builds and sends as many packets as this pass's budget
// allows for one packet-number space, returning how many it sent.
func (c *Connection) writeSpace(sp ackloss.Space, now time.Time) (int, error) {
	level := spaceLevel(sp)
	keys, ok := c.writeKeys(level)
	if !ok {
		return 0, nil
	}

	budget := scheduler.ComputeBudget(c.budgetInputs(sp, now))
	built := 0
	var sentBytes uint64

	for {
		if budget.PacketsExhausted(built) || budget.DeadlineExceeded(now) {
			break
		}

		c.drainHandshakeCrypto(sp)

		in := c.writeInputs(sp, now)
		reason := scheduler.ShouldWriteData(in)
		if reason == scheduler.NoWrite {
			break
		}

		avail := c.payloadBudget(sp, budget, sentBytes)
		if avail <= 0 {
			break
		}

		frames, sentFrames := c.buildFrames(sp, now, avail)
		if len(frames) == 0 {
			break
		}

		n, err := c.sendPacket(sp, keys, frames, sentFrames, now)
		if err != nil {
			if errors.Is(err, errSocketBackpressure) {
				c.armExcessWriteTimerLocked(now)
				break
			}
			return built, err
		}
		built++
		sentBytes += uint64(n)
		c.pendingProbe[sp] = false
	}
	return built, nil
}

// payloadBudget caps one packet's frame-payload size by the datagram
// size ceiling and whatever remains of the pass's byte budget.
func (c *Connection) payloadBudget(sp ackloss.Space, budget scheduler.Budget, sentBytes uint64) int {
	max := c.settings.MaxDatagramSize
	if budget.MaxBytes > 0 {
		remaining := int64(budget.MaxBytes) - int64(sentBytes)
		if remaining < int64(max) {
			max = int(remaining)
		}
	}
	if max < 0 {
		max = 0
	}
	return max
}

// budgetInputs resolves the congestion/flow-control/deadline ceilings for
// one write pass over sp.
func (c *Connection) budgetInputs(sp ackloss.Space, now time.Time) scheduler.BudgetInputs {
	in := scheduler.BudgetInputs{
		PacketLimit:          maxPacketsPerWritePass,
		CongestionAvailable:  c.congestion.AvailableBytes(),
		FlowControlAvailable: ^uint64(0),
		SmoothedRTT:          c.spaces[ackloss.SpaceAppData].tracker.RTT().SmoothedRTT(),
		WriteLoopBeginTime:   now,
		Now:                  now,
	}
	if sp == ackloss.SpaceAppData {
		in.FlowControlAvailable = c.connFC.Send().Available()
	}
	if c.isServer && !c.amp.Validated() {
		in.CongestionUnlimited = true
		if w := c.amp.WritableBytes(); w < in.FlowControlAvailable {
			in.FlowControlAvailable = w
		}
	}
	return in
}

// writeInputs gathers whatever this space currently owes the peer into
// the scheduler's priority-ordered Inputs shape.
func (c *Connection) writeInputs(sp ackloss.Space, now time.Time) scheduler.Inputs {
	space := c.spaces[sp]
	in := scheduler.Inputs{
		ProbeDue:      c.pendingProbe[sp],
		AckDue:        space.acks.HasAckEliciting(),
		HasCryptoData: space.out.pending() > 0 || len(c.hs.PendingCryptoBytes(spaceLevel(sp))) > 0,
	}
	if sp != ackloss.SpaceAppData {
		return in
	}

	in.HasResetPending = len(c.streams.PendingResets()) > 0
	in.HasBlocked = c.connFC.Send().ShouldSendBlocked()
	in.HasStreamData = len(c.streams.Writable()) > 0
	in.PathChallengeDue = c.pendingPathResponse != nil || c.pendingChallenge != nil
	if c.isServer && c.confirmed && !c.handshakeDoneSent {
		in.PingRequested = true // HANDSHAKE_DONE piggybacks on whatever reason is already due; see buildFrames
	}
	return in
}

// buildFrames assembles one packet's worth of frames in priority order,
// measuring each candidate's actual encoded length against avail (the
// remaining payload budget) before committing it, rather than estimating
// sizes analytically.
func (c *Connection) buildFrames(sp ackloss.Space, now time.Time, avail int) ([]frame.Frame, []ackloss.SentFrame) {
	space := c.spaces[sp]
	level := spaceLevel(sp)

	var frames []frame.Frame
	var sentFrames []ackloss.SentFrame
	used := 0

	tryAdd := func(f frame.Frame, sf *ackloss.SentFrame) bool {
		enc, err := frame.Serialize(nil, f)
		if err != nil {
			return false
		}
		if used+len(enc) > avail {
			return false
		}
		used += len(enc)
		frames = append(frames, f)
		if sf != nil {
			sentFrames = append(sentFrames, *sf)
		}
		return true
	}

	if c.pendingProbe[sp] {
		tryAdd(frame.Ping(), &ackloss.SentFrame{Kind: frame.KindPing})
	}

	if ranges := space.acks.BuildRanges(); len(ranges) > 0 {
		largest, _ := space.acks.Largest()
		af := &frame.AckFrame{LargestAcked: largest, Ranges: ranges}
		sf := &ackloss.SentFrame{Kind: frame.KindAck, AckFrameLargest: largest}
		tryAdd(frame.Frame{Kind: frame.KindAck, Ack: af}, sf)
	}

	if pending := c.hs.PendingCryptoBytes(level); len(pending) > 0 {
		space.out.write(pending)
	}
	if space.out.pending() > 0 {
		maxChunk := avail - used - 16 // varint/header safety margin before the exact measurement below
		if maxChunk > 0 {
			data, off := space.out.drain(maxChunk)
			if len(data) > 0 {
				cf := &frame.CryptoFrame{Offset: off, Data: data}
				sf := &ackloss.SentFrame{Kind: frame.KindCrypto, Offset: off, Length: uint64(len(data))}
				if !tryAdd(frame.Frame{Kind: frame.KindCrypto, Crypto: cf}, sf) {
					// didn't fit after all; put the bytes back so they aren't lost
					space.out.mu.Lock()
					space.out.sentOff = off
					space.out.mu.Unlock()
				}
			}
		}
	}

	if sp != ackloss.SpaceAppData {
		return frames, sentFrames
	}

	if c.isServer && c.confirmed && !c.handshakeDoneSent {
		if tryAdd(frame.HandshakeDone(), &ackloss.SentFrame{Kind: frame.KindHandshakeDone}) {
			c.handshakeDoneSent = true
		}
	}

	for _, ss := range c.streams.PendingResets() {
		rs := &frame.ResetStreamFrame{
			StreamID:             ss.ID(),
			ApplicationErrorCode: ss.ResetErrorCode(),
			FinalSize:            ss.WriteOffset(),
		}
		kind := frame.KindResetStream
		if rel := ss.ReliableSize(); rel != nil {
			kind = frame.KindResetStreamAt
			rs.ReliableSize = rel
		}
		sf := &ackloss.SentFrame{Kind: kind, StreamID: ss.ID()}
		if tryAdd(frame.Frame{Kind: kind, ResetStream: rs}, sf) {
			ss.MarkResetFrameSent()
		}
	}

	if newLimit, due := c.connFC.Receive().MaybeUpdateLimit(); due {
		tryAdd(frame.Frame{Kind: frame.KindMaxData, MaxData: &frame.MaxDataFrame{MaximumData: newLimit}},
			&ackloss.SentFrame{Kind: frame.KindMaxData})
	}

	if c.connFC.Send().ShouldSendBlocked() {
		db := &frame.DataBlockedFrame{MaximumData: c.connFC.Send().PeerLimit()}
		if tryAdd(frame.Frame{Kind: frame.KindDataBlocked, DataBlocked: db}, nil) {
			c.connFC.Send().MarkBlockedSent()
		}
	}

	if c.pendingPathResponse != nil {
		data := *c.pendingPathResponse
		pr := &frame.PathResponseFrame{Data: data}
		if tryAdd(frame.Frame{Kind: frame.KindPathResponse, PathResponse: pr}, nil) {
			c.pendingPathResponse = nil
		}
	}
	if c.pendingChallenge != nil {
		data := *c.pendingChallenge
		pc := &frame.PathChallengeFrame{Data: data}
		if tryAdd(frame.Frame{Kind: frame.KindPathChallenge, PathChallenge: pc}, nil) {
			c.pendingChallenge = nil
		}
	}

	for _, ss := range c.streams.Writable() {
		remaining := avail - used
		if remaining <= streamFrameOverhead {
			break
		}
		data, off, fin := ss.DrainForFrame(remaining - streamFrameOverhead)
		if len(data) == 0 && !fin {
			continue
		}
		sfr := &frame.StreamFrame{StreamID: ss.ID(), Offset: off, Data: data, Fin: fin}
		sf := &ackloss.SentFrame{Kind: frame.KindStream, StreamID: ss.ID(), Offset: off, Length: uint64(len(data)), Fin: fin}
		if !tryAdd(frame.Frame{Kind: frame.KindStream, Stream: sfr}, sf) {
			break
		}
	}

	return frames, sentFrames
}

// sendPacket assembles, encrypts and transmits one packet built from
// frames, bookkeeping it into the tracker, congestion controller, pacer
// and amplification limiter, and returns the number of bytes written on
// the wire.
func (c *Connection) sendPacket(sp ackloss.Space, keys packet.Keys, frames []frame.Frame, sentFrames []ackloss.SentFrame, now time.Time) (int, error) {
	space := c.spaces[sp]
	ordered := scheduler.OrderFrames(frames)

	var body []byte
	for _, f := range ordered {
		enc, err := frame.Serialize(body, f)
		if err != nil {
			return 0, err
		}
		body = enc
	}

	pn := space.tracker.ReserveNext(c.settings.SkipPacketNumberDenominator)
	largestAcked, _ := space.tracker.LargestAcked()

	hdr := packet.Header{PacketNumber: pn}
	switch sp {
	case ackloss.SpaceInitial:
		hdr.IsLong = true
		hdr.Type = packet.TypeInitial
		hdr.Version = 1
		hdr.DestCID = packet.ConnectionID(c.currentPeerCID())
		hdr.SrcCID = packet.ConnectionID(c.localCID)
		if !c.isServer {
			hdr.Token = c.retryToken
		}
	case ackloss.SpaceHandshake:
		hdr.IsLong = true
		hdr.Type = packet.TypeHandshake
		hdr.Version = 1
		hdr.DestCID = packet.ConnectionID(c.currentPeerCID())
		hdr.SrcCID = packet.ConnectionID(c.localCID)
	default:
		hdr.IsLong = false
		hdr.DestCID = packet.ConnectionID(c.currentPeerCID())
		hdr.KeyPhase = c.keys.Phase()
	}

	raw, err := packet.SerializePacket(hdr, body, largestAcked, keys)
	if err != nil {
		return 0, err
	}
	raw = scheduler.PadClientInitial(raw, !c.isServer, sp == ackloss.SpaceInitial)

	n, err := c.socket.WriteTo(raw, c.peer)
	if err != nil {
		if isTransientWriteError(err) {
			return 0, errSocketBackpressure
		}
		return 0, err
	}

	ackEliciting := false
	for _, f := range ordered {
		if f.Kind.IsAckEliciting() {
			ackEliciting = true
			break
		}
	}
	if ackEliciting {
		space.tracker.SentPacket(pn, now, sentFrames, n, nil)
		c.congestion.OnPacketSent(now, n, true)
		c.armIdleTimer()
	}
	c.pacer.OnPacketSent(now, n)
	c.amp.OnBytesSent(uint64(n))

	if sp == ackloss.SpaceAppData {
		if c.awaitingFirstPhasePacket {
			c.keys.BeginPendingVerification(pn)
			c.awaitingFirstPhasePacket = false
		}
		c.sentSinceKeyUpdate++
		c.maybeInitiateKeyUpdate()
	}

	c.lastSendTime = now
	return n, nil
}

// maybeInitiateKeyUpdate starts a locally-initiated key update once the
// configured number of 1-RTT packets have been sent in the current phase.
// The update is applied immediately once armed rather than deferred until
// every packet of the prior phase is acknowledged, a simplification
// accepted for this implementation.
func (c *Connection) maybeInitiateKeyUpdate() {
	if c.settings.KeyUpdateEveryNPackets == 0 {
		return
	}
	if _, pending := c.keys.PendingVerification(); pending {
		return
	}
	if c.sentSinceKeyUpdate < c.settings.KeyUpdateEveryNPackets {
		return
	}
	read, write, err := c.hs.DeriveNextPhase()
	if err != nil {
		return
	}
	c.keys.ArmNextPhase(read, write)
	if err := c.keys.UpdateKeys(); err != nil {
		return
	}
	c.sentSinceKeyUpdate = 0
	c.awaitingFirstPhasePacket = true
}

// armExcessWriteTimerLocked parks the remainder of a write pass that hit
// socket backpressure, retrying the whole space loop after a short delay
// instead of dropping the unsent batch or treating EAGAIN as fatal.
func (c *Connection) armExcessWriteTimerLocked(now time.Time) {
	if c.loop.Armed(qtimer.KindExcessWrite) {
		return
	}
	c.loop.ScheduleAfter(qtimer.KindExcessWrite, excessWriteRetryInterval, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		_ = c.writePacketsLocked(time.Now())
	})
}

// armLossDetectionTimerLocked arms qtimer.KindLossDetection for the
// earliest PTO across every space with outstanding packets. Both this
// PTO-driven rearm and the ACK-triggered time-threshold rearm in
// runLossDetection target the same timer slot; whichever fires soonest
// wins the race to reschedule it, which matches RFC 9002's single
// combined loss-detection timer closely enough for this implementation.
func (c *Connection) armLossDetectionTimerLocked(now time.Time) {
	var earliest time.Duration = -1
	for _, sp := range []ackloss.Space{ackloss.SpaceInitial, ackloss.SpaceHandshake, ackloss.SpaceAppData} {
		space := c.spaces[sp]
		if space == nil || space.discarded || space.tracker.OutstandingCount() == 0 {
			continue
		}
		pto := space.tracker.ComputePTO(c.peerMaxAckDelay())
		if earliest < 0 || pto < earliest {
			earliest = pto
		}
	}
	if earliest < 0 {
		c.loop.Cancel(qtimer.KindLossDetection)
		return
	}
	c.loop.ScheduleAfter(qtimer.KindLossDetection, earliest, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.onLossDetectionTimeoutLocked(time.Now())
	})
}

// onLossDetectionTimeoutLocked fires a PTO for every space that still has
// packets outstanding, forcing the next write pass to probe, then runs
// that pass immediately.
func (c *Connection) onLossDetectionTimeoutLocked(now time.Time) {
	any := false
	for _, sp := range []ackloss.Space{ackloss.SpaceInitial, ackloss.SpaceHandshake, ackloss.SpaceAppData} {
		space := c.spaces[sp]
		if space == nil || space.discarded || space.tracker.OutstandingCount() == 0 {
			continue
		}
		space.tracker.OnPTOFired()
		c.pendingProbe[sp] = true
		any = true
	}
	if !any {
		return
	}
	_ = c.writePacketsLocked(now)
}
