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
	"time"

	"github.com/nabbar/quicgo/ackloss"
	"github.com/nabbar/quicgo/frame"
	"github.com/nabbar/quicgo/packet"
	"github.com/nabbar/quicgo/qcrypto"
	"github.com/nabbar/quicgo/qerr"
	"github.com/nabbar/quicgo/qlog"
	"github.com/nabbar/quicgo/qtimer"
	"github.com/nabbar/quicgo/varint"
)

func spaceForLevel(level qcrypto.Level) ackloss.Space {
	switch level {
	case qcrypto.Initial:
		return ackloss.SpaceInitial
	case qcrypto.Handshake:
		return ackloss.SpaceHandshake
	default:
		return ackloss.SpaceAppData
	}
}

// HandleDatagram is the entire receive path: split the datagram into its
// coalesced packets, decrypt and reassemble each, dispatch every frame,
// and re-arm the idle timer once something was actually processed.
func (c *Connection) HandleDatagram(raw []byte, from netip.AddrPort, now time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closeState == StateClosed {
		return nil
	}
	c.amp.OnBytesReceived(uint64(len(raw)))

	src := keyringSource{keys: c.keys}
	results := packet.Split(raw, src, len(c.localCID))

	processed := false
	for _, res := range results {
		switch res.Kind {
		case packet.RegularPacket:
			if err := c.handleRegularPacket(res, now); err != nil {
				return err
			}
			processed = true
		case packet.CipherUnavailable:
			c.bus.Fire(qlog.EventPacketReceived, res)
		case packet.Retry:
			c.handleRetryPacket(res)
		case packet.VersionNegotiation, packet.StatelessReset, packet.CodecError, packet.Nothing:
			c.bus.Fire(qlog.EventPacketReceived, res)
		}
	}

	if processed {
		c.lastRecvTime = now
		if from != c.peer {
			if err := c.handlePeerAddressChange(now, from); err != nil {
				c.log.Entry(qlog.LevelWarn, "migration rejected").Field("err", err.Error()).Log()
			}
		}
		c.drainInstalledKeys()
		c.armIdleTimer()
	}
	c.bus.Fire(qlog.EventPacketsProcessed, len(results))
	return nil
}

// handleRegularPacket decrypts to frames (already done by packet.Parse)
// and dispatches them, after reconstructing the full packet number and
// rejecting duplicates.
func (c *Connection) handleRegularPacket(res packet.CodecResult, now time.Time) error {
	sp := spaceForLevel(res.Header.Level())
	space := c.spaces[sp]
	if space == nil || space.discarded {
		return nil
	}

	largest, largestAt := space.acks.Largest()
	if c.isServer && res.Header.IsLong && res.Header.Type == packet.TypeInitial &&
		len(res.Header.DestCID) < 8 && largestAt.IsZero() {
		return qerr.ProtocolViolation("first Initial carried a destination connection ID shorter than 8 bytes", nil)
	}
	expected := largest + 1
	full := varint.DecodePacketNumber(res.Header.PacketNumber, res.Header.PacketNumberLength, expected)

	frames, err := frame.ParseAll(res.Payload)
	if err != nil {
		return qerr.FrameEncodingError("malformed frame in decrypted payload", err)
	}
	if len(frames) == 0 {
		return qerr.ProtocolViolation("packet carried no frames", nil)
	}

	ackEliciting := false
	for _, f := range frames {
		if f.Kind.IsAckEliciting() {
			ackEliciting = true
		}
	}
	if !space.acks.RecordReceived(full, now, ackEliciting) {
		return nil // duplicate
	}

	c.bus.Fire(qlog.EventPacketReceived, res)
	for _, f := range frames {
		if err := c.handleFrame(sp, res.Header.KeyPhase, f, now); err != nil {
			return err
		}
	}
	return nil
}

func (c *Connection) handleRetryPacket(res packet.CodecResult) {
	if c.isServer {
		return // Retry is server-to-client only
	}
	if !c.hs.VerifyRetryIntegrityTag(res.RetryToken, res.RetryIntegrityTag, c.localCID) {
		return
	}
	c.peerCIDs = []peerCID{{cid: res.RetrySourceCID}}
	c.curPeerCID = 0
	c.retryToken = res.RetryToken
	space := c.spaces[ackloss.SpaceInitial]
	space.out.sentOff, space.out.buf, space.out.writeOff = 0, nil, 0
}

func (c *Connection) handleFrame(sp ackloss.Space, recvPhase qcrypto.Phase, f frame.Frame, now time.Time) error {
	switch f.Kind {
	case frame.KindPadding, frame.KindPing:
		return nil

	case frame.KindAck:
		return c.handleAck(sp, recvPhase, f.Ack, now)

	case frame.KindCrypto:
		level := spaceLevel(sp)
		out := c.spaces[sp].crypto.handleFrame(f.Crypto.Offset, f.Crypto.Data)
		if len(out) > 0 {
			if err := c.hs.FeedCryptoBytes(level, out); err != nil {
				return err
			}
		}
		return nil

	case frame.KindHandshakeDone:
		if c.isServer {
			return qerr.ProtocolViolation("client sent HANDSHAKE_DONE", nil)
		}
		c.confirmed = true
		return nil

	case frame.KindStream:
		return c.handleStreamFrame(f.Stream)

	case frame.KindResetStream:
		_, recv, err := c.streams.GetOrAccept(f.ResetStream.StreamID)
		if err != nil {
			return err
		}
		return recv.HandleResetStream(f.ResetStream.ApplicationErrorCode, f.ResetStream.FinalSize, f.ResetStream.ReliableSize)

	case frame.KindStopSending:
		send, _, err := c.streams.GetOrAccept(f.StopSending.StreamID)
		if err != nil {
			return err
		}
		return send.Reset(f.StopSending.ApplicationErrorCode, nil)

	case frame.KindMaxData:
		c.connFC.Send().UpdatePeerLimit(f.MaxData.MaximumData)
		return nil

	case frame.KindMaxStreamData:
		send, _, err := c.streams.GetOrAccept(f.MaxStreamData.StreamID)
		if err != nil {
			return err
		}
		if send != nil {
			send.UpdatePeerSendLimit(f.MaxStreamData.MaximumStreamData)
		}
		return nil

	case frame.KindMaxStreams:
		return nil // not applied: the stream manager's peer limits come only from SetLimits, so opening keeps checking the initial limit

	case frame.KindDataBlocked, frame.KindStreamDataBlocked, frame.KindStreamsBlocked:
		c.log.Entry(qlog.LevelDebug, "peer reported blocked").Log()
		return nil

	case frame.KindNewConnectionID:
		c.peerCIDs = append(c.peerCIDs, peerCID{
			seq:      f.NewConnectionID.SequenceNumber,
			cid:      f.NewConnectionID.ConnectionID,
			resetTok: f.NewConnectionID.StatelessResetToken,
		})
		return nil

	case frame.KindRetireConnectionID:
		for i, p := range c.peerCIDs {
			if p.seq == f.RetireConnectionID.SequenceNumber {
				c.peerCIDs = append(c.peerCIDs[:i], c.peerCIDs[i+1:]...)
				if c.curPeerCID >= len(c.peerCIDs) {
					c.curPeerCID = 0
				}
				break
			}
		}
		return nil

	case frame.KindPathChallenge:
		data := f.PathChallenge.Data
		c.pendingPathResponse = &data
		return nil

	case frame.KindPathResponse:
		if p, ok := c.paths.HandleResponse(f.PathResponse.Data); ok {
			c.log.Entry(qlog.LevelInfo, "path validated").Field("path", p.ID).Log()
			c.bus.Fire(qlog.EventPathValidated, p.ID)
		}
		return nil

	case frame.KindNewToken:
		c.log.Entry(qlog.LevelDebug, "received NEW_TOKEN").Log()
		return nil

	case frame.KindConnectionCloseTransport:
		c.beginDraining(qerr.Transport(qerr.Code(f.ConnectionCloseTransport.ErrorCode), f.ConnectionCloseTransport.ReasonPhrase, nil), now)
		return nil

	case frame.KindConnectionCloseApplication:
		c.beginDraining(qerr.Application(f.ConnectionCloseApplication.ErrorCode, f.ConnectionCloseApplication.ReasonPhrase, nil), now)
		return nil

	case frame.KindDatagram:
		c.bus.Fire(qlog.EventByteEvent, f.Datagram.Data)
		return nil

	case frame.KindAckFrequency:
		return nil // TODO: honor peer-requested ack-eliciting threshold once the write path paces ACKs by count, not just by delay.

	case frame.KindKnob:
		if !c.settings.Local.KnobFramesSupported {
			return qerr.ErrKnobFrameUnsupported()
		}
		return nil

	default:
		return nil
	}
}

func (c *Connection) handleStreamFrame(sf *frame.StreamFrame) error {
	_, recv, err := c.streams.GetOrAccept(sf.StreamID)
	if err != nil {
		return err
	}
	if recv == nil {
		return qerr.StreamStateError("STREAM frame for a send-only unidirectional stream", nil)
	}
	return recv.HandleStreamFrame(sf.Offset, sf.Data, sf.Fin)
}

func (c *Connection) handleAck(sp ackloss.Space, recvPhase qcrypto.Phase, af *frame.AckFrame, now time.Time) error {
	if sp == ackloss.SpaceAppData && !c.keys.CheckAckPhase(recvPhase, af.LargestAcked) {
		return qerr.CryptoErrorf(0, "Packet with key update was acked in the wrong phase", nil)
	}

	exponent := c.settings.Local.AckDelayExponent
	if c.hasPeerParams {
		exponent = c.peerParams.AckDelayExponent
	}
	ackDelay := time.Duration(af.AckDelay<<exponent) * time.Microsecond

	space := c.spaces[sp]
	visitor := ackloss.AckVisitor{
		OnStreamAcked: func(sf ackloss.SentFrame) {
			if send, _, err := c.streams.GetOrAccept(sf.StreamID); err == nil && send != nil {
				send.OnAcked(sf.Offset, sf.Length)
			}
		},
		OnCryptoAcked: func(sf ackloss.SentFrame) {},
		OnResetAcked: func(sf ackloss.SentFrame) {
			if send, _, err := c.streams.GetOrAccept(sf.StreamID); err == nil && send != nil {
				send.OnResetAcked()
			}
		},
		OnWindowUpdateAcked: func(sf ackloss.SentFrame) {},
		OnAckFrameAcked: func(largestAckedByPeer uint64) {
			space.acks.PurgeUpTo(largestAckedByPeer)
		},
		OnHandshakeDoneAcked: func() {},
		OnPingAcked:          func() {},
	}

	acked, sample, err := space.tracker.ProcessAck(*af, now, ackDelay, visitor)
	if err != nil {
		return err
	}
	for _, pkt := range acked {
		c.congestion.OnPacketAcked(pkt.SentTime, pkt.InFlightSize)
	}
	if sample != nil {
		if rate := pacingRate(c.congestion.CongestionWindow(), space.tracker.RTT().SmoothedRTT()); rate > 0 {
			c.pacer.SetRate(rate)
		}
	}

	lossVisitor := ackloss.LossVisitor{
		OnStreamLost: func(sf ackloss.SentFrame) {
			if send, _, err := c.streams.GetOrAccept(sf.StreamID); err == nil && send != nil {
				send.MarkLost(sf.Offset, sf.Length)
			}
		},
		OnCryptoLost: func(sf ackloss.SentFrame) {
			out := c.spaces[sp].out
			out.mu.Lock()
			if sf.Offset < out.sentOff {
				out.sentOff = sf.Offset
			}
			out.mu.Unlock()
		},
		OnWindowUpdateLost: func(sf ackloss.SentFrame) {},
		OnSimpleFrameLost:  func(kind frame.Kind) {},
	}
	lost, nextLoss := space.tracker.DetectLosses(now, lossVisitor)
	for _, pkt := range lost {
		c.congestion.OnPacketLost(pkt.SentTime, pkt.InFlightSize)
		c.bus.Fire(qlog.EventPacketLost, pkt)
	}
	if !nextLoss.IsZero() {
		c.loop.ScheduleAfter(qtimer.KindLossDetection, nextLoss.Sub(now), func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.runLossDetection(sp, time.Now())
		})
	}
	c.bus.Fire(qlog.EventAcksProcessed, acked)
	return nil
}

func pacingRate(cwnd uint64, srtt time.Duration) float64 {
	if srtt <= 0 {
		return 0
	}
	return float64(cwnd) / srtt.Seconds()
}

func (c *Connection) runLossDetection(sp ackloss.Space, now time.Time) {
	space := c.spaces[sp]
	lost, next := space.tracker.DetectLosses(now, ackloss.LossVisitor{})
	for _, pkt := range lost {
		c.congestion.OnPacketLost(pkt.SentTime, pkt.InFlightSize)
	}
	if !next.IsZero() {
		c.loop.ScheduleAfter(qtimer.KindLossDetection, next.Sub(now), func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.runLossDetection(sp, time.Now())
		})
	}
}

func (c *Connection) armIdleTimer() {
	c.loop.ScheduleAfter(qtimer.KindIdle, c.settings.IdleTimeout, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.closeState = StateClosed
		c.closeErr = qerr.ErrIdleTimeout()
	})
}

func (c *Connection) beginDraining(err *qerr.QuicError, now time.Time) {
	if c.closeState != StateOpen {
		return
	}
	c.closeState = StateDraining
	c.closeErr = err
	pto := c.spaces[ackloss.SpaceAppData].tracker.ComputePTO(c.peerMaxAckDelay())
	c.drainDeadline = now.Add(3 * pto)
	c.loop.ScheduleAfter(qtimer.KindDrain, 3*pto, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.closeState = StateClosed
	})
	c.bus.Fire(qlog.EventConnectionClosed, err)
}

func (c *Connection) peerMaxAckDelay() time.Duration {
	if c.hasPeerParams {
		return time.Duration(c.peerParams.MaxAckDelayMs) * time.Millisecond
	}
	return 25 * time.Millisecond
}
