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

// Package conn assembles every other package in this module into one
// QUIC connection state machine: the packet and frame codecs, the
// ack/loss tracker and congestion controller per packet-number space,
// the stream manager and flow controller, the path manager, the token
// service and the timer loop all meet here. A Connection owns exactly
// one HandshakeEngine and one Socket, both supplied by the caller, and
// drives everything else from its own single-goroutine qtimer.Loop; its
// entry points and timer callbacks additionally serialize on the
// Connection's own mutex.
package conn

import (
	"net/netip"
	"sync"
	"time"

	"github.com/nabbar/quicgo/ackloss"
	"github.com/nabbar/quicgo/congestion"
	"github.com/nabbar/quicgo/flowcontrol"
	"github.com/nabbar/quicgo/frame"
	"github.com/nabbar/quicgo/packet"
	"github.com/nabbar/quicgo/pathmgr"
	"github.com/nabbar/quicgo/qcrypto"
	"github.com/nabbar/quicgo/qerr"
	"github.com/nabbar/quicgo/qlog"
	"github.com/nabbar/quicgo/qtimer"
	"github.com/nabbar/quicgo/qtp"
	"github.com/nabbar/quicgo/scheduler"
	"github.com/nabbar/quicgo/stream"
	"github.com/nabbar/quicgo/token"
)

// CloseState is the connection-wide lifecycle state (RFC 9000 §10).
type CloseState int

const (
	StateOpen CloseState = iota
	StateDraining
	StateClosing
	StateClosed
)

// packetSpace bundles everything ack/loss tracking needs per
// packet-number space: the tracker itself and the receive-side ack
// bookkeeping that decides when an ACK frame is owed.
type packetSpace struct {
	tracker *ackloss.Tracker
	acks    *ackloss.AckState
	crypto  *cryptoRecvBuffer
	out     *cryptoSendBuffer
	discarded bool
}

// peerCID is one connection ID the peer has handed this endpoint via the
// initial handshake or a NEW_CONNECTION_ID frame.
type peerCID struct {
	seq      uint64
	cid      []byte
	resetTok [16]byte
}

// Connection is the endpoint state machine: everything one QUIC
// connection needs to turn received datagrams into delivered stream
// data and application writes into sent datagrams.
type Connection struct {
	mu sync.Mutex

	settings TransportSettings
	isServer bool

	loop *qtimer.Loop
	log  qlog.Logger
	bus  *qlog.Bus

	socket Socket
	peer   netip.AddrPort

	hs      HandshakeEngine
	keys    *qcrypto.Keyring
	confirmed bool

	spaces [3]*packetSpace // indexed by ackloss.Space

	congestion congestion.Controller
	pacer      congestion.Pacer

	connFC  *flowcontrol.ConnectionFlowController
	streams *stream.Manager

	paths *pathmgr.Manager
	amp   *scheduler.AmplificationLimiter

	tokens *token.Service

	localCID  []byte
	peerCIDs  []peerCID
	curPeerCID int

	peerParams    qtp.Parameters
	hasPeerParams bool

	closeState   CloseState
	closeErr     *qerr.QuicError
	drainDeadline time.Time

	sentSinceKeyUpdate       uint64
	awaitingFirstPhasePacket bool

	// pendingProbe, indexed by ackloss.Space, marks that the loss-detection
	// timer fired a PTO for that space and the next write pass must force
	// at least one ack-eliciting packet even if nothing else is owed.
	pendingProbe [3]bool

	lastSendTime time.Time
	lastRecvTime time.Time

	// pendingPathResponse holds the PATH_CHALLENGE data most recently
	// received and not yet answered with a PATH_RESPONSE.
	pendingPathResponse *[8]byte

	// pendingChallenge holds a PATH_CHALLENGE this endpoint owes the peer
	// (issued by handlePeerAddressChange against a pending path) and not
	// yet written.
	pendingChallenge *[8]byte

	// retryToken is the token a server's Retry packet handed this client;
	// every subsequent Initial packet on this connection echoes it back.
	retryToken []byte

	// handshakeDoneSent marks that the server's one HANDSHAKE_DONE frame
	// has already been queued, so it is never sent twice.
	handshakeDoneSent bool
}

// ConnOption configures a Connection at construction time beyond
// TransportSettings, mirroring the teacher's split between a settings
// struct and a handful of functional options for collaborators that
// aren't plain data (logger, event bus).
type ConnOption func(*Connection)

func WithLogger(l qlog.Logger) ConnOption {
	return func(c *Connection) { c.log = l }
}

func WithEventBus(b *qlog.Bus) ConnOption {
	return func(c *Connection) { c.bus = b }
}

// NewConnection builds a Connection in the Open state, seeded with its
// initial (local, peer) path already marked validated, per spec: the
// path the handshake started on needs no PATH_CHALLENGE. localCID and
// initialPeerCID are the connection IDs exchanged during the initial
// handshake flight.
func NewConnection(
	settings TransportSettings,
	hs HandshakeEngine,
	sock Socket,
	local, peer netip.AddrPort,
	localCID, initialPeerCID []byte,
	tokens *token.Service,
	opts ...ConnOption,
) *Connection {
	maxData := settings.Local.InitialMaxData

	c := &Connection{
		settings: settings,
		isServer: settings.IsServer,
		loop:     qtimer.NewLoop(nil),
		log:      qlog.NopLogger(),
		bus:      qlog.NewBus(),
		socket:   sock,
		peer:     peer,
		hs:       hs,
		keys:     qcrypto.NewKeyring(),
		congestion: congestion.NewRenoController(uint64(settings.MaxDatagramSize)),
		pacer:      congestion.NewRatePacer(settings.MaxDatagramSize),
		connFC:     flowcontrol.NewConnectionFlowController(maxData, 0),
		paths:      pathmgr.NewManager(local, peer, settings.DisableActiveMigration),
		amp:        scheduler.NewAmplificationLimiter(),
		tokens:     tokens,
		localCID:   localCID,
	}
	c.connFC.SetInitialStreamLimits(
		settings.Local.InitialMaxStreamDataBidiLocal,
		settings.Local.InitialMaxStreamDataBidiRemote,
		settings.Local.InitialMaxStreamDataUni,
	)
	c.streams = stream.NewManager(c.isServer, c.connFC)
	c.streams.SetLimits(settings.Local.InitialMaxStreamsBidi, settings.Local.InitialMaxStreamsUni, 0, 0)

	if len(initialPeerCID) > 0 {
		c.peerCIDs = append(c.peerCIDs, peerCID{cid: initialPeerCID})
	}

	for _, sp := range []ackloss.Space{ackloss.SpaceInitial, ackloss.SpaceHandshake, ackloss.SpaceAppData} {
		c.spaces[sp] = &packetSpace{
			tracker: ackloss.NewTracker(sp),
			acks:    ackloss.NewAckState(),
			crypto:  &cryptoRecvBuffer{},
			out:     &cryptoSendBuffer{},
		}
	}

	for _, opt := range opts {
		opt(c)
	}

	// A real engine derives Initial secrets from the destination CID the
	// instant it's constructed (RFC 9001 §5.2), with no datagram exchanged
	// yet. Draining once here lets that first install reach the Keyring
	// before either HandleDatagram or WritePackets runs.
	c.drainInstalledKeys()
	return c
}

// Loop returns the connection's cooperative event loop, so the caller
// can Run it on a goroutine and feed it received datagrams via
// RunInLoop(func(){ c.HandleDatagram(...) }).
func (c *Connection) Loop() *qtimer.Loop { return c.loop }

// Streams returns the stream manager backing this connection, the
// application's entry point for opening outbound streams (OpenBidi,
// OpenUni) and reaching a peer-initiated one by id (GetOrAccept), per
// spec §3's "streams are created lazily on first reference". It has its
// own internal locking independent of the connection's, matching how the
// write and read paths already reach it without holding c.mu across
// stream operations.
func (c *Connection) Streams() *stream.Manager { return c.streams }

// State returns the connection's current close-state.
func (c *Connection) State() CloseState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeState
}

// currentPeerCID returns the connection ID this endpoint currently
// addresses the peer with.
func (c *Connection) currentPeerCID() []byte {
	if c.curPeerCID < len(c.peerCIDs) {
		return c.peerCIDs[c.curPeerCID].cid
	}
	return nil
}

// spaceLevel maps a packet-number space to its encryption level; they
// are in lockstep except that 0-RTT shares the AppData space with 1-RTT.
func spaceLevel(sp ackloss.Space) qcrypto.Level {
	switch sp {
	case ackloss.SpaceInitial:
		return qcrypto.Initial
	case ackloss.SpaceHandshake:
		return qcrypto.Handshake
	default:
		return qcrypto.AppData
	}
}

// keyringSource adapts the connection's Keyring, fixed to the read
// direction, to packet.KeySource.
type keyringSource struct {
	keys *qcrypto.Keyring
}

func (k keyringSource) ReadKeys(level qcrypto.Level) (packet.Keys, bool) {
	lk, ok := k.keys.Get(level)
	if !ok || lk.Read == nil {
		return packet.Keys{}, false
	}
	return packet.Keys{AEAD: lk.Read.AEAD, HP: lk.Read.HP}, true
}

// writeKeys returns the current write-direction cipher pair for level.
// After a key update the Keyring's current AppData keys are already the
// new phase's, so no separate next-phase lookup is needed here.
func (c *Connection) writeKeys(level qcrypto.Level) (packet.Keys, bool) {
	lk, ok := c.keys.Get(level)
	if !ok || lk.Write == nil {
		return packet.Keys{}, false
	}
	return packet.Keys{AEAD: lk.Write.AEAD, HP: lk.Write.HP}, true
}

// drainInstalledKeys pulls every pending cipher install the handshake
// engine has produced since the last call and applies it to the Keyring,
// firing EventKeyUpdate for 1-RTT installs so an observer can correlate
// key phases with qlog.
func (c *Connection) drainInstalledKeys() {
	for _, in := range c.hs.Installed() {
		c.keys.Install(in.Level, in.Read, in.Write)
		if in.Level == qcrypto.AppData {
			c.bus.Fire(qlog.EventKeyUpdate, in.Level)
		}
	}
	if !c.hasPeerParams {
		if p, ok := c.hs.TransportParameters(); ok {
			c.peerParams = p
			c.hasPeerParams = true
			c.streams.SetLimits(
				c.settings.Local.InitialMaxStreamsBidi,
				c.settings.Local.InitialMaxStreamsUni,
				p.InitialMaxStreamsBidi,
				p.InitialMaxStreamsUni,
			)
			c.connFC.Send().UpdatePeerLimit(p.InitialMaxData)
			c.connFC.SetPeerStreamLimits(p.InitialMaxStreamDataBidiRemote, p.InitialMaxStreamDataUni)
			c.paths.Sweep(time.Now(), c.spaces[ackloss.SpaceAppData].tracker.RTT().SmoothedRTT())
		}
	}
}
