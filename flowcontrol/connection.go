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

package flowcontrol

import "sync"

// ConnectionFlowController owns the connection-wide MAX_DATA accounting,
// plus the per-stream limits every newly opened stream is seeded with.
type ConnectionFlowController struct {
	mu sync.Mutex

	send *Window
	recv *Window

	initialMaxStreamDataBidiLocal  uint64
	initialMaxStreamDataBidiRemote uint64
	initialMaxStreamDataUni        uint64
	uniSendLimit                   uint64
}

// NewConnectionFlowController builds the connection-level controller from
// the local and peer transport parameters that carry the initial limits.
func NewConnectionFlowController(localMaxData, peerMaxData uint64) *ConnectionFlowController {
	return &ConnectionFlowController{
		send: NewSendWindow(peerMaxData),
		recv: NewReceiveWindow(localMaxData),
	}
}

// SetInitialStreamLimits records the initial_max_stream_data_* values a
// newly created stream's Window should be seeded with.
func (c *ConnectionFlowController) SetInitialStreamLimits(bidiLocal, bidiRemote, uni uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.initialMaxStreamDataBidiLocal = bidiLocal
	c.initialMaxStreamDataBidiRemote = bidiRemote
	c.initialMaxStreamDataUni = uni
	c.uniSendLimit = uni
}

// SetPeerStreamLimits re-seeds the send-side limits (RFC 9000 §18.2's
// initial_max_stream_data_bidi_remote and initial_max_stream_data_uni, as
// advertised by the peer) once the real transport parameters arrive,
// superseding the placeholder values SetInitialStreamLimits seeded a
// connection with at construction. The receive-side limits
// (initial_max_stream_data_bidi_local, ...uni) are this endpoint's own
// advertised values and never come from the peer, so they are untouched.
func (c *ConnectionFlowController) SetPeerStreamLimits(bidiRemote, uniSend uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.initialMaxStreamDataBidiRemote = bidiRemote
	c.uniSendLimit = uniSend
}

// InitialStreamSendLimit returns the peer-advertised per-stream send limit
// a stream of the given locally-initiated/bidi shape should start with.
func (c *ConnectionFlowController) InitialStreamSendLimit(bidi bool) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if bidi {
		return c.initialMaxStreamDataBidiRemote
	}
	return c.uniSendLimit
}

// InitialStreamReceiveLimit returns the local per-stream receive limit a
// newly accepted stream should start with.
func (c *ConnectionFlowController) InitialStreamReceiveLimit(bidi bool) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if bidi {
		return c.initialMaxStreamDataBidiLocal
	}
	return c.initialMaxStreamDataUni
}

// Send returns the connection-level send Window.
func (c *ConnectionFlowController) Send() *Window {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.send
}

// Receive returns the connection-level receive Window.
func (c *ConnectionFlowController) Receive() *Window {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recv
}
