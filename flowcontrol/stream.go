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

// StreamFlowController couples a stream's own send/receive Windows to the
// connection-wide controller they must never exceed: every byte accounted
// at the stream level is also accounted at the connection level.
type StreamFlowController struct {
	conn *ConnectionFlowController

	send *Window
	recv *Window
}

// NewStreamFlowController builds a per-stream controller seeded from the
// connection controller's initial per-stream limits.
func NewStreamFlowController(conn *ConnectionFlowController, bidi bool) *StreamFlowController {
	return &StreamFlowController{
		conn: conn,
		send: NewSendWindow(conn.InitialStreamSendLimit(bidi)),
		recv: NewReceiveWindow(conn.InitialStreamReceiveLimit(bidi)),
	}
}

// Send returns the stream-level send Window.
func (s *StreamFlowController) Send() *Window { return s.send }

// Receive returns the stream-level receive Window.
func (s *StreamFlowController) Receive() *Window { return s.recv }

// SendCredit reports how many bytes may currently be sent on this stream,
// bounded by both the stream's own window and the connection's.
func (s *StreamFlowController) SendCredit() uint64 {
	streamAvail := s.send.Available()
	connAvail := s.conn.Send().Available()
	if connAvail < streamAvail {
		return connAvail
	}
	return streamAvail
}

// AddSent records n bytes sent on this stream against both the stream and
// connection send windows.
func (s *StreamFlowController) AddSent(n uint64) bool {
	streamOK := s.send.AddSent(n)
	connOK := s.conn.Send().AddSent(n)
	return streamOK && connOK
}

// AddReceived records the highest byte offset seen on this stream against
// both the stream and connection receive windows, returning a
// FLOW_CONTROL_ERROR if either limit is exceeded.
func (s *StreamFlowController) AddReceived(highestOffset uint64) error {
	if err := s.recv.AddReceived(highestOffset); err != nil {
		return err
	}
	return s.conn.Receive().AddReceived(highestOffset)
}
