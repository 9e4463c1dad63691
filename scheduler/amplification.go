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

package scheduler

import "sync"

// amplificationFactor is RFC 9000 §8.1's limit on how many bytes a
// server may send before the client's address is validated: at most
// three times what that client has sent it.
const amplificationFactor = 3

// AmplificationLimiter enforces the 3x cap on an unvalidated server
// path. It is a no-op once the path is marked validated (by a
// successfully processed Handshake-level packet, or a PATH_RESPONSE
// matching an issued PATH_CHALLENGE).
type AmplificationLimiter struct {
	mu             sync.Mutex
	validated      bool
	bytesReceived  uint64
	bytesSent      uint64
}

// NewAmplificationLimiter returns a limiter for a path that starts
// unvalidated.
func NewAmplificationLimiter() *AmplificationLimiter {
	return &AmplificationLimiter{}
}

// OnBytesReceived records bytes received from the client on this path.
func (a *AmplificationLimiter) OnBytesReceived(n uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.bytesReceived += n
}

// OnBytesSent records bytes sent to the client on this path.
func (a *AmplificationLimiter) OnBytesSent(n uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.bytesSent += n
}

// MarkValidated lifts the cap permanently for this path.
func (a *AmplificationLimiter) MarkValidated() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.validated = true
}

// Validated reports whether the cap has been lifted.
func (a *AmplificationLimiter) Validated() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.validated
}

// WritableBytes returns how many more bytes may be sent before hitting
// the cap. A validated path returns an unbounded budget by reporting the
// maximum uint64 value; callers should treat that sentinel as "no
// amplification constraint" rather than a literal byte count.
func (a *AmplificationLimiter) WritableBytes() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.validated {
		return ^uint64(0)
	}
	limit := a.bytesReceived * amplificationFactor
	if a.bytesSent >= limit {
		return 0
	}
	return limit - a.bytesSent
}
