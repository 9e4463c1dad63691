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

import "sync"

// pathAmplificationFactor bounds how many bytes a still-unvalidated path
// may send for every byte received on it, mirroring the 3x cap the
// scheduler enforces on the unvalidated primary path (spec §4.4) but
// scoped per migrating path instead of per connection.
const pathAmplificationFactor = 3

// ValidationLimiter gates how many bytes may be sent on a path that has
// an outstanding PATH_CHALLENGE but has not yet seen the matching
// PATH_RESPONSE. It is discarded once the path validates.
type ValidationLimiter struct {
	mu       sync.Mutex
	received uint64
	sent     uint64
}

// NewValidationLimiter returns a limiter starting at zero bytes received.
func NewValidationLimiter() *ValidationLimiter {
	return &ValidationLimiter{}
}

// OnBytesReceived records bytes received on the pending path, growing the
// send allowance.
func (l *ValidationLimiter) OnBytesReceived(n uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.received += n
}

// OnBytesSent records bytes sent on the pending path.
func (l *ValidationLimiter) OnBytesSent(n uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sent += n
}

// WritableBytes returns how many more bytes may be sent on the pending
// path before the 3x cap is reached.
func (l *ValidationLimiter) WritableBytes() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	limit := l.received * pathAmplificationFactor
	if l.sent >= limit {
		return 0
	}
	return limit - l.sent
}
