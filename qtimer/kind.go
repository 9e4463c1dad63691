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

// Package qtimer implements the timer ensemble of spec §4.7 (idle,
// keepalive, loss-detection, ack-delay, path-validation, drain,
// excess-write, ping) as named, idempotently-cancellable entries on one
// cooperative, single-threaded event loop: callbacks run one at a time on
// the goroutine that drives the loop. The conn package still takes its own
// Connection mutex inside its callbacks and entry points.
// The loop's timer heap follows the pattern in
// joeycumines-go-utilpkg/eventloop/loop.go (container/heap over a slice
// of pending timers), deliberately without that package's promise/JS
// scheduling machinery — only the heap-based architecture is reused.
package qtimer

// Kind names one member of the timer ensemble. Exactly one timer entry
// may be armed per Kind at a time; rescheduling is cancel-then-schedule.
type Kind int

const (
	KindIdle Kind = iota
	KindKeepalive
	KindLossDetection
	KindAckDelay
	KindPathValidation
	KindDrain
	KindExcessWrite
	KindPing
)

func (k Kind) String() string {
	switch k {
	case KindIdle:
		return "idle"
	case KindKeepalive:
		return "keepalive"
	case KindLossDetection:
		return "loss-detection"
	case KindAckDelay:
		return "ack-delay"
	case KindPathValidation:
		return "path-validation"
	case KindDrain:
		return "drain"
	case KindExcessWrite:
		return "excess-write"
	case KindPing:
		return "ping"
	default:
		return "unknown"
	}
}
