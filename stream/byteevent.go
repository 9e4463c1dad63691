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

	"github.com/nabbar/quicgo/qerr"
)

// byteEvent pairs a target offset with the callback to invoke once that
// offset has been fully acknowledged.
type byteEvent struct {
	offset uint64
	cb     func()
}

// ByteEventRegistry holds the offset-sorted queue of pending callbacks for
// one stream. Fire removes the callbacks that are now due and invokes them
// synchronously, in offset order, after releasing the registry's lock; a
// callback whose offset is already covered when it is registered waits for
// the next Fire.
type ByteEventRegistry struct {
	mu      sync.Mutex
	pending []byteEvent
}

// NewByteEventRegistry builds an empty registry.
func NewByteEventRegistry() *ByteEventRegistry {
	return &ByteEventRegistry{}
}

// Register arms cb to fire once offset bytes have been acknowledged.
// Registering two callbacks for the same exact offset is rejected as an
// INVALID_OPERATION: callers that need multiple notifications at one
// offset should compose a single callback themselves.
func (r *ByteEventRegistry) Register(offset uint64, cb func()) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.pending {
		if e.offset == offset {
			return qerr.ErrInvalidOperation("a callback is already registered at this offset")
		}
	}

	r.pending = append(r.pending, byteEvent{offset: offset, cb: cb})
	sort.Slice(r.pending, func(i, j int) bool { return r.pending[i].offset < r.pending[j].offset })
	return nil
}

// Fire invokes and removes every callback whose offset is now covered by
// ackedUpTo, in ascending offset order.
func (r *ByteEventRegistry) Fire(ackedUpTo uint64) {
	r.mu.Lock()
	i := 0
	for i < len(r.pending) && r.pending[i].offset <= ackedUpTo {
		i++
	}
	due := r.pending[:i]
	r.pending = r.pending[i:]
	r.mu.Unlock()

	for _, e := range due {
		e.cb()
	}
}
