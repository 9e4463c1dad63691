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

package qlog

import "sync"

// EventKind is a single bit naming one lifecycle event a connection can
// report. Packed as a bitmask so Bus.Enabled is one integer AND, letting
// the hot packet-processing path skip fan-out entirely when nothing has
// subscribed to a given kind (DESIGN NOTES, "dynamic dispatch over
// observer interfaces").
type EventKind uint32

const (
	EventPacketSent EventKind = 1 << iota
	EventPacketReceived
	EventPacketLost
	EventPacketAcked
	EventByteEvent
	// EventPacketsProcessed and EventAcksProcessed are batch-granularity
	// callbacks (end of one datagram's processing, not per packet),
	// supplemented from original_source's QuicTransportBaseLite.cpp
	// observer batch hooks (spec_full §4).
	EventPacketsProcessed
	EventAcksProcessed
	EventPathValidated
	EventKeyUpdate
	EventConnectionClosed
	EventRateLimited
)

// Handler receives one event. data's concrete type is documented per
// EventKind by the caller that fires it; the bus itself is payload-agnostic.
type Handler func(kind EventKind, data interface{})

type subscription struct {
	mask EventKind
	fn   Handler
}

// Bus is the opt-in observer fan-out. A Bus with zero subscribers costs
// one atomic-free integer comparison per Fire call.
type Bus struct {
	mu   sync.RWMutex
	subs []*subscription
	mask EventKind
}

// NewBus returns an empty bus (Enabled is false for every kind until a
// Subscribe call).
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers fn for every kind set in mask, returning a cancel
// function that removes it and recomputes the precomputed mask.
func (b *Bus) Subscribe(mask EventKind, fn Handler) (cancel func()) {
	b.mu.Lock()
	s := &subscription{mask: mask, fn: fn}
	b.subs = append(b.subs, s)
	b.recomputeLocked()
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		for i, sub := range b.subs {
			if sub == s {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				break
			}
		}
		b.recomputeLocked()
		b.mu.Unlock()
	}
}

func (b *Bus) recomputeLocked() {
	var m EventKind
	for _, s := range b.subs {
		m |= s.mask
	}
	b.mask = m
}

// Enabled reports whether any subscriber cares about kind, without
// taking a lock on the hot path beyond the mask word itself.
func (b *Bus) Enabled(kind EventKind) bool {
	return b.mask&kind != 0
}

// Fire dispatches data to every subscriber whose mask includes kind. A
// no-op (beyond the Enabled check) when nothing has subscribed.
func (b *Bus) Fire(kind EventKind, data interface{}) {
	if !b.Enabled(kind) {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs {
		if s.mask&kind != 0 {
			s.fn(kind, data)
		}
	}
}
