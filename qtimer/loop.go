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

package qtimer

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

// Loop is the single cooperative event loop spec §5 requires: every
// timer callback and every posted microtask runs on the same goroutine,
// one at a time. The Connection it drives still serializes its own entry
// points and timer callbacks on an internal mutex.
type Loop struct {
	mu sync.Mutex

	timers  timerHeap
	byKind  map[Kind]*entry
	nextSeq uint64

	microtasks []func()

	wake   chan struct{}
	stopCh chan struct{}
	doneCh chan struct{}

	now func() time.Time
}

// NewLoop builds an unstarted Loop. now defaults to time.Now; tests may
// override it to drive the loop with a synthetic clock via RunOnce.
func NewLoop(now func() time.Time) *Loop {
	if now == nil {
		now = time.Now
	}
	return &Loop{
		byKind: make(map[Kind]*entry),
		wake:   make(chan struct{}, 1),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
		now:    now,
	}
}

func (l *Loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// RunInLoop posts fn to run on the loop goroutine at the next iteration,
// FIFO relative to other posted microtasks.
func (l *Loop) RunInLoop(fn func()) {
	l.mu.Lock()
	l.microtasks = append(l.microtasks, fn)
	l.mu.Unlock()
	l.signal()
}

// ScheduleAfter arms (kind) to fire fn after d, measured from now().
// Rescheduling an already-armed kind is cancel-then-schedule, exactly as
// spec'd: any previously armed entry for kind is dropped first.
func (l *Loop) ScheduleAfter(kind Kind, d time.Duration, fn func()) {
	l.mu.Lock()
	l.cancelLocked(kind)
	e := &entry{kind: kind, seq: l.nextSeq, at: l.now().Add(d), fn: fn}
	l.nextSeq++
	l.byKind[kind] = e
	heap.Push(&l.timers, e)
	l.mu.Unlock()
	l.signal()
}

// Cancel idempotently disarms kind. Calling it when kind is not armed is
// a no-op, matching spec's "cancellation is idempotent".
func (l *Loop) Cancel(kind Kind) {
	l.mu.Lock()
	l.cancelLocked(kind)
	l.mu.Unlock()
}

func (l *Loop) cancelLocked(kind Kind) {
	e, ok := l.byKind[kind]
	if !ok {
		return
	}
	delete(l.byKind, kind)
	if e.index >= 0 {
		heap.Remove(&l.timers, e.index)
	}
}

// Armed reports whether kind currently has a pending timer.
func (l *Loop) Armed(kind Kind) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.byKind[kind]
	return ok
}

// nextDeadline returns the earliest armed timer's fire time and whether
// any timer is armed at all.
func (l *Loop) nextDeadline() (time.Time, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.timers.Len() == 0 {
		return time.Time{}, false
	}
	return l.timers[0].at, true
}

// popDue pops and returns every timer entry due at or before now, and
// drains the microtask queue into the returned slice's tail position
// (microtasks always run after due timers within one iteration, mirroring
// a typical "timers then microtasks" loop tick).
func (l *Loop) popDue(now time.Time) []func() {
	l.mu.Lock()
	defer l.mu.Unlock()

	var due []func()
	for l.timers.Len() > 0 && !l.timers[0].at.After(now) {
		e := heap.Pop(&l.timers).(*entry)
		if cur, ok := l.byKind[e.kind]; ok && cur == e {
			delete(l.byKind, e.kind)
		}
		due = append(due, e.fn)
	}
	if len(l.microtasks) > 0 {
		due = append(due, l.microtasks...)
		l.microtasks = nil
	}
	return due
}

// RunOnce drains every timer due at now and every pending microtask,
// running each synchronously in FIFO/heap order. It is the building
// block both Run's goroutine and deterministic tests use.
func (l *Loop) RunOnce(now time.Time) {
	for _, fn := range l.popDue(now) {
		fn()
	}
}

// Run drives the loop on the calling goroutine until ctx is cancelled or
// Stop is called. Each iteration waits for either the next timer
// deadline, a wake-up from RunInLoop/ScheduleAfter/Cancel, or
// cancellation.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.doneCh)
	for {
		deadline, ok := l.nextDeadline()
		var timerC <-chan time.Time
		var t *time.Timer
		if ok {
			d := deadline.Sub(l.now())
			if d <= 0 {
				l.RunOnce(l.now())
				continue
			}
			t = time.NewTimer(d)
			timerC = t.C
		}

		select {
		case <-ctx.Done():
			if t != nil {
				t.Stop()
			}
			return
		case <-l.stopCh:
			if t != nil {
				t.Stop()
			}
			return
		case <-l.wake:
			if t != nil {
				t.Stop()
			}
			l.RunOnce(l.now())
		case <-timerC:
			l.RunOnce(l.now())
		}
	}
}

// Stop halts Run and waits for its goroutine to return.
func (l *Loop) Stop() {
	select {
	case <-l.stopCh:
	default:
		close(l.stopCh)
	}
	<-l.doneCh
}
