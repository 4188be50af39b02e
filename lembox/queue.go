// Copyright 2025 The DC2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lembox

import (
	"sync"
	"time"
)

// queue is a bounded FIFO of samples shared between the acquisition
// loop (single producer) and the batched writer (single consumer).
//
// Both enqueue and dequeue are non-blocking and total: they always
// return a definite outcome and never wait under the lock. The lock
// is held only for the O(1) slot and counter updates, never across
// formatting or I/O. Backpressure policy belongs to the caller; the
// notEmpty/notFull channels carry edge-triggered signals so a caller
// that chooses to wait can do so without spinning.
type queue struct {
	mu   sync.Mutex
	buf  []Sample
	head int
	tail int
	n    int

	notEmpty chan struct{} // signaled on empty -> non-empty
	notFull  chan struct{} // signaled on full -> non-full
}

func newQueue(depth int) *queue {
	return &queue{
		buf:      make([]Sample, depth),
		notEmpty: make(chan struct{}, 1),
		notFull:  make(chan struct{}, 1),
	}
}

func (q *queue) cap() int { return len(q.buf) }

func (q *queue) len() int {
	q.mu.Lock()
	n := q.n
	q.mu.Unlock()
	return n
}

// enqueue copies s into the queue. It reports false, without waiting,
// when the queue is full.
func (q *queue) enqueue(s Sample) bool {
	q.mu.Lock()
	if q.n == len(q.buf) {
		q.mu.Unlock()
		return false
	}
	q.buf[q.tail] = s
	q.tail = (q.tail + 1) % len(q.buf)
	q.n++
	first := q.n == 1
	q.mu.Unlock()

	if first {
		wakeup(q.notEmpty)
	}
	return true
}

// dequeue copies out the oldest sample. It reports false, without
// waiting, when the queue is empty.
func (q *queue) dequeue() (Sample, bool) {
	q.mu.Lock()
	if q.n == 0 {
		q.mu.Unlock()
		return Sample{}, false
	}
	s := q.buf[q.head]
	q.head = (q.head + 1) % len(q.buf)
	q.n--
	wasFull := q.n == len(q.buf)-1
	q.mu.Unlock()

	if wasFull {
		wakeup(q.notFull)
	}
	return s, true
}

// waitNotEmpty waits up to d for the queue to become non-empty.
func (q *queue) waitNotEmpty(d time.Duration) bool {
	if q.len() > 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-q.notEmpty:
		return true
	case <-timer.C:
		return q.len() > 0
	}
}

// waitNotFull waits up to d for the queue to have room.
func (q *queue) waitNotFull(d time.Duration) bool {
	if q.len() < q.cap() {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-q.notFull:
		return true
	case <-timer.C:
		return q.len() < q.cap()
	}
}

func wakeup(c chan struct{}) {
	select {
	case c <- struct{}{}:
	default:
	}
}
