// File: internal/queue/mpmc.go
// Package queue: MPMC bounded queue used by the worker-pool IPC layer and
// the WebSocket response bridge where more than one thread produces or
// consumes. Grounded on the teacher's core/concurrency/lock_free_queue.go
// (per-cell sequence number + CAS claim) and
// _examples/original_source/src/cpp/core/lockfree_queue.h's AeronMPMCQueue.
// Author: momentics <momentics@gmail.com>
// License: MIT

package queue

import "sync/atomic"

type mpmcCell[T any] struct {
	sequence atomic.Uint64
	data     T
	_        [cacheLinePad - 8]byte
}

// MPMC is a multi-producer/multi-consumer bounded queue. Every successful
// push has exactly one successful pop (spec.md invariant 3); position
// advance is a relaxed CAS, payload publish uses the sequence number as the
// release point.
type MPMC[T any] struct {
	enqPos atomic.Uint64
	_      padding
	deqPos atomic.Uint64
	_      padding

	mask  uint64
	limit uint64 // usable capacity; below len(cells) only for capacity 1
	cells []mpmcCell[T]
}

// NewMPMC allocates an MPMC queue with the given minimum capacity.
func NewMPMC[T any](capacity int) *MPMC[T] {
	limit := 1
	for limit < capacity {
		limit <<= 1
	}
	// The sequence scheme needs at least two cells; a capacity of 1 keeps
	// two cells and enforces the limit in TryPush.
	size := limit
	if size < 2 {
		size = 2
	}
	q := &MPMC[T]{
		mask:  uint64(size - 1),
		limit: uint64(limit),
		cells: make([]mpmcCell[T], size),
	}
	for i := range q.cells {
		q.cells[i].sequence.Store(uint64(i))
	}
	return q
}

// TryPush claims the next cell and publishes v. Returns false if full.
func (q *MPMC[T]) TryPush(v T) bool {
	pos := q.enqPos.Load()
	for {
		cell := &q.cells[pos&q.mask]
		seq := cell.sequence.Load()
		diff := int64(seq) - int64(pos)

		switch {
		case diff == 0:
			if int64(pos-q.deqPos.Load()) >= int64(q.limit) {
				return false
			}
			if q.enqPos.CompareAndSwap(pos, pos+1) {
				cell.data = v
				cell.sequence.Store(pos + 1)
				return true
			}
		case diff < 0:
			return false
		default:
			pos = q.enqPos.Load()
		}
	}
}

// TryPop claims the next ready cell and returns its value. Returns false if empty.
func (q *MPMC[T]) TryPop() (v T, ok bool) {
	pos := q.deqPos.Load()
	for {
		cell := &q.cells[pos&q.mask]
		seq := cell.sequence.Load()
		diff := int64(seq) - int64(pos+1)

		switch {
		case diff == 0:
			if q.deqPos.CompareAndSwap(pos, pos+1) {
				v = cell.data
				var zero T
				cell.data = zero
				cell.sequence.Store(pos + q.mask + 1)
				return v, true
			}
		case diff < 0:
			return v, false
		default:
			pos = q.deqPos.Load()
		}
	}
}

// Size returns an approximate occupancy, for reporting only.
func (q *MPMC[T]) Size() int {
	return int(q.enqPos.Load() - q.deqPos.Load())
}

// Cap returns the fixed power-of-two capacity.
func (q *MPMC[T]) Cap() int {
	return int(q.limit)
}
