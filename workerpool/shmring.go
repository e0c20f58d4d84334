// File: workerpool/shmring.go
// Legacy/secondary transport grounded on
// _examples/original_source/src/cpp/python/shared_memory_ipc.h: fixed-
// capacity slot ring (RingBufferSlot{length, data[4096]}) with head/tail
// control indices and a semaphore pair gating full/empty, used there to
// hand requests and responses between an OS process and worker processes
// over POSIX shared memory.
//
// Go has no portable, non-cgo way to map the same POSIX shm_open/mmap +
// named-semaphore primitives the original relies on, and this codebase
// avoids cgo entirely (spec.md's worker pool is required to run as plain
// goroutine workers; shared memory is explicitly a "collaborator-level
// alternative", not the primary path). This type keeps the same ring
// topology — fixed slot count, each slot capped at a maximum payload
// size, a blocking hand-off with backpressure — but realizes it with two
// internal/queue.MPMC[[]byte] rings instead of mmap'd memory and POSIX
// semaphores, so it remains usable as a same-process Transport (e.g. for
// tests, or for an in-process worker that shares no OS process boundary
// with its dispatcher) without pretending to cross a process boundary it
// cannot actually cross without cgo.
// Author: momentics <momentics@gmail.com>
// License: MIT

package workerpool

import (
	"github.com/google/uuid"

	"github.com/momentics/hioload-srv/api"
	"github.com/momentics/hioload-srv/internal/queue"
)

// maxShmSlotPayload mirrors the original's fixed 4096-byte slot capacity.
const maxShmSlotPayload = 4096

// ShmRingTransport is an in-process stand-in for the original's shared-
// memory ring IPC, implementing Transport over a pair of bounded MPMC
// byte-slice queues (one per direction). Two endpoints constructed back
// to back via NewShmRingPair behave like a pipe.
type ShmRingTransport struct {
	PairID  uuid.UUID
	readQ, writeQ *queue.MPMC[[]byte]
	readBuf       []byte
	closed        bool
}

// NewShmRingPair returns two linked endpoints: a's writes are b's reads
// and vice versa, each ring holding up to slotCount outstanding messages.
// Both endpoints share one PairID, a namespace tag distinguishing one
// ring pair's diagnostics from another when several shared-memory-ring
// workers run in the same process (there being no OS shared-memory
// segment name to key log lines off of, unlike the original's
// shm_open path).
func NewShmRingPair(slotCount int) (a, b *ShmRingTransport) {
	pairID := uuid.New()
	q1 := queue.NewMPMC[[]byte](slotCount)
	q2 := queue.NewMPMC[[]byte](slotCount)
	a = &ShmRingTransport{PairID: pairID, readQ: q1, writeQ: q2}
	b = &ShmRingTransport{PairID: pairID, readQ: q2, writeQ: q1}
	return a, b
}

// Write enqueues p as a single ring slot. Oversize payloads are rejected
// rather than fragmented, matching the original's fixed slot size.
func (s *ShmRingTransport) Write(p []byte) (int, error) {
	if s.closed {
		return 0, api.ErrConnClosed
	}
	if len(p) > maxShmSlotPayload {
		return 0, api.NewError(api.ErrCodeResourceExhausted, "payload exceeds shared-memory ring slot size")
	}
	cp := make([]byte, len(p))
	copy(cp, p)
	for !s.writeQ.TryPush(cp) {
		if s.closed {
			return 0, api.ErrConnClosed
		}
		// Ring full: original blocks on a write semaphore; here the loop
		// retries until a slot frees, since there is no OS-level wait
		// primitive for this in-process ring.
	}
	return len(p), nil
}

// Read drains ring slots into p, buffering any overflow for the next
// call, analogous to the original's read_request draining one slot at a
// time into the caller's buffer.
func (s *ShmRingTransport) Read(p []byte) (int, error) {
	for len(s.readBuf) == 0 {
		if s.closed {
			return 0, api.ErrConnClosed
		}
		slot, ok := s.readQ.TryPop()
		if !ok {
			continue
		}
		s.readBuf = slot
	}
	n := copy(p, s.readBuf)
	s.readBuf = s.readBuf[n:]
	return n, nil
}

// Close marks the endpoint closed; in-flight Read/Write calls observe it
// on their next spin iteration.
func (s *ShmRingTransport) Close() error {
	s.closed = true
	return nil
}
