// File: coro/resumer.go
// Grounded on _examples/original_source/src/cpp/core/coro_resumer.h:
// a lock-free SPSC ring of resumable handles that any thread may queue to,
// drained only on the event-loop thread, waking the reactor so a blocked
// Poll returns promptly instead of waiting out its timeout.
// Author: momentics <momentics@gmail.com>
// License: MIT

package coro

import (
	"sync/atomic"

	"github.com/momentics/hioload-srv/internal/queue"
)

// Waker is the subset of reactor.Reactor a Resumer needs: something to
// wake when a handle is queued from off the event-loop thread.
type Waker interface {
	Wake()
}

const defaultResumeRingCapacity = 4096

// Resumer queues coroutine handles for later resumption on the event-loop
// thread. Create one per reactor; set it global with SetGlobal if handler
// code needs ambient access the way the original's get_global()/set_global()
// pair provides.
type Resumer struct {
	ring             *queue.SPSC[Handle]
	io               Waker
	postDrain        atomic.Pointer[func()]
	droppedOverflow  atomic.Uint64
}

// NewResumer constructs a Resumer that wakes io whenever Queue is called.
func NewResumer(io Waker) *Resumer {
	return &Resumer{ring: queue.NewSPSC[Handle](defaultResumeRingCapacity), io: io}
}

// Queue enqueues handle for resumption and wakes the reactor. Safe to call
// from any goroutine (the original's "create(io), queue(handle) — any
// thread"). If the ring is saturated the handle is dropped and counted;
// callers that cannot tolerate drops should size the ring via a larger
// capacity constant or throttle suspensions upstream.
func (r *Resumer) Queue(h Handle) {
	if !r.ring.TryPush(h) {
		r.droppedOverflow.Add(1)
		return
	}
	if r.io != nil {
		r.io.Wake()
	}
}

// ProcessQueue drains every currently-queued handle and resumes each in
// FIFO order, then invokes the post-drain callback if one is set. Must
// only be called from the event-loop thread (the original's documented
// single-consumer constraint).
func (r *Resumer) ProcessQueue() int {
	n := 0
	for {
		h, ok := r.ring.TryPop()
		if !ok {
			break
		}
		h.Resume()
		n++
	}
	if cb := r.postDrain.Load(); cb != nil && *cb != nil {
		(*cb)()
	}
	return n
}

// SetPostWakeCallback installs a callback invoked once at the end of every
// ProcessQueue drain, e.g. for debug-probe bookkeeping.
func (r *Resumer) SetPostWakeCallback(cb func()) {
	r.postDrain.Store(&cb)
}

// DroppedCount reports how many handles were dropped due to ring overflow.
func (r *Resumer) DroppedCount() uint64 {
	return r.droppedOverflow.Load()
}

var globalResumer atomic.Pointer[Resumer]

// SetGlobal installs r as the process-wide default Resumer.
func SetGlobal(r *Resumer) {
	globalResumer.Store(r)
}

// GetGlobal returns the process-wide default Resumer, or nil if none has
// been installed.
func GetGlobal() *Resumer {
	return globalResumer.Load()
}
