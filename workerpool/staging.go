// File: workerpool/staging.go
// responseStage buffers decoded worker messages (HTTP responses and
// WebSocket send/close instructions alike) between the per-worker read
// loop and the resolve/routing step, so a burst of replies arriving
// faster than the mutex-guarded pending map (or the WS connection
// registry lookup) can drain them doesn't stall the read loop's next
// io.Read.
//
// Grounded on the teacher's internal/concurrency/executor.go, which backs
// its task dispatch with github.com/eapache/queue.Queue (the teacher's one
// non-lock-free queue dependency) rather than the package's own lock-free
// MPMC — the right tool here too, since this is a single-producer,
// single-consumer growable staging buffer, not the fixed-capacity
// wait-free hand-off internal/queue.SPSC provides.
// Author: momentics <momentics@gmail.com>
// License: MIT

package workerpool

import (
	"sync"

	"github.com/eapache/queue"
)

// responseStage is a growable FIFO of decoded *WorkerMessage values, safe
// for one producer (the worker's read loop) and one consumer (the drain
// goroutine) to share; github.com/eapache/queue.Queue itself is not
// synchronized, so a mutex plus condition variable guards it here.
type responseStage struct {
	mu     sync.Mutex
	cond   *sync.Cond
	q      *queue.Queue
	closed bool
}

func newResponseStage() *responseStage {
	s := &responseStage{q: queue.New()}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// push enqueues msg and wakes the drain goroutine.
func (s *responseStage) push(msg *WorkerMessage) {
	s.mu.Lock()
	s.q.Add(msg)
	s.mu.Unlock()
	s.cond.Signal()
}

// drain blocks until at least one message is staged or the stage is
// closed, then pops and returns it. ok is false once closed and drained.
func (s *responseStage) drain() (msg *WorkerMessage, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.q.Length() == 0 && !s.closed {
		s.cond.Wait()
	}
	if s.q.Length() == 0 {
		return nil, false
	}
	msg = s.q.Remove().(*WorkerMessage)
	return msg, true
}

// close stops drain from blocking further once the stage empties.
func (s *responseStage) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cond.Broadcast()
}
