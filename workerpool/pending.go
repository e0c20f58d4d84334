// File: workerpool/pending.go
// Author: momentics <momentics@gmail.com>
// License: MIT

package workerpool

import (
	"sync"

	"github.com/momentics/hioload-srv/coro"
)

// pendingTable is the correlation-id-keyed map of in-flight requests
// awaiting a response, guarded by a mutex since both the dispatching
// goroutine (insert) and the single response-reader goroutine (resolve)
// touch it.
type pendingTable struct {
	mu      sync.Mutex
	entries map[uint32]*coro.Promise[*Response]
}

func newPendingTable() *pendingTable {
	return &pendingTable{entries: make(map[uint32]*coro.Promise[*Response])}
}

func (t *pendingTable) register(id uint32) *coro.Future[*Response] {
	fut, prom := coro.NewFuture[*Response]()
	t.mu.Lock()
	t.entries[id] = prom
	t.mu.Unlock()
	return fut
}

func (t *pendingTable) resolve(resp *Response) bool {
	t.mu.Lock()
	prom, ok := t.entries[resp.ID]
	if ok {
		delete(t.entries, resp.ID)
	}
	t.mu.Unlock()
	if !ok {
		return false
	}
	prom.Resolve(resp)
	return true
}

// drainWithError rejects every still-pending request with err, used
// during shutdown so no caller blocks forever on a Future that will
// never be resolved (spec.md: "graceful shutdown draining pending map
// with invalid-state failures").
func (t *pendingTable) drainWithError(err error) int {
	t.mu.Lock()
	entries := t.entries
	t.entries = make(map[uint32]*coro.Promise[*Response])
	t.mu.Unlock()

	for _, prom := range entries {
		prom.Reject(err)
	}
	return len(entries)
}

func (t *pendingTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
