// File: coro/future.go
// Package coro adapts the original implementation's C++20 coroutine
// scaffolding (_examples/original_source/src/cpp/core/{future.h,coro_task.h,
// coro_resumer.h,awaitable_future.h}) into idiomatic Go: instead of
// std::coroutine_handle suspension, a CoroTask parks its goroutine on a
// channel and is resumed by a CoroResumer queuing its handle for the
// reactor thread to drain (spec.md §5: "coroutine scaffolding for
// suspending/resuming handlers").
// Author: momentics <momentics@gmail.com>
// License: MIT

package coro

import (
	"sync"
	"sync/atomic"

	"github.com/momentics/hioload-srv/api"
)

// FutureState mirrors the original's future_state enum.
type FutureState uint8

const (
	StateInvalid FutureState = iota
	StatePending
	StateReady
	StateFailed
)

// Future is a single-assignment result cell: a Promise resolves or rejects
// it exactly once, and any number of readers may Get() the outcome.
// Unlike the C++ original, Go's garbage collector removes the need for the
// move-only discipline the original enforces manually; Future is safe to
// share by pointer.
type Future[T any] struct {
	state FutureState
	mu    sync.Mutex
	done  chan struct{}

	value T
	err   error
}

// NewFuture returns a pending Future and the Promise that resolves it.
func NewFuture[T any]() (*Future[T], *Promise[T]) {
	f := &Future[T]{state: StatePending, done: make(chan struct{})}
	return f, &Promise[T]{f: f}
}

// Ready returns an already-resolved Future, skipping the pending state
// entirely (the original's "fast path" constructor).
func Ready[T any](value T) *Future[T] {
	f := &Future[T]{state: StateReady, value: value, done: make(chan struct{})}
	close(f.done)
	return f
}

// Failed returns an already-failed Future.
func Failed[T any](err error) *Future[T] {
	f := &Future[T]{state: StateFailed, err: err, done: make(chan struct{})}
	close(f.done)
	return f
}

func (f *Future[T]) Available() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state == StateReady
}

func (f *Future[T]) Failed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state == StateFailed
}

// Done returns a channel closed once the future settles, for use in
// select statements alongside reactor-driven cancellation.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Get blocks until the future settles and returns its value or error.
// Calling Get on an already-settled future returns immediately.
func (f *Future[T]) Get() (T, error) {
	<-f.done
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == StateFailed {
		var zero T
		return zero, f.err
	}
	return f.value, nil
}

// Promise is the single-writer half of a Future.
type Promise[T any] struct {
	settled atomic.Bool
	f       *Future[T]
}

// Resolve settles the future with a value. A second call is a no-op
// (the original documents "only call once"; this enforces it instead of
// trusting the caller).
func (p *Promise[T]) Resolve(value T) {
	if !p.settled.CompareAndSwap(false, true) {
		return
	}
	p.f.mu.Lock()
	p.f.state = StateReady
	p.f.value = value
	p.f.mu.Unlock()
	close(p.f.done)
}

// Reject settles the future with an error.
func (p *Promise[T]) Reject(err error) {
	if !p.settled.CompareAndSwap(false, true) {
		return
	}
	if err == nil {
		err = api.NewError(api.ErrCodeInternal, "promise rejected with nil error")
	}
	p.f.mu.Lock()
	p.f.state = StateFailed
	p.f.err = err
	p.f.mu.Unlock()
	close(p.f.done)
}

// Future returns the Promise's associated Future.
func (p *Promise[T]) Future() *Future[T] { return p.f }
