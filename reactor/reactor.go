// File: reactor/reactor.go
// Package reactor implements the platform-agnostic asynchronous I/O core
// spec.md §4.1 describes: a uniform submit/complete interface that the
// protocol dispatcher and every connection state machine drive without
// caring whether the concrete backend is kqueue, epoll, io_uring, or IOCP.
//
// Grounded on the teacher's reactor/reactor.go + reactor/epoll_reactor.go
// (readiness registration, one-shot re-arm, callback map) and
// _examples/original_source/src/cpp/core/async_io.h (the accept/read/write/
// connect/close/wake op-kind vocabulary spec.md §4.1 lifts almost verbatim).
// Author: momentics <momentics@gmail.com>
// License: MIT

package reactor

import (
	"sync"
	"sync/atomic"

	"github.com/momentics/hioload-srv/api"
)

// OpKind enumerates the submittable I/O operations (spec.md §3 ReactorOp).
type OpKind int

const (
	OpAccept OpKind = iota
	OpRead
	OpWrite
	OpConnect
	OpClose
	OpWake
)

func (k OpKind) String() string {
	switch k {
	case OpAccept:
		return "accept"
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	case OpConnect:
		return "connect"
	case OpClose:
		return "close"
	case OpWake:
		return "wake"
	default:
		return "unknown"
	}
}

// Callback is invoked exactly once per submitted operation, on the reactor
// thread that owns the backend (spec.md invariant 7 and §4.1 threading).
type Callback func(ev IOEvent)

// IOEvent is produced by the reactor on completion (spec.md §3).
type IOEvent struct {
	Kind     OpKind
	Handle   int
	UserData any
	// Result carries bytes transferred for read/write, the accepted handle
	// for accept, 0/negative for connect, or a negative error code.
	Result int64
	Flags  uint32
}

// Backend is the platform-specific half of the reactor: readiness-based
// backends (kqueue/epoll) arm a one-shot watch and perform the syscall
// inside Poll; completion-based backends (io_uring/IOCP) submit the
// syscall up front and report the kernel's result from Poll.
type Backend interface {
	SubmitAccept(listenFD int, cb Callback, user any) error
	SubmitRead(fd int, buf []byte, cb Callback, user any) error
	SubmitWrite(fd int, buf []byte, cb Callback, user any) error
	SubmitConnect(fd int, sockaddr []byte, cb Callback, user any) error
	SubmitClose(fd int) error

	// Poll blocks up to timeoutMicros (negative = block indefinitely; 0 =
	// return immediately) and invokes ready callbacks before returning.
	Poll(timeoutMicros int64) error

	// Wake causes a blocked Poll to return and the registered wake
	// callback to run exactly once, coalescing concurrent calls.
	Wake()
	SetWakeCallback(func())

	Close() error
}

// Reactor is the uniform, backend-agnostic entry point every connection and
// the protocol dispatcher submit work through.
type Reactor struct {
	backend Backend
	running atomic.Bool
	stopCh  chan struct{}

	mu        sync.Mutex
	wakeFn    func()
	errCount  atomic.Uint64
	debugInfo *api.DebugProbes
}

// New constructs a Reactor around backend. backend is nil only if platform
// auto-detection failed to produce one (spec.md: "Unknown backend at
// construction: returns null reactor").
func New(backend Backend) *Reactor {
	if backend == nil {
		return nil
	}
	r := &Reactor{backend: backend, stopCh: make(chan struct{}), debugInfo: api.NewDebugProbes()}
	backend.SetWakeCallback(func() {
		r.mu.Lock()
		fn := r.wakeFn
		r.mu.Unlock()
		if fn != nil {
			fn()
		}
	})
	r.debugInfo.RegisterProbe("reactor.errors", func() any { return r.errCount.Load() })
	return r
}

// Auto constructs a Reactor using the best backend available on this
// platform (see newPlatformBackend in reactor_linux.go,
// backend_kqueue_bsd.go, backend_iocp_windows.go and backend_portable.go).
func Auto() *Reactor {
	b := newPlatformBackend()
	if b == nil {
		return nil
	}
	return New(b)
}

func (r *Reactor) submit(err error) int {
	if err != nil {
		r.errCount.Add(1)
		return -1
	}
	return 0
}

// AcceptAsync submits a one-shot accept on listenFD. The accept is one-shot:
// to continue accepting, the callback must re-submit.
func (r *Reactor) AcceptAsync(listenFD int, cb Callback, user any) int {
	return r.submit(r.backend.SubmitAccept(listenFD, cb, user))
}

// ReadAsync submits a read of up to len(buf) bytes.
func (r *Reactor) ReadAsync(fd int, buf []byte, cb Callback, user any) int {
	return r.submit(r.backend.SubmitRead(fd, buf, cb, user))
}

// WriteAsync submits a write of buf; partial writes are possible, the
// caller re-submits the unwritten tail.
func (r *Reactor) WriteAsync(fd int, buf []byte, cb Callback, user any) int {
	return r.submit(r.backend.SubmitWrite(fd, buf, cb, user))
}

// ConnectAsync submits a connect to the given raw sockaddr.
func (r *Reactor) ConnectAsync(fd int, sockaddr []byte, cb Callback, user any) int {
	return r.submit(r.backend.SubmitConnect(fd, sockaddr, cb, user))
}

// CloseAsync cancels pending operations on fd and closes it. Repeated calls
// on an already-closed handle are a no-op.
func (r *Reactor) CloseAsync(fd int) int {
	return r.submit(r.backend.SubmitClose(fd))
}

// Wake triggers exactly one invocation of the registered wake callback on
// the reactor thread; concurrent calls before the callback runs may be
// coalesced into a single invocation.
func (r *Reactor) Wake() {
	r.backend.Wake()
}

// SetWakeCallback registers f as the function invoked on wake.
func (r *Reactor) SetWakeCallback(f func()) {
	r.mu.Lock()
	r.wakeFn = f
	r.mu.Unlock()
}

// Poll runs one iteration of the backend's poll loop.
func (r *Reactor) Poll(timeoutMicros int64) error {
	return r.backend.Poll(timeoutMicros)
}

// Run blocks, polling until Stop is called. One reactor is owned by one
// goroutine from Run to Stop (spec.md §4.1 threading); submissions from
// other goroutines are safe, callbacks only ever run here.
func (r *Reactor) Run() error {
	if !r.running.CompareAndSwap(false, true) {
		return api.NewError(api.ErrCodeInvalidState, "reactor already running")
	}
	r.mu.Lock()
	r.stopCh = make(chan struct{})
	stopCh := r.stopCh
	r.mu.Unlock()
	defer r.running.Store(false)

	for {
		select {
		case <-stopCh:
			return nil
		default:
		}
		if err := r.backend.Poll(50_000); err != nil {
			r.errCount.Add(1)
		}
	}
}

// Stop causes Run to return after its current poll iteration.
func (r *Reactor) Stop() {
	if r.running.Load() {
		r.mu.Lock()
		close(r.stopCh)
		r.mu.Unlock()
		r.Wake()
	}
}

// Close releases backend resources. Call after Run returns.
func (r *Reactor) Close() error {
	return r.backend.Close()
}

// Debug exposes the reactor's probe registry for diagnostics endpoints.
func (r *Reactor) Debug() *api.DebugProbes { return r.debugInfo }
