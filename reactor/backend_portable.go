//go:build !linux && !windows && !darwin && !freebsd && !netbsd && !openbsd

// File: reactor/backend_portable.go
// Fallback Backend for platforms without a dedicated readiness/completion
// backend: each submitted op runs its blocking syscall on its own goroutine
// and posts the result to a channel Poll drains. Slower than epoll/kqueue/
// IOCP but preserves the same Backend contract (spec.md §4.1: "An unknown
// platform still gets a working, if unoptimized, reactor").
// Author: momentics <momentics@gmail.com>
// License: MIT

package reactor

import (
	"errors"
	"syscall"
	"time"
)

// connectRawPortable has no generic raw-sockaddr connect syscall across the
// platforms this fallback targets; callers needing outbound connect on an
// exotic platform must supply a pre-connected fd instead.
func connectRawPortable(fd int, sockaddr []byte) error {
	return errors.New("reactor: connect not supported on this platform's fallback backend")
}

type portableResult struct {
	kind OpKind
	fd   int
	cb   Callback
	user any
	res  int64
}

type portableBackend struct {
	results  chan portableResult
	wakeCh   chan struct{}
	wakeOnce func()
}

func newPortableBackend() (Backend, error) {
	return &portableBackend{
		results: make(chan portableResult, 4096),
		wakeCh:  make(chan struct{}, 1),
	}, nil
}

func (b *portableBackend) SubmitAccept(listenFD int, cb Callback, user any) error {
	go func() {
		nfd, _, err := syscall.Accept(listenFD)
		if err != nil {
			b.results <- portableResult{kind: OpAccept, fd: listenFD, cb: cb, user: user, res: -1}
			return
		}
		syscall.SetNonblock(nfd, true)
		b.results <- portableResult{kind: OpAccept, fd: listenFD, cb: cb, user: user, res: int64(nfd)}
	}()
	return nil
}

func (b *portableBackend) SubmitRead(fd int, buf []byte, cb Callback, user any) error {
	go func() {
		n, err := syscall.Read(fd, buf)
		if err != nil {
			n = -1
		}
		b.results <- portableResult{kind: OpRead, fd: fd, cb: cb, user: user, res: int64(n)}
	}()
	return nil
}

func (b *portableBackend) SubmitWrite(fd int, buf []byte, cb Callback, user any) error {
	go func() {
		n, err := syscall.Write(fd, buf)
		if err != nil {
			n = -1
		}
		b.results <- portableResult{kind: OpWrite, fd: fd, cb: cb, user: user, res: int64(n)}
	}()
	return nil
}

func (b *portableBackend) SubmitConnect(fd int, sockaddr []byte, cb Callback, user any) error {
	go func() {
		res := int64(0)
		if err := connectRawPortable(fd, sockaddr); err != nil {
			res = -1
		}
		b.results <- portableResult{kind: OpConnect, fd: fd, cb: cb, user: user, res: res}
	}()
	return nil
}

func (b *portableBackend) SubmitClose(fd int) error {
	return syscall.Close(fd)
}

func (b *portableBackend) Wake() {
	select {
	case b.wakeCh <- struct{}{}:
	default:
	}
}

func (b *portableBackend) SetWakeCallback(f func()) {
	b.wakeOnce = f
}

func (b *portableBackend) Poll(timeoutMicros int64) error {
	var timeout <-chan time.Time
	if timeoutMicros >= 0 {
		t := time.NewTimer(time.Duration(timeoutMicros) * time.Microsecond)
		defer t.Stop()
		timeout = t.C
	}
	select {
	case r := <-b.results:
		r.cb(IOEvent{Kind: r.kind, Handle: r.fd, UserData: r.user, Result: r.res})
	case <-b.wakeCh:
		if b.wakeOnce != nil {
			b.wakeOnce()
		}
	case <-timeout:
	}
	return nil
}

func (b *portableBackend) Close() error {
	return nil
}

func newPlatformBackend() Backend {
	b, err := newPortableBackend()
	if err != nil {
		return nil
	}
	return b
}
