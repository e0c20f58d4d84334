//go:build darwin || freebsd || netbsd || openbsd

// File: reactor/backend_kqueue_bsd.go
// Readiness-based Backend for BSD-family kernels (including macOS): mirrors
// backend_epoll_linux.go's one-shot-arm-then-syscall-in-Poll shape using
// kqueue/kevent instead of epoll, so the Reactor surface spec.md §4.1
// requires ("uniform submit/complete interface across kqueue, epoll,
// io_uring, and IOCP") is identical above this file.
// Author: momentics <momentics@gmail.com>
// License: MIT

package reactor

import (
	"sync"

	"golang.org/x/sys/unix"
)

type kqueuePending struct {
	kind OpKind
	fd   int
	buf  []byte
	cb   Callback
	user any
}

type kqueueBackend struct {
	kq int

	mu       sync.Mutex
	pending  map[int]*kqueuePending
	wakeR    int
	wakeW    int
	wakeOnce func()
}

func newKqueueBackend() (Backend, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		unix.Close(kq)
		return nil, err
	}
	unix.SetNonblock(fds[0], true)
	unix.SetNonblock(fds[1], true)

	b := &kqueueBackend{kq: kq, pending: make(map[int]*kqueuePending), wakeR: fds[0], wakeW: fds[1]}
	b.pending[fds[0]] = &kqueuePending{kind: OpWake, fd: fds[0]}
	if err := b.changeEvent(fds[0], unix.EVFILT_READ, unix.EV_ADD|unix.EV_ONESHOT); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *kqueueBackend) changeEvent(fd int, filter int16, flags uint16) error {
	ev := unix.Kevent_t{Ident: uint64(fd), Filter: filter, Flags: flags}
	_, err := unix.Kevent(b.kq, []unix.Kevent_t{ev}, nil, nil)
	return err
}

func (b *kqueueBackend) register(fd int, filter int16, p *kqueuePending) error {
	b.mu.Lock()
	b.pending[fd] = p
	b.mu.Unlock()
	if err := b.changeEvent(fd, filter, unix.EV_ADD|unix.EV_ONESHOT); err != nil {
		b.mu.Lock()
		delete(b.pending, fd)
		b.mu.Unlock()
		return err
	}
	return nil
}

func (b *kqueueBackend) SubmitAccept(listenFD int, cb Callback, user any) error {
	return b.register(listenFD, unix.EVFILT_READ, &kqueuePending{kind: OpAccept, fd: listenFD, cb: cb, user: user})
}

func (b *kqueueBackend) SubmitRead(fd int, buf []byte, cb Callback, user any) error {
	return b.register(fd, unix.EVFILT_READ, &kqueuePending{kind: OpRead, fd: fd, buf: buf, cb: cb, user: user})
}

func (b *kqueueBackend) SubmitWrite(fd int, buf []byte, cb Callback, user any) error {
	return b.register(fd, unix.EVFILT_WRITE, &kqueuePending{kind: OpWrite, fd: fd, buf: buf, cb: cb, user: user})
}

func (b *kqueueBackend) SubmitConnect(fd int, sockaddr []byte, cb Callback, user any) error {
	if err := connectRaw(fd, sockaddr); err != nil && err != unix.EINPROGRESS {
		return err
	}
	return b.register(fd, unix.EVFILT_WRITE, &kqueuePending{kind: OpConnect, fd: fd, cb: cb, user: user})
}

func (b *kqueueBackend) SubmitClose(fd int) error {
	b.mu.Lock()
	delete(b.pending, fd)
	b.mu.Unlock()
	err := unix.Close(fd)
	if err == unix.EBADF {
		return nil
	}
	return err
}

func (b *kqueueBackend) Wake() {
	var one [1]byte
	unix.Write(b.wakeW, one[:])
}

func (b *kqueueBackend) SetWakeCallback(f func()) {
	b.mu.Lock()
	b.wakeOnce = f
	b.mu.Unlock()
}

func (b *kqueueBackend) Poll(timeoutMicros int64) error {
	const maxEvents = 256
	events := make([]unix.Kevent_t, maxEvents)

	var ts *unix.Timespec
	if timeoutMicros >= 0 {
		t := unix.NsecToTimespec(timeoutMicros * 1000)
		ts = &t
	}

	n, err := unix.Kevent(b.kq, nil, events, ts)
	if err != nil {
		if err == unix.EINTR {
			return nil
		}
		return err
	}

	for i := 0; i < n; i++ {
		fd := int(events[i].Ident)
		b.mu.Lock()
		p, ok := b.pending[fd]
		if ok {
			delete(b.pending, fd)
		}
		b.mu.Unlock()
		if !ok {
			continue
		}
		b.complete(p, events[i])
	}
	return nil
}

func (b *kqueueBackend) complete(p *kqueuePending, ev unix.Kevent_t) {
	if p.kind == OpWake {
		var drain [64]byte
		for {
			n, err := unix.Read(p.fd, drain[:])
			if n <= 0 || err != nil {
				break
			}
		}
		b.changeEvent(p.fd, unix.EVFILT_READ, unix.EV_ADD|unix.EV_ONESHOT)
		b.mu.Lock()
		b.pending[p.fd] = p
		cb := b.wakeOnce
		b.mu.Unlock()
		if cb != nil {
			cb()
		}
		return
	}

	if ev.Flags&unix.EV_EOF != 0 && p.kind != OpRead {
		p.cb(IOEvent{Kind: p.kind, Handle: p.fd, UserData: p.user, Result: -1})
		return
	}

	switch p.kind {
	case OpAccept:
		nfd, _, err := unix.Accept(p.fd)
		if err != nil {
			if err == unix.EAGAIN {
				b.register(p.fd, unix.EVFILT_READ, p)
				return
			}
			p.cb(IOEvent{Kind: OpAccept, Handle: p.fd, UserData: p.user, Result: -1})
			return
		}
		unix.SetNonblock(nfd, true)
		p.cb(IOEvent{Kind: OpAccept, Handle: p.fd, UserData: p.user, Result: int64(nfd)})
	case OpRead:
		n, err := unix.Read(p.fd, p.buf)
		if err != nil {
			if err == unix.EAGAIN {
				b.register(p.fd, unix.EVFILT_READ, p)
				return
			}
			p.cb(IOEvent{Kind: OpRead, Handle: p.fd, UserData: p.user, Result: -1})
			return
		}
		p.cb(IOEvent{Kind: OpRead, Handle: p.fd, UserData: p.user, Result: int64(n)})
	case OpWrite:
		n, err := unix.Write(p.fd, p.buf)
		if err != nil {
			if err == unix.EAGAIN {
				b.register(p.fd, unix.EVFILT_WRITE, p)
				return
			}
			p.cb(IOEvent{Kind: OpWrite, Handle: p.fd, UserData: p.user, Result: -1})
			return
		}
		p.cb(IOEvent{Kind: OpWrite, Handle: p.fd, UserData: p.user, Result: int64(n)})
	case OpConnect:
		errno, _ := unix.GetsockoptInt(p.fd, unix.SOL_SOCKET, unix.SO_ERROR)
		if errno != 0 {
			p.cb(IOEvent{Kind: OpConnect, Handle: p.fd, UserData: p.user, Result: -1})
			return
		}
		p.cb(IOEvent{Kind: OpConnect, Handle: p.fd, UserData: p.user, Result: 0})
	}
}

func (b *kqueueBackend) Close() error {
	unix.Close(b.wakeR)
	unix.Close(b.wakeW)
	return unix.Close(b.kq)
}

func newPlatformBackend() Backend {
	b, err := newKqueueBackend()
	if err != nil {
		return nil
	}
	return b
}
