//go:build linux

// File: reactor/backend_epoll_linux.go
// Readiness-based Backend for Linux: arms one-shot epoll watches and
// performs the non-blocking syscall inside Poll when the watch fires.
// Grounded on the teacher's reactor/epoll_reactor.go, extended from a bare
// readiness notifier into the full submit/complete contract of
// reactor.Backend (accept/read/write/connect/close + wake).
// Author: momentics <momentics@gmail.com>
// License: MIT

package reactor

import (
	"sync"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

type epollPending struct {
	kind OpKind
	fd   int
	buf  []byte
	cb   Callback
	user any
}

type epollBackend struct {
	epfd int

	mu       sync.Mutex
	pending  map[int]*epollPending
	wakeR    int
	wakeW    int
	wakeOnce func()
}

func newEpollBackend() (Backend, error) {
	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, err
	}
	r, w, err := pipe2NonBlock()
	if err != nil {
		unix.Close(epfd)
		return nil, err
	}
	b := &epollBackend{epfd: epfd, pending: make(map[int]*epollPending), wakeR: r, wakeW: w}
	if err := b.arm(r, unix.EPOLLIN); err != nil {
		return nil, err
	}
	b.pending[r] = &epollPending{kind: OpWake, fd: r}
	return b, nil
}

func pipe2NonBlock() (int, int, error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_NONBLOCK); err != nil {
		return 0, 0, err
	}
	return fds[0], fds[1], nil
}

func (b *epollBackend) arm(fd int, events uint32) error {
	ev := unix.EpollEvent{Events: events | unix.EPOLLONESHOT, Fd: int32(fd)}
	err := unix.EpollCtl(b.epfd, unix.EPOLL_CTL_ADD, fd, &ev)
	if err == unix.EEXIST {
		err = unix.EpollCtl(b.epfd, unix.EPOLL_CTL_MOD, fd, &ev)
	}
	return err
}

func (b *epollBackend) register(fd int, events uint32, p *epollPending) error {
	b.mu.Lock()
	b.pending[fd] = p
	b.mu.Unlock()
	if err := b.arm(fd, events); err != nil {
		b.mu.Lock()
		delete(b.pending, fd)
		b.mu.Unlock()
		return err
	}
	return nil
}

func (b *epollBackend) SubmitAccept(listenFD int, cb Callback, user any) error {
	return b.register(listenFD, unix.EPOLLIN, &epollPending{kind: OpAccept, fd: listenFD, cb: cb, user: user})
}

func (b *epollBackend) SubmitRead(fd int, buf []byte, cb Callback, user any) error {
	return b.register(fd, unix.EPOLLIN, &epollPending{kind: OpRead, fd: fd, buf: buf, cb: cb, user: user})
}

func (b *epollBackend) SubmitWrite(fd int, buf []byte, cb Callback, user any) error {
	return b.register(fd, unix.EPOLLOUT, &epollPending{kind: OpWrite, fd: fd, buf: buf, cb: cb, user: user})
}

func (b *epollBackend) SubmitConnect(fd int, sockaddr []byte, cb Callback, user any) error {
	if err := connectRaw(fd, sockaddr); err != nil && err != unix.EINPROGRESS {
		return err
	}
	return b.register(fd, unix.EPOLLOUT, &epollPending{kind: OpConnect, fd: fd, cb: cb, user: user})
}

func (b *epollBackend) SubmitClose(fd int) error {
	b.mu.Lock()
	delete(b.pending, fd)
	b.mu.Unlock()
	unix.EpollCtl(b.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	err := unix.Close(fd)
	if err == unix.EBADF {
		return nil
	}
	return err
}

func (b *epollBackend) Wake() {
	var one [1]byte
	unix.Write(b.wakeW, one[:])
}

func (b *epollBackend) SetWakeCallback(f func()) {
	b.mu.Lock()
	b.wakeOnce = f
	b.mu.Unlock()
}

func (b *epollBackend) Poll(timeoutMicros int64) error {
	const maxEvents = 256
	var events [maxEvents]unix.EpollEvent

	timeoutMs := -1
	if timeoutMicros >= 0 {
		timeoutMs = int(timeoutMicros / 1000)
	}

	n, err := unix.EpollWait(b.epfd, events[:], timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return nil
		}
		return err
	}

	for i := 0; i < n; i++ {
		fd := int(events[i].Fd)
		b.mu.Lock()
		p, ok := b.pending[fd]
		if ok {
			delete(b.pending, fd)
		}
		b.mu.Unlock()
		if !ok {
			continue
		}
		b.complete(p, events[i].Events)
	}
	return nil
}

func (b *epollBackend) complete(p *epollPending, events uint32) {
	if p.kind == OpWake {
		var drain [64]byte
		for {
			n, err := unix.Read(p.fd, drain[:])
			if n <= 0 || err != nil {
				break
			}
		}
		b.arm(p.fd, unix.EPOLLIN)
		b.mu.Lock()
		b.pending[p.fd] = p
		cb := b.wakeOnce
		b.mu.Unlock()
		if cb != nil {
			cb()
		}
		return
	}

	if events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 && p.kind != OpRead {
		p.cb(IOEvent{Kind: p.kind, Handle: p.fd, UserData: p.user, Result: -1})
		return
	}

	switch p.kind {
	case OpAccept:
		nfd, _, err := unix.Accept4(p.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err != nil {
			if err == unix.EAGAIN {
				b.register(p.fd, unix.EPOLLIN, p)
				return
			}
			p.cb(IOEvent{Kind: OpAccept, Handle: p.fd, UserData: p.user, Result: -1})
			return
		}
		p.cb(IOEvent{Kind: OpAccept, Handle: p.fd, UserData: p.user, Result: int64(nfd)})
	case OpRead:
		n, err := unix.Read(p.fd, p.buf)
		if err != nil {
			if err == unix.EAGAIN {
				b.register(p.fd, unix.EPOLLIN, p)
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
				b.register(p.fd, unix.EPOLLOUT, p)
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

func (b *epollBackend) Close() error {
	unix.Close(b.wakeR)
	unix.Close(b.wakeW)
	return unix.Close(b.epfd)
}

func connectRaw(fd int, sockaddr []byte) error {
	_, _, errno := syscall.Syscall(syscall.SYS_CONNECT, uintptr(fd), uintptr(unsafe.Pointer(&sockaddr[0])), uintptr(len(sockaddr)))
	if errno != 0 {
		return errno
	}
	return nil
}
