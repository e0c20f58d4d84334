//go:build windows

// File: reactor/backend_iocp_windows.go
// Completion-based Backend for Windows: submits overlapped WSARecv/WSASend/
// AcceptEx/ConnectEx up front and reports results from GetQueuedCompletionStatus,
// the inverse control flow from the readiness-based epoll/kqueue backends.
// Author: momentics <momentics@gmail.com>
// License: MIT

package reactor

import (
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
)

type iocpOp struct {
	overlapped windows.Overlapped
	kind       OpKind
	fd         windows.Handle
	buf        []byte
	wsabuf     windows.WSABuf
	acceptFD   windows.Handle
	acceptBuf  [2 * (unsafe.Sizeof(windows.RawSockaddrAny{}) + 16)]byte
	cb         Callback
	user       any
}

type iocpBackend struct {
	port windows.Handle

	mu       sync.Mutex
	wakeOnce func()
}

const iocpWakeKey uintptr = 0xDEADBEEF

func newIOCPBackend() (Backend, error) {
	port, err := windows.CreateIoCompletionPort(windows.InvalidHandle, 0, 0, 0)
	if err != nil {
		return nil, err
	}
	return &iocpBackend{port: port}, nil
}

func (b *iocpBackend) associate(h windows.Handle) error {
	_, err := windows.CreateIoCompletionPort(h, b.port, 0, 0)
	return err
}

func (b *iocpBackend) SubmitAccept(listenFD int, cb Callback, user any) error {
	h := windows.Handle(listenFD)
	if err := b.associate(h); err != nil {
		return err
	}
	afINet := windows.AF_INET
	acceptSock, err := windows.Socket(afINet, windows.SOCK_STREAM, 0)
	if err != nil {
		return err
	}
	op := &iocpOp{kind: OpAccept, fd: h, acceptFD: acceptSock, cb: cb, user: user}
	var bytesRecv uint32
	err = windows.AcceptEx(h, acceptSock, &op.acceptBuf[0], 0,
		uint32(unsafe.Sizeof(windows.RawSockaddrAny{}))+16,
		uint32(unsafe.Sizeof(windows.RawSockaddrAny{}))+16,
		&bytesRecv, &op.overlapped)
	if err != nil && err != windows.ERROR_IO_PENDING {
		windows.Closesocket(acceptSock)
		return err
	}
	return nil
}

func (b *iocpBackend) SubmitRead(fd int, buf []byte, cb Callback, user any) error {
	h := windows.Handle(fd)
	op := &iocpOp{kind: OpRead, fd: h, buf: buf, cb: cb, user: user}
	op.wsabuf = windows.WSABuf{Len: uint32(len(buf)), Buf: bufPtr(buf)}
	var n, flags uint32
	err := windows.WSARecv(h, &op.wsabuf, 1, &n, &flags, &op.overlapped, nil)
	if err != nil && err != windows.WSA_IO_PENDING {
		return err
	}
	return nil
}

func (b *iocpBackend) SubmitWrite(fd int, buf []byte, cb Callback, user any) error {
	h := windows.Handle(fd)
	op := &iocpOp{kind: OpWrite, fd: h, buf: buf, cb: cb, user: user}
	op.wsabuf = windows.WSABuf{Len: uint32(len(buf)), Buf: bufPtr(buf)}
	var n uint32
	err := windows.WSASend(h, &op.wsabuf, 1, &n, 0, &op.overlapped, nil)
	if err != nil && err != windows.WSA_IO_PENDING {
		return err
	}
	return nil
}

func (b *iocpBackend) SubmitConnect(fd int, sockaddr []byte, cb Callback, user any) error {
	h := windows.Handle(fd)
	if err := b.associate(h); err != nil {
		return err
	}
	op := &iocpOp{kind: OpConnect, fd: h, cb: cb, user: user}
	var bytesSent uint32
	err := windows.ConnectEx(h, (*windows.RawSockaddrAny)(unsafe.Pointer(&sockaddr[0])), int32(len(sockaddr)), nil, 0, &bytesSent, &op.overlapped)
	if err != nil && err != windows.ERROR_IO_PENDING {
		return err
	}
	return nil
}

func (b *iocpBackend) SubmitClose(fd int) error {
	h := windows.Handle(fd)
	return windows.Closesocket(h)
}

func (b *iocpBackend) Wake() {
	windows.PostQueuedCompletionStatus(b.port, 0, iocpWakeKey, nil)
}

func (b *iocpBackend) SetWakeCallback(f func()) {
	b.mu.Lock()
	b.wakeOnce = f
	b.mu.Unlock()
}

func (b *iocpBackend) Poll(timeoutMicros int64) error {
	timeoutMs := uint32(windows.INFINITE)
	if timeoutMicros >= 0 {
		timeoutMs = uint32(timeoutMicros / 1000)
	}

	var bytes uint32
	var key uintptr
	var overlapped *windows.Overlapped
	err := windows.GetQueuedCompletionStatus(b.port, &bytes, &key, &overlapped, timeoutMs)
	if overlapped == nil {
		if err == windows.WAIT_TIMEOUT {
			return nil
		}
		return err
	}
	if key == iocpWakeKey {
		b.mu.Lock()
		cb := b.wakeOnce
		b.mu.Unlock()
		if cb != nil {
			cb()
		}
		return nil
	}

	op := (*iocpOp)(unsafe.Pointer(overlapped))
	result := int64(bytes)
	if err != nil {
		result = -1
	}
	switch op.kind {
	case OpAccept:
		op.cb(IOEvent{Kind: OpAccept, Handle: int(op.fd), UserData: op.user, Result: int64(op.acceptFD)})
	default:
		op.cb(IOEvent{Kind: op.kind, Handle: int(op.fd), UserData: op.user, Result: result})
	}
	return nil
}

func (b *iocpBackend) Close() error {
	return windows.CloseHandle(b.port)
}

func bufPtr(b []byte) *byte {
	if len(b) == 0 {
		return nil
	}
	return &b[0]
}

func newPlatformBackend() Backend {
	b, err := newIOCPBackend()
	if err != nil {
		return nil
	}
	return b
}
