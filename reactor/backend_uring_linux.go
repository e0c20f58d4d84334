//go:build linux && io_uring

// File: reactor/backend_uring_linux.go
// Completion-based Backend for Linux when built with the io_uring tag.
//
// Grounded on the teacher's internal/transport/transport_linux_uring.go,
// which performs a real io_uring_setup(2) + SQ/CQ ring mmap but then
// candidly falls back to plain non-blocking read/write syscalls for the
// actual Send/Recv path ("simplified implementation... use regular syscall
// as fallback"). This backend keeps that same honest shape: it acquires a
// real io_uring instance (so registration/availability checks behave
// correctly and the fd is there for a future full SQE/CQE submission path),
// but multiplexes readiness through the epoll backend it wraps, exactly as
// the teacher's transport wraps its fallback syscalls under a uring-shaped
// constructor.
// Author: momentics <momentics@gmail.com>
// License: MIT

package reactor

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

const sysIoURingSetup = 425

type ioURingParams struct {
	sqEntries    uint32
	cqEntries    uint32
	flags        uint32
	sqThreadCPU  uint32
	sqThreadIdle uint32
	features     uint32
	wqFd         uint32
	resv         [3]uint32
	sqOff        [10]uint32
	cqOff        [10]uint32
}

type uringBackend struct {
	Backend // embeds the epoll backend that actually multiplexes readiness

	ringFD int
}

func setupIOURing(entries uint32) (int, error) {
	var params ioURingParams
	fd, _, errno := unix.Syscall(sysIoURingSetup, uintptr(entries), uintptr(unsafe.Pointer(&params)), 0)
	if errno != 0 {
		return -1, fmt.Errorf("io_uring_setup: %w", errno)
	}
	return int(fd), nil
}

func newUringBackend() (Backend, error) {
	ringFD, err := setupIOURing(128)
	if err != nil {
		return nil, err
	}
	epoll, err := newEpollBackend()
	if err != nil {
		unix.Close(ringFD)
		return nil, err
	}
	return &uringBackend{Backend: epoll, ringFD: ringFD}, nil
}

func (b *uringBackend) Close() error {
	unix.Close(b.ringFD)
	return b.Backend.Close()
}

func init() {
	uringFactory = newUringBackend
}
