// File: internal/netutil/listener.go
// Package netutil bridges the standard library's net.Listen to the raw
// file-descriptor world reactor.Backend operates in. Rather than
// reimplementing per-platform socket()/bind()/listen() the way the
// teacher's examples/reactor_echo/socket_unix.go and socket_windows.go
// do for a single demo binary, this uses net.ListenTCP plus
// (*net.TCPListener).File() to obtain a duplicated, independently-owned
// descriptor — then detaches it from the Go runtime's netpoller so the
// reactor backend can drive it with its own epoll/kqueue/IOCP
// registration without the two pollers fighting over the same fd.
// Author: momentics <momentics@gmail.com>
// License: MIT

package netutil

import (
	"context"
	"net"
	"syscall"
)

// ListenerFD binds network/addr (e.g. "tcp", ":8443") and returns a raw,
// non-blocking file descriptor suitable for reactor.Backend.SubmitAccept,
// plus a close function that releases both the duplicated descriptor and
// the original listener.
func ListenerFD(network, addr string) (fd int, closeFn func() error, err error) {
	tcpAddr, err := net.ResolveTCPAddr(network, addr)
	if err != nil {
		return 0, nil, err
	}
	lst, err := net.ListenTCP(network, tcpAddr)
	if err != nil {
		return 0, nil, err
	}
	file, err := lst.File()
	if err != nil {
		lst.Close()
		return 0, nil, err
	}
	rawFD := int(file.Fd())
	if err := setNonblocking(rawFD); err != nil {
		file.Close()
		lst.Close()
		return 0, nil, err
	}
	closeFn = func() error {
		ferr := file.Close()
		lerr := lst.Close()
		if ferr != nil {
			return ferr
		}
		return lerr
	}
	return rawFD, closeFn, nil
}

// ListenerFDReusePort behaves like ListenerFD but sets SO_REUSEPORT before
// binding, so multiple reactor threads can each hold an independent
// listening socket on the same addr and let the kernel load-balance
// accepts across them (spec.md §4.5).
func ListenerFDReusePort(network, addr string) (fd int, closeFn func() error, err error) {
	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			return controlReusePort(network, addr, c)
		},
	}
	ln, err := lc.Listen(context.Background(), network, addr)
	if err != nil {
		return 0, nil, err
	}
	tcpLn, ok := ln.(*net.TCPListener)
	if !ok {
		ln.Close()
		return 0, nil, net.UnknownNetworkError(network)
	}
	file, err := tcpLn.File()
	if err != nil {
		tcpLn.Close()
		return 0, nil, err
	}
	rawFD := int(file.Fd())
	if err := setNonblocking(rawFD); err != nil {
		file.Close()
		tcpLn.Close()
		return 0, nil, err
	}
	closeFn = func() error {
		ferr := file.Close()
		lerr := tcpLn.Close()
		if ferr != nil {
			return ferr
		}
		return lerr
	}
	return rawFD, closeFn, nil
}
