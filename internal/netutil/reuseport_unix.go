//go:build linux || darwin || freebsd || netbsd || openbsd

// File: internal/netutil/reuseport_unix.go
// SO_REUSEPORT support for the per-reactor-thread acceptor replication
// spec.md §4.5 describes ("each acceptor may be created once per reactor
// thread so the kernel distributes accepts across threads").
// Author: momentics <momentics@gmail.com>
// License: MIT

package netutil

import (
	"syscall"

	"golang.org/x/sys/unix"
)

func controlReusePort(network, address string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}
