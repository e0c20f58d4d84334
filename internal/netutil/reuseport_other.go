//go:build windows

// File: internal/netutil/reuseport_other.go
// Windows has no SO_REUSEPORT; each reactor thread binds independently
// and relies on the OS's default accept distribution instead.
// Author: momentics <momentics@gmail.com>
// License: MIT

package netutil

import "syscall"

func controlReusePort(network, address string, c syscall.RawConn) error {
	return nil
}
