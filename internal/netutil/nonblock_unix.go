//go:build linux || darwin || freebsd || netbsd || openbsd

// File: internal/netutil/nonblock_unix.go
// Author: momentics <momentics@gmail.com>
// License: MIT

package netutil

import "golang.org/x/sys/unix"

func setNonblocking(fd int) error {
	return unix.SetNonblock(fd, true)
}
