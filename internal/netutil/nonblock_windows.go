//go:build windows

// File: internal/netutil/nonblock_windows.go
// Overlapped sockets driven through IOCP don't need FIONBIO — the
// completion port delivers readiness asynchronously regardless of the
// socket's blocking mode, so this is a no-op kept only to satisfy the
// cross-platform ListenerFD signature.
// Author: momentics <momentics@gmail.com>
// License: MIT

package netutil

func setNonblocking(fd int) error {
	return nil
}
