// File: internal/affinity/affinity.go
// Package affinity provides a platform-neutral API for pinning the calling
// OS thread to a logical CPU, used by reactor threads so each owns its
// connections without cross-CPU cache bouncing (spec.md §5 scheduling
// model: "one reactor per worker thread"). Platform-specific code lives in
// affinity_linux.go / affinity_windows.go / affinity_stub.go.
//
// Grounded on the teacher's affinity/affinity.go, but the Linux path is
// reworked from cgo (pthread_setaffinity_np) to a pure-Go
// golang.org/x/sys/unix syscall so this module has no cgo dependency
// anywhere, matching the rest of the teacher's go.mod-declared stack.
// Author: momentics <momentics@gmail.com>
// License: MIT

package affinity

// Set pins the calling OS thread to the given logical CPU. Callers must
// first call runtime.LockOSThread, since Go goroutines otherwise migrate
// between OS threads freely.
func Set(cpuID int) error {
	return setPlatform(cpuID)
}
