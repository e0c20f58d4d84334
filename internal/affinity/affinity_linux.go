//go:build linux

// File: internal/affinity/affinity_linux.go
// Author: momentics <momentics@gmail.com>
// License: MIT

package affinity

import "golang.org/x/sys/unix"

// setPlatform uses sched_setaffinity on the calling thread's tid.
func setPlatform(cpuID int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpuID)
	return unix.SchedSetaffinity(unix.Gettid(), &set)
}
