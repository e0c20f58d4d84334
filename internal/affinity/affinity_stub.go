//go:build !linux && !windows

// File: internal/affinity/affinity_stub.go
// Author: momentics <momentics@gmail.com>
// License: MIT

package affinity

import "errors"

// setPlatform is a stub for platforms without a supported pinning syscall.
func setPlatform(cpuID int) error {
	return errors.New("affinity: not supported on this platform")
}
