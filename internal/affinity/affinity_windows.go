//go:build windows

// File: internal/affinity/affinity_windows.go
// Author: momentics <momentics@gmail.com>
// License: MIT

package affinity

import "syscall"

// setPlatform sets the calling thread's affinity mask via kernel32.
func setPlatform(cpuID int) error {
	kernel32 := syscall.NewLazyDLL("kernel32.dll")
	procSetThreadAffinityMask := kernel32.NewProc("SetThreadAffinityMask")
	procGetCurrentThread := kernel32.NewProc("GetCurrentThread")

	hThread, _, _ := procGetCurrentThread.Call()
	mask := uintptr(1) << uint(cpuID)
	ret, _, err := procSetThreadAffinityMask.Call(hThread, mask)
	if ret == 0 {
		return err
	}
	return nil
}
