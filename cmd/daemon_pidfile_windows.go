//go:build windows

package cmd

import "golang.org/x/sys/windows"

const stillActive = 259

// isProcessRunning opens pid with query rights and checks that it has not
// exited yet. A handle alone is not enough: exited processes stay
// openable while someone holds a handle to them.
func isProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		return false
	}
	defer windows.CloseHandle(h)
	var code uint32
	if err := windows.GetExitCodeProcess(h, &code); err != nil {
		return false
	}
	return code == stillActive
}
