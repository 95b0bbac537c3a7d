//go:build !windows

package cmd

import "golang.org/x/sys/unix"

// isProcessRunning probes pid with signal 0. EPERM still means the
// process exists, it just belongs to someone else.
func isProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || err == unix.EPERM
}
