//go:build !windows

package cmd

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

const (
	shutdownTimeout = 5 * time.Second
	pollInterval    = 100 * time.Millisecond
)

// killDaemon asks the daemon to stop with SIGTERM so it can flush the
// queue, and escalates to SIGKILL after shutdownTimeout.
func killDaemon(pid int) error {
	if !isProcessRunning(pid) {
		return fmt.Errorf("daemon not running (PID %d)", pid)
	}
	if err := unix.Kill(pid, unix.SIGTERM); err != nil {
		return fmt.Errorf("failed to send SIGTERM: %w", err)
	}
	if waitForExit(pid, shutdownTimeout) {
		return nil
	}

	fmt.Println("Daemon did not stop in time, killing it")
	if err := unix.Kill(pid, unix.SIGKILL); err != nil && err != unix.ESRCH {
		return fmt.Errorf("failed to send SIGKILL: %w", err)
	}
	waitForExit(pid, 5*pollInterval)
	return nil
}

func waitForExit(pid int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !isProcessRunning(pid) {
			return true
		}
		time.Sleep(pollInterval)
	}
	return !isProcessRunning(pid)
}
