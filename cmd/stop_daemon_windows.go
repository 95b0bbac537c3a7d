//go:build windows

package cmd

import (
	"fmt"
	"time"

	"golang.org/x/sys/windows"
)

const shutdownTimeout = 5 * time.Second

// killDaemon sends CTRL_BREAK to the daemon's console group so it can
// flush the queue, and terminates it after shutdownTimeout. A daemon
// started without a console of its own is terminated directly.
func killDaemon(pid int) error {
	h, err := windows.OpenProcess(windows.SYNCHRONIZE|windows.PROCESS_TERMINATE, false, uint32(pid))
	if err != nil {
		return fmt.Errorf("daemon not running (PID %d): %w", pid, err)
	}
	defer windows.CloseHandle(h)

	if err := windows.GenerateConsoleCtrlEvent(windows.CTRL_BREAK_EVENT, uint32(pid)); err == nil {
		ev, err := windows.WaitForSingleObject(h, uint32(shutdownTimeout/time.Millisecond))
		if err == nil && ev == windows.WAIT_OBJECT_0 {
			return nil
		}
		fmt.Println("Daemon did not stop in time, killing it")
	}
	if err := windows.TerminateProcess(h, 1); err != nil {
		return fmt.Errorf("failed to kill daemon: %w", err)
	}
	return nil
}
