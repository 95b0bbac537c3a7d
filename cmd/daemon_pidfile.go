package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const pidFileName = "daemon.pid"

// getPidFilePath returns the path to the daemon PID file in configDir.
func getPidFilePath(configDir string) string {
	return filepath.Join(configDir, pidFileName)
}

// WritePidFile writes the current process ID to the PID file.
func WritePidFile(configDir string) error {
	pid := os.Getpid()
	return os.WriteFile(getPidFilePath(configDir), []byte(strconv.Itoa(pid)), 0644)
}

// ReadPidFile reads and returns the PID from the PID file.
func ReadPidFile(configDir string) (int, error) {
	data, err := os.ReadFile(getPidFilePath(configDir))
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID in file: %w", err)
	}
	if pid <= 0 {
		return 0, fmt.Errorf("invalid PID: %d", pid)
	}
	return pid, nil
}

// RemovePidFile removes the PID file.
func RemovePidFile(configDir string) error {
	err := os.Remove(getPidFilePath(configDir))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
