package cmd

import (
	"fmt"
	"os"

	"github.com/urfave/cli"
	cmdCommon "github.com/warpdl/warpq/cmd/common"
	"github.com/warpdl/warpq/internal/config"
)

func stopDaemon(ctx *cli.Context) error {
	dir, err := config.Dir()
	if err != nil {
		cmdCommon.PrintRuntimeErr(ctx, "stop", "config_dir", err)
		return nil
	}
	pid, err := ReadPidFile(dir)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("Daemon is not running (PID file not found)")
			return nil
		}
		fmt.Fprintf(os.Stderr, "Error reading PID file: %v\n", err)
		return nil
	}
	if !isProcessRunning(pid) {
		fmt.Printf("Daemon is not running (stale PID %d)\n", pid)
		_ = RemovePidFile(dir)
		return nil
	}

	fmt.Printf("Stopping daemon (PID %d)...\n", pid)
	if err := killDaemon(pid); err != nil {
		fmt.Fprintf(os.Stderr, "Error stopping daemon: %v\n", err)
		return nil
	}
	// the daemon removes its PID file on a clean exit
	fmt.Println("Daemon stopped successfully")
	return nil
}
