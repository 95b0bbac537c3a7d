//go:build windows

package cmd

import "os"

// SIGTERM is not delivered on windows.
var shutdownSignals = []os.Signal{os.Interrupt}
