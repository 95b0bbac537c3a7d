package cmd

import (
	"context"
	"os/signal"
)

// setupShutdownHandler returns a context canceled on the first shutdown
// signal. Calling the cancel func also unregisters the signal handler.
func setupShutdownHandler() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), shutdownSignals...)
}
