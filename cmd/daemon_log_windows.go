//go:build windows

package cmd

import "github.com/warpdl/warpq/pkg/logger"

const eventSourceName = "warpq"

// platformLogger returns the Windows Event Log writer when the event
// source is registered.
func platformLogger() logger.Logger {
	l, err := logger.NewEventLogger(eventSourceName)
	if err != nil {
		return nil
	}
	return l
}
