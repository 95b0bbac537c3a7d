//go:build !windows

package cmd

import "github.com/warpdl/warpq/pkg/logger"

// platformLogger returns nil; stderr is the system log under service
// managers on these platforms.
func platformLogger() logger.Logger {
	return nil
}
