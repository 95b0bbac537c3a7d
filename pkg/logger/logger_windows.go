//go:build windows

package logger

import (
	"fmt"

	"golang.org/x/sys/windows/svc/eventlog"
)

// Event IDs for warpq Event Log entries.
const (
	EventIDInfo    uint32 = 1
	EventIDWarning uint32 = 2
	EventIDError   uint32 = 3
)

// EventLogWriter is the subset of *eventlog.Log the EventLogger uses.
type EventLogWriter interface {
	Info(eid uint32, msg string) error
	Warning(eid uint32, msg string) error
	Error(eid uint32, msg string) error
	Close() error
}

// EventLogger writes daemon messages to the Windows Event Log. The source
// must have been registered with eventlog.InstallAsEventCreate.
type EventLogger struct {
	log EventLogWriter
}

// NewEventLogger opens the Event Log source sourceName.
func NewEventLogger(sourceName string) (*EventLogger, error) {
	elog, err := eventlog.Open(sourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}
	return &EventLogger{log: elog}, nil
}

// NewEventLoggerWithWriter wraps an existing writer.
func NewEventLoggerWithWriter(w EventLogWriter) *EventLogger {
	return &EventLogger{log: w}
}

func (e *EventLogger) Info(format string, args ...interface{}) {
	// the daemon keeps running when the event log rejects a write
	_ = e.log.Info(EventIDInfo, fmt.Sprintf(format, args...))
}

func (e *EventLogger) Warning(format string, args ...interface{}) {
	_ = e.log.Warning(EventIDWarning, fmt.Sprintf(format, args...))
}

func (e *EventLogger) Error(format string, args ...interface{}) {
	_ = e.log.Error(EventIDError, fmt.Sprintf(format, args...))
}

func (e *EventLogger) Close() error {
	if e.log == nil {
		return nil
	}
	return e.log.Close()
}

var _ Logger = (*EventLogger)(nil)
