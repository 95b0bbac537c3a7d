// Package logger provides the logging interface shared by every warpq
// component, with console, file and Windows Event Log backends.
package logger

import (
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
)

// Logger is the printf-style logging interface used across warpq.
type Logger interface {
	// Info logs an informational message.
	Info(format string, args ...interface{})

	// Warning logs a recoverable problem.
	Warning(format string, args ...interface{})

	// Error logs a failure.
	Error(format string, args ...interface{})

	// Close releases resources held by the logger. Safe to call multiple
	// times.
	Close() error
}

// StandardLogger wraps a stdlib *log.Logger.
type StandardLogger struct {
	logger *log.Logger
}

// NewStandardLogger creates a logger that writes through l.
func NewStandardLogger(l *log.Logger) *StandardLogger {
	return &StandardLogger{logger: l}
}

// Info logs with an [INFO] prefix.
func (s *StandardLogger) Info(format string, args ...interface{}) {
	s.logger.Printf("[INFO] "+format, args...)
}

// Warning logs with a [WARNING] prefix.
func (s *StandardLogger) Warning(format string, args ...interface{}) {
	s.logger.Printf("[WARNING] "+format, args...)
}

// Error logs with an [ERROR] prefix.
func (s *StandardLogger) Error(format string, args ...interface{}) {
	s.logger.Printf("[ERROR] "+format, args...)
}

// Close is a no-op.
func (s *StandardLogger) Close() error {
	return nil
}

// NopLogger discards all messages.
type NopLogger struct{}

// NewNopLogger creates a logger that discards all messages.
func NewNopLogger() *NopLogger {
	return &NopLogger{}
}

func (n *NopLogger) Info(format string, args ...interface{})    {}
func (n *NopLogger) Warning(format string, args ...interface{}) {}
func (n *NopLogger) Error(format string, args ...interface{})   {}
func (n *NopLogger) Close() error                               { return nil }

// Level is the minimum severity a LevelLogger forwards.
type Level int

const (
	LevelInfo Level = iota
	LevelWarning
	LevelError
)

// ParseLevel maps a configuration value to a Level. Unknown values fall back
// to LevelInfo and report false.
func ParseLevel(s string) (Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return LevelInfo, true
	case "warn", "warning":
		return LevelWarning, true
	case "error":
		return LevelError, true
	}
	return LevelInfo, false
}

func (l Level) String() string {
	switch l {
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	}
	return "info"
}

// LevelLogger drops messages below its threshold before forwarding them.
type LevelLogger struct {
	next  Logger
	level Level
}

// NewLevelLogger wraps next so that only messages at or above level pass.
func NewLevelLogger(next Logger, level Level) *LevelLogger {
	return &LevelLogger{next: next, level: level}
}

func (l *LevelLogger) Info(format string, args ...interface{}) {
	if l.level <= LevelInfo {
		l.next.Info(format, args...)
	}
}

func (l *LevelLogger) Warning(format string, args ...interface{}) {
	if l.level <= LevelWarning {
		l.next.Warning(format, args...)
	}
}

func (l *LevelLogger) Error(format string, args ...interface{}) {
	l.next.Error(format, args...)
}

func (l *LevelLogger) Close() error {
	return l.next.Close()
}

// ToStdLogger adapts l for APIs that want a *log.Logger, such as
// http.Server.ErrorLog. Every line is forwarded as an error.
func ToStdLogger(l Logger) *log.Logger {
	return log.New(&lineWriter{l: l}, "", 0)
}

type lineWriter struct {
	l Logger
}

func (w *lineWriter) Write(p []byte) (int, error) {
	msg := strings.TrimRight(string(p), "\r\n")
	if msg != "" {
		w.l.Error("%s", msg)
	}
	return len(p), nil
}

var _ io.Writer = (*lineWriter)(nil)

// Ensure implementations satisfy the Logger interface.
var (
	_ Logger = (*StandardLogger)(nil)
	_ Logger = (*NopLogger)(nil)
	_ Logger = (*LevelLogger)(nil)
)

// MockLogger records all log calls for verification in tests. It is safe for
// concurrent use.
type MockLogger struct {
	mu           sync.Mutex
	infoCalls    []string
	warningCalls []string
	errorCalls   []string
	closeCalled  bool
}

// NewMockLogger creates a new MockLogger.
func NewMockLogger() *MockLogger {
	return &MockLogger{}
}

func (m *MockLogger) Info(format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infoCalls = append(m.infoCalls, fmt.Sprintf(format, args...))
}

func (m *MockLogger) Warning(format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warningCalls = append(m.warningCalls, fmt.Sprintf(format, args...))
}

func (m *MockLogger) Error(format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCalls = append(m.errorCalls, fmt.Sprintf(format, args...))
}

func (m *MockLogger) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeCalled = true
	return nil
}

// InfoCalls returns a copy of the recorded info messages.
func (m *MockLogger) InfoCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.infoCalls...)
}

// WarningCalls returns a copy of the recorded warning messages.
func (m *MockLogger) WarningCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.warningCalls...)
}

// ErrorCalls returns a copy of the recorded error messages.
func (m *MockLogger) ErrorCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.errorCalls...)
}

// CloseCalled reports whether Close was called.
func (m *MockLogger) CloseCalled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeCalled
}

var _ Logger = (*MockLogger)(nil)

// NewFileLogger returns a logger writing to w, typically the daemon log
// file. Close closes w once.
func NewFileLogger(w io.WriteCloser) Logger {
	return &fileLogger{StandardLogger: NewStandardLogger(log.New(w, "", log.LstdFlags)), c: w}
}

type fileLogger struct {
	*StandardLogger
	once sync.Once
	c    io.Closer
	err  error
}

func (f *fileLogger) Close() error {
	f.once.Do(func() { f.err = f.c.Close() })
	return f.err
}
