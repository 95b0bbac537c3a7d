package logger

// MultiLogger broadcasts log messages to multiple backends, e.g. the console
// and the daemon log file.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger creates a logger that writes to every backend in order.
// Nil backends are skipped.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	m := &MultiLogger{loggers: make([]Logger, 0, len(loggers))}
	for _, l := range loggers {
		if l != nil {
			m.loggers = append(m.loggers, l)
		}
	}
	return m
}

func (m *MultiLogger) Info(format string, args ...interface{}) {
	for _, l := range m.loggers {
		l.Info(format, args...)
	}
}

func (m *MultiLogger) Warning(format string, args ...interface{}) {
	for _, l := range m.loggers {
		l.Warning(format, args...)
	}
}

func (m *MultiLogger) Error(format string, args ...interface{}) {
	for _, l := range m.loggers {
		l.Error(format, args...)
	}
}

// Close closes all backends and returns the first error encountered.
func (m *MultiLogger) Close() error {
	var firstErr error
	for _, l := range m.loggers {
		if err := l.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var _ Logger = (*MultiLogger)(nil)
