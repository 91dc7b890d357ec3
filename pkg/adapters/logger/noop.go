package logger

import "github.com/user/replayclipper/pkg/ports"

// NoopLogger discards everything. It backs --quiet and most tests.
type NoopLogger struct{}

// NewNoop creates a NoopLogger.
func NewNoop() *NoopLogger {
	return &NoopLogger{}
}

func (l *NoopLogger) Debug(msg string, args ...interface{}) {}
func (l *NoopLogger) Info(msg string, args ...interface{})  {}
func (l *NoopLogger) Warn(msg string, args ...interface{})  {}
func (l *NoopLogger) Error(msg string, args ...interface{}) {}

// WithComponent returns l.
func (l *NoopLogger) WithComponent(string) ports.Logger {
	return l
}
