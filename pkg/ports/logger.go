// Package ports defines the interfaces between the playback core and its adapters.
package ports

import "strings"

// LogLevel is the severity of a log message.
type LogLevel int

const (
	// LevelDebug is used by component loggers for per-frame and per-packet detail.
	LevelDebug LogLevel = iota
	// LevelInfo is used for session-level progress.
	LevelInfo
	// LevelWarn is for recoverable problems such as an audio fault.
	LevelWarn
	// LevelError is for problems that end the session.
	LevelError
	// LevelQuiet suppresses all output.
	LevelQuiet
)

var levelNames = [...]string{"debug", "info", "warn", "error", "quiet"}

// String returns the lowercase name of the level.
func (l LogLevel) String() string {
	if l < 0 || int(l) >= len(levelNames) {
		return "unknown"
	}
	return levelNames[l]
}

// ParseLogLevel parses a level name case-insensitively.
// "warning" and "none" are accepted as aliases. Unknown names yield LevelInfo.
func ParseLogLevel(s string) LogLevel {
	switch s = strings.ToLower(strings.TrimSpace(s)); s {
	case "warning":
		return LevelWarn
	case "none", "off":
		return LevelQuiet
	}
	for i, name := range levelNames {
		if s == name {
			return LogLevel(i)
		}
	}
	return LevelInfo
}

// Logger is the logging port. Messages are go-l10n keys formatted with args.
//
// Session code logs at Info and above with already translated text. Components
// obtained through WithComponent log at Debug.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})

	// WithComponent returns a Logger that prefixes messages with component.
	// Calling it on a component logger nests the names as "parent/child".
	WithComponent(component string) Logger
}
