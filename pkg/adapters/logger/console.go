// Package logger provides logging implementations.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/ideamans/go-l10n"
	"github.com/mattn/go-isatty"

	"github.com/user/replayclipper/pkg/ports"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorGray   = "\033[90m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorCyan   = "\033[36m"
)

// sink is shared by a logger and all of its component loggers so lines
// written from the producer goroutine and the tick loop never interleave.
type sink struct {
	mu    sync.Mutex
	out   io.Writer
	err   io.Writer
	color bool
	start time.Time
	now   func() time.Time
}

// ConsoleLogger writes to stdout (debug, info) and stderr (warn, error).
type ConsoleLogger struct {
	level     ports.LogLevel
	component string
	sink      *sink
}

// NewConsole creates a console logger. Color is enabled when stdout is a terminal.
func NewConsole(level ports.LogLevel) *ConsoleLogger {
	fd := os.Stdout.Fd()
	l := NewWriter(level, os.Stdout, os.Stderr)
	l.sink.color = isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	return l
}

// NewWriter creates an uncolored logger over arbitrary writers.
func NewWriter(level ports.LogLevel, out, errOut io.Writer) *ConsoleLogger {
	return &ConsoleLogger{
		level: level,
		sink:  &sink{out: out, err: errOut, start: time.Now(), now: time.Now},
	}
}

// Debug logs a debug message.
func (l *ConsoleLogger) Debug(msg string, args ...interface{}) {
	l.log(ports.LevelDebug, msg, args...)
}

// Info logs an informational message.
func (l *ConsoleLogger) Info(msg string, args ...interface{}) {
	l.log(ports.LevelInfo, msg, args...)
}

// Warn logs a warning message.
func (l *ConsoleLogger) Warn(msg string, args ...interface{}) {
	l.log(ports.LevelWarn, msg, args...)
}

// Error logs an error message.
func (l *ConsoleLogger) Error(msg string, args ...interface{}) {
	l.log(ports.LevelError, msg, args...)
}

// WithComponent returns a logger sharing this one's output.
func (l *ConsoleLogger) WithComponent(component string) ports.Logger {
	if l.component != "" {
		component = l.component + "/" + component
	}
	return &ConsoleLogger{level: l.level, component: component, sink: l.sink}
}

func (l *ConsoleLogger) log(level ports.LogLevel, msg string, args ...interface{}) {
	if level < l.level {
		return
	}
	s := l.sink
	text := l10n.F(msg, args...)

	// Debug lines carry the elapsed time so frame timing can be read off the log.
	if level == ports.LevelDebug {
		text = fmt.Sprintf("%8.3f %s", s.now().Sub(s.start).Seconds(), text)
	}
	if l.component != "" {
		tag := "[" + l.component + "]"
		if s.color {
			tag = colorCyan + tag + colorReset
		}
		text = tag + " " + text
	}
	if s.color {
		switch level {
		case ports.LevelDebug:
			text = colorGray + text + colorReset
		case ports.LevelWarn:
			text = colorYellow + text + colorReset
		case ports.LevelError:
			text = colorRed + text + colorReset
		}
	}

	w := s.out
	if level >= ports.LevelWarn {
		w = s.err
	}
	s.mu.Lock()
	fmt.Fprintln(w, text)
	s.mu.Unlock()
}
