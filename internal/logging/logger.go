package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level represents log levels
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the string representation of the log level
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a config value such as "debug" or "WARN" to a Level.
// Unknown values fall back to LevelInfo.
func ParseLevel(value string) Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger provides leveled logging. Loggers derived with WithPrefix share the
// parent's output lock so lines from different components never interleave.
type Logger struct {
	level  Level
	output io.Writer
	prefix string
	mu     *sync.Mutex
}

// NewLogger creates a new logger instance
func NewLogger(level Level, output io.Writer, prefix string) *Logger {
	l := &Logger{
		level:  level,
		output: output,
		mu:     &sync.Mutex{},
	}
	if prefix != "" {
		l.prefix = prefix + ": "
	}
	return l
}

// NewDefaultLogger creates a logger writing info and above to stderr
func NewDefaultLogger(prefix string) *Logger {
	return NewLogger(LevelInfo, os.Stderr, prefix)
}

// Discard returns a logger that drops everything, handy in tests
func Discard() *Logger {
	return NewLogger(LevelError+1, io.Discard, "")
}

func (l *Logger) log(level Level, format string, args ...any) {
	if l == nil || level < l.level {
		return
	}

	line := fmt.Sprintf("[%s] %s %s%s\n",
		time.Now().Format("2006-01-02 15:04:05.000"),
		level.String(),
		l.prefix,
		fmt.Sprintf(format, args...))

	l.mu.Lock()
	_, _ = io.WriteString(l.output, line)
	l.mu.Unlock()
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...any) {
	l.log(LevelDebug, format, args...)
}

// Info logs an info message
func (l *Logger) Info(format string, args ...any) {
	l.log(LevelInfo, format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...any) {
	l.log(LevelWarn, format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...any) {
	l.log(LevelError, format, args...)
}

// Level returns the minimum level this logger writes
func (l *Logger) Level() Level {
	return l.level
}

// WithPrefix creates a child logger with an additional prefix
func (l *Logger) WithPrefix(prefix string) *Logger {
	newPrefix := strings.TrimSuffix(l.prefix, ": ")
	if newPrefix != "" {
		newPrefix += " "
	}
	newPrefix += prefix + ": "

	return &Logger{
		level:  l.level,
		output: l.output,
		prefix: newPrefix,
		mu:     l.mu,
	}
}
