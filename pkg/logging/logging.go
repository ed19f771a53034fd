// Package logging provides leveled, component-scoped structured
// logging for the swap engine, backed by charmbracelet/log.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Level represents a log level.
type Level = log.Level

// Log levels.
const (
	DebugLevel = log.DebugLevel
	InfoLevel  = log.InfoLevel
	WarnLevel  = log.WarnLevel
	ErrorLevel = log.ErrorLevel
	FatalLevel = log.FatalLevel
)

// Logger is a thin wrapper over charmbracelet/log carrying enough
// construction state to derive component-scoped children.
type Logger struct {
	*log.Logger
	output     io.Writer
	timeFormat string
}

// Config holds logger configuration.
type Config struct {
	Level      string
	TimeFormat string
	Prefix     string
	Output     io.Writer
}

// DefaultConfig returns the default logging configuration: info level
// to stderr with time-of-day timestamps.
func DefaultConfig() *Config {
	return &Config{
		Level:      "info",
		TimeFormat: time.TimeOnly,
		Output:     os.Stderr,
	}
}

// New creates a logger from cfg. A nil cfg means DefaultConfig.
func New(cfg *Config) *Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	timeFormat := cfg.TimeFormat
	if timeFormat == "" {
		timeFormat = time.TimeOnly
	}

	inner := log.NewWithOptions(output, log.Options{
		ReportTimestamp: true,
		TimeFormat:      timeFormat,
		Prefix:          cfg.Prefix,
	})
	inner.SetLevel(ParseLevel(cfg.Level))

	return &Logger{Logger: inner, output: output, timeFormat: timeFormat}
}

// Default returns a logger built from DefaultConfig.
func Default() *Logger {
	return New(nil)
}

// ParseLevel maps a level name to its Level, defaulting to info for
// anything unrecognized.
func ParseLevel(level string) Level {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	case "fatal":
		return FatalLevel
	default:
		return InfoLevel
	}
}

// With returns a child logger carrying the given key-value pairs on
// every record.
func (l *Logger) With(keyvals ...interface{}) *Logger {
	return &Logger{Logger: l.Logger.With(keyvals...), output: l.output, timeFormat: l.timeFormat}
}

// Component returns a child logger whose records are prefixed with the
// component name, writing to the same output at the same level.
func (l *Logger) Component(name string) *Logger {
	output := l.output
	if output == nil {
		output = os.Stderr
	}
	child := log.NewWithOptions(output, log.Options{
		ReportTimestamp: true,
		TimeFormat:      l.timeFormat,
		Prefix:          name,
	})
	child.SetLevel(l.GetLevel())
	return &Logger{Logger: child, output: output, timeFormat: l.timeFormat}
}

var defaultLogger = Default()

// SetDefault replaces the process-wide default logger.
func SetDefault(l *Logger) {
	defaultLogger = l
}

// GetDefault returns the process-wide default logger.
func GetDefault() *Logger {
	return defaultLogger
}
