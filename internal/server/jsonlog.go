// jsonlog.go - Levelled structured logging (text in development, JSON in production)
package server

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// LogLevel represents the severity of a log entry
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Logger wraps a logrus logger behind the small field-map API the
// handlers use.
type Logger struct {
	entry *logrus.Logger
}

// DefaultLogger is the global logger instance. ConfigureLogging replaces it.
var DefaultLogger = NewLogger(os.Stdout, LogLevelInfo, false)

// NewLogger builds a logger writing to w at minLevel.
func NewLogger(w io.Writer, minLevel LogLevel, json bool) *Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(logrusLevel(minLevel))
	if json {
		l.SetFormatter(&logrus.JSONFormatter{
			FieldMap: logrus.FieldMap{logrus.FieldKeyMsg: "msg"},
		})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: true})
	}
	return &Logger{entry: l}
}

// ConfigureLogging installs a new DefaultLogger from the level and format
// settings ("text" or "json").
func ConfigureLogging(level, format string) error {
	switch format {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", format)
	}
	switch LogLevel(level) {
	case "", LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
	default:
		return fmt.Errorf("unknown log level %q", level)
	}
	if level == "" {
		level = string(LogLevelInfo)
	}
	DefaultLogger = NewLogger(os.Stdout, LogLevel(level), format == "json")
	return nil
}

func logrusLevel(l LogLevel) logrus.Level {
	switch l {
	case LogLevelDebug:
		return logrus.DebugLevel
	case LogLevelWarn:
		return logrus.WarnLevel
	case LogLevelError:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

func (l *Logger) with(fields map[string]interface{}) *logrus.Entry {
	return l.entry.WithFields(logrus.Fields(fields))
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, fields map[string]interface{}) {
	l.with(fields).Debug(msg)
}

// Info logs an info message
func (l *Logger) Info(msg string, fields map[string]interface{}) {
	l.with(fields).Info(msg)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, fields map[string]interface{}) {
	l.with(fields).Warn(msg)
}

// Error logs an error message
func (l *Logger) Error(msg string, fields map[string]interface{}, err error) {
	e := l.with(fields)
	if err != nil {
		e = e.WithError(err)
	}
	e.Error(msg)
}

// Global logging functions

func Debug(msg string, fields map[string]interface{}) {
	DefaultLogger.Debug(msg, fields)
}

func Info(msg string, fields map[string]interface{}) {
	DefaultLogger.Info(msg, fields)
}

func Warn(msg string, fields map[string]interface{}) {
	DefaultLogger.Warn(msg, fields)
}

func Error(msg string, fields map[string]interface{}, err error) {
	DefaultLogger.Error(msg, fields, err)
}
