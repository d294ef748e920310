package internal

import (
	"log"
	"os"
)

// LogLevel orders logging verbosity from quietest to noisiest
type LogLevel int

const (
	LogLevelError LogLevel = iota
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
)

var levelPrefix = map[LogLevel]string{
	LogLevelError: "[ERROR] ",
	LogLevelWarn:  "[WARN] ",
	LogLevelInfo:  "[INFO] ",
	LogLevelDebug: "[DEBUG] ",
}

// Logger writes leveled messages through the standard log package
type Logger struct {
	level LogLevel
}

// NewLogger creates a logger emitting messages at or below level
func NewLogger(level LogLevel) *Logger {
	return &Logger{level: level}
}

// NewDefaultLogger reads LOG_LEVEL from the environment; unset or
// unrecognized values fall back to INFO
func NewDefaultLogger() *Logger {
	level := LogLevelInfo
	switch os.Getenv("LOG_LEVEL") {
	case "ERROR":
		level = LogLevelError
	case "WARN":
		level = LogLevelWarn
	case "DEBUG":
		level = LogLevelDebug
	}
	return &Logger{level: level}
}

func (l *Logger) printf(level LogLevel, format string, args ...interface{}) {
	if l.level >= level {
		log.Printf(levelPrefix[level]+format, args...)
	}
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.printf(LogLevelError, format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.printf(LogLevelWarn, format, args...)
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.printf(LogLevelInfo, format, args...)
}

func (l *Logger) Debug(format string, args ...interface{}) {
	l.printf(LogLevelDebug, format, args...)
}

// DefaultLogger is the process-wide logger used when callers pass nil
var DefaultLogger = NewDefaultLogger()
