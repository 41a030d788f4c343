package logger

import (
	"io"
	"os"
	"strings"
	"syscall"
	"time"

	"codeberg.org/mutker/dalybms-bridge/internal/errors"
	"github.com/rs/zerolog"
)

var log = zerologger{zerolog.New(os.Stdout).With().Timestamp().Logger()}

type LogLevel int8

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

type LogEvent struct {
	*zerolog.Event
}

func (e *LogEvent) Msg(msg string) {
	e.Event.Msg(msg)
}

func (e *LogEvent) Send() {
	e.Event.Send()
}

// zerologger adapts a zerolog.Logger to the Logger interface
type zerologger struct {
	zl zerolog.Logger
}

func (l zerologger) Debug() *LogEvent { return &LogEvent{l.zl.Debug()} }
func (l zerologger) Info() *LogEvent  { return &LogEvent{l.zl.Info()} }
func (l zerologger) Warn() *LogEvent  { return &LogEvent{l.zl.Warn()} }
func (l zerologger) Error() *LogEvent { return &LogEvent{l.zl.Error()} }

func (l zerologger) ErrorWithCode(err errors.Error) *LogEvent {
	return &LogEvent{l.zl.Error().
		Str("error_code", string(err.Code())).
		Str("error_message", err.Error()).
		AnErr("error", err.Unwrap())}
}

// Init initializes the package logger writing to stdout
func Init(level string, isService bool) {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}

	if isService {
		output.TimeFormat = ""
		output.FormatTimestamp = func(_ interface{}) string {
			return ""
		}
	}

	log = zerologger{zerolog.New(output).With().Timestamp().Logger()}

	SetLogLevel(ParseLevel(level))
}

// New returns a Logger writing JSON lines to w, independent of the package logger
func New(w io.Writer) Logger {
	return zerologger{zerolog.New(w).With().Timestamp().Logger()}
}

// Default returns the package logger as a Logger
func Default() Logger {
	return log
}

// ParseLevel maps a configured level name to a LogLevel, defaulting to InfoLevel
func ParseLevel(level string) LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel
	case "warning", "warn":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// SetLogLevel sets the global log level
func SetLogLevel(level LogLevel) {
	zerolog.SetGlobalLevel(zerolog.Level(level))
}

// IsService checks if the application is running as a service
func IsService() bool {
	if _, err := os.Stdin.Stat(); err != nil {
		return true
	}
	if os.Getenv("SERVICE_NAME") != "" || os.Getenv("INVOCATION_ID") != "" {
		return true
	}
	if os.Getppid() == 1 {
		return true
	}

	return syscall.Getpgrp() == syscall.Getpid()
}

// Debug logs a debug message
func Debug() *LogEvent {
	return log.Debug()
}

// Info logs an info message
func Info() *LogEvent {
	return log.Info()
}

// Warn logs a warning message
func Warn() *LogEvent {
	return log.Warn()
}

// Error logs an error message
func Error() *LogEvent {
	return log.Error()
}

// ErrorWithCode logs an error message with a specific error code
func ErrorWithCode(err errors.Error) *LogEvent {
	return log.ErrorWithCode(err)
}

// Fatal logs a fatal message and exits the program
func Fatal() *LogEvent {
	return &LogEvent{log.zl.Fatal()}
}

// FatalWithCode logs a fatal message with a specific error code and exits the program
func FatalWithCode(err errors.Error) *LogEvent {
	return &LogEvent{log.zl.Fatal().
		Str("error_code", string(err.Code())).
		Str("error_message", err.Error()).
		AnErr("error", err.Unwrap())}
}
