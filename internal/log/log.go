package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
)

var (
	logger atomic.Pointer[slog.Logger]
	level  = new(slog.LevelVar)
	format atomic.Value // string
)

func init() {
	// Warnings only until Init is called
	level.Set(VerbosityToLevel(VerbosityWarn))
	format.Store(FormatText)
	logger.Store(slog.New(newHandler(os.Stderr, FormatText)))
}

// Init initializes the global logger (call once at startup).
func Init(v int, logFormat string) {
	format.Store(logFormat)
	SetVerbosity(v)
	SetOutput(os.Stderr)
}

// SetOutput redirects log output, keeping verbosity and format.
func SetOutput(w io.Writer) {
	l := slog.New(newHandler(w, format.Load().(string)))
	logger.Store(l)
	slog.SetDefault(l)
}

// SetVerbosity changes verbosity at runtime.
func SetVerbosity(v int) {
	level.Set(VerbosityToLevel(v))
}

// Error logs at error level (v=0).
func Error(msg string, args ...any) {
	logger.Load().Error(msg, args...)
}

// Warn logs at warn level (v=1).
func Warn(msg string, args ...any) {
	logger.Load().Warn(msg, args...)
}

// Info logs at info level (v=2).
func Info(msg string, args ...any) {
	logger.Load().Info(msg, args...)
}

// Debug logs at debug level (v=3).
func Debug(msg string, args ...any) {
	logger.Load().Debug(msg, args...)
}

// Trace logs at trace level (v=4).
func Trace(msg string, args ...any) {
	logger.Load().Log(context.Background(), LevelTrace, msg, args...)
}

// Component returns a logger tagged with component name.
func Component(name string) *slog.Logger {
	return logger.Load().With("component", name)
}
