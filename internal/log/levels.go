// Package log provides structured logging with verbosity levels for sizeimpact.
// It wraps log/slog and follows kubectl/klog -v=N conventions.
package log

import "log/slog"

// LevelTrace is a custom trace level (more verbose than debug).
const LevelTrace = slog.Level(-8)

// Verbosity levels accepted by -v.
const (
	VerbosityError = 0 // Errors only (quiet)
	VerbosityWarn  = 1 // + Warnings
	VerbosityInfo  = 2 // + Info (config loaded, groups collected, tracking summary)
	VerbosityDebug = 3 // + Debug (ignored files, commands run, timing)
	VerbosityTrace = 4 // + Trace (every file hashed and measured)
)

// VerbosityToLevel maps -v=N to a slog level.
func VerbosityToLevel(v int) slog.Level {
	switch {
	case v <= VerbosityError:
		return slog.LevelError
	case v == VerbosityWarn:
		return slog.LevelWarn
	case v == VerbosityInfo:
		return slog.LevelInfo
	case v == VerbosityDebug:
		return slog.LevelDebug
	default:
		return LevelTrace
	}
}
