package log

import (
	"io"
	"log/slog"
)

// Formats accepted by --log-format.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// newHandler builds the handler for format, writing to w and filtering on the
// shared level. Anything but FormatJSON renders as text.
func newHandler(w io.Writer, format string) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: traceLevelName,
	}
	if format == FormatJSON {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// traceLevelName prints LevelTrace as TRACE; slog would print DEBUG-4.
func traceLevelName(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey {
		return a
	}
	if l, ok := a.Value.Any().(slog.Level); ok && l == LevelTrace {
		a.Value = slog.StringValue("TRACE")
	}
	return a
}
