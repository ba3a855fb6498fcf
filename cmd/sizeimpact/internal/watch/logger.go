package watch

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"

	"github.com/albertocavalcante/sizeimpact/pkg/impact"
)

// ChangeType represents the type of file change.
type ChangeType string

const (
	ChangeAdded    ChangeType = "+"
	ChangeModified ChangeType = "~"
	ChangeDeleted  ChangeType = "-"
)

// Logger handles watch mode output formatting.
type Logger struct {
	writer  io.Writer
	isTTY   bool
	verbose bool
	noColor bool
	jsonOut bool

	// writeMu serializes writes: the debounce timer and the event loop
	// both log.
	writeMu sync.Mutex

	statsMu sync.Mutex
	stats   WatchStats
}

// WatchStats tracks statistics for the watch session.
type WatchStats struct {
	CompareCount int
	ErrorCount   int
	StartTime    time.Time
}

// LoggerConfig configures the logger.
type LoggerConfig struct {
	Writer  io.Writer
	Verbose bool
	NoColor bool
	JSON    bool
}

// NewLogger creates a new logger with the given configuration.
func NewLogger(cfg LoggerConfig) *Logger {
	writer := cfg.Writer
	if writer == nil {
		writer = os.Stderr
	}

	isTTY := false
	if f, ok := writer.(*os.File); ok {
		isTTY = term.IsTerminal(int(f.Fd()))
	}

	return &Logger{
		writer:  writer,
		isTTY:   isTTY,
		verbose: cfg.Verbose,
		noColor: cfg.NoColor,
		jsonOut: cfg.JSON,
		stats: WatchStats{
			StartTime: time.Now(),
		},
	}
}

// Ready logs the initial ready message.
func (l *Logger) Ready(dirs []string, root string) {
	if l.jsonOut {
		l.writeJSON(map[string]any{
			"event": "ready",
			"dirs":  dirs,
			"path":  root,
		})
		return
	}

	l.printf("sizeimpact: watching %s in %s\n", strings.Join(dirs, ", "), root)
	l.println("sizeimpact: ready")
	l.println()
}

// FileChanged logs a file change event.
func (l *Logger) FileChanged(path string, change ChangeType) {
	if l.jsonOut {
		l.writeJSON(map[string]any{
			"event":  "file_changed",
			"path":   path,
			"change": string(change),
			"time":   time.Now().Format(time.RFC3339),
		})
		return
	}

	if l.verbose {
		l.printf("[%s] %s %s\n", l.timestamp(), l.colorize(string(change), change), path)
	}
}

// Comparing logs that a comparison is starting.
func (l *Logger) Comparing(files []string) {
	if l.jsonOut {
		l.writeJSON(map[string]any{
			"event": "comparing",
			"files": len(files),
			"time":  time.Now().Format(time.RFC3339),
		})
		return
	}

	if len(files) == 1 {
		l.printf("[%s] %s changed, comparing...\n", l.timestamp(), files[0])
	} else {
		l.printf("[%s] %d files changed, comparing...\n", l.timestamp(), len(files))
	}
}

// Compared logs the outcome of a comparison against the baseline.
func (l *Logger) Compared(result impact.Result) {
	l.statsMu.Lock()
	l.stats.CompareCount++
	l.statsMu.Unlock()

	var changed int
	for _, diff := range result {
		for _, e := range diff {
			if e.Changed() {
				changed++
			}
		}
	}

	if l.jsonOut {
		l.writeJSON(map[string]any{
			"event":   "compared",
			"groups":  len(result),
			"changed": changed,
			"time":    time.Now().Format(time.RFC3339),
		})
		return
	}

	mark := l.colorize("✓", ChangeAdded) // checkmark
	if changed > 0 {
		mark = l.colorize("~", ChangeModified)
	}
	l.printf("[%s] %s %d files differ from baseline\n", l.timestamp(), mark, changed)
}

// Error logs an error.
func (l *Logger) Error(err error) {
	l.statsMu.Lock()
	l.stats.ErrorCount++
	l.statsMu.Unlock()

	if l.jsonOut {
		l.writeJSON(map[string]any{
			"event": "error",
			"error": err.Error(),
			"time":  time.Now().Format(time.RFC3339),
		})
		return
	}

	xmark := l.colorize("✗", ChangeDeleted) // xmark
	l.printf("[%s] %s error: %v\n", l.timestamp(), xmark, err)
}

// Shutdown logs the shutdown message with statistics.
func (l *Logger) Shutdown() {
	stats := l.Stats()

	if l.jsonOut {
		l.writeJSON(map[string]any{
			"event":       "shutdown",
			"comparisons": stats.CompareCount,
			"errors":      stats.ErrorCount,
			"duration":    time.Since(stats.StartTime).String(),
		})
		return
	}

	l.println()
	l.printf("sizeimpact: shutting down (%d comparisons, %d errors)\n",
		stats.CompareCount, stats.ErrorCount)
}

// Stats returns the current watch statistics.
func (l *Logger) Stats() WatchStats {
	l.statsMu.Lock()
	defer l.statsMu.Unlock()
	return l.stats
}

func (l *Logger) timestamp() string {
	return time.Now().Format("15:04:05")
}

// colorize applies ANSI color codes based on change type.
func (l *Logger) colorize(s string, change ChangeType) string {
	if l.noColor || !l.isTTY {
		return s
	}

	var color string
	switch change {
	case ChangeAdded:
		color = "\033[32m" // green
	case ChangeModified:
		color = "\033[33m" // yellow
	case ChangeDeleted:
		color = "\033[31m" // red
	default:
		return s
	}
	return color + s + "\033[0m"
}

func (l *Logger) writeJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		l.println(`{"event":"internal_error","error":"json marshal failed"}`)
		return
	}
	l.println(string(data))
}

func (l *Logger) printf(format string, args ...any) {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	_, _ = fmt.Fprintf(l.writer, format, args...)
}

func (l *Logger) println(args ...any) {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	_, _ = fmt.Fprintln(l.writer, args...)
}
