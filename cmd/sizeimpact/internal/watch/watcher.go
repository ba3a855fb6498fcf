// Package watch re-runs the size comparison whenever build output changes.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/albertocavalcante/sizeimpact/pkg/impact"
)

// DefaultDebounce is the debounce window used when none is configured.
const DefaultDebounce = 500 * time.Millisecond

// Handler re-collects the output after a batch of changes and returns the
// comparison against the baseline. files are relative to the root.
type Handler func(ctx context.Context, files []string) (impact.Result, error)

// Config configures the watcher.
type Config struct {
	Root     string
	Dirs     []string // group directories, relative to Root
	Debounce int      // debounce window in milliseconds
	Verbose  bool
	NoColor  bool
	JSON     bool
	Writer   io.Writer // status output (default stderr)
}

// Watcher watches group directories and compares on change.
type Watcher struct {
	config    Config
	handler   Handler
	fsWatcher *fsnotify.Watcher
	debouncer *Debouncer
	logger    *Logger
	dirs      []string // absolute group directories

	ctx context.Context

	// compareMu prevents concurrent comparisons
	compareMu sync.Mutex
}

// New creates a new watcher with the given configuration.
func New(cfg Config, handler Handler) (*Watcher, error) {
	if handler == nil {
		return nil, errors.New("watch: nil handler")
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	dirs := make([]string, len(cfg.Dirs))
	for i, d := range cfg.Dirs {
		dirs[i] = filepath.Join(cfg.Root, d)
	}

	return &Watcher{
		config:    cfg,
		handler:   handler,
		fsWatcher: fsWatcher,
		logger: NewLogger(LoggerConfig{
			Writer:  cfg.Writer,
			Verbose: cfg.Verbose,
			NoColor: cfg.NoColor,
			JSON:    cfg.JSON,
		}),
		dirs: dirs,
		ctx:  context.Background(),
	}, nil
}

// Run starts the watch loop. It blocks until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	w.ctx = ctx

	window := time.Duration(w.config.Debounce) * time.Millisecond
	if window <= 0 {
		window = DefaultDebounce
	}
	w.debouncer = NewDebouncer(window, w.handleChangedFiles)
	defer w.debouncer.Stop()

	if err := w.watchGroups(); err != nil {
		return fmt.Errorf("failed to watch output directories: %w", err)
	}
	w.logger.Ready(w.config.Dirs, w.config.Root)

	for {
		select {
		case <-ctx.Done():
			w.logger.Shutdown()
			return nil

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error(err)
		}
	}
}

// watchGroups watches every existing group directory recursively, plus the
// nearest existing ancestor of each, so that a build deleting and recreating
// the output directory is noticed.
func (w *Watcher) watchGroups() error {
	for _, dir := range w.dirs {
		if err := w.add(nearestExisting(filepath.Dir(dir))); err != nil {
			return err
		}
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			if err := w.addRecursive(dir); err != nil {
				return err
			}
		}
	}
	return nil
}

// nearestExisting returns dir or its closest existing parent.
func nearestExisting(dir string) string {
	for {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}

// addRecursive adds a directory and all subdirectories to the watcher.
func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsPermission(err) {
				if w.config.Verbose {
					w.logger.Error(fmt.Errorf("permission denied: %s", path))
				}
				return nil
			}
			w.logger.Error(fmt.Errorf("walk error at %s: %w", path, err))
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		return w.add(path)
	})
}

func (w *Watcher) add(path string) error {
	if err := w.fsWatcher.Add(path); err != nil {
		if isWatchLimitError(err) {
			return fmt.Errorf("%w for %s: %v\n"+
				"Increase limit with: sudo sysctl fs.inotify.max_user_watches=524288",
				ErrWatchLimitReached, path, err)
		}
		if w.config.Verbose {
			w.logger.Error(fmt.Errorf("failed to watch %s: %w", path, err))
		}
	}
	return nil
}

// isWatchLimitError checks if an error is due to inotify watch limits.
func isWatchLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "no space left on device") ||
		strings.Contains(errStr, "too many open files")
}

// inGroup reports whether path is a group directory or lies inside one.
func (w *Watcher) inGroup(path string) bool {
	for _, dir := range w.dirs {
		if path == dir || strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// handleEvent processes a single filesystem event.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := event.Name

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			// A build may recreate the output tree from scratch.
			if err := w.watchGroups(); err != nil {
				w.logger.Error(err)
			}
		}
	}

	if !w.inGroup(path) {
		return
	}

	var changeType ChangeType
	switch {
	case event.Has(fsnotify.Create):
		changeType = ChangeAdded
	case event.Has(fsnotify.Write):
		changeType = ChangeModified
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		changeType = ChangeDeleted
	default:
		return // Ignore chmod events
	}

	rel, err := filepath.Rel(w.config.Root, path)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)
	w.logger.FileChanged(rel, changeType)
	w.debouncer.Add(rel)
}

// handleChangedFiles is called when the debouncer flushes.
func (w *Watcher) handleChangedFiles(files []string) {
	if w.ctx.Err() != nil {
		return
	}

	w.compareMu.Lock()
	defer w.compareMu.Unlock()

	w.logger.Comparing(files)
	result, err := w.handler(w.ctx, files)
	if err != nil {
		w.logger.Error(err)
		return
	}
	w.logger.Compared(result)
}

// Stats returns the statistics of the watch session.
func (w *Watcher) Stats() WatchStats {
	return w.logger.Stats()
}

// Close closes the watcher and releases resources.
func (w *Watcher) Close() error {
	if w.fsWatcher != nil {
		return w.fsWatcher.Close()
	}
	return nil
}

// ErrWatchLimitReached is returned when the OS watch limit is exceeded.
var ErrWatchLimitReached = errors.New("filesystem watch limit reached")
