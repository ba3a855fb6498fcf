package watch

import (
	"slices"
	"sync"
	"time"
)

// MaxPendingFiles is the maximum number of changed files held before a flush
// is forced. Builds rewrite whole output trees at once, so this bounds memory
// without waiting for the window to close.
const MaxPendingFiles = 5000

// Debouncer coalesces rapid file change events into one batch. A build writes
// many files in quick succession; the batch is delivered once the window
// passes without new events.
type Debouncer struct {
	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer
	window  time.Duration
	onFlush func(files []string)
	stopped bool
}

// NewDebouncer creates a debouncer with the given window duration.
// onFlush receives the sorted set of changed files.
func NewDebouncer(window time.Duration, onFlush func(files []string)) *Debouncer {
	return &Debouncer{
		pending: make(map[string]struct{}),
		window:  window,
		onFlush: onFlush,
	}
}

// Add records a change to file and restarts the window.
func (d *Debouncer) Add(file string) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.pending[file] = struct{}{}

	if len(d.pending) >= MaxPendingFiles {
		d.stopTimerLocked()
		files := d.drainLocked()
		d.mu.Unlock()
		d.deliver(files)
		return
	}

	// A timer that already fired may still run flush; flush then finds
	// nothing pending or delivers the newer batch early, both harmless.
	d.stopTimerLocked()
	d.timer = time.AfterFunc(d.window, d.FlushNow)
	d.mu.Unlock()
}

// FlushNow delivers pending changes without waiting for the window.
func (d *Debouncer) FlushNow() {
	d.mu.Lock()
	d.stopTimerLocked()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	files := d.drainLocked()
	d.mu.Unlock()

	d.deliver(files)
}

// Stop stops the debouncer. Pending changes are delivered one last time.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	d.stopped = true
	d.stopTimerLocked()
	files := d.drainLocked()
	d.mu.Unlock()

	d.deliver(files)
}

func (d *Debouncer) stopTimerLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// drainLocked returns and clears the pending set. Caller must hold d.mu.
func (d *Debouncer) drainLocked() []string {
	if len(d.pending) == 0 {
		return nil
	}
	files := make([]string, 0, len(d.pending))
	for f := range d.pending {
		files = append(files, f)
	}
	slices.Sort(files)
	d.pending = make(map[string]struct{})
	return files
}

// deliver calls the handler outside the lock.
func (d *Debouncer) deliver(files []string) {
	if len(files) > 0 && d.onFlush != nil {
		d.onFlush(files)
	}
}
