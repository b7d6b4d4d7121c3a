package internal

import (
	"sync"
	"time"

	"github.com/bep/debounce"
)

// Debouncer runs the most recently scheduled task once a quiet period has
// elapsed. Flush runs the pending task immediately instead.
type Debouncer struct {
	debounced func(f func())

	mu      sync.Mutex
	pending func()
	gen     uint64

	// held while a task executes so Flush waits for an in-flight run
	runMu sync.Mutex
}

// NewDebouncer creates a Debouncer with the given quiet period
func NewDebouncer(after time.Duration) *Debouncer {
	return &Debouncer{debounced: debounce.New(after)}
}

// Schedule replaces any pending task and restarts the quiet period
func (d *Debouncer) Schedule(task func()) {
	d.mu.Lock()
	d.gen++
	gen := d.gen
	d.pending = task
	d.mu.Unlock()

	d.debounced(func() { d.fire(gen) })
}

func (d *Debouncer) fire(gen uint64) {
	d.runMu.Lock()
	defer d.runMu.Unlock()

	d.mu.Lock()
	if gen != d.gen || d.pending == nil {
		d.mu.Unlock()
		return
	}
	task := d.pending
	d.pending = nil
	d.mu.Unlock()

	task()
}

// Flush runs the pending task, if any, on the calling goroutine
func (d *Debouncer) Flush() {
	d.runMu.Lock()
	defer d.runMu.Unlock()

	d.mu.Lock()
	task := d.pending
	d.pending = nil
	d.gen++
	d.mu.Unlock()

	if task != nil {
		task()
	}
}
