package metrics

import (
	"strings"
	"sync"
	"time"
)

const (
	// DefaultDebounceWait is the silence window before pending speech is
	// flushed upstream.
	DefaultDebounceWait = 1500 * time.Millisecond
	// MinFragmentLen is the shortest flushable fragment; anything at or
	// below this length is treated as recognition noise and held back.
	MinFragmentLen = 5
)

// Debouncer coalesces transcript fragments and emits their concatenation
// after a pause in speech. Fragments too short to be meaningful stay pending
// so they can ride along with whatever the candidate says next.
type Debouncer struct {
	mu      sync.Mutex
	wait    time.Duration
	pending []string
	timer   *time.Timer
	flush   func(text string)
	stopped bool
}

// NewDebouncer creates a debouncer that calls flush with coalesced speech.
func NewDebouncer(wait time.Duration, flush func(text string)) *Debouncer {
	if wait <= 0 {
		wait = DefaultDebounceWait
	}
	return &Debouncer{wait: wait, flush: flush}
}

// Push adds a finalized fragment and restarts the silence window.
func (d *Debouncer) Push(fragment string) {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.pending = append(d.pending, fragment)
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.wait, d.fire)
}

func (d *Debouncer) fire() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	text := strings.Join(d.pending, " ")
	if len(text) <= MinFragmentLen {
		// Too short to send on its own; keep it pending.
		d.mu.Unlock()
		return
	}
	d.pending = nil
	flush := d.flush
	d.mu.Unlock()

	if flush != nil {
		flush(text)
	}
}

// Stop cancels the timer and drops any pending content.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.pending = nil
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
