// Package watcher observes directory trees for image changes and delivers
// debounced, coalesced events.
package watcher

import (
	"sync"
	"time"

	"github.com/lensworks/lumen/domain/image"
)

// Debouncer coalesces bursts of filesystem notifications per path and fires
// the handler once per path after a quiet interval. Rapid successive writes
// to the same file collapse into a single delivery carrying the merged kind.
// Deliveries for one path are serialized: while a handler runs, later
// notifications for that path queue behind it and fire only after it
// returns, so a path's events are never processed out of order.
type Debouncer struct {
	handler  func(image.PendingEvent)
	interval time.Duration
	mu       sync.Mutex
	entries  map[string]*debounceEntry
	inflight sync.WaitGroup
	closed   bool
}

type debounceEntry struct {
	pending *image.PendingEvent
	timer   *time.Timer
	// generation invalidates timers that were superseded after firing but
	// before acquiring the lock.
	generation uint64
	processing bool
}

// NewDebouncer creates a Debouncer delivering to handler after interval of
// quiet per path.
func NewDebouncer(handler func(image.PendingEvent), interval time.Duration) *Debouncer {
	return &Debouncer{
		handler:  handler,
		interval: interval,
		entries:  make(map[string]*debounceEntry),
	}
}

// Observe records a notification for a path. The quiet timer for the path is
// reset; an already pending event is superseded rather than replaced, so a
// delete is never lost to a stale create or modify in the same burst. If the
// path's handler is currently running the merged event waits until it
// returns.
func (d *Debouncer) Observe(event image.PendingEvent) {
	path := event.Path()

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}

	entry, exists := d.entries[path]
	if !exists {
		entry = &debounceEntry{}
		d.entries[path] = entry
	}

	if entry.pending != nil {
		merged := entry.pending.Supersede(event)
		entry.pending = &merged
	} else {
		entry.pending = &event
	}

	if !entry.processing {
		d.armTimer(path, entry)
	}
}

// Pending returns the number of paths with queued or in-flight work.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

// Close stops all timers, flushes queued events to the handler, and waits
// for in-flight handlers so a shutdown never drops an observed change.
func (d *Debouncer) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true

	var flush []image.PendingEvent
	for path, entry := range d.entries {
		if entry.timer != nil {
			entry.timer.Stop()
			entry.timer = nil
		}
		if entry.processing {
			// Its own goroutine flushes the queued event on completion.
			continue
		}
		if entry.pending != nil {
			flush = append(flush, *entry.pending)
		}
		delete(d.entries, path)
	}
	d.mu.Unlock()

	for _, event := range flush {
		d.handler(event)
	}
	d.inflight.Wait()
	return nil
}

// armTimer starts a fresh quiet-interval timer for the entry, invalidating
// any earlier timer that may already have fired. Caller holds d.mu.
func (d *Debouncer) armTimer(path string, entry *debounceEntry) {
	if entry.timer != nil {
		entry.timer.Stop()
	}
	entry.generation++
	generation := entry.generation
	entry.timer = time.AfterFunc(d.interval, func() {
		d.fire(path, generation)
	})
}

func (d *Debouncer) fire(path string, generation uint64) {
	d.mu.Lock()
	entry, exists := d.entries[path]
	if !exists || entry.generation != generation || entry.processing || entry.pending == nil {
		d.mu.Unlock()
		return
	}
	event := *entry.pending
	entry.pending = nil
	entry.timer = nil
	entry.processing = true
	d.inflight.Add(1)
	d.mu.Unlock()

	d.handler(event)

	d.mu.Lock()
	entry.processing = false
	var flush *image.PendingEvent
	switch {
	case entry.pending == nil:
		delete(d.entries, path)
	case d.closed:
		flush = entry.pending
		entry.pending = nil
		delete(d.entries, path)
	default:
		// An event arrived while the handler ran; give it its own quiet
		// interval behind the completed delivery.
		d.armTimer(path, entry)
	}
	d.mu.Unlock()

	if flush != nil {
		d.handler(*flush)
	}
	d.inflight.Done()
}
