// Package scheduler coalesces bursts of per-window work.
package scheduler

import (
	"context"
	"sync"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/tabkeeper/schema"
)

// Observer receives scheduling notifications, typically metrics.
type Observer interface {
	Scheduled(windowID schema.WindowID, replaced bool)
	Fired(windowID schema.WindowID)
}

type entry struct {
	gen   uint64
	timer *time.Timer
}

// Debouncer runs at most one pending operation per window after a quiet
// period. Scheduling again before the timer fires replaces the operation.
type Debouncer struct {
	mu      sync.Mutex
	delay   time.Duration
	pending map[schema.WindowID]*entry
	gen     uint64
	stopped bool
	log     pslog.Logger
	obs     Observer
	wg      sync.WaitGroup
}

// New constructs a Debouncer with the given quiet period.
func New(delay time.Duration, logger pslog.Logger, obs Observer) *Debouncer {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Debouncer{
		delay:   delay,
		pending: make(map[schema.WindowID]*entry),
		log:     logger,
		obs:     obs,
	}
}

// Schedule replaces any pending operation for windowID with op. It reports
// false when the debouncer has been stopped.
func (d *Debouncer) Schedule(windowID schema.WindowID, op func()) bool {
	if d == nil || op == nil {
		return false
	}
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return false
	}
	replaced := false
	if prev := d.pending[windowID]; prev != nil {
		if prev.timer.Stop() {
			d.wg.Done()
		}
		replaced = true
	}
	d.gen++
	e := &entry{gen: d.gen}
	d.wg.Add(1)
	e.timer = time.AfterFunc(d.delay, func() { d.fire(windowID, e.gen, op) })
	d.pending[windowID] = e
	d.mu.Unlock()

	if d.obs != nil {
		d.obs.Scheduled(windowID, replaced)
	}
	d.log.Trace("scheduler queued", "window", int64(windowID), "replaced", replaced)
	return true
}

func (d *Debouncer) fire(windowID schema.WindowID, gen uint64, op func()) {
	defer d.wg.Done()
	d.mu.Lock()
	current := d.pending[windowID]
	if current == nil || current.gen != gen {
		// Superseded after the timer had already started running.
		d.mu.Unlock()
		return
	}
	delete(d.pending, windowID)
	d.mu.Unlock()

	if d.obs != nil {
		d.obs.Fired(windowID)
	}
	d.log.Trace("scheduler fired", "window", int64(windowID))
	op()
}

// Cancel drops the pending operation for windowID, if any.
func (d *Debouncer) Cancel(windowID schema.WindowID) bool {
	if d == nil {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	e := d.pending[windowID]
	if e == nil {
		return false
	}
	delete(d.pending, windowID)
	if e.timer.Stop() {
		d.wg.Done()
	}
	return true
}

// Pending returns the number of windows with a queued operation.
func (d *Debouncer) Pending() int {
	if d == nil {
		return 0
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Stop cancels every pending operation, refuses new ones, and waits for
// operations that already fired to return.
func (d *Debouncer) Stop() {
	if d == nil {
		return
	}
	d.mu.Lock()
	d.stopped = true
	for windowID, e := range d.pending {
		if e.timer.Stop() {
			d.wg.Done()
		}
		delete(d.pending, windowID)
	}
	d.mu.Unlock()
	d.wg.Wait()
}
