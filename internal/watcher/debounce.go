package watcher

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Debouncer coalesces bursts of change notifications into a single
// downstream broadcast. The first notification of a burst schedules the
// broadcast one quiet interval out; notifications arriving while a
// broadcast is pending do not push the deadline. That bounds worst-case
// latency to one quiet interval from the first event of a burst, at the
// cost of occasionally broadcasting while a burst is still in flight.
//
// Notify runs on the watch loop goroutine and fire on a timer goroutine,
// so the pending timer handle is guarded by a mutex.
type Debouncer struct {
	quiet     time.Duration
	broadcast func() error
	log       *log.Logger

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
	running sync.WaitGroup
}

// NewDebouncer creates a Debouncer that invokes broadcast once per burst,
// one quiet interval after the burst's first Notify. Broadcast errors are
// logged and do not prevent future batches.
func NewDebouncer(quiet time.Duration, logger *log.Logger, broadcast func() error) *Debouncer {
	return &Debouncer{
		quiet:     quiet,
		broadcast: broadcast,
		log:       logger,
	}
}

// Notify records that something changed. If no broadcast is pending, one is
// scheduled; otherwise the call is a no-op.
func (d *Debouncer) Notify() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped || d.timer != nil {
		return
	}
	d.timer = time.AfterFunc(d.quiet, d.fire)
}

// Pending reports whether a broadcast is scheduled but not yet fired.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

func (d *Debouncer) fire() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	// Joined inside the lock so Stop either prevents this callback or
	// waits for it.
	d.running.Add(1)
	d.mu.Unlock()
	defer d.running.Done()

	// Run the callback outside the lock: it may take a while (a status
	// refresh walks the worktree) and must not block Notify.
	if err := d.broadcast(); err != nil {
		d.log.Error("change broadcast failed", "error", err)
	}
}

// Stop cancels any pending broadcast and waits for an in-flight one to
// finish, so no broadcast runs after Stop returns. Subsequent Notify calls
// are no-ops. Must not be called from inside the broadcast callback.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()
	d.running.Wait()
}
